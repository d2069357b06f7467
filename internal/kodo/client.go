package kodo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Static errors for provider client operations.
var (
	// ErrCredentialsRequired is returned when no credentials are provided.
	ErrCredentialsRequired = errors.New("kodo: credentials are required")
	// ErrNoPersistentID is returned when a pfop response carries no task id.
	ErrNoPersistentID = errors.New("kodo: pfop succeeded but no persistent id returned")
	// ErrSubmitFailed is returned when the provider rejects a pfop submission.
	ErrSubmitFailed = errors.New("kodo: pfop submit failed")
	// ErrNoHashReturned is returned when a qhash response carries no hash.
	ErrNoHashReturned = errors.New("kodo: no hash returned")
	// ErrServerError is returned when the provider returns a 5xx status code.
	ErrServerError = errors.New("kodo: server error")
	// ErrRateLimited is returned when the provider returns a 429 status code.
	ErrRateLimited = errors.New("kodo: rate limited")
	// ErrRequestFailed is returned when a request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("kodo: request failed")
)

// Client defines the interface for the provider calls this service makes.
type Client interface {
	// SubmitPfop submits an asynchronous persistent operation and returns
	// the pipeline-assigned task id.
	SubmitPfop(ctx context.Context, bucket, key, fops string, opts PfopOptions) (pid string, err error)

	// Copy duplicates an object to another key within the provider.
	Copy(ctx context.Context, srcBucket, srcKey, destBucket, destKey string) error

	// QHash fetches the content hash of a public object URL via the
	// ?qhash data transform.
	QHash(ctx context.Context, publicURL, algo string) (hash string, err error)
}

// HTTPClient is the HTTP implementation of the provider Client interface.
type HTTPClient struct {
	creds       *Credentials
	apiHost     string
	rsHost      string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithAPIHost sets a custom host for the processing (pfop) API.
func WithAPIHost(host string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiHost = host
	}
}

// WithRSHost sets a custom host for the management (rs) API.
func WithRSHost(host string) ClientOption {
	return func(hc *HTTPClient) {
		hc.rsHost = host
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new provider HTTP client with the given credentials.
func NewClient(creds *Credentials, opts ...ClientOption) (*HTTPClient, error) {
	if creds == nil {
		return nil, ErrCredentialsRequired
	}

	c := &HTTPClient{
		creds:       creds,
		apiHost:     "https://api.qiniuapi.com",
		rsHost:      "https://rs.qiniuapi.com",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// SubmitPfop submits a persistent operation against bucket/key and returns
// the pipeline-assigned task id.
func (c *HTTPClient) SubmitPfop(ctx context.Context, bucket, key, fops string, opts PfopOptions) (string, error) {
	form := url.Values{}
	form.Set("bucket", bucket)
	form.Set("key", key)
	form.Set("fops", fops)
	if opts.NotifyURL != "" {
		form.Set("notifyURL", opts.NotifyURL)
	}
	if opts.Pipeline != "" {
		form.Set("pipeline", opts.Pipeline)
	}
	force := "0"
	if opts.Force {
		force = "1"
	}
	form.Set("force", force)

	var resp pfopResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, c.apiHost+"/pfop/", form, true, &resp); err != nil {
		return "", err
	}

	if resp.PersistentID == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrSubmitFailed, resp.Error)
		}
		return "", ErrNoPersistentID
	}

	return resp.PersistentID, nil
}

// Copy duplicates srcBucket/srcKey to destBucket/destKey via the
// management API. Entries are addressed as urlsafe-base64 "bucket:key".
func (c *HTTPClient) Copy(ctx context.Context, srcBucket, srcKey, destBucket, destKey string) error {
	src := encodeEntry(srcBucket, srcKey)
	dest := encodeEntry(destBucket, destKey)
	reqURL := c.rsHost + "/copy/" + src + "/" + dest
	return c.doRequestWithRetry(ctx, http.MethodPost, reqURL, nil, true, nil)
}

// QHash fetches the content hash of a public object URL. algo defaults
// to md5. The transform endpoint is public and needs no authorization.
func (c *HTTPClient) QHash(ctx context.Context, publicURL, algo string) (string, error) {
	if algo == "" {
		algo = "md5"
	}

	var resp qhashResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, publicURL+"?qhash/"+algo, nil, false, &resp); err != nil {
		return "", err
	}
	if resp.Hash == "" {
		return "", ErrNoHashReturned
	}
	return resp.Hash, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, reqURL string, form url.Values, sign bool, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("kodo: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := c.doRequest(ctx, method, reqURL, form, sign, result)
		if err == nil {
			return nil
		}

		// Check if error is retryable
		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("kodo: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request. When sign is true the request
// carries a management authorization token over "<path>[?query]\n[<body>]".
func (c *HTTPClient) doRequest(ctx context.Context, method, reqURL string, form url.Values, sign bool, result interface{}) error {
	var body []byte
	if form != nil {
		body = []byte(form.Encode())
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = strings.NewReader(string(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("kodo: create request: %w", err)
	}

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if sign {
		req.Header.Set("Authorization", c.creds.SignRequest(req.URL.Path, req.URL.RawQuery, body))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("kodo: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("kodo: read response: %w", err)}
	}

	// Handle non-2xx status codes
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 5xx errors are retryable
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		// 429 (rate limit) is retryable
		if resp.StatusCode == 429 {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		// Other errors are not retryable
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("kodo: unmarshal response: %w", err)
		}
	}

	return nil
}

// encodeEntry encodes a bucket/key pair as a urlsafe-base64 entry URI.
func encodeEntry(bucket, key string) string {
	return base64.URLEncoding.EncodeToString([]byte(bucket + ":" + key))
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
