// Package kodo implements the client side of the Kodo object-storage
// provider's published HTTP contract: upload-policy signing, persistent
// operation (pfop) submission, management calls and data transforms.
package kodo

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
)

// Static errors for credential construction.
var (
	// ErrAccessKeyRequired is returned when the access key is empty.
	ErrAccessKeyRequired = errors.New("kodo: access key is required")
	// ErrSecretKeyRequired is returned when the secret key is empty.
	ErrSecretKeyRequired = errors.New("kodo: secret key is required")
)

// Credentials holds the account key pair used to sign upload policies
// and management requests.
type Credentials struct {
	AccessKey string
	secretKey []byte
}

// NewCredentials creates a Credentials from an access/secret key pair.
func NewCredentials(accessKey, secretKey string) (*Credentials, error) {
	if accessKey == "" {
		return nil, ErrAccessKeyRequired
	}
	if secretKey == "" {
		return nil, ErrSecretKeyRequired
	}
	return &Credentials{
		AccessKey: accessKey,
		secretKey: []byte(secretKey),
	}, nil
}

// Sign computes the provider signature over data:
// "<access key>:<urlsafe-base64 HMAC-SHA1>".
func (c *Credentials) Sign(data []byte) string {
	h := hmac.New(sha1.New, c.secretKey)
	h.Write(data)
	return c.AccessKey + ":" + base64.URLEncoding.EncodeToString(h.Sum(nil))
}

// SignWithData signs data and appends its urlsafe-base64 encoding,
// producing the "<ak>:<sig>:<encoded data>" token triple used for
// upload tokens.
func (c *Credentials) SignWithData(data []byte) string {
	encoded := base64.URLEncoding.EncodeToString(data)
	return c.Sign([]byte(encoded)) + ":" + encoded
}

// SignRequest computes the management ("QBox") authorization token for a
// request: the signed data is "<path>[?<query>]\n[<body>]", where the body
// is included only for form-encoded requests.
func (c *Credentials) SignRequest(path, query string, body []byte) string {
	data := path
	if query != "" {
		data += "?" + query
	}
	data += "\n"
	buf := append([]byte(data), body...)
	return "QBox " + c.Sign(buf)
}
