// Package upload orchestrates the post-upload flow: persisting object
// metadata, dispatching derived work to the external processing pipeline,
// and reconciling the pipeline's asynchronous completion callbacks.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dudumedia/kodo-upload-api/internal/kodo"
	"github.com/dudumedia/kodo-upload-api/internal/object"
	"github.com/dudumedia/kodo-upload-api/internal/persistent"
)

// Derived-work flags naming the kind of work a task record tracks.
const (
	// FlagVFrame marks the thumbnail-extraction task.
	FlagVFrame = "vframe"
	// FlagAvthumbMp4 marks the mp4 transcode task.
	FlagAvthumbMp4 = "avthumb_mp4"
)

// Static errors for caller input validation. All are checked before any
// side effect.
var (
	// ErrObjectIDRequired is returned when the object id is empty.
	ErrObjectIDRequired = errors.New("upload: object id is required")
	// ErrFlagRequired is returned when the derived-work flag is empty.
	ErrFlagRequired = errors.New("upload: flag is required")
	// ErrBucketRequired is returned when the bucket is empty.
	ErrBucketRequired = errors.New("upload: bucket is required")
	// ErrKeyRequired is returned when the key is empty.
	ErrKeyRequired = errors.New("upload: key is required")
	// ErrOpsRequired is returned when the operation descriptor is empty.
	ErrOpsRequired = errors.New("upload: ops descriptor is required")
	// ErrTaskIDRequired is returned when a notification carries no task id.
	ErrTaskIDRequired = errors.New("upload: task id is required")
)

// Config holds the static configuration the service needs.
type Config struct {
	// Bucket is the default storage bucket.
	Bucket string
	// Domain is the public download domain for objects.
	Domain string
	// Pipeline is the default processing pipeline name.
	Pipeline string
	// NotifyURL is the default completion-callback URL for submissions.
	NotifyURL string
}

// CompletionData carries the upload-completion webhook fields.
type CompletionData struct {
	Bucket    string
	Key       string
	Etag      string
	Fname     string
	Fsize     int64
	MimeType  string
	EndUser   string
	ImageInfo string
	AVInfo    string
	Ext       string
	// Base requests the legacy "_base" sibling copy for images.
	Base bool
}

// Result is the accumulated upload-completion response.
type Result struct {
	ObjID      string
	URL        string
	AvthumbImg string
	AvthumbMp4 string
	// Duration is the video duration in seconds, two decimal places.
	Duration  string
	ImageInfo string
	MD5       string
}

// PersistentOptions carries per-submission overrides; zero values fall
// back to the service configuration.
type PersistentOptions struct {
	NotifyURL string
	Pipeline  string
	Force     bool
}

// Notification is a completion callback from the processing pipeline.
type Notification struct {
	// ID is the pipeline-assigned task id, the correlation key.
	ID string
	// Body is the raw callback payload.
	Body json.RawMessage
}

// Service implements the upload-completion orchestration.
type Service struct {
	objects   object.Repository
	tasks     persistent.Repository
	provider  kodo.Client
	cfg       Config
	logger    *slog.Logger
	asyncCopy bool
	now       func() time.Time
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithAsyncCopy enables or disables running the legacy base copy in a
// background goroutine. When disabled, the copy runs synchronously;
// intended for tests.
func WithAsyncCopy(enabled bool) Option {
	return func(s *Service) {
		s.asyncCopy = enabled
	}
}

// WithClock overrides the wall-clock source used for reconciliation
// timestamps. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an upload Service.
func NewService(objects object.Repository, tasks persistent.Repository, provider kodo.Client, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		objects:   objects,
		tasks:     tasks,
		provider:  provider,
		cfg:       cfg,
		logger:    logger,
		asyncCopy: true,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleCompletion runs the upload-completion flow: persists the object,
// dispatches derived work for videos, and enriches the response with
// synchronously obtainable data. Only the initial object persistence is
// fatal; everything after it is best effort.
func (s *Service) HandleCompletion(ctx context.Context, data CompletionData) (*Result, error) {
	obj := object.New()
	obj.Bucket = data.Bucket
	obj.Key = data.Key
	obj.Etag = data.Etag
	obj.Fname = data.Fname
	obj.Fsize = data.Fsize
	obj.MimeType = data.MimeType
	obj.EndUser = data.EndUser
	obj.ImageInfo = data.ImageInfo
	obj.AVInfo = data.AVInfo
	obj.Ext = data.Ext

	if err := s.objects.Save(ctx, obj); err != nil {
		return nil, fmt.Errorf("upload: save object: %w", err)
	}

	res := &Result{
		ObjID: obj.ID,
		URL:   s.publicURL(obj.Key),
	}

	if obj.IsVideo() {
		s.dispatchPersistent(ctx, obj, res)
	}
	if obj.IsImage() {
		s.enrichImage(ctx, obj, data.Base, res)
	}

	s.logger.Info("upload completion handled",
		slog.String("obj_id", obj.ID),
		slog.String("key", obj.Key),
		slog.String("mime_type", obj.MimeType),
	)

	return res, nil
}

// dispatchPersistent derives the thumbnail and transcode targets for a
// video object, records them on the object, and submits one pipeline
// operation per target. Submission failures never abort the sibling
// submission or the surrounding completion flow.
func (s *Service) dispatchPersistent(ctx context.Context, obj *object.Object, res *Result) {
	thumbKey, mp4Key := deriveKeys(obj.Key)

	ops := []string{
		fmt.Sprintf("vframe/%s/offset/%s|saveas/%s", vframeFormat, vframeOffset, encodeSaveAs(obj.Bucket, thumbKey)),
		fmt.Sprintf("avthumb/mp4|saveas/%s", encodeSaveAs(obj.Bucket, mp4Key)),
	}

	obj.SetPersistentInfo(&object.PersistentInfo{
		AvthumbImg: thumbKey,
		AvthumbMp4: mp4Key,
		Ops:        ops,
	})
	if err := s.objects.Save(ctx, obj); err != nil {
		s.logger.Error("failed to persist derived-work info",
			slog.String("obj_id", obj.ID),
			slog.String("error", err.Error()),
		)
	}

	res.AvthumbImg = s.publicURL(thumbKey)
	res.AvthumbMp4 = s.publicURL(mp4Key)

	if obj.AVInfo != "" {
		duration, err := obj.VideoDuration()
		if err != nil {
			s.logger.Error("avinfo parse failed",
				slog.String("obj_id", obj.ID),
				slog.String("error", err.Error()),
			)
		} else {
			res.Duration = strconv.FormatFloat(duration, 'f', 2, 64)
		}
	}

	for i, flag := range []string{FlagVFrame, FlagAvthumbMp4} {
		// Failures are logged inside StartPersistent and must not stop
		// the remaining submissions.
		_ = s.StartPersistent(ctx, obj.ID, flag, obj.Bucket, obj.Key, ops[i], PersistentOptions{
			Pipeline: s.cfg.Pipeline,
		})
	}
}

// StartPersistent submits one operation descriptor to the processing
// pipeline and records a pending task keyed by the returned task id.
// Submission and record persistence are not atomic: a record-persistence
// failure after a successful submission leaves a callback with nothing to
// reconcile against, and is surfaced through the log only.
func (s *Service) StartPersistent(ctx context.Context, objectID, flag, bucket, key, ops string, opts PersistentOptions) error {
	if objectID == "" {
		return ErrObjectIDRequired
	}
	if bucket == "" {
		return ErrBucketRequired
	}
	if key == "" {
		return ErrKeyRequired
	}
	if ops == "" {
		return ErrOpsRequired
	}

	notifyURL := opts.NotifyURL
	if notifyURL == "" {
		notifyURL = s.cfg.NotifyURL
	}
	pipeline := opts.Pipeline
	if pipeline == "" {
		pipeline = s.cfg.Pipeline
	}

	pid, err := s.provider.SubmitPfop(ctx, bucket, key, ops, kodo.PfopOptions{
		NotifyURL: notifyURL,
		Pipeline:  pipeline,
		Force:     opts.Force,
	})
	if err != nil {
		// No task id means nothing to correlate a callback against, so
		// no record is created.
		s.logger.Error("pfop submission failed",
			slog.String("obj_id", objectID),
			slog.String("flag", flag),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("upload: submit pfop: %w", err)
	}

	task := persistent.New()
	task.ObjectID = objectID
	task.Flag = flag
	task.Bucket = bucket
	task.Key = key
	task.PID = pid
	task.Ops = ops
	task.Pipeline = pipeline

	if err := s.tasks.Save(ctx, task); err != nil {
		// The submission already happened; the eventual callback will
		// find nothing to match. Accepted gap, log only.
		s.logger.Error("failed to persist task record, completion callback will be unmatched",
			slog.String("obj_id", objectID),
			slog.String("pid", pid),
			slog.String("error", err.Error()),
		)
		return nil
	}

	s.logger.Info("persistent task submitted",
		slog.String("obj_id", objectID),
		slog.String("flag", flag),
		slog.String("pid", pid),
		slog.String("pipeline", pipeline),
	)
	return nil
}

// ReconcileNotification matches a pipeline completion callback to its
// pending task record and merges the result into it. An unmatched task id
// is a no-op: the transport may redeliver after a match already happened.
// Repeated delivery re-applies the same update, a benign overwrite.
func (s *Service) ReconcileNotification(ctx context.Context, n Notification) error {
	if n.ID == "" {
		return ErrTaskIDRequired
	}

	matched, err := s.tasks.AttachResult(ctx, n.ID, n.Body, s.now())
	if err != nil {
		s.logger.Error("failed to record persistent result",
			slog.String("pid", n.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !matched {
		s.logger.Debug("no task record for notification",
			slog.String("pid", n.ID),
		)
		return nil
	}

	s.logger.Info("persistent task resolved",
		slog.String("pid", n.ID),
	)
	return nil
}

// enrichImage attaches image metadata and best-effort enrichments to the
// response. The legacy base copy is fire-and-forget with errors logged;
// hash-fetch failures are dropped silently, matching the historic
// behavior of this flow.
func (s *Service) enrichImage(ctx context.Context, obj *object.Object, base bool, res *Result) {
	res.ImageInfo = obj.ImageInfo

	if base {
		destKey := baseCopyKey(obj.Key)
		copyFn := func(ctx context.Context) {
			if err := s.provider.Copy(ctx, obj.Bucket, obj.Key, obj.Bucket, destKey); err != nil {
				s.logger.Error("legacy base copy failed",
					slog.String("obj_id", obj.ID),
					slog.String("dest_key", destKey),
					slog.String("error", err.Error()),
				)
				return
			}
			s.logger.Info("legacy base copy done",
				slog.String("obj_id", obj.ID),
				slog.String("dest_key", destKey),
			)
		}
		if s.asyncCopy {
			go copyFn(context.WithoutCancel(ctx))
		} else {
			copyFn(ctx)
		}
	}

	hash, err := s.provider.QHash(ctx, res.URL, "md5")
	if err == nil && hash != "" {
		res.MD5 = hash
	}
}

// GetObject retrieves a stored object record by id.
func (s *Service) GetObject(ctx context.Context, id string) (*object.Object, error) {
	if id == "" {
		return nil, ErrObjectIDRequired
	}
	return s.objects.FindByID(ctx, id)
}

// GetPersistent retrieves the task record for an object and a
// derived-work flag.
func (s *Service) GetPersistent(ctx context.Context, objectID, flag string) (*persistent.TaskRecord, error) {
	if objectID == "" {
		return nil, ErrObjectIDRequired
	}
	if flag == "" {
		return nil, ErrFlagRequired
	}
	return s.tasks.FindByObjectAndFlag(ctx, objectID, flag)
}

// publicURL computes the public download URL of a key.
func (s *Service) publicURL(key string) string {
	return fmt.Sprintf("http://%s/%s", s.cfg.Domain, key)
}
