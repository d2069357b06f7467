// Package object provides the stored-object record created when an upload
// completes, together with repository interfaces for persistence.
package object

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Static errors for metadata parsing.
var (
	// ErrNoAVInfo is returned when the object carries no audio/video metadata.
	ErrNoAVInfo = errors.New("object: no avinfo")
	// ErrNoDuration is returned when the audio/video metadata carries no
	// usable video duration.
	ErrNoDuration = errors.New("object: avinfo has no video duration")
)

// PersistentInfo records the derived work dispatched for an object: the
// computed destination keys and the full operation descriptors submitted
// to the processing pipeline.
type PersistentInfo struct {
	// AvthumbImg is the destination key of the extracted thumbnail image.
	AvthumbImg string `json:"avthumb_img"`
	// AvthumbMp4 is the destination key of the transcoded mp4 video.
	AvthumbMp4 string `json:"avthumb_mp4"`
	// Ops holds the operation descriptors submitted to the pipeline.
	Ops []string `json:"ops"`
}

// Object is the metadata record persisted when an upload completes.
// It is created once by the completion flow and mutated once more when
// derived work is dispatched; it is never deleted by this service.
type Object struct {
	// ID is the unique identifier for this object record.
	ID string
	// Bucket is the storage bucket the object was uploaded to.
	Bucket string
	// Key is the object's storage key.
	Key string
	// Etag is the provider-computed content etag.
	Etag string
	// Fname is the original file name supplied by the uploader.
	Fname string
	// Fsize is the object size in bytes.
	Fsize int64
	// MimeType is the detected media type.
	MimeType string
	// EndUser is the uploader identity, when supplied.
	EndUser string
	// ImageInfo is the provider-generated image metadata, raw JSON.
	ImageInfo string
	// AVInfo is the provider-generated audio/video metadata, raw JSON.
	// It is parsed lazily via VideoDuration.
	AVInfo string
	// Ext is the file extension reported at upload time.
	Ext string
	// PersistentInfo is set only when derived work was dispatched.
	PersistentInfo *PersistentInfo
	// CreatedAt is when the record was created.
	CreatedAt time.Time
	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time
}

// New creates an empty Object record with a generated ID and timestamps.
func New() *Object {
	now := time.Now()
	return &Object{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsVideo reports whether the object's media type indicates video content.
func (o *Object) IsVideo() bool {
	return strings.Contains(o.MimeType, "video")
}

// IsImage reports whether the object's media type indicates image content.
func (o *Object) IsImage() bool {
	return strings.Contains(o.MimeType, "image")
}

// SetPersistentInfo attaches the derived-work record to the object.
func (o *Object) SetPersistentInfo(info *PersistentInfo) {
	o.PersistentInfo = info
	o.UpdatedAt = time.Now()
}

// VideoDuration parses the raw audio/video metadata and returns the video
// duration in seconds. The metadata may carry the duration as either a
// JSON number or a numeric string.
func (o *Object) VideoDuration() (float64, error) {
	if o.AVInfo == "" {
		return 0, ErrNoAVInfo
	}

	var info struct {
		Video struct {
			Duration any `json:"duration"`
		} `json:"video"`
	}
	if err := json.Unmarshal([]byte(o.AVInfo), &info); err != nil {
		return 0, fmt.Errorf("object: parse avinfo: %w", err)
	}

	switch d := info.Video.Duration.(type) {
	case float64:
		return d, nil
	case string:
		v, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return 0, fmt.Errorf("object: parse avinfo duration: %w", err)
		}
		return v, nil
	default:
		return 0, ErrNoDuration
	}
}

// Clone creates a deep copy of the object for safe reads.
func (o *Object) Clone() *Object {
	clone := *o
	if o.PersistentInfo != nil {
		info := *o.PersistentInfo
		info.Ops = make([]string, len(o.PersistentInfo.Ops))
		copy(info.Ops, o.PersistentInfo.Ops)
		clone.PersistentInfo = &info
	}
	return &clone
}
