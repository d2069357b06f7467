// Package persistent provides the task record tracking derived work
// submitted to the external processing pipeline, keyed by the
// pipeline-assigned task id.
package persistent

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskRecord tracks one operation descriptor submitted to the pipeline.
// It is created right after a successful submission, mutated exactly once
// when the completion callback is reconciled, and never deleted.
type TaskRecord struct {
	// ID is the unique identifier for this record.
	ID string
	// ObjectID is the owning object's identity.
	ObjectID string
	// Flag names the kind of derived work, e.g. "vframe" or "avthumb_mp4".
	Flag string
	// Bucket is the source bucket of the operation.
	Bucket string
	// Key is the source key of the operation.
	Key string
	// PID is the pipeline-assigned task id, the sole correlation key
	// used to match completion callbacks.
	PID string
	// Ops is the operation descriptor string submitted to the pipeline.
	Ops string
	// Pipeline is the named processing queue the work was submitted to.
	Pipeline string
	// Result is the raw callback payload, set at reconciliation time.
	Result json.RawMessage
	// CompletedAt is the wall-clock time of reconciliation; nil while
	// the task is still pending.
	CompletedAt *time.Time
	// CreatedAt is when the record was created.
	CreatedAt time.Time
}

// New creates an empty TaskRecord with a generated ID and creation time.
func New() *TaskRecord {
	return &TaskRecord{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
}

// Resolved reports whether a completion callback has been reconciled
// against this record.
func (t *TaskRecord) Resolved() bool {
	return t.CompletedAt != nil
}

// Clone creates a deep copy of the record for safe reads.
func (t *TaskRecord) Clone() *TaskRecord {
	clone := *t
	if t.Result != nil {
		clone.Result = make(json.RawMessage, len(t.Result))
		copy(clone.Result, t.Result)
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		clone.CompletedAt = &at
	}
	return &clone
}
