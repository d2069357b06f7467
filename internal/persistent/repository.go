package persistent

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrTaskNotFound is returned when a task record cannot be found.
var ErrTaskNotFound = errors.New("task record not found")

// Repository defines the interface for task-record persistence.
type Repository interface {
	// Save persists a task record.
	Save(ctx context.Context, task *TaskRecord) error

	// FindByPID retrieves a task record by its pipeline-assigned task id.
	// Returns ErrTaskNotFound if no record matches.
	FindByPID(ctx context.Context, pid string) (*TaskRecord, error)

	// FindByObjectAndFlag retrieves the task record for an object and a
	// derived-work flag. Returns ErrTaskNotFound if no record matches.
	FindByObjectAndFlag(ctx context.Context, objectID, flag string) (*TaskRecord, error)

	// AttachResult merges a completion result into the record whose task id
	// equals pid. A missing record is a silent no-op (matched=false, nil
	// error) since the callback transport may redeliver; re-applying the
	// same result is a benign overwrite.
	AttachResult(ctx context.Context, pid string, result json.RawMessage, completedAt time.Time) (matched bool, err error)
}
