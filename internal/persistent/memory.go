package persistent

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// Records are indexed by the pipeline-assigned task id.
type MemoryRepository struct {
	mu    sync.RWMutex
	tasks map[string]*TaskRecord
}

// NewMemoryRepository creates a new in-memory task-record repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks: make(map[string]*TaskRecord),
	}
}

// Save persists a task record to the in-memory storage.
// Creates a clone to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, task *TaskRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.PID] = task.Clone()
	return nil
}

// FindByPID retrieves a task record by its pipeline-assigned task id.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByPID(_ context.Context, pid string) (*TaskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[pid]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.Clone(), nil
}

// FindByObjectAndFlag retrieves the task record for an object and a
// derived-work flag.
func (r *MemoryRepository) FindByObjectAndFlag(_ context.Context, objectID, flag string) (*TaskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, task := range r.tasks {
		if task.ObjectID == objectID && task.Flag == flag {
			return task.Clone(), nil
		}
	}
	return nil, ErrTaskNotFound
}

// AttachResult merges a completion result into the matching record.
// A missing record is a silent no-op.
func (r *MemoryRepository) AttachResult(_ context.Context, pid string, result json.RawMessage, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[pid]
	if !ok {
		return false, nil
	}
	task.Result = make(json.RawMessage, len(result))
	copy(task.Result, result)
	at := completedAt
	task.CompletedAt = &at
	return true, nil
}
