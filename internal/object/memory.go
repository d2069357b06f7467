package object

import (
	"context"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; swap for MySQL in production.
type MemoryRepository struct {
	mu      sync.RWMutex
	objects map[string]*Object
}

// NewMemoryRepository creates a new in-memory object repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		objects: make(map[string]*Object),
	}
}

// Save persists an object record to the in-memory storage.
// Creates a clone to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, obj *Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[obj.ID] = obj.Clone()
	return nil
}

// FindByID retrieves an object by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[id]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return obj.Clone(), nil
}

// List returns all object records in the repository.
// Returns clones to prevent external mutations.
func (r *MemoryRepository) List(_ context.Context) ([]*Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Object, 0, len(r.objects))
	for _, obj := range r.objects {
		result = append(result, obj.Clone())
	}
	return result, nil
}
