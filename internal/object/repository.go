package object

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when an object cannot be found by ID.
var ErrObjectNotFound = errors.New("object not found")

// Repository defines the interface for object persistence.
type Repository interface {
	// Save persists an object record. If the record already exists,
	// it is updated.
	Save(ctx context.Context, obj *Object) error

	// FindByID retrieves an object by its unique identifier.
	// Returns ErrObjectNotFound if the object does not exist.
	FindByID(ctx context.Context, id string) (*Object, error)

	// List returns all object records.
	List(ctx context.Context) ([]*Object, error)
}
