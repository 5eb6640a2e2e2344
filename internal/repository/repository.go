package repository

import (
	"context"
	"errors"

	"multimesh/internal/domain"
)

// ErrNotFound is returned when no mesh has the requested id or checksum.
var ErrNotFound = errors.New("mesh not found")

// MeshRepository defines the interface for the persisted mesh catalog
type MeshRepository interface {
	// Save stores rec together with the contents of src in one transaction.
	Save(ctx context.Context, rec *domain.MeshRecord, src domain.Source) error

	// Read operations
	Get(ctx context.Context, id string) (*domain.MeshRecord, error)
	FindByChecksum(ctx context.Context, checksum string) (*domain.MeshRecord, error)
	List(ctx context.Context) ([]*domain.MeshRecord, error)

	// Load replays the stored mesh into target through the push protocol.
	Load(ctx context.Context, id string, target domain.Target) error

	Delete(ctx context.Context, id string) error

	// Close releases resources
	Close() error
}
