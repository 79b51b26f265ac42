package history

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Repository lookups for unknown ids.
var ErrNotFound = errors.New("entry not found")

// Repository stores entries in creation order.
type Repository interface {
	// Create assigns ID, Seq and timestamps and appends e.
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	// Update replaces content and status and refreshes UpdatedAt.
	Update(ctx context.Context, id uuid.UUID, content string, status Status) (*Entry, error)
	Delete(ctx context.Context, id uuid.UUID) (*Entry, error)
	DeleteByStatus(ctx context.Context, status Status) ([]*Entry, error)
	// List returns the entries of one profile passing filter, in creation order.
	List(ctx context.Context, profileID string, filter StatusFilter) ([]*Entry, error)
	All(ctx context.Context) ([]*Entry, error)
	Reset(ctx context.Context) (int, error)
}
