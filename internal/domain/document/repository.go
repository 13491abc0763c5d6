package document

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository provides read/write access to the document store.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	List(ctx context.Context, clientID *uuid.UUID) ([]*Document, error)
	ListByStatus(ctx context.Context, status Status) ([]*Document, error)
	ListForPeriod(ctx context.Context, clientID *uuid.UUID, from, to time.Time) ([]*Document, error)
	Update(ctx context.Context, d *Document) error
}
