package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository provides access to GL entries and the imported bank feed.
type Repository interface {
	CreateEntry(ctx context.Context, e *Entry) error
	ListEntries(ctx context.Context, clientID *uuid.UUID, from, to time.Time) ([]*Entry, error)
	ListUnreconciled(ctx context.Context, clientID *uuid.UUID) ([]*Entry, error)
	MarkReconciled(ctx context.Context, entryID uuid.UUID) error
}
