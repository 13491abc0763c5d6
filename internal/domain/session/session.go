package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is an authenticated login session. Only the SHA-256 hash of
// the bearer token is stored.
type Session struct {
	ID         uuid.UUID  `json:"id"`
	TokenHash  string     `json:"-"`
	UserID     uuid.UUID  `json:"userId"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Repository defines persistence for sessions.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	Touch(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context) (int, error)
}
