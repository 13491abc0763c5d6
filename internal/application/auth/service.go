package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/session"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionInvalid     = errors.New("session invalid or expired")
	ErrForbidden          = errors.New("permission denied")
)

// Service handles logins, session validation, and permission checks.
type Service struct {
	users      user.Repository
	sessions   session.Repository
	sessionTTL time.Duration
	logger     zerolog.Logger
}

func NewService(users user.Repository, sessions session.Repository, sessionTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		logger:     logger.With().Str("service", "auth").Logger(),
	}
}

// LoginResult carries the session token back to the transport layer.
type LoginResult struct {
	User    *user.User
	Session *session.Session
	Token   string
}

// Login verifies credentials and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = user.NormalizeUsername(username)
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive() || !u.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &session.Session{
		ID:        uuid.New(),
		TokenHash: hashToken(token),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", u.ID.String()).Msg("user login")
	return &LoginResult{User: u, Session: sess, Token: token}, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*user.User, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}
	sess, err := s.sessions.GetByTokenHash(ctx, hashToken(token))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionInvalid
	}
	if sess.Expired(time.Now().UTC()) {
		_ = s.sessions.DeleteByTokenHash(ctx, sess.TokenHash)
		return nil, ErrSessionInvalid
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive() {
		return nil, ErrSessionInvalid
	}
	_ = s.sessions.Touch(ctx, sess.ID)
	return u, nil
}

// Authorize checks that the user holds every listed permission.
func (s *Service) Authorize(u *user.User, permissions ...string) error {
	for _, p := range permissions {
		if !u.Can(p) {
			return ErrForbidden
		}
	}
	return nil
}

// Logout invalidates a session token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteByTokenHash(ctx, hashToken(token))
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
