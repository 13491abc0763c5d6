package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Role represents a user role.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleAccountant Role = "ACCOUNTANT"
	RoleReviewer   Role = "REVIEWER"
)

// Status represents user status.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDisabled Status = "DISABLED"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Permissions granted per role. The keys match the strings handlers return
// from RequiredPermissions.
var rolePermissions = map[Role][]string{
	RoleAdmin: {
		"documents:read", "documents:write", "ledger:read", "ledger:write",
		"staff:read", "tasks:read", "tasks:write", "clients:read",
		"agents:submit", "agents:manage", "executions:review",
	},
	RoleAccountant: {
		"documents:read", "documents:write", "ledger:read", "ledger:write",
		"staff:read", "tasks:read", "tasks:write", "clients:read",
		"agents:submit",
	},
	RoleReviewer: {
		"documents:read", "ledger:read", "staff:read", "tasks:read",
		"clients:read", "executions:review",
	},
}

// User represents a system user.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// Can reports whether the user's role grants the permission.
func (u *User) Can(permission string) bool {
	for _, p := range rolePermissions[u.Role] {
		if p == permission {
			return true
		}
	}
	return false
}

// NormalizeUsername lowercases and trims a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword verifies a password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// New creates an active user with a hashed password.
func New(username, password string, role Role) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           uuid.New(),
		Username:     NormalizeUsername(username),
		PasswordHash: hash,
		Role:         role,
		Status:       StatusActive,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Repository provides access to user records.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) error
}
