package worktask

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status represents the state of a staff work item.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReview     Status = "REVIEW"
	StatusDone       Status = "DONE"
	StatusCancelled  Status = "CANCELLED"
)

// Priority represents the business priority of a work item.
type Priority string

const (
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

// Task is one staff work item (filing, bookkeeping, review, ...).
type Task struct {
	ID         uuid.UUID  `json:"id"`
	ClientID   uuid.UUID  `json:"clientId"`
	Title      string     `json:"title"`
	Category   string     `json:"category"`
	Priority   Priority   `json:"priority"`
	Status     Status     `json:"status"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
	AssignedTo *uuid.UUID `json:"assignedTo,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// IsTerminal reports whether the task needs no further work.
func (t *Task) IsTerminal() bool {
	return t.Status == StatusDone || t.Status == StatusCancelled
}

// Unassigned reports whether the task still needs an owner.
func (t *Task) Unassigned() bool {
	return t.AssignedTo == nil && !t.IsTerminal()
}

// IsRush reports whether the task is urgent or high priority.
func (t *Task) IsRush() bool {
	return t.Priority == PriorityUrgent || t.Priority == PriorityHigh
}

// Repository provides access to staff work items.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	List(ctx context.Context) ([]*Task, error)
	ListUnassigned(ctx context.Context) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
}
