package notify

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the delivery status of a notification.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Severity mirrors alert priority for display and routing.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

var (
	ErrInvalidTransition = errors.New("invalid notification status transition")
	ErrClientNotFound    = errors.New("SSE client not found")
	ErrChannelFull       = errors.New("SSE message channel full")
)

// Notification is an alert or escalation surfaced to staff. Records live
// only for the lifetime of the process.
type Notification struct {
	ID          uuid.UUID       `json:"id"`
	ExecutionID *uuid.UUID      `json:"executionId,omitempty"`
	Severity    Severity        `json:"severity"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      Status          `json:"status"`
	TargetStaff *string         `json:"targetStaff,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	SentAt      *time.Time      `json:"sentAt,omitempty"`
}

// New creates a pending notification.
func New(severity Severity, title, body string, payload json.RawMessage) *Notification {
	return &Notification{
		ID:        uuid.New(),
		Severity:  severity,
		Title:     title,
		Body:      body,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// MarkSent marks the notification as sent.
func (n *Notification) MarkSent() error {
	if n.Status != StatusPending {
		return ErrInvalidTransition
	}
	n.Status = StatusSent
	now := time.Now().UTC()
	n.SentAt = &now
	return nil
}

// MarkFailed marks the notification as failed.
func (n *Notification) MarkFailed() error {
	if n.Status != StatusPending {
		return ErrInvalidTransition
	}
	n.Status = StatusFailed
	return nil
}

// SSEHub is the delivery fan-out consumed by the notify service.
type SSEHub interface {
	BroadcastToAll(message *SSEMessage)
}

// SSEClient represents an active SSE connection.
type SSEClient struct {
	ClientID    string
	StaffRole   *string
	ConnectedAt time.Time
	MessageChan chan *SSEMessage
}

// NewSSEClient creates a new SSE client.
func NewSSEClient(clientID string, staffRole *string) *SSEClient {
	return &SSEClient{
		ClientID:    clientID,
		StaffRole:   staffRole,
		ConnectedAt: time.Now().UTC(),
		MessageChan: make(chan *SSEMessage, 100),
	}
}

// Close closes the client's message channel.
func (c *SSEClient) Close() {
	close(c.MessageChan)
}

// SSEMessage represents a message to be sent via SSE.
type SSEMessage struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewSSEMessage creates a new SSE message.
func NewSSEMessage(event string, data json.RawMessage) *SSEMessage {
	return &SSEMessage{
		ID:        uuid.New().String(),
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
