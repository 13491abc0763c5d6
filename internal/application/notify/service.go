package notify

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerpilot/ledgerpilot/internal/application/agents"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/agent"
	domainNotify "github.com/ledgerpilot/ledgerpilot/internal/domain/notify"
)

// retentionLimit caps the in-memory notification history.
const retentionLimit = 500

// Service creates and delivers notifications. Records live only for the
// lifetime of the process; durable storage is a collaborator concern.
type Service struct {
	hub    domainNotify.SSEHub
	logger zerolog.Logger

	mu      sync.RWMutex
	records []*domainNotify.Notification
}

// NewService creates a notify service.
func NewService(hub domainNotify.SSEHub, logger zerolog.Logger) *Service {
	return &Service{
		hub:    hub,
		logger: logger.With().Str("service", "notify").Logger(),
	}
}

// CreateFromAlert converts one deadline alert into a notification and
// delivers it.
func (s *Service) CreateFromAlert(executionID uuid.UUID, alert agents.Alert) *domainNotify.Notification {
	payload, _ := json.Marshal(alert)
	n := domainNotify.New(alert.Severity, alert.Title, alert.Body, payload)
	n.ExecutionID = &executionID
	s.deliver(n, "alert")
	return n
}

// CreateEscalation surfaces an escalated execution to staff.
func (s *Service) CreateEscalation(executionID uuid.UUID, agentType agent.Type, reason, target string) *domainNotify.Notification {
	payload, _ := json.Marshal(map[string]string{
		"executionId": executionID.String(),
		"agentType":   string(agentType),
		"reason":      reason,
	})
	n := domainNotify.New(domainNotify.SeverityHigh, "Execution needs review", reason, payload)
	n.ExecutionID = &executionID
	if target != "" {
		n.TargetStaff = &target
	}
	s.deliver(n, "escalation")
	return n
}

func (s *Service) deliver(n *domainNotify.Notification, event string) {
	s.mu.Lock()
	s.records = append(s.records, n)
	if len(s.records) > retentionLimit {
		s.records = s.records[len(s.records)-retentionLimit:]
	}
	s.mu.Unlock()

	if s.hub == nil {
		_ = n.MarkFailed()
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to serialize notification")
		_ = n.MarkFailed()
		return
	}
	s.hub.BroadcastToAll(domainNotify.NewSSEMessage(event, data))
	if err := n.MarkSent(); err != nil {
		s.logger.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("notification state error")
	}
}

// List returns the most recent notifications, newest first.
func (s *Service) List(limit int) []*domainNotify.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]*domainNotify.Notification, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out
}
