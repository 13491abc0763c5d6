package execution

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/agent"
)

// Status represents the lifecycle state of an execution.
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusEscalated  Status = "ESCALATED"
	StatusFailed     Status = "FAILED"
)

// ActionResult is the outcome recorded on an audit log entry.
type ActionResult string

const (
	ResultSuccess ActionResult = "SUCCESS"
	ResultFailure ActionResult = "FAILURE"
	ResultPending ActionResult = "PENDING"
)

var (
	ErrInvalidTransition = errors.New("invalid execution status transition")
	ErrAttemptsExhausted = errors.New("max attempts exhausted")
	ErrNotAwaitingReview = errors.New("execution is not awaiting human review")
	ErrAlreadyTerminal   = errors.New("execution already in a terminal state")
)

// Action is one append-only audit log entry.
type Action struct {
	Timestamp time.Time    `json:"timestamp"`
	Action    string       `json:"action"`
	Details   string       `json:"details"`
	Result    ActionResult `json:"result,omitempty"`
}

// Execution is one run of an agent against a specific input.
// All mutation goes through the orchestrator; the audit log is append-only.
type Execution struct {
	ID                  uuid.UUID       `json:"id"`
	AgentType           agent.Type      `json:"agentType"`
	Status              Status          `json:"status"`
	Input               json.RawMessage `json:"input"`
	Output              json.RawMessage `json:"output,omitempty"`
	Confidence          *float64        `json:"confidence,omitempty"`
	StartedAt           time.Time       `json:"startedAt"`
	TimeoutAt           time.Time       `json:"timeoutAt"`
	CompletedAt         *time.Time      `json:"completedAt,omitempty"`
	Attempts            int             `json:"attempts"`
	MaxAttempts         int             `json:"maxAttempts"`
	HumanReviewRequired bool            `json:"humanReviewRequired"`
	EscalationReason    *string         `json:"escalationReason,omitempty"`
	EscalatedTo         *string         `json:"escalatedTo,omitempty"`
	SubmittedBy         *string         `json:"submittedBy,omitempty"`
	AuditLog            []Action        `json:"auditLog"`
}

// New creates an idle execution.
func New(agentType agent.Type, input json.RawMessage, timeout time.Duration, maxAttempts int, submittedBy *string) *Execution {
	now := time.Now().UTC()
	return &Execution{
		ID:          uuid.New(),
		AgentType:   agentType,
		Status:      StatusIdle,
		Input:       input,
		StartedAt:   now,
		TimeoutAt:   now.Add(timeout),
		MaxAttempts: maxAttempts,
		SubmittedBy: submittedBy,
	}
}

// CanTransitionTo checks if a transition to the target status is valid.
// No path leads back to IDLE once left; FAILED may re-enter PROCESSING via
// retry; ESCALATED resolves to COMPLETED only through human review.
func (e *Execution) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusIdle:       {StatusProcessing, StatusEscalated},
		StatusProcessing: {StatusCompleted, StatusEscalated, StatusFailed},
		StatusFailed:     {StatusProcessing, StatusEscalated},
		StatusEscalated:  {StatusCompleted},
		StatusCompleted:  {},
	}
	allowed, ok := transitions[e.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// AppendAction appends an audit log entry.
func (e *Execution) AppendAction(action, details string, result ActionResult) {
	e.AuditLog = append(e.AuditLog, Action{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Details:   details,
		Result:    result,
	})
}

// Begin marks the execution processing and counts an attempt.
func (e *Execution) Begin() error {
	if !e.CanTransitionTo(StatusProcessing) {
		return ErrInvalidTransition
	}
	if e.Attempts >= e.MaxAttempts {
		return ErrAttemptsExhausted
	}
	e.Status = StatusProcessing
	e.Attempts++
	return nil
}

// Complete records the result and marks the execution completed.
func (e *Execution) Complete(output json.RawMessage, confidence float64) error {
	if !e.CanTransitionTo(StatusCompleted) {
		return ErrInvalidTransition
	}
	e.Status = StatusCompleted
	e.Output = output
	e.Confidence = &confidence
	now := time.Now().UTC()
	e.CompletedAt = &now
	return nil
}

// Fail marks the execution failed. The orchestrator decides between retry
// and escalation afterwards.
func (e *Execution) Fail() error {
	if !e.CanTransitionTo(StatusFailed) {
		return ErrInvalidTransition
	}
	e.Status = StatusFailed
	return nil
}

// Escalate routes the execution to human review.
func (e *Execution) Escalate(reason, target string) error {
	if !e.CanTransitionTo(StatusEscalated) {
		return ErrInvalidTransition
	}
	e.Status = StatusEscalated
	e.HumanReviewRequired = true
	e.EscalationReason = &reason
	if target != "" {
		e.EscalatedTo = &target
	}
	return nil
}

// ResolveReview completes an escalated execution after explicit human review.
func (e *Execution) ResolveReview(reviewerID string, approved bool, notes string) error {
	if e.Status != StatusEscalated || !e.HumanReviewRequired {
		return ErrNotAwaitingReview
	}
	if !e.CanTransitionTo(StatusCompleted) {
		return ErrInvalidTransition
	}
	result := ResultSuccess
	verdict := "approved"
	if !approved {
		result = ResultFailure
		verdict = "rejected"
	}
	details := "review " + verdict + " by " + reviewerID
	if notes != "" {
		details += ": " + notes
	}
	e.AppendAction("human_review", details, result)
	e.Status = StatusCompleted
	e.HumanReviewRequired = false
	now := time.Now().UTC()
	e.CompletedAt = &now
	return nil
}

// IsTerminal returns true once no further automatic processing can occur.
func (e *Execution) IsTerminal() bool {
	return e.Status == StatusCompleted ||
		(e.Status == StatusEscalated && !e.HumanReviewRequired)
}

// Filter represents filters for querying executions.
type Filter struct {
	AgentType *agent.Type
	Status    *Status
	Limit     int
}
