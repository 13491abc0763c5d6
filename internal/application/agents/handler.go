package agents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/agent"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/client"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/document"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/ledger"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/staff"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/worktask"
)

// Input is the tagged union of handler inputs: exactly one concrete type
// per agent type, checked at dispatch.
type Input interface {
	AgentType() agent.Type
}

// DocumentInput selects documents for posting preparation.
type DocumentInput struct {
	ClientID    *uuid.UUID  `json:"clientId,omitempty"`
	DocumentIDs []uuid.UUID `json:"documentIds,omitempty"`
}

func (*DocumentInput) AgentType() agent.Type { return agent.TypeDocument }

// TaxInput selects a reporting period for tax aggregation.
type TaxInput struct {
	ClientID    *uuid.UUID `json:"clientId,omitempty"`
	Period      string     `json:"period"`
	PeriodStart time.Time  `json:"periodStart"`
	PeriodEnd   time.Time  `json:"periodEnd"`
}

func (*TaxInput) AgentType() agent.Type { return agent.TypeTax }

// ReconciliationInput carries the imported bank feed to match.
type ReconciliationInput struct {
	ClientID         *uuid.UUID               `json:"clientId,omitempty"`
	BankTransactions []ledger.BankTransaction `json:"bankTransactions"`
}

func (*ReconciliationInput) AgentType() agent.Type { return agent.TypeReconciliation }

// AssignmentInput optionally narrows assignment to a pre-filtered subset.
type AssignmentInput struct {
	TaskIDs []uuid.UUID `json:"taskIds,omitempty"`
}

func (*AssignmentInput) AgentType() agent.Type { return agent.TypeTaskAssignment }

// NotificationInput pins the reference time for the deadline sweeps.
// A zero AsOf means now.
type NotificationInput struct {
	AsOf time.Time `json:"asOf,omitempty"`
}

func (*NotificationInput) AgentType() agent.Type { return agent.TypeNotification }

// Context exposes read-only collaborator data to a handler, plus a
// log-append callback into the execution audit trail.
type Context struct {
	Documents []*document.Document
	Entries   []*ledger.Entry
	Staff     []*staff.Staff
	Tasks     []*worktask.Task
	Clients   []*client.Client
	Now       time.Time
	Log       func(action, details string)
}

func (c *Context) log(action, details string) {
	if c.Log != nil {
		c.Log(action, details)
	}
}

// SuggestedAction is a follow-up the caller may apply or present.
type SuggestedAction struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Payload     any    `json:"payload,omitempty"`
}

// Output is the handler result. Validation problems come back as
// Success=false with Error set, never as a Go error; errors are reserved
// for unexpected failures and drive the retry policy.
type Output struct {
	Success    bool              `json:"success"`
	Confidence float64           `json:"confidence"`
	Result     any               `json:"result,omitempty"`
	Actions    []SuggestedAction `json:"actions,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func failure(msg string) *Output {
	return &Output{Success: false, Confidence: 0, Error: msg}
}

// Handler is the polymorphic contract implemented by the five agent
// variants.
type Handler interface {
	Execute(ctx context.Context, in Input, ec *Context) (*Output, error)
	CanHandle(in Input) bool
	RequiredPermissions() []string
}
