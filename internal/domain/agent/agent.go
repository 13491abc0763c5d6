package agent

import (
	"errors"
	"sync"
	"time"
)

// Type identifies an automated-reasoning unit.
type Type string

const (
	TypeDocument       Type = "DOCUMENT"
	TypeTax            Type = "TAX"
	TypeReconciliation Type = "RECONCILIATION"
	TypeTaskAssignment Type = "TASK_ASSIGNMENT"
	TypeNotification   Type = "NOTIFICATION"
)

// ParseType parses a string to an agent Type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeDocument, TypeTax, TypeReconciliation, TypeTaskAssignment, TypeNotification:
		return Type(s), nil
	default:
		return "", ErrUnknownType
	}
}

// EscalationCondition is the trigger class of an escalation rule.
type EscalationCondition string

const (
	ConditionLowConfidence EscalationCondition = "LOW_CONFIDENCE"
	ConditionFailure       EscalationCondition = "FAILURE"
	ConditionManual        EscalationCondition = "MANUAL"
)

// DefaultConfidenceThreshold applies when no LOW_CONFIDENCE rule sets one.
const DefaultConfidenceThreshold = 70.0

var (
	ErrUnknownType = errors.New("unknown agent type")
	ErrNotFound    = errors.New("agent definition not found")
	ErrDisabled    = errors.New("agent is disabled")
)

// EscalationRule forces human review when its condition fires.
// Expression, when set, is a govaluate expression evaluated against the
// handler result (confidence, success, attempts, warnings); it extends the
// fixed condition classes for operator-defined routing.
type EscalationRule struct {
	Condition   EscalationCondition `json:"condition"`
	Threshold   *float64            `json:"threshold,omitempty"`
	Expression  string              `json:"expression,omitempty"`
	EscalateTo  string              `json:"escalateTo"`
	NotifyStaff bool                `json:"notifyStaff"`
}

// Definition is the static metadata for one agent type.
// Immutable after registration except for Enabled.
type Definition struct {
	Type               Type             `json:"type"`
	Name               string           `json:"name"`
	Capabilities       []string         `json:"capabilities"`
	Enabled            bool             `json:"enabled"`
	Timeout            time.Duration    `json:"timeoutMinutes"`
	MaxConcurrentTasks int              `json:"maxConcurrentTasks"`
	EscalationRules    []EscalationRule `json:"escalationRules"`
}

// ConfidenceThreshold returns the LOW_CONFIDENCE rule threshold, or the
// default when no rule sets one.
func (d *Definition) ConfidenceThreshold() float64 {
	for _, r := range d.EscalationRules {
		if r.Condition == ConditionLowConfidence && r.Threshold != nil {
			return *r.Threshold
		}
	}
	return DefaultConfidenceThreshold
}

// EscalateTarget returns the escalation target for a condition class.
func (d *Definition) EscalateTarget(cond EscalationCondition) string {
	for _, r := range d.EscalationRules {
		if r.Condition == cond {
			return r.EscalateTo
		}
	}
	return ""
}

// Catalog holds agent definitions. Safe for concurrent use.
type Catalog struct {
	mu   sync.RWMutex
	defs map[Type]*Definition
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[Type]*Definition)}
}

// Register adds or replaces a definition.
func (c *Catalog) Register(def *Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[def.Type] = def
}

// Get returns the definition for a type.
func (c *Catalog) Get(t Type) (*Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[t]
	if !ok {
		return nil, ErrNotFound
	}
	return def, nil
}

// SetEnabled toggles the enable flag for a type.
func (c *Catalog) SetEnabled(t Type, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	def, ok := c.defs[t]
	if !ok {
		return ErrNotFound
	}
	def.Enabled = enabled
	return nil
}

// List returns all definitions.
func (c *Catalog) List() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Definition, 0, len(c.defs))
	for _, def := range c.defs {
		out = append(out, def)
	}
	return out
}

func threshold(v float64) *float64 { return &v }

// DefaultCatalog returns the built-in definitions for the five agents.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.Register(&Definition{
		Type:               TypeDocument,
		Name:               "Document Posting Agent",
		Capabilities:       []string{"document_analysis", "journal_preparation"},
		Enabled:            true,
		Timeout:            10 * time.Minute,
		MaxConcurrentTasks: 5,
		EscalationRules: []EscalationRule{
			{Condition: ConditionLowConfidence, Threshold: threshold(70), EscalateTo: "senior_accountant", NotifyStaff: true},
			{Condition: ConditionFailure, EscalateTo: "senior_accountant", NotifyStaff: true},
		},
	})
	c.Register(&Definition{
		Type:               TypeTax,
		Name:               "Tax Aggregation Agent",
		Capabilities:       []string{"vat_summary", "wht_summary", "form_suggestion"},
		Enabled:            true,
		Timeout:            15 * time.Minute,
		MaxConcurrentTasks: 3,
		EscalationRules: []EscalationRule{
			{Condition: ConditionLowConfidence, Threshold: threshold(80), EscalateTo: "tax_reviewer", NotifyStaff: true},
			{Condition: ConditionFailure, EscalateTo: "tax_reviewer", NotifyStaff: true},
		},
	})
	c.Register(&Definition{
		Type:               TypeReconciliation,
		Name:               "Bank Reconciliation Agent",
		Capabilities:       []string{"bank_matching", "adjustment_suggestion"},
		Enabled:            true,
		Timeout:            20 * time.Minute,
		MaxConcurrentTasks: 3,
		EscalationRules: []EscalationRule{
			{Condition: ConditionLowConfidence, Threshold: threshold(70), EscalateTo: "senior_accountant", NotifyStaff: false},
			{Condition: ConditionFailure, EscalateTo: "senior_accountant", NotifyStaff: true},
		},
	})
	c.Register(&Definition{
		Type:               TypeTaskAssignment,
		Name:               "Task Assignment Agent",
		Capabilities:       []string{"workload_scoring", "assignment_suggestion"},
		Enabled:            true,
		Timeout:            5 * time.Minute,
		MaxConcurrentTasks: 1,
		EscalationRules: []EscalationRule{
			{Condition: ConditionLowConfidence, Threshold: threshold(60), EscalateTo: "practice_manager", NotifyStaff: false},
		},
	})
	c.Register(&Definition{
		Type:               TypeNotification,
		Name:               "Deadline Watch Agent",
		Capabilities:       []string{"deadline_detection", "alerting"},
		Enabled:            true,
		Timeout:            5 * time.Minute,
		MaxConcurrentTasks: 1,
		EscalationRules: []EscalationRule{
			{Condition: ConditionFailure, EscalateTo: "practice_manager", NotifyStaff: false},
		},
	})
	return c
}
