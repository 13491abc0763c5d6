package metrics

import (
	"sync"
	"time"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/agent"
)

// Metrics holds running counters for one agent type, updated in place
// after every execution.
type Metrics struct {
	AgentType           agent.Type `json:"agentType"`
	PeriodStart         time.Time  `json:"periodStart"`
	TotalExecutions     int64      `json:"totalExecutions"`
	SuccessCount        int64      `json:"successCount"`
	FailureCount        int64      `json:"failureCount"`
	EscalationCount     int64      `json:"escalationCount"`
	AvgProcessingTimeMs float64    `json:"avgProcessingTimeMs"`
	AvgConfidence       float64    `json:"avgConfidence"`
	CostSavingsEstimate float64    `json:"costSavingsEstimate"`
	TimeSavedMinutes    float64    `json:"timeSavedMinutes"`

	confidenceSamples int64
}

// Savings is the fixed per-success estimate added to the savings counters.
// These are configured constants, not derived from real timing data.
type Savings struct {
	MinutesPerExecution float64
	CostPerExecution    float64
}

// DefaultSavings returns the stock per-success estimate: fifteen minutes
// of accountant time at a flat cost rate.
func DefaultSavings() Savings {
	return Savings{MinutesPerExecution: 15, CostPerExecution: 12.50}
}

// Aggregator keeps one Metrics record per agent type.
type Aggregator struct {
	mu      sync.RWMutex
	byType  map[agent.Type]*Metrics
	savings Savings
}

// NewAggregator creates an aggregator with the given savings estimates.
func NewAggregator(savings Savings) *Aggregator {
	return &Aggregator{
		byType:  make(map[agent.Type]*Metrics),
		savings: savings,
	}
}

func (a *Aggregator) get(t agent.Type) *Metrics {
	m, ok := a.byType[t]
	if !ok {
		m = &Metrics{AgentType: t, PeriodStart: time.Now().UTC()}
		a.byType[t] = m
	}
	return m
}

// Record updates counters for one terminal execution outcome.
// Averages are recomputed incrementally: avg = (avg*(n-1) + sample) / n,
// with n the counter relevant to the sample.
func (a *Aggregator) Record(t agent.Type, success bool, processingTime time.Duration, confidence *float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := a.get(t)
	m.TotalExecutions++
	if success {
		m.SuccessCount++
		m.TimeSavedMinutes += a.savings.MinutesPerExecution
		m.CostSavingsEstimate += a.savings.CostPerExecution
	} else {
		m.FailureCount++
	}

	n := float64(m.TotalExecutions)
	sample := float64(processingTime.Milliseconds())
	m.AvgProcessingTimeMs = (m.AvgProcessingTimeMs*(n-1) + sample) / n

	if confidence != nil {
		// Confidence averages only over executions that produced one.
		m.confidenceSamples++
		k := float64(m.confidenceSamples)
		m.AvgConfidence = (m.AvgConfidence*(k-1) + *confidence) / k
	}
}

// RecordEscalation counts an escalation. Tracked independently of the
// terminal success/failure split and may overlap with either.
func (a *Aggregator) RecordEscalation(t agent.Type) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.get(t).EscalationCount++
}

// Get returns a copy of the metrics for one agent type.
func (a *Aggregator) Get(t agent.Type) Metrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if m, ok := a.byType[t]; ok {
		return *m
	}
	return Metrics{AgentType: t, PeriodStart: time.Now().UTC()}
}

// List returns copies of all metrics records.
func (a *Aggregator) List() []Metrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Metrics, 0, len(a.byType))
	for _, m := range a.byType {
		out = append(out, *m)
	}
	return out
}
