package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/agent"
)

func f(v float64) *float64 { return &v }

func TestAggregator_Record(t *testing.T) {
	a := NewAggregator(Savings{MinutesPerExecution: 15, CostPerExecution: 12.50})

	a.Record(agent.TypeTax, true, 200*time.Millisecond, f(90))
	a.Record(agent.TypeTax, true, 400*time.Millisecond, f(70))
	a.Record(agent.TypeTax, false, 600*time.Millisecond, nil)

	m := a.Get(agent.TypeTax)
	assert.Equal(t, int64(3), m.TotalExecutions)
	assert.Equal(t, int64(2), m.SuccessCount)
	assert.Equal(t, int64(1), m.FailureCount)
	assert.InDelta(t, 400.0, m.AvgProcessingTimeMs, 0.001)
	// Confidence averages only over the two runs that produced one.
	assert.InDelta(t, 80.0, m.AvgConfidence, 0.001)
	assert.InDelta(t, 30.0, m.TimeSavedMinutes, 0.001)
	assert.InDelta(t, 25.0, m.CostSavingsEstimate, 0.001)
}

func TestAggregator_EscalationIndependent(t *testing.T) {
	a := NewAggregator(Savings{})

	// A low-confidence run completes its handler successfully and is then
	// escalated; both counters move.
	a.Record(agent.TypeDocument, true, time.Millisecond, f(55))
	a.RecordEscalation(agent.TypeDocument)

	m := a.Get(agent.TypeDocument)
	assert.Equal(t, int64(1), m.TotalExecutions)
	assert.Equal(t, int64(1), m.SuccessCount)
	assert.Equal(t, int64(1), m.EscalationCount)
	assert.Equal(t, m.TotalExecutions, m.SuccessCount+m.FailureCount)
}

func TestAggregator_GetUnknownType(t *testing.T) {
	a := NewAggregator(Savings{})
	m := a.Get(agent.TypeReconciliation)
	assert.Equal(t, agent.TypeReconciliation, m.AgentType)
	assert.Zero(t, m.TotalExecutions)
}

func TestAggregator_List(t *testing.T) {
	a := NewAggregator(Savings{})
	a.Record(agent.TypeTax, true, time.Millisecond, nil)
	a.Record(agent.TypeDocument, false, time.Millisecond, nil)

	list := a.List()
	assert.Len(t, list, 2)

	// Returned records are copies; mutating them must not leak back.
	list[0].TotalExecutions = 999
	assert.NotEqual(t, int64(999), a.Get(list[0].AgentType).TotalExecutions)
}

func TestDefaultSavings(t *testing.T) {
	s := DefaultSavings()
	assert.Equal(t, 15.0, s.MinutesPerExecution)
	assert.Equal(t, 12.50, s.CostPerExecution)
}
