package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpilot/ledgerpilot/internal/application/agents"
	appNotify "github.com/ledgerpilot/ledgerpilot/internal/application/notify"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/agent"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/execution"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/metrics"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/queue"
	"github.com/ledgerpilot/ledgerpilot/internal/infrastructure/memory"
)

// stubHandler replays a scripted sequence of results, one per attempt.
type stubHandler struct {
	mu      sync.Mutex
	calls   int
	outputs []*agents.Output
	errs    []error
	refuse  bool
}

func (h *stubHandler) Execute(ctx context.Context, in agents.Input, ec *agents.Context) (*agents.Output, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.calls
	h.calls++
	if i < len(h.errs) && h.errs[i] != nil {
		return nil, h.errs[i]
	}
	if i < len(h.outputs) {
		return h.outputs[i], nil
	}
	return &agents.Output{Success: true, Confidence: 100}, nil
}

func (h *stubHandler) CanHandle(in agents.Input) bool {
	if h.refuse {
		return false
	}
	_, ok := in.(*agents.TaxInput)
	return ok
}

func (h *stubHandler) RequiredPermissions() []string {
	return []string{"documents:read", "tax:read"}
}

func (h *stubHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func taxCatalog(rules ...agent.EscalationRule) *agent.Catalog {
	c := agent.NewCatalog()
	c.Register(&agent.Definition{
		Type:            agent.TypeTax,
		Name:            "Tax Aggregation Agent",
		Enabled:         true,
		Timeout:         time.Minute,
		EscalationRules: rules,
	})
	return c
}

type testEnv struct {
	orch      *Orchestrator
	handler   *stubHandler
	notifySvc *appNotify.Service
	catalog   *agent.Catalog
}

func newTestEnv(t *testing.T, catalog *agent.Catalog, handler *stubHandler, cfg Config) *testEnv {
	t.Helper()
	store := memory.NewStore()
	notifySvc := appNotify.NewService(nil, zerolog.Nop())
	orch := New(catalog, metrics.NewAggregator(metrics.DefaultSavings()), Store{
		Documents: store.Documents(),
		Ledger:    store.Ledger(),
		Staff:     store.Staff(),
		Clients:   store.Clients(),
		Tasks:     store.Tasks(),
	}, notifySvc, nil, cfg, zerolog.Nop())
	orch.RegisterHandler(agent.TypeTax, handler)
	return &testEnv{orch: orch, handler: handler, notifySvc: notifySvc, catalog: catalog}
}

func submitAndWait(t *testing.T, env *testEnv) uuid.UUID {
	t.Helper()
	id, err := env.orch.Submit(context.Background(), &agents.TaxInput{Period: "2026-06"}, queue.PriorityMedium, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.orch.WaitIdle(ctx))
	return id
}

func TestOrchestrator_SubmitCompletes(t *testing.T) {
	env := newTestEnv(t, taxCatalog(), &stubHandler{
		outputs: []*agents.Output{{Success: true, Confidence: 91.5}},
	}, DefaultConfig())

	id := submitAndWait(t, env)

	exec, err := env.orch.GetExecution(id)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, exec.Status)
	require.NotNil(t, exec.Confidence)
	assert.Equal(t, 91.5, *exec.Confidence)
	assert.NotEmpty(t, exec.Output)
	assert.Equal(t, 1, exec.Attempts)
	require.NotNil(t, exec.CompletedAt)

	actions := make([]string, 0, len(exec.AuditLog))
	for _, a := range exec.AuditLog {
		actions = append(actions, a.Action)
	}
	assert.Equal(t, []string{"submitted", "start", "complete"}, actions)

	m := env.orch.Metrics(agent.TypeTax)
	assert.Equal(t, int64(1), m.TotalExecutions)
	assert.Equal(t, int64(1), m.SuccessCount)
	assert.Equal(t, int64(0), m.EscalationCount)
	assert.Equal(t, 0, env.orch.QueueDepth())
	assert.Empty(t, env.notifySvc.List(0))
}

func TestOrchestrator_LowConfidenceEscalates(t *testing.T) {
	th := 80.0
	env := newTestEnv(t, taxCatalog(agent.EscalationRule{
		Condition:   agent.ConditionLowConfidence,
		Threshold:   &th,
		EscalateTo:  "tax_reviewer",
		NotifyStaff: true,
	}), &stubHandler{
		outputs: []*agents.Output{{Success: true, Confidence: 55}},
	}, DefaultConfig())

	id := submitAndWait(t, env)

	exec, err := env.orch.GetExecution(id)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusEscalated, exec.Status)
	assert.True(t, exec.HumanReviewRequired)
	require.NotNil(t, exec.EscalatedTo)
	assert.Equal(t, "tax_reviewer", *exec.EscalatedTo)
	require.NotNil(t, exec.EscalationReason)
	assert.Contains(t, *exec.EscalationReason, "below threshold 80.0")
	// A single attempt; low confidence never retries.
	assert.Equal(t, 1, env.handler.callCount())

	var sawEscalate bool
	for _, a := range exec.AuditLog {
		if a.Action == "escalate" {
			sawEscalate = true
		}
	}
	assert.True(t, sawEscalate)

	m := env.orch.Metrics(agent.TypeTax)
	assert.Equal(t, int64(1), m.SuccessCount)
	assert.Equal(t, int64(1), m.EscalationCount)

	notes := env.notifySvc.List(0)
	require.Len(t, notes, 1)
	assert.Equal(t, "Execution needs review", notes[0].Title)
}

func TestOrchestrator_ExpressionRuleEscalates(t *testing.T) {
	env := newTestEnv(t, taxCatalog(agent.EscalationRule{
		Condition:  agent.ConditionManual,
		Expression: "warnings > 2",
		EscalateTo: "practice_manager",
	}), &stubHandler{
		outputs: []*agents.Output{{
			Success:    true,
			Confidence: 95,
			Warnings:   []string{"a", "b", "c"},
		}},
	}, DefaultConfig())

	id := submitAndWait(t, env)

	exec, err := env.orch.GetExecution(id)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusEscalated, exec.Status)
	require.NotNil(t, exec.EscalationReason)
	assert.Contains(t, *exec.EscalationReason, "warnings > 2")
}

func TestOrchestrator_RetryThenSuccess(t *testing.T) {
	env := newTestEnv(t, taxCatalog(), &stubHandler{
		errs:    []error{errors.New("transient store error")},
		outputs: []*agents.Output{nil, {Success: true, Confidence: 88}},
	}, DefaultConfig())

	id := submitAndWait(t, env)

	assert.Equal(t, 2, env.handler.callCount())
	exec, err := env.orch.GetExecution(id)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, exec.Status)
	assert.Equal(t, 2, exec.Attempts)

	var sawError bool
	for _, a := range exec.AuditLog {
		if a.Action == "error" {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestOrchestrator_ExhaustedRetriesEscalate(t *testing.T) {
	boom := errors.New("analysis service down")
	env := newTestEnv(t, taxCatalog(agent.EscalationRule{
		Condition:   agent.ConditionFailure,
		EscalateTo:  "senior_accountant",
		NotifyStaff: true,
	}), &stubHandler{
		errs: []error{boom, boom},
	}, Config{MaxAttempts: 2, RetentionLimit: 10})

	id := submitAndWait(t, env)

	assert.Equal(t, 2, env.handler.callCount())
	exec, err := env.orch.GetExecution(id)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusEscalated, exec.Status)
	assert.True(t, exec.HumanReviewRequired)
	require.NotNil(t, exec.EscalationReason)
	assert.Contains(t, *exec.EscalationReason, "Failed after 2 attempts")
	require.NotNil(t, exec.EscalatedTo)
	assert.Equal(t, "senior_accountant", *exec.EscalatedTo)

	m := env.orch.Metrics(agent.TypeTax)
	assert.Equal(t, int64(1), m.FailureCount)
	assert.Equal(t, int64(1), m.EscalationCount)
	require.Len(t, env.notifySvc.List(0), 1)
}

func TestOrchestrator_DelayedRetry(t *testing.T) {
	env := newTestEnv(t, taxCatalog(), &stubHandler{
		errs:    []error{errors.New("busy")},
		outputs: []*agents.Output{nil, {Success: true, Confidence: 100}},
	}, Config{MaxAttempts: 3, RetryDelay: 10 * time.Millisecond, RetentionLimit: 10})

	id, err := env.orch.Submit(context.Background(), &agents.TaxInput{}, queue.PriorityHigh, nil)
	require.NoError(t, err)

	// WaitIdle can observe the gap before the delayed retry is enqueued,
	// so poll the execution itself.
	require.Eventually(t, func() bool {
		exec, err := env.orch.GetExecution(id)
		return err == nil && exec.Status == execution.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, env.handler.callCount())
}

func TestOrchestrator_SubmitValidation(t *testing.T) {
	t.Run("unknown agent type", func(t *testing.T) {
		env := newTestEnv(t, taxCatalog(), &stubHandler{}, DefaultConfig())
		_, err := env.orch.Submit(context.Background(), &agents.NotificationInput{}, queue.PriorityMedium, nil)
		assert.ErrorIs(t, err, ErrAgentUnavailable)
	})

	t.Run("disabled agent", func(t *testing.T) {
		env := newTestEnv(t, taxCatalog(), &stubHandler{}, DefaultConfig())
		require.NoError(t, env.orch.SetAgentEnabled(agent.TypeTax, false))
		_, err := env.orch.Submit(context.Background(), &agents.TaxInput{}, queue.PriorityMedium, nil)
		assert.ErrorIs(t, err, ErrAgentUnavailable)
	})

	t.Run("no handler registered", func(t *testing.T) {
		store := memory.NewStore()
		orch := New(taxCatalog(), metrics.NewAggregator(metrics.DefaultSavings()), Store{
			Documents: store.Documents(),
			Ledger:    store.Ledger(),
			Staff:     store.Staff(),
			Clients:   store.Clients(),
			Tasks:     store.Tasks(),
		}, nil, nil, DefaultConfig(), zerolog.Nop())
		_, err := orch.Submit(context.Background(), &agents.TaxInput{}, queue.PriorityMedium, nil)
		assert.ErrorIs(t, err, ErrNoHandlerRegistered)
	})

	t.Run("handler rejects input", func(t *testing.T) {
		env := newTestEnv(t, taxCatalog(), &stubHandler{refuse: true}, DefaultConfig())
		_, err := env.orch.Submit(context.Background(), &agents.TaxInput{}, queue.PriorityMedium, nil)
		assert.ErrorIs(t, err, ErrInputMismatch)
	})

	t.Run("nil input", func(t *testing.T) {
		env := newTestEnv(t, taxCatalog(), &stubHandler{}, DefaultConfig())
		_, err := env.orch.Submit(context.Background(), nil, queue.PriorityMedium, nil)
		assert.ErrorIs(t, err, ErrInputMismatch)
	})
}

func TestOrchestrator_ListExecutions(t *testing.T) {
	th := 80.0
	env := newTestEnv(t, taxCatalog(agent.EscalationRule{
		Condition:  agent.ConditionLowConfidence,
		Threshold:  &th,
		EscalateTo: "tax_reviewer",
	}), &stubHandler{
		outputs: []*agents.Output{
			{Success: true, Confidence: 95},
			{Success: true, Confidence: 40},
			{Success: true, Confidence: 90},
		},
	}, DefaultConfig())

	for i := 0; i < 3; i++ {
		submitAndWait(t, env)
	}

	all := env.orch.ListExecutions(execution.Filter{})
	require.Len(t, all, 3)

	escalated := execution.StatusEscalated
	flagged := env.orch.ListExecutions(execution.Filter{Status: &escalated})
	require.Len(t, flagged, 1)
	require.NotNil(t, flagged[0].Confidence)
	assert.Equal(t, 40.0, *flagged[0].Confidence)

	taxType := agent.TypeTax
	limited := env.orch.ListExecutions(execution.Filter{AgentType: &taxType, Limit: 2})
	assert.Len(t, limited, 2)

	// Returned copies must not alias retained state, audit log included.
	all[0].Status = execution.StatusFailed
	require.NotEmpty(t, all[0].AuditLog)
	all[0].AuditLog[0].Action = "tampered"
	fresh, err := env.orch.GetExecution(all[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, execution.StatusFailed, fresh.Status)
	assert.NotEqual(t, "tampered", fresh.AuditLog[0].Action)
}

func TestOrchestrator_HumanReview(t *testing.T) {
	th := 80.0
	env := newTestEnv(t, taxCatalog(agent.EscalationRule{
		Condition:   agent.ConditionLowConfidence,
		Threshold:   &th,
		EscalateTo:  "tax_reviewer",
		NotifyStaff: true,
	}), &stubHandler{
		outputs: []*agents.Output{{Success: true, Confidence: 50}},
	}, DefaultConfig())

	id := submitAndWait(t, env)

	t.Run("review completes the execution", func(t *testing.T) {
		require.NoError(t, env.orch.CompleteHumanReview(id, "anan", true, "figures verified"))
		exec, err := env.orch.GetExecution(id)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusCompleted, exec.Status)
		assert.False(t, exec.HumanReviewRequired)
	})

	t.Run("second review is rejected", func(t *testing.T) {
		err := env.orch.CompleteHumanReview(id, "anan", true, "")
		assert.ErrorIs(t, err, execution.ErrNotAwaitingReview)
	})

	t.Run("unknown execution", func(t *testing.T) {
		err := env.orch.CompleteHumanReview(uuid.New(), "anan", true, "")
		assert.ErrorIs(t, err, ErrExecutionNotFound)
		err = env.orch.EscalateToHuman(uuid.New(), "anan", "manual check")
		assert.ErrorIs(t, err, ErrExecutionNotFound)
	})
}

func TestOrchestrator_EscalateToHuman(t *testing.T) {
	t.Run("completed executions cannot re-enter review", func(t *testing.T) {
		env := newTestEnv(t, taxCatalog(), &stubHandler{
			outputs: []*agents.Output{{Success: true, Confidence: 99}},
		}, DefaultConfig())

		id := submitAndWait(t, env)
		before, err := env.orch.GetExecution(id)
		require.NoError(t, err)

		err = env.orch.EscalateToHuman(id, "anan", "spot check")
		assert.ErrorIs(t, err, execution.ErrInvalidTransition)

		// A refused escalation must leave no trace in the audit log.
		after, err := env.orch.GetExecution(id)
		require.NoError(t, err)
		assert.Equal(t, execution.StatusCompleted, after.Status)
		assert.Len(t, after.AuditLog, len(before.AuditLog))
		for _, a := range after.AuditLog {
			assert.NotEqual(t, "escalate", a.Action)
		}
		assert.Empty(t, env.notifySvc.List(0))
	})

}

func TestOrchestrator_RetentionEvictsTerminalOnly(t *testing.T) {
	env := newTestEnv(t, taxCatalog(), &stubHandler{}, Config{MaxAttempts: 1, RetentionLimit: 2})

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		ids = append(ids, submitAndWait(t, env))
	}

	assert.Len(t, env.orch.ListExecutions(execution.Filter{}), 2)
	_, err := env.orch.GetExecution(ids[0])
	assert.ErrorIs(t, err, ErrExecutionNotFound)
	_, err = env.orch.GetExecution(ids[3])
	assert.NoError(t, err)
}

func TestOrchestrator_RequiredPermissions(t *testing.T) {
	env := newTestEnv(t, taxCatalog(), &stubHandler{}, DefaultConfig())

	perms, err := env.orch.RequiredPermissions(agent.TypeTax)
	require.NoError(t, err)
	assert.Equal(t, []string{"documents:read", "tax:read"}, perms)

	_, err = env.orch.RequiredPermissions(agent.TypeDocument)
	assert.ErrorIs(t, err, ErrNoHandlerRegistered)
}
