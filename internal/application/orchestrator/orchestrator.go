package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerpilot/ledgerpilot/internal/application/agents"
	appNotify "github.com/ledgerpilot/ledgerpilot/internal/application/notify"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/agent"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/client"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/document"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/execution"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/ledger"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/metrics"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/queue"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/staff"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/worktask"
)

var (
	ErrAgentUnavailable    = errors.New("agent unavailable")
	ErrNoHandlerRegistered = errors.New("no handler registered for agent type")
	ErrExecutionNotFound   = errors.New("execution not found")
	ErrInputMismatch       = errors.New("input does not match agent type")
)

// Config tunes the orchestrator policies.
type Config struct {
	// MaxAttempts bounds handler retries per execution.
	MaxAttempts int
	// RetryDelay is the pause before a failed item re-enters the queue.
	// Zero retries immediately.
	RetryDelay time.Duration
	// RetentionLimit caps retained executions; oldest terminal ones are
	// evicted past the cap.
	RetentionLimit int
}

// DefaultConfig returns the documented policy defaults.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, RetryDelay: 0, RetentionLimit: 1000}
}

// Store groups the document-store collaborator repositories the
// orchestrator reads handler context from.
type Store struct {
	Documents document.Repository
	Ledger    ledger.Repository
	Staff     staff.Repository
	Clients   client.Repository
	Tasks     worktask.Repository
}

// Orchestrator coordinates agent executions: it accepts submissions,
// drains the queue, dispatches handlers, and applies the retry and
// escalation policies. Construct one per process and pass it by
// reference; there is no global instance.
type Orchestrator struct {
	catalog    *agent.Catalog
	registry   map[agent.Type]agents.Handler
	queue      *queue.Queue
	aggregator *metrics.Aggregator
	store      Store
	notifySvc  *appNotify.Service
	telemetry  *Telemetry
	cfg        Config
	logger     zerolog.Logger

	mu         sync.Mutex
	executions map[uuid.UUID]*execution.Execution
	inputs     map[uuid.UUID]agents.Input
	order      []uuid.UUID
	draining   bool
}

// New creates an orchestrator. telemetry may be nil.
func New(
	catalog *agent.Catalog,
	aggregator *metrics.Aggregator,
	store Store,
	notifySvc *appNotify.Service,
	telemetry *Telemetry,
	cfg Config,
	logger zerolog.Logger,
) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.RetentionLimit <= 0 {
		cfg.RetentionLimit = DefaultConfig().RetentionLimit
	}
	return &Orchestrator{
		catalog:    catalog,
		registry:   make(map[agent.Type]agents.Handler),
		queue:      queue.New(),
		aggregator: aggregator,
		store:      store,
		notifySvc:  notifySvc,
		telemetry:  telemetry,
		cfg:        cfg,
		logger:     logger.With().Str("service", "orchestrator").Logger(),
		executions: make(map[uuid.UUID]*execution.Execution),
		inputs:     make(map[uuid.UUID]agents.Input),
	}
}

// RegisterHandler binds a handler to an agent type.
func (o *Orchestrator) RegisterHandler(t agent.Type, h agents.Handler) {
	o.registry[t] = h
}

// RequiredPermissions returns the permission strings for an agent type,
// for the caller's authorization check.
func (o *Orchestrator) RequiredPermissions(t agent.Type) ([]string, error) {
	h, ok := o.registry[t]
	if !ok {
		return nil, ErrNoHandlerRegistered
	}
	return h.RequiredPermissions(), nil
}

// Submit accepts a unit of work and returns the execution id immediately;
// it never blocks on processing.
func (o *Orchestrator) Submit(ctx context.Context, in agents.Input, priority queue.Priority, submittedBy *string) (uuid.UUID, error) {
	if in == nil {
		return uuid.Nil, ErrInputMismatch
	}
	def, err := o.catalog.Get(in.AgentType())
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrAgentUnavailable, in.AgentType())
	}
	if !def.Enabled {
		return uuid.Nil, fmt.Errorf("%w: %s is disabled", ErrAgentUnavailable, def.Type)
	}
	handler, ok := o.registry[def.Type]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNoHandlerRegistered, def.Type)
	}
	if !handler.CanHandle(in) {
		return uuid.Nil, fmt.Errorf("%w: %T for %s", ErrInputMismatch, in, def.Type)
	}

	snapshot, err := json.Marshal(in)
	if err != nil {
		return uuid.Nil, fmt.Errorf("serialize input: %w", err)
	}

	exec := execution.New(def.Type, snapshot, def.Timeout, o.cfg.MaxAttempts, submittedBy)
	exec.AppendAction("submitted", fmt.Sprintf("queued with priority %s", priority), execution.ResultPending)

	item := queue.NewItem(exec.ID, priority, o.cfg.MaxAttempts-1)

	o.mu.Lock()
	o.executions[exec.ID] = exec
	o.inputs[exec.ID] = in
	o.order = append(o.order, exec.ID)
	o.evictLocked()
	o.mu.Unlock()

	o.queue.Enqueue(item)
	o.telemetry.setQueueDepth(o.queue.Len())
	o.logger.Info().
		Str("execution_id", exec.ID.String()).
		Str("agent_type", string(def.Type)).
		Str("priority", string(priority)).
		Msg("task submitted")

	o.maybeDrain()
	return exec.ID, nil
}

// evictLocked drops the oldest terminal executions past the retention cap.
func (o *Orchestrator) evictLocked() {
	for len(o.order) > o.cfg.RetentionLimit {
		evicted := false
		for i, id := range o.order {
			e := o.executions[id]
			if e != nil && !e.IsTerminal() {
				continue
			}
			delete(o.executions, id)
			delete(o.inputs, id)
			o.order = append(o.order[:i], o.order[i+1:]...)
			evicted = true
			break
		}
		if !evicted {
			return
		}
	}
}

// maybeDrain starts the single-consumer drain loop if it is not running.
func (o *Orchestrator) maybeDrain() {
	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return
	}
	o.draining = true
	o.mu.Unlock()
	go o.drain()
}

// drain processes queue items one at a time until the queue is empty.
// One item's failure never halts the loop.
func (o *Orchestrator) drain() {
	for {
		item := o.queue.Dequeue()
		if item == nil {
			o.mu.Lock()
			if o.queue.Pending() == 0 {
				o.draining = false
				o.mu.Unlock()
				o.telemetry.setQueueDepth(o.queue.Len())
				return
			}
			o.mu.Unlock()
			continue
		}
		o.processItem(context.Background(), item)
		o.queue.Complete(item.ID)
		o.telemetry.setQueueDepth(o.queue.Len())
	}
}

func (o *Orchestrator) processItem(ctx context.Context, item *queue.Item) {
	o.mu.Lock()
	exec := o.executions[item.ExecutionID]
	in := o.inputs[item.ExecutionID]
	o.mu.Unlock()
	if exec == nil || in == nil {
		o.logger.Warn().Str("execution_id", item.ExecutionID.String()).Msg("queue item without execution; dropping")
		return
	}

	def, err := o.catalog.Get(exec.AgentType)
	if err != nil {
		o.escalate(exec, "agent definition missing", "", false)
		return
	}
	handler, ok := o.registry[exec.AgentType]
	if !ok {
		o.escalate(exec, ErrNoHandlerRegistered.Error(), def.EscalateTarget(agent.ConditionFailure), true)
		return
	}

	o.mu.Lock()
	if err := exec.Begin(); err != nil {
		// Escalated or completed out of band while queued.
		o.mu.Unlock()
		o.logger.Info().Str("execution_id", exec.ID.String()).Str("status", string(exec.Status)).Msg("skipping queued item in non-runnable state")
		return
	}
	exec.TimeoutAt = time.Now().UTC().Add(def.Timeout)
	exec.AppendAction("start", fmt.Sprintf("attempt %d/%d", exec.Attempts, exec.MaxAttempts), execution.ResultPending)
	o.mu.Unlock()

	ectx, err := o.loadContext(ctx, exec, in)
	if err != nil {
		o.handleFailure(exec, def, item, time.Duration(0), fmt.Errorf("load context: %w", err))
		return
	}

	runCtx, cancel := context.WithDeadline(ctx, exec.TimeoutAt)
	start := time.Now()
	out, err := handler.Execute(runCtx, in, ectx)
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		o.handleFailure(exec, def, item, elapsed, err)
		return
	}
	o.handleResult(exec, def, out, elapsed)
}

// loadContext reads the collaborator data the agent type needs.
func (o *Orchestrator) loadContext(ctx context.Context, exec *execution.Execution, in agents.Input) (*agents.Context, error) {
	ectx := &agents.Context{
		Now: time.Now().UTC(),
		Log: func(action, details string) {
			o.mu.Lock()
			exec.AppendAction(action, details, execution.ResultSuccess)
			o.mu.Unlock()
		},
	}

	switch input := in.(type) {
	case *agents.DocumentInput:
		if len(input.DocumentIDs) > 0 {
			for _, id := range input.DocumentIDs {
				d, err := o.store.Documents.GetByID(ctx, id)
				if err != nil {
					return nil, err
				}
				if d != nil {
					ectx.Documents = append(ectx.Documents, d)
				}
			}
		} else {
			docs, err := o.store.Documents.ListByStatus(ctx, document.StatusApproved)
			if err != nil {
				return nil, err
			}
			ectx.Documents = docs
		}
	case *agents.TaxInput:
		docs, err := o.store.Documents.ListForPeriod(ctx, input.ClientID, input.PeriodStart, input.PeriodEnd)
		if err != nil {
			return nil, err
		}
		ectx.Documents = docs
	case *agents.ReconciliationInput:
		entries, err := o.store.Ledger.ListUnreconciled(ctx, input.ClientID)
		if err != nil {
			return nil, err
		}
		ectx.Entries = entries
		docs, err := o.store.Documents.List(ctx, input.ClientID)
		if err != nil {
			return nil, err
		}
		ectx.Documents = docs
	case *agents.AssignmentInput:
		roster, err := o.store.Staff.List(ctx)
		if err != nil {
			return nil, err
		}
		ectx.Staff = roster
		tasks, err := o.store.Tasks.List(ctx)
		if err != nil {
			return nil, err
		}
		ectx.Tasks = tasks
	case *agents.NotificationInput:
		clients, err := o.store.Clients.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		ectx.Clients = clients
		tasks, err := o.store.Tasks.List(ctx)
		if err != nil {
			return nil, err
		}
		ectx.Tasks = tasks
		docs, err := o.store.Documents.ListByStatus(ctx, document.StatusPendingReview)
		if err != nil {
			return nil, err
		}
		ectx.Documents = docs
	default:
		return nil, fmt.Errorf("%w: %T", ErrInputMismatch, in)
	}
	return ectx, nil
}

// handleResult applies the escalation policy to a handler result and
// records metrics.
func (o *Orchestrator) handleResult(exec *execution.Execution, def *agent.Definition, out *agents.Output, elapsed time.Duration) {
	payload, err := json.Marshal(out)
	if err != nil {
		o.logger.Warn().Err(err).Str("execution_id", exec.ID.String()).Msg("failed to serialize handler output")
		payload = nil
	}

	reason, target, notifyStaff := o.escalationFor(def, exec, out)

	o.mu.Lock()
	exec.Output = payload
	conf := out.Confidence
	exec.Confidence = &conf
	o.mu.Unlock()

	if reason != "" {
		o.escalate(exec, reason, target, notifyStaff)
		o.aggregator.Record(def.Type, out.Success, elapsed, &conf)
		o.telemetry.observe(def.Type, "escalated", elapsed)
		return
	}

	o.mu.Lock()
	exec.AppendAction("complete", fmt.Sprintf("confidence %.1f", out.Confidence), execution.ResultSuccess)
	if err := exec.Complete(payload, out.Confidence); err != nil {
		o.logger.Warn().Err(err).Str("execution_id", exec.ID.String()).Msg("completion transition failed")
	}
	o.mu.Unlock()

	o.aggregator.Record(def.Type, true, elapsed, &conf)
	o.telemetry.observe(def.Type, "completed", elapsed)
	o.publishAlerts(exec, out)

	o.logger.Info().
		Str("execution_id", exec.ID.String()).
		Str("agent_type", string(def.Type)).
		Float64("confidence", out.Confidence).
		Dur("elapsed", elapsed).
		Msg("execution completed")
}

// escalationFor decides whether the result must go to human review.
func (o *Orchestrator) escalationFor(def *agent.Definition, exec *execution.Execution, out *agents.Output) (reason, target string, notifyStaff bool) {
	threshold := def.ConfidenceThreshold()
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "handler reported failure"
		}
		return msg, def.EscalateTarget(agent.ConditionFailure), true
	}
	if out.Confidence < threshold {
		for _, r := range def.EscalationRules {
			if r.Condition == agent.ConditionLowConfidence {
				return fmt.Sprintf("confidence %.1f below threshold %.1f", out.Confidence, threshold), r.EscalateTo, r.NotifyStaff
			}
		}
		return fmt.Sprintf("confidence %.1f below threshold %.1f", out.Confidence, threshold), "", false
	}

	params := map[string]interface{}{
		"confidence": out.Confidence,
		"success":    out.Success,
		"attempts":   exec.Attempts,
		"warnings":   len(out.Warnings),
	}
	for _, r := range def.EscalationRules {
		if r.Expression == "" {
			continue
		}
		hit, err := EvaluateRuleExpression(r.Expression, params)
		if err != nil {
			o.logger.Warn().Err(err).Str("expression", r.Expression).Msg("escalation expression failed; skipping")
			continue
		}
		if hit {
			return "escalation rule matched: " + r.Expression, r.EscalateTo, r.NotifyStaff
		}
	}
	return "", "", false
}

// publishAlerts converts deadline-handler alerts 1:1 into notifications.
func (o *Orchestrator) publishAlerts(exec *execution.Execution, out *agents.Output) {
	if o.notifySvc == nil {
		return
	}
	result, ok := out.Result.(*agents.DeadlineResult)
	if !ok {
		return
	}
	for _, alert := range result.Alerts {
		o.notifySvc.CreateFromAlert(exec.ID, alert)
	}
}

// handleFailure drives the bounded retry policy; exhaustion converts to
// escalation, never a lost execution.
func (o *Orchestrator) handleFailure(exec *execution.Execution, def *agent.Definition, item *queue.Item, elapsed time.Duration, cause error) {
	o.mu.Lock()
	exec.AppendAction("error", cause.Error(), execution.ResultFailure)
	if err := exec.Fail(); err != nil {
		o.logger.Warn().Err(err).Str("execution_id", exec.ID.String()).Msg("failure transition failed")
	}
	o.mu.Unlock()

	if item.RetryCount < item.MaxRetries {
		item.RetryCount++
		o.logger.Warn().Err(cause).
			Str("execution_id", exec.ID.String()).
			Int("retry", item.RetryCount).
			Msg("handler failed; re-enqueueing")
		retry := queue.NewItem(exec.ID, item.Priority, item.MaxRetries)
		retry.RetryCount = item.RetryCount
		if o.cfg.RetryDelay > 0 {
			time.AfterFunc(o.cfg.RetryDelay, func() {
				o.queue.Enqueue(retry)
				o.maybeDrain()
			})
		} else {
			o.queue.Enqueue(retry)
		}
		return
	}

	reason := fmt.Sprintf("Failed after %d attempts: %v", exec.Attempts, cause)
	o.escalate(exec, reason, def.EscalateTarget(agent.ConditionFailure), true)
	o.aggregator.Record(def.Type, false, elapsed, nil)
	o.telemetry.observe(def.Type, "failed", elapsed)
}

// escalate transitions the execution and records the audit entry only
// after the transition is accepted; a refused escalation leaves no trace
// in the log.
func (o *Orchestrator) escalate(exec *execution.Execution, reason, target string, notifyStaff bool) error {
	o.mu.Lock()
	if err := exec.Escalate(reason, target); err != nil {
		o.mu.Unlock()
		o.logger.Warn().Err(err).Str("execution_id", exec.ID.String()).Msg("escalation transition failed")
		return err
	}
	exec.AppendAction("escalate", reason, execution.ResultPending)
	o.mu.Unlock()

	o.aggregator.RecordEscalation(exec.AgentType)
	if notifyStaff && o.notifySvc != nil {
		o.notifySvc.CreateEscalation(exec.ID, exec.AgentType, reason, target)
	}
	o.logger.Info().
		Str("execution_id", exec.ID.String()).
		Str("reason", reason).
		Str("target", target).
		Msg("execution escalated")
	return nil
}

// EscalateToHuman forces an execution to human review outside the
// automatic low-confidence path.
func (o *Orchestrator) EscalateToHuman(executionID uuid.UUID, staffID, reason string) error {
	o.mu.Lock()
	exec := o.executions[executionID]
	o.mu.Unlock()
	if exec == nil {
		return ErrExecutionNotFound
	}
	return o.escalate(exec, reason, staffID, true)
}

// CompleteHumanReview resolves an escalated execution.
func (o *Orchestrator) CompleteHumanReview(executionID uuid.UUID, reviewerID string, approved bool, notes string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	exec := o.executions[executionID]
	if exec == nil {
		return ErrExecutionNotFound
	}
	return exec.ResolveReview(reviewerID, approved, notes)
}

// GetExecution returns an execution by id.
func (o *Orchestrator) GetExecution(executionID uuid.UUID) (*execution.Execution, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	exec := o.executions[executionID]
	if exec == nil {
		return nil, ErrExecutionNotFound
	}
	cp := *exec
	cp.AuditLog = append([]execution.Action(nil), exec.AuditLog...)
	return &cp, nil
}

// ListExecutions returns executions matching the filter, newest first.
func (o *Orchestrator) ListExecutions(filter execution.Filter) []*execution.Execution {
	o.mu.Lock()
	out := make([]*execution.Execution, 0, len(o.order))
	for _, id := range o.order {
		e := o.executions[id]
		if e == nil {
			continue
		}
		if filter.AgentType != nil && e.AgentType != *filter.AgentType {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		cp := *e
		cp.AuditLog = append([]execution.Action(nil), e.AuditLog...)
		out = append(out, &cp)
	}
	o.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Metrics returns the metrics record for one agent type.
func (o *Orchestrator) Metrics(t agent.Type) metrics.Metrics {
	return o.aggregator.Get(t)
}

// AllMetrics returns metrics for every agent type seen so far.
func (o *Orchestrator) AllMetrics() []metrics.Metrics {
	return o.aggregator.List()
}

// SetAgentEnabled toggles an agent definition.
func (o *Orchestrator) SetAgentEnabled(t agent.Type, enabled bool) error {
	if err := o.catalog.SetEnabled(t, enabled); err != nil {
		return fmt.Errorf("%w: %s", ErrAgentUnavailable, t)
	}
	o.logger.Info().Str("agent_type", string(t)).Bool("enabled", enabled).Msg("agent toggled")
	return nil
}

// Agents lists the catalog definitions.
func (o *Orchestrator) Agents() []*agent.Definition {
	return o.catalog.List()
}

// QueueDepth reports items outstanding, including in-flight ones.
func (o *Orchestrator) QueueDepth() int {
	return o.queue.Len()
}

// WaitIdle blocks until the drain loop has stopped or the context ends.
// Intended for tests and shutdown.
func (o *Orchestrator) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		o.mu.Lock()
		idle := !o.draining && o.queue.Len() == 0
		o.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
