package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/staff"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/worktask"
)

const (
	fallbackConfidence     = 60.0
	utilizationNudge       = 10.0
	rebalanceSpreadBound   = 40.0
	rushUtilizationCeiling = 50.0
)

// Keywords that connect a task category to staff skills.
var categoryKeywords = map[string][]string{
	"bookkeeping":    {"bookkeeping", "journal", "ledger"},
	"tax_filing":     {"tax", "vat", "wht", "filing"},
	"reconciliation": {"reconciliation", "banking", "bank"},
	"payroll":        {"payroll", "social_security"},
	"audit_support":  {"audit", "review"},
	"document_entry": {"data_entry", "document", "scanning"},
}

// Assignment is one suggested task-to-staff pairing.
type Assignment struct {
	TaskID     uuid.UUID `json:"taskId"`
	StaffID    uuid.UUID `json:"staffId"`
	StaffName  string    `json:"staffName"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Fallback   bool      `json:"fallback"`
	Rationale  string    `json:"rationale"`
}

// AssignmentResult is the task-assignment handler output payload.
type AssignmentResult struct {
	Assignments          []Assignment `json:"assignments"`
	RebalanceRecommended bool         `json:"rebalanceRecommended"`
	UtilizationSpread    float64      `json:"utilizationSpread"`
}

// AssignmentHandler scores available staff for each unassigned task.
type AssignmentHandler struct {
	logger zerolog.Logger
}

// NewAssignmentHandler creates the task-assignment handler.
func NewAssignmentHandler(logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{logger: logger.With().Str("handler", "assignment").Logger()}
}

func (h *AssignmentHandler) CanHandle(in Input) bool {
	_, ok := in.(*AssignmentInput)
	return ok
}

func (h *AssignmentHandler) RequiredPermissions() []string {
	return []string{"staff:read", "tasks:read", "tasks:write"}
}

// Execute assigns every unassigned task either to the best-scoring
// available staff member or, when nobody is available, to the least
// utilized one at a fixed fallback confidence. Utilization is nudged up
// after each pick so later tasks in the batch see the updated load.
func (h *AssignmentHandler) Execute(ctx context.Context, in Input, ec *Context) (*Output, error) {
	input, ok := in.(*AssignmentInput)
	if !ok {
		return nil, fmt.Errorf("assignment handler received %T", in)
	}
	if len(ec.Staff) == 0 {
		return failure("no staff roster available"), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tasks := h.selectTasks(input, ec)
	if len(tasks) == 0 {
		return &Output{Success: true, Confidence: 100, Result: &AssignmentResult{}}, nil
	}

	// Work on a utilization copy so the batch sees its own nudges without
	// writing collaborator data.
	load := make(map[uuid.UUID]float64, len(ec.Staff))
	for _, s := range ec.Staff {
		load[s.ID] = s.UtilizationPercent
	}

	result := &AssignmentResult{}
	var confSum float64

	for _, t := range tasks {
		var best *staff.Staff
		var bestScore float64
		for _, s := range ec.Staff {
			if !s.Available {
				continue
			}
			score := scoreStaff(t, s, load[s.ID])
			if best == nil || score > bestScore {
				best = s
				bestScore = score
			}
		}

		a := Assignment{TaskID: t.ID}
		if best != nil {
			a.StaffID = best.ID
			a.StaffName = best.Name
			a.Score = bestScore
			a.Confidence = bestScore
			if a.Confidence > 100 {
				a.Confidence = 100
			}
			a.Rationale = fmt.Sprintf("best score %.1f at %.0f%% utilization", bestScore, load[best.ID])
		} else {
			least := leastUtilized(ec.Staff, load)
			a.StaffID = least.ID
			a.StaffName = least.Name
			a.Confidence = fallbackConfidence
			a.Fallback = true
			a.Rationale = "no staff available; falling back to least utilized"
			best = least
		}
		load[best.ID] += utilizationNudge
		confSum += a.Confidence
		result.Assignments = append(result.Assignments, a)
		ec.log("task_assigned", fmt.Sprintf("task %s -> %s (%.1f)", t.ID, a.StaffName, a.Confidence))
	}

	result.UtilizationSpread = availableSpread(ec.Staff, load)
	result.RebalanceRecommended = result.UtilizationSpread > rebalanceSpreadBound

	out := &Output{
		Success:    true,
		Confidence: confSum / float64(len(result.Assignments)),
		Result:     result,
	}
	for _, a := range result.Assignments {
		out.Actions = append(out.Actions, SuggestedAction{
			Type:        "assign_task",
			Description: fmt.Sprintf("assign task %s to %s", a.TaskID, a.StaffName),
			Payload:     a,
		})
	}
	if result.RebalanceRecommended {
		out.Warnings = append(out.Warnings, fmt.Sprintf("utilization spread %.0f points; rebalance recommended", result.UtilizationSpread))
	}

	h.logger.Info().
		Int("assigned", len(result.Assignments)).
		Bool("rebalance", result.RebalanceRecommended).
		Msg("assignment pass complete")
	return out, nil
}

func (h *AssignmentHandler) selectTasks(input *AssignmentInput, ec *Context) []*worktask.Task {
	if len(input.TaskIDs) > 0 {
		wanted := make(map[uuid.UUID]bool, len(input.TaskIDs))
		for _, id := range input.TaskIDs {
			wanted[id] = true
		}
		var out []*worktask.Task
		for _, t := range ec.Tasks {
			if wanted[t.ID] && t.Unassigned() {
				out = append(out, t)
			}
		}
		return out
	}
	var out []*worktask.Task
	for _, t := range ec.Tasks {
		if t.Unassigned() {
			out = append(out, t)
		}
	}
	return out
}

// scoreStaff computes the assignment score out of 100:
// availability 30, skill match 30, client familiarity 20, priority
// handling 10, category experience 10.
func scoreStaff(t *worktask.Task, s *staff.Staff, utilization float64) float64 {
	score := 30 - 0.3*utilization
	if score < 0 {
		score = 0
	}

	skill := 15.0 * float64(skillMatches(t.Category, s.Skills))
	if skill > 30 {
		skill = 30
	}
	score += skill

	if s.KnowsClient(t.ClientID) {
		score += 20
	}

	if t.IsRush() && utilization < rushUtilizationCeiling {
		score += 10
	}

	exp := 2.0 * float64(s.CompletedByCategory[t.Category])
	if exp > 10 {
		exp = 10
	}
	score += exp

	return score
}

func skillMatches(category string, skills []string) int {
	keywords := categoryKeywords[strings.ToLower(category)]
	if len(keywords) == 0 {
		keywords = []string{strings.ToLower(category)}
	}
	var n int
	for _, kw := range keywords {
		for _, sk := range skills {
			if strings.Contains(strings.ToLower(sk), kw) {
				n++
				break
			}
		}
	}
	return n
}

func leastUtilized(roster []*staff.Staff, load map[uuid.UUID]float64) *staff.Staff {
	least := roster[0]
	for _, s := range roster[1:] {
		if load[s.ID] < load[least.ID] {
			least = s
		}
	}
	return least
}

// availableSpread returns the gap between the most and least utilized
// available staff.
func availableSpread(roster []*staff.Staff, load map[uuid.UUID]float64) float64 {
	var min, max float64
	var seen bool
	for _, s := range roster {
		if !s.Available {
			continue
		}
		u := load[s.ID]
		if !seen {
			min, max = u, u
			seen = true
			continue
		}
		if u < min {
			min = u
		}
		if u > max {
			max = u
		}
	}
	return max - min
}
