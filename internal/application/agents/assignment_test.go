package agents

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/staff"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/worktask"
)

func taxTask(clientID uuid.UUID, priority worktask.Priority) *worktask.Task {
	return &worktask.Task{
		ID:       uuid.New(),
		Title:    "Prepare PP30 filing",
		ClientID: clientID,
		Category: "tax_filing",
		Priority: priority,
		Status:   worktask.StatusOpen,
	}
}

func runAssignment(t *testing.T, in *AssignmentInput, ec *Context) *AssignmentResult {
	t.Helper()
	h := NewAssignmentHandler(zerolog.Nop())
	out, err := h.Execute(context.Background(), in, ec)
	require.NoError(t, err)
	require.True(t, out.Success)
	return out.Result.(*AssignmentResult)
}

func TestScoreStaff(t *testing.T) {
	clientID := uuid.New()

	t.Run("availability component scales with utilization", func(t *testing.T) {
		task := taxTask(clientID, worktask.PriorityNormal)
		assert.InDelta(t, 30.0, scoreStaff(task, &staff.Staff{}, 0), 0.001)
		assert.InDelta(t, 18.0, scoreStaff(task, &staff.Staff{}, 40), 0.001)
		assert.InDelta(t, 0.0, scoreStaff(task, &staff.Staff{}, 120), 0.001)
	})

	t.Run("skill matches cap at two keywords", func(t *testing.T) {
		task := taxTask(clientID, worktask.PriorityNormal)
		one := &staff.Staff{Skills: []string{"vat"}}
		three := &staff.Staff{Skills: []string{"vat", "wht", "tax planning"}}
		assert.InDelta(t, 45.0, scoreStaff(task, one, 0), 0.001)
		assert.InDelta(t, 60.0, scoreStaff(task, three, 0), 0.001)
	})

	t.Run("client familiarity adds twenty", func(t *testing.T) {
		task := taxTask(clientID, worktask.PriorityNormal)
		familiar := &staff.Staff{ClientExpertise: []uuid.UUID{clientID}}
		assert.InDelta(t, 50.0, scoreStaff(task, familiar, 0), 0.001)
	})

	t.Run("rush bonus only below the utilization ceiling", func(t *testing.T) {
		task := taxTask(clientID, worktask.PriorityUrgent)
		assert.InDelta(t, 40.0, scoreStaff(task, &staff.Staff{}, 0), 0.001)
		// 30 - 0.3*60 = 12, no rush bonus at 60%.
		assert.InDelta(t, 12.0, scoreStaff(task, &staff.Staff{}, 60), 0.001)
	})

	t.Run("category experience caps at ten", func(t *testing.T) {
		task := taxTask(clientID, worktask.PriorityNormal)
		seasoned := &staff.Staff{CompletedByCategory: map[string]int{"tax_filing": 3}}
		veteran := &staff.Staff{CompletedByCategory: map[string]int{"tax_filing": 9}}
		assert.InDelta(t, 36.0, scoreStaff(task, seasoned, 0), 0.001)
		assert.InDelta(t, 40.0, scoreStaff(task, veteran, 0), 0.001)
	})
}

func TestAssignmentHandler_PicksBestScore(t *testing.T) {
	clientID := uuid.New()
	anan := &staff.Staff{
		ID: uuid.New(), Name: "Anan", Available: true, UtilizationPercent: 40,
		Skills:              []string{"vat", "wht", "reconciliation"},
		ClientExpertise:     []uuid.UUID{clientID},
		CompletedByCategory: map[string]int{"tax_filing": 2},
	}
	busaba := &staff.Staff{ID: uuid.New(), Name: "Busaba", Available: true, UtilizationPercent: 65}
	task := taxTask(clientID, worktask.PriorityUrgent)

	h := NewAssignmentHandler(zerolog.Nop())
	out, err := h.Execute(context.Background(), &AssignmentInput{}, &Context{
		Staff: []*staff.Staff{busaba, anan},
		Tasks: []*worktask.Task{task},
	})
	require.NoError(t, err)
	require.True(t, out.Success)

	result := out.Result.(*AssignmentResult)
	require.Len(t, result.Assignments, 1)
	a := result.Assignments[0]
	assert.Equal(t, anan.ID, a.StaffID)
	// 18 availability + 30 skills + 20 client + 10 rush + 4 experience.
	assert.InDelta(t, 82.0, a.Score, 0.001)
	assert.InDelta(t, 82.0, a.Confidence, 0.001)
	assert.False(t, a.Fallback)
	assert.InDelta(t, 82.0, out.Confidence, 0.001)

	require.Len(t, out.Actions, 1)
	assert.Equal(t, "assign_task", out.Actions[0].Type)
}

func TestAssignmentHandler_NudgeSpreadsBatch(t *testing.T) {
	alpha := &staff.Staff{ID: uuid.New(), Name: "Alpha", Available: true}
	beta := &staff.Staff{ID: uuid.New(), Name: "Beta", Available: true}
	first := &worktask.Task{ID: uuid.New(), Title: "first", Category: "misc", Status: worktask.StatusOpen}
	second := &worktask.Task{ID: uuid.New(), Title: "second", Category: "misc", Status: worktask.StatusOpen}

	result := runAssignment(t, &AssignmentInput{}, &Context{
		Staff: []*staff.Staff{alpha, beta},
		Tasks: []*worktask.Task{first, second},
	})

	require.Len(t, result.Assignments, 2)
	assert.Equal(t, alpha.ID, result.Assignments[0].StaffID)
	assert.Equal(t, beta.ID, result.Assignments[1].StaffID)
}

func TestAssignmentHandler_FallbackWhenNobodyAvailable(t *testing.T) {
	busy := &staff.Staff{ID: uuid.New(), Name: "Busy", Available: false, UtilizationPercent: 80}
	lighter := &staff.Staff{ID: uuid.New(), Name: "Lighter", Available: false, UtilizationPercent: 20}
	task := taxTask(uuid.New(), worktask.PriorityNormal)

	h := NewAssignmentHandler(zerolog.Nop())
	out, err := h.Execute(context.Background(), &AssignmentInput{}, &Context{
		Staff: []*staff.Staff{busy, lighter},
		Tasks: []*worktask.Task{task},
	})
	require.NoError(t, err)
	require.True(t, out.Success)

	result := out.Result.(*AssignmentResult)
	require.Len(t, result.Assignments, 1)
	a := result.Assignments[0]
	assert.Equal(t, lighter.ID, a.StaffID)
	assert.True(t, a.Fallback)
	assert.Equal(t, fallbackConfidence, a.Confidence)
	assert.Equal(t, fallbackConfidence, out.Confidence)
	assert.False(t, result.RebalanceRecommended)
}

func TestAssignmentHandler_RebalanceWarning(t *testing.T) {
	light := &staff.Staff{ID: uuid.New(), Name: "Light", Available: true, UtilizationPercent: 10}
	heavy := &staff.Staff{ID: uuid.New(), Name: "Heavy", Available: true, UtilizationPercent: 70}
	task := &worktask.Task{ID: uuid.New(), Title: "entry", Category: "misc", Status: worktask.StatusOpen}

	h := NewAssignmentHandler(zerolog.Nop())
	out, err := h.Execute(context.Background(), &AssignmentInput{}, &Context{
		Staff: []*staff.Staff{light, heavy},
		Tasks: []*worktask.Task{task},
	})
	require.NoError(t, err)

	result := out.Result.(*AssignmentResult)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, light.ID, result.Assignments[0].StaffID)
	// Light picked up the nudge, heavy stayed at 70: spread 50.
	assert.InDelta(t, 50.0, result.UtilizationSpread, 0.001)
	assert.True(t, result.RebalanceRecommended)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "rebalance recommended")
}

func TestAssignmentHandler_TaskSelection(t *testing.T) {
	s := &staff.Staff{ID: uuid.New(), Name: "Solo", Available: true}
	owner := uuid.New()
	open := &worktask.Task{ID: uuid.New(), Title: "open", Category: "misc", Status: worktask.StatusOpen}
	taken := &worktask.Task{ID: uuid.New(), Title: "taken", Category: "misc", Status: worktask.StatusInProgress, AssignedTo: &owner}
	other := &worktask.Task{ID: uuid.New(), Title: "other", Category: "misc", Status: worktask.StatusOpen}

	t.Run("explicit ids skip already assigned tasks", func(t *testing.T) {
		result := runAssignment(t, &AssignmentInput{TaskIDs: []uuid.UUID{taken.ID, other.ID}}, &Context{
			Staff: []*staff.Staff{s},
			Tasks: []*worktask.Task{open, taken, other},
		})
		require.Len(t, result.Assignments, 1)
		assert.Equal(t, other.ID, result.Assignments[0].TaskID)
	})

	t.Run("no ids means every unassigned task", func(t *testing.T) {
		result := runAssignment(t, &AssignmentInput{}, &Context{
			Staff: []*staff.Staff{s},
			Tasks: []*worktask.Task{open, taken, other},
		})
		assert.Len(t, result.Assignments, 2)
	})

	t.Run("nothing to assign succeeds at full confidence", func(t *testing.T) {
		h := NewAssignmentHandler(zerolog.Nop())
		out, err := h.Execute(context.Background(), &AssignmentInput{}, &Context{
			Staff: []*staff.Staff{s},
			Tasks: []*worktask.Task{taken},
		})
		require.NoError(t, err)
		assert.True(t, out.Success)
		assert.Equal(t, 100.0, out.Confidence)
	})
}

func TestAssignmentHandler_NoRoster(t *testing.T) {
	h := NewAssignmentHandler(zerolog.Nop())
	out, err := h.Execute(context.Background(), &AssignmentInput{}, &Context{
		Tasks: []*worktask.Task{taxTask(uuid.New(), worktask.PriorityNormal)},
	})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Error)
}

func TestAssignmentHandler_CanHandle(t *testing.T) {
	h := NewAssignmentHandler(zerolog.Nop())
	assert.True(t, h.CanHandle(&AssignmentInput{}))
	assert.False(t, h.CanHandle(&TaxInput{}))
}
