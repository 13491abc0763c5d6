package agents

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/client"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/notify"
)

const (
	whtFilingDay = 7
	vatFilingDay = 15

	deadlineLookaheadDays = 10
	taskDueWindowDays     = 5
	staleDocumentDays     = 2
	staleDocumentHighDays = 5
	staleSummaryLimit     = 5
)

// Alert is one prioritized deadline or staleness finding.
type Alert struct {
	Type          string          `json:"type"`
	Severity      notify.Severity `json:"severity"`
	ClientID      *uuid.UUID      `json:"clientId,omitempty"`
	TaskID        *uuid.UUID      `json:"taskId,omitempty"`
	DocumentID    *uuid.UUID      `json:"documentId,omitempty"`
	Title         string          `json:"title"`
	Body          string          `json:"body"`
	DueDate       *time.Time      `json:"dueDate,omitempty"`
	DaysRemaining int             `json:"daysRemaining"`
}

func severityRank(s notify.Severity) int {
	switch s {
	case notify.SeverityCritical:
		return 0
	case notify.SeverityHigh:
		return 1
	case notify.SeverityMedium:
		return 2
	default:
		return 3
	}
}

// DeadlineResult is the notification handler output payload.
type DeadlineResult struct {
	Alerts []Alert `json:"alerts"`
}

// DeadlineHandler runs three independent sweeps: recurring tax deadlines,
// task due dates, and stale document review.
type DeadlineHandler struct {
	logger zerolog.Logger
}

// NewDeadlineHandler creates the deadline watch handler.
func NewDeadlineHandler(logger zerolog.Logger) *DeadlineHandler {
	return &DeadlineHandler{logger: logger.With().Str("handler", "deadline").Logger()}
}

func (h *DeadlineHandler) CanHandle(in Input) bool {
	_, ok := in.(*NotificationInput)
	return ok
}

func (h *DeadlineHandler) RequiredPermissions() []string {
	return []string{"clients:read", "tasks:read", "documents:read"}
}

func (h *DeadlineHandler) Execute(ctx context.Context, in Input, ec *Context) (*Output, error) {
	input, ok := in.(*NotificationInput)
	if !ok {
		return nil, fmt.Errorf("deadline handler received %T", in)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := input.AsOf
	if now.IsZero() {
		now = ec.Now
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var alerts []Alert
	alerts = append(alerts, h.sweepTaxDeadlines(ec, now)...)
	alerts = append(alerts, h.sweepTaskDueDates(ec, now)...)
	alerts = append(alerts, h.sweepStaleDocuments(ec, now)...)

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := severityRank(alerts[i].Severity), severityRank(alerts[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return alerts[i].DaysRemaining < alerts[j].DaysRemaining
	})

	confidence := 100.0
	if len(alerts) > 0 {
		confidence = 95.0
	}

	out := &Output{
		Success:    true,
		Confidence: confidence,
		Result:     &DeadlineResult{Alerts: alerts},
	}
	for _, a := range alerts {
		out.Actions = append(out.Actions, SuggestedAction{
			Type:        "notify",
			Description: a.Title,
			Payload:     a,
		})
	}
	ec.log("deadline_sweep", fmt.Sprintf("%d alerts raised", len(alerts)))
	h.logger.Info().Int("alerts", len(alerts)).Msg("deadline sweep complete")
	return out, nil
}

// sweepTaxDeadlines checks the recurring day-of-month filing rules per
// active client. A date already past this month rolls to next month;
// clients whose filing status shows the period as handled are skipped.
func (h *DeadlineHandler) sweepTaxDeadlines(ec *Context, now time.Time) []Alert {
	var alerts []Alert
	for _, c := range ec.Clients {
		if !c.Active {
			continue
		}
		if c.VATRegistered && !c.VATFiled() {
			if a := taxDeadlineAlert(c, "vat_deadline", "VAT filing (PP30)", vatFilingDay, now); a != nil {
				alerts = append(alerts, *a)
			}
		}
		if !c.WHTFiled() {
			if a := taxDeadlineAlert(c, "wht_deadline", "Withholding filing (PND)", whtFilingDay, now); a != nil {
				alerts = append(alerts, *a)
			}
		}
	}
	return alerts
}

func taxDeadlineAlert(c *client.Client, alertType, label string, day int, now time.Time) *Alert {
	due := time.Date(now.Year(), now.Month(), day, 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if due.Before(today) {
		due = due.AddDate(0, 1, 0)
	}
	days := int(due.Sub(today).Hours() / 24)
	if days > deadlineLookaheadDays {
		return nil
	}

	// A passed filing day has already rolled to next month, so days is
	// never negative here; missed periods surface on the next cycle.
	severity := notify.SeverityMedium
	if days <= 3 {
		severity = notify.SeverityHigh
	}

	id := c.ID
	return &Alert{
		Type:          alertType,
		Severity:      severity,
		ClientID:      &id,
		Title:         fmt.Sprintf("%s due for %s", label, c.Name),
		Body:          fmt.Sprintf("%s for %s is due on %s (%d days remaining)", label, c.Name, due.Format("2006-01-02"), days),
		DueDate:       &due,
		DaysRemaining: days,
	}
}

// sweepTaskDueDates flags non-terminal tasks due within the window or
// already overdue.
func (h *DeadlineHandler) sweepTaskDueDates(ec *Context, now time.Time) []Alert {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var alerts []Alert
	for _, t := range ec.Tasks {
		if t.IsTerminal() || t.DueDate == nil {
			continue
		}
		due := time.Date(t.DueDate.Year(), t.DueDate.Month(), t.DueDate.Day(), 0, 0, 0, 0, time.UTC)
		days := int(due.Sub(today).Hours() / 24)
		if days > taskDueWindowDays {
			continue
		}

		severity := notify.SeverityMedium
		switch {
		case days < 0:
			severity = notify.SeverityCritical
		case t.IsRush() || days <= 2:
			severity = notify.SeverityHigh
		}

		id := t.ID
		dueCopy := due
		alerts = append(alerts, Alert{
			Type:          "task_due",
			Severity:      severity,
			TaskID:        &id,
			Title:         fmt.Sprintf("Task due: %s", t.Title),
			Body:          fmt.Sprintf("task %q is due on %s (%d days remaining)", t.Title, due.Format("2006-01-02"), days),
			DueDate:       &dueCopy,
			DaysRemaining: days,
		})
	}
	return alerts
}

// sweepStaleDocuments flags documents pending review past the staleness
// threshold. More than staleSummaryLimit individual alerts collapse into a
// single summary alert.
func (h *DeadlineHandler) sweepStaleDocuments(ec *Context, now time.Time) []Alert {
	var alerts []Alert
	for _, d := range ec.Documents {
		pending := d.PendingFor(now)
		if pending < time.Duration(staleDocumentDays)*24*time.Hour {
			continue
		}
		days := int(pending.Hours() / 24)
		severity := notify.SeverityMedium
		if days >= staleDocumentHighDays {
			severity = notify.SeverityHigh
		}
		id := d.ID
		alerts = append(alerts, Alert{
			Type:          "stale_document",
			Severity:      severity,
			DocumentID:    &id,
			Title:         "Document awaiting review",
			Body:          fmt.Sprintf("document %q pending review for %d days", d.Description, days),
			DaysRemaining: -days,
		})
	}
	if len(alerts) > staleSummaryLimit {
		oldest := 0
		for _, a := range alerts {
			if -a.DaysRemaining > oldest {
				oldest = -a.DaysRemaining
			}
		}
		return []Alert{{
			Type:          "stale_document_summary",
			Severity:      notify.SeverityHigh,
			Title:         "Documents awaiting review",
			Body:          fmt.Sprintf("%d documents pending review, oldest for %d days", len(alerts), oldest),
			DaysRemaining: -oldest,
		}}
	}
	return alerts
}
