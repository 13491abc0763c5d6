package agents

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/ledger"
)

const (
	matchAcceptThreshold = 70.0
	amountTolerance      = 0.01 // 1% of the bank amount
)

// ScoreBreakdown records the per-component contribution to a match score.
type ScoreBreakdown struct {
	Amount float64 `json:"amount"`
	Date   float64 `json:"date"`
	Text   float64 `json:"text"`
}

// Match is one accepted bank-to-ledger or bank-to-document pairing.
type Match struct {
	BankTransactionID uuid.UUID      `json:"bankTransactionId"`
	EntryID           *uuid.UUID     `json:"entryId,omitempty"`
	DocumentID        *uuid.UUID     `json:"documentId,omitempty"`
	Score             float64        `json:"score"`
	Breakdown         ScoreBreakdown `json:"breakdown"`
}

// ReconciliationResult is the reconciliation handler output payload.
type ReconciliationResult struct {
	Matches          []Match                  `json:"matches"`
	UnmatchedBank    []ledger.BankTransaction `json:"unmatchedBank"`
	UnmatchedEntries []uuid.UUID              `json:"unmatchedEntries"`
}

// ReconciliationHandler matches imported bank transactions against GL
// entry and document candidates.
type ReconciliationHandler struct {
	logger zerolog.Logger
}

// NewReconciliationHandler creates the reconciliation handler.
func NewReconciliationHandler(logger zerolog.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{logger: logger.With().Str("handler", "reconciliation").Logger()}
}

func (h *ReconciliationHandler) CanHandle(in Input) bool {
	_, ok := in.(*ReconciliationInput)
	return ok
}

func (h *ReconciliationHandler) RequiredPermissions() []string {
	return []string{"ledger:read", "ledger:write", "documents:read"}
}

// Execute scores every bank transaction against every candidate and
// accepts the highest-scoring candidate at or above the threshold. Ties
// resolve to the first candidate reaching the maximum.
func (h *ReconciliationHandler) Execute(ctx context.Context, in Input, ec *Context) (*Output, error) {
	input, ok := in.(*ReconciliationInput)
	if !ok {
		return nil, fmt.Errorf("reconciliation handler received %T", in)
	}
	if len(input.BankTransactions) == 0 {
		return failure("no bank transactions to reconcile"), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]*ledger.Entry, 0, len(ec.Entries))
	for _, e := range ec.Entries {
		if !e.Reconciled {
			entries = append(entries, e)
		}
	}
	docs := ec.Documents

	result := &ReconciliationResult{}
	usedEntries := make(map[uuid.UUID]bool)
	usedDocs := make(map[uuid.UUID]bool)
	var scoreSum float64

	for _, bt := range input.BankTransactions {
		best := Match{BankTransactionID: bt.ID}

		for _, e := range entries {
			if usedEntries[e.ID] {
				continue
			}
			bd := ScoreBreakdown{
				Amount: amountScore(bt.Amount, e.Amount),
				Date:   entryDateScore(bt.Date, e.Date),
				Text:   textScore(bt.Description, e.Description, 20),
			}
			score := bd.Amount + bd.Date + bd.Text
			if score > best.Score {
				id := e.ID
				best = Match{BankTransactionID: bt.ID, EntryID: &id, Score: score, Breakdown: bd}
			}
		}
		for _, d := range docs {
			if usedDocs[d.ID] {
				continue
			}
			bd := ScoreBreakdown{
				Amount: amountScore(bt.Amount, d.Amount),
				Date:   documentDateScore(bt.Date, d.DocumentDate),
				Text:   textScore(bt.Description, d.Description, 25),
			}
			score := bd.Amount + bd.Date + bd.Text
			if score > best.Score {
				id := d.ID
				best = Match{BankTransactionID: bt.ID, DocumentID: &id, Score: score, Breakdown: bd}
			}
		}

		if best.Score >= matchAcceptThreshold {
			if best.EntryID != nil {
				usedEntries[*best.EntryID] = true
			}
			if best.DocumentID != nil {
				usedDocs[*best.DocumentID] = true
			}
			result.Matches = append(result.Matches, best)
			scoreSum += best.Score
			ec.log("match_accepted", fmt.Sprintf("bank txn %s matched with score %.1f", bt.ID, best.Score))
		} else {
			result.UnmatchedBank = append(result.UnmatchedBank, bt)
		}
	}

	for _, e := range entries {
		if !usedEntries[e.ID] {
			result.UnmatchedEntries = append(result.UnmatchedEntries, e.ID)
		}
	}

	confidence := 0.0
	if len(result.Matches) > 0 {
		confidence = scoreSum / float64(len(result.Matches))
	}

	out := &Output{
		Success:    true,
		Confidence: confidence,
		Result:     result,
	}
	if len(result.UnmatchedBank) > 0 {
		out.Actions = append(out.Actions, SuggestedAction{
			Type:        "suggest_adjustment",
			Description: fmt.Sprintf("%d bank transactions need a manual adjustment entry", len(result.UnmatchedBank)),
			Payload:     result.UnmatchedBank,
		})
		out.Warnings = append(out.Warnings, fmt.Sprintf("%d of %d bank transactions unmatched", len(result.UnmatchedBank), len(input.BankTransactions)))
	}

	h.logger.Info().
		Int("matched", len(result.Matches)).
		Int("unmatched_bank", len(result.UnmatchedBank)).
		Float64("confidence", confidence).
		Msg("reconciliation pass complete")
	return out, nil
}

// amountScore awards up to 50 points: exact match 50, within 1% of the bank
// amount 40, within 5x that tolerance 20.
func amountScore(bank, candidate float64) float64 {
	diff := math.Abs(bank - candidate)
	if diff < 0.005 {
		return 50
	}
	tol := amountTolerance * math.Abs(bank)
	switch {
	case diff <= tol:
		return 40
	case diff <= 5*tol:
		return 20
	default:
		return 0
	}
}

func dayDistance(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Abs(ad.Sub(bd).Hours()) / 24)
}

// entryDateScore awards up to 30 points for GL candidates.
func entryDateScore(bank, candidate time.Time) float64 {
	switch days := dayDistance(bank, candidate); {
	case days == 0:
		return 30
	case days <= 3:
		return 20
	case days <= 7:
		return 10
	default:
		return 0
	}
}

// documentDateScore awards up to 25 points for document candidates, with a
// wider far band since document dates drift from settlement dates.
func documentDateScore(bank, candidate time.Time) float64 {
	switch days := dayDistance(bank, candidate); {
	case days == 0:
		return 25
	case days <= 3:
		return 15
	case days <= 14:
		return 5
	default:
		return 0
	}
}

// textScore awards up to weight points: identity scores the full weight,
// substring containment 0.8x, otherwise the word-overlap ratio
// (intersection over union of case-folded tokens) scaled by the weight.
func textScore(a, b string, weight float64) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return weight
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8 * weight
	}
	aw := strings.Fields(a)
	bw := strings.Fields(b)
	set := make(map[string]bool, len(aw))
	for _, w := range aw {
		set[w] = true
	}
	var inter int
	union := len(set)
	seen := make(map[string]bool, len(bw))
	for _, w := range bw {
		if seen[w] {
			continue
		}
		seen[w] = true
		if set[w] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return weight * float64(inter) / float64(union)
}
