package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/document"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/ledger"
)

// Analysis is the structured field set returned by the external
// document-analysis service for one raw document.
type Analysis struct {
	Vendor        string        `json:"vendor"`
	DocumentType  document.Type `json:"documentType"`
	Amount        float64       `json:"amount"`
	VATAmount     float64       `json:"vatAmount"`
	DebitAccount  string        `json:"debitAccount"`
	CreditAccount string        `json:"creditAccount"`
	Confidence    float64       `json:"confidence"`
}

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_analyzer.go -package=mocks . Analyzer

// Analyzer is the external document-analysis collaborator. The client is
// expected to load the referenced file and submit its raw bytes.
type Analyzer interface {
	Analyze(ctx context.Context, fileRef string) (*Analysis, error)
}

// Default posting accounts by document type, used when the analyzer does
// not suggest accounts.
var defaultAccounts = map[document.Type][2]string{
	document.TypeSalesInvoice:    {"1200 Accounts Receivable", "4000 Revenue"},
	document.TypeReceipt:         {"1000 Cash", "4000 Revenue"},
	document.TypePurchaseInvoice: {"5000 Purchases", "2000 Accounts Payable"},
	document.TypeExpenseNote:     {"5100 Expenses", "1000 Cash"},
	document.TypeCreditNote:      {"4000 Revenue", "1200 Accounts Receivable"},
}

// PreparedEntry pairs a document with its suggested journal entry. An
// unbalanced entry blocks automatic posting but the analysis is preserved
// for human correction.
type PreparedEntry struct {
	DocumentID         uuid.UUID    `json:"documentId"`
	Entry              ledger.Entry `json:"entry"`
	AnalyzerConfidence float64      `json:"analyzerConfidence"`
	AutoPostBlocked    bool         `json:"autoPostBlocked"`
	BlockReason        string       `json:"blockReason,omitempty"`
}

// PostingResult is the document handler output payload.
type PostingResult struct {
	Prepared []PreparedEntry `json:"prepared"`
	Skipped  []uuid.UUID     `json:"skipped,omitempty"`
}

// PostingHandler prepares journal entries for uploaded documents using the
// external document-analysis service.
type PostingHandler struct {
	analyzer Analyzer
	logger   zerolog.Logger
}

// NewPostingHandler creates the document posting handler.
func NewPostingHandler(analyzer Analyzer, logger zerolog.Logger) *PostingHandler {
	return &PostingHandler{
		analyzer: analyzer,
		logger:   logger.With().Str("handler", "posting").Logger(),
	}
}

func (h *PostingHandler) CanHandle(in Input) bool {
	_, ok := in.(*DocumentInput)
	return ok
}

func (h *PostingHandler) RequiredPermissions() []string {
	return []string{"documents:read", "documents:write", "ledger:write"}
}

func (h *PostingHandler) Execute(ctx context.Context, in Input, ec *Context) (*Output, error) {
	input, ok := in.(*DocumentInput)
	if !ok {
		return nil, fmt.Errorf("posting handler received %T", in)
	}
	docs := h.selectDocuments(input, ec)
	if len(docs) == 0 {
		return failure("no documents to prepare"), nil
	}
	if h.analyzer == nil {
		return failure("document analysis service not configured"), nil
	}

	result := &PostingResult{}
	var confSum float64
	var warnings []string

	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		analysis, err := h.analyzer.Analyze(ctx, d.FileRef)
		if err != nil {
			return nil, fmt.Errorf("analyze document %s: %w", d.ID, err)
		}

		entry := buildEntry(d, analysis)
		prepared := PreparedEntry{
			DocumentID:         d.ID,
			Entry:              entry,
			AnalyzerConfidence: analysis.Confidence,
		}
		if !entry.Balanced() {
			prepared.AutoPostBlocked = true
			prepared.BlockReason = "journal entry does not balance"
			warnings = append(warnings, fmt.Sprintf("document %s: unbalanced entry held for review", d.ID))
		}
		result.Prepared = append(result.Prepared, prepared)
		confSum += analysis.Confidence
		ec.log("entry_prepared", fmt.Sprintf("document %s -> %d lines, confidence %.0f", d.ID, len(entry.Lines), analysis.Confidence))
	}

	out := &Output{
		Success:    true,
		Confidence: confSum / float64(len(result.Prepared)),
		Result:     result,
		Warnings:   warnings,
	}
	for _, p := range result.Prepared {
		if p.AutoPostBlocked {
			continue
		}
		out.Actions = append(out.Actions, SuggestedAction{
			Type:        "post_entry",
			Description: fmt.Sprintf("post journal entry for document %s", p.DocumentID),
			Payload:     p,
		})
	}

	h.logger.Info().
		Int("prepared", len(result.Prepared)).
		Int("blocked", len(warnings)).
		Msg("posting preparation complete")
	return out, nil
}

func (h *PostingHandler) selectDocuments(input *DocumentInput, ec *Context) []*document.Document {
	if len(input.DocumentIDs) == 0 {
		return ec.Documents
	}
	wanted := make(map[uuid.UUID]bool, len(input.DocumentIDs))
	for _, id := range input.DocumentIDs {
		wanted[id] = true
	}
	var out []*document.Document
	for _, d := range ec.Documents {
		if wanted[d.ID] {
			out = append(out, d)
		}
	}
	return out
}

// buildEntry derives a two-or-three line journal entry from the document
// plus the analyzer fields. Analyzer figures win over stored ones when
// the stored ones are zero.
func buildEntry(d *document.Document, a *Analysis) ledger.Entry {
	amount := d.Amount
	if amount == 0 {
		amount = a.Amount
	}
	vat := d.VATAmount
	if vat == 0 {
		vat = a.VATAmount
	}

	docType := d.Type
	if docType == "" {
		docType = a.DocumentType
	}
	debit, credit := a.DebitAccount, a.CreditAccount
	if debit == "" || credit == "" {
		accounts := defaultAccounts[docType]
		if debit == "" {
			debit = accounts[0]
		}
		if credit == "" {
			credit = accounts[1]
		}
	}

	desc := d.Description
	if desc == "" {
		desc = a.Vendor
	}

	docID := d.ID
	entry := ledger.Entry{
		ID:               uuid.New(),
		ClientID:         d.ClientID,
		Date:             d.DocumentDate,
		Description:      desc,
		Amount:           amount,
		SourceDocumentID: &docID,
		CreatedAt:        time.Now().UTC(),
	}

	if docType.IsSale() {
		entry.Lines = []ledger.Line{
			{Account: debit, Debit: amount},
			{Account: credit, Credit: amount - vat},
		}
		if vat != 0 {
			entry.Lines = append(entry.Lines, ledger.Line{Account: "2100 Output VAT", Credit: vat})
		}
	} else {
		entry.Lines = []ledger.Line{
			{Account: debit, Debit: amount - vat},
			{Account: credit, Credit: amount},
		}
		if vat != 0 {
			entry.Lines = append(entry.Lines, ledger.Line{Account: "1150 Input VAT", Debit: vat})
		}
	}
	return entry
}
