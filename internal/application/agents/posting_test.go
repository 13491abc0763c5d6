package agents_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ledgerpilot/ledgerpilot/internal/application/agents"
	"github.com/ledgerpilot/ledgerpilot/internal/application/agents/mocks"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/document"
)

func uploadedDoc(docType document.Type, amount, vat float64, fileRef string) *document.Document {
	return &document.Document{
		ID:           uuid.New(),
		ClientID:     uuid.New(),
		Type:         docType,
		Status:       document.StatusApproved,
		Description:  "uploaded",
		Amount:       amount,
		VATAmount:    vat,
		DocumentDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		FileRef:      fileRef,
	}
}

func TestPostingHandler_PreparesSaleEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	doc := uploadedDoc(document.TypeSalesInvoice, 10700, 700, "s3://docs/inv-001.pdf")
	analyzer := mocks.NewMockAnalyzer(ctrl)
	analyzer.EXPECT().
		Analyze(gomock.Any(), doc.FileRef).
		Return(&agents.Analysis{Vendor: "Siam Trading", Confidence: 92}, nil)

	h := agents.NewPostingHandler(analyzer, zerolog.Nop())
	out, err := h.Execute(context.Background(), &agents.DocumentInput{}, &agents.Context{
		Documents: []*document.Document{doc},
	})
	require.NoError(t, err)
	require.True(t, out.Success)
	assert.Equal(t, 92.0, out.Confidence)

	result := out.Result.(*agents.PostingResult)
	require.Len(t, result.Prepared, 1)
	p := result.Prepared[0]
	assert.Equal(t, doc.ID, p.DocumentID)
	assert.False(t, p.AutoPostBlocked)
	assert.Equal(t, 92.0, p.AnalyzerConfidence)

	entry := p.Entry
	require.Len(t, entry.Lines, 3)
	assert.Equal(t, "1200 Accounts Receivable", entry.Lines[0].Account)
	assert.Equal(t, 10700.0, entry.Lines[0].Debit)
	assert.Equal(t, "4000 Revenue", entry.Lines[1].Account)
	assert.Equal(t, 10000.0, entry.Lines[1].Credit)
	assert.Equal(t, "2100 Output VAT", entry.Lines[2].Account)
	assert.Equal(t, 700.0, entry.Lines[2].Credit)
	assert.True(t, entry.Balanced())
	require.NotNil(t, entry.SourceDocumentID)
	assert.Equal(t, doc.ID, *entry.SourceDocumentID)

	require.Len(t, out.Actions, 1)
	assert.Equal(t, "post_entry", out.Actions[0].Type)
}

func TestPostingHandler_AnalyzerFieldsFillGaps(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Bare upload: no amount, type, or description stored yet.
	doc := &document.Document{
		ID:       uuid.New(),
		ClientID: uuid.New(),
		Status:   document.StatusPendingReview,
		FileRef:  "s3://docs/receipt-scan.pdf",
	}
	analyzer := mocks.NewMockAnalyzer(ctrl)
	analyzer.EXPECT().
		Analyze(gomock.Any(), doc.FileRef).
		Return(&agents.Analysis{
			Vendor:        "True Move",
			DocumentType:  document.TypeExpenseNote,
			Amount:        1070,
			VATAmount:     70,
			DebitAccount:  "5310 Telephone",
			CreditAccount: "1000 Cash",
			Confidence:    85,
		}, nil)

	h := agents.NewPostingHandler(analyzer, zerolog.Nop())
	out, err := h.Execute(context.Background(), &agents.DocumentInput{}, &agents.Context{
		Documents: []*document.Document{doc},
	})
	require.NoError(t, err)
	require.True(t, out.Success)

	entry := out.Result.(*agents.PostingResult).Prepared[0].Entry
	assert.Equal(t, "True Move", entry.Description)
	assert.Equal(t, 1070.0, entry.Amount)
	require.Len(t, entry.Lines, 3)
	assert.Equal(t, "5310 Telephone", entry.Lines[0].Account)
	assert.Equal(t, 1000.0, entry.Lines[0].Debit)
	assert.Equal(t, "1000 Cash", entry.Lines[1].Account)
	assert.Equal(t, 1070.0, entry.Lines[1].Credit)
	assert.Equal(t, "1150 Input VAT", entry.Lines[2].Account)
	assert.Equal(t, 70.0, entry.Lines[2].Debit)
	assert.True(t, entry.Balanced())
}

func TestPostingHandler_SelectsByDocumentID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	wanted := uploadedDoc(document.TypeReceipt, 500, 0, "s3://docs/rc-1.pdf")
	other := uploadedDoc(document.TypeReceipt, 900, 0, "s3://docs/rc-2.pdf")

	analyzer := mocks.NewMockAnalyzer(ctrl)
	analyzer.EXPECT().
		Analyze(gomock.Any(), wanted.FileRef).
		Return(&agents.Analysis{Confidence: 90}, nil)

	h := agents.NewPostingHandler(analyzer, zerolog.Nop())
	out, err := h.Execute(context.Background(), &agents.DocumentInput{DocumentIDs: []uuid.UUID{wanted.ID}}, &agents.Context{
		Documents: []*document.Document{wanted, other},
	})
	require.NoError(t, err)

	result := out.Result.(*agents.PostingResult)
	require.Len(t, result.Prepared, 1)
	assert.Equal(t, wanted.ID, result.Prepared[0].DocumentID)
}

func TestPostingHandler_AnalyzerErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	doc := uploadedDoc(document.TypePurchaseInvoice, 1070, 70, "s3://docs/pi-1.pdf")
	analyzer := mocks.NewMockAnalyzer(ctrl)
	analyzer.EXPECT().
		Analyze(gomock.Any(), doc.FileRef).
		Return(nil, errors.New("analysis service unavailable"))

	h := agents.NewPostingHandler(analyzer, zerolog.Nop())
	out, err := h.Execute(context.Background(), &agents.DocumentInput{}, &agents.Context{
		Documents: []*document.Document{doc},
	})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Contains(t, err.Error(), doc.ID.String())
}

func TestPostingHandler_ValidationFailures(t *testing.T) {
	t.Run("no documents", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		h := agents.NewPostingHandler(mocks.NewMockAnalyzer(ctrl), zerolog.Nop())
		out, err := h.Execute(context.Background(), &agents.DocumentInput{}, &agents.Context{})
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.Equal(t, "no documents to prepare", out.Error)
	})

	t.Run("analyzer not configured", func(t *testing.T) {
		h := agents.NewPostingHandler(nil, zerolog.Nop())
		out, err := h.Execute(context.Background(), &agents.DocumentInput{}, &agents.Context{
			Documents: []*document.Document{uploadedDoc(document.TypeReceipt, 100, 0, "x")},
		})
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.Equal(t, "document analysis service not configured", out.Error)
	})
}

func TestPostingHandler_CanHandle(t *testing.T) {
	h := agents.NewPostingHandler(nil, zerolog.Nop())
	assert.True(t, h.CanHandle(&agents.DocumentInput{}))
	assert.False(t, h.CanHandle(&agents.ReconciliationInput{}))
}
