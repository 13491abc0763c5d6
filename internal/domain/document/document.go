package document

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the review status of a document.
type Status string

const (
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
	StatusPosted        Status = "POSTED"
)

// Type classifies the accounting document.
type Type string

const (
	TypeSalesInvoice    Type = "SALES_INVOICE"
	TypePurchaseInvoice Type = "PURCHASE_INVOICE"
	TypeReceipt         Type = "RECEIPT"
	TypeExpenseNote     Type = "EXPENSE_NOTE"
	TypeCreditNote      Type = "CREDIT_NOTE"
)

// IsSale reports whether the document type indicates revenue (output VAT).
func (t Type) IsSale() bool {
	return t == TypeSalesInvoice || t == TypeReceipt
}

// Document is a scanned or uploaded accounting document.
type Document struct {
	ID           uuid.UUID  `json:"id"`
	ClientID     uuid.UUID  `json:"clientId"`
	Type         Type       `json:"type"`
	Status       Status     `json:"status"`
	Description  string     `json:"description"`
	Amount       float64    `json:"amount"`
	VATAmount    float64    `json:"vatAmount"`
	VATClaimable bool       `json:"vatClaimable"`
	WHTAmount    float64    `json:"whtAmount"`
	WHTFormCode  string     `json:"whtFormCode,omitempty"`
	DocumentDate time.Time  `json:"documentDate"`
	UploadedAt   time.Time  `json:"uploadedAt"`
	FileRef      string     `json:"fileRef,omitempty"`
	PostedAt     *time.Time `json:"postedAt,omitempty"`
}

// PendingFor returns how long the document has been awaiting review as of
// the given time; zero for documents not pending review.
func (d *Document) PendingFor(now time.Time) time.Duration {
	if d.Status != StatusPendingReview {
		return 0
	}
	return now.Sub(d.UploadedAt)
}
