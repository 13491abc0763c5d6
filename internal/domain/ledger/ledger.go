package ledger

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Line is one debit or credit leg of a journal entry.
type Line struct {
	Account string  `json:"account"`
	Debit   float64 `json:"debit"`
	Credit  float64 `json:"credit"`
}

// Entry is a general-ledger journal entry.
type Entry struct {
	ID               uuid.UUID  `json:"id"`
	ClientID         uuid.UUID  `json:"clientId"`
	Date             time.Time  `json:"date"`
	Description      string     `json:"description"`
	Amount           float64    `json:"amount"`
	Lines            []Line     `json:"lines,omitempty"`
	Reconciled       bool       `json:"reconciled"`
	SourceDocumentID *uuid.UUID `json:"sourceDocumentId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Balanced reports whether total debits equal total credits to the cent.
func (e *Entry) Balanced() bool {
	var debits, credits float64
	for _, l := range e.Lines {
		debits += l.Debit
		credits += l.Credit
	}
	return math.Abs(debits-credits) < 0.005
}

// BankTransaction is one line from an imported bank feed.
type BankTransaction struct {
	ID          uuid.UUID `json:"id"`
	ClientID    uuid.UUID `json:"clientId"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Matched     bool      `json:"matched"`
}
