package client

import (
	"context"

	"github.com/google/uuid"
)

// FilingStatus values used by the deadline sweeps to suppress alerts for
// filings already handled this period.
const (
	FilingFiled  = "Filed"
	FilingClosed = "Closed"
)

// Client is one client of the accounting practice.
type Client struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	TaxID         string    `json:"taxId,omitempty"`
	Active        bool      `json:"active"`
	VATRegistered bool      `json:"vatRegistered"`
	VATStatus     string    `json:"vatStatus,omitempty"`
	WHTStatus     string    `json:"whtStatus,omitempty"`
}

// VATFiled reports whether this month's VAT filing is already handled.
func (c *Client) VATFiled() bool {
	return c.VATStatus == FilingFiled || c.VATStatus == FilingClosed
}

// WHTFiled reports whether this month's withholding filing is already handled.
func (c *Client) WHTFiled() bool {
	return c.WHTStatus == FilingFiled || c.WHTStatus == FilingClosed
}

// Repository provides access to client records.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Client, error)
	List(ctx context.Context) ([]*Client, error)
	ListActive(ctx context.Context) ([]*Client, error)
}
