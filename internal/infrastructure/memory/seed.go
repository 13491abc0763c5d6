package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/client"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/document"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/ledger"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/staff"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/user"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/worktask"
)

// Seed loads a small demonstration dataset: one client with approved and
// pending documents, unreconciled GL entries, a three-person roster, open
// tasks, and an admin login.
func Seed(s *Store) error {
	now := time.Now().UTC()
	clientID := uuid.New()

	s.PutClient(&client.Client{
		ID:            clientID,
		Name:          "Siam Trading Co., Ltd.",
		TaxID:         "0105561234567",
		Active:        true,
		VATRegistered: true,
	})

	docs := []*document.Document{
		{
			ID:           uuid.New(),
			ClientID:     clientID,
			Type:         document.TypeSalesInvoice,
			Status:       document.StatusApproved,
			Description:  "Consulting services June",
			Amount:       10700,
			VATAmount:    700,
			DocumentDate: now.AddDate(0, 0, -10),
			UploadedAt:   now.AddDate(0, 0, -9),
		},
		{
			ID:           uuid.New(),
			ClientID:     clientID,
			Type:         document.TypePurchaseInvoice,
			Status:       document.StatusApproved,
			Description:  "ค่าโทรศัพท์ True",
			Amount:       1070,
			VATAmount:    70,
			VATClaimable: true,
			DocumentDate: now.AddDate(0, 0, -6),
			UploadedAt:   now.AddDate(0, 0, -5),
		},
		{
			ID:           uuid.New(),
			ClientID:     clientID,
			Type:         document.TypeExpenseNote,
			Status:       document.StatusPendingReview,
			Description:  "Office supplies",
			Amount:       500,
			DocumentDate: now.AddDate(0, 0, -4),
			UploadedAt:   now.AddDate(0, 0, -4),
		},
	}
	for _, d := range docs {
		s.PutDocument(d)
	}

	s.PutEntry(&ledger.Entry{
		ID:          uuid.New(),
		ClientID:    clientID,
		Date:        now.AddDate(0, 0, -6),
		Description: "TRUE MOVE payment",
		Amount:      1070,
		CreatedAt:   now.AddDate(0, 0, -6),
	})
	s.PutEntry(&ledger.Entry{
		ID:          uuid.New(),
		ClientID:    clientID,
		Date:        now.AddDate(0, 0, -3),
		Description: "Customer receipt",
		Amount:      10700,
		CreatedAt:   now.AddDate(0, 0, -3),
	})

	roster := []*staff.Staff{
		{
			ID:                 uuid.New(),
			Name:               "Anan",
			Role:               "senior_accountant",
			Available:          true,
			UtilizationPercent: 40,
			Skills:             []string{"vat", "withholding tax", "reconciliation"},
			ClientExpertise:    []uuid.UUID{clientID},
		},
		{
			ID:                 uuid.New(),
			Name:               "Busaba",
			Role:               "accountant",
			Available:          true,
			UtilizationPercent: 65,
			Skills:             []string{"bookkeeping", "document"},
		},
		{
			ID:                 uuid.New(),
			Name:               "Chai",
			Role:               "junior_accountant",
			Available:          false,
			UtilizationPercent: 90,
			Skills:             []string{"bookkeeping"},
		},
	}
	for _, m := range roster {
		s.PutStaff(m)
	}

	due := now.AddDate(0, 0, 3)
	s.PutTask(&worktask.Task{
		ID:        uuid.New(),
		ClientID:  clientID,
		Title:     "Prepare PP30 filing",
		Category:  "vat",
		Priority:  worktask.PriorityHigh,
		Status:    worktask.StatusOpen,
		DueDate:   &due,
		CreatedAt: now.AddDate(0, 0, -2),
	})

	admin, err := user.New("admin", "admin", user.RoleAdmin)
	if err != nil {
		return err
	}
	return s.Users().Create(context.Background(), admin)
}
