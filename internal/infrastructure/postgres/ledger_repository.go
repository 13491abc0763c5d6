package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/ledger"
)

// LedgerRepository implements ledger.Repository. Entry lines are stored
// as a JSONB column.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

const entryColumns = `id, client_id, entry_date, description, amount, lines, reconciled, source_document_id, created_at`

func (r *LedgerRepository) CreateEntry(ctx context.Context, e *ledger.Entry) error {
	lines, err := json.Marshal(e.Lines)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID, e.ClientID, e.Date, e.Description, e.Amount, lines, e.Reconciled, e.SourceDocumentID, e.CreatedAt)
	return err
}

func (r *LedgerRepository) ListEntries(ctx context.Context, clientID *uuid.UUID, from, to time.Time) ([]*ledger.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE entry_date >= $1 AND entry_date <= $2`
	args := []interface{}{from, to}
	if clientID != nil {
		query += ` AND client_id=$3`
		args = append(args, *clientID)
	}
	query += ` ORDER BY entry_date`
	return r.queryEntries(ctx, query, args...)
}

func (r *LedgerRepository) ListUnreconciled(ctx context.Context, clientID *uuid.UUID) ([]*ledger.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE reconciled=FALSE`
	args := []interface{}{}
	if clientID != nil {
		query += ` AND client_id=$1`
		args = append(args, *clientID)
	}
	query += ` ORDER BY entry_date`
	return r.queryEntries(ctx, query, args...)
}

func (r *LedgerRepository) MarkReconciled(ctx context.Context, entryID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE ledger_entries SET reconciled=TRUE WHERE id=$1`, entryID)
	return err
}

func (r *LedgerRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*ledger.Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var e ledger.Entry
	var lines []byte
	if err := row.Scan(&e.ID, &e.ClientID, &e.Date, &e.Description, &e.Amount, &lines,
		&e.Reconciled, &e.SourceDocumentID, &e.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &e.Lines); err != nil {
			return nil, err
		}
	}
	return &e, nil
}
