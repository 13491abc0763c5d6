package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/document"
)

// DocumentRepository implements document.Repository.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

const documentColumns = `id, client_id, doc_type, status, description, amount, vat_amount, vat_claimable, wht_amount, wht_form_code, document_date, uploaded_at, file_ref, posted_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id)
	return scanDocument(row)
}

func (r *DocumentRepository) List(ctx context.Context, clientID *uuid.UUID) ([]*document.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []interface{}{}
	if clientID != nil {
		query += ` WHERE client_id=$1`
		args = append(args, *clientID)
	}
	query += ` ORDER BY document_date`
	return r.queryDocuments(ctx, query, args...)
}

func (r *DocumentRepository) ListByStatus(ctx context.Context, status document.Status) ([]*document.Document, error) {
	return r.queryDocuments(ctx, `SELECT `+documentColumns+` FROM documents WHERE status=$1 ORDER BY document_date`, status)
}

func (r *DocumentRepository) ListForPeriod(ctx context.Context, clientID *uuid.UUID, from, to time.Time) ([]*document.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE document_date >= $1 AND document_date <= $2`
	args := []interface{}{from, to}
	if clientID != nil {
		query += ` AND client_id=$3`
		args = append(args, *clientID)
	}
	query += ` ORDER BY document_date`
	return r.queryDocuments(ctx, query, args...)
}

func (r *DocumentRepository) Update(ctx context.Context, d *document.Document) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET status=$1, description=$2, amount=$3, vat_amount=$4, vat_claimable=$5,
		    wht_amount=$6, wht_form_code=$7, document_date=$8, file_ref=$9, posted_at=$10
		WHERE id=$11
	`, d.Status, d.Description, d.Amount, d.VATAmount, d.VATClaimable,
		d.WHTAmount, nullString(d.WHTFormCode), d.DocumentDate, nullString(d.FileRef), d.PostedAt, d.ID)
	return err
}

func (r *DocumentRepository) Create(ctx context.Context, d *document.Document) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents
		(`+documentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, d.ID, d.ClientID, d.Type, d.Status, d.Description, d.Amount, d.VATAmount, d.VATClaimable,
		d.WHTAmount, nullString(d.WHTFormCode), d.DocumentDate, d.UploadedAt, nullString(d.FileRef), d.PostedAt)
	return err
}

func (r *DocumentRepository) queryDocuments(ctx context.Context, query string, args ...interface{}) ([]*document.Document, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*document.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func scanDocument(row pgx.Row) (*document.Document, error) {
	var d document.Document
	var whtForm, fileRef *string
	if err := row.Scan(&d.ID, &d.ClientID, &d.Type, &d.Status, &d.Description, &d.Amount,
		&d.VATAmount, &d.VATClaimable, &d.WHTAmount, &whtForm, &d.DocumentDate,
		&d.UploadedAt, &fileRef, &d.PostedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if whtForm != nil {
		d.WHTFormCode = *whtForm
	}
	if fileRef != nil {
		d.FileRef = *fileRef
	}
	return &d, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
