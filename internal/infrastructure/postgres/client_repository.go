package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/client"
)

// ClientRepository implements client.Repository.
type ClientRepository struct {
	pool *pgxpool.Pool
}

func NewClientRepository(pool *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

const clientColumns = `id, name, tax_id, active, vat_registered, vat_status, wht_status`

func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*client.Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=$1`, id)
	return scanClient(row)
}

func (r *ClientRepository) List(ctx context.Context) ([]*client.Client, error) {
	return r.queryClients(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name`)
}

func (r *ClientRepository) ListActive(ctx context.Context) ([]*client.Client, error) {
	return r.queryClients(ctx, `SELECT `+clientColumns+` FROM clients WHERE active=TRUE ORDER BY name`)
}

func (r *ClientRepository) queryClients(ctx context.Context, query string, args ...interface{}) ([]*client.Client, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*client.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanClient(row pgx.Row) (*client.Client, error) {
	var c client.Client
	var taxID, vatStatus, whtStatus *string
	if err := row.Scan(&c.ID, &c.Name, &taxID, &c.Active, &c.VATRegistered, &vatStatus, &whtStatus); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if taxID != nil {
		c.TaxID = *taxID
	}
	if vatStatus != nil {
		c.VATStatus = *vatStatus
	}
	if whtStatus != nil {
		c.WHTStatus = *whtStatus
	}
	return &c, nil
}
