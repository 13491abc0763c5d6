package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/staff"
)

// StaffRepository implements staff.Repository. Skills, client expertise,
// and completion counts are stored as JSONB columns.
type StaffRepository struct {
	pool *pgxpool.Pool
}

func NewStaffRepository(pool *pgxpool.Pool) *StaffRepository {
	return &StaffRepository{pool: pool}
}

const staffColumns = `id, name, role, available, utilization_percent, skills, client_expertise, completed_by_category`

func (r *StaffRepository) GetByID(ctx context.Context, id uuid.UUID) (*staff.Staff, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE id=$1`, id)
	return scanStaff(row)
}

func (r *StaffRepository) List(ctx context.Context) ([]*staff.Staff, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+staffColumns+` FROM staff ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*staff.Staff
	for rows.Next() {
		m, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *StaffRepository) Update(ctx context.Context, m *staff.Staff) error {
	skills, err := json.Marshal(m.Skills)
	if err != nil {
		return err
	}
	expertise, err := json.Marshal(m.ClientExpertise)
	if err != nil {
		return err
	}
	completed, err := json.Marshal(m.CompletedByCategory)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO staff (`+staffColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE
		SET name=EXCLUDED.name, role=EXCLUDED.role, available=EXCLUDED.available,
		    utilization_percent=EXCLUDED.utilization_percent, skills=EXCLUDED.skills,
		    client_expertise=EXCLUDED.client_expertise, completed_by_category=EXCLUDED.completed_by_category
	`, m.ID, m.Name, m.Role, m.Available, m.UtilizationPercent, skills, expertise, completed)
	return err
}

func scanStaff(row pgx.Row) (*staff.Staff, error) {
	var m staff.Staff
	var skills, expertise, completed []byte
	if err := row.Scan(&m.ID, &m.Name, &m.Role, &m.Available, &m.UtilizationPercent,
		&skills, &expertise, &completed); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &m.Skills); err != nil {
			return nil, err
		}
	}
	if len(expertise) > 0 {
		if err := json.Unmarshal(expertise, &m.ClientExpertise); err != nil {
			return nil, err
		}
	}
	if len(completed) > 0 {
		if err := json.Unmarshal(completed, &m.CompletedByCategory); err != nil {
			return nil, err
		}
	}
	return &m, nil
}
