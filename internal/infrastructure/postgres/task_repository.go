package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerpilot/ledgerpilot/internal/domain/worktask"
)

// TaskRepository implements worktask.Repository.
type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

const taskColumns = `id, client_id, title, category, priority, status, due_date, assigned_to, created_at`

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*worktask.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id)
	return scanTask(row)
}

func (r *TaskRepository) List(ctx context.Context) ([]*worktask.Task, error) {
	return r.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at`)
}

func (r *TaskRepository) ListUnassigned(ctx context.Context) ([]*worktask.Task, error) {
	return r.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE assigned_to IS NULL AND status NOT IN ('DONE','CANCELLED')
		ORDER BY created_at
	`)
}

func (r *TaskRepository) Update(ctx context.Context, t *worktask.Task) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET title=$1, category=$2, priority=$3, status=$4, due_date=$5, assigned_to=$6
		WHERE id=$7
	`, t.Title, t.Category, t.Priority, t.Status, t.DueDate, t.AssignedTo, t.ID)
	return err
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*worktask.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*worktask.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTask(row pgx.Row) (*worktask.Task, error) {
	var t worktask.Task
	if err := row.Scan(&t.ID, &t.ClientID, &t.Title, &t.Category, &t.Priority, &t.Status,
		&t.DueDate, &t.AssignedTo, &t.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
