package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TaskRepository handles the unified task queue holding both
// CircuitReduction and ProofGeneration tasks; within this module only
// the per-proof reduction worker consumes it.
type TaskRepository struct {
	client *Client
}

func NewTaskRepository(client *Client) *TaskRepository {
	return &TaskRepository{client: client}
}

// TaskRow is the persisted shape of domain.Task.
type TaskRow struct {
	ID         int64
	Kind       string
	TargetHash []byte
	Status     string
	RetryCount int
	LastError  sql.NullString
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r *TaskRepository) Create(ctx context.Context, t *TaskRow) (int64, error) {
	query := `
		INSERT INTO tasks (kind, target_hash, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	now := time.Now()
	var id int64
	err := r.client.QueryRowContext(ctx, query, t.Kind, t.TargetHash, t.Status, t.RetryCount, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: create task: %w", err)
	}
	return id, nil
}

// ListNotPickedByKind returns NotPicked tasks of the given kind, oldest
// first, up to limit. The reduction worker polls through this for
// ProofGeneration tasks; nothing in this module polls CircuitReduction
// tasks.
func (r *TaskRepository) ListNotPickedByKind(ctx context.Context, kind string, limit int) ([]*TaskRow, error) {
	query := `
		SELECT id, kind, target_hash, status, retry_count, last_error, created_at, updated_at
		FROM tasks WHERE kind = $1 AND status = 'NotPicked' ORDER BY created_at ASC LIMIT $2`
	rows, err := r.client.QueryContext(ctx, query, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list not-picked tasks: %w", err)
	}
	defer rows.Close()

	var out []*TaskRow
	for rows.Next() {
		t := &TaskRow{}
		if err := rows.Scan(&t.ID, &t.Kind, &t.TargetHash, &t.Status, &t.RetryCount, &t.LastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TryClaim atomically moves a NotPicked task to InProgress, returning
// false if another worker already claimed it.
func (r *TaskRepository) TryClaim(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE tasks SET status = 'InProgress', updated_at = $2 WHERE id = $1 AND status = 'NotPicked'`
	res, err := r.client.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return false, fmt.Errorf("store: claim task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: claim task rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *TaskRepository) MarkCompleted(ctx context.Context, id int64) error {
	_, err := r.client.ExecContext(ctx, `UPDATE tasks SET status = 'Completed', updated_at = $2 WHERE id = $1`, id, time.Now())
	if err != nil {
		return fmt.Errorf("store: mark task completed: %w", err)
	}
	return nil
}

// MarkFailed records the failure and increments retry_count. With
// requeue the task goes back to NotPicked, otherwise to Failed; the new
// retry count is not returned.
func (r *TaskRepository) MarkFailed(ctx context.Context, id int64, errMsg string, requeue bool) error {
	status := "Failed"
	if requeue {
		status = "NotPicked"
	}
	query := `UPDATE tasks SET status = $2, retry_count = retry_count + 1, last_error = $3, updated_at = $4 WHERE id = $1`
	_, err := r.client.ExecContext(ctx, query, id, status, errMsg, time.Now())
	if err != nil {
		return fmt.Errorf("store: mark task failed: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*TaskRow, error) {
	query := `
		SELECT id, kind, target_hash, status, retry_count, last_error, created_at, updated_at
		FROM tasks WHERE id = $1`
	t := &TaskRow{}
	err := r.client.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Kind, &t.TargetHash, &t.Status, &t.RetryCount, &t.LastError, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get task: %w", err)
	}
	return t, nil
}
