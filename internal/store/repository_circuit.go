package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CircuitRepository handles circuit CRUD.
type CircuitRepository struct {
	client *Client
}

func NewCircuitRepository(client *Client) *CircuitRepository {
	return &CircuitRepository{client: client}
}

// CircuitRow is the persisted shape of domain.Circuit.
type CircuitRow struct {
	Hash             []byte // 32 bytes
	Scheme           string
	VKPath           string
	NPublicInputs    int
	ReductionImageID sql.NullString
	Status           string
	ProtocolName     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Create inserts a circuit row. Callers must check GetByHash first for
// idempotency: register_circuit returns idempotently on a pre-existing
// hash rather than calling Create twice.
func (r *CircuitRepository) Create(ctx context.Context, c *CircuitRow) error {
	query := `
		INSERT INTO circuits (hash, scheme, vk_path, n_public_inputs, reduction_image_id, status, protocol_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	now := time.Now()
	_, err := r.client.ExecContext(ctx, query,
		c.Hash, c.Scheme, c.VKPath, c.NPublicInputs, c.ReductionImageID, c.Status, c.ProtocolName, now, now)
	if err != nil {
		return fmt.Errorf("store: create circuit: %w", err)
	}
	return nil
}

// GetByHash retrieves a circuit by its keccak hash.
func (r *CircuitRepository) GetByHash(ctx context.Context, hash []byte) (*CircuitRow, error) {
	query := `
		SELECT hash, scheme, vk_path, n_public_inputs, reduction_image_id, status, protocol_name, created_at, updated_at
		FROM circuits WHERE hash = $1`
	c := &CircuitRow{}
	err := r.client.QueryRowContext(ctx, query, hash).Scan(
		&c.Hash, &c.Scheme, &c.VKPath, &c.NPublicInputs, &c.ReductionImageID, &c.Status, &c.ProtocolName, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCircuitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get circuit: %w", err)
	}
	return c, nil
}

// UpdateStatus advances a circuit's status. Status must advance
// monotonically except to Failed; that invariant is enforced by callers
// in taskmachine, not here.
func (r *CircuitRepository) UpdateStatus(ctx context.Context, hash []byte, status string) error {
	query := `UPDATE circuits SET status = $2, updated_at = $3 WHERE hash = $1`
	_, err := r.client.ExecContext(ctx, query, hash, status, time.Now())
	if err != nil {
		return fmt.Errorf("store: update circuit status: %w", err)
	}
	return nil
}

// ListByStatus returns circuits in the given status, oldest first.
func (r *CircuitRepository) ListByStatus(ctx context.Context, status string) ([]*CircuitRow, error) {
	query := `
		SELECT hash, scheme, vk_path, n_public_inputs, reduction_image_id, status, protocol_name, created_at, updated_at
		FROM circuits WHERE status = $1 ORDER BY created_at ASC`
	rows, err := r.client.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("store: list circuits by status: %w", err)
	}
	defer rows.Close()

	var out []*CircuitRow
	for rows.Next() {
		c := &CircuitRow{}
		if err := rows.Scan(&c.Hash, &c.Scheme, &c.VKPath, &c.NPublicInputs, &c.ReductionImageID, &c.Status, &c.ProtocolName, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan circuit: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
