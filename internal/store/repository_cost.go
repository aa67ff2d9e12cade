package store

import (
	"context"
	"fmt"
	"time"
)

// CostRepository records per-submission gas accounting used for the
// cost-saved telemetry the spec's scenario 6 exercises.
type CostRepository struct {
	client *Client
}

func NewCostRepository(client *Client) *CostRepository {
	return &CostRepository{client: client}
}

// CostSavedRow is the persisted shape of domain.CostSaved.
type CostSavedRow struct {
	ID              int64
	SuperproofID    int64
	ProofsAggregated int
	GasUsedActual   int64
	GasUsedIfSolo   int64
	CreatedAt       time.Time
}

func (r *CostRepository) Record(ctx context.Context, c *CostSavedRow) error {
	query := `
		INSERT INTO cost_saved (superproof_id, proofs_aggregated, gas_used_actual, gas_used_if_solo, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.client.ExecContext(ctx, query, c.SuperproofID, c.ProofsAggregated, c.GasUsedActual, c.GasUsedIfSolo, time.Now())
	if err != nil {
		return fmt.Errorf("store: record cost saved: %w", err)
	}
	return nil
}

// TotalSaved sums gas_used_if_solo - gas_used_actual across all records,
// the running figure the spec's cost-accounting scenario reports.
func (r *CostRepository) TotalSaved(ctx context.Context) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(gas_used_if_solo - gas_used_actual), 0) FROM cost_saved`
	if err := r.client.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("store: total cost saved: %w", err)
	}
	return total, nil
}
