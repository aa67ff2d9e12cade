package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SuperproofRepository handles batch-level aggregation records.
type SuperproofRepository struct {
	client *Client
}

func NewSuperproofRepository(client *Client) *SuperproofRepository {
	return &SuperproofRepository{client: client}
}

// SuperproofRow is the persisted shape of domain.Superproof.
type SuperproofRow struct {
	ID               int64
	LaneRRoot        sql.NullString // hex, 32 bytes
	LaneSRoot        sql.NullString
	LaneRLeavesPath  sql.NullString
	LaneSLeavesPath  sql.NullString
	SuperproofRoot   sql.NullString
	ProofIDsJSON     []byte
	Status           string
	WrapperProofPath sql.NullString
	TxHash           sql.NullString
	GasUsed          sql.NullInt64
	GasCostGwei      sql.NullFloat64
	EthPriceUSD      sql.NullFloat64
	TotalCostUSD     sql.NullFloat64
	SubmittedAt      sql.NullTime
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Create starts a new superproof in NotStarted status.
func (r *SuperproofRepository) Create(ctx context.Context) (int64, error) {
	query := `
		INSERT INTO superproofs (status, proof_ids_json, created_at, updated_at)
		VALUES ('NotStarted', '[]', $1, $1)
		RETURNING id`
	now := time.Now()
	var id int64
	if err := r.client.QueryRowContext(ctx, query, now).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: create superproof: %w", err)
	}
	return id, nil
}

func (r *SuperproofRepository) GetByID(ctx context.Context, id int64) (*SuperproofRow, error) {
	query := `
		SELECT id, lane_r_root, lane_s_root, lane_r_leaves_path, lane_s_leaves_path,
			superproof_root, proof_ids_json, status,
			wrapper_proof_path, tx_hash, gas_used, gas_cost_gwei, eth_price_usd, total_cost_usd,
			submitted_at, created_at, updated_at
		FROM superproofs WHERE id = $1`
	s := &SuperproofRow{}
	err := r.client.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.LaneRRoot, &s.LaneSRoot, &s.LaneRLeavesPath, &s.LaneSLeavesPath,
		&s.SuperproofRoot, &s.ProofIDsJSON, &s.Status,
		&s.WrapperProofPath, &s.TxHash, &s.GasUsed, &s.GasCostGwei, &s.EthPriceUSD, &s.TotalCostUSD,
		&s.SubmittedAt, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSuperproofNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get superproof: %w", err)
	}
	return s, nil
}

// SetRootsAndProving records the two lane roots, the paths to each lane's
// persisted leaf vector (so the inclusion-proof service can later reload
// and recompute a proof against them), the combined root, the proof id
// manifest, and advances status to ProvingDone once the final wrapper has
// produced wrapperProofPath.
func (r *SuperproofRepository) SetRootsAndProving(ctx context.Context, id int64, laneRRoot, laneSRoot, laneRLeavesPath, laneSLeavesPath, superproofRoot string, proofIDsJSON []byte, wrapperProofPath string) error {
	query := `
		UPDATE superproofs
		SET lane_r_root = $2, lane_s_root = $3, lane_r_leaves_path = $4, lane_s_leaves_path = $5,
			superproof_root = $6, proof_ids_json = $7,
			wrapper_proof_path = $8, status = 'ProvingDone', updated_at = $9
		WHERE id = $1`
	_, err := r.client.ExecContext(ctx, query, id, laneRRoot, laneSRoot, laneRLeavesPath, laneSLeavesPath,
		superproofRoot, proofIDsJSON, wrapperProofPath, time.Now())
	if err != nil {
		return fmt.Errorf("store: set superproof roots: %w", err)
	}
	return nil
}

// MarkSubmissionAttempt records onchain_submission_time before the
// external call goes out, per spec.md §4.7 step 3's ordering invariant
// (submission time precedes the transaction hash, which is only known
// after a successful receipt).
func (r *SuperproofRepository) MarkSubmissionAttempt(ctx context.Context, id int64) error {
	_, err := r.client.ExecContext(ctx, `UPDATE superproofs SET submitted_at = $2, updated_at = $2 WHERE id = $1`, id, time.Now())
	if err != nil {
		return fmt.Errorf("store: mark submission attempt: %w", err)
	}
	return nil
}

func (r *SuperproofRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	_, err := r.client.ExecContext(ctx, `UPDATE superproofs SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("store: update superproof status: %w", err)
	}
	return nil
}

// MarkSuperproofSubmittedTx records the on-chain tx hash, gas used, and
// the base-fee/eth-price/total-cost-usd triple computed per spec.md
// §4.7 step 5, and advances status to SubmittedOnchain, inside an
// existing transaction so it can be combined with marking the
// constituent proofs Verified. submitted_at is left untouched: it was
// already recorded by MarkSubmissionAttempt before the call went out.
func MarkSuperproofSubmittedTx(ctx context.Context, tx *Tx, id int64, txHash string, gasUsed int64, gasCostGwei, ethPriceUSD, totalCostUSD float64) error {
	query := `
		UPDATE superproofs
		SET status = 'SubmittedOnchain', tx_hash = $2, gas_used = $3,
			gas_cost_gwei = $4, eth_price_usd = $5, total_cost_usd = $6,
			updated_at = $7
		WHERE id = $1`
	_, err := tx.Raw().ExecContext(ctx, query, id, txHash, gasUsed, gasCostGwei, ethPriceUSD, totalCostUSD, time.Now())
	if err != nil {
		return fmt.Errorf("store: mark superproof submitted: %w", err)
	}
	return nil
}

// ListByStatus returns superproofs in the given status, oldest first.
func (r *SuperproofRepository) ListByStatus(ctx context.Context, status string) ([]*SuperproofRow, error) {
	query := `
		SELECT id, lane_r_root, lane_s_root, lane_r_leaves_path, lane_s_leaves_path,
			superproof_root, proof_ids_json, status,
			wrapper_proof_path, tx_hash, gas_used, gas_cost_gwei, eth_price_usd, total_cost_usd,
			submitted_at, created_at, updated_at
		FROM superproofs WHERE status = $1 ORDER BY created_at ASC`
	rows, err := r.client.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("store: list superproofs by status: %w", err)
	}
	defer rows.Close()

	var out []*SuperproofRow
	for rows.Next() {
		s := &SuperproofRow{}
		if err := rows.Scan(&s.ID, &s.LaneRRoot, &s.LaneSRoot, &s.LaneRLeavesPath, &s.LaneSLeavesPath,
			&s.SuperproofRoot, &s.ProofIDsJSON, &s.Status,
			&s.WrapperProofPath, &s.TxHash, &s.GasUsed, &s.GasCostGwei, &s.EthPriceUSD, &s.TotalCostUSD,
			&s.SubmittedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan superproof: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
