package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ProofRepository handles proof CRUD and the lane-partition queries C6
// depends on to select a batch.
type ProofRepository struct {
	client *Client
}

func NewProofRepository(client *Client) *ProofRepository {
	return &ProofRepository{client: client}
}

// ProofRow is the persisted shape of domain.Proof.
type ProofRow struct {
	ID                 int64
	Hash               []byte
	CircuitHash        []byte
	ProofPath          string
	PisPath            string
	PublicInputsJSON   []byte
	Status             string
	ReductionSessionID sql.NullString
	CyclesUsed         sql.NullInt64
	ReductionTimeS     sql.NullFloat64
	SuperproofID       sql.NullInt64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (r *ProofRepository) Create(ctx context.Context, p *ProofRow) (int64, error) {
	query := `
		INSERT INTO proofs (hash, circuit_hash, proof_path, pis_path, public_inputs_json, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	now := time.Now()
	var id int64
	err := r.client.QueryRowContext(ctx, query,
		p.Hash, p.CircuitHash, p.ProofPath, p.PisPath, p.PublicInputsJSON, p.Status, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: create proof: %w", err)
	}
	return id, nil
}

func (r *ProofRepository) GetByHash(ctx context.Context, hash []byte) (*ProofRow, error) {
	query := `
		SELECT id, hash, circuit_hash, proof_path, pis_path, public_inputs_json, status,
			reduction_session_id, cycles_used, reduction_time_s, superproof_id, created_at, updated_at
		FROM proofs WHERE hash = $1`
	p := &ProofRow{}
	err := r.client.QueryRowContext(ctx, query, hash).Scan(
		&p.ID, &p.Hash, &p.CircuitHash, &p.ProofPath, &p.PisPath, &p.PublicInputsJSON, &p.Status,
		&p.ReductionSessionID, &p.CyclesUsed, &p.ReductionTimeS, &p.SuperproofID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProofNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get proof by hash: %w", err)
	}
	return p, nil
}

func (r *ProofRepository) GetByID(ctx context.Context, id int64) (*ProofRow, error) {
	query := `
		SELECT id, hash, circuit_hash, proof_path, pis_path, public_inputs_json, status,
			reduction_session_id, cycles_used, reduction_time_s, superproof_id, created_at, updated_at
		FROM proofs WHERE id = $1`
	p := &ProofRow{}
	err := r.client.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Hash, &p.CircuitHash, &p.ProofPath, &p.PisPath, &p.PublicInputsJSON, &p.Status,
		&p.ReductionSessionID, &p.CyclesUsed, &p.ReductionTimeS, &p.SuperproofID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProofNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get proof by id: %w", err)
	}
	return p, nil
}

// UpdateStatus sets a proof's status.
func (r *ProofRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	_, err := r.client.ExecContext(ctx, `UPDATE proofs SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("store: update proof status: %w", err)
	}
	return nil
}

// MarkReducing transitions a proof to Reducing and records its session id.
func (r *ProofRepository) MarkReducing(ctx context.Context, id int64, sessionID string) error {
	query := `UPDATE proofs SET status = $2, reduction_session_id = $3, updated_at = $4 WHERE id = $1`
	_, err := r.client.ExecContext(ctx, query, id, "Reducing", sessionID, time.Now())
	if err != nil {
		return fmt.Errorf("store: mark proof reducing: %w", err)
	}
	return nil
}

// MarkReduced transitions a proof to Reduced, recording cycles used and
// reduction wall-clock time.
func (r *ProofRepository) MarkReduced(ctx context.Context, id int64, cyclesUsed int64, reductionTimeS float64) error {
	query := `UPDATE proofs SET status = $2, cycles_used = $3, reduction_time_s = $4, updated_at = $5 WHERE id = $1`
	_, err := r.client.ExecContext(ctx, query, id, "Reduced", cyclesUsed, reductionTimeS, time.Now())
	if err != nil {
		return fmt.Errorf("store: mark proof reduced: %w", err)
	}
	return nil
}

// GetReducedProofsLaneR returns up to limit Reduced proofs whose circuit
// scheme is not SP1, oldest id first. Grounded on original_source's
// get_reduced_proofs_r0 query.
func (r *ProofRepository) GetReducedProofsLaneR(ctx context.Context, limit int) ([]*ProofRow, error) {
	return r.getReducedProofsByLane(ctx, limit, "!=")
}

// GetReducedProofsLaneS returns up to limit Reduced proofs whose circuit
// scheme is SP1, oldest id first. Grounded on original_source's
// get_reduced_proofs_sp1 query.
func (r *ProofRepository) GetReducedProofsLaneS(ctx context.Context, limit int) ([]*ProofRow, error) {
	return r.getReducedProofsByLane(ctx, limit, "=")
}

// CountReducedLaneR returns the number of Reduced proofs whose circuit
// scheme is not SP1, for the lane R queue-depth gauge.
func (r *ProofRepository) CountReducedLaneR(ctx context.Context) (int64, error) {
	return r.countReducedByLane(ctx, "!=")
}

// CountReducedLaneS returns the number of Reduced proofs whose circuit
// scheme is SP1, for the lane S queue-depth gauge.
func (r *ProofRepository) CountReducedLaneS(ctx context.Context) (int64, error) {
	return r.countReducedByLane(ctx, "=")
}

func (r *ProofRepository) countReducedByLane(ctx context.Context, cmp string) (int64, error) {
	query := fmt.Sprintf(`
		SELECT count(*)
		FROM proofs p
		JOIN circuits c ON c.hash = p.circuit_hash
		WHERE p.status = 'Reduced' AND c.scheme %s 'SP1'`, cmp)
	var n int64
	if err := r.client.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count reduced proofs by lane: %w", err)
	}
	return n, nil
}

func (r *ProofRepository) getReducedProofsByLane(ctx context.Context, limit int, cmp string) ([]*ProofRow, error) {
	query := fmt.Sprintf(`
		SELECT p.id, p.hash, p.circuit_hash, p.proof_path, p.pis_path, p.public_inputs_json, p.status,
			p.reduction_session_id, p.cycles_used, p.reduction_time_s, p.superproof_id, p.created_at, p.updated_at
		FROM proofs p
		JOIN circuits c ON c.hash = p.circuit_hash
		WHERE p.status = 'Reduced' AND c.scheme %s 'SP1'
		ORDER BY p.id ASC
		LIMIT $1`, cmp)

	rows, err := r.client.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list reduced proofs by lane: %w", err)
	}
	defer rows.Close()

	var out []*ProofRow
	for rows.Next() {
		p := &ProofRow{}
		if err := rows.Scan(&p.ID, &p.Hash, &p.CircuitHash, &p.ProofPath, &p.PisPath, &p.PublicInputsJSON, &p.Status,
			&p.ReductionSessionID, &p.CyclesUsed, &p.ReductionTimeS, &p.SuperproofID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan proof: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetReducedOldestFirst returns up to limit Reduced proofs regardless of
// lane, oldest id first, for C6 step 2 before lane partition.
func (r *ProofRepository) GetReducedOldestFirst(ctx context.Context, limit int) ([]*ProofRow, error) {
	query := `
		SELECT id, hash, circuit_hash, proof_path, pis_path, public_inputs_json, status,
			reduction_session_id, cycles_used, reduction_time_s, superproof_id, created_at, updated_at
		FROM proofs WHERE status = 'Reduced' ORDER BY id ASC LIMIT $1`
	rows, err := r.client.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list reduced proofs: %w", err)
	}
	defer rows.Close()

	var out []*ProofRow
	for rows.Next() {
		p := &ProofRow{}
		if err := rows.Scan(&p.ID, &p.Hash, &p.CircuitHash, &p.ProofPath, &p.PisPath, &p.PublicInputsJSON, &p.Status,
			&p.ReductionSessionID, &p.CyclesUsed, &p.ReductionTimeS, &p.SuperproofID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan proof: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AssignToSuperproofTx sets status = Aggregating and superproof_id for
// every id in ids, inside an existing transaction.
func AssignToSuperproofTx(ctx context.Context, tx *Tx, ids []int64, superproofID int64) error {
	query := `UPDATE proofs SET status = 'Aggregating', superproof_id = $2, updated_at = $3 WHERE id = ANY($1)`
	_, err := tx.Raw().ExecContext(ctx, query, pqInt64Array(ids), superproofID, time.Now())
	if err != nil {
		return fmt.Errorf("store: assign proofs to superproof: %w", err)
	}
	return nil
}

// MarkVerifiedTx sets status = Verified for every id in ids, inside an
// existing transaction (used alongside the superproof's own
// SubmittedOnchain update).
func MarkVerifiedTx(ctx context.Context, tx *Tx, ids []int64) error {
	query := `UPDATE proofs SET status = 'Verified', updated_at = $2 WHERE id = ANY($1)`
	_, err := tx.Raw().ExecContext(ctx, query, pqInt64Array(ids), time.Now())
	if err != nil {
		return fmt.Errorf("store: mark proofs verified: %w", err)
	}
	return nil
}

// MarkAggregationFailedTx sets status = AggregationFailed for every id
// in ids, inside an existing transaction.
func MarkAggregationFailedTx(ctx context.Context, tx *Tx, ids []int64) error {
	query := `UPDATE proofs SET status = 'AggregationFailed', updated_at = $2 WHERE id = ANY($1)`
	_, err := tx.Raw().ExecContext(ctx, query, pqInt64Array(ids), time.Now())
	if err != nil {
		return fmt.Errorf("store: mark proofs aggregation-failed: %w", err)
	}
	return nil
}
