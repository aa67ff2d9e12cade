package batch

import "context"

// LaneSessionState mirrors reduction.SessionState for the aggregation-level
// session a lane prover runs, kept as its own type since a lane session
// carries a STARK receipt before conversion, not a per-proof reduction
// receipt.
type LaneSessionState int

const (
	LaneSessionRunning LaneSessionState = iota
	LaneSessionSucceeded
	LaneSessionFailed
)

// LanePollResult is the outcome of a lane aggregation poll.
type LanePollResult struct {
	State      LaneSessionState
	Receipt    []byte // STARK receipt once Succeeded
	CyclesUsed int64
	Err        error
}

// LaneProver is the narrow interface to one lane's external recursive
// prover (the RISC-Zero Bonsai-style session service for lane R, the
// SP1 prover in Groth16 mode for lane S). Concrete backends are
// injected at process start per spec.md §9.
type LaneProver interface {
	// SubmitAggregation submits the lane's aggregation input (built from
	// the lane's leaves) together with the per-proof reduction receipts
	// as assumptions, and returns a session id to poll.
	SubmitAggregation(ctx context.Context, aggregationInput []byte, assumptions [][]byte) (sessionID string, err error)

	// Poll checks the aggregation session's state.
	Poll(ctx context.Context, sessionID string) (LanePollResult, error)

	// StarkToSnark converts a succeeded session's STARK receipt into a
	// SNARK receipt via a follow-up call, and returns it alongside its
	// public inputs (the journal for lane R, the public values for lane
	// S).
	StarkToSnark(ctx context.Context, sessionID string) (snarkReceipt []byte, publicInputs []byte, err error)

	// VerifyLocally checks a SNARK receipt against the aggregation
	// image's verifying id before it is trusted.
	VerifyLocally(snarkReceipt []byte, verifyingID [8]uint32) error
}

// EmptyLaneResult is the precomputed SP1 lane result used when a batch
// has no SP1 proofs; the final wrapper still consumes two inputs per
// spec.md §4.6.
type EmptyLaneResult struct {
	SnarkReceipt  []byte
	PublicInputs  []byte
	Root          [32]byte
}

// EmptyLaneLoader loads the precomputed empty-lane SNARK and root from
// stable storage.
type EmptyLaneLoader interface {
	LoadEmptyLaneS(ctx context.Context) (*EmptyLaneResult, error)
}
