// Package reduction implements the reduction worker (C5): it picks
// NotPicked ProofGeneration tasks, submits them to an external recursive
// prover through the Backend interface, polls to completion, and
// records the session's cycles on the proof, bounded by a cycle-budget
// accumulator. The receipt of a successful session is neither checked
// with Backend.VerifyReceipt nor stored.
package reduction

import "context"

// SessionState is the terminal or in-flight state of an external
// reduction session.
type SessionState int

const (
	SessionRunning SessionState = iota
	SessionSucceeded
	SessionFailed
)

// PollResult is the outcome of one poll against a reduction session.
type PollResult struct {
	State      SessionState
	Receipt    []byte
	CyclesUsed int64
	Err        error
}

// Backend is the narrow interface to the concrete recursive-proof
// backend (the RISC-Zero session service for non-SP1 schemes, the SP1
// prover for the SP1 lane). Concrete backends are injected at process
// start; this package never constructs one.
type Backend interface {
	// SubmitSession submits a reducer input (the concatenated
	// proof/vkey/pis bytes per the circuit's scheme, an opaque blob
	// whose layout is the reducer program's own ABI) and returns a
	// session id to poll.
	SubmitSession(ctx context.Context, scheme string, input []byte) (sessionID string, err error)

	// Poll checks a session's state. It must not block past one
	// network round trip; the worker itself owns the 15s poll cadence.
	Poll(ctx context.Context, sessionID string) (PollResult, error)

	// VerifyReceipt checks a downloaded receipt locally against the
	// reducer program's verifying id before it is trusted.
	VerifyReceipt(receipt []byte, verifyingID [8]uint32) error
}
