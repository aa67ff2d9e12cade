package store

import "errors"

// Sentinel not-found errors, one per entity, matching the teacher's
// ErrNotFound family. The taskmachine and inclusion packages translate
// the ones a caller can trigger (unknown protocol, circuit or proof) to
// apperr.NotFound; store itself stays SQL-only.
var (
	ErrProtocolNotFound   = errors.New("store: protocol not found")
	ErrCircuitNotFound    = errors.New("store: circuit not found")
	ErrProofNotFound      = errors.New("store: proof not found")
	ErrTaskNotFound       = errors.New("store: task not found")
	ErrSuperproofNotFound = errors.New("store: superproof not found")
)
