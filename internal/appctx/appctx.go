// Package appctx bundles the aggregator's shared collaborators into one
// explicitly passed struct, replacing any process-wide singleton: the
// connection pool, repositories, scheme registry, cycle accumulator,
// and root logger (from which per-subsystem loggers are derived) all
// live here and are handed to each loop at construction time. The
// injected backends are not part of it; each loop takes its own.
package appctx

import (
	"log"
	"sync"

	"github.com/certen/proof-aggregator/internal/registry"
	"github.com/certen/proof-aggregator/internal/store"
)

// Context is the dependency bundle shared by the reduction worker, the
// batch scheduler, the on-chain submitter, and the inclusion service.
// It carries no behavior of its own beyond construction and the cycle
// accumulator; every loop reads it once at startup and otherwise talks
// directly to the fields it needs.
type Context struct {
	DB *store.Client

	Protocols   *store.ProtocolRepository
	Circuits    *store.CircuitRepository
	Proofs      *store.ProofRepository
	Tasks       *store.TaskRepository
	Superproofs *store.SuperproofRepository
	Cost        *store.CostRepository

	Schemes *registry.Registry

	Cycles *CycleAccumulator

	Logger *log.Logger
}

// New wires a Context from an already-open store.Client. Callers build
// the Client (and run its migrations) before constructing a Context, so
// that a failed migration never leaves a half-wired Context around.
func New(db *store.Client, cycleBudget int64) *Context {
	return &Context{
		DB:          db,
		Protocols:   store.NewProtocolRepository(db),
		Circuits:    store.NewCircuitRepository(db),
		Proofs:      store.NewProofRepository(db),
		Tasks:       store.NewTaskRepository(db),
		Superproofs: store.NewSuperproofRepository(db),
		Cost:        store.NewCostRepository(db),
		Schemes:     registry.NewDefaultRegistry(),
		Cycles:      NewCycleAccumulator(cycleBudget),
		Logger:      log.New(log.Writer(), "[Aggregator] ", log.LstdFlags),
	}
}

// SubLogger returns a logger for one subsystem, matching the teacher's
// one-prefixed-logger-per-subsystem convention.
func (c *Context) SubLogger(name string) *log.Logger {
	return log.New(log.Writer(), "["+name+"] ", log.LstdFlags)
}

// CycleAccumulator tracks aggregate proving-cycle consumption against a
// fixed budget so the reduction worker can apply backpressure instead of
// admitting sessions the lane hardware cannot actually carry. It is the
// "small guarded struct" the redesign favors over a package-level
// mutex-protected global.
type CycleAccumulator struct {
	mu     sync.Mutex
	budget int64
	used   int64
}

// NewCycleAccumulator creates an accumulator with the given total cycle
// budget. A non-positive budget disables backpressure: TryReserveBatch
// always succeeds.
func NewCycleAccumulator(budget int64) *CycleAccumulator {
	return &CycleAccumulator{budget: budget}
}

// Add records cycles consumed by a completed reduction session,
// independent of whether it was reserved in advance.
func (c *CycleAccumulator) Add(cycles int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.used += cycles
}

// Release returns previously reserved cycles, used when a reserved
// session fails before consuming its estimate.
func (c *CycleAccumulator) Release(cycles int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.used -= cycles
	if c.used < 0 {
		c.used = 0
	}
}

// TryReserveBatch reports whether estimatedCycles fit within the
// remaining budget, and if so reserves them atomically. Callers that
// fail to start the reserved work must call Release.
func (c *CycleAccumulator) TryReserveBatch(estimatedCycles int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.budget <= 0 {
		c.used += estimatedCycles
		return true
	}
	if c.used+estimatedCycles > c.budget {
		return false
	}
	c.used += estimatedCycles
	return true
}

// Used returns the current accumulated cycle count.
func (c *CycleAccumulator) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Remaining returns budget - used, or a very large number if budget is
// disabled.
func (c *CycleAccumulator) Remaining() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.budget <= 0 {
		return 1<<62 - 1
	}
	if c.used >= c.budget {
		return 0
	}
	return c.budget - c.used
}
