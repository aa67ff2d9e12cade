package reduction

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/certen/proof-aggregator/internal/appctx"
	"github.com/certen/proof-aggregator/internal/domain"
	"github.com/certen/proof-aggregator/internal/metrics"
	"github.com/certen/proof-aggregator/internal/store"
)

// ArtifactStore reads the opaque proof/vkey/pis byte blobs the reducer
// program's ABI consumes. Filesystem layout of large artifacts is out
// of scope for the core; this interface is the seam a deployment wires
// to its actual storage_folder_path.
type ArtifactStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// WorkerState mirrors the teacher's SchedulerState: Stopped/Running/Paused.
type WorkerState string

const (
	StateStopped WorkerState = "stopped"
	StateRunning WorkerState = "running"
	StatePaused  WorkerState = "paused"
)

// Params configures the reduction worker.
type Params struct {
	SleepInterval        time.Duration // W, between ticks
	PollInterval         time.Duration // DefaultPollInterval (15s) when zero
	ParallelSessionLimit int
	PerBatchMaxCycles    int64
}

// DefaultPollInterval is the poll cadence New applies when
// Params.PollInterval is zero.
const DefaultPollInterval = 15 * time.Second

// Worker is the reduction worker (C5).
type Worker struct {
	mu sync.RWMutex

	app      *appctx.Context
	backend  Backend
	artifact ArtifactStore
	params   Params
	logger   *log.Logger

	// Metrics is optional; when set, tick() reports the cycle-accumulator
	// level to it. A nil Metrics disables reporting rather than panicking.
	Metrics *metrics.Registry

	state  WorkerState
	stopCh chan struct{}
	doneCh chan struct{}
}

func New(app *appctx.Context, backend Backend, artifact ArtifactStore, params Params) *Worker {
	if params.PollInterval == 0 {
		params.PollInterval = DefaultPollInterval
	}
	return &Worker{
		app:      app,
		backend:  backend,
		artifact: artifact,
		params:   params,
		logger:   app.SubLogger("Reduction"),
		state:    StateStopped,
	}
}

// Start runs the tick loop in a goroutine until ctx is cancelled or
// Stop is called.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.state == StateRunning {
		w.mu.Unlock()
		return
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.state = StateRunning
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop signals the loop to exit and waits for in-flight sessions'
// outer goroutines to return (the sessions themselves outlive the
// process per spec.md §5 and are re-discovered by session_id).
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state != StateRunning {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.state = StateStopped
	w.mu.Unlock()

	<-w.doneCh
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.params.SleepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick reads all NotPicked ProofGeneration tasks and fans them out under
// a semaphore bounded by ParallelSessionLimit. Each task runs in its own
// goroutine; the blocking poll loop inside does not hold a database
// connection across polls.
func (w *Worker) tick(ctx context.Context) {
	if w.Metrics != nil {
		w.Metrics.CycleAccumulator.Set(float64(w.app.Cycles.Used()))
	}

	tasks, err := w.app.Tasks.ListNotPickedByKind(ctx, string(domain.TaskProofGeneration), w.params.ParallelSessionLimit*4)
	if err != nil {
		w.logger.Printf("list reduction tasks: %v", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	if w.app.Cycles.Remaining() <= 0 {
		w.logger.Println("cycle accumulator exhausted, skipping tick")
		return
	}

	sem := make(chan struct{}, w.params.ParallelSessionLimit)
	var wg sync.WaitGroup

	for _, task := range tasks {
		sem <- struct{}{}
		wg.Add(1)
		go func(t *store.TaskRow) {
			defer wg.Done()
			defer func() { <-sem }()
			w.processTask(ctx, t)
		}(task)
	}

	wg.Wait()
}

func (w *Worker) processTask(ctx context.Context, task *store.TaskRow) {
	claimed, err := w.app.Tasks.TryClaim(ctx, task.ID)
	if err != nil {
		w.logger.Printf("claim task %d: %v", task.ID, err)
		return
	}
	if !claimed {
		return
	}

	proof, err := w.app.Proofs.GetByHash(ctx, task.TargetHash)
	if err != nil {
		w.fail(ctx, task.ID, 0, fmt.Sprintf("lookup proof: %v", err))
		return
	}
	if err := w.app.Proofs.UpdateStatus(ctx, proof.ID, string(domain.ProofReducing)); err != nil {
		w.fail(ctx, task.ID, proof.ID, fmt.Sprintf("mark reducing: %v", err))
		return
	}

	circuit, err := w.app.Circuits.GetByHash(ctx, proof.CircuitHash)
	if err != nil {
		w.fail(ctx, task.ID, proof.ID, fmt.Sprintf("lookup circuit: %v", err))
		return
	}

	input, err := w.buildReducerInput(ctx, circuit, proof)
	if err != nil {
		w.fail(ctx, task.ID, proof.ID, fmt.Sprintf("build reducer input: %v", err))
		return
	}

	sessionID, err := w.backend.SubmitSession(ctx, circuit.Scheme, input)
	if err != nil {
		w.fail(ctx, task.ID, proof.ID, fmt.Sprintf("submit session: %v", err))
		return
	}
	if err := w.app.Proofs.MarkReducing(ctx, proof.ID, sessionID); err != nil {
		w.logger.Printf("record session id for proof %d: %v", proof.ID, err)
	}

	result := w.pollUntilTerminal(ctx, sessionID)
	if result.Err != nil || result.State == SessionFailed {
		msg := "reduction session failed"
		if result.Err != nil {
			msg = result.Err.Error()
		}
		w.fail(ctx, task.ID, proof.ID, msg)
		return
	}

	w.app.Cycles.Add(result.CyclesUsed)
	if err := w.app.Proofs.MarkReduced(ctx, proof.ID, result.CyclesUsed, 0); err != nil {
		w.logger.Printf("mark proof %d reduced: %v", proof.ID, err)
		return
	}
	if err := w.app.Tasks.MarkCompleted(ctx, task.ID); err != nil {
		w.logger.Printf("mark task %d completed: %v", task.ID, err)
	}
}

// pollUntilTerminal polls every PollInterval with no hard timeout: a
// non-terminal stall is acceptable per spec.md §5, and the external
// session outlives the process on shutdown.
func (w *Worker) pollUntilTerminal(ctx context.Context, sessionID string) PollResult {
	ticker := time.NewTicker(w.params.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return PollResult{State: SessionRunning}
		case <-ticker.C:
			result, err := w.backend.Poll(ctx, sessionID)
			if err != nil {
				return PollResult{State: SessionFailed, Err: err}
			}
			if result.State != SessionRunning {
				return result
			}
		}
	}
}

func (w *Worker) buildReducerInput(ctx context.Context, circuit *store.CircuitRow, proof *store.ProofRow) ([]byte, error) {
	vk, err := w.artifact.Read(ctx, circuit.VKPath)
	if err != nil {
		return nil, fmt.Errorf("read vkey: %w", err)
	}
	pf, err := w.artifact.Read(ctx, proof.ProofPath)
	if err != nil {
		return nil, fmt.Errorf("read proof: %w", err)
	}
	pis, err := w.artifact.Read(ctx, proof.PisPath)
	if err != nil {
		return nil, fmt.Errorf("read pis: %w", err)
	}
	// Concatenation order (vkey, proof, pis) is the reducer program's own
	// ABI; it is opaque to the core per spec.md §4.5.
	out := make([]byte, 0, len(vk)+len(pf)+len(pis))
	out = append(out, vk...)
	out = append(out, pf...)
	out = append(out, pis...)
	return out, nil
}

func (w *Worker) fail(ctx context.Context, taskID, proofID int64, msg string) {
	if proofID != 0 {
		if err := w.app.Proofs.UpdateStatus(ctx, proofID, string(domain.ProofReductionFailed)); err != nil {
			w.logger.Printf("mark proof %d reduction-failed: %v", proofID, err)
		}
	}
	if err := w.app.Tasks.MarkFailed(ctx, taskID, msg, false); err != nil {
		w.logger.Printf("mark task %d failed: %v", taskID, err)
	}
	w.logger.Printf("reduction task %d failed: %s", taskID, msg)
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}
