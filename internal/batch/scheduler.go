package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/certen/proof-aggregator/internal/appctx"
	"github.com/certen/proof-aggregator/internal/domain"
	"github.com/certen/proof-aggregator/internal/merkle"
	"github.com/certen/proof-aggregator/internal/metrics"
	"github.com/certen/proof-aggregator/internal/store"
)

// ArtifactStore reads the vkey/proof/pis byte blobs a lane aggregation
// input is built from, and persists each lane's leaf vector so C8 can
// later reload it to recompute an inclusion proof. Read has the same
// shape as reduction.ArtifactStore; kept as its own interface so batch
// does not import reduction for one method.
type ArtifactStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
}

// SchedulerState mirrors the teacher's batch scheduler lifecycle.
type SchedulerState string

const (
	SchedulerStateStopped SchedulerState = "stopped"
	SchedulerStateRunning SchedulerState = "running"
	SchedulerStatePaused  SchedulerState = "paused"
)

// Params configures the batch scheduler per spec.md §4.6.
type Params struct {
	CheckInterval      time.Duration // how often to evaluate the gate
	BatchSize          int           // max proofs pulled per batch
	AggregationWaitTime time.Duration // minimum gap since the last SubmittedOnchain superproof
	LanePollInterval   time.Duration
}

// DefaultLanePollInterval is the fixed cadence for polling a lane
// aggregation session, matching the reduction worker's poll cadence.
const DefaultLanePollInterval = 15 * time.Second

// Scheduler runs the C6 batch-aggregation loop: gate on wait time, pull
// the oldest Reduced proofs, partition into lanes, run both lane
// provers, wrap with the final Groth16 circuit, and persist the result.
type Scheduler struct {
	mu sync.RWMutex

	app      *appctx.Context
	artifact ArtifactStore
	laneR    LaneProver
	laneS    LaneProver
	emptyS   EmptyLaneLoader
	wrapper  FinalWrapper
	params   Params
	logger   *log.Logger

	// Metrics is optional; when set, tick() reports lane queue depths to
	// it. A nil Metrics disables reporting rather than panicking.
	Metrics *metrics.Registry

	state  SchedulerState
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewScheduler(app *appctx.Context, artifact ArtifactStore, laneR, laneS LaneProver, emptyS EmptyLaneLoader, wrapper FinalWrapper, params Params) *Scheduler {
	if params.LanePollInterval == 0 {
		params.LanePollInterval = DefaultLanePollInterval
	}
	return &Scheduler{
		app:      app,
		artifact: artifact,
		laneR:    laneR,
		laneS:    laneS,
		emptyS:   emptyS,
		wrapper:  wrapper,
		params:   params,
		logger:   app.SubLogger("BatchScheduler"),
		state:    SchedulerStateStopped,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state == SchedulerStateRunning {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.state = SchedulerStateRunning
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != SchedulerStateRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.state = SchedulerStateStopped
	s.mu.Unlock()

	<-s.doneCh
}

func (s *Scheduler) State() SchedulerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.params.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one batch-aggregation attempt per spec.md §4.6 steps 1-4. It
// is a no-op if the wait-time gate has not elapsed or fewer than one
// Reduced proof is available.
func (s *Scheduler) tick(ctx context.Context) {
	s.reportQueueDepth(ctx)

	ready, err := s.waitTimeElapsed(ctx)
	if err != nil {
		s.logger.Printf("check wait time: %v", err)
		return
	}
	if !ready {
		return
	}

	proofs, err := s.app.Proofs.GetReducedOldestFirst(ctx, s.params.BatchSize)
	if err != nil {
		s.logger.Printf("list reduced proofs: %v", err)
		return
	}
	if len(proofs) == 0 {
		return
	}

	if err := s.runBatch(ctx, proofs); err != nil {
		s.logger.Printf("batch aggregation failed: %v", err)
	}
}

// reportQueueDepth updates the per-lane queue-depth gauges, a no-op if
// Metrics was never wired in.
func (s *Scheduler) reportQueueDepth(ctx context.Context) {
	if s.Metrics == nil {
		return
	}
	if n, err := s.app.Proofs.CountReducedLaneR(ctx); err == nil {
		s.Metrics.QueueDepthLaneR.Set(float64(n))
	}
	if n, err := s.app.Proofs.CountReducedLaneS(ctx); err == nil {
		s.Metrics.QueueDepthLaneS.Set(float64(n))
	}
}

// waitTimeElapsed reports whether enough time has passed since the most
// recently submitted superproof. A fresh deployment with no prior
// SubmittedOnchain superproof is always ready.
func (s *Scheduler) waitTimeElapsed(ctx context.Context) (bool, error) {
	submitted, err := s.app.Superproofs.ListByStatus(ctx, string(domain.SuperproofSubmittedOnchain))
	if err != nil {
		return false, err
	}
	if len(submitted) == 0 {
		return true, nil
	}
	last := submitted[len(submitted)-1]
	if !last.SubmittedAt.Valid {
		return true, nil
	}
	return time.Since(last.SubmittedAt.Time) >= s.params.AggregationWaitTime, nil
}

// runBatch executes the full aggregation pipeline for one selected set
// of Reduced proofs.
func (s *Scheduler) runBatch(ctx context.Context, proofs []*store.ProofRow) error {
	ids := make([]int64, len(proofs))
	for i, p := range proofs {
		ids[i] = p.ID
	}

	superproofID, err := s.app.Superproofs.Create(ctx)
	if err != nil {
		return fmt.Errorf("create superproof: %w", err)
	}

	estimatedCycles := int64(0)
	for _, p := range proofs {
		if p.CyclesUsed.Valid {
			estimatedCycles += p.CyclesUsed.Int64
		}
	}
	if !s.app.Cycles.TryReserveBatch(estimatedCycles) {
		s.logger.Printf("cycle budget exhausted, deferring superproof %d", superproofID)
		return s.app.Superproofs.UpdateStatus(ctx, superproofID, string(domain.SuperproofFailed))
	}

	tx, err := s.app.DB.BeginTx(ctx)
	if err != nil {
		s.app.Cycles.Release(estimatedCycles)
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := store.AssignToSuperproofTx(ctx, tx, ids, superproofID); err != nil {
		tx.Rollback()
		s.app.Cycles.Release(estimatedCycles)
		return fmt.Errorf("assign proofs to superproof: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.app.Cycles.Release(estimatedCycles)
		return fmt.Errorf("commit proof assignment: %w", err)
	}

	members, err := s.buildLaneMembers(ctx, proofs)
	if err != nil {
		s.failBatch(ctx, superproofID, ids, estimatedCycles)
		return fmt.Errorf("build lane members: %w", err)
	}
	laneR, laneS := PartitionMembers(members)

	// Both lanes poll an external prover to a terminal state; run them
	// concurrently so total wall-clock is the slower lane, not the sum
	// of both.
	var wg sync.WaitGroup
	var rResult, sResult *laneResult
	var rErr, sErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		rResult, rErr = s.runLane(ctx, superproofID, domain.LaneR, s.laneR, laneR)
	}()
	go func() {
		defer wg.Done()
		if len(laneS) == 0 {
			sResult, sErr = s.emptyLaneSResult(ctx)
			return
		}
		sResult, sErr = s.runLane(ctx, superproofID, domain.LaneS, s.laneS, laneS)
	}()
	wg.Wait()

	if rErr != nil {
		s.failBatch(ctx, superproofID, ids, estimatedCycles)
		return fmt.Errorf("lane R aggregation: %w", rErr)
	}
	if sErr != nil {
		s.failBatch(ctx, superproofID, ids, estimatedCycles)
		return fmt.Errorf("lane S aggregation: %w", sErr)
	}

	wrapOut, err := s.wrapper.Wrap(WrapInput{
		LaneRRoot:             rResult.root,
		LaneSRoot:             sResult.root,
		LaneRPublicInputsHash: merkle.H(rResult.publicInputs),
		LaneSPublicInputsHash: merkle.H(sResult.publicInputs),
	})
	if err != nil {
		s.failBatch(ctx, superproofID, ids, estimatedCycles)
		return fmt.Errorf("final wrap: %w", err)
	}

	superproofRoot := merkle.Combine(merkle.Hash(rResult.root), merkle.Hash(sResult.root))

	proofIDsJSON, err := json.Marshal(ids)
	if err != nil {
		s.failBatch(ctx, superproofID, ids, estimatedCycles)
		return fmt.Errorf("marshal proof ids: %w", err)
	}

	wrapperBytes, err := json.Marshal(wrapOut)
	if err != nil {
		s.failBatch(ctx, superproofID, ids, estimatedCycles)
		return fmt.Errorf("marshal wrapper proof: %w", err)
	}
	wrapperPath := fmt.Sprintf("superproofs/%d/wrapper_proof.json", superproofID)
	if err := s.artifact.Write(ctx, wrapperPath, wrapperBytes); err != nil {
		s.failBatch(ctx, superproofID, ids, estimatedCycles)
		return fmt.Errorf("persist wrapper proof: %w", err)
	}
	if err := s.app.Superproofs.SetRootsAndProving(ctx,
		superproofID,
		merkle.Hash(rResult.root).HexString(),
		merkle.Hash(sResult.root).HexString(),
		rResult.leavesPath,
		sResult.leavesPath,
		superproofRoot.HexString(),
		proofIDsJSON,
		wrapperPath,
	); err != nil {
		s.failBatch(ctx, superproofID, ids, estimatedCycles)
		return fmt.Errorf("persist superproof roots: %w", err)
	}

	s.logger.Printf("superproof %d aggregated: %d proofs (lane R=%d, lane S=%d), wrapper proof_a=%s", superproofID, len(ids), len(laneR), len(laneS), wrapOut.ProofA[0].String())
	return nil
}

func (s *Scheduler) failBatch(ctx context.Context, superproofID int64, ids []int64, reservedCycles int64) {
	s.app.Cycles.Release(reservedCycles)
	if err := s.app.Superproofs.UpdateStatus(ctx, superproofID, string(domain.SuperproofFailed)); err != nil {
		s.logger.Printf("mark superproof %d failed: %v", superproofID, err)
	}
	tx, err := s.app.DB.BeginTx(ctx)
	if err != nil {
		s.logger.Printf("begin rollback transaction: %v", err)
		return
	}
	if err := store.MarkAggregationFailedTx(ctx, tx, ids); err != nil {
		tx.Rollback()
		s.logger.Printf("mark proofs aggregation-failed: %v", err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.logger.Printf("commit aggregation-failed: %v", err)
	}
	// No auto-retry per spec.md §4.6: a failed superproof is terminal and
	// requires operator intervention to resubmit its proofs.
}

func (s *Scheduler) buildLaneMembers(ctx context.Context, proofs []*store.ProofRow) ([]LaneMember, error) {
	members := make([]LaneMember, 0, len(proofs))
	for _, p := range proofs {
		circuit, err := s.app.Circuits.GetByHash(ctx, p.CircuitHash)
		if err != nil {
			return nil, fmt.Errorf("lookup circuit for proof %d: %w", p.ID, err)
		}
		vkBytes, err := s.artifact.Read(ctx, circuit.VKPath)
		if err != nil {
			return nil, fmt.Errorf("read vkey for proof %d: %w", p.ID, err)
		}
		pisBytes, err := s.artifact.Read(ctx, p.PisPath)
		if err != nil {
			return nil, fmt.Errorf("read pis for proof %d: %w", p.ID, err)
		}
		var cycles int64
		if p.CyclesUsed.Valid {
			cycles = p.CyclesUsed.Int64
		}
		member, err := BuildLaneMember(s.app.Schemes, domain.Scheme(circuit.Scheme), p.ID, cycles, vkBytes, pisBytes, circuit.NPublicInputs)
		if err != nil {
			return nil, fmt.Errorf("build lane member for proof %d: %w", p.ID, err)
		}
		members = append(members, member)
	}
	return members, nil
}

// laneResult is a lane's aggregation output after STARK-to-SNARK
// conversion. The SNARK receipt is not kept and is not checked with
// LaneProver.VerifyLocally. leavesPath is empty for the empty-lane-S
// fallback, which has no leaf vector to reload.
type laneResult struct {
	root         [32]byte
	publicInputs []byte
	leavesPath   string
}

func (s *Scheduler) runLane(ctx context.Context, superproofID int64, lane domain.Lane, prover LaneProver, members []LaneMember) (*laneResult, error) {
	leaves, err := BuildLeaves(members)
	if err != nil {
		return nil, fmt.Errorf("build lane %s leaves: %w", lane, err)
	}
	tree := merkle.New()
	if err := tree.Build(leaves); err != nil {
		return nil, fmt.Errorf("build lane %s tree: %w", lane, err)
	}
	root, err := tree.Root()
	if err != nil {
		return nil, err
	}

	aggInput, err := json.Marshal(leaves)
	if err != nil {
		return nil, fmt.Errorf("marshal lane %s aggregation input: %w", lane, err)
	}

	leavesPath := fmt.Sprintf("superproofs/%d/lane_%s_leaves.json", superproofID, lane)
	if err := s.artifact.Write(ctx, leavesPath, aggInput); err != nil {
		return nil, fmt.Errorf("persist lane %s leaves: %w", lane, err)
	}

	sessionID, err := prover.SubmitAggregation(ctx, aggInput, nil)
	if err != nil {
		return nil, fmt.Errorf("submit lane %s aggregation: %w", lane, err)
	}

	result := s.pollLaneUntilTerminal(ctx, prover, sessionID)
	if result.Err != nil || result.State == LaneSessionFailed {
		msg := "lane aggregation session failed"
		if result.Err != nil {
			msg = result.Err.Error()
		}
		return nil, fmt.Errorf("%s", msg)
	}

	_, publicInputs, err := prover.StarkToSnark(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lane %s stark-to-snark: %w", lane, err)
	}

	s.app.Cycles.Add(result.CyclesUsed)

	return &laneResult{root: root, publicInputs: publicInputs, leavesPath: leavesPath}, nil
}

func (s *Scheduler) pollLaneUntilTerminal(ctx context.Context, prover LaneProver, sessionID string) LanePollResult {
	ticker := time.NewTicker(s.params.LanePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return LanePollResult{State: LaneSessionRunning}
		case <-ticker.C:
			result, err := prover.Poll(ctx, sessionID)
			if err != nil {
				return LanePollResult{State: LaneSessionFailed, Err: err}
			}
			if result.State != LaneSessionRunning {
				return result
			}
		}
	}
}

// emptyLaneSResult loads the precomputed empty-lane-S fallback per
// spec.md §4.6, used when a batch has no SP1 proofs.
func (s *Scheduler) emptyLaneSResult(ctx context.Context) (*laneResult, error) {
	loaded, err := s.emptyS.LoadEmptyLaneS(ctx)
	if err != nil {
		return nil, fmt.Errorf("load empty lane S fallback: %w", err)
	}
	return &laneResult{root: loaded.Root, publicInputs: loaded.PublicInputs}, nil
}
