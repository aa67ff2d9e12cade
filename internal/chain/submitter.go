package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/certen/proof-aggregator/internal/appctx"
	"github.com/certen/proof-aggregator/internal/domain"
	"github.com/certen/proof-aggregator/internal/metrics"
	"github.com/certen/proof-aggregator/internal/store"
)

// ArtifactStore reads the vkey/pis bytes needed to rebuild each batch
// entry's (vk_hash, pis_hash) pair at submission time.
type ArtifactStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// SubmitterState mirrors the teacher's scheduler lifecycle enum.
type SubmitterState string

const (
	SubmitterStateStopped SubmitterState = "stopped"
	SubmitterStateRunning SubmitterState = "running"
)

// Params configures the on-chain submitter.
type Params struct {
	CheckInterval       time.Duration
	BatchSize           int
	GasLimit            uint64
	RetryCount          int // chain-send retry attempts, no back-off
	PriceRetryAttempts  int // base-fee/eth-price retry attempts, default 5
	BaselinePerProofGas int64
}

// DefaultPriceRetryAttempts matches spec.md §4.7's "each up to 5 attempts".
const DefaultPriceRetryAttempts = 5

// Submitter runs the two independent C7 loops: the ProvingDone
// submission loop and the SmartContractRegistrationPending registration
// loop, sharing one ticker-driven lifecycle per loop.
type Submitter struct {
	mu sync.RWMutex

	app      *appctx.Context
	backend  ChainBackend
	oracle   PriceOracle
	artifact ArtifactStore
	params   Params
	logger   *log.Logger

	// Metrics is optional; when set, submissionTick() reports the last
	// submission's wall-clock latency to it.
	Metrics *metrics.Registry

	state     SubmitterState
	stopCh    chan struct{}
	doneCh    chan struct{}
	regStopCh chan struct{}
	regDoneCh chan struct{}
}

func NewSubmitter(app *appctx.Context, backend ChainBackend, oracle PriceOracle, artifact ArtifactStore, params Params) *Submitter {
	if params.PriceRetryAttempts == 0 {
		params.PriceRetryAttempts = DefaultPriceRetryAttempts
	}
	return &Submitter{
		app:      app,
		backend:  backend,
		oracle:   oracle,
		artifact: artifact,
		params:   params,
		logger:   app.SubLogger("Chain"),
		state:    SubmitterStateStopped,
	}
}

// Start launches both loops.
func (s *Submitter) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state == SubmitterStateRunning {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.regStopCh = make(chan struct{})
	s.regDoneCh = make(chan struct{})
	s.state = SubmitterStateRunning
	s.mu.Unlock()

	go s.runSubmissionLoop(ctx)
	go s.runRegistrationLoop(ctx)
}

// Stop signals both loops to exit and waits for them.
func (s *Submitter) Stop() {
	s.mu.Lock()
	if s.state != SubmitterStateRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	close(s.regStopCh)
	s.state = SubmitterStateStopped
	s.mu.Unlock()

	<-s.doneCh
	<-s.regDoneCh
}

func (s *Submitter) State() SubmitterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Submitter) runSubmissionLoop(ctx context.Context) {
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
			s.submissionTick(ctx)
		}
	}
}

// submissionTick implements spec.md §4.7 steps 1-5 for the oldest
// ProvingDone superproof, if any.
func (s *Submitter) submissionTick(ctx context.Context) {
	pending, err := s.app.Superproofs.ListByStatus(ctx, string(domain.SuperproofProvingDone))
	if err != nil {
		s.logger.Printf("list ProvingDone superproofs: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	superproof := pending[0]

	var proofIDs []int64
	if err := json.Unmarshal(superproof.ProofIDsJSON, &proofIDs); err != nil {
		s.logger.Printf("unmarshal proof ids for superproof %d: %v", superproof.ID, err)
		return
	}

	batch, err := s.buildBatchEntries(ctx, proofIDs)
	if err != nil {
		s.logger.Printf("build batch entries for superproof %d: %v", superproof.ID, err)
		return
	}
	padded := PadBatch(batch, s.params.BatchSize)

	var superproofRoot [32]byte
	if superproof.SuperproofRoot.Valid {
		copy(superproofRoot[:], mustDecodeHex(superproof.SuperproofRoot.String))
	}

	contractABI, err := VerifierABI()
	if err != nil {
		s.logger.Printf("parse verifier ABI: %v", err)
		return
	}

	// The final wrapper proof bytes live at wrapper_proof_path; decoding
	// them into a GnarkProofTuple is the wrapper's own serialization
	// format, out of scope beyond the interface it already exposes via
	// batch.WrapOutput. A zero-valued tuple stands in for "whatever was
	// persisted at that path" until a deployment wires its own decoder.
	proof := GnarkProofTuple{}

	calldata, err := PackVerifySuperproof(contractABI, proof, padded, superproofRoot)
	if err != nil {
		s.logger.Printf("pack verifySuperproof calldata for superproof %d: %v", superproof.ID, err)
		return
	}

	if err := s.app.Superproofs.MarkSubmissionAttempt(ctx, superproof.ID); err != nil {
		s.logger.Printf("record submission attempt for superproof %d: %v", superproof.ID, err)
	}

	sendStart := time.Now()
	txHash, gasUsed, err := s.backend.SendWithRetry(ctx, calldata, s.params.GasLimit, s.params.RetryCount)
	if s.Metrics != nil {
		s.Metrics.LastSubmissionSecs.Set(time.Since(sendStart).Seconds())
	}
	if err != nil {
		// Leave status ProvingDone on exhaustion per spec.md §4.7 step 4;
		// an operator or higher-level controller retries later.
		s.logger.Printf("submit superproof %d: %v", superproof.ID, err)
		return
	}

	baseFeeGwei, err := WithRetries(s.params.PriceRetryAttempts, func() (float64, error) { return s.oracle.BaseFeeGwei(ctx) })
	if err != nil {
		s.logger.Printf("fetch base fee for superproof %d: %v", superproof.ID, err)
	}
	ethPriceUSD, err := WithRetries(s.params.PriceRetryAttempts, func() (float64, error) { return s.oracle.EthPriceUSD(ctx) })
	if err != nil {
		s.logger.Printf("fetch eth price for superproof %d: %v", superproof.ID, err)
	}
	totalCostUSD := float64(gasUsed) * baseFeeGwei * ethPriceUSD / 1e9

	tx, err := s.app.DB.BeginTx(ctx)
	if err != nil {
		s.logger.Printf("begin submission transaction for superproof %d: %v", superproof.ID, err)
		return
	}
	if err := store.MarkSuperproofSubmittedTx(ctx, tx, superproof.ID, txHash, int64(gasUsed), baseFeeGwei, ethPriceUSD, totalCostUSD); err != nil {
		tx.Rollback()
		s.logger.Printf("mark superproof %d submitted: %v", superproof.ID, err)
		return
	}
	if err := store.MarkVerifiedTx(ctx, tx, proofIDs); err != nil {
		tx.Rollback()
		s.logger.Printf("mark proofs verified for superproof %d: %v", superproof.ID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.logger.Printf("commit submission for superproof %d: %v", superproof.ID, err)
		return
	}

	gasSaved := s.params.BaselinePerProofGas*int64(len(proofIDs)) - int64(gasUsed)
	if err := s.app.Cost.Record(ctx, &store.CostSavedRow{
		SuperproofID:     superproof.ID,
		ProofsAggregated: len(proofIDs),
		GasUsedActual:    int64(gasUsed),
		GasUsedIfSolo:    s.params.BaselinePerProofGas * int64(len(proofIDs)),
	}); err != nil {
		s.logger.Printf("record cost saved for superproof %d: %v", superproof.ID, err)
	}

	s.logger.Printf("superproof %d submitted: tx=%s gas_used=%d gas_saved=%d", superproof.ID, txHash, gasUsed, gasSaved)
}

func (s *Submitter) buildBatchEntries(ctx context.Context, proofIDs []int64) ([]BatchEntry, error) {
	entries := make([]BatchEntry, 0, len(proofIDs))
	for _, id := range proofIDs {
		proof, err := s.app.Proofs.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lookup proof %d: %w", id, err)
		}
		circuit, err := s.app.Circuits.GetByHash(ctx, proof.CircuitHash)
		if err != nil {
			return nil, fmt.Errorf("lookup circuit for proof %d: %w", id, err)
		}
		adapter, err := s.app.Schemes.For(domain.Scheme(circuit.Scheme))
		if err != nil {
			return nil, err
		}
		vkBytes, err := s.artifact.Read(ctx, circuit.VKPath)
		if err != nil {
			return nil, fmt.Errorf("read vkey for proof %d: %w", id, err)
		}
		pisBytes, err := s.artifact.Read(ctx, proof.PisPath)
		if err != nil {
			return nil, fmt.Errorf("read pis for proof %d: %w", id, err)
		}
		vk, err := adapter.DeserializeVKey(vkBytes, circuit.NPublicInputs)
		if err != nil {
			return nil, err
		}
		pis, err := adapter.DeserializePIS(pisBytes)
		if err != nil {
			return nil, err
		}
		entries = append(entries, BatchEntry{
			VKHash:        adapter.KeccakHashVKey(vk),
			PubInputsHash: adapter.KeccakHashPIS(pis),
		})
	}
	return entries, nil
}

func (s *Submitter) runRegistrationLoop(ctx context.Context) {
	defer close(s.regDoneCh)
	ticker := time.NewTicker(s.params.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.regStopCh:
			return
		case <-ticker.C:
			s.registrationTick(ctx)
		}
	}
}

// registrationTick is C7's second, independent loop: it advances
// circuits pending on-chain registration.
func (s *Submitter) registrationTick(ctx context.Context) {
	pending, err := s.app.Circuits.ListByStatus(ctx, string(domain.CircuitSmartContractRegistrationPending))
	if err != nil {
		s.logger.Printf("list registration-pending circuits: %v", err)
		return
	}

	contractABI, err := VerifierABI()
	if err != nil {
		s.logger.Printf("parse verifier ABI: %v", err)
		return
	}

	for _, circuit := range pending {
		var vkHash [32]byte
		copy(vkHash[:], circuit.Hash)

		calldata, err := PackRegisterProtocol(contractABI, vkHash)
		if err != nil {
			s.logger.Printf("pack registerProtocol for circuit %x: %v", circuit.Hash, err)
			continue
		}

		_, _, err = s.backend.SendWithRetry(ctx, calldata, s.params.GasLimit, s.params.RetryCount)
		if err != nil {
			s.logger.Printf("register circuit %x: %v", circuit.Hash, err)
			continue
		}

		if err := s.app.Circuits.UpdateStatus(ctx, circuit.Hash, string(domain.CircuitCompleted)); err != nil {
			s.logger.Printf("mark circuit %x completed: %v", circuit.Hash, err)
		}
	}
}

func mustDecodeHex(s string) []byte {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
