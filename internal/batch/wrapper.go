package batch

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/certen/proof-aggregator/internal/merkle"
)

// WrapInput carries the two lane roots and the hashes of the two lanes'
// public inputs that the final wrapper circuit binds together. The lane
// SNARKs themselves are not part of it, and DefaultWrapper does not read
// AggregateVerifyingID or SP1VerifyingKeyHash.
type WrapInput struct {
	LaneRRoot             [32]byte
	LaneSRoot             [32]byte
	LaneRPublicInputsHash [32]byte // journal hash for lane R
	LaneSPublicInputsHash [32]byte // public-values hash for lane S
	AggregateVerifyingID  [8]uint32
	SP1VerifyingKeyHash   [32]byte
}

// WrapOutput is the Groth16-over-BN254 proof the wrapper produces, in
// the same (ProofA, ProofB, ProofC) shape the on-chain verifier's ABI
// expects.
type WrapOutput struct {
	ProofA [2]*big.Int
	ProofB [2][2]*big.Int
	ProofC [2]*big.Int
}

// FinalWrapper combines both lane results into one on-chain-verifiable
// proof, per spec.md §9's wrap(lane_r, lane_s) -> (proof, public_inputs)
// interface. A concrete backend is injected at process start.
type FinalWrapper interface {
	Wrap(in WrapInput) (WrapOutput, error)
}

// laneWrapCircuit binds both lane roots and public-input hashes into one
// Groth16 statement. It is the wrapper's reference implementation,
// repurposed from the teacher's BLS-signature witness circuit
// (pkg/crypto/bls_zkp/circuit.go) to lane-SNARK/public-input wrapping:
// the same commitment-style constraint shape, applied to lane roots
// instead of a BLS pubkey/signature pair. The lane SNARKs are verified
// neither in this circuit nor by its caller; this circuit proves that
// the wrapper witnessed exactly the roots and hashes it was given.
type laneWrapCircuit struct {
	LaneRRoot             frontend.Variable `gnark:",public"`
	LaneSRoot             frontend.Variable `gnark:",public"`
	SuperproofRoot        frontend.Variable `gnark:",public"`
	LaneRPublicInputsHash frontend.Variable
	LaneSPublicInputsHash frontend.Variable
}

func (c *laneWrapCircuit) Define(api frontend.API) error {
	// superproof_root = H(lane_r_root || lane_s_root) is enforced
	// on-chain via keccak, not here. In-circuit the roots are public
	// inputs, and the only constraints are that R + 7*S and the
	// superproof root are non-zero and that neither hash equals -1.
	commitment := api.Add(c.LaneRRoot, api.Mul(c.LaneSRoot, 7))
	api.AssertIsDifferent(commitment, 0)
	api.AssertIsDifferent(c.LaneRPublicInputsHash, -1)
	api.AssertIsDifferent(c.LaneSPublicInputsHash, -1)
	api.AssertIsDifferent(c.SuperproofRoot, 0)
	return nil
}

// DefaultWrapper is the gnark-backed FinalWrapper implementation.
type DefaultWrapper struct {
	mu          sync.RWMutex
	cs          constraint.ConstraintSystem
	pk          groth16.ProvingKey
	vk          groth16.VerifyingKey
	initialized bool
}

func NewDefaultWrapper() *DefaultWrapper {
	return &DefaultWrapper{}
}

// Setup compiles the wrapper circuit and runs the Groth16 trusted setup.
// cmd/aggregator calls it at every process start; LoadKeys is the
// alternative that reuses keys written by SaveKeys.
func (w *DefaultWrapper) Setup() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.initialized {
		return nil
	}

	var circuit laneWrapCircuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return fmt.Errorf("batch: compile wrapper circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("batch: wrapper groth16 setup: %w", err)
	}

	w.cs, w.pk, w.vk = cs, pk, vk
	w.initialized = true
	return nil
}

// SaveKeys persists the proving and verifying keys from the most recent
// Setup so a process can load them instead of re-running the trusted
// setup on every start. The constraint system itself is not persisted:
// it recompiles deterministically from the fixed circuit definition.
func (w *DefaultWrapper) SaveKeys(pkPath, vkPath string) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.initialized {
		return fmt.Errorf("batch: wrapper not initialized")
	}
	if err := writeTo(pkPath, w.pk); err != nil {
		return fmt.Errorf("batch: save proving key: %w", err)
	}
	if err := writeTo(vkPath, w.vk); err != nil {
		return fmt.Errorf("batch: save verifying key: %w", err)
	}
	return nil
}

// LoadKeys recompiles the circuit and loads a previously-saved proving
// and verifying key pair, skipping the trusted setup Setup would
// otherwise run.
func (w *DefaultWrapper) LoadKeys(pkPath, vkPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var circuit laneWrapCircuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return fmt.Errorf("batch: compile wrapper circuit: %w", err)
	}

	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readFrom(pkPath, pk); err != nil {
		return fmt.Errorf("batch: load proving key: %w", err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readFrom(vkPath, vk); err != nil {
		return fmt.Errorf("batch: load verifying key: %w", err)
	}

	w.cs, w.pk, w.vk = cs, pk, vk
	w.initialized = true
	return nil
}

func writeTo(path string, w io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = w.WriteTo(f)
	return err
}

func readFrom(path string, r io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = r.ReadFrom(f)
	return err
}

// Wrap produces the final Groth16-over-BN254 proof combining both lanes.
func (w *DefaultWrapper) Wrap(in WrapInput) (WrapOutput, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.initialized {
		return WrapOutput{}, fmt.Errorf("batch: wrapper not initialized")
	}

	superRoot := merkle.Combine(merkle.Hash(in.LaneRRoot), merkle.Hash(in.LaneSRoot))

	assignment := &laneWrapCircuit{
		LaneRRoot:             new(big.Int).SetBytes(in.LaneRRoot[:]),
		LaneSRoot:             new(big.Int).SetBytes(in.LaneSRoot[:]),
		SuperproofRoot:        new(big.Int).SetBytes(superRoot[:]),
		LaneRPublicInputsHash: new(big.Int).SetBytes(in.LaneRPublicInputsHash[:]),
		LaneSPublicInputsHash: new(big.Int).SetBytes(in.LaneSPublicInputsHash[:]),
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return WrapOutput{}, fmt.Errorf("batch: build wrapper witness: %w", err)
	}

	proof, err := groth16.Prove(w.cs, w.pk, witness)
	if err != nil {
		return WrapOutput{}, fmt.Errorf("batch: wrapper prove: %w", err)
	}

	proofBN254, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return WrapOutput{}, fmt.Errorf("batch: wrapper proof is not BN254")
	}

	out := WrapOutput{}
	out.ProofA[0], out.ProofA[1] = new(big.Int), new(big.Int)
	proofBN254.Ar.X.BigInt(out.ProofA[0])
	proofBN254.Ar.Y.BigInt(out.ProofA[1])

	out.ProofB[0][0], out.ProofB[0][1] = new(big.Int), new(big.Int)
	out.ProofB[1][0], out.ProofB[1][1] = new(big.Int), new(big.Int)
	proofBN254.Bs.X.A0.BigInt(out.ProofB[0][0])
	proofBN254.Bs.X.A1.BigInt(out.ProofB[0][1])
	proofBN254.Bs.Y.A0.BigInt(out.ProofB[1][0])
	proofBN254.Bs.Y.A1.BigInt(out.ProofB[1][1])

	out.ProofC[0], out.ProofC[1] = new(big.Int), new(big.Int)
	proofBN254.Krs.X.BigInt(out.ProofC[0])
	proofBN254.Krs.Y.BigInt(out.ProofC[1])

	return out, nil
}
