// Package taskmachine implements the task+proof state machine (C4):
// register_circuit, submit_proof, and the read-only status projections.
// Every further transition along Registered -> Reduced -> Aggregating ->
// Aggregated -> Verified belongs to a different component (C5/C6/C7);
// this package only performs the edges documented as its own.
package taskmachine

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/proof-aggregator/internal/apperr"
	"github.com/certen/proof-aggregator/internal/appctx"
	"github.com/certen/proof-aggregator/internal/domain"
	"github.com/certen/proof-aggregator/internal/registry"
	"github.com/certen/proof-aggregator/internal/store"
)

const (
	kindCircuitReduction = "CircuitReduction"
	kindProofGeneration  = "ProofGeneration"
)

// ArtifactStore persists a circuit's vkey bytes at registration, reads
// them back at every later submit_proof, and persists each submitted
// proof's proof and public-input bytes at its recorded paths, the same Read+Write
// shape batch.ArtifactStore declares for its own leaf-vector writes.
type ArtifactStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
}

// Machine exposes the task+proof lifecycle operations over an
// application context.
type Machine struct {
	ctx      *appctx.Context
	artifact ArtifactStore
}

func New(ctx *appctx.Context, artifact ArtifactStore) *Machine {
	return &Machine{ctx: ctx, artifact: artifact}
}

// RegisterCircuitResult is returned by RegisterCircuit.
type RegisterCircuitResult struct {
	CircuitHash string // 0x-prefixed hex
	Reused      bool
}

// RegisterCircuit computes circuit_hash from the normalized vkey bytes,
// returns idempotently on a pre-existing hash, otherwise stores the
// circuit and creates a CircuitReduction task unless a reusable
// reduction image already exists for (scheme, nPublicInputs).
func (m *Machine) RegisterCircuit(ctx context.Context, protocolName string, vkeyBytes []byte, scheme domain.Scheme, nPublicInputs int) (*RegisterCircuitResult, error) {
	if !scheme.Valid() {
		return nil, apperr.BadRequest(fmt.Sprintf("unsupported scheme %q", scheme))
	}
	if _, err := m.ctx.Protocols.Get(ctx, protocolName); err != nil {
		if err == store.ErrProtocolNotFound {
			return nil, apperr.NotFound(fmt.Sprintf("protocol %q not registered", protocolName))
		}
		return nil, apperr.Internal(err, "register_circuit: lookup protocol")
	}

	adapter, err := m.ctx.Schemes.For(scheme)
	if err != nil {
		return nil, err
	}
	vk, err := adapter.DeserializeVKey(vkeyBytes, nPublicInputs)
	if err != nil {
		return nil, err
	}
	if err := adapter.ValidateVKey(vk, nPublicInputs); err != nil {
		return nil, err
	}

	hash := adapter.KeccakHashVKey(vk)
	hashHex := "0x" + hex.EncodeToString(hash[:])

	_, err = m.ctx.Circuits.GetByHash(ctx, hash[:])
	if err == nil {
		return &RegisterCircuitResult{CircuitHash: hashHex, Reused: true}, nil
	}
	if err != store.ErrCircuitNotFound {
		return nil, apperr.Internal(err, "register_circuit: lookup circuit")
	}

	image, found := m.findReusableImage(ctx, scheme, nPublicInputs)

	status := domain.CircuitNotPicked
	var imageID sql.NullString
	if found {
		status = domain.CircuitCompleted
		imageID = sql.NullString{String: image, Valid: true}
	}

	vkPath := vkeyPathFor(hashHex)
	if err := m.artifact.Write(ctx, vkPath, vkeyBytes); err != nil {
		return nil, apperr.Internal(err, "register_circuit: persist vkey")
	}

	row := &store.CircuitRow{
		Hash:             hash[:],
		Scheme:           string(scheme),
		VKPath:           vkPath,
		NPublicInputs:    nPublicInputs,
		ReductionImageID: imageID,
		Status:           string(status),
		ProtocolName:     protocolName,
	}
	if err := m.ctx.Circuits.Create(ctx, row); err != nil {
		return nil, apperr.Internal(err, "register_circuit: create circuit")
	}

	if !found {
		if _, err := m.ctx.Tasks.Create(ctx, &store.TaskRow{
			Kind:       kindCircuitReduction,
			TargetHash: hash[:],
			Status:     "NotPicked",
		}); err != nil {
			return nil, apperr.Internal(err, "register_circuit: create reduction task")
		}
	}

	return &RegisterCircuitResult{CircuitHash: hashHex, Reused: false}, nil
}

// findReusableImage looks for a ReductionImage compatible with
// (scheme, nPublicInputs). Image seeding is out of scope for the core
// (spec.md §3: "seeded out of band; referenced but not mutated"), so
// this always reports not-found in the absence of a seeded image
// catalog; a deployment wires its own lookup by replacing this method's
// caller with one backed by a seeded table.
func (m *Machine) findReusableImage(ctx context.Context, scheme domain.Scheme, nPublicInputs int) (imageID string, found bool) {
	return "", false
}

// readVKey reads the circuit's persisted vkey bytes back from the
// artifact store and deserializes them, so KeccakHashVKey hashes the
// circuit's actual verifying key instead of a per-scheme constant.
func (m *Machine) readVKey(ctx context.Context, adapter registry.Adapter, vkPath string, nPublicInputs int) (*registry.VKey, error) {
	vkBytes, err := m.artifact.Read(ctx, vkPath)
	if err != nil {
		return nil, apperr.Internal(err, "read vkey")
	}
	vk, err := adapter.DeserializeVKey(vkBytes, nPublicInputs)
	if err != nil {
		return nil, err
	}
	return vk, nil
}

// SubmitProofResult is returned by SubmitProof.
type SubmitProofResult struct {
	ProofID   int64
	ProofHash string // 0x-prefixed hex, also used as proof_id per spec.md §6
}

// SubmitProof requires the circuit to exist and be Completed with a
// matching scheme, validates the proof against the vkey, computes
// proof_hash, rejects duplicates unless the protocol allows repeats, and
// inserts the proof Reduced (SP1) or Registered (everything else),
// creating a ProofGeneration task in the latter case.
func (m *Machine) SubmitProof(ctx context.Context, circuitHashHex string, proofBytes, pisBytes []byte, scheme domain.Scheme) (*SubmitProofResult, error) {
	circuitHash, err := decodeHash(circuitHashHex)
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}

	circuit, err := m.ctx.Circuits.GetByHash(ctx, circuitHash)
	if err == store.ErrCircuitNotFound {
		return nil, apperr.NotFound("circuit not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "submit_proof: lookup circuit")
	}
	if circuit.Status != string(domain.CircuitCompleted) {
		return nil, apperr.BadRequest("circuit is not ready to accept proofs")
	}
	if circuit.Scheme != string(scheme) {
		return nil, apperr.New(apperr.CodeWrongScheme, "prove type is not correct")
	}

	adapter, err := m.ctx.Schemes.For(scheme)
	if err != nil {
		return nil, err
	}
	vk, err := m.readVKey(ctx, adapter, circuit.VKPath, circuit.NPublicInputs)
	if err != nil {
		return nil, err
	}
	proof, err := adapter.DeserializeProof(proofBytes)
	if err != nil {
		return nil, err
	}
	pis, err := adapter.DeserializePIS(pisBytes)
	if err != nil {
		return nil, err
	}
	if err := adapter.ValidateProof(vk, proof, pis); err != nil {
		return nil, err
	}

	vkHash := adapter.KeccakHashVKey(vk)
	pisHash := adapter.KeccakHashPIS(pis)
	proofHash := keccak256Concat(vkHash[:], pisHash[:])
	proofHashHex := "0x" + hex.EncodeToString(proofHash[:])

	protocol, err := m.ctx.Protocols.Get(ctx, circuit.ProtocolName)
	if err != nil {
		return nil, apperr.Internal(err, "submit_proof: lookup protocol")
	}

	existing, err := m.ctx.Proofs.GetByHash(ctx, proofHash[:])
	if err == nil {
		if !protocol.AllowRepeatProof {
			return nil, apperr.New(apperr.CodeDuplicateProof, "duplicate proof submission")
		}
		return &SubmitProofResult{ProofID: existing.ID, ProofHash: proofHashHex}, nil
	}
	if err != store.ErrProofNotFound {
		return nil, apperr.Internal(err, "submit_proof: lookup proof")
	}

	status := domain.ProofRegistered
	if scheme == domain.SchemeSP1 {
		status = domain.ProofReduced
	}

	proofPath := proofPathFor(proofHashHex)
	pisPath := pisPathFor(proofHashHex)
	if err := m.artifact.Write(ctx, proofPath, proofBytes); err != nil {
		return nil, apperr.Internal(err, "submit_proof: persist proof")
	}
	if err := m.artifact.Write(ctx, pisPath, pisBytes); err != nil {
		return nil, apperr.Internal(err, "submit_proof: persist pis")
	}

	id, err := m.ctx.Proofs.Create(ctx, &store.ProofRow{
		Hash:             proofHash[:],
		CircuitHash:      circuitHash,
		ProofPath:        proofPath,
		PisPath:          pisPath,
		PublicInputsJSON: []byte("[]"),
		Status:           string(status),
	})
	if err != nil {
		return nil, apperr.Internal(err, "submit_proof: create proof")
	}

	if status == domain.ProofRegistered {
		if _, err := m.ctx.Tasks.Create(ctx, &store.TaskRow{
			Kind:       kindProofGeneration,
			TargetHash: proofHash[:],
			Status:     "NotPicked",
		}); err != nil {
			return nil, apperr.Internal(err, "submit_proof: create reduction task")
		}
	}

	return &SubmitProofResult{ProofID: id, ProofHash: proofHashHex}, nil
}

// GetCircuitStatus is a read-only projection.
func (m *Machine) GetCircuitStatus(ctx context.Context, circuitHashHex string) (domain.CircuitStatus, error) {
	hash, err := decodeHash(circuitHashHex)
	if err != nil {
		return "", apperr.BadRequest(err.Error())
	}
	c, err := m.ctx.Circuits.GetByHash(ctx, hash)
	if err == store.ErrCircuitNotFound {
		return "", apperr.NotFound("circuit not found")
	}
	if err != nil {
		return "", apperr.Internal(err, "get_circuit_status")
	}
	return domain.CircuitStatus(c.Status), nil
}

// GetProofStatus is a read-only projection.
func (m *Machine) GetProofStatus(ctx context.Context, proofHashHex string) (domain.ProofStatus, *int64, error) {
	hash, err := decodeHash(proofHashHex)
	if err != nil {
		return "", nil, apperr.BadRequest(err.Error())
	}
	p, err := m.ctx.Proofs.GetByHash(ctx, hash)
	if err == store.ErrProofNotFound {
		return domain.ProofNotFound, nil, nil
	}
	if err != nil {
		return "", nil, apperr.Internal(err, "get_proof_status")
	}
	var superproofID *int64
	if p.SuperproofID.Valid {
		superproofID = &p.SuperproofID.Int64
	}
	return domain.ProofStatus(p.Status), superproofID, nil
}

func decodeHash(hexStr string) ([]byte, error) {
	s := hexStr
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("malformed hash %q: %w", hexStr, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("hash %q is not 32 bytes", hexStr)
	}
	return b, nil
}

func keccak256Concat(parts ...[]byte) [32]byte {
	buf := make([]byte, 0)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	var out [32]byte
	copy(out[:], crypto.Keccak256(buf))
	return out
}

func vkeyPathFor(hashHex string) string { return "vkeys/" + stripHex(hashHex) + ".bin" }
func proofPathFor(hashHex string) string {
	return "proofs/" + stripHex(hashHex) + ".bin"
}
func pisPathFor(hashHex string) string { return "pis/" + stripHex(hashHex) + ".bin" }

func stripHex(s string) string {
	if len(s) >= 2 && s[:2] == "0x" {
		return s[2:]
	}
	return s
}
