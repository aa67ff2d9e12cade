// Package inclusion implements the inclusion-proof service (C8): given a
// verified proof's hash, it rebuilds the owning lane's Merkle tree from
// the leaves persisted by C6, proves inclusion of the proof's own leaf,
// and appends the other lane's root as the terminal sibling so the
// returned path folds to the on-chain superproof_root.
package inclusion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/certen/proof-aggregator/internal/apperr"
	"github.com/certen/proof-aggregator/internal/appctx"
	"github.com/certen/proof-aggregator/internal/domain"
	"github.com/certen/proof-aggregator/internal/merkle"
	"github.com/certen/proof-aggregator/internal/store"
)

// ArtifactStore reads a lane's persisted leaf vector back by path. Same
// shape as the batch/reduction/chain packages' ArtifactStore; kept as
// its own interface so this package does not import theirs for one
// method.
type ArtifactStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// Proof is the result returned to a tenant for a verified proof:
// position is a bitstring (LSB = depth 0, 1 extra bit for the cross-lane
// step) and siblings are 0x-hex-encoded, ordered from the proof's own
// leaf upward to the superproof root.
type Proof struct {
	Position uint64
	Siblings []string
}

// Service answers inclusion-proof requests for Verified proofs.
type Service struct {
	app      *appctx.Context
	artifact ArtifactStore
}

func New(app *appctx.Context, artifact ArtifactStore) *Service {
	return &Service{app: app, artifact: artifact}
}

// GetInclusionProof implements spec.md §4.8 steps 1-6 for the proof
// identified by proofHash (the 32-byte keccak of vk_hash‖pis_hash).
func (s *Service) GetInclusionProof(ctx context.Context, proofHash []byte) (*Proof, error) {
	proof, err := s.app.Proofs.GetByHash(ctx, proofHash)
	if err == store.ErrProofNotFound {
		return nil, apperr.NotFound("proof not found")
	}
	if err != nil {
		return nil, err
	}
	if proof.Status != string(domain.ProofVerified) {
		return nil, apperr.BadRequest("proof is not verified")
	}
	if !proof.SuperproofID.Valid {
		return nil, apperr.Internal(fmt.Errorf("verified proof %d has no superproof_id", proof.ID), "get inclusion proof")
	}

	superproof, err := s.app.Superproofs.GetByID(ctx, proof.SuperproofID.Int64)
	if err != nil {
		return nil, err
	}
	circuit, err := s.app.Circuits.GetByHash(ctx, proof.CircuitHash)
	if err != nil {
		return nil, err
	}
	scheme := domain.Scheme(circuit.Scheme)
	ownLane := scheme.LaneFor()

	adapter, err := s.app.Schemes.For(scheme)
	if err != nil {
		return nil, err
	}
	vkBytes, err := s.artifact.Read(ctx, circuit.VKPath)
	if err != nil {
		return nil, apperr.Internal(err, "read vkey for inclusion proof")
	}
	pisBytes, err := s.artifact.Read(ctx, proof.PisPath)
	if err != nil {
		return nil, apperr.Internal(err, "read pis for inclusion proof")
	}
	vk, err := adapter.DeserializeVKey(vkBytes, circuit.NPublicInputs)
	if err != nil {
		return nil, err
	}
	pis, err := adapter.DeserializePIS(pisBytes)
	if err != nil {
		return nil, err
	}
	vkHash := adapter.KeccakHashVKey(vk)
	pisHash := adapter.KeccakHashPIS(pis)

	targetLeaf, err := leafHash(scheme, ownLane, vkHash, pisHash)
	if err != nil {
		return nil, err
	}

	var ownLeavesPath, otherRootHex string
	if ownLane == domain.LaneR {
		ownLeavesPath = superproof.LaneRLeavesPath.String
		otherRootHex = superproof.LaneSRoot.String
	} else {
		ownLeavesPath = superproof.LaneSLeavesPath.String
		otherRootHex = superproof.LaneRRoot.String
	}
	if ownLeavesPath == "" {
		return nil, apperr.Internal(fmt.Errorf("superproof %d has no stored leaves path for lane %s", superproof.ID, ownLane), "get inclusion proof")
	}
	if otherRootHex == "" {
		return nil, apperr.Internal(fmt.Errorf("superproof %d has no root for the other lane", superproof.ID), "get inclusion proof")
	}

	leavesBytes, err := s.artifact.Read(ctx, ownLeavesPath)
	if err != nil {
		return nil, apperr.Internal(err, "read lane leaves for inclusion proof")
	}
	var leaves []merkle.Hash
	if err := json.Unmarshal(leavesBytes, &leaves); err != nil {
		return nil, apperr.Internal(err, "decode lane leaves for inclusion proof")
	}

	leafIndex := -1
	for i, l := range leaves {
		if l == targetLeaf {
			leafIndex = i
			break
		}
	}
	if leafIndex == -1 {
		return nil, apperr.Internal(fmt.Errorf("leaf for proof %d not found in lane %s leaves", proof.ID, ownLane), "get inclusion proof")
	}

	tree := merkle.New()
	if err := tree.Build(leaves); err != nil {
		return nil, apperr.Internal(err, "rebuild lane tree for inclusion proof")
	}
	laneProof, err := tree.Prove(leafIndex)
	if err != nil {
		return nil, apperr.Internal(err, "build lane inclusion proof")
	}

	otherRoot, err := decodeHexHash(otherRootHex)
	if err != nil {
		return nil, apperr.Internal(err, "decode other lane root")
	}

	// Step 5: append the other lane's root as the terminal sibling,
	// position 0 if own_lane = R (this leaf's subtree is the left child
	// of superproof_root = H(r0_root || sp1_root)), else 1.
	siblings := make([]string, 0, len(laneProof.Siblings)+1)
	for _, sib := range laneProof.Siblings {
		siblings = append(siblings, sib.HexString())
	}
	siblings = append(siblings, otherRoot.HexString())

	position := laneProof.Positions
	if ownLane != domain.LaneR {
		position |= 1 << uint(laneProof.Depth)
	}

	return &Proof{Position: position, Siblings: siblings}, nil
}

// leafHash recomputes H(scheme_tag || vk_hash || pis_hash) per spec.md
// §4.8 step 4 / §4.6's leaf definition. Lane S leaves carry no tag byte.
func leafHash(scheme domain.Scheme, lane domain.Lane, vkHash, pisHash [32]byte) (merkle.Hash, error) {
	var buf []byte
	if lane == domain.LaneR {
		tag, err := scheme.ProtocolID()
		if err != nil {
			return merkle.Hash{}, err
		}
		buf = append(buf, tag)
	}
	buf = append(buf, vkHash[:]...)
	buf = append(buf, pisHash[:]...)
	return merkle.H(buf), nil
}

func decodeHexHash(s string) (merkle.Hash, error) {
	var h merkle.Hash
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("inclusion: decode hex root: %w", err)
	}
	if len(b) != merkle.LeafSize {
		return h, fmt.Errorf("inclusion: expected %d bytes, got %d", merkle.LeafSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}
