package batch

import (
	"sort"

	"github.com/certen/proof-aggregator/internal/domain"
	"github.com/certen/proof-aggregator/internal/merkle"
	"github.com/certen/proof-aggregator/internal/registry"
)

// LaneMember is one proof's contribution to a lane's leaf vector.
type LaneMember struct {
	ProofID    int64
	Scheme     domain.Scheme
	VKHash     [32]byte
	PISHash    [32]byte
	CyclesUsed int64
}

// Leaf computes H(scheme_tag || vk_hash || pis_hash) per spec.md §4.6.
// Lane S members have no protocol_id tag (SP1 is never leaf-tagged into
// lane R); their leaf omits the tag byte.
func (m LaneMember) Leaf() (merkle.Hash, error) {
	var buf []byte
	if m.Scheme.LaneFor() == domain.LaneR {
		tag, err := m.Scheme.ProtocolID()
		if err != nil {
			return merkle.Hash{}, err
		}
		buf = append(buf, tag)
	}
	buf = append(buf, m.VKHash[:]...)
	buf = append(buf, m.PISHash[:]...)
	return merkle.H(buf), nil
}

// BuildLaneMember hashes a proof's vkey/pis bytes through the scheme's
// adapter to produce the (vk_hash, pis_hash) pair a leaf is built from.
func BuildLaneMember(reg *registry.Registry, scheme domain.Scheme, proofID int64, cyclesUsed int64, vkeyBytes, pisBytes []byte, nPublicInputs int) (LaneMember, error) {
	adapter, err := reg.For(scheme)
	if err != nil {
		return LaneMember{}, err
	}
	vk, err := adapter.DeserializeVKey(vkeyBytes, nPublicInputs)
	if err != nil {
		return LaneMember{}, err
	}
	pis, err := adapter.DeserializePIS(pisBytes)
	if err != nil {
		return LaneMember{}, err
	}
	return LaneMember{
		ProofID:    proofID,
		Scheme:     scheme,
		VKHash:     adapter.KeccakHashVKey(vk),
		PISHash:    adapter.KeccakHashPIS(pis),
		CyclesUsed: cyclesUsed,
	}, nil
}

// PartitionMembers splits members into lane R and lane S, each ordered
// by ascending proof id (batch selection is already oldest-first; this
// keeps that order stable within each lane per spec.md §4.6's ordering
// guarantee).
func PartitionMembers(members []LaneMember) (laneR, laneS []LaneMember) {
	sorted := make([]LaneMember, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProofID < sorted[j].ProofID })

	for _, m := range sorted {
		if m.Scheme.LaneFor() == domain.LaneS {
			laneS = append(laneS, m)
		} else {
			laneR = append(laneR, m)
		}
	}
	return laneR, laneS
}

// BuildLeaves computes the leaf vector for a lane in member order.
func BuildLeaves(members []LaneMember) ([]merkle.Hash, error) {
	leaves := make([]merkle.Hash, len(members))
	for i, m := range members {
		leaf, err := m.Leaf()
		if err != nil {
			return nil, err
		}
		leaves[i] = leaf
	}
	return leaves, nil
}
