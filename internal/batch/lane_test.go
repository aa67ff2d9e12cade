package batch

import (
	"testing"

	"github.com/certen/proof-aggregator/internal/domain"
	"github.com/certen/proof-aggregator/internal/registry"
)

func TestBuildLaneMemberHashesVKeyAndPIS(t *testing.T) {
	reg := registry.NewDefaultRegistry()

	member, err := BuildLaneMember(reg, domain.SchemeGnarkGroth16, 7, 1000, []byte("vkey-bytes"), make([]byte, 32), 1)
	if err != nil {
		t.Fatalf("BuildLaneMember: %v", err)
	}
	if member.ProofID != 7 {
		t.Errorf("expected proof id 7, got %d", member.ProofID)
	}
	var zero [32]byte
	if member.VKHash == zero {
		t.Error("expected non-zero vkey hash")
	}
}

func TestPartitionMembersSplitsByLaneAndPreservesOrder(t *testing.T) {
	members := []LaneMember{
		{ProofID: 3, Scheme: domain.SchemeSP1},
		{ProofID: 1, Scheme: domain.SchemeGnarkGroth16},
		{ProofID: 2, Scheme: domain.SchemeSP1},
		{ProofID: 4, Scheme: domain.SchemeRisc0},
	}

	laneR, laneS := PartitionMembers(members)

	if len(laneR) != 2 || len(laneS) != 2 {
		t.Fatalf("expected 2/2 split, got laneR=%d laneS=%d", len(laneR), len(laneS))
	}
	if laneR[0].ProofID != 1 || laneR[1].ProofID != 4 {
		t.Errorf("lane R not ordered by ascending proof id: %+v", laneR)
	}
	if laneS[0].ProofID != 2 || laneS[1].ProofID != 3 {
		t.Errorf("lane S not ordered by ascending proof id: %+v", laneS)
	}
}

func TestLaneRLeafTagsProtocolIDLaneSDoesNot(t *testing.T) {
	r := LaneMember{Scheme: domain.SchemeGnarkGroth16}
	s := LaneMember{Scheme: domain.SchemeSP1}

	rLeaf, err := r.Leaf()
	if err != nil {
		t.Fatalf("lane R leaf: %v", err)
	}
	sLeaf, err := s.Leaf()
	if err != nil {
		t.Fatalf("lane S leaf: %v", err)
	}
	if rLeaf == sLeaf {
		t.Error("expected lane R and lane S leaves of equivalent zero-valued members to differ (tag byte)")
	}
}

func TestBuildLeavesPreservesMemberOrder(t *testing.T) {
	members := []LaneMember{
		{ProofID: 1, Scheme: domain.SchemeRisc0, VKHash: [32]byte{1}, PISHash: [32]byte{2}},
		{ProofID: 2, Scheme: domain.SchemeRisc0, VKHash: [32]byte{3}, PISHash: [32]byte{4}},
	}
	leaves, err := BuildLeaves(members)
	if err != nil {
		t.Fatalf("BuildLeaves: %v", err)
	}
	if len(leaves) != 2 {
		t.Fatalf("expected 2 leaves, got %d", len(leaves))
	}
	if leaves[0] == leaves[1] {
		t.Error("expected distinct leaves for distinct members")
	}
}
