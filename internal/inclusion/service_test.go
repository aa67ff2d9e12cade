package inclusion

import (
	"testing"

	"github.com/certen/proof-aggregator/internal/domain"
	"github.com/certen/proof-aggregator/internal/merkle"
)

func TestLeafHashTagsLaneROnlyAndMatchesBatchDefinition(t *testing.T) {
	vk := [32]byte{1}
	pis := [32]byte{2}

	rLeaf, err := leafHash(domain.SchemeGnarkGroth16, domain.LaneR, vk, pis)
	if err != nil {
		t.Fatalf("leafHash lane R: %v", err)
	}
	sLeaf, err := leafHash(domain.SchemeSP1, domain.LaneS, vk, pis)
	if err != nil {
		t.Fatalf("leafHash lane S: %v", err)
	}
	if rLeaf == sLeaf {
		t.Error("lane R and lane S leaves should differ since lane R carries a protocol tag byte")
	}

	wantS := merkle.H(append(append([]byte{}, vk[:]...), pis[:]...))
	if sLeaf != wantS {
		t.Errorf("lane S leaf should be H(vk||pis) with no tag byte")
	}
}

func TestLeafHashUnsupportedLaneRSchemeErrors(t *testing.T) {
	if _, err := leafHash(domain.Scheme("not-a-scheme"), domain.LaneR, [32]byte{}, [32]byte{}); err == nil {
		t.Error("expected an error for a scheme with no protocol_id")
	}
}

func TestDecodeHexHashRoundTrips(t *testing.T) {
	h := merkle.H([]byte("superproof-root"))
	got, err := decodeHexHash(h.HexString())
	if err != nil {
		t.Fatalf("decodeHexHash: %v", err)
	}
	if got != h {
		t.Errorf("expected %x, got %x", h, got)
	}
}

func TestDecodeHexHashRejectsWrongLength(t *testing.T) {
	if _, err := decodeHexHash("0x1234"); err == nil {
		t.Error("expected an error for a short hex string")
	}
}
