package chain

import (
	"math/big"
	"testing"
)

func TestFlattenProofOrdersCoordinatesAsEightWords(t *testing.T) {
	a := [2]*big.Int{big.NewInt(1), big.NewInt(2)}
	b := [2][2]*big.Int{{big.NewInt(3), big.NewInt(4)}, {big.NewInt(5), big.NewInt(6)}}
	c := [2]*big.Int{big.NewInt(7), big.NewInt(8)}

	tuple := FlattenProof(a, b, c)

	for i, want := range []int64{1, 2, 3, 4, 5, 6, 7, 8} {
		if tuple.Proof[i].Int64() != want {
			t.Errorf("word %d: expected %d, got %d", i, want, tuple.Proof[i].Int64())
		}
	}
}

func TestPadBatchPadsWithZeroSentinel(t *testing.T) {
	entries := []BatchEntry{{VKHash: [32]byte{1}, PubInputsHash: [32]byte{2}}}

	padded := PadBatch(entries, 4)

	if len(padded) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(padded))
	}
	if padded[0] != entries[0] {
		t.Errorf("expected first entry preserved, got %+v", padded[0])
	}
	var zero BatchEntry
	for i := 1; i < 4; i++ {
		if padded[i] != zero {
			t.Errorf("expected padding entry %d to be zero, got %+v", i, padded[i])
		}
	}
}

func TestPadBatchTruncatesOversizedInput(t *testing.T) {
	entries := []BatchEntry{{VKHash: [32]byte{1}}, {VKHash: [32]byte{2}}, {VKHash: [32]byte{3}}}

	padded := PadBatch(entries, 2)

	if len(padded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(padded))
	}
}

func TestPackVerifySuperproofProducesNonEmptyCalldata(t *testing.T) {
	contractABI, err := VerifierABI()
	if err != nil {
		t.Fatalf("VerifierABI: %v", err)
	}

	proof := FlattenProof(
		[2]*big.Int{big.NewInt(1), big.NewInt(2)},
		[2][2]*big.Int{{big.NewInt(3), big.NewInt(4)}, {big.NewInt(5), big.NewInt(6)}},
		[2]*big.Int{big.NewInt(7), big.NewInt(8)},
	)
	batch := PadBatch([]BatchEntry{{VKHash: [32]byte{9}, PubInputsHash: [32]byte{10}}}, 2)

	calldata, err := PackVerifySuperproof(contractABI, proof, batch, [32]byte{11})
	if err != nil {
		t.Fatalf("PackVerifySuperproof: %v", err)
	}
	if len(calldata) == 0 {
		t.Error("expected non-empty calldata")
	}
}

func TestPackRegisterProtocolProducesNonEmptyCalldata(t *testing.T) {
	contractABI, err := VerifierABI()
	if err != nil {
		t.Fatalf("VerifierABI: %v", err)
	}
	calldata, err := PackRegisterProtocol(contractABI, [32]byte{1})
	if err != nil {
		t.Fatalf("PackRegisterProtocol: %v", err)
	}
	if len(calldata) == 0 {
		t.Error("expected non-empty calldata")
	}
}
