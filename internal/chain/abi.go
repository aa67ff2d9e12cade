// Package chain is the on-chain submitter (C7): calldata packing for
// the verifier contract's stable ABI, a retrying submission loop
// grounded on the teacher's gas-escalation pattern, cost accounting, and
// the independent circuit-registration loop.
package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// verifierABIJSON describes the two methods spec.md §6 fixes as stable:
// verifySuperproof(proof, batch, superproofRoot) and
// registerProtocol(vkHash). The Groth16 proof tuple matches gnark's
// solidity-verifier export shape: an 8-word point encoding plus the
// Pedersen commitment pair gnark's Groth16-with-commitment backend adds.
const verifierABIJSON = `[
	{
		"type": "function",
		"name": "verifySuperproof",
		"inputs": [
			{
				"name": "proof",
				"type": "tuple",
				"components": [
					{"name": "proof", "type": "uint256[8]"},
					{"name": "commitments", "type": "uint256[2]"},
					{"name": "commitmentPok", "type": "uint256[2]"}
				]
			},
			{
				"name": "batch",
				"type": "tuple[]",
				"components": [
					{"name": "vkHash", "type": "bytes32"},
					{"name": "pubInputsHash", "type": "bytes32"}
				]
			},
			{"name": "superproofRoot", "type": "bytes32"}
		],
		"outputs": [],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "registerProtocol",
		"inputs": [{"name": "vkHash", "type": "bytes32"}],
		"outputs": [],
		"stateMutability": "nonpayable"
	}
]`

// VerifierABI parses the stable on-chain ABI once for reuse by both
// calldata-packing paths.
func VerifierABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(verifierABIJSON))
}

// GnarkProofTuple is the ABI tuple shape verifySuperproof's first
// argument expects, flattened from batch.WrapOutput.
type GnarkProofTuple struct {
	Proof         [8]*big.Int
	Commitments   [2]*big.Int
	CommitmentPok [2]*big.Int
}

// BatchEntry is one (vkHash, pubInputsHash) pair in the fixed-size batch
// array; entries beyond the real batch are padded with the zero pair.
type BatchEntry struct {
	VKHash        [32]byte
	PubInputsHash [32]byte
}

// FlattenProof packs a Groth16-over-BN254 (A, B, C) triple into the
// 8-word encoding the verifier contract's ABI expects:
// Ax, Ay, Bx0, Bx1, By0, By1, Cx, Cy. Gnark's commitment extension is
// not exercised by the wrapper circuit (it carries no private
// commitments), so both commitment pairs are the zero point.
func FlattenProof(proofA [2]*big.Int, proofB [2][2]*big.Int, proofC [2]*big.Int) GnarkProofTuple {
	zero := big.NewInt(0)
	return GnarkProofTuple{
		Proof: [8]*big.Int{
			proofA[0], proofA[1],
			proofB[0][0], proofB[0][1],
			proofB[1][0], proofB[1][1],
			proofC[0], proofC[1],
		},
		Commitments:   [2]*big.Int{zero, zero},
		CommitmentPok: [2]*big.Int{zero, zero},
	}
}

// PadBatch pads entries to exactly batchSize with the zero (vkHash,
// pubInputsHash) sentinel pair, per spec.md's "fixed-length ABI array"
// requirement. It truncates rather than errors if entries is already
// longer, which should never happen given C6's BatchSize-bounded pull.
func PadBatch(entries []BatchEntry, batchSize int) []BatchEntry {
	out := make([]BatchEntry, batchSize)
	n := len(entries)
	if n > batchSize {
		n = batchSize
	}
	copy(out, entries[:n])
	return out
}

// PackVerifySuperproof builds the calldata for verifySuperproof.
func PackVerifySuperproof(contractABI abi.ABI, proof GnarkProofTuple, batch []BatchEntry, superproofRoot [32]byte) ([]byte, error) {
	type proofTuple struct {
		Proof         [8]*big.Int
		Commitments   [2]*big.Int
		CommitmentPok [2]*big.Int
	}
	type batchTuple struct {
		VkHash        [32]byte
		PubInputsHash [32]byte
	}

	abiBatch := make([]batchTuple, len(batch))
	for i, e := range batch {
		abiBatch[i] = batchTuple{VkHash: e.VKHash, PubInputsHash: e.PubInputsHash}
	}

	return contractABI.Pack("verifySuperproof",
		proofTuple{Proof: proof.Proof, Commitments: proof.Commitments, CommitmentPok: proof.CommitmentPok},
		abiBatch,
		superproofRoot,
	)
}

// PackRegisterProtocol builds the calldata for registerProtocol.
func PackRegisterProtocol(contractABI abi.ABI, vkHash [32]byte) ([]byte, error) {
	return contractABI.Pack("registerProtocol", vkHash)
}
