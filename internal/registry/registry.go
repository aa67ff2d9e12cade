// Package registry is the scheme adapter registry (C2): a closed tagged
// union of scheme kinds plus a capability dispatch table keyed by the
// tag. Adding a scheme touches NewDefaultRegistry and domain.Scheme only.
package registry

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/proof-aggregator/internal/apperr"
	"github.com/certen/proof-aggregator/internal/domain"
)

// VKey is a deserialized verifying key: opaque structural bytes plus the
// arity the circuit was registered with.
type VKey struct {
	Scheme        domain.Scheme
	NPublicInputs int
	Raw           []byte
}

// PublicInputs is a deserialized public-input vector.
type PublicInputs struct {
	Values []*big.Int
}

// ProofBytes is a deserialized proof: opaque structural bytes, scoped to
// the scheme that produced them.
type ProofBytes struct {
	Scheme domain.Scheme
	Raw    []byte
}

// Adapter is the uniform capability set every scheme implements. Hashing
// is always real keccak256 over a canonical encoding of semantic content;
// "validate" is a structural stand-in for full cryptographic
// verification of third-party proof systems, which is out of scope.
type Adapter interface {
	DeserializeVKey(raw []byte, nPublicInputs int) (*VKey, error)
	ValidateVKey(vk *VKey, nPublicInputs int) error
	KeccakHashVKey(vk *VKey) [32]byte
	DeserializeProof(raw []byte) (*ProofBytes, error)
	ValidateProof(vk *VKey, proof *ProofBytes, pis *PublicInputs) error
	DeserializePIS(raw []byte) (*PublicInputs, error)
	KeccakHashPIS(pis *PublicInputs) [32]byte
	PISAsDecimalStrings(pis *PublicInputs) []string
}

// Registry dispatches to the Adapter for a scheme.
type Registry struct {
	adapters map[domain.Scheme]Adapter
}

// NewDefaultRegistry wires all nine supported schemes to the generic
// adapter. Real third-party proof-system byte codecs are out of scope
// per the specification; every adapter here shares one implementation
// because the operations the core requires of a scheme (deserialize,
// arity check, keccak hash, decimal-string projection) do not depend on
// scheme-specific wire formats.
func NewDefaultRegistry() *Registry {
	r := &Registry{adapters: make(map[domain.Scheme]Adapter)}
	for _, s := range []domain.Scheme{
		domain.SchemeGnarkGroth16, domain.SchemeSnarkJSGroth16, domain.SchemeGnarkPlonk,
		domain.SchemeHalo2KZGPlonk, domain.SchemeHalo2Poseidon, domain.SchemePlonky2,
		domain.SchemeRisc0, domain.SchemeSP1, domain.SchemeNitroAttestation,
	} {
		r.adapters[s] = genericAdapter{}
	}
	return r
}

// For returns the Adapter for scheme, or a BadRequest error if scheme is
// not one of the nine supported schemes.
func (r *Registry) For(scheme domain.Scheme) (Adapter, error) {
	a, ok := r.adapters[scheme]
	if !ok {
		return nil, apperr.BadRequest(fmt.Sprintf("unsupported scheme %q", scheme))
	}
	return a, nil
}

// genericAdapter implements Adapter by hashing the raw vkey bytes and
// the concatenated 32-byte big-endian public-input words (no length
// prefix), with structural arity checks. It is shared by every scheme
// because per-scheme transport codecs are explicitly out of scope.
type genericAdapter struct{}

func (genericAdapter) DeserializeVKey(raw []byte, nPublicInputs int) (*VKey, error) {
	if len(raw) == 0 {
		return nil, apperr.BadRequest("vkey bytes are empty")
	}
	return &VKey{NPublicInputs: nPublicInputs, Raw: raw}, nil
}

func (genericAdapter) ValidateVKey(vk *VKey, nPublicInputs int) error {
	if vk.NPublicInputs != nPublicInputs {
		return apperr.BadRequest(fmt.Sprintf(
			"vkey arity mismatch: registered for %d public inputs, got %d",
			vk.NPublicInputs, nPublicInputs))
	}
	return nil
}

func (genericAdapter) KeccakHashVKey(vk *VKey) [32]byte {
	return keccak32(vk.Raw)
}

func (genericAdapter) DeserializeProof(raw []byte) (*ProofBytes, error) {
	if len(raw) == 0 {
		return nil, apperr.BadRequest("proof bytes are empty")
	}
	return &ProofBytes{Raw: raw}, nil
}

func (genericAdapter) ValidateProof(vk *VKey, proof *ProofBytes, pis *PublicInputs) error {
	if len(proof.Raw) == 0 {
		return apperr.BadRequest("proof is empty")
	}
	if vk.NPublicInputs != len(pis.Values) {
		return apperr.BadRequest(fmt.Sprintf(
			"public-input count mismatch: circuit expects %d, proof carries %d",
			vk.NPublicInputs, len(pis.Values)))
	}
	return nil
}

func (genericAdapter) DeserializePIS(raw []byte) (*PublicInputs, error) {
	if len(raw)%32 != 0 {
		return nil, apperr.BadRequest("public inputs are not a multiple of 32 bytes")
	}
	values := make([]*big.Int, 0, len(raw)/32)
	for i := 0; i < len(raw); i += 32 {
		values = append(values, new(big.Int).SetBytes(raw[i:i+32]))
	}
	return &PublicInputs{Values: values}, nil
}

func (genericAdapter) KeccakHashPIS(pis *PublicInputs) [32]byte {
	buf := make([]byte, 0, 32*len(pis.Values))
	for _, v := range pis.Values {
		word := make([]byte, 32)
		v.FillBytes(word)
		buf = append(buf, word...)
	}
	return keccak32(buf)
}

func (genericAdapter) PISAsDecimalStrings(pis *PublicInputs) []string {
	out := make([]string, len(pis.Values))
	for i, v := range pis.Values {
		out[i] = v.String()
	}
	return out
}

func keccak32(b []byte) [32]byte {
	var h [32]byte
	copy(h[:], crypto.Keccak256(b))
	return h
}
