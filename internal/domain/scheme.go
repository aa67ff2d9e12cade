package domain

import "fmt"

// Scheme is the closed tagged union of proving systems a circuit can be
// registered under. Adding a scheme touches this enum, the protocol_id
// table below, and the adapter registry only.
type Scheme string

const (
	SchemeGnarkGroth16     Scheme = "GnarkGroth16"
	SchemeSnarkJSGroth16   Scheme = "SnarkJSGroth16"
	SchemeGnarkPlonk       Scheme = "GnarkPlonk"
	SchemeHalo2KZGPlonk    Scheme = "Halo2KZGPlonk"
	SchemeHalo2Poseidon    Scheme = "Halo2Poseidon"
	SchemePlonky2          Scheme = "Plonky2"
	SchemeRisc0            Scheme = "Risc0"
	SchemeSP1              Scheme = "SP1"
	SchemeNitroAttestation Scheme = "NitroAttestation"
)

// protocolID assigns the small integer tag every lane-R leaf encodes
// alongside the vkey/pis hashes. SP1 never appears here: it has its own
// lane and is never leaf-hashed into lane R.
var protocolID = map[Scheme]uint8{
	SchemeGnarkGroth16:     1,
	SchemeSnarkJSGroth16:   2,
	SchemeGnarkPlonk:       3,
	SchemeHalo2KZGPlonk:    4,
	SchemeHalo2Poseidon:    5,
	SchemePlonky2:          6,
	SchemeRisc0:            7,
	SchemeNitroAttestation: 8,
}

// Valid reports whether s is one of the nine supported schemes.
func (s Scheme) Valid() bool {
	switch s {
	case SchemeGnarkGroth16, SchemeSnarkJSGroth16, SchemeGnarkPlonk,
		SchemeHalo2KZGPlonk, SchemeHalo2Poseidon, SchemePlonky2,
		SchemeRisc0, SchemeSP1, SchemeNitroAttestation:
		return true
	default:
		return false
	}
}

// Lane identifies which of the two aggregation lanes a scheme belongs to.
type Lane uint8

const (
	LaneR Lane = iota // recursive-verifier lane: every scheme except SP1
	LaneS             // SP1-only lane
)

func (l Lane) String() string {
	if l == LaneS {
		return "S"
	}
	return "R"
}

// LaneFor returns the lane a scheme is aggregated in.
func (s Scheme) LaneFor() Lane {
	if s == SchemeSP1 {
		return LaneS
	}
	return LaneR
}

// ProtocolID returns the small integer tag mixed into a lane-R leaf hash.
// Only valid for schemes whose LaneFor is LaneR.
func (s Scheme) ProtocolID() (uint8, error) {
	id, ok := protocolID[s]
	if !ok {
		return 0, fmt.Errorf("scheme %q has no protocol_id (lane S schemes are not leaf-tagged)", s)
	}
	return id, nil
}
