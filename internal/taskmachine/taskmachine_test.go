package taskmachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/proof-aggregator/internal/domain"
	"github.com/certen/proof-aggregator/internal/registry"
)

// fakeArtifactStore is an in-memory path->bytes map, enough to exercise
// readVKey without a real filesystem or database.
type fakeArtifactStore struct {
	files map[string][]byte
}

func newFakeArtifactStore() *fakeArtifactStore {
	return &fakeArtifactStore{files: make(map[string][]byte)}
}

func (f *fakeArtifactStore) Read(ctx context.Context, path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, errNotFound(path)
	}
	return data, nil
}

func (f *fakeArtifactStore) Write(ctx context.Context, path string, data []byte) error {
	f.files[path] = data
	return nil
}

type errNotFound string

func (e errNotFound) Error() string { return "not found: " + string(e) }

// TestSubmitProofHashesTheCircuitsActualVKeyNotAPlaceholder guards
// against regressing to a constant vkHash: two circuits registered with
// different vkey bytes must read those bytes back through readVKey and
// produce different proof hashes even when the submitted PIS bytes are
// byte-for-byte identical.
func TestSubmitProofHashesTheCircuitsActualVKeyNotAPlaceholder(t *testing.T) {
	artifact := newFakeArtifactStore()
	artifact.files["vkeys/circuit-a.bin"] = []byte("vkey bytes for circuit A")
	artifact.files["vkeys/circuit-b.bin"] = []byte("vkey bytes for circuit B")

	m := &Machine{artifact: artifact}
	reg := registry.NewDefaultRegistry()
	adapter, err := reg.For(domain.SchemeGnarkGroth16)
	require.NoError(t, err)

	vkA, err := m.readVKey(context.Background(), adapter, "vkeys/circuit-a.bin", 2)
	require.NoError(t, err)
	vkB, err := m.readVKey(context.Background(), adapter, "vkeys/circuit-b.bin", 2)
	require.NoError(t, err)

	pis, err := adapter.DeserializePIS(make([]byte, 32))
	require.NoError(t, err)
	pisHash := adapter.KeccakHashPIS(pis)

	vkHashA := adapter.KeccakHashVKey(vkA)
	vkHashB := adapter.KeccakHashVKey(vkB)
	require.NotEqual(t, vkHashA, vkHashB, "different vkeys must hash differently")

	proofHashA := keccak256Concat(vkHashA[:], pisHash[:])
	proofHashB := keccak256Concat(vkHashB[:], pisHash[:])
	require.NotEqual(t, proofHashA, proofHashB,
		"identical PIS bytes across two circuits with different vkeys must not collide on proof_hash")
}

func TestDecodeHashRoundTrip(t *testing.T) {
	b, err := decodeHash("0x" + "11"+"22"+"33"+"44"+"55"+"66"+"77"+"88"+"99"+"aa"+"bb"+"cc"+"dd"+"ee"+"ff"+"00"+
		"11"+"22"+"33"+"44"+"55"+"66"+"77"+"88"+"99"+"aa"+"bb"+"cc"+"dd"+"ee"+"ff"+"00")
	require.NoError(t, err)
	require.Len(t, b, 32)
}

func TestDecodeHashRejectsWrongLength(t *testing.T) {
	_, err := decodeHash("0x1234")
	require.Error(t, err)
}

func TestDecodeHashRejectsMalformedBytes(t *testing.T) {
	_, err := decodeHash("0xzz")
	require.Error(t, err)
}

func TestKeccak256ConcatIsDeterministic(t *testing.T) {
	a := []byte("vk")
	b := []byte("pis")
	h1 := keccak256Concat(a, b)
	h2 := keccak256Concat(a, b)
	require.Equal(t, h1, h2)

	h3 := keccak256Concat(b, a)
	require.NotEqual(t, h1, h3)
}

func TestPathHelpersStripHexPrefix(t *testing.T) {
	require.Equal(t, "proofs/ab.bin", proofPathFor("0xab"))
	require.Equal(t, "pis/ab.bin", pisPathFor("0xab"))
	require.Equal(t, "vkeys/ab.bin", vkeyPathFor("0xab"))
}
