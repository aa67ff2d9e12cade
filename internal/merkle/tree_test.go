package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func leafFor(b byte) Hash {
	return H([]byte{b})
}

func TestBuildAndFoldRoundTrip(t *testing.T) {
	leaves := []Hash{leafFor(1), leafFor(2), leafFor(3)}
	tree := New()
	require.NoError(t, tree.Build(leaves))

	root, err := tree.Root()
	require.NoError(t, err)

	for i, leaf := range leaves {
		proof, err := tree.Prove(i)
		require.NoError(t, err)
		require.True(t, Verify(leaf, proof, root), "leaf %d should fold to root", i)
	}
}

func TestPaddingToNextPowerOfTwo(t *testing.T) {
	leaves := []Hash{leafFor(1), leafFor(2), leafFor(3)}
	tree := New()
	require.NoError(t, tree.Build(leaves))

	depth, err := tree.Depth()
	require.NoError(t, err)
	require.Equal(t, 2, depth, "3 leaves pad to 4, depth 2")
}

func TestSingleLeafTreeHasZeroDepth(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Build([]Hash{leafFor(9)}))

	depth, err := tree.Depth()
	require.NoError(t, err)
	require.Equal(t, 0, depth)

	root, err := tree.Root()
	require.NoError(t, err)
	require.Equal(t, leafFor(9), root)
}

func TestEmptyTreeRejected(t *testing.T) {
	tree := New()
	require.Error(t, tree.Build(nil))
}

func TestVerifyFailsForWrongLeaf(t *testing.T) {
	leaves := []Hash{leafFor(1), leafFor(2)}
	tree := New()
	require.NoError(t, tree.Build(leaves))
	root, _ := tree.Root()

	proof, err := tree.Prove(0)
	require.NoError(t, err)
	require.False(t, Verify(leafFor(99), proof, root))
}
