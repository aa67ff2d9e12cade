// Package merkle implements the hash & Merkle kit (C1): keccak256
// leaf hashing and a fixed-arity-2 tree with deterministic zero-sentinel
// padding to the next power of two.
package merkle

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
)

// LeafSize is the fixed width of every leaf and internal node.
const LeafSize = 32

// Hash is a 32-byte keccak256 digest.
type Hash [LeafSize]byte

// H computes keccak256(x).
func H(x []byte) Hash {
	return Hash(crypto.Keccak256(x))
}

// Combine computes H(a || b), the internal-node hash function.
func Combine(a, b Hash) Hash {
	buf := make([]byte, 0, 2*LeafSize)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return H(buf)
}

// sentinel is the zero hash used to pad a leaf vector up to the next
// power of two.
var sentinel Hash

// Tree is a fixed-arity-2 Merkle tree over a fixed set of leaves, built
// once and queried many times for roots and inclusion proofs.
type Tree struct {
	mu     sync.RWMutex
	leaves []Hash // original leaves, unpadded
	levels [][]Hash
	built  bool
}

// New creates an empty, unbuilt tree.
func New() *Tree {
	return &Tree{}
}

// Build constructs the tree from leaves, padding on the right with the
// zero sentinel up to the next power of two. Build is idempotent: it
// replaces any previously built tree.
func (t *Tree) Build(leaves []Hash) error {
	if len(leaves) == 0 {
		return fmt.Errorf("merkle: cannot build a tree with zero leaves")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	padded := make([]Hash, nextPowerOfTwo(len(leaves)))
	copy(padded, leaves)
	for i := len(leaves); i < len(padded); i++ {
		padded[i] = sentinel
	}

	levels := [][]Hash{padded}
	cur := padded
	for len(cur) > 1 {
		next := make([]Hash, len(cur)/2)
		for i := range next {
			next[i] = Combine(cur[2*i], cur[2*i+1])
		}
		levels = append(levels, next)
		cur = next
	}

	t.leaves = append([]Hash(nil), leaves...)
	t.levels = levels
	t.built = true
	return nil
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Root returns the tree's root hash.
func (t *Tree) Root() (Hash, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.built {
		return Hash{}, fmt.Errorf("merkle: tree not built")
	}
	top := t.levels[len(t.levels)-1]
	return top[0], nil
}

// Depth returns the tree's depth (number of levels above the leaves).
func (t *Tree) Depth() (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.built {
		return 0, fmt.Errorf("merkle: tree not built")
	}
	return len(t.levels) - 1, nil
}

// LeafCount returns the number of original (unpadded) leaves.
func (t *Tree) LeafCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leaves)
}

// Proof is an inclusion proof: siblings ordered from depth 0 upward, and
// positions packed LSB-first, a set bit meaning "the sibling is on the
// left" and a clear bit meaning it is on the right.
type Proof struct {
	Siblings  []Hash
	Positions uint64
	Depth     int
}

// Prove returns the inclusion proof for the leaf at leafIndex (into the
// original, unpadded leaf vector).
func (t *Tree) Prove(leafIndex int) (*Proof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.built {
		return nil, fmt.Errorf("merkle: tree not built")
	}
	if leafIndex < 0 || leafIndex >= len(t.levels[0]) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range", leafIndex)
	}

	depth := len(t.levels) - 1
	proof := &Proof{Siblings: make([]Hash, 0, depth), Depth: depth}

	idx := leafIndex
	for level := 0; level < depth; level++ {
		isRightChild := idx%2 == 1
		var sibling Hash
		if isRightChild {
			sibling = t.levels[level][idx-1]
			proof.Positions |= 1 << uint(level) // sibling is on the left
		} else {
			sibling = t.levels[level][idx+1]
			// bit stays 0: sibling is on the right
		}
		proof.Siblings = append(proof.Siblings, sibling)
		idx /= 2
	}

	return proof, nil
}

// Fold reconstructs a root by folding leaf with proof, walking the
// siblings depth 0 upward.
func Fold(leaf Hash, proof *Proof) Hash {
	cur := leaf
	for i, sib := range proof.Siblings {
		siblingOnLeft := (proof.Positions>>uint(i))&1 == 1
		if siblingOnLeft {
			cur = Combine(sib, cur)
		} else {
			cur = Combine(cur, sib)
		}
	}
	return cur
}

// Verify checks that folding leaf with proof yields root, in constant time.
func Verify(leaf Hash, proof *Proof, root Hash) bool {
	got := Fold(leaf, proof)
	return subtle.ConstantTimeCompare(got[:], root[:]) == 1
}

// HexString hex-encodes a Hash with a 0x prefix.
func (h Hash) HexString() string {
	return fmt.Sprintf("0x%x", h[:])
}
