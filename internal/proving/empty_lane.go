package proving

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/certen/proof-aggregator/internal/batch"
)

// artifactReader is the one method proving needs from artifact.FilesystemStore.
type artifactReader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// emptyLaneFile is the on-disk shape of the precomputed lane-S result,
// seeded out of band whenever a batch carries no SP1 proofs.
type emptyLaneFile struct {
	SnarkReceipt string `json:"snark_receipt"` // hex
	PublicInputs string `json:"public_inputs"` // hex
	Root         string `json:"root"`          // hex, 32 bytes
}

// FileEmptyLaneLoader implements batch.EmptyLaneLoader by reading a
// fixed artifact path rather than calling an external prover, since an
// empty lane has nothing to submit a session for.
type FileEmptyLaneLoader struct {
	artifact artifactReader
	path     string
}

// NewFileEmptyLaneLoader wires a loader against path, relative to the
// artifact store's root (e.g. "lane_s_empty.json").
func NewFileEmptyLaneLoader(artifact artifactReader, path string) *FileEmptyLaneLoader {
	return &FileEmptyLaneLoader{artifact: artifact, path: path}
}

func (l *FileEmptyLaneLoader) LoadEmptyLaneS(ctx context.Context) (*batch.EmptyLaneResult, error) {
	data, err := l.artifact.Read(ctx, l.path)
	if err != nil {
		return nil, fmt.Errorf("proving: read empty lane S artifact: %w", err)
	}
	var f emptyLaneFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("proving: parse empty lane S artifact: %w", err)
	}
	receipt, err := decodeHex(f.SnarkReceipt)
	if err != nil {
		return nil, fmt.Errorf("proving: decode empty lane S receipt: %w", err)
	}
	publicInputs, err := decodeHex(f.PublicInputs)
	if err != nil {
		return nil, fmt.Errorf("proving: decode empty lane S public inputs: %w", err)
	}
	rootBytes, err := decodeHex(f.Root)
	if err != nil {
		return nil, fmt.Errorf("proving: decode empty lane S root: %w", err)
	}
	if len(rootBytes) != 32 {
		return nil, fmt.Errorf("proving: empty lane S root must be 32 bytes, got %d", len(rootBytes))
	}
	var root [32]byte
	copy(root[:], rootBytes)

	return &batch.EmptyLaneResult{
		SnarkReceipt: receipt,
		PublicInputs: publicInputs,
		Root:         root,
	}, nil
}
