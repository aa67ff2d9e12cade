package proving

import (
	"context"
	"testing"
)

type fakeArtifactReader struct {
	data []byte
	err  error
}

func (f *fakeArtifactReader) Read(ctx context.Context, path string) ([]byte, error) {
	return f.data, f.err
}

const validRootHex = "0100000000000000000000000000000000000000000000000000000000000000"

func TestLoadEmptyLaneSRejectsWrongRootLength(t *testing.T) {
	reader := &fakeArtifactReader{data: []byte(
		`{"snark_receipt":"aabb","public_inputs":"ccdd","root":"` + validRootHex + "00" + `"}`,
	)}
	if _, err := NewFileEmptyLaneLoader(reader, "lane_s_empty.json").LoadEmptyLaneS(context.Background()); err == nil {
		t.Error("expected a length error for a 33-byte root, got nil")
	}
}

func TestLoadEmptyLaneSSucceeds(t *testing.T) {
	root := validRootHex[:64]
	reader := &fakeArtifactReader{data: []byte(
		`{"snark_receipt":"aabb","public_inputs":"ccdd","root":"` + root + `"}`,
	)}

	result, err := NewFileEmptyLaneLoader(reader, "lane_s_empty.json").LoadEmptyLaneS(context.Background())
	if err != nil {
		t.Fatalf("LoadEmptyLaneS: %v", err)
	}
	if len(result.SnarkReceipt) != 2 {
		t.Errorf("snark receipt length = %d, want 2", len(result.SnarkReceipt))
	}
	if result.Root[0] != 0x01 {
		t.Errorf("root[0] = %x, want 0x01", result.Root[0])
	}
}
