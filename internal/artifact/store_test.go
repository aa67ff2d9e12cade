package artifact

import (
	"context"
	"path/filepath"
	"testing"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	path := "superproofs/7/lane_R_leaves.json"
	want := []byte(`["aa","bb"]`)

	if err := store.Write(ctx, path, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := store.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadMissingFileErrors(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := store.Read(context.Background(), "does/not/exist.json"); err == nil {
		t.Error("expected an error reading a missing file, got nil")
	}
}

func TestResolveKeepsAbsolutePathsUnrooted(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	abs := filepath.Join(t.TempDir(), "outside.json")
	if err := store.Write(context.Background(), abs, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := store.Read(context.Background(), abs)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "x" {
		t.Errorf("got %q, want %q", got, "x")
	}
}
