// Package artifact provides the filesystem-backed ArtifactStore shared
// by the reduction worker, batch scheduler, chain submitter, inclusion
// service, task state machine, and empty-lane loader: each declares its
// own narrow Read (and, for the scheduler and the task state machine,
// Write) interface, but one FilesystemStore satisfies all of
// them since Go interfaces are structural.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FilesystemStore reads and writes proof artifacts rooted at a single
// storage_folder_path, matching spec.md §6's storage layout.
type FilesystemStore struct {
	root string
}

// New roots a FilesystemStore at dir. Relative paths handed to Read and
// Write are resolved beneath dir; dir itself is created if missing.
func New(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create storage root %s: %w", dir, err)
	}
	return &FilesystemStore{root: dir}, nil
}

// Read loads the bytes at path, relative to the store's root.
func (s *FilesystemStore) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", path, err)
	}
	return data, nil
}

// Write persists data at path, relative to the store's root, creating
// any intermediate directories (e.g. the per-superproof lane-leaves
// directory C6 writes to).
func (s *FilesystemStore) Write(ctx context.Context, path string, data []byte) error {
	full := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("artifact: create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	return nil
}

func (s *FilesystemStore) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.root, path)
}
