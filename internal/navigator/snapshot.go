package navigator

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSnapshotStore writes diagnostic snapshots to a local directory.
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore creates the directory if needed and returns a store.
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

// Save writes the snapshot and returns its path.
func (s *FileSnapshotStore) Save(name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}
