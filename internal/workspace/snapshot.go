// Package workspace owns the per-space cached hierarchy: loading trees
// from the remote API, applying structural mutations, resolving folder
// paths and aggregate stats, and keeping the private space durable
// through a pluggable snapshot store.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fluxspace/spacesync/internal/hierarchy"
)

// snapshotKey is the fixed slot every backend stores the private-space
// tree under. There is exactly one snapshot per installation.
const snapshotKey = "private"

// SnapshotStore persists one serialized SpaceTree under a fixed slot.
// Load returns (nil, nil) when no snapshot exists; a corrupt snapshot
// surfaces as a PersistenceError and is treated as missing by the
// caller.
type SnapshotStore interface {
	Load(ctx context.Context) (*hierarchy.SpaceTree, error)
	Save(ctx context.Context, tree *hierarchy.SpaceTree) error
}

type snapshotCloser interface {
	Close() error
}

func encodeSnapshot(tree *hierarchy.SpaceTree) ([]byte, error) {
	if tree == nil {
		return nil, hierarchy.ErrInvalidInput
	}
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, &hierarchy.PersistenceError{Op: "encode", Err: err}
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*hierarchy.SpaceTree, error) {
	if err := hierarchy.ValidateTreeJSON(data); err != nil {
		return nil, &hierarchy.PersistenceError{Op: "decode", Err: err}
	}
	var tree hierarchy.SpaceTree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, &hierarchy.PersistenceError{Op: "decode", Err: err}
	}
	if tree.RootFolders == nil {
		tree.RootFolders = []*hierarchy.FolderNode{}
	}
	if tree.RootProcesses == nil {
		tree.RootProcesses = []*hierarchy.ProcessNode{}
	}
	return &tree, nil
}

// InMemorySnapshotStore keeps the snapshot in process memory. It exists
// for tests and for callers that explicitly opt out of durability.
type InMemorySnapshotStore struct {
	mu   sync.Mutex
	data []byte
}

func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{}
}

func (s *InMemorySnapshotStore) Load(ctx context.Context) (*hierarchy.SpaceTree, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	return decodeSnapshot(s.data)
}

func (s *InMemorySnapshotStore) Save(ctx context.Context, tree *hierarchy.SpaceTree) error {
	if s == nil || tree == nil {
		return nil
	}
	data, err := encodeSnapshot(tree)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return nil
}

// JSONFileSnapshotStore persists the snapshot as one JSON file, written
// atomically via a temp file rename.
type JSONFileSnapshotStore struct {
	Path string
}

func NewJSONFileSnapshotStore(path string) *JSONFileSnapshotStore {
	return &JSONFileSnapshotStore{Path: strings.TrimSpace(path)}
}

func (s *JSONFileSnapshotStore) Load(ctx context.Context) (*hierarchy.SpaceTree, error) {
	if s == nil || strings.TrimSpace(s.Path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &hierarchy.PersistenceError{Op: "read", Err: err}
	}
	return decodeSnapshot(data)
}

func (s *JSONFileSnapshotStore) Save(ctx context.Context, tree *hierarchy.SpaceTree) error {
	if s == nil || strings.TrimSpace(s.Path) == "" || tree == nil {
		return nil
	}
	data, err := encodeSnapshot(tree)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &hierarchy.PersistenceError{Op: "write", Err: err}
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &hierarchy.PersistenceError{Op: "write", Err: err}
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return &hierarchy.PersistenceError{Op: "write", Err: err}
	}
	return nil
}
