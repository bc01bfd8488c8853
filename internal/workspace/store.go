package workspace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/fluxspace/spacesync/internal/hierarchy"
)

type StoreOptions struct {
	// Client is the remote hierarchy API. Required.
	Client hierarchy.RemoteClient
	// Snapshot persists the private-space tree. When nil, SnapshotFile
	// selects a JSON file store; when that is empty too, the private
	// space keeps an in-memory snapshot and loses offline durability.
	Snapshot     SnapshotStore
	SnapshotFile string
	// PrivateSpaceID overrides the id of the always-present offline
	// capable space. Defaults to hierarchy.PrivateSpaceID.
	PrivateSpaceID string
	// PathLookupTimeout bounds the remote path fallback and the
	// background warm request. Defaults to 10 seconds.
	PathLookupTimeout time.Duration
	Logger            hierarchy.Logger
}

// Store owns one cached tree per space plus an id index over it. All
// other components read or mutate the hierarchy through it. Cache edits
// happen under the mutex; network and snapshot I/O never do, so a slow
// remote call never blocks cache reads.
type Store struct {
	client      hierarchy.RemoteClient
	snapshot    SnapshotStore
	privateID   string
	pathTimeout time.Duration
	logger      hierarchy.Logger

	mu             sync.Mutex
	trees          map[string]*hierarchy.SpaceTree
	indexes        map[string]*treeIndex
	spaces         []hierarchy.Space
	spacesLoaded   bool
	snapshotDigest string
}

func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Client == nil {
		return nil, hierarchy.ErrInvalidInput
	}
	privateID := strings.TrimSpace(opts.PrivateSpaceID)
	if privateID == "" {
		privateID = hierarchy.PrivateSpaceID
	}
	pathTimeout := opts.PathLookupTimeout
	if pathTimeout <= 0 {
		pathTimeout = 10 * time.Second
	}
	snapshot := opts.Snapshot
	if snapshot == nil && strings.TrimSpace(opts.SnapshotFile) != "" {
		snapshot = NewJSONFileSnapshotStore(opts.SnapshotFile)
	}
	if snapshot == nil {
		snapshot = NewInMemorySnapshotStore()
	}
	return &Store{
		client:      opts.Client,
		snapshot:    snapshot,
		privateID:   privateID,
		pathTimeout: pathTimeout,
		logger:      opts.Logger,
		trees:       map[string]*hierarchy.SpaceTree{},
		indexes:     map[string]*treeIndex{},
	}, nil
}

// PrivateSpaceID returns the id of the offline-capable space.
func (s *Store) PrivateSpaceID() string {
	if s == nil {
		return hierarchy.PrivateSpaceID
	}
	return s.privateID
}

// Close releases the snapshot backend if it holds connections.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if closer, ok := s.snapshot.(snapshotCloser); ok {
		return closer.Close()
	}
	return nil
}

// ListSpaces returns the space directory. The first successful fetch is
// cached for the session; when the remote is unreachable the directory
// degrades to the built-in private space.
func (s *Store) ListSpaces(ctx context.Context) []hierarchy.Space {
	s.mu.Lock()
	if s.spacesLoaded {
		cached := make([]hierarchy.Space, len(s.spaces))
		copy(cached, s.spaces)
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	spaces, err := s.client.ListSpaces(ctx)
	if err != nil {
		s.logf("space listing unavailable, degrading to private space: %v", err)
		return []hierarchy.Space{hierarchy.PrivateSpace()}
	}
	if !hasSpace(spaces, s.privateID) {
		spaces = append([]hierarchy.Space{hierarchy.PrivateSpace()}, spaces...)
	}
	s.mu.Lock()
	s.spaces = spaces
	s.spacesLoaded = true
	cached := make([]hierarchy.Space, len(spaces))
	copy(cached, spaces)
	s.mu.Unlock()
	return cached
}

func hasSpace(spaces []hierarchy.Space, spaceID string) bool {
	for _, space := range spaces {
		if space.ID == spaceID {
			return true
		}
	}
	return false
}

// LoadTree returns the cached tree for spaceID, fetching it remotely on
// first access. For the private space a failed fetch degrades to the
// last persisted snapshot, or an empty tree when none exists; for every
// other space the failure is returned and the space stays uncached.
func (s *Store) LoadTree(ctx context.Context, spaceID string) (*hierarchy.SpaceTree, error) {
	return s.loadTree(ctx, spaceID, false)
}

// RefreshTree forces a remote reload, discarding the cached tree on
// success.
func (s *Store) RefreshTree(ctx context.Context, spaceID string) (*hierarchy.SpaceTree, error) {
	return s.loadTree(ctx, spaceID, true)
}

func (s *Store) loadTree(ctx context.Context, spaceID string, forceRefresh bool) (*hierarchy.SpaceTree, error) {
	if strings.TrimSpace(spaceID) == "" {
		return nil, hierarchy.ErrInvalidInput
	}
	if !forceRefresh {
		s.mu.Lock()
		if cached, ok := s.trees[spaceID]; ok {
			clone := cached.Clone()
			s.mu.Unlock()
			return clone, nil
		}
		s.mu.Unlock()
	}

	tree, err := s.client.FetchTree(ctx, spaceID)
	if err != nil {
		if spaceID != s.privateID {
			s.mu.Lock()
			delete(s.trees, spaceID)
			delete(s.indexes, spaceID)
			s.mu.Unlock()
			return nil, err
		}
		s.logf("private tree fetch failed, falling back to snapshot: %v", err)
		// Every private cache install is persisted write-through, so the
		// snapshot is never behind the tree this replaces.
		fallback := s.loadSnapshotTree(ctx)
		s.installTree(spaceID, fallback)
		return fallback.Clone(), nil
	}

	s.installTree(spaceID, tree)
	if spaceID == s.privateID {
		s.persistPrivate(ctx, tree)
	}
	return tree.Clone(), nil
}

// loadSnapshotTree reads the persisted private snapshot. A missing or
// corrupt snapshot yields an empty tree; durability loss never blocks
// in-memory operation.
func (s *Store) loadSnapshotTree(ctx context.Context) *hierarchy.SpaceTree {
	tree, err := s.snapshot.Load(ctx)
	if err != nil {
		s.logf("snapshot unreadable, starting from empty tree: %v", err)
		return hierarchy.NewEmptyTree(s.privateID)
	}
	if tree == nil {
		return hierarchy.NewEmptyTree(s.privateID)
	}
	if tree.SpaceID == "" {
		tree.SpaceID = s.privateID
	}
	return tree
}

// GetFolder returns a copy of the cached folder, or nil when the space
// is not cached or the id is unknown. Lookup is O(1) through the id
// index.
func (s *Store) GetFolder(spaceID, folderID string) *hierarchy.FolderNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[spaceID]
	if !ok {
		return nil
	}
	folder, ok := idx.folders[folderID]
	if !ok {
		return nil
	}
	return folder.Clone()
}

// GetProcess returns the cached process, falling back to a remote fetch
// when the id is not in the cached tree.
func (s *Store) GetProcess(ctx context.Context, spaceID, processID string) (*hierarchy.ProcessNode, error) {
	s.mu.Lock()
	if idx, ok := s.indexes[spaceID]; ok {
		if process, ok := idx.processes[processID]; ok {
			clone := process.Clone()
			s.mu.Unlock()
			return clone, nil
		}
	}
	s.mu.Unlock()
	return s.client.FetchProcess(ctx, spaceID, processID)
}

// IsLoaded reports whether a tree is cached for spaceID.
func (s *Store) IsLoaded(spaceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trees[spaceID]
	return ok
}

// InvalidateSpace drops the cached tree so the next load refetches. The
// snapshot watcher calls this when another client rewrites the
// persisted snapshot.
func (s *Store) InvalidateSpace(spaceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trees, spaceID)
	delete(s.indexes, spaceID)
}

func (s *Store) installTree(spaceID string, tree *hierarchy.SpaceTree) {
	if tree == nil {
		return
	}
	owned := tree.Clone()
	s.mu.Lock()
	s.trees[spaceID] = owned
	s.indexes[spaceID] = buildIndex(owned)
	s.mu.Unlock()
}

func (s *Store) cachedTree(spaceID string) *hierarchy.SpaceTree {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, ok := s.trees[spaceID]
	if !ok {
		return nil
	}
	return tree.Clone()
}

// persistPrivate write-through persists the private tree. Failures are
// logged and swallowed: the in-memory cache stays authoritative.
func (s *Store) persistPrivate(ctx context.Context, tree *hierarchy.SpaceTree) {
	if tree == nil {
		return
	}
	data, err := encodeSnapshot(tree)
	if err != nil {
		s.logf("snapshot persist skipped: %v", err)
		return
	}
	digest := snapshotDigest(data)
	if err := s.snapshot.Save(ctx, tree); err != nil {
		s.logf("snapshot persist failed: %v", err)
		return
	}
	s.mu.Lock()
	s.snapshotDigest = digest
	s.mu.Unlock()
}

// LastSnapshotDigest returns the digest of the most recently persisted
// snapshot payload. The snapshot watcher uses it to tell self-writes
// apart from writes by another client.
func (s *Store) LastSnapshotDigest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotDigest
}

func snapshotDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *Store) logf(format string, args ...any) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

// treeIndex maps node ids onto the store-owned tree so folder lookups
// are O(1) and ancestor chains are O(depth).
type treeIndex struct {
	folders       map[string]*hierarchy.FolderNode
	processes     map[string]*hierarchy.ProcessNode
	folderParent  map[string]string
	processFolder map[string]string
}

func buildIndex(t *hierarchy.SpaceTree) *treeIndex {
	idx := &treeIndex{
		folders:       map[string]*hierarchy.FolderNode{},
		processes:     map[string]*hierarchy.ProcessNode{},
		folderParent:  map[string]string{},
		processFolder: map[string]string{},
	}
	if t == nil {
		return idx
	}
	var walk func(folder *hierarchy.FolderNode, parentID string)
	walk = func(folder *hierarchy.FolderNode, parentID string) {
		if folder == nil || folder.ID == "" {
			return
		}
		idx.folders[folder.ID] = folder
		idx.folderParent[folder.ID] = parentID
		for _, process := range folder.Processes {
			if process == nil || process.ID == "" {
				continue
			}
			idx.processes[process.ID] = process
			idx.processFolder[process.ID] = folder.ID
		}
		for _, child := range folder.Children {
			walk(child, folder.ID)
		}
	}
	for _, root := range t.RootFolders {
		walk(root, "")
	}
	for _, process := range t.RootProcesses {
		if process == nil || process.ID == "" {
			continue
		}
		idx.processes[process.ID] = process
		idx.processFolder[process.ID] = ""
	}
	return idx
}
