package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/fluxspace/spacesync/internal/hierarchy"
)

// fakeClient is an in-memory RemoteClient. Trees are served from the
// trees map; mutations return server-shaped nodes with fake-assigned
// ids but do not touch the map, so tests control exactly what a reload
// would see.
type fakeClient struct {
	mu         sync.Mutex
	trees      map[string]*hierarchy.SpaceTree
	fetchErr   error
	fetchCalls int
	seq        int

	spaces    []hierarchy.Space
	spacesErr error

	mutationErr   error
	mutationCalls int

	processResp *hierarchy.ProcessNode
	processErr  error

	pathResp  hierarchy.FolderPathResponse
	pathErr   error
	pathCalls int

	statsResp hierarchy.SpaceStats
	statsErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{trees: map[string]*hierarchy.SpaceTree{}}
}

func (f *fakeClient) setTree(spaceID string, tree *hierarchy.SpaceTree) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trees[spaceID] = tree.Clone()
}

func (f *fakeClient) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func (f *fakeClient) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func (f *fakeClient) mutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutationCalls
}

func (f *fakeClient) pathCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pathCalls
}

func (f *fakeClient) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *fakeClient) ListSpaces(ctx context.Context) ([]hierarchy.Space, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spacesErr != nil {
		return nil, f.spacesErr
	}
	out := make([]hierarchy.Space, len(f.spaces))
	copy(out, f.spaces)
	return out, nil
}

func (f *fakeClient) FetchTree(ctx context.Context, spaceID string) (*hierarchy.SpaceTree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	tree, ok := f.trees[spaceID]
	if !ok {
		return nil, &hierarchy.NotFoundError{Resource: "space", ID: spaceID}
	}
	return tree.Clone(), nil
}

func (f *fakeClient) CreateFolder(ctx context.Context, spaceID string, req hierarchy.CreateFolderRequest) (*hierarchy.FolderNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutationCalls++
	if f.mutationErr != nil {
		return nil, f.mutationErr
	}
	return &hierarchy.FolderNode{
		ID:             f.nextID("fld"),
		Name:           req.Name,
		Description:    req.Description,
		ParentFolderID: req.ParentFolderID,
		Color:          req.Color,
		Icon:           req.Icon,
		Children:       []*hierarchy.FolderNode{},
		Processes:      []*hierarchy.ProcessNode{},
	}, nil
}

func (f *fakeClient) UpdateFolder(ctx context.Context, spaceID, folderID string, req hierarchy.UpdateFolderRequest) (*hierarchy.FolderNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutationCalls++
	if f.mutationErr != nil {
		return nil, f.mutationErr
	}
	node := &hierarchy.FolderNode{ID: folderID, ParentFolderID: req.ParentFolderID}
	if req.Name != nil {
		node.Name = *req.Name
	}
	if req.Description != nil {
		node.Description = *req.Description
	}
	if req.Color != nil {
		node.Color = *req.Color
	}
	if req.Icon != nil {
		node.Icon = *req.Icon
	}
	return node, nil
}

func (f *fakeClient) MoveFolder(ctx context.Context, spaceID, folderID string, parentFolderID *string) (*hierarchy.FolderNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutationCalls++
	if f.mutationErr != nil {
		return nil, f.mutationErr
	}
	return &hierarchy.FolderNode{ID: folderID, ParentFolderID: parentFolderID}, nil
}

func (f *fakeClient) DeleteFolder(ctx context.Context, spaceID, folderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutationCalls++
	return f.mutationErr
}

func (f *fakeClient) CreateProcess(ctx context.Context, spaceID string, req hierarchy.CreateProcessRequest) (*hierarchy.ProcessNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutationCalls++
	if f.mutationErr != nil {
		return nil, f.mutationErr
	}
	return &hierarchy.ProcessNode{
		ID:          f.nextID("prc"),
		Name:        req.Name,
		Description: req.Description,
		FolderID:    req.FolderID,
	}, nil
}

func (f *fakeClient) FetchProcess(ctx context.Context, spaceID, processID string) (*hierarchy.ProcessNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processErr != nil {
		return nil, f.processErr
	}
	if f.processResp != nil {
		return f.processResp.Clone(), nil
	}
	return nil, &hierarchy.NotFoundError{Resource: "process", ID: processID}
}

func (f *fakeClient) UpdateProcess(ctx context.Context, spaceID, processID string, req hierarchy.UpdateProcessRequest) (*hierarchy.ProcessNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutationCalls++
	if f.mutationErr != nil {
		return nil, f.mutationErr
	}
	node := &hierarchy.ProcessNode{ID: processID}
	if req.Name != nil {
		node.Name = *req.Name
	}
	if req.Description != nil {
		node.Description = *req.Description
	}
	return node, nil
}

func (f *fakeClient) MoveProcess(ctx context.Context, spaceID, processID string, folderID *string) (*hierarchy.ProcessNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutationCalls++
	if f.mutationErr != nil {
		return nil, f.mutationErr
	}
	return &hierarchy.ProcessNode{ID: processID, FolderID: folderID}, nil
}

func (f *fakeClient) DeleteProcess(ctx context.Context, spaceID, processID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutationCalls++
	return f.mutationErr
}

func (f *fakeClient) FetchFolderPath(ctx context.Context, spaceID, folderID string) (hierarchy.FolderPathResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pathCalls++
	return f.pathResp, f.pathErr
}

func (f *fakeClient) FetchSpaceStats(ctx context.Context, spaceID string) (hierarchy.SpaceStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return hierarchy.SpaceStats{}, f.statsErr
	}
	return f.statsResp, nil
}

func newTestStore(t *testing.T, client *fakeClient) *Store {
	t.Helper()
	store, err := NewStore(StoreOptions{Client: client})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

// teamTree is the shared fixture: Finance holding Payroll (with one
// process) plus a root process.
func teamTree(spaceID string) *hierarchy.SpaceTree {
	payrollParent := "fld_finance"
	return &hierarchy.SpaceTree{
		SpaceID: spaceID,
		RootFolders: []*hierarchy.FolderNode{
			{
				ID:   "fld_finance",
				Name: "Finance",
				Children: []*hierarchy.FolderNode{
					{
						ID:             "fld_payroll",
						Name:           "Payroll",
						ParentFolderID: &payrollParent,
						Children:       []*hierarchy.FolderNode{},
						Processes: []*hierarchy.ProcessNode{
							{ID: "prc_salaries", Name: "Salaries"},
						},
					},
				},
				Processes: []*hierarchy.ProcessNode{},
			},
		},
		RootProcesses: []*hierarchy.ProcessNode{
			{ID: "prc_onboarding", Name: "Onboarding"},
		},
	}
}

func TestLoadTreeCachesFirstFetch(t *testing.T) {
	client := newFakeClient()
	client.setTree("team_a", teamTree("team_a"))
	store := newTestStore(t, client)

	first, err := store.LoadTree(context.Background(), "team_a")
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := store.LoadTree(context.Background(), "team_a")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if client.fetchCount() != 1 {
		t.Fatalf("expected 1 fetch for two loads, got %d", client.fetchCount())
	}

	// Returned trees are copies; mutating one must not leak into the
	// cache or into other callers.
	first.RootFolders[0].Name = "Mutated"
	if second.RootFolders[0].Name != "Finance" {
		t.Fatalf("loads share tree nodes")
	}
	third, _ := store.LoadTree(context.Background(), "team_a")
	if third.RootFolders[0].Name != "Finance" {
		t.Fatalf("caller mutation leaked into the cache")
	}
}

func TestRefreshTreeForcesRefetch(t *testing.T) {
	client := newFakeClient()
	client.setTree("team_a", teamTree("team_a"))
	store := newTestStore(t, client)

	if _, err := store.LoadTree(context.Background(), "team_a"); err != nil {
		t.Fatalf("load: %v", err)
	}
	renamed := teamTree("team_a")
	renamed.RootFolders[0].Name = "Finance v2"
	client.setTree("team_a", renamed)

	tree, err := store.RefreshTree(context.Background(), "team_a")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tree.RootFolders[0].Name != "Finance v2" {
		t.Fatalf("refresh kept the stale tree: %+v", tree.RootFolders[0])
	}
	if client.fetchCount() != 2 {
		t.Fatalf("expected 2 fetches, got %d", client.fetchCount())
	}
}

func TestLoadTreeFailureLeavesSpaceUnloaded(t *testing.T) {
	client := newFakeClient()
	client.setFetchErr(&hierarchy.TransportError{Op: "get /spaces/team_a/tree", Err: errors.New("connection refused")})
	store := newTestStore(t, client)

	_, err := store.LoadTree(context.Background(), "team_a")
	if !errors.Is(err, hierarchy.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if store.IsLoaded("team_a") {
		t.Fatalf("failed load must leave the space uncached")
	}
}

func TestPrivateLoadFallsBackToSnapshot(t *testing.T) {
	snapshot := NewInMemorySnapshotStore()
	legacy := teamTree(hierarchy.PrivateSpaceID)
	legacy.RootFolders[0].Name = "Legacy"
	if err := snapshot.Save(context.Background(), legacy); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	client := newFakeClient()
	client.setFetchErr(&hierarchy.TransportError{Op: "get tree", Err: errors.New("offline")})
	store, err := NewStore(StoreOptions{Client: client, Snapshot: snapshot})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	tree, err := store.LoadTree(context.Background(), hierarchy.PrivateSpaceID)
	if err != nil {
		t.Fatalf("private load must degrade, not fail: %v", err)
	}
	if len(tree.RootFolders) == 0 || tree.RootFolders[0].Name != "Legacy" {
		t.Fatalf("expected the persisted snapshot, got %+v", tree)
	}
	if !store.IsLoaded(hierarchy.PrivateSpaceID) {
		t.Fatalf("snapshot fallback must install the tree")
	}
}

func TestPrivateLoadFallsBackToEmptyWithoutSnapshot(t *testing.T) {
	client := newFakeClient()
	client.setFetchErr(&hierarchy.TransportError{Op: "get tree", Err: errors.New("offline")})
	store := newTestStore(t, client)

	tree, err := store.LoadTree(context.Background(), hierarchy.PrivateSpaceID)
	if err != nil {
		t.Fatalf("private load must degrade, not fail: %v", err)
	}
	if tree.SpaceID != hierarchy.PrivateSpaceID || len(tree.RootFolders) != 0 || len(tree.RootProcesses) != 0 {
		t.Fatalf("expected empty private tree, got %+v", tree)
	}
}

func TestPrivateLoadPersistsWriteThrough(t *testing.T) {
	snapshot := NewInMemorySnapshotStore()
	client := newFakeClient()
	client.setTree(hierarchy.PrivateSpaceID, teamTree(hierarchy.PrivateSpaceID))
	store, err := NewStore(StoreOptions{Client: client, Snapshot: snapshot})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if _, err := store.LoadTree(context.Background(), hierarchy.PrivateSpaceID); err != nil {
		t.Fatalf("load: %v", err)
	}
	persisted, err := snapshot.Load(context.Background())
	if err != nil {
		t.Fatalf("snapshot load: %v", err)
	}
	if persisted == nil || len(persisted.RootFolders) != 1 || persisted.RootFolders[0].ID != "fld_finance" {
		t.Fatalf("snapshot not written through: %+v", persisted)
	}
	if store.LastSnapshotDigest() == "" {
		t.Fatalf("persist must record the payload digest")
	}
}

func TestGetFolderReturnsIndexedCopy(t *testing.T) {
	client := newFakeClient()
	client.setTree("team_a", teamTree("team_a"))
	store := newTestStore(t, client)
	if _, err := store.LoadTree(context.Background(), "team_a"); err != nil {
		t.Fatalf("load: %v", err)
	}

	folder := store.GetFolder("team_a", "fld_payroll")
	if folder == nil || folder.Name != "Payroll" {
		t.Fatalf("expected Payroll, got %+v", folder)
	}
	folder.Name = "Mutated"
	if again := store.GetFolder("team_a", "fld_payroll"); again.Name != "Payroll" {
		t.Fatalf("GetFolder exposed the cached node")
	}

	if store.GetFolder("team_a", "fld_missing") != nil {
		t.Fatalf("unknown id must return nil")
	}
	if store.GetFolder("team_b", "fld_payroll") != nil {
		t.Fatalf("unloaded space must return nil")
	}
}

func TestGetProcessFallsBackToRemote(t *testing.T) {
	client := newFakeClient()
	client.setTree("team_a", teamTree("team_a"))
	client.processResp = &hierarchy.ProcessNode{ID: "prc_remote", Name: "Remote Only"}
	store := newTestStore(t, client)
	if _, err := store.LoadTree(context.Background(), "team_a"); err != nil {
		t.Fatalf("load: %v", err)
	}

	cached, err := store.GetProcess(context.Background(), "team_a", "prc_salaries")
	if err != nil || cached.Name != "Salaries" {
		t.Fatalf("expected cached Salaries, got %+v, %v", cached, err)
	}
	remote, err := store.GetProcess(context.Background(), "team_a", "prc_remote")
	if err != nil || remote.Name != "Remote Only" {
		t.Fatalf("expected remote fallback, got %+v, %v", remote, err)
	}
}

func TestListSpacesPrependsPrivateAndCaches(t *testing.T) {
	client := newFakeClient()
	client.spaces = []hierarchy.Space{{ID: "team_a", Name: "Team A", Type: hierarchy.SpaceTypeTeam}}
	store := newTestStore(t, client)

	spaces := store.ListSpaces(context.Background())
	if len(spaces) != 2 || spaces[0].ID != hierarchy.PrivateSpaceID || spaces[1].ID != "team_a" {
		t.Fatalf("expected private space prepended, got %+v", spaces)
	}

	// The directory is cached for the session.
	client.mu.Lock()
	client.spaces = nil
	client.spacesErr = errors.New("down")
	client.mu.Unlock()
	if again := store.ListSpaces(context.Background()); len(again) != 2 {
		t.Fatalf("expected cached directory, got %+v", again)
	}
}

func TestListSpacesDegradesToPrivate(t *testing.T) {
	client := newFakeClient()
	client.spacesErr = errors.New("down")
	store := newTestStore(t, client)

	spaces := store.ListSpaces(context.Background())
	if len(spaces) != 1 || spaces[0].ID != hierarchy.PrivateSpaceID {
		t.Fatalf("expected only the private space, got %+v", spaces)
	}
}

func TestInvalidateSpaceDropsCache(t *testing.T) {
	client := newFakeClient()
	client.setTree("team_a", teamTree("team_a"))
	store := newTestStore(t, client)
	if _, err := store.LoadTree(context.Background(), "team_a"); err != nil {
		t.Fatalf("load: %v", err)
	}

	store.InvalidateSpace("team_a")
	if store.IsLoaded("team_a") {
		t.Fatalf("invalidate left the space cached")
	}
	if _, err := store.LoadTree(context.Background(), "team_a"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if client.fetchCount() != 2 {
		t.Fatalf("expected refetch after invalidation, got %d fetches", client.fetchCount())
	}
}

func TestNewStoreRequiresClient(t *testing.T) {
	if _, err := NewStore(StoreOptions{}); !errors.Is(err, hierarchy.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
