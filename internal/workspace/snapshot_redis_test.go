package workspace

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fluxspace/spacesync/internal/hierarchy"
)

func newRedisSnapshotStore(t *testing.T) (*RedisSnapshotStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisSnapshotStoreWithClient(client)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisSnapshotStoreRoundTrip(t *testing.T) {
	store, _ := newRedisSnapshotStore(t)

	tree, err := store.Load(context.Background())
	if err != nil || tree != nil {
		t.Fatalf("empty store must load (nil, nil), got %+v, %v", tree, err)
	}

	if err := store.Save(context.Background(), teamTree(hierarchy.PrivateSpaceID)); err != nil {
		t.Fatalf("save: %v", err)
	}
	tree, err = store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tree.SpaceID != hierarchy.PrivateSpaceID || hierarchy.FindFolder(tree, "fld_payroll") == nil {
		t.Fatalf("unexpected tree: %+v", tree)
	}
}

func TestRedisSnapshotStoreKeyIsStable(t *testing.T) {
	store, mr := newRedisSnapshotStore(t)

	if err := store.Save(context.Background(), teamTree(hierarchy.PrivateSpaceID)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("spacesync:snapshot:private") {
		t.Fatalf("snapshot not stored under the expected key, keys: %v", mr.Keys())
	}
}

func TestRedisSnapshotStoreRejectsCorruptPayload(t *testing.T) {
	store, mr := newRedisSnapshotStore(t)

	if err := mr.Set("spacesync:snapshot:private", "not json"); err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}
	_, err := store.Load(context.Background())
	if !errors.Is(err, hierarchy.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestRedisSnapshotStorePing(t *testing.T) {
	store, mr := newRedisSnapshotStore(t)

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping against running server: %v", err)
	}
	mr.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping failure after server shutdown")
	}
}
