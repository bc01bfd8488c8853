package workspace

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/fluxspace/spacesync/internal/hierarchy"
)

// SnapshotStoreFactory builds a SnapshotStore for one DSN scheme.
type SnapshotStoreFactory func(dsn string) (SnapshotStore, error)

var snapshotFactoryRegistry = struct {
	mu        sync.RWMutex
	factories map[string]SnapshotStoreFactory
}{
	factories: map[string]SnapshotStoreFactory{},
}

// RegisterSnapshotStoreFactory installs a factory for a custom DSN
// scheme. Registered factories take precedence over the built-in
// schemes.
func RegisterSnapshotStoreFactory(scheme string, factory SnapshotStoreFactory) {
	scheme = normalizeSnapshotScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	snapshotFactoryRegistry.mu.Lock()
	defer snapshotFactoryRegistry.mu.Unlock()
	snapshotFactoryRegistry.factories[scheme] = factory
}

func lookupSnapshotStoreFactory(scheme string) (SnapshotStoreFactory, bool) {
	scheme = normalizeSnapshotScheme(scheme)
	snapshotFactoryRegistry.mu.RLock()
	defer snapshotFactoryRegistry.mu.RUnlock()
	factory, ok := snapshotFactoryRegistry.factories[scheme]
	return factory, ok
}

func normalizeSnapshotScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}

// BuildSnapshotStoreFromDSN selects a snapshot backend by DSN scheme:
// file paths (bare or file://), memory://, postgres://, redis://.
// An empty DSN yields (nil, nil) so the caller can fall back to its own
// default.
func BuildSnapshotStoreFromDSN(dsn string) (SnapshotStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := normalizeSnapshotScheme(parsed.Scheme)
	if factory, ok := lookupSnapshotStoreFactory(scheme); ok {
		return factory(dsn)
	}
	switch scheme {
	case "", "file":
		path, pathErr := dsnPath(parsed, dsn)
		if pathErr != nil {
			return nil, pathErr
		}
		return NewJSONFileSnapshotStore(path), nil
	case "memory", "mem", "inmem":
		return NewInMemorySnapshotStore(), nil
	case "postgres", "postgresql":
		return NewPostgresSnapshotStore(dsn)
	case "redis", "rediss":
		return NewRedisSnapshotStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported snapshot backend scheme: %s", scheme)
	}
}

func dsnPath(parsed *url.URL, raw string) (string, error) {
	if parsed.Scheme == "" {
		return raw, nil
	}
	path := parsed.Path
	if parsed.Host != "" {
		path = parsed.Host + path
	}
	if strings.TrimSpace(path) == "" {
		return "", &hierarchy.PersistenceError{Op: "configure", Err: fmt.Errorf("file DSN %q has no path", raw)}
	}
	return path, nil
}
