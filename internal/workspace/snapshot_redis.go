package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fluxspace/spacesync/internal/hierarchy"
)

const redisSnapshotPrefix = "spacesync:snapshot:"

// RedisSnapshotStore keeps the private-space snapshot in a single redis
// key with no expiry.
type RedisSnapshotStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSnapshotStore(redisURL string) (*RedisSnapshotStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisSnapshotStoreWithClient(client), nil
}

func NewRedisSnapshotStoreWithClient(client *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{
		client: client,
		prefix: redisSnapshotPrefix,
	}
}

func (s *RedisSnapshotStore) key() string {
	return s.prefix + snapshotKey
}

func (s *RedisSnapshotStore) Load(ctx context.Context) (*hierarchy.SpaceTree, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	data, err := s.client.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &hierarchy.PersistenceError{Op: "read", Err: err}
	}
	return decodeSnapshot(data)
}

func (s *RedisSnapshotStore) Save(ctx context.Context, tree *hierarchy.SpaceTree) error {
	if s == nil || s.client == nil || tree == nil {
		return nil
	}
	data, err := encodeSnapshot(tree)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(), data, 0).Err(); err != nil {
		return &hierarchy.PersistenceError{Op: "write", Err: err}
	}
	return nil
}

func (s *RedisSnapshotStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Ping reports whether redis is reachable.
func (s *RedisSnapshotStore) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return hierarchy.ErrInvalidInput
	}
	return s.client.Ping(ctx).Err()
}
