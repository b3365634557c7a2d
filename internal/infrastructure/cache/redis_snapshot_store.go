package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/redis/go-redis/v9"
)

// RedisSnapshotStore keeps the last known product set in a single Redis key
type RedisSnapshotStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	now    func() time.Time
}

// Ensure RedisSnapshotStore implements catalog.SnapshotStore
var _ catalog.SnapshotStore = (*RedisSnapshotStore)(nil)

// NewRedisSnapshotStore creates a store writing key. ttl 0 keeps the key forever.
func NewRedisSnapshotStore(client *redis.Client, key string, ttl time.Duration) *RedisSnapshotStore {
	if key == "" {
		key = "products:snapshot"
	}
	return &RedisSnapshotStore{client: client, key: key, ttl: ttl, now: time.Now}
}

// Save replaces the snapshot
func (s *RedisSnapshotStore) Save(ctx context.Context, products []catalog.Product) error {
	data, err := encodeSnapshot(products, s.now())
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save product snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot, or nil when none was saved
func (s *RedisSnapshotStore) Load(ctx context.Context) ([]catalog.Product, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product snapshot: %w", err)
	}
	return decodeSnapshot(data)
}
