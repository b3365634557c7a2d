package cache

import (
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewSnapshotStore returns a Redis snapshot store when a client is given and
// an in-memory one otherwise
func NewSnapshotStore(client *redis.Client, cfg config.SyncConfig, logger *zap.Logger) catalog.SnapshotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		logger.Warn("Redis disabled, product snapshot is kept in memory only")
		return NewMemorySnapshotStore()
	}
	return NewRedisSnapshotStore(client, cfg.SnapshotKey, cfg.SnapshotTTL)
}
