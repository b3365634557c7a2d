package cache

import (
	"context"
	"sync"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
)

// MemorySnapshotStore keeps the encoded snapshot in memory. It survives store
// re-creation within one process, which is enough for single-instance runs.
type MemorySnapshotStore struct {
	mu   sync.RWMutex
	data []byte
}

// Ensure MemorySnapshotStore implements catalog.SnapshotStore
var _ catalog.SnapshotStore = (*MemorySnapshotStore)(nil)

// NewMemorySnapshotStore creates an empty store
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

// Save replaces the snapshot
func (s *MemorySnapshotStore) Save(_ context.Context, products []catalog.Product) error {
	data, err := encodeSnapshot(products, time.Now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Load returns the snapshot, or nil when none was saved
func (s *MemorySnapshotStore) Load(_ context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()
	if data == nil {
		return nil, nil
	}
	return decodeSnapshot(data)
}
