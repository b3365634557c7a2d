package cache

import (
	"context"
	"sync"
	"time"
)

// defaultClaimSweep is how often expired in-memory claims are dropped
const defaultClaimSweep = 5 * time.Minute

type claim struct {
	expiresAt time.Time
}

// MemoryClaimStore records request keys for a single instance
type MemoryClaimStore struct {
	mu        sync.Mutex
	claims    map[string]claim
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryClaimStore creates a store that drops expired claims in the background
func NewMemoryClaimStore() *MemoryClaimStore {
	s := &MemoryClaimStore{
		claims:   make(map[string]claim),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop(defaultClaimSweep)
	return s
}

// Claim records key for ttl. It returns false when key is already held.
func (s *MemoryClaimStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if c, ok := s.claims[key]; ok && now.Before(c.expiresAt) {
		return false, nil
	}
	s.claims[key] = claim{expiresAt: now.Add(ttl)}
	return true, nil
}

// Release drops key so it can be claimed again
func (s *MemoryClaimStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.claims, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored claims, expired ones included
func (s *MemoryClaimStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

// Close stops the sweeper. Safe to call multiple times.
func (s *MemoryClaimStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryClaimStore) sweepLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryClaimStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, c := range s.claims {
		if !now.Before(c.expiresAt) {
			delete(s.claims, key)
			removed++
		}
	}
	return removed
}
