package checkout

import (
	"sync"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/cart"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/checkout"
	"go.uber.org/zap"
)

// Manager keeps the open sessions of the HTTP API by id
type Manager struct {
	machine *Machine
	logger  *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager opening sessions on machine
func NewManager(machine *Machine, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		machine:  machine,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Open starts and registers a session for c
func (m *Manager) Open(c *cart.Cart) *Session {
	s := m.machine.Open(c)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	m.logger.Debug("checkout session opened", zap.String("session_id", s.ID()))
	return s
}

// Get returns an open session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, checkout.ErrSessionNotFound
	}
	return s, nil
}

// Close closes and forgets a session
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return checkout.ErrSessionNotFound
	}
	s.Close()
	m.logger.Debug("checkout session closed", zap.String("session_id", id))
	return nil
}

// Prune closes sessions that are not verifying a payment and have not
// changed since cutoff. It returns how many were removed.
func (m *Manager) Prune(cutoff time.Time) int {
	m.mu.Lock()
	stale := make([]*Session, 0)
	for id, s := range m.sessions {
		snap := s.Snapshot()
		if snap.Step == checkout.StepVerifying || !snap.UpdatedAt.Before(cutoff) {
			continue
		}
		delete(m.sessions, id)
		stale = append(stale, s)
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// CloseAll closes every session
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// Len returns the number of open sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
