package cache

import (
	"context"
	"sync"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
)

// MemoryHub connects in-process broadcasters, standing in for Redis when all
// store instances live in one process
type MemoryHub struct {
	mu        sync.RWMutex
	listeners map[*MemoryBroadcaster]chan catalog.SyncSignal
	last      *catalog.SyncSignal
}

// NewMemoryHub creates an empty hub
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{listeners: make(map[*MemoryBroadcaster]chan catalog.SyncSignal)}
}

// Join returns a broadcaster attached to the hub
func (h *MemoryHub) Join() *MemoryBroadcaster {
	return &MemoryBroadcaster{hub: h}
}

// Last returns the most recent signal sent through the hub
func (h *MemoryHub) Last() (catalog.SyncSignal, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return catalog.SyncSignal{}, false
	}
	return *h.last, true
}

// Listeners returns the number of participants currently listening
func (h *MemoryHub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *MemoryHub) publish(signal catalog.SyncSignal) {
	h.mu.Lock()
	h.last = &signal
	targets := make([]chan catalog.SyncSignal, 0, len(h.listeners))
	for _, ch := range h.listeners {
		targets = append(targets, ch)
	}
	h.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- signal:
		default:
			// A listener that is this far behind will reload anyway
		}
	}
}

func (h *MemoryHub) subscribe(b *MemoryBroadcaster) chan catalog.SyncSignal {
	ch := make(chan catalog.SyncSignal, 64)
	h.mu.Lock()
	h.listeners[b] = ch
	h.mu.Unlock()
	return ch
}

func (h *MemoryHub) unsubscribe(b *MemoryBroadcaster) {
	h.mu.Lock()
	delete(h.listeners, b)
	h.mu.Unlock()
}

// MemoryBroadcaster is one participant of a MemoryHub
type MemoryBroadcaster struct {
	hub *MemoryHub

	mu       sync.Mutex
	cancelFn context.CancelFunc
	doneCh   chan struct{}
	running  bool
}

// Ensure MemoryBroadcaster implements catalog.Broadcaster
var _ catalog.Broadcaster = (*MemoryBroadcaster)(nil)

// Notify sends the signal to every listening participant, including this one
func (b *MemoryBroadcaster) Notify(_ context.Context, signal catalog.SyncSignal) error {
	if signal.At.IsZero() {
		signal.At = time.Now()
	}
	b.hub.publish(signal)
	return nil
}

// Listen delivers signals to fn until ctx is done or Close is called
func (b *MemoryBroadcaster) Listen(ctx context.Context, fn func(catalog.SyncSignal)) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyListening
	}
	listenCtx, cancel := context.WithCancel(ctx)
	b.running = true
	b.cancelFn = cancel
	b.doneCh = make(chan struct{})
	done := b.doneCh
	b.mu.Unlock()

	ch := b.hub.subscribe(b)
	defer func() {
		b.hub.unsubscribe(b)
		cancel()
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-listenCtx.Done():
			return listenCtx.Err()
		case signal := <-ch:
			fn(signal)
		}
	}
}

// Close stops a running Listen
func (b *MemoryBroadcaster) Close() error {
	b.mu.Lock()
	cancel, done := b.cancelFn, b.doneCh
	b.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}
