package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrAlreadyListening is returned when Listen is called twice on one broadcaster
var ErrAlreadyListening = errors.New("cache: broadcaster is already listening")

// RedisBroadcaster carries product sync signals over Redis. Each Notify
// stores the signal under the channel key (so late joiners can read the
// latest change) and publishes it on the channel of the same name.
type RedisBroadcaster struct {
	client     *redis.Client
	ownsClient bool
	channel    string
	lastTTL    time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	cancelFn context.CancelFunc
	doneCh   chan struct{}
	running  bool
}

// Ensure RedisBroadcaster implements catalog.Broadcaster
var _ catalog.Broadcaster = (*RedisBroadcaster)(nil)

// RedisBroadcasterOption configures a RedisBroadcaster
type RedisBroadcasterOption func(*RedisBroadcaster)

// WithBroadcastChannel overrides catalog.SyncChannel
func WithBroadcastChannel(channel string) RedisBroadcasterOption {
	return func(b *RedisBroadcaster) {
		b.channel = channel
	}
}

// WithBroadcastLogger sets the logger
func WithBroadcastLogger(logger *zap.Logger) RedisBroadcasterOption {
	return func(b *RedisBroadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithOwnedClient makes Close also close the Redis client
func WithOwnedClient() RedisBroadcasterOption {
	return func(b *RedisBroadcaster) {
		b.ownsClient = true
	}
}

// NewRedisBroadcaster creates a broadcaster on an existing client
func NewRedisBroadcaster(client *redis.Client, opts ...RedisBroadcasterOption) *RedisBroadcaster {
	b := &RedisBroadcaster{
		client:  client,
		channel: catalog.SyncChannel,
		lastTTL: 24 * time.Hour,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Notify records and publishes a signal
func (b *RedisBroadcaster) Notify(ctx context.Context, signal catalog.SyncSignal) error {
	if signal.At.IsZero() {
		signal.At = time.Now()
	}
	data, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to marshal sync signal: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.channel, data, b.lastTTL)
	pipe.Publish(ctx, b.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		b.logger.Error("Failed to publish product sync signal",
			zap.String("channel", b.channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish sync signal: %w", err)
	}

	b.logger.Debug("Published product sync signal",
		zap.String("reason", signal.Reason),
		zap.String("origin", signal.Origin))
	return nil
}

// Last returns the most recently stored signal, if any
func (b *RedisBroadcaster) Last(ctx context.Context) (catalog.SyncSignal, bool, error) {
	data, err := b.client.Get(ctx, b.channel).Bytes()
	if errors.Is(err, redis.Nil) {
		return catalog.SyncSignal{}, false, nil
	}
	if err != nil {
		return catalog.SyncSignal{}, false, fmt.Errorf("failed to read last sync signal: %w", err)
	}
	var signal catalog.SyncSignal
	if err := json.Unmarshal(data, &signal); err != nil {
		return catalog.SyncSignal{}, false, fmt.Errorf("failed to decode last sync signal: %w", err)
	}
	return signal, true, nil
}

// Listen subscribes to the channel and calls fn for every signal until ctx
// is done or Close is called. fn runs on the listening goroutine.
func (b *RedisBroadcaster) Listen(ctx context.Context, fn func(catalog.SyncSignal)) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyListening
	}
	subCtx, cancel := context.WithCancel(ctx)
	b.running = true
	b.cancelFn = cancel
	b.doneCh = make(chan struct{})
	done := b.doneCh
	b.mu.Unlock()

	defer func() {
		cancel()
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
		close(done)
	}()

	pubsub := b.client.Subscribe(subCtx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.Info("Subscribed to product sync channel", zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				b.logger.Warn("Product sync channel closed")
				return nil
			}
			var signal catalog.SyncSignal
			if err := json.Unmarshal([]byte(msg.Payload), &signal); err != nil {
				b.logger.Error("Failed to unmarshal sync signal",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			b.deliver(fn, signal)
		}
	}
}

func (b *RedisBroadcaster) deliver(fn func(catalog.SyncSignal), signal catalog.SyncSignal) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic in sync signal handler", zap.Any("panic", r))
		}
	}()
	fn(signal)
}

// Close stops a running Listen and waits for it to return
func (b *RedisBroadcaster) Close() error {
	b.mu.Lock()
	cancel, done := b.cancelFn, b.doneCh
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(defaultCloseTimeout):
			b.logger.Warn("Timeout waiting for sync subscription to stop")
		}
	}
	if b.ownsClient {
		return b.client.Close()
	}
	return nil
}
