// Package broadcast carries product sync signals between store instances
// over Kafka.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaBroadcaster publishes sync signals to a topic. Every instance reads
// the topic with its own consumer group so that each one sees every signal.
type KafkaBroadcaster struct {
	writer messageWriter
	reader messageReader
	logger *zap.Logger

	closeOnce sync.Once
}

// Ensure KafkaBroadcaster implements catalog.Broadcaster
var _ catalog.Broadcaster = (*KafkaBroadcaster)(nil)

// NewKafkaBroadcaster creates a broadcaster for instanceID
func NewKafkaBroadcaster(cfg config.KafkaConfig, instanceID string, logger *zap.Logger) (*KafkaBroadcaster, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID + "-" + instanceID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     500 * time.Millisecond,
	})
	return newKafkaBroadcaster(writer, reader, logger), nil
}

func newKafkaBroadcaster(w messageWriter, r messageReader, logger *zap.Logger) *KafkaBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaBroadcaster{writer: w, reader: r, logger: logger}
}

// Notify writes the signal keyed by its origin
func (b *KafkaBroadcaster) Notify(ctx context.Context, signal catalog.SyncSignal) error {
	if signal.At.IsZero() {
		signal.At = time.Now()
	}
	data, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to marshal sync signal: %w", err)
	}
	err = b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(signal.Origin),
		Value: data,
		Time:  signal.At,
	})
	if err != nil {
		return fmt.Errorf("failed to publish sync signal: %w", err)
	}
	return nil
}

// Listen reads signals until ctx is done. Read errors other than
// cancellation are logged and reading continues.
func (b *KafkaBroadcaster) Listen(ctx context.Context, fn func(catalog.SyncSignal)) error {
	for {
		msg, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			b.logger.Warn("Failed to read sync signal", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		var signal catalog.SyncSignal
		if err := json.Unmarshal(msg.Value, &signal); err != nil {
			b.logger.Error("Failed to unmarshal sync signal",
				zap.ByteString("payload", msg.Value),
				zap.Error(err))
			continue
		}
		fn(signal)
	}
}

// Close closes the writer and the reader
func (b *KafkaBroadcaster) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = errors.Join(b.writer.Close(), b.reader.Close())
	})
	return err
}
