// Package feed is the telemetry change feed: an ordered stream of
// insert/update events carried over Kafka. Events are keyed by room so
// per-room ordering is preserved within a partition; delivery to
// consumers is at-least-once.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"ecoiq/internal/config"
	"ecoiq/internal/logger"
	"ecoiq/internal/metrics"
	"ecoiq/internal/models"
)

// Publisher errors
var (
	ErrPublisherClosed = errors.New("publisher is closed")
	ErrMissingNewImage = errors.New("change event has no new image")
)

// Publisher writes change events to the feed topic through a pool of
// Kafka writers.
type Publisher struct {
	cfg     config.ProducerConfig
	topic   string
	writers []*kafka.Writer
	pool    chan *kafka.Writer
	closed  atomic.Bool

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewPublisher creates a change feed publisher.
func NewPublisher(brokers []string, topic string, cfg config.ProducerConfig) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}

	p := &Publisher{
		cfg:     cfg,
		topic:   topic,
		writers: make([]*kafka.Writer, cfg.PoolSize),
		pool:    make(chan *kafka.Writer, cfg.PoolSize),
	}

	compression := getCompression(cfg.Compression)

	for i := 0; i < cfg.PoolSize; i++ {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // partition by room
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  compression,
			MaxAttempts:  cfg.MaxRetries + 1,
			Async:        false, // sync for reliability
		}
		p.writers[i] = writer
		p.pool <- writer
	}

	return p, nil
}

func getCompression(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Gzip
	case "snappy":
		return compress.Snappy
	case "lz4":
		return compress.Lz4
	case "zstd":
		return compress.Zstd
	default:
		return compress.None
	}
}

// Publish writes one change event to the feed.
func (p *Publisher) Publish(ctx context.Context, event *models.ChangeEvent) error {
	return p.PublishBatch(ctx, []*models.ChangeEvent{event})
}

// PublishBatch writes a batch of change events in one round trip.
func (p *Publisher) PublishBatch(ctx context.Context, events []*models.ChangeEvent) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}
	if len(events) == 0 {
		return nil
	}

	log := logger.WithComponent("feed_publisher")
	start := time.Now()

	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		if event == nil || event.New == nil {
			p.failed.Add(1)
			metrics.FeedPublishTotal.WithLabelValues("failed").Inc()
			log.Error().Err(ErrMissingNewImage).Msg("dropping unpublishable change event")
			continue
		}

		data, err := event.Encode()
		if err != nil {
			p.failed.Add(1)
			metrics.FeedPublishTotal.WithLabelValues("failed").Inc()
			log.Error().Err(err).Str("room_id", event.New.RoomID).Msg("failed to serialize change event")
			continue
		}

		messages = append(messages, kafka.Message{
			Key:   []byte(event.New.RoomID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(event.Kind)},
				{Key: "room_id", Value: []byte(event.New.RoomID)},
			},
			Time: event.New.Timestamp,
		})
	}

	if len(messages) == 0 {
		return nil
	}

	var writer *kafka.Writer
	select {
	case writer = <-p.pool:
		defer func() { p.pool <- writer }()
	case <-ctx.Done():
		p.failed.Add(uint64(len(messages)))
		return ctx.Err()
	}

	err := p.writeWithRetry(ctx, writer, messages)
	metrics.FeedPublishDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		p.failed.Add(uint64(len(messages)))
		metrics.FeedPublishTotal.WithLabelValues("failed").Add(float64(len(messages)))
		return err
	}

	p.published.Add(uint64(len(messages)))
	metrics.FeedPublishTotal.WithLabelValues("success").Add(float64(len(messages)))
	return nil
}

// writeWithRetry writes messages with exponential backoff retry.
func (p *Publisher) writeWithRetry(ctx context.Context, writer *kafka.Writer, messages []kafka.Message) error {
	log := logger.WithComponent("feed_publisher")
	var lastErr error
	backoff := p.cfg.RetryBackoff

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Int("batch_size", len(messages)).
				Dur("backoff", backoff).
				Msg("retrying feed publish")

			metrics.FeedPublishRetries.Inc()

			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := writer.WriteMessages(ctx, messages...)
		if err == nil {
			return nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Msg("feed publish attempt failed")

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	return fmt.Errorf("feed publish failed after %d attempts: %w", p.cfg.MaxRetries+1, lastErr)
}

// Close closes all writers in the pool.
func (p *Publisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	var errs []error
	for _, writer := range p.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HealthCheck verifies the publisher is usable.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}
	return nil
}

// Stats returns publisher counters.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
	}
}

// PublisherStats holds publisher metrics.
type PublisherStats struct {
	Published uint64
	Failed    uint64
}
