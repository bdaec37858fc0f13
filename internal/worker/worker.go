package worker

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"ecoiq/internal/logger"
	"ecoiq/internal/metrics"
	"ecoiq/internal/models"
)

// SampleStore persists a sample and reports the room's previous latest
// sample, which becomes the old image of the change event.
type SampleStore interface {
	PutSample(ctx context.Context, sample models.TelemetrySample) (*models.TelemetrySample, error)
}

// Publisher defines the interface for publishing change events to the feed.
type Publisher interface {
	Publish(ctx context.Context, event *models.ChangeEvent) error
	PublishBatch(ctx context.Context, events []*models.ChangeEvent) error
}

// Pool manages workers that drain the ingest channel: each sample is
// persisted, converted into a change event, and the events are published
// to the feed in batches.
type Pool struct {
	store        SampleStore
	publisher    Publisher
	sampleChan   chan *models.TelemetrySample
	workers      int
	batchSize    int
	batchTimeout time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	processed atomic.Uint64
	failed    atomic.Uint64
}

// Config holds worker pool configuration
type Config struct {
	Store        SampleStore
	Publisher    Publisher
	SampleChan   chan *models.TelemetrySample
	Workers      int
	BatchSize    int
	BatchTimeout time.Duration
}

// NewPool creates a new worker pool
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		store:        cfg.Store,
		publisher:    cfg.Publisher,
		sampleChan:   cfg.SampleChan,
		workers:      cfg.Workers,
		batchSize:    cfg.BatchSize,
		batchTimeout: cfg.BatchTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins processing samples
func (p *Pool) Start() {
	log := logger.WithComponent("worker_pool")
	log.Info().
		Int("workers", p.workers).
		Int("batch_size", p.batchSize).
		Dur("batch_timeout", p.batchTimeout).
		Msg("starting worker pool")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully stops all workers
func (p *Pool) Stop() {
	log := logger.WithComponent("worker_pool")
	log.Info().Msg("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	log.Info().Msg("worker pool stopped")
}

// worker drains the sample channel, persisting each sample as it arrives
// and batching the resulting change events for the feed.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("worker").With().Int("worker_id", id).Logger()

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			log.Error().
				Interface("panic", r).
				Bytes("stack", stack).
				Msg("worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("worker").Inc()
		}
	}()

	log.Info().Msg("worker started")
	defer log.Info().Msg("worker stopped")

	batch := make([]*models.ChangeEvent, 0, p.batchSize)
	timer := time.NewTimer(p.batchTimeout)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			if len(batch) > 0 {
				p.publishBatch(batch)
			}
			return

		case sample, ok := <-p.sampleChan:
			if !ok {
				// Channel closed, flush and exit
				if len(batch) > 0 {
					p.publishBatch(batch)
				}
				return
			}

			event := p.persist(sample)
			if event == nil {
				continue
			}
			batch = append(batch, event)

			if len(batch) >= p.batchSize {
				p.publishBatch(batch)
				batch = batch[:0]
				timer.Reset(p.batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				p.publishBatch(batch)
				batch = batch[:0]
			}
			timer.Reset(p.batchTimeout)
		}
	}
}

// persist writes the sample and builds its change event. The first sample
// for a room yields an insert; later samples yield updates carrying the
// room's previous reading as the old image.
func (p *Pool) persist(sample *models.TelemetrySample) *models.ChangeEvent {
	log := logger.WithComponent("worker")

	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()

	prev, err := p.store.PutSample(ctx, *sample)
	if err != nil {
		p.failed.Add(1)
		metrics.WorkerFailedTotal.Inc()
		log.Error().
			Err(err).
			Str("room_id", sample.RoomID).
			Time("ts", sample.Timestamp).
			Msg("failed to persist sample")
		return nil
	}

	kind := models.ChangeInsert
	if prev != nil {
		kind = models.ChangeUpdate
	}

	return &models.ChangeEvent{Kind: kind, New: sample, Old: prev}
}

// publishBatch publishes a batch of change events to the feed.
func (p *Pool) publishBatch(batch []*models.ChangeEvent) {
	if len(batch) == 0 {
		return
	}

	log := logger.WithComponent("worker")
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, 10*time.Second)
	defer cancel()

	err := p.publisher.PublishBatch(ctx, batch)
	duration := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Int("batch_size", len(batch)).
			Dur("duration", duration).
			Msg("failed to publish change event batch")

		p.failed.Add(uint64(len(batch)))
		metrics.WorkerFailedTotal.Add(float64(len(batch)))

		// Fallback: try publishing individually
		p.publishIndividually(batch)
	} else {
		log.Debug().
			Int("batch_size", len(batch)).
			Dur("duration", duration).
			Msg("change event batch published")

		p.processed.Add(uint64(len(batch)))
		metrics.WorkerProcessedTotal.Add(float64(len(batch)))
	}
}

// publishIndividually tries to publish each change event separately (fallback)
func (p *Pool) publishIndividually(batch []*models.ChangeEvent) {
	log := logger.WithComponent("worker")
	log.Warn().Int("count", len(batch)).Msg("attempting individual publish for failed batch")

	for _, event := range batch {
		ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
		err := p.publisher.Publish(ctx, event)
		cancel()

		if err != nil {
			log.Error().
				Err(err).
				Str("room_id", event.New.RoomID).
				Msg("failed to publish change event individually")
		} else {
			// Don't count twice - subtract from failed, add to processed
			p.failed.Add(^uint64(0))
			p.processed.Add(1)
		}
	}
}

// Stats returns worker pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Stats holds worker pool metrics
type Stats struct {
	Processed uint64
	Failed    uint64
}
