// Package processor coordinates the alert derivation pipeline: change
// feed consumer, derivation engine, and alert sink.
package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecoiq/internal/config"
	"ecoiq/internal/engine"
	"ecoiq/internal/feed"
	"ecoiq/internal/logger"
	"ecoiq/internal/models"
	"ecoiq/internal/notify"
	"ecoiq/internal/sink"
	"ecoiq/internal/store"
)

// Processor is the high-level coordinator for consuming the change feed,
// deriving alerts, and dispatching them.
type Processor struct {
	cfg        *config.Config
	pool       *pgxpool.Pool
	deriver    *engine.Deriver
	alertSink  *sink.Sink
	consumer   *feed.Consumer
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs a Processor with given config.
func New(cfg *config.Config) *Processor {
	return &Processor{cfg: cfg}
}

// Run starts the pipeline and blocks until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	log := logger.WithComponent("processor")
	log.Info().Msg("alert processor starting")

	pool, err := store.Connect(ctx, p.cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	p.pool = pool
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	notifier, err := buildNotifier(p.cfg.Notify)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}

	p.deriver = engine.New(p.cfg.Policy)
	p.alertSink = sink.New(store.NewAlertStore(pool), notifier, p.cfg.Notify.Recipient)

	consumer, err := feed.NewConsumer(
		p.cfg.Kafka.Brokers,
		p.cfg.Kafka.Topic,
		p.cfg.Kafka.GroupID,
		p.handleChangeEvent,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize consumer: %w", err)
	}
	p.consumer = consumer
	defer consumer.Close()

	p.initHTTPServer()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Info().Str("addr", p.httpServer.Addr).Msg("starting HTTP server")
		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reportStats(ctx)
	}()

	consumeErr := make(chan error, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		consumeErr <- consumer.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-consumeErr:
		if err != nil {
			log.Error().Err(err).Msg("feed consumer failed")
			p.shutdown()
			return err
		}
	}

	return p.shutdown()
}

// handleChangeEvent runs one feed entry through the engine and sink. A
// returned error leaves the entry uncommitted for redelivery; alerts
// already persisted before the failure will then be derived again with
// fresh ids (at-least-once, no dedup).
func (p *Processor) handleChangeEvent(ctx context.Context, event *models.ChangeEvent) error {
	alerts := p.deriver.Derive(event)
	if len(alerts) == 0 {
		return nil
	}
	return p.alertSink.DispatchAll(ctx, alerts)
}

// initHTTPServer initializes the HTTP server with handlers
func (p *Processor) initHTTPServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", p.healthHandler)
	mux.HandleFunc("/stats", p.statsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	p.httpServer = &http.Server{
		Addr:         p.cfg.HTTP.AlertAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// buildNotifier selects the notification channel from config. An empty
// channel disables notifications without disabling alert persistence.
func buildNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	switch cfg.Channel {
	case "webhook":
		return notify.NewWebhookNotifier(cfg.WebhookURL)
	case "smtp":
		return notify.NewSMTPNotifier(cfg.SMTPAddr, cfg.SMTPFrom)
	case "":
		return notify.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown notify channel %q", cfg.Channel)
	}
}

// shutdown performs graceful shutdown
func (p *Processor) shutdown() error {
	log := logger.WithComponent("processor")
	log.Info().Msg("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := p.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("closing feed consumer")
	if err := p.consumer.Close(); err != nil {
		log.Error().Err(err).Msg("consumer close error")
	}

	p.wg.Wait()

	log.Info().Msg("alert processor stopped gracefully")
	return nil
}

// reportStats periodically logs statistics
func (p *Processor) reportStats(ctx context.Context) {
	log := logger.WithComponent("processor")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			consumerStats := p.consumer.Stats()
			sinkStats := p.alertSink.Stats()

			log.Info().
				Uint64("feed_processed", consumerStats.Processed).
				Uint64("feed_skipped", consumerStats.Skipped).
				Uint64("feed_failed", consumerStats.Failed).
				Uint64("alerts_dispatched", sinkStats.Dispatched).
				Uint64("store_failed", sinkStats.StoreFailed).
				Uint64("notify_failed", sinkStats.NotifyFailed).
				Msg("stats")
		}
	}
}

// healthHandler handles health check requests
func (p *Processor) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := p.pool.Ping(ctx); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// statsHandler returns current statistics
func (p *Processor) statsHandler(w http.ResponseWriter, r *http.Request) {
	consumerStats := p.consumer.Stats()
	sinkStats := p.alertSink.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"feed": {
			"processed": %d,
			"skipped": %d,
			"failed": %d
		},
		"sink": {
			"dispatched": %d,
			"store_failed": %d,
			"notify_failed": %d
		}
	}`,
		consumerStats.Processed,
		consumerStats.Skipped,
		consumerStats.Failed,
		sinkStats.Dispatched,
		sinkStats.StoreFailed,
		sinkStats.NotifyFailed,
	)
}
