// Package ingest coordinates the telemetry ingestion service: HTTP API,
// sample persistence, and change feed publication.
package ingest

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
	"ecoiq/internal/feed"
	"ecoiq/internal/handlers"
	"ecoiq/internal/logger"
	"ecoiq/internal/metrics"
	"ecoiq/internal/middleware"
	"ecoiq/internal/models"
	"ecoiq/internal/store"
	"ecoiq/internal/worker"
)

// Server is the high-level coordinator for the ingestion service.
type Server struct {
	cfg        *config.Config
	pool       *pgxpool.Pool
	publisher  *feed.Publisher
	workerPool *worker.Pool
	httpServer *http.Server
	sampleChan chan *models.TelemetrySample
	wg         sync.WaitGroup
}

// New constructs a Server with given config.
func New(cfg *config.Config) *Server {
	return &Server{
		cfg:        cfg,
		sampleChan: make(chan *models.TelemetrySample, cfg.Worker.QueueSize),
	}
}

// Run starts the service and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	log := logger.WithComponent("ingest")
	log.Info().Msg("ingest service starting")

	pool, err := store.Connect(ctx, s.cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s.pool = pool
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	publisher, err := feed.NewPublisher(
		s.cfg.Kafka.Brokers,
		s.cfg.Kafka.Topic,
		s.cfg.Kafka.Producer,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize publisher: %w", err)
	}
	s.publisher = publisher
	log.Info().
		Strs("brokers", s.cfg.Kafka.Brokers).
		Str("topic", s.cfg.Kafka.Topic).
		Msg("change feed publisher initialized")

	telemetryStore := store.NewTelemetryStore(pool)

	s.workerPool = worker.NewPool(worker.Config{
		Store:        telemetryStore,
		Publisher:    publisher,
		SampleChan:   s.sampleChan,
		Workers:      s.cfg.Worker.Workers,
		BatchSize:    s.cfg.Worker.BatchSize,
		BatchTimeout: s.cfg.Worker.BatchTimeout,
	})
	s.workerPool.Start()

	s.initHTTPServer(telemetryStore, store.NewAlertStore(pool))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportStats(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return s.shutdown()
}

// initHTTPServer initializes the HTTP server with handlers
func (s *Server) initHTTPServer(telemetryStore *store.TelemetryStore, alertStore *store.AlertStore) {
	mux := http.NewServeMux()

	ingestHandler := handlers.NewIngestHandler(handlers.IngestConfig{
		SampleChan: s.sampleChan,
	})
	roomsHandler := handlers.NewRoomsHandler(telemetryStore)
	alertsHandler := handlers.NewAlertsHandler(alertStore)

	mux.Handle("POST /ingest", ingestHandler)
	mux.HandleFunc("GET /rooms/latest", roomsHandler.Latest)
	mux.HandleFunc("GET /rooms/{room}/history", roomsHandler.History)
	mux.HandleFunc("GET /alerts", alertsHandler.List)
	mux.HandleFunc("POST /alerts/{id}/acknowledge", alertsHandler.Acknowledge)

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	metrics.WorkerQueueCapacity.Set(float64(cap(s.sampleChan)))

	s.httpServer = &http.Server{
		Addr: s.cfg.HTTP.IngestAddr,
		Handler: middleware.Chain(
			mux,
			middleware.Recovery,
			middleware.Logging,
			middleware.CORS,
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// shutdown performs graceful shutdown
func (s *Server) shutdown() error {
	log := logger.WithComponent("ingest")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop accepting new HTTP requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Close sample channel to signal no more incoming samples
	log.Info().Msg("closing sample channel")
	close(s.sampleChan)

	// 3. Wait for workers to drain (with timeout)
	done := make(chan struct{})
	go func() {
		s.workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("workers stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("worker shutdown timeout - forcing exit")
	}

	// 4. Close publisher
	log.Info().Msg("closing feed publisher")
	if err := s.publisher.Close(); err != nil {
		log.Error().Err(err).Msg("publisher close error")
	}

	s.wg.Wait()

	log.Info().Msg("ingest service stopped gracefully")
	return nil
}

// reportStats periodically logs statistics
func (s *Server) reportStats(ctx context.Context) {
	log := logger.WithComponent("ingest")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			workerStats := s.workerPool.Stats()
			publisherStats := s.publisher.Stats()

			metrics.WorkerQueueSize.Set(float64(len(s.sampleChan)))

			log.Info().
				Uint64("worker_processed", workerStats.Processed).
				Uint64("worker_failed", workerStats.Failed).
				Uint64("feed_published", publisherStats.Published).
				Uint64("feed_failed", publisherStats.Failed).
				Int("queue_size", len(s.sampleChan)).
				Msg("stats")
		}
	}
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}
	if err := s.publisher.HealthCheck(ctx); err != nil {
		http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// statsHandler returns current statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	workerStats := s.workerPool.Stats()
	publisherStats := s.publisher.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"worker": {
			"processed": %d,
			"failed": %d
		},
		"feed": {
			"published": %d,
			"failed": %d
		},
		"channel": {
			"buffered": %d,
			"capacity": %d
		}
	}`,
		workerStats.Processed,
		workerStats.Failed,
		publisherStats.Published,
		publisherStats.Failed,
		len(s.sampleChan),
		cap(s.sampleChan),
	)
}
