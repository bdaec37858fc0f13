package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoiq_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoiq_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Ingest metrics
	IngestSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoiq_ingest_samples_total",
			Help: "Total number of telemetry samples received",
		},
		[]string{"status"}, // status: accepted, rejected
	)

	IngestValidationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoiq_ingest_validation_errors_total",
			Help: "Total number of sample validation errors",
		},
		[]string{"error_type"},
	)

	// Worker metrics
	WorkerQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoiq_worker_queue_size",
			Help: "Current size of the ingest worker queue",
		},
	)

	WorkerQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoiq_worker_queue_capacity",
			Help: "Capacity of the ingest worker queue",
		},
	)

	WorkerProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecoiq_worker_processed_total",
			Help: "Total number of samples persisted and published by workers",
		},
	)

	WorkerFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecoiq_worker_failed_total",
			Help: "Total number of samples failed in workers",
		},
	)

	// Change feed metrics
	FeedPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoiq_feed_publish_total",
			Help: "Total number of change events published to the feed",
		},
		[]string{"status"}, // status: success, failed
	)

	FeedPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ecoiq_feed_publish_duration_seconds",
			Help:    "Time taken to publish a change event batch",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	FeedPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecoiq_feed_publish_retries_total",
			Help: "Total number of change feed publish retries",
		},
	)

	FeedConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoiq_feed_consumed_total",
			Help: "Total number of change feed entries consumed",
		},
		[]string{"status"}, // status: processed, skipped, failed
	)

	// Derivation metrics
	AlertsDerivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoiq_alerts_derived_total",
			Help: "Total number of alerts produced by the derivation engine",
		},
		[]string{"type", "severity"},
	)

	// Sink metrics. A failed store write means a lost alert, so that is
	// the series to watch for alerting on the alerting system itself.
	SinkStoreWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoiq_sink_store_writes_total",
			Help: "Total number of alert store writes attempted by the sink",
		},
		[]string{"status"}, // status: success, failed
	)

	SinkNotifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoiq_sink_notify_total",
			Help: "Total number of notification attempts",
		},
		[]string{"status"}, // status: success, failed, skipped
	)

	SinkDispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ecoiq_sink_dispatch_duration_seconds",
			Help:    "Time taken to dispatch one alert (store write plus notify)",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoiq_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
