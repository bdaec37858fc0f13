// Package sink durably records derived alerts and dispatches their
// notifications. The write is the source of truth: an alert is persisted
// first, and only then is one notification attempt made. Notification
// failures are logged and counted but never propagated, so a downstream
// outage cannot lose alerts from the store.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"ecoiq/internal/logger"
	"ecoiq/internal/metrics"
	"ecoiq/internal/models"
	"ecoiq/internal/notify"
)

// AlertWriter is the insert-only contract the sink needs from the alert
// store. Writes are keyed by the alert's generated id, so concurrent
// dispatches never conflict.
type AlertWriter interface {
	Insert(ctx context.Context, alert models.Alert) error
}

// StoreError wraps a persistence failure for a single alert's dispatch.
// The caller decides retry policy; the sink performs no retries.
type StoreError struct {
	AlertID string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("alert store write failed for %s: %v", e.AlertID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Sink dispatches alerts produced for one change event, in the order the
// engine produced them.
type Sink struct {
	store     AlertWriter
	notifier  notify.Notifier
	recipient string

	dispatched   atomic.Uint64
	storeFailed  atomic.Uint64
	notifyFailed atomic.Uint64
}

// New constructs a Sink. A nil notifier disables notifications.
func New(store AlertWriter, notifier notify.Notifier, recipient string) *Sink {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Sink{
		store:     store,
		notifier:  notifier,
		recipient: recipient,
	}
}

// Dispatch persists one alert and then attempts its notification. A store
// failure returns a *StoreError; a notification failure is observed only.
func (s *Sink) Dispatch(ctx context.Context, alert models.Alert) error {
	log := logger.WithComponent("sink")
	start := time.Now()
	defer func() {
		metrics.SinkDispatchDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.store.Insert(ctx, alert); err != nil {
		s.storeFailed.Add(1)
		metrics.SinkStoreWritesTotal.WithLabelValues("failed").Inc()
		log.Error().
			Err(err).
			Str("alert_id", alert.ID).
			Str("room_id", alert.RoomID).
			Str("type", string(alert.Type)).
			Msg("alert store write failed")
		return &StoreError{AlertID: alert.ID, Err: err}
	}
	metrics.SinkStoreWritesTotal.WithLabelValues("success").Inc()

	// At most one attempt; no retry, no rollback of the persisted alert.
	n := notify.Format(alert, s.recipient)
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.notifyFailed.Add(1)
		metrics.SinkNotifyTotal.WithLabelValues("failed").Inc()
		log.Warn().
			Err(err).
			Str("alert_id", alert.ID).
			Str("room_id", alert.RoomID).
			Msg("notification failed, alert remains persisted")
	} else {
		metrics.SinkNotifyTotal.WithLabelValues("success").Inc()
	}

	s.dispatched.Add(1)
	log.Info().
		Str("alert_id", alert.ID).
		Str("room_id", alert.RoomID).
		Str("type", string(alert.Type)).
		Str("severity", string(alert.Severity)).
		Msg("alert dispatched")

	return nil
}

// DispatchAll dispatches each alert independently, preserving order. A
// failed dispatch does not short-circuit its siblings; all store failures
// are joined into the returned error.
func (s *Sink) DispatchAll(ctx context.Context, alerts []models.Alert) error {
	var errs []error
	for _, alert := range alerts {
		if err := s.Dispatch(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns dispatch counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Dispatched:   s.dispatched.Load(),
		StoreFailed:  s.storeFailed.Load(),
		NotifyFailed: s.notifyFailed.Load(),
	}
}

// Stats holds sink metrics.
type Stats struct {
	Dispatched   uint64
	StoreFailed  uint64
	NotifyFailed uint64
}
