package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"ecoiq/internal/models"
)

func TestNewConsumerValidation(t *testing.T) {
	handler := func(ctx context.Context, event *models.ChangeEvent) error { return nil }

	tests := []struct {
		name    string
		brokers []string
		topic   string
		groupID string
		handler Handler
	}{
		{"no brokers", nil, "t", "g", handler},
		{"no topic", []string{"localhost:9092"}, "", "g", handler},
		{"no group", []string{"localhost:9092"}, "t", "", handler},
		{"no handler", []string{"localhost:9092"}, "t", "g", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewConsumer(tt.brokers, tt.topic, tt.groupID, tt.handler); err == nil {
				t.Error("expected constructor error")
			}
		})
	}
}

func TestHandleSkipsUndecodablePayload(t *testing.T) {
	called := false
	c, err := NewConsumer([]string{"localhost:9092"}, "t", "g", func(ctx context.Context, event *models.ChangeEvent) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	// Skipped entries return nil so the offset commits past them.
	if err := c.handle(context.Background(), kafka.Message{Value: []byte("{malformed")}); err != nil {
		t.Errorf("handle = %v, want nil", err)
	}
	if called {
		t.Error("handler must not run for undecodable payloads")
	}
	if stats := c.Stats(); stats.Skipped != 1 || stats.Processed != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHandleErrorLeavesEntryUncommitted(t *testing.T) {
	wantErr := errors.New("sink down")
	c, err := NewConsumer([]string{"localhost:9092"}, "t", "g", func(ctx context.Context, event *models.ChangeEvent) error {
		return wantErr
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	payload := []byte(`{"kind":"insert","new":{"room_id":"room-1","timestamp":"2026-05-01T12:00:00Z","temperature":31,"humidity":40,"occupancy":2,"aqi":50,"mode":"Cool"}}`)
	if err := c.handle(context.Background(), kafka.Message{Value: payload}); !errors.Is(err, wantErr) {
		t.Errorf("handle = %v, want handler error", err)
	}
	if stats := c.Stats(); stats.Processed != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHandleCountsProcessed(t *testing.T) {
	var got *models.ChangeEvent
	c, err := NewConsumer([]string{"localhost:9092"}, "t", "g", func(ctx context.Context, event *models.ChangeEvent) error {
		got = event
		return nil
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	payload := []byte(`{"kind":"modify","new":{"room_id":"room-1","timestamp":"2026-05-01T12:00:00Z","temperature":22,"humidity":40,"occupancy":2,"aqi":50,"mode":"Comfort"},"old":{"room_id":"room-1","timestamp":"2026-05-01T11:00:00Z","temperature":22,"humidity":40,"occupancy":0,"aqi":50,"mode":"Eco"}}`)
	if err := c.handle(context.Background(), kafka.Message{Value: payload}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got == nil || got.Kind != models.ChangeUpdate || got.Old == nil {
		t.Errorf("event = %+v", got)
	}
	if stats := c.Stats(); stats.Processed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
