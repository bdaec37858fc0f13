package feed

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go/compress"

	"ecoiq/internal/config"
	"ecoiq/internal/models"
)

func TestNewPublisherValidation(t *testing.T) {
	if _, err := NewPublisher(nil, "topic", config.ProducerConfig{}); err == nil {
		t.Error("expected error for empty brokers")
	}
	if _, err := NewPublisher([]string{"localhost:9092"}, "", config.ProducerConfig{}); err == nil {
		t.Error("expected error for empty topic")
	}
}

func TestGetCompression(t *testing.T) {
	tests := []struct {
		name string
		want compress.Compression
	}{
		{"gzip", compress.Gzip},
		{"snappy", compress.Snappy},
		{"lz4", compress.Lz4},
		{"zstd", compress.Zstd},
		{"", compress.None},
		{"unknown", compress.None},
	}
	for _, tt := range tests {
		if got := getCompression(tt.name); got != tt.want {
			t.Errorf("getCompression(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPublishBatchDropsEventsWithoutNewImage(t *testing.T) {
	p, err := NewPublisher([]string{"localhost:9092"}, "topic", config.ProducerConfig{PoolSize: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer p.Close()

	// Every event lacks a new image, so nothing reaches the broker and no
	// connection is attempted.
	events := []*models.ChangeEvent{
		nil,
		{Kind: models.ChangeInsert},
	}
	if err := p.PublishBatch(context.Background(), events); err != nil {
		t.Errorf("publish: %v", err)
	}
	if stats := p.Stats(); stats.Failed != 2 || stats.Published != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	p, err := NewPublisher([]string{"localhost:9092"}, "topic", config.ProducerConfig{PoolSize: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	err = p.Publish(context.Background(), &models.ChangeEvent{Kind: models.ChangeInsert, New: &models.TelemetrySample{RoomID: "r"}})
	if err != ErrPublisherClosed {
		t.Errorf("err = %v, want ErrPublisherClosed", err)
	}
	if err := p.HealthCheck(context.Background()); err != ErrPublisherClosed {
		t.Errorf("health = %v, want ErrPublisherClosed", err)
	}
}
