package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoiq/internal/models"
)

// TelemetryStore persists room telemetry samples. Samples are immutable
// and unique per (room, timestamp); duplicate writes are ignored.
type TelemetryStore struct {
	pool *pgxpool.Pool
}

// NewTelemetryStore constructs a telemetry store over the given pool.
func NewTelemetryStore(pool *pgxpool.Pool) *TelemetryStore {
	return &TelemetryStore{pool: pool}
}

// PutSample inserts a sample and returns the room's previous latest
// sample, which becomes the old image of the resulting change event. A
// nil previous sample means this is the room's first reading.
func (s *TelemetryStore) PutSample(ctx context.Context, sample models.TelemetrySample) (*models.TelemetrySample, error) {
	prev, err := s.latestForRoom(ctx, sample.RoomID)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO telemetry_samples (room_id, ts, temperature, humidity, occupancy, aqi, mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_id, ts) DO NOTHING`,
		sample.RoomID, sample.Timestamp, sample.Temperature, sample.Humidity,
		sample.Occupancy, sample.AQI, string(sample.Mode),
	)
	if err != nil {
		return nil, err
	}

	return prev, nil
}

func (s *TelemetryStore) latestForRoom(ctx context.Context, roomID string) (*models.TelemetrySample, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT room_id, ts, temperature, humidity, occupancy, aqi, mode
		FROM telemetry_samples
		WHERE room_id = $1
		ORDER BY ts DESC
		LIMIT 1`, roomID)

	sample, err := scanSample(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sample, nil
}

// Latest returns the most recent sample for every room.
func (s *TelemetryStore) Latest(ctx context.Context) ([]models.TelemetrySample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (room_id) room_id, ts, temperature, humidity, occupancy, aqi, mode
		FROM telemetry_samples
		ORDER BY room_id, ts DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSamples(rows)
}

// History returns samples for a room since the given time, oldest first.
// A zero since returns the full retained history up to limit.
func (s *TelemetryStore) History(ctx context.Context, roomID string, since time.Time, limit int) ([]models.TelemetrySample, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx, `
		SELECT room_id, ts, temperature, humidity, occupancy, aqi, mode
		FROM telemetry_samples
		WHERE room_id = $1 AND ts >= $2
		ORDER BY ts ASC
		LIMIT $3`, roomID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSamples(rows)
}

func scanSample(row pgx.Row) (*models.TelemetrySample, error) {
	var sample models.TelemetrySample
	var mode string
	err := row.Scan(
		&sample.RoomID, &sample.Timestamp, &sample.Temperature,
		&sample.Humidity, &sample.Occupancy, &sample.AQI, &mode,
	)
	if err != nil {
		return nil, err
	}
	sample.Mode = models.Mode(mode)
	sample.Timestamp = sample.Timestamp.UTC()
	return &sample, nil
}

func collectSamples(rows pgx.Rows) ([]models.TelemetrySample, error) {
	var samples []models.TelemetrySample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, *sample)
	}
	return samples, rows.Err()
}
