// Package store implements the telemetry and alert stores on Postgres.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ecoiq/internal/logger"
)

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// migrations are applied in order at startup. Statements are idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS telemetry_samples (
		room_id     TEXT             NOT NULL,
		ts          TIMESTAMPTZ      NOT NULL,
		temperature DOUBLE PRECISION NOT NULL,
		humidity    DOUBLE PRECISION NOT NULL,
		occupancy   INTEGER          NOT NULL,
		aqi         DOUBLE PRECISION NOT NULL,
		mode        TEXT             NOT NULL,
		PRIMARY KEY (room_id, ts)
	)`,
	`CREATE INDEX IF NOT EXISTS telemetry_samples_room_ts_idx
		ON telemetry_samples (room_id, ts DESC)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id              UUID        PRIMARY KEY,
		ts              TIMESTAMPTZ NOT NULL,
		room_id         TEXT        NOT NULL,
		type            TEXT        NOT NULL,
		severity        TEXT        NOT NULL,
		message         TEXT        NOT NULL,
		acknowledged    BOOLEAN     NOT NULL DEFAULT FALSE,
		acknowledged_at TIMESTAMPTZ,
		details         JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS alerts_room_ts_idx ON alerts (room_id, ts DESC)`,
	`CREATE INDEX IF NOT EXISTS alerts_ack_idx ON alerts (acknowledged, ts DESC)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log := logger.WithComponent("store")
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	log.Info().Int("statements", len(migrations)).Msg("schema migrations applied")
	return nil
}
