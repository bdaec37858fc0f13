package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecoiq/internal/models"
)

// ErrAlertNotFound is returned when an alert id does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// AlertStore persists derived alerts. Inserts are append-only and keyed
// by the generated alert id; only the acknowledgement fields are ever
// updated afterwards.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore constructs an alert store over the given pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Insert writes one alert.
func (s *AlertStore) Insert(ctx context.Context, alert models.Alert) error {
	var details []byte
	if alert.Details != nil {
		var err error
		details, err = json.Marshal(alert.Details)
		if err != nil {
			return err
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (id, ts, room_id, type, severity, message, acknowledged, acknowledged_at, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		alert.ID, alert.Timestamp, alert.RoomID, string(alert.Type), string(alert.Severity),
		alert.Message, alert.Acknowledged, alert.AcknowledgedAt, details,
	)
	return err
}

// AlertFilter narrows List results. Zero values match everything.
type AlertFilter struct {
	RoomID       string
	Type         models.AlertType
	Acknowledged *bool
	Limit        int
}

// List returns alerts newest first.
func (s *AlertStore) List(ctx context.Context, filter AlertFilter) ([]models.Alert, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, room_id, type, severity, message, acknowledged, acknowledged_at, details
		FROM alerts
		WHERE ($1 = '' OR room_id = $1)
		  AND ($2 = '' OR type = $2)
		  AND ($3::boolean IS NULL OR acknowledged = $3)
		ORDER BY ts DESC
		LIMIT $4`,
		filter.RoomID, string(filter.Type), filter.Acknowledged, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}

// Acknowledge marks an alert acknowledged, stamping acknowledged_at with
// the current time, and returns the updated alert. Acknowledging an
// already-acknowledged alert is a no-op that keeps the original stamp.
func (s *AlertStore) Acknowledge(ctx context.Context, id string) (*models.Alert, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE alerts
		SET acknowledged = TRUE,
		    acknowledged_at = COALESCE(acknowledged_at, $2)
		WHERE id = $1
		RETURNING id, ts, room_id, type, severity, message, acknowledged, acknowledged_at, details`,
		id, time.Now().UTC())

	alert, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var (
		alert    models.Alert
		alertTyp string
		severity string
		ackAt    *time.Time
		details  []byte
	)

	err := row.Scan(
		&alert.ID, &alert.Timestamp, &alert.RoomID, &alertTyp, &severity,
		&alert.Message, &alert.Acknowledged, &ackAt, &details,
	)
	if err != nil {
		return nil, err
	}

	alert.Type = models.AlertType(alertTyp)
	alert.Severity = models.Severity(severity)
	alert.Timestamp = alert.Timestamp.UTC()
	if ackAt != nil {
		t := ackAt.UTC()
		alert.AcknowledgedAt = &t
	}

	alert.Details, err = models.DecodeDetails(alert.Type, details)
	if err != nil {
		return nil, err
	}

	return &alert, nil
}
