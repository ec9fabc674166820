package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lucirr/dip-console/pkg/contextkeys"
	"github.com/lucirr/dip-console/pkg/observability"
)

// Recorder persists authentication and authorization decisions to
// PostgreSQL. Recording is best effort: a failed insert is logged and never
// fails the request that triggered it.
type Recorder struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewRecorder creates a recorder and ensures the audit table exists.
func NewRecorder(db *sql.DB, logger *observability.Logger) (*Recorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	r := &Recorder{db: db, logger: logger}
	if err := r.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}
	return r, nil
}

func (r *Recorder) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		username VARCHAR(255),
		request_id VARCHAR(100),
		path TEXT,
		operation VARCHAR(100),
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_events_username ON audit_events(username);
	`
	_, err := r.db.Exec(query)
	return err
}

// Record writes one event. Timestamp defaults to now; the request ID is
// taken from the context when not set on the event.
func (r *Recorder) Record(ctx context.Context, event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = contextkeys.RequestIDFrom(ctx)
	}

	query := `
		INSERT INTO audit_events (timestamp, event_type, status, username, request_id, path, operation, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		event.Timestamp, event.EventType, event.Status,
		event.Username, event.RequestID, event.Path, event.Operation, event.Message,
	).Scan(&event.ID)
	if err != nil {
		r.logger.WithError(err).WithField("event_type", string(event.EventType)).
			Warn("Failed to record audit event")
	}
}

// List returns events matching the filter, newest first.
func (r *Recorder) List(ctx context.Context, filter Filter) ([]*Event, error) {
	query := `
		SELECT id, timestamp, event_type, status, username, request_id, path, operation, message
		FROM audit_events
		WHERE ($1 = '' OR event_type = $1)
		  AND ($2 = '' OR username = $2)
		  AND ($3::timestamptz IS NULL OR timestamp >= $3)
		ORDER BY timestamp DESC
		LIMIT $4
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var since interface{}
	if !filter.Since.IsZero() {
		since = filter.Since
	}

	rows, err := r.db.QueryContext(ctx, query, string(filter.EventType), filter.Username, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.Status,
			&e.Username, &e.RequestID, &e.Path, &e.Operation, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// DeleteOlderThan removes events past the retention window and returns how
// many were dropped.
func (r *Recorder) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	result, err := r.db.ExecContext(ctx, "DELETE FROM audit_events WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit events: %w", err)
	}
	return result.RowsAffected()
}
