package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/storefront-realtime/internal/auth"
)

// DB is the subset of *pgxpool.Pool the Postgres sink uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const createActivityTable = `
CREATE TABLE IF NOT EXISTS activity_events (
    id          BIGSERIAL PRIMARY KEY,
    session_id  TEXT        NOT NULL,
    service     TEXT        NOT NULL,
    action      TEXT        NOT NULL,
    user_id     TEXT        NOT NULL,
    url         TEXT        NOT NULL DEFAULT '',
    user_agent  TEXT        NOT NULL DEFAULT '',
    data        JSONB       NOT NULL DEFAULT '{}',
    occurred_at TIMESTAMPTZ NOT NULL
)`

const insertActivity = `
INSERT INTO activity_events (session_id, service, action, user_id, url, user_agent, data, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// PostgresSink writes records straight into an activity_events table.
// Each batch is sent in one round trip.
type PostgresSink struct {
	db DB
}

// NewPostgresSink creates a sink over db.
func NewPostgresSink(db DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema creates the activity table if it does not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createActivityTable); err != nil {
		return fmt.Errorf("create activity table: %w", err)
	}
	return nil
}

// Deliver implements Sink.
func (s *PostgresSink) Deliver(ctx context.Context, rec Record, creds auth.Credentials) error {
	return s.DeliverBatch(ctx, []Record{rec}, creds)
}

// DeliverBatch implements BatchSink.
func (s *PostgresSink) DeliverBatch(ctx context.Context, recs []Record, _ auth.Credentials) error {
	if len(recs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range recs {
		data, err := json.Marshal(rec.Data)
		if err != nil {
			return fmt.Errorf("marshal record data: %w", err)
		}
		batch.Queue(insertActivity,
			rec.SessionID,
			rec.Service,
			rec.Action,
			rec.UserID,
			rec.URL,
			rec.UserAgent,
			data,
			rec.Time(),
		)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
	}

	return nil
}
