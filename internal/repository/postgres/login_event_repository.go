// Package postgres stores audit events in a relational login_events table.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"login-service/internal/models"
)

const createLoginEvents = `
	CREATE TABLE IF NOT EXISTS login_events (
		event_id     TEXT PRIMARY KEY,
		event_time   TIMESTAMPTZ NOT NULL,
		event_type   TEXT NOT NULL,
		account_id   TEXT,
		session_ref  TEXT,
		success      BOOLEAN NOT NULL,
		reason       TEXT,
		ip_address   TEXT,
		user_agent   TEXT,
		request_id   TEXT
	)`

const insertLoginEvent = `
	INSERT INTO login_events (
		event_id, event_time, event_type, account_id, session_ref,
		success, reason, ip_address, user_agent, request_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (event_id) DO NOTHING`

// LoginEventRepository appends audit events to login_events.
type LoginEventRepository struct {
	pool *pgxpool.Pool
}

func NewLoginEventRepository(pool *pgxpool.Pool) *LoginEventRepository {
	return &LoginEventRepository{pool: pool}
}

// EnsureSchema creates login_events when it does not exist yet.
func (r *LoginEventRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createLoginEvents); err != nil {
		return fmt.Errorf("failed to create login_events: %w", err)
	}
	return nil
}

func (r *LoginEventRepository) Name() string { return "postgres" }

// Write inserts all events in one round trip. Event IDs are unique, so a retried batch
// does not duplicate rows.
func (r *LoginEventRepository) Write(ctx context.Context, events []models.SecurityEvent) error {
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(insertLoginEvent,
			e.EventID, e.EventTime, string(e.EventType), nullIfEmpty(e.AccountID), nullIfEmpty(e.SessionRef),
			e.Success, nullIfEmpty(e.Reason), nullIfEmpty(e.IPAddress), nullIfEmpty(e.UserAgent), nullIfEmpty(e.RequestID))
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert login events: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
