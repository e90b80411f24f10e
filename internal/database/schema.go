package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used for schema setup.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the journal table. Statements are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS status_events (
		id          UUID PRIMARY KEY,
		instance_id TEXT        NOT NULL,
		session_id  TEXT        NOT NULL DEFAULT '',
		event       TEXT        NOT NULL,
		frame_type  TEXT        NOT NULL DEFAULT '',
		agent_id    TEXT        NOT NULL DEFAULT '',
		state       TEXT        NOT NULL DEFAULT '',
		payload     JSONB       NOT NULL DEFAULT '{}'::jsonb,
		received_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS status_events_received_at_idx ON status_events (received_at)`,
	`CREATE INDEX IF NOT EXISTS status_events_agent_idx ON status_events (agent_id, received_at) WHERE agent_id <> ''`,
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
