package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema statements are idempotent so the bot can own its own bootstrap the
// same way it owns its data. The partial unique index on requests is what
// makes "at most one pending request per user" a storage guarantee instead
// of a read-then-write check.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		status TEXT NOT NULL DEFAULT 'new',
		device_limit INT NOT NULL DEFAULT 0,
		devices_used INT NOT NULL DEFAULT 0,
		expires_at TIMESTAMPTZ,
		menu_message_id BIGINT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS requests (
		id UUID PRIMARY KEY,
		user_id BIGINT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS requests_one_pending
		ON requests (user_id) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS requests_status_created
		ON requests (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS wizard_sessions (
		request_id UUID PRIMARY KEY,
		operator_id BIGINT NOT NULL,
		device_limit INT NOT NULL,
		expires_days INT NOT NULL,
		step TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rotation_state (
		user_id BIGINT NOT NULL,
		stage TEXT NOT NULL,
		last_index INT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, stage)
	)`,
}

// EnsureSchema applies the bot schema, creating missing tables and indexes.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
