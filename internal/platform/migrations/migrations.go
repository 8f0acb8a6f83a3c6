// Package migrations applies the schema the platform needs at startup.
// Statements are idempotent so repeated application is safe.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS social_accounts (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		platform TEXT NOT NULL,
		handle TEXT NOT NULL DEFAULT '',
		access_token TEXT NOT NULL DEFAULT '',
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, platform)
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		platform TEXT NOT NULL,
		external_id TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		posted_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		wallet TEXT NOT NULL DEFAULT '',
		paid_tier TEXT NOT NULL DEFAULT 'free',
		paid_until TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS subscriptions_wallet_idx
		ON subscriptions (LOWER(wallet)) WHERE wallet <> ''`,
	`CREATE TABLE IF NOT EXISTS daily_usage (
		user_id UUID NOT NULL,
		day TEXT NOT NULL,
		posts INT NOT NULL DEFAULT 0,
		research INT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, day)
	)`,
	`CREATE TABLE IF NOT EXISTS streaks (
		user_id UUID PRIMARY KEY,
		current INT NOT NULL DEFAULT 0,
		longest INT NOT NULL DEFAULT 0,
		last_post_day TEXT NOT NULL DEFAULT '',
		total_posts INT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS achievements (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		type TEXT NOT NULL,
		unlocked_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, type)
	)`,
	`CREATE TABLE IF NOT EXISTS webhooks (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		external_id TEXT NOT NULL DEFAULT '',
		wallet TEXT NOT NULL DEFAULT '',
		callback_url TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_events (
		id UUID PRIMARY KEY,
		type TEXT NOT NULL,
		signature TEXT NOT NULL UNIQUE,
		wallet TEXT NOT NULL DEFAULT '',
		amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		raw TEXT NOT NULL DEFAULT '',
		seen_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scheduled_posts (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		platform TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		rule TEXT NOT NULL DEFAULT '',
		run_at TIMESTAMPTZ,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INT NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		last_run TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Apply executes all schema statements in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
