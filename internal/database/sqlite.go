// Package database provides the sqlite-backed interaction store.
package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id                      TEXT PRIMARY KEY,
	user_id                 TEXT NOT NULL,
	platform                TEXT NOT NULL,
	ts                      TIMESTAMP NOT NULL,
	raw_incoming_message    TEXT NOT NULL,
	identified_creator      TEXT NOT NULL DEFAULT '',
	discount_code_sent      TEXT NOT NULL DEFAULT '',
	conversation_status     TEXT NOT NULL,
	follower_count          INTEGER NOT NULL DEFAULT 0,
	is_potential_influencer BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_interactions_user
	ON interactions (platform, user_id);
CREATE INDEX IF NOT EXISTS idx_interactions_creator
	ON interactions (identified_creator);
`

// Open connects to sqlite at dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}
