package sqlite

import (
	"context"
	"database/sql"
)

// Times are stored as unix nanoseconds so ordering matches creation order.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    profile_image_url TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS khata_sessions (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    customer_name TEXT NOT NULL,
    contact_number TEXT NOT NULL,
    items TEXT NOT NULL DEFAULT '[]',
    grand_total TEXT NOT NULL DEFAULT '0',
    remaining TEXT NOT NULL DEFAULT '0',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_khata_sessions_owner_created ON khata_sessions(owner_id, created_at);
`

func runMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
