package db

import "fmt"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS requests (
	    id INTEGER PRIMARY KEY AUTOINCREMENT,
	    user_id INTEGER NOT NULL,
	    username TEXT,
	    first_name TEXT,
	    last_name TEXT,
	    status TEXT NOT NULL DEFAULT 'pending',
	    created_at TIMESTAMP NOT NULL,
	    approved_at TIMESTAMP,
	    admin_message_id INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS responses (
	    id INTEGER PRIMARY KEY AUTOINCREMENT,
	    request_id INTEGER NOT NULL REFERENCES requests (id),
	    question_id TEXT NOT NULL,
	    answer TEXT NOT NULL,
	    UNIQUE (request_id, question_id)
	)`,
	`CREATE TABLE IF NOT EXISTS invite_links (
	    id INTEGER PRIMARY KEY AUTOINCREMENT,
	    request_id INTEGER NOT NULL REFERENCES requests (id),
	    link TEXT NOT NULL,
	    name TEXT NOT NULL,
	    created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_status_created_at ON requests (status, created_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS requests (
	    id BIGSERIAL PRIMARY KEY,
	    user_id BIGINT NOT NULL,
	    username TEXT,
	    first_name TEXT,
	    last_name TEXT,
	    status TEXT NOT NULL DEFAULT 'pending',
	    created_at TIMESTAMPTZ NOT NULL,
	    approved_at TIMESTAMPTZ,
	    admin_message_id BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS responses (
	    id BIGSERIAL PRIMARY KEY,
	    request_id BIGINT NOT NULL REFERENCES requests (id),
	    question_id TEXT NOT NULL,
	    answer TEXT NOT NULL,
	    UNIQUE (request_id, question_id)
	)`,
	`CREATE TABLE IF NOT EXISTS invite_links (
	    id BIGSERIAL PRIMARY KEY,
	    request_id BIGINT NOT NULL REFERENCES requests (id),
	    link TEXT NOT NULL,
	    name TEXT NOT NULL,
	    created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_status_created_at ON requests (status, created_at)`,
}

// RunMigrations creates the schema if it does not exist yet.
func RunMigrations(db *DB) error {
	schema := sqliteSchema
	if db.Conn.DriverName() == "postgres" {
		schema = postgresSchema
	}

	for _, stmt := range schema {
		if _, err := db.Conn.Exec(stmt); err != nil {
			return fmt.Errorf("db.RunMigrations: %w", err)
		}
	}

	return nil
}
