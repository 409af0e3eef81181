package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "users and retention_policies",
		SQL: `
CREATE TABLE users (
    id         TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL
);

-- period is validated by the API layer, not here: the retention engine
-- must tolerate values it does not recognize.
CREATE TABLE retention_policies (
    owner_id   TEXT PRIMARY KEY,
    period     TEXT NOT NULL DEFAULT 'keep_forever',
    updated_at INTEGER NOT NULL,

    FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     2,
		Description: "messages: chat history subject to retention",
		SQL: `
CREATE TABLE messages (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content    TEXT NOT NULL,
    created_at INTEGER NOT NULL,

    FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX idx_messages_owner_created ON messages(owner_id, created_at);
`,
	},
	{
		Version:     3,
		Description: "insight_cache: content-addressed generation results",
		SQL: `
CREATE TABLE insight_cache (
    id             INTEGER PRIMARY KEY,
    owner_id       TEXT NOT NULL,
    category       TEXT NOT NULL,
    fingerprint    TEXT NOT NULL,
    result_payload TEXT NOT NULL,
    generated_at   INTEGER NOT NULL,

    UNIQUE (owner_id, category, fingerprint),
    FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
