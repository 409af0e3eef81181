package store

import (
	"context"
	"fmt"
	"time"
)

// DefaultPeriod is the retention period a newly provisioned user starts with.
const DefaultPeriod = "keep_forever"

// EnsureUser provisions a user and their default retention policy.
// Safe to call on every request; existing rows are left untouched.
func (db *DB) EnsureUser(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return fmt.Errorf("ensure user: empty owner id")
	}
	now := time.Now().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ensure user: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (id, created_at) VALUES (?, ?)
	`, ownerID, now); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO retention_policies (owner_id, period, updated_at) VALUES (?, ?, ?)
	`, ownerID, DefaultPeriod, now); err != nil {
		return fmt.Errorf("insert default policy: %w", err)
	}
	return tx.Commit()
}

// DeleteUser removes a user; policy, messages and cached insights cascade.
func (db *DB) DeleteUser(ctx context.Context, ownerID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, ownerID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
