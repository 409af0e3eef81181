package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is a single chat turn owned by one user. Messages are never
// updated; the retention engine is the only thing that deletes them.
type Message struct {
	ID        string
	OwnerID   string
	Role      string // "user" or "assistant"
	Content   string
	CreatedAt int64 // unix millis
}

// Tx is the transaction a post-append hook runs in. It exposes the subset
// of store operations a hook may need.
type Tx struct {
	tx *sql.Tx
}

// GetPolicy reads the owner's policy inside the append transaction.
func (t *Tx) GetPolicy(ctx context.Context, ownerID string) (*RetentionPolicy, error) {
	return getPolicy(ctx, t.tx, ownerID)
}

// DeleteRecordsOlderThan deletes inside the append transaction.
func (t *Tx) DeleteRecordsOlderThan(ctx context.Context, ownerID string, cutoff time.Time) (int64, error) {
	return deleteRecordsOlderThan(ctx, t.tx, ownerID, cutoff)
}

// AppendHook runs after a message insert, in the same transaction.
type AppendHook func(ctx context.Context, tx *Tx, msg *Message) error

// OnMessageAppended registers a hook to run after every AppendMessage.
// Hooks run in registration order. Register before serving traffic.
func (db *DB) OnMessageAppended(hook AppendHook) {
	db.hooks = append(db.hooks, hook)
}

// AppendMessage inserts a message and runs the registered hooks in the same
// transaction. Each hook gets its own savepoint: a failing hook is rolled
// back and logged, and the insert still commits.
func (db *DB) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().UnixMilli()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, owner_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.OwnerID, msg.Role, msg.Content, msg.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	for i, hook := range db.hooks {
		db.runHook(ctx, tx, fmt.Sprintf("after_append_%d", i), hook, msg)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (db *DB) runHook(ctx context.Context, tx *sql.Tx, savepoint string, hook AppendHook, msg *Message) {
	logger := db.log.WithField("owner_id", msg.OwnerID).WithField("message_id", msg.ID)

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		logger.WithError(err).Warn("append hook skipped: savepoint failed")
		return
	}
	if err := hook(ctx, &Tx{tx: tx}, msg); err != nil {
		logger.WithError(err).Warn("append hook failed, rolled back")
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO "+savepoint); rbErr != nil {
			logger.WithError(rbErr).Error("rollback to savepoint")
		}
	}
	if _, err := tx.ExecContext(ctx, "RELEASE "+savepoint); err != nil {
		logger.WithError(err).Warn("release savepoint")
	}
}

// DeleteRecordsOlderThan removes the owner's messages created strictly
// before cutoff and returns how many were deleted.
func (db *DB) DeleteRecordsOlderThan(ctx context.Context, ownerID string, cutoff time.Time) (int64, error) {
	return deleteRecordsOlderThan(ctx, db, ownerID, cutoff)
}

func deleteRecordsOlderThan(ctx context.Context, q querier, ownerID string, cutoff time.Time) (int64, error) {
	result, err := q.ExecContext(ctx, `
		DELETE FROM messages WHERE owner_id = ? AND created_at < ?
	`, ownerID, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete old messages: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListMessages returns the owner's most recent messages, newest first.
func (db *DB) ListMessages(ctx context.Context, ownerID string, limit int) ([]Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, owner_id, role, content, created_at
		FROM messages WHERE owner_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentMessages returns the owner's last n messages in chronological order.
func (db *DB) RecentMessages(ctx context.Context, ownerID string, n int) ([]Message, error) {
	msgs, err := db.ListMessages(ctx, ownerID, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CountMessages returns the number of stored messages for an owner.
func (db *DB) CountMessages(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE owner_id = ?`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
