package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CacheEntry is a stored generation result, addressed by
// (owner, category, fingerprint). Entries are never updated in place.
type CacheEntry struct {
	ID            int64
	OwnerID       string
	Category      string
	Fingerprint   string
	ResultPayload string
	GeneratedAt   int64
}

// GetCacheEntry returns the entry for the triple, or nil on a miss.
func (db *DB) GetCacheEntry(ctx context.Context, ownerID, category, fingerprint string) (*CacheEntry, error) {
	var e CacheEntry
	err := db.QueryRowContext(ctx, `
		SELECT id, owner_id, category, fingerprint, result_payload, generated_at
		FROM insight_cache WHERE owner_id = ? AND category = ? AND fingerprint = ?
	`, ownerID, category, fingerprint).Scan(&e.ID, &e.OwnerID, &e.Category, &e.Fingerprint, &e.ResultPayload, &e.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	return &e, nil
}

// InsertCacheEntry stores a new entry. If the triple is already populated
// the existing row is kept and ErrConflict is returned.
func (db *DB) InsertCacheEntry(ctx context.Context, e *CacheEntry) error {
	if e.GeneratedAt == 0 {
		e.GeneratedAt = time.Now().UnixMilli()
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO insight_cache (owner_id, category, fingerprint, result_payload, generated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, category, fingerprint) DO NOTHING
	`, e.OwnerID, e.Category, e.Fingerprint, e.ResultPayload, e.GeneratedAt)
	if err != nil {
		return fmt.Errorf("insert cache entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrConflict
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// CountCacheEntries returns how many entries an owner has in a category.
func (db *DB) CountCacheEntries(ctx context.Context, ownerID, category string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM insight_cache WHERE owner_id = ? AND category = ?
	`, ownerID, category).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return count, nil
}
