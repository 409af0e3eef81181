package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RetentionPolicy is a user's configured maximum message age.
type RetentionPolicy struct {
	OwnerID   string
	Period    string
	UpdatedAt int64
}

// GetPolicy returns the retention policy for an owner, or nil if none exists.
func (db *DB) GetPolicy(ctx context.Context, ownerID string) (*RetentionPolicy, error) {
	return getPolicy(ctx, db, ownerID)
}

func getPolicy(ctx context.Context, q querier, ownerID string) (*RetentionPolicy, error) {
	var p RetentionPolicy
	err := q.QueryRowContext(ctx, `
		SELECT owner_id, period, updated_at FROM retention_policies WHERE owner_id = ?
	`, ownerID).Scan(&p.OwnerID, &p.Period, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return &p, nil
}

// SetPolicy creates or replaces the owner's retention period.
// The owner must already exist.
func (db *DB) SetPolicy(ctx context.Context, ownerID, period string) (*RetentionPolicy, error) {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO retention_policies (owner_id, period, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET period = excluded.period, updated_at = excluded.updated_at
	`, ownerID, period, now)
	if err != nil {
		return nil, fmt.Errorf("set policy: %w", err)
	}
	return &RetentionPolicy{OwnerID: ownerID, Period: period, UpdatedAt: now}, nil
}

// ListPolicies returns every policy that may purge data, i.e. all
// policies other than keep_forever.
func (db *DB) ListPolicies(ctx context.Context) ([]RetentionPolicy, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT owner_id, period, updated_at FROM retention_policies
		WHERE period != ? ORDER BY owner_id
	`, DefaultPeriod)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var policies []RetentionPolicy
	for rows.Next() {
		var p RetentionPolicy
		if err := rows.Scan(&p.OwnerID, &p.Period, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}
