package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// CacheRow mirrors one row of cache_entries. Times are unix milliseconds;
// ExpiresAt of zero means the row never expires.
type CacheRow struct {
	Namespace   string
	Key         string
	Payload     []byte
	ContentType string
	StoredAt    time.Time
	ExpiresAt   time.Time
}

func (db *DB) GetCacheRow(ctx context.Context, namespace, key string) (CacheRow, error) {
	var row CacheRow
	var storedAt, expiresAt int64
	err := db.QueryRowContext(ctx,
		`SELECT namespace, key, payload, content_type, stored_at, expires_at
         FROM cache_entries WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&row.Namespace, &row.Key, &row.Payload, &row.ContentType, &storedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheRow{}, ErrNotFound
	}
	if err != nil {
		return CacheRow{}, fmt.Errorf("error querying cache entry %s/%s: %w", namespace, key, err)
	}
	row.StoredAt = time.UnixMilli(storedAt)
	if expiresAt > 0 {
		row.ExpiresAt = time.UnixMilli(expiresAt)
	}
	return row, nil
}

// UpsertCacheRow replaces the row for (namespace, key). Concurrent writers
// race freely; the last commit wins.
func (db *DB) UpsertCacheRow(ctx context.Context, row CacheRow) error {
	var expiresAt int64
	if !row.ExpiresAt.IsZero() {
		expiresAt = row.ExpiresAt.UnixMilli()
	}
	_, err := db.ExecContext(ctx, `
        INSERT INTO cache_entries (namespace, key, payload, content_type, stored_at, expires_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(namespace, key) DO UPDATE SET
            payload = excluded.payload,
            content_type = excluded.content_type,
            stored_at = excluded.stored_at,
            expires_at = excluded.expires_at`,
		row.Namespace, row.Key, row.Payload, row.ContentType, row.StoredAt.UnixMilli(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("error storing cache entry %s/%s: %w", row.Namespace, row.Key, err)
	}
	return nil
}

// DeleteExpiredBefore removes rows that expired before cutoff.
func (db *DB) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at < ?",
		cutoff.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("error purging cache entries: %w", err)
	}
	return res.RowsAffected()
}
