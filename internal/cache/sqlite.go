package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ogpimage/internal/database"
)

// SQLiteStore persists entries in the cache_entries table.
type SQLiteStore struct {
	db *database.DB
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := database.NewDB(path, database.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite cache: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) (Entry, bool, error) {
	row, err := s.db.GetCacheRow(ctx, namespace, key)
	if errors.Is(err, database.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e := Entry{
		Key:         row.Key,
		Payload:     row.Payload,
		ContentType: row.ContentType,
		StoredAt:    row.StoredAt,
	}
	if !row.ExpiresAt.IsZero() {
		e.TTL = row.ExpiresAt.Sub(row.StoredAt)
	}
	return e, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, namespace string, e Entry) error {
	return s.db.UpsertCacheRow(ctx, database.CacheRow{
		Namespace:   namespace,
		Key:         e.Key,
		Payload:     e.Payload,
		ContentType: e.ContentType,
		StoredAt:    e.StoredAt,
		ExpiresAt:   e.ExpiresAt(),
	})
}

func (s *SQLiteStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	return s.db.DeleteExpiredBefore(ctx, olderThan)
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
