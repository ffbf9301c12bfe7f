// Package cache stores fonts, upstream metadata and rendered images as
// namespaced key/bytes entries with a TTL fixed at write time.
package cache

import (
	"context"
	"time"
)

// Namespaces used by the service.
const (
	NamespaceFonts    = "fonts"
	NamespaceMetadata = "metadata"
	NamespaceImages   = "images"
)

// Default TTLs per namespace.
const (
	FontTTL     = 604800 * time.Second
	ImageTTL    = 31536000 * time.Second
	MetadataTTL = 24 * time.Hour
)

// Entry is an immutable cached payload. A zero TTL never expires.
type Entry struct {
	Key         string        `json:"key"`
	Payload     []byte        `json:"payload"`
	ContentType string        `json:"content_type"`
	StoredAt    time.Time     `json:"stored_at"`
	TTL         time.Duration `json:"ttl"`
}

// ExpiresAt returns the zero time for entries without a TTL.
func (e Entry) ExpiresAt() time.Time {
	if e.TTL <= 0 {
		return time.Time{}
	}
	return e.StoredAt.Add(e.TTL)
}

func (e Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return !now.Before(e.ExpiresAt())
}

// Store is a durable key/value backend scoped by namespace. Put replaces any
// existing entry; concurrent writers to the same key race and the last one wins.
type Store interface {
	Get(ctx context.Context, namespace, key string) (Entry, bool, error)
	Put(ctx context.Context, namespace string, e Entry) error
	// Purge removes entries whose expiry lies before olderThan.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}

func expiredBefore(e Entry, cutoff time.Time) bool {
	exp := e.ExpiresAt()
	return !exp.IsZero() && exp.Before(cutoff)
}
