package cache

import (
	"context"
	"log"
	"time"
)

// Namespace is the key/bytes view of a Store used by the resolvers and the
// image gate.
type Namespace struct {
	name   string
	store  Store
	logger *log.Logger
	now    func() time.Time
}

func NewNamespace(store Store, name string, logger *log.Logger) *Namespace {
	return &Namespace{name: name, store: store, logger: logger, now: time.Now}
}

func (n *Namespace) Name() string { return n.name }

// Get returns the payload for key unless it is absent or expired. Store
// failures are logged and reported as a miss.
func (n *Namespace) Get(ctx context.Context, key string) ([]byte, bool) {
	e, ok := n.lookup(ctx, key)
	if !ok || e.Expired(n.now()) {
		return nil, false
	}
	return e.Payload, true
}

// GetStale returns the payload for key even if its TTL has passed.
func (n *Namespace) GetStale(ctx context.Context, key string) ([]byte, bool) {
	e, ok := n.lookup(ctx, key)
	if !ok {
		return nil, false
	}
	return e.Payload, true
}

func (n *Namespace) lookup(ctx context.Context, key string) (Entry, bool) {
	e, ok, err := n.store.Get(ctx, n.name, key)
	if err != nil {
		n.logger.Printf("cache %s: read %q failed: %v", n.name, key, err)
		return Entry{}, false
	}
	return e, ok
}

// Put supersedes any entry under key.
func (n *Namespace) Put(ctx context.Context, key string, payload []byte, contentType string, ttl time.Duration) error {
	return n.store.Put(ctx, n.name, Entry{
		Key:         key,
		Payload:     payload,
		ContentType: contentType,
		StoredAt:    n.now(),
		TTL:         ttl,
	})
}
