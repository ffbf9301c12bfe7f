package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Tiered puts a bounded in-process LRU in front of a durable store.
// Reads fall through to the durable store and populate the LRU; writes go to
// both.
type Tiered struct {
	front   *lru.Cache[string, Entry]
	durable Store
}

func NewTiered(durable Store, size int) (*Tiered, error) {
	front, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &Tiered{front: front, durable: durable}, nil
}

func frontKey(namespace, key string) string {
	return namespace + "\x00" + key
}

func (t *Tiered) Get(ctx context.Context, namespace, key string) (Entry, bool, error) {
	if e, ok := t.front.Get(frontKey(namespace, key)); ok {
		return e, true, nil
	}
	e, ok, err := t.durable.Get(ctx, namespace, key)
	if err != nil || !ok {
		return e, ok, err
	}
	t.front.Add(frontKey(namespace, key), e)
	return e, true, nil
}

func (t *Tiered) Put(ctx context.Context, namespace string, e Entry) error {
	if err := t.durable.Put(ctx, namespace, e); err != nil {
		return err
	}
	t.front.Add(frontKey(namespace, e.Key), e)
	return nil
}

func (t *Tiered) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	for _, k := range t.front.Keys() {
		if e, ok := t.front.Peek(k); ok && expiredBefore(e, olderThan) {
			t.front.Remove(k)
		}
	}
	return t.durable.Purge(ctx, olderThan)
}

// FrontLen reports how many entries the LRU tier holds.
func (t *Tiered) FrontLen() int {
	return t.front.Len()
}

func (t *Tiered) Close() error {
	t.front.Purge()
	return t.durable.Close()
}
