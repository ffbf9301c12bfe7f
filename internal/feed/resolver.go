// Package feed resolves (slug, date) pairs to upstream post records through
// a cached feed index with a per-page fallback.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"ogpimage/internal/cache"
)

// Resolver finds records in the cached index first and pays for fresh
// upstream fetches only when the record is missing.
type Resolver struct {
	index  IndexSource
	pages  *PageSource
	cache  *cache.Namespace
	logger *log.Logger
	ttl    time.Duration
}

// NewResolver wires a resolver; pages may be nil for sources without
// per-page lookup.
func NewResolver(index IndexSource, pages *PageSource, ns *cache.Namespace, logger *log.Logger, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = cache.MetadataTTL
	}
	return &Resolver{index: index, pages: pages, cache: ns, logger: logger, ttl: ttl}
}

// ResolveRecord runs the fallback chain: cached index, fresh index, cached
// page, fresh page. It returns ErrNotFound when every stage succeeded but
// none matched, or the last upstream error when a stage could not run.
func (r *Resolver) ResolveRecord(ctx context.Context, slug, date string) (PostRecord, error) {
	var upstreamErr error

	records, fetched, err := r.loadIndex(ctx, false)
	if err != nil {
		upstreamErr = err
	} else if rec, ok := find(records, slug, date); ok {
		return rec, nil
	}

	// A cache miss above already fetched the index fresh.
	if !fetched {
		records, _, err = r.loadIndex(ctx, true)
		if err != nil {
			upstreamErr = err
		} else if rec, ok := find(records, slug, date); ok {
			return rec, nil
		}
	}

	if r.pages != nil {
		rec, err := r.resolvePage(ctx, slug, date)
		switch {
		case err == nil:
			return rec, nil
		case !errors.Is(err, ErrNotFound):
			upstreamErr = err
		}
	}

	if upstreamErr != nil {
		return PostRecord{}, fmt.Errorf("resolving %s@%s: %w", slug, date, upstreamErr)
	}
	return PostRecord{}, ErrNotFound
}

// loadIndex returns the index, reading the cache unless fresh is set. The
// second result reports whether the upstream was actually fetched.
func (r *Resolver) loadIndex(ctx context.Context, fresh bool) ([]PostRecord, bool, error) {
	key := r.index.URL()
	if !fresh {
		if records, ok := r.cachedRecords(ctx, key); ok {
			return records, false, nil
		}
	}

	records, err := r.index.FetchIndex(ctx)
	if err != nil {
		if stale, ok := r.staleRecords(ctx, key); ok {
			r.logger.Printf("Using stale index %s after fetch failure: %v", key, err)
			return stale, true, nil
		}
		return nil, true, err
	}
	r.store(ctx, key, records)
	return records, true, nil
}

func (r *Resolver) resolvePage(ctx context.Context, slug, date string) (PostRecord, error) {
	key := r.pages.URL(slug)
	if cached, ok := r.cachedRecords(ctx, key); ok && len(cached) == 1 && cached[0].Matches(slug, date) {
		return cached[0], nil
	}

	rec, err := r.pages.FetchPage(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PostRecord{}, err
		}
		if stale, ok := r.staleRecords(ctx, key); ok && len(stale) == 1 {
			r.logger.Printf("Using stale page %s after fetch failure: %v", key, err)
			if stale[0].Matches(slug, date) {
				return stale[0], nil
			}
			return PostRecord{}, ErrNotFound
		}
		return PostRecord{}, err
	}

	r.store(ctx, key, []PostRecord{rec})
	if !rec.Matches(slug, date) {
		return PostRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *Resolver) cachedRecords(ctx context.Context, key string) ([]PostRecord, bool) {
	payload, ok := r.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	return r.decode(key, payload)
}

func (r *Resolver) staleRecords(ctx context.Context, key string) ([]PostRecord, bool) {
	payload, ok := r.cache.GetStale(ctx, key)
	if !ok {
		return nil, false
	}
	return r.decode(key, payload)
}

func (r *Resolver) decode(key string, payload []byte) ([]PostRecord, bool) {
	var records []PostRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		r.logger.Printf("Discarding cached metadata %s: %v", key, err)
		return nil, false
	}
	return records, true
}

func (r *Resolver) store(ctx context.Context, key string, records []PostRecord) {
	payload, err := json.Marshal(records)
	if err != nil {
		r.logger.Printf("Error encoding metadata %s: %v", key, err)
		return
	}
	if err := r.cache.Put(ctx, key, payload, "application/json", r.ttl); err != nil {
		r.logger.Printf("Error caching metadata %s: %v", key, err)
	}
}
