package feed

import (
	"context"
	"log"
	"time"
)

// Refresher keeps the cached index warm by refetching it on an interval, so
// the first request after a publish rarely pays for the fallback chain.
type Refresher struct {
	resolver *Resolver
	logger   *log.Logger
	interval time.Duration
	done     chan struct{}
}

func NewRefresher(resolver *Resolver, logger *log.Logger, interval time.Duration) *Refresher {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Refresher{
		resolver: resolver,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (s *Refresher) Start() {
	go s.updateLoop()
}

func (s *Refresher) Stop() {
	close(s.done)
}

func (s *Refresher) updateLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval/2)
			n, err := s.resolver.Refresh(ctx)
			cancel()
			if err != nil {
				s.logger.Printf("Error refreshing index: %v", err)
				continue
			}
			s.logger.Printf("Refreshed index: %d records", n)
		case <-s.done:
			return
		}
	}
}

// Refresh fetches the index fresh and stores it, returning the record count.
func (r *Resolver) Refresh(ctx context.Context) (int, error) {
	records, err := r.index.FetchIndex(ctx)
	if err != nil {
		return 0, err
	}
	r.store(ctx, r.index.URL(), records)
	return len(records), nil
}
