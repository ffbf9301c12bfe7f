package cache

import (
	"context"
	"log"
	"time"
)

// DefaultRetention keeps expired entries around long enough to serve as
// stale fallbacks when an upstream is down.
const DefaultRetention = 7 * 24 * time.Hour

// Janitor periodically purges entries that expired more than Retention ago.
type Janitor struct {
	store     Store
	logger    *log.Logger
	interval  time.Duration
	retention time.Duration
	done      chan struct{}
	stopped   chan struct{}
}

func NewJanitor(store Store, logger *log.Logger, interval, retention time.Duration) *Janitor {
	if interval < time.Minute {
		interval = time.Minute
	}
	if retention < 0 {
		retention = 0
	}
	return &Janitor{
		store:     store,
		logger:    logger,
		interval:  interval,
		retention: retention,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

func (j *Janitor) Start() {
	go j.loop()
}

// Stop ends the loop and waits for an in-flight purge to finish.
func (j *Janitor) Stop() {
	close(j.done)
	<-j.stopped
}

func (j *Janitor) loop() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), j.interval)
			if _, err := j.PurgeOnce(ctx, time.Now()); err != nil {
				j.logger.Printf("Error purging cache: %v", err)
			}
			cancel()
		case <-j.done:
			return
		}
	}
}

// PurgeOnce removes everything that expired before now minus the retention.
func (j *Janitor) PurgeOnce(ctx context.Context, now time.Time) (int64, error) {
	n, err := j.store.Purge(ctx, now.Add(-j.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Printf("Purged %d expired cache entries", n)
	}
	return n, nil
}
