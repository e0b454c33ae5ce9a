package rollup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"energy-monitor/internal/logging"
	"energy-monitor/internal/metrics"
	"energy-monitor/internal/models"
)

// Store is the storage surface the refresher writes rollups through.
type Store interface {
	ReadingsInRange(ctx context.Context, site models.Site, from, to time.Time) ([]models.ConsumptionReading, error)
	// ReplaceBuckets swaps all buckets of the given width for site in
	// [from, to) inside one transaction (swap-on-write).
	ReplaceBuckets(ctx context.Context, site models.Site, width models.BucketWidth, from, to time.Time, buckets []models.RollupBucket) error
	// TryAdvisoryLock takes the per-site refresh lock. release is non-nil
	// only when acquired.
	TryAdvisoryLock(ctx context.Context, site models.Site) (acquired bool, release func(), err error)
}

// BaselineSnapshotter persists baseline cells alongside the rollup refresh.
type BaselineSnapshotter interface {
	Snapshot(ctx context.Context) error
}

// BufferEvictor releases ingest dedup slots that have left the refresh window.
type BufferEvictor interface {
	Evict(cutoff time.Time) int
}

// Refresher recomputes rollup buckets on a schedule. Each run covers the
// window [now - lookback, now - grace) so late readings inside the grace
// window are still caught by the next tick. A run has a hard time budget;
// on timeout it logs, gives up, and retries on the next tick rather than
// holding locks. Individual buckets commit atomically per site: a site either
// gets its full replacement or keeps the previous buckets.
type Refresher struct {
	store     Store
	baselines BaselineSnapshotter
	buffer    BufferEvictor
	logger    *logging.Logger

	interval time.Duration
	grace    time.Duration
	budget   time.Duration
	lookback time.Duration

	running sync.Mutex // a tick never overlaps itself
}

// NewRefresher builds a Refresher with the configured cadence. baselines and
// buffer may be nil.
func NewRefresher(store Store, baselines BaselineSnapshotter, buffer BufferEvictor, logger *logging.Logger, interval, grace, budget time.Duration) *Refresher {
	return &Refresher{
		store:     store,
		baselines: baselines,
		buffer:    buffer,
		logger:    logger,
		interval:  interval,
		grace:     grace,
		budget:    budget,
		lookback:  48 * time.Hour,
	}
}

// Run drives refresh ticks until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Infof("rollup refresher started: interval=%s grace=%s budget=%s", r.interval, r.grace, r.budget)
	for {
		select {
		case <-ctx.Done():
			r.logger.Infof("rollup refresher stopped")
			return
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				if errors.Is(err, models.ErrRefreshTimeout) {
					metrics.RollupRefreshTimeouts.Inc()
				}
				r.logger.Errorf("rollup refresh failed, retrying next tick: %v", err)
			}
		}
	}
}

// RefreshOnce performs one bounded refresh pass over every site.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	if !r.running.TryLock() {
		r.logger.Warnf("rollup refresh still running, skipping tick")
		return nil
	}
	defer r.running.Unlock()

	started := time.Now()
	defer func() { metrics.RollupRefreshDuration.Observe(time.Since(started).Seconds()) }()

	runCtx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	to := time.Now().UTC().Add(-r.grace).Truncate(time.Hour)
	from := to.Add(-r.lookback)

	var firstErr error
	for _, site := range models.Sites {
		if err := r.refreshSite(runCtx, site, from, to); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return models.ErrRefreshTimeout
			}
			r.logger.Errorf("refresh site %s: %v", site, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if r.baselines != nil {
		if err := r.baselines.Snapshot(runCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return models.ErrRefreshTimeout
			}
			r.logger.Errorf("baseline snapshot: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	// Readings older than the window start can no longer change any rollup,
	// so their dedup slots are released.
	if r.buffer != nil {
		if n := r.buffer.Evict(from); n > 0 {
			r.logger.Debugf("released %d ingest dedup slots older than %s", n, from.Format(time.RFC3339))
		}
	}

	r.logger.Infof("rollup refresh finished in %s (window %s .. %s)", time.Since(started), from.Format(time.RFC3339), to.Format(time.RFC3339))
	return firstErr
}

func (r *Refresher) refreshSite(ctx context.Context, site models.Site, from, to time.Time) error {
	acquired, release, err := r.store.TryAdvisoryLock(ctx, site)
	if err != nil {
		return fmt.Errorf("advisory lock for %s: %w", site, err)
	}
	if !acquired {
		r.logger.Warnf("site %s locked by another refresher, skipping", site)
		return nil
	}
	defer release()

	// Widen the reload to the day boundary containing the window start so a
	// daily bucket is never rebuilt from the tail of its day after the
	// window's leading edge slides past its first hours.
	loadFrom := models.BucketDay.Truncate(from)

	readings, err := r.store.ReadingsInRange(ctx, site, loadFrom, to)
	if err != nil {
		return fmt.Errorf("load readings for %s: %w", site, err)
	}
	if len(readings) == 0 {
		return nil
	}

	for _, width := range []models.BucketWidth{models.BucketHour, models.BucketDay} {
		buckets := Aggregate(readings, width)
		if err := r.store.ReplaceBuckets(ctx, site, width, loadFrom, to, buckets); err != nil {
			return fmt.Errorf("replace %s buckets for %s: %w", width, site, err)
		}
	}
	return nil
}
