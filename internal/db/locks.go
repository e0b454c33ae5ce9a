package db

import (
	"context"
	"fmt"
	"time"

	"energy-monitor/internal/models"
)

// lockClass namespaces this service's advisory locks so unrelated jobs
// sharing the database cannot collide with refresh locks.
const lockClass int32 = 7013

func siteLockKey(site models.Site) int32 {
	for i, s := range models.Sites {
		if s == site {
			return int32(i + 1)
		}
	}
	return 0
}

// TryAdvisoryLock takes the per-site refresh lock using Postgres advisory
// locking. The lock lives on a dedicated pooled connection held until
// release is called, so overlapping refreshers on different processes
// never aggregate the same site concurrently.
func (d *DB) TryAdvisoryLock(ctx context.Context, site models.Site) (bool, func(), error) {
	conn, err := d.Pool.Acquire(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("failed to acquire lock connection: %w", err)
	}

	var acquired bool
	err = conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1, $2)`, lockClass, siteLockKey(site)).Scan(&acquired)
	if err != nil {
		conn.Release()
		return false, nil, fmt.Errorf("failed to take advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return false, nil, nil
	}

	release := func() {
		// Unlock on a fresh bounded context: the caller's ctx may already be
		// done, and an unreleased lock would stall the next refresh tick.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.Exec(unlockCtx, `SELECT pg_advisory_unlock($1, $2)`, lockClass, siteLockKey(site))
		conn.Release()
	}
	return true, release, nil
}
