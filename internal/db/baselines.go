package db

import (
	"context"
	"fmt"
	"time"

	"energy-monitor/internal/models"
)

// SaveBaselines upserts every cell in one transaction so a restart restores
// a consistent snapshot, never a half-written one.
func (d *DB) SaveBaselines(ctx context.Context, cells []models.Baseline) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin baseline snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
    INSERT INTO baselines (
        site, sector, hour_of_day, day_of_week, mean, std_dev, m2,
        sample_count, trained, updated_at
    ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    ON CONFLICT (site, sector, hour_of_day, day_of_week) DO UPDATE SET
        mean = EXCLUDED.mean,
        std_dev = EXCLUDED.std_dev,
        m2 = EXCLUDED.m2,
        sample_count = EXCLUDED.sample_count,
        trained = EXCLUDED.trained,
        updated_at = EXCLUDED.updated_at`

	for _, c := range cells {
		_, err := tx.Exec(ctx, query,
			c.Key.Site, c.Key.Sector, c.Key.HourOfDay, int(c.Key.DayOfWeek),
			c.Mean, c.StdDev, c.M2, c.SampleCount, c.Trained, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert baseline: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit baseline snapshot: %w", err)
	}
	return nil
}

// LoadBaselines returns every persisted cell.
func (d *DB) LoadBaselines(ctx context.Context) ([]models.Baseline, error) {
	query := `
    SELECT site, sector, hour_of_day, day_of_week, mean, std_dev, m2,
           sample_count, trained, updated_at
    FROM baselines`

	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query baselines: %w", err)
	}
	defer rows.Close()

	var list []models.Baseline
	for rows.Next() {
		var c models.Baseline
		var dow int
		if err := rows.Scan(
			&c.Key.Site, &c.Key.Sector, &c.Key.HourOfDay, &dow,
			&c.Mean, &c.StdDev, &c.M2, &c.SampleCount, &c.Trained, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		c.Key.DayOfWeek = time.Weekday(dow)
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate baselines: %w", err)
	}
	return list, nil
}
