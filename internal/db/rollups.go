package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"energy-monitor/internal/models"
)

// ReplaceBuckets swaps every bucket of the given width for site in [from, to)
// inside one transaction. Readers see either the previous generation or the
// new one, never a mix.
func (d *DB) ReplaceBuckets(ctx context.Context, site models.Site, width models.BucketWidth, from, to time.Time, buckets []models.RollupBucket) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin bucket swap: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM rollup_buckets WHERE site = $1 AND width = $2 AND bucket_start >= $3 AND bucket_start < $4`,
		site, width, from, to)
	if err != nil {
		return fmt.Errorf("failed to clear buckets: %w", err)
	}

	for _, b := range buckets {
		sectorSums, err := json.Marshal(b.SectorSumsKWh)
		if err != nil {
			return fmt.Errorf("failed to encode sector sums: %w", err)
		}
		_, err = tx.Exec(ctx, `
        INSERT INTO rollup_buckets (
            site, width, bucket_start, energy_sum, energy_avg, energy_min,
            energy_max, water_sum, co2_sum, record_count, sector_sums
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			b.Site, b.Width, b.BucketStart, b.EnergySumKWh, b.EnergyAvgKWh,
			b.EnergyMinKWh, b.EnergyMaxKWh, b.WaterSumL, b.CO2SumKg,
			b.RecordCount, sectorSums)
		if err != nil {
			return fmt.Errorf("failed to insert bucket: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bucket swap: %w", err)
	}
	return nil
}

// BucketsInRange returns stored buckets for site/width in [from, to) ordered
// by bucket_start. An empty range surfaces models.ErrNoData rather than
// zero-filled rows.
func (d *DB) BucketsInRange(ctx context.Context, site models.Site, width models.BucketWidth, from, to time.Time) ([]models.RollupBucket, error) {
	query := `
    SELECT site, width, bucket_start, energy_sum, energy_avg, energy_min,
           energy_max, water_sum, co2_sum, record_count, sector_sums
    FROM rollup_buckets
    WHERE site = $1 AND width = $2 AND bucket_start >= $3 AND bucket_start < $4
    ORDER BY bucket_start ASC`

	rows, err := d.Pool.Query(ctx, query, site, width, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query buckets: %w", err)
	}
	defer rows.Close()

	var list []models.RollupBucket
	for rows.Next() {
		var b models.RollupBucket
		var sectorSums []byte
		if err := rows.Scan(
			&b.Site, &b.Width, &b.BucketStart, &b.EnergySumKWh, &b.EnergyAvgKWh,
			&b.EnergyMinKWh, &b.EnergyMaxKWh, &b.WaterSumL, &b.CO2SumKg,
			&b.RecordCount, &sectorSums,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		if err := json.Unmarshal(sectorSums, &b.SectorSumsKWh); err != nil {
			return nil, fmt.Errorf("failed to decode sector sums: %w", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate buckets: %w", err)
	}
	if len(list) == 0 {
		return nil, models.ErrNoData
	}
	return list, nil
}
