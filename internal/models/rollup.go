package models

import (
	"fmt"
	"time"
)

// BucketWidth is the fixed window size of a rollup bucket.
type BucketWidth string

const (
	BucketHour BucketWidth = "1h"
	BucketDay  BucketWidth = "1d"
)

// ParseBucketWidth validates a raw bucket width parameter.
func ParseBucketWidth(s string) (BucketWidth, error) {
	switch BucketWidth(s) {
	case BucketHour, BucketDay:
		return BucketWidth(s), nil
	}
	return "", fmt.Errorf("unknown bucket width %q", s)
}

// Duration returns the wall-clock span of the bucket.
func (w BucketWidth) Duration() time.Duration {
	if w == BucketDay {
		return 24 * time.Hour
	}
	return time.Hour
}

// Truncate aligns t to the start of its containing bucket.
func (w BucketWidth) Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(w.Duration())
}

// RollupBucket holds aggregated statistics for one (site, bucket_start, width)
// triple. Buckets are recomputed wholesale by the refresh job, never edited,
// and replaced swap-on-write so readers never see a torn bucket.
type RollupBucket struct {
	Site        Site        `json:"site"`
	BucketStart time.Time   `json:"bucket_start"`
	Width       BucketWidth `json:"width"`

	EnergySumKWh float64 `json:"energy_sum_kwh"`
	EnergyAvgKWh float64 `json:"energy_avg_kwh"`
	EnergyMinKWh float64 `json:"energy_min_kwh"`
	EnergyMaxKWh float64 `json:"energy_max_kwh"`
	WaterSumL    float64 `json:"water_sum_l"`
	CO2SumKg     float64 `json:"co2_sum_kg"`
	RecordCount  int     `json:"record_count"`

	// Per-sector energy sums back the sector breakdown query.
	SectorSumsKWh map[Sector]float64 `json:"sector_sums_kwh"`
}
