package models

import "time"

// BaselineKey addresses one expected-consumption cell: a (site, sector,
// hour-of-day, day-of-week) combination.
type BaselineKey struct {
	Site      Site         `json:"site"`
	Sector    Sector       `json:"sector"`
	HourOfDay int          `json:"hour_of_day"` // 0-23
	DayOfWeek time.Weekday `json:"day_of_week"` // Sunday = 0
}

// BaselineKeyFor derives the cell a reading belongs to.
func BaselineKeyFor(site Site, sector Sector, ts time.Time) BaselineKey {
	ts = ts.UTC()
	return BaselineKey{Site: site, Sector: sector, HourOfDay: ts.Hour(), DayOfWeek: ts.Weekday()}
}

// Baseline is the statistically expected consumption for a cell. A baseline
// is "trained" once SampleCount reaches the configured minimum; before that
// callers receive ErrInsufficientBaseline instead of noisy numbers.
type Baseline struct {
	Key         BaselineKey `json:"key"`
	Mean        float64     `json:"mean"`
	StdDev      float64     `json:"std_dev"`
	M2          float64     `json:"m2"` // Welford running sum of squared deltas
	SampleCount float64     `json:"sample_count"`
	Trained     bool        `json:"trained"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
