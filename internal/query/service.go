package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"energy-monitor/internal/logging"
	"energy-monitor/internal/metrics"
	"energy-monitor/internal/models"
)

// Store is the read-only storage surface backing dashboard queries.
type Store interface {
	BucketsInRange(ctx context.Context, site models.Site, width models.BucketWidth, from, to time.Time) ([]models.RollupBucket, error)
	AnomaliesBySite(ctx context.Context, site models.Site, from, to time.Time, severity string, limit, offset int) ([]models.AnomalyEvent, int, error)
	AnomaliesSince(ctx context.Context, cursor int64, limit int) ([]models.AnomalyEvent, error)
	AnomalySummary(ctx context.Context, site models.Site) (map[models.Severity]int, map[models.AnomalyType]int, error)
	WasteByCause(ctx context.Context, site models.Site, from, to time.Time) (map[string]float64, error)
}

// Cache is the optional result cache in front of the store.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, val interface{}) error
}

// Service answers dashboard queries from stored rollups and anomaly events.
// All answers are deterministic functions of stored state; nothing here
// mutates anything, and an empty range is an explicit models.ErrNoData,
// never a zero-filled fabrication.
type Service struct {
	store  Store
	cache  Cache
	logger *logging.Logger
}

// New builds the query service. cache may be nil.
func New(store Store, cache Cache, logger *logging.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

// HourlyPatternRow is the average consumption for one hour of day.
type HourlyPatternRow struct {
	Hour    int     `json:"hour"`
	AvgKWh  float64 `json:"avg_kwh"`
	Samples int     `json:"samples"`
}

// HourlyPattern averages hourly buckets by hour-of-day across [from, to).
func (s *Service) HourlyPattern(ctx context.Context, site models.Site, from, to time.Time) ([]HourlyPatternRow, error) {
	key := fmt.Sprintf("hourly:%s:%d:%d", site, from.Unix(), to.Unix())
	var cached []HourlyPatternRow
	if s.lookup(ctx, "hourly_pattern", key, &cached) {
		return cached, nil
	}

	buckets, err := s.store.BucketsInRange(ctx, site, models.BucketHour, from, to)
	if err != nil {
		return nil, err
	}

	var sums, counts [24]float64
	for _, b := range buckets {
		h := b.BucketStart.UTC().Hour()
		sums[h] += b.EnergySumKWh
		counts[h]++
	}

	rows := make([]HourlyPatternRow, 0, 24)
	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		rows = append(rows, HourlyPatternRow{Hour: h, AvgKWh: sums[h] / counts[h], Samples: int(counts[h])})
	}

	s.remember(ctx, key, rows)
	return rows, nil
}

// SectorShare is one sector's contribution to the total over a range.
type SectorShare struct {
	Sector   models.Sector `json:"sector"`
	TotalKWh float64       `json:"total_kwh"`
	SharePct float64       `json:"share_pct"`
}

// SectorBreakdown computes percentage share of total consumption per sector.
func (s *Service) SectorBreakdown(ctx context.Context, site models.Site, from, to time.Time) ([]SectorShare, error) {
	key := fmt.Sprintf("sectors:%s:%d:%d", site, from.Unix(), to.Unix())
	var cached []SectorShare
	if s.lookup(ctx, "sector_breakdown", key, &cached) {
		return cached, nil
	}

	buckets, err := s.store.BucketsInRange(ctx, site, models.BucketDay, from, to)
	if err != nil {
		return nil, err
	}

	totals := make(map[models.Sector]float64)
	var grand float64
	for _, b := range buckets {
		for sector, kwh := range b.SectorSumsKWh {
			totals[sector] += kwh
			grand += kwh
		}
	}
	if grand == 0 {
		return nil, models.ErrNoData
	}

	shares := make([]SectorShare, 0, len(totals))
	for _, sector := range models.Sectors {
		kwh, ok := totals[sector]
		if !ok {
			continue
		}
		shares = append(shares, SectorShare{Sector: sector, TotalKWh: kwh, SharePct: kwh / grand * 100})
	}

	s.remember(ctx, key, shares)
	return shares, nil
}

// ParetoRow is one ranked waste cause with running cumulative share.
type ParetoRow struct {
	Cause         string  `json:"cause"`
	WasteKWh      float64 `json:"waste_kwh"`
	Pct           float64 `json:"pct"`
	CumulativePct float64 `json:"cumulative_pct"`
}

// Pareto ranks anomaly-attributed waste causes descending with cumulative
// percentage. limit <= 0 returns every cause; there is no hidden truncation
// beyond what the caller requests. Cumulative percentages are non-decreasing
// and reach 100 when all causes are included.
func (s *Service) Pareto(ctx context.Context, site models.Site, from, to time.Time, limit int) ([]ParetoRow, error) {
	waste, err := s.store.WasteByCause(ctx, site, from, to)
	if err != nil {
		return nil, err
	}
	if len(waste) == 0 {
		return nil, models.ErrNoData
	}

	rows := make([]ParetoRow, 0, len(waste))
	var total float64
	for cause, kwh := range waste {
		rows = append(rows, ParetoRow{Cause: cause, WasteKWh: kwh})
		total += kwh
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].WasteKWh != rows[j].WasteKWh {
			return rows[i].WasteKWh > rows[j].WasteKWh
		}
		return rows[i].Cause < rows[j].Cause
	})

	var cumulative float64
	for i := range rows {
		rows[i].Pct = rows[i].WasteKWh / total * 100
		cumulative += rows[i].Pct
		rows[i].CumulativePct = cumulative
	}

	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

// DashboardKPIs is the headline figure set the dashboard renders.
type DashboardKPIs struct {
	Site       models.Site                `json:"site"`
	PeriodDays int                        `json:"period_days"`
	TotalKWh   float64                    `json:"total_kwh"`
	AvgKWh     float64                    `json:"avg_kwh"`
	MaxKWh     float64                    `json:"max_kwh"`
	MinKWh     float64                    `json:"min_kwh"`
	WaterL     float64                    `json:"water_liters"`
	CO2Kg      float64                    `json:"co2_kg"`
	Records    int                        `json:"record_count"`
	BySeverity map[models.Severity]int    `json:"anomalies_by_severity"`
	ByType     map[models.AnomalyType]int `json:"anomalies_by_type"`
}

// Dashboard aggregates daily buckets over the trailing period plus the
// anomaly summary.
func (s *Service) Dashboard(ctx context.Context, site models.Site, days int) (DashboardKPIs, error) {
	if days <= 0 {
		days = 30
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	key := fmt.Sprintf("dashboard:%s:%d", site, days)
	var cached DashboardKPIs
	if s.lookup(ctx, "dashboard", key, &cached) {
		return cached, nil
	}

	buckets, err := s.store.BucketsInRange(ctx, site, models.BucketDay, from, to)
	if err != nil {
		return DashboardKPIs{}, err
	}

	kpis := DashboardKPIs{Site: site, PeriodDays: days, MinKWh: buckets[0].EnergyMinKWh}
	for _, b := range buckets {
		kpis.TotalKWh += b.EnergySumKWh
		kpis.WaterL += b.WaterSumL
		kpis.CO2Kg += b.CO2SumKg
		kpis.Records += b.RecordCount
		if b.EnergyMaxKWh > kpis.MaxKWh {
			kpis.MaxKWh = b.EnergyMaxKWh
		}
		if b.EnergyMinKWh < kpis.MinKWh {
			kpis.MinKWh = b.EnergyMinKWh
		}
	}
	if kpis.Records > 0 {
		kpis.AvgKWh = kpis.TotalKWh / float64(kpis.Records)
	}

	kpis.BySeverity, kpis.ByType, err = s.store.AnomalySummary(ctx, site)
	if err != nil {
		return DashboardKPIs{}, err
	}

	s.remember(ctx, key, kpis)
	return kpis, nil
}

// Trends returns raw buckets for charting, hourly or daily.
func (s *Service) Trends(ctx context.Context, site models.Site, width models.BucketWidth, from, to time.Time) ([]models.RollupBucket, error) {
	return s.store.BucketsInRange(ctx, site, width, from, to)
}

// Anomalies pages through stored events for a campus.
func (s *Service) Anomalies(ctx context.Context, site models.Site, from, to time.Time, severity string, limit, offset int) ([]models.AnomalyEvent, int, error) {
	return s.store.AnomaliesBySite(ctx, site, from, to, severity, limit, offset)
}

// AnomaliesSince exposes the notification feed cursor contract.
func (s *Service) AnomaliesSince(ctx context.Context, cursor int64, limit int) ([]models.AnomalyEvent, error) {
	return s.store.AnomaliesSince(ctx, cursor, limit)
}

// lookup tries the cache; failures degrade to a miss.
func (s *Service) lookup(ctx context.Context, name, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.GetJSON(ctx, key, dest)
	if err != nil {
		s.logger.Warnf("cache lookup %s failed: %v", key, err)
		metrics.QueryCacheHits.WithLabelValues(name, "error").Inc()
		return false
	}
	if hit {
		metrics.QueryCacheHits.WithLabelValues(name, "hit").Inc()
	} else {
		metrics.QueryCacheHits.WithLabelValues(name, "miss").Inc()
	}
	return hit
}

func (s *Service) remember(ctx context.Context, key string, val interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, val); err != nil {
		s.logger.Warnf("cache store %s failed: %v", key, err)
	}
}
