package query

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"energy-monitor/internal/logging"
	"energy-monitor/internal/models"
)

type fakeStore struct {
	buckets    []models.RollupBucket
	waste      map[string]float64
	bySeverity map[models.Severity]int
	byType     map[models.AnomalyType]int
}

func (f *fakeStore) BucketsInRange(ctx context.Context, site models.Site, width models.BucketWidth, from, to time.Time) ([]models.RollupBucket, error) {
	var out []models.RollupBucket
	for _, b := range f.buckets {
		if b.Site == site && b.Width == width {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, models.ErrNoData
	}
	return out, nil
}

func (f *fakeStore) AnomaliesBySite(ctx context.Context, site models.Site, from, to time.Time, severity string, limit, offset int) ([]models.AnomalyEvent, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) AnomaliesSince(ctx context.Context, cursor int64, limit int) ([]models.AnomalyEvent, error) {
	return nil, nil
}

func (f *fakeStore) AnomalySummary(ctx context.Context, site models.Site) (map[models.Severity]int, map[models.AnomalyType]int, error) {
	return f.bySeverity, f.byType, nil
}

func (f *fakeStore) WasteByCause(ctx context.Context, site models.Site, from, to time.Time) (map[string]float64, error) {
	return f.waste, nil
}

func hourBucket(site models.Site, start time.Time, kwh float64) models.RollupBucket {
	return models.RollupBucket{Site: site, BucketStart: start, Width: models.BucketHour, EnergySumKWh: kwh, RecordCount: 1}
}

func TestHourlyPatternAveragesByHourOfDay(t *testing.T) {
	day1 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	store := &fakeStore{buckets: []models.RollupBucket{
		hourBucket(models.SiteTunja, day1.Add(8*time.Hour), 100),
		hourBucket(models.SiteTunja, day2.Add(8*time.Hour), 140),
		hourBucket(models.SiteTunja, day1.Add(14*time.Hour), 200),
	}}
	svc := New(store, nil, logging.Discard())

	rows, err := svc.HourlyPattern(context.Background(), models.SiteTunja, day1, day2.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("HourlyPattern: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Hour != 8 || rows[0].AvgKWh != 120 || rows[0].Samples != 2 {
		t.Errorf("hour 8 row = %+v, want avg 120 over 2 samples", rows[0])
	}
	if rows[1].Hour != 14 || rows[1].AvgKWh != 200 {
		t.Errorf("hour 14 row = %+v, want avg 200", rows[1])
	}
}

func TestHourlyPatternNoData(t *testing.T) {
	svc := New(&fakeStore{}, nil, logging.Discard())
	_, err := svc.HourlyPattern(context.Background(), models.SiteTunja, time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, models.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestSectorBreakdownShares(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{buckets: []models.RollupBucket{
		{Site: models.SiteTunja, BucketStart: day, Width: models.BucketDay, SectorSumsKWh: map[models.Sector]float64{
			models.SectorLabs:   300,
			models.SectorDining: 100,
		}},
		{Site: models.SiteTunja, BucketStart: day.AddDate(0, 0, 1), Width: models.BucketDay, SectorSumsKWh: map[models.Sector]float64{
			models.SectorLabs: 100,
		}},
	}}
	svc := New(store, nil, logging.Discard())

	shares, err := svc.SectorBreakdown(context.Background(), models.SiteTunja, day, day.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("SectorBreakdown: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("got %d shares, want 2", len(shares))
	}
	var totalPct float64
	for _, sh := range shares {
		totalPct += sh.SharePct
		switch sh.Sector {
		case models.SectorLabs:
			if sh.TotalKWh != 400 || sh.SharePct != 80 {
				t.Errorf("labs share = %+v, want 400 kWh / 80%%", sh)
			}
		case models.SectorDining:
			if sh.TotalKWh != 100 || sh.SharePct != 20 {
				t.Errorf("dining share = %+v, want 100 kWh / 20%%", sh)
			}
		default:
			t.Errorf("unexpected sector %s", sh.Sector)
		}
	}
	if math.Abs(totalPct-100) > 1e-9 {
		t.Errorf("shares sum to %v, want 100", totalPct)
	}
}

func TestSectorBreakdownZeroGrandTotal(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{buckets: []models.RollupBucket{
		{Site: models.SiteTunja, BucketStart: day, Width: models.BucketDay, SectorSumsKWh: map[models.Sector]float64{}},
	}}
	svc := New(store, nil, logging.Discard())

	_, err := svc.SectorBreakdown(context.Background(), models.SiteTunja, day, day.AddDate(0, 0, 1))
	if !errors.Is(err, models.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData for zero grand total", err)
	}
}

func TestParetoOrderingAndCumulative(t *testing.T) {
	store := &fakeStore{waste: map[string]float64{
		"off_hours_usage/classrooms": 500,
		"consumption_spike/labs":     300,
		"consumption_spike/dining":   150,
		"consumption_drop/offices":   50,
	}}
	svc := New(store, nil, logging.Discard())

	rows, err := svc.Pareto(context.Background(), models.SiteTunja, time.Time{}, time.Now(), 0)
	if err != nil {
		t.Fatalf("Pareto: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	if rows[0].Cause != "off_hours_usage/classrooms" {
		t.Errorf("top cause = %s, want off_hours_usage/classrooms", rows[0].Cause)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].WasteKWh > rows[i-1].WasteKWh {
			t.Fatalf("rows not descending by waste at index %d", i)
		}
		if rows[i].CumulativePct < rows[i-1].CumulativePct {
			t.Fatalf("cumulative pct decreased at index %d", i)
		}
	}
	if math.Abs(rows[len(rows)-1].CumulativePct-100) > 1e-9 {
		t.Errorf("final cumulative = %v, want 100", rows[len(rows)-1].CumulativePct)
	}
	if rows[0].Pct != 50 {
		t.Errorf("top pct = %v, want 50", rows[0].Pct)
	}
}

func TestParetoLimit(t *testing.T) {
	store := &fakeStore{waste: map[string]float64{
		"consumption_spike/labs":   300,
		"consumption_spike/dining": 150,
		"consumption_drop/offices": 50,
	}}
	svc := New(store, nil, logging.Discard())

	rows, err := svc.Pareto(context.Background(), models.SiteTunja, time.Time{}, time.Now(), 2)
	if err != nil {
		t.Fatalf("Pareto: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	// Cumulative keeps the share against the full total, not the truncated set.
	if rows[1].CumulativePct >= 100 {
		t.Errorf("cumulative after truncation = %v, want < 100", rows[1].CumulativePct)
	}
}

func TestParetoNoData(t *testing.T) {
	svc := New(&fakeStore{waste: map[string]float64{}}, nil, logging.Discard())
	_, err := svc.Pareto(context.Background(), models.SiteTunja, time.Time{}, time.Now(), 0)
	if !errors.Is(err, models.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestDashboardKPIs(t *testing.T) {
	day := time.Now().UTC().AddDate(0, 0, -2).Truncate(24 * time.Hour)
	store := &fakeStore{
		buckets: []models.RollupBucket{
			{Site: models.SiteTunja, BucketStart: day, Width: models.BucketDay,
				EnergySumKWh: 1000, EnergyMinKWh: 10, EnergyMaxKWh: 90, WaterSumL: 5000, CO2SumKg: 164, RecordCount: 20},
			{Site: models.SiteTunja, BucketStart: day.AddDate(0, 0, 1), Width: models.BucketDay,
				EnergySumKWh: 600, EnergyMinKWh: 5, EnergyMaxKWh: 120, WaterSumL: 3000, CO2SumKg: 98.4, RecordCount: 12},
		},
		bySeverity: map[models.Severity]int{models.SeverityHigh: 3},
		byType:     map[models.AnomalyType]int{models.AnomalyConsumptionSpike: 3},
	}
	svc := New(store, nil, logging.Discard())

	kpis, err := svc.Dashboard(context.Background(), models.SiteTunja, 7)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if kpis.TotalKWh != 1600 {
		t.Errorf("TotalKWh = %v, want 1600", kpis.TotalKWh)
	}
	if kpis.Records != 32 {
		t.Errorf("Records = %d, want 32", kpis.Records)
	}
	if kpis.AvgKWh != 50 {
		t.Errorf("AvgKWh = %v, want 50", kpis.AvgKWh)
	}
	if kpis.MaxKWh != 120 || kpis.MinKWh != 5 {
		t.Errorf("Max/Min = %v/%v, want 120/5", kpis.MaxKWh, kpis.MinKWh)
	}
	if kpis.BySeverity[models.SeverityHigh] != 3 {
		t.Errorf("BySeverity = %v, want 3 high", kpis.BySeverity)
	}
}

func TestDashboardNoData(t *testing.T) {
	svc := New(&fakeStore{}, nil, logging.Discard())
	_, err := svc.Dashboard(context.Background(), models.SiteTunja, 7)
	if !errors.Is(err, models.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

type fakeCache struct {
	gets int
	sets int
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.gets++
	return false, nil
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, val interface{}) error {
	c.sets++
	return nil
}

func TestCachePopulatedOnMiss(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{buckets: []models.RollupBucket{hourBucket(models.SiteTunja, day.Add(8*time.Hour), 100)}}
	cache := &fakeCache{}
	svc := New(store, cache, logging.Discard())

	if _, err := svc.HourlyPattern(context.Background(), models.SiteTunja, day, day.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("HourlyPattern: %v", err)
	}
	if cache.gets != 1 || cache.sets != 1 {
		t.Errorf("cache gets/sets = %d/%d, want 1/1", cache.gets, cache.sets)
	}
}
