package rollup

import (
	"reflect"
	"testing"
	"time"

	"energy-monitor/internal/models"
)

func reading(site models.Site, sector models.Sector, ts time.Time, kwh float64) models.ConsumptionReading {
	return models.ConsumptionReading{
		Site:       site,
		Sector:     sector,
		Timestamp:  ts,
		EnergyKWh:  kwh,
		CO2Kg:      kwh * models.CO2FactorKgPerKWh,
		IngestedAt: ts,
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	if got := Aggregate(nil, models.BucketHour); got != nil {
		t.Fatalf("expected nil for empty input, got %d buckets", len(got))
	}
}

func TestAggregateHourlyStats(t *testing.T) {
	ts := time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC)
	readings := []models.ConsumptionReading{
		reading(models.SiteTunja, models.SectorLabs, ts, 120),
		reading(models.SiteTunja, models.SectorDining, ts, 80),
		reading(models.SiteTunja, models.SectorOffices, ts, 40),
	}

	buckets := Aggregate(readings, models.BucketHour)
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	b := buckets[0]
	if b.RecordCount != 3 {
		t.Errorf("record_count = %d, want 3", b.RecordCount)
	}
	if b.EnergySumKWh != 240 {
		t.Errorf("sum = %.1f, want 240", b.EnergySumKWh)
	}
	if b.EnergyAvgKWh != 80 {
		t.Errorf("avg = %.1f, want 80", b.EnergyAvgKWh)
	}
	if b.EnergyMinKWh != 40 || b.EnergyMaxKWh != 120 {
		t.Errorf("min/max = %.1f/%.1f, want 40/120", b.EnergyMinKWh, b.EnergyMaxKWh)
	}
	if b.SectorSumsKWh[models.SectorLabs] != 120 {
		t.Errorf("labs sum = %.1f, want 120", b.SectorSumsKWh[models.SectorLabs])
	}
}

func TestAggregateDayBucketsSpanHours(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	var readings []models.ConsumptionReading
	for h := 0; h < 24; h++ {
		readings = append(readings, reading(models.SiteDuitama, models.SectorClassrooms, day.Add(time.Duration(h)*time.Hour), 10))
	}
	readings = append(readings, reading(models.SiteDuitama, models.SectorClassrooms, day.AddDate(0, 0, 1), 99))

	buckets := Aggregate(readings, models.BucketDay)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 day buckets, got %d", len(buckets))
	}
	if buckets[0].EnergySumKWh != 240 || buckets[0].RecordCount != 24 {
		t.Errorf("day 1: sum=%.1f count=%d, want 240/24", buckets[0].EnergySumKWh, buckets[0].RecordCount)
	}
	if !buckets[0].BucketStart.Equal(day) {
		t.Errorf("day 1 start = %s, want %s", buckets[0].BucketStart, day)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	ts := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	readings := []models.ConsumptionReading{
		reading(models.SiteSogamoso, models.SectorLabs, ts.Add(2*time.Hour), 33.7),
		reading(models.SiteSogamoso, models.SectorOffices, ts, 12.1),
		reading(models.SiteTunja, models.SectorDining, ts.Add(time.Hour), 55.9),
		reading(models.SiteTunja, models.SectorLabs, ts, 101.4),
	}

	first := Aggregate(readings, models.BucketHour)

	// Shuffle the input order; output must be field-identical.
	shuffled := []models.ConsumptionReading{readings[2], readings[0], readings[3], readings[1]}
	second := Aggregate(shuffled, models.BucketHour)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregation not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}

	third := Aggregate(readings, models.BucketHour)
	if !reflect.DeepEqual(first, third) {
		t.Fatalf("re-running over same input changed output")
	}
}

func TestAggregateSeparatesSites(t *testing.T) {
	ts := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	readings := []models.ConsumptionReading{
		reading(models.SiteTunja, models.SectorLabs, ts, 10),
		reading(models.SiteDuitama, models.SectorLabs, ts, 20),
	}
	buckets := Aggregate(readings, models.BucketHour)
	if len(buckets) != 2 {
		t.Fatalf("expected one bucket per site, got %d", len(buckets))
	}
	for _, b := range buckets {
		if b.RecordCount != 1 {
			t.Errorf("site %s count = %d, want 1", b.Site, b.RecordCount)
		}
	}
}
