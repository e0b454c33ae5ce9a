package ingest

import (
	"context"
	"testing"
	"time"

	"energy-monitor/internal/anomaly"
	"energy-monitor/internal/logging"
	"energy-monitor/internal/models"
)

type fakeReadingStore struct {
	readings  []models.ConsumptionReading
	anomalies []models.AnomalyEvent
}

func (f *fakeReadingStore) InsertReading(ctx context.Context, r models.ConsumptionReading) error {
	f.readings = append(f.readings, r)
	return nil
}

func (f *fakeReadingStore) InsertAnomaly(ctx context.Context, ev *models.AnomalyEvent) error {
	f.anomalies = append(f.anomalies, *ev)
	return nil
}

// coldEstimator is a cell that never reaches the training threshold.
type coldEstimator struct{ observed int }

func (e *coldEstimator) Estimate(site models.Site, sector models.Sector, ts time.Time) (models.Baseline, error) {
	return models.Baseline{Key: models.BaselineKeyFor(site, sector, ts)}, models.ErrInsufficientBaseline
}

func (e *coldEstimator) Observe(r models.ConsumptionReading) { e.observed++ }

type captureSink struct{ events []models.AnomalyEvent }

func (s *captureSink) Publish(ev models.AnomalyEvent) { s.events = append(s.events, ev) }

func TestIngestScoresOffHoursBeforeBaselineWarms(t *testing.T) {
	store := &fakeReadingStore{}
	est := &coldEstimator{}
	sink := &captureSink{}
	p := NewPipeline(NewBuffer(logging.Discard()), store, est, anomaly.NewScorer(5), logging.Discard(), sink)

	night := time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC)
	p.Ingest(context.Background(), models.ConsumptionReading{
		Site:      models.SiteTunja,
		Sector:    models.SectorClassrooms,
		Timestamp: night,
		EnergyKWh: 50,
	})

	if len(store.anomalies) != 1 {
		t.Fatalf("got %d anomalies, want 1 for off-hours consumption on a cold cell", len(store.anomalies))
	}
	if store.anomalies[0].Type != models.AnomalyOffHoursUsage {
		t.Errorf("type = %s, want off_hours_usage", store.anomalies[0].Type)
	}
	if len(sink.events) != 1 {
		t.Errorf("sink received %d events, want 1", len(sink.events))
	}
	if est.observed != 1 {
		t.Errorf("Observe called %d times, want 1", est.observed)
	}
}

func TestIngestSkipsScoringColdDaytimeCells(t *testing.T) {
	store := &fakeReadingStore{}
	est := &coldEstimator{}
	p := NewPipeline(NewBuffer(logging.Discard()), store, est, anomaly.NewScorer(5), logging.Discard())

	noon := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	p.Ingest(context.Background(), models.ConsumptionReading{
		Site:      models.SiteTunja,
		Sector:    models.SectorClassrooms,
		Timestamp: noon,
		EnergyKWh: 500,
	})

	if len(store.anomalies) != 0 {
		t.Fatalf("got %d anomalies, want none before the baseline is trained", len(store.anomalies))
	}
	if len(store.readings) != 1 {
		t.Errorf("persisted %d readings, want 1", len(store.readings))
	}
	if est.observed != 1 {
		t.Errorf("Observe called %d times, want 1", est.observed)
	}
}
