package ingest

import (
	"context"
	"errors"
	"time"

	"energy-monitor/internal/logging"
	"energy-monitor/internal/metrics"
	"energy-monitor/internal/models"
)

// ReadingStore is the slice of storage the pipeline writes through.
type ReadingStore interface {
	InsertReading(ctx context.Context, r models.ConsumptionReading) error
	InsertAnomaly(ctx context.Context, ev *models.AnomalyEvent) error
}

// Estimator maintains per-cell baselines and answers expected consumption.
type Estimator interface {
	Estimate(site models.Site, sector models.Sector, ts time.Time) (models.Baseline, error)
	Observe(r models.ConsumptionReading)
}

// Scorer turns a reading plus its baseline into at most one anomaly event.
type Scorer interface {
	Score(r models.ConsumptionReading, b models.Baseline) *models.AnomalyEvent
}

// EventSink receives freshly persisted anomaly events (notifier, websocket).
type EventSink interface {
	Publish(ev models.AnomalyEvent)
}

// Pipeline runs a reading through dedup, persistence, baseline update and
// anomaly scoring. Scoring uses the baseline as it stood before the reading
// was folded in, so a spike cannot mask itself.
type Pipeline struct {
	buffer    *Buffer
	store     ReadingStore
	estimator Estimator
	scorer    Scorer
	sinks     []EventSink
	logger    *logging.Logger
}

// NewPipeline assembles the ingestion pipeline.
func NewPipeline(buffer *Buffer, store ReadingStore, estimator Estimator, scorer Scorer, logger *logging.Logger, sinks ...EventSink) *Pipeline {
	return &Pipeline{
		buffer:    buffer,
		store:     store,
		estimator: estimator,
		scorer:    scorer,
		sinks:     sinks,
		logger:    logger,
	}
}

// Ingest processes one validated reading end to end. Failures are logged and
// recovered locally; ingestion never crashes on a bad reading.
func (p *Pipeline) Ingest(ctx context.Context, r models.ConsumptionReading) {
	if err := p.buffer.Add(r); err != nil {
		if errors.Is(err, models.ErrDuplicateReading) {
			metrics.ReadingConflicts.Inc()
		} else {
			p.logger.Errorf("reject reading %s/%s: %v", r.Site, r.Sector, err)
			return
		}
	}
	metrics.ReadingsIngested.WithLabelValues(string(r.Site), string(r.Sector)).Inc()

	if err := p.store.InsertReading(ctx, r); err != nil {
		p.logger.Errorf("persist reading %s/%s at %s failed: %v", r.Site, r.Sector, r.Timestamp.Format(time.RFC3339), err)
	}

	baseline, err := p.estimator.Estimate(r.Site, r.Sector, r.Timestamp)
	p.estimator.Observe(r)
	if err != nil {
		if !errors.Is(err, models.ErrInsufficientBaseline) {
			p.logger.Errorf("baseline lookup for %s/%s failed: %v", r.Site, r.Sector, err)
			return
		}
		if !r.OffHours() {
			// Cannot score yet; the reading still trains the cell.
			return
		}
		// The off-hours expectation is the fixed floor, not the trained
		// mean, so night and holiday waste is scored from the first reading.
	}

	ev := p.scorer.Score(r, baseline)
	if ev == nil {
		return
	}

	if err := p.store.InsertAnomaly(ctx, ev); err != nil {
		p.logger.Errorf("persist anomaly %s failed: %v", ev.ID, err)
		return
	}
	metrics.AnomaliesDetected.WithLabelValues(string(ev.Severity), string(ev.Type)).Inc()
	p.logger.Infof("anomaly detected: site=%s sector=%s type=%s severity=%s deviation=%.1f%%",
		ev.Site, ev.Sector, ev.Type, ev.Severity, ev.DeviationPct)
	for _, sink := range p.sinks {
		sink.Publish(*ev)
	}
}

// Buffer exposes the dedup buffer for the ingest status endpoint and for
// eviction on the rollup refresh tick.
func (p *Pipeline) Buffer() *Buffer {
	return p.buffer
}
