package anomaly

import (
	"math"
	"time"

	"github.com/google/uuid"

	"energy-monitor/internal/models"
)

// Severity ladder over |deviation_pct|, evaluated in order, first match wins.
var severitySteps = []struct {
	threshold float64
	severity  models.Severity
}{
	{100, models.SeverityCritical},
	{50, models.SeverityHigh},
	{25, models.SeverityMedium},
	{10, models.SeverityLow},
}

// Scorer compares readings against their baseline and emits at most one
// AnomalyEvent per reading. It never mutates the reading.
type Scorer struct {
	// offHoursFloorKWh is the stricter near-zero expectation applied to
	// declared non-operating hours. It doubles as the denominator guard when
	// the trained expectation itself is near zero.
	offHoursFloorKWh float64
}

// NewScorer builds a Scorer with the configured off-hours floor.
func NewScorer(offHoursFloorKWh float64) *Scorer {
	if offHoursFloorKWh <= 0 {
		offHoursFloorKWh = 5.0
	}
	return &Scorer{offHoursFloorKWh: offHoursFloorKWh}
}

// Score classifies one reading. A nil result means no anomaly. Untrained
// cells are the caller's responsibility to skip, except for off-hours
// readings, whose expectation is the fixed floor rather than the mean.
func (s *Scorer) Score(r models.ConsumptionReading, b models.Baseline) *models.AnomalyEvent {
	expected := b.Mean
	typ := models.AnomalyConsumptionSpike

	if r.OffHours() {
		// Off-hours use the stricter near-zero expectation: any consumption
		// beyond the floor is itself suspect, even when the global baseline
		// would make the deviation look small.
		expected = math.Min(expected, s.offHoursFloorKWh)
		typ = models.AnomalyOffHoursUsage
	}

	// Guard expected ~ 0: fall back to the floor as denominator so small
	// absolute differences do not explode and zero never divides.
	denom := expected
	if denom < s.offHoursFloorKWh {
		denom = s.offHoursFloorKWh
	}

	deviationPct := (r.EnergyKWh - expected) / denom * 100

	severity, flagged := classify(deviationPct)
	if !flagged {
		return nil
	}
	if deviationPct < 0 {
		if typ == models.AnomalyOffHoursUsage {
			// Consuming less than the off-hours floor is desired, not anomalous.
			return nil
		}
		typ = models.AnomalyConsumptionDrop
	}

	ev := &models.AnomalyEvent{
		ID:            uuid.New(),
		Site:          r.Site,
		Sector:        r.Sector,
		Timestamp:     r.Timestamp,
		Type:          typ,
		ActualKWh:     r.EnergyKWh,
		ExpectedKWh:   expected,
		DeviationPct:  round1(deviationPct),
		Severity:      severity,
		Status:        models.StatusUnresolved,
		BaselineKey:   b.Key,
		BaselineMean:  b.Mean,
		BaselineStdev: b.StdDev,
		DetectedAt:    time.Now().UTC(),
	}
	ev.Description = describe(ev)
	ev.Recommended = recommend(ev)
	return ev
}

// classify maps |deviationPct| onto the severity ladder. Below the lowest
// step no event is produced.
func classify(deviationPct float64) (models.Severity, bool) {
	abs := math.Abs(deviationPct)
	for _, step := range severitySteps {
		if abs >= step.threshold {
			return step.severity, true
		}
	}
	return "", false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
