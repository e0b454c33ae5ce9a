package baseline

import (
	"context"
	"math"
	"sync"
	"time"

	"energy-monitor/internal/logging"
	"energy-monitor/internal/models"
)

// Store persists baseline cells across restarts.
type Store interface {
	SaveBaselines(ctx context.Context, cells []models.Baseline) error
	LoadBaselines(ctx context.Context) ([]models.Baseline, error)
}

// Estimator maintains expected consumption per (site, sector, hour-of-day,
// day-of-week) cell using Welford's online mean/variance. A configurable
// forgetting factor caps the effective sample weight so old semesters decay
// instead of freezing the baseline at first-fit values.
type Estimator struct {
	mu         sync.RWMutex
	cells      map[models.BaselineKey]*models.Baseline
	minSamples int
	forgetting float64 // 0 disables decay
	store      Store
	logger     *logging.Logger
}

// New builds an Estimator. minSamples is the training threshold below which
// Estimate returns models.ErrInsufficientBaseline.
func New(store Store, logger *logging.Logger, minSamples int, forgetting float64) *Estimator {
	return &Estimator{
		cells:      make(map[models.BaselineKey]*models.Baseline),
		minSamples: minSamples,
		forgetting: forgetting,
		store:      store,
		logger:     logger,
	}
}

// Restore loads persisted cells, replacing in-memory state.
func (e *Estimator) Restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	cells, err := e.store.LoadBaselines(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cells = make(map[models.BaselineKey]*models.Baseline, len(cells))
	for i := range cells {
		c := cells[i]
		e.cells[c.Key] = &c
	}
	e.logger.Infof("restored %d baseline cells", len(cells))
	return nil
}

// Observe folds one reading into its cell. Welford update; once the cell has
// warmed past the training threshold the sample count is decayed so the most
// recent weeks dominate.
func (e *Estimator) Observe(r models.ConsumptionReading) {
	key := models.BaselineKeyFor(r.Site, r.Sector, r.Timestamp)

	e.mu.Lock()
	defer e.mu.Unlock()

	cell, ok := e.cells[key]
	if !ok {
		cell = &models.Baseline{Key: key}
		e.cells[key] = cell
	}

	if e.forgetting > 0 && cell.SampleCount >= float64(e.minSamples) {
		// Exponential down-weighting of history: shrinking n and M2 by the
		// same factor raises the weight of each new observation while the
		// variance estimate stays unbiased in the limit.
		decay := 1 - e.forgetting
		cell.SampleCount *= decay
		cell.M2 *= decay
	}

	cell.SampleCount++
	delta := r.EnergyKWh - cell.Mean
	cell.Mean += delta / cell.SampleCount
	delta2 := r.EnergyKWh - cell.Mean
	cell.M2 += delta * delta2

	if cell.SampleCount > 1 {
		cell.StdDev = math.Sqrt(cell.M2 / (cell.SampleCount - 1))
	}
	cell.Trained = cell.SampleCount >= float64(e.minSamples)
	cell.UpdatedAt = time.Now().UTC()
}

// Estimate returns the baseline for the cell covering ts. Cells below the
// training threshold return models.ErrInsufficientBaseline so callers skip
// scoring instead of scoring against noise.
func (e *Estimator) Estimate(site models.Site, sector models.Sector, ts time.Time) (models.Baseline, error) {
	key := models.BaselineKeyFor(site, sector, ts)

	e.mu.RLock()
	defer e.mu.RUnlock()

	cell, ok := e.cells[key]
	if !ok || !cell.Trained {
		return models.Baseline{Key: key}, models.ErrInsufficientBaseline
	}
	return *cell, nil
}

// Snapshot persists every cell through the store (swap-on-write upsert).
func (e *Estimator) Snapshot(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	e.mu.RLock()
	cells := make([]models.Baseline, 0, len(e.cells))
	for _, c := range e.cells {
		cells = append(cells, *c)
	}
	e.mu.RUnlock()

	return e.store.SaveBaselines(ctx, cells)
}

// CellCount reports how many cells are tracked, for the status endpoint.
func (e *Estimator) CellCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cells)
}
