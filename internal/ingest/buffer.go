package ingest

import (
	"sort"
	"sync"
	"time"

	"energy-monitor/internal/logging"
	"energy-monitor/internal/models"
)

// Buffer accumulates validated readings between rollup refreshes. It enforces
// the one-reading-per-(site, sector, hour) invariant with a latest-ingested-
// wins policy; conflicts are logged and counted, never averaged.
type Buffer struct {
	mu        sync.Mutex
	readings  map[models.ReadingKey]models.ConsumptionReading
	conflicts int64
	logger    *logging.Logger
}

// NewBuffer constructs an empty ingestion buffer.
func NewBuffer(logger *logging.Logger) *Buffer {
	return &Buffer{
		readings: make(map[models.ReadingKey]models.ConsumptionReading),
		logger:   logger,
	}
}

// Add validates and stores a reading. Returns models.ErrDuplicateReading when
// the slot was already occupied; the new value replaces the old one.
func (b *Buffer) Add(r models.ConsumptionReading) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.IngestedAt.IsZero() {
		r.IngestedAt = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := r.Key()
	if prev, ok := b.readings[key]; ok {
		// Keep whichever arrived later at the collector.
		if !r.IngestedAt.Before(prev.IngestedAt) {
			b.readings[key] = r
		}
		b.conflicts++
		b.logger.Warnf("duplicate reading for %s/%s at %s: kept latest-ingested value (%.3f kWh over %.3f kWh)",
			key.Site, key.Sector, key.Hour.Format(time.RFC3339), b.readings[key].EnergyKWh, prev.EnergyKWh)
		return models.ErrDuplicateReading
	}
	b.readings[key] = r
	return nil
}

// Drain returns all buffered readings sorted ascending by timestamp (then
// site, then sector, so downstream accumulation order is fixed) and resets
// the buffer.
func (b *Buffer) Drain() []models.ConsumptionReading {
	b.mu.Lock()
	out := make([]models.ConsumptionReading, 0, len(b.readings))
	for _, r := range b.readings {
		out = append(out, r)
	}
	b.readings = make(map[models.ReadingKey]models.ConsumptionReading)
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		if out[i].Site != out[j].Site {
			return out[i].Site < out[j].Site
		}
		return out[i].Sector < out[j].Sector
	})
	return out
}

// Evict drops readings whose hour is older than cutoff. Slots that old can
// no longer change a rollup, so holding them only grows the map. Returns how
// many were removed.
func (b *Buffer) Evict(cutoff time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for key := range b.readings {
		if key.Hour.Before(cutoff) {
			delete(b.readings, key)
			n++
		}
	}
	return n
}

// Len reports how many readings are currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readings)
}

// Conflicts reports how many duplicate slots were resolved since startup.
func (b *Buffer) Conflicts() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conflicts
}
