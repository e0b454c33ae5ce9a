package models

import (
	"fmt"
	"time"
)

// CO2FactorKgPerKWh converts consumed energy to emitted CO2 using the
// Colombian grid emission factor.
const CO2FactorKgPerKWh = 0.164

// ConsumptionReading is one hourly measurement for a (site, sector) pair.
// Readings are immutable once stored; exactly one exists per
// (site, sector, hour). Timestamps are UTC and hour-aligned.
type ConsumptionReading struct {
	Site           Site      `json:"site"`
	Sector         Sector    `json:"sector"`
	Timestamp      time.Time `json:"timestamp"`
	EnergyKWh      float64   `json:"energy_kwh"`
	WaterLiters    float64   `json:"water_liters"`
	CO2Kg          float64   `json:"co2_kg"`
	TemperatureC   *float64  `json:"temperature_c,omitempty"`
	OccupancyPct   *float64  `json:"occupancy_pct,omitempty"`
	IsWeekend      bool      `json:"is_weekend"`
	IsHoliday      bool      `json:"is_holiday"`
	IsExamWeek     bool      `json:"is_exam_week"`
	AcademicPeriod string    `json:"academic_period,omitempty"`
	IngestedAt     time.Time `json:"ingested_at"`
}

// Validate checks boundary invariants and normalizes the timestamp to the
// containing UTC hour. It derives CO2Kg when the collector did not send it.
func (r *ConsumptionReading) Validate() error {
	if _, err := ParseSite(string(r.Site)); err != nil {
		return err
	}
	if _, err := ParseSector(string(r.Sector)); err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("reading has no timestamp")
	}
	if r.EnergyKWh < 0 {
		return fmt.Errorf("negative energy_kwh %.3f", r.EnergyKWh)
	}
	if r.WaterLiters < 0 {
		return fmt.Errorf("negative water_liters %.3f", r.WaterLiters)
	}
	if r.OccupancyPct != nil && (*r.OccupancyPct < 0 || *r.OccupancyPct > 100) {
		return fmt.Errorf("occupancy_pct %.1f out of range", *r.OccupancyPct)
	}
	r.Timestamp = r.Timestamp.UTC().Truncate(time.Hour)
	if r.CO2Kg == 0 && r.EnergyKWh > 0 {
		r.CO2Kg = r.EnergyKWh * CO2FactorKgPerKWh
	}
	return nil
}

// Key identifies the unique slot a reading occupies.
func (r ConsumptionReading) Key() ReadingKey {
	return ReadingKey{Site: r.Site, Sector: r.Sector, Hour: r.Timestamp}
}

// ReadingKey is the (site, sector, hour) identity of a reading.
type ReadingKey struct {
	Site   Site
	Sector Sector
	Hour   time.Time
}

// OffHours reports whether the reading falls in declared non-operating time:
// night hours (22:00-06:00 local schedule, kept in UTC here), holidays, and
// weekends for sectors that do not run overnight work.
func (r ConsumptionReading) OffHours() bool {
	h := r.Timestamp.Hour()
	night := h >= 22 || h < 6
	if r.Sector.RunsOvernight() {
		return false
	}
	return night || r.IsHoliday || r.IsWeekend
}
