package db

import (
	"context"
	"fmt"
	"time"

	"energy-monitor/internal/models"
)

// InsertReading stores one hourly reading. A collision on the
// (site, sector, hour) key is resolved latest-ingested-wins: the new row
// replaces the old one only when it arrived later at the collector.
func (d *DB) InsertReading(ctx context.Context, r models.ConsumptionReading) error {
	query := `
    INSERT INTO consumption_readings (
        site, sector, ts, energy_kwh, water_liters, co2_kg, temperature_c,
        occupancy_pct, is_weekend, is_holiday, is_exam_week, academic_period, ingested_at
    ) VALUES (
        $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
    )
    ON CONFLICT (site, sector, ts) DO UPDATE SET
        energy_kwh = EXCLUDED.energy_kwh,
        water_liters = EXCLUDED.water_liters,
        co2_kg = EXCLUDED.co2_kg,
        temperature_c = EXCLUDED.temperature_c,
        occupancy_pct = EXCLUDED.occupancy_pct,
        is_weekend = EXCLUDED.is_weekend,
        is_holiday = EXCLUDED.is_holiday,
        is_exam_week = EXCLUDED.is_exam_week,
        academic_period = EXCLUDED.academic_period,
        ingested_at = EXCLUDED.ingested_at
    WHERE consumption_readings.ingested_at <= EXCLUDED.ingested_at`

	_, err := d.Pool.Exec(ctx, query,
		r.Site, r.Sector, r.Timestamp, r.EnergyKWh, r.WaterLiters, r.CO2Kg,
		r.TemperatureC, r.OccupancyPct, r.IsWeekend, r.IsHoliday, r.IsExamWeek,
		r.AcademicPeriod, r.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// ReadingsInRange returns all readings for site in [from, to), ordered
// ascending by timestamp then sector so aggregation order is fixed.
func (d *DB) ReadingsInRange(ctx context.Context, site models.Site, from, to time.Time) ([]models.ConsumptionReading, error) {
	query := `
    SELECT site, sector, ts, energy_kwh, water_liters, co2_kg, temperature_c,
           occupancy_pct, is_weekend, is_holiday, is_exam_week, academic_period, ingested_at
    FROM consumption_readings
    WHERE site = $1 AND ts >= $2 AND ts < $3
    ORDER BY ts ASC, sector ASC`

	rows, err := d.Pool.Query(ctx, query, site, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var list []models.ConsumptionReading
	for rows.Next() {
		var r models.ConsumptionReading
		if err := rows.Scan(
			&r.Site, &r.Sector, &r.Timestamp, &r.EnergyKWh, &r.WaterLiters, &r.CO2Kg,
			&r.TemperatureC, &r.OccupancyPct, &r.IsWeekend, &r.IsHoliday, &r.IsExamWeek,
			&r.AcademicPeriod, &r.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}
	return list, nil
}
