package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	d.Pool.Close()
}

// InitSchema creates the tables the service owns. TimescaleDB turns
// consumption_readings into a hypertable when the extension is present;
// plain Postgres works too.
func (d *DB) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS consumption_readings (
			site            TEXT        NOT NULL,
			sector          TEXT        NOT NULL,
			ts              TIMESTAMPTZ NOT NULL,
			energy_kwh      DOUBLE PRECISION NOT NULL,
			water_liters    DOUBLE PRECISION NOT NULL DEFAULT 0,
			co2_kg          DOUBLE PRECISION NOT NULL DEFAULT 0,
			temperature_c   DOUBLE PRECISION,
			occupancy_pct   DOUBLE PRECISION,
			is_weekend      BOOLEAN NOT NULL DEFAULT FALSE,
			is_holiday      BOOLEAN NOT NULL DEFAULT FALSE,
			is_exam_week    BOOLEAN NOT NULL DEFAULT FALSE,
			academic_period TEXT NOT NULL DEFAULT '',
			ingested_at     TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (site, sector, ts)
		)`,
		`CREATE INDEX IF NOT EXISTS ix_readings_site_ts ON consumption_readings (site, ts DESC)`,
		`CREATE TABLE IF NOT EXISTS rollup_buckets (
			site          TEXT        NOT NULL,
			width         TEXT        NOT NULL,
			bucket_start  TIMESTAMPTZ NOT NULL,
			energy_sum    DOUBLE PRECISION NOT NULL,
			energy_avg    DOUBLE PRECISION NOT NULL,
			energy_min    DOUBLE PRECISION NOT NULL,
			energy_max    DOUBLE PRECISION NOT NULL,
			water_sum     DOUBLE PRECISION NOT NULL,
			co2_sum       DOUBLE PRECISION NOT NULL,
			record_count  INTEGER NOT NULL,
			sector_sums   JSONB NOT NULL DEFAULT '{}',
			PRIMARY KEY (site, width, bucket_start)
		)`,
		`CREATE TABLE IF NOT EXISTS baselines (
			site         TEXT NOT NULL,
			sector       TEXT NOT NULL,
			hour_of_day  INTEGER NOT NULL,
			day_of_week  INTEGER NOT NULL,
			mean         DOUBLE PRECISION NOT NULL,
			std_dev      DOUBLE PRECISION NOT NULL,
			m2           DOUBLE PRECISION NOT NULL,
			sample_count DOUBLE PRECISION NOT NULL,
			trained      BOOLEAN NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (site, sector, hour_of_day, day_of_week)
		)`,
		`CREATE TABLE IF NOT EXISTS anomalies (
			id                 UUID PRIMARY KEY,
			cursor             BIGSERIAL,
			site               TEXT NOT NULL,
			sector             TEXT NOT NULL,
			ts                 TIMESTAMPTZ NOT NULL,
			type               TEXT NOT NULL,
			actual_kwh         DOUBLE PRECISION NOT NULL,
			expected_kwh       DOUBLE PRECISION NOT NULL,
			deviation_pct      DOUBLE PRECISION NOT NULL,
			severity           TEXT NOT NULL,
			status             TEXT NOT NULL,
			description        TEXT NOT NULL,
			recommended_action TEXT NOT NULL,
			baseline_mean      DOUBLE PRECISION NOT NULL,
			baseline_stdev     DOUBLE PRECISION NOT NULL,
			detected_at        TIMESTAMPTZ NOT NULL,
			resolved_at        TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ix_anomalies_cursor ON anomalies (cursor)`,
		`CREATE INDEX IF NOT EXISTS ix_anomalies_site_ts ON anomalies (site, ts DESC)`,
	}
	for _, stmt := range statements {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}
