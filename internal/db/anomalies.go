package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"energy-monitor/internal/models"
)

// InsertAnomaly stores a freshly scored event and fills in its feed cursor.
func (d *DB) InsertAnomaly(ctx context.Context, ev *models.AnomalyEvent) error {
	query := `
    INSERT INTO anomalies (
        id, site, sector, ts, type, actual_kwh, expected_kwh, deviation_pct,
        severity, status, description, recommended_action, baseline_mean,
        baseline_stdev, detected_at
    ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    RETURNING cursor`

	err := d.Pool.QueryRow(ctx, query,
		ev.ID, ev.Site, ev.Sector, ev.Timestamp, ev.Type, ev.ActualKWh,
		ev.ExpectedKWh, ev.DeviationPct, ev.Severity, ev.Status, ev.Description,
		ev.Recommended, ev.BaselineMean, ev.BaselineStdev, ev.DetectedAt,
	).Scan(&ev.Cursor)
	if err != nil {
		return fmt.Errorf("failed to insert anomaly: %w", err)
	}
	return nil
}

const anomalyColumns = `
    id, cursor, site, sector, ts, type, actual_kwh, expected_kwh, deviation_pct,
    severity, status, description, recommended_action, baseline_mean,
    baseline_stdev, detected_at, resolved_at`

func scanAnomaly(row pgx.Row) (models.AnomalyEvent, error) {
	var ev models.AnomalyEvent
	err := row.Scan(
		&ev.ID, &ev.Cursor, &ev.Site, &ev.Sector, &ev.Timestamp, &ev.Type,
		&ev.ActualKWh, &ev.ExpectedKWh, &ev.DeviationPct, &ev.Severity,
		&ev.Status, &ev.Description, &ev.Recommended, &ev.BaselineMean,
		&ev.BaselineStdev, &ev.DetectedAt, &ev.ResolvedAt,
	)
	return ev, err
}

// AnomaliesBySite lists events for one campus in [from, to) with pagination
// and an optional severity filter, newest first.
func (d *DB) AnomaliesBySite(ctx context.Context, site models.Site, from, to time.Time, severity string, limit, offset int) ([]models.AnomalyEvent, int, error) {
	countQ := `SELECT COUNT(*) FROM anomalies WHERE site = $1 AND ts >= $2 AND ts < $3`
	countArgs := []interface{}{site, from, to}
	if severity != "" {
		countQ += " AND severity = $4"
		countArgs = append(countArgs, severity)
	}

	var total int
	if err := d.Pool.QueryRow(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count anomalies: %w", err)
	}

	query := `SELECT ` + anomalyColumns + ` FROM anomalies WHERE site = $1 AND ts >= $2 AND ts < $3`
	args := []interface{}{site, from, to}
	if severity != "" {
		query += " AND severity = $4 ORDER BY ts DESC LIMIT $5 OFFSET $6"
		args = append(args, severity, limit, offset)
	} else {
		query += " ORDER BY ts DESC LIMIT $4 OFFSET $5"
		args = append(args, limit, offset)
	}

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer rows.Close()

	var list []models.AnomalyEvent
	for rows.Next() {
		ev, err := scanAnomaly(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		list = append(list, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate anomalies: %w", err)
	}
	return list, total, nil
}

// AnomaliesSince returns events with cursor greater than the given one, in
// cursor order. This is the notification feed contract.
func (d *DB) AnomaliesSince(ctx context.Context, cursor int64, limit int) ([]models.AnomalyEvent, error) {
	query := `SELECT ` + anomalyColumns + ` FROM anomalies WHERE cursor > $1 ORDER BY cursor ASC LIMIT $2`

	rows, err := d.Pool.Query(ctx, query, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomaly feed: %w", err)
	}
	defer rows.Close()

	var list []models.AnomalyEvent
	for rows.Next() {
		ev, err := scanAnomaly(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		list = append(list, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate anomaly feed: %w", err)
	}
	return list, nil
}

// AnomalySummary aggregates event counts by severity and type for one campus.
func (d *DB) AnomalySummary(ctx context.Context, site models.Site) (bySeverity map[models.Severity]int, byType map[models.AnomalyType]int, err error) {
	bySeverity = make(map[models.Severity]int)
	byType = make(map[models.AnomalyType]int)

	rows, err := d.Pool.Query(ctx,
		`SELECT severity, type, COUNT(*) FROM anomalies WHERE site = $1 GROUP BY severity, type`, site)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query anomaly summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var severity models.Severity
		var typ models.AnomalyType
		var count int
		if err := rows.Scan(&severity, &typ, &count); err != nil {
			return nil, nil, fmt.Errorf("failed to scan anomaly summary: %w", err)
		}
		bySeverity[severity] += count
		byType[typ] += count
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate anomaly summary: %w", err)
	}
	return bySeverity, byType, nil
}

// WasteByCause sums anomaly-attributed excess consumption per (type, sector)
// cause for one campus in [from, to). Only positive excess counts as waste.
func (d *DB) WasteByCause(ctx context.Context, site models.Site, from, to time.Time) (map[string]float64, error) {
	rows, err := d.Pool.Query(ctx, `
    SELECT type, sector, SUM(GREATEST(actual_kwh - expected_kwh, 0))
    FROM anomalies
    WHERE site = $1 AND ts >= $2 AND ts < $3
    GROUP BY type, sector`, site, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query waste causes: %w", err)
	}
	defer rows.Close()

	waste := make(map[string]float64)
	for rows.Next() {
		var typ, sector string
		var kwh float64
		if err := rows.Scan(&typ, &sector, &kwh); err != nil {
			return nil, fmt.Errorf("failed to scan waste cause: %w", err)
		}
		if kwh > 0 {
			waste[typ+"/"+sector] = kwh
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate waste causes: %w", err)
	}
	return waste, nil
}

// UpdateAnomalyStatus moves an event through the operator workflow, enforcing
// the one-way transition rules.
func (d *DB) UpdateAnomalyStatus(ctx context.Context, id string, next models.AnomalyStatus) (models.AnomalyEvent, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return models.AnomalyEvent{}, fmt.Errorf("failed to begin status update: %w", err)
	}
	defer tx.Rollback(ctx)

	var current models.AnomalyStatus
	err = tx.QueryRow(ctx, `SELECT status FROM anomalies WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AnomalyEvent{}, fmt.Errorf("anomaly %s not found: %w", id, err)
	}
	if err != nil {
		return models.AnomalyEvent{}, fmt.Errorf("failed to load anomaly status: %w", err)
	}

	if !current.CanTransitionTo(next) {
		return models.AnomalyEvent{}, fmt.Errorf("invalid status transition %s -> %s", current, next)
	}

	var resolvedAt *time.Time
	if next == models.StatusResolved {
		now := time.Now().UTC()
		resolvedAt = &now
	}

	row := tx.QueryRow(ctx,
		`UPDATE anomalies SET status = $1, resolved_at = $2 WHERE id = $3 RETURNING `+anomalyColumns,
		next, resolvedAt, id)
	ev, err := scanAnomaly(row)
	if err != nil {
		return models.AnomalyEvent{}, fmt.Errorf("failed to update anomaly status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.AnomalyEvent{}, fmt.Errorf("failed to commit status update: %w", err)
	}
	return ev, nil
}
