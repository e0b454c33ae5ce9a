package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity classifies an anomaly by absolute deviation. The order is
// significant: higher rank means more severe.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity from least to most severe.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank returns the ordinal of a severity, 1 = low through 4 = critical.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// ParseSeverity validates a raw severity string.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s), nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// AnomalyStatus tracks operator handling of an event. Transitions run one way
// (unresolved -> investigating -> resolved) until an operator reopens.
type AnomalyStatus string

const (
	StatusUnresolved    AnomalyStatus = "unresolved"
	StatusInvestigating AnomalyStatus = "investigating"
	StatusResolved      AnomalyStatus = "resolved"
)

// ParseAnomalyStatus validates a raw status string.
func ParseAnomalyStatus(s string) (AnomalyStatus, error) {
	switch AnomalyStatus(s) {
	case StatusUnresolved, StatusInvestigating, StatusResolved:
		return AnomalyStatus(s), nil
	}
	return "", fmt.Errorf("unknown anomaly status %q", s)
}

// CanTransitionTo enforces the one-way status flow. Reopening a resolved
// event back to unresolved is the single allowed backward move.
func (s AnomalyStatus) CanTransitionTo(next AnomalyStatus) bool {
	switch s {
	case StatusUnresolved:
		return next == StatusInvestigating || next == StatusResolved
	case StatusInvestigating:
		return next == StatusResolved
	case StatusResolved:
		return next == StatusUnresolved
	}
	return false
}

// AnomalyType names the rule that produced an event.
type AnomalyType string

const (
	AnomalyConsumptionSpike AnomalyType = "consumption_spike"
	AnomalyConsumptionDrop  AnomalyType = "consumption_drop"
	AnomalyOffHoursUsage    AnomalyType = "off_hours_usage"
)

// AnomalyEvent is one detected deviation of a reading from its baseline.
// Events are created by the scorer and never auto-deleted; only Status,
// and its timestamps, change afterwards.
type AnomalyEvent struct {
	ID            uuid.UUID     `json:"id"`
	Site          Site          `json:"site"`
	Sector        Sector        `json:"sector"`
	Timestamp     time.Time     `json:"timestamp"`
	Type          AnomalyType   `json:"type"`
	ActualKWh     float64       `json:"actual_kwh"`
	ExpectedKWh   float64       `json:"expected_kwh"`
	DeviationPct  float64       `json:"deviation_pct"`
	Severity      Severity      `json:"severity"`
	Status        AnomalyStatus `json:"status"`
	Description   string        `json:"description"`
	Recommended   string        `json:"recommended_action"`
	BaselineKey   BaselineKey   `json:"baseline_key"`
	BaselineMean  float64       `json:"baseline_mean"`
	BaselineStdev float64       `json:"baseline_stdev"`
	DetectedAt    time.Time     `json:"detected_at"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
	// Cursor is a monotonically increasing sequence assigned by the store,
	// used by the notification feed ("events since cursor X").
	Cursor int64 `json:"cursor,omitempty"`
}
