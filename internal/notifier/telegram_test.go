package notifier

import (
	"strings"
	"testing"
	"time"

	"energy-monitor/internal/models"
)

func TestAlertTextFormat(t *testing.T) {
	ev := models.AnomalyEvent{
		Site:         models.SiteTunja,
		Sector:       models.SectorClassrooms,
		Timestamp:    time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC),
		Type:         models.AnomalyOffHoursUsage,
		Severity:     models.SeverityCritical,
		ActualKWh:    55,
		ExpectedKWh:  5,
		DeviationPct: 1000,
		Description:  "Off-hours consumption detected",
		Recommended:  "Inspect the building for equipment left running",
	}

	text := alertText(ev)
	for _, want := range []string{
		"*critical anomaly: tunja / classrooms*",
		"Off-hours consumption detected",
		"2024-03-04 23:00 UTC",
		"*Actual:* 55.0 kWh",
		"*Expected:* 5.0 kWh",
		"*Deviation:* 1000.0%",
		"_Inspect the building for equipment left running_",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("alert text missing %q:\n%s", want, text)
		}
	}
}
