package anomaly

import (
	"fmt"

	"energy-monitor/internal/models"
)

func describe(ev *models.AnomalyEvent) string {
	switch ev.Type {
	case models.AnomalyOffHoursUsage:
		return fmt.Sprintf("Off-hours consumption of %.1f kWh in %s at %s (expected at most %.1f kWh outside operating hours)",
			ev.ActualKWh, ev.Sector, ev.Site, ev.ExpectedKWh)
	case models.AnomalyConsumptionDrop:
		return fmt.Sprintf("Consumption in %s at %s dropped to %.1f kWh, %.1f%% below the expected %.1f kWh",
			ev.Sector, ev.Site, ev.ActualKWh, -ev.DeviationPct, ev.ExpectedKWh)
	default:
		return fmt.Sprintf("Consumption spike in %s at %s: %.1f kWh against an expected %.1f kWh (%.1f%% deviation)",
			ev.Sector, ev.Site, ev.ActualKWh, ev.ExpectedKWh, ev.DeviationPct)
	}
}

// recommend picks an operator action from the waste playbook the facilities
// team works with. Sector-specific guidance beats the generic fallback.
func recommend(ev *models.AnomalyEvent) string {
	if ev.Type == models.AnomalyOffHoursUsage {
		switch ev.Sector {
		case models.SectorClassrooms, models.SectorAuditoriums:
			return "Check lighting and HVAC schedules; rooms should power down after 22:00."
		case models.SectorOffices:
			return "Verify workstations and printers are not left on standby overnight."
		case models.SectorDining:
			return "Inspect kitchen refrigeration and extractor schedules outside service hours."
		default:
			return "Review equipment schedules for activity outside declared operating hours."
		}
	}
	if ev.Type == models.AnomalyConsumptionDrop {
		return "Confirm meters are reporting correctly; a sustained drop may indicate a sensor or supply fault."
	}
	switch ev.Severity {
	case models.SeverityCritical, models.SeverityHigh:
		return "Dispatch maintenance to inspect HVAC and high-load equipment in the affected sector."
	default:
		return "Compare with occupancy and weather; schedule an efficiency review if the pattern repeats."
	}
}
