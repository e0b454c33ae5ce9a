package models

import (
	"testing"
	"time"
)

func TestParseSite(t *testing.T) {
	for _, s := range Sites {
		if _, err := ParseSite(string(s)); err != nil {
			t.Errorf("ParseSite(%q) = %v", s, err)
		}
	}
	if _, err := ParseSite("bogota"); err == nil {
		t.Error("ParseSite accepted an unknown campus")
	}
	if _, err := ParseSite(""); err == nil {
		t.Error("ParseSite accepted an empty site")
	}
}

func TestParseSector(t *testing.T) {
	for _, s := range Sectors {
		if _, err := ParseSector(string(s)); err != nil {
			t.Errorf("ParseSector(%q) = %v", s, err)
		}
	}
	if _, err := ParseSector("gym"); err == nil {
		t.Error("ParseSector accepted an unknown sector")
	}
}

func TestValidateNormalizesAndDerives(t *testing.T) {
	r := ConsumptionReading{
		Site:      SiteTunja,
		Sector:    SectorLabs,
		Timestamp: time.Date(2024, 3, 4, 10, 42, 7, 0, time.FixedZone("COT", -5*3600)),
		EnergyKWh: 100,
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	if !r.Timestamp.Equal(want) {
		t.Errorf("timestamp = %s, want UTC hour %s", r.Timestamp, want)
	}
	if r.CO2Kg != 100*CO2FactorKgPerKWh {
		t.Errorf("CO2Kg = %v, want derived %v", r.CO2Kg, 100*CO2FactorKgPerKWh)
	}
}

func TestValidateKeepsCollectorCO2(t *testing.T) {
	r := ConsumptionReading{Site: SiteTunja, Sector: SectorLabs, Timestamp: time.Now(), EnergyKWh: 100, CO2Kg: 20}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if r.CO2Kg != 20 {
		t.Errorf("CO2Kg = %v, collector value must win", r.CO2Kg)
	}
}

func TestValidateRejections(t *testing.T) {
	occ := 140.0
	ts := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	bad := []ConsumptionReading{
		{Site: "bogota", Sector: SectorLabs, Timestamp: ts, EnergyKWh: 1},
		{Site: SiteTunja, Sector: "gym", Timestamp: ts, EnergyKWh: 1},
		{Site: SiteTunja, Sector: SectorLabs, EnergyKWh: 1},
		{Site: SiteTunja, Sector: SectorLabs, Timestamp: ts, EnergyKWh: -1},
		{Site: SiteTunja, Sector: SectorLabs, Timestamp: ts, WaterLiters: -1},
		{Site: SiteTunja, Sector: SectorLabs, Timestamp: ts, OccupancyPct: &occ},
	}
	for i, r := range bad {
		if err := r.Validate(); err == nil {
			t.Errorf("case %d: Validate accepted an invalid reading", i)
		}
	}
}

func TestOffHours(t *testing.T) {
	at := func(hour int) time.Time {
		return time.Date(2024, 3, 4, hour, 0, 0, 0, time.UTC) // a Monday
	}
	cases := []struct {
		name string
		r    ConsumptionReading
		want bool
	}{
		{"classrooms midday", ConsumptionReading{Sector: SectorClassrooms, Timestamp: at(14)}, false},
		{"classrooms night", ConsumptionReading{Sector: SectorClassrooms, Timestamp: at(23)}, true},
		{"classrooms early morning", ConsumptionReading{Sector: SectorClassrooms, Timestamp: at(4)}, true},
		{"boundary 22 is night", ConsumptionReading{Sector: SectorClassrooms, Timestamp: at(22)}, true},
		{"boundary 6 is open", ConsumptionReading{Sector: SectorClassrooms, Timestamp: at(6)}, false},
		{"weekend midday", ConsumptionReading{Sector: SectorOffices, Timestamp: at(14), IsWeekend: true}, true},
		{"holiday midday", ConsumptionReading{Sector: SectorOffices, Timestamp: at(14), IsHoliday: true}, true},
		{"labs night exempt", ConsumptionReading{Sector: SectorLabs, Timestamp: at(23)}, false},
		{"labs holiday exempt", ConsumptionReading{Sector: SectorLabs, Timestamp: at(14), IsHoliday: true}, false},
	}
	for _, tc := range cases {
		if got := tc.r.OffHours(); got != tc.want {
			t.Errorf("%s: OffHours = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBucketWidthTruncate(t *testing.T) {
	ts := time.Date(2024, 3, 4, 17, 42, 0, 0, time.UTC)
	if got := BucketHour.Truncate(ts); got != time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC) {
		t.Errorf("hour truncate = %s", got)
	}
	if got := BucketDay.Truncate(ts); got != time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) {
		t.Errorf("day truncate = %s", got)
	}
	if _, err := ParseBucketWidth("1w"); err == nil {
		t.Error("ParseBucketWidth accepted an unknown width")
	}
}
