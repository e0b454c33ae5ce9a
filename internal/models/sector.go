package models

import "fmt"

// Sector is a consumption category inside a campus.
type Sector string

const (
	SectorDining      Sector = "dining"
	SectorClassrooms  Sector = "classrooms"
	SectorLabs        Sector = "labs"
	SectorAuditoriums Sector = "auditoriums"
	SectorOffices     Sector = "offices"
)

// Sectors lists every valid sector in a stable order.
var Sectors = []Sector{SectorDining, SectorClassrooms, SectorLabs, SectorAuditoriums, SectorOffices}

// ParseSector validates a raw sector identifier coming from the ingestion boundary.
func ParseSector(s string) (Sector, error) {
	switch Sector(s) {
	case SectorDining, SectorClassrooms, SectorLabs, SectorAuditoriums, SectorOffices:
		return Sector(s), nil
	}
	return "", fmt.Errorf("unknown sector %q", s)
}

func (s Sector) String() string { return string(s) }

// RunsOvernight reports whether a sector legitimately consumes energy off-hours.
// Labs are exempt from the off-hours rule because experiments run around the clock.
func (s Sector) RunsOvernight() bool {
	return s == SectorLabs
}
