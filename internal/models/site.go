package models

import "fmt"

// Site identifies one of the four university campuses.
type Site string

const (
	SiteTunja        Site = "tunja"
	SiteDuitama      Site = "duitama"
	SiteSogamoso     Site = "sogamoso"
	SiteChiquinquira Site = "chiquinquira"
)

// Sites lists every valid campus in a stable order.
var Sites = []Site{SiteTunja, SiteDuitama, SiteSogamoso, SiteChiquinquira}

// ParseSite validates a raw site identifier coming from the ingestion boundary.
func ParseSite(s string) (Site, error) {
	switch Site(s) {
	case SiteTunja, SiteDuitama, SiteSogamoso, SiteChiquinquira:
		return Site(s), nil
	}
	return "", fmt.Errorf("unknown site %q", s)
}

func (s Site) String() string { return string(s) }

// SiteInfo carries static campus metadata served by the sites catalog endpoint.
type SiteInfo struct {
	ID        Site     `json:"id"`
	Name      string   `json:"name"`
	Students  int      `json:"students"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	AreaM2    int      `json:"area_m2"`
	Buildings int      `json:"buildings"`
	Sectors   []Sector `json:"sectors"`
}

// SiteCatalog is the static campus registry.
var SiteCatalog = []SiteInfo{
	{ID: SiteTunja, Name: "Tunja (Principal)", Students: 18000, Lat: 5.5353, Lng: -73.3678, AreaM2: 125000, Buildings: 28,
		Sectors: []Sector{SectorLabs, SectorDining, SectorClassrooms, SectorOffices, SectorAuditoriums}},
	{ID: SiteDuitama, Name: "Duitama", Students: 5500, Lat: 5.8267, Lng: -73.0333, AreaM2: 45000, Buildings: 12,
		Sectors: []Sector{SectorLabs, SectorClassrooms, SectorOffices}},
	{ID: SiteSogamoso, Name: "Sogamoso", Students: 6000, Lat: 5.7147, Lng: -72.9314, AreaM2: 38000, Buildings: 10,
		Sectors: []Sector{SectorLabs, SectorClassrooms, SectorOffices}},
	{ID: SiteChiquinquira, Name: "Chiquinquira", Students: 2000, Lat: 5.6167, Lng: -73.8167, AreaM2: 15000, Buildings: 5,
		Sectors: []Sector{SectorClassrooms, SectorOffices}},
}

// LookupSite returns catalog metadata for a campus.
func LookupSite(id Site) (SiteInfo, bool) {
	for _, s := range SiteCatalog {
		if s.ID == id {
			return s, true
		}
	}
	return SiteInfo{}, false
}
