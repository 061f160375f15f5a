package model

import "fmt"

// Region identifies a UK Grid Supply Point zone. The string values are the
// canonical lowercase tags used on every external boundary.
type Region string

const (
	RegionScotland         Region = "scotland"
	RegionNorthScotland    Region = "north_scotland"
	RegionSouthScotland    Region = "south_scotland"
	RegionNorthEngland     Region = "north_england"
	RegionNorthEastEngland Region = "north_east_england"
	RegionNorthWestEngland Region = "north_west_england"
	RegionYorkshire        Region = "yorkshire"
	RegionWales            Region = "wales"
	RegionNorthWales       Region = "north_wales"
	RegionSouthWales       Region = "south_wales"
	RegionWestMidlands     Region = "west_midlands"
	RegionEastMidlands     Region = "east_midlands"
	RegionEastEngland      Region = "east_england"
	RegionLondon           Region = "london"
	RegionSouthEngland     Region = "south_england"
	RegionSouthEastEngland Region = "south_east_england"
	RegionSouthWestEngland Region = "south_west_england"
)

// Regions lists every known grid supply zone.
var Regions = []Region{
	RegionScotland, RegionNorthScotland, RegionSouthScotland,
	RegionNorthEngland, RegionNorthEastEngland, RegionNorthWestEngland,
	RegionYorkshire, RegionWales, RegionNorthWales, RegionSouthWales,
	RegionWestMidlands, RegionEastMidlands, RegionEastEngland,
	RegionLondon, RegionSouthEngland, RegionSouthEastEngland,
	RegionSouthWestEngland,
}

var regionSet = func() map[Region]struct{} {
	m := make(map[Region]struct{}, len(Regions))
	for _, r := range Regions {
		m[r] = struct{}{}
	}
	return m
}()

// ParseRegion converts a lowercase tag into a Region.
func ParseRegion(s string) (Region, error) {
	r := Region(s)
	if _, ok := regionSet[r]; !ok {
		return "", fmt.Errorf("unknown region: %s", s)
	}
	return r, nil
}

// Valid reports whether the region is a known zone.
func (r Region) Valid() bool {
	_, ok := regionSet[r]
	return ok
}

func (r Region) String() string { return string(r) }
