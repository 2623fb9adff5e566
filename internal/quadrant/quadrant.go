// Package quadrant splits the monitored area into four zones and derives
// per-zone pollution statistics and traffic-adjusted estimates.
package quadrant

import (
	"errors"

	"github.com/aire-xalapa/aire/internal/region"
)

// Quadrant errors.
var (
	ErrUnknownQuadrant    = errors.New("unknown quadrant")
	ErrStatisticsNotFound = errors.New("quadrant statistics not found")
)

// Quadrant names.
const (
	Noroeste = "Noroeste"
	Noreste  = "Noreste"
	Suroeste = "Suroeste"
	Sureste  = "Sureste"
)

// Quadrant is a named rectangular zone.
type Quadrant struct {
	Name   string        `json:"name"`
	Bounds region.Bounds `json:"bounds"`
}

// Quadrants are the four zones of region.Area split at region.Site.
// The site lies on the shared corner and belongs to all four.
var Quadrants = []Quadrant{
	{Name: Noroeste, Bounds: region.Bounds{North: region.Area.North, South: region.Site.Lat, West: region.Area.West, East: region.Site.Lon}},
	{Name: Noreste, Bounds: region.Bounds{North: region.Area.North, South: region.Site.Lat, West: region.Site.Lon, East: region.Area.East}},
	{Name: Suroeste, Bounds: region.Bounds{North: region.Site.Lat, South: region.Area.South, West: region.Area.West, East: region.Site.Lon}},
	{Name: Sureste, Bounds: region.Bounds{North: region.Site.Lat, South: region.Area.South, West: region.Site.Lon, East: region.Area.East}},
}

// Lookup returns the quadrant with the given name.
func Lookup(name string) (Quadrant, error) {
	for _, q := range Quadrants {
		if q.Name == name {
			return q, nil
		}
	}
	return Quadrant{}, ErrUnknownQuadrant
}
