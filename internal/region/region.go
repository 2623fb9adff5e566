// Package region defines the monitored area around Xalapa, Veracruz.
package region

import (
	"sync"
	"time"
	_ "time/tzdata" // provider timestamps and calendar days are local to Timezone
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is a rectangular area. All edges are inclusive.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains reports whether the coordinate lies within the bounds, edges included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() Point {
	return Point{
		Lat: (b.North + b.South) / 2,
		Lon: (b.East + b.West) / 2,
	}
}

// Site is the monitoring site used for point queries against providers.
var Site = Point{Lat: 19.5438, Lon: -96.9102}

// Area is the monitored region.
var Area = Bounds{
	North: 19.6,
	South: 19.5,
	East:  -96.8,
	West:  -97.0,
}

// Timezone is the IANA zone the providers report local times in.
const Timezone = "America/Mexico_City"

// Location returns the Timezone location. Mexico has not observed daylight
// saving since 2022, so the fixed UTC-6 offset is an exact substitute.
func Location() *time.Location {
	return location()
}

var location = sync.OnceValue(func() *time.Location {
	loc, err := time.LoadLocation(Timezone)
	if err != nil {
		return time.FixedZone("CST", -6*60*60)
	}
	return loc
})
