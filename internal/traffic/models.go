// Package traffic collects road congestion samples around the monitored area.
package traffic

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/aire-xalapa/aire/internal/region"
)

// Traffic errors.
var (
	ErrAllPointsFailed = errors.New("traffic provider failed for every monitored point")
)

// Level categorizes congestion.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// LevelFor maps a congestion percentage to its level.
// Below 20 is low, below 50 is medium, anything else is high.
func LevelFor(congestion float64) Level {
	switch {
	case congestion < 20:
		return LevelLow
	case congestion < 50:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Congestion returns how far the current speed is below free flow, as a
// percentage clamped to [0, 100]. A non-positive free-flow speed yields 0.
func Congestion(currentSpeed, freeFlowSpeed float64) float64 {
	if freeFlowSpeed <= 0 {
		return 0
	}
	pct := 100 * (1 - currentSpeed/freeFlowSpeed)
	return math.Max(0, math.Min(100, pct))
}

// MonitoredPoint is a named location sampled on every collection.
type MonitoredPoint struct {
	Name string
	region.Point
}

// MonitoredPoints are the fixed sampling locations.
var MonitoredPoints = []MonitoredPoint{
	{Name: "Center", Point: region.Point{Lat: 19.5438, Lon: -96.9102}},
	{Name: "North", Point: region.Point{Lat: 19.5619, Lon: -96.9352}},
	{Name: "South", Point: region.Point{Lat: 19.5219, Lon: -96.8851}},
	{Name: "East", Point: region.Point{Lat: 19.5387, Lon: -96.8851}},
	{Name: "West", Point: region.Point{Lat: 19.5387, Lon: -96.9352}},
}

// Flow is a provider's speed measurement for a road segment near a point.
type Flow struct {
	CurrentSpeed  float64
	FreeFlowSpeed float64
	Raw           json.RawMessage
}

// Sample is one stored congestion measurement.
type Sample struct {
	ID                   int64           `json:"id,omitempty"`
	Timestamp            time.Time       `json:"timestamp"`
	Latitude             float64         `json:"latitude"`
	Longitude            float64         `json:"longitude"`
	AreaName             string          `json:"area_name"`
	CurrentSpeed         float64         `json:"current_speed"`
	FreeFlowSpeed        float64         `json:"free_flow_speed"`
	CongestionPercentage float64         `json:"congestion_percentage"`
	Level                Level           `json:"congestion_level"`
	Raw                  json.RawMessage `json:"raw_data,omitempty"`
}

// NewSample builds a sample for a point, deriving congestion and level from the flow.
func NewSample(p MonitoredPoint, flow Flow, at time.Time) Sample {
	congestion := Congestion(flow.CurrentSpeed, flow.FreeFlowSpeed)
	return Sample{
		Timestamp:            at,
		Latitude:             p.Lat,
		Longitude:            p.Lon,
		AreaName:             p.Name,
		CurrentSpeed:         flow.CurrentSpeed,
		FreeFlowSpeed:        flow.FreeFlowSpeed,
		CongestionPercentage: congestion,
		Level:                LevelFor(congestion),
		Raw:                  flow.Raw,
	}
}

// MeanCongestion returns the average congestion of the samples, or false if there are none.
func MeanCongestion(samples []Sample) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range samples {
		sum += s.CongestionPercentage
	}
	return sum / float64(len(samples)), true
}

// Batch is the result of a collection attempt.
type Batch struct {
	// Samples is never empty and follows MonitoredPoints order.
	Samples []Sample

	// Live is false when Samples were substituted.
	Live bool

	// Reason is the failure that caused substitution, nil when Live.
	Reason error
}
