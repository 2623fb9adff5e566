package models

import (
	"github.com/aire-xalapa/aire/internal/airquality"
	"github.com/aire-xalapa/aire/internal/quadrant"
)

// DailyHistory is one page of the readings of a calendar day.
type DailyHistory struct {
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
	Data   []airquality.Reading `json:"data"`
}

// DatabaseCheck is the body of the database round-trip endpoint.
type DatabaseCheck struct {
	Message string              `json:"message"`
	Data    *airquality.Reading `json:"data"`
}

// StatsUpdate is the body returned after recomputing quadrant statistics.
type StatsUpdate struct {
	Message string                `json:"message"`
	Data    []quadrant.Statistics `json:"data"`
}

// IngestResult reports how many records an ingestion request stored.
type IngestResult struct {
	Stored int `json:"stored"`
}
