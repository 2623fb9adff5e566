// Package models provides the request and response bodies of the HTTP API
// that are not domain records themselves.
package models

import (
	"fmt"
	"time"
)

// HealthStatus is the state reported by /api/health, /api/ready and /api/status.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

var severity = map[HealthStatus]int{
	HealthStatusOK:       0,
	HealthStatusDegraded: 1,
	HealthStatusDown:     2,
}

// Worst returns the most severe of the given statuses, or ok when none
// are given. Unknown values count as down.
func Worst(statuses ...HealthStatus) HealthStatus {
	worst := HealthStatusOK
	for _, s := range statuses {
		rank, ok := severity[s]
		if !ok {
			s, rank = HealthStatusDown, severity[HealthStatusDown]
		}
		if rank > severity[worst] {
			worst = s
		}
	}
	return worst
}

// Timestamp is an instant written as RFC 3339 in UTC with second precision.
type Timestamp time.Time

// OptionalTimestamp converts an optional instant.
func OptionalTimestamp(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	ts := Timestamp(*t)
	return &ts
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, len(time.RFC3339)+2)
	b = append(b, '"')
	b = time.Time(t).UTC().Truncate(time.Second).AppendFormat(b, time.RFC3339)
	return append(b, '"'), nil
}

// UnmarshalJSON accepts RFC 3339 with or without fractional seconds.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("timestamp must be a string, got %s", s)
	}
	parsed, err := time.Parse(time.RFC3339Nano, s[1:len(s)-1])
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
