// Package openmeteo provides a client for the Open-Meteo air quality API.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aire-xalapa/aire/internal/airquality"
	"github.com/aire-xalapa/aire/internal/provider/resilience"
	"github.com/aire-xalapa/aire/internal/region"
)

const (
	// DefaultBaseURL is the air quality endpoint.
	DefaultBaseURL = "https://air-quality-api.open-meteo.com/v1/air-quality"

	// ProviderName identifies this provider.
	ProviderName = "openmeteo"

	// MaxReadings is the number of most recent hours kept from a response.
	MaxReadings = 24

	hourlyTimeLayout = "2006-01-02T15:04"
	dateLayout       = "2006-01-02"
)

// Provider errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected status from open-meteo")
	ErrMissingFields    = errors.New("open-meteo response is missing hourly fields")
	ErrNoUsableRecords  = errors.New("open-meteo response has no usable records")
)

// Hourly field names requested from the API.
const (
	fieldTime = "time"
	fieldPM10 = "pm10"
	fieldPM25 = "pm2_5"
	fieldNO2  = "nitrogen_dioxide"
	fieldCO   = "carbon_monoxide"
	fieldO3   = "ozone"
)

var hourlyFields = []string{fieldPM10, fieldPM25, fieldNO2, fieldCO, fieldO3}

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL is the API endpoint (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Location interprets hourly timestamps (defaults to region.Timezone).
	Location *time.Location
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an Open-Meteo air quality client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	location   *time.Location
}

// NewClient creates a new Open-Meteo air quality client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            "openmeteo-air-quality",
			Timeout:         timeout,
			Dataset:         "air_quality",
			Fallback:        true,
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		})
	}

	loc := cfg.Location
	if loc == nil {
		loc = region.Location()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		location:   loc,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchAirQuality retrieves hourly readings for a coordinate between from and to.
func (c *Client) FetchAirQuality(ctx context.Context, lat, lon float64, from, to time.Time) ([]airquality.Reading, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("hourly", strings.Join(hourlyFields, ","))
	params.Set("timezone", c.location.String())
	params.Set("start_date", from.In(c.location).Format(dateLayout))
	params.Set("end_date", to.In(c.location).Format(dateLayout))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch air quality: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read air quality response: %w", err)
	}

	return ProcessHourly(body, lat, lon, c.location)
}

type hourlyResponse struct {
	Hourly map[string][]json.RawMessage `json:"hourly"`
}

// ProcessHourly converts an hourly air quality payload into readings.
// Values may be JSON numbers or numeric strings. Indices with a missing,
// null, negative or non-numeric value are skipped.
// CO is converted from µg/m³ to mg/m³. The result is ordered newest first
// and holds at most MaxReadings entries.
func ProcessHourly(body []byte, lat, lon float64, loc *time.Location) ([]airquality.Reading, error) {
	var payload hourlyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode air quality response: %w", err)
	}

	for _, field := range append([]string{fieldTime}, hourlyFields...) {
		if _, ok := payload.Hourly[field]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingFields, field)
		}
	}

	times := payload.Hourly[fieldTime]
	readings := make([]airquality.Reading, 0, len(times))
	for i := range times {
		rd, ok := readingAt(payload.Hourly, i, loc)
		if !ok {
			continue
		}
		rd.Latitude = lat
		rd.Longitude = lon
		readings = append(readings, rd)
	}

	if len(readings) == 0 {
		return nil, ErrNoUsableRecords
	}

	airquality.SortNewestFirst(readings)
	if len(readings) > MaxReadings {
		readings = readings[:MaxReadings]
	}
	return readings, nil
}

func readingAt(hourly map[string][]json.RawMessage, i int, loc *time.Location) (airquality.Reading, bool) {
	var ts string
	if !decodeAt(hourly[fieldTime], i, &ts) {
		return airquality.Reading{}, false
	}
	timestamp, err := time.ParseInLocation(hourlyTimeLayout, ts, loc)
	if err != nil {
		return airquality.Reading{}, false
	}

	values := make(map[string]float64, len(hourlyFields))
	for _, field := range hourlyFields {
		var v *number
		if !decodeAt(hourly[field], i, &v) || v == nil || *v < 0 {
			return airquality.Reading{}, false
		}
		values[field] = float64(*v)
	}

	raw, err := json.Marshal(map[string]any{
		fieldTime: ts,
		fieldPM10: values[fieldPM10],
		fieldPM25: values[fieldPM25],
		fieldNO2:  values[fieldNO2],
		fieldCO:   values[fieldCO],
		fieldO3:   values[fieldO3],
	})
	if err != nil {
		return airquality.Reading{}, false
	}

	return airquality.Reading{
		Timestamp: timestamp,
		Pollutants: airquality.Pollutants{
			PM25: values[fieldPM25],
			PM10: values[fieldPM10],
			NO2:  values[fieldNO2],
			O3:   values[fieldO3],
			CO:   values[fieldCO] / 1000,
		},
		Source: airquality.SourceOpenMeteo,
		Raw:    raw,
	}, true
}

// number decodes a JSON number or a string holding a finite decimal.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		var s string
		if json.Unmarshal(b, &s) != nil {
			return err
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite value %q", s)
		}
	}
	*n = number(f)
	return nil
}

func decodeAt(values []json.RawMessage, i int, dst any) bool {
	if i >= len(values) {
		return false
	}
	return json.Unmarshal(values[i], dst) == nil
}

var _ airquality.Provider = (*Client)(nil)
