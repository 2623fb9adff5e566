// Package openmeteo provides a client for the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aire-xalapa/aire/internal/provider/resilience"
	"github.com/aire-xalapa/aire/internal/weather"
)

const (
	// DefaultBaseURL is the forecast endpoint.
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

	// ProviderName identifies this provider.
	ProviderName = "openmeteo"

	currentFields = "temperature_2m,relative_humidity_2m,wind_speed_10m,cloud_cover"
	timeLayout    = "2006-01-02T15:04"
)

// Provider errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected status from open-meteo")
	ErrMissingCurrent   = errors.New("open-meteo response has no current block")
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL is the API endpoint (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an Open-Meteo forecast client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new Open-Meteo forecast client.
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
			Name:            "openmeteo-weather",
			Timeout:         timeout,
			Dataset:         "weather",
			Fallback:        false,
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

type forecastResponse struct {
	Current *struct {
		Time             string   `json:"time"`
		Temperature      *float64 `json:"temperature_2m"`
		RelativeHumidity *float64 `json:"relative_humidity_2m"`
		WindSpeed        *float64 `json:"wind_speed_10m"`
		CloudCover       *float64 `json:"cloud_cover"`
	} `json:"current"`
}

// GetCurrentWeather fetches current conditions for a location.
func (c *Client) GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.Snapshot, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("current", currentFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var result forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	cur := result.Current
	if cur == nil || cur.Temperature == nil || cur.RelativeHumidity == nil || cur.WindSpeed == nil || cur.CloudCover == nil {
		return nil, ErrMissingCurrent
	}

	// Open-Meteo reports GMT unless a timezone is requested.
	observedAt, err := time.Parse(timeLayout, cur.Time)
	if err != nil {
		observedAt = time.Now().UTC()
	}

	return &weather.Snapshot{
		Temperature: *cur.Temperature,
		Humidity:    *cur.RelativeHumidity,
		WindSpeed:   *cur.WindSpeed,
		CloudCover:  *cur.CloudCover,
		ObservedAt:  observedAt,
	}, nil
}

var _ weather.Provider = (*Client)(nil)
