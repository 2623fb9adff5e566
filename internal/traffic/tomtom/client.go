// Package tomtom provides a client for the TomTom Traffic Flow API.
package tomtom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aire-xalapa/aire/internal/provider/resilience"
	"github.com/aire-xalapa/aire/internal/region"
	"github.com/aire-xalapa/aire/internal/traffic"
)

const (
	// DefaultBaseURL is the flow segment endpoint at zoom level 10.
	DefaultBaseURL = "https://api.tomtom.com/traffic/services/4/flowSegmentData/absolute/10/json"

	// ProviderName identifies this provider.
	ProviderName = "tomtom"

	// DefaultRadius is the search radius around a point, in meters.
	DefaultRadius = 1000
)

// Provider errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected status from tomtom")
	ErrMissingFlowData  = errors.New("tomtom response has no flowSegmentData")
)

// ClientConfig holds configuration for the TomTom client.
type ClientConfig struct {
	// BaseURL is the API endpoint (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey is the TomTom API key.
	APIKey string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Radius around each point in meters (default: DefaultRadius).
	Radius int
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a TomTom traffic flow client.
type Client struct {
	baseURL    string
	apiKey     string
	radius     int
	httpClient HTTPDoer
}

// NewClient creates a new TomTom client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	radius := cfg.Radius
	if radius == 0 {
		radius = DefaultRadius
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			Dataset:         "traffic",
			Fallback:        true,
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		radius:     radius,
		httpClient: httpClient,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

type flowResponse struct {
	FlowSegmentData *struct {
		CurrentSpeed  *float64 `json:"currentSpeed"`
		FreeFlowSpeed *float64 `json:"freeFlowSpeed"`
	} `json:"flowSegmentData"`
}

// FetchFlow retrieves the flow of the segment nearest to a point.
// A missing current speed reads as 0 and a missing free-flow speed as 1.
func (c *Client) FetchFlow(ctx context.Context, p region.Point) (traffic.Flow, error) {
	params := url.Values{}
	params.Set("point", strconv.FormatFloat(p.Lat, 'f', -1, 64)+","+strconv.FormatFloat(p.Lon, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(c.radius))
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return traffic.Flow{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return traffic.Flow{}, fmt.Errorf("fetch flow: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return traffic.Flow{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return traffic.Flow{}, fmt.Errorf("read flow response: %w", err)
	}

	var result flowResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return traffic.Flow{}, fmt.Errorf("decode flow response: %w", err)
	}
	if result.FlowSegmentData == nil {
		return traffic.Flow{}, ErrMissingFlowData
	}

	flow := traffic.Flow{FreeFlowSpeed: 1, Raw: body}
	if v := result.FlowSegmentData.CurrentSpeed; v != nil {
		flow.CurrentSpeed = *v
	}
	if v := result.FlowSegmentData.FreeFlowSpeed; v != nil {
		flow.FreeFlowSpeed = *v
	}
	return flow, nil
}

var _ traffic.Provider = (*Client)(nil)
