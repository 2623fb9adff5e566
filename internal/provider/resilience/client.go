package resilience

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling the provider while its
// breaker is open or its half-open trial slots are taken.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Client defaults. Providers pass their own timeout from PROVIDER_TIMEOUT.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
)

// ClientConfig configures the HTTP client for one provider.
type ClientConfig struct {
	// Name identifies the provider in the registry, logs and /api/status.
	Name string

	// Dataset names the data this provider feeds, such as "air_quality".
	Dataset string

	// Fallback reports whether synthetic data replaces this provider's
	// data while it fails.
	Fallback bool

	// Timeout bounds each attempt. Default: DefaultTimeout
	Timeout time.Duration

	// MaxRetries counts retries after the first attempt. Default: DefaultMaxRetries
	MaxRetries uint64

	// InitialInterval and MaxInterval bound the exponential backoff between
	// attempts. Defaults: DefaultInitialInterval, DefaultMaxInterval
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker overrides DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry receives health updates. Default: GlobalRegistry
	Registry *Registry

	// Logger receives breaker transitions and retries.
	Logger zerolog.Logger
}

// DefaultClientConfig returns the defaults for a provider named name.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         DefaultTimeout,
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		CircuitBreaker:  &cbConfig,
	}
}

func (cfg *ClientConfig) applyDefaults() {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if cfg.Registry == nil {
		cfg.Registry = GlobalRegistry
	}
}

// Client calls one provider through a circuit breaker, retrying network
// errors and 5xx responses with exponential backoff. Every outcome is
// reported to the registry backing /api/status.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
	registry   *Registry
	openFor    time.Duration
	openedAt   atomic.Int64 // unix nanos of the last trip
}

// NewClient creates the client and registers it under cfg.Name.
func NewClient(cfg ClientConfig) *Client {
	cfg.applyDefaults()

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	if cbConfig.OpenFor <= 0 {
		cbConfig.OpenFor = DefaultOpenFor
	}

	client := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		registry:   cfg.Registry,
		openFor:    cbConfig.OpenFor,
	}

	// Runs under the breaker's lock, so it must not touch the registry.
	logTransition := logStateChange(cfg.Logger, cfg.Dataset)
	extra := cbConfig.OnStateChange
	cbConfig.OnStateChange = func(name string, from, to gobreaker.State) {
		if to == gobreaker.StateOpen {
			client.openedAt.Store(time.Now().UnixNano())
		}
		logTransition(name, from, to)
		if extra != nil {
			extra(name, from, to)
		}
	}
	client.breaker = NewCircuitBreaker[*http.Response](cbConfig) //nolint:bodyclose // type param, not response

	cfg.Registry.Register(cfg.Name, client)

	return client
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.config.Name
}

// Do sends req with the breaker and retry policy applied.
//
// 4xx responses are returned as is. When retries run out on 5xx responses
// the last response is returned with a nil error so the provider can report
// the upstream status; the failure is still recorded. ErrCircuitOpen is
// returned without a network call while the breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext is Do with an explicit context for all attempts.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	var (
		lastResp *http.Response
		attempt  int
	)
	keep := func(resp *http.Response) {
		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp = resp
	}

	call := func() error {
		attempt++
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case errors.Is(err, context.Canceled):
			return backoff.Permanent(err)
		}
		if resp != nil {
			keep(resp)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.config.Logger.Debug().
			Err(err).
			Str("provider", c.config.Name).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("provider call failed, retrying")
	}

	err := backoff.RetryNotify(call, c.retryPolicy(ctx), notify)
	if err != nil {
		c.registry.RecordFailure(c.config.Name, err)
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	c.registry.RecordSuccess(c.config.Name)
	return lastResp, nil
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // bounded by MaxRetries
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)
}

// ServerError is a 5xx provider response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current breaker state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// OpenUntil reports when an open breaker lets the next trial call through.
// ok is false unless the breaker is open.
func (c *Client) OpenUntil() (until time.Time, ok bool) {
	if c.breaker.State() != gobreaker.StateOpen {
		return time.Time{}, false
	}
	return time.Unix(0, c.openedAt.Load()).Add(c.openFor), true
}

// CircuitBreakerCounts returns the breaker's counts for the current state.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
