package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is one provider's entry in /api/status.
type ProviderHealth struct {
	Name string

	// Dataset is the data the provider feeds ("air_quality", "traffic", "weather").
	Dataset string

	// Fallback reports whether synthetic data covers the provider's outages.
	Fallback bool

	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string

	// OpenUntil is when an open breaker allows its next trial call.
	OpenUntil *time.Time
}

// IsHealthy reports whether the breaker is closed.
func (h *ProviderHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// FallbackActive reports whether responses for the provider's dataset are
// currently likely to be synthetic.
func (h *ProviderHealth) FallbackActive() bool {
	return h.Fallback && !h.IsHealthy()
}

// Status maps the breaker state to "ok" (closed), "degraded" (half-open)
// or "down" (open).
func (h *ProviderHealth) Status() string {
	switch h.CircuitState {
	case gobreaker.StateOpen:
		return "down"
	case gobreaker.StateHalfOpen:
		return "degraded"
	default:
		return "ok"
	}
}

// Registry collects the provider clients of one process so the API can
// report on them. Clients register themselves in NewClient.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*entry
}

type entry struct {
	client    *Client
	lastOK    *time.Time
	lastFail  *time.Time
	lastError string
}

// GlobalRegistry is used by clients created without an explicit registry.
var GlobalRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*entry)}
}

// Register adds client under name, replacing any client of the same name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &entry{client: client}
}

// Unregister removes a provider.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
}

// RecordSuccess stamps the provider's last successful call. Unknown names
// are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.providers[name]; ok {
		now := time.Now()
		e.lastOK = &now
	}
}

// RecordFailure stamps the provider's last failed call and keeps err's
// message until the next failure. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.providers[name]; ok {
		now := time.Now()
		e.lastFail = &now
		if err != nil {
			e.lastError = err.Error()
		}
	}
}

// Health returns one provider's health, or nil when name is unknown.
func (r *Registry) Health(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.providers[name]
	if !ok {
		return nil
	}
	return e.health(name)
}

// All returns every provider's health, ordered by name.
func (r *Registry) All() []*ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*ProviderHealth, 0, len(r.providers))
	for name, e := range r.providers {
		all = append(all, e.health(name))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Overall is "ok" while every breaker is closed and "degraded" otherwise.
func (r *Registry) Overall() string {
	for _, h := range r.All() {
		if !h.IsHealthy() {
			return "degraded"
		}
	}
	return "ok"
}

func (e *entry) health(name string) *ProviderHealth {
	h := &ProviderHealth{
		Name:          name,
		Dataset:       e.client.config.Dataset,
		Fallback:      e.client.config.Fallback,
		CircuitState:  e.client.CircuitBreakerState(),
		Counts:        e.client.CircuitBreakerCounts(),
		LastSuccessAt: e.lastOK,
		LastFailureAt: e.lastFail,
		LastError:     e.lastError,
	}
	if until, ok := e.client.OpenUntil(); ok {
		h.OpenUntil = &until
	}
	return h
}
