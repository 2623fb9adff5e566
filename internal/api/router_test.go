package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aire-xalapa/aire/internal/airquality"
	"github.com/aire-xalapa/aire/internal/api"
	"github.com/aire-xalapa/aire/internal/api/middleware"
	"github.com/aire-xalapa/aire/internal/api/models"
	"github.com/aire-xalapa/aire/internal/auth"
	"github.com/aire-xalapa/aire/internal/prediction"
	"github.com/aire-xalapa/aire/internal/provider/resilience"
	"github.com/aire-xalapa/aire/internal/quadrant"
	"github.com/aire-xalapa/aire/internal/region"
	"github.com/aire-xalapa/aire/internal/traffic"
	"github.com/aire-xalapa/aire/internal/weather"
)

const testSigningKey = "test-secret-key-for-testing-only"

// fakeAirQuality returns a copy of readings, or err.
type fakeAirQuality struct {
	mu       sync.Mutex
	readings []airquality.Reading
	err      error
	calls    int
}

func (f *fakeAirQuality) FetchAirQuality(_ context.Context, _, _ float64, _, _ time.Time) ([]airquality.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]airquality.Reading(nil), f.readings...), nil
}

func (f *fakeAirQuality) Name() string { return "fake-air-quality" }

func (f *fakeAirQuality) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTraffic struct {
	err error
}

func (f *fakeTraffic) FetchFlow(_ context.Context, _ region.Point) (traffic.Flow, error) {
	if f.err != nil {
		return traffic.Flow{}, f.err
	}
	return traffic.Flow{CurrentSpeed: 30, FreeFlowSpeed: 60}, nil
}

func (f *fakeTraffic) Name() string { return "fake-traffic" }

type fakeWeather struct {
	err error
}

func (f *fakeWeather) GetCurrentWeather(_ context.Context, _, _ float64) (*weather.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &weather.Snapshot{
		Temperature: 21.5,
		Humidity:    80,
		WindSpeed:   12,
		CloudCover:  40,
		ObservedAt:  time.Now().UTC().Truncate(time.Second),
	}, nil
}

func (f *fakeWeather) Name() string { return "fake-weather" }

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

type testEnv struct {
	router      http.Handler
	readings    *airquality.InMemoryRepository
	samples     *traffic.InMemoryRepository
	stats       *quadrant.InMemoryRepository
	predictions *prediction.InMemoryRepository
	registry    *resilience.Registry
	tokens      *auth.JWTService
}

type envOptions struct {
	airQuality *fakeAirQuality
	traffic    *fakeTraffic
	weather    *fakeWeather
	db         *fakePinger
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	if opts.airQuality == nil {
		opts.airQuality = &fakeAirQuality{readings: siteReadings(time.Now().Add(-3*time.Hour), 3)}
	}
	if opts.traffic == nil {
		opts.traffic = &fakeTraffic{}
	}
	if opts.weather == nil {
		opts.weather = &fakeWeather{}
	}
	if opts.db == nil {
		opts.db = &fakePinger{}
	}

	logger := zerolog.New(io.Discard)
	env := &testEnv{
		readings:    airquality.NewInMemoryRepository(),
		samples:     traffic.NewInMemoryRepository(),
		stats:       quadrant.NewInMemoryRepository(),
		predictions: prediction.NewInMemoryRepository(),
		registry:    resilience.NewRegistry(),
		tokens:      auth.NewJWTService(auth.JWTConfig{SigningKey: testSigningKey}),
	}

	env.router = api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2024-01-01T00:00:00Z",
		Logger:    logger,
		DB:        opts.db,
		Registry:  env.registry,
		Tokens:    env.tokens,
		AirQualityService: airquality.NewService(airquality.ServiceConfig{
			Provider: opts.airQuality,
			Logger:   logger,
		}),
		Readings: env.readings,
		TrafficService: traffic.NewService(traffic.ServiceConfig{
			Provider: opts.traffic,
			Logger:   logger,
		}),
		TrafficSamples: env.samples,
		QuadrantService: quadrant.NewService(quadrant.ServiceConfig{
			Readings: env.readings,
			Traffic:  env.samples,
			Stats:    env.stats,
			Logger:   logger,
		}),
		Predictions: env.predictions,
		WeatherService: weather.NewService(weather.ServiceConfig{
			Provider: opts.weather,
			Logger:   logger,
		}),
	})
	return env
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postPredictions(t *testing.T, body []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/predictions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// siteReadings returns n hourly readings at the monitoring site starting at from.
func siteReadings(from time.Time, n int) []airquality.Reading {
	readings := make([]airquality.Reading, n)
	for i := range readings {
		readings[i] = airquality.Reading{
			Timestamp: from.Add(time.Duration(i) * time.Hour).UTC().Truncate(time.Second),
			Latitude:  region.Site.Lat,
			Longitude: region.Site.Lon,
			Pollutants: airquality.Pollutants{
				PM25: 10 + float64(i),
				PM10: 20 + float64(i),
				NO2:  15,
				O3:   30,
				CO:   0.4,
			},
		}
	}
	return readings
}

func storeReadings(t *testing.T, repo *airquality.InMemoryRepository, readings []airquality.Reading, source string) {
	t.Helper()
	for i := range readings {
		readings[i].Source = source
	}
	require.NoError(t, repo.StoreBatch(context.Background(), readings))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int) models.ErrorResponse {
	t.Helper()
	assert.Equal(t, status, w.Code)
	body := decode[models.ErrorResponse](t, w)
	assert.NotEmpty(t, body.Error)
	return body
}

func TestRouter_HealthCheck(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	health := decode[models.Health](t, w)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.False(t, health.Timestamp.Time().IsZero())
}

func TestRouter_ReadinessCheck(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	w := env.get(t, "/api/ready")
	assert.Equal(t, http.StatusOK, w.Code)

	down := newTestEnv(t, envOptions{db: &fakePinger{err: errors.New("connection refused")}})
	w = down.get(t, "/api/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready := decode[models.Readiness](t, w)
	assert.Equal(t, models.HealthStatusDown, ready.Status)
	assert.Equal(t, "connection refused", ready.Details["database"])
}

func TestRouter_SystemStatus(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	resilience.NewClient(resilience.ClientConfig{Name: "openmeteo-air-quality", Registry: env.registry})
	env.registry.RecordFailure("openmeteo-air-quality", errors.New("upstream timeout"))

	w := env.get(t, "/api/status")
	assert.Equal(t, http.StatusOK, w.Code)

	status := decode[models.SystemStatus](t, w)
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.Equal(t, "test", status.Version)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "postgres", status.Subsystems[0].Name)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "openmeteo-air-quality", status.Providers[0].Provider)
	require.NotNil(t, status.Providers[0].Message)
	assert.Equal(t, "upstream timeout", *status.Providers[0].Message)
	assert.NotNil(t, status.Providers[0].LastFailureAt)
	assert.False(t, status.Providers[0].FallbackActive)
}

func TestRouter_SystemStatus_ProviderTripped(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	cb := resilience.DefaultCircuitBreakerConfig("tomtom")
	cb.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 }
	client := resilience.NewClient(resilience.ClientConfig{
		Name:            "tomtom",
		Dataset:         "traffic",
		Fallback:        true,
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		CircuitBreaker:  &cb,
		Registry:        env.registry,
	})
	resilience.NewClient(resilience.ClientConfig{Name: "openmeteo-weather", Dataset: "weather", Registry: env.registry})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, upstream.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())

	w := env.get(t, "/api/status")
	assert.Equal(t, http.StatusOK, w.Code)

	status := decode[models.SystemStatus](t, w)
	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	require.Len(t, status.Providers, 2)

	weather, tomtom := status.Providers[0], status.Providers[1]
	assert.Equal(t, "weather", weather.Dataset)
	assert.Equal(t, models.HealthStatusOK, weather.Status)
	assert.False(t, weather.FallbackActive)
	assert.Nil(t, weather.OpenUntil)

	assert.Equal(t, "tomtom", tomtom.Provider)
	assert.Equal(t, "traffic", tomtom.Dataset)
	assert.Equal(t, models.HealthStatusDown, tomtom.Status)
	assert.True(t, tomtom.FallbackActive)
	assert.NotNil(t, tomtom.OpenUntil)
}

func TestRouter_SystemStatus_DatabaseDown(t *testing.T) {
	env := newTestEnv(t, envOptions{db: &fakePinger{err: errors.New("connection refused")}})

	w := env.get(t, "/api/status")
	assert.Equal(t, http.StatusOK, w.Code)

	status := decode[models.SystemStatus](t, w)
	assert.Equal(t, models.HealthStatusDown, status.Status)
	assert.Empty(t, status.Providers)
}

func TestRouter_TestDatabase(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/test-db")
	assert.Equal(t, http.StatusOK, w.Code)

	check := decode[models.DatabaseCheck](t, w)
	assert.Equal(t, "Database test successful", check.Message)
	require.NotNil(t, check.Data)
	assert.Equal(t, airquality.SourceTest, check.Data.Source)
	assert.InDelta(t, 25.0, check.Data.PM25, 0.001)
	assert.InDelta(t, 1.0, check.Data.CO, 0.001)
	assert.Equal(t, 1, env.readings.Count())
}

func TestRouter_TestDatabase_StoreFails(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.readings.FailStores(errors.New("disk full"))

	w := env.get(t, "/api/test-db")
	body := assertError(t, w, http.StatusInternalServerError)
	assert.Contains(t, body.Error, "Database test failed")
	assert.Contains(t, body.Error, "disk full")
}

func TestRouter_GetAirQuality_Live(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/air-quality")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "live", w.Header().Get(middleware.DataSourceHeader))

	readings := decode[[]airquality.Reading](t, w)
	require.Len(t, readings, 3)
	for _, r := range readings {
		assert.Equal(t, airquality.SourceOpenMeteo, r.Source)
	}
	assert.True(t, readings[0].Timestamp.After(readings[2].Timestamp), "newest first")
	assert.Equal(t, 3, env.readings.Count())
}

func TestRouter_GetAirQuality_LivePersistFailureStillServes(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.readings.FailStores(errors.New("disk full"))

	w := env.get(t, "/api/air-quality")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "live", w.Header().Get(middleware.DataSourceHeader))
	assert.Len(t, decode[[]airquality.Reading](t, w), 3)
	assert.Equal(t, 0, env.readings.Count())
}

func TestRouter_GetAirQuality_StoredWhenProviderFails(t *testing.T) {
	env := newTestEnv(t, envOptions{airQuality: &fakeAirQuality{err: errors.New("503 from upstream")}})
	storeReadings(t, env.readings, siteReadings(time.Now().Add(-48*time.Hour), 4), airquality.SourceOpenMeteo)

	w := env.get(t, "/api/air-quality?limit=2")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stored", w.Header().Get(middleware.DataSourceHeader))

	readings := decode[[]airquality.Reading](t, w)
	require.Len(t, readings, 2)
	assert.InDelta(t, 13.0, readings[0].PM25, 0.001)
}

func TestRouter_GetAirQuality_StoredBySource(t *testing.T) {
	env := newTestEnv(t, envOptions{airQuality: &fakeAirQuality{err: errors.New("503 from upstream")}})
	storeReadings(t, env.readings, siteReadings(time.Now().Add(-48*time.Hour), 2), airquality.SourceOpenMeteo)
	storeReadings(t, env.readings, siteReadings(time.Now().Add(-72*time.Hour), 1), airquality.SourceFallback)

	w := env.get(t, "/api/air-quality?source=fallback")
	assert.Equal(t, "stored", w.Header().Get(middleware.DataSourceHeader))

	readings := decode[[]airquality.Reading](t, w)
	require.Len(t, readings, 1)
	assert.Equal(t, airquality.SourceFallback, readings[0].Source)
}

func TestRouter_GetAirQuality_FallbackWhenNothingStored(t *testing.T) {
	env := newTestEnv(t, envOptions{airQuality: &fakeAirQuality{err: errors.New("503 from upstream")}})

	w := env.get(t, "/api/air-quality")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fallback", w.Header().Get(middleware.DataSourceHeader))

	readings := decode[[]airquality.Reading](t, w)
	require.Len(t, readings, airquality.DefaultFallbackCount)
	for _, r := range readings {
		assert.Equal(t, airquality.SourceFallback, r.Source)
		assert.GreaterOrEqual(t, r.PM25, 10.0)
		assert.LessOrEqual(t, r.PM25, 50.0)
	}
	assert.Equal(t, 0, env.readings.Count(), "synthetic readings are not persisted")
}

func TestRouter_GetAirQuality_Range(t *testing.T) {
	aq := &fakeAirQuality{readings: siteReadings(time.Now(), 1)}
	env := newTestEnv(t, envOptions{airQuality: aq})
	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	storeReadings(t, env.readings, siteReadings(from, 5), airquality.SourceOpenMeteo)

	q := url.Values{}
	q.Set("start_time", "2024-03-10T00:00:00Z")
	q.Set("end_time", "2024-03-10T03:00:00Z")
	q.Set("limit", "2")
	q.Set("offset", "1")

	w := env.get(t, "/api/air-quality?"+q.Encode())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(middleware.DataSourceHeader))

	readings := decode[[]airquality.Reading](t, w)
	require.Len(t, readings, 2)
	assert.Equal(t, from.Add(2*time.Hour), readings[0].Timestamp.UTC())
	assert.Equal(t, from.Add(time.Hour), readings[1].Timestamp.UTC())
	assert.Equal(t, 0, aq.callCount(), "stored range is served without a provider call")
}

func TestRouter_GetAirQuality_EmptyRangeFetchesLive(t *testing.T) {
	aq := &fakeAirQuality{readings: siteReadings(time.Now().Add(-time.Hour), 1)}
	env := newTestEnv(t, envOptions{airQuality: aq})

	q := url.Values{}
	q.Set("start_time", "2020-01-01T00:00:00Z")
	q.Set("end_time", "2020-01-02T00:00:00Z")

	w := env.get(t, "/api/air-quality?"+q.Encode())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "live", w.Header().Get(middleware.DataSourceHeader))
	assert.Equal(t, 1, aq.callCount())
	assert.Equal(t, 1, env.readings.Count())
}

func TestRouter_GetAirQuality_InvalidParams(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name  string
		query string
	}{
		{"limit not a number", "limit=ten"},
		{"limit too large", "limit=5000"},
		{"limit zero", "limit=0"},
		{"negative offset", "offset=-1"},
		{"bad timestamp", "start_time=yesterday&end_time=today"},
		{"end before start", "start_time=2024-03-10T10:00:00Z&end_time=2024-03-10T09:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.get(t, "/api/air-quality?"+tt.query)
			assertError(t, w, http.StatusInternalServerError)
		})
	}
}

func TestRouter_GetLatest(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/air-quality/latest")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	storeReadings(t, env.readings, siteReadings(time.Now().Add(-20*time.Hour), 12), airquality.SourceOpenMeteo)

	w = env.get(t, "/api/air-quality/latest")
	readings := decode[[]airquality.Reading](t, w)
	require.Len(t, readings, 10)
	assert.InDelta(t, 21.0, readings[0].PM25, 0.001)
}

func TestRouter_GetHistory(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	storeReadings(t, env.readings, siteReadings(from, 6), airquality.SourceOpenMeteo)

	q := url.Values{}
	q.Set("start_time", "2024-03-10T01:00:00Z")
	q.Set("end_time", "2024-03-10T04:00:00Z")

	w := env.get(t, "/api/air-quality/history?"+q.Encode())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]airquality.Reading](t, w), 4)
}

func TestRouter_GetHistory_RequiresBounds(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/air-quality/history?start_time=2024-03-10T00:00:00Z")
	body := assertError(t, w, http.StatusInternalServerError)
	assert.Contains(t, body.Error, "end_time")
}

func TestRouter_GetDailyHistory(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, region.Location())
	storeReadings(t, env.readings, siteReadings(day.Add(-time.Hour), 7), airquality.SourceOpenMeteo)

	w := env.get(t, "/api/air-quality/history/daily?date=2024-03-10&limit=2&offset=1")
	assert.Equal(t, http.StatusOK, w.Code)

	page := decode[models.DailyHistory](t, w)
	assert.Equal(t, 6, page.Total, "the reading before local midnight belongs to the previous day")
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 1, page.Offset)
	assert.Len(t, page.Data, 2)
}

func TestRouter_GetDailyHistory_InvalidDate(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for _, path := range []string{
		"/api/air-quality/history/daily",
		"/api/air-quality/history/daily?date=10-03-2024",
	} {
		w := env.get(t, path)
		body := assertError(t, w, http.StatusInternalServerError)
		assert.Contains(t, body.Error, "date")
	}
}

func TestRouter_GetTraffic(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/traffic")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	env.get(t, "/api/traffic/live")
	env.get(t, "/api/traffic/live")
	env.get(t, "/api/traffic/live")

	w = env.get(t, "/api/traffic")
	assert.Len(t, decode[[]traffic.Sample](t, w), 10)
}

func TestRouter_GetLiveTraffic(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/traffic/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "live", w.Header().Get(middleware.DataSourceHeader))

	samples := decode[[]traffic.Sample](t, w)
	require.Len(t, samples, len(traffic.MonitoredPoints))
	for i, s := range samples {
		assert.Equal(t, traffic.MonitoredPoints[i].Name, s.AreaName)
		assert.InDelta(t, 50.0, s.CongestionPercentage, 0.001)
	}
	assert.Equal(t, len(traffic.MonitoredPoints), env.samples.Count())
}

func TestRouter_GetLiveTraffic_Fallback(t *testing.T) {
	env := newTestEnv(t, envOptions{traffic: &fakeTraffic{err: errors.New("403 forbidden")}})

	w := env.get(t, "/api/traffic/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fallback", w.Header().Get(middleware.DataSourceHeader))
	assert.Len(t, decode[[]traffic.Sample](t, w), len(traffic.MonitoredPoints))
	assert.Equal(t, len(traffic.MonitoredPoints), env.samples.Count())
}

func TestRouter_QuadrantStats(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/quadrants/Noreste/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", string(bytes.TrimSpace(w.Body.Bytes())), "no statistics yet")

	w = env.get(t, "/api/quadrants/Centro/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", string(bytes.TrimSpace(w.Body.Bytes())), "unknown quadrant")

	storeReadings(t, env.readings, siteReadings(time.Now().Add(-2*time.Hour), 2), airquality.SourceOpenMeteo)
	env.get(t, "/api/traffic/live")

	w = env.get(t, "/api/quadrants/update-stats")
	assert.Equal(t, http.StatusOK, w.Code)
	update := decode[models.StatsUpdate](t, w)
	assert.Equal(t, "quadrant statistics updated", update.Message)
	assert.Len(t, update.Data, len(quadrant.Quadrants))
	assert.Equal(t, len(quadrant.Quadrants), env.stats.Count())

	w = env.get(t, "/api/quadrants/Noreste/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	stats := decode[quadrant.Statistics](t, w)
	assert.Equal(t, "Noreste", stats.QuadrantName)
	assert.InDelta(t, 10.5, stats.AvgPM25, 0.001)
}

func TestRouter_UpdateStats_NoReadings(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/quadrants/update-stats")
	assert.Equal(t, http.StatusOK, w.Code)

	update := decode[models.StatsUpdate](t, w)
	assert.Empty(t, update.Data)
	assert.Equal(t, 0, env.stats.Count())
}

func TestRouter_QuadrantEstimates(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/quadrants/estimates")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	storeReadings(t, env.readings, siteReadings(time.Now().Add(-time.Hour), 1), airquality.SourceOpenMeteo)

	w = env.get(t, "/api/quadrants/estimates")
	estimates := decode[[]quadrant.Estimate](t, w)
	require.Len(t, estimates, len(quadrant.Quadrants))
	for _, e := range estimates {
		assert.InDelta(t, 10.0, e.Baseline.PM25, 0.001)
	}
}

func predictionBody(t *testing.T, items ...map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(items)
	require.NoError(t, err)
	return body
}

func validPrediction(quadrantName string, at time.Time) map[string]any {
	return map[string]any{
		"timestamp":        at.UTC().Format(time.RFC3339),
		"quadrant_name":    quadrantName,
		"predicted_pm25":   18.2,
		"predicted_pm10":   30.1,
		"predicted_no2":    12.0,
		"predicted_o3":     41.5,
		"predicted_co":     0.6,
		"confidence_level": 0.8,
		"model_metadata":   map[string]any{"model": "lstm-v2"},
	}
}

func TestRouter_CreatePredictions(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	token, _, err := env.tokens.IssueServiceToken("forecaster", auth.ScopePredictionsWrite)
	require.NoError(t, err)

	now := time.Now()
	body := predictionBody(t,
		validPrediction("Noreste", now.Add(time.Hour)),
		validPrediction("Sureste", now.Add(time.Hour)),
		validPrediction("Noreste", now.Add(2*time.Hour)),
	)

	w := env.postPredictions(t, body, token)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 3, decode[models.IngestResult](t, w).Stored)

	w = env.get(t, "/api/predictions?quadrant_name=Noreste")
	assert.Equal(t, http.StatusOK, w.Code)
	predictions := decode[[]prediction.Prediction](t, w)
	require.Len(t, predictions, 2)
	assert.True(t, predictions[0].Timestamp.After(predictions[1].Timestamp))
	assert.Equal(t, "forecaster", predictions[0].ModelMetadata["ingested_by"])
	assert.Equal(t, "lstm-v2", predictions[0].ModelMetadata["model"])

	w = env.get(t, "/api/predictions?limit=1")
	assert.Len(t, decode[[]prediction.Prediction](t, w), 1)
}

func TestRouter_CreatePredictions_Unauthorized(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	body := predictionBody(t, validPrediction("Noreste", time.Now()))

	w := env.postPredictions(t, body, "")
	assertError(t, w, http.StatusUnauthorized)

	w = env.postPredictions(t, body, "not-a-token")
	assertError(t, w, http.StatusUnauthorized)

	noScope, _, err := env.tokens.IssueServiceToken("dashboard")
	require.NoError(t, err)
	w = env.postPredictions(t, body, noScope)
	assertError(t, w, http.StatusForbidden)

	w = env.get(t, "/api/predictions")
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestRouter_CreatePredictions_Invalid(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	token, _, err := env.tokens.IssueServiceToken("forecaster", auth.ScopePredictionsWrite)
	require.NoError(t, err)

	badQuadrant := validPrediction("Centro", time.Now())
	badConfidence := validPrediction("Noreste", time.Now())
	badConfidence["confidence_level"] = 1.5
	unknownField := validPrediction("Noreste", time.Now())
	unknownField["humidity"] = 40

	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("{")},
		{"object instead of array", []byte(`{"quadrant_name":"Noreste"}`)},
		{"empty array", []byte("[]")},
		{"unknown quadrant", predictionBody(t, validPrediction("Noreste", time.Now()), badQuadrant)},
		{"confidence out of range", predictionBody(t, badConfidence)},
		{"unknown field", predictionBody(t, unknownField)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.postPredictions(t, tt.body, token)
			assertError(t, w, http.StatusInternalServerError)
		})
	}

	w := env.get(t, "/api/predictions")
	assert.JSONEq(t, "[]", w.Body.String(), "a rejected batch stores nothing")
}

func TestRouter_CreatePredictions_RequiresJSON(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	token, _, err := env.tokens.IssueServiceToken("forecaster", auth.ScopePredictionsWrite)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/predictions", bytes.NewReader([]byte("a,b")))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assertError(t, w, http.StatusUnsupportedMediaType)
}

func TestRouter_ListPredictions_InvalidLimit(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/predictions?limit=500")
	assertError(t, w, http.StatusInternalServerError)
}

func TestRouter_GetWeather(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/weather")
	assert.Equal(t, http.StatusOK, w.Code)

	snapshot := decode[weather.Snapshot](t, w)
	assert.InDelta(t, 21.5, snapshot.Temperature, 0.001)
	assert.InDelta(t, 12.0, snapshot.WindSpeed, 0.001)
}

func TestRouter_GetWeather_ProviderDown(t *testing.T) {
	env := newTestEnv(t, envOptions{weather: &fakeWeather{err: errors.New("502 bad gateway")}})

	w := env.get(t, "/api/weather")
	body := assertError(t, w, http.StatusInternalServerError)
	assert.Equal(t, "weather data unavailable", body.Error)
}

func TestRouter_LiveRateLimit(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for i := 0; i < 20; i++ {
		w := env.get(t, "/api/weather")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := env.get(t, "/api/weather")
	assertError(t, w, http.StatusTooManyRequests)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Other groups keep their own budget.
	w = env.get(t, "/api/air-quality/latest")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	req := httptest.NewRequest(http.MethodOptions, "/api/air-quality", http.NoBody)
	req.Header.Set("Origin", "https://dashboard.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RequestID_Generated(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.get(t, "/api/health")

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.Contains(t, requestID, "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for _, path := range []string{"/api/nonexistent", "/v1/ops/health", "/api/quadrants/Noreste"} {
		w := env.get(t, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
