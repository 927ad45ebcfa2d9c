package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/civic-risk-service/internal/adapter/http"
	"github.com/couchcryptid/civic-risk-service/internal/cache"
	"github.com/couchcryptid/civic-risk-service/internal/copilot"
	"github.com/couchcryptid/civic-risk-service/internal/domain"
	"github.com/couchcryptid/civic-risk-service/internal/observability"
	"github.com/couchcryptid/civic-risk-service/internal/pipeline"
)

func fptr(v float64) *float64 { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixturePayloads() map[domain.DomainID]domain.Payload {
	return map[domain.DomainID]domain.Payload{
		domain.DomainWeather: &domain.WeatherPayload{
			Source:  "Open-Meteo Weather API",
			Current: domain.CurrentWeather{TemperatureC: fptr(31), WindSpeed: fptr(9)},
		},
		domain.DomainAlerts: &domain.AlertsPayload{Source: "NWS/NOAA Alerts API", Alerts: []domain.Alert{}},
		domain.DomainAirQuality: &domain.AirQualityPayload{
			Source:         "Open-Meteo Air Quality API",
			Current:        domain.AirQualityCurrent{USAQI: fptr(42)},
			Classification: domain.AQIClassification{Level: "good", Label: "Good"},
		},
		domain.DomainFlood: &domain.FloodPayload{
			Source:      "USGS Water Services API",
			Gauges:      []domain.Gauge{{SiteCode: "02420000", StageFeet: fptr(26), RiskLevel: "high"}},
			HighestRisk: "high",
		},
		domain.DomainSeismic:   &domain.SeismicPayload{Source: "USGS Earthquake Hazards Program", WindowDays: 7},
		domain.DomainIncidents: &domain.IncidentsPayload{Source: "Municipal Open Data (Socrata)"},
		domain.DomainNews: &domain.NewsPayload{
			Source:        "City website and local news",
			Announcements: []domain.Announcement{{ID: "city-1", Title: "Storm debris pickup schedule announced"}},
			Stories:       []domain.Story{{ID: "wsfa-12-news-1", Source: "WSFA 12 News", Title: "Flood warning issued for the Alabama River"}},
		},
	}
}

type harness struct {
	srv     *httpadapter.Server
	fetches map[domain.DomainID]*atomic.Int32
}

func (h *harness) total() int32 {
	var n int32
	for _, c := range h.fetches {
		n += c.Load()
	}
	return n
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, httptest.NewRequest(method, path, rdr))
	return rec
}

type harnessOpts struct {
	failing    []domain.DomainID
	copilot    httpadapter.Copilot
	production bool
}

func newHarness(t *testing.T, o harnessOpts) *harness {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	failing := make(map[domain.DomainID]bool)
	for _, id := range o.failing {
		failing[id] = true
	}

	h := &harness{fetches: make(map[domain.DomainID]*atomic.Int32)}
	payloads := fixturePayloads()
	sources := make([]pipeline.Source, 0, len(domain.Domains))
	for _, id := range domain.Domains {
		counter := &atomic.Int32{}
		h.fetches[id] = counter
		p := payloads[id]
		fail := failing[id]
		sources = append(sources, pipeline.Source{Domain: id, Name: string(id), Fetch: func(context.Context) (domain.Payload, error) {
			counter.Add(1)
			if fail {
				return nil, errors.New("upstream status 503")
			}
			return p, nil
		}})
	}

	collector := pipeline.NewCollector(sources, time.Second, discardLogger(), metrics)
	agg := pipeline.NewAggregator(collector, "Montgomery, AL", nil, discardLogger(), metrics)
	c := cache.New(cache.WithClock(clockwork.NewFakeClock()), cache.WithMetrics(metrics))

	cp := o.copilot
	if cp == nil {
		cp = copilot.NewRouter(nil, copilot.Options{}, discardLogger(), metrics)
	}

	h.srv = httpadapter.NewServer(":0", agg, c, cp, httpadapter.Options{
		City:       "Montgomery, AL",
		Production: o.production,
		Features:   httpadapter.Features{BrightData: true},
	}, discardLogger())
	return h
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// --- operational endpoints ---

func TestHealthzReturns200(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	rec := h.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestReadyzReflectsLatestSnapshot(t *testing.T) {
	h := newHarness(t, harnessOpts{failing: domain.Domains})

	rec := h.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code, "ready before the first snapshot")

	h.do(t, http.MethodGet, "/api/dashboard", "")

	rec = h.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", decode(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	rec := h.do(t, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIHealth(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.do(t, http.MethodGet, "/api/flood", "")

	rec := h.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Montgomery, AL", body["city"])
	assert.Equal(t, map[string]any{"keys": 1.0, "ttlMs": 300000.0}, body["cache"])
	assert.Equal(t, map[string]any{"model": false, "brightData": true, "kafka": false}, body["features"])
}

// --- domain routes ---

func TestDomainRouteIsCached(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	first := h.do(t, http.MethodGet, "/api/flood", "")
	second := h.do(t, http.MethodGet, "/api/flood", "")

	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), h.fetches[domain.DomainFlood].Load())

	body := decode(t, first)
	assert.Equal(t, "flood", body["domain"])
	assert.Equal(t, true, body["available"])
	assert.Equal(t, "high", body["data"].(map[string]any)["highestRisk"])
}

func TestUnavailableDomainIs200AndNotCached(t *testing.T) {
	h := newHarness(t, harnessOpts{failing: []domain.DomainID{domain.DomainSeismic}})

	rec := h.do(t, http.MethodGet, "/api/seismic", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["available"])
	assert.Contains(t, body["error"], "upstream status 503")
	assert.NotContains(t, body, "data")

	h.do(t, http.MethodGet, "/api/seismic", "")
	assert.Equal(t, int32(2), h.fetches[domain.DomainSeismic].Load())
}

func TestNewsAndCityServicesShareOneFetch(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	news := decode(t, h.do(t, http.MethodGet, "/api/news", ""))
	city := decode(t, h.do(t, http.MethodGet, "/api/city-services", ""))

	newsData := news["data"].(map[string]any)
	require.Len(t, newsData["stories"], 1)
	assert.NotContains(t, newsData, "announcements")

	cityData := city["data"].(map[string]any)
	require.Len(t, cityData["announcements"], 1)
	assert.NotContains(t, cityData, "stories")

	assert.Equal(t, int32(1), h.fetches[domain.DomainNews].Load())
}

func TestDashboardIsCached(t *testing.T) {
	h := newHarness(t, harnessOpts{failing: []domain.DomainID{domain.DomainAirQuality}})

	rec := h.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	h.do(t, http.MethodGet, "/api/dashboard", "")

	var snap domain.RiskSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, []domain.DomainID{domain.DomainAirQuality}, snap.UnavailableDomains())
	assert.Len(t, snap.Factors, 6)
	assert.Equal(t, int32(len(domain.Domains)), h.total())
}

func TestUnknownAPIRoute(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	rec := h.do(t, http.MethodGet, "/api/tides", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "route not found", body["error"])
	assert.Equal(t, "GET /api/tides", body["route"])
	assert.NotEmpty(t, body["time"])
}

func TestKnownAPIRouteWrongMethod(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	tests := []struct {
		method, path, allow string
	}{
		{http.MethodPost, "/api/dashboard", "GET"},
		{http.MethodGet, "/api/chat", "POST"},
		{http.MethodDelete, "/api/flood", "GET"},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := h.do(t, tc.method, tc.path, "")

			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, tc.allow, rec.Header().Get("Allow"))
			body := decode(t, rec)
			assert.Equal(t, "method not allowed", body["error"])
			assert.Equal(t, tc.method+" "+tc.path, body["route"])
		})
	}
	assert.Zero(t, h.total(), "a rejected method must not fetch")
}

// --- chat ---

func TestChatFloodFallbackWithoutModel(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	rec := h.do(t, http.MethodPost, "/api/chat", `{"message": "will it flood today"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["fallback"])
	assert.Equal(t, "flood", body["questionType"])
	assert.Contains(t, body["answer"], "high")
	assert.Contains(t, body["sources"], "USGS Water Services API")

	summary := body["contextSummary"].(map[string]any)
	assert.NotEmpty(t, summary["snapshotId"])
	assert.Contains(t, summary, "compositeScore")
}

func TestChatRejectsNonStringMessage(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	rec := h.do(t, http.MethodPost, "/api/chat", `{"message": 123}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "message must be a non-empty string", body["error"])
	assert.Equal(t, "POST /api/chat", body["route"])
	assert.Equal(t, int32(0), h.total(), "no upstream calls")
}

func TestChatRejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing message", `{}`, "message must be a non-empty string"},
		{"blank message", `{"message": "   "}`, "message must be a non-empty string"},
		{"too long", `{"message": "` + strings.Repeat("a", 4001) + `"}`, "message must be at most 4000 characters"},
		{"invalid json", `{"message":`, "invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, harnessOpts{})
			rec := h.do(t, http.MethodPost, "/api/chat", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode(t, rec)["error"], tt.want)
			assert.Equal(t, int32(0), h.total())
		})
	}
}

func TestChatMessageLimitCountsCharacters(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	// 4000 two-byte characters: 8000 bytes, within the limit.
	rec := h.do(t, http.MethodPost, "/api/chat", `{"message": "`+strings.Repeat("é", 4000)+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/chat", `{"message": "`+strings.Repeat("é", 4001)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "message must be at most 4000 characters", decode(t, rec)["error"])
}

type panickingCopilot struct{}

func (panickingCopilot) Answer(context.Context, string, domain.RiskSnapshot) domain.ChatAnswer {
	panic("template exploded")
}

func TestInternalErrorDetailHiddenInProduction(t *testing.T) {
	dev := newHarness(t, harnessOpts{copilot: panickingCopilot{}})
	rec := dev.do(t, http.MethodPost, "/api/chat", `{"message": "hello"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Internal Server Error", body["error"])
	assert.Contains(t, body["detail"], "template exploded")

	prod := newHarness(t, harnessOpts{copilot: panickingCopilot{}, production: true})
	rec = prod.do(t, http.MethodPost, "/api/chat", `{"message": "hello"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, decode(t, rec), "detail")
}
