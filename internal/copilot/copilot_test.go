package copilot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-risk-service/internal/domain"
	"github.com/couchcryptid/civic-risk-service/internal/observability"
)

var testNow = time.Date(2026, 7, 14, 15, 0, 0, 0, time.UTC)

func fptr(v float64) *float64 { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSnapshot() domain.RiskSnapshot {
	results := map[domain.DomainID]domain.DomainResult{
		domain.DomainWeather: domain.NewResult(&domain.WeatherPayload{
			Source:          "Open-Meteo Weather API",
			Current:         domain.CurrentWeather{TemperatureC: fptr(33.4), WindSpeed: fptr(12)},
			TemperatureUnit: "°C",
			WindSpeedUnit:   "km/h",
		}, testNow),
		domain.DomainAlerts: domain.NewResult(&domain.AlertsPayload{
			Source: "NWS/NOAA Alerts API",
			Alerts: []domain.Alert{
				{Type: "Heat Advisory", Severity: "moderate", Origin: "nws"},
				{Type: "Heavy rain", Severity: "moderate", Date: "2026-07-15", Origin: "forecast"},
			},
		}, testNow),
		domain.DomainAirQuality: domain.NewResult(&domain.AirQualityPayload{
			Source:         "Open-Meteo Air Quality API",
			Current:        domain.AirQualityCurrent{USAQI: fptr(72)},
			Classification: domain.AQIClassification{Level: "moderate", Label: "Moderate"},
		}, testNow),
		domain.DomainFlood: domain.NewResult(&domain.FloodPayload{
			Source:      "USGS Water Services API",
			Gauges:      []domain.Gauge{{SiteCode: "02420000", StageFeet: fptr(26), RiskLevel: "high"}},
			HighestRisk: "high",
		}, testNow),
		domain.DomainIncidents: domain.NewResult(&domain.IncidentsPayload{
			Source: "Municipal Open Data (Socrata)",
			Incidents: []domain.Incident{
				{ID: "1", Type: "Burglary", Severity: "moderate", Location: "Dexter Ave"},
				{ID: "2", Type: "Traffic accident", Severity: "low"},
			},
		}, testNow),
		domain.DomainNews: domain.NewResult(&domain.NewsPayload{
			Source: "City website and local news",
			Announcements: []domain.Announcement{
				{ID: "city-1", Title: "Storm debris pickup schedule announced"},
				{ID: "city-2", Title: "Road closure on Dexter Avenue this weekend"},
			},
		}, testNow),
	}
	snap := domain.Score(results, "Montgomery, AL", testNow)
	snap.ID = "snap-1"
	return snap
}

// --- classification ---

func TestClassify(t *testing.T) {
	tests := []struct {
		question string
		want     domain.QuestionType
	}{
		{"What's the weather tomorrow?", domain.QuestionWeather},
		{"storm warning tonight", domain.QuestionWeather},
		{"Is there an EMERGENCY declared?", domain.QuestionAlerts},
		{"When is garbage pickup?", domain.QuestionCity},
		{"any road closures", domain.QuestionSafety},
		{"police activity near me", domain.QuestionSafety},
		{"will it flood today", domain.QuestionFlood},
		{"how high is the river", domain.QuestionFlood},
		{"is the AQI bad", domain.QuestionAir},
		{"hello", domain.QuestionGeneral},
		{"", domain.QuestionGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.question))
		})
	}
}

// --- fallback templates ---

func TestFallbackAnswer(t *testing.T) {
	snap := testSnapshot()

	tests := []struct {
		qt   domain.QuestionType
		want string
	}{
		{domain.QuestionWeather, "Current weather in Montgomery, AL: 33.4°C, wind 12 km/h."},
		{domain.QuestionAlerts, "Active alerts: Heat Advisory; Heavy rain on 2026-07-15."},
		{domain.QuestionCity, "Latest city updates include: Storm debris pickup schedule announced | Road closure on Dexter Avenue this weekend."},
		{domain.QuestionSafety, "Recent public safety notes: Burglary (moderate) at Dexter Ave; Traffic accident (low) at unknown."},
		{domain.QuestionFlood, "Highest river gauge risk near Montgomery, AL is high, with a maximum stage of 26.0 ft across 1 gauge(s)."},
		{domain.QuestionAir, "Air quality in Montgomery, AL: US AQI 72 (Moderate)."},
	}
	for _, tt := range tests {
		t.Run(string(tt.qt), func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackAnswer(tt.qt, snap))
		})
	}

	assert.Contains(t, FallbackAnswer(domain.QuestionGeneral, snap), "I can help with Montgomery, AL weather")
}

func TestFallbackAnswer_EmptySnapshot(t *testing.T) {
	snap := domain.Score(nil, "", testNow)

	assert.Equal(t, "Current weather in your city: N/A, wind N/A.", FallbackAnswer(domain.QuestionWeather, snap))
	assert.Contains(t, FallbackAnswer(domain.QuestionAlerts, snap), "No major weather risk alerts")
	assert.Contains(t, FallbackAnswer(domain.QuestionCity, snap), "could not load city announcements")
	assert.Contains(t, FallbackAnswer(domain.QuestionSafety, snap), "No recent public safety incidents")
	assert.Contains(t, FallbackAnswer(domain.QuestionFlood, snap), "unknown")
	assert.Contains(t, FallbackAnswer(domain.QuestionAir, snap), "unavailable")
}

func TestFallbackAnswer_MissingFields(t *testing.T) {
	results := map[domain.DomainID]domain.DomainResult{
		domain.DomainWeather:    domain.NewResult(&domain.WeatherPayload{}, testNow),
		domain.DomainAirQuality: domain.NewResult(&domain.AirQualityPayload{}, testNow),
		domain.DomainFlood:      domain.NewResult(&domain.FloodPayload{}, testNow),
	}
	snap := domain.Score(results, "Montgomery, AL", testNow)

	assert.Equal(t, "Current weather in Montgomery, AL: N/A°C, wind N/A .", FallbackAnswer(domain.QuestionWeather, snap))
	assert.Equal(t, "Air quality in Montgomery, AL: US AQI N/A (unknown).", FallbackAnswer(domain.QuestionAir, snap))
	assert.Equal(t, "Highest river gauge risk near Montgomery, AL is unknown across 0 gauge(s).", FallbackAnswer(domain.QuestionFlood, snap))
}

// --- router ---

type fakeModel struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

func (m *fakeModel) Name() string { return "fake/test" }

func (m *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return m.text, m.err
}

func TestRouter_NoModelFallsBack(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	r := NewRouter(nil, Options{}, testLogger(), metrics)

	got := r.Answer(context.Background(), "will it flood today", testSnapshot())

	assert.True(t, got.Fallback)
	assert.Equal(t, domain.QuestionFlood, got.QuestionType)
	assert.Contains(t, got.Answer, "high")
	assert.Empty(t, got.Model)
	assert.Equal(t, ErrModelNotConfigured.Error(), got.Diagnostic)
	assert.Contains(t, got.Sources, "USGS Water Services API")
	assert.False(t, r.ModelConfigured())
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.ModelEnabled), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ChatAnswers.WithLabelValues("flood", "fallback")), 0)
}

func TestRouter_ModelAnswer(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	model := &fakeModel{text: "Stay away from low-water crossings."}
	r := NewRouter(model, Options{RPS: 10, Burst: 5}, testLogger(), metrics)

	got := r.Answer(context.Background(), "will it flood today", testSnapshot())

	assert.False(t, got.Fallback)
	assert.Equal(t, "Stay away from low-water crossings.", got.Answer)
	assert.Equal(t, "fake/test", got.Model)
	assert.Empty(t, got.Diagnostic)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ModelEnabled), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ChatAnswers.WithLabelValues("flood", "model")), 0)

	require.Len(t, model.prompts, 1)
	prompt := model.prompts[0]
	assert.Contains(t, prompt, "You are Civic Risk Copilot for Montgomery, AL.")
	assert.Contains(t, prompt, "User question: will it flood today")
	assert.Contains(t, prompt, "Question type: flood")
	assert.Contains(t, prompt, `"compositeScore"`)
}

func TestRouter_NilMetrics(t *testing.T) {
	for _, model := range []Model{nil, &fakeModel{text: "Air is fine."}, &fakeModel{}} {
		r := NewRouter(model, Options{RPS: 10, Burst: 5}, testLogger(), nil)

		var got domain.ChatAnswer
		require.NotPanics(t, func() {
			got = r.Answer(context.Background(), "is the air safe", testSnapshot())
		})
		assert.Equal(t, domain.QuestionAir, got.QuestionType)
		assert.NotEmpty(t, got.Answer)
	}
}

func TestRouter_ModelErrorFallsBack(t *testing.T) {
	model := &fakeModel{err: errors.New("status 503")}

	dev := NewRouter(model, Options{RPS: 10, Burst: 5}, testLogger(), observability.NewMetricsForTesting())
	got := dev.Answer(context.Background(), "is the AQI bad", testSnapshot())
	assert.True(t, got.Fallback)
	assert.Equal(t, "Air quality in Montgomery, AL: US AQI 72 (Moderate).", got.Answer)
	assert.Contains(t, got.Diagnostic, "status 503")

	prod := NewRouter(model, Options{RPS: 10, Burst: 5, Production: true}, testLogger(), observability.NewMetricsForTesting())
	got = prod.Answer(context.Background(), "is the AQI bad", testSnapshot())
	assert.True(t, got.Fallback)
	assert.Empty(t, got.Diagnostic)
}

func TestRouter_EmptyModelAnswerFallsBack(t *testing.T) {
	r := NewRouter(&fakeModel{}, Options{}, testLogger(), observability.NewMetricsForTesting())

	got := r.Answer(context.Background(), "hello", testSnapshot())
	assert.True(t, got.Fallback)
	assert.Contains(t, got.Diagnostic, "empty answer")
}

func TestRouter_RateLimited(t *testing.T) {
	model := &fakeModel{text: "ok"}
	r := NewRouter(model, Options{RPS: 0.001, Burst: 1}, testLogger(), observability.NewMetricsForTesting())

	first := r.Answer(context.Background(), "hello", testSnapshot())
	second := r.Answer(context.Background(), "hello", testSnapshot())

	assert.False(t, first.Fallback)
	assert.True(t, second.Fallback)
	assert.Equal(t, ErrRateLimited.Error(), second.Diagnostic)
	assert.Len(t, model.prompts, 1)
}

func TestRouter_NoSourcesIsEmptyList(t *testing.T) {
	r := NewRouter(nil, Options{}, testLogger(), observability.NewMetricsForTesting())
	got := r.Answer(context.Background(), "hello", domain.RiskSnapshot{})
	assert.NotNil(t, got.Sources)
	assert.Empty(t, got.Sources)
}

// --- prompt and summary ---

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate([]byte("abc"), 5))
	assert.Equal(t, "ab", truncate([]byte("abc"), 2))
	// "é" is two bytes; cutting inside it drops the whole rune.
	assert.Equal(t, "a", truncate([]byte("aé"), 2))
}

func TestBuildPrompt_BoundsContext(t *testing.T) {
	snap := testSnapshot()
	news, _ := snap.Results[domain.DomainNews].News()
	for i := range 500 {
		news.Announcements = append(news.Announcements, domain.Announcement{ID: "x", Title: strings.Repeat("long headline ", 4) + string(rune('a'+i%26))})
	}

	prompt, err := BuildPrompt("hello", domain.QuestionGeneral, snap)
	require.NoError(t, err)
	assert.Less(t, len(prompt), maxContextBytes+500)
	assert.True(t, strings.HasSuffix(prompt, "Include safety-first suggestions when relevant."))
}

func TestSummarize(t *testing.T) {
	snap := testSnapshot()
	got := Summarize(snap)

	assert.Equal(t, "snap-1", got.SnapshotID)
	assert.Equal(t, snap.CompositeScore, got.CompositeScore)
	assert.Equal(t, snap.CompositeLabel, got.OverallRisk)
	assert.Equal(t, []domain.DomainID{domain.DomainSeismic}, got.UnavailableDomains)
	assert.Equal(t, testNow, got.UpdatedAt)
}
