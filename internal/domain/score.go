package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrNotCollected marks a domain that was missing from the collected set.
var ErrNotCollected = errors.New("domain was not collected")

// Factor weights. They sum to 1.00 but Score does not rely on that.
const (
	WeightAlerts          = 0.24
	WeightFlood           = 0.22
	WeightHeatwave        = 0.20
	WeightAirQuality      = 0.16
	WeightSeismic         = 0.10
	WeightCommunitySafety = 0.08
)

// Scores used when a domain has no usable signal.
const (
	defaultAirQualityScore = 20
	defaultFloodScore      = 20
	defaultLabelScore      = 20
)

// Score derives the composite snapshot from the collected domain results.
// It performs no I/O, never fails, and returns the same snapshot for the same
// inputs. Missing or unavailable domains fall back to documented defaults.
// The snapshot ID is left empty for the caller to assign.
func Score(results map[DomainID]DomainResult, city string, generatedAt time.Time) RiskSnapshot {
	full := make(map[DomainID]DomainResult, len(Domains))
	for _, id := range Domains {
		r, ok := results[id]
		if !ok || r.Domain() != id {
			r = Unavailable(id, ErrNotCollected, generatedAt)
		}
		full[id] = r
	}

	factors := []RiskFactor{
		newFactor(FactorAlerts, DomainAlerts, WeightAlerts, full[DomainAlerts], scoreAlerts),
		newFactor(FactorFlood, DomainFlood, WeightFlood, full[DomainFlood], scoreFlood),
		newFactor(FactorHeatwave, DomainWeather, WeightHeatwave, full[DomainWeather], scoreHeatwave),
		newFactor(FactorAirQuality, DomainAirQuality, WeightAirQuality, full[DomainAirQuality], scoreAirQuality),
		newFactor(FactorSeismic, DomainSeismic, WeightSeismic, full[DomainSeismic], scoreSeismic),
		newFactor(FactorCommunitySafety, DomainIncidents, WeightCommunitySafety, full[DomainIncidents], scoreCommunitySafety),
	}

	var sum float64
	for _, f := range factors {
		sum += f.Contribution
	}
	composite := clampInt(int(math.Round(sum)), 0, 100)

	return RiskSnapshot{
		City:           city,
		CompositeScore: composite,
		CompositeLabel: LabelFor(float64(composite)),
		Factors:        factors,
		Results:        full,
		GeneratedAt:    generatedAt,
		Sources:        attributedSources(full),
	}
}

type factorScorer func(DomainResult) (float64, string)

func newFactor(id FactorID, domain DomainID, weight float64, r DomainResult, fn factorScorer) RiskFactor {
	score, summary := fn(r)
	score = clamp(score, 0, 100)
	return RiskFactor{
		Factor:       id,
		Domain:       domain,
		Score:        score,
		Label:        LabelFor(score),
		Weight:       weight,
		Contribution: score * weight,
		Summary:      summary,
		Available:    r.Available(),
	}
}

// LabelFor maps a 0-100 score onto the severity step function used for both
// factors and the composite.
func LabelFor(score float64) Severity {
	switch {
	case score >= 75:
		return SeveritySevere
	case score >= 50:
		return SeverityHigh
	case score >= 25:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

// LabelScore converts a qualitative label from a source into a score. Matching
// is by substring so "unhealthy-sensitive" and "very-unhealthy" both resolve.
func LabelScore(label string) float64 {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "severe"):
		return 90
	case strings.Contains(l, "high"), strings.Contains(l, "unhealthy"):
		return 70
	case strings.Contains(l, "moderate"), strings.Contains(l, "sensitive"):
		return 45
	case strings.Contains(l, "low"), strings.Contains(l, "good"):
		return 15
	default:
		return defaultLabelScore
	}
}

func alertWeight(severity string) float64 {
	switch Severity(strings.ToLower(severity)) {
	case SeveritySevere:
		return 35
	case SeverityHigh:
		return 25
	case SeverityModerate:
		return 12
	default:
		return 5
	}
}

func scoreAlerts(r DomainResult) (float64, string) {
	p, ok := r.Alerts()
	if !ok {
		return 0, "Alert feed unavailable"
	}
	if len(p.Alerts) == 0 {
		return 0, "No active alerts"
	}
	var sum float64
	highest := SeverityLow
	for _, a := range p.Alerts {
		sum += alertWeight(a.Severity)
		if severityRank(Severity(a.Severity)) > severityRank(highest) {
			highest = Severity(a.Severity)
		}
	}
	return math.Min(sum, 100), fmt.Sprintf("%d active alert(s), highest severity %s", len(p.Alerts), highest)
}

func scoreAirQuality(r DomainResult) (float64, string) {
	p, ok := r.AirQuality()
	if !ok {
		return defaultAirQualityScore, "Air quality feed unavailable"
	}
	if p.Current.USAQI == nil {
		return LabelScore(p.Classification.Level), "US AQI not reported"
	}
	aqi := *p.Current.USAQI
	var score float64
	switch {
	case aqi <= 50:
		score = 10
	case aqi <= 100:
		score = 35
	case aqi <= 150:
		score = 60
	case aqi <= 200:
		score = 80
	default:
		score = 95
	}
	return score, fmt.Sprintf("US AQI %.0f (%s)", aqi, orDefault(p.Classification.Label, "unclassified"))
}

func scoreFlood(r DomainResult) (float64, string) {
	p, ok := r.Flood()
	if !ok {
		return defaultFloodScore, "River gauge feed unavailable"
	}
	labelScore := LabelScore(p.HighestRisk)
	maxStage, hasStage := p.MaxStage()
	stageScore := math.Min(maxStage*2, 100)
	score := math.Max(labelScore, stageScore)
	if !hasStage {
		return score, fmt.Sprintf("Highest gauge risk %s, no stage readings", orDefault(p.HighestRisk, string(SeverityUnknown)))
	}
	return score, fmt.Sprintf("Highest gauge risk %s, max stage %.1f ft", orDefault(p.HighestRisk, string(SeverityUnknown)), maxStage)
}

func scoreHeatwave(r DomainResult) (float64, string) {
	p, ok := r.Weather()
	if !ok {
		return 12, "Weather feed unavailable"
	}
	peak, ok := p.PeakTemperature()
	if !ok {
		return 12, "No temperature readings"
	}
	var score float64
	switch {
	case peak >= 42:
		score = 95
	case peak >= 38:
		score = 78
	case peak >= 34:
		score = 58
	case peak >= 30:
		score = 38
	default:
		score = 12
	}
	return score, fmt.Sprintf("Peak temperature %.1f°C", peak)
}

func scoreSeismic(r DomainResult) (float64, string) {
	p, ok := r.Seismic()
	if !ok {
		return 8, "Seismic feed unavailable"
	}
	m := p.MaxMagnitude
	var score float64
	switch {
	case m >= 6:
		score = 90
	case m >= 5:
		score = 70
	case m >= 4:
		score = 45
	case m >= 3:
		score = 25
	default:
		score = 8
	}
	return score, fmt.Sprintf("Max magnitude %.1f in the last %d days", m, p.WindowDays)
}

func scoreCommunitySafety(r DomainResult) (float64, string) {
	p, ok := r.Incidents()
	if !ok {
		return 0, "Incident feed unavailable"
	}
	high := p.CountBySeverity(string(SeverityHigh))
	moderate := p.CountBySeverity(string(SeverityModerate))
	score := math.Min(100, float64(high*16+moderate*7))
	return score, fmt.Sprintf("%d high and %d moderate severity incidents", high, moderate)
}

// MaxStage returns the highest gauge stage in feet, and false when no gauge
// reported a stage.
func (p *FloodPayload) MaxStage() (float64, bool) {
	var (
		peak  float64
		found bool
	)
	for _, g := range p.Gauges {
		if g.StageFeet == nil {
			continue
		}
		if !found || *g.StageFeet > peak {
			peak = *g.StageFeet
			found = true
		}
	}
	return peak, found
}

// PeakTemperature returns the highest of the current temperature, the apparent
// temperature and today's forecast maximum.
func (p *WeatherPayload) PeakTemperature() (float64, bool) {
	candidates := []*float64{p.Current.TemperatureC, p.Current.ApparentTemperatureC}
	if len(p.Daily) > 0 {
		candidates = append(candidates, p.Daily[0].TempMaxC)
	}
	var (
		peak  float64
		found bool
	)
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if !found || *c > peak {
			peak = *c
			found = true
		}
	}
	return peak, found
}

func severityRank(s Severity) int {
	switch s {
	case SeveritySevere:
		return 4
	case SeverityHigh:
		return 3
	case SeverityModerate:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// MaxSeverity returns the more serious of two labels.
func MaxSeverity(a, b Severity) Severity {
	if severityRank(b) > severityRank(a) {
		return b
	}
	return a
}

func attributedSources(results map[DomainID]DomainResult) []string {
	seen := make(map[string]bool)
	sources := make([]string, 0, len(Domains))
	for _, id := range Domains {
		r := results[id]
		if !r.Available() {
			continue
		}
		for _, s := range sourceNames(r.Payload()) {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			sources = append(sources, s)
		}
	}
	return sources
}

func sourceNames(p Payload) []string {
	switch v := p.(type) {
	case *WeatherPayload:
		return []string{v.Source}
	case *AlertsPayload:
		return []string{v.Source}
	case *AirQualityPayload:
		return []string{v.Source}
	case *FloodPayload:
		return []string{v.Source}
	case *SeismicPayload:
		return []string{v.Source}
	case *IncidentsPayload:
		return []string{v.Source}
	case *NewsPayload:
		names := []string{v.Source}
		for _, s := range v.Stories {
			names = append(names, s.Source)
		}
		return names
	default:
		return nil
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
