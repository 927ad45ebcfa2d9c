package copilot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

const notAvailable = "N/A"

// FallbackAnswer renders the templated answer for qt from snap. It reads only
// what the snapshot carries and substitutes defaults for anything missing.
func FallbackAnswer(qt domain.QuestionType, snap domain.RiskSnapshot) string {
	city := snap.City
	if city == "" {
		city = "your city"
	}

	switch qt {
	case domain.QuestionWeather:
		return weatherAnswer(city, snap)
	case domain.QuestionAlerts:
		return alertsAnswer(snap)
	case domain.QuestionCity:
		return cityAnswer(snap)
	case domain.QuestionSafety:
		return safetyAnswer(snap)
	case domain.QuestionFlood:
		return floodAnswer(city, snap)
	case domain.QuestionAir:
		return airAnswer(city, snap)
	default:
		return fmt.Sprintf("I can help with %s weather, alerts, city services, and public safety updates. "+
			"Ask me a specific risk-related question.", city)
	}
}

func weatherAnswer(city string, snap domain.RiskSnapshot) string {
	p, ok := snap.Result(domain.DomainWeather).Weather()
	if !ok {
		return fmt.Sprintf("Current weather in %s: %s, wind %s.", city, notAvailable, notAvailable)
	}
	unit := p.TemperatureUnit
	if unit == "" {
		unit = "°C"
	}
	return fmt.Sprintf("Current weather in %s: %s%s, wind %s %s.",
		city, number(p.Current.TemperatureC), unit, number(p.Current.WindSpeed), p.WindSpeedUnit)
}

func alertsAnswer(snap domain.RiskSnapshot) string {
	p, ok := snap.Result(domain.DomainAlerts).Alerts()
	if !ok || len(p.Alerts) == 0 {
		return "No major weather risk alerts are detected in the 7-day forecast right now."
	}
	parts := make([]string, 0, 3)
	for _, a := range first(p.Alerts, 3) {
		if a.Date == "" {
			parts = append(parts, a.Type)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s on %s", a.Type, a.Date))
	}
	return fmt.Sprintf("Active alerts: %s.", strings.Join(parts, "; "))
}

func cityAnswer(snap domain.RiskSnapshot) string {
	p, ok := snap.Result(domain.DomainNews).News()
	if !ok || len(p.Announcements) == 0 {
		return "I could not load city announcements right now, but I can try again shortly."
	}
	titles := make([]string, 0, 3)
	for _, a := range first(p.Announcements, 3) {
		titles = append(titles, a.Title)
	}
	return fmt.Sprintf("Latest city updates include: %s.", strings.Join(titles, " | "))
}

func safetyAnswer(snap domain.RiskSnapshot) string {
	p, ok := snap.Result(domain.DomainIncidents).Incidents()
	if !ok || len(p.Incidents) == 0 {
		return "No recent public safety incidents are available right now."
	}
	notes := make([]string, 0, 3)
	for _, inc := range first(p.Incidents, 3) {
		notes = append(notes, fmt.Sprintf("%s (%s) at %s",
			orUnknown(inc.Type), orUnknown(inc.Severity), orUnknown(inc.Location)))
	}
	return fmt.Sprintf("Recent public safety notes: %s.", strings.Join(notes, "; "))
}

func floodAnswer(city string, snap domain.RiskSnapshot) string {
	p, ok := snap.Result(domain.DomainFlood).Flood()
	if !ok {
		return fmt.Sprintf("River gauge data for %s is unavailable right now; highest gauge risk is unknown.", city)
	}
	risk := orUnknown(p.HighestRisk)
	stage, hasStage := p.MaxStage()
	if !hasStage {
		return fmt.Sprintf("Highest river gauge risk near %s is %s across %d gauge(s).", city, risk, len(p.Gauges))
	}
	return fmt.Sprintf("Highest river gauge risk near %s is %s, with a maximum stage of %.1f ft across %d gauge(s).",
		city, risk, stage, len(p.Gauges))
}

func airAnswer(city string, snap domain.RiskSnapshot) string {
	p, ok := snap.Result(domain.DomainAirQuality).AirQuality()
	if !ok {
		return fmt.Sprintf("Air quality for %s is unavailable right now.", city)
	}
	label := p.Classification.Label
	if label == "" {
		label = "unknown"
	}
	return fmt.Sprintf("Air quality in %s: US AQI %s (%s).", city, number(p.Current.USAQI), label)
}

func number(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func orUnknown(s string) string {
	if s == "" {
		return string(domain.SeverityUnknown)
	}
	return s
}

func first[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
