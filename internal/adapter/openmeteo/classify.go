package openmeteo

import (
	"fmt"

	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

// Forecast thresholds that raise a derived alert.
const (
	heavyRainPercent = 70
	strongWindSpeed  = 40
	heatTempC        = 35
)

// ClassifyAQI maps a US AQI reading to its EPA category.
func ClassifyAQI(aqi *float64) domain.AQIClassification {
	if aqi == nil {
		return domain.AQIClassification{Level: "unknown", Color: "gray", Label: "Unknown"}
	}
	switch v := *aqi; {
	case v <= 50:
		return domain.AQIClassification{Level: "good", Color: "green", Label: "Good"}
	case v <= 100:
		return domain.AQIClassification{Level: "moderate", Color: "yellow", Label: "Moderate"}
	case v <= 150:
		return domain.AQIClassification{Level: "unhealthy-sensitive", Color: "orange", Label: "Unhealthy for Sensitive Groups"}
	case v <= 200:
		return domain.AQIClassification{Level: "unhealthy", Color: "red", Label: "Unhealthy"}
	default:
		return domain.AQIClassification{Level: "very-unhealthy", Color: "purple", Label: "Very Unhealthy"}
	}
}

// DeriveAlerts turns forecast days into watches and warnings. A watch maps to
// moderate severity and a warning to high.
func DeriveAlerts(days []domain.DailyForecast, windUnit, tempUnit string) []domain.Alert {
	alerts := []domain.Alert{}
	for _, d := range days {
		if v := value(d.PrecipProbabilityMax); v >= heavyRainPercent {
			alerts = append(alerts, forecastAlert("Heavy Rain Risk", "watch", d.Date,
				fmt.Sprintf("Precipitation probability may reach %g%%.", v)))
		}
		if v := value(d.WindSpeedMax); v >= strongWindSpeed {
			alerts = append(alerts, forecastAlert("Strong Wind Risk", "warning", d.Date,
				fmt.Sprintf("Wind speeds could reach %g %s.", v, windUnit)))
		}
		if v := value(d.TempMaxC); v >= heatTempC {
			alerts = append(alerts, forecastAlert("Heat Risk", "watch", d.Date,
				fmt.Sprintf("High temperature could reach %g %s.", v, tempUnit)))
		}
	}
	return alerts
}

func forecastAlert(kind, level, date, detail string) domain.Alert {
	severity := domain.SeverityModerate
	if level == "warning" {
		severity = domain.SeverityHigh
	}
	return domain.Alert{
		Type:     kind,
		Level:    level,
		Severity: string(severity),
		Date:     date,
		Detail:   detail,
		Origin:   "forecast",
	}
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
