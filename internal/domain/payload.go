package domain

import (
	"fmt"
	"time"
)

// Location identifies the municipality the feeds describe.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"`
}

// CurrentWeather holds the latest observed conditions.
type CurrentWeather struct {
	TemperatureC         *float64 `json:"temperatureC,omitempty"`
	ApparentTemperatureC *float64 `json:"apparentTemperatureC,omitempty"`
	RelativeHumidity     *float64 `json:"relativeHumidity,omitempty"`
	WindSpeed            *float64 `json:"windSpeed,omitempty"`
	WeatherCode          *int     `json:"weatherCode,omitempty"`
}

// DailyForecast is one day of the multi-day forecast.
type DailyForecast struct {
	Date                 string   `json:"date"`
	WeatherCode          *int     `json:"weatherCode,omitempty"`
	TempMaxC             *float64 `json:"tempMaxC,omitempty"`
	TempMinC             *float64 `json:"tempMinC,omitempty"`
	PrecipProbabilityMax *float64 `json:"precipProbabilityMax,omitempty"`
	WindSpeedMax         *float64 `json:"windSpeedMax,omitempty"`
}

// WeatherPayload is the normalized forecast feed.
type WeatherPayload struct {
	Source          string          `json:"source"`
	Location        Location        `json:"location"`
	Current         CurrentWeather  `json:"current"`
	TemperatureUnit string          `json:"temperatureUnit,omitempty"`
	WindSpeedUnit   string          `json:"windSpeedUnit,omitempty"`
	Daily           []DailyForecast `json:"daily"`
}

// Alert is one active warning, either issued by the weather service or derived
// from the forecast.
type Alert struct {
	Type     string `json:"type"`
	Level    string `json:"level,omitempty"`
	Severity string `json:"severity"`
	Date     string `json:"date,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Origin   string `json:"origin"`
}

// AlertsPayload merges official and forecast-derived alerts.
type AlertsPayload struct {
	Source string  `json:"source"`
	Alerts []Alert `json:"alerts"`
}

// AirQualityCurrent holds the latest pollutant readings.
type AirQualityCurrent struct {
	USAQI   *float64 `json:"usAqi,omitempty"`
	PM25    *float64 `json:"pm25,omitempty"`
	PM10    *float64 `json:"pm10,omitempty"`
	Ozone   *float64 `json:"ozone,omitempty"`
	UVIndex *float64 `json:"uvIndex,omitempty"`
}

// AQIClassification is the EPA category for an AQI reading.
type AQIClassification struct {
	Level string `json:"level"`
	Color string `json:"color"`
	Label string `json:"label"`
}

// AirQualityPayload is the normalized air-quality feed.
type AirQualityPayload struct {
	Source         string            `json:"source"`
	Current        AirQualityCurrent `json:"current"`
	Classification AQIClassification `json:"classification"`
}

// Gauge is one river gauge station with its latest readings.
type Gauge struct {
	SiteCode     string     `json:"siteCode"`
	SiteName     string     `json:"siteName"`
	Latitude     float64    `json:"latitude,omitempty"`
	Longitude    float64    `json:"longitude,omitempty"`
	StageFeet    *float64   `json:"stageFeet,omitempty"`
	DischargeCfs *float64   `json:"dischargeCfs,omitempty"`
	ObservedAt   *time.Time `json:"observedAt,omitempty"`
	RiskLevel    string     `json:"riskLevel"`
}

// FloodPayload is the normalized river-gauge feed.
type FloodPayload struct {
	Source      string  `json:"source"`
	Gauges      []Gauge `json:"gauges"`
	HighestRisk string  `json:"highestRisk"`
}

// Quake is one seismic event inside the search radius.
type Quake struct {
	ID        string    `json:"id"`
	Magnitude float64   `json:"magnitude"`
	Place     string    `json:"place"`
	Time      time.Time `json:"time"`
	Severity  string    `json:"severity"`
	Felt      int       `json:"feltReports"`
	Tsunami   bool      `json:"tsunami"`
	DepthKm   float64   `json:"depthKm"`
	DetailURL string    `json:"detailUrl,omitempty"`
}

// SeismicPayload is the normalized earthquake feed for the trailing window.
type SeismicPayload struct {
	Source       string  `json:"source"`
	WindowDays   int     `json:"windowDays"`
	RadiusKm     int     `json:"searchRadiusKm"`
	MaxMagnitude float64 `json:"maxMagnitude"`
	Severity     string  `json:"severity"`
	Events       []Quake `json:"events"`
}

// Incident is one police or public-safety record.
type Incident struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Location string `json:"location"`
	Time     string `json:"time,omitempty"`
	Details  string `json:"details,omitempty"`
}

// IncidentsPayload is the normalized incident feed.
type IncidentsPayload struct {
	Source    string         `json:"source"`
	Dataset   string         `json:"dataset,omitempty"`
	Incidents []Incident     `json:"incidents"`
	Summary   map[string]int `json:"summary"`
	Note      string         `json:"note,omitempty"`
}

// CountBySeverity returns how many incidents carry the given severity.
func (p *IncidentsPayload) CountBySeverity(severity string) int {
	if p == nil {
		return 0
	}
	if n, ok := p.Summary[severity]; ok {
		return n
	}
	n := 0
	for _, inc := range p.Incidents {
		if inc.Severity == severity {
			n++
		}
	}
	return n
}

// Announcement is a headline scraped from the city website.
type Announcement struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Category string `json:"category"`
}

// Story is a risk-related local news headline.
type Story struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Title  string `json:"title"`
	Link   string `json:"link"`
	Mode   string `json:"mode"`
}

// ScrapeError records a scrape target that produced nothing.
type ScrapeError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// NewsPayload carries city announcements and local news headlines.
type NewsPayload struct {
	Source        string         `json:"source"`
	Announcements []Announcement `json:"announcements"`
	Stories       []Story        `json:"stories"`
	Errors        []ScrapeError  `json:"errors,omitempty"`
}

func (*WeatherPayload) Domain() DomainID    { return DomainWeather }
func (*AlertsPayload) Domain() DomainID     { return DomainAlerts }
func (*AirQualityPayload) Domain() DomainID { return DomainAirQuality }
func (*FloodPayload) Domain() DomainID      { return DomainFlood }
func (*SeismicPayload) Domain() DomainID    { return DomainSeismic }
func (*IncidentsPayload) Domain() DomainID  { return DomainIncidents }
func (*NewsPayload) Domain() DomainID       { return DomainNews }

func (*WeatherPayload) sealed()    {}
func (*AlertsPayload) sealed()     {}
func (*AirQualityPayload) sealed() {}
func (*FloodPayload) sealed()      {}
func (*SeismicPayload) sealed()    {}
func (*IncidentsPayload) sealed()  {}
func (*NewsPayload) sealed()       {}

func newPayload(id DomainID) (Payload, error) {
	switch id {
	case DomainWeather:
		return &WeatherPayload{}, nil
	case DomainAlerts:
		return &AlertsPayload{}, nil
	case DomainAirQuality:
		return &AirQualityPayload{}, nil
	case DomainFlood:
		return &FloodPayload{}, nil
	case DomainSeismic:
		return &SeismicPayload{}, nil
	case DomainIncidents:
		return &IncidentsPayload{}, nil
	case DomainNews:
		return &NewsPayload{}, nil
	default:
		return nil, fmt.Errorf("unknown domain %q", id)
	}
}
