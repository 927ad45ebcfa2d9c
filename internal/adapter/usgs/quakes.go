package usgs

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/civic-risk-service/internal/adapter/upstream"
	"github.com/couchcryptid/civic-risk-service/internal/config"
	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

const (
	QuakeSource = "USGS Earthquake Hazards Program"

	quakeWindowDays = 7
	quakeLimit      = 30
	fdsnTimeLayout  = "2006-01-02T15:04:05"
)

// QuakeClient fetches recent earthquakes within a radius of the municipality.
type QuakeClient struct {
	http     *upstream.Client
	baseURL  string
	place    config.Municipality
	radiusKm float64
}

// NewQuakeClient creates an earthquake client.
func NewQuakeClient(hc *upstream.Client, place config.Municipality) *QuakeClient {
	return &QuakeClient{
		http:     hc,
		baseURL:  "https://earthquake.usgs.gov/fdsnws/event/1/query",
		place:    place,
		radiusKm: place.SeismicRadiusKm,
	}
}

// Seismic returns events from the trailing seven days, newest first.
func (c *QuakeClient) Seismic(ctx context.Context) (*domain.SeismicPayload, error) {
	end := domain.Now()
	start := end.Add(-quakeWindowDays * 24 * time.Hour)
	params := url.Values{
		"format":       {"geojson"},
		"starttime":    {start.Format(fdsnTimeLayout)},
		"endtime":      {end.Format(fdsnTimeLayout)},
		"latitude":     {strconv.FormatFloat(c.place.Latitude, 'f', -1, 64)},
		"longitude":    {strconv.FormatFloat(c.place.Longitude, 'f', -1, 64)},
		"maxradiuskm":  {strconv.FormatFloat(c.radiusKm, 'f', -1, 64)},
		"minmagnitude": {"1"},
		"orderby":      {"time"},
		"limit":        {strconv.Itoa(quakeLimit)},
	}

	var resp quakeResponse
	if err := c.http.GetJSON(ctx, c.baseURL, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("usgs earthquakes: %w", err)
	}

	payload := &domain.SeismicPayload{
		Source:     QuakeSource,
		WindowDays: quakeWindowDays,
		RadiusKm:   int(math.Round(c.radiusKm)),
		Events:     make([]domain.Quake, 0, len(resp.Features)),
	}
	for _, f := range resp.Features {
		mag := 0.0
		if f.Properties.Mag != nil {
			mag = *f.Properties.Mag
		}
		q := domain.Quake{
			ID:        f.ID,
			Magnitude: mag,
			Place:     f.Properties.Place,
			Time:      time.UnixMilli(f.Properties.Time).UTC(),
			Severity:  string(MagnitudeSeverity(mag)),
			Felt:      f.Properties.Felt,
			Tsunami:   f.Properties.Tsunami != 0,
			DetailURL: f.Properties.URL,
		}
		if len(f.Geometry.Coordinates) == 3 {
			q.DepthKm = f.Geometry.Coordinates[2]
		}
		payload.Events = append(payload.Events, q)
		payload.MaxMagnitude = math.Max(payload.MaxMagnitude, mag)
	}
	payload.Severity = string(MagnitudeSeverity(payload.MaxMagnitude))
	return payload, nil
}

// MagnitudeSeverity maps an earthquake magnitude to a risk label.
func MagnitudeSeverity(m float64) domain.Severity {
	switch {
	case m >= 6:
		return domain.SeveritySevere
	case m >= 5:
		return domain.SeverityHigh
	case m >= 4:
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}

type quakeResponse struct {
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			Mag     *float64 `json:"mag"`
			Place   string   `json:"place"`
			Time    int64    `json:"time"`
			Felt    int      `json:"felt"`
			Tsunami int      `json:"tsunami"`
			URL     string   `json:"url"`
		} `json:"properties"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
		} `json:"geometry"`
	} `json:"features"`
}
