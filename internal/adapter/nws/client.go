// Package nws reads active alerts from the National Weather Service API.
package nws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/couchcryptid/civic-risk-service/internal/adapter/upstream"
	"github.com/couchcryptid/civic-risk-service/internal/config"
	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

// Source is the attribution name for official alerts.
const Source = "NWS/NOAA Alerts API"

// Client fetches active alerts for the municipality's point.
type Client struct {
	http    *upstream.Client
	baseURL string
	place   config.Municipality
}

// NewClient creates an NWS alerts client.
func NewClient(hc *upstream.Client, place config.Municipality) *Client {
	return &Client{
		http:    hc,
		baseURL: "https://api.weather.gov",
		place:   place,
	}
}

// ActiveAlerts returns the alerts currently in effect.
func (c *Client) ActiveAlerts(ctx context.Context) ([]domain.Alert, error) {
	params := url.Values{
		"point": {fmt.Sprintf("%.4f,%.4f", c.place.Latitude, c.place.Longitude)},
	}
	headers := http.Header{"Accept": {"application/geo+json"}}

	var resp alertsResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/alerts/active", params, headers, &resp); err != nil {
		return nil, fmt.Errorf("nws alerts: %w", err)
	}

	alerts := make([]domain.Alert, 0, len(resp.Features))
	for _, f := range resp.Features {
		p := f.Properties
		detail := p.Headline
		if detail == "" {
			detail = firstLine(p.Description)
		}
		alerts = append(alerts, domain.Alert{
			Type:     p.Event,
			Level:    strings.ToLower(p.Severity),
			Severity: string(NormalizeSeverity(p.Severity)),
			Date:     p.Effective,
			Detail:   detail,
			Origin:   "nws",
		})
	}
	return alerts, nil
}

// NormalizeSeverity maps the CAP severity vocabulary onto risk labels.
func NormalizeSeverity(capSeverity string) domain.Severity {
	switch strings.ToLower(capSeverity) {
	case "extreme":
		return domain.SeveritySevere
	case "severe":
		return domain.SeverityHigh
	case "moderate":
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

type alertsResponse struct {
	Features []struct {
		Properties struct {
			Event       string `json:"event"`
			Severity    string `json:"severity"`
			Headline    string `json:"headline"`
			Description string `json:"description"`
			Effective   string `json:"effective"`
		} `json:"properties"`
	} `json:"features"`
}
