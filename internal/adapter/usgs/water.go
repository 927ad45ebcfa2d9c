// Package usgs reads river gauges from USGS Water Services and earthquakes
// from the USGS FDSN event service.
package usgs

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/civic-risk-service/internal/adapter/upstream"
	"github.com/couchcryptid/civic-risk-service/internal/config"
	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

const (
	WaterSource = "USGS Water Services API"

	paramStage     = "00065"
	paramDischarge = "00060"
)

// WaterClient fetches instantaneous gauge values inside the flood bounding box.
type WaterClient struct {
	http    *upstream.Client
	baseURL string
	bbox    string
}

// NewWaterClient creates a gauge client for the municipality's bounding box.
func NewWaterClient(hc *upstream.Client, place config.Municipality) *WaterClient {
	return &WaterClient{
		http:    hc,
		baseURL: "https://waterservices.usgs.gov/nwis/iv/",
		bbox:    place.FloodBBox,
	}
}

// Flood returns the latest stage and discharge per active stream gauge.
func (c *WaterClient) Flood(ctx context.Context) (*domain.FloodPayload, error) {
	params := url.Values{
		"format":      {"json"},
		"bBox":        {c.bbox},
		"parameterCd": {paramStage + "," + paramDischarge},
		"siteType":    {"ST"},
		"siteStatus":  {"active"},
	}

	var resp ivResponse
	if err := c.http.GetJSON(ctx, c.baseURL, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("usgs water: %w", err)
	}

	sites := make(map[string]*domain.Gauge)
	var order []string
	for _, ts := range resp.Value.TimeSeries {
		if len(ts.SourceInfo.SiteCode) == 0 || ts.SourceInfo.SiteCode[0].Value == "" {
			continue
		}
		code := ts.SourceInfo.SiteCode[0].Value
		g, ok := sites[code]
		if !ok {
			g = &domain.Gauge{
				SiteCode:  code,
				SiteName:  ts.SourceInfo.SiteName,
				Latitude:  ts.SourceInfo.GeoLocation.GeogLocation.Latitude,
				Longitude: ts.SourceInfo.GeoLocation.GeogLocation.Longitude,
			}
			sites[code] = g
			order = append(order, code)
		}

		latest, ok := ts.latest()
		if !ok {
			continue
		}
		reading := parseNumeric(latest.Value)
		switch ts.variableCode() {
		case paramStage:
			g.StageFeet = reading
		case paramDischarge:
			g.DischargeCfs = reading
		}
		if at, err := time.Parse(time.RFC3339, latest.DateTime); err == nil {
			at = at.UTC()
			g.ObservedAt = &at
		}
	}

	sort.Strings(order)
	payload := &domain.FloodPayload{
		Source:      WaterSource,
		Gauges:      make([]domain.Gauge, 0, len(order)),
		HighestRisk: string(domain.SeverityUnknown),
	}
	for _, code := range order {
		g := sites[code]
		g.RiskLevel = string(ClassifyGauge(g.StageFeet))
		payload.HighestRisk = string(domain.MaxSeverity(domain.Severity(payload.HighestRisk), domain.Severity(g.RiskLevel)))
		payload.Gauges = append(payload.Gauges, *g)
	}
	return payload, nil
}

// ClassifyGauge maps a gauge stage in feet to a flood risk label.
func ClassifyGauge(stageFeet *float64) domain.Severity {
	if stageFeet == nil {
		return domain.SeverityUnknown
	}
	switch s := *stageFeet; {
	case s >= 30:
		return domain.SeveritySevere
	case s >= 24:
		return domain.SeverityHigh
	case s >= 18:
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}

func parseNumeric(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Water Services instantaneous-values response types.

type ivResponse struct {
	Value struct {
		TimeSeries []timeSeries `json:"timeSeries"`
	} `json:"value"`
}

type timeSeries struct {
	SourceInfo struct {
		SiteName string `json:"siteName"`
		SiteCode []struct {
			Value string `json:"value"`
		} `json:"siteCode"`
		GeoLocation struct {
			GeogLocation struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"geogLocation"`
		} `json:"geoLocation"`
	} `json:"sourceInfo"`
	Variable struct {
		VariableCode []struct {
			Value string `json:"value"`
		} `json:"variableCode"`
	} `json:"variable"`
	Values []struct {
		Value []ivValue `json:"value"`
	} `json:"values"`
}

type ivValue struct {
	Value    string `json:"value"`
	DateTime string `json:"dateTime"`
}

func (ts timeSeries) variableCode() string {
	if len(ts.Variable.VariableCode) == 0 {
		return ""
	}
	return ts.Variable.VariableCode[0].Value
}

func (ts timeSeries) latest() (ivValue, bool) {
	if len(ts.Values) == 0 || len(ts.Values[0].Value) == 0 {
		return ivValue{}, false
	}
	v := ts.Values[0].Value
	return v[len(v)-1], true
}
