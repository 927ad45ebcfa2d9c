// Package adapter assembles the upstream feed clients into collector sources.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/civic-risk-service/internal/adapter/nws"
	"github.com/couchcryptid/civic-risk-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/civic-risk-service/internal/adapter/scrape"
	"github.com/couchcryptid/civic-risk-service/internal/adapter/socrata"
	"github.com/couchcryptid/civic-risk-service/internal/adapter/upstream"
	"github.com/couchcryptid/civic-risk-service/internal/adapter/usgs"
	"github.com/couchcryptid/civic-risk-service/internal/config"
	"github.com/couchcryptid/civic-risk-service/internal/domain"
	"github.com/couchcryptid/civic-risk-service/internal/pipeline"
)

// Clients holds one client per upstream feed.
type Clients struct {
	Place     config.Municipality
	OpenMeteo *openmeteo.Client
	NWS       *nws.Client
	Water     *usgs.WaterClient
	Quakes    *usgs.QuakeClient
	Socrata   *socrata.Client
	Scrape    *scrape.Client
}

// NewClients builds every feed client for the configured municipality.
func NewClients(cfg *config.Config, logger *slog.Logger) Clients {
	hc := upstream.NewClient(cfg.SourceTimeout, logger)
	place := cfg.Municipality
	return Clients{
		Place:     place,
		OpenMeteo: openmeteo.NewClient(hc, place),
		NWS:       nws.NewClient(hc, place),
		Water:     usgs.NewWaterClient(hc, place),
		Quakes:    usgs.NewQuakeClient(hc, place),
		Socrata:   socrata.NewClient(hc, place),
		Scrape:    scrape.NewClient(hc, cfg.BrightDataAPIKey, logger),
	}
}

// Sources returns one collector source per domain, in dashboard order.
func Sources(c Clients) []pipeline.Source {
	return []pipeline.Source{
		{Domain: domain.DomainWeather, Name: "open-meteo-forecast", Fetch: func(ctx context.Context) (domain.Payload, error) {
			return c.OpenMeteo.Weather(ctx)
		}},
		{Domain: domain.DomainAlerts, Name: "nws-alerts", Fetch: AlertsFetch(c.NWS.ActiveAlerts, c.OpenMeteo.ForecastAlerts)},
		{Domain: domain.DomainAirQuality, Name: "open-meteo-air-quality", Fetch: func(ctx context.Context) (domain.Payload, error) {
			return c.OpenMeteo.AirQuality(ctx)
		}},
		{Domain: domain.DomainFlood, Name: "usgs-water", Fetch: func(ctx context.Context) (domain.Payload, error) {
			return c.Water.Flood(ctx)
		}},
		{Domain: domain.DomainSeismic, Name: "usgs-earthquakes", Fetch: func(ctx context.Context) (domain.Payload, error) {
			return c.Quakes.Seismic(ctx)
		}},
		{Domain: domain.DomainIncidents, Name: "socrata-incidents", Fetch: func(ctx context.Context) (domain.Payload, error) {
			return c.Socrata.Incidents(ctx)
		}},
		{Domain: domain.DomainNews, Name: "city-and-news-scrape", Fetch: func(ctx context.Context) (domain.Payload, error) {
			return c.Scrape.News(ctx, c.Place)
		}},
	}
}

// AlertFunc lists active alerts from one provider.
type AlertFunc func(ctx context.Context) ([]domain.Alert, error)

// AlertsFetch merges official alerts with forecast-derived ones. Both providers
// are queried concurrently and the fetch fails only when both fail. Official
// alerts come first.
func AlertsFetch(official, forecast AlertFunc) pipeline.FetchFunc {
	return func(ctx context.Context) (domain.Payload, error) {
		var (
			wg                 sync.WaitGroup
			officialAlerts     []domain.Alert
			forecastAlerts     []domain.Alert
			officialErr, fcErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			officialAlerts, officialErr = official(ctx)
		}()
		go func() {
			defer wg.Done()
			forecastAlerts, fcErr = forecast(ctx)
		}()
		wg.Wait()

		if officialErr != nil && fcErr != nil {
			return nil, fmt.Errorf("alerts: %w", errors.Join(officialErr, fcErr))
		}

		source := nws.Source
		if officialErr != nil {
			source = openmeteo.AlertsSource
		}
		alerts := make([]domain.Alert, 0, len(officialAlerts)+len(forecastAlerts))
		alerts = append(alerts, officialAlerts...)
		alerts = append(alerts, forecastAlerts...)
		return &domain.AlertsPayload{Source: source, Alerts: alerts}, nil
	}
}
