// Package openmeteo reads the Open-Meteo forecast and air-quality APIs.
package openmeteo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/couchcryptid/civic-risk-service/internal/adapter/upstream"
	"github.com/couchcryptid/civic-risk-service/internal/config"
	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

const (
	WeatherSource    = "Open-Meteo Weather API"
	AirQualitySource = "Open-Meteo Air Quality API"
	AlertsSource     = "Open-Meteo forecast-derived alerts"

	forecastDays = 7
)

// Client implements the weather, forecast-alert and air-quality sources.
type Client struct {
	http          *upstream.Client
	forecastURL   string
	airQualityURL string
	place         config.Municipality
}

// NewClient creates an Open-Meteo client for the given municipality.
func NewClient(hc *upstream.Client, place config.Municipality) *Client {
	return &Client{
		http:          hc,
		forecastURL:   "https://api.open-meteo.com/v1/forecast",
		airQualityURL: "https://air-quality-api.open-meteo.com/v1/air-quality",
		place:         place,
	}
}

// Weather returns current conditions and the seven-day forecast.
func (c *Client) Weather(ctx context.Context) (*domain.WeatherPayload, error) {
	params := c.baseParams()
	params.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,wind_speed_10m,weather_code")
	params.Set("daily", dailyFields)

	var resp forecastResponse
	if err := c.http.GetJSON(ctx, c.forecastURL, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("open-meteo forecast: %w", err)
	}

	tz := resp.Timezone
	if tz == "" {
		tz = c.place.Timezone
	}
	return &domain.WeatherPayload{
		Source: WeatherSource,
		Location: domain.Location{
			Name:      c.place.Name,
			Latitude:  c.place.Latitude,
			Longitude: c.place.Longitude,
			Timezone:  tz,
		},
		Current: domain.CurrentWeather{
			TemperatureC:         resp.Current.Temperature,
			ApparentTemperatureC: resp.Current.ApparentTemperature,
			RelativeHumidity:     resp.Current.RelativeHumidity,
			WindSpeed:            resp.Current.WindSpeed,
			WeatherCode:          resp.Current.WeatherCode,
		},
		TemperatureUnit: orDefault(resp.CurrentUnits.Temperature, "°C"),
		WindSpeedUnit:   orDefault(resp.CurrentUnits.WindSpeed, "km/h"),
		Daily:           resp.Daily.forecast(),
	}, nil
}

// ForecastAlerts derives watches and warnings from the daily forecast.
func (c *Client) ForecastAlerts(ctx context.Context) ([]domain.Alert, error) {
	params := c.baseParams()
	params.Set("daily", dailyFields)

	var resp forecastResponse
	if err := c.http.GetJSON(ctx, c.forecastURL, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("open-meteo forecast alerts: %w", err)
	}
	return DeriveAlerts(resp.Daily.forecast(),
		orDefault(resp.DailyUnits.WindSpeedMax, "km/h"),
		orDefault(resp.DailyUnits.TemperatureMax, "°C"),
	), nil
}

// AirQuality returns the current pollutant readings and their AQI category.
func (c *Client) AirQuality(ctx context.Context) (*domain.AirQualityPayload, error) {
	params := c.baseParams()
	params.Set("current", "us_aqi,pm2_5,pm10,ozone,uv_index")

	var resp airQualityResponse
	if err := c.http.GetJSON(ctx, c.airQualityURL, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("open-meteo air quality: %w", err)
	}

	return &domain.AirQualityPayload{
		Source: AirQualitySource,
		Current: domain.AirQualityCurrent{
			USAQI:   resp.Current.USAQI,
			PM25:    resp.Current.PM25,
			PM10:    resp.Current.PM10,
			Ozone:   resp.Current.Ozone,
			UVIndex: resp.Current.UVIndex,
		},
		Classification: ClassifyAQI(resp.Current.USAQI),
	}, nil
}

func (c *Client) baseParams() url.Values {
	return url.Values{
		"latitude":      {strconv.FormatFloat(c.place.Latitude, 'f', -1, 64)},
		"longitude":     {strconv.FormatFloat(c.place.Longitude, 'f', -1, 64)},
		"timezone":      {c.place.Timezone},
		"forecast_days": {strconv.Itoa(forecastDays)},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
