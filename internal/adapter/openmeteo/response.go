package openmeteo

import "github.com/couchcryptid/civic-risk-service/internal/domain"

// Open-Meteo API response types.

const dailyFields = "weather_code,temperature_2m_max,temperature_2m_min,precipitation_probability_max,wind_speed_10m_max"

type forecastResponse struct {
	Timezone string `json:"timezone"`
	Current  struct {
		Temperature         *float64 `json:"temperature_2m"`
		ApparentTemperature *float64 `json:"apparent_temperature"`
		RelativeHumidity    *float64 `json:"relative_humidity_2m"`
		WindSpeed           *float64 `json:"wind_speed_10m"`
		WeatherCode         *int     `json:"weather_code"`
	} `json:"current"`
	CurrentUnits struct {
		Temperature string `json:"temperature_2m"`
		WindSpeed   string `json:"wind_speed_10m"`
	} `json:"current_units"`
	Daily      dailyBlock `json:"daily"`
	DailyUnits struct {
		TemperatureMax string `json:"temperature_2m_max"`
		WindSpeedMax   string `json:"wind_speed_10m_max"`
	} `json:"daily_units"`
}

// dailyBlock is column-oriented: index i of every slice describes Time[i].
type dailyBlock struct {
	Time             []string   `json:"time"`
	WeatherCode      []*int     `json:"weather_code"`
	TemperatureMax   []*float64 `json:"temperature_2m_max"`
	TemperatureMin   []*float64 `json:"temperature_2m_min"`
	PrecipitationMax []*float64 `json:"precipitation_probability_max"`
	WindSpeedMax     []*float64 `json:"wind_speed_10m_max"`
}

func (d dailyBlock) forecast() []domain.DailyForecast {
	days := make([]domain.DailyForecast, 0, len(d.Time))
	for i, date := range d.Time {
		days = append(days, domain.DailyForecast{
			Date:                 date,
			WeatherCode:          at(d.WeatherCode, i),
			TempMaxC:             at(d.TemperatureMax, i),
			TempMinC:             at(d.TemperatureMin, i),
			PrecipProbabilityMax: at(d.PrecipitationMax, i),
			WindSpeedMax:         at(d.WindSpeedMax, i),
		})
	}
	return days
}

func at[T any](s []*T, i int) *T {
	if i < len(s) {
		return s[i]
	}
	return nil
}

type airQualityResponse struct {
	Current struct {
		USAQI   *float64 `json:"us_aqi"`
		PM25    *float64 `json:"pm2_5"`
		PM10    *float64 `json:"pm10"`
		Ozone   *float64 `json:"ozone"`
		UVIndex *float64 `json:"uv_index"`
	} `json:"current"`
}
