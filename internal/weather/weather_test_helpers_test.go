package weather

import (
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/tkivisto/fieldlog/internal/conf"
)

// createTestSettings creates test settings with configurable provider.
func createTestSettings(t *testing.T, provider string, opts ...func(*conf.Settings)) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Location = conf.LocationSettings{
		Latitude:  60.1699, // Helsinki
		Longitude: 24.9384,
		Timezone:  "UTC",
	}
	settings.Weather = conf.WeatherSettings{
		Provider: provider,
		OpenMeteo: conf.OpenMeteoSettings{
			ForecastEndpoint: "https://api.open-meteo.com/v1/forecast",
			ArchiveEndpoint:  "https://archive-api.open-meteo.com/v1/archive",
			Timeout:          15,
		},
	}

	for _, opt := range opts {
		opt(settings)
	}

	return settings
}

// setupHTTPMock activates httpmock and returns a cleanup function.
func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

// openMeteoSuccessResponse returns a valid Open-Meteo daily response JSON string.
func openMeteoSuccessResponse() string {
	return `{
  "latitude": 60.17,
  "longitude": 24.94,
  "generationtime_ms": 0.251,
  "utc_offset_seconds": 0,
  "timezone": "UTC",
  "timezone_abbreviation": "UTC",
  "elevation": 10.0,
  "daily_units": {
    "time": "iso8601",
    "temperature_2m_max": "°C",
    "temperature_2m_min": "°C",
    "precipitation_sum": "mm",
    "weather_code": "wmo code"
  },
  "daily": {
    "time": ["2026-08-15"],
    "temperature_2m_max": [21.4],
    "temperature_2m_min": [12.1],
    "precipitation_sum": [0.3],
    "weather_code": [61]
  }
}`
}

// openMeteoEmptyResponse returns an Open-Meteo response with no daily data.
func openMeteoEmptyResponse() string {
	return `{
  "latitude": 60.17,
  "longitude": 24.94,
  "timezone": "UTC",
  "daily_units": {},
  "daily": {
    "time": [],
    "temperature_2m_max": [],
    "temperature_2m_min": [],
    "precipitation_sum": [],
    "weather_code": []
  }
}`
}

// openMeteoNullTemperatureResponse returns a response where the provider has
// the day but no temperature reading for it.
func openMeteoNullTemperatureResponse() string {
	return `{
  "latitude": 60.17,
  "longitude": 24.94,
  "timezone": "UTC",
  "daily": {
    "time": ["2026-08-15"],
    "temperature_2m_max": [null],
    "temperature_2m_min": [null],
    "precipitation_sum": [null],
    "weather_code": [null]
  }
}`
}

// registerForecastResponder registers a mock responder for the forecast endpoint.
func registerForecastResponder(t *testing.T, statusCode int, body string) {
	t.Helper()

	httpmock.RegisterResponder("GET", `=~^https://api\.open-meteo\.com/v1/forecast`,
		httpmock.NewStringResponder(statusCode, body))
}

// registerArchiveResponder registers a mock responder for the archive endpoint.
func registerArchiveResponder(t *testing.T, statusCode int, body string) {
	t.Helper()

	httpmock.RegisterResponder("GET", `=~^https://archive-api\.open-meteo\.com/v1/archive`,
		httpmock.NewStringResponder(statusCode, body))
}
