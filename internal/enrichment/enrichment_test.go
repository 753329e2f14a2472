package enrichment

import (
	"regexp"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/weather"
)

// createTestSettings builds settings for a Helsinki observer with the
// given weather provider.
func createTestSettings(t *testing.T, provider string) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Location = conf.LocationSettings{
		Latitude:  60.1699,
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
	return settings
}

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

// freezeWeatherClock pins the weather package clock so the capture date
// resolves to the archive endpoint regardless of when tests run.
func freezeWeatherClock(t *testing.T) {
	t.Helper()
	weather.SetClock(clockwork.NewFakeClockAt(time.Date(2026, time.September, 30, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { weather.SetClock(nil) })
}

// clockTimePattern matches the HH:MM sun event format.
var clockTimePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

func TestEnrichWithWeatherDisabled(t *testing.T) {
	enricher, err := New(createTestSettings(t, "none"))
	require.NoError(t, err)
	assert.False(t, enricher.WeatherEnabled())

	capturedAt := time.Date(2026, time.August, 15, 14, 30, 0, 0, time.UTC)
	result := enricher.Enrich(t.Context(), capturedAt)

	// Disabled provider is a configuration choice, not a degradation
	assert.Nil(t, result.Weather)
	assert.Empty(t, result.Warnings)

	require.NotNil(t, result.Celestial)
	assert.NotEmpty(t, result.Celestial.MoonPhase)
	assert.GreaterOrEqual(t, result.Celestial.MoonIllumination, 0.0)
	assert.LessOrEqual(t, result.Celestial.MoonIllumination, 1.0)
	assert.Regexp(t, clockTimePattern, result.Celestial.Sunrise)
	assert.Regexp(t, clockTimePattern, result.Celestial.Sunset)
}

func TestEnrichMapsWeatherFields(t *testing.T) {
	setupHTTPMock(t)
	freezeWeatherClock(t)
	httpmock.RegisterResponder("GET", `=~^https://archive-api\.open-meteo\.com/v1/archive`,
		httpmock.NewStringResponder(200, `{
  "daily": {
    "time": ["2026-08-15"],
    "temperature_2m_max": [21.4],
    "temperature_2m_min": [12.1],
    "precipitation_sum": [0.3],
    "weather_code": [61]
  }
}`))

	enricher, err := New(createTestSettings(t, "openmeteo"))
	require.NoError(t, err)
	assert.True(t, enricher.WeatherEnabled())

	// Far enough in the past to hit the archive endpoint
	capturedAt := time.Date(2026, time.August, 15, 14, 30, 0, 0, time.UTC)
	result := enricher.Enrich(t.Context(), capturedAt)

	require.NotNil(t, result.Weather)
	assert.InDelta(t, 21.4, result.Weather.TempMaxC, 0.001)
	assert.InDelta(t, 12.1, result.Weather.TempMinC, 0.001)
	assert.InDelta(t, 0.3, result.Weather.PrecipitationMM, 0.001)
	assert.Equal(t, "Slight rain", result.Weather.Conditions)
	assert.Empty(t, result.Warnings)
	require.NotNil(t, result.Celestial)
}

func TestEnrichDegradesOnWeatherFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("retry loop sleeps between attempts")
	}

	setupHTTPMock(t)
	freezeWeatherClock(t)
	httpmock.RegisterResponder("GET", `=~^https://archive-api\.open-meteo\.com/v1/archive`,
		httpmock.NewStringResponder(500, "upstream broken"))

	enricher, err := New(createTestSettings(t, "openmeteo"))
	require.NoError(t, err)

	capturedAt := time.Date(2026, time.August, 15, 14, 30, 0, 0, time.UTC)
	result := enricher.Enrich(t.Context(), capturedAt)

	assert.Nil(t, result.Weather)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "weather unavailable for 2026-08-15")

	// Celestial data survives a weather outage
	require.NotNil(t, result.Celestial)
	assert.NotEmpty(t, result.Celestial.MoonPhase)
	assert.Regexp(t, clockTimePattern, result.Celestial.Sunrise)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(createTestSettings(t, "weathergremlin"))
	require.Error(t, err)
}

func TestNewRejectsBadTimezone(t *testing.T) {
	settings := createTestSettings(t, "none")
	settings.Location.Timezone = "Not/AZone"
	_, err := New(settings)
	require.Error(t, err)
}

func TestEnrichUsesJournalTimezone(t *testing.T) {
	settings := createTestSettings(t, "none")
	settings.Location.Timezone = "Europe/Helsinki"

	enricher, err := New(settings)
	require.NoError(t, err)

	// 23:30 UTC on the 14th is already the 15th in Helsinki
	capturedAt := time.Date(2026, time.August, 14, 23, 30, 0, 0, time.UTC)
	result := enricher.Enrich(t.Context(), capturedAt)

	require.NotNil(t, result.Celestial)
	assert.Regexp(t, clockTimePattern, result.Celestial.Sunrise)
}
