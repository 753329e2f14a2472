package weather

import (
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkivisto/fieldlog/internal/errors"
)

func TestConditionsLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "Clear sky"},
		{2, "Partly cloudy"},
		{45, "Foggy"},
		{61, "Slight rain"},
		{82, "Violent rain showers"},
		{99, "Thunderstorm with heavy hail"},
		{42, "Unknown"},
		{-1, "Unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ConditionsLabel(tt.code), "code %d", tt.code)
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{
			name: "same day",
			from: time.Date(2026, 8, 15, 23, 50, 0, 0, time.UTC),
			to:   time.Date(2026, 8, 15, 0, 10, 0, 0, time.UTC),
			want: 0,
		},
		{
			name: "one week",
			from: time.Date(2026, 8, 8, 12, 0, 0, 0, time.UTC),
			to:   time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
			want: 7,
		},
		{
			name: "future date is negative",
			from: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			to:   time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			want: -5,
		},
		{
			name: "across a year boundary",
			from: time.Date(2025, 12, 30, 6, 0, 0, 0, time.UTC),
			to:   time.Date(2026, 1, 2, 6, 0, 0, 0, time.UTC),
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, daysBetween(tt.from, tt.to))
		})
	}
}

func TestEndpointForRecentVsArchive(t *testing.T) {
	settings := createTestSettings(t, "openmeteo")

	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{
			name: "today uses forecast",
			date: time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC),
			want: settings.Weather.OpenMeteo.ForecastEndpoint,
		},
		{
			name: "seven days ago still forecast",
			date: time.Date(2026, 8, 16, 9, 0, 0, 0, time.UTC),
			want: settings.Weather.OpenMeteo.ForecastEndpoint,
		},
		{
			name: "eight days ago uses archive",
			date: time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC),
			want: settings.Weather.OpenMeteo.ArchiveEndpoint,
		},
		{
			name: "last year uses archive",
			date: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			want: settings.Weather.OpenMeteo.ArchiveEndpoint,
		},
		{
			name: "future date uses forecast",
			date: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
			want: settings.Weather.OpenMeteo.ForecastEndpoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, endpointFor(settings, tt.date))
		})
	}
}

func TestOpenMeteoFetchDaySuccess(t *testing.T) {
	setupHTTPMock(t)
	registerArchiveResponder(t, 200, openMeteoSuccessResponse())

	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	settings := createTestSettings(t, "openmeteo")
	provider := NewOpenMeteoProvider()

	date := time.Date(2026, 8, 15, 14, 30, 0, 0, time.UTC)
	day, err := provider.FetchDay(t.Context(), settings, date)
	require.NoError(t, err)
	require.NotNil(t, day)

	assert.InDelta(t, 21.4, day.TempMaxC, 0.001)
	assert.InDelta(t, 12.1, day.TempMinC, 0.001)
	assert.InDelta(t, 0.3, day.PrecipitationMM, 0.001)
	assert.Equal(t, 61, day.Code)
	assert.Equal(t, "Slight rain", day.Conditions)
	assert.Equal(t, date, day.Date)
}

func TestOpenMeteoFetchDayRequestsSingleDay(t *testing.T) {
	setupHTTPMock(t)
	registerForecastResponder(t, 200, openMeteoSuccessResponse())

	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 8, 16, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	settings := createTestSettings(t, "openmeteo")
	provider := NewOpenMeteoProvider()

	date := time.Date(2026, 8, 15, 14, 30, 0, 0, time.UTC)
	_, err := provider.FetchDay(t.Context(), settings, date)
	require.NoError(t, err)

	info := httpmock.GetCallCountInfo()
	require.Len(t, info, 1)
	for key, count := range info {
		assert.Equal(t, 1, count, "expected exactly one call to %s", key)
	}
}

func TestOpenMeteoFetchDayNoData(t *testing.T) {
	setupHTTPMock(t)
	registerArchiveResponder(t, 200, openMeteoEmptyResponse())

	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	settings := createTestSettings(t, "openmeteo")
	provider := NewOpenMeteoProvider()

	date := time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)
	day, err := provider.FetchDay(t.Context(), settings, date)
	require.Error(t, err)
	assert.Nil(t, day)
	assert.True(t, errors.IsEnrichmentUnavailable(err), "expected enrichment-unavailable error, got %v", err)
}

func TestOpenMeteoFetchDayNullTemperature(t *testing.T) {
	setupHTTPMock(t)
	registerArchiveResponder(t, 200, openMeteoNullTemperatureResponse())

	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	settings := createTestSettings(t, "openmeteo")
	provider := NewOpenMeteoProvider()

	date := time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)
	_, err := provider.FetchDay(t.Context(), settings, date)
	require.Error(t, err)
	assert.True(t, errors.IsEnrichmentUnavailable(err), "expected enrichment-unavailable error, got %v", err)
}

func TestOpenMeteoFetchDayMalformedJSON(t *testing.T) {
	setupHTTPMock(t)
	registerArchiveResponder(t, 200, `{"daily": [not json`)

	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	settings := createTestSettings(t, "openmeteo")
	provider := NewOpenMeteoProvider()

	date := time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)
	_, err := provider.FetchDay(t.Context(), settings, date)
	require.Error(t, err)
	assert.False(t, errors.IsEnrichmentUnavailable(err), "parse failures are not an availability signal")
}

func TestOpenMeteoFetchDayServerErrorExhaustsRetries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping retry exhaustion test in short mode")
	}

	setupHTTPMock(t)
	registerArchiveResponder(t, 500, `{"error": true, "reason": "out of teapots"}`)

	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	settings := createTestSettings(t, "openmeteo")
	provider := NewOpenMeteoProvider()

	date := time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)
	_, err := provider.FetchDay(t.Context(), settings, date)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-OK")

	info := httpmock.GetCallCountInfo()
	for key, count := range info {
		assert.Equal(t, MaxRetries, count, "expected %d calls to %s", MaxRetries, key)
	}
}

