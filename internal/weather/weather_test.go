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

func TestNewServiceProviderSelection(t *testing.T) {
	t.Run("openmeteo", func(t *testing.T) {
		svc, err := NewService(createTestSettings(t, "openmeteo"))
		require.NoError(t, err)
		assert.True(t, svc.Enabled())
	})

	t.Run("none", func(t *testing.T) {
		svc, err := NewService(createTestSettings(t, "none"))
		require.NoError(t, err)
		assert.False(t, svc.Enabled())
	})

	t.Run("empty", func(t *testing.T) {
		svc, err := NewService(createTestSettings(t, ""))
		require.NoError(t, err)
		assert.False(t, svc.Enabled())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewService(createTestSettings(t, "weathervane"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "weathervane")
	})
}

func TestDisabledServiceFetchDay(t *testing.T) {
	svc, err := NewService(createTestSettings(t, "none"))
	require.NoError(t, err)

	_, err = svc.FetchDay(t.Context(), time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, errors.IsEnrichmentUnavailable(err), "disabled provider should signal unavailability, got %v", err)
}

func TestServiceFetchDayMemoizesPerDay(t *testing.T) {
	setupHTTPMock(t)
	registerArchiveResponder(t, 200, openMeteoSuccessResponse())

	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	svc, err := NewService(createTestSettings(t, "openmeteo"))
	require.NoError(t, err)

	// Two sightings on the same day: morning and evening captures
	morning := time.Date(2026, 8, 10, 7, 15, 0, 0, time.UTC)
	evening := time.Date(2026, 8, 10, 19, 45, 0, 0, time.UTC)

	first, err := svc.FetchDay(t.Context(), morning)
	require.NoError(t, err)
	second, err := svc.FetchDay(t.Context(), evening)
	require.NoError(t, err)

	assert.Equal(t, first.TempMaxC, second.TempMaxC)
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "same-day lookups should share one provider call")
}

func TestServiceFetchDayDoesNotCacheFailures(t *testing.T) {
	setupHTTPMock(t)
	registerArchiveResponder(t, 200, openMeteoEmptyResponse())

	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	svc, err := NewService(createTestSettings(t, "openmeteo"))
	require.NoError(t, err)

	date := time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)
	_, err = svc.FetchDay(t.Context(), date)
	require.Error(t, err)

	// A later call for the same day goes back to the provider
	httpmock.Reset()
	registerArchiveResponder(t, 200, openMeteoSuccessResponse())

	day, err := svc.FetchDay(t.Context(), date)
	require.NoError(t, err)
	assert.Equal(t, "Slight rain", day.Conditions)
}
