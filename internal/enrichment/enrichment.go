// Package enrichment assembles the environment snapshot stored on each
// sighting: the capture day's weather summary and the moon and sun state.
// Enrichment never blocks journaling; anything unavailable degrades to a
// null field plus a warning the caller can show.
package enrichment

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/tkivisto/fieldlog/internal/celestial"
	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/logging"
	"github.com/tkivisto/fieldlog/internal/sighting"
	"github.com/tkivisto/fieldlog/internal/weather"
)

// Package-level logger for the enrichment service
var (
	serviceLogger   *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	initialLevel := slog.LevelInfo
	serviceLevelVar.Set(initialLevel)

	serviceLogger, _, err = logging.NewFileLogger("logs/enrichment.log", "enrichment", serviceLevelVar)
	if err != nil {
		logging.Error("Failed to initialize enrichment file logger", "error", err)
		// Fallback to a disabled logger (writes to io.Discard) but respects the level var
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		serviceLogger = slog.New(fbHandler).With("service", "enrichment")
	}
}

// unknownTime is stored for sun events the calculator cannot produce,
// such as sunrise above the polar circle in midsummer.
const unknownTime = "Unknown"

// Result is the environment snapshot for one capture time. Weather is nil
// when the provider is disabled or the day could not be fetched; Celestial
// is always present because the moon arithmetic needs no external data.
// Warnings carries human-readable notes about anything that degraded.
type Result struct {
	Weather   *sighting.Weather
	Celestial *sighting.Celestial
	Warnings  []string
}

// Enricher computes environment snapshots for the configured observer
// position and timezone.
type Enricher struct {
	weather   *weather.Service
	celestial *celestial.Calculator
	location  *time.Location
}

// New creates an Enricher from settings. The timezone and weather provider
// must already pass configuration validation.
func New(settings *conf.Settings) (*Enricher, error) {
	location, err := settings.TimeLocation()
	if err != nil {
		return nil, errors.New(err).
			Component("enrichment").
			Category(errors.CategoryConfiguration).
			Context("timezone", settings.Location.Timezone).
			Build()
	}

	weatherService, err := weather.NewService(settings)
	if err != nil {
		return nil, err
	}

	return &Enricher{
		weather:   weatherService,
		celestial: celestial.NewCalculator(settings.Location.Latitude, settings.Location.Longitude, location),
		location:  location,
	}, nil
}

// WeatherEnabled reports whether a live weather provider is configured.
func (e *Enricher) WeatherEnabled() bool {
	return e.weather.Enabled()
}

// Enrich builds the environment snapshot for a capture time. The weather
// summary describes the whole capture day; sun and moon values are
// computed for the same day in the journal timezone.
func (e *Enricher) Enrich(ctx context.Context, capturedAt time.Time) Result {
	local := capturedAt.In(e.location)

	result := Result{
		Celestial: e.celestialFor(local),
	}

	if !e.weather.Enabled() {
		serviceLogger.Debug("Weather provider disabled, skipping weather enrichment",
			"captured_at", local.Format(time.RFC3339))
		return result
	}

	day, err := e.weather.FetchDay(ctx, local)
	if err != nil {
		warning := "weather unavailable for " + local.Format(time.DateOnly) + ": " + err.Error()
		result.Warnings = append(result.Warnings, warning)
		serviceLogger.Warn("Weather enrichment degraded",
			"date", local.Format(time.DateOnly),
			"error", err)
		return result
	}

	result.Weather = &sighting.Weather{
		TempMaxC:        day.TempMaxC,
		TempMinC:        day.TempMinC,
		PrecipitationMM: day.PrecipitationMM,
		Conditions:      day.Conditions,
	}
	return result
}

// celestialFor computes the moon and sun block for a local capture time.
func (e *Enricher) celestialFor(local time.Time) *sighting.Celestial {
	moon := e.celestial.MoonPhase(local)

	out := &sighting.Celestial{
		MoonPhase:        moon.Phase,
		MoonIllumination: moon.Illumination,
		Sunrise:          unknownTime,
		Sunset:           unknownTime,
	}

	sun, err := e.celestial.SunTimes(local)
	if err != nil {
		serviceLogger.Warn("Sun times unavailable",
			"date", local.Format(time.DateOnly),
			"error", err)
		return out
	}

	out.Sunrise = sun.Sunrise.Format("15:04")
	out.Sunset = sun.Sunset.Format("15:04")
	return out
}
