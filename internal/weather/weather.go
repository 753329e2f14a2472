// Package weather fetches daily weather summaries for sighting enrichment.
package weather

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/patrickmn/go-cache"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/logging"
)

// Package-level logger for weather service
var (
	weatherLogger   *slog.Logger
	weatherLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	initialLevel := slog.LevelInfo
	weatherLevelVar.Set(initialLevel)

	weatherLogger, _, err = logging.NewFileLogger("logs/weather.log", "weather", weatherLevelVar)
	if err != nil {
		logging.Error("Failed to initialize weather file logger", "error", err)
		// Fallback to a disabled logger (writes to io.Discard) but respects the level var
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: weatherLevelVar})
		weatherLogger = slog.New(fbHandler).With("service", "weather")
	}
}

const (
	RequestTimeout = 15 * time.Second
	UserAgent      = "fieldlog https://github.com/tkivisto/fieldlog"
	RetryDelay     = 2 * time.Second
	MaxRetries     = 3
)

// clock is a package-level time source so tests can freeze the
// forecast/archive endpoint cutoff via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// DayWeather is the daily weather summary attached to sightings.
// All values describe the calendar day of the capture, not the capture
// hour: a moth photographed at 23:40 gets the same summary as one at dawn.
type DayWeather struct {
	Date            time.Time // calendar day the summary describes
	TempMaxC        float64   // daily maximum temperature in Celsius
	TempMinC        float64   // daily minimum temperature in Celsius
	PrecipitationMM float64   // total precipitation in millimeters
	Code            int       // WMO weather interpretation code
	Conditions      string    // human-readable label for Code
}

// Provider represents a daily weather data provider
type Provider interface {
	// FetchDay returns the weather summary for the calendar day of date.
	FetchDay(ctx context.Context, settings *conf.Settings, date time.Time) (*DayWeather, error)
}

// dayCacheTTL bounds the in-memory day cache. Within one run every sighting
// on the same calendar day shares a single provider call; historical days do
// not change, so the TTL only matters for today's still-moving summary.
const dayCacheTTL = time.Hour

// Service handles weather lookups for the configured provider.
// Summaries are memoized per calendar day: backfilling a batch of sightings
// from the same day costs one provider call, not one per sighting.
type Service struct {
	provider Provider
	settings *conf.Settings
	days     *cache.Cache
}

// NewService creates a weather service for the configured provider.
// Provider "none" (or empty) yields a disabled service: FetchDay reports
// enrichment as unavailable without touching the network.
func NewService(settings *conf.Settings) (*Service, error) {
	var provider Provider

	switch settings.Weather.Provider {
	case "", "none":
		provider = nil
	case "openmeteo":
		provider = NewOpenMeteoProvider()
	default:
		return nil, errors.Newf("invalid weather provider: %s", settings.Weather.Provider).
			Component("weather").
			Category(errors.CategoryConfiguration).
			Context("provider", settings.Weather.Provider).
			Build()
	}

	return &Service{
		provider: provider,
		settings: settings,
		days:     cache.New(dayCacheTTL, 2*dayCacheTTL),
	}, nil
}

// Enabled reports whether a real provider is configured.
func (s *Service) Enabled() bool {
	return s.provider != nil
}

// FetchDay returns the weather summary for the calendar day of date.
func (s *Service) FetchDay(ctx context.Context, date time.Time) (*DayWeather, error) {
	if s.provider == nil {
		return nil, errors.Newf("weather provider is disabled").
			Component("weather").
			Category(errors.CategoryEnrichment).
			Context("provider", "none").
			Build()
	}

	cacheKey := date.Format(time.DateOnly)
	if cached, found := s.days.Get(cacheKey); found {
		if day, ok := cached.(*DayWeather); ok {
			weatherLogger.Debug("Day weather cache hit", "date", cacheKey)
			return day, nil
		}
	}

	day, err := s.provider.FetchDay(ctx, s.settings, date)
	if err != nil {
		return nil, err
	}

	s.days.Set(cacheKey, day, cache.DefaultExpiration)
	return day, nil
}
