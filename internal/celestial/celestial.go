// internal/celestial/celestial.go

package celestial

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// SunEventTimes holds the calculated sun event times in journal local time
type SunEventTimes struct {
	Sunrise time.Time // Sunrise in local time
	Sunset  time.Time // Sunset in local time
}

// Moon describes the lunar state on a given date.
type Moon struct {
	Phase        string  // named phase, e.g. "Waxing Gibbous"
	Illumination float64 // illuminated fraction 0.0 to 1.0
}

// cacheEntry holds the cached sun event times for a given date
type cacheEntry struct {
	times SunEventTimes // Sun event times in local time
	date  time.Time     // Date for which the sun event times are cached
}

// Calculator handles caching and calculation of sun and moon data
type Calculator struct {
	cache    map[string]cacheEntry // Cache of sun event times for dates
	lock     sync.RWMutex          // Lock for cache access
	observer astral.Observer       // Observer for sun event calculations
	location *time.Location        // Journal timezone for local sun times
}

// NewCalculator creates a new Calculator for the given observer position.
// Sun event times are reported in the supplied location.
func NewCalculator(latitude, longitude float64, location *time.Location) *Calculator {
	if location == nil {
		location = time.UTC
	}
	return &Calculator{
		cache:    make(map[string]cacheEntry),
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
		location: location,
	}
}

// SunTimes returns the sun event times for a given date, using cache if available
func (c *Calculator) SunTimes(date time.Time) (SunEventTimes, error) {
	// Format the date as a string key for the cache
	dateKey := date.Format(time.DateOnly)

	// Acquire a read lock and check if the date is in the cache
	c.lock.RLock()
	entry, exists := c.cache[dateKey]
	c.lock.RUnlock()

	// If the date exists in the cache and matches the requested date, return the cached times
	if exists && entry.date.Equal(date) {
		return entry.times, nil
	}

	// If not in cache, calculate the sun event times
	times, err := c.calculateSunEventTimes(date)
	if err != nil {
		return SunEventTimes{}, err
	}

	// Acquire a write lock and update the cache with the new times
	c.lock.Lock()
	c.cache[dateKey] = cacheEntry{times: times, date: date}
	c.lock.Unlock()

	// Return the calculated times
	return times, nil
}

// calculateSunEventTimes calculates the sun event times for a given date.
// Polar day and polar night surface as errors from the astral library.
func (c *Calculator) calculateSunEventTimes(date time.Time) (SunEventTimes, error) {
	// Calculate sunrise
	sunrise, err := astral.Sunrise(c.observer, date)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunrise: %w", err)
	}

	// Calculate sunset
	sunset, err := astral.Sunset(c.observer, date)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunset: %w", err)
	}

	// Return the calculated sun event times in the journal timezone
	return SunEventTimes{
		Sunrise: sunrise.In(c.location),
		Sunset:  sunset.In(c.location),
	}, nil
}

// moonCycleDays is the length of the phase scale used by astral.
// The phase day runs 0.5 at new moon, 7.5 at first quarter, 14.5 at full
// and 21.5 at last quarter.
const moonCycleDays = 28.0

// MoonPhase returns the named phase and illuminated fraction for a date.
func (c *Calculator) MoonPhase(date time.Time) Moon {
	day := astral.MoonPhase(date)
	return Moon{
		Phase:        moonPhaseName(day),
		Illumination: moonIllumination(day),
	}
}

// moonPhaseName maps a phase day to the conventional eight phase names.
// Full and new span a two-day window centered on the exact phase,
// the quarters a one-day window.
func moonPhaseName(day float64) string {
	switch {
	case day < 1.5 || day >= 27.5:
		return "New Moon"
	case day < 7:
		return "Waxing Crescent"
	case day < 8:
		return "First Quarter"
	case day < 13.5:
		return "Waxing Gibbous"
	case day < 15.5:
		return "Full Moon"
	case day < 21:
		return "Waning Gibbous"
	case day < 22:
		return "Last Quarter"
	default:
		return "Waning Crescent"
	}
}

// moonIllumination converts a phase day to the illuminated fraction,
// 0.0 at new and 1.0 at full, rounded to two decimals.
func moonIllumination(day float64) float64 {
	frac := (1 - math.Cos(2*math.Pi*(day-0.5)/moonCycleDays)) / 2
	return math.Round(frac*100) / 100
}
