package builder

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// NameCount is one labelled bar or list row on the statistics page.
type NameCount struct {
	Name  string
	Count int
}

// CategoryFirst records the earliest sighting in a category.
type CategoryFirst struct {
	Category string
	ID       string
	Name     string
	Date     string
}

// SiteStats aggregates both stores for the statistics page. Every figure
// derives from recorded data alone, never from the clock, so rebuilding an
// unchanged journal produces identical numbers.
type SiteStats struct {
	TotalSightings   int
	TotalQuickLogged int
	UniqueSpecies    int

	FirstCapture    string
	LastCapture     string
	DaysCovered     int
	DaysDocumented  int
	CoveragePercent int

	ByCategory  []NameCount
	MaxCategory int

	BySeason  []NameCount
	MaxSeason int

	ByMonth  []NameCount
	MaxMonth int

	// DiscoveryCurve tracks the cumulative species total at the end of
	// each month that has at least one sighting.
	DiscoveryCurve []NameCount
	MaxDiscovery   int

	ByWeather  []NameCount
	MaxWeather int

	ByMoonPhase []NameCount
	MaxMoon     int

	TopSpecies      []NameCount
	SingleSightings []string
	FirstByCategory []CategoryFirst
}

// speciesTally accumulates observations per species across both stores,
// keeping the spelling of the first record it met.
type speciesTally struct {
	name  string
	count int
}

// ComputeStats derives the statistics page numbers from the sighting and
// quick-log stores. Calendar arithmetic runs in the journal's timezone.
func ComputeStats(entries []sighting.Sighting, logs []quicklog.Entry, settings *conf.Settings, location *time.Location) *SiteStats {
	stats := &SiteStats{TotalSightings: len(entries)}

	asc := make([]sighting.Sighting, len(entries))
	copy(asc, entries)
	sort.SliceStable(asc, func(i, j int) bool {
		if !asc[i].CapturedAt.Equal(asc[j].CapturedAt) {
			return asc[i].CapturedAt.Before(asc[j].CapturedAt)
		}
		return asc[i].ID < asc[j].ID
	})

	categories := make(map[string]int)
	seasons := make(map[string]int)
	weather := make(map[string]int)
	moons := make(map[string]int)
	days := make(map[string]struct{})
	firsts := make(map[string]CategoryFirst)
	species := make(map[string]*speciesTally)
	discovered := make(map[string]struct{})

	monthLabel := ""
	for i := range asc {
		e := &asc[i]
		local := e.CapturedAt.In(location)

		categories[e.Category]++
		seasons[e.Season]++
		days[local.Format(time.DateOnly)] = struct{}{}

		condition := "Unknown"
		if e.Weather != nil && strings.TrimSpace(e.Weather.Conditions) != "" {
			condition = e.Weather.Conditions
		}
		weather[condition]++

		phase := "Unknown"
		if e.Celestial != nil && strings.TrimSpace(e.Celestial.MoonPhase) != "" {
			phase = e.Celestial.MoonPhase
		}
		moons[phase]++

		if _, ok := firsts[e.Category]; !ok {
			firsts[e.Category] = CategoryFirst{
				Category: e.Category,
				ID:       e.ID,
				Name:     e.CommonName,
				Date:     local.Format("Jan 2, 2006"),
			}
		}

		key := speciesName(e.CommonName)
		tallySpecies(species, key, e.CommonName, 1)
		discovered[key] = struct{}{}

		if label := local.Format("Jan 2006"); label != monthLabel {
			monthLabel = label
			stats.ByMonth = append(stats.ByMonth, NameCount{Name: label})
			stats.DiscoveryCurve = append(stats.DiscoveryCurve, NameCount{Name: label})
		}
		stats.ByMonth[len(stats.ByMonth)-1].Count++
		stats.DiscoveryCurve[len(stats.DiscoveryCurve)-1].Count = len(discovered)
	}

	for i := range logs {
		l := &logs[i]
		stats.TotalQuickLogged += l.Total
		key := speciesName(l.SpeciesName)
		tallySpecies(species, key, l.SpeciesName, l.Total)
		discovered[key] = struct{}{}
	}

	stats.UniqueSpecies = len(discovered)

	if len(asc) > 0 {
		first := asc[0].CapturedAt.In(location)
		last := asc[len(asc)-1].CapturedAt.In(location)
		stats.FirstCapture = first.Format("Jan 2, 2006")
		stats.LastCapture = last.Format("Jan 2, 2006")
		stats.DaysCovered = daysBetween(first, last) + 1
		stats.DaysDocumented = len(days)
		stats.CoveragePercent = int(math.Round(float64(stats.DaysDocumented) / float64(stats.DaysCovered) * 100))
	}

	stats.ByCategory = sortedCounts(categories)
	stats.MaxCategory = maxCount(stats.ByCategory)
	stats.BySeason = seasonCounts(seasons, settings.SeasonNames())
	stats.MaxSeason = maxCount(stats.BySeason)
	stats.MaxMonth = maxCount(stats.ByMonth)
	stats.MaxDiscovery = maxCount(stats.DiscoveryCurve)
	stats.ByWeather = sortedCounts(weather)
	stats.MaxWeather = maxCount(stats.ByWeather)
	stats.ByMoonPhase = sortedCounts(moons)
	stats.MaxMoon = maxCount(stats.ByMoonPhase)
	stats.TopSpecies = topSpecies(species, 5)
	stats.SingleSightings = singleSightings(species)
	stats.FirstByCategory = orderedFirsts(firsts, settings.Categories)

	return stats
}

func speciesName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func tallySpecies(species map[string]*speciesTally, key, display string, n int) {
	if t, ok := species[key]; ok {
		t.count += n
		return
	}
	species[key] = &speciesTally{name: display, count: n}
}

// daysBetween counts whole calendar days from first to last in their
// common location.
func daysBetween(first, last time.Time) int {
	f := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	l := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	return int(l.Sub(f).Hours() / 24)
}

// sortedCounts flattens a tally map, largest first with names breaking
// ties.
func sortedCounts(tallies map[string]int) []NameCount {
	counts := make([]NameCount, 0, len(tallies))
	for name, count := range tallies {
		counts = append(counts, NameCount{Name: name, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Name < counts[j].Name
	})
	return counts
}

// seasonCounts keeps the configured season order and includes empty
// seasons, so the chart shape is stable across builds.
func seasonCounts(tallies map[string]int, order []string) []NameCount {
	counts := make([]NameCount, 0, len(order))
	for _, name := range order {
		counts = append(counts, NameCount{Name: name, Count: tallies[name]})
	}
	return counts
}

func maxCount(counts []NameCount) int {
	most := 0
	for _, c := range counts {
		if c.Count > most {
			most = c.Count
		}
	}
	return most
}

func topSpecies(species map[string]*speciesTally, limit int) []NameCount {
	counts := make([]NameCount, 0, len(species))
	for _, t := range species {
		counts = append(counts, NameCount{Name: t.name, Count: t.count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return strings.ToLower(counts[i].Name) < strings.ToLower(counts[j].Name)
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

func singleSightings(species map[string]*speciesTally) []string {
	var names []string
	for _, t := range species {
		if t.count == 1 {
			names = append(names, t.name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

func orderedFirsts(firsts map[string]CategoryFirst, categories []string) []CategoryFirst {
	ordered := make([]CategoryFirst, 0, len(firsts))
	for _, category := range categories {
		if f, ok := firsts[category]; ok {
			ordered = append(ordered, f)
		}
	}
	return ordered
}
