// Package stats provides the journal statistics command.
package stats

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/internal/builder"
	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Command creates the stats command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print journal statistics",
		Long: `Print the same figures the statistics page shows: totals, coverage,
per-category and per-season counts, most-seen species, one-off species
and the first sighting in each category.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(settings)
		},
	}
}

func runStats(settings *conf.Settings) error {
	location, err := settings.TimeLocation()
	if err != nil {
		return errors.New(err).
			Component("cmd").
			Category(errors.CategoryConfiguration).
			Context("timezone", settings.Location.Timezone).
			Build()
	}

	store, err := sighting.Open(settings.SightingsPath())
	if err != nil {
		return err
	}
	quickStore, err := quicklog.Open(settings.QuickLogPath())
	if err != nil {
		return err
	}

	s := builder.ComputeStats(store.All(), quickStore.All(), settings, location)

	fmt.Printf("Sightings:      %d\n", s.TotalSightings)
	fmt.Printf("Quick-logged:   %d\n", s.TotalQuickLogged)
	fmt.Printf("Unique species: %d\n", s.UniqueSpecies)
	if s.TotalSightings > 0 {
		fmt.Printf("First capture:  %s\n", s.FirstCapture)
		fmt.Printf("Last capture:   %s\n", s.LastCapture)
		fmt.Printf("Coverage:       %d of %d day(s), %d%%\n",
			s.DaysDocumented, s.DaysCovered, s.CoveragePercent)
	}

	printCounts("By category", s.ByCategory)
	printCounts("By season", s.BySeason)
	printCounts("Top species", s.TopSpecies)

	if len(s.FirstByCategory) > 0 {
		fmt.Printf("\nFirsts:\n")
		for _, first := range s.FirstByCategory {
			fmt.Printf("  %-12s %s  %s (%s)\n", first.Category, first.Date, first.Name, first.ID)
		}
	}
	if len(s.SingleSightings) > 0 {
		fmt.Printf("\nSeen exactly once: %s\n", strings.Join(s.SingleSightings, ", "))
	}
	return nil
}

func printCounts(header string, counts []builder.NameCount) {
	if len(counts) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", header)
	for _, c := range counts {
		fmt.Printf("  %-16s %d\n", c.Name, c.Count)
	}
}
