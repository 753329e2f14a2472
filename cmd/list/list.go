// Package list provides the sighting listing command.
package list

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Command creates the list command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		category string
		season   string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sightings, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(settings, sighting.ListFilter{Category: category, Season: season, Limit: limit})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "only sightings in this category")
	cmd.Flags().StringVarP(&season, "season", "s", "", "only sightings in this season")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum entries to print, 0 prints all")

	return cmd
}

func runList(settings *conf.Settings, filter sighting.ListFilter) error {
	if filter.Category != "" && !settings.ValidCategory(filter.Category) {
		return errors.Newf("invalid category %q, expected one of %s",
			filter.Category, strings.Join(settings.Categories, ", ")).
			Component("cmd").
			Category(errors.CategoryValidation).
			Build()
	}
	if filter.Season != "" && !validSeason(settings, filter.Season) {
		return errors.Newf("invalid season %q, expected one of %s",
			filter.Season, strings.Join(settings.SeasonNames(), ", ")).
			Component("cmd").
			Category(errors.CategoryValidation).
			Build()
	}

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

	entries := store.List(filter)
	if len(entries) == 0 {
		fmt.Println("No sightings recorded")
		return nil
	}

	for i := range entries {
		e := &entries[i]
		line := fmt.Sprintf("%s  %s  %-10s %s",
			e.ID, e.CapturedAt.In(location).Format("2006-01-02 15:04"), e.Category, e.CommonName)
		if e.ScientificName != "" {
			line += fmt.Sprintf(" (%s)", e.ScientificName)
		}
		if n := len(e.Images); n > 1 {
			line += fmt.Sprintf(" [%d images]", n)
		}
		fmt.Println(line)
	}
	fmt.Printf("\n%d sighting(s)\n", len(entries))
	return nil
}

func validSeason(settings *conf.Settings, season string) bool {
	for _, name := range settings.SeasonNames() {
		if name == season {
			return true
		}
	}
	return false
}
