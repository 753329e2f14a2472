// Package quick provides the no-photo observation command.
package quick

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Command creates the quick command for logging a sighting without a photo.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		scientific string
		timeOfDay  string
		note       string
	)

	cmd := &cobra.Command{
		Use:   "quick <species name>",
		Short: "Log an observation without a photo",
		Long: `Record that a species was observed today. Repeated logs of the same
species on the same day merge into one entry with a running total. The
species name adopts the spelling already used in the journal when one
matches.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuick(settings, strings.Join(args, " "), scientific, timeOfDay, note)
		},
	}

	cmd.Flags().StringVarP(&scientific, "scientific", "s", "", "scientific name, informational only")
	cmd.Flags().StringVarP(&timeOfDay, "time", "t", "", "time of day (morning, afternoon, evening, night)")
	cmd.Flags().StringVarP(&note, "note", "n", "", "short note")

	return cmd
}

func runQuick(settings *conf.Settings, name, scientific, timeOfDay, note string) error {
	store, err := quicklog.Open(settings.QuickLogPath())
	if err != nil {
		return err
	}
	sightings, err := sighting.Open(settings.SightingsPath())
	if err != nil {
		return err
	}

	entry, created, err := store.Log(quicklog.LogRequest{
		SpeciesName:    name,
		ScientificName: scientific,
		TimeOfDay:      timeOfDay,
		Note:           note,
		KnownNames:     sightings.CommonNames(),
	})
	if err != nil {
		return err
	}

	if created {
		fmt.Printf("Logged %s for %s\n", entry.SpeciesName, entry.Date)
	} else {
		fmt.Printf("Logged %s for %s (total %d today)\n", entry.SpeciesName, entry.Date, entry.Total)
	}
	return nil
}
