// Package backfill provides the weather backfill command.
package backfill

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/enrichment"
	"github.com/tkivisto/fieldlog/internal/imaging"
	"github.com/tkivisto/fieldlog/internal/ingest"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Command creates the backfill command.
func Command(settings *conf.Settings) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Fetch weather for sightings recorded without it",
		Long: `Re-run enrichment for stored sightings that carry no weather data,
typically ones recorded while the provider was unreachable or disabled.
Lookups are rate limited and same-day sightings share one provider
call.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(cmd.Context(), settings, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the sightings that would be enriched without fetching")

	return cmd
}

func runBackfill(ctx context.Context, settings *conf.Settings, dryRun bool) error {
	sightings, err := sighting.Open(settings.SightingsPath())
	if err != nil {
		return err
	}
	quickStore, err := quicklog.Open(settings.QuickLogPath())
	if err != nil {
		return err
	}
	enricher, err := enrichment.New(settings)
	if err != nil {
		return err
	}

	pipeline, err := ingest.New(settings, ingest.Deps{
		Sightings: sightings,
		QuickLog:  quickStore,
		Enricher:  enricher,
		Imaging:   imaging.NewProcessor(settings),
		Asker:     ingest.NewTerminalAsker(os.Stdin, os.Stdout),
		Out:       os.Stdout,
	})
	if err != nil {
		return err
	}

	_, err = pipeline.Backfill(ctx, ingest.BackfillOptions{DryRun: dryRun})
	return err
}
