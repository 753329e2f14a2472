// Package new provides the interactive ingestion command.
package new

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/enrichment"
	"github.com/tkivisto/fieldlog/internal/imaging"
	"github.com/tkivisto/fieldlog/internal/ingest"
	"github.com/tkivisto/fieldlog/internal/notify"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Command creates the new command, the interactive sighting dialogue.
func Command(settings *conf.Settings) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Record staged photos as sightings",
		Long: `Walk the staging inbox and record one sighting per photo through an
interactive dialogue. Each sighting gets the next identifier for its
capture date, resized image variants, and weather and celestial context
when enrichment is enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(cmd.Context(), settings, file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "record a single image instead of scanning the staging inbox")

	return cmd
}

func runNew(ctx context.Context, settings *conf.Settings, file string) error {
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
	notifier, err := notify.New(settings)
	if err != nil {
		return err
	}

	pipeline, err := ingest.New(settings, ingest.Deps{
		Sightings: sightings,
		QuickLog:  quickStore,
		Enricher:  enricher,
		Imaging:   imaging.NewProcessor(settings),
		Asker:     ingest.NewTerminalAsker(os.Stdin, os.Stdout),
		Notifier:  notifier,
		Out:       os.Stdout,
	})
	if err != nil {
		return err
	}

	_, err = pipeline.Run(ctx, ingest.Options{File: file})
	return err
}
