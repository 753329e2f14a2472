// Package build provides the site build command.
package build

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/internal/builder"
	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
	"github.com/tkivisto/fieldlog/internal/taxonomy"
)

// Command creates the build command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Render the journal into the output directory",
		Long: `Render every page of the static site from the stores: index, browse,
life list, statistics, sighting and post pages, and the RSS feed. The
output tree is replaced wholesale, so a failed build never leaves a
partial site behind.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sightings, err := sighting.Open(settings.SightingsPath())
			if err != nil {
				return err
			}
			quickStore, err := quicklog.Open(settings.QuickLogPath())
			if err != nil {
				return err
			}
			return Run(cmd.Context(), settings, sightings, quickStore, os.Stdout)
		},
	}
}

// Run renders the site once from already-open stores. The serve command
// shares it to build before listening.
func Run(ctx context.Context, settings *conf.Settings, sightings *sighting.Store, quickStore *quicklog.Store, out io.Writer) error {
	gbif, err := taxonomy.NewClient(taxonomy.ConfigFromSettings(settings))
	if err != nil {
		return err
	}

	b, err := builder.New(settings, builder.Deps{
		Sightings: sightings,
		QuickLog:  quickStore,
		Taxonomy:  gbif,
		Out:       out,
	})
	if err != nil {
		return err
	}

	_, err = b.Build(ctx)
	return err
}
