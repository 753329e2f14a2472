// Package addimage provides the command that appends a photo to a sighting.
package addimage

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/enrichment"
	"github.com/tkivisto/fieldlog/internal/imaging"
	"github.com/tkivisto/fieldlog/internal/ingest"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Command creates the addimage command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		caption string
		keep    bool
	)

	cmd := &cobra.Command{
		Use:   "addimage <id> <file>",
		Short: "Append a photo to an existing sighting",
		Long: `Process one more photo for a stored sighting: generate its variants,
file it under the next free image letter and record it in the store.
Without --caption the command prompts for one.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAddImage(settings, args[0], args[1], caption, cmd.Flags().Changed("caption"), keep)
		},
	}

	cmd.Flags().StringVarP(&caption, "caption", "c", "", "image caption")
	cmd.Flags().BoolVar(&keep, "keep", false, "keep the source file instead of removing it")

	return cmd
}

func runAddImage(settings *conf.Settings, id, srcPath, caption string, captionSet, keep bool) error {
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

	asker := ingest.NewTerminalAsker(os.Stdin, os.Stdout)
	pipeline, err := ingest.New(settings, ingest.Deps{
		Sightings: sightings,
		QuickLog:  quickStore,
		Enricher:  enricher,
		Imaging:   imaging.NewProcessor(settings),
		Asker:     asker,
		Out:       os.Stdout,
	})
	if err != nil {
		return err
	}

	if !captionSet {
		caption, err = asker.Ask("Caption (optional): ")
		if err != nil {
			return err
		}
	}

	filename, err := pipeline.AddImage(id, srcPath, ingest.AddImageOptions{Caption: caption, Keep: keep})
	if err != nil {
		return err
	}

	fmt.Printf("Added %s\n", filename)
	return nil
}
