// Package regen provides the image variant regeneration command.
package regen

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/imaging"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Command creates the regen command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "regen",
		Short: "Rebuild image variants from the full-size originals",
		Long: `Regenerate the thumbnail and web variants of every stored image from
its full-size original, for example after changing size or quality
settings. Full-size variants are left untouched. A failing image is
reported and skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegen(cmd.Context(), settings)
		},
	}
}

func runRegen(ctx context.Context, settings *conf.Settings) error {
	store, err := sighting.Open(settings.SightingsPath())
	if err != nil {
		return err
	}

	processor := imaging.NewProcessor(settings)
	regenerated, failed := 0, 0
	for _, entry := range store.All() {
		for _, img := range entry.Images {
			if err := ctx.Err(); err != nil {
				return errors.New(err).
					Component("cmd").
					Category(errors.CategoryCancellation).
					Build()
			}
			if err := processor.Regenerate(img.Filename); err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "Failed %s: %v\n", img.Filename, err)
				continue
			}
			regenerated++
			fmt.Printf("Regenerated %s\n", img.Filename)
		}
	}

	fmt.Printf("\n%d variant set(s) regenerated, %d failed\n", regenerated, failed)
	return nil
}
