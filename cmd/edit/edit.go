// Package edit provides the sighting edit command.
package edit

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Command creates the edit command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		commonName     string
		scientificName string
		category       string
		notes          string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit identification fields of a sighting",
		Long: `Change the common name, scientific name, category or notes of a stored
sighting. Identity, images, capture time and enrichment data stay as
recorded. Only the fields given as flags change; passing an empty value
clears the field where that is allowed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch sighting.EditPatch
			if cmd.Flags().Changed("common") {
				patch.CommonName = &commonName
			}
			if cmd.Flags().Changed("scientific") {
				patch.ScientificName = &scientificName
			}
			if cmd.Flags().Changed("category") {
				patch.Category = &category
			}
			if cmd.Flags().Changed("notes") {
				patch.Notes = &notes
			}
			return runEdit(settings, args[0], patch)
		},
	}

	cmd.Flags().StringVar(&commonName, "common", "", "common name")
	cmd.Flags().StringVar(&scientificName, "scientific", "", "scientific name, Genus species, empty clears")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes, empty clears")

	return cmd
}

func runEdit(settings *conf.Settings, id string, patch sighting.EditPatch) error {
	if patch.CommonName != nil {
		name, err := quicklog.ValidateCommonName(*patch.CommonName)
		if err != nil {
			return err
		}
		patch.CommonName = &name
	}
	if patch.ScientificName != nil {
		name, err := quicklog.ValidateScientificName(*patch.ScientificName)
		if err != nil {
			return err
		}
		patch.ScientificName = &name
	}
	if patch.Category != nil && !settings.ValidCategory(*patch.Category) {
		return errors.Newf("invalid category %q, expected one of %s",
			*patch.Category, strings.Join(settings.Categories, ", ")).
			Component("cmd").
			Category(errors.CategoryValidation).
			Build()
	}

	store, err := sighting.Open(settings.SightingsPath())
	if err != nil {
		return err
	}
	updated, err := store.Edit(id, patch)
	if err != nil {
		return err
	}

	line := fmt.Sprintf("Updated %s: %s", updated.ID, updated.CommonName)
	if updated.ScientificName != "" {
		line += fmt.Sprintf(" (%s)", updated.ScientificName)
	}
	fmt.Printf("%s, %s\n", line, updated.Category)
	return nil
}
