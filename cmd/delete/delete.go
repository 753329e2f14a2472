// Package delete provides the sighting delete command.
package delete

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/imaging"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Command creates the delete command.
func Command(settings *conf.Settings) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a sighting and its image variants",
		Long: `Remove a sighting from the store along with every generated variant of
its images. Quick-log entries for the same species are untouched. The
command asks for confirmation unless --yes is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(settings, args[0], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func runDelete(settings *conf.Settings, id string, yes bool) error {
	store, err := sighting.Open(settings.SightingsPath())
	if err != nil {
		return err
	}
	entry, err := store.Get(id)
	if err != nil {
		return err
	}

	if !yes && !confirm(entry) {
		fmt.Println("Aborted")
		return nil
	}

	if _, err := store.Delete(id); err != nil {
		return err
	}

	processor := imaging.NewProcessor(settings)
	for _, img := range entry.Images {
		if err := processor.RemoveVariants(img.Filename); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not remove variants of %s: %v\n", img.Filename, err)
		}
	}

	fmt.Printf("Deleted %s (%s, %d image(s))\n", entry.ID, entry.CommonName, len(entry.Images))
	return nil
}

func confirm(entry *sighting.Sighting) bool {
	fmt.Printf("Delete %s (%s, captured %s, %d image(s))? [y/N]: ",
		entry.ID, entry.CommonName, entry.CapturedAt.Format(time.DateOnly), len(entry.Images))

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
