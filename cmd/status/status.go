// Package status provides the journal overview command.
package status

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/imaging"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
	"github.com/tkivisto/fieldlog/internal/taxonomy"
)

// Command creates the status command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show journal health at a glance",
		Long: `Print an overview of the journal: store sizes, enrichment coverage,
taxonomy cache size, staged images awaiting ingestion, disk usage and
when the site was last built.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(settings)
		},
	}
}

func runStatus(settings *conf.Settings) error {
	sightings, err := sighting.Open(settings.SightingsPath())
	if err != nil {
		return err
	}
	quickStore, err := quicklog.Open(settings.QuickLogPath())
	if err != nil {
		return err
	}

	withWeather, withCelestial := 0, 0
	for _, entry := range sightings.All() {
		if entry.Weather != nil {
			withWeather++
		}
		if entry.Celestial != nil {
			withCelestial++
		}
	}
	quickStats := quickStore.Stats()

	fmt.Printf("Sightings:     %d (%d with weather, %d with celestial)\n",
		sightings.Len(), withWeather, withCelestial)
	fmt.Printf("Quick logs:    %d across %d species\n",
		quickStats.TotalLogged, quickStats.UniqueSpecies)

	if gbif, err := taxonomy.NewClient(taxonomy.ConfigFromSettings(settings)); err == nil {
		fmt.Printf("Taxonomy:      %d cached name(s)\n", gbif.CachedCount())
	}

	fmt.Printf("Staging inbox: %d image(s) awaiting ingestion\n",
		countStaged(settings.Journal.StagingDir))

	if usage, err := disk.Usage(settings.Journal.ImagesDir); err == nil {
		fmt.Printf("Disk:          %.1f%% used, %.1f GiB free\n",
			usage.UsedPercent, float64(usage.Free)/(1<<30))
	}

	built := "not built"
	if info, err := os.Stat(filepath.Join(settings.Journal.OutputDir, "index.html")); err == nil {
		built = "built " + info.ModTime().Format("2006-01-02 15:04")
	}
	fmt.Printf("Site:          %s\n", built)

	return nil
}

// countStaged counts the supported image files waiting in the inbox.
func countStaged(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imaging.SupportedSource(entry.Name()) {
			n++
		}
	}
	return n
}
