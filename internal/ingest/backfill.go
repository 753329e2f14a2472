package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// backfillInterval paces live weather lookups so a large journal does not
// hammer the provider. Same-day sightings share one lookup through the
// weather service's day cache regardless.
const backfillInterval = time.Second

// BackfillOptions adjusts a backfill run.
type BackfillOptions struct {
	// DryRun lists the sightings that would be enriched without calling
	// the provider or touching the store.
	DryRun bool
}

// Backfill enriches stored sightings that carry no weather data, typically
// ones ingested while the provider was unreachable or disabled. It returns
// how many sightings were updated.
func (p *Pipeline) Backfill(ctx context.Context, opts BackfillOptions) (int, error) {
	if !p.enricher.WeatherEnabled() {
		return 0, errors.Newf("weather provider is disabled, nothing to backfill").
			Component("ingest").
			Category(errors.CategoryConfiguration).
			Build()
	}

	var candidates []sighting.Sighting
	for _, entry := range p.sightings.All() {
		if entry.Weather == nil {
			candidates = append(candidates, entry)
		}
	}
	if len(candidates) == 0 {
		fmt.Fprintln(p.out, "All sightings already carry weather data")
		return 0, nil
	}

	if opts.DryRun {
		fmt.Fprintf(p.out, "Would backfill %d sighting(s):\n", len(candidates))
		for _, entry := range candidates {
			fmt.Fprintf(p.out, "  %s  %s  %s\n", entry.ID, entry.CapturedAt.Format(time.DateOnly), entry.CommonName)
		}
		return 0, nil
	}

	limiter := rate.NewLimiter(rate.Every(backfillInterval), 1)
	updated := 0
	for _, entry := range candidates {
		if err := limiter.Wait(ctx); err != nil {
			return updated, errors.New(err).
				Component("ingest").
				Category(errors.CategoryCancellation).
				Build()
		}

		result := p.enricher.Enrich(ctx, entry.CapturedAt)
		for _, warning := range result.Warnings {
			fmt.Fprintf(p.out, "  ! %s: %s\n", entry.ID, warning)
		}
		if result.Weather == nil {
			fmt.Fprintf(p.out, "  - %s: weather still unavailable\n", entry.ID)
			continue
		}

		if err := p.sightings.SetEnrichment(entry.ID, result.Weather, result.Celestial); err != nil {
			return updated, err
		}
		fmt.Fprintf(p.out, "  ✓ %s: %s\n", entry.ID, result.Weather.Conditions)
		updated++
	}

	fmt.Fprintf(p.out, "Backfilled %d of %d sighting(s)\n", updated, len(candidates))
	return updated, nil
}
