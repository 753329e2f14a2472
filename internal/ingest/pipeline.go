// Package ingest turns staged photos into stored sightings.
//
// Ingestion is an interactive dialogue. The capture time comes from image
// metadata when present and from the operator when not, species metadata
// is prompted until valid, and enrichment failures degrade to warnings
// rather than losing the sighting. Staged files are consumed only after
// the sighting has been persisted, so a failed run never eats source
// material.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/enrichment"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/exif"
	"github.com/tkivisto/fieldlog/internal/imaging"
	"github.com/tkivisto/fieldlog/internal/logging"
	"github.com/tkivisto/fieldlog/internal/notify"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Package-level logger for the ingestion pipeline
var (
	ingestLogger   *slog.Logger
	ingestLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	initialLevel := slog.LevelInfo
	ingestLevelVar.Set(initialLevel)

	ingestLogger, _, err = logging.NewFileLogger("logs/ingest.log", "ingest", ingestLevelVar)
	if err != nil {
		logging.Error("Failed to initialize ingest file logger", "error", err)
		// Fallback to a disabled logger (writes to io.Discard) but respects the level var
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: ingestLevelVar})
		ingestLogger = slog.New(fbHandler).With("service", "ingest")
	}
}

// clock supplies created_at timestamps and can be swapped in tests.
var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock replaces the package clock. Passing nil restores the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Pipeline coordinates one ingestion run over the staging inbox.
type Pipeline struct {
	settings  *conf.Settings
	sightings *sighting.Store
	quick     *quicklog.Store
	enricher  *enrichment.Enricher
	imaging   *imaging.Processor
	asker     Asker
	notifier  *notify.Notifier
	out       io.Writer
	location  *time.Location
}

// Deps carries the collaborating services for a Pipeline.
type Deps struct {
	Sightings *sighting.Store
	QuickLog  *quicklog.Store
	Enricher  *enrichment.Enricher
	Imaging   *imaging.Processor
	Asker     Asker
	Notifier  *notify.Notifier // optional, nil skips announcements
	Out       io.Writer        // progress and prompt feedback, defaults to discard
}

// New builds an ingestion pipeline over the given stores and services.
func New(settings *conf.Settings, deps Deps) (*Pipeline, error) {
	if settings == nil || deps.Sightings == nil || deps.QuickLog == nil || deps.Enricher == nil || deps.Imaging == nil || deps.Asker == nil {
		return nil, errors.Newf("ingest pipeline is missing a required dependency").
			Component("ingest").
			Category(errors.CategoryConfiguration).
			Build()
	}
	location, err := settings.TimeLocation()
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryConfiguration).
			Context("timezone", settings.Location.Timezone).
			Build()
	}
	out := deps.Out
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{
		settings:  settings,
		sightings: deps.Sightings,
		quick:     deps.QuickLog,
		enricher:  deps.Enricher,
		imaging:   deps.Imaging,
		asker:     deps.Asker,
		notifier:  deps.Notifier,
		out:       out,
		location:  location,
	}, nil
}

// Options narrows an ingestion run.
type Options struct {
	// File ingests a single image instead of scanning the staging inbox.
	File string
}

// Run ingests staged images, one sighting per staged file, and returns how
// many sightings were added. The first failing sighting aborts the run;
// its staged source is left in place for a retry.
func (p *Pipeline) Run(ctx context.Context, opts Options) (int, error) {
	sources, err := p.gatherSources(opts)
	if err != nil {
		return 0, err
	}
	if len(sources) == 0 {
		fmt.Fprintf(p.out, "No images found in %s\n", p.settings.Journal.StagingDir)
		return 0, nil
	}

	fmt.Fprintf(p.out, "Found %d image(s) to process\n\n", len(sources))
	added := 0
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		fmt.Fprintf(p.out, "Processing: %s (%d of %d)\n", filepath.Base(src), i+1, len(sources))
		if err := p.ingestOne(ctx, src); err != nil {
			return added, err
		}
		added++
	}

	fmt.Fprintf(p.out, "\nSummary: %d sighting(s) added\n", added)
	return added, nil
}

// gatherSources resolves the images an ingestion run will walk through.
// Staging scans are sorted by filename so capture sessions keep their
// camera order.
func (p *Pipeline) gatherSources(opts Options) ([]string, error) {
	if opts.File != "" {
		if !imaging.SupportedSource(opts.File) {
			return nil, errors.Newf("%s is not a supported image (.jpg, .jpeg, .png)", opts.File).
				Component("ingest").
				Category(errors.CategoryValidation).
				Build()
		}
		if _, err := os.Stat(opts.File); err != nil {
			return nil, errors.New(err).
				Component("ingest").
				Category(errors.CategoryFileIO).
				FileContext(opts.File, 0).
				Build()
		}
		return []string{opts.File}, nil
	}

	entries, err := os.ReadDir(p.settings.Journal.StagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("staging_dir", p.settings.Journal.StagingDir).
			Build()
	}

	var sources []string
	for _, entry := range entries {
		if entry.IsDir() || !imaging.SupportedSource(entry.Name()) {
			continue
		}
		sources = append(sources, filepath.Join(p.settings.Journal.StagingDir, entry.Name()))
	}
	return sources, nil
}

// ingestOne runs the full dialogue and persistence for a single sighting
// seeded by srcPath.
func (p *Pipeline) ingestOne(ctx context.Context, srcPath string) error {
	capturedAt, err := p.captureTime(srcPath)
	if err != nil {
		return err
	}

	meta, err := p.collectMetadata(capturedAt)
	if err != nil {
		return err
	}

	extras, err := p.collectExtraImages()
	if err != nil {
		return err
	}
	sourcePaths := append([]string{srcPath}, extras...)

	if p.enricher.WeatherEnabled() {
		fmt.Fprintln(p.out, "\nFetching weather data...")
	}
	enriched := p.enricher.Enrich(ctx, capturedAt)
	for _, warning := range enriched.Warnings {
		fmt.Fprintf(p.out, "  ! %s\n", warning)
	}

	season, err := p.settings.SeasonForMonth(capturedAt.Month())
	if err != nil {
		return errors.New(err).
			Component("ingest").
			Category(errors.CategoryConfiguration).
			Build()
	}

	id, err := p.sightings.NextID(capturedAt)
	if err != nil {
		return err
	}

	// Checked before the append makes the species known.
	firstEver := p.notifier != nil && p.notifier.Enabled() &&
		!notify.SpeciesKnown(p.sightings, p.quick, meta.commonName)

	images, accepted, err := p.processImages(id, sourcePaths)
	if err != nil {
		return err
	}

	entry := &sighting.Sighting{
		ID:             id,
		Images:         images,
		CommonName:     meta.commonName,
		ScientificName: meta.scientificName,
		Category:       meta.category,
		CapturedAt:     capturedAt,
		TimeOfDay:      meta.timeOfDay,
		Tags:           meta.tags,
		Weather:        enriched.Weather,
		Celestial:      enriched.Celestial,
		Season:         season,
		Notes:          meta.notes,
		SizeMM:         meta.sizeMM,
		IDCertainty:    meta.idCertainty,
		CreatedAt:      clock.Now().In(p.location),
	}
	if err := p.sightings.Append(entry); err != nil {
		p.removeProcessed(images)
		return err
	}

	p.consumeStaged(accepted)
	p.printConfirmation(entry)
	if firstEver {
		p.notifier.NewSpecies(entry.CommonName, entry.ScientificName)
	}
	return nil
}

// captureTime extracts the capture timestamp from image metadata and falls
// back to asking the operator. Only an unreadable file aborts; missing or
// malformed metadata degrades to the prompt.
func (p *Pipeline) captureTime(srcPath string) (time.Time, error) {
	capturedAt, err := exif.CaptureTime(srcPath, p.location)
	if err == nil {
		fmt.Fprintf(p.out, "Captured: %s\n", capturedAt.Format(time.DateTime))
		return capturedAt, nil
	}
	if errors.IsCategory(err, errors.CategoryFileIO) {
		return time.Time{}, err
	}
	if !errors.IsNotFound(err) {
		ingestLogger.Warn("Unreadable capture metadata", "path", srcPath, "error", err)
	}

	fmt.Fprintln(p.out, "No capture time in image metadata.")
	for {
		answer, err := p.asker.Ask("Date (YYYY-MM-DD HH:MM or YYYY-MM-DD): ")
		if err != nil {
			return time.Time{}, dialogueAborted(err)
		}
		layout := time.DateOnly
		if strings.Contains(answer, " ") {
			layout = "2006-01-02 15:04"
		}
		parsed, perr := time.ParseInLocation(layout, answer, p.location)
		if perr != nil {
			fmt.Fprintln(p.out, "  ✗ Invalid format. Use YYYY-MM-DD HH:MM or YYYY-MM-DD")
			continue
		}
		return parsed, nil
	}
}

// sightingMeta is the operator-supplied portion of a new sighting.
type sightingMeta struct {
	commonName     string
	scientificName string
	category       string
	notes          string
	sizeMM         *float64
	idCertainty    string
	timeOfDay      string
	tags           []string
}

func (p *Pipeline) collectMetadata(capturedAt time.Time) (sightingMeta, error) {
	var meta sightingMeta

	knownNames := append(p.sightings.CommonNames(), p.quick.CommonNames()...)
	for {
		answer, err := p.asker.Ask("Common name: ")
		if err != nil {
			return meta, dialogueAborted(err)
		}
		valid, verr := quicklog.ValidateCommonName(answer)
		if verr != nil {
			fmt.Fprintf(p.out, "  ✗ %v\n", verr)
			continue
		}
		name := quicklog.NormalizeName(valid, knownNames)
		if name != answer {
			fmt.Fprintf(p.out, "  → Normalized to: %s\n", name)
		}
		meta.commonName = name
		break
	}

	for {
		answer, err := p.asker.Ask("Scientific name (blank if unknown): ")
		if err != nil {
			return meta, dialogueAborted(err)
		}
		name, verr := quicklog.ValidateScientificName(answer)
		if verr != nil {
			fmt.Fprintf(p.out, "  ✗ %v\n", verr)
			continue
		}
		if name != "" && name != answer {
			fmt.Fprintf(p.out, "  → Normalized to: %s\n", name)
		}
		meta.scientificName = name
		break
	}

	for {
		answer, err := p.asker.Ask(fmt.Sprintf("Category [%s]: ", strings.Join(p.settings.Categories, "/")))
		if err != nil {
			return meta, dialogueAborted(err)
		}
		category := strings.ToLower(answer)
		if !p.settings.ValidCategory(category) {
			fmt.Fprintf(p.out, "  ✗ Invalid category. Choose from: %s\n", strings.Join(p.settings.Categories, ", "))
			continue
		}
		meta.category = category
		break
	}

	notes, err := p.asker.Ask("Notes: ")
	if err != nil {
		return meta, dialogueAborted(err)
	}
	meta.notes = notes

	size, err := p.asker.Ask("Size in mm (optional): ")
	if err != nil {
		return meta, dialogueAborted(err)
	}
	if size != "" {
		value, perr := strconv.ParseFloat(size, 64)
		if perr != nil {
			fmt.Fprintln(p.out, "  Invalid size, skipping.")
		} else {
			meta.sizeMM = &value
		}
	}

	fmt.Fprintln(p.out, "ID certainty: [H]igh, [M]edium, [L]ow, or blank to skip")
	certainty, err := p.asker.Ask("ID certainty: ")
	if err != nil {
		return meta, dialogueAborted(err)
	}
	switch strings.ToLower(certainty) {
	case "h", "high":
		meta.idCertainty = "high"
	case "m", "medium":
		meta.idCertainty = "medium"
	case "l", "low":
		meta.idCertainty = "low"
	}

	inferred := sighting.TimeOfDay(capturedAt)
	tod, err := p.asker.Ask(fmt.Sprintf("Time of day [%s]: ", inferred))
	if err != nil {
		return meta, dialogueAborted(err)
	}
	tod = strings.ToLower(tod)
	switch {
	case tod == "" || tod == inferred:
		meta.timeOfDay = inferred
	case sighting.ValidTimeOfDay(tod):
		meta.timeOfDay = tod
	default:
		fmt.Fprintf(p.out, "  Invalid time of day, using inferred: %s\n", inferred)
		meta.timeOfDay = inferred
	}

	vocabulary := p.sightings.Tags()
	if len(vocabulary) > 0 {
		fmt.Fprintf(p.out, "Existing tags: %s\n", strings.Join(vocabulary, ", "))
	}
	tags, err := p.asker.Ask("Tags (comma-separated): ")
	if err != nil {
		return meta, dialogueAborted(err)
	}
	for _, part := range strings.Split(tags, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		meta.tags = append(meta.tags, quicklog.NormalizeName(part, vocabulary))
	}

	return meta, nil
}

// collectExtraImages asks for additional photos of the same specimen.
// Paths outside the staging inbox are allowed and will not be consumed.
func (p *Pipeline) collectExtraImages() ([]string, error) {
	var extras []string
	for {
		answer, err := p.asker.Ask("\nAdd another image to this sighting? [y/N]: ")
		if err != nil {
			return nil, dialogueAborted(err)
		}
		if !strings.EqualFold(answer, "y") {
			return extras, nil
		}

		path, err := p.asker.Ask("Image path: ")
		if err != nil {
			return nil, dialogueAborted(err)
		}
		if path == "" {
			continue
		}
		if !imaging.SupportedSource(path) {
			fmt.Fprintln(p.out, "  ✗ Only .jpg, .jpeg and .png files are supported")
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			fmt.Fprintln(p.out, "  ✗ File not found")
			continue
		}
		extras = append(extras, path)
	}
}

// processImages generates variants for each source. A failed image is
// rejected without its letter, so stored letters stay gapless; a full disk
// or a fully rejected set aborts the sighting.
func (p *Pipeline) processImages(id string, sources []string) ([]sighting.Image, []string, error) {
	var images []sighting.Image
	var accepted []string
	for _, src := range sources {
		letter := rune('a' + len(images))
		filename := sighting.ImageFilename(id, letter)
		if err := p.imaging.ProcessImage(src, filename); err != nil {
			if errors.IsCategory(err, errors.CategoryDiskUsage) {
				p.removeProcessed(images)
				return nil, nil, err
			}
			fmt.Fprintf(p.out, "  ✗ Rejected %s: %v\n", filepath.Base(src), err)
			ingestLogger.Warn("Image rejected", "source", src, "error", err)
			continue
		}

		caption := ""
		if len(sources) > 1 {
			answer, err := p.asker.Ask(fmt.Sprintf("Caption for %s (optional): ", filepath.Base(src)))
			if err != nil {
				p.removeProcessed(append(images, sighting.Image{Filename: filename}))
				return nil, nil, dialogueAborted(err)
			}
			caption = answer
		}

		images = append(images, sighting.Image{Filename: filename, Caption: caption})
		accepted = append(accepted, src)
	}

	if len(images) == 0 {
		return nil, nil, errors.Newf("no images could be processed for this sighting").
			Component("ingest").
			Category(errors.CategoryImageProcessing).
			SightingContext(id, 0).
			Build()
	}
	return images, accepted, nil
}

// removeProcessed cleans up variant files for a sighting that will not be
// appended.
func (p *Pipeline) removeProcessed(images []sighting.Image) {
	for _, img := range images {
		if err := p.imaging.RemoveVariants(img.Filename); err != nil {
			ingestLogger.Warn("Failed to remove variants after abort", "filename", img.Filename, "error", err)
		}
	}
}

// consumeStaged removes persisted sources from the staging inbox. Extra
// images pulled in from elsewhere are the operator's files and stay put.
func (p *Pipeline) consumeStaged(paths []string) {
	staging, err := filepath.Abs(p.settings.Journal.StagingDir)
	if err != nil {
		staging = p.settings.Journal.StagingDir
	}
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil || filepath.Dir(abs) != staging {
			continue
		}
		if err := os.Remove(path); err != nil {
			ingestLogger.Warn("Failed to consume staged image", "path", path, "error", err)
			fmt.Fprintf(p.out, "  ! Could not remove %s from staging\n", filepath.Base(path))
		}
	}
}

func (p *Pipeline) printConfirmation(entry *sighting.Sighting) {
	sci := ""
	if entry.ScientificName != "" {
		sci = fmt.Sprintf(" (%s)", entry.ScientificName)
	}
	fmt.Fprintf(p.out, "\n✓ Added: %s - %s%s\n", entry.ID, entry.CommonName, sci)
	if entry.Weather != nil {
		fmt.Fprintf(p.out, "  Weather: %.1f°C max, %s\n", entry.Weather.TempMaxC, entry.Weather.Conditions)
	}
	if entry.Celestial != nil {
		fmt.Fprintf(p.out, "  Moon: %s (%d%%)\n", entry.Celestial.MoonPhase, int(entry.Celestial.MoonIllumination*100))
	}
	fmt.Fprintln(p.out, strings.Repeat("-", 50))
}

// dialogueAborted wraps an Asker failure, typically closed input mid-run.
func dialogueAborted(err error) error {
	return errors.New(err).
		Component("ingest").
		Category(errors.CategoryCancellation).
		Build()
}
