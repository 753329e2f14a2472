// Package builder renders the journal into the static site tree: pages,
// data files and the merged feed. The build is deterministic, so running
// it twice over the same stores produces byte-identical output, and the
// output directory is owned exclusively by the builder.
package builder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/imaging"
	"github.com/tkivisto/fieldlog/internal/logging"
	"github.com/tkivisto/fieldlog/internal/post"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
	"github.com/tkivisto/fieldlog/internal/taxonomy"
)

// Package-level logger specific to the site builder
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "builder.log")
	initialLevel := slog.LevelInfo
	serviceLevelVar.Set(initialLevel)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "builder", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize builder file logger at %s: %v", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "builder")
		closeLogger = func() error { return nil }
	}
}

// pageFileMode is the permission for generated pages and data files.
// The output tree is public content.
const pageFileMode os.FileMode = 0o644

// Builder renders one journal into its output directory.
type Builder struct {
	settings  *conf.Settings
	sightings *sighting.Store
	quick     *quicklog.Store
	gbif      *taxonomy.Client
	out       io.Writer
	location  *time.Location
	renderer  *renderer
}

// Deps carries the collaborating services a Builder needs.
type Deps struct {
	Sightings *sighting.Store
	QuickLog  *quicklog.Store
	Taxonomy  *taxonomy.Client
	Out       io.Writer // build summary destination, nil discards
}

// New creates a builder over the given stores.
func New(settings *conf.Settings, deps Deps) (*Builder, error) {
	if deps.Sightings == nil || deps.QuickLog == nil || deps.Taxonomy == nil {
		return nil, errors.Newf("builder is missing a required dependency").
			Component("builder").
			Category(errors.CategoryConfiguration).
			Build()
	}

	location, err := settings.TimeLocation()
	if err != nil {
		return nil, errors.New(err).
			Component("builder").
			Category(errors.CategoryConfiguration).
			Context("timezone", settings.Location.Timezone).
			Build()
	}

	out := deps.Out
	if out == nil {
		out = io.Discard
	}

	return &Builder{
		settings:  settings,
		sightings: deps.Sightings,
		quick:     deps.QuickLog,
		gbif:      deps.Taxonomy,
		out:       out,
		location:  location,
		renderer:  newRenderer(),
	}, nil
}

// Report summarizes one completed build.
type Report struct {
	Posts     int // post detail pages written
	Sightings int // sighting detail pages written
	Species   int // species on the life list
	FeedItems int // items in the merged feed
	Pages     int // HTML pages written in total
	OutputDir string
}

// Build renders the complete site. Inputs are read up front and validated
// before the output directory is touched, so a failed build never leaves
// a half-written tree behind.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	started := time.Now()

	posts, err := post.Load(b.settings.Journal.PostsDir, b.location)
	if err != nil {
		return nil, err
	}

	entries := b.sightings.All()
	sortNewestFirst(entries)

	covers, err := b.resolveCovers(posts, entries)
	if err != nil {
		return nil, err
	}

	bodies, err := b.renderBodies(posts)
	if err != nil {
		return nil, err
	}

	linked, err := post.Resolve(posts, entries, b.location)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, buildCanceled(err)
	}

	if err := b.prepareOutput(); err != nil {
		return nil, err
	}
	if err := b.copyStatic(); err != nil {
		return nil, err
	}
	if err := b.copyVariants(); err != nil {
		return nil, err
	}

	report := &Report{
		Posts:     len(posts),
		Sightings: len(entries),
		OutputDir: b.settings.Journal.OutputDir,
	}

	if err := b.renderIndex(entries, posts, covers); err != nil {
		return nil, err
	}
	if err := b.renderAbout(); err != nil {
		return nil, err
	}
	if err := b.renderBrowse(entries); err != nil {
		return nil, err
	}
	if err := b.renderSightingPages(entries); err != nil {
		return nil, err
	}
	if err := b.renderPostPages(linked, covers, bodies); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, buildCanceled(err)
	}

	species, err := b.renderLifeList(ctx, entries)
	if err != nil {
		return nil, err
	}
	report.Species = species

	if err := b.renderStats(entries); err != nil {
		return nil, err
	}
	if err := b.writeSightingsJSON(entries); err != nil {
		return nil, err
	}

	items, err := b.writeFeed(entries, posts, bodies)
	if err != nil {
		return nil, err
	}
	report.FeedItems = items

	// index, about, browse, life list, stats plus the two listing pages
	report.Pages = 7 + len(posts) + len(entries)

	b.printSummary(report)
	logger.Info("Site built",
		"pages", report.Pages,
		"posts", report.Posts,
		"sightings", report.Sightings,
		"species", report.Species,
		"feed_items", report.FeedItems,
		"output", report.OutputDir,
		"duration_ms", time.Since(started).Milliseconds())

	return report, nil
}

func (b *Builder) printSummary(report *Report) {
	fmt.Fprintf(b.out, "\nBuilt site:\n")
	fmt.Fprintf(b.out, "  - index, about, browse, life list and stats pages\n")
	fmt.Fprintf(b.out, "  - %d post page(s)\n", report.Posts)
	fmt.Fprintf(b.out, "  - %d sighting page(s)\n", report.Sightings)
	fmt.Fprintf(b.out, "  - life list with %d species\n", report.Species)
	fmt.Fprintf(b.out, "  - RSS feed with %d item(s)\n", report.FeedItems)
	fmt.Fprintf(b.out, "\nOutput: %s\n", report.OutputDir)
}

// sortNewestFirst orders entries by capture time descending, id descending
// on equal timestamps. Every listing and the feed share this order.
func sortNewestFirst(entries []sighting.Sighting) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CapturedAt.Equal(entries[j].CapturedAt) {
			return entries[i].CapturedAt.After(entries[j].CapturedAt)
		}
		return entries[i].ID > entries[j].ID
	})
}

// prepareOutput empties the output directory and lays out its skeleton.
// Stale files from earlier builds would otherwise survive renames and
// deletions in the stores.
func (b *Builder) prepareOutput() error {
	outDir := b.settings.Journal.OutputDir
	if outDir == "" || outDir == string(os.PathSeparator) {
		return errors.Newf("output directory %q is not a safe build target", outDir).
			Component("builder").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return outputError(err, "create_output_dir", outDir)
	}

	stale, err := os.ReadDir(outDir)
	if err != nil {
		return outputError(err, "read_output_dir", outDir)
	}
	for _, entry := range stale {
		if err := os.RemoveAll(filepath.Join(outDir, entry.Name())); err != nil {
			return outputError(err, "clean_output_dir", entry.Name())
		}
	}

	subdirs := []string{"posts", "sightings", "data", "images"}
	for _, variant := range imaging.Variants {
		subdirs = append(subdirs, filepath.Join("images", variant))
	}
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(outDir, sub), 0o755); err != nil {
			return outputError(err, "create_output_subdir", sub)
		}
	}
	return nil
}

// copyStatic mirrors the static assets directory into the output root.
// Files under static/images land in /images next to the variant trees,
// which is where cover image references point.
func (b *Builder) copyStatic() error {
	staticDir := b.settings.Journal.StaticDir
	info, err := os.Stat(staticDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return outputError(err, "stat_static_dir", staticDir)
	}
	if !info.IsDir() {
		return nil
	}

	outDir := b.settings.Journal.OutputDir
	return filepath.WalkDir(staticDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return outputError(err, "walk_static_dir", path)
		}
		rel, err := filepath.Rel(staticDir, path)
		if err != nil {
			return outputError(err, "walk_static_dir", path)
		}
		target := filepath.Join(outDir, rel)
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return outputError(err, "create_static_dir", rel)
			}
			return nil
		}
		if err := copyFile(path, target); err != nil {
			return outputError(err, "copy_static_file", rel)
		}
		return nil
	})
}

// copyVariants copies the generated image variants into the output tree.
// A variant directory that does not exist yet is an empty journal, not an
// error.
func (b *Builder) copyVariants() error {
	outDir := b.settings.Journal.OutputDir
	for _, variant := range imaging.Variants {
		srcDir := b.settings.ImageVariantDir(variant)
		files, err := os.ReadDir(srcDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return outputError(err, "read_variant_dir", srcDir)
		}
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			src := filepath.Join(srcDir, file.Name())
			dst := filepath.Join(outDir, "images", variant, file.Name())
			if err := copyFile(src, dst); err != nil {
				return outputError(err, "copy_variant_file", file.Name())
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, pageFileMode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// writePage executes one template into the output tree.
func (b *Builder) writePage(relPath, templateName string, data any) error {
	var buf bytes.Buffer
	if err := b.renderer.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		return errors.New(err).
			Component("builder").
			Category(errors.CategoryState).
			Context("template", templateName).
			Context("page", relPath).
			Build()
	}
	target := filepath.Join(b.settings.Journal.OutputDir, filepath.FromSlash(relPath))
	if err := os.WriteFile(target, buf.Bytes(), pageFileMode); err != nil {
		return outputError(err, "write_page", relPath)
	}
	return nil
}

func outputError(err error, operation, path string) error {
	return errors.New(err).
		Component("builder").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Context("path", path).
		Build()
}

func buildCanceled(err error) error {
	return errors.New(err).
		Component("builder").
		Category(errors.CategoryCancellation).
		Build()
}
