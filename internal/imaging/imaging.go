// Package imaging produces the JPEG variants served by the generated site.
//
// Every sighting image exists in three sizes under the images tree: thumb/
// and web/ are scaled down to a configured longest edge, full/ keeps the
// source dimensions. Output is always JPEG regardless of the source format.
// Variant generation is atomic per image: either all three files land or
// none do.
package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "image/png" // register PNG decoding for staged screenshots and exports

	"github.com/shirou/gopsutil/v3/disk"
	xdraw "golang.org/x/image/draw"

	"github.com/tkivisto/fieldlog/internal/atomicfile"
	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/logging"
)

// Package-level logger for the imaging service
var (
	imagingLogger   *slog.Logger
	imagingLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	initialLevel := slog.LevelInfo
	imagingLevelVar.Set(initialLevel)

	imagingLogger, _, err = logging.NewFileLogger("logs/imaging.log", "imaging", imagingLevelVar)
	if err != nil {
		logging.Error("Failed to initialize imaging file logger", "error", err)
		// Fallback to a disabled logger (writes to io.Discard) but respects the level var
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: imagingLevelVar})
		imagingLogger = slog.New(fbHandler).With("service", "imaging")
	}
}

// Variants lists the generated sizes in processing order. "full" keeps the
// source dimensions and is the authoritative copy the smaller two can be
// rebuilt from.
var Variants = []string{"thumb", "web", "full"}

// variantFileMode lets the web server read generated images.
const variantFileMode os.FileMode = 0o644

// diskUsageFn is swapped out in tests to exercise the disk guard without a
// real full filesystem.
var diskUsageFn = disk.Usage

// SupportedSource reports whether path carries an extension the ingestion
// inbox accepts.
func SupportedSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// variantSpec is one output size. A zero maxEdge means no scaling.
type variantSpec struct {
	name    string
	maxEdge int
	quality int
}

// Processor turns raw staged photos into the three site variants.
type Processor struct {
	settings *conf.Settings
}

// NewProcessor returns a Processor bound to the journal's imaging settings.
func NewProcessor(settings *conf.Settings) *Processor {
	return &Processor{settings: settings}
}

// VariantPath returns the on-disk location of one variant of filename.
func (p *Processor) VariantPath(variant, filename string) string {
	return filepath.Join(p.settings.ImageVariantDir(variant), filename)
}

func (p *Processor) plan() []variantSpec {
	img := p.settings.Imaging
	return []variantSpec{
		{name: "thumb", maxEdge: img.ThumbSize, quality: img.ThumbQuality},
		{name: "web", maxEdge: img.WebSize, quality: img.WebQuality},
		{name: "full", maxEdge: 0, quality: img.FullQuality},
	}
}

// CheckDiskSpace refuses variant generation when the filesystem holding the
// images tree is fuller than the configured threshold. A threshold of zero
// disables the guard.
func (p *Processor) CheckDiskSpace() error {
	limit := p.settings.Imaging.MaxUsagePercent
	if limit <= 0 {
		return nil
	}
	usage, err := diskUsageFn(p.settings.Journal.ImagesDir)
	if err != nil {
		return errors.New(err).
			Component("imaging").
			Category(errors.CategoryDiskUsage).
			Context("path", p.settings.Journal.ImagesDir).
			Build()
	}
	if usage.UsedPercent > limit {
		return errors.Newf("images filesystem is %.1f%% full, above the %.1f%% limit", usage.UsedPercent, limit).
			Component("imaging").
			Category(errors.CategoryDiskUsage).
			Context("used_percent", usage.UsedPercent).
			Context("limit_percent", limit).
			Build()
	}
	return nil
}

// ProcessImage reads the staged source image and writes all three variants
// under the configured filename, which the caller derives from the sighting
// id and image letter. On any failure the variants written so far are
// removed, so the image tree never holds a partial set.
func (p *Processor) ProcessImage(srcPath, filename string) error {
	for _, variant := range Variants {
		if err := os.MkdirAll(p.settings.ImageVariantDir(variant), 0o750); err != nil {
			return errors.New(err).
				Component("imaging").
				Category(errors.CategoryFileIO).
				Context("variant", variant).
				Build()
		}
	}
	if err := p.CheckDiskSpace(); err != nil {
		return err
	}

	src, err := decodeSource(srcPath)
	if err != nil {
		return err
	}

	written := make([]string, 0, len(Variants))
	for _, spec := range p.plan() {
		target := p.VariantPath(spec.name, filename)
		if err := writeVariant(target, src, spec); err != nil {
			removeFiles(written)
			return errors.New(err).
				Component("imaging").
				Category(errors.CategoryImageProcessing).
				Context("variant", spec.name).
				FileContext(srcPath, 0).
				Build()
		}
		written = append(written, target)
	}

	bounds := src.Bounds()
	imagingLogger.Info("Generated image variants",
		"filename", filename,
		"source", srcPath,
		"width", bounds.Dx(),
		"height", bounds.Dy())
	return nil
}

// Regenerate rebuilds the thumb and web variants of filename from its full
// variant. The full copy is never touched, so regeneration after a settings
// change cannot compound quality loss beyond the one re-encode.
func (p *Processor) Regenerate(filename string) error {
	fullPath := p.VariantPath("full", filename)
	src, err := decodeSource(fullPath)
	if err != nil {
		return err
	}

	for _, spec := range p.plan() {
		if spec.name == "full" {
			continue
		}
		dir := p.settings.ImageVariantDir(spec.name)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.New(err).
				Component("imaging").
				Category(errors.CategoryFileIO).
				Context("variant", spec.name).
				Build()
		}
		target := p.VariantPath(spec.name, filename)
		if err := writeVariant(target, src, spec); err != nil {
			return errors.New(err).
				Component("imaging").
				Category(errors.CategoryImageProcessing).
				Context("variant", spec.name).
				FileContext(fullPath, 0).
				Build()
		}
	}

	imagingLogger.Info("Regenerated image variants", "filename", filename)
	return nil
}

// RemoveVariants deletes all three variants of filename. Files already
// missing are fine; a file that exists but cannot be removed is reported so
// the operator knows the image tree and the store disagree.
func (p *Processor) RemoveVariants(filename string) error {
	var stuck []string
	for _, variant := range Variants {
		target := p.VariantPath(variant, filename)
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			stuck = append(stuck, target)
		}
	}
	if len(stuck) > 0 {
		return errors.Newf("could not remove %s", strings.Join(stuck, ", ")).
			Component("imaging").
			Category(errors.CategoryFileIO).
			Context("filename", filename).
			Build()
	}
	return nil
}

// decodeSource opens and decodes a source image in any registered format.
func decodeSource(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("imaging").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, errors.Newf("decoding %s: %v", path, err).
			Component("imaging").
			Category(errors.CategoryImageProcessing).
			FileContext(path, 0).
			Build()
	}
	imagingLogger.Debug("Decoded source image", "path", path, "format", format)
	return src, nil
}

// writeVariant scales src per spec and encodes it atomically at target.
func writeVariant(target string, src image.Image, spec variantSpec) error {
	scaled := scaleLongestEdge(src, spec.maxEdge)
	err := atomicfile.Write(target, ".variant-*.jpg.tmp", variantFileMode, func(f *os.File) error {
		return jpeg.Encode(f, scaled, &jpeg.Options{Quality: spec.quality})
	})
	if err != nil {
		return fmt.Errorf("writing %s variant: %w", spec.name, err)
	}
	return nil
}

// scaleLongestEdge resizes src so its longest edge is maxEdge pixels,
// preserving aspect ratio. Images already at or below the limit are
// returned unchanged, never upscaled. A zero maxEdge disables scaling.
func scaleLongestEdge(src image.Image, maxEdge int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if maxEdge <= 0 || longest <= maxEdge {
		return src
	}

	scale := float64(maxEdge) / float64(longest)
	dw := int(math.Round(float64(w) * scale))
	dh := int(math.Round(float64(h) * scale))
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Src, nil)
	return dst
}

func removeFiles(paths []string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			imagingLogger.Warn("Failed to clean up partial variant", "path", path, "error", err)
		}
	}
}
