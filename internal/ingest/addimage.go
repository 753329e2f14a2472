package ingest

import (
	"fmt"
	"os"

	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/imaging"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// AddImageOptions adjusts a single-image addition.
type AddImageOptions struct {
	Caption string
	Keep    bool // keep the source file instead of removing it
}

// AddImage processes one more photo for an existing sighting, appends its
// descriptor under the next free letter and returns the stored filename.
// The source file is removed on success unless Keep is set.
func (p *Pipeline) AddImage(id, srcPath string, opts AddImageOptions) (string, error) {
	if !imaging.SupportedSource(srcPath) {
		return "", errors.Newf("%s is not a supported image (.jpg, .jpeg, .png)", srcPath).
			Component("ingest").
			Category(errors.CategoryValidation).
			Build()
	}
	if _, err := os.Stat(srcPath); err != nil {
		return "", errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			FileContext(srcPath, 0).
			Build()
	}

	entry, err := p.sightings.Get(id)
	if err != nil {
		return "", err
	}
	letter, ok := sighting.NextImageLetter(entry.Images)
	if !ok {
		return "", errors.Newf("sighting %s already uses image letter z", id).
			Component("ingest").
			Category(errors.CategoryValidation).
			SightingContext(id, len(entry.Images)).
			Build()
	}

	filename := sighting.ImageFilename(id, letter)
	fmt.Fprintf(p.out, "Adding image to: %s (%s)\n", entry.CommonName, id)
	fmt.Fprintf(p.out, "  New image will be: %s\n", filename)

	if err := p.imaging.ProcessImage(srcPath, filename); err != nil {
		return "", err
	}
	if _, err := p.sightings.AddImage(id, sighting.Image{Filename: filename, Caption: opts.Caption}); err != nil {
		p.removeProcessed([]sighting.Image{{Filename: filename}})
		return "", err
	}

	if !opts.Keep {
		if err := os.Remove(srcPath); err != nil {
			ingestLogger.Warn("Failed to remove source after adding image", "path", srcPath, "error", err)
			fmt.Fprintf(p.out, "  ! Could not remove source %s\n", srcPath)
		}
	}

	fmt.Fprintf(p.out, "✓ Added: %s\n", filename)
	return filename, nil
}
