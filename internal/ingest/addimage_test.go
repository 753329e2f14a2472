package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/imaging"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

func seedSighting(t *testing.T, p *Pipeline, id string, images ...sighting.Image) *sighting.Sighting {
	t.Helper()
	if len(images) == 0 {
		images = []sighting.Image{{Filename: id + "-a.jpg"}}
	}
	entry := &sighting.Sighting{
		ID:             id,
		Images:         images,
		CommonName:     "Seven-spot Ladybird",
		ScientificName: "Coccinella septempunctata",
		Category:       "insect",
		CapturedAt:     time.Date(2026, time.August, 15, 14, 30, 0, 0, time.UTC),
		TimeOfDay:      "afternoon",
		Season:         "summer",
		CreatedAt:      time.Date(2026, time.August, 15, 20, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.sightings.Append(entry))
	return entry
}

func TestAddImageAppendsNextLetter(t *testing.T) {
	settings := newTestSettings(t)
	p, _ := newTestPipeline(t, settings, nil)
	seedSighting(t, p, "20260815-001")

	src := filepath.Join(t.TempDir(), "second.jpg")
	writeJPEG(t, src, 800, 600)

	filename, err := p.AddImage("20260815-001", src, AddImageOptions{Caption: "Underside"})
	require.NoError(t, err)
	assert.Equal(t, "20260815-001-b.jpg", filename)

	entry, err := p.sightings.Get("20260815-001")
	require.NoError(t, err)
	require.Len(t, entry.Images, 2)
	assert.Equal(t, "Underside", entry.Images[1].Caption)

	for _, variant := range imaging.Variants {
		_, statErr := os.Stat(p.imaging.VariantPath(variant, filename))
		assert.NoError(t, statErr, "variant %s", variant)
	}

	// Source is consumed by default.
	_, statErr := os.Stat(src)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAddImageKeepsSource(t *testing.T) {
	settings := newTestSettings(t)
	p, _ := newTestPipeline(t, settings, nil)
	seedSighting(t, p, "20260815-001")

	src := filepath.Join(t.TempDir(), "second.jpg")
	writeJPEG(t, src, 640, 480)

	_, err := p.AddImage("20260815-001", src, AddImageOptions{Keep: true})
	require.NoError(t, err)

	_, statErr := os.Stat(src)
	assert.NoError(t, statErr)
}

func TestAddImageUnknownSighting(t *testing.T) {
	settings := newTestSettings(t)
	p, _ := newTestPipeline(t, settings, nil)

	src := filepath.Join(t.TempDir(), "second.jpg")
	writeJPEG(t, src, 640, 480)

	_, err := p.AddImage("20260815-001", src, AddImageOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestAddImageUnsupportedExtension(t *testing.T) {
	settings := newTestSettings(t)
	p, _ := newTestPipeline(t, settings, nil)
	seedSighting(t, p, "20260815-001")

	_, err := p.AddImage("20260815-001", "notes.txt", AddImageOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestAddImageLetterExhausted(t *testing.T) {
	settings := newTestSettings(t)
	p, _ := newTestPipeline(t, settings, nil)
	seedSighting(t, p, "20260815-001", sighting.Image{Filename: "20260815-001-z.jpg"})

	src := filepath.Join(t.TempDir(), "overflow.jpg")
	writeJPEG(t, src, 640, 480)

	_, err := p.AddImage("20260815-001", src, AddImageOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "letter z")
}
