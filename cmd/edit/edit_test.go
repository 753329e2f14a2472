package edit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Journal.DataDir = t.TempDir()
	settings.Categories = []string{"bird", "insect", "mammal", "plant", "fungus", "other"}
	return settings
}

func seedSighting(t *testing.T, settings *conf.Settings) {
	t.Helper()
	store, err := sighting.Open(settings.SightingsPath())
	require.NoError(t, err)
	require.NoError(t, store.Append(&sighting.Sighting{
		ID:         "20260815-001",
		CommonName: "Comma",
		Category:   "insect",
		CapturedAt: time.Date(2026, time.August, 15, 11, 0, 0, 0, time.UTC),
		Images:     []sighting.Image{{Filename: "20260815-001-a.jpg"}},
	}))
}

func strPtr(s string) *string { return &s }

func TestRunEditUpdatesFields(t *testing.T) {
	settings := testSettings(t)
	seedSighting(t, settings)

	err := runEdit(settings, "20260815-001", sighting.EditPatch{
		CommonName:     strPtr("comma butterfly"),
		ScientificName: strPtr("Polygonia c-album"),
	})
	require.NoError(t, err)

	store, err := sighting.Open(settings.SightingsPath())
	require.NoError(t, err)
	entry, err := store.Get("20260815-001")
	require.NoError(t, err)
	assert.Equal(t, "Comma Butterfly", entry.CommonName)
	assert.Equal(t, "Polygonia c-album", entry.ScientificName)
	assert.Equal(t, "insect", entry.Category)
}

func TestRunEditRejectsUnknownCategory(t *testing.T) {
	settings := testSettings(t)
	seedSighting(t, settings)

	err := runEdit(settings, "20260815-001", sighting.EditPatch{Category: strPtr("cryptid")})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	store, err := sighting.Open(settings.SightingsPath())
	require.NoError(t, err)
	entry, err := store.Get("20260815-001")
	require.NoError(t, err)
	assert.Equal(t, "insect", entry.Category)
}

func TestRunEditRejectsMalformedScientificName(t *testing.T) {
	settings := testSettings(t)
	seedSighting(t, settings)

	err := runEdit(settings, "20260815-001", sighting.EditPatch{ScientificName: strPtr("Polygonia")})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRunEditUnknownID(t *testing.T) {
	settings := testSettings(t)
	seedSighting(t, settings)

	err := runEdit(settings, "20990101-001", sighting.EditPatch{Notes: strPtr("gone")})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
