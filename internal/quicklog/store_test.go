package quicklog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkivisto/fieldlog/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quicklog.json")
	store, err := Open(path)
	require.NoError(t, err)
	return store
}

var (
	morningAt = time.Date(2026, time.August, 23, 9, 15, 0, 0, time.UTC)
	eveningAt = time.Date(2026, time.August, 23, 18, 40, 0, 0, time.UTC)
	nextDayAt = time.Date(2026, time.August, 24, 8, 5, 0, 0, time.UTC)
)

func TestLogCreatesEntry(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	entry, created, err := store.Log(LogRequest{
		SpeciesName:    "carpenter ant",
		ScientificName: "Camponotus parius",
		TimeOfDay:      "morning",
		Note:           "Trail along the kitchen wall",
		At:             morningAt,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Carpenter Ant", entry.SpeciesName)
	assert.Equal(t, "Camponotus parius", entry.ScientificName)
	assert.Equal(t, "2026-08-23", entry.Date)
	assert.Equal(t, "morning", entry.TimeOfDay)
	assert.Equal(t, 1, entry.Total)
	assert.True(t, morningAt.Equal(entry.FirstLoggedAt))
	assert.True(t, morningAt.Equal(entry.LastLoggedAt))
}

func TestLogSameDayIncrements(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, created, err := store.Log(LogRequest{SpeciesName: "Carpenter Ant", At: morningAt})
	require.NoError(t, err)
	assert.True(t, created)

	entry, created, err := store.Log(LogRequest{SpeciesName: "Carpenter Ant", At: eveningAt})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, entry.Total)
	assert.True(t, morningAt.Equal(entry.FirstLoggedAt))
	assert.True(t, eveningAt.Equal(entry.LastLoggedAt))
	assert.Equal(t, 1, store.Len())
}

func TestLogDifferentDayCreatesNewEntry(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, _, err := store.Log(LogRequest{SpeciesName: "Carpenter Ant", At: morningAt})
	require.NoError(t, err)

	entry, created, err := store.Log(LogRequest{SpeciesName: "Carpenter Ant", At: nextDayAt})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, entry.Total)
	assert.Equal(t, "2026-08-24", entry.Date)
	assert.Equal(t, 2, store.Len())
}

func TestLogNormalizationMergesSpellings(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, _, err := store.Log(LogRequest{SpeciesName: "carpenter ant", At: morningAt})
	require.NoError(t, err)

	// Different casing and internal whitespace, same species and day
	entry, created, err := store.Log(LogRequest{SpeciesName: "Carpenter   Ant", At: eveningAt})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Carpenter Ant", entry.SpeciesName)
	assert.Equal(t, 2, entry.Total)
	assert.Equal(t, 1, store.Len())
}

func TestLogReusesKnownNamesSpelling(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	entry, _, err := store.Log(LogRequest{
		SpeciesName: "rgb jumping spider",
		At:          morningAt,
		KnownNames:  []string{"RGB Jumping Spider"},
	})
	require.NoError(t, err)
	assert.Equal(t, "RGB Jumping Spider", entry.SpeciesName)
}

func TestLogScientificNameIsInformationalOnly(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, _, err := store.Log(LogRequest{
		SpeciesName:    "Carpenter Ant",
		ScientificName: "Camponotus parius",
		At:             morningAt,
	})
	require.NoError(t, err)

	// A different scientific name still lands on the same entry and does
	// not rewrite the stored one
	entry, created, err := store.Log(LogRequest{
		SpeciesName:    "Carpenter Ant",
		ScientificName: "Camponotus ligniperda",
		At:             eveningAt,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Camponotus parius", entry.ScientificName)
}

func TestLogRejectsParentheticalName(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, _, err := store.Log(LogRequest{
		SpeciesName: "Carpenter Ant (Camponotus parius)",
		At:          morningAt,
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, 0, store.Len())
}

func TestLogRejectsBareSp(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, _, err := store.Log(LogRequest{
		SpeciesName:    "Crane Fly",
		ScientificName: "Tipula sp",
		At:             morningAt,
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), `"Tipula sp."`)
	assert.Equal(t, 0, store.Len())
}

func TestLogRejectsBadTimeOfDay(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, _, err := store.Log(LogRequest{
		SpeciesName: "Carpenter Ant",
		TimeOfDay:   "noonish",
		At:          morningAt,
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestLogDefaultsToClockNow(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(morningAt))
	t.Cleanup(func() { SetClock(nil) })

	store := newTestStore(t)
	entry, _, err := store.Log(LogRequest{SpeciesName: "Carpenter Ant"})
	require.NoError(t, err)
	assert.Equal(t, "2026-08-23", entry.Date)
	assert.True(t, morningAt.Equal(entry.LastLoggedAt))
}

func TestLogPersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, _, err := store.Log(LogRequest{SpeciesName: "Carpenter Ant", At: morningAt})
	require.NoError(t, err)

	reopened, err := Open(store.Path())
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Len())

	// Dedup key survives the reload
	entry, created, err := reopened.Log(LogRequest{SpeciesName: "carpenter ant", At: eveningAt})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, entry.Total)
	assert.True(t, morningAt.Equal(entry.FirstLoggedAt))
}

func TestOpenCorruptFileFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quicklog.json")
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o600))

	_, err := Open(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestForDaySortedBySpecies(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	for _, name := range []string{"Wool Carder Bee", "Carpenter Ant", "garden snail"} {
		_, _, err := store.Log(LogRequest{SpeciesName: name, At: morningAt})
		require.NoError(t, err)
	}
	_, _, err := store.Log(LogRequest{SpeciesName: "Carpenter Ant", At: nextDayAt})
	require.NoError(t, err)

	entries := store.ForDay(morningAt)
	require.Len(t, entries, 3)
	assert.Equal(t, "Carpenter Ant", entries[0].SpeciesName)
	assert.Equal(t, "Garden Snail", entries[1].SpeciesName)
	assert.Equal(t, "Wool Carder Bee", entries[2].SpeciesName)
}

func TestStats(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, _, err := store.Log(LogRequest{SpeciesName: "Carpenter Ant", At: morningAt})
	require.NoError(t, err)
	_, _, err = store.Log(LogRequest{SpeciesName: "Carpenter Ant", At: eveningAt})
	require.NoError(t, err)
	_, _, err = store.Log(LogRequest{SpeciesName: "carpenter ant", At: nextDayAt})
	require.NoError(t, err)
	_, _, err = store.Log(LogRequest{SpeciesName: "Garden Snail", At: morningAt})
	require.NoError(t, err)

	stats := store.Stats()
	assert.Equal(t, 4, stats.TotalLogged)
	assert.Equal(t, 2, stats.UniqueSpecies)
}

func TestSpeciesTotalAcrossDays(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, _, err := store.Log(LogRequest{SpeciesName: "Carpenter Ant", At: morningAt})
	require.NoError(t, err)
	_, _, err = store.Log(LogRequest{SpeciesName: "Carpenter Ant", At: eveningAt})
	require.NoError(t, err)
	_, _, err = store.Log(LogRequest{SpeciesName: "Carpenter Ant", At: nextDayAt})
	require.NoError(t, err)

	assert.Equal(t, 3, store.SpeciesTotal("carpenter ant"))
	assert.Equal(t, 0, store.SpeciesTotal("Garden Snail"))
}

func TestHasSpecies(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, _, err := store.Log(LogRequest{SpeciesName: "Carpenter Ant", At: morningAt})
	require.NoError(t, err)

	assert.True(t, store.HasSpecies("carpenter ant"))
	assert.True(t, store.HasSpecies(" CARPENTER ANT "))
	assert.False(t, store.HasSpecies("Garden Snail"))
}
