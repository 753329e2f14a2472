package sighting

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tkivisto/fieldlog/internal/atomicfile"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/logging"
)

// Package-level logger for the sighting store
var (
	storeLogger   *slog.Logger
	storeLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	initialLevel := slog.LevelInfo
	storeLevelVar.Set(initialLevel)

	storeLogger, _, err = logging.NewFileLogger("logs/sighting.log", "sighting-store", storeLevelVar)
	if err != nil {
		logging.Error("Failed to initialize sighting store file logger", "error", err)
		// Fallback to a disabled logger (writes to io.Discard) but respects the level var
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: storeLevelVar})
		storeLogger = slog.New(fbHandler).With("service", "sighting-store")
	}
}

// maxDailySequence is the highest sequence number the NNN identity segment
// can carry. The next append on a day that already holds it fails rather
// than minting a malformed four-digit identifier.
const maxDailySequence = 999

// storeFileMode keeps the journal readable by the owning user only.
const storeFileMode os.FileMode = 0o600

// Store is the append-oriented collection of sightings persisted as a
// single pretty-printed JSON array. The file is the system of record and
// is expected to be hand-edited between runs, so every operation works
// from the persisted state rather than cached assumptions about it.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries []Sighting
}

// Open loads the sighting store at path. A missing file yields an empty
// store; a file that exists but does not parse is an error, never silently
// replaced.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		entries: make([]Sighting, 0),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			storeLogger.Info("Sighting store not found, starting empty", "path", path)
			return s, nil
		}
		return nil, errors.New(err).
			Component("sighting-store").
			Category(errors.CategoryFileIO).
			Context("operation", "open-store").
			Context("path", path).
			Build()
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, errors.New(err).
			Component("sighting-store").
			Category(errors.CategoryFileParsing).
			Context("operation", "parse-store").
			Context("path", path).
			Build()
	}
	if s.entries == nil {
		s.entries = make([]Sighting, 0)
	}

	storeLogger.Info("Sighting store loaded", "path", path, "count", len(s.entries))
	return s, nil
}

// Path returns the file backing this store.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of stored sightings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// save writes the full collection atomically: encode to a temp file in the
// store directory, then rename over the target. A crash mid-write leaves
// the previous file intact.
func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.New(err).
			Component("sighting-store").
			Category(errors.CategoryFileIO).
			Context("operation", "create-store-dir").
			Context("path", dir).
			Build()
	}

	err := atomicfile.Write(s.path, ".sightings-*.json.tmp", storeFileMode, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(s.entries)
	})
	if err != nil {
		return errors.New(err).
			Component("sighting-store").
			Category(errors.CategoryFileIO).
			Context("operation", "save-store").
			Context("path", s.path).
			Build()
	}

	return nil
}

// NextID mints the identifier for a new sighting captured on date. The
// sequence continues from the highest already stored for that day, so a
// deleted sighting's number is never reissued within the same session of
// the journal.
func (s *Store) NextID(date time.Time) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := DatePrefix(date)
	maxSeq := 0
	for i := range s.entries {
		id := s.entries[i].ID
		if !ValidID(id) || !strings.HasPrefix(id, prefix+"-") {
			continue
		}
		seq, err := strconv.Atoi(id[len(prefix)+1:])
		if err != nil {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}

	if maxSeq >= maxDailySequence {
		return "", errors.Newf("sighting sequence for %s is exhausted (max %d per day)", prefix, maxDailySequence).
			Component("sighting-store").
			Category(errors.CategoryValidation).
			Context("date", prefix).
			Build()
	}

	return prefix + "-" + zeroPad3(maxSeq+1), nil
}

// zeroPad3 formats a daily sequence number as the fixed-width NNN segment.
func zeroPad3(n int) string {
	out := strconv.Itoa(n)
	for len(out) < 3 {
		out = "0" + out
	}
	return out
}

// Append adds a new sighting and persists the collection. The entry must
// carry a well-formed unused identifier and at least one image.
func (s *Store) Append(entry *Sighting) error {
	if entry == nil {
		return errors.Newf("cannot append nil sighting").
			Component("sighting-store").
			Category(errors.CategoryValidation).
			Build()
	}
	if !ValidID(entry.ID) {
		return errors.Newf("invalid sighting id %q, expected YYYYMMDD-NNN", entry.ID).
			Component("sighting-store").
			Category(errors.CategoryValidation).
			SightingContext(entry.ID, len(entry.Images)).
			Build()
	}
	if len(entry.Images) == 0 {
		return errors.Newf("sighting %s has no images", entry.ID).
			Component("sighting-store").
			Category(errors.CategoryValidation).
			SightingContext(entry.ID, 0).
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID == entry.ID {
			return errors.Newf("sighting %s already exists", entry.ID).
				Component("sighting-store").
				Category(errors.CategoryDuplicate).
				SightingContext(entry.ID, len(entry.Images)).
				Build()
		}
	}

	s.entries = append(s.entries, *entry)
	if err := s.save(); err != nil {
		// Roll back the in-memory append so a retry starts clean
		s.entries = s.entries[:len(s.entries)-1]
		return err
	}

	storeLogger.Info("Sighting appended",
		"id", entry.ID,
		"common_name", entry.CommonName,
		"images", len(entry.Images))
	return nil
}

// Get returns a copy of the sighting with the given identifier.
func (s *Store) Get(id string) (*Sighting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			entry := s.entries[i]
			return &entry, nil
		}
	}

	return nil, errors.Newf("sighting %s not found", id).
		Component("sighting-store").
		Category(errors.CategoryNotFound).
		SightingContext(id, 0).
		Build()
}

// EditPatch carries the editable sighting fields. Nil fields are left
// untouched; identity, images, capture time and enrichment data are not
// editable through the store.
type EditPatch struct {
	CommonName     *string
	ScientificName *string
	Category       *string
	Notes          *string
}

// empty reports whether the patch changes nothing.
func (p *EditPatch) empty() bool {
	return p.CommonName == nil && p.ScientificName == nil && p.Category == nil && p.Notes == nil
}

// Edit applies a patch to the identified sighting and persists the
// collection. It returns a copy of the updated entry.
func (s *Store) Edit(id string, patch EditPatch) (*Sighting, error) {
	if patch.empty() {
		return nil, errors.Newf("no fields to edit for sighting %s", id).
			Component("sighting-store").
			Category(errors.CategoryValidation).
			SightingContext(id, 0).
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID != id {
			continue
		}

		prev := s.entries[i]
		if patch.CommonName != nil {
			s.entries[i].CommonName = *patch.CommonName
		}
		if patch.ScientificName != nil {
			s.entries[i].ScientificName = *patch.ScientificName
		}
		if patch.Category != nil {
			s.entries[i].Category = *patch.Category
		}
		if patch.Notes != nil {
			s.entries[i].Notes = *patch.Notes
		}

		if err := s.save(); err != nil {
			s.entries[i] = prev
			return nil, err
		}

		updated := s.entries[i]
		storeLogger.Info("Sighting edited", "id", id)
		return &updated, nil
	}

	return nil, errors.Newf("sighting %s not found", id).
		Component("sighting-store").
		Category(errors.CategoryNotFound).
		SightingContext(id, 0).
		Build()
}

// AddImage appends one image descriptor to an existing sighting and
// persists the collection. The caller is responsible for having generated
// the variant files under the descriptor's filename first.
func (s *Store) AddImage(id string, img Image) (*Sighting, error) {
	if img.Filename == "" {
		return nil, errors.Newf("image filename is required").
			Component("sighting-store").
			Category(errors.CategoryValidation).
			SightingContext(id, 0).
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID != id {
			continue
		}

		// Fresh backing array so the rollback slice stays intact
		prev := s.entries[i].Images
		images := make([]Image, 0, len(prev)+1)
		images = append(images, prev...)
		s.entries[i].Images = append(images, img)

		if err := s.save(); err != nil {
			s.entries[i].Images = prev
			return nil, err
		}

		updated := s.entries[i]
		storeLogger.Info("Image added to sighting",
			"id", id,
			"filename", img.Filename,
			"images", len(updated.Images))
		return &updated, nil
	}

	return nil, errors.Newf("sighting %s not found", id).
		Component("sighting-store").
		Category(errors.CategoryNotFound).
		SightingContext(id, 0).
		Build()
}

// SetEnrichment replaces the weather and celestial data of the identified
// sighting and persists the collection. Used by backfill; operator edits
// go through Edit, which cannot touch enrichment fields.
func (s *Store) SetEnrichment(id string, weather *Weather, celestial *Celestial) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID != id {
			continue
		}

		prevWeather, prevCelestial := s.entries[i].Weather, s.entries[i].Celestial
		s.entries[i].Weather = weather
		s.entries[i].Celestial = celestial

		if err := s.save(); err != nil {
			s.entries[i].Weather, s.entries[i].Celestial = prevWeather, prevCelestial
			return err
		}

		storeLogger.Info("Sighting enrichment updated", "id", id,
			"weather", weather != nil, "celestial", celestial != nil)
		return nil
	}

	return errors.Newf("sighting %s not found", id).
		Component("sighting-store").
		Category(errors.CategoryNotFound).
		SightingContext(id, 0).
		Build()
}

// Delete removes the identified sighting, persists the collection, and
// returns a copy of the removed entry so the caller can clean up its
// image variants.
func (s *Store) Delete(id string) (*Sighting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID != id {
			continue
		}

		removed := s.entries[i]
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		if err := s.save(); err != nil {
			// Reinsert at the original position so the store matches disk
			s.entries = append(s.entries[:i], append([]Sighting{removed}, s.entries[i:]...)...)
			return nil, err
		}

		storeLogger.Info("Sighting deleted", "id", id, "images", len(removed.Images))
		return &removed, nil
	}

	return nil, errors.Newf("sighting %s not found", id).
		Component("sighting-store").
		Category(errors.CategoryNotFound).
		SightingContext(id, 0).
		Build()
}

// All returns a copy of every sighting in stored (append) order.
func (s *Store) All() []Sighting {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Sighting, len(s.entries))
	copy(out, s.entries)
	return out
}

// ListFilter narrows List output. Zero values mean no filtering.
type ListFilter struct {
	Category string
	Season   string
	Limit    int
}

// List returns sightings most recent first. Entries captured at the same
// instant order by identifier descending so repeated runs print the same
// sequence.
func (s *Store) List(filter ListFilter) []Sighting {
	s.mu.RLock()
	out := make([]Sighting, 0, len(s.entries))
	for i := range s.entries {
		entry := s.entries[i]
		if filter.Category != "" && entry.Category != filter.Category {
			continue
		}
		if filter.Season != "" && entry.Season != filter.Season {
			continue
		}
		out = append(out, entry)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CapturedAt.Equal(out[j].CapturedAt) {
			return out[i].CapturedAt.After(out[j].CapturedAt)
		}
		return out[i].ID > out[j].ID
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Stats summarizes the whole collection.
type Stats struct {
	Total         int
	UniqueSpecies int
	FirstCapture  time.Time
	LastCapture   time.Time
	ByCategory    map[string]int
	BySeason      map[string]int
}

// Stats computes collection totals. FirstCapture and LastCapture are zero
// when the store is empty.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Total:      len(s.entries),
		ByCategory: make(map[string]int),
		BySeason:   make(map[string]int),
	}

	species := make(map[string]struct{})
	for i := range s.entries {
		entry := &s.entries[i]
		species[entry.SpeciesKey()] = struct{}{}
		stats.ByCategory[entry.Category]++
		stats.BySeason[entry.Season]++

		if stats.FirstCapture.IsZero() || entry.CapturedAt.Before(stats.FirstCapture) {
			stats.FirstCapture = entry.CapturedAt
		}
		if stats.LastCapture.IsZero() || entry.CapturedAt.After(stats.LastCapture) {
			stats.LastCapture = entry.CapturedAt
		}
	}
	stats.UniqueSpecies = len(species)

	return stats
}

// CommonNames returns the distinct stored common names in first-seen
// order. Name normalization reuses these spellings so one species does not
// fork into case variants.
func (s *Store) CommonNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.entries))
	out := make([]string, 0, len(s.entries))
	for i := range s.entries {
		name := s.entries[i].CommonName
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Tags returns the distinct tag vocabulary in first-seen order.
func (s *Store) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i := range s.entries {
		for _, tag := range s.entries[i].Tags {
			key := strings.ToLower(strings.TrimSpace(tag))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// HasSpecies reports whether a species (by normalized name pair) already
// appears in the store.
func (s *Store) HasSpecies(commonName, scientificName string) bool {
	key := SpeciesKey(commonName, scientificName)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.entries {
		if s.entries[i].SpeciesKey() == key {
			return true
		}
	}
	return false
}
