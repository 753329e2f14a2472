// Package quicklog persists photo-less observations of recurring species.
// One entry represents one species on one calendar day; logging the same
// species again that day increments the entry instead of duplicating it.
// The package also owns species name normalization and validation, which
// the ingestion flow reuses so both stores share one spelling of a name.
package quicklog

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tkivisto/fieldlog/internal/atomicfile"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/logging"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Package-level logger for the quick-log store
var (
	storeLogger   *slog.Logger
	storeLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	initialLevel := slog.LevelInfo
	storeLevelVar.Set(initialLevel)

	storeLogger, _, err = logging.NewFileLogger("logs/quicklog.log", "quicklog-store", storeLevelVar)
	if err != nil {
		logging.Error("Failed to initialize quick-log store file logger", "error", err)
		// Fallback to a disabled logger (writes to io.Discard) but respects the level var
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: storeLevelVar})
		storeLogger = slog.New(fbHandler).With("service", "quicklog-store")
	}
}

// clock is a package-level time source so tests can pin "today".
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// storeFileMode keeps the journal readable by the owning user only.
const storeFileMode os.FileMode = 0o600

// dayFormat is the calendar-day half of the dedup key.
const dayFormat = time.DateOnly

// Entry is one species on one calendar day. Total counts how many times
// the species was logged that day; FirstLoggedAt keeps the day's first
// observation time while LastLoggedAt tracks the most recent.
type Entry struct {
	SpeciesName    string    `json:"species_name"`
	ScientificName string    `json:"scientific_name,omitempty"`
	Date           string    `json:"date"`
	TimeOfDay      string    `json:"time_of_day,omitempty"`
	Note           string    `json:"note,omitempty"`
	Total          int       `json:"total"`
	FirstLoggedAt  time.Time `json:"first_logged_at"`
	LastLoggedAt   time.Time `json:"last_logged_at"`
}

// entryKey builds the (normalized species, day) dedup key. The scientific
// name is informational and never part of identity.
func entryKey(speciesName, day string) string {
	return strings.ToLower(speciesName) + "|" + day
}

// Store is the JSON-backed quick-log collection.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries []Entry
}

// Open loads the quick-log store at path. A missing file yields an empty
// store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		entries: make([]Entry, 0),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			storeLogger.Info("Quick-log store not found, starting empty", "path", path)
			return s, nil
		}
		return nil, errors.New(err).
			Component("quicklog-store").
			Category(errors.CategoryFileIO).
			Context("operation", "open-store").
			Context("path", path).
			Build()
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, errors.New(err).
			Component("quicklog-store").
			Category(errors.CategoryFileParsing).
			Context("operation", "parse-store").
			Context("path", path).
			Build()
	}
	if s.entries == nil {
		s.entries = make([]Entry, 0)
	}

	storeLogger.Info("Quick-log store loaded", "path", path, "count", len(s.entries))
	return s, nil
}

// Path returns the file backing this store.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.New(err).
			Component("quicklog-store").
			Category(errors.CategoryFileIO).
			Context("operation", "create-store-dir").
			Context("path", dir).
			Build()
	}

	err := atomicfile.Write(s.path, ".quicklog-*.json.tmp", storeFileMode, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(s.entries)
	})
	if err != nil {
		return errors.New(err).
			Component("quicklog-store").
			Category(errors.CategoryFileIO).
			Context("operation", "save-store").
			Context("path", s.path).
			Build()
	}

	return nil
}

// LogRequest describes one quick-log call. KnownNames extends the
// spelling vocabulary beyond this store, typically with the sighting
// store's common names, so a species logged both ways keeps one spelling.
type LogRequest struct {
	SpeciesName    string
	ScientificName string
	TimeOfDay      string
	Note           string
	At             time.Time // zero means now
	KnownNames     []string
}

// Log records one observation. The species name is validated and
// normalized first; the (species, day) pair then either creates a new
// entry with total 1 or increments the existing one and refreshes
// last_logged_at. Returns the entry copy and whether it was created.
func (s *Store) Log(req LogRequest) (*Entry, bool, error) {
	name, err := ValidateCommonName(req.SpeciesName)
	if err != nil {
		return nil, false, err
	}

	scientificName, err := ValidateScientificName(req.ScientificName)
	if err != nil {
		return nil, false, err
	}

	if req.TimeOfDay != "" && !sighting.ValidTimeOfDay(req.TimeOfDay) {
		return nil, false, errors.Newf("invalid time of day %q, choose from: %s", req.TimeOfDay, strings.Join(sighting.TimesOfDay(), "/")).
			Component("quicklog-store").
			Category(errors.CategoryValidation).
			Build()
	}

	at := req.At
	if at.IsZero() {
		at = clock.Now()
	}
	day := at.Format(dayFormat)

	s.mu.Lock()
	defer s.mu.Unlock()

	known := make([]string, 0, len(req.KnownNames)+len(s.entries))
	known = append(known, req.KnownNames...)
	for i := range s.entries {
		known = append(known, s.entries[i].SpeciesName)
	}
	name = NormalizeName(name, known)

	key := entryKey(name, day)
	for i := range s.entries {
		if entryKey(s.entries[i].SpeciesName, s.entries[i].Date) != key {
			continue
		}

		prev := s.entries[i]
		s.entries[i].Total++
		s.entries[i].LastLoggedAt = at
		if err := s.save(); err != nil {
			s.entries[i] = prev
			return nil, false, err
		}

		updated := s.entries[i]
		storeLogger.Info("Quick-log entry incremented",
			"species", updated.SpeciesName, "date", day, "total", updated.Total)
		return &updated, false, nil
	}

	entry := Entry{
		SpeciesName:    name,
		ScientificName: scientificName,
		Date:           day,
		TimeOfDay:      req.TimeOfDay,
		Note:           req.Note,
		Total:          1,
		FirstLoggedAt:  at,
		LastLoggedAt:   at,
	}
	s.entries = append(s.entries, entry)
	if err := s.save(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return nil, false, err
	}

	storeLogger.Info("Quick-log entry created", "species", name, "date", day)
	return &entry, true, nil
}

// All returns a copy of every entry in stored order.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ForDay returns the entries logged on the calendar day of date, sorted by
// species name.
func (s *Store) ForDay(date time.Time) []Entry {
	day := date.Format(dayFormat)

	s.mu.RLock()
	out := make([]Entry, 0)
	for i := range s.entries {
		if s.entries[i].Date == day {
			out = append(out, s.entries[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].SpeciesName) < strings.ToLower(out[j].SpeciesName)
	})
	return out
}

// CommonNames returns the distinct species names in first-seen order.
func (s *Store) CommonNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.entries))
	out := make([]string, 0, len(s.entries))
	for i := range s.entries {
		name := s.entries[i].SpeciesName
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

// HasSpecies reports whether the species has been quick-logged on any day.
func (s *Store) HasSpecies(name string) bool {
	key := strings.ToLower(strings.TrimSpace(name))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.entries {
		if strings.ToLower(s.entries[i].SpeciesName) == key {
			return true
		}
	}
	return false
}

// SpeciesTotal sums the logged count for one species across all days.
func (s *Store) SpeciesTotal(name string) int {
	key := strings.ToLower(strings.TrimSpace(name))

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for i := range s.entries {
		if strings.ToLower(s.entries[i].SpeciesName) == key {
			total += s.entries[i].Total
		}
	}
	return total
}

// Stats aggregates the whole collection.
type Stats struct {
	TotalLogged   int // every log call, including same-day increments
	UniqueSpecies int
}

// Stats computes collection totals across all days.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{}
	species := make(map[string]struct{})
	for i := range s.entries {
		stats.TotalLogged += s.entries[i].Total
		species[strings.ToLower(s.entries[i].SpeciesName)] = struct{}{}
	}
	stats.UniqueSpecies = len(species)
	return stats
}
