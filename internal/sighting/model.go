// Package sighting owns the journal's system of record: the JSON-backed
// store of photographed observations, identity assignment, and the
// append/edit/delete lifecycle.
package sighting

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Image is one photograph of a sighting. Filenames follow {id}-{letter}.jpg
// with letters assigned in insertion order.
type Image struct {
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
}

// Weather is the daily weather summary attached during enrichment.
// A nil *Weather on a sighting means enrichment was unavailable.
type Weather struct {
	TempMaxC        float64 `json:"temp_max_c"`
	TempMinC        float64 `json:"temp_min_c"`
	PrecipitationMM float64 `json:"precipitation_mm"`
	Conditions      string  `json:"conditions"`
}

// Celestial is the moon and sun state on the capture day. Sunrise and
// sunset are local wall-clock times formatted HH:MM.
type Celestial struct {
	MoonPhase        string  `json:"moon_phase"`
	MoonIllumination float64 `json:"moon_illumination"`
	Sunrise          string  `json:"sunrise"`
	Sunset           string  `json:"sunset"`
}

// Sighting is one documented observation event. Field order matches the
// store file so hand-edits diff cleanly against generated writes.
type Sighting struct {
	ID             string     `json:"id"`
	Images         []Image    `json:"images"`
	CommonName     string     `json:"common_name"`
	ScientificName string     `json:"scientific_name"`
	Category       string     `json:"category"`
	CapturedAt     time.Time  `json:"captured_at"`
	TimeOfDay      string     `json:"time_of_day,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	Weather        *Weather   `json:"weather"`
	Celestial      *Celestial `json:"celestial"`
	Season         string     `json:"season"`
	Notes          string     `json:"notes"`
	SizeMM         *float64   `json:"size_mm,omitempty"`
	IDCertainty    string     `json:"id_certainty,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// idPattern is the YYYYMMDD-NNN identity format.
var idPattern = regexp.MustCompile(`^\d{8}-\d{3}$`)

// ValidID reports whether id matches the YYYYMMDD-NNN format.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// DatePrefix returns the YYYYMMDD prefix for a capture date.
func DatePrefix(date time.Time) string {
	return date.Format("20060102")
}

// ImageFilename builds the canonical filename for one image of a sighting.
func ImageFilename(id string, letter rune) string {
	return fmt.Sprintf("%s-%c.jpg", id, letter)
}

// LeadImage returns the first image filename, or empty for a sighting
// without images (which Append refuses to store, but old hand-edited data
// may contain).
func (s *Sighting) LeadImage() string {
	if len(s.Images) == 0 {
		return ""
	}
	return s.Images[0].Filename
}

// NextImageLetter returns the letter slot for the next image appended to
// the sequence. Letters run a through z in insertion order; the second
// return is false once z is taken.
func NextImageLetter(images []Image) (rune, bool) {
	next := byte('a')
	for _, img := range images {
		name := strings.TrimSuffix(img.Filename, ".jpg")
		i := strings.LastIndex(name, "-")
		if i < 0 || i+2 != len(name) {
			continue
		}
		letter := name[i+1]
		if letter < 'a' || letter > 'z' {
			continue
		}
		if letter+1 > next {
			next = letter + 1
		}
	}
	if next > 'z' {
		return 0, false
	}
	return rune(next), true
}

// SpeciesKey normalizes the common/scientific name pair into the key used
// for unique-species counting. Case and surrounding whitespace do not
// split a species.
func (s *Sighting) SpeciesKey() string {
	return SpeciesKey(s.CommonName, s.ScientificName)
}

// SpeciesKey builds the normalized unique-species key for a name pair.
func SpeciesKey(commonName, scientificName string) string {
	return strings.ToLower(strings.TrimSpace(commonName)) + "|" + strings.ToLower(strings.TrimSpace(scientificName))
}

// TimeOfDay buckets a capture time into morning, afternoon, evening or
// night.
func TimeOfDay(t time.Time) string {
	switch hour := t.Hour(); {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 16:
		return "afternoon"
	case hour >= 16 && hour < 19:
		return "evening"
	default:
		return "night"
	}
}

// TimesOfDay lists the valid time-of-day buckets.
func TimesOfDay() []string {
	return []string{"morning", "afternoon", "evening", "night"}
}

// ValidTimeOfDay reports whether value is one of the time-of-day buckets.
func ValidTimeOfDay(value string) bool {
	switch value {
	case "morning", "afternoon", "evening", "night":
		return true
	}
	return false
}
