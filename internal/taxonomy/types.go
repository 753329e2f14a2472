// Package taxonomy resolves scientific names against the GBIF species
// match API and arranges resolved species into a class/order/family tree.
package taxonomy

import (
	"time"

	"github.com/tkivisto/fieldlog/internal/conf"
)

// Taxon is one resolved GBIF match. It round-trips through the persistent
// cache file, so field names follow the cache's JSON layout.
type Taxon struct {
	Kingdom       string `json:"kingdom,omitempty"`
	Phylum        string `json:"phylum,omitempty"`
	Class         string `json:"class,omitempty"`
	Order         string `json:"order,omitempty"`
	Family        string `json:"family,omitempty"`
	Genus         string `json:"genus,omitempty"`
	Species       string `json:"species,omitempty"`
	GBIFKey       int64  `json:"gbif_key,omitempty"`
	CanonicalName string `json:"canonical_name,omitempty"`
	MatchType     string `json:"match_type,omitempty"`
}

// Record is the minimal sighting view the tree builder consumes. Using a
// local type keeps the package free of a dependency on the sighting store.
type Record struct {
	ID             string // sighting id
	CommonName     string
	ScientificName string
	Image          string // first image filename, may be empty
	Notes          string
}

// SpeciesNode is one species leaf in the tree, carrying enough of its best
// sighting to render a species card.
type SpeciesNode struct {
	CommonName     string `json:"common_name"`
	ScientificName string `json:"scientific_name"`
	SightingID     string `json:"sighting_id"`
	Image          string `json:"image"`
	Notes          string `json:"notes"`
	SightingCount  int    `json:"sighting_count"`
	GBIFKey        int64  `json:"gbif_key,omitempty"`
	Genus          string `json:"genus,omitempty"`
	Taxon          *Taxon `json:"taxonomy,omitempty"`
}

// FamilyNode groups species of one family, sorted by common name.
type FamilyNode struct {
	Name    string        `json:"name"`
	Species []SpeciesNode `json:"species"`
}

// OrderNode groups families of one order.
type OrderNode struct {
	Name     string       `json:"name"`
	Families []FamilyNode `json:"families"`
}

// ClassNode groups orders of one class.
type ClassNode struct {
	Name   string      `json:"name"`
	Orders []OrderNode `json:"orders"`
}

// Tree is the full species tree plus the species GBIF could not place.
// All levels are sorted alphabetically so repeated builds render
// identically.
type Tree struct {
	Classes      []ClassNode   `json:"classes"`
	Unclassified []SpeciesNode `json:"unclassified"`
}

// TreeStats summarizes the tree for the statistics page.
type TreeStats struct {
	Classes  int `json:"classes"`
	Orders   int `json:"orders"`
	Families int `json:"families"`
	Species  int `json:"species"` // classified + unclassified
}

// Config holds configuration for the GBIF client
type Config struct {
	Endpoint    string        // species match endpoint
	CachePath   string        // persistent lookup cache location
	RateLimitMS int           // minimum milliseconds between live lookups
	Timeout     time.Duration // request timeout
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Endpoint:    "https://api.gbif.org/v1/species/match",
		CachePath:   "data/taxonomy.json",
		RateLimitMS: 300, // be nice to GBIF
		Timeout:     10 * time.Second,
	}
}

// ConfigFromSettings builds a client Config from the loaded settings.
func ConfigFromSettings(settings *conf.Settings) Config {
	config := DefaultConfig()
	if settings.Taxonomy.Endpoint != "" {
		config.Endpoint = settings.Taxonomy.Endpoint
	}
	if settings.Taxonomy.CacheFile != "" {
		config.CachePath = settings.TaxonomyCachePath()
	}
	if settings.Taxonomy.RateLimitMS > 0 {
		config.RateLimitMS = settings.Taxonomy.RateLimitMS
	}
	if settings.Taxonomy.Timeout > 0 {
		config.Timeout = time.Duration(settings.Taxonomy.Timeout) * time.Second
	}
	return config
}
