package taxonomy

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antonholmquist/jason"
	"golang.org/x/time/rate"

	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/logging"
)

// Package-level logger specific to taxonomy service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "taxonomy.log")
	initialLevel := slog.LevelInfo
	serviceLevelVar.Set(initialLevel)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "taxonomy", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize taxonomy file logger at %s: %v", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "taxonomy")
		closeLogger = func() error { return nil }
	}
}

// Client answers scientific-name lookups against the GBIF species match
// API through a persistent cache. Matches, including confirmed non-matches,
// are cached forever; transient failures are never cached so the next run
// retries them.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter

	mu      sync.RWMutex
	entries map[string]*Taxon // nil value records a confirmed non-match
	dirty   bool
}

// NewClient creates a GBIF client and loads the persistent cache.
// A missing cache file starts an empty cache; an unreadable one is logged
// and discarded, since every entry can be refetched.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		config.Endpoint = DefaultConfig().Endpoint
	}
	if config.CachePath == "" {
		config.CachePath = DefaultConfig().CachePath
	}
	if config.RateLimitMS <= 0 {
		config.RateLimitMS = DefaultConfig().RateLimitMS
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	client := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Duration(config.RateLimitMS)*time.Millisecond), 1),
		entries:    make(map[string]*Taxon),
	}

	client.loadCache()

	logger.Info("GBIF client initialized",
		"endpoint", config.Endpoint,
		"cache_path", config.CachePath,
		"cached_entries", len(client.entries),
		"rate_limit_ms", config.RateLimitMS)

	return client, nil
}

// Close releases the client's log file.
func (c *Client) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing taxonomy logger: %v", err)
		}
	}
}

// loadCache reads the persistent cache file into memory.
func (c *Client) loadCache() {
	data, err := os.ReadFile(c.config.CachePath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Could not read taxonomy cache, starting empty",
				"cache_path", c.config.CachePath, "error", err)
		}
		return
	}

	var entries map[string]*Taxon
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("Taxonomy cache is not valid JSON, starting empty",
			"cache_path", c.config.CachePath, "error", err)
		return
	}
	c.entries = entries
	if c.entries == nil {
		c.entries = make(map[string]*Taxon)
	}
}

// Save writes the cache back to disk if any lookup changed it. The write
// goes through a temp file so a crash cannot truncate the cache.
func (c *Client) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryPersistence).
			Context("operation", "marshal_cache").
			Build()
	}

	dir := filepath.Dir(c.config.CachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryFileIO).
			Context("operation", "create_cache_dir").
			Context("path", dir).
			Build()
	}

	tempFile, err := os.CreateTemp(dir, "taxonomy-*.json")
	if err != nil {
		return errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryFileIO).
			Context("operation", "create_temp_cache").
			Build()
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryFileIO).
			Context("operation", "write_temp_cache").
			Build()
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryFileIO).
			Context("operation", "close_temp_cache").
			Build()
	}
	if err := os.Rename(tempPath, c.config.CachePath); err != nil {
		os.Remove(tempPath)
		return errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryFileIO).
			Context("operation", "replace_cache").
			Context("path", c.config.CachePath).
			Build()
	}

	c.dirty = false
	logger.Debug("Taxonomy cache saved", "entries", len(c.entries))
	return nil
}

// CachedCount returns the number of cached lookups, including non-matches.
func (c *Client) CachedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cached answers a lookup from the cache alone, never touching the
// network. It returns nil both for unknown names and for cached
// non-matches, which is the shape the tree builder wants when live
// lookups are turned off.
func (c *Client) Cached(scientificName string) *Taxon {
	key := cacheKey(scientificName)
	if key == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key]
}

// cacheKey normalizes a scientific name into its cache key.
func cacheKey(scientificName string) string {
	return strings.ToLower(strings.TrimSpace(scientificName))
}

// noMatchError builds the not-found error returned for both fresh and
// cached GBIF non-matches.
func noMatchError(scientificName string) error {
	return errors.Newf("no GBIF match for %q", scientificName).
		Component("taxonomy").
		Category(errors.CategoryNotFound).
		Context("scientific_name", scientificName).
		Build()
}

// Lookup resolves one scientific name. Cache hits, including cached
// non-matches, return without touching the network; live lookups pass
// through the rate limiter first.
func (c *Client) Lookup(ctx context.Context, scientificName string) (*Taxon, error) {
	key := cacheKey(scientificName)
	if key == "" {
		return nil, errors.Newf("scientific name is empty").
			Component("taxonomy").
			Category(errors.CategoryValidation).
			Build()
	}

	c.mu.RLock()
	taxon, found := c.entries[key]
	c.mu.RUnlock()
	if found {
		if taxon == nil {
			logger.Debug("Cached non-match", "scientific_name", scientificName)
			return nil, noMatchError(scientificName)
		}
		logger.Debug("Cache hit", "scientific_name", scientificName)
		return taxon, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryCancellation).
			Context("operation", "rate_limit_wait").
			Build()
	}

	taxon, matched, err := c.fetchMatch(ctx, scientificName)
	if err != nil {
		// Transient failure: do not cache, the next run should retry
		return nil, err
	}

	c.mu.Lock()
	if matched {
		c.entries[key] = taxon
	} else {
		c.entries[key] = nil
	}
	c.dirty = true
	c.mu.Unlock()

	if !matched {
		logger.Info("GBIF returned no match", "scientific_name", scientificName)
		return nil, noMatchError(scientificName)
	}

	logger.Info("GBIF match resolved",
		"scientific_name", scientificName,
		"match_type", taxon.MatchType,
		"gbif_key", taxon.GBIFKey)
	return taxon, nil
}

// fetchMatch performs one live species match request. matched is false when
// GBIF answered but found nothing; err covers transport and parse failures.
func (c *Client) fetchMatch(ctx context.Context, scientificName string) (taxon *Taxon, matched bool, err error) {
	params := url.Values{}
	params.Set("name", strings.TrimSpace(scientificName))
	requestURL := c.config.Endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, false, errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryNetwork).
			Context("operation", "create_request").
			Build()
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryNetwork).
			Context("operation", "species_match").
			Context("scientific_name", scientificName).
			Build()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryNetwork).
			Context("operation", "read_response_body").
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, errors.Newf("GBIF API error (status %d)", resp.StatusCode).
			Component("taxonomy").
			Category(statusCategory(resp.StatusCode)).
			Context("status_code", resp.StatusCode).
			Context("scientific_name", scientificName).
			Build()
	}

	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, false, errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryFileParsing).
			Context("operation", "parse_response").
			Context("response_size", len(body)).
			Build()
	}

	matchType, _ := obj.GetString("matchType")
	if matchType == "" || matchType == "NONE" {
		return nil, false, nil
	}

	taxon = &Taxon{MatchType: matchType}
	taxon.Kingdom, _ = obj.GetString("kingdom")
	taxon.Phylum, _ = obj.GetString("phylum")
	taxon.Class, _ = obj.GetString("class")
	taxon.Order, _ = obj.GetString("order")
	taxon.Family, _ = obj.GetString("family")
	taxon.Genus, _ = obj.GetString("genus")
	taxon.CanonicalName, _ = obj.GetString("canonicalName")
	taxon.GBIFKey, _ = obj.GetInt64("usageKey")

	taxon.Species, _ = obj.GetString("species")
	if taxon.Species == "" {
		taxon.Species = taxon.CanonicalName
	}

	return taxon, true, nil
}

// statusCategory maps GBIF HTTP status codes onto error categories.
func statusCategory(statusCode int) errors.ErrorCategory {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return errors.CategoryLimit
	default:
		return errors.CategoryNetwork
	}
}

// FetchAll resolves taxonomy for every unique scientific name in names,
// reusing the cache and rate-limiting live calls. Individual failures are
// logged and skipped; only context cancellation aborts the batch. The cache
// is saved before returning. It reports how many live lookups were made.
func (c *Client) FetchAll(ctx context.Context, names []string) (fetched int, err error) {
	unique := make(map[string]string) // cache key -> original spelling
	for _, name := range names {
		key := cacheKey(name)
		if key == "" {
			continue
		}
		if _, ok := unique[key]; !ok {
			unique[key] = strings.TrimSpace(name)
		}
	}

	keys := make([]string, 0, len(unique))
	for key := range unique {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	logger.Info("Resolving taxonomy", "unique_species", len(keys))

	for _, key := range keys {
		c.mu.RLock()
		_, cached := c.entries[key]
		c.mu.RUnlock()
		if cached {
			continue
		}

		if ctx.Err() != nil {
			saveErr := c.Save()
			if saveErr != nil {
				logger.Error("Failed to save taxonomy cache after cancellation", "error", saveErr)
			}
			return fetched, errors.New(ctx.Err()).
				Component("taxonomy").
				Category(errors.CategoryCancellation).
				Build()
		}

		if _, err := c.Lookup(ctx, unique[key]); err != nil && !errors.IsNotFound(err) {
			logger.Warn("Taxonomy lookup failed, skipping",
				"scientific_name", unique[key], "error", err)
			continue
		}
		fetched++
	}

	if err := c.Save(); err != nil {
		return fetched, err
	}

	logger.Info("Taxonomy resolution finished",
		"fetched", fetched, "total_cached", c.CachedCount())
	return fetched, nil
}
