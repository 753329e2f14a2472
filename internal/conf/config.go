// config.go: settings for the fieldlog journal. Defines the Settings struct and
// the functions that load, access and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// SiteSettings describes the generated site.
type SiteSettings struct {
	Title       string // site title, used in page headers and the feed
	Description string // one-line site description for the feed and meta tags
	BaseURL     string // absolute URL prefix for feed links, no trailing slash
	About       string // free text for the about page
}

// LocationSettings is the fixed observation location used for enrichment.
type LocationSettings struct {
	Latitude  float64 // latitude of the journal location
	Longitude float64 // longitude of the journal location
	Timezone  string  // IANA timezone name, e.g. Europe/Helsinki
}

// JournalSettings holds the directory layout of a journal.
type JournalSettings struct {
	DataDir    string // sightings.json, quicklog.json, taxonomy.json
	StagingDir string // inbox for raw images awaiting ingestion
	PostsDir   string // one markdown file per post
	StaticDir  string // static assets copied verbatim into the site
	ImagesDir  string // generated image variants (thumb/, web/, full/)
	OutputDir  string // generated site tree, owned by the builder
}

// WeatherSettings contains all weather-related settings
type WeatherSettings struct {
	Provider  string            // "none" or "openmeteo"
	Debug     bool              // true to enable debug mode
	OpenMeteo OpenMeteoSettings // Open-Meteo integration settings
}

// OpenMeteoSettings contains settings for the Open-Meteo integration.
type OpenMeteoSettings struct {
	ForecastEndpoint string // recent-date endpoint
	ArchiveEndpoint  string // historical endpoint
	Timeout          int    // request timeout in seconds
}

// TaxonomySettings controls the GBIF species lookup.
type TaxonomySettings struct {
	Enabled     bool   // true to resolve scientific names against GBIF
	Endpoint    string // species match endpoint
	CacheFile   string // persistent lookup cache, relative to DataDir when not absolute
	RateLimitMS int    // minimum milliseconds between live lookups
	Timeout     int    // request timeout in seconds
}

// ImagingSettings controls image variant generation.
type ImagingSettings struct {
	ThumbSize       int     // longest edge of thumbnails in pixels
	ThumbQuality    int     // JPEG quality for thumbnails
	WebSize         int     // longest edge of web images in pixels
	WebQuality      int     // JPEG quality for web images
	FullQuality     int     // JPEG quality for the re-encoded full image
	MaxUsagePercent float64 // refuse variant generation above this disk usage
}

// FeedSettings caps the merged feed.
type FeedSettings struct {
	MaxSightings int // most recent sightings included
	MaxPosts     int // most recent posts included
}

// DeployLocalSettings copies the site to a local directory.
type DeployLocalSettings struct {
	Path string // destination directory
}

// DeployRsyncSettings pushes the site with an rsync subprocess.
type DeployRsyncSettings struct {
	Destination string   // rsync destination, e.g. user@host:/var/www/site
	Args        []string // extra rsync arguments
}

// DeployFTPSettings pushes the site over FTP.
type DeployFTPSettings struct {
	Host         string
	Port         int
	Username     string
	Password     string // may reference the environment, e.g. ${FTP_PASSWORD}
	PasswordFile string // read instead of Password when set
	Path         string // remote base directory
	Timeout      int    // connection timeout in seconds
}

// DeploySFTPSettings pushes the site over SFTP.
type DeploySFTPSettings struct {
	Host           string
	Port           int
	Username       string
	Password       string // used when KeyFile is empty, may reference the environment
	PasswordFile   string // read instead of Password when set
	KeyFile        string // path to a private key
	KnownHostsFile string // empty accepts any host key
	Path           string // remote base directory
}

// DeploySettings selects and configures the deploy target.
type DeploySettings struct {
	Target string // "", "local", "rsync", "ftp" or "sftp"
	Debug  bool
	Local  DeployLocalSettings
	Rsync  DeployRsyncSettings
	FTP    DeployFTPSettings
	SFTP   DeploySFTPSettings
}

// NotifySettings configures new-species push notifications.
type NotifySettings struct {
	Enabled bool     // true to send a push when a first-ever species is recorded
	URLs    []string // shoutrrr service URLs
}

// TelemetrySettings contains settings for error telemetry.
type TelemetrySettings struct {
	Enabled bool   // true to report errors to Sentry
	DSN     string // Sentry DSN
}

// ServeSettings configures the local preview server.
type ServeSettings struct {
	Port    int  // listen port
	Metrics bool // expose Prometheus metrics on /metrics
}

// Settings contains all configuration options for fieldlog.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // journal name, used to identify this journal in logs
		Log  LogConfig // logging configuration
	}

	Site     SiteSettings     // generated site settings
	Location LocationSettings // observation location
	Journal  JournalSettings  // directory layout

	Categories []string         // closed category vocabulary
	Seasons    map[string][]int // season name to calendar months (1-12)

	Weather   WeatherSettings   // weather provider settings
	Taxonomy  TaxonomySettings  // GBIF lookup settings
	Imaging   ImagingSettings   // image variant settings
	Feed      FeedSettings      // merged feed caps
	Deploy    DeploySettings    // deploy target settings
	Notify    NotifySettings    // push notification settings
	Telemetry TelemetrySettings // error telemetry settings
	Serve     ServeSettings     // preview server settings
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable this log
	Path     string       // Path to the log file
	Rotation RotationType // Type of log rotation
	MaxSize  int64        // Max size in bytes for RotationSize
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment into a Settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the
// journal directory (the first config path).
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SetTestSettings installs a settings instance directly, bypassing viper.
// Intended for tests only.
func SetTestSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	once.Do(func() {})
	settingsInstance = settings
}

// SaveSettings saves the current settings to the configuration file.
// It uses SaveYAMLConfig to handle the atomic write process.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsCopy := *settingsInstance

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file first so a crash cannot truncate the config
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// SeasonForMonth returns the configured season for a calendar month.
// ValidateSettings guarantees full coverage, so an error here means the
// settings were constructed without validation.
func (s *Settings) SeasonForMonth(month time.Month) (string, error) {
	for season, months := range s.Seasons {
		for _, m := range months {
			if time.Month(m) == month {
				return season, nil
			}
		}
	}
	return "", fmt.Errorf("no season configured for month %d", int(month))
}

// SeasonNames returns the configured seasons ordered by the earliest calendar
// month they contain, giving a stable calendar-like ordering for display.
func (s *Settings) SeasonNames() []string {
	names := make([]string, 0, len(s.Seasons))
	for name := range s.Seasons {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		mi, mj := earliestMonth(s.Seasons[names[i]]), earliestMonth(s.Seasons[names[j]])
		if mi != mj {
			return mi < mj
		}
		return names[i] < names[j]
	})
	return names
}

func earliestMonth(months []int) int {
	earliest := 13
	for _, m := range months {
		if m < earliest {
			earliest = m
		}
	}
	return earliest
}

// ValidCategory reports whether the given value is in the configured
// category vocabulary.
func (s *Settings) ValidCategory(category string) bool {
	for _, c := range s.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// TimeLocation resolves the configured timezone.
func (s *Settings) TimeLocation() (*time.Location, error) {
	return time.LoadLocation(s.Location.Timezone)
}

// TaxonomyCachePath resolves the taxonomy cache file against the data dir
// unless it is already absolute.
func (s *Settings) TaxonomyCachePath() string {
	if filepath.IsAbs(s.Taxonomy.CacheFile) {
		return s.Taxonomy.CacheFile
	}
	return filepath.Join(s.Journal.DataDir, filepath.Base(s.Taxonomy.CacheFile))
}

// SightingsPath returns the sighting store file location.
func (s *Settings) SightingsPath() string {
	return filepath.Join(s.Journal.DataDir, "sightings.json")
}

// QuickLogPath returns the quick-log store file location.
func (s *Settings) QuickLogPath() string {
	return filepath.Join(s.Journal.DataDir, "quicklog.json")
}

// ImageVariantDir returns the directory holding one generated variant size,
// e.g. ImageVariantDir("thumb") for the thumbnail tree.
func (s *Settings) ImageVariantDir(variant string) string {
	return filepath.Join(s.Journal.ImagesDir, variant)
}
