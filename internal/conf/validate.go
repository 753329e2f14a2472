// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	// Validate Location settings
	if err := validateLocationSettings(&settings.Location); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Season settings
	if err := validateSeasonSettings(settings.Seasons); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Category settings
	if err := validateCategorySettings(settings.Categories); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Weather settings
	if err := validateWeatherSettings(&settings.Weather); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Taxonomy settings
	if err := validateTaxonomySettings(&settings.Taxonomy); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Imaging settings
	if err := validateImagingSettings(&settings.Imaging); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Feed settings
	if err := validateFeedSettings(&settings.Feed); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Deploy settings
	if err := validateDeploySettings(&settings.Deploy); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Serve settings
	if err := validateServeSettings(&settings.Serve); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// If there are any errors, return the ValidationError
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateLocationSettings validates the location-specific settings
func validateLocationSettings(settings *LocationSettings) error {
	var errs []string

	// Check if latitude is within valid range
	if settings.Latitude < -90 || settings.Latitude > 90 {
		errs = append(errs, "location latitude must be between -90 and 90")
	}

	// Check if longitude is within valid range
	if settings.Longitude < -180 || settings.Longitude > 180 {
		errs = append(errs, "location longitude must be between -180 and 180")
	}

	// Check if the timezone resolves to a known location
	if settings.Timezone == "" {
		errs = append(errs, "location timezone must not be empty")
	} else if _, err := time.LoadLocation(settings.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("location timezone %q is not a valid IANA timezone", settings.Timezone))
	}

	// If there are any errors, return them as a single error
	if len(errs) > 0 {
		return fmt.Errorf("location settings errors: %v", errs)
	}

	return nil
}

// validateSeasonSettings checks that the season map assigns every calendar
// month to exactly one season
func validateSeasonSettings(seasons map[string][]int) error {
	var errs []string

	if len(seasons) == 0 {
		return errors.New("seasons settings errors: [at least one season must be defined]")
	}

	// monthOwner tracks which season claimed each month
	monthOwner := make(map[int]string, 12)

	// Walk seasons in a stable order so repeated validation of the same
	// config reports the same errors
	names := make([]string, 0, len(seasons))
	for name := range seasons {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, "season names must not be empty")
			continue
		}
		months := seasons[name]
		if len(months) == 0 {
			errs = append(errs, fmt.Sprintf("season %q must contain at least one month", name))
		}
		for _, m := range months {
			if m < 1 || m > 12 {
				errs = append(errs, fmt.Sprintf("season %q contains invalid month %d, months must be 1-12", name, m))
				continue
			}
			if owner, claimed := monthOwner[m]; claimed {
				if owner == name {
					errs = append(errs, fmt.Sprintf("season %q lists month %d more than once", name, m))
				} else {
					errs = append(errs, fmt.Sprintf("month %d is assigned to both %q and %q", m, owner, name))
				}
				continue
			}
			monthOwner[m] = name
		}
	}

	// Every month must belong to some season or date bucketing breaks
	for m := 1; m <= 12; m++ {
		if _, ok := monthOwner[m]; !ok {
			errs = append(errs, fmt.Sprintf("month %d is not assigned to any season", m))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("seasons settings errors: %v", errs)
	}

	return nil
}

// validateCategorySettings validates the sighting category list
func validateCategorySettings(categories []string) error {
	var errs []string

	if len(categories) == 0 {
		return errors.New("categories settings errors: [at least one category must be defined]")
	}

	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if strings.TrimSpace(c) == "" {
			errs = append(errs, "categories must not contain empty entries")
			continue
		}
		if c != strings.ToLower(c) {
			errs = append(errs, fmt.Sprintf("category %q must be lowercase", c))
		}
		if seen[c] {
			errs = append(errs, fmt.Sprintf("category %q is listed more than once", c))
		}
		seen[c] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("categories settings errors: %v", errs)
	}

	return nil
}

// validateWeatherSettings validates weather-specific settings
func validateWeatherSettings(settings *WeatherSettings) error {
	switch settings.Provider {
	case "", "none":
		// Weather lookups disabled, nothing else to check
		return nil
	case "openmeteo":
		if settings.OpenMeteo.ForecastEndpoint == "" {
			return errors.New("weather openmeteo forecast endpoint must not be empty")
		}
		if settings.OpenMeteo.ArchiveEndpoint == "" {
			return errors.New("weather openmeteo archive endpoint must not be empty")
		}
		if settings.OpenMeteo.Timeout <= 0 {
			return fmt.Errorf("weather openmeteo timeout must be positive, got %d", settings.OpenMeteo.Timeout)
		}
	default:
		return fmt.Errorf("unsupported weather provider: %s", settings.Provider)
	}
	return nil
}

// validateTaxonomySettings validates the species lookup settings
func validateTaxonomySettings(settings *TaxonomySettings) error {
	if !settings.Enabled {
		return nil
	}

	if settings.Endpoint == "" {
		return errors.New("taxonomy endpoint is required when enabled")
	}
	if settings.CacheFile == "" {
		return errors.New("taxonomy cache file is required when enabled")
	}
	if settings.RateLimitMS < 0 {
		return fmt.Errorf("taxonomy rate limit must be non-negative, got %d", settings.RateLimitMS)
	}
	if settings.Timeout <= 0 {
		return fmt.Errorf("taxonomy timeout must be positive, got %d", settings.Timeout)
	}
	return nil
}

// validateImagingSettings validates the image variant settings
func validateImagingSettings(settings *ImagingSettings) error {
	var errs []string

	if settings.ThumbSize < 1 {
		errs = append(errs, "imaging thumb size must be at least 1 pixel")
	}
	if settings.WebSize < 1 {
		errs = append(errs, "imaging web size must be at least 1 pixel")
	}
	if settings.ThumbSize >= settings.WebSize {
		errs = append(errs, fmt.Sprintf("imaging thumb size %d must be smaller than web size %d", settings.ThumbSize, settings.WebSize))
	}
	for _, q := range []struct {
		name  string
		value int
	}{
		{"thumb", settings.ThumbQuality},
		{"web", settings.WebQuality},
		{"full", settings.FullQuality},
	} {
		if q.value < 1 || q.value > 100 {
			errs = append(errs, fmt.Sprintf("imaging %s quality must be between 1 and 100, got %d", q.name, q.value))
		}
	}
	if settings.MaxUsagePercent <= 0 || settings.MaxUsagePercent > 100 {
		errs = append(errs, fmt.Sprintf("imaging max usage percent must be between 0 and 100, got %.1f", settings.MaxUsagePercent))
	}

	if len(errs) > 0 {
		return fmt.Errorf("imaging settings errors: %v", errs)
	}

	return nil
}

// validateFeedSettings validates the feed cap settings
func validateFeedSettings(settings *FeedSettings) error {
	if settings.MaxSightings < 1 {
		return fmt.Errorf("feed max sightings must be at least 1, got %d", settings.MaxSightings)
	}
	if settings.MaxPosts < 1 {
		return fmt.Errorf("feed max posts must be at least 1, got %d", settings.MaxPosts)
	}
	return nil
}

// validateDeploySettings validates the deploy target settings
func validateDeploySettings(settings *DeploySettings) error {
	switch settings.Target {
	case "":
		// Deploy not configured, nothing to check
		return nil
	case "local":
		if settings.Local.Path == "" {
			return errors.New("deploy local path is required when target is local")
		}
	case "rsync":
		if settings.Rsync.Destination == "" {
			return errors.New("deploy rsync destination is required when target is rsync")
		}
	case "ftp":
		if settings.FTP.Host == "" {
			return errors.New("deploy ftp host is required when target is ftp")
		}
		if settings.FTP.Port < 1 || settings.FTP.Port > 65535 {
			return fmt.Errorf("deploy ftp port must be between 1 and 65535, got %d", settings.FTP.Port)
		}
	case "sftp":
		if settings.SFTP.Host == "" {
			return errors.New("deploy sftp host is required when target is sftp")
		}
		if settings.SFTP.Port < 1 || settings.SFTP.Port > 65535 {
			return fmt.Errorf("deploy sftp port must be between 1 and 65535, got %d", settings.SFTP.Port)
		}
		if settings.SFTP.Username == "" {
			return errors.New("deploy sftp username is required when target is sftp")
		}
	default:
		return fmt.Errorf("unsupported deploy target: %s", settings.Target)
	}
	return nil
}

// validateServeSettings validates the preview server settings
func validateServeSettings(settings *ServeSettings) error {
	if settings.Port < 1 || settings.Port > 65535 {
		return fmt.Errorf("serve port must be between 1 and 65535, got %d", settings.Port)
	}
	return nil
}
