package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
)

const (
	openMeteoProviderName = "openmeteo"

	// recentDayWindow is the age in days up to which the forecast endpoint
	// still serves the date. Older dates live on the archive endpoint.
	recentDayWindow = 7
)

// openMeteoDailyParams is the daily variable list requested from Open-Meteo.
const openMeteoDailyParams = "temperature_2m_max,temperature_2m_min,precipitation_sum,weather_code"

// OpenMeteoProvider fetches daily summaries from the Open-Meteo API.
// No API key is required for non-commercial use.
type OpenMeteoProvider struct{}

// NewOpenMeteoProvider creates a new Open-Meteo provider
func NewOpenMeteoProvider() *OpenMeteoProvider {
	return &OpenMeteoProvider{}
}

// openMeteoResponse represents the daily block of an Open-Meteo response.
// Pointer elements distinguish missing values from zero readings.
type openMeteoResponse struct {
	Daily struct {
		Time             []string   `json:"time"`
		Temperature2mMax []*float64 `json:"temperature_2m_max"`
		Temperature2mMin []*float64 `json:"temperature_2m_min"`
		PrecipitationSum []*float64 `json:"precipitation_sum"`
		WeatherCode      []*int     `json:"weather_code"`
	} `json:"daily"`
}

// endpointFor picks the forecast or archive endpoint based on how far in
// the past the date lies. The forecast API only covers roughly the last
// week, everything older is answered by the archive API.
func endpointFor(settings *conf.Settings, date time.Time) string {
	today := clock.Now().In(date.Location())
	if daysBetween(date, today) <= recentDayWindow {
		return settings.Weather.OpenMeteo.ForecastEndpoint
	}
	return settings.Weather.OpenMeteo.ArchiveEndpoint
}

// daysBetween returns the number of whole calendar days from one date to
// another, ignoring the time of day. Negative for future dates.
func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	f := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

// FetchDay implements the Provider interface for OpenMeteoProvider
func (p *OpenMeteoProvider) FetchDay(ctx context.Context, settings *conf.Settings, date time.Time) (*DayWeather, error) {
	dateStr := date.Format(time.DateOnly)
	endpoint := endpointFor(settings, date)

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(settings.Location.Latitude, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(settings.Location.Longitude, 'f', 4, 64))
	params.Set("start_date", dateStr)
	params.Set("end_date", dateStr)
	params.Set("daily", openMeteoDailyParams)
	params.Set("timezone", settings.Location.Timezone)

	requestURL := endpoint + "?" + params.Encode()

	logger := weatherLogger.With("provider", openMeteoProviderName, "date", dateStr)
	logger.Debug("Fetching daily weather", "endpoint", endpoint)

	timeout := RequestTimeout
	if settings.Weather.OpenMeteo.Timeout > 0 {
		timeout = time.Duration(settings.Weather.OpenMeteo.Timeout) * time.Second
	}
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, errors.New(err).
			Component("weather").
			Category(errors.CategoryNetwork).
			Context("operation", "create_request").
			Context("provider", openMeteoProviderName).
			Build()
	}
	req.Header.Set("User-Agent", UserAgent)

	var response openMeteoResponse
	for i := range MaxRetries {
		isLastAttempt := i == MaxRetries-1

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.New(ctx.Err()).
					Component("weather").
					Category(errors.CategoryCancellation).
					Context("provider", openMeteoProviderName).
					Build()
			}
			if isLastAttempt {
				return nil, errors.New(err).
					Component("weather").
					Category(errors.CategoryNetwork).
					Context("operation", "fetch_daily_weather").
					Context("provider", openMeteoProviderName).
					Context("max_retries", fmt.Sprintf("%d", MaxRetries)).
					Build()
			}
			logger.Warn("Request failed, retrying", "attempt", i+1, "error", err)
			time.Sleep(RetryDelay)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			if isLastAttempt {
				return nil, errors.Newf("received non-OK response (%d) after %d retries", resp.StatusCode, MaxRetries).
					Component("weather").
					Category(errors.CategoryNetwork).
					Context("operation", "fetch_daily_weather").
					Context("provider", openMeteoProviderName).
					Context("status_code", strconv.Itoa(resp.StatusCode)).
					Build()
			}
			logger.Warn("Received non-OK status code, retrying", "attempt", i+1, "status_code", resp.StatusCode)
			time.Sleep(RetryDelay)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, errors.New(err).
				Component("weather").
				Category(errors.CategoryNetwork).
				Context("operation", "read_response_body").
				Context("provider", openMeteoProviderName).
				Build()
		}

		if err := json.Unmarshal(body, &response); err != nil {
			return nil, errors.New(err).
				Component("weather").
				Category(errors.CategoryFileParsing).
				Context("operation", "unmarshal_response").
				Context("provider", openMeteoProviderName).
				Build()
		}

		break
	}

	day, err := p.daySummary(&response, date)
	if err != nil {
		return nil, err
	}

	logger.Debug("Fetched daily weather",
		"temp_max_c", day.TempMaxC,
		"temp_min_c", day.TempMinC,
		"precipitation_mm", day.PrecipitationMM,
		"conditions", day.Conditions)
	return day, nil
}

// daySummary converts the Open-Meteo daily arrays into a DayWeather.
// The API returns one element per requested day; a missing or all-null day
// means the provider has no data for that date.
func (p *OpenMeteoProvider) daySummary(response *openMeteoResponse, date time.Time) (*DayWeather, error) {
	daily := &response.Daily
	if len(daily.Time) == 0 {
		return nil, errors.Newf("no daily weather data for %s", date.Format(time.DateOnly)).
			Component("weather").
			Category(errors.CategoryEnrichment).
			Context("provider", openMeteoProviderName).
			Build()
	}

	day := &DayWeather{Date: date}

	if len(daily.Temperature2mMax) > 0 && daily.Temperature2mMax[0] != nil {
		day.TempMaxC = *daily.Temperature2mMax[0]
	} else {
		return nil, errors.Newf("daily temperature missing for %s", date.Format(time.DateOnly)).
			Component("weather").
			Category(errors.CategoryEnrichment).
			Context("provider", openMeteoProviderName).
			Build()
	}
	if len(daily.Temperature2mMin) > 0 && daily.Temperature2mMin[0] != nil {
		day.TempMinC = *daily.Temperature2mMin[0]
	}
	if len(daily.PrecipitationSum) > 0 && daily.PrecipitationSum[0] != nil {
		day.PrecipitationMM = *daily.PrecipitationSum[0]
	}
	if len(daily.WeatherCode) > 0 && daily.WeatherCode[0] != nil {
		day.Code = *daily.WeatherCode[0]
	}
	day.Conditions = ConditionsLabel(day.Code)

	return day, nil
}
