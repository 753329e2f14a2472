// Package telemetry reports errors to Sentry when the journal keeper opts in.
package telemetry

import (
	"io"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/logging"
	"github.com/tkivisto/fieldlog/internal/privacy"
	"github.com/tkivisto/fieldlog/internal/secrets"
)

// Package-level logger for telemetry service
var (
	telemetryLogger   *slog.Logger
	telemetryLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	initialLevel := slog.LevelInfo
	telemetryLevelVar.Set(initialLevel)

	telemetryLogger, _, err = logging.NewFileLogger("logs/telemetry.log", "telemetry", telemetryLevelVar)
	if err != nil {
		logging.Error("Failed to initialize telemetry file logger", "error", err)
		// Fallback to a disabled logger (writes to io.Discard) but respects the level var
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: telemetryLevelVar})
		telemetryLogger = slog.New(fbHandler).With("service", "telemetry")
	}
}

// Init wires error reporting to Sentry. Telemetry is opt-in: with
// telemetry.enabled false this clears any installed reporter and
// returns nil, so callers can always invoke it unconditionally.
func Init(settings *conf.Settings) error {
	if settings == nil {
		return errors.Newf("telemetry requires settings").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	// Installed regardless of the opt-in so the error package scrubs
	// with the full rule set even when only logging locally.
	errors.SetPrivacyScrubber(privacy.ScrubMessage)

	if !settings.Telemetry.Enabled {
		telemetryLogger.Info("Telemetry is disabled (opt-in required)")
		errors.SetTelemetryReporter(nil)
		return nil
	}

	dsn, err := secrets.ExpandString(settings.Telemetry.DSN)
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if dsn == "" {
		return errors.Newf("telemetry is enabled but no DSN is configured, set telemetry.dsn").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "", // the journal keeper's hostname stays off the wire
		Release:          release(settings.Version),
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	telemetryLogger.Info("Telemetry initialized", "release", release(settings.Version))
	return nil
}

// Flush sends buffered events before shutdown.
func Flush(timeout time.Duration) {
	if !sentry.Flush(timeout) {
		telemetryLogger.Warn("Telemetry flush timed out", "timeout", timeout.String())
	}
}

// release tags events with the running version.
func release(version string) string {
	if version == "" {
		version = "dev"
	}
	return "fieldlog@" + version
}

// scrubEvent strips identifying fields the SDK fills in on its own and
// runs every outgoing message through the privacy scrubber once more.
// The reporter scrubs before building events; this is the last gate.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil
	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}
	return event
}
