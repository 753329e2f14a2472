// Package notify announces journal events over push services.
package notify

import (
	"io"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/logging"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/secrets"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Package-level logger for notify service
var (
	notifyLogger   *slog.Logger
	notifyLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	initialLevel := slog.LevelInfo
	notifyLevelVar.Set(initialLevel)

	notifyLogger, _, err = logging.NewFileLogger("logs/notify.log", "notify", notifyLevelVar)
	if err != nil {
		logging.Error("Failed to initialize notify file logger", "error", err)
		// Fallback to a disabled logger (writes to io.Discard) but respects the level var
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: notifyLevelVar})
		notifyLogger = slog.New(fbHandler).With("service", "notify")
	}
}

const sendTimeout = 10 * time.Second

// Notifier pushes short announcements to the configured shoutrrr URLs.
// A disabled notifier swallows every announcement, so callers never
// need to branch on configuration.
type Notifier struct {
	title  string
	sender *router.ServiceRouter
}

// New builds a notifier from the notify settings.
func New(settings *conf.Settings) (*Notifier, error) {
	n := &Notifier{title: settings.Site.Title}
	if !settings.Notify.Enabled {
		return n, nil
	}
	if len(settings.Notify.URLs) == 0 {
		return nil, errors.Newf("notifications are enabled but no service URLs are configured").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}

	// Service URLs embed tokens, so they may reference the environment
	// instead of carrying them in config.yaml.
	urls := make([]string, len(settings.Notify.URLs))
	for i, raw := range settings.Notify.URLs {
		expanded, err := secrets.ExpandString(raw)
		if err != nil {
			return nil, errors.New(err).
				Component("notify").
				Category(errors.CategoryConfiguration).
				Build()
		}
		urls[i] = expanded
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(err).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender.Timeout = sendTimeout
	sender.SetLogger(log.New(io.Discard, "", 0))
	n.sender = sender
	return n, nil
}

// Enabled reports whether announcements will actually be sent.
func (n *Notifier) Enabled() bool {
	return n.sender != nil
}

// NewSpecies announces a species recorded for the first time. Push
// failures are logged and swallowed, an outage must not block ingestion.
func (n *Notifier) NewSpecies(commonName, scientificName string) {
	if n.sender == nil {
		return
	}

	body := "New species: " + commonName
	if scientificName != "" {
		body += " (" + scientificName + ")"
	}

	eventID := uuid.NewString()
	params := stypes.Params{}
	if n.title != "" {
		params.SetTitle(n.title)
	}

	failed := 0
	for _, err := range n.sender.Send(body, &params) {
		if err != nil {
			failed++
			notifyLogger.Warn("Push notification failed",
				"event_id", eventID,
				"species", commonName,
				"error", err)
		}
	}
	if failed == 0 {
		notifyLogger.Info("Push notification sent",
			"event_id", eventID,
			"species", commonName)
	}
}

// SpeciesKnown reports whether the species already appears in either
// store. Identity is the normalized common name, the one field both
// stores share.
func SpeciesKnown(sightings *sighting.Store, quick *quicklog.Store, commonName string) bool {
	if quick != nil && quick.HasSpecies(commonName) {
		return true
	}
	if sightings == nil {
		return false
	}
	name := strings.ToLower(strings.TrimSpace(commonName))
	for _, known := range sightings.CommonNames() {
		if strings.ToLower(strings.TrimSpace(known)) == name {
			return true
		}
	}
	return false
}
