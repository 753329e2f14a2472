package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// hookServer records webhook bodies delivered by the notifier.
type hookServer struct {
	server *httptest.Server

	mu     sync.Mutex
	bodies []string
	status int
}

func newHookServer(t *testing.T) *hookServer {
	t.Helper()
	h := &hookServer{status: http.StatusOK}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		h.mu.Lock()
		h.bodies = append(h.bodies, string(body))
		status := h.status
		h.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(h.server.Close)
	return h
}

// URL returns the shoutrrr generic-webhook URL for this server.
func (h *hookServer) URL(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(h.server.URL)
	require.NoError(t, err)
	return "generic://" + u.Host + "/hook?disabletls=yes&template=json"
}

func (h *hookServer) Bodies() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.bodies))
	copy(out, h.bodies)
	return out
}

func (h *hookServer) Fail() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = http.StatusInternalServerError
}

// notifySettings builds settings with notifications pointed at the hook.
func notifySettings(urls ...string) *conf.Settings {
	settings := &conf.Settings{}
	settings.Site.Title = "Garden Field Log"
	settings.Notify = conf.NotifySettings{Enabled: len(urls) > 0, URLs: urls}
	return settings
}

func TestNewDisabled(t *testing.T) {
	notifier, err := New(notifySettings())
	require.NoError(t, err)

	assert.False(t, notifier.Enabled())
	// Announcing through a disabled notifier is a no-op.
	notifier.NewSpecies("Seven-spot Ladybird", "Coccinella septempunctata")
}

func TestNewRequiresURLs(t *testing.T) {
	settings := notifySettings()
	settings.Notify.Enabled = true

	_, err := New(settings)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNewRejectsUnknownService(t *testing.T) {
	_, err := New(notifySettings("carrier-pigeon://loft.example.org"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNewSpeciesSends(t *testing.T) {
	hook := newHookServer(t)
	notifier, err := New(notifySettings(hook.URL(t)))
	require.NoError(t, err)
	require.True(t, notifier.Enabled())

	notifier.NewSpecies("Seven-spot Ladybird", "Coccinella septempunctata")

	bodies := hook.Bodies()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "New species: Seven-spot Ladybird (Coccinella septempunctata)")
	assert.Contains(t, bodies[0], "Garden Field Log")
}

func TestNewSpeciesWithoutScientificName(t *testing.T) {
	hook := newHookServer(t)
	notifier, err := New(notifySettings(hook.URL(t)))
	require.NoError(t, err)

	notifier.NewSpecies("Wren", "")

	bodies := hook.Bodies()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "New species: Wren")
	assert.NotContains(t, bodies[0], "(")
}

func TestNewSpeciesFailureIsSwallowed(t *testing.T) {
	hook := newHookServer(t)
	hook.Fail()

	notifier, err := New(notifySettings(hook.URL(t)))
	require.NoError(t, err)

	// Must return normally even though every delivery fails.
	notifier.NewSpecies("Seven-spot Ladybird", "Coccinella septempunctata")
	assert.Len(t, hook.Bodies(), 1)
}

func TestSpeciesKnown(t *testing.T) {
	sightings, err := sighting.Open(filepath.Join(t.TempDir(), "sightings.json"))
	require.NoError(t, err)
	require.NoError(t, sightings.Append(&sighting.Sighting{
		ID:             "20260815-001",
		CommonName:     "Robin",
		ScientificName: "Erithacus rubecula",
		Category:       "other",
		CapturedAt:     time.Date(2026, time.August, 15, 9, 0, 0, 0, time.UTC),
		Images:         []sighting.Image{{Filename: "20260815-001-a.jpg"}},
	}))

	quick, err := quicklog.Open(filepath.Join(t.TempDir(), "quicklog.json"))
	require.NoError(t, err)
	_, _, err = quick.Log(quicklog.LogRequest{
		SpeciesName: "Wren",
		At:          time.Date(2026, time.August, 16, 7, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		species string
		want    bool
	}{
		{"sighted species", "Robin", true},
		{"sighted species case folded", "  roBIN ", true},
		{"quick-logged species", "wren", true},
		{"unseen species", "Dunnock", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpeciesKnown(sightings, quick, tt.species))
		})
	}
}
