// Package server runs the local preview server for the built site.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/logging"
	"github.com/tkivisto/fieldlog/internal/observability"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Package-level logger for server service
var (
	serverLogger   *slog.Logger
	serverLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	initialLevel := slog.LevelInfo
	serverLevelVar.Set(initialLevel)

	serverLogger, _, err = logging.NewFileLogger("logs/server.log", "server", serverLevelVar)
	if err != nil {
		logging.Error("Failed to initialize server file logger", "error", err)
		// Fallback to a disabled logger (writes to io.Discard) but respects the level var
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serverLevelVar})
		serverLogger = slog.New(fbHandler).With("service", "server")
	}
}

const shutdownTimeout = 10 * time.Second

// Server serves the built site over HTTP for local review before deploy.
type Server struct {
	echo     *echo.Echo
	settings *conf.Settings
	metrics  *observability.Metrics
}

// Deps carries the stores the server reads journal metrics from.
// Both are optional, without them the journal gauges stay unset.
type Deps struct {
	Sightings *sighting.Store
	QuickLog  *quicklog.Store
}

// New builds a server for the site under the configured output directory.
// The site must already be built.
func New(settings *conf.Settings, deps Deps) (*Server, error) {
	if settings == nil {
		return nil, errors.Newf("server requires settings").
			Component("server").
			Category(errors.CategoryConfiguration).
			Build()
	}

	outputDir := settings.Journal.OutputDir
	if info, err := os.Stat(outputDir); err != nil || !info.IsDir() {
		return nil, errors.Newf("no built site at %s, run build before serve", outputDir).
			Component("server").
			Category(errors.CategoryValidation).
			Context("output_dir", outputDir).
			Build()
	}

	s := &Server{
		echo:     echo.New(),
		settings: settings,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(echomw.Recover())
	s.echo.Use(s.requestMiddleware)

	if settings.Serve.Metrics {
		metrics, err := observability.NewMetrics()
		if err != nil {
			return nil, err
		}
		s.metrics = metrics
		if deps.Sightings != nil && deps.QuickLog != nil {
			metrics.Journal.SetCounts(
				deps.Sightings.Len(),
				deps.QuickLog.Stats().TotalLogged,
				speciesCount(deps.Sightings, deps.QuickLog),
			)
		}
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	s.echo.Static("/", outputDir)
	return s, nil
}

// Start listens on the configured port and blocks until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.settings.Serve.Port)
	serverLogger.Info("Preview server starting",
		"addr", addr,
		"site", s.settings.Journal.OutputDir,
		"metrics", s.metrics != nil)

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("server").
			Category(errors.CategoryNetwork).
			Context("addr", addr).
			Build()
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		return errors.New(err).
			Component("server").
			Category(errors.CategoryNetwork).
			Build()
	}
	serverLogger.Info("Preview server stopped")
	return nil
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if addr := s.echo.ListenerAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// requestMiddleware logs every request and feeds the HTTP metrics.
func (s *Server) requestMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		elapsed := time.Since(start)
		status := c.Response().Status
		serverLogger.Info("Request served",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds())
		if s.metrics != nil {
			s.metrics.HTTP.RecordRequest(c.Request().Method, status, elapsed.Seconds())
		}
		return err
	}
}

// speciesCount counts distinct species across both stores. Identity is
// the lowercased common name, the one field the stores share.
func speciesCount(sightings *sighting.Store, quick *quicklog.Store) int {
	seen := make(map[string]struct{})
	for _, name := range sightings.CommonNames() {
		seen[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	for _, name := range quick.CommonNames() {
		seen[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return len(seen)
}
