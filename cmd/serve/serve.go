// Package serve provides the local preview command.
package serve

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/cmd/build"
	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/quicklog"
	"github.com/tkivisto/fieldlog/internal/server"
	"github.com/tkivisto/fieldlog/internal/sighting"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		port    int
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build the site and serve it locally",
		Long: `Build the site and serve the output tree over HTTP for review before
deploying. With serve.metrics enabled the server also exposes Prometheus
metrics on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				settings.Serve.Port = port
			}
			if cmd.Flags().Changed("metrics") {
				settings.Serve.Metrics = metrics
			}
			return runServe(cmd.Context(), settings)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port, overrides serve.port")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "expose Prometheus metrics on /metrics")

	return cmd
}

func runServe(ctx context.Context, settings *conf.Settings) error {
	sightings, err := sighting.Open(settings.SightingsPath())
	if err != nil {
		return err
	}
	quickStore, err := quicklog.Open(settings.QuickLogPath())
	if err != nil {
		return err
	}

	if err := build.Run(ctx, settings, sightings, quickStore, os.Stdout); err != nil {
		return err
	}

	srv, err := server.New(settings, server.Deps{Sightings: sightings, QuickLog: quickStore})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// Wait for the bind so the printed URL carries the real port.
	for srv.Addr() == "" {
		select {
		case err := <-errCh:
			return err
		case <-time.After(10 * time.Millisecond):
		}
	}
	if _, port, err := net.SplitHostPort(srv.Addr()); err == nil {
		fmt.Printf("\nServing at http://localhost:%s  (Ctrl-C to stop)\n", port)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if err := srv.Shutdown(); err != nil {
		return err
	}
	return <-errCh
}
