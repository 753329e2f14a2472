// Package cmd assembles the fieldlog command tree.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tkivisto/fieldlog/cmd/addimage"
	"github.com/tkivisto/fieldlog/cmd/backfill"
	"github.com/tkivisto/fieldlog/cmd/build"
	deletecmd "github.com/tkivisto/fieldlog/cmd/delete"
	"github.com/tkivisto/fieldlog/cmd/deploy"
	"github.com/tkivisto/fieldlog/cmd/edit"
	"github.com/tkivisto/fieldlog/cmd/list"
	newcmd "github.com/tkivisto/fieldlog/cmd/new"
	"github.com/tkivisto/fieldlog/cmd/quick"
	"github.com/tkivisto/fieldlog/cmd/regen"
	"github.com/tkivisto/fieldlog/cmd/serve"
	"github.com/tkivisto/fieldlog/cmd/stats"
	"github.com/tkivisto/fieldlog/cmd/status"
	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/logging"
	"github.com/tkivisto/fieldlog/internal/telemetry"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "fieldlog",
		Short:        "Biodiversity observation journal",
		Long:         "fieldlog keeps a photographed-sighting journal and renders it into a static site.",
		Version:      versionString(settings),
		SilenceUsage: true,
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		newcmd.Command(settings),
		quick.Command(settings),
		addimage.Command(settings),
		edit.Command(settings),
		deletecmd.Command(settings),
		list.Command(settings),
		stats.Command(settings),
		build.Command(settings),
		serve.Command(settings),
		deploy.Command(settings),
		backfill.Command(settings),
		regen.Command(settings),
		status.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings)
	}

	return rootCmd
}

// initialize runs before every subcommand: it raises the log level in
// debug mode, creates the journal directories on first run, and wires
// telemetry when the keeper has opted in.
func initialize(settings *conf.Settings) error {
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}
	if err := conf.EnsureJournalDirs(settings); err != nil {
		return err
	}
	return telemetry.Init(settings)
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		logging.Error("Failed to bind root flags", "error", err)
	}
}

func versionString(settings *conf.Settings) string {
	if settings.BuildDate != "" {
		return fmt.Sprintf("%s (built %s)", settings.Version, settings.BuildDate)
	}
	return settings.Version
}
