package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tkivisto/fieldlog/internal/conf"
)

func TestRootCommandHasAllSubcommands(t *testing.T) {
	settings := &conf.Settings{}
	settings.Version = "1.4.0"

	root := RootCommand(settings)

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{
		"new", "quick", "addimage", "edit", "delete", "list", "stats",
		"build", "serve", "deploy", "backfill", "regen", "status",
	} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionString(t *testing.T) {
	settings := &conf.Settings{}
	settings.Version = "1.4.0"
	assert.Equal(t, "1.4.0", versionString(settings))

	settings.BuildDate = "2026-08-23"
	assert.Equal(t, "1.4.0 (built 2026-08-23)", versionString(settings))
}
