package deploy

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
)

// RsyncTarget pushes the built site with the system rsync command.
type RsyncTarget struct {
	destination string
	args        []string
	rsyncPath   string
	debug       bool
}

// NewRsyncTarget creates an rsync deploy target for the given settings.
func NewRsyncTarget(settings conf.DeployRsyncSettings, debug bool) (*RsyncTarget, error) {
	if settings.Destination == "" {
		return nil, errors.Newf("rsync deploy target requires a destination").
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Build()
	}

	rsyncPath, err := exec.LookPath("rsync")
	if err != nil {
		return nil, errors.New(err).
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Context("command", "rsync").
			Build()
	}

	return &RsyncTarget{
		destination: settings.Destination,
		args:        settings.Args,
		rsyncPath:   rsyncPath,
		debug:       debug,
	}, nil
}

// Name returns the name of this target
func (t *RsyncTarget) Name() string {
	return "rsync"
}

// Push runs one rsync invocation for the whole site. rsync does its own
// per-file transfer decisions, so progress detail comes from its output
// rather than from the manifest loop the other targets use.
func (t *RsyncTarget) Push(ctx context.Context, site *Manifest) error {
	args := rsyncArgs(site.Root, t.destination, t.args, t.debug)

	deployLogger.Info("Running rsync", "destination", t.destination, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, t.rsyncPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return canceled(ctx, t.Name())
		}
		return errors.New(err).
			Component("deploy").
			Category(errors.CategoryNetwork).
			Context("destination", t.destination).
			Context("output", strings.TrimSpace(string(output))).
			Build()
	}

	if out := strings.TrimSpace(string(output)); out != "" {
		deployLogger.Debug("rsync output", "output", out)
	}
	return nil
}

// rsyncArgs builds the argument list for one site push. The source path
// carries a trailing separator so rsync copies directory contents, not
// the directory itself.
func rsyncArgs(siteRoot, destination string, extra []string, debug bool) []string {
	args := []string{"-az", "--delete"}
	if debug {
		args = append(args, "-v")
	}
	args = append(args, extra...)
	src := strings.TrimRight(siteRoot, string(os.PathSeparator)) + string(os.PathSeparator)
	return append(args, src, destination)
}
