// Package deploy pushes the built site to its configured destination.
package deploy

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/logging"
)

// Package-level logger for deploy service
var (
	deployLogger   *slog.Logger
	deployLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	initialLevel := slog.LevelInfo
	deployLevelVar.Set(initialLevel)

	deployLogger, _, err = logging.NewFileLogger("logs/deploy.log", "deploy", deployLevelVar)
	if err != nil {
		logging.Error("Failed to initialize deploy file logger", "error", err)
		// Fallback to a disabled logger (writes to io.Discard) but respects the level var
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: deployLevelVar})
		deployLogger = slog.New(fbHandler).With("service", "deploy")
	}
}

// Target pushes a built site to one kind of destination.
type Target interface {
	// Name identifies the target in logs and the deploy summary.
	Name() string
	// Push uploads every file in the manifest. The site must not be
	// half-deployed silently: implementations return the first error
	// and leave whatever was already transferred in place.
	Push(ctx context.Context, site *Manifest) error
}

// Manifest lists the files of a built site in walk order.
type Manifest struct {
	Root  string // absolute path of the site root
	Files []File // sorted by relative path
}

// File is a single file of the built site.
type File struct {
	Rel  string // slash-separated path relative to the site root
	Size int64
}

// TotalBytes sums the sizes of all files in the manifest.
func (m *Manifest) TotalBytes() int64 {
	var total int64
	for i := range m.Files {
		total += m.Files[i].Size
	}
	return total
}

// Summary reports what a deploy transferred.
type Summary struct {
	Target   string
	Files    int
	Bytes    int64
	Duration time.Duration
}

// ReadManifest walks the built site at root and returns its file list.
// Symlinks and other non-regular entries are skipped.
func ReadManifest(root string) (*Manifest, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.New(err).
			Component("deploy").
			Category(errors.CategoryFileIO).
			Context("path", root).
			Build()
	}

	m := &Manifest{Root: abs}
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			deployLogger.Warn("Skipping non-regular file", "path", path)
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return err
		}
		m.Files = append(m.Files, File{Rel: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Component("deploy").
			Category(errors.CategoryValidation).
			Context("path", abs).
			Context("hint", "run build before deploy").
			Build()
	}
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Rel < m.Files[j].Rel })
	return m, nil
}

// ForSettings returns the deploy target selected by the configuration.
func ForSettings(settings *conf.Settings) (Target, error) {
	switch settings.Deploy.Target {
	case "":
		return nil, errors.Newf("no deploy target configured, set deploy.target in the configuration").
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Build()
	case "local":
		return NewLocalTarget(settings.Deploy.Local, settings.Deploy.Debug)
	case "rsync":
		return NewRsyncTarget(settings.Deploy.Rsync, settings.Deploy.Debug)
	case "ftp":
		return NewFTPTarget(settings.Deploy.FTP, settings.Deploy.Debug)
	case "sftp":
		return NewSFTPTarget(settings.Deploy.SFTP, settings.Deploy.Debug)
	default:
		return nil, errors.Newf("unsupported deploy target: %s", settings.Deploy.Target).
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Context("target", settings.Deploy.Target).
			Build()
	}
}

// Run pushes the built site at the configured output directory to the
// configured target and returns a summary of the transfer.
func Run(ctx context.Context, settings *conf.Settings) (*Summary, error) {
	target, err := ForSettings(settings)
	if err != nil {
		return nil, err
	}

	site, err := ReadManifest(settings.Journal.OutputDir)
	if err != nil {
		return nil, err
	}
	if len(site.Files) == 0 {
		return nil, errors.Newf("built site at %s is empty, run build before deploy", site.Root).
			Component("deploy").
			Category(errors.CategoryValidation).
			Context("path", site.Root).
			Build()
	}

	deployLogger.Info("Starting deploy",
		"target", target.Name(),
		"files", len(site.Files),
		"bytes", site.TotalBytes())

	started := time.Now()
	if err := target.Push(ctx, site); err != nil {
		return nil, err
	}

	summary := &Summary{
		Target:   target.Name(),
		Files:    len(site.Files),
		Bytes:    site.TotalBytes(),
		Duration: time.Since(started),
	}
	deployLogger.Info("Deploy complete",
		"target", summary.Target,
		"files", summary.Files,
		"bytes", summary.Bytes,
		"duration_ms", summary.Duration.Milliseconds())
	return summary, nil
}

// canceled wraps a context error in the deploy error envelope.
func canceled(ctx context.Context, target string) error {
	return errors.New(ctx.Err()).
		Component("deploy").
		Category(errors.CategoryCancellation).
		Context("target", target).
		Build()
}
