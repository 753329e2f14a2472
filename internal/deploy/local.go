package deploy

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
)

const copyBufferSize = 32 * 1024

// Entries in the destination that survive the mirror. The destination
// is often a checkout of the published repository.
var localKeepEntries = map[string]bool{
	".git":       true,
	".gitignore": true,
}

// LocalTarget mirrors the built site into a local directory.
type LocalTarget struct {
	path  string
	debug bool
}

// NewLocalTarget creates a local deploy target for the given settings.
func NewLocalTarget(settings conf.DeployLocalSettings, debug bool) (*LocalTarget, error) {
	if settings.Path == "" {
		return nil, errors.Newf("local deploy target requires a destination path").
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Build()
	}
	abs, err := filepath.Abs(settings.Path)
	if err != nil {
		return nil, errors.New(err).
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Context("path", settings.Path).
			Build()
	}
	return &LocalTarget{path: abs, debug: debug}, nil
}

// Name returns the name of this target
func (t *LocalTarget) Name() string {
	return "local"
}

// Push mirrors the site into the destination directory. Everything in
// the destination except .git and .gitignore is replaced.
func (t *LocalTarget) Push(ctx context.Context, site *Manifest) error {
	if err := t.checkDestination(site.Root); err != nil {
		return err
	}

	if err := os.MkdirAll(t.path, 0o755); err != nil {
		return errors.New(err).
			Component("deploy").
			Category(errors.CategoryFileIO).
			Context("path", t.path).
			Build()
	}

	if err := t.clearDestination(); err != nil {
		return err
	}

	for i := range site.Files {
		select {
		case <-ctx.Done():
			return canceled(ctx, t.Name())
		default:
		}

		f := &site.Files[i]
		src := filepath.Join(site.Root, filepath.FromSlash(f.Rel))
		dst := filepath.Join(t.path, filepath.FromSlash(f.Rel))
		if err := copyFile(src, dst); err != nil {
			return errors.New(err).
				Component("deploy").
				Category(errors.CategoryFileIO).
				Context("file", f.Rel).
				Build()
		}
		deployLogger.Info("Copied file", "target", t.Name(), "path", f.Rel, "size", f.Size)
	}
	return nil
}

// checkDestination rejects destinations that overlap the site root, a
// mirror into itself would delete the files it is copying.
func (t *LocalTarget) checkDestination(siteRoot string) error {
	dest := t.path + string(os.PathSeparator)
	root := siteRoot + string(os.PathSeparator)
	if t.path == siteRoot || strings.HasPrefix(dest, root) || strings.HasPrefix(root, dest) {
		return errors.Newf("deploy destination %s overlaps the built site at %s", t.path, siteRoot).
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Context("path", t.path).
			Build()
	}
	return nil
}

// clearDestination removes prior deploy output, keeping repository files.
func (t *LocalTarget) clearDestination() error {
	entries, err := os.ReadDir(t.path)
	if err != nil {
		return errors.New(err).
			Component("deploy").
			Category(errors.CategoryFileIO).
			Context("path", t.path).
			Build()
	}
	for _, entry := range entries {
		if localKeepEntries[entry.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(t.path, entry.Name())); err != nil {
			return errors.New(err).
				Component("deploy").
				Category(errors.CategoryFileIO).
				Context("entry", entry.Name()).
				Build()
		}
	}
	return nil
}

// copyFile copies src to dst, creating parent directories as needed.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if err := srcFile.Close(); err != nil {
			deployLogger.Warn("Failed to close source file", "path", src, "error", err)
		}
	}()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(dstFile, srcFile, buf); err != nil {
		_ = dstFile.Close()
		return err
	}
	return dstFile.Close()
}
