package deploy

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/secrets"
)

const (
	defaultFTPPort    = 21
	defaultFTPTimeout = 30 * time.Second
)

// FTPTarget pushes the built site over FTP.
type FTPTarget struct {
	host     string
	port     int
	username string
	password string
	basePath string
	timeout  time.Duration
	debug    bool
}

// NewFTPTarget creates an FTP deploy target for the given settings.
func NewFTPTarget(settings conf.DeployFTPSettings, debug bool) (*FTPTarget, error) {
	if settings.Host == "" {
		return nil, errors.Newf("ftp deploy target requires a host").
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Build()
	}

	password, err := secrets.Resolve(settings.PasswordFile, settings.Password)
	if err != nil {
		return nil, errors.New(err).
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Context("target", "ftp").
			Build()
	}

	port := settings.Port
	if port == 0 {
		port = defaultFTPPort
	}
	timeout := time.Duration(settings.Timeout) * time.Second
	if timeout == 0 {
		timeout = defaultFTPTimeout
	}

	return &FTPTarget{
		host:     settings.Host,
		port:     port,
		username: settings.Username,
		password: password,
		basePath: strings.TrimRight(settings.Path, "/"),
		timeout:  timeout,
		debug:    debug,
	}, nil
}

// Name returns the name of this target
func (t *FTPTarget) Name() string {
	return "ftp"
}

// Push uploads the site file by file over a single FTP connection.
func (t *FTPTarget) Push(ctx context.Context, site *Manifest) error {
	conn, err := t.connect()
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			deployLogger.Warn("Failed to close FTP connection", "error", err)
		}
	}()

	created := make(map[string]bool)
	if err := t.ensureDir(conn, t.basePath, created); err != nil {
		return err
	}

	for i := range site.Files {
		select {
		case <-ctx.Done():
			return canceled(ctx, t.Name())
		default:
		}

		f := &site.Files[i]
		remote := path.Join(t.basePath, f.Rel)
		if err := t.ensureDir(conn, path.Dir(remote), created); err != nil {
			return err
		}
		if err := t.uploadFile(conn, site.Root, f.Rel, remote); err != nil {
			return err
		}
		deployLogger.Info("Uploaded file", "target", t.Name(), "path", f.Rel, "size", f.Size)
	}
	return nil
}

// connect dials the FTP server and logs in when credentials are set.
func (t *FTPTarget) connect() (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(t.timeout))
	if err != nil {
		return nil, errors.New(err).
			Component("deploy").
			Category(errors.CategoryNetwork).
			Context("host", t.host).
			Build()
	}

	if t.username != "" {
		if err := conn.Login(t.username, t.password); err != nil {
			if quitErr := conn.Quit(); quitErr != nil {
				deployLogger.Warn("Failed to close FTP connection after login error", "error", quitErr)
			}
			return nil, errors.New(err).
				Component("deploy").
				Category(errors.CategoryNetwork).
				Context("host", t.host).
				Context("username", t.username).
				Build()
		}
	}
	return conn, nil
}

// ensureDir creates a remote directory and its parents, tolerating
// directories that already exist.
func (t *FTPTarget) ensureDir(conn *ftp.ServerConn, dir string, created map[string]bool) error {
	if dir == "" || dir == "." || dir == "/" || created[dir] {
		return nil
	}
	if err := t.ensureDir(conn, path.Dir(dir), created); err != nil {
		return err
	}
	if err := conn.MakeDir(dir); err != nil && !isDirExistsError(err) {
		return errors.New(err).
			Component("deploy").
			Category(errors.CategoryNetwork).
			Context("directory", dir).
			Build()
	}
	created[dir] = true
	return nil
}

// isDirExistsError reports whether an FTP error indicates the directory
// is already present.
func isDirExistsError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file exists") ||
		strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "directory exists") ||
		strings.Contains(msg, "550")
}

func (t *FTPTarget) uploadFile(conn *ftp.ServerConn, root, rel, remote string) error {
	local := filepath.Join(root, filepath.FromSlash(rel))
	file, err := os.Open(local)
	if err != nil {
		return errors.New(err).
			Component("deploy").
			Category(errors.CategoryFileIO).
			Context("file", rel).
			Build()
	}
	defer func() {
		if err := file.Close(); err != nil {
			deployLogger.Warn("Failed to close local file", "path", local, "error", err)
		}
	}()

	if err := conn.Stor(remote, file); err != nil {
		return errors.New(err).
			Component("deploy").
			Category(errors.CategoryNetwork).
			Context("file", rel).
			Context("remote", remote).
			Build()
	}
	return nil
}
