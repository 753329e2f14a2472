package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/errors"
	"github.com/tkivisto/fieldlog/internal/secrets"
)

const (
	defaultSSHPort     = 22
	defaultSFTPTimeout = 30 * time.Second
)

// SFTPTarget pushes the built site over SFTP.
type SFTPTarget struct {
	host           string
	port           int
	username       string
	password       string
	keyFile        string
	knownHostsFile string
	basePath       string
	debug          bool
}

// sftpConn bundles the SSH and SFTP clients so both get closed.
type sftpConn struct {
	ssh    *ssh.Client
	client *sftp.Client
}

func (c *sftpConn) close() {
	if err := c.client.Close(); err != nil {
		deployLogger.Warn("Failed to close SFTP client", "error", err)
	}
	if err := c.ssh.Close(); err != nil {
		deployLogger.Warn("Failed to close SSH connection", "error", err)
	}
}

// NewSFTPTarget creates an SFTP deploy target for the given settings.
func NewSFTPTarget(settings conf.DeploySFTPSettings, debug bool) (*SFTPTarget, error) {
	if settings.Host == "" {
		return nil, errors.Newf("sftp deploy target requires a host").
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.Username == "" {
		return nil, errors.Newf("sftp deploy target requires a username").
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Build()
	}

	password, err := secrets.Resolve(settings.PasswordFile, settings.Password)
	if err != nil {
		return nil, errors.New(err).
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Context("target", "sftp").
			Build()
	}
	if password == "" && settings.KeyFile == "" {
		return nil, errors.Newf("sftp deploy target requires a password or a key file").
			Component("deploy").
			Category(errors.CategoryConfiguration).
			Build()
	}

	port := settings.Port
	if port == 0 {
		port = defaultSSHPort
	}

	return &SFTPTarget{
		host:           settings.Host,
		port:           port,
		username:       settings.Username,
		password:       password,
		keyFile:        settings.KeyFile,
		knownHostsFile: settings.KnownHostsFile,
		basePath:       settings.Path,
		debug:          debug,
	}, nil
}

// Name returns the name of this target
func (t *SFTPTarget) Name() string {
	return "sftp"
}

// Push uploads the site file by file over a single SFTP session.
func (t *SFTPTarget) Push(ctx context.Context, site *Manifest) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.close()

	created := make(map[string]bool)
	if err := t.ensureDir(conn.client, t.basePath, created); err != nil {
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
		if err := t.ensureDir(conn.client, path.Dir(remote), created); err != nil {
			return err
		}
		if err := t.uploadFile(conn.client, site.Root, f.Rel, remote); err != nil {
			return err
		}
		deployLogger.Info("Uploaded file", "target", t.Name(), "path", f.Rel, "size", f.Size)
	}
	return nil
}

// hostKeyCallback returns the host key policy. Without a known_hosts
// file any host key is accepted, which leaves the connection open to
// interception.
func (t *SFTPTarget) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if t.knownHostsFile != "" {
		callback, err := knownhosts.New(t.knownHostsFile)
		if err != nil {
			return nil, errors.New(err).
				Component("deploy").
				Category(errors.CategoryConfiguration).
				Context("known_hosts", t.knownHostsFile).
				Build()
		}
		return callback, nil
	}
	deployLogger.Warn("Accepting any SSH host key, set deploy.sftp.knownhostsfile to verify the server",
		"host", t.host)
	return ssh.InsecureIgnoreHostKey(), nil // #nosec G106 -- opt-in fallback, warned above
}

// authMethods builds the SSH authentication chain, preferring a key
// file over a password.
func (t *SFTPTarget) authMethods() ([]ssh.AuthMethod, error) {
	if t.keyFile != "" {
		key, err := os.ReadFile(t.keyFile)
		if err != nil {
			return nil, errors.New(err).
				Component("deploy").
				Category(errors.CategoryConfiguration).
				Context("key_file", t.keyFile).
				Build()
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.New(err).
				Component("deploy").
				Category(errors.CategoryConfiguration).
				Context("key_file", t.keyFile).
				Build()
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return []ssh.AuthMethod{ssh.Password(t.password)}, nil
}

// connect opens the SSH connection and SFTP session in a goroutine so
// the dial can be abandoned on context cancellation.
func (t *SFTPTarget) connect(ctx context.Context) (*sftpConn, error) {
	callback, err := t.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	auth, err := t.authMethods()
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            t.username,
		Auth:            auth,
		HostKeyCallback: callback,
		Timeout:         defaultSFTPTimeout,
	}

	type connResult struct {
		conn *sftpConn
		err  error
	}
	resultChan := make(chan connResult, 1)

	go func() {
		addr := fmt.Sprintf("%s:%d", t.host, t.port)
		sshConn, err := ssh.Dial("tcp", addr, config)
		if err != nil {
			resultChan <- connResult{nil, errors.New(err).
				Component("deploy").
				Category(errors.CategoryNetwork).
				Context("host", t.host).
				Build()}
			return
		}

		client, err := sftp.NewClient(sshConn)
		if err != nil {
			if closeErr := sshConn.Close(); closeErr != nil {
				deployLogger.Warn("Failed to close SSH connection after SFTP error", "error", closeErr)
			}
			resultChan <- connResult{nil, errors.New(err).
				Component("deploy").
				Category(errors.CategoryNetwork).
				Context("host", t.host).
				Build()}
			return
		}

		resultChan <- connResult{&sftpConn{ssh: sshConn, client: client}, nil}
	}()

	select {
	case <-ctx.Done():
		return nil, canceled(ctx, t.Name())
	case result := <-resultChan:
		return result.conn, result.err
	}
}

// ensureDir creates a remote directory once per session.
func (t *SFTPTarget) ensureDir(client *sftp.Client, dir string, created map[string]bool) error {
	if dir == "" || dir == "." || dir == "/" || created[dir] {
		return nil
	}
	if err := client.MkdirAll(dir); err != nil {
		return errors.New(err).
			Component("deploy").
			Category(errors.CategoryNetwork).
			Context("directory", dir).
			Build()
	}
	created[dir] = true
	return nil
}

func (t *SFTPTarget) uploadFile(client *sftp.Client, root, rel, remote string) error {
	local := filepath.Join(root, filepath.FromSlash(rel))
	srcFile, err := os.Open(local)
	if err != nil {
		return errors.New(err).
			Component("deploy").
			Category(errors.CategoryFileIO).
			Context("file", rel).
			Build()
	}
	defer func() {
		if err := srcFile.Close(); err != nil {
			deployLogger.Warn("Failed to close local file", "path", local, "error", err)
		}
	}()

	dstFile, err := client.Create(remote)
	if err != nil {
		return errors.New(err).
			Component("deploy").
			Category(errors.CategoryNetwork).
			Context("remote", remote).
			Build()
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return errors.New(err).
			Component("deploy").
			Category(errors.CategoryNetwork).
			Context("file", rel).
			Build()
	}
	if err := dstFile.Close(); err != nil {
		return errors.New(err).
			Component("deploy").
			Category(errors.CategoryNetwork).
			Context("file", rel).
			Build()
	}
	return nil
}
