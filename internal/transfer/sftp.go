package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/BartekS5/subjectmap/pkg/models"
)

const defaultDialTimeout = 30 * time.Second

// SFTPTransport uploads over SFTP with password or private key auth.
type SFTPTransport struct {
	HostKeyCallback ssh.HostKeyCallback
	DialTimeout     time.Duration
}

// NewSFTPTransport verifies host keys against knownHostsPath, or against
// ~/.ssh/known_hosts when the path is empty. insecure disables verification.
func NewSFTPTransport(knownHostsPath string, insecure bool) (*SFTPTransport, error) {
	t := &SFTPTransport{DialTimeout: defaultDialTimeout}
	if insecure {
		t.HostKeyCallback = ssh.InsecureIgnoreHostKey()
		return t, nil
	}

	if knownHostsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate known_hosts: %w", err)
		}
		knownHostsPath = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts '%s': %w", knownHostsPath, err)
	}
	t.HostKeyCallback = cb
	return t, nil
}

func (t *SFTPTransport) Send(ctx context.Context, ep Endpoint, job *models.TransferJob) error {
	auth, err := authMethods(job)
	if err != nil {
		return err
	}
	if err := job.Advance(models.StateConnecting); err != nil {
		return err
	}
	cfg := &ssh.ClientConfig{
		User:            job.Entry.Username,
		Auth:            auth,
		HostKeyCallback: t.HostKeyCallback,
		Timeout:         t.DialTimeout,
	}

	dialer := net.Dialer{Timeout: t.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", ep.Host)
	if err != nil {
		return err
	}
	// The ssh and sftp calls below do not take a context; closing the
	// connection unblocks them when the job's deadline passes.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, chans, reqs, err := ssh.NewClientConn(conn, ep.Host, cfg)
	if err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isAuthFailure(err) {
			return fmt.Errorf("%w: %v", models.ErrAuthRejected, err)
		}
		return err
	}
	client := ssh.NewClient(c, chans, reqs)
	defer client.Close()

	if err := job.Advance(models.StateAuthenticated); err != nil {
		return err
	}

	sc, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("start sftp session: %w", err)
	}
	defer sc.Close()

	if err := job.Advance(models.StateTransferring); err != nil {
		return err
	}
	if err := upload(sc, job); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return err
	}
	return nil
}

// upload writes to a hidden temp name and renames it over the final name so
// the site never sees a partial file and a rerun replaces the previous one.
func upload(sc *sftp.Client, job *models.TransferJob) error {
	src, err := os.Open(job.Artifact.Path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	final := path.Join(job.Entry.RemotePath, job.RemoteName())
	tmp := path.Join(job.Entry.RemotePath, "."+job.RemoteName()+".part")

	dst, err := sc.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("create remote %s: %w", tmp, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		sc.Remove(tmp)
		return fmt.Errorf("upload %s: %w", tmp, err)
	}
	if err := dst.Close(); err != nil {
		sc.Remove(tmp)
		return fmt.Errorf("close remote %s: %w", tmp, err)
	}

	if err := replace(sc, tmp, final); err != nil {
		sc.Remove(tmp)
		return fmt.Errorf("rename %s to %s: %w", tmp, final, err)
	}
	return nil
}

const posixRenameExt = "posix-rename@openssh.com"

type remoteRenamer interface {
	HasExtension(name string) (string, bool)
	PosixRename(oldname, newname string) error
	Rename(oldname, newname string) error
	Remove(path string) error
}

// replace moves tmp over final. Only servers without posix-rename get the
// remove-then-rename fallback, since plain SFTP rename refuses to overwrite.
func replace(r remoteRenamer, tmp, final string) error {
	if _, ok := r.HasExtension(posixRenameExt); ok {
		return r.PosixRename(tmp, final)
	}
	_ = r.Remove(final)
	return r.Rename(tmp, final)
}

func authMethods(job *models.TransferJob) ([]ssh.AuthMethod, error) {
	if job.Entry.KeyFile == "" {
		return []ssh.AuthMethod{ssh.Password(job.Secret)}, nil
	}

	pem, err := os.ReadFile(job.Entry.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read key file: %v", models.ErrCredential, err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && job.Secret != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(job.Secret))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse key file %s: %v", models.ErrCredential, job.Entry.KeyFile, err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}
