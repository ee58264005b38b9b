package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// LocalTransport copies artifacts into a directory, typically a mounted
// share. The site's remote path is taken relative to the endpoint directory.
type LocalTransport struct{}

func (t *LocalTransport) Send(ctx context.Context, ep Endpoint, job *models.TransferJob) error {
	if err := job.Advance(models.StateConnecting); err != nil {
		return err
	}
	dir := filepath.Join(ep.Dir, filepath.FromSlash(job.Entry.RemotePath))
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("destination directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("destination %s is not a directory", dir)
	}

	if err := job.Advance(models.StateAuthenticated); err != nil {
		return err
	}
	if err := job.Advance(models.StateTransferring); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(job.Artifact.Path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	final := filepath.Join(dir, job.RemoteName())
	tmp := filepath.Join(dir, "."+job.RemoteName()+".part")
	dst, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
