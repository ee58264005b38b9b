package transfer

import (
	"context"
	"fmt"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// Router sends each job with the transport matching its catalog address.
type Router struct {
	SFTP  *SFTPTransport
	S3    *S3Transport
	Local *LocalTransport
}

func (r *Router) Send(ctx context.Context, job *models.TransferJob) error {
	ep, err := ParseEndpoint(job.Entry.Address)
	if err != nil {
		return err
	}

	switch ep.Scheme {
	case SchemeSFTP:
		if r.SFTP == nil {
			return fmt.Errorf("sftp transport not configured")
		}
		return r.SFTP.Send(ctx, ep, job)
	case SchemeS3:
		if r.S3 == nil {
			return fmt.Errorf("s3 transport not configured")
		}
		return r.S3.Send(ctx, ep, job)
	case SchemeFile:
		if r.Local == nil {
			return fmt.Errorf("file transport not configured")
		}
		return r.Local.Send(ctx, ep, job)
	}
	return fmt.Errorf("no transport for scheme %q", ep.Scheme)
}
