package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// Failure reasons reported per site.
const (
	ReasonCredential   = "credential error"
	ReasonConnection   = "connection error"
	ReasonAuthRejected = "authentication rejected"
	ReasonInterrupted  = "transfer interrupted"
	ReasonTimeout      = "timeout"
	ReasonCancelled    = "cancelled"
)

// Dispatcher executes transfer jobs on a bounded pool of workers. A failing
// job never stops the others.
type Dispatcher struct {
	Transport   Transport
	Credentials CredentialResolver
	Workers     int
	Timeout     time.Duration
}

func NewDispatcher(t Transport, creds CredentialResolver, workers int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{Transport: t, Credentials: creds, Workers: workers, Timeout: timeout}
}

// Dispatch runs every job and returns their outcomes in job order. Each
// outcome is also recorded on the run context as soon as it is known.
func (d *Dispatcher) Dispatch(ctx context.Context, rc *RunContext, jobs []*models.TransferJob) []models.SiteOutcome {
	outcomes := make([]models.SiteOutcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(d.Workers)
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = d.run(ctx, rc, job)
			rc.Record(outcomes[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (d *Dispatcher) run(ctx context.Context, rc *RunContext, job *models.TransferJob) models.SiteOutcome {
	job.StartedAt = time.Now()
	rc.Log.Infof("Dispatching %s to site %s at %s", job.Artifact.FileName, job.SiteID(), job.Entry.Address)

	jctx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		jctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	err := d.execute(jctx, job)
	job.EndedAt = time.Now()

	outcome := models.SiteOutcome{
		SiteID:     job.SiteID(),
		Contact:    job.Entry.FailureEmail,
		Address:    job.Entry.Address,
		RemotePath: job.Entry.RemotePath,
		Artifact:   job.Artifact.FileName,
		Duration:   job.EndedAt.Sub(job.StartedAt),
		Attempted:  true,
	}

	if err == nil {
		outcome.Status = models.StatusDelivered
		outcome.Bytes = job.Artifact.Size
		rc.Log.Infof("Site %s: delivered %s (%d bytes) in %s", job.SiteID(), job.RemoteName(), job.Artifact.Size, outcome.Duration.Round(time.Millisecond))
		return outcome
	}

	if !job.State.Terminal() {
		_ = job.Fail(err)
	}
	failure := &TransferFailure{
		SiteID:  job.SiteID(),
		Reason:  failureReason(jctx, job, err),
		Phase:   string(job.Failed),
		Contact: job.Entry.FailureEmail,
		Err:     err,
	}
	outcome.Status = models.StatusFailed
	outcome.Reason = failure.Reason
	outcome.Error = err.Error()
	outcome.Phase = job.Failed
	rc.Log.Errorf("%v (notify %s)", failure, contactOrNone(failure.Contact))
	return outcome
}

func (d *Dispatcher) execute(ctx context.Context, job *models.TransferJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()

	if err := d.resolveSecret(ctx, job); err != nil {
		return err
	}
	if err := d.Transport.Send(ctx, job); err != nil {
		return err
	}
	return job.Advance(models.StateDelivered)
}

func (d *Dispatcher) resolveSecret(ctx context.Context, job *models.TransferJob) error {
	ref := job.Entry.Credential
	if ref == "" || d.Credentials == nil {
		job.Secret = ref
		return nil
	}
	secret, err := d.Credentials.Resolve(ctx, ref)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrCredential, err)
	}
	job.Secret = secret
	return nil
}

func failureReason(ctx context.Context, job *models.TransferJob, err error) string {
	switch {
	case errors.Is(err, models.ErrCredential):
		return ReasonCredential
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return ReasonCancelled
	case errors.Is(err, models.ErrAuthRejected):
		return ReasonAuthRejected
	}
	switch job.Failed {
	case models.StateCreated, models.StateConnecting:
		return ReasonConnection
	default:
		return ReasonInterrupted
	}
}

func contactOrNone(c string) string {
	if c == "" {
		return "<no contact>"
	}
	return c
}
