package etl

import (
	"context"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// Source supplies the raw document of one run.
type Source interface {
	Fetch(ctx context.Context) (*models.RawRecordSet, error)
}

// Transport places one artifact at the destination described by the job's
// catalog entry. Implementations advance the job through connecting,
// authenticated and transferring; the dispatcher owns the terminal states.
type Transport interface {
	Send(ctx context.Context, job *models.TransferJob) error
}

// CredentialResolver turns a catalog credential reference into a secret.
type CredentialResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// ReportSink persists the final report of a run.
type ReportSink interface {
	Save(ctx context.Context, report *models.RunReport) error
}

// Archiver keeps a copy of the produced artifacts.
type Archiver interface {
	Archive(ctx context.Context, runID string, artifacts []models.GroupArtifact) error
}
