package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// Pipeline is the fixed fetch, clean, group, materialize, dispatch chain.
type Pipeline struct {
	Source       Source
	Validator    *SchemaValidator
	Transformer  *Transformer
	Materializer *Materializer
	CatalogPath  string
	Dispatcher   *Dispatcher

	// Optional.
	Sinks    []ReportSink
	Archiver Archiver
}

// Run executes one pass. Errors that invalidate the run (bad input,
// ruleset, artifact or catalog) are returned; per-site failures only show up
// in the report.
func (p *Pipeline) Run(ctx context.Context, rc *RunContext) (*models.RunReport, error) {
	report := &models.RunReport{
		RunID:     rc.RunID,
		StartedAt: time.Now().UTC(),
		DryRun:    rc.Options.DryRun,
		Unmatched: []string{},
	}
	rc.Log.Infof("Starting run %s (dry run: %v)", rc.RunID, rc.Options.DryRun)

	catalog, err := LoadCatalog(p.CatalogPath)
	if err != nil {
		return report, err
	}
	report.CatalogIssues = catalog.Issues()
	for _, issue := range report.CatalogIssues {
		rc.Log.Warnf("Catalog entry %s excluded: %s", issue.SiteID, issue.Reason)
	}
	rc.Log.Infof("Loaded %d resolvable site(s) from %s", catalog.Len(), p.CatalogPath)

	raw, err := p.Source.Fetch(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch records: %w", err)
	}
	rc.Log.Infof("Fetched %d bytes from %s", len(raw.Data), raw.Origin)

	if p.Validator != nil {
		if err := p.Validator.Validate(raw); err != nil {
			return report, err
		}
	}

	grouped, cleaned, err := p.Transformer.Transform(rc, raw)
	if cleaned != nil {
		report.RecordsIn = cleaned.Total
		report.RecordsRetained = len(cleaned.Records)
		report.RecordsDropped = cleaned.Dropped
	}
	if err != nil {
		return report, err
	}
	report.GroupsProduced = len(grouped.Groups)
	rc.Log.Infof("Records in: %d, retained: %d, dropped: %d, sites: %d",
		report.RecordsIn, report.RecordsRetained, report.RecordsDropped, report.GroupsProduced)

	artifacts, err := p.Materializer.Materialize(rc, grouped)
	if err != nil {
		return report, err
	}

	jobs := p.match(rc, catalog, artifacts, report)

	if err := p.Materializer.Verify(artifacts); err != nil {
		return report, err
	}

	if rc.Options.DryRun {
		for _, job := range jobs {
			rc.Record(models.SiteOutcome{
				SiteID:     job.SiteID(),
				Status:     models.StatusPlanned,
				Contact:    job.Entry.FailureEmail,
				Address:    job.Entry.Address,
				RemotePath: job.Entry.RemotePath,
				Artifact:   job.Artifact.FileName,
				Bytes:      job.Artifact.Size,
			})
		}
	} else if len(jobs) > 0 {
		report.JobsAttempted = len(jobs)
		p.Dispatcher.Dispatch(ctx, rc, jobs)
	}

	report.Outcomes = rc.Outcomes(grouped.SiteIDs())

	if p.Archiver != nil && len(artifacts) > 0 {
		if err := p.Archiver.Archive(ctx, rc.RunID, artifacts); err != nil {
			rc.Log.Errorf("Archiving artifacts failed: %v", err)
		}
	}

	report.FinishedAt = time.Now().UTC()
	for _, sink := range p.Sinks {
		if err := sink.Save(ctx, report); err != nil {
			rc.Log.Errorf("Saving run report failed: %v", err)
		}
	}

	rc.Log.Infof("Run %s finished: %d delivered, %d failed, %d unmatched",
		rc.RunID, report.Delivered(), report.Failed(), len(report.Unmatched))
	return report, nil
}

// match pairs artifacts with catalog entries. Artifacts without a complete
// entry are recorded as unmatched and never become jobs.
func (p *Pipeline) match(rc *RunContext, catalog *Catalog, artifacts []models.GroupArtifact, report *models.RunReport) []*models.TransferJob {
	jobs := make([]*models.TransferJob, 0, len(artifacts))
	for _, a := range artifacts {
		entry, err := catalog.Resolve(a.SiteID)
		if err != nil {
			warn := &UnmatchedGroupWarning{SiteID: a.SiteID, Cause: err}
			rc.Log.Warnf("%v", warn)
			report.Unmatched = append(report.Unmatched, a.SiteID)
			rc.Record(models.SiteOutcome{
				SiteID:   a.SiteID,
				Status:   models.StatusUnmatched,
				Reason:   err.Error(),
				Artifact: a.FileName,
			})
			continue
		}
		jobs = append(jobs, models.NewTransferJob(a, entry))
	}
	return jobs
}
