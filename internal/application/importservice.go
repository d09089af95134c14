package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

const (
	// DefaultImportWorkers bounds concurrent row submissions per job.
	DefaultImportWorkers = 8

	reasonInterrupted = "dispatch interrupted before this row was attempted"
	reasonRestarted   = "job interrupted by a restart"
)

// ImportService validates import files and submits their rows one by one,
// tracking each row's outcome on a persisted job.
type ImportService struct {
	jobs        driven.JobStore
	credentials driven.CredentialStore
	resources   *Registry
	codec       driven.RecordCodec
	workers     int
	now         func() time.Time
	wg          sync.WaitGroup
}

// NewImportService creates a new ImportService. workers bounds parallel row
// submissions within one job; non-positive values use DefaultImportWorkers.
func NewImportService(
	jobs driven.JobStore,
	credentials driven.CredentialStore,
	resources *Registry,
	codec driven.RecordCodec,
	workers int,
) *ImportService {
	if workers <= 0 {
		workers = DefaultImportWorkers
	}
	return &ImportService{
		jobs:        jobs,
		credentials: credentials,
		resources:   resources,
		codec:       codec,
		workers:     workers,
		now:         time.Now,
	}
}

// ImportFile parses r in the given format and starts an import of its rows.
func (s *ImportService) ImportFile(ctx context.Context, ownerID, credentialID string, resourceType model.ResourceType, format model.ExportFormat, r io.Reader) (model.Job, error) {
	if !format.Valid() {
		return model.Job{}, &model.ValidationError{RowIndex: -1, Field: "format", Reason: "unsupported format " + string(format)}
	}
	rows, err := s.codec.ReadAll(format, r)
	if err != nil {
		return model.Job{}, &model.ValidationError{RowIndex: -1, Field: "file", Reason: err.Error()}
	}
	return s.StartImport(ctx, ownerID, credentialID, resourceType, rows)
}

// StartImport persists a pending job holding rows and dispatches it in the
// background. Rows are numbered from 1 in file order.
func (s *ImportService) StartImport(ctx context.Context, ownerID, credentialID string, resourceType model.ResourceType, rows []model.Record) (model.Job, error) {
	if len(rows) == 0 {
		return model.Job{}, &model.ValidationError{RowIndex: -1, Field: "rows", Reason: "no data rows"}
	}

	cred, err := s.credentials.Get(ctx, credentialID, ownerID)
	if err != nil {
		return model.Job{}, fmt.Errorf("load credential %s: %w", credentialID, err)
	}

	job := model.Job{
		ID:           uuid.NewString(),
		CredentialID: cred.ID,
		ResourceType: resourceType,
		Status:       model.JobStatusPending,
		TotalRows:    len(rows),
		CreatedAt:    s.now().UTC(),
	}
	items := make([]model.JobItem, len(rows))
	for i, rec := range rows {
		items[i] = model.JobItem{RowIndex: i + 1, Source: rec, Status: model.ItemStatusPending}
	}

	if err := s.jobs.Create(ctx, job, items); err != nil {
		return model.Job{}, fmt.Errorf("create job: %w", err)
	}

	slog.Info("import job created",
		"job_id", job.ID,
		"credential_id", cred.ID,
		"resource_type", resourceType,
		"rows", len(rows),
	)

	bg := context.WithoutCancel(ctx)
	s.wg.Go(func() {
		if err := s.run(bg, job.ID, *cred, model.JobStatusPending); err != nil {
			slog.Error("import job failed", "job_id", job.ID, "error", err)
		}
	})

	return job, nil
}

// Run claims a pending job and dispatches it synchronously. It returns the
// job as stored once dispatch has finished.
func (s *ImportService) Run(ctx context.Context, ownerID, jobID string) (*model.Job, error) {
	job, err := s.GetJob(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	cred, err := s.credentials.Get(ctx, job.CredentialID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load credential %s: %w", job.CredentialID, err)
	}
	if err := s.run(ctx, jobID, *cred, model.JobStatusPending); err != nil {
		return nil, err
	}
	return s.jobs.Get(ctx, jobID)
}

// Resume re-dispatches the error rows of a partial job in the background.
// Successful rows are never resubmitted. Jobs in any other status are
// returned unchanged.
func (s *ImportService) Resume(ctx context.Context, ownerID, jobID string) (*model.Job, error) {
	job, err := s.GetJob(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusPartial {
		return job, nil
	}

	cred, err := s.credentials.Get(ctx, job.CredentialID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load credential %s: %w", job.CredentialID, err)
	}

	claimed, err := s.jobs.Claim(ctx, jobID, model.JobStatusPartial)
	if err != nil {
		return nil, fmt.Errorf("claim job %s: %w", jobID, err)
	}
	if !claimed {
		return s.jobs.Get(ctx, jobID)
	}

	reset, err := s.jobs.ResetErrorItems(ctx, jobID)
	if err != nil {
		if _, ferr := s.jobs.Finalize(ctx, jobID, reasonInterrupted, ""); ferr != nil {
			slog.Error("finalize job after failed reset", "job_id", jobID, "error", ferr)
		}
		return nil, fmt.Errorf("reset error rows of job %s: %w", jobID, err)
	}
	slog.Info("import job resumed", "job_id", jobID, "rows", reset)

	bg := context.WithoutCancel(ctx)
	s.wg.Go(func() {
		if err := s.execute(bg, jobID, *cred); err != nil {
			slog.Error("resumed import job failed", "job_id", jobID, "error", err)
		}
	})

	return s.jobs.Get(ctx, jobID)
}

// GetJob returns the job with its items when its credential belongs to ownerID.
func (s *ImportService) GetJob(ctx context.Context, ownerID, jobID string) (*model.Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if _, err := s.credentials.Get(ctx, job.CredentialID, ownerID); err != nil {
		var notFound *model.NotFoundError
		if errors.As(err, &notFound) {
			return nil, &model.NotFoundError{Kind: "job", ID: jobID}
		}
		return nil, fmt.Errorf("load credential %s: %w", job.CredentialID, err)
	}
	return job, nil
}

// ListJobs returns the jobs of one of ownerID's credentials, newest first.
func (s *ImportService) ListJobs(ctx context.Context, ownerID, credentialID string) ([]model.Job, error) {
	if _, err := s.credentials.Get(ctx, credentialID, ownerID); err != nil {
		return nil, fmt.Errorf("load credential %s: %w", credentialID, err)
	}
	return s.jobs.ListByCredential(ctx, credentialID)
}

// RecoverInterrupted finalizes jobs a previous process left pending or
// running. Rows that were never attempted become errors, so such jobs end
// partial or failed and can be resumed. It returns the number of jobs
// finalized.
func (s *ImportService) RecoverInterrupted(ctx context.Context) (int, error) {
	recovered := 0
	for _, status := range []model.JobStatus{model.JobStatusRunning, model.JobStatusPending} {
		jobs, err := s.jobs.ListByStatus(ctx, status)
		if err != nil {
			return recovered, fmt.Errorf("list %s jobs: %w", status, err)
		}
		for _, job := range jobs {
			final, err := s.jobs.Finalize(ctx, job.ID, reasonRestarted, "")
			if err != nil {
				return recovered, fmt.Errorf("finalize job %s: %w", job.ID, err)
			}
			slog.Warn("recovered interrupted import job", "job_id", job.ID, "previous_status", status, "status", final)
			recovered++
		}
	}
	return recovered, nil
}

// Wait blocks until every background dispatch has finished.
func (s *ImportService) Wait() {
	s.wg.Wait()
}

// run claims jobID from one of the given statuses and executes it.
func (s *ImportService) run(ctx context.Context, jobID string, cred model.Credential, from ...model.JobStatus) error {
	claimed, err := s.jobs.Claim(ctx, jobID, from...)
	if err != nil {
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}
	if !claimed {
		slog.Debug("import job already claimed", "job_id", jobID)
		return nil
	}
	return s.execute(ctx, jobID, cred)
}

// execute dispatches every pending row of a claimed job and finalizes it.
func (s *ImportService) execute(ctx context.Context, jobID string, cred model.Credential) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return s.fail(ctx, jobID, fmt.Errorf("load job: %w", err))
	}

	res, err := s.resources.Get(job.ResourceType)
	if err != nil {
		return s.fail(ctx, jobID, err)
	}
	if cred.Host == "" {
		return s.fail(ctx, jobID, &model.HostResolutionError{Reason: "credential has no database host"})
	}

	importer := res.NewImporter(cred)

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, item := range job.Items {
		if item.Status != model.ItemStatusPending {
			continue
		}
		g.Go(func() error {
			return s.processRow(ctx, jobID, importer, item)
		})
	}
	dispatchErr := g.Wait()

	status, err := s.jobs.Finalize(ctx, jobID, reasonInterrupted, "")
	if err != nil {
		return errors.Join(dispatchErr, fmt.Errorf("finalize job %s: %w", jobID, err))
	}

	final, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return errors.Join(dispatchErr, err)
	}
	slog.Info("import job finished",
		"job_id", jobID,
		"status", status,
		"total", final.TotalRows,
		"succeeded", final.SucceededRows,
		"failed", final.FailedRows,
	)
	return dispatchErr
}

// processRow validates and submits one row. Row failures are recorded on the
// item; only job store failures are returned.
func (s *ImportService) processRow(ctx context.Context, jobID string, importer RowImporter, item model.JobItem) error {
	outcome := model.ItemOutcome{Status: model.ItemStatusError}

	submit, err := importer.Prepare(ctx, item.RowIndex, item.Source)
	if err == nil {
		var remoteID string
		remoteID, err = submit(ctx)
		if err == nil {
			outcome = model.ItemOutcome{Status: model.ItemStatusSuccess, RemoteID: remoteID}
		}
	}
	if err != nil {
		outcome.ErrorMessage = err.Error()
		slog.Debug("import row failed", "job_id", jobID, "row", item.RowIndex, "kind", model.ErrorKind(err), "error", err)
	}

	if _, err := s.jobs.MarkItem(ctx, jobID, item.RowIndex, outcome); err != nil {
		return fmt.Errorf("mark row %d: %w", item.RowIndex, err)
	}
	return nil
}

// fail finalizes a job whose precondition failed before any row was attempted.
func (s *ImportService) fail(ctx context.Context, jobID string, cause error) error {
	reason := cause.Error()
	if _, err := s.jobs.Finalize(ctx, jobID, reason, reason); err != nil {
		return errors.Join(cause, fmt.Errorf("finalize job %s: %w", jobID, err))
	}
	slog.Warn("import job failed precondition", "job_id", jobID, "reason", reason)
	return nil
}
