package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.JobStore = (*JobRepo)(nil)

// JobRepo is the SQLite implementation of the JobStore port interface.
// Job counters are never stored; they are aggregated from job_items on read.
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new JobRepo backed by the given DB.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

// jobSelect aggregates item counters alongside each job row. Callers append
// a WHERE clause followed by jobGroupBy.
const jobSelect = `SELECT j.id, j.credential_id, j.resource_type, j.status, j.failure_reason,
		j.created_at, j.completed_at,
		COUNT(i.row_index),
		COALESCE(SUM(i.status = 'success'), 0),
		COALESCE(SUM(i.status = 'error'), 0)
	FROM jobs j
	LEFT JOIN job_items i ON i.job_id = j.id`

const jobGroupBy = ` GROUP BY j.id`

// Create inserts the job and all of its items in a single transaction.
func (r *JobRepo) Create(ctx context.Context, job model.Job, items []model.JobItem) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create job tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	status := job.Status
	if status == "" {
		status = model.JobStatusPending
	}

	const jobQuery = `INSERT INTO jobs (id, credential_id, resource_type, status, failure_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, jobQuery,
		job.ID, job.CredentialID, string(job.ResourceType), string(status), job.FailureReason, formatTime(createdAt),
	); err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}

	const itemQuery = `INSERT INTO job_items (job_id, row_index, source, status, error_message, remote_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, itemQuery)
	if err != nil {
		return fmt.Errorf("prepare job item insert: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for _, item := range items {
		source, err := json.Marshal(item.Source)
		if err != nil {
			return fmt.Errorf("encode source of row %d: %w", item.RowIndex, err)
		}
		itemStatus := item.Status
		if itemStatus == "" {
			itemStatus = model.ItemStatusPending
		}
		if _, err := stmt.ExecContext(ctx,
			job.ID, item.RowIndex, string(source), string(itemStatus), item.ErrorMessage, item.RemoteID, now,
		); err != nil {
			return fmt.Errorf("insert job item %s/%d: %w", job.ID, item.RowIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create job tx: %w", err)
	}
	return nil
}

// Get returns the job with counters and its items ordered by row index.
func (r *JobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	const query = jobSelect + ` WHERE j.id = ?` + jobGroupBy
	job, err := scanJob(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: "job", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Items = items

	return job, nil
}

// ListByCredential returns the credential's jobs without items, newest first.
func (r *JobRepo) ListByCredential(ctx context.Context, credentialID string) ([]model.Job, error) {
	const query = jobSelect + ` WHERE j.credential_id = ?` + jobGroupBy + ` ORDER BY j.created_at DESC, j.id`
	return r.listJobs(ctx, query, credentialID)
}

// ListByStatus returns jobs in the given status without items, oldest first.
func (r *JobRepo) ListByStatus(ctx context.Context, status model.JobStatus) ([]model.Job, error) {
	const query = jobSelect + ` WHERE j.status = ?` + jobGroupBy + ` ORDER BY j.created_at, j.id`
	return r.listJobs(ctx, query, string(status))
}

// Claim moves the job to running when its status is one of from, which
// defaults to pending. The conditional UPDATE makes the transition atomic.
func (r *JobRepo) Claim(ctx context.Context, id string, from ...model.JobStatus) (bool, error) {
	if len(from) == 0 {
		from = []model.JobStatus{model.JobStatusPending}
	}

	args := make([]any, 0, len(from)+1)
	args = append(args, id)
	for _, s := range from {
		args = append(args, string(s))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")

	query := `UPDATE jobs SET status = 'running', completed_at = NULL
		WHERE id = ? AND status IN (` + placeholders + `)`
	res, err := r.db.Writer.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for claim of job %s: %w", id, err)
	}
	return n == 1, nil
}

// MarkItem applies outcome to one item unless it already succeeded.
func (r *JobRepo) MarkItem(ctx context.Context, jobID string, rowIndex int, outcome model.ItemOutcome) (bool, error) {
	const query = `UPDATE job_items SET status = ?, error_message = ?, remote_id = ?, updated_at = ?
		WHERE job_id = ? AND row_index = ? AND status != 'success'`
	res, err := r.db.Writer.ExecContext(ctx, query,
		string(outcome.Status), outcome.ErrorMessage, outcome.RemoteID, formatTime(time.Now()),
		jobID, rowIndex,
	)
	if err != nil {
		return false, fmt.Errorf("mark job item %s/%d: %w", jobID, rowIndex, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for job item %s/%d: %w", jobID, rowIndex, err)
	}
	return n == 1, nil
}

// ResetErrorItems moves the job's error items back to pending.
func (r *JobRepo) ResetErrorItems(ctx context.Context, jobID string) (int, error) {
	const query = `UPDATE job_items SET status = 'pending', error_message = '', updated_at = ?
		WHERE job_id = ? AND status = 'error'`
	res, err := r.db.Writer.ExecContext(ctx, query, formatTime(time.Now()), jobID)
	if err != nil {
		return 0, fmt.Errorf("reset error items of job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected for reset of job %s: %w", jobID, err)
	}
	return int(n), nil
}

// Finalize closes out the job in one transaction: leftover pending items become
// errors, then the terminal status is derived from the resulting item mix.
func (r *JobRepo) Finalize(ctx context.Context, jobID, pendingReason, failureReason string) (model.JobStatus, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin finalize tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	now := formatTime(time.Now())

	const pendingQuery = `UPDATE job_items SET status = 'error', error_message = ?, updated_at = ?
		WHERE job_id = ? AND status = 'pending'`
	if _, err := tx.ExecContext(ctx, pendingQuery, pendingReason, now, jobID); err != nil {
		return "", fmt.Errorf("finalize pending items of job %s: %w", jobID, err)
	}

	const countQuery = `SELECT COUNT(*),
			COALESCE(SUM(status = 'success'), 0),
			COALESCE(SUM(status = 'error'), 0)
		FROM job_items WHERE job_id = ?`
	var total, succeeded, failed int
	if err := tx.QueryRowContext(ctx, countQuery, jobID).Scan(&total, &succeeded, &failed); err != nil {
		return "", fmt.Errorf("count items of job %s: %w", jobID, err)
	}

	status := model.DeriveJobStatus(total, succeeded, failed)
	if failureReason != "" {
		status = model.JobStatusFailed
	}

	const jobQuery = `UPDATE jobs SET status = ?, completed_at = ?,
			failure_reason = CASE WHEN ? = '' THEN failure_reason ELSE ? END
		WHERE id = ?`
	res, err := tx.ExecContext(ctx, jobQuery, string(status), now, failureReason, failureReason, jobID)
	if err != nil {
		return "", fmt.Errorf("finalize job %s: %w", jobID, err)
	}
	if err := requireAffected(res, "job", jobID); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit finalize tx: %w", err)
	}
	return status, nil
}

func (r *JobRepo) listJobs(ctx context.Context, query string, args ...any) ([]model.Job, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []model.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}

func (r *JobRepo) listItems(ctx context.Context, jobID string) ([]model.JobItem, error) {
	const query = `SELECT row_index, source, status, error_message, remote_id
		FROM job_items WHERE job_id = ? ORDER BY row_index`
	rows, err := r.db.Reader.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list items of job %s: %w", jobID, err)
	}
	defer rows.Close()

	items := []model.JobItem{}
	for rows.Next() {
		var (
			item   model.JobItem
			source string
			status string
		)
		if err := rows.Scan(&item.RowIndex, &source, &status, &item.ErrorMessage, &item.RemoteID); err != nil {
			return nil, fmt.Errorf("scan job item: %w", err)
		}
		if err := json.Unmarshal([]byte(source), &item.Source); err != nil {
			return nil, fmt.Errorf("decode source of row %d: %w", item.RowIndex, err)
		}
		item.Status = model.ItemStatus(status)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job items: %w", err)
	}

	return items, nil
}

func scanJob(s scanner) (*model.Job, error) {
	var (
		job                  model.Job
		resourceType, status string
		createdAt            string
		completedAt          sql.NullString
	)
	if err := s.Scan(
		&job.ID, &job.CredentialID, &resourceType, &status, &job.FailureReason,
		&createdAt, &completedAt,
		&job.TotalRows, &job.SucceededRows, &job.FailedRows,
	); err != nil {
		return nil, err
	}

	job.ResourceType = model.ResourceType(resourceType)
	job.Status = model.JobStatus(status)

	var err error
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for job %s: %w", job.ID, err)
	}
	if completedAt.Valid && completedAt.String != "" {
		if job.CompletedAt, err = parseTime(completedAt.String); err != nil {
			return nil, fmt.Errorf("parse completed_at for job %s: %w", job.ID, err)
		}
	}

	return &job, nil
}
