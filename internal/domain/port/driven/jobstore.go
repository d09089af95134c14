package driven

import (
	"context"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

// JobStore defines the driven port for bulk job persistence. Implementations
// derive job counters from item rows so they can never disagree.
type JobStore interface {
	// Create persists a pending job and its items in one transaction.
	Create(ctx context.Context, job model.Job, items []model.JobItem) error

	// Get returns the job with its items ordered by row index.
	// Returns *model.NotFoundError when the job does not exist.
	Get(ctx context.Context, id string) (*model.Job, error)

	// ListByCredential returns jobs without items, newest first.
	ListByCredential(ctx context.Context, credentialID string) ([]model.Job, error)

	// ListByStatus returns jobs in the given status without items.
	ListByStatus(ctx context.Context, status model.JobStatus) ([]model.Job, error)

	// Claim atomically moves the job to running when its current status is one
	// of from. Returns false when another caller owns it or the status differs.
	Claim(ctx context.Context, id string, from ...model.JobStatus) (bool, error)

	// MarkItem applies a terminal outcome to one item. An item already marked
	// success is never overwritten; the return value reports whether the
	// outcome was applied.
	MarkItem(ctx context.Context, jobID string, rowIndex int, outcome model.ItemOutcome) (bool, error)

	// ResetErrorItems moves every error item back to pending and returns the
	// number of rows reset.
	ResetErrorItems(ctx context.Context, jobID string) (int, error)

	// Finalize marks leftover pending items as error with pendingReason, then
	// writes the terminal status derived from the item mix. failureReason is
	// recorded on the job when non-empty.
	Finalize(ctx context.Context, jobID, pendingReason, failureReason string) (model.JobStatus, error)
}
