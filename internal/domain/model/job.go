package model

import "time"

// Job is a bulk import run. Counters are derived from Items and are never
// written independently of them.
type Job struct {
	ID            string
	CredentialID  string
	ResourceType  ResourceType
	Status        JobStatus
	TotalRows     int
	SucceededRows int
	FailedRows    int
	FailureReason string // Set when a precondition failed before any row was attempted.
	CreatedAt     time.Time
	CompletedAt   time.Time // Zero until the job reaches a terminal status.

	// Items is populated only by single-job reads.
	Items []JobItem
}

// JobItem is one source row of a Job and its dispatch outcome.
type JobItem struct {
	RowIndex     int
	Source       Record
	Status       ItemStatus
	ErrorMessage string
	RemoteID     string
}

// ItemOutcome is the terminal transition applied to a single JobItem.
type ItemOutcome struct {
	Status       ItemStatus
	ErrorMessage string
	RemoteID     string
}

// DeriveJobStatus computes the status a job with the given item counts has once
// dispatch is over. Pending items count as neither outcome; callers finalize
// them before deriving.
func DeriveJobStatus(total, succeeded, failed int) JobStatus {
	switch {
	case total == 0:
		return JobStatusFailed
	case succeeded == total:
		return JobStatusCompleted
	case failed == total:
		return JobStatusFailed
	case succeeded > 0 && failed > 0 && succeeded+failed == total:
		return JobStatusPartial
	default:
		return JobStatusRunning
	}
}

// Record is a single tabular row keyed by column name. Column order is owned by
// the resource that produced or consumes it.
type Record map[string]string

// ExportRequest describes one export. It is never persisted.
type ExportRequest struct {
	OwnerID      string
	CredentialID string
	ResourceType ResourceType
	Filters      map[string]string
	Mode         ExportMode
	Format       ExportFormat
}

const (
	// PreviewRowLimit caps the rows a preview export returns.
	PreviewRowLimit = 20
	// ExportPageSize is the provider page size used by full exports.
	ExportPageSize = 100
)
