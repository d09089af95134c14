package model

// JobStatus represents the lifecycle state of a bulk import job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPartial   JobStatus = "partial"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further dispatch happens without an explicit resume.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusPartial || s == JobStatusCompleted || s == JobStatusFailed
}

// ItemStatus represents the outcome of a single import row.
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusSuccess ItemStatus = "success"
	ItemStatusError   ItemStatus = "error"
)

// ExportMode selects bounded-sample or exhaustive retrieval.
type ExportMode string

const (
	ExportModePreview ExportMode = "preview"
	ExportModeFull    ExportMode = "full"
)

// ExportFormat selects the serializer for an export.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
)

// Valid reports whether f is one of the supported formats.
func (f ExportFormat) Valid() bool {
	return f == FormatCSV || f == FormatXLSX || f == FormatJSON
}

// ResourceType names an Accurate resource the engines can export and import.
type ResourceType string

const (
	ResourceItemAdjustment ResourceType = "item-adjustment"
)

// AdjustmentType is the direction of an inventory adjustment line.
type AdjustmentType string

const (
	AdjustmentIn  AdjustmentType = "ADJUSTMENT_IN"
	AdjustmentOut AdjustmentType = "ADJUSTMENT_OUT"
)
