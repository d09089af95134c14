package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

func TestDeriveJobStatus(t *testing.T) {
	tests := []struct {
		name                     string
		total, succeeded, failed int
		want                     model.JobStatus
	}{
		{"empty job", 0, 0, 0, model.JobStatusFailed},
		{"all succeeded", 5, 5, 0, model.JobStatusCompleted},
		{"all failed", 5, 0, 5, model.JobStatusFailed},
		{"mixed", 5, 4, 1, model.JobStatusPartial},
		{"rows outstanding", 5, 2, 1, model.JobStatusRunning},
		{"nothing attempted", 5, 0, 0, model.JobStatusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.DeriveJobStatus(tt.total, tt.succeeded, tt.failed))
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, model.JobStatusPending.IsTerminal())
	assert.False(t, model.JobStatusRunning.IsTerminal())
	assert.True(t, model.JobStatusPartial.IsTerminal())
	assert.True(t, model.JobStatusCompleted.IsTerminal())
	assert.True(t, model.JobStatusFailed.IsTerminal())
}

func TestExportFormat_Valid(t *testing.T) {
	assert.True(t, model.FormatCSV.Valid())
	assert.True(t, model.FormatXLSX.Valid())
	assert.True(t, model.FormatJSON.Valid())
	assert.False(t, model.ExportFormat("pdf").Valid())
}
