// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

// Submission sends one validated row to the provider and returns the
// provider-assigned id.
type Submission func(ctx context.Context) (string, error)

// RowImporter validates and prepares the rows of one import job. It is safe
// for concurrent use and lives no longer than the job.
type RowImporter interface {
	// Prepare validates rec. Invalid rows yield *model.ValidationError and
	// are never dispatched.
	Prepare(ctx context.Context, rowIndex int, rec model.Record) (Submission, error)
}

// Resource adapts one Accurate resource to the export and import engines.
type Resource interface {
	Type() model.ResourceType

	// Columns lists the tabular columns in file order. Exports write them and
	// imports read the same names.
	Columns() []string

	// ValidateFilters rejects unknown or malformed export filters.
	ValidateFilters(filters map[string]string) error

	// ListPage fetches one provider page projected to records, plus the number
	// of provider records on the page used to detect the last page.
	ListPage(ctx context.Context, cred model.Credential, filters map[string]string, page, pageSize int) ([]model.Record, int, error)

	// NewImporter returns a RowImporter bound to cred for a single job.
	NewImporter(cred model.Credential) RowImporter
}

// Registry looks up resources by type.
type Registry struct {
	resources map[model.ResourceType]Resource
}

// NewRegistry creates a Registry holding the given resources.
func NewRegistry(resources ...Resource) *Registry {
	r := &Registry{resources: make(map[model.ResourceType]Resource, len(resources))}
	for _, res := range resources {
		r.resources[res.Type()] = res
	}
	return r
}

// Get returns the resource registered for t, or *model.ValidationError.
func (r *Registry) Get(t model.ResourceType) (Resource, error) {
	res, ok := r.resources[t]
	if !ok {
		return nil, &model.ValidationError{
			RowIndex: -1,
			Field:    "resource_type",
			Reason:   fmt.Sprintf("unknown resource type %q (supported: %v)", t, r.Types()),
		}
	}
	return res, nil
}

// Types returns the registered resource types in sorted order.
func (r *Registry) Types() []model.ResourceType {
	return slices.Sorted(maps.Keys(r.resources))
}
