package application

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

// ExportResult describes a finished export.
type ExportResult struct {
	Rows        int
	ContentType string
	Filename    string
}

// ExportService pages through Accurate listings and serializes them.
type ExportService struct {
	credentials driven.CredentialStore
	resources   *Registry
	codec       driven.RecordCodec
	now         func() time.Time
}

// NewExportService creates a new ExportService.
func NewExportService(credentials driven.CredentialStore, resources *Registry, codec driven.RecordCodec) *ExportService {
	return &ExportService{
		credentials: credentials,
		resources:   resources,
		codec:       codec,
		now:         time.Now,
	}
}

// Rows yields the projected records of req lazily. Each iteration starts
// again from the first page; breaking out stops pagination.
func (s *ExportService) Rows(ctx context.Context, req model.ExportRequest) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		res, cred, err := s.prepare(ctx, req)
		if err != nil {
			yield(nil, err)
			return
		}
		s.rows(ctx, req, res, *cred)(yield)
	}
}

func (s *ExportService) rows(ctx context.Context, req model.ExportRequest, res Resource, cred model.Credential) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		pageSize, limit := model.ExportPageSize, -1
		if req.Mode == model.ExportModePreview {
			pageSize, limit = model.PreviewRowLimit, model.PreviewRowLimit
		}

		produced := 0
		for page := 1; ; page++ {
			records, count, err := res.ListPage(ctx, cred, req.Filters, page, pageSize)
			if err != nil {
				yield(nil, fmt.Errorf("list %s page %d: %w", res.Type(), page, err))
				return
			}

			for _, rec := range records {
				if limit >= 0 && produced >= limit {
					return
				}
				if !yield(rec, nil) {
					return
				}
				produced++
			}

			if limit >= 0 || count < pageSize {
				return
			}
		}
	}
}

// Export writes every row of req to w in the requested format. A failure
// after rows were written is *model.PartialExportError; callers must discard
// what was written.
func (s *ExportService) Export(ctx context.Context, req model.ExportRequest, w io.Writer) (ExportResult, error) {
	res, cred, err := s.prepare(ctx, req)
	if err != nil {
		return ExportResult{}, err
	}

	out, err := s.codec.NewWriter(req.Format, w, res.Columns())
	if err != nil {
		return ExportResult{}, fmt.Errorf("start %s export: %w", req.Format, err)
	}

	rows := 0
	for rec, err := range s.rows(ctx, req, res, *cred) {
		if err != nil {
			if rows > 0 {
				return ExportResult{}, &model.PartialExportError{Rows: rows, Err: err}
			}
			return ExportResult{}, err
		}
		if err := out.Write(rec); err != nil {
			return ExportResult{}, &model.PartialExportError{Rows: rows, Err: fmt.Errorf("write row: %w", err)}
		}
		rows++
	}

	if err := out.Close(); err != nil {
		return ExportResult{}, &model.PartialExportError{Rows: rows, Err: fmt.Errorf("finish %s export: %w", req.Format, err)}
	}

	slog.Info("export finished",
		"credential_id", cred.ID,
		"resource_type", res.Type(),
		"mode", req.Mode,
		"format", req.Format,
		"rows", rows,
	)

	return ExportResult{
		Rows:        rows,
		ContentType: s.codec.ContentType(req.Format),
		Filename:    fmt.Sprintf("%s-%s-%s.%s", res.Type(), req.Mode, s.now().UTC().Format("20060102-150405"), req.Format),
	}, nil
}

// prepare validates req and loads its credential before any provider call.
func (s *ExportService) prepare(ctx context.Context, req model.ExportRequest) (Resource, *model.Credential, error) {
	switch req.Mode {
	case model.ExportModePreview, model.ExportModeFull:
	default:
		return nil, nil, &model.ValidationError{RowIndex: -1, Field: "mode", Reason: fmt.Sprintf("must be %s or %s", model.ExportModePreview, model.ExportModeFull)}
	}
	if !req.Format.Valid() {
		return nil, nil, &model.ValidationError{RowIndex: -1, Field: "format", Reason: "unsupported format " + string(req.Format)}
	}

	res, err := s.resources.Get(req.ResourceType)
	if err != nil {
		return nil, nil, err
	}
	if err := res.ValidateFilters(req.Filters); err != nil {
		return nil, nil, err
	}

	cred, err := s.credentials.Get(ctx, req.CredentialID, req.OwnerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load credential %s: %w", req.CredentialID, err)
	}
	return res, cred, nil
}
