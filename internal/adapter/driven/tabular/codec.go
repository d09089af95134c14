// Package tabular converts between records and CSV, XLSX and JSON files.
package tabular

import (
	"errors"
	"io"
	"strings"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RecordCodec = (*Codec)(nil)

// ErrMissingHeader is returned when an input file has no header row.
var ErrMissingHeader = errors.New("file has no header row")

// Codec implements driven.RecordCodec for every supported format.
type Codec struct{}

// NewCodec creates a Codec.
func NewCodec() *Codec {
	return &Codec{}
}

// NewWriter starts a file of the given format whose header is columns.
func (c *Codec) NewWriter(format model.ExportFormat, w io.Writer, columns []string) (driven.RecordWriter, error) {
	switch format {
	case model.FormatCSV:
		return newCSVWriter(w, columns)
	case model.FormatXLSX:
		return newXLSXWriter(w, columns)
	case model.FormatJSON:
		return newJSONWriter(w, columns)
	default:
		return nil, unsupportedFormat(format)
	}
}

// ReadAll parses every non-empty data row of a file.
func (c *Codec) ReadAll(format model.ExportFormat, r io.Reader) ([]model.Record, error) {
	switch format {
	case model.FormatCSV:
		return readCSV(r)
	case model.FormatXLSX:
		return readXLSX(r)
	case model.FormatJSON:
		return readJSON(r)
	default:
		return nil, unsupportedFormat(format)
	}
}

// ContentType returns the MIME type served for format.
func (c *Codec) ContentType(format model.ExportFormat) string {
	switch format {
	case model.FormatCSV:
		return "text/csv; charset=utf-8"
	case model.FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case model.FormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func unsupportedFormat(format model.ExportFormat) error {
	return &model.ValidationError{RowIndex: -1, Field: "format", Reason: "unsupported format " + string(format)}
}

// recordFromRow pairs header names with row cells. Missing trailing cells are
// empty; cells beyond the header are dropped.
func recordFromRow(header, row []string) model.Record {
	rec := make(model.Record, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		if i < len(row) {
			rec[name] = strings.TrimSpace(row[i])
		} else {
			rec[name] = ""
		}
	}
	return rec
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func normalizeHeader(row []string) []string {
	header := make([]string, len(row))
	for i, name := range row {
		header[i] = strings.TrimSpace(name)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header
}

// rowValues projects rec onto columns.
func rowValues(rec model.Record, columns []string) []string {
	values := make([]string, len(columns))
	for i, col := range columns {
		values[i] = rec[col]
	}
	return values
}
