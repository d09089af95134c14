package driven

import (
	"io"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

// RecordWriter serializes records in the column order it was created with.
// Close must be called to flush formats that buffer (XLSX, JSON).
type RecordWriter interface {
	Write(rec model.Record) error
	Close() error
}

// RecordCodec converts between tabular files and records.
type RecordCodec interface {
	// NewWriter starts a file of the given format with a header of columns.
	NewWriter(format model.ExportFormat, w io.Writer, columns []string) (RecordWriter, error)

	// ReadAll parses every data row of a file. The first row (CSV, XLSX) or
	// the object keys (JSON) name the columns.
	ReadAll(format model.ExportFormat, r io.Reader) ([]model.Record, error)

	// ContentType returns the MIME type served for format.
	ContentType(format model.ExportFormat) string
}
