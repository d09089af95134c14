package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

type csvWriter struct {
	w       *csv.Writer
	columns []string
}

func newCSVWriter(w io.Writer, columns []string) (*csvWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &csvWriter{w: cw, columns: columns}, nil
}

func (c *csvWriter) Write(rec model.Record) error {
	if err := c.w.Write(rowValues(rec, c.columns)); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// readCSV parses an RFC 4180 file whose first row is the header. A UTF-8 BOM
// is stripped and blank rows are skipped.
func readCSV(r io.Reader) ([]model.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	header := normalizeHeader(first)

	records := []model.Record{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if isBlankRow(row) {
			continue
		}
		records = append(records, recordFromRow(header, row))
	}

	return records, nil
}
