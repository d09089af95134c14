package tabular

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

const sheetName = "Sheet1"

// xlsxWriter streams rows into a single-sheet workbook. The workbook is
// written to the underlying writer on Close.
type xlsxWriter struct {
	file    *excelize.File
	stream  *excelize.StreamWriter
	out     io.Writer
	columns []string
	row     int
}

func newXLSXWriter(w io.Writer, columns []string) (*xlsxWriter, error) {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create xlsx stream writer: %w", err)
	}

	xw := &xlsxWriter{file: f, stream: sw, out: w, columns: columns}
	if err := xw.writeRow(columns); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	return xw, nil
}

func (x *xlsxWriter) Write(rec model.Record) error {
	if err := x.writeRow(rowValues(rec, x.columns)); err != nil {
		return fmt.Errorf("write xlsx row %d: %w", x.row, err)
	}
	return nil
}

func (x *xlsxWriter) writeRow(values []string) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}

	// Values stay strings so codes like "007" and dates survive a round trip.
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return x.stream.SetRow(cell, cells)
}

func (x *xlsxWriter) Close() error {
	defer x.file.Close()

	if err := x.stream.Flush(); err != nil {
		return fmt.Errorf("flush xlsx stream: %w", err)
	}
	if _, err := x.file.WriteTo(x.out); err != nil {
		return fmt.Errorf("write xlsx workbook: %w", err)
	}
	return nil
}

// readXLSX parses the first sheet of a workbook whose first row is the header.
func readXLSX(r io.Reader) ([]model.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrMissingHeader
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx sheet %q: %w", sheets[0], err)
	}
	defer rows.Close()

	var header []string
	records := []model.Record{}
	for rows.Next() {
		row, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read xlsx row: %w", err)
		}
		if header == nil {
			if isBlankRow(row) {
				continue
			}
			header = normalizeHeader(row)
			continue
		}
		if isBlankRow(row) {
			continue
		}
		records = append(records, recordFromRow(header, row))
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("iterate xlsx rows: %w", err)
	}
	if header == nil {
		return nil, ErrMissingHeader
	}

	return records, nil
}
