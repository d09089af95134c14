package tabular

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

// jsonWriter emits an array of objects whose keys follow the column order.
type jsonWriter struct {
	w       *bufio.Writer
	columns []string
	count   int
}

func newJSONWriter(w io.Writer, columns []string) (*jsonWriter, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("["); err != nil {
		return nil, fmt.Errorf("write json array start: %w", err)
	}
	return &jsonWriter{w: bw, columns: columns}, nil
}

func (j *jsonWriter) Write(rec model.Record) error {
	sep := ",\n  {"
	if j.count == 0 {
		sep = "\n  {"
	}
	if _, err := j.w.WriteString(sep); err != nil {
		return fmt.Errorf("write json object: %w", err)
	}

	for i, col := range j.columns {
		key, err := json.Marshal(col)
		if err != nil {
			return fmt.Errorf("encode json key %q: %w", col, err)
		}
		value, err := json.Marshal(rec[col])
		if err != nil {
			return fmt.Errorf("encode json value of %q: %w", col, err)
		}
		if i > 0 {
			_ = j.w.WriteByte(',')
		}
		_, _ = j.w.Write(key)
		_ = j.w.WriteByte(':')
		if _, err := j.w.Write(value); err != nil {
			return fmt.Errorf("write json value of %q: %w", col, err)
		}
	}

	if err := j.w.WriteByte('}'); err != nil {
		return fmt.Errorf("write json object end: %w", err)
	}
	j.count++
	return nil
}

func (j *jsonWriter) Close() error {
	end := "\n]\n"
	if j.count == 0 {
		end = "]\n"
	}
	if _, err := j.w.WriteString(end); err != nil {
		return fmt.Errorf("write json array end: %w", err)
	}
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("flush json: %w", err)
	}
	return nil
}

// readJSON parses an array of flat objects. Numbers keep their literal text,
// booleans become "true"/"false" and nulls become empty strings.
func readJSON(r io.Reader) ([]model.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var objects []map[string]any
	if err := dec.Decode(&objects); err != nil {
		if err == io.EOF {
			return nil, ErrMissingHeader
		}
		return nil, fmt.Errorf("decode json array: %w", err)
	}

	records := make([]model.Record, 0, len(objects))
	for i, obj := range objects {
		rec := make(model.Record, len(obj))
		for key, raw := range obj {
			value, err := jsonScalar(raw)
			if err != nil {
				return nil, fmt.Errorf("object %d field %q: %w", i, key, err)
			}
			rec[key] = value
		}
		records = append(records, rec)
	}

	return records, nil
}

func jsonScalar(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("nested values are not supported")
	}
}
