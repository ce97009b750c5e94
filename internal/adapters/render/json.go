package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSONRenderer writes each record as an indented JSON object, one per
// record, followed by an aggregate object when a sum column is requested.
type JSONRenderer struct {
	out io.Writer
}

// NewJSONRenderer creates a JSON renderer. A nil writer defaults to stdout.
func NewJSONRenderer(out io.Writer) *JSONRenderer {
	if out == nil {
		out = os.Stdout
	}
	return &JSONRenderer{out: out}
}

// Render writes one object per row, keyed by column name.
func (r *JSONRenderer) Render(columns []string, rows [][]interface{}, sumColumn string) error {
	if len(rows) == 0 {
		return nil
	}

	sumIdx := -1
	for i, col := range columns {
		if col == sumColumn {
			sumIdx = i
		}
	}

	var total float64
	for _, row := range rows {
		obj := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if i >= len(row) {
				continue
			}
			obj[col] = row[i]
			if i == sumIdx {
				if n, ok := numeric(row[i]); ok {
					total += n
				}
			}
		}
		data, err := json.MarshalIndent(obj, "", "    ")
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		if _, err := fmt.Fprintln(r.out, string(data)); err != nil {
			return err
		}
	}

	if sumIdx >= 0 {
		data, err := json.MarshalIndent(map[string]interface{}{sumColumn + "_total": total}, "", "    ")
		if err != nil {
			return fmt.Errorf("marshaling total: %w", err)
		}
		if _, err := fmt.Fprintln(r.out, string(data)); err != nil {
			return err
		}
	}
	return nil
}
