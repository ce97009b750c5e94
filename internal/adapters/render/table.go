// Package render provides the output sinks: a tabular writer and a JSON
// writer. The two modes are semantically identical.
package render

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer writes records as an aligned text table, with an optional
// trailing total row for the sum column.
type TableRenderer struct {
	out io.Writer
}

// NewTableRenderer creates a table renderer. A nil writer defaults to stdout.
func NewTableRenderer(out io.Writer) *TableRenderer {
	if out == nil {
		out = os.Stdout
	}
	return &TableRenderer{out: out}
}

// Render writes one table. Column order is preserved. When sumColumn names
// one of the columns, a footer row totals its numeric values.
func (r *TableRenderer) Render(columns []string, rows [][]interface{}, sumColumn string) error {
	if len(rows) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(r.out)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)

	sumIdx := -1
	for i, col := range columns {
		if col == sumColumn {
			sumIdx = i
		}
	}

	var total float64
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i := range columns {
			if i >= len(row) {
				continue
			}
			cells[i] = formatCell(row[i])
			if i == sumIdx {
				if n, ok := numeric(row[i]); ok {
					total += n
				}
			}
		}
		table.Append(cells)
	}

	if sumIdx >= 0 {
		footer := make([]string, len(columns))
		footer[sumIdx] = fmt.Sprintf("%.4f", total)
		table.SetFooter(footer)
	}

	table.Render()
	return nil
}

func formatCell(v interface{}) string {
	switch n := v.(type) {
	case float64:
		return fmt.Sprintf("%.4f", n)
	case float32:
		return fmt.Sprintf("%.4f", n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
