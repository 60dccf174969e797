package database

import (
	"fmt"
	"strings"
)

const maxCellWidth = 120

// Format renders the result as a pipe separated text table for the model to read.
func (r Result) Format() string {
	if len(r.Columns) == 0 {
		return "Query returned no columns."
	}
	var b strings.Builder
	b.WriteString(strings.Join(r.Columns, " | "))
	b.WriteByte('\n')
	if len(r.Rows) == 0 {
		b.WriteString("(no rows)")
		return b.String()
	}
	cells := make([]string, len(r.Columns))
	for _, row := range r.Rows {
		for i := range cells {
			cells[i] = ""
			if i < len(row) {
				cells[i] = formatCell(row[i])
			}
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteByte('\n')
	}
	if r.Truncated {
		fmt.Fprintf(&b, "(result truncated to %d rows)", len(r.Rows))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (t Table) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table %s (", t.Name)
	for i, column := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(column.Name)
		b.WriteByte(' ')
		b.WriteString(column.Type)
		if !column.Nullable {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString(")")
	return b.String()
}

func formatCell(value any) string {
	if value == nil {
		return "NULL"
	}
	text := strings.ReplaceAll(fmt.Sprint(value), "\n", " ")
	if len(text) > maxCellWidth {
		text = text[:maxCellWidth] + "..."
	}
	return text
}
