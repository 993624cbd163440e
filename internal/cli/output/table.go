package output

import (
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Tabular is implemented by results that know how to lay themselves out as rows.
type Tabular interface {
	Table(wide bool) *Table
}

// TableFormatter renders Tabular values as aligned columns.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format renders data as a table, falling back to YAML for other values.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case nil:
		return nil
	case *Table:
		return v.render(w, f.NoHeaders)
	case Tabular:
		return v.Table(f.Wide).render(w, f.NoHeaders)
	}
	return writeYAML(w, data)
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render renders the table with headers.
func (t *Table) Render(w io.Writer) error {
	return t.render(w, false)
}

func (t *Table) render(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		io.WriteString(tw, strings.Join(t.Headers, "\t")+"\n")
	}
	for _, row := range t.Rows {
		io.WriteString(tw, strings.Join(row, "\t")+"\n")
	}
	return tw.Flush()
}

// Millis formats a Unix-millisecond timestamp for a table cell.
func Millis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

// Dash replaces an empty cell with "-".
func Dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
