// Package report projects analysis results into sheets and renders them as
// XLSX workbooks or CSV files.
package report

// Format is how a column is rendered in the workbook.
type Format string

const (
	FormatText    Format = "text"
	FormatInt     Format = "int"
	FormatNumber  Format = "number"
	FormatPercent Format = "percent"
	FormatDate    Format = "date"
)

// Sources says which optional inputs a run had. Columns fed by a missing
// source are left out of the projection.
type Sources struct {
	HasPrice     bool
	HasCost      bool
	HasSupplier  bool
	HasInventory bool
	HasAnalysis  bool
}

// Column is one potential output column over rows of type T.
type Column[T any] struct {
	Header  string
	Format  Format
	Width   float64
	Include func(Sources) bool
	Value   func(T) any
}

// ColumnSpec is a column that survived projection.
type ColumnSpec struct {
	Header string
	Format Format
	Width  float64
}

// Sheet is a rendered table: headers plus typed cell values.
type Sheet struct {
	Name    string
	Columns []ColumnSpec
	Rows    [][]any
}

// Headers lists the column headers in order.
func (s Sheet) Headers() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Header
	}
	return out
}

// Project keeps the columns whose sources are present and evaluates them for every row.
func Project[T any](name string, cols []Column[T], rows []T, src Sources) Sheet {
	kept := make([]Column[T], 0, len(cols))
	for _, c := range cols {
		if c.Include == nil || c.Include(src) {
			kept = append(kept, c)
		}
	}

	sheet := Sheet{Name: name, Columns: make([]ColumnSpec, len(kept)), Rows: make([][]any, len(rows))}
	for i, c := range kept {
		sheet.Columns[i] = ColumnSpec{Header: c.Header, Format: c.Format, Width: c.Width}
	}
	for r, row := range rows {
		cells := make([]any, len(kept))
		for i, c := range kept {
			cells[i] = c.Value(row)
		}
		sheet.Rows[r] = cells
	}
	return sheet
}

func withPrice(s Sources) bool     { return s.HasPrice }
func withCost(s Sources) bool      { return s.HasCost }
func withSupplier(s Sources) bool  { return s.HasSupplier }
func withInventory(s Sources) bool { return s.HasInventory }
func withAnalysis(s Sources) bool  { return s.HasAnalysis }
