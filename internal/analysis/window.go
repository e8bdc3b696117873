package analysis

import (
	"sort"
	"time"

	"github.com/andresuchdata/compras/backend-go/internal/domain"
)

// WindowMonths is the length of the trailing window.
const WindowMonths = 12

var spanishMonths = [...]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}

// MonthStart truncates t to the first day of its calendar month, in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DayStart truncates t to midnight of its UTC calendar day. Default as-of
// dates go through it so runs on the same day share parameters.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TrailingMonths returns n consecutive month starts ending at anchor's month, ascending.
func TrailingMonths(anchor time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	end := MonthStart(anchor)
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = end.AddDate(0, i-n+1, 0)
	}
	return out
}

// MonthLabel renders a month the way the reports head their columns ("ene-25").
func MonthLabel(t time.Time) string {
	return spanishMonths[t.Month()-1] + "-" + t.Format("06")
}

// Matrix is the dense entity × month pivot. Months holds every observed month
// plus the trailing window, ascending; Window is the trailing 12 months.
type Matrix struct {
	Entities []string
	Months   []time.Time
	Window   []time.Time
	Quantity [][]float64
	Revenue  [][]float64

	rows       map[string]int
	windowCols []int
}

// BuildWindow pivots aggregates by entity and month, zero-filling absent cells,
// and adds the 12 months ending at anchor as columns.
func BuildWindow(aggs []domain.MonthlyAggregate, anchor time.Time) *Matrix {
	window := TrailingMonths(anchor, WindowMonths)

	monthSet := make(map[time.Time]struct{}, len(window))
	for _, m := range window {
		monthSet[m] = struct{}{}
	}
	entitySet := make(map[string]struct{})
	for _, a := range aggs {
		monthSet[MonthStart(a.Month)] = struct{}{}
		entitySet[a.Entity] = struct{}{}
	}

	m := &Matrix{
		Entities: make([]string, 0, len(entitySet)),
		Months:   make([]time.Time, 0, len(monthSet)),
		Window:   window,
		rows:     make(map[string]int, len(entitySet)),
	}
	for e := range entitySet {
		m.Entities = append(m.Entities, e)
	}
	sort.Strings(m.Entities)
	for mo := range monthSet {
		m.Months = append(m.Months, mo)
	}
	sort.Slice(m.Months, func(i, j int) bool { return m.Months[i].Before(m.Months[j]) })

	cols := make(map[time.Time]int, len(m.Months))
	for i, mo := range m.Months {
		cols[mo] = i
	}
	m.windowCols = make([]int, len(window))
	for i, mo := range window {
		m.windowCols[i] = cols[mo]
	}

	m.Quantity = make([][]float64, len(m.Entities))
	m.Revenue = make([][]float64, len(m.Entities))
	for i, e := range m.Entities {
		m.rows[e] = i
		m.Quantity[i] = make([]float64, len(m.Months))
		m.Revenue[i] = make([]float64, len(m.Months))
	}
	for _, a := range aggs {
		r, c := m.rows[a.Entity], cols[MonthStart(a.Month)]
		m.Quantity[r][c] += a.Quantity
		m.Revenue[r][c] += a.Revenue
	}
	return m
}

// Row returns the row index of entity, or -1.
func (m *Matrix) Row(entity string) int {
	if i, ok := m.rows[entity]; ok {
		return i
	}
	return -1
}

// WindowQuantity returns a copy of the 12 trailing quantities of row i.
func (m *Matrix) WindowQuantity(i int) []float64 {
	return m.windowSlice(m.Quantity, i)
}

// WindowRevenue returns a copy of the 12 trailing revenues of row i.
func (m *Matrix) WindowRevenue(i int) []float64 {
	return m.windowSlice(m.Revenue, i)
}

// HistoryQuantity returns a copy of every quantity cell of row i.
func (m *Matrix) HistoryQuantity(i int) []float64 {
	out := make([]float64, len(m.Months))
	if i >= 0 && i < len(m.Quantity) {
		copy(out, m.Quantity[i])
	}
	return out
}

func (m *Matrix) windowSlice(cells [][]float64, i int) []float64 {
	out := make([]float64, len(m.windowCols))
	if i < 0 || i >= len(cells) {
		return out
	}
	for k, c := range m.windowCols {
		out[k] = cells[i][c]
	}
	return out
}
