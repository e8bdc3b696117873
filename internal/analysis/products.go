package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/compras/backend-go/internal/domain"
)

// ProductRow is one line of the product analysis, rounded for display.
type ProductRow struct {
	Rank        int     `json:"rank"`
	Code        string  `json:"code"`
	Description string  `json:"description"`
	UnitCost    float64 `json:"unit_cost"`
	Balance     float64 `json:"balance"`

	Months     []domain.MonthQuantity `json:"months"`
	Total12M   float64                `json:"total_12m"`
	Mean12M    float64                `json:"mean_12m"`
	Revenue12M float64                `json:"revenue_12m"`
	Value12M   float64                `json:"value_12m"`

	StdDev          float64         `json:"std_dev"`
	CV              float64         `json:"cv"`
	ABCValue        float64         `json:"abc_value"`
	Share           float64         `json:"share"`
	CumulativeShare float64         `json:"cumulative_share"`
	ABC             domain.ABCClass `json:"abc"`
	XYZ             domain.XYZClass `json:"xyz"`
	ABCXYZ          string          `json:"abc_xyz"`

	ActiveMonths int                `json:"active_months"`
	DemandLevel  domain.DemandLevel `json:"demand_level"`

	SafetyStock    float64               `json:"safety_stock"`
	Minimum        float64               `json:"minimum"`
	Maximum        float64               `json:"maximum"`
	Target         float64               `json:"target"`
	Status         domain.StockStatus    `json:"status"`
	Suggested      float64               `json:"suggested"`
	InventoryState domain.InventoryState `json:"inventory_state"`
	Excess         float64               `json:"excess"`
	CoverageMonths *float64              `json:"coverage_months,omitempty"`
}

// ProductReport is the product table plus what was resolved to build it.
type ProductReport struct {
	AsOf        time.Time     `json:"as_of"`
	Window      []time.Time   `json:"window"`
	MonthLabels []string      `json:"month_labels"`
	ValueBasis  ValueBasis    `json:"value_basis"`
	HasPrice    bool          `json:"has_price"`
	HasCost     bool          `json:"has_cost"`
	Rows        []ProductRow  `json:"rows"`
	Quality     QualityReport `json:"quality"`

	byCode map[string]int
}

// Lookup returns the row for a product code.
func (r *ProductReport) Lookup(code string) (ProductRow, bool) {
	if r == nil {
		return ProductRow{}, false
	}
	if r.byCode == nil {
		for _, row := range r.Rows {
			if row.Code == code {
				return row, true
			}
		}
		return ProductRow{}, false
	}
	i, ok := r.byCode[code]
	if !ok {
		return ProductRow{}, false
	}
	return r.Rows[i], true
}

func (r *ProductReport) index() {
	r.byCode = make(map[string]int, len(r.Rows))
	for i, row := range r.Rows {
		r.byCode[row.Code] = i
	}
}

// ProductFilter narrows a report to matching rows. Empty fields match any row.
type ProductFilter struct {
	Status domain.StockStatus
	Demand domain.DemandLevel
	ABC    domain.ABCClass
}

// ParseProductFilter reads the user-facing labels, e.g. "falta inv." or "alta".
func ParseProductFilter(status, demand, abc string) (ProductFilter, error) {
	var f ProductFilter
	var problems []string
	if status != "" {
		s, ok := domain.ParseStockStatus(status)
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown stock status %q", status))
		}
		f.Status = s
	}
	if demand != "" {
		d, ok := domain.ParseDemandLevel(demand)
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown demand level %q", demand))
		}
		f.Demand = d
	}
	if abc != "" {
		switch c := domain.ABCClass(strings.ToUpper(strings.TrimSpace(abc))); c {
		case domain.ClassA, domain.ClassB, domain.ClassC:
			f.ABC = c
		default:
			problems = append(problems, fmt.Sprintf("unknown abc class %q", abc))
		}
	}
	if len(problems) > 0 {
		return ProductFilter{}, &ConfigurationError{Problems: problems}
	}
	return f, nil
}

// IsZero reports whether the filter keeps every row.
func (f ProductFilter) IsZero() bool {
	return f == ProductFilter{}
}

func (f ProductFilter) match(row ProductRow) bool {
	return (f.Status == "" || row.Status == f.Status) &&
		(f.Demand == "" || row.DemandLevel == f.Demand) &&
		(f.ABC == "" || row.ABC == f.ABC)
}

// Filter returns a copy of the report holding only the rows f matches.
// Ranks and shares keep the values computed over the full candidate set.
func (r *ProductReport) Filter(f ProductFilter) *ProductReport {
	if r == nil || f.IsZero() {
		return r
	}
	out := *r
	out.Rows = make([]ProductRow, 0, len(r.Rows))
	for _, row := range r.Rows {
		if f.match(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	out.index()
	return &out
}

type productCandidate struct {
	item     domain.InventoryItem
	row      int
	window   []float64
	revenue  []float64
	trailing Stats
	spread   Stats
}

// AnalyzeProducts classifies every product that has both sales and inventory
// and sizes its reorder quantity. Products with sales but no inventory row are
// counted in Quality.UnmatchedProducts.
func AnalyzeProducts(history *SalesHistory, inventory *InventorySnapshot, p Params) (*ProductReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if history == nil {
		return nil, &DataFormatError{Dataset: "sales", Reason: "no sales history"}
	}
	if inventory == nil {
		return nil, &DataFormatError{Dataset: "inventory", Reason: "no inventory snapshot"}
	}

	anchor := MonthStart(p.AsOf)
	m := BuildWindow(history.Aggregates, anchor)
	report := &ProductReport{
		AsOf:     p.AsOf,
		Window:   m.Window,
		HasPrice: history.HasPrice,
		HasCost:  inventory.HasCost,
		Quality:  history.Quality.Merge(inventory.Quality),
	}
	for _, mo := range m.Window {
		report.MonthLabels = append(report.MonthLabels, MonthLabel(mo))
	}
	report.ValueBasis = resolveValueBasis(p.ValueBasis, history.HasPrice, inventory.HasCost)

	// 1. Candidate set: sales joined to inventory
	var candidates []productCandidate
	seen := make(map[string]bool, len(m.Entities))
	for i, code := range m.Entities {
		seen[code] = true
		item, ok := inventory.Lookup(code)
		if !ok {
			report.Quality.UnmatchedProducts++
			continue
		}
		window := m.WindowQuantity(i)
		if activeMonths(window) == 0 && p.ZeroSales == ExcludeZeroSales {
			report.Quality.ExcludedWithoutSales++
			continue
		}
		candidates = append(candidates, productCandidate{item: item, row: i, window: window, revenue: m.WindowRevenue(i)})
	}
	if p.ZeroSales == IncludeZeroSales {
		for _, item := range inventory.Items {
			if !seen[item.Code] {
				candidates = append(candidates, productCandidate{
					item:    item,
					row:     -1,
					window:  make([]float64, WindowMonths),
					revenue: make([]float64, WindowMonths),
				})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].item.Code < candidates[j].item.Code })

	// 2. Statistics on the configured deviation basis
	for i := range candidates {
		c := &candidates[i]
		c.trailing = Describe(c.window)
		c.spread = c.trailing
		if p.DeviationBasis == DeviationHistory {
			c.spread = Describe(m.HistoryQuantity(c.row))
		}
	}

	// 3. ABC over the candidate set
	entries := make([]ValueEntry, len(candidates))
	byCode := make(map[string]*productCandidate, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		entries[i] = ValueEntry{Entity: c.item.Code, Value: productValue(report.ValueBasis, c)}
		byCode[c.item.Code] = c
	}
	ranked := ClassifyABC(entries, p.ABCThresholdA, p.ABCThresholdB)

	// 4. Policy and projection, in ABC order
	report.Rows = make([]ProductRow, 0, len(ranked))
	for _, abc := range ranked {
		c := byCode[abc.Entity]
		report.Rows = append(report.Rows, buildProductRow(c, abc, m, len(m.Months), p))
	}
	report.index()
	return report, nil
}

func resolveValueBasis(b ValueBasis, hasPrice, hasCost bool) ValueBasis {
	if b != ValueAuto {
		return b
	}
	switch {
	case hasPrice:
		return ValueRevenue
	case hasCost:
		return ValueCost
	default:
		return ValueQuantity
	}
}

func productValue(b ValueBasis, c *productCandidate) float64 {
	switch b {
	case ValueRevenue:
		return sum(c.revenue)
	case ValueCost:
		return sum(c.window) * c.item.UnitCost
	default:
		return sum(c.window)
	}
}

func buildProductRow(c *productCandidate, abc ABCResult, m *Matrix, historyMonths int, p Params) ProductRow {
	xyz := ClassifyXYZ(c.spread.CV, p.XYZThresholdX, p.XYZThresholdY)
	active := activeMonths(c.window)
	total := sum(c.window)
	pol := ComputePolicy(PolicyInput{
		MonthlyMean:   c.trailing.Mean,
		MonthlyStdDev: c.spread.StdDev,
		HistoryMonths: historyMonths,
		Balance:       c.item.Balance,
	}, p)

	row := ProductRow{
		Rank:        abc.Rank,
		Code:        c.item.Code,
		Description: c.item.Description,
		UnitCost:    round2(c.item.UnitCost),
		Balance:     round2(c.item.Balance),

		Months:     make([]domain.MonthQuantity, len(m.Window)),
		Total12M:   round2(total),
		Mean12M:    round2(c.trailing.Mean),
		Revenue12M: round2(sum(c.revenue)),
		Value12M:   round2(total * c.item.UnitCost),

		StdDev:          round2(c.spread.StdDev),
		CV:              round4(c.spread.CV),
		ABCValue:        round2(abc.Value),
		Share:           round4(abc.Share),
		CumulativeShare: round4(abc.Cumulative),
		ABC:             abc.Class,
		XYZ:             xyz,
		ABCXYZ:          domain.Combined(abc.Class, xyz),

		ActiveMonths: active,
		DemandLevel:  DemandLevelFor(active),

		SafetyStock:    round2(pol.SafetyStock),
		Minimum:        round2(pol.Minimum),
		Maximum:        round2(pol.Maximum),
		Target:         round2(pol.Target),
		Status:         pol.Status,
		Suggested:      round2(pol.Suggested),
		InventoryState: InventoryStateFor(c.item.Balance, pol),
		Excess:         round2(Excess(c.item.Balance, pol)),
	}
	for i, mo := range m.Window {
		row.Months[i] = domain.MonthQuantity{Month: mo, Label: MonthLabel(mo), Quantity: round2(c.window[i])}
	}
	if cover, ok := CoverageMonths(c.item.Balance, c.trailing.Mean); ok {
		cover = round2(cover)
		row.CoverageMonths = &cover
	}
	return row
}
