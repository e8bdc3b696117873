package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/andresuchdata/compras/backend-go/internal/domain"
	"github.com/andresuchdata/compras/backend-go/internal/table"
)

// Shape is the layout a sales export was recognized as.
type Shape string

const (
	ShapeTransactional Shape = "transactional"
	ShapePivoted       Shape = "pivoted"
)

// QualityReport counts every row-level repair made while normalizing. Callers
// are expected to surface it: coerced values change totals.
type QualityReport struct {
	Rows                 int `json:"rows"`
	DroppedMissingID     int `json:"dropped_missing_id"`
	DroppedBadDate       int `json:"dropped_bad_date"`
	CoercedQuantity      int `json:"coerced_quantity"`
	CoercedPrice         int `json:"coerced_price"`
	CoercedBalance       int `json:"coerced_balance"`
	CoercedCost          int `json:"coerced_cost"`
	DuplicateInventory   int `json:"duplicate_inventory"`
	UnmatchedProducts    int `json:"unmatched_products"`
	ExcludedWithoutSales int `json:"excluded_without_sales"`
}

// Clean reports whether no repair was needed.
func (q QualityReport) Clean() bool {
	q.Rows = 0
	return q == QualityReport{}
}

// Merge adds the counters of o to q.
func (q QualityReport) Merge(o QualityReport) QualityReport {
	q.Rows += o.Rows
	q.DroppedMissingID += o.DroppedMissingID
	q.DroppedBadDate += o.DroppedBadDate
	q.CoercedQuantity += o.CoercedQuantity
	q.CoercedPrice += o.CoercedPrice
	q.CoercedBalance += o.CoercedBalance
	q.CoercedCost += o.CoercedCost
	q.DuplicateInventory += o.DuplicateInventory
	q.UnmatchedProducts += o.UnmatchedProducts
	q.ExcludedWithoutSales += o.ExcludedWithoutSales
	return q
}

// SalesHistory is the normalized sales input. Aggregates are per product and
// sorted by (product, month); Transactions is empty for pivoted exports.
type SalesHistory struct {
	Shape        Shape
	Transactions []domain.Transaction
	Aggregates   []domain.MonthlyAggregate
	HasPrice     bool
	HasCustomer  bool
	HasSupplier  bool
	Quality      QualityReport
}

// NewTransactionalHistory builds a history from already parsed transactions.
// Revenue and Month are recomputed; the slice is copied.
func NewTransactionalHistory(txs []domain.Transaction, hasPrice bool) *SalesHistory {
	h := &SalesHistory{
		Shape:        ShapeTransactional,
		Transactions: make([]domain.Transaction, len(txs)),
		HasPrice:     hasPrice,
	}
	for i, tx := range txs {
		if !hasPrice {
			tx.Price = 1
		}
		tx.Month = MonthStart(tx.Date)
		tx.Revenue = tx.Quantity * tx.Price
		if tx.Customer != "" {
			h.HasCustomer = true
		}
		if tx.Supplier != "" {
			h.HasSupplier = true
		}
		h.Transactions[i] = tx
	}
	h.Aggregates = Aggregate(h.Transactions, func(tx domain.Transaction) string { return tx.Product })
	return h
}

// Aggregate sums quantity and revenue per (key, month). Rows with an empty key
// are skipped. The result is sorted by key, then month.
func Aggregate(txs []domain.Transaction, key func(domain.Transaction) string) []domain.MonthlyAggregate {
	type bucket struct {
		entity string
		month  time.Time
	}
	sums := make(map[bucket]*domain.MonthlyAggregate)
	for _, tx := range txs {
		k := key(tx)
		if k == "" {
			continue
		}
		b := bucket{entity: k, month: MonthStart(tx.Date)}
		agg, ok := sums[b]
		if !ok {
			agg = &domain.MonthlyAggregate{Entity: k, Month: b.month}
			sums[b] = agg
		}
		agg.Quantity += tx.Quantity
		agg.Revenue += tx.Revenue
	}

	out := make([]domain.MonthlyAggregate, 0, len(sums))
	for _, agg := range sums {
		out = append(out, *agg)
	}
	sortAggregates(out)
	return out
}

func sortAggregates(aggs []domain.MonthlyAggregate) {
	sort.Slice(aggs, func(i, j int) bool {
		if aggs[i].Entity != aggs[j].Entity {
			return aggs[i].Entity < aggs[j].Entity
		}
		return aggs[i].Month.Before(aggs[j].Month)
	})
}

// NormalizeSales recognizes the export layout and converts it to monthly
// aggregates per product.
func NormalizeSales(t table.Table, cols SalesColumns) (*SalesHistory, error) {
	idx := cols.Resolve(t)
	if idx.Transactional() {
		return normalizeTransactional(t, cols, idx)
	}

	var monthCols []int
	for i, name := range t.Columns {
		if IsMonthColumn(name) {
			monthCols = append(monthCols, i)
		}
	}
	if len(monthCols) > 0 && idx.Product >= 0 {
		return normalizePivoted(t, idx, monthCols)
	}

	var missing []string
	if idx.Product < 0 {
		missing = append(missing, labelOr(cols.Product, "product"))
	}
	if idx.Date < 0 {
		missing = append(missing, labelOr(cols.Date, "date"))
	}
	if idx.Quantity < 0 {
		missing = append(missing, labelOr(cols.Quantity, "quantity"))
	}
	return nil, &DataFormatError{
		Dataset: "sales",
		Fields:  missing,
		Reason:  "neither transactional columns nor month columns found",
	}
}

func normalizeTransactional(t table.Table, cols SalesColumns, idx SalesIndex) (*SalesHistory, error) {
	var q QualityReport
	txs := make([]domain.Transaction, 0, len(t.Rows))
	dated := 0
	for _, row := range t.Rows {
		q.Rows++
		product := table.Cell(row, idx.Product)
		if product == "" {
			q.DroppedMissingID++
			continue
		}
		dated++
		date, err := ParseDayFirst(table.Cell(row, idx.Date))
		if err != nil {
			q.DroppedBadDate++
			continue
		}

		qty, ok := parseNumber(table.Cell(row, idx.Quantity))
		if !ok {
			q.CoercedQuantity++
		}
		price := 1.0
		if idx.Price >= 0 {
			if price, ok = parseNumber(table.Cell(row, idx.Price)); !ok {
				q.CoercedPrice++
			}
		}
		txs = append(txs, domain.Transaction{
			Product:  product,
			Customer: FoldName(table.Cell(row, idx.Customer)),
			Supplier: FoldName(table.Cell(row, idx.Supplier)),
			Date:     date,
			Quantity: qty,
			Price:    price,
		})
	}
	if dated > 0 && len(txs) == 0 {
		return nil, &DataFormatError{
			Dataset: "sales",
			Fields:  []string{labelOr(cols.Date, "date")},
			Reason:  "no parseable dates",
		}
	}

	h := NewTransactionalHistory(txs, idx.Price >= 0)
	h.HasCustomer = idx.Customer >= 0
	h.HasSupplier = idx.Supplier >= 0
	h.Quality = q
	return h, nil
}

func normalizePivoted(t table.Table, idx SalesIndex, monthCols []int) (*SalesHistory, error) {
	months := make([]time.Time, len(monthCols))
	for i, c := range monthCols {
		m, err := ParseMonthLabel(t.Columns[c])
		if err != nil {
			return nil, &DataFormatError{
				Dataset: "sales",
				Fields:  []string{t.Columns[c]},
				Reason:  "unrecognized month column",
			}
		}
		months[i] = m
	}

	var q QualityReport
	sums := make(map[string]map[time.Time]float64)
	for _, row := range t.Rows {
		q.Rows++
		product := table.Cell(row, idx.Product)
		if product == "" {
			q.DroppedMissingID++
			continue
		}
		byMonth, ok := sums[product]
		if !ok {
			byMonth = make(map[time.Time]float64)
			sums[product] = byMonth
		}
		for i, c := range monthCols {
			raw := table.Cell(row, c)
			qty, ok := parseNumber(raw)
			if !ok && raw != "" {
				q.CoercedQuantity++
			}
			byMonth[months[i]] += qty
		}
	}

	aggs := make([]domain.MonthlyAggregate, 0, len(sums)*len(monthCols))
	for product, byMonth := range sums {
		for m, qty := range byMonth {
			aggs = append(aggs, domain.MonthlyAggregate{Entity: product, Month: m, Quantity: qty, Revenue: qty})
		}
	}
	sortAggregates(aggs)
	return &SalesHistory{Shape: ShapePivoted, Aggregates: aggs, Quality: q}, nil
}

// InventorySnapshot is the normalized inventory input, in file order.
type InventorySnapshot struct {
	Items   []domain.InventoryItem
	HasCost bool
	Quality QualityReport

	byCode map[string]int
}

// NewInventorySnapshot indexes items by code. The first row of a duplicated
// code wins; later ones are counted and dropped.
func NewInventorySnapshot(items []domain.InventoryItem, hasCost bool) *InventorySnapshot {
	s := &InventorySnapshot{
		Items:   make([]domain.InventoryItem, 0, len(items)),
		HasCost: hasCost,
		byCode:  make(map[string]int, len(items)),
	}
	for _, it := range items {
		if _, dup := s.byCode[it.Code]; dup {
			s.Quality.DuplicateInventory++
			continue
		}
		s.byCode[it.Code] = len(s.Items)
		s.Items = append(s.Items, it)
	}
	return s
}

// Lookup returns the item with the given code.
func (s *InventorySnapshot) Lookup(code string) (domain.InventoryItem, bool) {
	if s == nil {
		return domain.InventoryItem{}, false
	}
	i, ok := s.byCode[code]
	if !ok {
		return domain.InventoryItem{}, false
	}
	return s.Items[i], true
}

// NormalizeInventory parses the inventory export.
func NormalizeInventory(t table.Table, cols InventoryColumns) (*InventorySnapshot, error) {
	idx := cols.Resolve(t)
	var missing []string
	if idx.Product < 0 {
		missing = append(missing, labelOr(cols.Product, "product"))
	}
	if idx.Description < 0 {
		missing = append(missing, labelOr(cols.Description, "description"))
	}
	if idx.Balance < 0 {
		missing = append(missing, labelOr(cols.Balance, "balance"))
	}
	if len(missing) > 0 {
		return nil, missingFields("inventory", missing...)
	}

	var q QualityReport
	items := make([]domain.InventoryItem, 0, len(t.Rows))
	for _, row := range t.Rows {
		q.Rows++
		code := table.Cell(row, idx.Product)
		if code == "" {
			q.DroppedMissingID++
			continue
		}
		balance, ok := parseNumber(table.Cell(row, idx.Balance))
		if !ok {
			q.CoercedBalance++
		}
		var cost float64
		if idx.Cost >= 0 {
			if cost, ok = parseNumber(table.Cell(row, idx.Cost)); !ok {
				q.CoercedCost++
			}
		}
		items = append(items, domain.InventoryItem{
			Code:        code,
			Description: table.Cell(row, idx.Description),
			UnitCost:    cost,
			Balance:     balance,
		})
	}

	s := NewInventorySnapshot(items, idx.Cost >= 0)
	s.Quality = q.Merge(s.Quality)
	return s, nil
}

// parseNumber reads a plain decimal. Anything else, including NaN and Inf, is 0.
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

var dayFirstLayouts = buildDayFirstLayouts()

func buildDayFirstLayouts() []string {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, sep := range []string{"/", "-", "."} {
		for _, year := range []string{"2006", "06"} {
			date := "2" + sep + "1" + sep + year
			layouts = append(layouts, date, date+" 15:04:05", date+" 15:04")
		}
	}
	return layouts
}

// ParseDayFirst parses a sale date written day first (31/01/2025, 1-2-25,
// 31.01.2025 10:30) or ISO. Spreadsheet serial numbers are also accepted.
func ParseDayFirst(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial < 2958466 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

var monthTokens = map[string]time.Month{
	"ene": time.January, "jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"abr": time.April, "apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"ago": time.August, "aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dic": time.December, "dec": time.December,
}

// IsMonthColumn reports whether a header looks like a pivoted month ("sep-24").
func IsMonthColumn(name string) bool {
	prefix, _, found := strings.Cut(strings.ToLower(strings.TrimSpace(name)), "-")
	if !found {
		return false
	}
	_, ok := monthTokens[prefix]
	return ok
}

// ParseMonthLabel converts "ene-25" or "Sep-2024" into the first day of that month.
func ParseMonthLabel(label string) (time.Time, error) {
	prefix, year, found := strings.Cut(strings.ToLower(strings.TrimSpace(label)), "-")
	if !found || len(prefix) < 3 {
		return time.Time{}, fmt.Errorf("invalid month label %q", label)
	}
	month, ok := monthTokens[prefix[:3]]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month in label %q", label)
	}
	year = strings.TrimSpace(year)
	if len(year) == 2 {
		year = "20" + year
	}
	y, err := strconv.Atoi(year)
	if err != nil || len(year) != 4 {
		return time.Time{}, fmt.Errorf("invalid year in label %q", label)
	}
	return time.Date(y, month, 1, 0, 0, 0, 0, time.UTC), nil
}

// FoldName trims s and strips diacritics, so "José " and "Jose" compare equal.
func FoldName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		return s
	}
	return folded
}
