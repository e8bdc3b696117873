package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/compras/backend-go/internal/domain"
)

// CustomerRow is one customer over the trailing window.
type CustomerRow struct {
	Rank                  int             `json:"rank"`
	Customer              string          `json:"customer"`
	Revenue12M            float64         `json:"revenue_12m"`
	Quantity12M           float64         `json:"quantity_12m"`
	Share                 float64         `json:"share"`
	CumulativeShare       float64         `json:"cumulative_share"`
	ABC                   domain.ABCClass `json:"abc"`
	DistinctProducts      int             `json:"distinct_products"`
	ActiveMonths          int             `json:"active_months"`
	AverageTicket         float64         `json:"average_ticket"`
	DaysSinceLastPurchase int             `json:"days_since_last_purchase"`
	FirstPurchase         time.Time       `json:"first_purchase"`
	LastPurchase          time.Time       `json:"last_purchase"`
}

// CustomerReport is the ranked customer table.
type CustomerReport struct {
	AsOf    time.Time     `json:"as_of"`
	Window  []time.Time   `json:"window"`
	Rows    []CustomerRow `json:"rows"`
	Quality QualityReport `json:"quality"`
}

// InventoryJoin is the inventory side of a drill-down row.
type InventoryJoin struct {
	Description string  `json:"description"`
	Balance     float64 `json:"balance"`
}

// ProductJoin is the product-analysis side of a drill-down row.
type ProductJoin struct {
	ABC       domain.ABCClass    `json:"abc"`
	XYZ       domain.XYZClass    `json:"xyz"`
	ABCXYZ    string             `json:"abc_xyz"`
	Status    domain.StockStatus `json:"status"`
	Minimum   float64            `json:"minimum"`
	Target    float64            `json:"target"`
	Suggested float64            `json:"suggested"`
	Mean12M   float64            `json:"mean_12m"`
}

// CustomerProductRow is one (product, supplier) bought by a customer.
type CustomerProductRow struct {
	Rank           int            `json:"rank"`
	Product        string         `json:"product"`
	Supplier       string         `json:"supplier,omitempty"`
	Quantity12M    float64        `json:"quantity_12m"`
	Revenue12M     float64        `json:"revenue_12m"`
	CustomerShare  float64        `json:"customer_share"`
	ActiveMonths   int            `json:"active_months"`
	MonthlyAverage float64        `json:"monthly_average"`
	Inventory      *InventoryJoin `json:"inventory,omitempty"`
	Analysis       *ProductJoin   `json:"analysis,omitempty"`
}

// Alerts are the drill-down rows needing attention. A row may be in both lists.
type Alerts struct {
	Critical []CustomerProductRow `json:"critical"`
	AtRisk   []CustomerProductRow `json:"at_risk"`
}

// CustomerProductReport is the drill-down of one customer.
type CustomerProductReport struct {
	Customer string               `json:"customer"`
	Rows     []CustomerProductRow `json:"rows"`
	Alerts   Alerts               `json:"alerts"`
}

// AnalyzeCustomers ranks customers by trailing-window revenue.
func AnalyzeCustomers(history *SalesHistory, p Params) (*CustomerReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := requireCustomers(history); err != nil {
		return nil, err
	}

	window := TrailingMonths(p.AsOf, WindowMonths)
	txs := windowTransactions(history, window)

	type acc struct {
		revenue, quantity float64
		products          map[string]struct{}
		months            map[time.Time]struct{}
		first, last       time.Time
	}
	byCustomer := make(map[string]*acc)
	var names []string
	for _, tx := range txs {
		if tx.Customer == "" {
			continue
		}
		a, ok := byCustomer[tx.Customer]
		if !ok {
			a = &acc{
				products: make(map[string]struct{}),
				months:   make(map[time.Time]struct{}),
				first:    tx.Date,
				last:     tx.Date,
			}
			byCustomer[tx.Customer] = a
			names = append(names, tx.Customer)
		}
		a.revenue += tx.Revenue
		a.quantity += tx.Quantity
		a.products[tx.Product] = struct{}{}
		a.months[tx.Month] = struct{}{}
		if tx.Date.Before(a.first) {
			a.first = tx.Date
		}
		if tx.Date.After(a.last) {
			a.last = tx.Date
		}
	}
	sort.Strings(names)

	entries := make([]ValueEntry, len(names))
	for i, name := range names {
		entries[i] = ValueEntry{Entity: name, Value: byCustomer[name].revenue}
	}

	report := &CustomerReport{AsOf: p.AsOf, Window: window, Quality: history.Quality}
	for _, abc := range ClassifyABC(entries, p.ABCThresholdA, p.ABCThresholdB) {
		a := byCustomer[abc.Entity]
		months := len(a.months)
		report.Rows = append(report.Rows, CustomerRow{
			Rank:                  abc.Rank,
			Customer:              abc.Entity,
			Revenue12M:            round2(a.revenue),
			Quantity12M:           round2(a.quantity),
			Share:                 round4(abc.Share),
			CumulativeShare:       round4(abc.Cumulative),
			ABC:                   abc.Class,
			DistinctProducts:      len(a.products),
			ActiveMonths:          months,
			AverageTicket:         round2(a.revenue / float64(months)),
			DaysSinceLastPurchase: daysBetween(a.last, p.AsOf),
			FirstPurchase:         a.first,
			LastPurchase:          a.last,
		})
	}
	return report, nil
}

// AnalyzeCustomerProducts breaks one customer's window purchases down by
// product and supplier, joined to inventory and, when given, the product
// analysis. An unknown customer yields an empty report.
func AnalyzeCustomerProducts(customer string, history *SalesHistory, inventory *InventorySnapshot, products *ProductReport, p Params) (*CustomerProductReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := requireCustomers(history); err != nil {
		return nil, err
	}

	name := FoldName(customer)
	report := &CustomerProductReport{Customer: name}
	window := TrailingMonths(p.AsOf, WindowMonths)

	type key struct{ product, supplier string }
	type acc struct {
		quantity, revenue float64
		months            map[time.Time]struct{}
	}
	groups := make(map[key]*acc)
	var keys []key
	var total float64
	for _, tx := range windowTransactions(history, window) {
		if tx.Customer != name {
			continue
		}
		k := key{tx.Product, tx.Supplier}
		a, ok := groups[k]
		if !ok {
			a = &acc{months: make(map[time.Time]struct{})}
			groups[k] = a
			keys = append(keys, k)
		}
		a.quantity += tx.Quantity
		a.revenue += tx.Revenue
		a.months[tx.Month] = struct{}{}
		total += tx.Revenue
	}
	if len(keys) == 0 {
		return report, nil
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].product != keys[j].product {
			return keys[i].product < keys[j].product
		}
		return keys[i].supplier < keys[j].supplier
	})
	sort.SliceStable(keys, func(i, j int) bool { return groups[keys[i]].revenue > groups[keys[j]].revenue })

	for i, k := range keys {
		a := groups[k]
		row := CustomerProductRow{
			Rank:           i + 1,
			Product:        k.product,
			Supplier:       k.supplier,
			Quantity12M:    round2(a.quantity),
			Revenue12M:     round2(a.revenue),
			ActiveMonths:   len(a.months),
			MonthlyAverage: round2(a.quantity / WindowMonths),
		}
		if total > 0 {
			row.CustomerShare = round4(a.revenue / total)
		}
		if item, ok := inventory.Lookup(k.product); ok {
			row.Inventory = &InventoryJoin{Description: item.Description, Balance: round2(item.Balance)}
		}
		if pr, ok := products.Lookup(k.product); ok {
			row.Analysis = &ProductJoin{
				ABC:       pr.ABC,
				XYZ:       pr.XYZ,
				ABCXYZ:    pr.ABCXYZ,
				Status:    pr.Status,
				Minimum:   pr.Minimum,
				Target:    pr.Target,
				Suggested: pr.Suggested,
				Mean12M:   pr.Mean12M,
			}
		}
		report.Rows = append(report.Rows, row)
	}
	report.Alerts = DetectAlerts(report.Rows, p)
	return report, nil
}

// DetectAlerts flags products bought in at least AlertMinMonths months that
// are understocked (critical) or whose balance is below AlertCoverFactor times
// the customer's monthly average (at risk).
func DetectAlerts(rows []CustomerProductRow, p Params) Alerts {
	var alerts Alerts
	for _, row := range rows {
		if row.ActiveMonths < p.AlertMinMonths {
			continue
		}
		if row.Analysis != nil && row.Analysis.Status == domain.StatusUnderstock {
			alerts.Critical = append(alerts.Critical, row)
		}
		if row.Inventory != nil && row.Inventory.Balance < p.AlertCoverFactor*(row.Quantity12M/WindowMonths) {
			alerts.AtRisk = append(alerts.AtRisk, row)
		}
	}
	return alerts
}

// CustomerTrend returns the customer's zero-filled monthly series over the window.
func CustomerTrend(customer string, history *SalesHistory, p Params) ([]domain.TrendPoint, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := requireCustomers(history); err != nil {
		return nil, err
	}

	name := FoldName(customer)
	window := TrailingMonths(p.AsOf, WindowMonths)
	points := make([]domain.TrendPoint, len(window))
	slot := make(map[time.Time]int, len(window))
	for i, m := range window {
		points[i] = domain.TrendPoint{Month: m, Label: MonthLabel(m)}
		slot[m] = i
	}
	for _, tx := range windowTransactions(history, window) {
		if tx.Customer != name {
			continue
		}
		i := slot[tx.Month]
		points[i].Revenue += tx.Revenue
		points[i].Quantity += tx.Quantity
	}
	for i := range points {
		points[i].Revenue = round2(points[i].Revenue)
		points[i].Quantity = round2(points[i].Quantity)
	}
	return points, nil
}

func requireCustomers(history *SalesHistory) error {
	if history == nil || history.Shape != ShapeTransactional || !history.HasCustomer {
		return &DataFormatError{
			Dataset: "sales",
			Fields:  []string{"customer"},
			Reason:  "customer analysis needs transactional sales with a customer column",
		}
	}
	return nil
}

// windowTransactions keeps transactions whose month falls inside window.
func windowTransactions(history *SalesHistory, window []time.Time) []domain.Transaction {
	if len(window) == 0 {
		return nil
	}
	first, last := window[0], window[len(window)-1]
	out := make([]domain.Transaction, 0, len(history.Transactions))
	for _, tx := range history.Transactions {
		if tx.Month.Before(first) || tx.Month.After(last) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func daysBetween(from, to time.Time) int {
	d := int(math.Floor(to.Sub(from).Hours() / 24))
	if d < 0 {
		return 0
	}
	return d
}
