package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DeviationBasis selects the months the demand deviation is computed over.
type DeviationBasis string

const (
	// DeviationHistory uses every observed month plus the zero-filled trailing window.
	DeviationHistory DeviationBasis = "history"
	// DeviationTrailing uses only the 12 trailing months.
	DeviationTrailing DeviationBasis = "trailing"
)

// SafetyStockScaling selects how monthly deviation becomes daily deviation.
type SafetyStockScaling string

const (
	// ScaleByHistory divides by √(history months) and √(selling days per month).
	ScaleByHistory SafetyStockScaling = "history"
	// NoHistoryScaling divides by √(selling days per month) only.
	NoHistoryScaling SafetyStockScaling = "none"
	// SafetyStockDisabled leaves minimum stock at lead-time demand.
	SafetyStockDisabled SafetyStockScaling = "disabled"
)

// ZeroSalesPolicy decides what happens to products without trailing sales.
type ZeroSalesPolicy string

const (
	ExcludeZeroSales ZeroSalesPolicy = "exclude"
	IncludeZeroSales ZeroSalesPolicy = "include"
)

// ValueBasis selects the metric products are ranked by for ABC.
type ValueBasis string

const (
	// ValueAuto picks revenue when prices exist, else quantity × unit cost, else quantity.
	ValueAuto     ValueBasis = "auto"
	ValueRevenue  ValueBasis = "revenue"
	ValueCost     ValueBasis = "cost"
	ValueQuantity ValueBasis = "quantity"
)

// Params is the full parameter set of one analysis run. It is passed by value
// and never mutated by the engine.
type Params struct {
	AsOf time.Time

	LeadTimeDays       float64
	CoverageMonths     float64
	SellingDaysPerWeek float64
	ServiceZ           float64

	ABCThresholdA float64
	ABCThresholdB float64
	XYZThresholdX float64
	XYZThresholdY float64

	DeviationBasis     DeviationBasis
	SafetyStockScaling SafetyStockScaling
	ZeroSales          ZeroSalesPolicy
	ValueBasis         ValueBasis

	AlertMinMonths   int
	AlertCoverFactor float64
}

// DefaultParams returns the factory defaults anchored at asOf.
func DefaultParams(asOf time.Time) Params {
	return Params{
		AsOf:               asOf,
		LeadTimeDays:       4,
		CoverageMonths:     1,
		SellingDaysPerWeek: 6,
		ServiceZ:           1.65,
		ABCThresholdA:      0.80,
		ABCThresholdB:      0.95,
		XYZThresholdX:      0.10,
		XYZThresholdY:      0.25,
		DeviationBasis:     DeviationHistory,
		SafetyStockScaling: ScaleByHistory,
		ZeroSales:          ExcludeZeroSales,
		ValueBasis:         ValueAuto,
		AlertMinMonths:     6,
		AlertCoverFactor:   2,
	}
}

// Validate rejects inconsistent parameters. Nothing is adjusted.
func (p Params) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if p.AsOf.IsZero() {
		add("as-of time is required")
	}
	if !finite(p.LeadTimeDays) || p.LeadTimeDays < 0 {
		add("lead time must be >= 0, got %v", p.LeadTimeDays)
	}
	if !finite(p.CoverageMonths) || p.CoverageMonths < 0 {
		add("coverage months must be >= 0, got %v", p.CoverageMonths)
	}
	if !finite(p.SellingDaysPerWeek) || p.SellingDaysPerWeek <= 0 || p.SellingDaysPerWeek > 7 {
		add("selling days per week must be in (0, 7], got %v", p.SellingDaysPerWeek)
	}
	if !finite(p.ServiceZ) || p.ServiceZ < 0 {
		add("service z-score must be >= 0, got %v", p.ServiceZ)
	}
	for name, v := range map[string]float64{
		"ABC threshold A": p.ABCThresholdA,
		"ABC threshold B": p.ABCThresholdB,
		"XYZ threshold X": p.XYZThresholdX,
	} {
		if !finite(v) || v < 0 || v > 1 {
			add("%s must be within [0, 1], got %v", name, v)
		}
	}
	if !finite(p.XYZThresholdY) || p.XYZThresholdY < 0 {
		add("XYZ threshold Y must be >= 0, got %v", p.XYZThresholdY)
	}
	if p.ABCThresholdB <= p.ABCThresholdA {
		add("ABC threshold B (%v) must exceed A (%v)", p.ABCThresholdB, p.ABCThresholdA)
	}
	if p.XYZThresholdY <= p.XYZThresholdX {
		add("XYZ threshold Y (%v) must exceed X (%v)", p.XYZThresholdY, p.XYZThresholdX)
	}

	switch p.DeviationBasis {
	case DeviationHistory, DeviationTrailing:
	default:
		add("unknown deviation basis %q", p.DeviationBasis)
	}
	switch p.SafetyStockScaling {
	case ScaleByHistory, NoHistoryScaling, SafetyStockDisabled:
	default:
		add("unknown safety stock scaling %q", p.SafetyStockScaling)
	}
	switch p.ZeroSales {
	case ExcludeZeroSales, IncludeZeroSales:
	default:
		add("unknown zero sales policy %q", p.ZeroSales)
	}
	switch p.ValueBasis {
	case ValueAuto, ValueRevenue, ValueCost, ValueQuantity:
	default:
		add("unknown value basis %q", p.ValueBasis)
	}

	if p.AlertMinMonths < 1 || p.AlertMinMonths > WindowMonths {
		add("alert minimum months must be within [1, %d], got %d", WindowMonths, p.AlertMinMonths)
	}
	if !finite(p.AlertCoverFactor) || p.AlertCoverFactor < 0 {
		add("alert cover factor must be >= 0, got %v", p.AlertCoverFactor)
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return &ConfigurationError{Problems: problems}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
