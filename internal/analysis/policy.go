package analysis

import (
	"math"

	"github.com/andresuchdata/compras/backend-go/internal/domain"
)

// sellingWeeksPerMonth is 52/12 rounded the way the buyers' spreadsheet does.
const sellingWeeksPerMonth = 4.33

// overstockSevereFactor marks balances above 150% of target.
const overstockSevereFactor = 1.5

// PolicyInput is the demand profile of one product.
type PolicyInput struct {
	MonthlyMean   float64
	MonthlyStdDev float64
	HistoryMonths int
	Balance       float64
}

// Policy holds the reorder sizing of one product. Values are unrounded.
type Policy struct {
	DailyDemand    float64            `json:"daily_demand"`
	LeadTimeDemand float64            `json:"lead_time_demand"`
	DailyStdDev    float64            `json:"daily_std_dev"`
	SafetyStock    float64            `json:"safety_stock"`
	Minimum        float64            `json:"minimum"`
	Target         float64            `json:"target"`
	Maximum        float64            `json:"maximum"`
	Suggested      float64            `json:"suggested"`
	Status         domain.StockStatus `json:"status"`
}

// SellingDaysPerMonth truncates daysPerWeek × 4.33, never below 1.
func SellingDaysPerMonth(daysPerWeek float64) int {
	days := int(daysPerWeek * sellingWeeksPerMonth)
	if days < 1 {
		return 1
	}
	return days
}

// ComputePolicy sizes minimum, target and suggested purchase for one product.
func ComputePolicy(in PolicyInput, p Params) Policy {
	var pol Policy
	days := float64(SellingDaysPerMonth(p.SellingDaysPerWeek))

	// 1. Daily demand from the trailing monthly mean
	pol.DailyDemand = in.MonthlyMean / days

	// 2. Demand expected while the order is in transit
	pol.LeadTimeDemand = pol.DailyDemand * p.LeadTimeDays

	// 3. Daily deviation, optionally damped by the length of the history
	switch p.SafetyStockScaling {
	case ScaleByHistory:
		pol.DailyStdDev = in.MonthlyStdDev / math.Sqrt(float64(max(in.HistoryMonths, 1))) / math.Sqrt(days)
	case NoHistoryScaling:
		pol.DailyStdDev = in.MonthlyStdDev / math.Sqrt(days)
	}

	// 4. Safety stock = Z × daily deviation × √lead time
	pol.SafetyStock = p.ServiceZ * pol.DailyStdDev * math.Sqrt(p.LeadTimeDays)
	if !finite(pol.SafetyStock) || pol.SafetyStock < 0 {
		pol.SafetyStock = 0
	}

	// 5. Minimum = lead time demand + safety stock
	pol.Minimum = pol.LeadTimeDemand + pol.SafetyStock

	// 6. Target = minimum + coverage months of mean demand; maximum equals target
	pol.Target = pol.Minimum + in.MonthlyMean*p.CoverageMonths
	pol.Maximum = pol.Target

	// 7. Suggested purchase never negative
	pol.Suggested = math.Max(0, pol.Target-in.Balance)

	// 8. Understock only strictly below minimum
	pol.Status = domain.StatusOK
	if in.Balance < pol.Minimum {
		pol.Status = domain.StatusUnderstock
	}

	return pol
}

// InventoryStateFor places balance against the policy's minimum and target.
func InventoryStateFor(balance float64, pol Policy) domain.InventoryState {
	switch {
	case balance < pol.Minimum:
		return domain.StateCritical
	case balance < pol.Target:
		return domain.StateBelowTarget
	case balance > pol.Target*overstockSevereFactor:
		return domain.StateOverstockSevere
	case balance > pol.Target:
		return domain.StateOverstock
	default:
		return domain.StateNormal
	}
}

// Excess is the stock held above target.
func Excess(balance float64, pol Policy) float64 {
	return math.Max(0, balance-pol.Target)
}

// CoverageMonths is how many months of mean demand the balance lasts. It is
// undefined (ok false) when there is no demand.
func CoverageMonths(balance, monthlyMean float64) (float64, bool) {
	if monthlyMean <= 0 {
		return 0, false
	}
	return balance / monthlyMean, true
}
