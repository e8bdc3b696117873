package analysis_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/andresuchdata/compras/backend-go/internal/analysis"
	"github.com/andresuchdata/compras/backend-go/internal/domain"
)

func TestSellingDaysPerMonth(t *testing.T) {
	assert.Equal(t, 25, analysis.SellingDaysPerMonth(6))
	assert.Equal(t, 21, analysis.SellingDaysPerMonth(5))
	assert.Equal(t, 30, analysis.SellingDaysPerMonth(7))
	assert.Equal(t, 1, analysis.SellingDaysPerMonth(0.1))
}

func TestComputePolicyConstantDemand(t *testing.T) {
	pol := analysis.ComputePolicy(analysis.PolicyInput{MonthlyMean: 30, HistoryMonths: 12}, analysis.DefaultParams(asOf))

	assert.InDelta(t, 1.2, pol.DailyDemand, 1e-9)
	assert.InDelta(t, 4.8, pol.LeadTimeDemand, 1e-9)
	assert.Zero(t, pol.SafetyStock)
	assert.InDelta(t, 4.8, pol.Minimum, 1e-9)
	assert.InDelta(t, 34.8, pol.Target, 1e-9)
	assert.Equal(t, pol.Target, pol.Maximum)
	assert.InDelta(t, 34.8, pol.Suggested, 1e-9)
	assert.Equal(t, domain.StatusUnderstock, pol.Status)
}

func TestComputePolicySafetyStockScaling(t *testing.T) {
	in := analysis.PolicyInput{MonthlyMean: 30, MonthlyStdDev: 10, HistoryMonths: 16, Balance: 100}
	tests := []struct {
		scaling analysis.SafetyStockScaling
		safety  float64
	}{
		{analysis.ScaleByHistory, 1.65 * (10.0 / 4 / 5) * 2},
		{analysis.NoHistoryScaling, 1.65 * (10.0 / 5) * 2},
		{analysis.SafetyStockDisabled, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.scaling), func(t *testing.T) {
			p := analysis.DefaultParams(asOf)
			p.SafetyStockScaling = tt.scaling
			pol := analysis.ComputePolicy(in, p)

			assert.InDelta(t, tt.safety, pol.SafetyStock, 1e-9)
			assert.InDelta(t, 4.8+tt.safety, pol.Minimum, 1e-9)
			assert.InDelta(t, 34.8+tt.safety, pol.Target, 1e-9)
			assert.Zero(t, pol.Suggested)
			assert.Equal(t, domain.StatusOK, pol.Status)
		})
	}
}

func TestComputePolicyStatusBoundary(t *testing.T) {
	p := analysis.DefaultParams(asOf)
	in := analysis.PolicyInput{MonthlyMean: 25, HistoryMonths: 12, Balance: 4}

	pol := analysis.ComputePolicy(in, p)
	assert.Equal(t, 4.0, pol.Minimum)
	assert.Equal(t, domain.StatusOK, pol.Status)

	in.Balance = 3.99
	assert.Equal(t, domain.StatusUnderstock, analysis.ComputePolicy(in, p).Status)
}

func TestComputePolicyFractionalCoverage(t *testing.T) {
	p := analysis.DefaultParams(asOf)
	p.CoverageMonths = 0.5
	p.LeadTimeDays = 0
	pol := analysis.ComputePolicy(analysis.PolicyInput{MonthlyMean: 40, HistoryMonths: 12, Balance: 5}, p)

	assert.Zero(t, pol.Minimum)
	assert.Equal(t, 20.0, pol.Target)
	assert.Equal(t, 15.0, pol.Suggested)
}

func TestInventoryStateFor(t *testing.T) {
	pol := analysis.Policy{Minimum: 4, Target: 29}
	tests := map[float64]domain.InventoryState{
		3:    domain.StateCritical,
		4:    domain.StateBelowTarget,
		10:   domain.StateBelowTarget,
		29:   domain.StateNormal,
		40:   domain.StateOverstock,
		43.5: domain.StateOverstock,
		44:   domain.StateOverstockSevere,
	}
	for balance, want := range tests {
		assert.Equal(t, want, analysis.InventoryStateFor(balance, pol), balance)
	}

	assert.Equal(t, 11.0, analysis.Excess(40, pol))
	assert.Zero(t, analysis.Excess(10, pol))

	cover, ok := analysis.CoverageMonths(45, 30)
	assert.True(t, ok)
	assert.Equal(t, 1.5, cover)
	_, ok = analysis.CoverageMonths(45, 0)
	assert.False(t, ok)
}

func TestPolicyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	p := analysis.DefaultParams(asOf)

	properties.Property("suggested purchase is never negative and zero iff balance covers target", prop.ForAll(
		func(mean, std, balance float64, months int) bool {
			pol := analysis.ComputePolicy(analysis.PolicyInput{
				MonthlyMean:   mean,
				MonthlyStdDev: std,
				HistoryMonths: months,
				Balance:       balance,
			}, p)
			if pol.Suggested < 0 {
				return false
			}
			return (pol.Suggested == 0) == (balance >= pol.Target)
		},
		gen.Float64Range(0, 1e4),
		gen.Float64Range(0, 1e4),
		gen.Float64Range(0, 2e4),
		gen.IntRange(0, 60),
	))

	properties.Property("understock iff balance strictly below minimum", prop.ForAll(
		func(mean, std, balance float64) bool {
			pol := analysis.ComputePolicy(analysis.PolicyInput{
				MonthlyMean:   mean,
				MonthlyStdDev: std,
				HistoryMonths: 12,
				Balance:       balance,
			}, p)
			return (pol.Status == domain.StatusUnderstock) == (balance < pol.Minimum)
		},
		gen.Float64Range(0, 1e4),
		gen.Float64Range(0, 1e4),
		gen.Float64Range(0, 2e4),
	))

	properties.TestingRun(t)
}
