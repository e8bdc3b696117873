package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/compras/backend-go/internal/analysis"
	"github.com/andresuchdata/compras/backend-go/internal/domain"
)

func TestAnalyzeProductsConstantDemand(t *testing.T) {
	h := salesHistory(t, monthlySales("P1", constant(30), 1)...)
	inv := inventorySnapshot(t, []string{"P1", "Tornillo", "0", "2.5"})

	report, err := analysis.AnalyzeProducts(h, inv, analysis.DefaultParams(asOf))
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, "Tornillo", row.Description)
	assert.Equal(t, 360.0, row.Total12M)
	assert.Equal(t, 30.0, row.Mean12M)
	assert.Equal(t, 900.0, row.Value12M)
	assert.Zero(t, row.StdDev)
	assert.Zero(t, row.CV)
	assert.Equal(t, domain.ClassX, row.XYZ)
	assert.Equal(t, 1.0, row.Share)
	assert.Equal(t, domain.ClassC, row.ABC)
	assert.Equal(t, "CX", row.ABCXYZ)
	assert.Equal(t, 12, row.ActiveMonths)
	assert.Equal(t, domain.DemandHigh, row.DemandLevel)
	assert.Equal(t, 4.8, row.Minimum)
	assert.Equal(t, 34.8, row.Target)
	assert.Equal(t, 34.8, row.Maximum)
	assert.Equal(t, 34.8, row.Suggested)
	assert.Equal(t, domain.StatusUnderstock, row.Status)
	assert.Equal(t, domain.StateCritical, row.InventoryState)
	require.NotNil(t, row.CoverageMonths)
	assert.Zero(t, *row.CoverageMonths)

	require.Len(t, row.Months, 12)
	assert.Equal(t, "jul-24", row.Months[0].Label)
	assert.Equal(t, "jun-25", row.Months[11].Label)
	for _, m := range row.Months {
		assert.Equal(t, 30.0, m.Quantity)
	}
	assert.Equal(t, []string{"jul-24", "ago-24", "sep-24", "oct-24", "nov-24", "dic-24",
		"ene-25", "feb-25", "mar-25", "abr-25", "may-25", "jun-25"}, report.MonthLabels)
}

func TestAnalyzeProductsZeroVarianceTies(t *testing.T) {
	h := salesHistory(t, concat(
		monthlySales("P3", constant(100), 10),
		monthlySales("P1", constant(100), 10),
		monthlySales("P2", constant(100), 10),
	)...)
	inv := inventorySnapshot(t,
		[]string{"P3", "Tres", "500", "4"},
		[]string{"P2", "Dos", "500", "4"},
		[]string{"P1", "Uno", "500", "4"},
	)

	report, err := analysis.AnalyzeProducts(h, inv, analysis.DefaultParams(asOf))
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)
	assert.Equal(t, analysis.ValueRevenue, report.ValueBasis)

	var codes []string
	for i, row := range report.Rows {
		codes = append(codes, row.Code)
		assert.Equal(t, i+1, row.Rank)
		assert.Zero(t, row.CV)
		assert.Equal(t, domain.ClassX, row.XYZ)
		assert.Equal(t, 12000.0, row.ABCValue)
		assert.Equal(t, 0.3333, row.Share)
	}
	assert.Equal(t, []string{"P1", "P2", "P3"}, codes)
	assert.Equal(t, domain.ClassA, report.Rows[0].ABC)
	assert.Equal(t, domain.ClassA, report.Rows[1].ABC)
	assert.Equal(t, domain.ClassC, report.Rows[2].ABC)
	assert.Equal(t, 1.0, report.Rows[2].CumulativeShare)
}

func TestAnalyzeProductsRanksByRevenue(t *testing.T) {
	h := salesHistory(t, concat(
		monthlySales("LOW", constant(1), 10),
		monthlySales("HIGH", constant(1), 70),
		monthlySales("MID", constant(2), 10),
	)...)
	inv := inventorySnapshot(t,
		[]string{"LOW", "Bajo", "0", "1"},
		[]string{"HIGH", "Alto", "0", "1"},
		[]string{"MID", "Medio", "0", "1"},
	)

	report, err := analysis.AnalyzeProducts(h, inv, analysis.DefaultParams(asOf))
	require.NoError(t, err)

	got := make([]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		got = append(got, row.Code+":"+string(row.ABC))
	}
	assert.Equal(t, []string{"HIGH:A", "MID:B", "LOW:C"}, got)

	row, ok := report.Lookup("MID")
	require.True(t, ok)
	assert.Equal(t, 240.0, row.Revenue12M)
	assert.Equal(t, 0.9, row.CumulativeShare)
	_, ok = report.Lookup("NOPE")
	assert.False(t, ok)
}

func TestAnalyzeProductsCostValueBasis(t *testing.T) {
	var rows [][]string
	for _, r := range concat(monthlySales("CHEAP", constant(10), 1), monthlySales("DEAR", constant(1), 1)) {
		rows = append(rows, r[:3])
	}
	h, err := analysis.NormalizeSales(tableOf(salesHeader[:3], rows...), analysis.DefaultColumns().Sales)
	require.NoError(t, err)
	require.False(t, h.HasPrice)
	inv := inventorySnapshot(t,
		[]string{"CHEAP", "Barato", "0", "1"},
		[]string{"DEAR", "Caro", "0", "50"},
	)

	report, err := analysis.AnalyzeProducts(h, inv, analysis.DefaultParams(asOf))
	require.NoError(t, err)
	assert.Equal(t, analysis.ValueCost, report.ValueBasis)
	assert.Equal(t, "DEAR", report.Rows[0].Code)
	assert.Equal(t, 600.0, report.Rows[0].ABCValue)

	p := analysis.DefaultParams(asOf)
	p.ValueBasis = analysis.ValueQuantity
	report, err = analysis.AnalyzeProducts(h, inv, p)
	require.NoError(t, err)
	assert.Equal(t, "CHEAP", report.Rows[0].Code)
	assert.Equal(t, 120.0, report.Rows[0].ABCValue)
}

func TestAnalyzeProductsDeviationBasis(t *testing.T) {
	qtys := [12]float64{10, 20, 10, 20, 10, 20, 10, 20, 10, 20, 10, 20}
	rows := monthlySales("P1", qtys, 1)
	rows = append(rows, sale("P1", "15/01/2023", 90, 1, "", ""))
	h := salesHistory(t, rows...)
	inv := inventorySnapshot(t, []string{"P1", "Uno", "1000", "1"})

	history := append(qtys[:], 90)
	wantHistory := analysis.Describe(history)
	wantTrailing := analysis.Describe(qtys[:])

	p := analysis.DefaultParams(asOf)
	report, err := analysis.AnalyzeProducts(h, inv, p)
	require.NoError(t, err)
	row := report.Rows[0]
	assert.InDelta(t, wantHistory.StdDev, row.StdDev, 0.005)
	assert.InDelta(t, wantHistory.CV, row.CV, 0.00005)
	assert.Equal(t, 15.0, row.Mean12M)

	pol := analysis.ComputePolicy(analysis.PolicyInput{
		MonthlyMean:   15,
		MonthlyStdDev: wantHistory.StdDev,
		HistoryMonths: 13,
		Balance:       1000,
	}, p)
	assert.InDelta(t, pol.Minimum, row.Minimum, 0.005)

	p.DeviationBasis = analysis.DeviationTrailing
	report, err = analysis.AnalyzeProducts(h, inv, p)
	require.NoError(t, err)
	row = report.Rows[0]
	assert.InDelta(t, wantTrailing.StdDev, row.StdDev, 0.005)
	assert.InDelta(t, wantTrailing.CV, row.CV, 0.00005)
	assert.Equal(t, domain.ClassZ, row.XYZ)
}

func TestAnalyzeProductsZeroSalesPolicy(t *testing.T) {
	h := salesHistory(t, concat(
		monthlySales("ACTIVE", constant(5), 1),
		[][]string{
			sale("STALE", "10/02/2023", 40, 1, "", ""),
			sale("GHOST", "10/05/2025", 3, 1, "", ""),
		},
	)...)
	inv := inventorySnapshot(t,
		[]string{"ACTIVE", "Activo", "10", "1"},
		[]string{"STALE", "Viejo", "7", "1"},
		[]string{"SHELF", "Sin ventas", "2", "1"},
	)

	report, err := analysis.AnalyzeProducts(h, inv, analysis.DefaultParams(asOf))
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "ACTIVE", report.Rows[0].Code)
	assert.Equal(t, 1, report.Quality.ExcludedWithoutSales)
	assert.Equal(t, 1, report.Quality.UnmatchedProducts)

	p := analysis.DefaultParams(asOf)
	p.ZeroSales = analysis.IncludeZeroSales
	report, err = analysis.AnalyzeProducts(h, inv, p)
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)
	assert.Zero(t, report.Quality.ExcludedWithoutSales)

	shelf, ok := report.Lookup("SHELF")
	require.True(t, ok)
	assert.Zero(t, shelf.Total12M)
	assert.Zero(t, shelf.Mean12M)
	assert.Zero(t, shelf.CV)
	assert.Equal(t, domain.DemandNone, shelf.DemandLevel)
	assert.Nil(t, shelf.CoverageMonths)
	assert.Zero(t, shelf.Suggested)
	assert.Len(t, shelf.Months, 12)

	stale, ok := report.Lookup("STALE")
	require.True(t, ok)
	assert.Equal(t, domain.DemandNone, stale.DemandLevel)
	assert.Greater(t, stale.StdDev, 0.0)
}

func TestAnalyzeProductsPivotedInput(t *testing.T) {
	cols := []string{"COD_PROD"}
	row := []string{"P1"}
	for _, m := range analysis.TrailingMonths(asOf, 12) {
		cols = append(cols, analysis.MonthLabel(m))
		row = append(row, "30")
	}
	h, err := analysis.NormalizeSales(tableOf(cols, row), analysis.DefaultColumns().Sales)
	require.NoError(t, err)
	inv := inventorySnapshot(t, []string{"P1", "Tornillo", "0", "2"})

	report, err := analysis.AnalyzeProducts(h, inv, analysis.DefaultParams(asOf))
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, analysis.ValueCost, report.ValueBasis)
	assert.Equal(t, 34.8, report.Rows[0].Suggested)
}

func TestAnalyzeProductsDeterministic(t *testing.T) {
	h := salesHistory(t, concat(
		monthlySales("A", [12]float64{1, 0, 5, 3, 0, 8, 2, 2, 9, 0, 1, 4}, 3.3),
		monthlySales("B", [12]float64{7, 7, 6, 8, 7, 7, 6, 8, 7, 7, 6, 8}, 1.1),
	)...)
	inv := inventorySnapshot(t, []string{"A", "a", "3", "1"}, []string{"B", "b", "90", "1"})

	first, err := analysis.AnalyzeProducts(h, inv, analysis.DefaultParams(asOf))
	require.NoError(t, err)
	second, err := analysis.AnalyzeProducts(h, inv, analysis.DefaultParams(asOf))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAnalyzeProductsRequiresInputs(t *testing.T) {
	_, err := analysis.AnalyzeProducts(nil, nil, analysis.DefaultParams(asOf))
	var dfe *analysis.DataFormatError
	assert.ErrorAs(t, err, &dfe)
}

func TestProductReportFilter(t *testing.T) {
	h := salesHistory(t, concat(
		monthlySales("SHORT", constant(30), 5),
		monthlySales("FULL", constant(30), 1),
	)...)
	inv := inventorySnapshot(t,
		[]string{"SHORT", "Corto", "0", "5"},
		[]string{"FULL", "Lleno", "900", "1"},
	)
	report, err := analysis.AnalyzeProducts(h, inv, analysis.DefaultParams(asOf))
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	f, err := analysis.ParseProductFilter(" Falta Inv. ", "", "")
	require.NoError(t, err)
	short := report.Filter(f)
	require.Len(t, short.Rows, 1)
	assert.Equal(t, "SHORT", short.Rows[0].Code)
	assert.Equal(t, 1, short.Rows[0].Rank)
	_, ok := short.Lookup("FULL")
	assert.False(t, ok)
	assert.Len(t, report.Rows, 2)

	f, err = analysis.ParseProductFilter("ok", "alta", "c")
	require.NoError(t, err)
	assert.Equal(t, domain.ClassC, f.ABC)
	got := report.Filter(f)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "FULL", got.Rows[0].Code)

	assert.Same(t, report, report.Filter(analysis.ProductFilter{}))
}

func TestParseProductFilterRejectsUnknownLabels(t *testing.T) {
	_, err := analysis.ParseProductFilter("agotado", "muy alta", "D")
	var cfgErr *analysis.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Problems, 3)
}
