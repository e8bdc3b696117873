package analysis_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/compras/backend-go/internal/analysis"
	"github.com/andresuchdata/compras/backend-go/internal/domain"
	"github.com/andresuchdata/compras/backend-go/internal/table"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeSalesTransactional(t *testing.T) {
	h := salesHistory(t,
		sale("P1", "03/01/2025", 2, 10, "José", "ACME"),
		sale("P1", "28/01/2025", 3, 10, "Jose", "ACME"),
		sale("P1", "01/02/2025", 1, 10, "Ana", "ACME"),
		[]string{"P2", "15/02/2025", "abc", "5", "Ana", ""},
		[]string{"P2", "not a date", "4", "5", "Ana", ""},
		[]string{"", "15/02/2025", "4", "5", "Ana", ""},
	)

	assert.Equal(t, analysis.ShapeTransactional, h.Shape)
	assert.True(t, h.HasPrice)
	assert.True(t, h.HasCustomer)
	assert.True(t, h.HasSupplier)
	assert.Len(t, h.Transactions, 4)
	assert.Equal(t, "Jose", h.Transactions[0].Customer)

	assert.Equal(t, []domain.MonthlyAggregate{
		{Entity: "P1", Month: date(2025, time.January, 1), Quantity: 5, Revenue: 50},
		{Entity: "P1", Month: date(2025, time.February, 1), Quantity: 1, Revenue: 10},
		{Entity: "P2", Month: date(2025, time.February, 1), Quantity: 0, Revenue: 0},
	}, h.Aggregates)

	assert.Equal(t, analysis.QualityReport{
		Rows:             6,
		DroppedMissingID: 1,
		DroppedBadDate:   1,
		CoercedQuantity:  1,
	}, h.Quality)
	assert.False(t, h.Quality.Clean())
}

func TestNormalizeSalesWithoutPrice(t *testing.T) {
	tbl := table.Table{
		Columns: []string{"cod_prod", "FECHA", "cantidad"},
		Rows: [][]string{
			{"P1", "2025-03-04", "7"},
			{"P1", "05/03/2025", "3"},
		},
	}
	h, err := analysis.NormalizeSales(tbl, analysis.DefaultColumns().Sales)
	require.NoError(t, err)

	assert.False(t, h.HasPrice)
	assert.False(t, h.HasCustomer)
	require.Len(t, h.Aggregates, 1)
	assert.Equal(t, 10.0, h.Aggregates[0].Quantity)
	assert.Equal(t, 10.0, h.Aggregates[0].Revenue)
	assert.True(t, h.Quality.Clean())
}

func TestNormalizeSalesCustomColumns(t *testing.T) {
	cols := analysis.DefaultColumns().Sales
	cols.Product = "Item"
	cols.Date = "Sold On"
	cols.Quantity = "Units"
	cols.Price = ""

	tbl := table.Table{
		Columns: []string{"Units", "Item", "Sold On", "PRECIO_DESCUENTO"},
		Rows:    [][]string{{"2", "X1", "01/05/2025", "9"}},
	}
	h, err := analysis.NormalizeSales(tbl, cols)
	require.NoError(t, err)
	assert.False(t, h.HasPrice)
	assert.Equal(t, "X1", h.Aggregates[0].Entity)
	assert.Equal(t, 2.0, h.Aggregates[0].Revenue)
}

func TestNormalizeSalesPivoted(t *testing.T) {
	tbl := table.Table{
		Columns: []string{"COD_PROD", "Descripcion", "Sep-24", "ene-25", "feb-25"},
		Rows: [][]string{
			{"P1", "Tornillo", "4", "10", ""},
			{"P1", "Tornillo", "1", "x", "2"},
			{"P2", "Tuerca", "0", "5", "6"},
		},
	}
	h, err := analysis.NormalizeSales(tbl, analysis.DefaultColumns().Sales)
	require.NoError(t, err)

	assert.Equal(t, analysis.ShapePivoted, h.Shape)
	assert.Empty(t, h.Transactions)
	assert.Equal(t, 1, h.Quality.CoercedQuantity)
	assert.Equal(t, []domain.MonthlyAggregate{
		{Entity: "P1", Month: date(2024, time.September, 1), Quantity: 5, Revenue: 5},
		{Entity: "P1", Month: date(2025, time.January, 1), Quantity: 10, Revenue: 10},
		{Entity: "P1", Month: date(2025, time.February, 1), Quantity: 2, Revenue: 2},
		{Entity: "P2", Month: date(2024, time.September, 1), Quantity: 0, Revenue: 0},
		{Entity: "P2", Month: date(2025, time.January, 1), Quantity: 5, Revenue: 5},
		{Entity: "P2", Month: date(2025, time.February, 1), Quantity: 6, Revenue: 6},
	}, h.Aggregates)
}

func TestNormalizeSalesErrors(t *testing.T) {
	tests := []struct {
		name   string
		tbl    table.Table
		fields []string
	}{
		{
			name:   "neither shape",
			tbl:    table.Table{Columns: []string{"foo", "bar"}, Rows: [][]string{{"1", "2"}}},
			fields: []string{"COD_PROD", "Fecha", "Cantidad"},
		},
		{
			name: "all dates unparseable",
			tbl: table.Table{
				Columns: []string{"COD_PROD", "Fecha", "Cantidad"},
				Rows:    [][]string{{"P1", "yesterday", "1"}, {"P2", "", "1"}},
			},
			fields: []string{"Fecha"},
		},
		{
			name:   "bad month label",
			tbl:    table.Table{Columns: []string{"COD_PROD", "ene-2x"}, Rows: [][]string{{"P1", "1"}}},
			fields: []string{"ene-2x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := analysis.NormalizeSales(tt.tbl, analysis.DefaultColumns().Sales)
			var dfe *analysis.DataFormatError
			require.True(t, errors.As(err, &dfe), "got %v", err)
			assert.Equal(t, "sales", dfe.Dataset)
			assert.Equal(t, tt.fields, dfe.Fields)
		})
	}
}

func TestNormalizeInventory(t *testing.T) {
	tbl := table.Table{
		Columns: []string{"COD_PROD", "DESCRIPCION", "SALDO_ACTUAL", "COSTO_PROMEDIO"},
		Rows: [][]string{
			{"P1", "Tornillo", "12", "1.5"},
			{"P2", "Tuerca", "n/a", "2"},
			{"P1", "Duplicado", "99", "9"},
			{"", "Sin codigo", "1", "1"},
		},
	}
	s, err := analysis.NormalizeInventory(tbl, analysis.DefaultColumns().Inventory)
	require.NoError(t, err)

	assert.True(t, s.HasCost)
	assert.Len(t, s.Items, 2)
	item, ok := s.Lookup("P1")
	require.True(t, ok)
	assert.Equal(t, domain.InventoryItem{Code: "P1", Description: "Tornillo", UnitCost: 1.5, Balance: 12}, item)
	_, ok = s.Lookup("P9")
	assert.False(t, ok)

	assert.Equal(t, analysis.QualityReport{
		Rows:               4,
		DroppedMissingID:   1,
		CoercedBalance:     1,
		DuplicateInventory: 1,
	}, s.Quality)
}

func TestNormalizeInventoryMissingColumns(t *testing.T) {
	tbl := table.Table{Columns: []string{"COD_PROD", "COSTO PROMEDIO"}}
	_, err := analysis.NormalizeInventory(tbl, analysis.DefaultColumns().Inventory)

	var dfe *analysis.DataFormatError
	require.True(t, errors.As(err, &dfe))
	assert.Equal(t, []string{"Inventario.DESCRIPCION", "SALDO ACTUAL"}, dfe.Fields)
	assert.Contains(t, err.Error(), "inventory")
}

func TestParseDayFirst(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"31/01/2025", date(2025, time.January, 31)},
		{"1/2/2025", date(2025, time.February, 1)},
		{"1-2-25", date(2025, time.February, 1)},
		{"31.01.2025 10:30", time.Date(2025, time.January, 31, 10, 30, 0, 0, time.UTC)},
		{"05/03/2025 08:15:30", time.Date(2025, time.March, 5, 8, 15, 30, 0, time.UTC)},
		{"2025-01-31", date(2025, time.January, 31)},
		{"2025-01-31 12:00:00", time.Date(2025, time.January, 31, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := analysis.ParseDayFirst(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
		})
	}

	serial, err := analysis.ParseDayFirst("45658")
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.January, 1), analysis.MonthStart(serial))
	assert.Equal(t, 1, serial.Day())

	for _, bad := range []string{"", "13/13/2025", "soon"} {
		_, err := analysis.ParseDayFirst(bad)
		assert.Error(t, err, bad)
	}
}

func TestMonthColumns(t *testing.T) {
	for _, name := range []string{"ene-25", " Sep-24", "DIC-2024", "aug-23"} {
		assert.True(t, analysis.IsMonthColumn(name), name)
	}
	for _, name := range []string{"enero", "COD_PROD", "sept-24", "x-25", "-25"} {
		assert.False(t, analysis.IsMonthColumn(name), name)
	}

	tests := map[string]time.Time{
		"ene-25":    date(2025, time.January, 1),
		"Sep-2024":  date(2024, time.September, 1),
		"dic-24":    date(2024, time.December, 1),
		"agosto-23": date(2023, time.August, 1),
		"abr-25":    date(2025, time.April, 1),
	}
	for label, want := range tests {
		got, err := analysis.ParseMonthLabel(label)
		require.NoError(t, err, label)
		assert.Equal(t, want, got, label)
	}

	for _, bad := range []string{"ene", "xyz-25", "ene-2x", "ene-202"} {
		_, err := analysis.ParseMonthLabel(bad)
		assert.Error(t, err, bad)
	}
}

func TestFoldName(t *testing.T) {
	assert.Equal(t, "Jose Pena", analysis.FoldName("  José Peña "))
	assert.Equal(t, "ACME", analysis.FoldName("ACME"))
	assert.Equal(t, "", analysis.FoldName("   "))
}

func TestNormalizeSalesFromStyledWorkbook(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"COD_PROD", "Fecha", "Cantidad"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"P1", date(2025, time.March, 4), 1234.5}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"P1", date(2025, time.March, 20), 10}))
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	numberStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B3", dateStyle))
	require.NoError(t, f.SetCellStyle("Sheet1", "C2", "C3", numberStyle))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	tbl, err := table.ReadXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	h, err := analysis.NormalizeSales(tbl, analysis.DefaultColumns().Sales)
	require.NoError(t, err)

	assert.True(t, h.Quality.Clean(), "%+v", h.Quality)
	require.Len(t, h.Aggregates, 1)
	assert.Equal(t, date(2025, time.March, 1), h.Aggregates[0].Month)
	assert.Equal(t, 1244.5, h.Aggregates[0].Quantity)
}
