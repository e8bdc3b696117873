package analysis_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/compras/backend-go/internal/analysis"
	"github.com/andresuchdata/compras/backend-go/internal/table"
)

var asOf = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

var salesHeader = []string{"COD_PROD", "Fecha", "Cantidad", "PRECIO_DESCUENTO", "NOM_CLIENTE", "DES_PROVEEDOR"}

var inventoryHeader = []string{"COD_PROD", "Inventario.DESCRIPCION", "SALDO ACTUAL", "COSTO PROMEDIO"}

func sale(product, date string, qty, price float64, customer, supplier string) []string {
	return []string{product, date, fmt.Sprint(qty), fmt.Sprint(price), customer, supplier}
}

// monthlySales writes one sale per month on the 10th for the 12 months ending June 2025.
func monthlySales(product string, qtys [12]float64, price float64) [][]string {
	rows := make([][]string, 0, 12)
	for i, m := range analysis.TrailingMonths(asOf, 12) {
		rows = append(rows, sale(product, m.AddDate(0, 0, 9).Format("02/01/2006"), qtys[i], price, "", ""))
	}
	return rows
}

func constant(v float64) [12]float64 {
	var out [12]float64
	for i := range out {
		out[i] = v
	}
	return out
}

func salesHistory(t *testing.T, rows ...[]string) *analysis.SalesHistory {
	t.Helper()
	h, err := analysis.NormalizeSales(table.Table{Columns: salesHeader, Rows: rows}, analysis.DefaultColumns().Sales)
	require.NoError(t, err)
	return h
}

func inventorySnapshot(t *testing.T, rows ...[]string) *analysis.InventorySnapshot {
	t.Helper()
	s, err := analysis.NormalizeInventory(table.Table{Columns: inventoryHeader, Rows: rows}, analysis.DefaultColumns().Inventory)
	require.NoError(t, err)
	return s
}

func concat(groups ...[][]string) [][]string {
	var out [][]string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func tableOf(cols []string, rows ...[]string) table.Table {
	return table.Table{Columns: cols, Rows: rows}
}
