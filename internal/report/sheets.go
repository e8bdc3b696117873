package report

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/compras/backend-go/internal/analysis"
	"github.com/andresuchdata/compras/backend-go/internal/domain"
)

// Sheet names as the buyers know them.
const (
	SheetProducts   = "Analisis"
	SheetCustomers  = "Clientes"
	SheetQuality    = "Calidad"
	SheetParameters = "Parametros"
)

const maxSheetName = 31

// ProductColumns is the full product schema; labels head the 12 month columns.
func ProductColumns(labels []string) []Column[analysis.ProductRow] {
	cols := []Column[analysis.ProductRow]{
		{Header: "RANKING", Format: FormatInt, Width: 9, Value: func(r analysis.ProductRow) any { return r.Rank }},
		{Header: "COD_PROD", Format: FormatText, Width: 14, Value: func(r analysis.ProductRow) any { return r.Code }},
		{Header: "DESCRIPCION", Format: FormatText, Width: 40, Value: func(r analysis.ProductRow) any { return r.Description }},
		{Header: "COSTO_PROMEDIO", Format: FormatNumber, Width: 14, Include: withCost, Value: func(r analysis.ProductRow) any { return r.UnitCost }},
		{Header: "SALDO_ACTUAL", Format: FormatNumber, Width: 13, Value: func(r analysis.ProductRow) any { return r.Balance }},
	}
	for i, label := range labels {
		i := i
		cols = append(cols, Column[analysis.ProductRow]{
			Header: label,
			Format: FormatNumber,
			Width:  9,
			Value: func(r analysis.ProductRow) any {
				if i < len(r.Months) {
					return r.Months[i].Quantity
				}
				return nil
			},
		})
	}
	return append(cols,
		Column[analysis.ProductRow]{Header: "TOTAL_VENTAS_12M", Format: FormatNumber, Width: 12, Value: func(r analysis.ProductRow) any { return r.Total12M }},
		Column[analysis.ProductRow]{Header: "PROM_12M", Format: FormatNumber, Width: 11, Value: func(r analysis.ProductRow) any { return r.Mean12M }},
		Column[analysis.ProductRow]{Header: "INGRESO_12M", Format: FormatNumber, Width: 13, Include: withPrice, Value: func(r analysis.ProductRow) any { return r.Revenue12M }},
		Column[analysis.ProductRow]{Header: "VALOR_VENTAS_12M", Format: FormatNumber, Width: 14, Include: withCost, Value: func(r analysis.ProductRow) any { return r.Value12M }},
		Column[analysis.ProductRow]{Header: "DesviacionEstandar", Format: FormatNumber, Width: 12, Value: func(r analysis.ProductRow) any { return r.StdDev }},
		Column[analysis.ProductRow]{Header: "CV", Format: FormatPercent, Width: 12, Value: func(r analysis.ProductRow) any { return r.CV }},
		Column[analysis.ProductRow]{Header: "ValorConsumo", Format: FormatNumber, Width: 14, Value: func(r analysis.ProductRow) any { return r.ABCValue }},
		Column[analysis.ProductRow]{Header: "Participacion", Format: FormatPercent, Width: 12, Value: func(r analysis.ProductRow) any { return r.Share }},
		Column[analysis.ProductRow]{Header: "ParticipacionAcum", Format: FormatPercent, Width: 12, Value: func(r analysis.ProductRow) any { return r.CumulativeShare }},
		Column[analysis.ProductRow]{Header: "ABC", Format: FormatText, Width: 6, Value: func(r analysis.ProductRow) any { return string(r.ABC) }},
		Column[analysis.ProductRow]{Header: "XYZ", Format: FormatText, Width: 6, Value: func(r analysis.ProductRow) any { return string(r.XYZ) }},
		Column[analysis.ProductRow]{Header: "ABC_XYZ", Format: FormatText, Width: 8, Value: func(r analysis.ProductRow) any { return r.ABCXYZ }},
		Column[analysis.ProductRow]{Header: "MESES_CON_VENTA_12M", Format: FormatInt, Width: 10, Value: func(r analysis.ProductRow) any { return r.ActiveMonths }},
		Column[analysis.ProductRow]{Header: "DEMANDA_NIVEL", Format: FormatText, Width: 11, Value: func(r analysis.ProductRow) any { return string(r.DemandLevel) }},
		Column[analysis.ProductRow]{Header: "STOCK_SEGURIDAD", Format: FormatNumber, Width: 11, Value: func(r analysis.ProductRow) any { return r.SafetyStock }},
		Column[analysis.ProductRow]{Header: "INV_MIN", Format: FormatNumber, Width: 10, Value: func(r analysis.ProductRow) any { return r.Minimum }},
		Column[analysis.ProductRow]{Header: "INV_MAX", Format: FormatNumber, Width: 10, Value: func(r analysis.ProductRow) any { return r.Maximum }},
		Column[analysis.ProductRow]{Header: "INV_OBJETIVO", Format: FormatNumber, Width: 12, Value: func(r analysis.ProductRow) any { return r.Target }},
		Column[analysis.ProductRow]{Header: "ESTADO", Format: FormatText, Width: 11, Value: func(r analysis.ProductRow) any { return string(r.Status) }},
		Column[analysis.ProductRow]{Header: "CANT_A_COMPRAR", Format: FormatNumber, Width: 13, Value: func(r analysis.ProductRow) any { return r.Suggested }},
		Column[analysis.ProductRow]{Header: "ESTADO_INVENTARIO", Format: FormatText, Width: 22, Value: func(r analysis.ProductRow) any { return string(r.InventoryState) }},
		Column[analysis.ProductRow]{Header: "EXCESO_INVENTARIO", Format: FormatNumber, Width: 12, Value: func(r analysis.ProductRow) any { return r.Excess }},
		Column[analysis.ProductRow]{Header: "COBERTURA_MESES", Format: FormatNumber, Width: 12, Value: func(r analysis.ProductRow) any {
			if r.CoverageMonths == nil {
				return nil
			}
			return *r.CoverageMonths
		}},
	)
}

// CustomerColumns is the customer ranking schema.
func CustomerColumns() []Column[analysis.CustomerRow] {
	return []Column[analysis.CustomerRow]{
		{Header: "RANKING", Format: FormatInt, Width: 9, Value: func(r analysis.CustomerRow) any { return r.Rank }},
		{Header: "NOM_CLIENTE", Format: FormatText, Width: 36, Value: func(r analysis.CustomerRow) any { return r.Customer }},
		{Header: "VALOR_TOTAL_12M", Format: FormatNumber, Width: 15, Value: func(r analysis.CustomerRow) any { return r.Revenue12M }},
		{Header: "CANTIDAD_TOTAL_12M", Format: FormatNumber, Width: 13, Value: func(r analysis.CustomerRow) any { return r.Quantity12M }},
		{Header: "PARTICIPACION", Format: FormatPercent, Width: 12, Value: func(r analysis.CustomerRow) any { return r.Share }},
		{Header: "PARTICIPACION_ACUM", Format: FormatPercent, Width: 12, Value: func(r analysis.CustomerRow) any { return r.CumulativeShare }},
		{Header: "ABC_CLIENTE", Format: FormatText, Width: 8, Value: func(r analysis.CustomerRow) any { return string(r.ABC) }},
		{Header: "PRODUCTOS_DISTINTOS", Format: FormatInt, Width: 11, Value: func(r analysis.CustomerRow) any { return r.DistinctProducts }},
		{Header: "MESES_ACTIVOS", Format: FormatInt, Width: 9, Value: func(r analysis.CustomerRow) any { return r.ActiveMonths }},
		{Header: "TICKET_PROMEDIO", Format: FormatNumber, Width: 13, Value: func(r analysis.CustomerRow) any { return r.AverageTicket }},
		{Header: "DIAS_DESDE_ULTIMA_COMPRA", Format: FormatInt, Width: 12, Value: func(r analysis.CustomerRow) any { return r.DaysSinceLastPurchase }},
		{Header: "PRIMERA_COMPRA", Format: FormatDate, Width: 12, Value: func(r analysis.CustomerRow) any { return r.FirstPurchase }},
		{Header: "ULTIMA_COMPRA", Format: FormatDate, Width: 12, Value: func(r analysis.CustomerRow) any { return r.LastPurchase }},
	}
}

// CustomerProductColumns is the drill-down schema. Join columns are blank on
// rows whose join found nothing.
func CustomerProductColumns() []Column[analysis.CustomerProductRow] {
	inv := func(get func(*analysis.InventoryJoin) any) func(analysis.CustomerProductRow) any {
		return func(r analysis.CustomerProductRow) any {
			if r.Inventory == nil {
				return nil
			}
			return get(r.Inventory)
		}
	}
	prod := func(get func(*analysis.ProductJoin) any) func(analysis.CustomerProductRow) any {
		return func(r analysis.CustomerProductRow) any {
			if r.Analysis == nil {
				return nil
			}
			return get(r.Analysis)
		}
	}

	return []Column[analysis.CustomerProductRow]{
		{Header: "RANKING", Format: FormatInt, Width: 9, Value: func(r analysis.CustomerProductRow) any { return r.Rank }},
		{Header: "COD_PROD", Format: FormatText, Width: 14, Value: func(r analysis.CustomerProductRow) any { return r.Product }},
		{Header: "DESCRIPCION", Format: FormatText, Width: 40, Include: withInventory, Value: inv(func(j *analysis.InventoryJoin) any { return j.Description })},
		{Header: "DES_PROVEEDOR", Format: FormatText, Width: 24, Include: withSupplier, Value: func(r analysis.CustomerProductRow) any { return r.Supplier }},
		{Header: "CANTIDAD_12M", Format: FormatNumber, Width: 12, Value: func(r analysis.CustomerProductRow) any { return r.Quantity12M }},
		{Header: "VALOR_12M", Format: FormatNumber, Width: 13, Value: func(r analysis.CustomerProductRow) any { return r.Revenue12M }},
		{Header: "PARTICIPACION_CLIENTE", Format: FormatPercent, Width: 12, Value: func(r analysis.CustomerProductRow) any { return r.CustomerShare }},
		{Header: "MESES_CON_COMPRA", Format: FormatInt, Width: 10, Value: func(r analysis.CustomerProductRow) any { return r.ActiveMonths }},
		{Header: "PROMEDIO_MENSUAL", Format: FormatNumber, Width: 11, Value: func(r analysis.CustomerProductRow) any { return r.MonthlyAverage }},
		{Header: "ABC", Format: FormatText, Width: 6, Include: withAnalysis, Value: prod(func(j *analysis.ProductJoin) any { return string(j.ABC) })},
		{Header: "XYZ", Format: FormatText, Width: 6, Include: withAnalysis, Value: prod(func(j *analysis.ProductJoin) any { return string(j.XYZ) })},
		{Header: "ABC_XYZ", Format: FormatText, Width: 8, Include: withAnalysis, Value: prod(func(j *analysis.ProductJoin) any { return j.ABCXYZ })},
		{Header: "SALDO_ACTUAL", Format: FormatNumber, Width: 13, Include: withInventory, Value: inv(func(j *analysis.InventoryJoin) any { return j.Balance })},
		{Header: "ESTADO", Format: FormatText, Width: 11, Include: withAnalysis, Value: prod(func(j *analysis.ProductJoin) any { return string(j.Status) })},
		{Header: "INV_MIN", Format: FormatNumber, Width: 10, Include: withAnalysis, Value: prod(func(j *analysis.ProductJoin) any { return j.Minimum })},
		{Header: "INV_OBJETIVO", Format: FormatNumber, Width: 12, Include: withAnalysis, Value: prod(func(j *analysis.ProductJoin) any { return j.Target })},
		{Header: "CANT_A_COMPRAR", Format: FormatNumber, Width: 13, Include: withAnalysis, Value: prod(func(j *analysis.ProductJoin) any { return j.Suggested })},
		{Header: "PROM_12M", Format: FormatNumber, Width: 11, Include: withAnalysis, Value: prod(func(j *analysis.ProductJoin) any { return j.Mean12M })},
	}
}

// ProductSheet projects the product analysis.
func ProductSheet(r *analysis.ProductReport) Sheet {
	src := Sources{HasPrice: r.HasPrice, HasCost: r.HasCost}
	return Project(SheetProducts, ProductColumns(r.MonthLabels), r.Rows, src)
}

// CustomerSheet projects the customer ranking.
func CustomerSheet(r *analysis.CustomerReport) Sheet {
	return Project(SheetCustomers, CustomerColumns(), r.Rows, Sources{})
}

// CustomerProductSheet projects one customer's drill-down, followed by a
// column flagging alert membership.
func CustomerProductSheet(r *analysis.CustomerProductReport, src Sources) Sheet {
	cols := CustomerProductColumns()
	critical := alertSet(r.Alerts.Critical)
	atRisk := alertSet(r.Alerts.AtRisk)
	cols = append(cols, Column[analysis.CustomerProductRow]{
		Header: "ALERTA",
		Format: FormatText,
		Width:  18,
		Value: func(row analysis.CustomerProductRow) any {
			var flags []string
			if critical[row.Product+"\x00"+row.Supplier] {
				flags = append(flags, "CRITICO")
			}
			if atRisk[row.Product+"\x00"+row.Supplier] {
				flags = append(flags, "EN RIESGO")
			}
			return strings.Join(flags, ", ")
		},
	})
	return Project(customerSheetName(r.Customer), cols, r.Rows, src)
}

func alertSet(rows []analysis.CustomerProductRow) map[string]bool {
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		out[r.Product+"\x00"+r.Supplier] = true
	}
	return out
}

var sheetNameSanitizer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")

func customerSheetName(customer string) string {
	name := "Cliente " + sheetNameSanitizer.Replace(customer)
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	// A sheet name may not start or end with an apostrophe.
	return strings.Trim(strings.TrimSpace(name), "' ")
}

// TrendSheet projects one customer's monthly series.
func TrendSheet(customer string, points []domain.TrendPoint) Sheet {
	cols := []Column[domain.TrendPoint]{
		{Header: "MES", Format: FormatText, Width: 8, Value: func(p domain.TrendPoint) any { return p.Label }},
		{Header: "VALOR", Format: FormatNumber, Width: 13, Value: func(p domain.TrendPoint) any { return p.Revenue }},
		{Header: "CANTIDAD", Format: FormatNumber, Width: 12, Value: func(p domain.TrendPoint) any { return p.Quantity }},
	}
	return Project(customerSheetName(customer), cols, points, Sources{})
}

// QualitySheet lists the row-level repairs made while reading the inputs.
func QualitySheet(q analysis.QualityReport) Sheet {
	rows := [][]any{
		{"Filas leidas", q.Rows},
		{"Filas sin codigo (descartadas)", q.DroppedMissingID},
		{"Fechas invalidas (descartadas)", q.DroppedBadDate},
		{"Cantidades no numericas (0)", q.CoercedQuantity},
		{"Precios no numericos (0)", q.CoercedPrice},
		{"Saldos no numericos (0)", q.CoercedBalance},
		{"Costos no numericos (0)", q.CoercedCost},
		{"Codigos duplicados en inventario", q.DuplicateInventory},
		{"Productos vendidos sin inventario", q.UnmatchedProducts},
		{"Productos sin ventas en 12 meses", q.ExcludedWithoutSales},
	}
	return Sheet{
		Name:    SheetQuality,
		Columns: []ColumnSpec{{Header: "CONCEPTO", Format: FormatText, Width: 36}, {Header: "FILAS", Format: FormatInt, Width: 10}},
		Rows:    rows,
	}
}

// ParameterSheet records the parameters a report was produced with.
func ParameterSheet(p analysis.Params) Sheet {
	rows := [][]any{
		{"FECHA_CORTE", p.AsOf.Format("2006-01-02")},
		{"LEAD_TIME_DIAS", p.LeadTimeDays},
		{"COBERTURA_MESES", p.CoverageMonths},
		{"VENTA_DIAS_SEMANA", p.SellingDaysPerWeek},
		{"DIAS_VENTA_X_MES", analysis.SellingDaysPerMonth(p.SellingDaysPerWeek)},
		{"Z", p.ServiceZ},
		{"ABC_UMBRAL_A", p.ABCThresholdA},
		{"ABC_UMBRAL_B", p.ABCThresholdB},
		{"XYZ_UMBRAL_X", p.XYZThresholdX},
		{"XYZ_UMBRAL_Y", p.XYZThresholdY},
		{"BASE_DESVIACION", string(p.DeviationBasis)},
		{"ESCALA_STOCK_SEGURIDAD", string(p.SafetyStockScaling)},
		{"PRODUCTOS_SIN_VENTA", string(p.ZeroSales)},
		{"BASE_VALOR_ABC", string(p.ValueBasis)},
		{"ALERTA_MESES_MIN", p.AlertMinMonths},
		{"ALERTA_FACTOR_COBERTURA", p.AlertCoverFactor},
	}
	return Sheet{
		Name:    SheetParameters,
		Columns: []ColumnSpec{{Header: "PARAMETRO", Format: FormatText, Width: 26}, {Header: "VALOR", Format: FormatText, Width: 14}},
		Rows:    rows,
	}
}

// Bundle is everything one report run produced.
type Bundle struct {
	Params     analysis.Params
	Products   *analysis.ProductReport
	Customers  *analysis.CustomerReport
	Drilldowns []*analysis.CustomerProductReport
	Sources    Sources
}

// Sheets assembles the workbook in display order. Nil parts are skipped.
func (b Bundle) Sheets() []Sheet {
	var sheets []Sheet
	quality := analysis.QualityReport{}
	if b.Products != nil {
		sheets = append(sheets, ProductSheet(b.Products))
		quality = b.Products.Quality
	}
	if b.Customers != nil {
		sheets = append(sheets, CustomerSheet(b.Customers))
	}
	// Workbook sheet names compare case-insensitively.
	used := make(map[string]bool)
	for _, d := range b.Drilldowns {
		if d == nil {
			continue
		}
		s := CustomerProductSheet(d, b.Sources)
		base := s.Name
		for n := 2; used[strings.ToLower(s.Name)]; n++ {
			suffix := fmt.Sprintf(" %d", n)
			s.Name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
		}
		used[strings.ToLower(s.Name)] = true
		sheets = append(sheets, s)
	}
	if b.Products != nil {
		sheets = append(sheets, QualitySheet(quality))
	}
	return append(sheets, ParameterSheet(b.Params))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
