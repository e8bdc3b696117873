package domain

import "strings"

// ABCClass segments entities by cumulative value share.
type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

// XYZClass segments entities by demand variability.
type XYZClass string

const (
	ClassX XYZClass = "X"
	ClassY XYZClass = "Y"
	ClassZ XYZClass = "Z"
)

// Combined returns the two-letter label, e.g. "AX".
func Combined(abc ABCClass, xyz XYZClass) string {
	return string(abc) + string(xyz)
}

// StockStatus is the understock flag shown next to every product.
type StockStatus string

const (
	StatusUnderstock StockStatus = "FALTA INV."
	StatusOK         StockStatus = "OK"
)

// DemandLevel buckets the number of trailing months with sales.
type DemandLevel string

const (
	DemandNone   DemandLevel = "SIN MOV."
	DemandLow    DemandLevel = "BAJA"
	DemandMedium DemandLevel = "MEDIA"
	DemandHigh   DemandLevel = "ALTA"
)

// InventoryState places the on-hand balance relative to minimum and target stock.
type InventoryState string

const (
	StateCritical        InventoryState = "Crítico (< Min)"
	StateBelowTarget     InventoryState = "Bajo Objetivo"
	StateNormal          InventoryState = "Normal"
	StateOverstock       InventoryState = "Sobrestock Moderado"
	StateOverstockSevere InventoryState = "Sobrestock Alto (>150%)"
)

var stockStatusCodes = map[string]StockStatus{
	"falta inv.": StatusUnderstock,
	"falta inv":  StatusUnderstock,
	"understock": StatusUnderstock,
	"ok":         StatusOK,
	"normal":     StatusOK,
}

// ParseStockStatus maps a label (case-insensitive) back to a StockStatus.
func ParseStockStatus(label string) (StockStatus, bool) {
	s, ok := stockStatusCodes[strings.ToLower(strings.TrimSpace(label))]
	return s, ok
}

var demandLevels = map[string]DemandLevel{
	"sin mov.": DemandNone,
	"baja":     DemandLow,
	"media":    DemandMedium,
	"alta":     DemandHigh,
}

// ParseDemandLevel maps a label (case-insensitive) back to a DemandLevel.
func ParseDemandLevel(label string) (DemandLevel, bool) {
	l, ok := demandLevels[strings.ToLower(strings.TrimSpace(label))]
	return l, ok
}
