// backend-go/internal/domain/models.go
package domain

import "time"

// Transaction is one normalized sale line.
type Transaction struct {
	Product  string    `json:"product"`
	Customer string    `json:"customer,omitempty"`
	Supplier string    `json:"supplier,omitempty"`
	Date     time.Time `json:"date"`
	Month    time.Time `json:"month"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Revenue  float64   `json:"revenue"`
}

// MonthlyAggregate is the summed quantity and revenue of one entity in one calendar month.
// Month is always the first day of the month, UTC.
type MonthlyAggregate struct {
	Entity   string    `json:"entity"`
	Month    time.Time `json:"month"`
	Quantity float64   `json:"quantity"`
	Revenue  float64   `json:"revenue"`
}

// InventoryItem is the on-hand snapshot of one product.
type InventoryItem struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	UnitCost    float64 `json:"unit_cost"`
	Balance     float64 `json:"balance"`
}

// MonthQuantity is one labelled slot of the trailing window.
type MonthQuantity struct {
	Month    time.Time `json:"month"`
	Label    string    `json:"label"`
	Quantity float64   `json:"quantity"`
}

// TrendPoint is one month of a customer's purchase history.
type TrendPoint struct {
	Month    time.Time `json:"month"`
	Label    string    `json:"label"`
	Revenue  float64   `json:"revenue"`
	Quantity float64   `json:"quantity"`
}
