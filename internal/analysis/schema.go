package analysis

import "github.com/andresuchdata/compras/backend-go/internal/table"

// SalesColumns names the sales export columns. Empty optional names disable the field.
type SalesColumns struct {
	Product  string `mapstructure:"product" json:"product"`
	Date     string `mapstructure:"date" json:"date"`
	Quantity string `mapstructure:"quantity" json:"quantity"`
	Price    string `mapstructure:"price" json:"price"`
	Customer string `mapstructure:"customer" json:"customer"`
	Supplier string `mapstructure:"supplier" json:"supplier"`
}

// InventoryColumns names the inventory export columns.
type InventoryColumns struct {
	Product     string `mapstructure:"product" json:"product"`
	Description string `mapstructure:"description" json:"description"`
	Balance     string `mapstructure:"balance" json:"balance"`
	Cost        string `mapstructure:"cost" json:"cost"`
}

// Columns is the column mapping for both inputs.
type Columns struct {
	Sales     SalesColumns     `mapstructure:"sales" json:"sales"`
	Inventory InventoryColumns `mapstructure:"inventory" json:"inventory"`
}

// DefaultColumns matches the ERP export the tool was first written against.
func DefaultColumns() Columns {
	return Columns{
		Sales: SalesColumns{
			Product:  "COD_PROD",
			Date:     "Fecha",
			Quantity: "Cantidad",
			Price:    "PRECIO_DESCUENTO",
			Customer: "NOM_CLIENTE",
			Supplier: "DES_PROVEEDOR",
		},
		Inventory: InventoryColumns{
			Product:     "COD_PROD",
			Description: "Inventario.DESCRIPCION",
			Balance:     "SALDO ACTUAL",
			Cost:        "COSTO PROMEDIO",
		},
	}
}

var (
	productAliases     = []string{"COD_PROD", "CODIGO", "SKU"}
	dateAliases        = []string{"Fecha", "FECHA_VENTA", "DATE"}
	quantityAliases    = []string{"Cantidad", "QTY", "QUANTITY"}
	priceAliases       = []string{"PRECIO_DESCUENTO", "PRECIO", "PRICE"}
	customerAliases    = []string{"NOM_CLIENTE", "CLIENTE", "CUSTOMER"}
	supplierAliases    = []string{"DES_PROVEEDOR", "PROVEEDOR", "SUPPLIER"}
	descriptionAliases = []string{"Inventario.DESCRIPCION", "DESCRIPCION", "DESCRIPTION", "NOMBRE"}
	balanceAliases     = []string{"SALDO ACTUAL", "SALDO", "STOCK", "EXISTENCIA"}
	costAliases        = []string{"COSTO PROMEDIO", "COSTO", "COST", "HPP"}
)

// SalesIndex holds resolved column positions; -1 means absent.
type SalesIndex struct {
	Product, Date, Quantity, Price, Customer, Supplier int
}

// Transactional reports whether the one-row-per-sale fields are all present.
func (i SalesIndex) Transactional() bool {
	return i.Product >= 0 && i.Date >= 0 && i.Quantity >= 0
}

// Resolve locates each configured column in t, falling back to known aliases.
// An optional field configured as "" stays absent.
func (c SalesColumns) Resolve(t table.Table) SalesIndex {
	return SalesIndex{
		Product:  lookup(t, c.Product, productAliases),
		Date:     lookup(t, c.Date, dateAliases),
		Quantity: lookup(t, c.Quantity, quantityAliases),
		Price:    optional(t, c.Price, priceAliases),
		Customer: optional(t, c.Customer, customerAliases),
		Supplier: optional(t, c.Supplier, supplierAliases),
	}
}

// InventoryIndex holds resolved inventory column positions; -1 means absent.
type InventoryIndex struct {
	Product, Description, Balance, Cost int
}

// Resolve locates each configured inventory column in t.
func (c InventoryColumns) Resolve(t table.Table) InventoryIndex {
	return InventoryIndex{
		Product:     lookup(t, c.Product, productAliases),
		Description: lookup(t, c.Description, descriptionAliases),
		Balance:     lookup(t, c.Balance, balanceAliases),
		Cost:        optional(t, c.Cost, costAliases),
	}
}

// lookup prefers the configured name, then aliases.
func lookup(t table.Table, name string, aliases []string) int {
	if name != "" {
		if idx := t.Index(name); idx >= 0 {
			return idx
		}
	}
	for _, alias := range aliases {
		if idx := t.Index(alias); idx >= 0 {
			return idx
		}
	}
	return -1
}

func optional(t table.Table, name string, aliases []string) int {
	if name == "" {
		return -1
	}
	return lookup(t, name, aliases)
}

func labelOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
