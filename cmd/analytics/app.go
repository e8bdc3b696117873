package main

import (
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/compras/backend-go/internal/config"
)

func newApp(cfg *config.Config) *cli.App {
	r := &runner{cfg: cfg}

	return &cli.App{
		Name:  "analytics",
		Usage: "ABC/XYZ classification, reorder sizing and customer analysis over sales and inventory exports",
		Flags: append(append(inputFlags(cfg), paramFlags(cfg.Analysis)...), outputFlags()...),
		Before: r.init,
		Commands: []*cli.Command{
			{
				Name:  "products",
				Usage: "Classify products and size reorder quantities",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "Keep only rows with this stock status (OK, \"FALTA INV.\")"},
					&cli.StringFlag{Name: "demand", Usage: "Keep only rows with this demand level (ALTA, MEDIA, BAJA, \"SIN MOV.\")"},
					&cli.StringFlag{Name: "abc", Usage: "Keep only rows in this ABC class"},
				},
				Action: r.products,
			},
			{
				Name:   "customers",
				Usage:  "Rank customers by revenue over the trailing 12 months",
				Action: r.customers,
			},
			{
				Name:  "customer-products",
				Usage: "Break one customer's purchases down by product, with stock alerts",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "customer", Usage: "Customer name", Required: true},
				},
				Action: r.customerProducts,
			},
			{
				Name:  "customer-trend",
				Usage: "Monthly revenue and quantity of one customer",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "customer", Usage: "Customer name", Required: true},
				},
				Action: r.customerTrend,
			},
			{
				Name:  "report",
				Usage: "Write the full workbook (products, customers, drill-downs, quality, parameters)",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "customer", Usage: "Add a drill-down sheet for this customer (repeatable)"},
					&cli.BoolFlag{Name: "publish", Usage: "Upload the workbook to object storage instead of writing --output"},
				},
				Action: r.report,
			},
			{
				Name:  "batch",
				Usage: "Run one report per sales/inventory pair found in a directory or bucket prefix",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "Local directory with ventas_<name> and inventario_<name> files"},
					&cli.StringFlag{Name: "prefix", Usage: "Object storage prefix to scan instead of --dir"},
					&cli.StringFlag{Name: "output-dir", Usage: "Directory for the workbooks", Value: cfg.App.DataDir},
					&cli.BoolFlag{Name: "publish", Usage: "Upload workbooks to object storage instead of --output-dir"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent jobs", Value: cfg.App.BatchWorkers, EnvVars: []string{"APP_BATCH_WORKERS"}},
				},
				Action: r.batch,
			},
			{
				Name:   "cache-clear",
				Usage:  "Drop every cached analysis result",
				Action: r.cacheClear,
			},
		},
	}
}

func inputFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "source",
			Usage:   "Where inputs come from: local, s3 or drive",
			Value:   "local",
			EnvVars: []string{"INPUT_SOURCE"},
		},
		&cli.StringFlag{
			Name:    "sales",
			Usage:   "Sales export: a path, an object key, or a Drive file name",
			EnvVars: []string{"SALES_PATH"},
		},
		&cli.StringFlag{
			Name:    "inventory",
			Usage:   "Inventory export: a path, an object key, or a Drive file name",
			EnvVars: []string{"INVENTORY_PATH"},
		},
		&cli.StringFlag{
			Name:  "drive-folder-id",
			Usage: "Drive folder holding the exports",
			Value: cfg.Drive.FolderID,
		},
		&cli.StringFlag{
			Name:  "drive-folder-path",
			Usage: "Drive folder path, resolved from the root, used when no folder id is given",
		},
		&cli.StringFlag{
			Name:  "as-of",
			Usage: "Analysis date (YYYY-MM-DD); defaults to today",
		},
	}
}

func paramFlags(a config.AnalysisConfig) []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{Name: "lead-time-days", Usage: "Supplier lead time in days", Value: a.LeadTimeDays},
		&cli.Float64Flag{Name: "coverage-months", Usage: "Months of demand the target level covers", Value: a.CoverageMonths},
		&cli.Float64Flag{Name: "selling-days-per-week", Usage: "Selling days per week", Value: a.SellingDaysPerWeek},
		&cli.Float64Flag{Name: "service-z", Usage: "Service level z-score", Value: a.ServiceZ},
		&cli.Float64Flag{Name: "abc-a", Usage: "Cumulative share upper bound of class A", Value: a.ABCThresholdA},
		&cli.Float64Flag{Name: "abc-b", Usage: "Cumulative share upper bound of class B", Value: a.ABCThresholdB},
		&cli.Float64Flag{Name: "xyz-x", Usage: "CV upper bound of class X", Value: a.XYZThresholdX},
		&cli.Float64Flag{Name: "xyz-y", Usage: "CV upper bound of class Y", Value: a.XYZThresholdY},
		&cli.StringFlag{Name: "deviation-basis", Usage: "history or trailing", Value: a.DeviationBasis},
		&cli.StringFlag{Name: "safety-stock-scaling", Usage: "history, none or disabled", Value: a.SafetyStockScaling},
		&cli.StringFlag{Name: "zero-sales", Usage: "exclude or include products without trailing sales", Value: a.ZeroSales},
		&cli.StringFlag{Name: "value-basis", Usage: "auto, revenue, cost or quantity", Value: a.ValueBasis},
		&cli.IntFlag{Name: "alert-min-months", Usage: "Months bought before a product can raise an alert", Value: a.AlertMinMonths},
		&cli.Float64Flag{Name: "alert-cover-factor", Usage: "At-risk when balance < factor x monthly average", Value: a.AlertCoverFactor},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Usage: "Output format: json, csv or xlsx",
			Value: "json",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output file; - writes to stdout (json and csv only)",
			Value:   "-",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Log at debug level",
		},
	}
}
