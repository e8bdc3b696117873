package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/compras/backend-go/internal/analysis"
	"github.com/andresuchdata/compras/backend-go/internal/batch"
	"github.com/andresuchdata/compras/backend-go/internal/cache"
	"github.com/andresuchdata/compras/backend-go/internal/config"
	"github.com/andresuchdata/compras/backend-go/internal/drive"
	"github.com/andresuchdata/compras/backend-go/internal/report"
	"github.com/andresuchdata/compras/backend-go/internal/service"
	"github.com/andresuchdata/compras/backend-go/internal/storage"
	"github.com/andresuchdata/compras/backend-go/pkg/logger"
)

// runner carries the wiring shared by every command.
type runner struct {
	cfg   *config.Config
	svc   *service.AnalysisService
	cache cache.ResultCache
	store storage.ObjectStorage
	now   func() time.Time
}

func (r *runner) init(c *cli.Context) error {
	if r.now == nil {
		r.now = time.Now
	}
	if c.Bool("verbose") {
		logger.SetLevel("debug")
	}

	resultCache, err := cache.NewResultCache(c.Context, r.cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	r.cache = resultCache
	r.svc = service.NewAnalysisService(r.cfg.Columns, resultCache, r.cfg.App.MaxConcurrentRuns)

	if r.cfg.Storage.Endpoint != "" {
		store, err := storage.NewMinioClient(storage.Config{
			Endpoint:  r.cfg.Storage.Endpoint,
			AccessKey: r.cfg.Storage.AccessKey,
			SecretKey: r.cfg.Storage.SecretKey,
			Bucket:    r.cfg.Storage.Bucket,
			Region:    r.cfg.Storage.Region,
			UseSSL:    r.cfg.Storage.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize object storage: %w", err)
		}
		r.store = store
		r.svc.WithStorage(store, r.cfg.Storage.ReportPrefix)
	}
	return nil
}

// params builds the run parameters from the global flags.
func (r *runner) params(c *cli.Context) (analysis.Params, error) {
	a := config.AnalysisConfig{
		LeadTimeDays:       c.Float64("lead-time-days"),
		CoverageMonths:     c.Float64("coverage-months"),
		SellingDaysPerWeek: c.Float64("selling-days-per-week"),
		ServiceZ:           c.Float64("service-z"),
		ABCThresholdA:      c.Float64("abc-a"),
		ABCThresholdB:      c.Float64("abc-b"),
		XYZThresholdX:      c.Float64("xyz-x"),
		XYZThresholdY:      c.Float64("xyz-y"),
		DeviationBasis:     strings.ToLower(c.String("deviation-basis")),
		SafetyStockScaling: strings.ToLower(c.String("safety-stock-scaling")),
		ZeroSales:          strings.ToLower(c.String("zero-sales")),
		ValueBasis:         strings.ToLower(c.String("value-basis")),
		AlertMinMonths:     c.Int("alert-min-months"),
		AlertCoverFactor:   c.Float64("alert-cover-factor"),
	}

	asOf := analysis.DayStart(r.now())
	if raw := c.String("as-of"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return analysis.Params{}, fmt.Errorf("invalid --as-of %q, want YYYY-MM-DD", raw)
		}
		asOf = t
	}
	return a.Params(asOf)
}

// inputs loads sales and, unless optional and absent, inventory from the
// configured source.
func (r *runner) inputs(c *cli.Context, needInventory bool) (service.Inputs, error) {
	switch source := c.String("source"); source {
	case "local", "s3":
		salesName, inventoryName := c.String("sales"), c.String("inventory")
		if salesName == "" {
			return service.Inputs{}, errors.New("--sales is required")
		}
		if inventoryName == "" && needInventory {
			return service.Inputs{}, errors.New("--inventory is required")
		}
		open := service.FileSource
		if source == "s3" {
			if r.store == nil {
				return service.Inputs{}, service.ErrNoStorage
			}
			open = func(key string) service.Source { return service.ObjectSource(r.store, key) }
		}
		var inventory service.Source
		if inventoryName != "" {
			inventory = open(inventoryName)
		}
		return service.LoadInputs(c.Context, open(salesName), inventory)

	case "drive":
		credentials, err := r.cfg.Drive.DriveCredentials()
		if err != nil {
			return service.Inputs{}, fmt.Errorf("failed to read Drive credentials: %w", err)
		}
		if credentials == "" {
			return service.Inputs{}, errors.New("drive credentials are not configured")
		}
		files, err := drive.NewService(c.Context, credentials)
		if err != nil {
			return service.Inputs{}, err
		}
		sales, inventory, err := drive.NewDownloader(files).LoadInputs(c.Context, drive.InputOptions{
			FolderID:      c.String("drive-folder-id"),
			FolderPath:    c.String("drive-folder-path"),
			SalesName:     c.String("sales"),
			InventoryName: c.String("inventory"),
		})
		if err != nil {
			return service.Inputs{}, err
		}
		return service.Inputs{Sales: sales, Inventory: inventory}, nil

	default:
		return service.Inputs{}, fmt.Errorf("unknown --source %q (want local, s3 or drive)", source)
	}
}

func (r *runner) prepare(c *cli.Context, needInventory bool) (analysis.Params, service.Inputs, error) {
	p, err := r.params(c)
	if err != nil {
		return analysis.Params{}, service.Inputs{}, err
	}
	in, err := r.inputs(c, needInventory)
	if err != nil {
		return analysis.Params{}, service.Inputs{}, err
	}
	return p, in, nil
}

func (r *runner) products(c *cli.Context) error {
	filter, err := analysis.ParseProductFilter(c.String("status"), c.String("demand"), c.String("abc"))
	if err != nil {
		return err
	}
	p, in, err := r.prepare(c, true)
	if err != nil {
		return err
	}
	result, err := r.svc.Products(c.Context, in, p)
	if err != nil {
		return err
	}
	result = result.Filter(filter)
	return r.emit(c, result, report.ProductSheet(result), report.QualitySheet(result.Quality), report.ParameterSheet(p))
}

func (r *runner) customers(c *cli.Context) error {
	p, in, err := r.prepare(c, false)
	if err != nil {
		return err
	}
	result, err := r.svc.Customers(c.Context, in, p)
	if err != nil {
		return err
	}
	return r.emit(c, result, report.CustomerSheet(result), report.ParameterSheet(p))
}

func (r *runner) customerProducts(c *cli.Context) error {
	p, in, err := r.prepare(c, false)
	if err != nil {
		return err
	}
	result, err := r.svc.CustomerProducts(c.Context, in, c.String("customer"), p)
	if err != nil {
		return err
	}
	if len(result.Rows) == 0 {
		log.Warn().Str("customer", result.Customer).Msg("no purchases in the trailing 12 months")
	}
	src := report.Sources{
		HasSupplier:  r.cfg.Columns.Sales.Resolve(in.Sales).Supplier >= 0,
		HasInventory: in.HasInventory(),
		HasAnalysis:  in.HasInventory(),
	}
	return r.emit(c, result, report.CustomerProductSheet(result, src), report.ParameterSheet(p))
}

func (r *runner) customerTrend(c *cli.Context) error {
	p, in, err := r.prepare(c, false)
	if err != nil {
		return err
	}
	customer := c.String("customer")
	points, err := r.svc.CustomerTrend(c.Context, in, customer, p)
	if err != nil {
		return err
	}
	return r.emit(c, points, report.TrendSheet(analysis.FoldName(customer), points))
}

func (r *runner) report(c *cli.Context) error {
	p, in, err := r.prepare(c, true)
	if err != nil {
		return err
	}
	bundle, err := r.svc.Report(c.Context, in, p, c.StringSlice("customer"))
	if err != nil {
		return err
	}

	if c.Bool("publish") {
		key, err := r.svc.Publish(c.Context, fmt.Sprintf("analisis_%s.xlsx", p.AsOf.Format("20060102")), bundle)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, key)
		return nil
	}

	out := c.String("output")
	if out == "-" {
		return errors.New("report needs --output (the workbook is binary)")
	}
	return writeFile(out, func(w io.Writer) error { return report.WriteXLSX(w, bundle.Sheets()...) })
}

func (r *runner) batch(c *cli.Context) error {
	p, err := r.params(c)
	if err != nil {
		return err
	}

	var jobs []batch.Job
	switch {
	case c.String("prefix") != "":
		if r.store == nil {
			return service.ErrNoStorage
		}
		jobs, err = batch.DiscoverObjects(c.Context, r.store, c.String("prefix"))
	case c.String("dir") != "":
		jobs, err = batch.DiscoverDir(c.String("dir"))
	default:
		return errors.New("batch needs --dir or --prefix")
	}
	if err != nil {
		return err
	}

	var sink batch.Sink = batch.DirSink{Dir: c.String("output-dir")}
	if c.Bool("publish") {
		sink = r.svc
	}
	cfg := batch.DefaultConfig()
	cfg.WorkerCount = c.Int("workers")

	results, err := batch.NewWorker(r.svc, sink, cfg).Run(c.Context, jobs, p)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	summary := batch.Summarize(results)
	if err := enc.Encode(map[string]any{"results": results, "summary": summary}); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", summary.Failed, len(results))
	}
	return nil
}

func (r *runner) cacheClear(c *cli.Context) error {
	n, err := r.cache.InvalidateAll(c.Context)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	log.Info().Int64("keys", n).Msg("Analysis cache cleared")
	_, err = fmt.Fprintf(c.App.Writer, "removed %d cached results\n", n)
	return err
}

// emit writes value as JSON, or the first sheet as CSV, or all sheets as XLSX.
func (r *runner) emit(c *cli.Context, value any, sheets ...report.Sheet) error {
	out := c.String("output")
	format := strings.ToLower(c.String("format"))
	switch format {
	case "json", "csv":
	case "xlsx":
		if out == "-" {
			return errors.New("xlsx output needs --output")
		}
	default:
		return fmt.Errorf("unknown --format %q (want json, csv or xlsx)", format)
	}

	write := func(w io.Writer) error {
		switch format {
		case "json":
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(value)
		case "csv":
			return report.WriteCSV(w, sheets[0])
		default:
			return report.WriteXLSX(w, sheets...)
		}
	}

	if out == "-" {
		return write(c.App.Writer)
	}
	return writeFile(out, write)
}

// writeFile leaves no file behind when write or close fails.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	log.Info().Str("path", path).Msg("output written")
	return nil
}
