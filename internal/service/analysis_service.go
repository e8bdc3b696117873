package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/andresuchdata/compras/backend-go/internal/analysis"
	"github.com/andresuchdata/compras/backend-go/internal/cache"
	"github.com/andresuchdata/compras/backend-go/internal/domain"
	"github.com/andresuchdata/compras/backend-go/internal/report"
	"github.com/andresuchdata/compras/backend-go/internal/storage"
)

// ErrNoInventory is returned by operations that need an inventory table.
var ErrNoInventory = errors.New("inventory table is required")

// ErrNoStorage is returned by Publish when no object storage is configured.
var ErrNoStorage = errors.New("object storage is not configured")

const defaultMaxConcurrentRuns = 4

type AnalysisService struct {
	columns      analysis.Columns
	cache        cache.ResultCache
	sem          *semaphore.Weighted
	store        storage.ObjectStorage
	reportPrefix string
}

func NewAnalysisService(columns analysis.Columns, cacheImpl cache.ResultCache, maxConcurrentRuns int64) *AnalysisService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopResultCache()
	}
	if maxConcurrentRuns <= 0 {
		maxConcurrentRuns = defaultMaxConcurrentRuns
	}
	return &AnalysisService{
		columns: columns,
		cache:   cacheImpl,
		sem:     semaphore.NewWeighted(maxConcurrentRuns),
	}
}

// WithStorage enables Publish. Reports are written under prefix.
func (s *AnalysisService) WithStorage(store storage.ObjectStorage, prefix string) *AnalysisService {
	s.store = store
	s.reportPrefix = prefix
	return s
}

// Columns returns the column mapping the service normalizes with.
func (s *AnalysisService) Columns() analysis.Columns {
	return s.columns
}

// run holds the normalized inputs of one request.
type run struct {
	history   *analysis.SalesHistory
	inventory *analysis.InventorySnapshot
}

func (s *AnalysisService) normalize(in Inputs, needInventory bool) (*run, error) {
	history, err := analysis.NormalizeSales(in.Sales, s.columns.Sales)
	if err != nil {
		return nil, err
	}
	r := &run{history: history}
	if !in.HasInventory() {
		if needInventory {
			return nil, ErrNoInventory
		}
		return r, nil
	}
	if r.inventory, err = analysis.NormalizeInventory(in.Inventory, s.columns.Inventory); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *AnalysisService) acquire(ctx context.Context) (func(), error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire analysis slot: %w", err)
	}
	return func() { s.sem.Release(1) }, nil
}

// Products runs the product analysis.
func (s *AnalysisService) Products(ctx context.Context, in Inputs, p analysis.Params) (*analysis.ProductReport, error) {
	key, err := s.cacheKey(in, p)
	if err != nil {
		return nil, err
	}
	var cached analysis.ProductReport
	if s.cacheGet(ctx, cache.KindProducts, key, &cached) {
		return &cached, nil
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := s.normalize(in, true)
	if err != nil {
		return nil, err
	}
	result, err := analysis.AnalyzeProducts(r.history, r.inventory, p)
	if err != nil {
		return nil, err
	}
	logQuality(ctx, "products", result.Quality, len(result.Rows))

	s.cacheSet(ctx, cache.KindProducts, key, result)
	return result, nil
}

// Customers runs the customer aggregation. Inventory is not used.
func (s *AnalysisService) Customers(ctx context.Context, in Inputs, p analysis.Params) (*analysis.CustomerReport, error) {
	key, err := s.cacheKey(Inputs{Sales: in.Sales}, p)
	if err != nil {
		return nil, err
	}
	var cached analysis.CustomerReport
	if s.cacheGet(ctx, cache.KindCustomers, key, &cached) {
		return &cached, nil
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := s.normalize(Inputs{Sales: in.Sales}, false)
	if err != nil {
		return nil, err
	}
	result, err := analysis.AnalyzeCustomers(r.history, p)
	if err != nil {
		return nil, err
	}
	logQuality(ctx, "customers", result.Quality, len(result.Rows))

	s.cacheSet(ctx, cache.KindCustomers, key, result)
	return result, nil
}

// CustomerProducts runs the drill-down for one customer. With inventory the
// rows are joined to stock and to the product analysis.
func (s *AnalysisService) CustomerProducts(ctx context.Context, in Inputs, customer string, p analysis.Params) (*analysis.CustomerProductReport, error) {
	key, err := s.cacheKey(in, p, analysis.FoldName(customer))
	if err != nil {
		return nil, err
	}
	var cached analysis.CustomerProductReport
	if s.cacheGet(ctx, cache.KindCustomerProducts, key, &cached) {
		return &cached, nil
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := s.normalize(in, false)
	if err != nil {
		return nil, err
	}
	result, err := drilldown(r, customer, nil, p)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, cache.KindCustomerProducts, key, result)
	return result, nil
}

// CustomerTrend returns one customer's 12-month series.
func (s *AnalysisService) CustomerTrend(ctx context.Context, in Inputs, customer string, p analysis.Params) ([]domain.TrendPoint, error) {
	key, err := s.cacheKey(Inputs{Sales: in.Sales}, p, analysis.FoldName(customer))
	if err != nil {
		return nil, err
	}
	var cached []domain.TrendPoint
	if s.cacheGet(ctx, cache.KindCustomerTrend, key, &cached) {
		return cached, nil
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := s.normalize(Inputs{Sales: in.Sales}, false)
	if err != nil {
		return nil, err
	}
	points, err := analysis.CustomerTrend(customer, r.history, p)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, cache.KindCustomerTrend, key, points)
	return points, nil
}

// Report assembles every sheet the inputs support: products always, the
// customer ranking when the sales carry customers, and one drill-down per
// requested customer.
func (s *AnalysisService) Report(ctx context.Context, in Inputs, p analysis.Params, customers []string) (report.Bundle, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return report.Bundle{}, err
	}
	defer release()

	r, err := s.normalize(in, true)
	if err != nil {
		return report.Bundle{}, err
	}

	// 1. Product analysis
	products, err := analysis.AnalyzeProducts(r.history, r.inventory, p)
	if err != nil {
		return report.Bundle{}, err
	}
	logQuality(ctx, "report", products.Quality, len(products.Rows))

	bundle := report.Bundle{
		Params:   p,
		Products: products,
		Sources: report.Sources{
			HasPrice:     r.history.HasPrice,
			HasCost:      r.inventory.HasCost,
			HasSupplier:  r.history.HasSupplier,
			HasInventory: true,
			HasAnalysis:  true,
		},
	}

	// 2. Customer ranking, only when the sales identify customers
	if r.history.Shape != analysis.ShapeTransactional || !r.history.HasCustomer {
		if len(customers) > 0 {
			return report.Bundle{}, &analysis.DataFormatError{
				Dataset: "sales",
				Fields:  []string{"customer"},
				Reason:  "customer drill-down needs transactional sales with a customer column",
			}
		}
		return bundle, nil
	}
	if bundle.Customers, err = analysis.AnalyzeCustomers(r.history, p); err != nil {
		return report.Bundle{}, err
	}

	// 3. Drill-downs
	for _, c := range customers {
		d, err := drilldown(r, c, products, p)
		if err != nil {
			return report.Bundle{}, err
		}
		bundle.Drilldowns = append(bundle.Drilldowns, d)
	}
	return bundle, nil
}

// Publish renders the bundle as XLSX and uploads it as name under the report
// prefix. It returns the object key.
func (s *AnalysisService) Publish(ctx context.Context, name string, bundle report.Bundle) (string, error) {
	if s.store == nil {
		return "", ErrNoStorage
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, bundle.Sheets()...); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	key := path.Join(s.reportPrefix, name)
	if err := s.store.UploadObject(ctx, key, buf.Bytes(), report.ContentTypeXLSX); err != nil {
		return "", fmt.Errorf("failed to publish report: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("key", key).Int("bytes", buf.Len()).Msg("analysis: report published")
	return key, nil
}

func drilldown(r *run, customer string, products *analysis.ProductReport, p analysis.Params) (*analysis.CustomerProductReport, error) {
	if products == nil && r.inventory != nil {
		var err error
		if products, err = analysis.AnalyzeProducts(r.history, r.inventory, p); err != nil {
			return nil, err
		}
	}
	return analysis.AnalyzeCustomerProducts(customer, r.history, r.inventory, products, p)
}

// cacheKey validates p first so bad parameters surface as ConfigurationError
// rather than as an encoding failure.
func (s *AnalysisService) cacheKey(in Inputs, p analysis.Params, extra ...string) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	cols, err := json.Marshal(s.columns)
	if err != nil {
		return "", fmt.Errorf("encode columns: %w", err)
	}
	params, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	parts := []string{in.Sales.Fingerprint(), "", string(cols), string(params)}
	if in.HasInventory() {
		parts[1] = in.Inventory.Fingerprint()
	}
	return cache.Fingerprint(append(parts, extra...)...), nil
}

func (s *AnalysisService) cacheGet(ctx context.Context, kind cache.Kind, key string, dst any) bool {
	ok, err := s.cache.Get(ctx, kind, key, dst)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("kind", string(kind)).Msg("analysis: cache get failed")
		return false
	}
	return ok
}

func (s *AnalysisService) cacheSet(ctx context.Context, kind cache.Kind, key string, value any) {
	if err := s.cache.Set(ctx, kind, key, value); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("kind", string(kind)).Msg("analysis: cache set failed")
	}
}

func logQuality(ctx context.Context, op string, q analysis.QualityReport, rows int) {
	l := zerolog.Ctx(ctx)
	if q.Clean() {
		l.Debug().Str("op", op).Int("rows", rows).Msg("analysis: completed")
		return
	}
	l.Warn().
		Str("op", op).
		Int("rows", rows).
		Int("input_rows", q.Rows).
		Int("dropped_missing_id", q.DroppedMissingID).
		Int("dropped_bad_date", q.DroppedBadDate).
		Int("coerced_quantity", q.CoercedQuantity).
		Int("coerced_price", q.CoercedPrice).
		Int("coerced_balance", q.CoercedBalance).
		Int("coerced_cost", q.CoercedCost).
		Int("duplicate_inventory", q.DuplicateInventory).
		Int("unmatched_products", q.UnmatchedProducts).
		Int("excluded_without_sales", q.ExcludedWithoutSales).
		Msg("analysis: completed with data quality issues")
}
