package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/compras/backend-go/internal/analysis"
	"github.com/andresuchdata/compras/backend-go/internal/config"
	"github.com/andresuchdata/compras/backend-go/internal/report"
	"github.com/andresuchdata/compras/backend-go/internal/service"
)

// RunObserver receives the outcome of every analysis request.
type RunObserver func(operation string, err error)

type AnalysisHandler struct {
	service  *service.AnalysisService
	defaults config.AnalysisConfig
	maxBytes int64
	observe  RunObserver
	now      func() time.Time
}

func NewAnalysisHandler(svc *service.AnalysisService, defaults config.AnalysisConfig, maxUploadMB int64, observe RunObserver) *AnalysisHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 64
	}
	if observe == nil {
		observe = func(string, error) {}
	}
	return &AnalysisHandler{
		service:  svc,
		defaults: defaults,
		maxBytes: maxUploadMB << 20,
		observe:  observe,
		now:      time.Now,
	}
}

// badRequest marks errors in the request itself, as opposed to the data.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

// unreadableInput marks uploads that are not a CSV or XLSX table.
type unreadableInput struct{ err error }

func (u unreadableInput) Error() string { return u.err.Error() }
func (u unreadableInput) Unwrap() error { return u.err }

func (h *AnalysisHandler) Products(c *gin.Context) {
	filter, err := analysis.ParseProductFilter(c.Query("status"), c.Query("demand"), c.Query("abc"))
	if err != nil {
		h.respond(c, "products", nil, err)
		return
	}
	p, in, ok := h.prepare(c, "products", true)
	if !ok {
		return
	}
	result, err := h.service.Products(c.Request.Context(), in, p)
	if err == nil {
		result = result.Filter(filter)
	}
	h.respond(c, "products", result, err)
}

func (h *AnalysisHandler) Customers(c *gin.Context) {
	p, in, ok := h.prepare(c, "customers", false)
	if !ok {
		return
	}
	result, err := h.service.Customers(c.Request.Context(), in, p)
	h.respond(c, "customers", result, err)
}

func (h *AnalysisHandler) CustomerProducts(c *gin.Context) {
	p, in, ok := h.prepare(c, "customer_products", false)
	if !ok {
		return
	}
	result, err := h.service.CustomerProducts(c.Request.Context(), in, c.Param("customer"), p)
	h.respond(c, "customer_products", result, err)
}

func (h *AnalysisHandler) CustomerTrend(c *gin.Context) {
	p, in, ok := h.prepare(c, "customer_trend", false)
	if !ok {
		return
	}
	points, err := h.service.CustomerTrend(c.Request.Context(), in, c.Param("customer"), p)
	h.respond(c, "customer_trend", gin.H{"customer": analysis.FoldName(c.Param("customer")), "points": points}, err)
}

// Report returns the XLSX workbook, or publishes it to object storage and
// returns the key when publish=true.
func (h *AnalysisHandler) Report(c *gin.Context) {
	p, in, ok := h.prepare(c, "report", true)
	if !ok {
		return
	}
	customers := customerList(c.QueryArray("customer"))

	bundle, err := h.service.Report(c.Request.Context(), in, p, customers)
	if err != nil {
		h.respond(c, "report", nil, err)
		return
	}

	name := fmt.Sprintf("analisis_%s.xlsx", p.AsOf.Format("20060102"))
	if publish, _ := strconv.ParseBool(c.DefaultQuery("publish", "false")); publish {
		key, err := h.service.Publish(c.Request.Context(), name, bundle)
		h.respond(c, "report", gin.H{"key": key}, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, bundle.Sheets()...); err != nil {
		h.respond(c, "report", nil, err)
		return
	}
	h.observe("report", nil)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, report.ContentTypeXLSX, buf.Bytes())
}

func (h *AnalysisHandler) prepare(c *gin.Context, op string, needInventory bool) (analysis.Params, service.Inputs, bool) {
	p, err := h.parseParams(c)
	if err != nil {
		h.respond(c, op, nil, err)
		return analysis.Params{}, service.Inputs{}, false
	}
	in, err := h.readInputs(c, needInventory)
	if err != nil {
		h.respond(c, op, nil, err)
		return analysis.Params{}, service.Inputs{}, false
	}
	return p, in, true
}

// parseParams overrides the configured defaults with query parameters.
func (h *AnalysisHandler) parseParams(c *gin.Context) (analysis.Params, error) {
	cfg := h.defaults
	floats := map[string]*float64{
		"lead_time_days":        &cfg.LeadTimeDays,
		"coverage_months":       &cfg.CoverageMonths,
		"selling_days_per_week": &cfg.SellingDaysPerWeek,
		"service_z":             &cfg.ServiceZ,
		"abc_a":                 &cfg.ABCThresholdA,
		"abc_b":                 &cfg.ABCThresholdB,
		"xyz_x":                 &cfg.XYZThresholdX,
		"xyz_y":                 &cfg.XYZThresholdY,
		"alert_cover_factor":    &cfg.AlertCoverFactor,
	}
	for name, dst := range floats {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return analysis.Params{}, badRequest{fmt.Errorf("invalid %s: %q", name, raw)}
		}
		*dst = v
	}
	if raw := strings.TrimSpace(c.Query("alert_min_months")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return analysis.Params{}, badRequest{fmt.Errorf("invalid alert_min_months: %q", raw)}
		}
		cfg.AlertMinMonths = v
	}
	strs := map[string]*string{
		"deviation_basis":      &cfg.DeviationBasis,
		"safety_stock_scaling": &cfg.SafetyStockScaling,
		"zero_sales":           &cfg.ZeroSales,
		"value_basis":          &cfg.ValueBasis,
	}
	for name, dst := range strs {
		if raw := strings.TrimSpace(c.Query(name)); raw != "" {
			*dst = strings.ToLower(raw)
		}
	}

	asOf := analysis.DayStart(h.now())
	if raw := strings.TrimSpace(c.Query("as_of")); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return analysis.Params{}, badRequest{fmt.Errorf("invalid as_of %q, want YYYY-MM-DD", raw)}
		}
		asOf = t
	}
	return cfg.Params(asOf)
}

func (h *AnalysisHandler) readInputs(c *gin.Context, needInventory bool) (service.Inputs, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)

	sales, err := formSource(c, "sales")
	if err != nil {
		return service.Inputs{}, err
	}
	if sales == nil {
		return service.Inputs{}, badRequest{errors.New("sales file is required")}
	}
	inventory, err := formSource(c, "inventory")
	if err != nil {
		return service.Inputs{}, err
	}
	if inventory == nil && needInventory {
		return service.Inputs{}, badRequest{service.ErrNoInventory}
	}

	in, err := service.LoadInputs(c.Request.Context(), sales, inventory)
	if err != nil {
		return service.Inputs{}, unreadableInput{err}
	}
	return in, nil
}

// formSource returns nil when the field is absent.
func formSource(c *gin.Context, field string) (service.Source, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, badRequest{fmt.Errorf("invalid %s upload: %w", field, err)}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, badRequest{fmt.Errorf("invalid %s upload: %w", field, err)}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, badRequest{fmt.Errorf("invalid %s upload: %w", field, err)}
	}
	return service.BytesSource(fh.Filename, data), nil
}

func (h *AnalysisHandler) respond(c *gin.Context, op string, body any, err error) {
	h.observe(op, err)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, body)
}

func statusFor(err error) int {
	var (
		cfgErr  *analysis.ConfigurationError
		dataErr *analysis.DataFormatError
		bad     badRequest
		input   unreadableInput
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &bad), errors.Is(err, service.ErrNoInventory):
		return http.StatusBadRequest
	case errors.As(err, &dataErr), errors.As(err, &input):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNoStorage):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// customerList trims repeated customer parameters. Names may contain commas,
// so values are never split.
func customerList(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
