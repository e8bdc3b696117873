package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/compras/backend-go/internal/analysis"
	"github.com/andresuchdata/compras/backend-go/internal/api/middleware"
	"github.com/andresuchdata/compras/backend-go/internal/config"
	"github.com/andresuchdata/compras/backend-go/internal/drive"
	"github.com/andresuchdata/compras/backend-go/internal/report"
	"github.com/andresuchdata/compras/backend-go/internal/service"
)

const salesCSV = `COD_PROD,Fecha,Cantidad,PRECIO_DESCUENTO,NOM_CLIENTE
P1,10/01/2025,10,5,José
P1,10/02/2025,20,5,José
P2,12/03/2025,5,2,Ana
`

const inventoryCSV = `COD_PROD,Inventario.DESCRIPCION,SALDO ACTUAL
P1,Tornillo,3
P2,Tuerca,100
`

func init() {
	gin.SetMode(gin.TestMode)
}

func defaults() config.AnalysisConfig {
	p := analysis.DefaultParams(time.Time{})
	return config.AnalysisConfig{
		LeadTimeDays:       p.LeadTimeDays,
		CoverageMonths:     p.CoverageMonths,
		SellingDaysPerWeek: p.SellingDaysPerWeek,
		ServiceZ:           p.ServiceZ,
		ABCThresholdA:      p.ABCThresholdA,
		ABCThresholdB:      p.ABCThresholdB,
		XYZThresholdX:      p.XYZThresholdX,
		XYZThresholdY:      p.XYZThresholdY,
		DeviationBasis:     string(p.DeviationBasis),
		SafetyStockScaling: string(p.SafetyStockScaling),
		ZeroSales:          string(p.ZeroSales),
		ValueBasis:         string(p.ValueBasis),
		AlertMinMonths:     p.AlertMinMonths,
		AlertCoverFactor:   p.AlertCoverFactor,
	}
}

type fakeDrive struct{}

func (fakeDrive) ListFiles(ctx context.Context, folderID string) ([]*drive.File, error) {
	return []*drive.File{{ID: "1", Name: "ventas.csv"}}, nil
}

func (fakeDrive) DownloadFile(ctx context.Context, fileID string, w io.Writer) error {
	return errors.New("not used")
}

func (fakeDrive) ExportSheet(ctx context.Context, fileID string, w io.Writer) error {
	return errors.New("not used")
}

func (fakeDrive) FindFolderByPath(ctx context.Context, path string) (string, error) {
	return "root", nil
}

func newTestRouter() *gin.Engine {
	svc := service.NewAnalysisService(analysis.DefaultColumns(), nil, 2)
	return NewRouter(&Services{Analysis: svc, Drive: fakeDrive{}, Defaults: defaults()}, config.ServerConfig{MaxUploadMB: 1})
}

func upload(t *testing.T, target string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for field, content := range files {
		part, err := w.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func both() map[string]string {
	return map[string]string{"sales": salesCSV, "inventory": inventoryCSV}
}

func TestHealth(t *testing.T) {
	rec := serve(newTestRouter(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestID(t *testing.T) {
	router := newTestRouter()

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rec.Header().Get(middleware.RequestIDHeader), 20)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "upstream-42")
	rec = serve(router, req)
	assert.Equal(t, "upstream-42", rec.Header().Get(middleware.RequestIDHeader))
}

func TestProductsEndpoint(t *testing.T) {
	rec := serve(newTestRouter(), upload(t, "/api/v1/analysis/products?as_of=2025-06-15", both()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got analysis.ProductReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "P1", got.Rows[0].Code)
	assert.Equal(t, []string{"jul-24", "ago-24", "sep-24", "oct-24", "nov-24", "dic-24",
		"ene-25", "feb-25", "mar-25", "abr-25", "may-25", "jun-25"}, got.MonthLabels)
}

func TestProductsEndpointFilters(t *testing.T) {
	rec := serve(newTestRouter(), upload(t, "/api/v1/analysis/products?as_of=2025-06-15&abc=c&demand=baja", both()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got analysis.ProductReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "P2", got.Rows[0].Code)
	assert.Equal(t, 2, got.Rows[0].Rank)
}

func TestProductsEndpointErrors(t *testing.T) {
	router := newTestRouter()
	tests := []struct {
		name   string
		target string
		files  map[string]string
		status int
		msg    string
	}{
		{"missing inventory", "/api/v1/analysis/products?as_of=2025-06-15", map[string]string{"sales": salesCSV}, http.StatusBadRequest, "inventory table is required"},
		{"missing sales", "/api/v1/analysis/products?as_of=2025-06-15", map[string]string{"inventory": inventoryCSV}, http.StatusBadRequest, "sales file is required"},
		{"bad number", "/api/v1/analysis/products?lead_time_days=abc", both(), http.StatusBadRequest, "invalid lead_time_days"},
		{"bad date", "/api/v1/analysis/products?as_of=15/06/2025", both(), http.StatusBadRequest, "invalid as_of"},
		{"bad thresholds", "/api/v1/analysis/products?as_of=2025-06-15&abc_b=0.5", both(), http.StatusBadRequest, "ABC threshold B (0.5) must exceed A (0.8)"},
		{"unknown policy", "/api/v1/analysis/products?as_of=2025-06-15&zero_sales=drop", both(), http.StatusBadRequest, "unknown zero sales policy"},
		{"unknown status filter", "/api/v1/analysis/products?as_of=2025-06-15&status=agotado", both(), http.StatusBadRequest, "unknown stock status"},
		{"unrecognised sales", "/api/v1/analysis/products?as_of=2025-06-15", map[string]string{"sales": "foo,bar\n1,2\n", "inventory": inventoryCSV}, http.StatusUnprocessableEntity, "neither transactional"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, upload(t, tt.target, tt.files))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.msg)
		})
	}
}

func TestCustomerEndpoints(t *testing.T) {
	router := newTestRouter()

	rec := serve(router, upload(t, "/api/v1/analysis/customers?as_of=2025-06-15", map[string]string{"sales": salesCSV}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var customers analysis.CustomerReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &customers))
	require.Len(t, customers.Rows, 2)
	assert.Equal(t, "Jose", customers.Rows[0].Customer)

	rec = serve(router, upload(t, "/api/v1/analysis/customers/Jos%C3%A9/products?as_of=2025-06-15", both()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var drill analysis.CustomerProductReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &drill))
	require.Len(t, drill.Rows, 1)
	assert.Equal(t, "Tornillo", drill.Rows[0].Inventory.Description)

	rec = serve(router, upload(t, "/api/v1/analysis/customers/Ana/trend?as_of=2025-06-15", map[string]string{"sales": salesCSV}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var trend struct {
		Customer string `json:"customer"`
		Points   []struct {
			Label   string  `json:"label"`
			Revenue float64 `json:"revenue"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trend))
	require.Len(t, trend.Points, 12)
	assert.Equal(t, 10.0, trend.Points[8].Revenue)
}

func TestReportEndpoint(t *testing.T) {
	router := newTestRouter()

	rec := serve(router, upload(t, "/api/v1/analysis/report?as_of=2025-06-15&customer=Ana", both()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, report.ContentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "analisis_20250615.xlsx")
	assert.NotZero(t, rec.Body.Len())

	rec = serve(router, upload(t, "/api/v1/analysis/report?as_of=2025-06-15&publish=true", both()))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter()
	serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	serve(router, upload(t, "/api/v1/analysis/products?as_of=2025-06-15", both()))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `compras_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, body, `compras_analysis_runs_total{operation="products",result="ok"} 1`)
}

func TestDriveRoutesAreMounted(t *testing.T) {
	rec := serve(newTestRouter(), httptest.NewRequest(http.MethodGet, "/api/drive/files", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"ventas.csv"`)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	tests := []struct {
		in       []string
		want     []string
		allowAll bool
	}{
		{[]string{"http://a.com, http://b.com"}, []string{"http://a.com", "http://b.com"}, false},
		{[]string{"*"}, nil, true},
		{[]string{" ", "http://c.com"}, []string{"http://c.com"}, false},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			got, all := normalizeAllowedOrigins(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.allowAll, all)
		})
	}
}
