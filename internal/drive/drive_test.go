package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeFiles struct {
	folders map[string]string
	listing map[string][]*File
	content map[string]string
	exports map[string][]byte
}

func (f *fakeFiles) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	files, ok := f.listing[folderID]
	if !ok {
		return nil, fmt.Errorf("unable to retrieve files: folder %s", folderID)
	}
	return files, nil
}

func (f *fakeFiles) DownloadFile(ctx context.Context, fileID string, w io.Writer) error {
	body, ok := f.content[fileID]
	if !ok {
		return errors.New("unable to download file: 404")
	}
	_, err := io.WriteString(w, body)
	return err
}

func (f *fakeFiles) ExportSheet(ctx context.Context, fileID string, w io.Writer) error {
	body, ok := f.exports[fileID]
	if !ok {
		return errors.New("unable to export sheet: not a google sheet")
	}
	_, err := w.Write(body)
	return err
}

func (f *fakeFiles) FindFolderByPath(ctx context.Context, path string) (string, error) {
	id, ok := f.folders[path]
	if !ok {
		return "", fmt.Errorf("folder not found: %s", path)
	}
	return id, nil
}

func newFake() *fakeFiles {
	return &fakeFiles{
		folders: map[string]string{"compras/2025": "f1"},
		listing: map[string][]*File{
			"f1": {
				{ID: "a", Name: "ventas_junio.csv"},
				{ID: "b", Name: "Inventario Junio.csv"},
				{ID: "c", Name: "ventas_mayo.pdf"},
				{ID: "d", Name: "ventas_mayo.csv"},
			},
		},
		content: map[string]string{
			"a": "COD_PROD,Fecha,Cantidad\nP1,10/06/2025,3\n",
			"b": "COD_PROD,Inventario.DESCRIPCION,SALDO ACTUAL\nP1,Tornillo,4\n",
			"d": "COD_PROD,Fecha,Cantidad\nP1,10/05/2025,1\n",
		},
	}
}

func TestLoadInputsPicksNewestMatchingFiles(t *testing.T) {
	d := NewDownloader(newFake())

	sales, inventory, err := d.LoadInputs(context.Background(), InputOptions{FolderPath: "compras/2025"})
	require.NoError(t, err)
	assert.Equal(t, []string{"COD_PROD", "Fecha", "Cantidad"}, sales.Columns)
	assert.Equal(t, "10/06/2025", sales.Rows[0][1])
	assert.Equal(t, 1, inventory.Len())
}

func TestLoadInputsByExactName(t *testing.T) {
	d := NewDownloader(newFake())

	sales, _, err := d.LoadInputs(context.Background(), InputOptions{FolderID: "f1", SalesName: "ventas_mayo.csv"})
	require.NoError(t, err)
	assert.Equal(t, "10/05/2025", sales.Rows[0][1])

	_, _, err = d.LoadInputs(context.Background(), InputOptions{FolderID: "f1", InventoryName: "stock.csv"})
	assert.ErrorContains(t, err, `inventory export: file "stock.csv" not found`)
}

func sheetExport(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	x := excelize.NewFile()
	defer x.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, x.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := x.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadInputsExportsGoogleSheets(t *testing.T) {
	fake := newFake()
	fake.listing["f3"] = []*File{
		{ID: "s", Name: "Ventas Julio", MimeType: SheetMimeType},
		{ID: "x", Name: "Ventas notas", MimeType: "application/vnd.google-apps.document"},
		{ID: "b", Name: "inventario.csv"},
	}
	fake.exports = map[string][]byte{
		"s": sheetExport(t, []any{"COD_PROD", "Fecha", "Cantidad"}, []any{"P9", "01/07/2025", 8}),
	}
	d := NewDownloader(fake)

	sales, inventory, err := d.LoadInputs(context.Background(), InputOptions{FolderID: "f3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"COD_PROD", "Fecha", "Cantidad"}, sales.Columns)
	assert.Equal(t, [][]string{{"P9", "01/07/2025", "8"}}, sales.Rows)
	assert.Equal(t, 1, inventory.Len())

	assert.False(t, readable(&File{Name: "Ventas notas", MimeType: "application/vnd.google-apps.document"}))
	assert.True(t, readable(&File{Name: "VENTAS.XLSX"}))
}

func TestLoadInputsErrors(t *testing.T) {
	fake := newFake()
	fake.listing["f2"] = []*File{{ID: "a", Name: "ventas.csv"}}
	d := NewDownloader(fake)

	_, _, err := d.LoadInputs(context.Background(), InputOptions{FolderID: "f2"})
	assert.ErrorContains(t, err, "no file matching inventario/inventory/stock")

	_, _, err = d.LoadInputs(context.Background(), InputOptions{FolderPath: "missing"})
	assert.ErrorContains(t, err, "folder not found")

	delete(fake.content, "b")
	_, _, err = d.LoadInputs(context.Background(), InputOptions{FolderID: "f1"})
	assert.ErrorContains(t, err, "failed to download Inventario Junio.csv")
}

func newRouter(files Files) *mux.Router {
	r := mux.NewRouter()
	NewHandler(files).RegisterRoutes(r)
	return r
}

func TestHandlerListFiles(t *testing.T) {
	router := newRouter(newFake())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?path=compras/2025", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var files []File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	assert.Len(t, files, 4)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?path=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?folderId=zzz", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandlerPreviewFile(t *testing.T) {
	router := newRouter(newFake())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files/preview?fileId=b&name=inv.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var p Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, []string{"COD_PROD", "Inventario.DESCRIPCION", "SALDO ACTUAL"}, p.Columns)
	assert.Equal(t, 1, p.Rows)
	assert.Equal(t, [][]string{{"P1", "Tornillo", "4"}}, p.Sample)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files/preview?fileId=b", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files/preview?fileId=b&name=inv.pdf", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	target := "/api/drive/files/preview?fileId=b&name=Inventario&mimeType=" + SheetMimeType
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeQuery("O'Brien"))
	assert.Equal(t, `a\\b`, escapeQuery(`a\b`))
}
