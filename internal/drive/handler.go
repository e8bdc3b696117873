package drive

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/andresuchdata/compras/backend-go/internal/table"
)

const previewRows = 5

type Handler struct {
	files Files
}

func NewHandler(files Files) *Handler {
	return &Handler{files: files}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods("GET")
	router.HandleFunc("/api/drive/files/preview", h.PreviewFile).Methods("GET")
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	folderID := query.Get("folderId")

	if folderPath := query.Get("path"); folderPath != "" {
		var err error
		folderID, err = h.files.FindFolderByPath(r.Context(), folderPath)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
	}

	files, err := h.files.ListFiles(r.Context(), folderID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	if files == nil {
		files = []*File{}
	}
	writeJSON(w, http.StatusOK, files)
}

// Preview is the header and first rows of a Drive export, used to check the
// column mapping before running an analysis.
type Preview struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    int        `json:"rows"`
	Sample  [][]string `json:"sample"`
}

func (h *Handler) PreviewFile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fileID := query.Get("fileId")
	name := query.Get("name")
	if fileID == "" || name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "fileId and name parameters are required"})
		return
	}

	var buf bytes.Buffer
	readName, err := fetch(r.Context(), h.files, &File{ID: fileID, Name: name, MimeType: query.Get("mimeType")}, &buf)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	t, err := table.Read(readName, &buf)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	sample := t.Rows
	if len(sample) > previewRows {
		sample = sample[:previewRows]
	}
	writeJSON(w, http.StatusOK, Preview{Name: name, Columns: t.Columns, Rows: t.Len(), Sample: sample})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
