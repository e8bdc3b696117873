package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/compras/backend-go/internal/table"
)

// InputOptions selects the sales and inventory exports inside a Drive folder.
// Empty names fall back to the newest file whose name mentions the dataset.
type InputOptions struct {
	FolderID      string
	FolderPath    string
	SalesName     string
	InventoryName string
}

var (
	salesHints     = []string{"venta", "sales"}
	inventoryHints = []string{"inventario", "inventory", "stock"}
)

// Downloader wraps Files to pull analysis inputs from a Drive folder.
type Downloader struct {
	files Files
}

// NewDownloader creates a new Downloader.
func NewDownloader(f Files) *Downloader {
	return &Downloader{files: f}
}

// LoadInputs downloads and parses the sales and inventory exports.
func (d *Downloader) LoadInputs(ctx context.Context, opts InputOptions) (sales, inventory table.Table, err error) {
	folderID := opts.FolderID
	if folderID == "" && opts.FolderPath != "" {
		if folderID, err = d.files.FindFolderByPath(ctx, opts.FolderPath); err != nil {
			return table.Table{}, table.Table{}, err
		}
	}

	files, err := d.files.ListFiles(ctx, folderID)
	if err != nil {
		return table.Table{}, table.Table{}, err
	}

	salesFile, err := pick(files, opts.SalesName, salesHints)
	if err != nil {
		return table.Table{}, table.Table{}, fmt.Errorf("sales export: %w", err)
	}
	inventoryFile, err := pick(files, opts.InventoryName, inventoryHints)
	if err != nil {
		return table.Table{}, table.Table{}, fmt.Errorf("inventory export: %w", err)
	}

	if sales, err = d.LoadTable(ctx, salesFile); err != nil {
		return table.Table{}, table.Table{}, err
	}
	if inventory, err = d.LoadTable(ctx, inventoryFile); err != nil {
		return table.Table{}, table.Table{}, err
	}
	return sales, inventory, nil
}

// LoadTable downloads one CSV, XLSX or Google Sheets file and parses it.
func (d *Downloader) LoadTable(ctx context.Context, f *File) (table.Table, error) {
	var buf bytes.Buffer
	name, err := fetch(ctx, d.files, f, &buf)
	if err != nil {
		return table.Table{}, fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	t, err := table.Read(name, &buf)
	if err != nil {
		return table.Table{}, fmt.Errorf("failed to parse %s: %w", f.Name, err)
	}
	return t, nil
}

// pick returns the file called name, or the first readable file whose name
// contains a hint. Files are listed newest first.
func pick(files []*File, name string, hints []string) (*File, error) {
	if name != "" {
		for _, f := range files {
			if f.Name == name {
				return f, nil
			}
		}
		return nil, fmt.Errorf("file %q not found", name)
	}
	for _, f := range files {
		if !readable(f) {
			continue
		}
		lower := strings.ToLower(f.Name)
		for _, h := range hints {
			if strings.Contains(lower, h) {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("no file matching %s", strings.Join(hints, "/"))
}

// fetch writes f to w, exporting native Sheets as XLSX, and returns the name
// the table reader should dispatch on.
func fetch(ctx context.Context, files Files, f *File, w io.Writer) (string, error) {
	if f.MimeType == SheetMimeType {
		return f.Name + ".xlsx", files.ExportSheet(ctx, f.ID, w)
	}
	return f.Name, files.DownloadFile(ctx, f.ID, w)
}

func readable(f *File) bool {
	if f.MimeType == SheetMimeType {
		return true
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".csv", ".xlsx", ".xlsm":
		return true
	}
	return false
}
