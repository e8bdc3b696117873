package service

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/compras/backend-go/internal/drive"
	"github.com/andresuchdata/compras/backend-go/internal/storage"
	"github.com/andresuchdata/compras/backend-go/internal/table"
)

// Source yields one raw input table.
type Source interface {
	Name() string
	Load(ctx context.Context) (table.Table, error)
}

// Inputs are the raw tables of one run. A zero Inventory means none was given.
type Inputs struct {
	Sales     table.Table
	Inventory table.Table
}

// HasInventory reports whether an inventory table was supplied.
func (in Inputs) HasInventory() bool {
	return in.Inventory.Columns != nil
}

type fileSource struct{ path string }

// FileSource reads a local CSV or XLSX file.
func FileSource(path string) Source { return fileSource{path: path} }

func (s fileSource) Name() string { return s.path }

func (s fileSource) Load(ctx context.Context) (table.Table, error) {
	return table.ReadFile(s.path)
}

type bytesSource struct {
	name string
	data []byte
}

// BytesSource parses an in-memory upload; name picks the format by extension.
func BytesSource(name string, data []byte) Source { return bytesSource{name: name, data: data} }

func (s bytesSource) Name() string { return s.name }

func (s bytesSource) Load(ctx context.Context) (table.Table, error) {
	return table.Read(s.name, bytes.NewReader(s.data))
}

type objectSource struct {
	store storage.ObjectStorage
	key   string
}

// ObjectSource reads an object from S3-compatible storage.
func ObjectSource(store storage.ObjectStorage, key string) Source {
	return objectSource{store: store, key: key}
}

func (s objectSource) Name() string { return s.key }

func (s objectSource) Load(ctx context.Context) (table.Table, error) {
	data, err := s.store.ReadObject(ctx, s.key)
	if err != nil {
		return table.Table{}, err
	}
	return table.Read(s.key, bytes.NewReader(data))
}

type driveSource struct {
	downloader *drive.Downloader
	file       *drive.File
}

// DriveSource reads one Drive file.
func DriveSource(d *drive.Downloader, f *drive.File) Source {
	return driveSource{downloader: d, file: f}
}

func (s driveSource) Name() string { return s.file.Name }

func (s driveSource) Load(ctx context.Context) (table.Table, error) {
	return s.downloader.LoadTable(ctx, s.file)
}

// LoadInputs loads sales and inventory in parallel. inventory may be nil.
func LoadInputs(ctx context.Context, sales, inventory Source) (Inputs, error) {
	var in Inputs
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := sales.Load(gctx)
		if err != nil {
			return fmt.Errorf("failed to load sales %s: %w", sales.Name(), err)
		}
		in.Sales = t
		return nil
	})
	if inventory != nil {
		g.Go(func() error {
			t, err := inventory.Load(gctx)
			if err != nil {
				return fmt.Errorf("failed to load inventory %s: %w", inventory.Name(), err)
			}
			in.Inventory = t
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Inputs{}, err
	}
	return in, nil
}
