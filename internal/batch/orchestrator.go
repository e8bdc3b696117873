package batch

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andresuchdata/compras/backend-go/internal/service"
	"github.com/andresuchdata/compras/backend-go/internal/storage"
)

var (
	salesPrefixes     = []string{"ventas", "venta", "sales"}
	inventoryPrefixes = []string{"inventario", "inventory", "stock"}
)

// pair collects the two inputs of one job while discovering files.
type pair struct {
	sales, inventory string
}

// DiscoverDir pairs files in dir by the suffix after their dataset prefix:
// ventas_norte.csv and inventario_norte.xlsx become job "norte". Files that
// match neither prefix are ignored.
func DiscoverDir(dir string) ([]Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	return buildJobs(names, func(name string) service.Source {
		return service.FileSource(filepath.Join(dir, name))
	})
}

// DiscoverObjects does the same for the objects under prefix in store.
func DiscoverObjects(ctx context.Context, store storage.ObjectStorage, prefix string) ([]Job, error) {
	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	keys := make(map[string]string, len(objects))
	var names []string
	for _, o := range objects {
		name := path.Base(o.Key)
		keys[name] = o.Key
		names = append(names, name)
	}

	return buildJobs(names, func(name string) service.Source {
		return service.ObjectSource(store, keys[name])
	})
}

func buildJobs(names []string, source func(name string) service.Source) ([]Job, error) {
	byKey := make(map[string]*pair)
	for _, name := range names {
		key, isSales, ok := classify(name)
		if !ok {
			continue
		}
		p, exists := byKey[key]
		if !exists {
			p = &pair{}
			byKey[key] = p
		}
		if isSales {
			if p.sales != "" {
				return nil, fmt.Errorf("job %s has two sales files: %s and %s", key, p.sales, name)
			}
			p.sales = name
		} else {
			if p.inventory != "" {
				return nil, fmt.Errorf("job %s has two inventory files: %s and %s", key, p.inventory, name)
			}
			p.inventory = name
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	jobs := make([]Job, 0, len(keys))
	for _, k := range keys {
		p := byKey[k]
		if p.sales == "" || p.inventory == "" {
			return nil, fmt.Errorf("job %s needs both a sales and an inventory file", k)
		}
		jobs = append(jobs, Job{Name: k, Sales: source(p.sales), Inventory: source(p.inventory)})
	}
	return jobs, nil
}

// classify returns the job key of a file and whether it holds sales.
func classify(name string) (key string, isSales, ok bool) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv", ".xlsx", ".xlsm":
	default:
		return "", false, false
	}
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))

	for _, prefixes := range [][]string{salesPrefixes, inventoryPrefixes} {
		for _, prefix := range prefixes {
			if !strings.HasPrefix(base, prefix) {
				continue
			}
			key = strings.Trim(strings.TrimPrefix(base, prefix), "_- .")
			if key == "" {
				key = "default"
			}
			return key, contains(salesPrefixes, prefix), true
		}
	}
	return "", false, false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
