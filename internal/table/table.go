// Package table holds the raw tabular inputs (sales and inventory exports) before
// they are normalized by the analysis engine.
package table

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Table is a header plus string cells, exactly as exported by the source system.
type Table struct {
	Columns []string
	Rows    [][]string
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

// NormalizeColumnName folds a header so "SALDO ACTUAL", "saldo_actual" and
// "Saldo.Actual" compare equal.
func NormalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(strings.TrimPrefix(name, "\ufeff")))
	return columnNameSanitizer.Replace(name)
}

// Index returns the position of the first column matching any of names, or -1.
func (t Table) Index(names ...string) int {
	if len(names) == 0 {
		return -1
	}
	targets := make(map[string]struct{}, len(names))
	for _, name := range names {
		if n := NormalizeColumnName(name); n != "" {
			targets[n] = struct{}{}
		}
	}
	for i, h := range t.Columns {
		if _, ok := targets[NormalizeColumnName(h)]; ok {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed value at idx, or "" when the row is short or idx < 0.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Len is the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Fingerprint is a stable digest of the header and every cell.
func (t Table) Fingerprint() string {
	h := sha256.New()
	for _, c := range t.Columns {
		h.Write([]byte(c))
		h.Write([]byte{0x1f})
	}
	h.Write([]byte{0x1e})
	for _, row := range t.Rows {
		for _, c := range row {
			h.Write([]byte(c))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
