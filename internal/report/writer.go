package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the MIME type of the workbooks WriteXLSX produces.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const defaultSheet = "Sheet1"

var dateFormat = "dd/mm/yyyy"

// WriteXLSX renders sheets into one workbook. Nothing reaches w unless the
// whole workbook was built.
func WriteXLSX(w io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return errors.New("no sheets to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	for i, s := range sheets {
		idx, err := f.NewSheet(s.Name)
		if err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", s.Name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := writeSheet(f, s, styles); err != nil {
			return fmt.Errorf("failed to write sheet %q: %w", s.Name, err)
		}
	}
	if sheets[0].Name != defaultSheet {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type styleSet struct {
	header int
	byFmt  map[Format]int
}

func newStyles(f *excelize.File) (styleSet, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "center"},
	})
	if err != nil {
		return styleSet{}, fmt.Errorf("failed to create header style: %w", err)
	}

	specs := map[Format]*excelize.Style{
		FormatInt:     {NumFmt: 1},
		FormatNumber:  {NumFmt: 2},
		FormatPercent: {NumFmt: 10},
		FormatDate:    {CustomNumFmt: &dateFormat},
	}
	set := styleSet{header: header, byFmt: make(map[Format]int, len(specs))}
	for format, spec := range specs {
		id, err := f.NewStyle(spec)
		if err != nil {
			return styleSet{}, fmt.Errorf("failed to create %s style: %w", format, err)
		}
		set.byFmt[format] = id
	}
	return set, nil
}

func writeSheet(f *excelize.File, s Sheet, styles styleSet) error {
	headers := make([]any, len(s.Columns))
	for i, c := range s.Columns {
		headers[i] = c.Header
	}
	if err := f.SetSheetRow(s.Name, "A1", &headers); err != nil {
		return err
	}

	for r, row := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for i, v := range row {
			if t, ok := v.(time.Time); ok && t.IsZero() {
				v = nil
			}
			values[i] = v
		}
		if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
			return err
		}
	}

	for i, c := range s.Columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if c.Width > 0 {
			if err := f.SetColWidth(s.Name, col, col, c.Width); err != nil {
				return err
			}
		}
		if style, ok := styles.byFmt[c.Format]; ok && len(s.Rows) > 0 {
			last := strconv.Itoa(len(s.Rows) + 1)
			if err := f.SetCellStyle(s.Name, col+"2", col+last, style); err != nil {
				return err
			}
		}
	}

	if len(s.Columns) == 0 {
		return nil
	}
	lastCol, err := excelize.ColumnNumberToName(len(s.Columns))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.Name, "A1", lastCol+"1", styles.header); err != nil {
		return err
	}
	if err := f.SetPanes(s.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if len(s.Rows) > 0 {
		ref := fmt.Sprintf("A1:%s%d", lastCol, len(s.Rows)+1)
		if err := f.AutoFilter(s.Name, ref, nil); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV renders one sheet as comma-separated text with a header row.
func WriteCSV(w io.Writer, s Sheet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Headers()); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(s.Columns))
	for _, row := range s.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format("2006-01-02")
	default:
		return fmt.Sprint(x)
	}
}
