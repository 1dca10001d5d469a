// Package export serializes normalized tables into XLSX workbooks.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
)

// SheetName matches the export sheet used by the mobile client.
const SheetName = "Laporan"

// maxColumnWidth bounds widths so one outlier cell cannot produce a
// pathological column.
const maxColumnWidth = 50

// Writer produces XLSX bytes from tables.
type Writer struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// WriteXLSX serializes the table into a single-sheet workbook. When
// headerRow is set the first row is styled bold as a header. Column widths
// track the widest cell content, bounded by maxColumnWidth.
func (w *Writer) WriteXLSX(t entity.Table, headerRow bool) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	if _, err := f.NewSheet(SheetName); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(SheetName); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	widths := make([]int, t.ColumnCount())
	for ri, row := range t {
		for ci, cell := range row {
			name, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				return nil, fmt.Errorf("cell name (%d,%d): %w", ci+1, ri+1, err)
			}
			if err := f.SetCellValue(SheetName, name, cell); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", name, err)
			}
			if n := len(cell); n > widths[ci] {
				widths[ci] = n
			}
		}
	}

	for ci, width := range widths {
		col, err := excelize.ColumnNumberToName(ci + 1)
		if err != nil {
			return nil, fmt.Errorf("column name %d: %w", ci+1, err)
		}
		w := width + 2
		if w > maxColumnWidth {
			w = maxColumnWidth
		}
		if err := f.SetColWidth(SheetName, col, col, float64(w)); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", col, err)
		}
	}

	if headerRow && t.RowCount() > 0 {
		if err := w.styleHeader(f, t.ColumnCount()); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	w.logger.Info("export.xlsx.ok",
		"rows", t.RowCount(),
		"columns", t.ColumnCount(),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (w *Writer) styleHeader(f *excelize.File, cols int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(SheetName, first, last, style); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	return nil
}
