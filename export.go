package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const exportSheetName = "Grain Backfill"

var exportHeaders = []string{"ID", "Grain Type", "Source", "Rate/qt", "Quantity", "Description"}

// exportChangeReport writes the changed rows to an xlsx workbook, one row per
// change, in report order.
func exportChangeReport(path string, changes []grainChange) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheetName, cell, header); err != nil {
			return fmt.Errorf("write header %s: %w", header, err)
		}
		if err := f.SetCellStyle(exportSheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("style header %s: %w", header, err)
		}
	}

	for i, change := range changes {
		values := []any{
			exportRowID(change.id),
			change.grainType,
			string(change.source),
			exportDecimal(change.rate),
			exportDecimal(change.quantity),
			change.description.String,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(exportSheetName, cell, value); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}

	widths := []float64{10, 14, 10, 12, 12, 60}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(exportSheetName, col, col, width); err != nil {
			return fmt.Errorf("set width for %s: %w", col, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %q: %w", path, err)
	}
	return nil
}

func exportRowID(id any) any {
	switch v := id.(type) {
	case int64, string:
		return v
	default:
		return formatRowID(id)
	}
}

func exportDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return ""
	}
	return d.Decimal.InexactFloat64()
}
