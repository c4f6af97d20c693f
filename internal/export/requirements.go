// Package export renders MRP results as spreadsheets.
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"factory-mrp/internal/core"
)

const requirementsSheet = "Requirements"

var requirementHeaders = []string{
	"Raw Material Code", "Raw Material", "Unit", "Qty per Unit",
	"Total Required", "Current Stock", "Shortage",
}

// RequirementsWorkbook lays out one requirement per row under a title line and
// a header row, followed by a feasibility summary. The returned filename is
// safe for a Content-Disposition header. Callers must Close the file.
func RequirementsWorkbook(fg *core.Item, qty int64, reqs []core.Requirement) (*excelize.File, string, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", requirementsSheet); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("rename sheet: %w", err)
	}
	sheet := requirementsSheet

	boldStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("create header style: %w", err)
	}
	shortStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#C00000"},
	})
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("create shortage style: %w", err)
	}

	f.SetCellValue(sheet, "A1", fmt.Sprintf("%s (%s) x %d", fg.Name, fg.Code, qty))

	for i, h := range requirementHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "2"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for i, r := range reqs {
		row := i + 3
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.RawMaterialCode)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.RawMaterialName)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.Unit)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.QuantityPerUnit.InexactFloat64())
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), r.TotalRequired.InexactFloat64())
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), r.CurrentStock.InexactFloat64())
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), r.Shortage.InexactFloat64())
		if r.IsShort() {
			f.SetCellStyle(sheet, fmt.Sprintf("G%d", row), fmt.Sprintf("G%d", row), shortStyle)
		}
	}

	summaryRow := len(reqs) + 4
	status := "Feasible"
	if !core.Feasible(reqs) {
		status = fmt.Sprintf("Not feasible: %d material(s) short", len(core.Shortages(reqs)))
	}
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), status)

	colWidths := []float64{18, 24, 8, 12, 14, 14, 12}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("MRP_%s_x%d.xlsx", sanitize(fg.Code), qty)
	return f, filename, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
