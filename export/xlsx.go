/*
xlsx.go - Spreadsheet export of year reports

PURPOSE:
  Renders month-bucketed rollup rows into an .xlsx workbook: one label
  column, twelve month columns and a total column. Hierarchy is shown by
  indenting labels. Scenario workbooks highlight the dirty client and
  TOTAL cells so a reader can see what the what-if changed.

USED BY:
  - api: GET /api/reports/client-revenue-year.xlsx
  - api: GET /api/scenarios/{id}/report.xlsx
  - cli: staffing scenario export

SEE ALSO:
  - staffing/rollup.go: Produces the rows
  - scenario/diff.go: Produces the dirty cells
*/
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/scenario"
	"github.com/warp/staffing-engine/staffing"
	"github.com/xuri/excelize/v2"
)

const (
	moneyFormat = "#,##0.00"
	dirtyFill   = "FFF2CC"
)

// YearSheet is one worksheet of year rows. Dirty may be nil.
type YearSheet struct {
	Name  string
	Rows  []staffing.Row
	Dirty map[scenario.CellKey]bool
}

// WriteYear writes the sheets, in order, as one workbook.
func WriteYear(w io.Writer, sheets ...YearSheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to export: %w", generic.ErrInvalidInput)
	}
	f := excelize.NewFile()
	defer f.Close()

	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr(moneyFormat)})
	if err != nil {
		return err
	}
	highlighted, err := f.NewStyle(&excelize.Style{
		CustomNumFmt: strPtr(moneyFormat),
		Fill:         excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{dirtyFill}},
	})
	if err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return err
		}
		if err := writeSheet(f, sheet, money, highlighted, bold); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet.Name, err)
		}
	}
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet YearSheet, money, highlighted, bold int) error {
	columns := generic.Columns()
	header := append([]any{"Label"}, toAny(columns)...)
	if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(columns)+1, 1)
	if err := f.SetCellStyle(sheet.Name, "A1", last, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet.Name, "A", "A", 40); err != nil {
		return err
	}

	for i, row := range sheet.Rows {
		rowNo := i + 2
		label, _ := excelize.CoordinatesToCellName(1, rowNo)
		if err := f.SetCellValue(sheet.Name, label, Label(row)); err != nil {
			return err
		}
		if row.Type == staffing.RowTotal || row.Type == staffing.RowClient {
			if err := f.SetCellStyle(sheet.Name, label, label, bold); err != nil {
				return err
			}
		}
		for c, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(c+2, rowNo)
			value, err := row.Cell(col)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet.Name, cell, value.InexactFloat64()); err != nil {
				return err
			}
			style := money
			if key, ok := cellKey(row, col); ok && sheet.Dirty[key] {
				style = highlighted
			}
			if err := f.SetCellStyle(sheet.Name, cell, cell, style); err != nil {
				return err
			}
		}
	}
	return nil
}

// cellKey maps a summary row cell to its diff key. Only client and TOTAL
// rows carry dirty state.
func cellKey(row staffing.Row, column string) (scenario.CellKey, bool) {
	switch row.Type {
	case staffing.RowClient:
		return scenario.ClientCell(row.EntityID, column), true
	case staffing.RowTotal:
		return scenario.TotalCell(column), true
	}
	return scenario.CellKey{}, false
}

// Label is the row label indented by depth, marked when at risk.
func Label(row staffing.Row) string {
	depth := 0
	switch row.Type {
	case staffing.RowProject:
		depth = 1
	case staffing.RowAllocation:
		depth = 2
	}
	label := strings.Repeat("  ", depth) + row.Label
	if row.AtRisk {
		label += " (at risk)"
	}
	return label
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func strPtr(s string) *string { return &s }
