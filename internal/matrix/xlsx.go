package matrix

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/brokerdesk/coverage-cli/internal/model"
)

// emptyCell is rendered for both unknown and absent values; consumers who
// need the distinction read the JSON metadata instead.
const emptyCell = "—"

// WriteXLSX renders the matrix as a spreadsheet: one header row of column
// ids, then one row per catalogue entry, grouped the way the catalogue
// declares them.
func WriteXLSX(m *Matrix, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Comparison")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	header.AddCell().SetString("")
	for _, col := range m.Columns {
		header.AddCell().SetString(col)
	}

	group := ""
	for _, row := range m.Rows {
		if row.Group != group {
			group = row.Group
			groupRow := sheet.AddRow()
			groupRow.AddCell().SetString(strings.ToUpper(group))
		}

		r := sheet.AddRow()
		r.AddCell().SetString(row.Label)
		for _, col := range m.Columns {
			writeCell(r.AddCell(), m.Values[ValueKey{Code: row.Code, Column: col}], row.Type)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func writeCell(cell *xlsx.Cell, val any, t model.RowType) {
	if val == nil {
		cell.SetString(emptyCell)
		return
	}

	switch v := val.(type) {
	case bool:
		if v {
			cell.SetString("yes")
		} else {
			cell.SetString("no")
		}
	case float64:
		if t == model.RowTypeCurrency {
			cell.SetString(fmt.Sprintf("%.2f", v))
		} else {
			cell.SetFloat(v)
		}
	case string:
		cell.SetString(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		cell.SetString(strings.Join(parts, ", "))
	default:
		cell.SetString(fmt.Sprintf("%v", v))
	}
}
