package parser

import (
	"fmt"

	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/models"
	"github.com/xuri/excelize/v2"
)

// TableDetectionParams holds thresholds for deciding whether a used range
// looks like a table.
type TableDetectionParams struct {
	DensityMin       float64
	MinNonemptyCells int
}

// DefaultTableParams returns default table detection parameters.
func DefaultTableParams() TableDetectionParams {
	return TableDetectionParams{
		DensityMin:       0.04,
		MinNonemptyCells: 3,
	}
}

// Bounds tracks the bounding box of non-empty cells as rows stream past.
// The zero value is empty.
type Bounds struct {
	minRow, maxRow int
	minCol, maxCol int
	cells          int
}

// Observe records a non-empty cell at a 1-based row and 0-based column.
func (b *Bounds) Observe(row, col int) {
	if b.cells == 0 {
		b.minRow, b.maxRow = row, row
		b.minCol, b.maxCol = col, col
	} else {
		b.minRow = min(b.minRow, row)
		b.maxRow = max(b.maxRow, row)
		b.minCol = min(b.minCol, col)
		b.maxCol = max(b.maxCol, col)
	}
	b.cells++
}

// ObserveRow records every non-empty value of a row.
func (b *Bounds) ObserveRow(r models.Row) {
	for col, v := range r.Values {
		if isEmptyValue(v) {
			continue
		}
		b.Observe(r.Number, col)
	}
}

// Cells returns the number of non-empty cells observed.
func (b *Bounds) Cells() int {
	return b.cells
}

// Range returns the used range in Excel notation (e.g., "A1:D10"), or ""
// when nothing was observed.
func (b *Bounds) Range() string {
	if b.cells == 0 {
		return ""
	}
	startCell, _ := excelize.CoordinatesToCellName(b.minCol+1, b.minRow)
	endCell, _ := excelize.CoordinatesToCellName(b.maxCol+1, b.maxRow)
	return fmt.Sprintf("%s:%s", startCell, endCell)
}

// Density returns the share of non-empty cells within the used range.
func (b *Bounds) Density() float64 {
	if b.cells == 0 {
		return 0
	}
	totalCells := (b.maxRow - b.minRow + 1) * (b.maxCol - b.minCol + 1)
	return float64(b.cells) / float64(totalCells)
}

// LooksLikeTable reports whether the used range passes the thresholds.
func (b *Bounds) LooksLikeTable(params TableDetectionParams) bool {
	if b.cells < params.MinNonemptyCells {
		return false
	}
	return b.Density() >= params.DensityMin
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
