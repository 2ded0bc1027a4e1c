package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ColumnIndex returns the 0-based column index of a cell reference such as
// "B7" or "$AA$3".
func ColumnIndex(ref string) (int, error) {
	col, _, err := excelize.SplitCellName(strings.ReplaceAll(ref, "$", ""))
	if err != nil {
		return 0, err
	}
	n, err := excelize.ColumnNameToNumber(col)
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}

// ColumnName returns the letters for a 0-based column index.
func ColumnName(index int) (string, error) {
	return excelize.ColumnNumberToName(index + 1)
}

// CellName returns the reference for a 0-based column index and a 1-based
// row number.
func CellName(index, row int) (string, error) {
	return excelize.CoordinatesToCellName(index+1, row)
}

// parseValue attempts to parse a string value as a number.
// Returns float64 for numeric text, or the original string.
func parseValue(s string) any {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	return f
}
