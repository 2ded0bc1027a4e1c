package models

// Column represents a column width declaration from the sheet head.
type Column struct {
	// Min is the first column covered (1-based).
	Min int `json:"min"`
	// Max is the last column covered (1-based, inclusive).
	Max int `json:"max"`
	// Width is the column width in characters.
	Width float64 `json:"width,omitempty"`
	// CustomWidth reports whether the width was set explicitly.
	CustomWidth bool `json:"custom_width,omitempty"`
	// Hidden reports whether the columns are hidden.
	Hidden bool `json:"hidden,omitempty"`
}

// SheetInfo represents the identity and head metadata of a worksheet.
type SheetInfo struct {
	// ID is the number taken from the part name (sheet<N>.xml).
	ID int `json:"id"`
	// Name is the display name declared in the workbook.
	Name string `json:"name"`
	// Path is the archive path of the worksheet part.
	Path string `json:"path"`
	// Dimension is the declared used range (e.g., "A1:D10").
	Dimension string `json:"dimension,omitempty"`
	// Columns contains column width declarations.
	Columns []Column `json:"columns,omitempty"`
	// PrintAreas contains user-defined print areas.
	PrintAreas []PrintArea `json:"print_areas,omitempty"`
	// Replayed reports whether the sheet was read back from the spool.
	Replayed bool `json:"replayed,omitempty"`
}

// SheetSummary represents what was observed while streaming a sheet.
type SheetSummary struct {
	// Sheet identifies the worksheet.
	Sheet SheetInfo `json:"sheet"`
	// Rows is the number of rows emitted.
	Rows int `json:"rows"`
	// UsedRange is the bounding range of non-empty cells (e.g., "A1:D10").
	UsedRange string `json:"used_range,omitempty"`
	// NonEmptyCells is the number of cells holding a value.
	NonEmptyCells int `json:"non_empty_cells"`
	// Density is NonEmptyCells divided by the used range area.
	Density float64 `json:"density"`
	// TableCandidate reports whether the used range looks like a table.
	TableCandidate bool `json:"table_candidate"`
}
