package models

// SheetRef represents a sheet declared in the workbook part.
type SheetRef struct {
	// Name is the display name.
	Name string `json:"name"`
	// RelID is the relationship id linking the sheet to its part.
	RelID string `json:"rel_id"`
	// Target is the part path relative to xl/ (e.g., "worksheets/sheet1.xml").
	Target string `json:"target,omitempty"`
}

// WorkbookInfo represents workbook-level metadata gathered during a parse.
type WorkbookInfo struct {
	// Sheets lists the declared sheets in workbook order.
	Sheets []SheetRef `json:"sheets"`
	// SharedStrings is the number of entries in the shared string table.
	SharedStrings int `json:"shared_strings"`
	// Date1904 reports whether serial dates use the 1904 epoch.
	Date1904 bool `json:"date1904,omitempty"`
}
