package parser

// element classifies the worksheet elements the row reconstructor acts on.
type element int

const (
	// elemOther is any element without special handling. Top-level ones
	// are kept as auxiliary sheet data.
	elemOther element = iota
	elemIgnored
	elemPagination
	elemCols
	elemCol
	elemSheetData
	elemRow
	elemCell
	elemFormula
	elemValue
	elemInlineString
	elemRun
	elemText
)

var worksheetElements = map[string]element{
	"worksheet":   elemIgnored,
	"sheetPr":     elemIgnored,
	"pageSetUpPr": elemIgnored,

	"printOptions": elemPagination,
	"pageMargins":  elemPagination,
	"pageSetup":    elemPagination,
	"headerFooter": elemPagination,
	"rowBreaks":    elemPagination,
	"colBreaks":    elemPagination,

	"cols":      elemCols,
	"col":       elemCol,
	"sheetData": elemSheetData,
	"row":       elemRow,
	"c":         elemCell,
	"f":         elemFormula,
	"v":         elemValue,
	"is":        elemInlineString,
	"r":         elemRun,
	"t":         elemText,
}

func classify(name string) element {
	if e, ok := worksheetElements[name]; ok {
		return e
	}
	return elemOther
}
