// Package parser builds workbook metadata and reconstructs worksheet rows
// from assembled XML nodes.
package parser

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/models"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/numfmt"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/xmlnode"
	"go.uber.org/zap"
)

// NodeSource yields the nodes of one XML part. Next returns io.EOF after
// the last node.
type NodeSource interface {
	Next() (xmlnode.Node, error)
}

// WorkbookOptions configures a Workbook.
type WorkbookOptions struct {
	// Verbose reports non-fatal warnings through OnWarning.
	Verbose bool
	// Formatting renders styled numeric cells with their number format.
	Formatting bool
	// ReturnFormats records the applied format code for each cell.
	ReturnFormats bool
	// OnWarning receives warnings in verbose mode.
	OnWarning func(*Warning)
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// DefinedName is a workbook-level defined name.
type DefinedName struct {
	Name string
	// LocalSheetID is the 0-based sheet position the name is scoped to, or
	// -1 for workbook scope.
	LocalSheetID int
	RefersTo     string
}

// Workbook holds the metadata shared by all worksheets of a package. Each
// table is filled by exactly one part and is read-only once that part has
// been parsed.
type Workbook struct {
	opts WorkbookOptions
	log  *zap.Logger

	sheets  []models.SheetRef
	names   map[string]string // relationship id -> sheet name
	rels    map[string]string // relationship id -> target relative to xl/
	targets map[string]string // target -> relationship id
	defined []DefinedName

	sharedStrings []string
	numFmts       map[int]string
	xfs           []int // cellXfs index -> numFmtId

	formatter *numfmt.Formatter
	date1904  bool

	workbookDone      bool
	relsDone          bool
	sharedStringsDone bool
	stylesDone        bool

	aborted atomic.Bool
}

// NewWorkbook returns an empty Workbook.
func NewWorkbook(opts WorkbookOptions) *Workbook {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Workbook{
		opts:      opts,
		log:       opts.Logger,
		names:     make(map[string]string),
		rels:      make(map[string]string),
		targets:   make(map[string]string),
		numFmts:   make(map[int]string),
		formatter: numfmt.New(false),
	}
}

// Options returns the options the workbook was created with.
func (wb *Workbook) Options() WorkbookOptions {
	return wb.opts
}

// Abort marks the workbook aborted. It is safe to call from any goroutine.
func (wb *Workbook) Abort() {
	wb.aborted.Store(true)
}

// Aborted reports whether Abort was called.
func (wb *Workbook) Aborted() bool {
	return wb.aborted.Load()
}

// Ready reports whether worksheets can be parsed: sheet names,
// relationships and shared strings are complete.
func (wb *Workbook) Ready() bool {
	return wb.workbookDone && wb.relsDone && wb.sharedStringsDone
}

// ParseWorkbook reads xl/workbook.xml: sheet declarations, defined names
// and the date system.
func (wb *Workbook) ParseWorkbook(src NodeSource) error {
	err := wb.eachNode(src, func(n xmlnode.Node) {
		for i, it := range n {
			switch it.Name {
			case "sheet":
				ref := models.SheetRef{Name: it.Attr("name"), RelID: it.Attr("id")}
				if ref.RelID == "" {
					continue
				}
				wb.sheets = append(wb.sheets, ref)
				wb.names[ref.RelID] = ref.Name
			case "workbookPr":
				wb.date1904 = parseBool(it.Attr("date1904"))
				wb.formatter.SetDate1904(wb.date1904)
			case "definedName":
				dn := DefinedName{Name: it.Attr("name"), LocalSheetID: -1}
				if v, ok := it.LookupAttr("localSheetId"); ok {
					if id, err := strconv.Atoi(v); err == nil {
						dn.LocalSheetID = id
					}
				}
				if i+1 < len(n) && n[i+1].IsText() {
					dn.RefersTo = n[i+1].Text
				}
				wb.defined = append(wb.defined, dn)
			}
		}
	})
	if err != nil {
		return err
	}
	wb.workbookDone = true
	wb.log.Debug("workbook parsed",
		zap.Int("sheets", len(wb.sheets)),
		zap.Int("defined_names", len(wb.defined)),
		zap.Bool("date1904", wb.date1904))
	return nil
}

// ParseRelationships reads xl/_rels/workbook.xml.rels.
func (wb *Workbook) ParseRelationships(src NodeSource) error {
	err := wb.eachNode(src, func(n xmlnode.Node) {
		for _, it := range n {
			if it.Name != "Relationship" {
				continue
			}
			id, target := it.Attr("Id"), normalizeTarget(it.Attr("Target"))
			if id == "" || target == "" {
				continue
			}
			wb.rels[id] = target
			wb.targets[target] = id
		}
	})
	if err != nil {
		return err
	}
	wb.relsDone = true
	wb.log.Debug("relationships parsed", zap.Int("relationships", len(wb.rels)))
	return nil
}

// ParseSharedStrings reads xl/sharedStrings.xml. Every si element yields
// exactly one entry; rich text runs are concatenated.
func (wb *Workbook) ParseSharedStrings(src NodeSource) error {
	var (
		current strings.Builder
		open    bool
	)
	err := wb.eachNode(src, func(n xmlnode.Node) {
		for _, it := range n {
			switch {
			case it.IsText():
				if open {
					current.WriteString(it.Text)
				}
			case it.Name == "sst":
				if c, err := strconv.Atoi(it.Attr("uniqueCount")); err == nil && c > 0 && wb.sharedStrings == nil {
					wb.sharedStrings = make([]string, 0, c)
				}
			case it.Name == "si":
				if open {
					wb.sharedStrings = append(wb.sharedStrings, current.String())
				}
				current.Reset()
				open = true
			}
		}
	})
	if err != nil {
		return err
	}
	if open {
		wb.sharedStrings = append(wb.sharedStrings, current.String())
	}
	wb.sharedStringsDone = true
	wb.log.Debug("shared strings parsed", zap.Int("count", len(wb.sharedStrings)))
	return nil
}

// ParseStyles reads xl/styles.xml: custom number formats and the numFmtId
// of every cellXfs record.
func (wb *Workbook) ParseStyles(src NodeSource) error {
	var section string
	err := wb.eachNode(src, func(n xmlnode.Node) {
		for _, it := range n {
			if it.IsText() {
				continue
			}
			if it.Depth == 1 {
				section = it.Name
			}
			switch {
			case it.Name == "numFmt" && section == "numFmts":
				id, err := strconv.Atoi(it.Attr("numFmtId"))
				if err != nil {
					wb.log.Warn("invalid number format id", zap.String("numFmtId", it.Attr("numFmtId")))
					continue
				}
				wb.numFmts[id] = it.Attr("formatCode")
			case it.Name == "xf" && section == "cellXfs":
				id, err := strconv.Atoi(it.Attr("numFmtId"))
				if err != nil {
					id = 0
				}
				wb.xfs = append(wb.xfs, id)
			}
		}
	})
	if err != nil {
		return err
	}
	wb.stylesDone = true
	wb.log.Debug("styles parsed",
		zap.Int("number_formats", len(wb.numFmts)),
		zap.Int("cell_xfs", len(wb.xfs)))
	return nil
}

// SheetName resolves a worksheet path relative to xl/ (for example
// "worksheets/sheet1.xml") to its declared name. It returns "" when the
// path is not declared.
func (wb *Workbook) SheetName(sheetPath string) string {
	id, ok := wb.targets[normalizeTarget(sheetPath)]
	if !ok {
		return ""
	}
	return wb.names[id]
}

// Sheets returns the declared sheets in workbook order with their targets.
func (wb *Workbook) Sheets() []models.SheetRef {
	out := make([]models.SheetRef, len(wb.sheets))
	for i, s := range wb.sheets {
		s.Target = wb.rels[s.RelID]
		out[i] = s
	}
	return out
}

// SharedString returns the entry at index. A missing index yields "" and,
// in verbose mode, a warning.
func (wb *Workbook) SharedString(index int) string {
	if index < 0 || index >= len(wb.sharedStrings) {
		wb.warn("xl/sharedStrings.xml", fmt.Errorf("%w: %d", ErrMissingSharedString, index))
		return ""
	}
	return wb.sharedStrings[index]
}

// SharedStringCount returns the size of the shared string table.
func (wb *Workbook) SharedStringCount() int {
	return len(wb.sharedStrings)
}

// NumberFormat resolves a cell style index to its number format code.
// Custom formats take precedence over built-in ones.
func (wb *Workbook) NumberFormat(style int) (string, bool) {
	if style < 0 || style >= len(wb.xfs) {
		return "", false
	}
	id := wb.xfs[style]
	if code, ok := wb.numFmts[id]; ok {
		return code, true
	}
	return numfmt.BuiltIn(id)
}

// Format renders v with the number format code.
func (wb *Workbook) Format(v float64, code string) (string, error) {
	return wb.formatter.Format(v, code)
}

// Date1904 reports whether the workbook uses the 1904 date system.
func (wb *Workbook) Date1904() bool {
	return wb.date1904
}

// DefinedNames returns the defined names declared in the workbook.
func (wb *Workbook) DefinedNames() []DefinedName {
	return wb.defined
}

// Info summarizes the workbook metadata.
func (wb *Workbook) Info() models.WorkbookInfo {
	return models.WorkbookInfo{
		Sheets:        wb.Sheets(),
		SharedStrings: len(wb.sharedStrings),
		Date1904:      wb.date1904,
	}
}

func (wb *Workbook) warn(entry string, err error) {
	if !wb.opts.Verbose {
		return
	}
	w := NewWarning(entry, err)
	wb.log.Warn("parse warning", zap.String("entry", entry), zap.Error(err))
	if wb.opts.OnWarning != nil {
		wb.opts.OnWarning(w)
	}
}

// eachNode feeds every node of src to fn. It stops with ErrAborted before
// the next node once the workbook is aborted.
func (wb *Workbook) eachNode(src NodeSource, fn func(xmlnode.Node)) error {
	for {
		if wb.Aborted() {
			return ErrAborted
		}
		n, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(n)
	}
}

// normalizeTarget resolves a relationship target to a path relative to xl/.
func normalizeTarget(target string) string {
	if target == "" {
		return ""
	}
	var p string
	if strings.HasPrefix(target, "/") {
		p = path.Clean(target[1:])
	} else {
		p = path.Clean("xl/" + target)
	}
	return strings.TrimPrefix(p, "xl/")
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "on":
		return true
	}
	return false
}
