package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/models"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/numfmt"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/xmlnode"
	"go.uber.org/zap"
)

// WorksheetConfig identifies a worksheet part.
type WorksheetConfig struct {
	// ID is the number taken from the part name (sheet<N>.xml).
	ID int
	// Name is the display name declared in the workbook.
	Name string
	// Path is the archive path of the part.
	Path string
	// Replayed reports whether the part is read back from the spool.
	Replayed bool
}

type cellPart int

const (
	partNone cellPart = iota
	partFormula
	partValue
	partInline
)

type cellState struct {
	ref      string
	typ      string
	style    int
	hasStyle bool

	part    cellPart
	formula strings.Builder
	value   strings.Builder
	inline  strings.Builder

	hasFormula bool
	isInline   bool
}

type rowState struct {
	number      int
	lastCol     int
	values      []any
	formulas    []string
	formats     []string
	hasFormulas bool
}

func (r *rowState) grow(col int) {
	for len(r.values) <= col {
		r.values = append(r.values, nil)
	}
}

// Worksheet reconstructs the rows of one worksheet part. Rows are pulled
// with NextRow or Rows; nothing is read from the part until then. A
// Worksheet is not safe for concurrent use, except for Abort.
type Worksheet struct {
	book *Workbook
	cfg  WorksheetConfig
	log  *zap.Logger

	r   io.Reader
	src NodeSource

	aborted atomic.Bool
	done    bool
	err     error

	section     element
	sectionName string
	row         *rowState
	cell        *cellState
	lastRow     int
	rowCount    int
	ready       []models.Row

	columns []models.Column
	aux     map[string][]xmlnode.Node
	bounds  Bounds
}

// NewWorksheet returns a Worksheet reading the part from r.
func NewWorksheet(book *Workbook, cfg WorksheetConfig, r io.Reader) *Worksheet {
	return &Worksheet{
		book: book,
		cfg:  cfg,
		log: book.log.With(
			zap.Int("sheet_id", cfg.ID),
			zap.String("sheet", cfg.Name)),
		r:   r,
		aux: make(map[string][]xmlnode.Node),
	}
}

// ID returns the number taken from the part name.
func (w *Worksheet) ID() int {
	return w.cfg.ID
}

// Name returns the declared display name.
func (w *Worksheet) Name() string {
	return w.cfg.Name
}

// Path returns the archive path of the part.
func (w *Worksheet) Path() string {
	return w.cfg.Path
}

// Replayed reports whether the part was read back from the spool.
func (w *Worksheet) Replayed() bool {
	return w.cfg.Replayed
}

// RowCount returns the number of rows emitted so far.
func (w *Worksheet) RowCount() int {
	return w.rowCount
}

// Columns returns the column declarations seen so far.
func (w *Worksheet) Columns() []models.Column {
	return w.columns
}

// Aux returns the nodes of a top-level element kept as auxiliary sheet
// data, in document order.
func (w *Worksheet) Aux(name string) []xmlnode.Node {
	return w.aux[name]
}

// Dimension returns the declared used range, or "" if the part has no
// dimension element or it has not been read yet.
func (w *Worksheet) Dimension() string {
	for _, n := range w.aux["dimension"] {
		if it, ok := n.Head(); ok {
			return it.Attr("ref")
		}
	}
	return ""
}

// PrintAreas returns the print areas defined for this sheet.
func (w *Worksheet) PrintAreas() []models.PrintArea {
	return w.book.PrintAreas(w.cfg.Name)
}

// Info returns the sheet identity and head metadata.
func (w *Worksheet) Info() models.SheetInfo {
	return models.SheetInfo{
		ID:         w.cfg.ID,
		Name:       w.cfg.Name,
		Path:       w.cfg.Path,
		Dimension:  w.Dimension(),
		Columns:    w.columns,
		PrintAreas: w.PrintAreas(),
		Replayed:   w.cfg.Replayed,
	}
}

// Summary returns what was observed in the rows emitted so far.
func (w *Worksheet) Summary() models.SheetSummary {
	return models.SheetSummary{
		Sheet:          w.Info(),
		Rows:           w.rowCount,
		UsedRange:      w.bounds.Range(),
		NonEmptyCells:  w.bounds.Cells(),
		Density:        w.bounds.Density(),
		TableCandidate: w.bounds.LooksLikeTable(DefaultTableParams()),
	}
}

// Done reports whether the part has been consumed.
func (w *Worksheet) Done() bool {
	return w.done || w.err != nil
}

// Err returns the fatal error that ended the worksheet, if any.
func (w *Worksheet) Err() error {
	return w.err
}

// Abort stops row emission. The rest of the part is drained on the next
// call to NextRow, which then reports io.EOF. It is safe to call from any
// goroutine.
func (w *Worksheet) Abort() {
	w.aborted.Store(true)
}

// Skip drains the rest of the part without assembling nodes.
func (w *Worksheet) Skip() error {
	if w.Done() {
		return w.err
	}
	w.drain()
	return w.err
}

// NextRow returns the next completed row. It returns io.EOF once the part
// is consumed and ErrAborted if the workbook was aborted.
func (w *Worksheet) NextRow(ctx context.Context) (models.Row, error) {
	for {
		if w.book.Aborted() {
			return models.Row{}, ErrAborted
		}
		if len(w.ready) > 0 {
			row := w.ready[0]
			w.ready[0] = models.Row{}
			w.ready = w.ready[1:]
			return row, nil
		}
		if w.err != nil {
			return models.Row{}, w.err
		}
		if w.done {
			return models.Row{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return models.Row{}, err
		}
		if w.aborted.Load() {
			w.log.Debug("worksheet aborted", zap.Int("rows", w.rowCount))
			w.drain()
			continue
		}

		n, err := w.source().Next()
		if errors.Is(err, io.EOF) {
			w.finish()
			continue
		}
		if err != nil {
			w.err = err
			continue
		}
		if err := w.handle(n); err != nil {
			w.err = err
		}
	}
}

// Rows returns an iterator over the remaining rows. Iteration stops after
// the first error, which is yielded with a zero Row.
func (w *Worksheet) Rows(ctx context.Context) iter.Seq2[models.Row, error] {
	return func(yield func(models.Row, error) bool) {
		for {
			row, err := w.NextRow(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(models.Row{}, err)
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

func (w *Worksheet) source() NodeSource {
	if w.src == nil {
		w.src = xmlnode.New(w.r, xmlnode.Options{Entry: w.cfg.Path, Logger: w.log})
	}
	return w.src
}

func (w *Worksheet) drain() {
	w.row, w.cell = nil, nil
	w.done = true
	if w.r == nil {
		return
	}
	if _, err := io.Copy(io.Discard, w.r); err != nil {
		w.err = err
	}
}

func (w *Worksheet) finish() {
	w.flushRow()
	w.done = true
	w.log.Debug("worksheet complete",
		zap.Int("rows", w.rowCount),
		zap.String("used_range", w.bounds.Range()))
}

// handle advances the state machine over one node.
func (w *Worksheet) handle(n xmlnode.Node) error {
	for i, it := range n {
		if it.IsText() {
			w.text(it.Text)
			continue
		}
		kind := classify(it.Name)

		if it.Depth == 0 {
			continue
		}
		if it.Depth == 1 {
			w.section, w.sectionName = kind, it.Name
			switch kind {
			case elemSheetData, elemCols, elemIgnored:
				continue
			case elemPagination:
				w.flushRow()
				return nil
			default:
				w.aux[it.Name] = append(w.aux[it.Name], n[i:])
				return nil
			}
		}

		switch w.section {
		case elemSheetData:
			if err := w.handleRowItem(kind, it); err != nil {
				return err
			}
		case elemCols:
			if kind == elemCol {
				w.columns = append(w.columns, parseColumn(it))
			}
		case elemOther:
			w.aux[w.sectionName] = append(w.aux[w.sectionName], n[i:])
			return nil
		default:
			return nil
		}
	}
	return nil
}

func (w *Worksheet) handleRowItem(kind element, it xmlnode.Item) error {
	switch kind {
	case elemRow:
		w.flushRow()
		return w.startRow(it)
	case elemCell:
		if w.row == nil {
			return fmt.Errorf("cell %q outside a row", it.Attr("r"))
		}
		w.finishCell()
		w.cell = newCell(it)
		return nil
	}

	c := w.cell
	if c == nil {
		return nil
	}
	switch kind {
	case elemFormula:
		c.part = partFormula
		c.hasFormula = true
	case elemValue:
		c.part = partValue
	case elemInlineString:
		c.part = partInline
		c.isInline = true
	case elemRun, elemText:
		if c.isInline {
			c.part = partInline
		} else {
			c.part = partNone
		}
	default:
		c.part = partNone
	}
	return nil
}

func (w *Worksheet) text(s string) {
	if w.section != elemSheetData || w.cell == nil {
		return
	}
	switch w.cell.part {
	case partFormula:
		w.cell.formula.WriteString(s)
	case partValue:
		w.cell.value.WriteString(s)
	case partInline:
		w.cell.inline.WriteString(s)
	}
}

func newCell(it xmlnode.Item) *cellState {
	c := &cellState{ref: it.Attr("r"), typ: it.Attr("t")}
	if s, ok := it.LookupAttr("s"); ok {
		if style, err := strconv.Atoi(s); err == nil {
			c.style, c.hasStyle = style, true
		}
	}
	return c
}

func (w *Worksheet) startRow(it xmlnode.Item) error {
	number := w.lastRow + 1
	if v, ok := it.LookupAttr("r"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("row number %q: %w", v, err)
		}
		number = n
	}
	if number <= w.lastRow {
		return fmt.Errorf("%w: row %d after row %d", ErrRowOrder, number, w.lastRow)
	}
	w.lastRow = number
	w.row = &rowState{number: number, lastCol: -1}
	return nil
}

func (w *Worksheet) finishCell() {
	c := w.cell
	w.cell = nil
	if c == nil || w.row == nil {
		return
	}

	col := w.row.lastCol + 1
	if c.ref != "" {
		idx, err := ColumnIndex(c.ref)
		if err != nil {
			w.log.Warn("invalid cell reference", zap.String("ref", c.ref), zap.Error(err))
		} else {
			col = idx
		}
	}
	w.row.lastCol = col

	value, format := w.cellValue(c)
	r := w.row
	r.grow(col)
	r.values[col] = value

	if f := c.formula.String(); c.hasFormula && f != "" {
		for len(r.formulas) <= col {
			r.formulas = append(r.formulas, "")
		}
		r.formulas[col] = f
		r.hasFormulas = true
	}
	if w.book.opts.ReturnFormats {
		for len(r.formats) <= col {
			r.formats = append(r.formats, "")
		}
		r.formats[col] = format
	}
}

// cellValue dispatches on the cell type. It returns the value and the
// format code applied to it, if any.
func (w *Worksheet) cellValue(c *cellState) (any, string) {
	raw := c.value.String()
	switch c.typ {
	case "s":
		if raw == "" {
			return "", ""
		}
		idx, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			w.book.warn(w.cfg.Path, fmt.Errorf("%w: %q", ErrMissingSharedString, raw))
			return "", ""
		}
		return w.book.SharedString(idx), ""
	case "inlineStr":
		if c.isInline {
			return c.inline.String(), ""
		}
		return raw, ""
	}

	if raw == "" {
		return "", ""
	}
	if w.book.opts.Formatting && c.hasStyle {
		if code, ok := w.book.NumberFormat(c.style); ok {
			return w.formatValue(raw, code), code
		}
	}
	return parseValue(raw), ""
}

func (w *Worksheet) formatValue(raw, code string) any {
	if numfmt.IsGeneral(code) {
		return parseValue(raw)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return raw
	}
	out, err := w.book.Format(v, code)
	if err != nil {
		if !errors.Is(err, numfmt.ErrUnsupported) {
			w.log.Debug("number format failed", zap.String("code", code), zap.Error(err))
		}
		return raw
	}
	return out
}

func (w *Worksheet) flushRow() {
	w.finishCell()
	r := w.row
	if r == nil {
		return
	}
	w.row = nil

	row := models.Row{Number: r.number, Values: r.values}
	if row.Values == nil {
		row.Values = []any{}
	}
	if r.hasFormulas {
		for len(r.formulas) < len(row.Values) {
			r.formulas = append(r.formulas, "")
		}
		row.Formulas = r.formulas
	}
	if w.book.opts.ReturnFormats {
		for len(r.formats) < len(row.Values) {
			r.formats = append(r.formats, "")
		}
		row.Formats = r.formats
		if row.Formats == nil {
			row.Formats = []string{}
		}
	}

	w.rowCount++
	w.bounds.ObserveRow(row)
	w.ready = append(w.ready, row)
}

func parseColumn(it xmlnode.Item) models.Column {
	col := models.Column{
		CustomWidth: parseBool(it.Attr("customWidth")),
		Hidden:      parseBool(it.Attr("hidden")),
	}
	col.Min, _ = strconv.Atoi(it.Attr("min"))
	col.Max, _ = strconv.Atoi(it.Attr("max"))
	col.Width, _ = strconv.ParseFloat(it.Attr("width"), 64)
	return col
}
