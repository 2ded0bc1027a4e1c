package xlsxstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/metrics"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/parser"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/spool"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/xmlnode"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/zipstream"
	"go.uber.org/zap"
)

// Well-known part paths.
const (
	PathWorkbook      = "xl/workbook.xml"
	PathRelationships = "xl/_rels/workbook.xml.rels"
	PathSharedStrings = "xl/sharedStrings.xml"
	PathStyles        = "xl/styles.xml"
)

var sheetPattern = regexp.MustCompile(`^xl/(worksheets/sheet(\d+)\.xml)$`)

// Reader pulls worksheets out of a spreadsheet package one at a time.
//
// Metadata parts are consumed as they arrive. A worksheet that arrives
// before the metadata it needs, or while another worksheet is waiting, is
// spooled and handed out after the container ends, in arrival order.
// A Reader is not safe for concurrent use, except for Abort.
type Reader struct {
	opts    Options
	log     *zap.Logger
	metrics *metrics.Collector
	started time.Time

	zr    *zipstream.Reader
	book  *parser.Workbook
	spool *spool.Buffer

	current       *parser.Worksheet
	currentCloser io.Closer
	zipDone       bool
	err           error

	closeOnce sync.Once
	closeErr  error
}

// NewReader returns a Reader consuming the package bytes from r.
func NewReader(r io.Reader, opts Options) *Reader {
	log := opts.logger().With(zap.String("run_id", uuid.NewString()))
	rd := &Reader{
		opts:    opts,
		log:     log,
		metrics: opts.Metrics,
		started: time.Now(),
		zr:      zipstream.NewReader(r),
	}
	rd.book = parser.NewWorkbook(parser.WorkbookOptions{
		Verbose:       opts.Verbose,
		Formatting:    opts.ShouldFormat(),
		ReturnFormats: opts.ReturnFormats,
		OnWarning:     rd.onWarning,
		Logger:        log,
	})

	var backend spool.Backend
	if opts.SpoolInMemory {
		backend = spool.NewMemoryBackend()
	} else {
		backend = spool.NewFileBackend(opts.SpoolDir)
	}
	rd.spool = spool.NewBuffer(backend, spool.Options{Compress: opts.SpoolCompression, Logger: log})
	return rd
}

func (r *Reader) onWarning(w *parser.Warning) {
	r.metrics.ObserveWarning()
	if r.opts.OnWarning != nil {
		r.opts.OnWarning(w)
	}
}

// Workbook returns the metadata gathered so far.
func (r *Reader) Workbook() *parser.Workbook {
	return r.book
}

// Abort stops the parse. The current worksheet stops emitting rows and
// the next call to NextSheet returns ErrAborted. It is safe to call from
// any goroutine.
func (r *Reader) Abort() {
	r.book.Abort()
}

// NextSheet returns the next worksheet to read. The previous worksheet is
// drained first if the caller did not consume it. NextSheet returns io.EOF
// once every worksheet has been handed out; any other error is fatal and
// returned by every later call.
func (r *Reader) NextSheet(ctx context.Context) (*parser.Worksheet, error) {
	if r.err != nil {
		return nil, r.err
	}
	if err := r.finishCurrent(); err != nil {
		return nil, r.fail(err)
	}

	for {
		if r.book.Aborted() {
			return nil, r.fail(ErrAborted)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if r.zipDone {
			return r.replay()
		}

		e, err := r.zr.Next()
		if errors.Is(err, io.EOF) {
			r.zipDone = true
			r.log.Debug("container drained",
				zap.Int("entries", r.zr.Entries()),
				zap.Int("spooled", r.spool.Total()))
			continue
		}
		if err != nil {
			return nil, r.fail(NewParseError("", "container", fmt.Errorf("%w: %w", ErrInvalidContainer, err)))
		}

		ws, err := r.route(ctx, e)
		if err != nil {
			return nil, r.fail(err)
		}
		if ws != nil {
			return ws, nil
		}
	}
}

// route dispatches one container entry. It returns a worksheet when the
// entry can be read directly. Metadata parsing and spooling stop as soon as
// the workbook is aborted or ctx is done.
func (r *Reader) route(ctx context.Context, e *zipstream.Entry) (*parser.Worksheet, error) {
	body := &guardedReader{ctx: ctx, book: r.book, r: e}
	parse := func(component string, fn func(parser.NodeSource) error) error {
		r.metrics.ObserveEntry(component)
		r.log.Debug("parsing entry", zap.String("entry", e.Name))
		src := xmlnode.New(body, xmlnode.Options{Entry: e.Name, Logger: r.log})
		if err := fn(src); err != nil {
			return entryError(e.Name, component, err)
		}
		return nil
	}

	switch e.Name {
	case PathWorkbook:
		return nil, parse(metrics.RouteWorkbook, r.book.ParseWorkbook)
	case PathRelationships:
		return nil, parse(metrics.RouteRelationships, r.book.ParseRelationships)
	case PathSharedStrings:
		return nil, parse(metrics.RouteSharedStrings, r.book.ParseSharedStrings)
	case PathStyles:
		return nil, parse(metrics.RouteStyles, r.book.ParseStyles)
	}

	m := sheetPattern.FindStringSubmatch(e.Name)
	if m == nil {
		r.metrics.ObserveEntry(metrics.RouteDrained)
		if err := e.Drain(); err != nil {
			return nil, entryError(e.Name, "container", err)
		}
		return nil, nil
	}
	id, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, NewParseError(e.Name, "container", err)
	}

	if r.book.Ready() && r.spool.Len() == 0 {
		r.metrics.ObserveEntry(metrics.RouteWorksheet)
		r.metrics.ObserveSheet(metrics.SheetDirect)
		ws := parser.NewWorksheet(r.book, parser.WorksheetConfig{
			ID:   id,
			Name: r.book.SheetName(m[1]),
			Path: e.Name,
		}, e)
		r.current = ws
		r.log.Debug("reading worksheet", zap.String("entry", e.Name), zap.String("sheet", ws.Name()))
		return ws, nil
	}

	r.metrics.ObserveEntry(metrics.RouteSpooled)
	n, err := r.spool.Add(spool.Entry{SheetID: id, Path: e.Name, SheetPath: m[1]}, body)
	if err != nil {
		return nil, entryError(e.Name, "spool", err)
	}
	r.metrics.ObserveSpool(n)
	return nil, nil
}

// replay hands out the next spooled worksheet, or ends the run.
func (r *Reader) replay() (*parser.Worksheet, error) {
	entry, rc, err := r.spool.Next()
	if errors.Is(err, io.EOF) {
		r.complete()
		return nil, io.EOF
	}
	if err != nil {
		return nil, r.fail(NewParseError(entry.Path, "spool", err))
	}

	r.metrics.ObserveSheet(metrics.SheetReplayed)
	ws := parser.NewWorksheet(r.book, parser.WorksheetConfig{
		ID:       entry.SheetID,
		Name:     r.book.SheetName(entry.SheetPath),
		Path:     entry.Path,
		Replayed: true,
	}, rc)
	r.current, r.currentCloser = ws, rc
	r.log.Debug("replaying worksheet",
		zap.String("entry", entry.Path),
		zap.String("sheet", ws.Name()),
		zap.Int64("bytes", entry.Size))
	return ws, nil
}

// finishCurrent drains the worksheet handed out last and surfaces its
// fatal error, if any.
func (r *Reader) finishCurrent() error {
	ws := r.current
	if ws == nil {
		return nil
	}
	r.current = nil
	defer r.closeCurrent()

	if r.book.Aborted() {
		return nil
	}
	if err := ws.Skip(); err != nil {
		return entryError(ws.Path(), "worksheet", err)
	}
	r.metrics.ObserveRows(ws.RowCount())
	return nil
}

// entryError wraps err for entry. Damage to the container itself is
// reported as a container error whichever component hit it.
func entryError(entry, component string, err error) error {
	if errors.Is(err, zipstream.ErrFormat) || errors.Is(err, zipstream.ErrChecksum) {
		return NewParseError(entry, "container", fmt.Errorf("%w: %w", ErrInvalidContainer, err))
	}
	return NewParseError(entry, component, err)
}

// guardedReader fails once the workbook is aborted or ctx is done.
type guardedReader struct {
	ctx  context.Context
	book *parser.Workbook
	r    io.Reader
}

func (g *guardedReader) Read(p []byte) (int, error) {
	if g.book.Aborted() {
		return 0, ErrAborted
	}
	if err := g.ctx.Err(); err != nil {
		return 0, err
	}
	return g.r.Read(p)
}

func (r *Reader) closeCurrent() {
	if r.currentCloser == nil {
		return
	}
	if err := r.currentCloser.Close(); err != nil {
		r.log.Warn("closing replayed worksheet", zap.Error(err))
	}
	r.currentCloser = nil
}

func (r *Reader) complete() {
	r.err = io.EOF
	r.metrics.ObserveDuration(time.Since(r.started))
	r.log.Debug("workbook complete",
		zap.Int("entries", r.zr.Entries()),
		zap.Int("replayed", r.spool.Total()),
		zap.Duration("elapsed", time.Since(r.started)))
	r.release()
}

// fail records err as the terminal error and releases the spool.
func (r *Reader) fail(err error) error {
	r.err = err
	if errors.Is(err, ErrAborted) {
		r.log.Debug("parse aborted")
	} else {
		r.metrics.ObserveError()
		r.log.Warn("parse failed", zap.Error(err))
	}
	r.closeCurrent()
	r.release()
	return err
}

func (r *Reader) release() {
	if err := r.spool.Close(); err != nil {
		r.log.Warn("releasing spool", zap.Error(err))
	}
}

// Close releases the spool storage. It is safe to call more than once.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		r.closeCurrent()
		r.closeErr = r.spool.Close()
		if r.err == nil {
			r.err = ErrClosed
		}
	})
	return r.closeErr
}
