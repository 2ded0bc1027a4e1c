// Package pipeline drives a Reader over one worksheet and hands its rows to
// a caller-supplied handler as header-keyed records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/models"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/parser"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Record is one data row keyed by column.
type Record struct {
	// Index is the 0-based position among emitted records.
	Index int `json:"index"`
	// Row is the 1-based worksheet row number.
	Row int `json:"row"`
	// Values maps column keys to cell values.
	Values map[string]any `json:"values"`
	// Formats maps column keys to format codes, when requested.
	Formats map[string]string `json:"formats,omitempty"`
}

// Handler receives records in chunks. Returning an error stops the run.
type Handler func(ctx context.Context, records []Record) error

// Config configures Process.
type Config struct {
	// SheetID selects the worksheet (sheet<N>.xml). Default 1.
	SheetID int
	// HasHeaders treats the first row as column keys. Default true.
	HasHeaders *bool
	// MapColumns turns a header cell into a column key. An empty key drops
	// the column. Default renders the value with fmt.
	MapColumns func(value any, index int) string
	// ChunkSize is the number of records per handler call. Default 1.
	ChunkSize int
	// Limit stops the run after that many records. Zero means no limit.
	Limit int
	// Buffer is the number of chunks queued ahead of the handler. Default 1.
	Buffer int
	// OnLineCount receives the number of data rows declared by the sheet
	// dimension, before the first record.
	OnLineCount func(n int)
	// Reader configures the underlying reader.
	Reader xlsxstream.Options
}

// ShouldHaveHeaders returns whether the first row holds column keys.
func (c Config) ShouldHaveHeaders() bool {
	if c.HasHeaders == nil {
		return true
	}
	return *c.HasHeaders
}

func (c Config) withDefaults() Config {
	if c.SheetID <= 0 {
		c.SheetID = 1
	}
	if c.MapColumns == nil {
		c.MapColumns = defaultColumnKey
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1
	}
	if c.Buffer <= 0 {
		c.Buffer = 1
	}
	if c.Reader.Logger == nil {
		c.Reader.Logger = zap.NewNop()
	}
	return c
}

func defaultColumnKey(v any, _ int) string {
	if isEmpty(v) {
		return ""
	}
	return fmt.Sprint(v)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Process streams the selected worksheet of r into handle and returns the
// number of records the handler accepted.
func Process(ctx context.Context, r io.Reader, cfg Config, handle Handler) (int, error) {
	cfg = cfg.withDefaults()
	src, err := Sniff(r)
	if err != nil {
		return 0, err
	}

	rd := xlsxstream.NewReader(src, cfg.Reader)
	defer rd.Close()

	g, ctx := errgroup.WithContext(ctx)
	chunks := make(chan []Record, cfg.Buffer)
	p := &producer{cfg: cfg, rd: rd, out: chunks, log: cfg.Reader.Logger}

	g.Go(func() error {
		defer close(chunks)
		return p.run(ctx)
	})

	processed := 0
	g.Go(func() error {
		for chunk := range chunks {
			if err := handle(ctx, chunk); err != nil {
				return err
			}
			processed += len(chunk)
		}
		return nil
	})

	err = g.Wait()
	return processed, err
}

type producer struct {
	cfg Config
	rd  *xlsxstream.Reader
	out chan<- []Record
	log *zap.Logger

	header []string
	index  int
	chunk  []Record
}

func (p *producer) run(ctx context.Context) error {
	found := false
	for {
		ws, err := p.rd.NextSheet(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if ws.ID() != p.cfg.SheetID || found {
			p.log.Debug("skipping worksheet", zap.Int("sheet_id", ws.ID()), zap.String("sheet", ws.Name()))
			if err := ws.Skip(); err != nil {
				return err
			}
			continue
		}

		found = true
		limited, err := p.sheet(ctx, ws)
		if err != nil {
			return err
		}
		if limited {
			p.rd.Abort()
			return p.flush(ctx)
		}
	}
	if !found {
		return fmt.Errorf("%w: sheet %d", ErrNoWorksheet, p.cfg.SheetID)
	}
	return p.flush(ctx)
}

// sheet emits the rows of ws. It reports whether the limit was reached.
func (p *producer) sheet(ctx context.Context, ws *parser.Worksheet) (bool, error) {
	first := true
	for row, err := range ws.Rows(ctx) {
		if err != nil {
			return false, err
		}
		if first {
			first = false
			p.lineCount(ws.Dimension())
			if p.cfg.ShouldHaveHeaders() {
				if err := p.setHeader(row); err != nil {
					return false, err
				}
				continue
			}
		}
		if row.IsEmpty() {
			continue
		}

		p.chunk = append(p.chunk, p.record(row.Number, row.Values, row.Formats))
		p.index++
		if len(p.chunk) >= p.cfg.ChunkSize {
			if err := p.flush(ctx); err != nil {
				return false, err
			}
		}
		if p.cfg.Limit > 0 && p.index >= p.cfg.Limit {
			p.log.Debug("record limit reached", zap.Int("limit", p.cfg.Limit))
			return true, nil
		}
	}
	return false, nil
}

var trailingDigits = regexp.MustCompile(`\d+$`)

func (p *producer) lineCount(dimension string) {
	if p.cfg.OnLineCount == nil || dimension == "" {
		return
	}
	n, err := strconv.Atoi(trailingDigits.FindString(dimension))
	if err != nil {
		return
	}
	if p.cfg.ShouldHaveHeaders() {
		n--
	}
	p.cfg.OnLineCount(n)
}

func (p *producer) setHeader(row models.Row) error {
	if row.IsEmpty() {
		return ErrEmptyHeader
	}
	p.header = make([]string, len(row.Values))
	for i, v := range row.Values {
		p.header[i] = p.cfg.MapColumns(v, i)
	}
	return nil
}

func (p *producer) record(number int, values []any, formats []string) Record {
	rec := Record{Index: p.index, Row: number, Values: make(map[string]any)}
	if formats != nil {
		rec.Formats = make(map[string]string)
	}
	put := func(key string, i int) {
		if i < len(values) {
			rec.Values[key] = values[i]
		} else {
			rec.Values[key] = nil
		}
		if rec.Formats != nil && i < len(formats) && formats[i] != "" {
			rec.Formats[key] = formats[i]
		}
	}

	if p.header == nil {
		for i, v := range values {
			if !isEmpty(v) {
				put(strconv.Itoa(i+1), i)
			}
		}
		return rec
	}
	for i, key := range p.header {
		if key != "" {
			put(key, i)
		}
	}
	return rec
}

func (p *producer) flush(ctx context.Context) error {
	if len(p.chunk) == 0 {
		return nil
	}
	chunk := p.chunk
	p.chunk = nil
	select {
	case p.out <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
