package xmlnode

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultSkip is the phonetic annotation element whose subtree is dropped
// from rich text.
const DefaultSkip = "rPh"

const xmlnsSpace = "xmlns"

// Options configures an Assembler.
type Options struct {
	// Entry names the part being parsed, for log context.
	Entry string
	// Skip is the element whose subtree is suppressed. Defaults to DefaultSkip.
	Skip string
	// Logger receives warnings about swallowed errors. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Assembler turns the token stream of one XML part into nodes. It is not
// safe for concurrent use.
type Assembler struct {
	dec  *xml.Decoder
	rec  *recorder
	skip string
	log  *zap.Logger

	buf      Node
	flush    bool
	skipping bool
	skipAt   int
	depth    int
	preserve []bool

	text    strings.Builder
	hasText bool

	queue []Node
	err   error
}

// New returns an Assembler reading XML from r. A byte order mark selects
// UTF-16 decoding; legacy encodings declared in the prolog are converted
// to UTF-8.
func New(r io.Reader, opts Options) *Assembler {
	if opts.Skip == "" {
		opts.Skip = DefaultSkip
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	a := &Assembler{
		skip: opts.Skip,
		log:  opts.Logger.With(zap.String("entry", opts.Entry)),
	}
	utf := transform.NewReader(r, unicode.BOMOverride(transform.Nop))
	a.rec = newRecorder(utf)
	a.dec = xml.NewDecoder(a.rec)
	a.dec.CharsetReader = a.charsetReader
	return a
}

func (a *Assembler) charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "utf-8", "utf8", "utf-16", "utf-16le", "utf-16be", "unicode":
		// Already UTF-8 after BOM handling.
		return input, nil
	}
	cr, err := charset.NewReaderLabel(label, input)
	if err != nil {
		return nil, err
	}
	a.rec = newRecorder(cr)
	return a.rec, nil
}

// Next returns the next assembled node. It returns io.EOF at the end of the
// document. Malformed XML is reported as an error, except inside a skipped
// subtree where it ends the document early.
func (a *Assembler) Next() (Node, error) {
	for len(a.queue) == 0 {
		if a.err != nil {
			return nil, a.err
		}
		a.step()
	}
	n := a.queue[0]
	a.queue[0] = nil
	a.queue = a.queue[1:]
	return n, nil
}

// All drains the assembler and returns every node.
func (a *Assembler) All() ([]Node, error) {
	var nodes []Node
	for {
		n, err := a.Next()
		if errors.Is(err, io.EOF) {
			return nodes, nil
		}
		if err != nil {
			return nodes, err
		}
		nodes = append(nodes, n)
	}
}

func (a *Assembler) step() {
	tok, err := a.dec.Token()
	if err != nil {
		a.fail(err)
		return
	}
	switch t := tok.(type) {
	case xml.StartElement:
		selfClosing := a.rec.endsSelfClosing()
		a.flushText()
		a.open(t, selfClosing)
	case xml.EndElement:
		a.flushText()
		a.close(t.Name.Local)
	case xml.CharData:
		a.text.Write(t)
		a.hasText = true
	}
}

func (a *Assembler) fail(err error) {
	if errors.Is(err, io.EOF) {
		a.flushText()
		a.err = io.EOF
		return
	}
	var syntax *xml.SyntaxError
	if a.skipping && errors.As(err, &syntax) {
		a.log.Warn("xml error inside skipped element", zap.String("element", a.skip), zap.Error(err))
		a.err = io.EOF
		return
	}
	a.err = fmt.Errorf("xml: %w", err)
}

func (a *Assembler) open(t xml.StartElement, selfClosing bool) {
	depth := a.depth
	a.depth++
	a.preserve = append(a.preserve, a.preserved() || isPreserve(t.Attr))

	if a.skipping {
		return
	}
	if t.Name.Local == a.skip {
		a.skipping = true
		a.skipAt = depth
		return
	}
	if selfClosing {
		if len(a.buf) > 0 {
			a.emit()
		}
		a.flush = true
	}
	a.buf = append(a.buf, Item{Name: t.Name.Local, Attrs: attrMap(t.Attr), Depth: depth})
}

func (a *Assembler) close(name string) {
	a.depth--
	if len(a.preserve) > 0 {
		a.preserve = a.preserve[:len(a.preserve)-1]
	}

	if a.skipping {
		if name == a.skip && a.depth == a.skipAt {
			a.skipping = false
		}
		return
	}
	switch {
	case a.flush:
		a.emit()
	case len(a.buf) > 0 && !a.buf[len(a.buf)-1].text && a.buf[len(a.buf)-1].Name == name:
		a.buf = append(a.buf, NewText(""))
		a.emit()
	case len(a.buf) > 0:
		a.buf = a.buf[:len(a.buf)-1]
	}
}

func (a *Assembler) flushText() {
	if !a.hasText {
		return
	}
	raw := a.text.String()
	a.text.Reset()
	a.hasText = false
	if a.skipping || a.depth == 0 {
		return
	}
	s := raw
	if !a.preserved() {
		s = strings.Join(strings.Fields(raw), " ")
	}
	if s == "" {
		return
	}
	a.flush = true
	a.buf = append(a.buf, NewText(s))
}

func (a *Assembler) emit() {
	if len(a.buf) > 0 {
		a.queue = append(a.queue, a.buf)
	}
	a.buf = nil
	a.flush = false
}

func (a *Assembler) preserved() bool {
	return len(a.preserve) > 0 && a.preserve[len(a.preserve)-1]
}

func isPreserve(attrs []xml.Attr) bool {
	for _, at := range attrs {
		if at.Name.Local == "space" && (at.Name.Space == "xml" || strings.HasSuffix(at.Name.Space, "/XML/1998/namespace")) {
			return at.Value == "preserve"
		}
	}
	return false
}

func attrMap(attrs []xml.Attr) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]string, len(attrs))
	for _, at := range attrs {
		if at.Name.Space == xmlnsSpace || (at.Name.Space == "" && at.Name.Local == xmlnsSpace) {
			continue
		}
		m[at.Name.Local] = at.Value
	}
	return m
}

// recorder remembers the last two bytes handed to the decoder. The decoder
// reads byte by byte through io.ByteReader, so right after a start element
// those bytes tell whether the tag ended with "/>".
type recorder struct {
	r    *bufio.Reader
	last [2]byte
}

func newRecorder(r io.Reader) *recorder {
	return &recorder{r: bufio.NewReader(r)}
}

func (rc *recorder) ReadByte() (byte, error) {
	b, err := rc.r.ReadByte()
	if err == nil {
		rc.last[0], rc.last[1] = rc.last[1], b
	}
	return b, err
}

func (rc *recorder) Read(p []byte) (int, error) {
	n, err := rc.r.Read(p)
	switch {
	case n >= 2:
		rc.last[0], rc.last[1] = p[n-2], p[n-1]
	case n == 1:
		rc.last[0], rc.last[1] = rc.last[1], p[0]
	}
	return n, err
}

func (rc *recorder) endsSelfClosing() bool {
	return rc.last[0] == '/' && rc.last[1] == '>'
}
