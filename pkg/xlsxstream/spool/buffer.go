package spool

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// ErrClosed is returned by a Buffer after Close.
var ErrClosed = errors.New("spool: buffer closed")

// Entry describes one spooled worksheet part.
type Entry struct {
	// SheetID is the number taken from the part name (sheet<N>.xml).
	SheetID int
	// Path is the archive path the part arrived under.
	Path string
	// SheetPath is the path relative to xl/, used for name resolution.
	SheetPath string
	// Size is the number of uncompressed bytes spooled.
	Size int64

	name string
}

// Options configures a Buffer.
type Options struct {
	// Compress stores parts zstd-compressed.
	Compress bool
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Buffer queues parts and replays them in the order they were added.
type Buffer struct {
	backend  Backend
	compress bool
	log      *zap.Logger

	mu      sync.Mutex
	entries []Entry
	next    int
	seq     int
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

// NewBuffer returns a Buffer writing through backend.
func NewBuffer(backend Backend, opts Options) *Buffer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Buffer{backend: backend, compress: opts.Compress, log: opts.Logger}
}

// Add copies r into the backend and queues e for replay. It returns the
// number of bytes spooled.
func (b *Buffer) Add(e Entry, r io.Reader) (int64, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, ErrClosed
	}
	e.name = fmt.Sprintf("%04d-sheet%d.xml", b.seq, e.SheetID)
	b.seq++
	if b.compress {
		e.name += ".zst"
	}
	b.mu.Unlock()

	w, err := b.backend.Create(e.name)
	if err != nil {
		return 0, fmt.Errorf("spool %s: %w", e.Path, err)
	}
	n, err := b.write(w, r)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("spool %s: %w", e.Path, err)
	}
	e.Size = n

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return n, ErrClosed
	}
	b.entries = append(b.entries, e)
	b.log.Debug("spooled worksheet",
		zap.String("path", e.Path),
		zap.Int("sheet_id", e.SheetID),
		zap.Int64("bytes", n),
		zap.Bool("compressed", b.compress))
	return n, nil
}

func (b *Buffer) write(w io.Writer, r io.Reader) (int64, error) {
	if !b.compress {
		return io.Copy(w, r)
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(enc, r)
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Len returns the number of entries not yet replayed.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries) - b.next
}

// Total returns the number of entries ever queued.
func (b *Buffer) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Next opens the oldest unreplayed entry. It returns io.EOF when every
// entry has been handed out. The caller closes the returned reader.
func (b *Buffer) Next() (Entry, io.ReadCloser, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Entry{}, nil, ErrClosed
	}
	if b.next >= len(b.entries) {
		b.mu.Unlock()
		return Entry{}, nil, io.EOF
	}
	e := b.entries[b.next]
	b.next++
	b.mu.Unlock()

	rc, err := b.backend.Open(e.name)
	if err != nil {
		return e, nil, fmt.Errorf("replay %s: %w", e.Path, err)
	}
	if !b.compress {
		return e, rc, nil
	}
	dec, err := zstd.NewReader(rc, zstd.WithDecoderConcurrency(1))
	if err != nil {
		rc.Close()
		return e, nil, fmt.Errorf("replay %s: %w", e.Path, err)
	}
	return e, &zstdReadCloser{dec: dec, src: rc}, nil
}

// Close releases the backend. It is safe to call more than once; only the
// first call has an effect.
func (b *Buffer) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		b.closeErr = b.backend.Close()
		b.log.Debug("spool released", zap.Error(b.closeErr))
	})
	return b.closeErr
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	src io.Closer
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.src.Close()
}
