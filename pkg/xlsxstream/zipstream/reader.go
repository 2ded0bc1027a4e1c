// Package zipstream reads a zip archive front to back from its local file
// headers, so entries can be consumed from a non-seekable byte stream.
package zipstream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

const (
	localHeaderSignature    = 0x04034b50
	centralHeaderSignature  = 0x02014b50
	endOfCentralSignature   = 0x06054b50
	zip64EndSignature       = 0x06064b50
	zip64LocatorSignature   = 0x07064b50
	digitalSignature        = 0x05054b50
	dataDescriptorSignature = 0x08074b50

	localHeaderLen = 26 // fixed part after the signature

	flagEncrypted      = 0x1
	flagDataDescriptor = 0x8

	zip64ExtraID = 0x0001
	uint32max    = 0xffffffff
)

// Compression methods understood by the reader.
const (
	Store   uint16 = 0
	Deflate uint16 = 8
)

var (
	// ErrFormat indicates the stream is not a zip archive or is truncated.
	ErrFormat = errors.New("zip: not a valid zip stream")
	// ErrChecksum indicates an entry's CRC-32 does not match its content.
	ErrChecksum = errors.New("zip: checksum error")
	// ErrAlgorithm indicates an entry uses a compression method that cannot be streamed.
	ErrAlgorithm = errors.New("zip: unsupported compression algorithm")
	// ErrEncrypted indicates an encrypted entry.
	ErrEncrypted = errors.New("zip: encrypted entries are not supported")
)

// SignatureError reports an unexpected record signature.
type SignatureError struct {
	Signature uint32
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("zip: invalid signature: 0x%08x", e.Signature)
}

func (e *SignatureError) Unwrap() error {
	return ErrFormat
}

// countingReader tracks how many compressed bytes have been consumed. It
// implements io.ByteReader so the inflater never reads past the end of an
// entry's deflate stream.
type countingReader struct {
	r *bufio.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

// Reader yields the entries of a zip stream in archive order.
type Reader struct {
	src     *countingReader
	cur     *Entry
	entries int
	err     error
}

// NewReader returns a Reader consuming r.
func NewReader(r io.Reader) *Reader {
	return &Reader{src: &countingReader{r: bufio.NewReaderSize(r, 64<<10)}}
}

// Next drains the current entry, if any, and advances to the next one. It
// returns io.EOF once the central directory is reached. Any other error is
// sticky.
func (z *Reader) Next() (*Entry, error) {
	if z.err != nil {
		return nil, z.err
	}
	if z.cur != nil {
		if err := z.cur.Drain(); err != nil {
			z.err = err
			return nil, err
		}
		z.cur = nil
	}

	var sig [4]byte
	if n, err := io.ReadFull(z.src, sig[:]); err != nil {
		if n == 0 && err == io.EOF && z.entries > 0 {
			// Archive without a central directory; accept what was read.
			z.err = io.EOF
			return nil, io.EOF
		}
		z.err = fmt.Errorf("%w: unexpected end of stream", ErrFormat)
		return nil, z.err
	}

	switch s := binary.LittleEndian.Uint32(sig[:]); s {
	case localHeaderSignature:
		e, err := z.readEntry()
		if err != nil {
			z.err = err
			return nil, err
		}
		z.cur = e
		z.entries++
		return e, nil
	case centralHeaderSignature, endOfCentralSignature, zip64EndSignature, zip64LocatorSignature, digitalSignature:
		z.err = io.EOF
		return nil, io.EOF
	default:
		z.err = &SignatureError{Signature: s}
		return nil, z.err
	}
}

// Entries returns the number of local entries seen so far.
func (z *Reader) Entries() int {
	return z.entries
}

func (z *Reader) readEntry() (*Entry, error) {
	var buf [localHeaderLen]byte
	if _, err := io.ReadFull(z.src, buf[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated local header", ErrFormat)
	}
	le := binary.LittleEndian
	e := &Entry{
		z:                z,
		Flags:            le.Uint16(buf[2:4]),
		Method:           le.Uint16(buf[4:6]),
		Modified:         msDosTimeToTime(le.Uint16(buf[8:10]), le.Uint16(buf[6:8])),
		CRC32:            le.Uint32(buf[10:14]),
		CompressedSize:   uint64(le.Uint32(buf[14:18])),
		UncompressedSize: uint64(le.Uint32(buf[18:22])),
		hash:             crc32.NewIEEE(),
	}
	nameLen := int(le.Uint16(buf[22:24]))
	extraLen := int(le.Uint16(buf[24:26]))

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(z.src, name); err != nil {
		return nil, fmt.Errorf("%w: truncated entry name", ErrFormat)
	}
	e.Name = string(name)

	extra := make([]byte, extraLen)
	if _, err := io.ReadFull(z.src, extra); err != nil {
		return nil, fmt.Errorf("%w: truncated extra field in %s", ErrFormat, e.Name)
	}
	e.readZip64Extra(extra)

	if e.Flags&flagEncrypted != 0 {
		return nil, fmt.Errorf("%w: %s", ErrEncrypted, e.Name)
	}

	e.start = z.src.n
	switch e.Method {
	case Store:
		if e.hasDescriptor() && e.CompressedSize == 0 {
			return nil, fmt.Errorf("%w: stored entry %s has no declared size", ErrAlgorithm, e.Name)
		}
		e.body = io.LimitReader(z.src, int64(e.CompressedSize))
	case Deflate:
		fr := flate.NewReader(z.src)
		e.body = fr
		e.closer = fr
	default:
		if e.hasDescriptor() {
			return nil, fmt.Errorf("%w: method %d in %s", ErrAlgorithm, e.Method, e.Name)
		}
	}
	return e, nil
}

// Entry is a single archive member. It is only readable until the next call
// to Reader.Next.
type Entry struct {
	Name             string
	Method           uint16
	Flags            uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	Modified         time.Time

	z      *Reader
	body   io.Reader
	closer io.Closer
	hash   hash.Hash32
	start  int64
	read   uint64
	zip64  bool
	err    error
}

func (e *Entry) hasDescriptor() bool {
	return e.Flags&flagDataDescriptor != 0
}

func (e *Entry) readZip64Extra(extra []byte) {
	le := binary.LittleEndian
	for len(extra) >= 4 {
		id := le.Uint16(extra[0:2])
		size := int(le.Uint16(extra[2:4]))
		extra = extra[4:]
		if size > len(extra) {
			return
		}
		field := extra[:size]
		extra = extra[size:]
		if id != zip64ExtraID {
			continue
		}
		e.zip64 = true
		if e.UncompressedSize == uint32max && len(field) >= 8 {
			e.UncompressedSize = le.Uint64(field[:8])
			field = field[8:]
		}
		if e.CompressedSize == uint32max && len(field) >= 8 {
			e.CompressedSize = le.Uint64(field[:8])
		}
	}
}

// Read reads decompressed entry content. The CRC-32 is verified when the
// entry is exhausted.
func (e *Entry) Read(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	if e.body == nil {
		e.err = fmt.Errorf("%w: method %d in %s", ErrAlgorithm, e.Method, e.Name)
		return 0, e.err
	}
	n, err := e.body.Read(p)
	if n > 0 {
		e.hash.Write(p[:n])
		e.read += uint64(n)
	}
	switch {
	case err == io.EOF:
		if ferr := e.finish(); ferr != nil {
			e.err = ferr
			return n, ferr
		}
		e.err = io.EOF
	case err != nil:
		e.err = fmt.Errorf("%w: %s: %v", ErrFormat, e.Name, err)
		return n, e.err
	}
	return n, err
}

func (e *Entry) finish() error {
	if e.closer != nil {
		_ = e.closer.Close()
	}
	if e.hasDescriptor() {
		if err := e.readDescriptor(); err != nil {
			return err
		}
	} else if e.read != e.UncompressedSize {
		return fmt.Errorf("%w: %s: %v", ErrFormat, e.Name, io.ErrUnexpectedEOF)
	}
	if e.hash.Sum32() != e.CRC32 {
		return fmt.Errorf("%w: %s", ErrChecksum, e.Name)
	}
	return nil
}

func (e *Entry) readDescriptor() error {
	src := e.z.src
	compressed := uint64(src.n - e.start)
	if peek, err := src.r.Peek(4); err == nil && binary.LittleEndian.Uint32(peek) == dataDescriptorSignature {
		n, _ := src.r.Discard(4)
		src.n += int64(n)
	}
	sizeLen := 4
	if e.zip64 || compressed >= uint32max {
		sizeLen = 8
	}
	buf := make([]byte, 4+2*sizeLen)
	if _, err := io.ReadFull(src, buf); err != nil {
		return fmt.Errorf("%w: truncated data descriptor in %s", ErrFormat, e.Name)
	}
	le := binary.LittleEndian
	e.CRC32 = le.Uint32(buf[:4])
	if sizeLen == 8 {
		e.CompressedSize = le.Uint64(buf[4:12])
		e.UncompressedSize = le.Uint64(buf[12:20])
	} else {
		e.CompressedSize = uint64(le.Uint32(buf[4:8]))
		e.UncompressedSize = uint64(le.Uint32(buf[8:12]))
	}
	if e.UncompressedSize != e.read {
		return fmt.Errorf("%w: %s: size mismatch", ErrFormat, e.Name)
	}
	return nil
}

// Drain discards the rest of the entry without buffering it.
func (e *Entry) Drain() error {
	if e.err == io.EOF {
		return nil
	}
	if e.err != nil {
		return e.err
	}
	if e.body == nil {
		// Unknown method with declared size: skip the raw bytes.
		if _, err := io.CopyN(io.Discard, e.z.src, int64(e.CompressedSize)); err != nil {
			e.err = fmt.Errorf("%w: %s: %v", ErrFormat, e.Name, err)
			return e.err
		}
		e.err = io.EOF
		return nil
	}
	if _, err := io.Copy(io.Discard, e); err != nil {
		return err
	}
	return nil
}

func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0,
		time.UTC,
	)
}
