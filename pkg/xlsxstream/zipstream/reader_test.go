package zipstream

import (
	"archive/zip"
	"bytes"
	"errors"
	"hash/crc32"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixtureEntry struct {
	name    string
	content string
	stored  bool
}

func buildArchive(t *testing.T, entries []fixtureEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		if e.stored {
			w, err := zw.CreateRaw(&zip.FileHeader{
				Name:               e.name,
				Method:             zip.Store,
				CRC32:              crc32.ChecksumIEEE([]byte(e.content)),
				CompressedSize64:   uint64(len(e.content)),
				UncompressedSize64: uint64(len(e.content)),
			})
			require.NoError(t, err)
			_, err = io.WriteString(w, e.content)
			require.NoError(t, err)
			continue
		}
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, e.content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReaderEntriesInArchiveOrder(t *testing.T) {
	data := buildArchive(t, []fixtureEntry{
		{name: "xl/worksheets/sheet1.xml", content: strings.Repeat("<row/>", 500)},
		{name: "xl/sharedStrings.xml", content: "<sst/>", stored: true},
		{name: "[Content_Types].xml", content: "<Types/>"},
	})

	zr := NewReader(bytes.NewReader(data))
	var names []string
	var bodies []string
	for {
		e, err := zr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		names = append(names, e.Name)
		b, err := io.ReadAll(e)
		require.NoError(t, err)
		bodies = append(bodies, string(b))
	}

	assert.Equal(t, []string{"xl/worksheets/sheet1.xml", "xl/sharedStrings.xml", "[Content_Types].xml"}, names)
	assert.Equal(t, strings.Repeat("<row/>", 500), bodies[0])
	assert.Equal(t, "<sst/>", bodies[1])
	assert.Equal(t, "<Types/>", bodies[2])
	assert.Equal(t, 3, zr.Entries())
}

func TestReaderDrainsUnreadEntries(t *testing.T) {
	data := buildArchive(t, []fixtureEntry{
		{name: "a.xml", content: strings.Repeat("skip me ", 1000)},
		{name: "b.xml", content: "<b/>", stored: true},
		{name: "c.xml", content: "<c/>"},
	})

	zr := NewReader(bytes.NewReader(data))
	e, err := zr.Next()
	require.NoError(t, err)
	assert.Equal(t, "a.xml", e.Name)

	// Partially read, then let Next drain the rest.
	buf := make([]byte, 10)
	_, err = e.Read(buf)
	require.NoError(t, err)

	e, err = zr.Next()
	require.NoError(t, err)
	assert.Equal(t, "b.xml", e.Name)
	require.NoError(t, e.Drain())

	e, err = zr.Next()
	require.NoError(t, err)
	assert.Equal(t, "c.xml", e.Name)
	b, err := io.ReadAll(e)
	require.NoError(t, err)
	assert.Equal(t, "<c/>", string(b))

	_, err = zr.Next()
	assert.ErrorIs(t, err, io.EOF)
	_, err = zr.Next()
	assert.ErrorIs(t, err, io.EOF, "end of archive is sticky")
}

func TestReaderDataDescriptorSizes(t *testing.T) {
	data := buildArchive(t, []fixtureEntry{{name: "x.xml", content: "<x>hello</x>"}})

	zr := NewReader(bytes.NewReader(data))
	e, err := zr.Next()
	require.NoError(t, err)
	assert.Equal(t, Deflate, e.Method)
	_, err = io.ReadAll(e)
	require.NoError(t, err)
	assert.Equal(t, uint64(len("<x>hello</x>")), e.UncompressedSize)
	assert.Equal(t, crc32.ChecksumIEEE([]byte("<x>hello</x>")), e.CRC32)
}

func TestReaderInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		wantSig bool
	}{
		{name: "empty", input: nil},
		{name: "short", input: []byte("PK")},
		{name: "text", input: []byte("this is not a zip file"), wantSig: true},
		{name: "pdf", input: []byte("%PDF-1.4\n"), wantSig: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zr := NewReader(bytes.NewReader(tt.input))
			_, err := zr.Next()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
			var sigErr *SignatureError
			assert.Equal(t, tt.wantSig, errors.As(err, &sigErr))

			_, again := zr.Next()
			assert.Equal(t, err, again, "errors are sticky")
		})
	}
}

func TestReaderChecksumMismatch(t *testing.T) {
	data := buildArchive(t, []fixtureEntry{{name: "a.txt", content: "abcdef", stored: true}})
	// Corrupt the stored payload in place; the header is 30 bytes plus the name.
	off := 30 + len("a.txt")
	data[off] = 'z'

	zr := NewReader(bytes.NewReader(data))
	e, err := zr.Next()
	require.NoError(t, err)
	_, err = io.ReadAll(e)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestReaderEmptyArchive(t *testing.T) {
	data := buildArchive(t, nil)
	zr := NewReader(bytes.NewReader(data))
	_, err := zr.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, zr.Entries())
}
