// Package spool holds worksheet parts that cannot be parsed yet and replays
// them in arrival order.
package spool

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Backend stores spooled parts by name. Close releases everything the
// backend created.
type Backend interface {
	Create(name string) (io.WriteCloser, error)
	Open(name string) (io.ReadCloser, error)
	Close() error
}

// FileBackend keeps parts in a private temporary directory. The directory
// is created lazily on first use.
type FileBackend struct {
	parent string

	mu  sync.Mutex
	dir string
}

// NewFileBackend returns a FileBackend rooted under parent, or the system
// temporary directory when parent is empty.
func NewFileBackend(parent string) *FileBackend {
	return &FileBackend{parent: parent}
}

func (b *FileBackend) ensureDir() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dir != "" {
		return b.dir, nil
	}
	dir, err := os.MkdirTemp(b.parent, "xlsxstream-"+uuid.NewString()+"-")
	if err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}
	b.dir = dir
	return dir, nil
}

// Dir returns the spool directory, or "" if nothing was spooled yet.
func (b *FileBackend) Dir() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dir
}

func (b *FileBackend) Create(name string) (io.WriteCloser, error) {
	dir, err := b.ensureDir()
	if err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, filepath.Base(name)), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
}

func (b *FileBackend) Open(name string) (io.ReadCloser, error) {
	dir := b.Dir()
	if dir == "" {
		return nil, fmt.Errorf("open %s: %w", name, os.ErrNotExist)
	}
	return os.Open(filepath.Join(dir, filepath.Base(name)))
}

// Close removes the spool directory.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dir == "" {
		return nil
	}
	err := os.RemoveAll(b.dir)
	b.dir = ""
	return err
}

// MemoryBackend keeps parts in memory.
type MemoryBackend struct {
	mu    sync.Mutex
	parts map[string]*bytes.Buffer
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{parts: make(map[string]*bytes.Buffer)}
}

type memWriter struct {
	*bytes.Buffer
}

func (memWriter) Close() error { return nil }

func (b *MemoryBackend) Create(name string) (io.WriteCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.parts[name]; ok {
		return nil, fmt.Errorf("create %s: %w", name, os.ErrExist)
	}
	buf := new(bytes.Buffer)
	b.parts[name] = buf
	return memWriter{buf}, nil
}

func (b *MemoryBackend) Open(name string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.parts[name]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", name, os.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.parts)
	return nil
}

// Len returns the number of stored parts.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.parts)
}
