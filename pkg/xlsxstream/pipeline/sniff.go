package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

const (
	sniffLen = 3072
	zipMIME  = "application/zip"
)

// Sniff checks that r starts like a zip container and returns a reader
// yielding the full input, including the bytes inspected.
func Sniff(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("sniff input: %w", err)
	}

	detected := mimetype.Detect(head)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(zipMIME) {
			return br, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidFileType, detected.String())
}
