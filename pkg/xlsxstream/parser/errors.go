package parser

import (
	"errors"
	"fmt"
)

// ErrMissingSharedString indicates a cell referenced a shared string index
// outside the table.
var ErrMissingSharedString = errors.New("missing shared string")

// ErrRowOrder indicates a row number that does not follow the previous row.
var ErrRowOrder = errors.New("row numbers out of order")

// ErrAborted indicates the workbook was aborted by the caller.
var ErrAborted = errors.New("parse aborted")

// Warning is a non-fatal problem found while parsing. Warnings are only
// reported in verbose mode.
type Warning struct {
	Entry string
	Err   error
}

func (w *Warning) Error() string {
	return fmt.Sprintf("warning in %s: %v", w.Entry, w.Err)
}

func (w *Warning) Unwrap() error {
	return w.Err
}

// NewWarning creates a new Warning.
func NewWarning(entry string, err error) *Warning {
	return &Warning{
		Entry: entry,
		Err:   err,
	}
}
