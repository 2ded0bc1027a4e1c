package xlsxstream

import (
	"errors"
	"fmt"

	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/parser"
)

// ErrInvalidContainer indicates the input is not a readable zip container.
var ErrInvalidContainer = errors.New("invalid container")

// ErrClosed is returned by NextSheet after Close.
var ErrClosed = errors.New("reader closed")

// Errors shared with the parser package.
var (
	ErrAborted             = parser.ErrAborted
	ErrMissingSharedString = parser.ErrMissingSharedString
	ErrRowOrder            = parser.ErrRowOrder
)

// ParseError represents a fatal error while reading one container entry.
type ParseError struct {
	Entry     string
	Component string // "container", "workbook", "relationships", "shared_strings", "styles", "worksheet", "spool"
	Err       error
}

func (e *ParseError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("parse error (%s): %v", e.Component, e.Err)
	}
	return fmt.Sprintf("parse error in %q (%s): %v", e.Entry, e.Component, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(entry, component string, err error) *ParseError {
	return &ParseError{
		Entry:     entry,
		Component: component,
		Err:       err,
	}
}
