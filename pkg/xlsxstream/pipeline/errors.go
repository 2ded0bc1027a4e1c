package pipeline

import "errors"

var (
	// ErrInvalidFileType is returned when the input is not a zip container.
	ErrInvalidFileType = errors.New("invalid file type")

	// ErrEmptyHeader is returned when headers are expected but the first
	// row holds no values.
	ErrEmptyHeader = errors.New("header row is empty")

	// ErrNoWorksheet is returned when the selected worksheet is not in the
	// package.
	ErrNoWorksheet = errors.New("no worksheet")
)
