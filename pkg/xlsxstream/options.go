// Package xlsxstream reads spreadsheet packages as a stream of worksheets
// and rows without loading the whole file into memory.
package xlsxstream

import (
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/metrics"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/parser"
	"go.uber.org/zap"
)

// Options configures a Reader.
type Options struct {
	// Verbose reports non-fatal warnings, such as a missing shared string,
	// through OnWarning.
	Verbose bool
	// Formatting renders styled numeric cells with their number format.
	// If nil, defaults to true.
	Formatting *bool
	// ReturnFormats records the applied format code of every cell in
	// Row.Formats.
	ReturnFormats bool
	// SpoolDir is the parent directory for spooled worksheets. Empty means
	// the system temporary directory.
	SpoolDir string
	// SpoolInMemory keeps spooled worksheets in memory instead of on disk.
	SpoolInMemory bool
	// SpoolCompression stores spooled worksheets zstd-compressed.
	SpoolCompression bool
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Metrics is optional.
	Metrics *metrics.Collector
	// OnWarning receives warnings in verbose mode.
	OnWarning func(*parser.Warning)
}

// DefaultOptions returns default reader options.
func DefaultOptions() Options {
	return Options{}
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}

// ShouldFormat returns whether number formats are applied.
func (o Options) ShouldFormat() bool {
	if o.Formatting != nil {
		return *o.Formatting
	}
	return true
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}
