package main

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/metrics"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/parser"
	"go.uber.org/zap"
)

const envPrefix = "XLSXSTREAM"

// Output modes.
const (
	modeRecords = "records"
	modeRows    = "rows"
	modeSummary = "summary"
)

// Config holds the CLI settings. Environment variables prefixed with
// XLSXSTREAM_ provide the defaults; flags override them.
type Config struct {
	Mode          string `envconfig:"MODE" default:"records" validate:"oneof=records rows summary"`
	Sheet         int    `envconfig:"SHEET" default:"1" validate:"min=1"`
	NoHeaders     bool   `envconfig:"NO_HEADERS"`
	ChunkSize     int    `envconfig:"CHUNK_SIZE" default:"100" validate:"min=1"`
	Limit         int    `envconfig:"LIMIT" default:"0" validate:"min=0"`
	Verbose       bool   `envconfig:"VERBOSE"`
	NoFormat      bool   `envconfig:"NO_FORMAT"`
	ReturnFormats bool   `envconfig:"RETURN_FORMATS"`
	SpoolDir      string `envconfig:"SPOOL_DIR" validate:"omitempty,dir"`
	SpoolInMemory bool   `envconfig:"SPOOL_IN_MEMORY"`
	SpoolCompress bool   `envconfig:"SPOOL_COMPRESS"`
	MetricsFile   string `envconfig:"METRICS_FILE"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"warn" validate:"oneof=debug info warn error"`
	Output        string `envconfig:"OUTPUT"`
	Pretty        bool   `envconfig:"PRETTY"`
}

var validate = validator.New()

// loadConfig reads the environment defaults.
func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config from env: %w", err)
	}
	return cfg, nil
}

func (c *Config) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&c.Mode, "mode", c.Mode, "Output mode: records, rows, summary")
	f.IntVar(&c.Sheet, "sheet", c.Sheet, "Worksheet number to read (sheet<N>.xml)")
	f.BoolVar(&c.NoHeaders, "no-headers", c.NoHeaders, "Key records by column number instead of the header row")
	f.IntVar(&c.ChunkSize, "chunk-size", c.ChunkSize, "Records per write batch")
	f.IntVar(&c.Limit, "limit", c.Limit, "Stop after this many records or rows (0: no limit)")
	f.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "Log non-fatal warnings such as missing shared strings")
	f.BoolVar(&c.NoFormat, "no-format", c.NoFormat, "Emit raw values instead of applying number formats")
	f.BoolVar(&c.ReturnFormats, "formats", c.ReturnFormats, "Include the number format code of each cell")
	f.StringVar(&c.SpoolDir, "spool-dir", c.SpoolDir, "Parent directory for spooled worksheets (default: system temp)")
	f.BoolVar(&c.SpoolInMemory, "spool-in-memory", c.SpoolInMemory, "Spool out-of-order worksheets in memory")
	f.BoolVar(&c.SpoolCompress, "spool-compress", c.SpoolCompress, "Compress spooled worksheets with zstd")
	f.StringVar(&c.MetricsFile, "metrics-file", c.MetricsFile, "Write Prometheus metrics to this file on exit")
	f.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	f.StringVarP(&c.Output, "output", "o", c.Output, "Output file path (default: stdout)")
	f.BoolVar(&c.Pretty, "pretty", c.Pretty, "Pretty-print the summary document")
}

// Validate checks field ranges and flag combinations.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.SpoolInMemory && c.SpoolDir != "" {
		return errors.New("config validation failed: --spool-dir and --spool-in-memory are mutually exclusive")
	}
	return nil
}

func (c Config) newLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

func (c Config) readerOptions(log *zap.Logger, m *metrics.Collector) xlsxstream.Options {
	return xlsxstream.Options{
		Verbose:          c.Verbose,
		Formatting:       xlsxstream.Bool(!c.NoFormat),
		ReturnFormats:    c.ReturnFormats,
		SpoolDir:         c.SpoolDir,
		SpoolInMemory:    c.SpoolInMemory,
		SpoolCompression: c.SpoolCompress,
		Logger:           log,
		Metrics:          m,
		OnWarning: func(w *parser.Warning) {
			log.Warn("parse warning", zap.String("entry", w.Entry), zap.Error(w.Err))
		},
	}
}
