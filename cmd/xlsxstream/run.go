package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/metrics"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/models"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/pipeline"
	"go.uber.org/zap"
)

// sheetRow is one line of rows mode output.
type sheetRow struct {
	Sheet string `json:"sheet"`
	models.Row
}

// summaryDocument is the output of summary mode.
type summaryDocument struct {
	Workbook models.WorkbookInfo  `json:"workbook"`
	Sheet    *models.SheetSummary `json:"sheet"`
}

func run(ctx context.Context, cfg Config, inputPath string, stdin io.Reader, stdout io.Writer) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := cfg.newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	in := stdin
	if inputPath != "" && inputPath != "-" {
		if _, err := os.Stat(inputPath); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", inputPath)
		}
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := stdout
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("failed to write output: %w", cerr)
			}
		}()
		out = f
	}
	w := bufio.NewWriter(out)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	opts := cfg.readerOptions(log, m)

	switch cfg.Mode {
	case modeRecords:
		err = writeRecords(ctx, cfg, opts, in, w)
	case modeRows:
		err = writeRows(ctx, cfg, opts, in, w)
	case modeSummary:
		err = writeSummary(ctx, cfg, opts, in, w)
	}
	if err != nil {
		log.Error("parse failed", zap.Error(err))
		err = fmt.Errorf("extraction failed: %w", err)
	}

	if ferr := w.Flush(); err == nil && ferr != nil {
		err = fmt.Errorf("failed to write output: %w", ferr)
	}
	if cfg.MetricsFile != "" {
		if merr := prometheus.WriteToTextfile(cfg.MetricsFile, reg); merr != nil {
			log.Warn("failed to write metrics", zap.String("path", cfg.MetricsFile), zap.Error(merr))
		}
	}
	return err
}

func writeRecords(ctx context.Context, cfg Config, opts xlsxstream.Options, in io.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	n, err := pipeline.Process(ctx, in, pipeline.Config{
		SheetID:    cfg.Sheet,
		HasHeaders: xlsxstream.Bool(!cfg.NoHeaders),
		ChunkSize:  cfg.ChunkSize,
		Limit:      cfg.Limit,
		OnLineCount: func(n int) {
			opts.Logger.Info("declared data rows", zap.Int("rows", n))
		},
		Reader: opts,
	}, func(_ context.Context, records []pipeline.Record) error {
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	opts.Logger.Info("records written", zap.Int("records", n))
	return nil
}

func writeRows(ctx context.Context, cfg Config, opts xlsxstream.Options, in io.Reader, w io.Writer) error {
	src, err := pipeline.Sniff(in)
	if err != nil {
		return err
	}
	rd := xlsxstream.NewReader(src, opts)
	defer rd.Close()

	enc := json.NewEncoder(w)
	written := 0
	found := false
	for {
		ws, err := rd.NextSheet(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if ws.ID() != cfg.Sheet {
			if err := ws.Skip(); err != nil {
				return err
			}
			continue
		}

		found = true
		for row, err := range ws.Rows(ctx) {
			if err != nil {
				return err
			}
			if err := enc.Encode(sheetRow{Sheet: ws.Name(), Row: row}); err != nil {
				return err
			}
			written++
			if cfg.Limit > 0 && written >= cfg.Limit {
				rd.Abort()
				return nil
			}
		}
	}
	if !found {
		return fmt.Errorf("%w: sheet %d", pipeline.ErrNoWorksheet, cfg.Sheet)
	}
	return nil
}

func writeSummary(ctx context.Context, cfg Config, opts xlsxstream.Options, in io.Reader, w io.Writer) error {
	src, err := pipeline.Sniff(in)
	if err != nil {
		return err
	}
	rd := xlsxstream.NewReader(src, opts)
	defer rd.Close()

	var doc summaryDocument
	for {
		ws, err := rd.NextSheet(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if ws.ID() != cfg.Sheet {
			if err := ws.Skip(); err != nil {
				return err
			}
			continue
		}
		for _, err := range ws.Rows(ctx) {
			if err != nil {
				return err
			}
		}
		summary := ws.Summary()
		doc.Sheet = &summary
	}
	if doc.Sheet == nil {
		return fmt.Errorf("%w: sheet %d", pipeline.ErrNoWorksheet, cfg.Sheet)
	}
	doc.Workbook = rd.Workbook().Info()

	enc := json.NewEncoder(w)
	if cfg.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}
