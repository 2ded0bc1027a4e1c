package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/pipeline"
	"github.com/xuri/excelize/v2"
)

func createTestWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"first name", "age"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Ann", 30}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"Bo", 41}))
	require.NoError(t, f.SetSheetDimension("Sheet1", "A1:B3"))

	path := filepath.Join(t.TempDir(), "people.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func execute(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewReader(stdin))
	cmd.SetArgs(append(args, "--log-level", "error", "--spool-in-memory"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeLines(t *testing.T, s string) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRunRecords(t *testing.T) {
	out, err := execute(t, nil, createTestWorkbook(t))
	require.NoError(t, err)

	lines := decodeLines(t, out)
	require.Len(t, lines, 2)
	assert.Equal(t, map[string]any{"first name": "Ann", "age": float64(30)}, lines[0]["values"])
	assert.Equal(t, float64(3), lines[1]["row"])
}

func TestRunRecordsFromStdin(t *testing.T) {
	data, err := os.ReadFile(createTestWorkbook(t))
	require.NoError(t, err)

	out, err := execute(t, data, "-", "--no-headers", "--limit", "1")
	require.NoError(t, err)
	lines := decodeLines(t, out)
	require.Len(t, lines, 1)
	assert.Equal(t, map[string]any{"1": "first name", "2": "age"}, lines[0]["values"])
}

func TestRunRows(t *testing.T) {
	out, err := execute(t, nil, createTestWorkbook(t), "--mode", "rows")
	require.NoError(t, err)

	lines := decodeLines(t, out)
	require.Len(t, lines, 3)
	assert.Equal(t, "Sheet1", lines[0]["sheet"])
	assert.Equal(t, float64(1), lines[0]["r"])
	assert.Equal(t, []any{"Bo", float64(41)}, lines[2]["values"])
}

func TestRunSummary(t *testing.T) {
	out, err := execute(t, nil, createTestWorkbook(t), "--mode", "summary", "--pretty")
	require.NoError(t, err)

	var doc summaryDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.NotNil(t, doc.Sheet)
	assert.Equal(t, "Sheet1", doc.Sheet.Sheet.Name)
	assert.Equal(t, 3, doc.Sheet.Rows)
	assert.Equal(t, 6, doc.Sheet.NonEmptyCells)
	assert.Equal(t, "A1:B3", doc.Sheet.UsedRange)
	require.Len(t, doc.Workbook.Sheets, 1)
	assert.Equal(t, "Sheet1", doc.Workbook.Sheets[0].Name)
}

func TestRunOutputAndMetricsFiles(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "rows.jsonl")
	metricsPath := filepath.Join(dir, "xlsxstream.prom")

	stdout, err := execute(t, nil, createTestWorkbook(t), "-o", outPath, "--metrics-file", metricsPath)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Len(t, decodeLines(t, string(data)), 2)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "xlsxstream_rows_total 3")
}

func TestRunErrors(t *testing.T) {
	textFile := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(textFile, []byte("first name,age\nAnn,30\n"), 0o644))

	_, err := execute(t, nil, textFile)
	assert.ErrorIs(t, err, pipeline.ErrInvalidFileType)

	_, err = execute(t, nil, filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")

	_, err = execute(t, nil, createTestWorkbook(t), "--sheet", "4")
	assert.ErrorIs(t, err, pipeline.ErrNoWorksheet)

	_, err = execute(t, nil, createTestWorkbook(t), "--mode", "csv")
	assert.Error(t, err)
}
