package xlsxstream

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/parser"
)

func collect(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestEventsProtocol(t *testing.T) {
	data := buildZip(t, pWorkbook, pRels, pSharedStrings, pStyles, pSheet1, pSheet2)
	rd := NewReader(bytes.NewReader(data), Options{SpoolInMemory: true})
	defer rd.Close()

	events := collect(rd.Events(context.Background(), 0, nil))
	var types []EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{
		EventWorksheet, EventRow, EventRow, EventRow,
		EventWorksheet, EventRow,
		EventEnd,
	}, types)
	assert.Equal(t, "People", events[0].Sheet.Name())
	assert.Equal(t, []any{"Ann", float64(30)}, events[2].Row.Values)
	assert.Equal(t, "Dates", events[4].Sheet.Name())
}

func TestEventsKeep(t *testing.T) {
	data := buildZip(t, pSheet1, pSheet2, pWorkbook, pRels, pSharedStrings, pStyles)
	rd := NewReader(bytes.NewReader(data), Options{SpoolInMemory: true})
	defer rd.Close()

	keep := func(ws *parser.Worksheet) bool { return ws.ID() == 2 }
	events := collect(rd.Events(context.Background(), 4, keep))
	require.Len(t, events, 3)
	assert.Equal(t, EventWorksheet, events[0].Type)
	assert.Equal(t, 2, events[0].Sheet.ID())
	assert.Equal(t, EventRow, events[1].Type)
	assert.Equal(t, EventEnd, events[2].Type)
}

func TestEventsSingleTerminalError(t *testing.T) {
	rd := NewReader(strings.NewReader("PK but not really"), Options{})
	defer rd.Close()

	events := collect(rd.Events(context.Background(), 1, nil))
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.ErrorIs(t, events[0].Err, ErrInvalidContainer)
}

func TestEventsRowErrorEndsStream(t *testing.T) {
	bad := part{"xl/worksheets/sheet1.xml", `<worksheet><sheetData><row r="5"><c><v>1</v></c></row><row r="4"/></sheetData></worksheet>`}
	data := buildZip(t, pWorkbook, pRels, pSharedStrings, bad, pSheet2)
	rd := NewReader(bytes.NewReader(data), Options{SpoolInMemory: true})
	defer rd.Close()

	events := collect(rd.Events(context.Background(), 0, nil))
	require.Len(t, events, 3)
	assert.Equal(t, EventWorksheet, events[0].Type)
	assert.Equal(t, EventRow, events[1].Type)
	assert.Equal(t, 5, events[1].Row.Number)
	assert.Equal(t, EventError, events[2].Type)
	assert.ErrorIs(t, events[2].Err, ErrRowOrder)
}

func TestEventsCanceled(t *testing.T) {
	data := buildZip(t, pWorkbook, pRels, pSharedStrings, pStyles, pSheet1, pSheet2)
	rd := NewReader(bytes.NewReader(data), Options{SpoolInMemory: true})
	defer rd.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := rd.Events(ctx, 0, nil)
	first := <-ch
	assert.Equal(t, EventWorksheet, first.Type)
	cancel()

	for ev := range ch {
		assert.NotEqual(t, EventEnd, ev.Type)
		assert.NotEqual(t, EventError, ev.Type)
	}
}

func TestEventsCanceledReleasesSpool(t *testing.T) {
	dir := t.TempDir()
	data := buildZip(t, pSheet1, pSheet2, pWorkbook, pRels, pSharedStrings, pStyles)
	rd := NewReader(bytes.NewReader(data), Options{SpoolDir: dir})

	ctx, cancel := context.WithCancel(context.Background())
	ch := rd.Events(ctx, 0, nil)
	first := <-ch
	require.Equal(t, EventWorksheet, first.Type)
	assert.True(t, first.Sheet.Replayed())
	cancel()
	collect(ch)

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left, "spool released without Close")
}
