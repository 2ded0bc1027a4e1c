package xlsxstream

import (
	"context"
	"errors"
	"io"

	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/models"
	"github.com/ukaji3/xlsxstream-go/pkg/xlsxstream/parser"
)

// EventType identifies an Event.
type EventType int

const (
	// EventWorksheet carries a worksheet about to be read.
	EventWorksheet EventType = iota + 1
	// EventRow carries one completed row.
	EventRow
	// EventEnd signals that every worksheet was read.
	EventEnd
	// EventError carries the terminal error.
	EventError
)

// Event is one step of a parse run. Sheet is set for EventWorksheet and
// EventRow.
type Event struct {
	Type  EventType
	Sheet *parser.Worksheet
	Row   models.Row
	Err   error
}

// Events runs the reader in a goroutine and delivers its progress on a
// channel with the given buffer size. The producer blocks while the channel
// is full. Worksheets for which keep returns false are drained without
// events; a nil keep accepts every worksheet. The stream ends with exactly
// one EventEnd or EventError, after which the channel is closed. If ctx is
// canceled the channel is closed without a terminal event. The spool is
// released before the channel closes; the reader must not be used after
// calling Events.
func (r *Reader) Events(ctx context.Context, buffer int, keep func(*parser.Worksheet) bool) <-chan Event {
	ch := make(chan Event, buffer)
	go func() {
		defer close(ch)
		defer func() {
			r.closeCurrent()
			r.release()
		}()
		send := func(ev Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			ws, err := r.NextSheet(ctx)
			if errors.Is(err, io.EOF) {
				send(Event{Type: EventEnd})
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					send(Event{Type: EventError, Err: err})
				}
				return
			}
			if keep != nil && !keep(ws) {
				continue
			}
			if !send(Event{Type: EventWorksheet, Sheet: ws}) {
				return
			}
			for {
				row, err := ws.NextRow(ctx)
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					// NextSheet reports worksheet errors as terminal.
					if ctx.Err() != nil {
						return
					}
					break
				}
				if !send(Event{Type: EventRow, Sheet: ws, Row: row}) {
					return
				}
			}
		}
	}()
	return ch
}
