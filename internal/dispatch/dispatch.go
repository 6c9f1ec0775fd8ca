// Package dispatch routes a decoded frame to the handler registered for its msgid. The table is built once at
// startup and never mutated, so lookups require no synchronization.
package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/relaychat-im/relaychat-server/internal/codec"
	"github.com/relaychat-im/relaychat-server/internal/transport"
)

// Handler processes one frame from conn.
type Handler func(ctx context.Context, conn transport.Conn, frame codec.Frame)

// Table is an immutable msgid -> Handler map.
type Table struct {
	handlers map[int]Handler
	log      zerolog.Logger
}

// NewTable builds a Table from handlers. The map is copied so the caller's map can be discarded afterward.
func NewTable(handlers map[int]Handler, logger zerolog.Logger) *Table {
	t := &Table{handlers: make(map[int]Handler, len(handlers)), log: logger}
	for id, h := range handlers {
		t.handlers[id] = h
	}
	return t
}

// Dispatch looks up frame.MsgID and invokes its handler. An unrecognized msgid is logged at warn level and
// otherwise ignored; no reply is sent.
func (t *Table) Dispatch(ctx context.Context, conn transport.Conn, frame codec.Frame) {
	h, ok := t.handlers[frame.MsgID]
	if !ok {
		t.log.Warn().Int("msgid", frame.MsgID).Str("conn_id", conn.ID()).Msg("dispatch: unrecognized msgid")
		return
	}
	h(ctx, conn, frame)
}
