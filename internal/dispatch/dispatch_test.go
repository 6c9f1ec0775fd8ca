package dispatch

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/relaychat-im/relaychat-server/internal/codec"
	"github.com/relaychat-im/relaychat-server/internal/transport"
)

type fakeConn struct{ id string }

func (c *fakeConn) ID() string          { return c.id }
func (c *fakeConn) Send(b []byte) error { return nil }
func (c *fakeConn) Close() error        { return nil }

func TestDispatch_CallsRegisteredHandler(t *testing.T) {
	t.Parallel()

	var gotMsgID int
	var gotConn transport.Conn
	table := NewTable(map[int]Handler{
		5: func(_ context.Context, conn transport.Conn, frame codec.Frame) {
			gotMsgID = frame.MsgID
			gotConn = conn
		},
	}, zerolog.Nop())

	conn := &fakeConn{id: "c1"}
	table.Dispatch(context.Background(), conn, codec.Frame{MsgID: 5})

	if gotMsgID != 5 {
		t.Errorf("handler received MsgID = %d, want 5", gotMsgID)
	}
	if gotConn != conn {
		t.Errorf("handler received conn = %v, want %v", gotConn, conn)
	}
}

func TestDispatch_UnrecognizedMsgID_NoPanic(t *testing.T) {
	t.Parallel()

	table := NewTable(map[int]Handler{}, zerolog.Nop())
	conn := &fakeConn{id: "c1"}

	// Must not panic and must not call anything.
	table.Dispatch(context.Background(), conn, codec.Frame{MsgID: 999})
}

func TestNewTable_CopiesInputMap(t *testing.T) {
	t.Parallel()

	src := map[int]Handler{
		1: func(context.Context, transport.Conn, codec.Frame) {},
	}
	table := NewTable(src, zerolog.Nop())
	delete(src, 1)

	if _, ok := table.handlers[1]; !ok {
		t.Error("NewTable() did not copy the input map; mutating src affected the table")
	}
}
