package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaychat-im/relaychat-server/internal/codec"
	"github.com/relaychat-im/relaychat-server/internal/dispatch"
	"github.com/relaychat-im/relaychat-server/internal/transport"
)

func TestServer_DispatchesFrameAndRepliesAndClosesOnEOF(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	closed := make(chan string, 1)
	table := dispatch.NewTable(map[int]dispatch.Handler{
		5: func(_ context.Context, conn transport.Conn, frame codec.Frame) {
			_ = conn.Send([]byte(`{"msgid":5,"errno":0}` + "\n"))
		},
	}, zerolog.Nop())

	srv := New(ln, table, func(connID string) { closed <- connID }, zerolog.Nop())
	go func() { _ = srv.Serve(context.Background()) }()
	defer func() { _ = srv.Shutdown() }()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte(`{"msgid":5}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(client).ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply != `{"msgid":5,"errno":0}`+"\n" {
		t.Errorf("reply = %q, want ack", reply)
	}

	_ = client.Close()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close callback")
	}
}

func TestConn_SendAfterClose(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	srv1, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer srv1.Close()

	nc, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	conn := &Conn{id: "c1", nc: nc, send: make(chan []byte, 1), closed: make(chan struct{}), log: zerolog.Nop()}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close() error = %v, want nil (idempotent)", err)
	}
	if err := conn.Send([]byte("x")); err == nil {
		t.Error("Send() after Close() expected error, got nil")
	}
}
