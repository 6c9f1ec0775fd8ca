package registry

import (
	"errors"
	"testing"
)

type fakeConn struct {
	id      string
	sent    [][]byte
	sendErr error
	closed  bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestBindAndLookup(t *testing.T) {
	t.Parallel()

	r := New()
	conn := &fakeConn{id: "conn-1"}
	if err := r.Bind(1, conn); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	got, ok := r.Lookup(1)
	if !ok || got != conn {
		t.Fatalf("Lookup(1) = %v, %v; want %v, true", got, ok, conn)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestBind_RejectsDuplicateBinding(t *testing.T) {
	t.Parallel()

	r := New()
	first := &fakeConn{id: "conn-1"}
	second := &fakeConn{id: "conn-2"}

	if err := r.Bind(1, first); err != nil {
		t.Fatalf("Bind(first) error = %v", err)
	}

	err := r.Bind(1, second)
	if !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("Bind(second) error = %v, want %v", err, ErrAlreadyBound)
	}

	got, ok := r.Lookup(1)
	if !ok || got != first {
		t.Fatalf("Lookup(1) = %v, %v; want first conn unchanged", got, ok)
	}

	if _, ok := r.UnbindByConn(first); !ok {
		t.Error("UnbindByConn(first) should still find the original binding")
	}
}

func TestUnbindByConn(t *testing.T) {
	t.Parallel()

	r := New()
	conn := &fakeConn{id: "conn-1"}
	if err := r.Bind(42, conn); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	userID, ok := r.UnbindByConn(conn)
	if !ok || userID != 42 {
		t.Fatalf("UnbindByConn() = %d, %v; want 42, true", userID, ok)
	}
	if _, ok := r.Lookup(42); ok {
		t.Error("Lookup(42) should fail after UnbindByConn")
	}
}

func TestUnbindByConn_UnknownConnection(t *testing.T) {
	t.Parallel()

	r := New()
	if _, ok := r.UnbindByConn(&fakeConn{id: "ghost"}); ok {
		t.Error("UnbindByConn() on an unknown connection should report false")
	}
}

func TestSend_DeliversToLocalConnection(t *testing.T) {
	t.Parallel()

	r := New()
	conn := &fakeConn{id: "conn-1"}
	if err := r.Bind(1, conn); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	delivered, err := r.Send(1, []byte("hello"))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !delivered {
		t.Fatal("Send() delivered = false, want true")
	}
	if len(conn.sent) != 1 || string(conn.sent[0]) != "hello" {
		t.Errorf("conn.sent = %v, want [hello]", conn.sent)
	}
}

func TestSend_NoLocalConnection(t *testing.T) {
	t.Parallel()

	r := New()
	delivered, err := r.Send(99, []byte("hello"))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if delivered {
		t.Error("Send() delivered = true, want false")
	}
}

func TestSend_PropagatesWriteError(t *testing.T) {
	t.Parallel()

	r := New()
	wantErr := errors.New("write failed")
	conn := &fakeConn{id: "conn-1", sendErr: wantErr}
	if err := r.Bind(1, conn); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	delivered, err := r.Send(1, []byte("hello"))
	if !delivered {
		t.Error("Send() delivered = false, want true (a local connection was found)")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("Send() error = %v, want %v", err, wantErr)
	}
}
