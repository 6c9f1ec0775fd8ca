package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestPublishSubscribe_RoundTrip(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	bus := New(rdb, zerolog.Nop())
	defer func() { _ = bus.Close() }()

	var mu sync.Mutex
	var gotUserID int64
	var gotPayload []byte
	received := make(chan struct{})

	bus.SetInboundHandler(func(_ context.Context, userID int64, payload []byte) {
		mu.Lock()
		gotUserID = userID
		gotPayload = payload
		mu.Unlock()
		close(received)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bus.Subscribe(ctx, 42); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	go func() { _ = bus.Run(ctx) }()

	// Give the subscription time to register with miniredis before publishing.
	time.Sleep(50 * time.Millisecond)

	if err := bus.Publish(ctx, 42, []byte("hello")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound message")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotUserID != 42 {
		t.Errorf("userID = %d, want 42", gotUserID)
	}
	if string(gotPayload) != "hello" {
		t.Errorf("payload = %q, want %q", gotPayload, "hello")
	}
}

func TestSetInboundHandler_PanicsOnSecondCall(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	bus := New(rdb, zerolog.Nop())
	defer func() { _ = bus.Close() }()

	bus.SetInboundHandler(func(context.Context, int64, []byte) {})

	defer func() {
		if r := recover(); r == nil {
			t.Error("SetInboundHandler() second call did not panic")
		}
	}()
	bus.SetInboundHandler(func(context.Context, int64, []byte) {})
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	bus := New(rdb, zerolog.Nop())
	defer func() { _ = bus.Close() }()

	ctx := context.Background()
	if err := bus.Subscribe(ctx, 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := bus.Unsubscribe(ctx, 1); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
}
