// Package pubsub forwards chat traffic between server instances over Valkey/Redis. Every online user owns exactly
// one channel, named after their user id with no prefix; an instance subscribes to a user's channel for as long as
// that user is bound in its local registry.
package pubsub

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// InboundHandler processes one message received on a subscribed channel. userID is parsed from the channel name.
type InboundHandler func(ctx context.Context, userID int64, payload []byte)

// Bus wraps a Redis/Valkey client and a single long-lived subscription object. Subscribe and Unsubscribe may be
// called concurrently with Run; go-redis serializes them against the underlying connection internally.
type Bus struct {
	rdb     *redis.Client
	sub     *redis.PubSub
	log     zerolog.Logger
	handler InboundHandler
}

// New creates a Bus. The returned Bus subscribes to no channels until Subscribe is called.
func New(rdb *redis.Client, logger zerolog.Logger) *Bus {
	return &Bus{
		rdb: rdb,
		sub: rdb.Subscribe(context.Background()),
		log: logger,
	}
}

// SetInboundHandler registers the callback invoked for every message this instance receives on a subscribed
// channel. It must be called exactly once, before Run.
func (b *Bus) SetInboundHandler(h InboundHandler) {
	if b.handler != nil {
		panic("pubsub: SetInboundHandler called twice")
	}
	b.handler = h
}

// Subscribe adds userID's channel to this instance's subscription set.
func (b *Bus) Subscribe(ctx context.Context, userID int64) error {
	return b.sub.Subscribe(ctx, channelName(userID))
}

// Unsubscribe removes userID's channel from this instance's subscription set.
func (b *Bus) Unsubscribe(ctx context.Context, userID int64) error {
	return b.sub.Unsubscribe(ctx, channelName(userID))
}

// Publish forwards payload to userID's channel, to be picked up by whichever instance currently has userID
// subscribed. Publish does not confirm that any subscriber received it.
func (b *Bus) Publish(ctx context.Context, userID int64, payload []byte) error {
	return b.rdb.Publish(ctx, channelName(userID), payload).Err()
}

// Run blocks, dispatching every received message to the registered handler, until ctx is canceled or the
// underlying subscription's channel closes. The caller is expected to run Run in its own goroutine and restart it
// on unexpected exit.
func (b *Bus) Run(ctx context.Context) error {
	ch := b.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID, err := strconv.ParseInt(msg.Channel, 10, 64)
			if err != nil {
				b.log.Warn().Str("channel", msg.Channel).Msg("pubsub: received message on non-numeric channel")
				continue
			}
			if b.handler != nil {
				b.handler(ctx, userID, []byte(msg.Payload))
			}
		}
	}
}

// Close releases the underlying subscription.
func (b *Bus) Close() error {
	return b.sub.Close()
}

func channelName(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
