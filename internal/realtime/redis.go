package realtime

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// RedisTransport relays envelopes through Redis Pub/Sub so every node
// sharing the Redis instance sees every event.
type RedisTransport struct {
	client  redis.UniversalClient
	pubsub  *redis.PubSub
	packets chan Packet

	stopOnce sync.Once
	done     chan struct{}
}

// NewRedisTransport opens one Pub/Sub connection that channels are added
// to and removed from as the Hub joins and leaves them.
func NewRedisTransport(ctx context.Context, client redis.UniversalClient) *RedisTransport {
	t := &RedisTransport{
		client:  client,
		pubsub:  client.Subscribe(ctx),
		packets: make(chan Packet, subscriptionBuffer),
		done:    make(chan struct{}),
	}
	go t.pump()
	return t
}

var _ Transport = (*RedisTransport)(nil)

func (t *RedisTransport) Send(ctx context.Context, channel string, payload []byte) error {
	return t.client.Publish(ctx, channel, payload).Err()
}

func (t *RedisTransport) Join(ctx context.Context, channel string) error {
	log.Debug("Joining redis channel", "channel", channel)
	return t.pubsub.Subscribe(ctx, channel)
}

func (t *RedisTransport) Leave(ctx context.Context, channel string) error {
	log.Debug("Leaving redis channel", "channel", channel)
	return t.pubsub.Unsubscribe(ctx, channel)
}

func (t *RedisTransport) Packets() <-chan Packet {
	return t.packets
}

func (t *RedisTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.done)
		err = t.pubsub.Close()
	})
	return err
}

func (t *RedisTransport) pump() {
	defer close(t.packets)

	for msg := range t.pubsub.Channel() {
		select {
		case t.packets <- Packet{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
		case <-t.done:
			return
		}
	}
}
