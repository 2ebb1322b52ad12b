package realtime

import (
	"context"
	"sync"
)

// LocalTransport loops envelopes back inside the process. It is the test
// double for RedisTransport.
type LocalTransport struct {
	packets chan Packet
	done    chan struct{}

	mu        sync.Mutex
	joined    map[string]bool
	closeOnce sync.Once
}

func NewLocalTransport() *LocalTransport {
	return &LocalTransport{
		packets: make(chan Packet, 256),
		done:    make(chan struct{}),
		joined:  make(map[string]bool),
	}
}

var _ Transport = (*LocalTransport)(nil)

// Send queues payload if some subscriber has joined channel; otherwise it
// is discarded, as Pub/Sub would.
func (t *LocalTransport) Send(ctx context.Context, channel string, payload []byte) error {
	if !t.Joined(channel) {
		return nil
	}
	select {
	case t.packets <- Packet{Channel: channel, Payload: payload}:
		return nil
	case <-t.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *LocalTransport) Join(ctx context.Context, channel string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.joined[channel] = true
	return nil
}

func (t *LocalTransport) Leave(ctx context.Context, channel string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.joined, channel)
	return nil
}

// Joined reports whether channel is currently joined.
func (t *LocalTransport) Joined(channel string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.joined[channel]
}

func (t *LocalTransport) Packets() <-chan Packet {
	return t.packets
}

// Close stops further sends. The packet channel stays open; the Hub stops
// on context cancellation.
func (t *LocalTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}
