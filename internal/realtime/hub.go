package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Staby-Guy/pidgeon/internal/metrics"
	"github.com/charmbracelet/log"
)

// subscriptionBuffer is how many undelivered events a subscriber may lag
// behind before further events are dropped for it.
const subscriptionBuffer = 64

var ErrHubClosed = errors.New("realtime hub closed")

// Envelope is the wire form of every event.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// Publisher sends an event to every subscriber of channel.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

// Subscriber opens a handle that receives every event on channel.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (*Subscription, error)
}

// Packet is a raw message delivered by a Transport.
type Packet struct {
	Channel string
	Payload []byte
}

// Transport moves encoded envelopes between nodes. Join and Leave are
// called at most once per channel transition; the Hub does the counting.
type Transport interface {
	Send(ctx context.Context, channel string, payload []byte) error
	Join(ctx context.Context, channel string) error
	Leave(ctx context.Context, channel string) error
	Packets() <-chan Packet
	Close() error
}

// Hub multiplexes local subscribers onto one Transport.
type Hub struct {
	transport Transport

	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

func NewHub(transport Transport) *Hub {
	return &Hub{
		transport: transport,
		subs:      make(map[string]map[*Subscription]struct{}),
	}
}

var (
	_ Publisher  = (*Hub)(nil)
	_ Subscriber = (*Hub)(nil)
)

// Publish encodes payload into an envelope and hands it to the transport.
func (h *Hub) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	env, err := json.Marshal(Envelope{Channel: channel, Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := h.transport.Send(ctx, channel, env); err != nil {
		return fmt.Errorf("publish %s on %s: %w", event, channel, err)
	}
	return nil
}

// Subscribe registers a local subscriber. The first subscriber of a
// channel joins it on the transport.
func (h *Hub) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	if _, _, err := ParseChannel(channel); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	set, ok := h.subs[channel]
	if !ok {
		if err := h.transport.Join(ctx, channel); err != nil {
			return nil, fmt.Errorf("join %s: %w", channel, err)
		}
		set = make(map[*Subscription]struct{})
		h.subs[channel] = set
	}
	sub := &Subscription{
		hub:     h,
		channel: channel,
		events:  make(chan Envelope, subscriptionBuffer),
	}
	set[sub] = struct{}{}
	metrics.SubscriptionOpened(1)
	return sub, nil
}

// Subscribers reports how many local handles are open on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[channel])
}

// Run delivers transport packets to local subscribers until ctx is done
// or the transport stops. All open subscriptions are closed on return.
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	packets := h.transport.Packets()
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-packets:
			if !ok {
				return nil
			}
			h.deliver(p)
		}
	}
}

func (h *Hub) deliver(p Packet) {
	var env Envelope
	if err := json.Unmarshal(p.Payload, &env); err != nil {
		log.Warn("Dropping undecodable realtime packet", "channel", p.Channel, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[p.Channel] {
		select {
		case sub.events <- env:
		default:
			log.Warn("Dropping event for slow subscriber", "channel", p.Channel, "event", env.Event)
		}
	}
}

func (h *Hub) release(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sub.channel]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.events)
	metrics.SubscriptionOpened(-1)

	if len(set) == 0 {
		delete(h.subs, sub.channel)
		if err := h.transport.Leave(context.Background(), sub.channel); err != nil {
			log.Warn("Failed to leave realtime channel", "channel", sub.channel, "err", err)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for channel, set := range h.subs {
		for sub := range set {
			close(sub.events)
			metrics.SubscriptionOpened(-1)
		}
		delete(h.subs, channel)
	}
	if err := h.transport.Close(); err != nil {
		log.Warn("Failed to close realtime transport", "err", err)
	}
}

// Subscription is one consumer's handle on a channel.
type Subscription struct {
	hub       *Hub
	channel   string
	events    chan Envelope
	closeOnce sync.Once
}

// C yields events in arrival order. It is closed by Close or when the hub stops.
func (s *Subscription) C() <-chan Envelope {
	return s.events
}

func (s *Subscription) Channel() string {
	return s.channel
}

// Close releases the handle. Calling it more than once is harmless.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() { s.hub.release(s) })
}
