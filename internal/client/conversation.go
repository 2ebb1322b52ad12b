package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/api/services"
	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/realtime"
	"github.com/charmbracelet/log"
)

// Conversation keeps the timeline of the room shared with one contact in
// sync with the server.
type Conversation struct {
	client   *Client
	self     string
	peerID   string
	roomID   string
	stream   *Stream
	timeline *Timeline
	updates  chan struct{}
	done     chan struct{}
}

// OpenConversation subscribes to the room shared by selfID and peerID and
// loads its latest page.
func (c *Client) OpenConversation(ctx context.Context, selfID, peerID string) (*Conversation, error) {
	roomID, err := models.RoomID(selfID, peerID)
	if err != nil {
		return nil, err
	}
	// Subscribe first so nothing sent during the history fetch is lost.
	stream, err := c.Stream(ctx, realtime.ChatChannel(roomID))
	if err != nil {
		return nil, err
	}
	history, err := c.Messages(ctx, roomID, 0, 0, "")
	if err != nil {
		stream.Close()
		return nil, err
	}

	conv := &Conversation{
		client:   c,
		self:     selfID,
		peerID:   peerID,
		roomID:   roomID,
		stream:   stream,
		timeline: NewTimeline(),
		updates:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	conv.timeline.Load(history)
	go conv.listen()
	return conv, nil
}

// OpenRoom opens the conversation for a room id, e.g. one taken from an
// incoming-message notification.
func (c *Client) OpenRoom(ctx context.Context, selfID, roomID string) (*Conversation, error) {
	peerID, err := models.OtherMember(roomID, selfID)
	if err != nil {
		return nil, err
	}
	return c.OpenConversation(ctx, selfID, peerID)
}

func (cv *Conversation) RoomID() string {
	return cv.roomID
}

func (cv *Conversation) Timeline() *Timeline {
	return cv.timeline
}

// Updates signals after each change applied from the stream. Signals
// coalesce; read Timeline for the current state.
func (cv *Conversation) Updates() <-chan struct{} {
	return cv.updates
}

// Send shows content immediately and reconciles it with the server reply.
func (cv *Conversation) Send(ctx context.Context, content string) (*models.Message, error) {
	tempID := cv.timeline.AddPending(cv.self, content, time.Now().UnixMilli())
	msg, err := cv.client.Send(ctx, services.SendInput{
		RecipientID:  cv.peerID,
		Content:      content,
		OptimisticID: tempID,
	})
	if err != nil {
		cv.timeline.Discard(tempID)
		return nil, err
	}
	cv.timeline.Confirm(tempID, *msg)
	return msg, nil
}

func (cv *Conversation) Edit(ctx context.Context, msg models.Message, content string) (*models.Message, error) {
	return cv.client.Edit(ctx, services.EditInput{
		RoomID:    cv.roomID,
		MessageID: msg.ID,
		Timestamp: msg.Timestamp,
		Content:   content,
	})
}

func (cv *Conversation) Delete(ctx context.Context, msg models.Message) error {
	return cv.client.Delete(ctx, services.DeleteInput{
		RoomID:    cv.roomID,
		MessageID: msg.ID,
		Timestamp: msg.Timestamp,
	})
}

// Close ends the subscription and waits for the listener to stop.
func (cv *Conversation) Close() {
	cv.stream.Close()
	<-cv.done
}

func (cv *Conversation) listen() {
	defer close(cv.done)
	for env := range cv.stream.Events() {
		changed, err := cv.apply(env)
		if err != nil {
			log.Warn("Ignoring malformed room event", "roomId", cv.roomID, "event", env.Event, "err", err)
			continue
		}
		if changed {
			select {
			case cv.updates <- struct{}{}:
			default:
			}
		}
	}
}

func (cv *Conversation) apply(env realtime.Envelope) (bool, error) {
	switch env.Event {
	case realtime.EventNewMessage:
		var p realtime.NewMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return false, err
		}
		return cv.timeline.ApplyNew(p), nil
	case realtime.EventMessageUpdated:
		var p realtime.MessageUpdatedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return false, err
		}
		return cv.timeline.ApplyUpdated(p), nil
	case realtime.EventMessageDeleted:
		var p realtime.MessageDeletedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return false, err
		}
		return cv.timeline.ApplyDeleted(p), nil
	default:
		return false, fmt.Errorf("unexpected event %q", env.Event)
	}
}
