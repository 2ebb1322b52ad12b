package realtime

import (
	"context"

	"github.com/Staby-Guy/pidgeon/internal/metrics"
	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/charmbracelet/log"
)

// NewMessagePayload is sent on the room channel when a message is created.
type NewMessagePayload struct {
	models.Message
	SenderUsername string `json:"senderUsername"`
	OptimisticID   string `json:"optimisticId,omitempty"`
	RoomID         string `json:"roomId"`
}

// MessageUpdatedPayload is sent on the room channel after an edit.
type MessageUpdatedPayload struct {
	models.Message
	RoomID string `json:"roomId"`
}

type MessageDeletedPayload struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	RoomID    string `json:"roomId"`
}

// IncomingMessagePayload notifies the recipient outside the open room.
type IncomingMessagePayload struct {
	RoomID    string `json:"roomId"`
	SenderID  string `json:"senderId"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type ContactAddedPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Dispatcher maps domain events onto channels. Delivery is best effort:
// a failed publish is logged and counted, never returned.
type Dispatcher struct {
	pub Publisher
}

func NewDispatcher(pub Publisher) *Dispatcher {
	return &Dispatcher{pub: pub}
}

func (d *Dispatcher) NewMessage(ctx context.Context, roomID string, msg models.Message, senderUsername, optimisticID string) {
	d.publish(ctx, ChatChannel(roomID), EventNewMessage, NewMessagePayload{
		Message:        msg,
		SenderUsername: senderUsername,
		OptimisticID:   optimisticID,
		RoomID:         roomID,
	})
}

func (d *Dispatcher) IncomingMessage(ctx context.Context, recipientID, roomID string, msg models.Message, senderUsername string) {
	d.publish(ctx, UserChannel(recipientID), EventIncomingMessage, IncomingMessagePayload{
		RoomID:    roomID,
		SenderID:  msg.SenderID,
		Username:  senderUsername,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	})
}

func (d *Dispatcher) MessageUpdated(ctx context.Context, roomID string, msg models.Message) {
	d.publish(ctx, ChatChannel(roomID), EventMessageUpdated, MessageUpdatedPayload{
		Message: msg,
		RoomID:  roomID,
	})
}

func (d *Dispatcher) MessageDeleted(ctx context.Context, roomID, messageID string, timestamp int64) {
	d.publish(ctx, ChatChannel(roomID), EventMessageDeleted, MessageDeletedPayload{
		ID:        messageID,
		Timestamp: timestamp,
		RoomID:    roomID,
	})
}

// ContactAdded tells targetID that adder now has them as a contact.
func (d *Dispatcher) ContactAdded(ctx context.Context, targetID string, adder models.Profile) {
	d.publish(ctx, UserChannel(targetID), EventContactAdded, ContactAddedPayload{
		UserID:   adder.ID,
		Username: adder.Username,
	})
}

func (d *Dispatcher) publish(ctx context.Context, channel, event string, payload any) {
	if err := d.pub.Publish(ctx, channel, event, payload); err != nil {
		metrics.PublishFailed(event)
		log.Error("Failed to publish realtime event", "channel", channel, "event", event, "err", err)
	}
}
