package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Staby-Guy/pidgeon/internal/apperrors"
	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/realtime"
	"github.com/Staby-Guy/pidgeon/internal/repositories"
	"github.com/Staby-Guy/pidgeon/internal/utils"
	"github.com/charmbracelet/log"
)

const (
	DefaultPageSize  = 50
	MaxPageSize      = 200
	MaxContentLength = 2000
)

type SendInput struct {
	RecipientID  string `json:"recipientId"`
	Content      string `json:"content"`
	OptimisticID string `json:"optimisticId,omitempty"`
}

type EditInput struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
	Content   string `json:"content"`
}

type DeleteInput struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
}

// Messages runs the message lifecycle of two-party rooms.
type Messages struct {
	contacts repositories.ContactStore
	messages repositories.MessageStore
	unread   repositories.UnreadStore
	events   *realtime.Dispatcher

	now   func() time.Time
	newID func() (string, error)
}

func NewMessages(
	contacts repositories.ContactStore,
	messages repositories.MessageStore,
	unread repositories.UnreadStore,
	events *realtime.Dispatcher,
) *Messages {
	return &Messages{
		contacts: contacts,
		messages: messages,
		unread:   unread,
		events:   events,
		now:      time.Now,
		newID:    utils.NewMessageID,
	}
}

// Fetch returns up to limit messages of roomID in chronological order and
// clears the caller's unread counter for the room. A positive before only
// returns messages ordered strictly below (before, beforeID); pass the
// oldest message of the previous page to continue past timestamp ties.
func (s *Messages) Fetch(ctx context.Context, callerID, roomID string, limit int, before int64, beforeID string) ([]models.Message, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, apperrors.ErrRoomIDRequired
	}
	if !models.IsRoomMember(roomID, callerID) {
		return nil, apperrors.ErrRoomAccessDenied
	}

	msgs, err := s.messages.Read(ctx, roomID, clampLimit(limit), before, beforeID)
	if err != nil {
		return nil, apperrors.Internal("failed to read messages", err)
	}
	if err := s.unread.Reset(ctx, callerID, roomID); err != nil {
		return nil, apperrors.Internal("failed to reset unread count", err)
	}
	return msgs, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// Send appends a message to the room shared with the recipient, counts it
// as unread for the recipient and then broadcasts it.
func (s *Messages) Send(ctx context.Context, sender models.Profile, in SendInput) (*models.Message, error) {
	recipientID := strings.TrimSpace(in.RecipientID)
	content := strings.TrimSpace(in.Content)
	if recipientID == "" || content == "" {
		return nil, apperrors.ErrMessageFieldsEmpty
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, apperrors.ErrMessageTooLong
	}

	ok, err := s.contacts.IsContact(ctx, sender.ID, recipientID)
	if err != nil {
		return nil, apperrors.Internal("failed to check contact", err)
	}
	if !ok || recipientID == sender.ID {
		return nil, apperrors.ErrNotContacts
	}
	roomID, err := models.RoomID(sender.ID, recipientID)
	if err != nil {
		return nil, apperrors.ErrNotContacts
	}

	id, err := s.newID()
	if err != nil {
		return nil, apperrors.Internal("failed to generate message id", err)
	}
	msg := models.Message{
		ID:        id,
		SenderID:  sender.ID,
		Content:   content,
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.messages.Append(ctx, roomID, msg); err != nil {
		return nil, apperrors.Internal("failed to store message", err)
	}
	// The message is already stored; a lost counter must not fail the send.
	if _, err := s.unread.Increment(ctx, recipientID, roomID); err != nil {
		log.Error("Failed to count unread message", "room", roomID, "recipient", recipientID, "id", msg.ID, "err", err)
	}

	s.events.NewMessage(ctx, roomID, msg, sender.Username, in.OptimisticID)
	s.events.IncomingMessage(ctx, recipientID, roomID, msg, sender.Username)
	return &msg, nil
}

// Edit replaces the content of the caller's own message.
func (s *Messages) Edit(ctx context.Context, callerID string, in EditInput) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if strings.TrimSpace(in.RoomID) == "" || in.MessageID == "" || in.Timestamp <= 0 || content == "" {
		return nil, apperrors.ErrEditFieldsEmpty
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, apperrors.ErrMessageTooLong
	}
	if err := s.authorizeSender(ctx, callerID, in.RoomID, in.MessageID, in.Timestamp); err != nil {
		return nil, err
	}

	updated, err := s.messages.Update(ctx, in.RoomID, in.MessageID, in.Timestamp, content)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.ErrMessageNotFound
	}
	if err != nil {
		return nil, apperrors.Internal("failed to update message", err)
	}

	s.events.MessageUpdated(ctx, in.RoomID, *updated)
	return updated, nil
}

// Delete removes the caller's own message.
func (s *Messages) Delete(ctx context.Context, callerID string, in DeleteInput) error {
	if strings.TrimSpace(in.RoomID) == "" || in.MessageID == "" || in.Timestamp <= 0 {
		return apperrors.ErrDeleteFieldsEmpty
	}
	if err := s.authorizeSender(ctx, callerID, in.RoomID, in.MessageID, in.Timestamp); err != nil {
		return err
	}

	err := s.messages.Remove(ctx, in.RoomID, in.MessageID, in.Timestamp)
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.ErrMessageNotFound
	}
	if err != nil {
		return apperrors.Internal("failed to delete message", err)
	}

	s.events.MessageDeleted(ctx, in.RoomID, in.MessageID, in.Timestamp)
	return nil
}

// Unread returns the caller's pending counts keyed by room id.
func (s *Messages) Unread(ctx context.Context, callerID string) (map[string]int64, error) {
	counts, err := s.unread.GetAll(ctx, callerID)
	if err != nil {
		return nil, apperrors.Internal("failed to load unread counts", err)
	}
	return counts, nil
}

// authorizeSender requires callerID to be in the room and to have sent
// the addressed message.
func (s *Messages) authorizeSender(ctx context.Context, callerID, roomID, messageID string, timestamp int64) error {
	if !models.IsRoomMember(roomID, callerID) {
		return apperrors.ErrRoomAccessDenied
	}
	msg, err := s.messages.Find(ctx, roomID, messageID, timestamp)
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.ErrMessageNotFound
	}
	if err != nil {
		return apperrors.Internal("failed to load message", err)
	}
	if msg.SenderID != callerID {
		return apperrors.ErrNotMessageSender
	}
	return nil
}
