// Package realtime fans domain events out to subscribed clients over a
// pluggable transport.
package realtime

import (
	"errors"
	"strings"
)

const (
	chatChannelPrefix = "chat-"
	userChannelPrefix = "user-"
)

// Event names carried in the envelope.
const (
	EventNewMessage      = "new-message"
	EventMessageUpdated  = "message-updated"
	EventMessageDeleted  = "message-deleted"
	EventContactAdded    = "contact-added"
	EventIncomingMessage = "incoming-message"
	// EventTyping is reserved; nothing publishes it yet.
	EventTyping = "typing"
)

var ErrInvalidChannel = errors.New("invalid channel")

// ChannelKind tells room channels from user channels.
type ChannelKind int

const (
	ChatKind ChannelKind = iota + 1
	UserKind
)

// ChatChannel carries the message lifecycle of one room.
func ChatChannel(roomID string) string {
	return chatChannelPrefix + roomID
}

// UserChannel carries cross-room notifications for one user.
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// ParseChannel splits a channel name into its kind and the room or user id.
func ParseChannel(channel string) (ChannelKind, string, error) {
	switch {
	case strings.HasPrefix(channel, chatChannelPrefix) && len(channel) > len(chatChannelPrefix):
		return ChatKind, strings.TrimPrefix(channel, chatChannelPrefix), nil
	case strings.HasPrefix(channel, userChannelPrefix) && len(channel) > len(userChannelPrefix):
		return UserKind, strings.TrimPrefix(channel, userChannelPrefix), nil
	default:
		return 0, "", ErrInvalidChannel
	}
}
