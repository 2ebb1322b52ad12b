package services

import (
	"context"
	"errors"

	"github.com/Staby-Guy/pidgeon/internal/apperrors"
	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/realtime"
)

// Streams opens realtime subscriptions on behalf of authenticated callers.
type Streams struct {
	subscriber realtime.Subscriber
}

func NewStreams(subscriber realtime.Subscriber) *Streams {
	return &Streams{subscriber: subscriber}
}

// Authorize allows a caller onto their own user channel and onto the chat
// channel of any room they belong to.
func (s *Streams) Authorize(callerID, channel string) error {
	kind, id, err := realtime.ParseChannel(channel)
	if err != nil {
		return apperrors.ErrInvalidChannel
	}
	switch kind {
	case realtime.UserKind:
		if id != callerID {
			return apperrors.ErrChannelAccessDenied
		}
	case realtime.ChatKind:
		if !models.IsRoomMember(id, callerID) {
			return apperrors.ErrChannelAccessDenied
		}
	}
	return nil
}

func (s *Streams) Open(ctx context.Context, callerID, channel string) (*realtime.Subscription, error) {
	if err := s.Authorize(callerID, channel); err != nil {
		return nil, err
	}
	sub, err := s.subscriber.Subscribe(ctx, channel)
	if errors.Is(err, realtime.ErrHubClosed) {
		return nil, apperrors.Unavailable("Realtime delivery is shutting down")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to subscribe", err)
	}
	return sub, nil
}
