package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/metrics"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// Unread keeps one Redis hash per user: field = room id, value = count.
type Unread struct {
	client redis.UniversalClient
}

func NewUnread(client redis.UniversalClient) *Unread {
	return &Unread{client: client}
}

var _ UnreadStore = (*Unread)(nil)

func (u *Unread) Increment(ctx context.Context, userID, roomID string) (int64, error) {
	defer metrics.ObserveStore("unread_increment", time.Now())

	n, err := u.client.HIncrBy(ctx, unreadKey(userID), roomID, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("increment unread: %w", err)
	}
	return n, nil
}

// Reset removes the room field; an absent field reads as zero.
func (u *Unread) Reset(ctx context.Context, userID, roomID string) error {
	defer metrics.ObserveStore("unread_reset", time.Now())

	if err := u.client.HDel(ctx, unreadKey(userID), roomID).Err(); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return nil
}

func (u *Unread) GetAll(ctx context.Context, userID string) (map[string]int64, error) {
	defer metrics.ObserveStore("unread_get_all", time.Now())

	raw, err := u.client.HGetAll(ctx, unreadKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get unread: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for room, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Warn("Skipping malformed unread counter", "user", userID, "room", room, "value", v)
			continue
		}
		out[room] = n
	}
	return out, nil
}
