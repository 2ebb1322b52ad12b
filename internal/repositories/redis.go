package repositories

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis builds a client from a redis:// URL and verifies the connection.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	log.Info("Successfully connected to redis", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}

func contactsKey(userID string) string {
	return fmt.Sprintf("user:%s:contacts", userID)
}

func unreadKey(userID string) string {
	return fmt.Sprintf("user:%s:unread", userID)
}

// messageIndexKey orders a room: member = message id, score = timestamp.
func messageIndexKey(roomID string) string {
	return fmt.Sprintf("chat:%s:messages", roomID)
}

// messageBodyKey maps message id to the JSON-encoded message.
func messageBodyKey(roomID string) string {
	return fmt.Sprintf("chat:%s:bodies", roomID)
}
