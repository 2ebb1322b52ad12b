package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/metrics"
	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic transaction retries after a WATCH conflict.
const maxTxRetries = 3

// Messages is the Redis room log. Each room is a sorted set of message ids
// scored by timestamp plus a hash of id to JSON body, so every entry is
// addressed by the compound key (timestamp, id). Ties on timestamp order by id.
type Messages struct {
	client redis.UniversalClient
}

func NewMessages(client redis.UniversalClient) *Messages {
	return &Messages{client: client}
}

var _ MessageStore = (*Messages)(nil)

// Append stores msg under its timestamp. Index and body are written together.
func (m *Messages) Append(ctx context.Context, roomID string, msg models.Message) error {
	defer metrics.ObserveStore("message_append", time.Now())

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, messageIndexKey(roomID), redis.Z{Score: float64(msg.Timestamp), Member: msg.ID})
		pipe.HSet(ctx, messageBodyKey(roomID), msg.ID, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (m *Messages) Read(ctx context.Context, roomID string, limit int, before int64, beforeID string) ([]models.Message, error) {
	defer metrics.ObserveStore("message_read", time.Now())

	if limit <= 0 {
		return []models.Message{}, nil
	}

	var ids []string
	var err error
	if before > 0 {
		ids, err = m.readBefore(ctx, roomID, limit, before, beforeID)
	} else {
		ids, err = m.client.ZRevRange(ctx, messageIndexKey(roomID), 0, int64(limit-1)).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	if len(ids) == 0 {
		return []models.Message{}, nil
	}

	bodies, err := m.client.HMGet(ctx, messageBodyKey(roomID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	// ids are newest first; walk backwards for chronological order.
	out := make([]models.Message, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		raw, ok := bodies[i].(string)
		if !ok {
			// removed between the two reads
			continue
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			log.Warn("Skipping undecodable message", "room", roomID, "id", ids[i], "err", err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// readBefore returns up to limit ids strictly older than (before, beforeID),
// newest first. Members sharing the before timestamp are read as a group
// and only those with an id below beforeID are kept; an empty beforeID
// excludes the whole group.
func (m *Messages) readBefore(ctx context.Context, roomID string, limit int, before int64, beforeID string) ([]string, error) {
	key := messageIndexKey(roomID)
	score := strconv.FormatInt(before, 10)

	var ids []string
	if beforeID != "" {
		tied, err := m.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{Max: score, Min: score}).Result()
		if err != nil {
			return nil, err
		}
		for _, id := range tied {
			if id < beforeID {
				ids = append(ids, id)
				if len(ids) == limit {
					return ids, nil
				}
			}
		}
	}

	older, err := m.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Max:   "(" + score,
		Min:   "-inf",
		Count: int64(limit - len(ids)),
	}).Result()
	if err != nil {
		return nil, err
	}
	return append(ids, older...), nil
}

func (m *Messages) Find(ctx context.Context, roomID, messageID string, timestamp int64) (*models.Message, error) {
	defer metrics.ObserveStore("message_find", time.Now())
	return m.load(ctx, m.client, roomID, messageID, timestamp)
}

// Update rewrites the body of (timestamp, messageID) with new content and
// marks it edited. Id, sender and timestamp are preserved.
func (m *Messages) Update(ctx context.Context, roomID, messageID string, timestamp int64, content string) (*models.Message, error) {
	defer metrics.ObserveStore("message_update", time.Now())

	var updated *models.Message
	err := m.watch(ctx, func(tx *redis.Tx) error {
		msg, err := m.load(ctx, tx, roomID, messageID, timestamp)
		if err != nil {
			return err
		}
		msg.Content = content
		msg.IsEdited = true
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, messageBodyKey(roomID), messageID, data)
			return nil
		})
		if err == nil {
			updated = msg
		}
		return err
	}, messageIndexKey(roomID), messageBodyKey(roomID))
	if err != nil {
		return nil, wrapStoreErr("update message", err)
	}
	return updated, nil
}

// Remove deletes exactly the entry (timestamp, messageID).
func (m *Messages) Remove(ctx context.Context, roomID, messageID string, timestamp int64) error {
	defer metrics.ObserveStore("message_remove", time.Now())

	err := m.watch(ctx, func(tx *redis.Tx) error {
		if _, err := m.load(ctx, tx, roomID, messageID, timestamp); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, messageIndexKey(roomID), messageID)
			pipe.HDel(ctx, messageBodyKey(roomID), messageID)
			return nil
		})
		return err
	}, messageIndexKey(roomID), messageBodyKey(roomID))
	return wrapStoreErr("remove message", err)
}

func (m *Messages) Latest(ctx context.Context, roomID string) (*models.Message, error) {
	defer metrics.ObserveStore("message_latest", time.Now())

	ids, err := m.client.ZRevRange(ctx, messageIndexKey(roomID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	raw, err := m.client.HGet(ctx, messageBodyKey(roomID), ids[0]).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	var msg models.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	return &msg, nil
}

type messageReader interface {
	ZScore(ctx context.Context, key, member string) *redis.FloatCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// load returns the message only if messageID is indexed at exactly timestamp.
func (m *Messages) load(ctx context.Context, r messageReader, roomID, messageID string, timestamp int64) (*models.Message, error) {
	score, err := r.ZScore(ctx, messageIndexKey(roomID), messageID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if int64(score) != timestamp {
		return nil, ErrNotFound
	}

	raw, err := r.HGet(ctx, messageBodyKey(roomID), messageID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var msg models.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *Messages) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := m.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			log.Debug("Retrying message transaction after conflict", "attempt", i+1)
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

func wrapStoreErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
