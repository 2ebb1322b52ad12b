package repositories

import (
	"context"
	"testing"

	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/testutil/testredis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestRedisStores(t *testing.T) {
	client := testredis.NewClient(t)
	ctx := context.Background()

	t.Run("contacts are symmetric", func(t *testing.T) {
		contacts := NewContacts(client)

		require.NoError(t, contacts.AddContact(ctx, "c1", "c2"))
		require.NoError(t, contacts.AddContact(ctx, "c1", "c2"))

		ok, err := contacts.IsContact(ctx, "c2", "c1")
		require.NoError(t, err)
		assert.True(t, ok)

		list, err := contacts.GetContacts(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"c2"}, list)

		require.NoError(t, contacts.RemoveContact(ctx, "c2", "c1"))
		ok, err = contacts.IsContact(ctx, "c1", "c2")
		require.NoError(t, err)
		assert.False(t, ok)

		list, err = contacts.GetContacts(ctx, "c2")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("unread counters", func(t *testing.T) {
		unread := NewUnread(client)

		n, err := unread.Increment(ctx, "u9", "r1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		n, err = unread.Increment(ctx, "u9", "r1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		_, err = unread.Increment(ctx, "u9", "r2")
		require.NoError(t, err)

		all, err := unread.GetAll(ctx, "u9")
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"r1": 2, "r2": 1}, all)

		require.NoError(t, unread.Reset(ctx, "u9", "r1"))
		require.NoError(t, unread.Reset(ctx, "u9", "missing"))
		all, err = unread.GetAll(ctx, "u9")
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"r2": 1}, all)

		all, err = unread.GetAll(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("messages sharing a timestamp are addressed by id", func(t *testing.T) {
		messages := NewMessages(client)
		room := "u1_u2"

		require.NoError(t, messages.Append(ctx, room, models.Message{ID: "m1", SenderID: "u1", Content: "hi", Timestamp: 1000}))
		require.NoError(t, messages.Append(ctx, room, models.Message{ID: "m2", SenderID: "u2", Content: "hey", Timestamp: 1000}))

		updated, err := messages.Update(ctx, room, "m1", 1000, "hello")
		require.NoError(t, err)
		assert.Equal(t, "hello", updated.Content)
		assert.True(t, updated.IsEdited)
		assert.Equal(t, "u1", updated.SenderID)

		got, err := messages.Read(ctx, room, 50, 0, "")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, []string{"m1", "m2"}, ids(got))
		assert.Equal(t, "hello", got[0].Content)
		assert.Equal(t, "hey", got[1].Content)
		assert.False(t, got[1].IsEdited)

		require.NoError(t, messages.Remove(ctx, room, "m2", 1000))
		got, err = messages.Read(ctx, room, 50, 0, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, ids(got))
	})

	t.Run("mismatched timestamp is not found", func(t *testing.T) {
		messages := NewMessages(client)
		room := "a_b"
		require.NoError(t, messages.Append(ctx, room, models.Message{ID: "x", SenderID: "a", Content: "one", Timestamp: 5}))

		_, err := messages.Find(ctx, room, "x", 6)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = messages.Update(ctx, room, "x", 6, "two")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, messages.Remove(ctx, room, "x", 6), ErrNotFound)
		assert.ErrorIs(t, messages.Remove(ctx, room, "nope", 5), ErrNotFound)

		found, err := messages.Find(ctx, room, "x", 5)
		require.NoError(t, err)
		assert.Equal(t, "one", found.Content)
	})

	t.Run("read pages with an exclusive cursor", func(t *testing.T) {
		messages := NewMessages(client)
		room := "p_q"
		for i, id := range []string{"a", "b", "c", "d", "e"} {
			require.NoError(t, messages.Append(ctx, room, models.Message{ID: id, SenderID: "p", Content: id, Timestamp: int64(100 + i*10)}))
		}

		got, err := messages.Read(ctx, room, 2, 0, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "e"}, ids(got))

		got, err = messages.Read(ctx, room, 2, 130, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, ids(got))

		got, err = messages.Read(ctx, room, 10, 100, "")
		require.NoError(t, err)
		assert.Empty(t, got)

		latest, err := messages.Latest(ctx, room)
		require.NoError(t, err)
		assert.Equal(t, "e", latest.ID)

		_, err = messages.Latest(ctx, "empty_room")
		assert.ErrorIs(t, err, ErrNotFound)

		got, err = messages.Read(ctx, "empty_room", 50, 0, "")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("read pages across a timestamp tie", func(t *testing.T) {
		messages := NewMessages(client)
		room := "t_u"
		require.NoError(t, messages.Append(ctx, room, models.Message{ID: "a", SenderID: "t", Content: "a", Timestamp: 1000}))
		require.NoError(t, messages.Append(ctx, room, models.Message{ID: "b", SenderID: "t", Content: "b", Timestamp: 1000}))
		require.NoError(t, messages.Append(ctx, room, models.Message{ID: "c", SenderID: "u", Content: "c", Timestamp: 2000}))

		got, err := messages.Read(ctx, room, 2, 0, "")
		require.NoError(t, err)
		require.Equal(t, []string{"b", "c"}, ids(got))

		got, err = messages.Read(ctx, room, 2, got[0].Timestamp, got[0].ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids(got))

		got, err = messages.Read(ctx, room, 2, 1000, "a")
		require.NoError(t, err)
		assert.Empty(t, got)

		// without an id the whole tie group is skipped
		got, err = messages.Read(ctx, room, 2, 2000, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(got))

		got, err = messages.Read(ctx, room, 1, 2000, "c")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(got))
	})
}
