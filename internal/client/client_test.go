package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/api/services"
	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/realtime"
	"github.com/Staby-Guy/pidgeon/internal/testutil/testserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "secret123"

func signedIn(t *testing.T, srv *testserver.Server, username string) (*Client, *Session) {
	t.Helper()
	ctx := context.Background()
	c, err := New(srv.URL)
	require.NoError(t, err)

	email := username + "@example.com"
	_, err = c.SignUp(ctx, services.SignUpInput{Email: email, Username: username, Password: password})
	require.NoError(t, err)
	s, err := c.Login(ctx, email, password)
	require.NoError(t, err)
	require.Equal(t, username, s.Username)
	return c, s
}

func next(t *testing.T, s *Stream) realtime.Envelope {
	t.Helper()
	select {
	case env, ok := <-s.Events():
		require.True(t, ok, "stream closed: %v", s.Err())
		return env
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return realtime.Envelope{}
	}
}

func TestConversationEndToEnd(t *testing.T) {
	srv := testserver.New(t)
	ctx := context.Background()
	alice, a := signedIn(t, srv, "alice")
	bob, b := signedIn(t, srv, "bob")

	bobInbox, err := bob.Stream(ctx, realtime.UserChannel(b.UserID))
	require.NoError(t, err)
	defer bobInbox.Close()

	found, err := alice.Search(ctx, "BOB")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.UserID, found[0].ID)

	contact, err := alice.AddContact(ctx, b.UserID)
	require.NoError(t, err)
	roomID, err := models.RoomID(a.UserID, b.UserID)
	require.NoError(t, err)
	assert.Equal(t, roomID, contact.RoomID)

	env := next(t, bobInbox)
	assert.Equal(t, realtime.EventContactAdded, env.Event)
	var added realtime.ContactAddedPayload
	require.NoError(t, json.Unmarshal(env.Data, &added))
	assert.Equal(t, realtime.ContactAddedPayload{UserID: a.UserID, Username: "alice"}, added)

	aliceConv, err := alice.OpenConversation(ctx, a.UserID, b.UserID)
	require.NoError(t, err)
	defer aliceConv.Close()
	bobConv, err := bob.OpenRoom(ctx, b.UserID, roomID)
	require.NoError(t, err)
	defer bobConv.Close()
	assert.Equal(t, roomID, bobConv.RoomID())

	sent, err := aliceConv.Send(ctx, "  hello bob  ")
	require.NoError(t, err)
	assert.Equal(t, "hello bob", sent.Content)

	env = next(t, bobInbox)
	assert.Equal(t, realtime.EventIncomingMessage, env.Event)
	var incoming realtime.IncomingMessagePayload
	require.NoError(t, json.Unmarshal(env.Data, &incoming))
	assert.Equal(t, roomID, incoming.RoomID)
	assert.Equal(t, "alice", incoming.Username)

	require.Eventually(t, func() bool {
		return len(bobConv.Timeline().Entries()) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, sent.ID, bobConv.Timeline().Entries()[0].ID)

	// Alice sees her message once, whichever of response and event came first.
	require.Eventually(t, func() bool {
		entries := aliceConv.Timeline().Entries()
		return len(entries) == 1 && entries[0].ID == sent.ID && !entries[0].Pending
	}, 3*time.Second, 10*time.Millisecond)

	unread, err := bob.Unread(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread[roomID])

	contacts, err := bob.Contacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.NotNil(t, contacts[0].LatestMessage)
	assert.Equal(t, "hello bob", contacts[0].LatestMessage.Content)
	assert.False(t, contacts[0].LatestMessage.IsOwn)
	assert.Equal(t, int64(1), contacts[0].Unread)

	history, err := bob.Messages(ctx, roomID, 0, 0, "")
	require.NoError(t, err)
	require.Len(t, history, 1)
	unread, err = bob.Unread(ctx)
	require.NoError(t, err)
	assert.Zero(t, unread[roomID])

	_, err = bobConv.Edit(ctx, *sent, "hijacked")
	assert.True(t, IsStatus(err, http.StatusForbidden), "err: %v", err)

	edited, err := aliceConv.Edit(ctx, *sent, "hello again")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	require.Eventually(t, func() bool {
		entries := bobConv.Timeline().Entries()
		return len(entries) == 1 && entries[0].Content == "hello again" && entries[0].IsEdited
	}, 3*time.Second, 10*time.Millisecond)

	assert.True(t, IsStatus(bobConv.Delete(ctx, *sent), http.StatusForbidden))
	require.NoError(t, aliceConv.Delete(ctx, *sent))
	require.Eventually(t, func() bool {
		return len(bobConv.Timeline().Entries()) == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSendFailureDiscardsPending(t *testing.T) {
	srv := testserver.New(t)
	ctx := context.Background()
	alice, a := signedIn(t, srv, "alice")
	bob, b := signedIn(t, srv, "bob")

	_, err := alice.AddContact(ctx, b.UserID)
	require.NoError(t, err)
	conv, err := alice.OpenConversation(ctx, a.UserID, b.UserID)
	require.NoError(t, err)
	defer conv.Close()

	require.NoError(t, bob.RemoveContact(ctx, a.UserID))

	_, err = conv.Send(ctx, "anyone there?")
	assert.True(t, IsStatus(err, http.StatusForbidden), "err: %v", err)
	assert.Empty(t, conv.Timeline().Entries())
}

func TestClientErrors(t *testing.T) {
	srv := testserver.New(t)
	ctx := context.Background()

	anon, err := New(srv.URL)
	require.NoError(t, err)
	_, err = anon.Contacts(ctx)
	assert.True(t, IsStatus(err, http.StatusUnauthorized), "err: %v", err)

	_, err = anon.Login(ctx, "nobody@example.com", password)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials", apiErr.Message)

	alice, a := signedIn(t, srv, "alice")
	_, b := signedIn(t, srv, "bob")

	_, err = alice.Stream(ctx, realtime.UserChannel(b.UserID))
	assert.True(t, IsStatus(err, http.StatusForbidden), "err: %v", err)
	_, err = alice.Stream(ctx, "lobby")
	assert.True(t, IsStatus(err, http.StatusBadRequest), "err: %v", err)

	_, err = alice.AddContact(ctx, a.UserID)
	assert.True(t, IsStatus(err, http.StatusBadRequest), "err: %v", err)

	_, err = alice.PresignAvatar(ctx, "image/png")
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable), "err: %v", err)

	require.NoError(t, alice.Logout(ctx))
	_, err = alice.Unread(ctx)
	assert.True(t, IsStatus(err, http.StatusUnauthorized), "err: %v", err)
}
