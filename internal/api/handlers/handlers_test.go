package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/api/middleware"
	"github.com/Staby-Guy/pidgeon/internal/api/services"
	"github.com/Staby-Guy/pidgeon/internal/config"
	"github.com/Staby-Guy/pidgeon/internal/realtime"
	"github.com/Staby-Guy/pidgeon/internal/repositories/memory"
	"github.com/Staby-Guy/pidgeon/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frontend = "http://frontend.test"

type testEnv struct {
	h   *Handler
	hub *realtime.Hub
}

func newTestEnv(t *testing.T, google *services.GoogleOAuth) *testEnv {
	t.Helper()
	db := memory.New()
	hub := realtime.NewHub(realtime.NewLocalTransport())
	events := realtime.NewDispatcher(hub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h := New(Deps{
		Accounts: services.NewAccounts(db, nil),
		Contacts: services.NewContacts(db, db, db, db, events, nil),
		Messages: services.NewMessages(db, db, db, events),
		Streams:  services.NewStreams(hub),
		Avatars:  services.NewAvatars(nil),
		Tokens:   services.NewTokens("test-secret"),
		Google:   google,
		Config:   config.Config{Environment: "test", FrontendURL: frontend},
	})
	return &testEnv{h: h, hub: hub}
}

func asCaller(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.WithCaller(r.Context(), middleware.Caller{UserID: userID, Username: userID}))
}

func decodePayload(t *testing.T, w *httptest.ResponseRecorder) utils.Payload {
	t.Helper()
	var p utils.Payload
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	return p
}

func TestProtectedHandlersRequireCaller(t *testing.T) {
	env := newTestEnv(t, nil)

	w := httptest.NewRecorder()
	env.h.GetUnread(w, httptest.NewRequest(http.MethodGet, "/unread", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, decodePayload(t, w).Success)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/contacts", strings.NewReader(`{"contactId":"u2","extra":1}`))
	w := httptest.NewRecorder()
	env.h.AddContact(w, asCaller(req, "u1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid input", decodePayload(t, w).Message)
}

func TestGetMessagesValidatesQuery(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := map[string]int{
		"/messages?roomId=u1_u2&limit=ten":     http.StatusBadRequest,
		"/messages?roomId=u1_u2&before=soon":   http.StatusBadRequest,
		"/messages?limit=5":                    http.StatusBadRequest,
		"/messages?roomId=u2_u3":               http.StatusForbidden,
		"/messages?roomId=u1_u2&limit=500":     http.StatusOK,
		"/messages?roomId=u1_u2&before=100000": http.StatusOK,
	}
	for target, want := range cases {
		w := httptest.NewRecorder()
		env.h.GetMessages(w, asCaller(httptest.NewRequest(http.MethodGet, target, nil), "u1"))
		assert.Equal(t, want, w.Code, target)
	}
}

func TestGoogleDisabled(t *testing.T) {
	env := newTestEnv(t, nil)

	w := httptest.NewRecorder()
	env.h.GoogleLogin(w, httptest.NewRequest(http.MethodGet, "/google/login", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGoogleLoginRoundTripsState(t *testing.T) {
	google := services.NewGoogleOAuth(config.GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://api.test/api/v1/auth/google/callback",
	})
	require.NotNil(t, google)
	env := newTestEnv(t, google)

	w := httptest.NewRecorder()
	env.h.GoogleLogin(w, httptest.NewRequest(http.MethodGet, "/google/login", nil))
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	s, err := parseOAuthState(state)
	require.NoError(t, err)
	assert.Equal(t, "login", s.Flow)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, oauthStateCookie, cookies[0].Name)
	assert.Equal(t, state, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	// A callback whose state does not match the cookie never reaches Google.
	req := httptest.NewRequest(http.MethodGet, "/google/callback?state=forged&code=abc", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	env.h.GoogleCallback(w, req)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, frontend+"/auth/signin?error=invalid_state", w.Header().Get("Location"))
}

func TestParseOAuthStateRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "nonce", ".e30", "nonce.!!!", "nonce.e30.extra"} {
		_, err := parseOAuthState(raw)
		assert.ErrorIs(t, err, errInvalidState, raw)
	}
}

func TestStreamSendsEventsAndHeartbeats(t *testing.T) {
	env := newTestEnv(t, nil)
	env.h.heartbeat = 20 * time.Millisecond

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.h.Stream(w, asCaller(r, "u1"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?channel="+realtime.ChatChannel("u1_u2"), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, ": subscribed chat-u1_u2", lines.Text())

	require.NoError(t, env.hub.Publish(ctx, realtime.ChatChannel("u1_u2"), realtime.EventMessageDeleted,
		realtime.MessageDeletedPayload{ID: "m1", Timestamp: 1000, RoomID: "u1_u2"}))

	var sawPing bool
	var data string
	for data == "" || !sawPing {
		require.True(t, lines.Scan(), "stream ended early")
		line := lines.Text()
		switch {
		case line == ": ping":
			sawPing = true
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	var got realtime.Envelope
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, realtime.EventMessageDeleted, got.Event)
	assert.JSONEq(t, `{"id":"m1","timestamp":1000,"roomId":"u1_u2"}`, string(got.Data))
}

func TestStreamRejectsForeignChannels(t *testing.T) {
	env := newTestEnv(t, nil)

	for channel, want := range map[string]int{
		realtime.UserChannel("u2"):    http.StatusForbidden,
		realtime.ChatChannel("u2_u3"): http.StatusForbidden,
		"general":                     http.StatusBadRequest,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/realtime?channel="+url.QueryEscape(channel), nil)
		env.h.Stream(w, asCaller(req, "u1"))
		assert.Equal(t, want, w.Code, channel)
	}
}
