package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/api/middleware"
	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/testutil/testserver"
	"github.com/Staby-Guy/pidgeon/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(t *testing.T, srv *testserver.Server, method, path, body string, user *models.User) (*http.Response, utils.Payload) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if user != nil {
		token, _, err := srv.Tokens.Issue(user)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var p utils.Payload
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	}
	return resp, p
}

func TestHealth(t *testing.T) {
	srv := testserver.New(t)

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	srv := testserver.New(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/contacts"},
		{http.MethodPost, "/api/v1/contacts"},
		{http.MethodDelete, "/api/v1/contacts/u2"},
		{http.MethodGet, "/api/v1/users/search?username=bob"},
		{http.MethodGet, "/api/v1/messages?roomId=u1_u2"},
		{http.MethodPost, "/api/v1/messages"},
		{http.MethodGet, "/api/v1/unread"},
		{http.MethodGet, "/api/v1/realtime?channel=user-u1"},
		{http.MethodPost, "/api/v1/auth/logout"},
	} {
		resp, p := request(t, srv, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, route.path)
		assert.False(t, p.Success, route.path)
	}
}

func TestSignUpAndLoginCookie(t *testing.T) {
	srv := testserver.New(t)

	resp, p := request(t, srv, http.MethodPost, "/api/v1/auth/sign-up",
		`{"email":"Alice@Example.com","username":"alice","password":"secret123"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, p.Message)
	assert.True(t, p.Success)

	resp, _ = request(t, srv, http.MethodPost, "/api/v1/auth/sign-up",
		`{"email":"alice@example.com","username":"alice2","password":"secret123"}`, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = request(t, srv, http.MethodPost, "/api/v1/auth/sign-up",
		`{"email":"bob@example.com","username":"b!","password":"secret123"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, p = request(t, srv, http.MethodPost, "/api/v1/auth/login",
		`{"email":"alice@example.com","password":"wrong-password"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", p.Message)

	resp, p = request(t, srv, http.MethodPost, "/api/v1/auth/login",
		`{"email":"alice@example.com","password":"secret123"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.NotEmpty(t, session.Value)

	claims, err := srv.Tokens.Parse(session.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestRoutesUseMethodPatterns(t *testing.T) {
	srv := testserver.New(t)
	alice := &models.User{ID: "u1", Username: "alice"}

	resp, _ := request(t, srv, http.MethodPut, "/api/v1/messages", `{}`, alice)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = request(t, srv, http.MethodGet, "/api/v1/auth/sign-up", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestContactRoutes(t *testing.T) {
	srv := testserver.New(t)
	ctx := t.Context()
	alice := &models.User{ID: "u1", Username: "alice", Email: "alice@example.com", PasswordHash: "x", CreatedAt: time.Now().UnixMilli()}
	bob := &models.User{ID: "u2", Username: "bob", Email: "bob@example.com", PasswordHash: "x", CreatedAt: time.Now().UnixMilli()}
	require.NoError(t, srv.DB.CreateUser(ctx, alice))
	require.NoError(t, srv.DB.CreateUser(ctx, bob))

	resp, p := request(t, srv, http.MethodPost, "/api/v1/contacts", `{"contactId":"u2"}`, alice)
	require.Equal(t, http.StatusOK, resp.StatusCode, p.Message)

	resp, _ = request(t, srv, http.MethodPost, "/api/v1/contacts", `{"contactId":"u2"}`, alice)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = request(t, srv, http.MethodPost, "/api/v1/contacts", `{"contactId":"u9"}`, alice)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = request(t, srv, http.MethodPost, "/api/v1/messages", `{"recipientId":"u2","content":"hi"}`, alice)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = request(t, srv, http.MethodDelete, "/api/v1/contacts/u1", "", bob)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = request(t, srv, http.MethodDelete, "/api/v1/contacts/u1", "", bob)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, p = request(t, srv, http.MethodPost, "/api/v1/messages", `{"recipientId":"u2","content":"still there?"}`, alice)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Can only message contacts", p.Message)

	// The room log outlives the contact relation.
	resp, p = request(t, srv, http.MethodGet, "/api/v1/messages?roomId=u1_u2", "", alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, ok := p.Data.(map[string]any)
	require.True(t, ok)
	assert.Len(t, data["messages"], 1)
}

func TestMessagesRoutePagesWithBeforeID(t *testing.T) {
	srv := testserver.New(t)
	ctx := t.Context()
	alice := &models.User{ID: "u1", Username: "alice"}
	for _, m := range []models.Message{
		{ID: "a", SenderID: "u1", Content: "a", Timestamp: 1000},
		{ID: "b", SenderID: "u2", Content: "b", Timestamp: 1000},
		{ID: "c", SenderID: "u1", Content: "c", Timestamp: 2000},
	} {
		require.NoError(t, srv.DB.Append(ctx, "u1_u2", m))
	}

	pageIDs := func(query string) []string {
		t.Helper()
		resp, p := request(t, srv, http.MethodGet, "/api/v1/messages?roomId=u1_u2&"+query, "", alice)
		require.Equal(t, http.StatusOK, resp.StatusCode, p.Message)
		data, ok := p.Data.(map[string]any)
		require.True(t, ok)
		var ids []string
		for _, m := range data["messages"].([]any) {
			ids = append(ids, m.(map[string]any)["id"].(string))
		}
		return ids
	}

	assert.Equal(t, []string{"b", "c"}, pageIDs("limit=2"))
	assert.Equal(t, []string{"a"}, pageIDs("limit=2&before=1000&beforeId=b"))
	assert.Empty(t, pageIDs("limit=2&before=1000&beforeId=a"))
}

func TestAvatarPresignIsRateLimitedPerClient(t *testing.T) {
	srv := testserver.New(t)

	presign := func(forwardedFor string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/auth/avatar/presign", strings.NewReader(`{"contentType":"image/png"}`))
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", forwardedFor)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	for i := 0; i < testserver.PresignPerMinute; i++ {
		// storage is not configured in tests, so admitted calls get 503
		assert.Equal(t, http.StatusServiceUnavailable, presign("203.0.113.7").StatusCode)
	}
	resp := presign("203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))

	// a spoofed leading entry does not buy a fresh bucket
	assert.Equal(t, http.StatusTooManyRequests, presign("198.51.100.1, 203.0.113.7").StatusCode)

	assert.Equal(t, http.StatusServiceUnavailable, presign("203.0.113.8").StatusCode)
}
