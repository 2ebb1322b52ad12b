// Package client is a Go client for the Pidgeon HTTP API, plus the
// optimistic timeline a chat view keeps for one room.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	"github.com/Staby-Guy/pidgeon/internal/api/services"
	"github.com/Staby-Guy/pidgeon/internal/models"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pidgeon: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Session identifies the signed-in user.
type Session struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Client talks to one server. The session cookie lives in its jar, so a
// Client represents a single user.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
	}, nil
}

func (c *Client) SignUp(ctx context.Context, in services.SignUpInput) (string, error) {
	var out struct {
		UserID string `json:"userId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/sign-up", nil, in, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var out Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil, nil)
}

func (c *Client) PresignAvatar(ctx context.Context, contentType string) (*services.AvatarUpload, error) {
	var out services.AvatarUpload
	body := map[string]string{"contentType": contentType}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/avatar/presign", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Contacts(ctx context.Context) ([]services.ContactSummary, error) {
	var out struct {
		Contacts []services.ContactSummary `json:"contacts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/contacts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Contacts, nil
}

func (c *Client) AddContact(ctx context.Context, contactID string) (*services.ContactSummary, error) {
	var out struct {
		Contact services.ContactSummary `json:"contact"`
	}
	body := map[string]string{"contactId": contactID}
	if err := c.do(ctx, http.MethodPost, "/api/v1/contacts", nil, body, &out); err != nil {
		return nil, err
	}
	return &out.Contact, nil
}

func (c *Client) RemoveContact(ctx context.Context, contactID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/contacts/"+url.PathEscape(contactID), nil, nil, nil)
}

// Search looks a user up by exact username.
func (c *Client) Search(ctx context.Context, username string) ([]models.Profile, error) {
	var out struct {
		Users []models.Profile `json:"users"`
	}
	q := url.Values{"username": {username}}
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// Messages fetches a page of roomID. Zero limit and before use the server
// defaults. To page back, pass the timestamp and id of the oldest message
// already held.
func (c *Client) Messages(ctx context.Context, roomID string, limit int, before int64, beforeID string) ([]models.Message, error) {
	q := url.Values{"roomId": {roomID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}
	if beforeID != "" {
		q.Set("beforeId", beforeID)
	}
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/messages", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) Send(ctx context.Context, in services.SendInput) (*models.Message, error) {
	return c.message(ctx, http.MethodPost, in)
}

func (c *Client) Edit(ctx context.Context, in services.EditInput) (*models.Message, error) {
	return c.message(ctx, http.MethodPatch, in)
}

func (c *Client) Delete(ctx context.Context, in services.DeleteInput) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/messages", nil, in, nil)
}

func (c *Client) message(ctx context.Context, method string, body any) (*models.Message, error) {
	var out struct {
		Message models.Message `json:"message"`
	}
	if err := c.do(ctx, method, "/api/v1/messages", nil, body, &out); err != nil {
		return nil, err
	}
	return &out.Message, nil
}

// Unread returns pending counts keyed by room id.
func (c *Client) Unread(ctx context.Context) (map[string]int64, error) {
	var out struct {
		Unread map[string]int64 `json:"unread"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/unread", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Unread, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: resp.Status}
		}
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", method, path, err)
	}
	return nil
}
