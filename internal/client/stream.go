package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Staby-Guy/pidgeon/internal/realtime"
)

// Stream is an open event feed for one channel.
type Stream struct {
	events chan realtime.Envelope
	body   io.ReadCloser
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Stream subscribes to channel. It returns once the server has confirmed
// the subscription, so events published afterwards are not missed.
func (c *Client) Stream(ctx context.Context, channel string) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/realtime", url.Values{"channel": {channel}}, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stream %s: %w", channel, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer resp.Body.Close()
		var env envelope
		_ = json.NewDecoder(resp.Body).Decode(&env)
		return nil, &APIError{Status: resp.StatusCode, Message: env.Message}
	}

	s := &Stream{
		events: make(chan realtime.Envelope, 16),
		body:   resp.Body,
		cancel: cancel,
	}
	r := bufio.NewReader(resp.Body)
	// The server opens with a comment frame once subscribed.
	if _, err := readFrame(r); err != nil {
		s.Close()
		return nil, fmt.Errorf("open stream %s: %w", channel, err)
	}
	go s.read(ctx, r)
	return s, nil
}

// Events yields envelopes in arrival order and is closed when the stream
// ends. Err reports why.
func (s *Stream) Events() <-chan realtime.Envelope {
	return s.events
}

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) Close() {
	s.cancel()
	_ = s.body.Close()
}

func (s *Stream) read(ctx context.Context, r *bufio.Reader) {
	defer close(s.events)
	for {
		f, err := readFrame(r)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				s.setErr(err)
			}
			return
		}
		if f.data == "" {
			continue
		}
		var env realtime.Envelope
		if err := json.Unmarshal([]byte(f.data), &env); err != nil {
			s.setErr(fmt.Errorf("decode %s event: %w", f.event, err))
			return
		}
		select {
		case s.events <- env:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type frame struct {
	event string
	data  string
}

// readFrame reads up to the blank line closing one event-stream frame.
// Comment lines are skipped.
func readFrame(r *bufio.Reader) (frame, error) {
	var f frame
	var data []string
	seen := false
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return f, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if seen {
				f.data = strings.Join(data, "\n")
				return f, nil
			}
			continue
		}
		seen = true
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			f.event = value
		case "data":
			data = append(data, value)
		}
	}
}
