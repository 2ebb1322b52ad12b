package client

import (
	"strings"
	"sync"

	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/realtime"
	"github.com/google/uuid"
)

const tempIDPrefix = "temp-"

// Entry is one row of a timeline. Pending entries were sent by this client
// and are not yet confirmed; their ID is the temporary id.
type Entry struct {
	models.Message
	Pending bool
}

// Timeline is the message list of one room as shown to one user. It merges
// optimistic sends, HTTP responses and stream events so each message
// appears exactly once regardless of arrival order.
type Timeline struct {
	mu      sync.Mutex
	entries []Entry
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

// Load puts history in front of whatever the timeline already holds.
func (t *Timeline) Load(history []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	loaded := make(map[string]struct{}, len(history))
	entries := make([]Entry, 0, len(history)+len(t.entries))
	for _, m := range history {
		loaded[m.ID] = struct{}{}
		entries = append(entries, Entry{Message: m})
	}
	for _, e := range t.entries {
		if _, ok := loaded[e.ID]; !ok {
			entries = append(entries, e)
		}
	}
	t.entries = entries
}

// AddPending appends an optimistic entry and returns its temporary id.
func (t *Timeline) AddPending(senderID, content string, timestamp int64) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := tempIDPrefix + uuid.NewString()
	t.entries = append(t.entries, Entry{
		Message: models.Message{
			ID:        id,
			SenderID:  senderID,
			Content:   content,
			Timestamp: timestamp,
		},
		Pending: true,
	})
	return id
}

// ApplyNew merges a new-message event. It reports whether the timeline
// changed.
func (t *Timeline) ApplyNew(p realtime.NewMessagePayload) bool {
	return t.merge(p.Message, p.OptimisticID)
}

// Confirm merges the HTTP response of a send started with AddPending.
func (t *Timeline) Confirm(tempID string, msg models.Message) bool {
	return t.merge(msg, tempID)
}

func (t *Timeline) merge(msg models.Message, tempID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.index(msg.ID) >= 0 {
		return false
	}
	if strings.HasPrefix(tempID, tempIDPrefix) {
		if i := t.index(tempID); i >= 0 && t.entries[i].Pending {
			t.entries[i] = Entry{Message: msg}
			return true
		}
	}
	t.entries = append(t.entries, Entry{Message: msg})
	return true
}

// Discard drops a pending entry whose send failed.
func (t *Timeline) Discard(tempID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(tempID)
	if i < 0 || !t.entries[i].Pending {
		return false
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	return true
}

func (t *Timeline) ApplyUpdated(p realtime.MessageUpdatedPayload) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(p.ID)
	if i < 0 || t.entries[i].Pending {
		return false
	}
	t.entries[i].Content = p.Content
	t.entries[i].IsEdited = true
	return true
}

func (t *Timeline) ApplyDeleted(p realtime.MessageDeletedPayload) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(p.ID)
	if i < 0 || t.entries[i].Pending || t.entries[i].Timestamp != p.Timestamp {
		return false
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	return true
}

// Entries returns a snapshot in display order.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

func (t *Timeline) index(id string) int {
	for i := range t.entries {
		if t.entries[i].ID == id {
			return i
		}
	}
	return -1
}
