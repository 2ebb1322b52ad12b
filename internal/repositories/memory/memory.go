// Package memory implements the stores in process memory. It backs the
// test server and service tests; the binary always runs on Postgres and Redis.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/repositories"
)

// DB holds users, contacts, room logs and unread counters behind one lock.
type DB struct {
	mu       sync.Mutex
	users    map[string]models.User
	contacts map[string]map[string]struct{}
	rooms    map[string][]models.Message
	unread   map[string]map[string]int64
}

// New creates an empty in-memory database.
func New() *DB {
	return &DB{
		users:    make(map[string]models.User),
		contacts: make(map[string]map[string]struct{}),
		rooms:    make(map[string][]models.Message),
		unread:   make(map[string]map[string]int64),
	}
}

// Ensure interfaces are met.
var _ repositories.UserStore = (*DB)(nil)
var _ repositories.ContactStore = (*DB)(nil)
var _ repositories.MessageStore = (*DB)(nil)
var _ repositories.UnreadStore = (*DB)(nil)

// --- UserStore ---

// CreateUser checks and inserts under the same lock, mirroring the unique
// indexes of the SQL store.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	user.UsernameKey = strings.ToLower(user.Username)
	for _, u := range db.users {
		if u.Email == user.Email {
			return repositories.ErrEmailTaken
		}
	}
	for _, u := range db.users {
		if u.UsernameKey == user.UsernameKey {
			return repositories.ErrUsernameTaken
		}
	}
	db.users[user.ID] = *user
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.findUser(func(u models.User) bool { return u.Email == strings.ToLower(email) })
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.findUser(func(u models.User) bool { return u.UsernameKey == strings.ToLower(username) })
}

func (db *DB) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := db.GetUserByUsername(ctx, username)
	return err == nil, nil
}

func (db *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := db.GetUserByEmail(ctx, email)
	return err == nil, nil
}

func (db *DB) findUser(match func(models.User) bool) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

// --- ContactStore ---

func (db *DB) AddContact(ctx context.Context, userID, contactID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.link(userID, contactID)
	db.link(contactID, userID)
	return nil
}

func (db *DB) RemoveContact(ctx context.Context, userID, contactID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.contacts[userID], contactID)
	delete(db.contacts[contactID], userID)
	return nil
}

func (db *DB) IsContact(ctx context.Context, userID, contactID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, ok := db.contacts[userID][contactID]
	return ok, nil
}

// GetContacts returns contact ids in lexical order.
func (db *DB) GetContacts(ctx context.Context, userID string) ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]string, 0, len(db.contacts[userID]))
	for id := range db.contacts[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (db *DB) link(from, to string) {
	set, ok := db.contacts[from]
	if !ok {
		set = make(map[string]struct{})
		db.contacts[from] = set
	}
	set[to] = struct{}{}
}

// --- MessageStore ---

// Append inserts msg keeping the room ordered by (timestamp, id). An entry
// with the same id replaces the old one, as ZADD would.
func (db *DB) Append(ctx context.Context, roomID string, msg models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	log := db.rooms[roomID]
	for i := range log {
		if log[i].ID == msg.ID {
			log = append(log[:i], log[i+1:]...)
			break
		}
	}
	i := sort.Search(len(log), func(i int) bool { return !less(log[i], msg) })
	log = append(log, models.Message{})
	copy(log[i+1:], log[i:])
	log[i] = msg
	db.rooms[roomID] = log
	return nil
}

func (db *DB) Read(ctx context.Context, roomID string, limit int, before int64, beforeID string) ([]models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	log := db.rooms[roomID]
	end := len(log)
	if before > 0 {
		cursor := models.Message{Timestamp: before, ID: beforeID}
		end = sort.Search(len(log), func(i int) bool {
			if beforeID == "" {
				return log[i].Timestamp >= before
			}
			return !less(log[i], cursor)
		})
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	if limit <= 0 {
		start = end
	}
	out := make([]models.Message, end-start)
	copy(out, log[start:end])
	return out, nil
}

func (db *DB) Find(ctx context.Context, roomID, messageID string, timestamp int64) (*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i, ok := db.index(roomID, messageID, timestamp)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	msg := db.rooms[roomID][i]
	return &msg, nil
}

func (db *DB) Update(ctx context.Context, roomID, messageID string, timestamp int64, content string) (*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i, ok := db.index(roomID, messageID, timestamp)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	log := db.rooms[roomID]
	log[i].Content = content
	log[i].IsEdited = true
	msg := log[i]
	return &msg, nil
}

func (db *DB) Remove(ctx context.Context, roomID, messageID string, timestamp int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	i, ok := db.index(roomID, messageID, timestamp)
	if !ok {
		return repositories.ErrNotFound
	}
	log := db.rooms[roomID]
	db.rooms[roomID] = append(log[:i], log[i+1:]...)
	return nil
}

func (db *DB) Latest(ctx context.Context, roomID string) (*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	log := db.rooms[roomID]
	if len(log) == 0 {
		return nil, repositories.ErrNotFound
	}
	msg := log[len(log)-1]
	return &msg, nil
}

func (db *DB) index(roomID, messageID string, timestamp int64) (int, bool) {
	for i, m := range db.rooms[roomID] {
		if m.ID == messageID && m.Timestamp == timestamp {
			return i, true
		}
	}
	return 0, false
}

func less(a, b models.Message) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.ID < b.ID
}

// --- UnreadStore ---

func (db *DB) Increment(ctx context.Context, userID, roomID string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	counts, ok := db.unread[userID]
	if !ok {
		counts = make(map[string]int64)
		db.unread[userID] = counts
	}
	counts[roomID]++
	return counts[roomID], nil
}

func (db *DB) Reset(ctx context.Context, userID, roomID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.unread[userID], roomID)
	return nil
}

func (db *DB) GetAll(ctx context.Context, userID string) (map[string]int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make(map[string]int64, len(db.unread[userID]))
	for room, n := range db.unread[userID] {
		out[room] = n
	}
	return out, nil
}
