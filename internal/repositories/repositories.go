package repositories

import (
	"context"
	"errors"

	"github.com/Staby-Guy/pidgeon/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned by CreateUser when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken is returned by CreateUser when the username is already taken.
	ErrUsernameTaken = errors.New("username already taken")
)

// UserStore persists account records. Lookups by email and username are
// case-insensitive. Records are never updated or deleted.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// ContactStore holds the symmetric contact relation.
type ContactStore interface {
	AddContact(ctx context.Context, userID, contactID string) error
	RemoveContact(ctx context.Context, userID, contactID string) error
	IsContact(ctx context.Context, userID, contactID string) (bool, error)
	GetContacts(ctx context.Context, userID string) ([]string, error)
}

// MessageStore is the per-room message log, ordered by (timestamp, id).
// It performs no ownership checks.
type MessageStore interface {
	Append(ctx context.Context, roomID string, msg models.Message) error
	// Read returns up to limit of the most recent messages in ascending
	// order. A positive before restricts the result to entries ordered
	// strictly below (before, beforeID); with an empty beforeID every entry
	// at the before timestamp is excluded.
	Read(ctx context.Context, roomID string, limit int, before int64, beforeID string) ([]models.Message, error)
	Find(ctx context.Context, roomID, messageID string, timestamp int64) (*models.Message, error)
	Update(ctx context.Context, roomID, messageID string, timestamp int64, content string) (*models.Message, error)
	Remove(ctx context.Context, roomID, messageID string, timestamp int64) error
	Latest(ctx context.Context, roomID string) (*models.Message, error)
}

// UnreadStore keeps per-user, per-room pending message counters.
type UnreadStore interface {
	Increment(ctx context.Context, userID, roomID string) (int64, error)
	Reset(ctx context.Context, userID, roomID string) error
	GetAll(ctx context.Context, userID string) (map[string]int64, error)
}
