package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/Staby-Guy/pidgeon/internal/apperrors"
	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/realtime"
	"github.com/Staby-Guy/pidgeon/internal/repositories"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// previewConcurrency caps parallel store lookups while listing contacts.
const previewConcurrency = 8

// ContactSummary is one row of the contact sidebar.
type ContactSummary struct {
	ID            string          `json:"id"`
	Username      string          `json:"username"`
	Avatar        string          `json:"avatar,omitempty"`
	LatestMessage *models.Preview `json:"latestMessage"`
	RoomID        string          `json:"roomId"`
	Unread        int64           `json:"unread"`
}

type Contacts struct {
	users    repositories.UserStore
	contacts repositories.ContactStore
	messages repositories.MessageStore
	unread   repositories.UnreadStore
	events   *realtime.Dispatcher
	avatars  AvatarStorage
}

func NewContacts(
	users repositories.UserStore,
	contacts repositories.ContactStore,
	messages repositories.MessageStore,
	unread repositories.UnreadStore,
	events *realtime.Dispatcher,
	avatars AvatarStorage,
) *Contacts {
	return &Contacts{
		users:    users,
		contacts: contacts,
		messages: messages,
		unread:   unread,
		events:   events,
		avatars:  avatars,
	}
}

// List returns the caller's contacts with the latest message of each room,
// most recent conversation first. Contacts without messages sort last.
func (s *Contacts) List(ctx context.Context, callerID string) ([]ContactSummary, error) {
	ids, err := s.contacts.GetContacts(ctx, callerID)
	if err != nil {
		return nil, apperrors.Internal("failed to load contacts", err)
	}
	counts, err := s.unread.GetAll(ctx, callerID)
	if err != nil {
		return nil, apperrors.Internal("failed to load unread counts", err)
	}

	rows := make([]*ContactSummary, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(previewConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			row, err := s.summary(gctx, callerID, id)
			if err != nil {
				return err
			}
			if row != nil {
				row.Unread = counts[row.RoomID]
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Internal("failed to load contact details", err)
	}

	out := make([]ContactSummary, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, *row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return latestTimestamp(out[i]) > latestTimestamp(out[j])
	})
	return out, nil
}

func (s *Contacts) summary(ctx context.Context, callerID, contactID string) (*ContactSummary, error) {
	user, err := s.users.GetUserByID(ctx, contactID)
	if errors.Is(err, repositories.ErrNotFound) {
		log.Warn("Contact user not found", "userId", callerID, "contactId", contactID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	roomID, err := models.RoomID(callerID, contactID)
	if err != nil {
		log.Warn("Skipping contact with unusable id", "contactId", contactID, "err", err)
		return nil, nil
	}

	latest, err := s.messages.Latest(ctx, roomID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	return &ContactSummary{
		ID:            user.ID,
		Username:      user.Username,
		Avatar:        resolveAvatar(ctx, s.avatars, user.Avatar),
		LatestMessage: models.PreviewFor(latest, callerID),
		RoomID:        roomID,
	}, nil
}

func latestTimestamp(c ContactSummary) int64 {
	if c.LatestMessage == nil {
		return 0
	}
	return c.LatestMessage.Timestamp
}

// Add makes caller and contactID contacts of each other and notifies the
// other side.
func (s *Contacts) Add(ctx context.Context, caller models.Profile, contactID string) (*ContactSummary, error) {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return nil, apperrors.ErrContactIDRequired
	}
	if contactID == caller.ID {
		return nil, apperrors.ErrSelfContact
	}

	already, err := s.contacts.IsContact(ctx, caller.ID, contactID)
	if err != nil {
		return nil, apperrors.Internal("failed to check contact", err)
	}
	if already {
		return nil, apperrors.ErrAlreadyContact
	}

	target, err := s.users.GetUserByID(ctx, contactID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}
	roomID, err := models.RoomID(caller.ID, target.ID)
	if err != nil {
		return nil, apperrors.ErrUserNotFound
	}

	if err := s.contacts.AddContact(ctx, caller.ID, target.ID); err != nil {
		return nil, apperrors.Internal("failed to add contact", err)
	}
	s.events.ContactAdded(ctx, target.ID, caller)

	return &ContactSummary{
		ID:       target.ID,
		Username: target.Username,
		Avatar:   resolveAvatar(ctx, s.avatars, target.Avatar),
		RoomID:   roomID,
	}, nil
}

// Remove drops the relation in both directions. The room log is kept.
func (s *Contacts) Remove(ctx context.Context, callerID, contactID string) error {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return apperrors.ErrContactIDRequired
	}
	if contactID == callerID {
		return apperrors.ErrSelfContact
	}

	ok, err := s.contacts.IsContact(ctx, callerID, contactID)
	if err != nil {
		return apperrors.Internal("failed to check contact", err)
	}
	if !ok {
		return apperrors.ErrNotAContact
	}
	if err := s.contacts.RemoveContact(ctx, callerID, contactID); err != nil {
		return apperrors.Internal("failed to remove contact", err)
	}
	return nil
}

// Search finds a user by exact, case-insensitive username. The caller never
// finds themselves.
func (s *Contacts) Search(ctx context.Context, callerID, username string) ([]models.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.ErrUsernameRequired
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		return []models.Profile{}, nil
	}
	if err != nil {
		return nil, apperrors.Internal("failed to search users", err)
	}
	if user.ID == callerID {
		return []models.Profile{}, nil
	}

	p := user.Profile()
	p.Avatar = resolveAvatar(ctx, s.avatars, p.Avatar)
	return []models.Profile{p}, nil
}
