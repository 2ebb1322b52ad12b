// Package services holds the application use cases. Every exported method
// validates its input, decides whether the caller may act, runs the store
// sequence and publishes the resulting events. Errors are apperrors values.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/apperrors"
	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/repositories"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

type SignUpInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

// Accounts registers and authenticates users.
type Accounts struct {
	users   repositories.UserStore
	avatars AvatarStorage
	now     func() time.Time
}

// NewAccounts builds the account service. avatars may be nil when no
// bucket is configured.
func NewAccounts(users repositories.UserStore, avatars AvatarStorage) *Accounts {
	return &Accounts{users: users, avatars: avatars, now: time.Now}
}

func (a *Accounts) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)
	avatar := strings.TrimSpace(in.Avatar)

	if email == "" || username == "" || in.Password == "" {
		return nil, apperrors.ErrMissingSignUpField
	}
	if !usernameRegex.MatchString(username) {
		return nil, apperrors.ErrInvalidUsername
	}
	if !emailRegex.MatchString(email) {
		return nil, apperrors.ErrInvalidEmail
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperrors.ErrPasswordTooShort
	}
	if err := a.checkAvatar(ctx, avatar); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Avatar:       avatar,
		CreatedAt:    a.now().UnixMilli(),
	}
	switch err := a.users.CreateUser(ctx, user); {
	case err == nil:
	case errors.Is(err, repositories.ErrEmailTaken):
		return nil, apperrors.ErrEmailTaken
	case errors.Is(err, repositories.ErrUsernameTaken):
		return nil, apperrors.ErrUsernameTaken
	default:
		return nil, apperrors.Internal("failed to create user", err)
	}

	log.Info("User registered", "userId", user.ID, "username", user.Username)
	return user, nil
}

// Authenticate checks email and password. Unknown email and wrong password
// produce the same error.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	user, err := a.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}
	if user.PasswordHash == "" {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

// SignInExisting returns the account registered under a verified external
// email. It never creates accounts.
func (a *Accounts) SignInExisting(ctx context.Context, email string) (*models.User, error) {
	user, err := a.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load user", err)
	}
	return user, nil
}

func (a *Accounts) checkAvatar(ctx context.Context, avatar string) error {
	if !strings.HasPrefix(avatar, repositories.AvatarKeyPrefix) {
		return nil
	}
	if a.avatars == nil {
		return apperrors.ErrAvatarStorageDisabled
	}
	ok, err := a.avatars.Exists(ctx, avatar)
	if err != nil {
		return apperrors.Internal("failed to check avatar", err)
	}
	if !ok {
		return apperrors.ErrAvatarNotUploaded
	}
	return nil
}
