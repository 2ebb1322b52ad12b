package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/metrics"
	"github.com/Staby-Guy/pidgeon/internal/models"
	"gorm.io/gorm"
)

// Users is the gorm-backed UserStore.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

var _ UserStore = (*Users)(nil)

// CreateUser inserts user in a single statement. The unique indexes on email
// and username_key make the insert conditional, so two concurrent signups
// with the same email or username cannot both succeed.
func (u *Users) CreateUser(ctx context.Context, user *models.User) error {
	defer metrics.ObserveStore("user_create", time.Now())

	user.Email = strings.ToLower(user.Email)
	user.UsernameKey = strings.ToLower(user.Username)

	err := u.db.WithContext(ctx).Create(user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("create user: %w", err)
	}

	// The constraint violation does not say which index fired.
	taken, lookupErr := u.EmailExists(ctx, user.Email)
	if lookupErr != nil {
		return fmt.Errorf("create user: %w", lookupErr)
	}
	if taken {
		return ErrEmailTaken
	}
	return ErrUsernameTaken
}

func (u *Users) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return u.first(ctx, "user_get_by_id", "id = ?", id)
}

func (u *Users) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return u.first(ctx, "user_get_by_email", "email = ?", strings.ToLower(email))
}

func (u *Users) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return u.first(ctx, "user_get_by_username", "username_key = ?", strings.ToLower(username))
}

func (u *Users) UsernameExists(ctx context.Context, username string) (bool, error) {
	return u.exists(ctx, "username_key = ?", strings.ToLower(username))
}

func (u *Users) EmailExists(ctx context.Context, email string) (bool, error) {
	return u.exists(ctx, "email = ?", strings.ToLower(email))
}

func (u *Users) first(ctx context.Context, op, query string, arg any) (*models.User, error) {
	defer metrics.ObserveStore(op, time.Now())

	var user models.User
	err := u.db.WithContext(ctx).Where(query, arg).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
}

func (u *Users) exists(ctx context.Context, query string, arg any) (bool, error) {
	defer metrics.ObserveStore("user_exists", time.Now())

	var count int64
	if err := u.db.WithContext(ctx).Model(&models.User{}).Where(query, arg).Count(&count).Error; err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return count > 0, nil
}
