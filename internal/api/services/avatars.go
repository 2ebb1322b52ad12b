package services

import (
	"context"
	"strings"

	"github.com/Staby-Guy/pidgeon/internal/apperrors"
)

// AvatarStorage is the object store holding uploaded profile pictures.
type AvatarStorage interface {
	PresignUpload(ctx context.Context, ext string) (uploadURL, key string, err error)
	Resolve(ctx context.Context, avatar string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type AvatarUpload struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// Avatars hands out upload URLs for signup avatars.
type Avatars struct {
	storage AvatarStorage
}

func NewAvatars(storage AvatarStorage) *Avatars {
	return &Avatars{storage: storage}
}

func (a *Avatars) Presign(ctx context.Context, contentType string) (*AvatarUpload, error) {
	if a.storage == nil {
		return nil, apperrors.ErrAvatarStorageDisabled
	}
	ext, ok := avatarExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return nil, apperrors.ErrInvalidAvatarType
	}
	url, key, err := a.storage.PresignUpload(ctx, ext)
	if err != nil {
		return nil, apperrors.Internal("failed to presign avatar upload", err)
	}
	return &AvatarUpload{UploadURL: url, Key: key}, nil
}

// resolveAvatar maps a stored avatar value to a loadable URL. Failures
// fall back to no avatar.
func resolveAvatar(ctx context.Context, storage AvatarStorage, avatar string) string {
	if avatar == "" || storage == nil {
		return avatar
	}
	url, err := storage.Resolve(ctx, avatar)
	if err != nil {
		return ""
	}
	return url
}
