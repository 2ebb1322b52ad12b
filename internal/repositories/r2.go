package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// AvatarKeyPrefix marks avatar values that live in the bucket rather than
// at an external URL.
const AvatarKeyPrefix = "avatars/"

const (
	avatarUploadExpiry   = 15 * time.Minute
	avatarDownloadExpiry = 24 * time.Hour
)

// Avatars issues presigned URLs for profile pictures in an S3-compatible
// bucket (Cloudflare R2 in production).
type Avatars struct {
	client        *s3.Client
	presigner     *s3.PresignClient
	bucket        string
	publicBaseURL string
}

// NewAvatars builds the R2 client using static credentials and the account endpoint.
func NewAvatars(cfg config.R2Config) *Avatars {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	return newAvatars(cfg, endpoint)
}

func newAvatars(cfg config.R2Config, endpoint string) *Avatars {
	awsCfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Region:      cfg.Region,
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	log.Info("Successfully initialized R2 client", "bucket", cfg.BucketName)
	return &Avatars{
		client:        client,
		presigner:     s3.NewPresignClient(client),
		bucket:        cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

// PresignUpload returns a fresh object key and a PUT URL for it.
func (a *Avatars) PresignUpload(ctx context.Context, ext string) (uploadURL, key string, err error) {
	key = AvatarKeyPrefix + uuid.NewString() + ext
	req, err := a.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(avatarUploadExpiry))
	if err != nil {
		return "", "", fmt.Errorf("presign avatar upload: %w", err)
	}
	return req.URL, key, nil
}

// Resolve turns a stored avatar value into a URL a browser can load.
// Values outside the bucket are returned unchanged.
func (a *Avatars) Resolve(ctx context.Context, avatar string) (string, error) {
	if !strings.HasPrefix(avatar, AvatarKeyPrefix) {
		return avatar, nil
	}
	if a.publicBaseURL != "" {
		return a.publicBaseURL + "/" + avatar, nil
	}
	req, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(avatar),
	}, s3.WithPresignExpires(avatarDownloadExpiry))
	if err != nil {
		return "", fmt.Errorf("presign avatar download: %w", err)
	}
	return req.URL, nil
}

// Exists checks if a given object key exists in the bucket.
func (a *Avatars) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
