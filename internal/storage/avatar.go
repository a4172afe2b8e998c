// Package storage keeps user profile pictures in an S3 bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config describes the avatar bucket.  PublicBaseURL overrides the
// virtual-hosted S3 URL when the bucket sits behind a CDN.
type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	Endpoint        string
}

// LoadConfig reads AVATAR_* variables.
func LoadConfig() Config {
	region := os.Getenv("AVATAR_REGION")
	if region == "" {
		region = "us-east-1"
	}
	return Config{
		Bucket:          os.Getenv("AVATAR_BUCKET"),
		Region:          region,
		AccessKeyID:     os.Getenv("AVATAR_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AVATAR_SECRET_ACCESS_KEY"),
		PublicBaseURL:   os.Getenv("AVATAR_PUBLIC_BASE_URL"),
		Endpoint:        os.Getenv("AVATAR_ENDPOINT"),
	}
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// AvatarStore uploads and removes profile pictures.
type AvatarStore struct {
	client  objectAPI
	bucket  string
	baseURL string
	now     func() time.Time
}

// NewAvatarStore builds an S3 client from cfg.  Static credentials are
// used when both keys are set, otherwise the default chain applies.
func NewAvatarStore(ctx context.Context, cfg Config) (*AvatarStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("AVATAR_BUCKET is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newAvatarStore(client, cfg), nil
}

func newAvatarStore(client objectAPI, cfg Config) *AvatarStore {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &AvatarStore{client: client, bucket: cfg.Bucket, baseURL: base, now: time.Now}
}

// Key returns the object key for a user's picture:
// avatars/{userId}-{unixMillis}.{ext}, ext defaulting to jpg.
func Key(userID, filename string, at time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("avatars/%s-%d.%s", userID, at.UnixMilli(), ext)
}

// PublicURL returns the address a browser can load key from.
func (s *AvatarStore) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// Upload stores the picture and returns its public URL.
func (s *AvatarStore) Upload(ctx context.Context, userID, filename, contentType string, body io.Reader) (string, error) {
	key := Key(userID, filename, s.now())
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// Delete removes the object behind a URL previously returned by Upload.
// URLs outside this store are ignored.
func (s *AvatarStore) Delete(ctx context.Context, publicURL string) error {
	key, ok := strings.CutPrefix(publicURL, s.baseURL+"/")
	if !ok || key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}
