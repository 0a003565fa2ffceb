// Package bucket wraps the cloud bucket provisioned for the platform behind
// signed-URL generation and a small info surface.
package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/helix-imaging/launchpad/internal/config"
	"github.com/helix-imaging/launchpad/internal/observability"
)

// Service issues time-limited signed URLs for objects in the platform bucket.
type Service struct {
	client   *minio.Client
	settings config.BucketSettings
	log      observability.Logger
}

// New creates a bucket service from the given settings.
func New(settings config.BucketSettings, log observability.Logger) (*Service, error) {
	client, err := minio.New(settings.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.AccessKey, settings.SecretKey, ""),
		Secure: settings.UseSSL,
		Region: settings.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket client: %w", err)
	}
	return &Service{
		client:   client,
		settings: settings,
		log:      log.Named("bucket"),
	}, nil
}

// SignedUploadURL returns a presigned PUT URL for key. A non-positive expiry
// falls back to the configured upload expiry; all expiries are clamped to the
// supported 1min-7d window.
func (s *Service) SignedUploadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = s.settings.UploadExpiry
	}
	u, err := s.client.PresignedPutObject(ctx, s.settings.Name, key, config.ClampExpiry(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to sign upload url for %s: %w", key, err)
	}
	return u.String(), nil
}

// SignedDownloadURL returns a presigned GET URL for key, clamped like uploads.
func (s *Service) SignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = s.settings.DownloadExpiry
	}
	u, err := s.client.PresignedGetObject(ctx, s.settings.Name, key, config.ClampExpiry(expiry), nil)
	if err != nil {
		return "", fmt.Errorf("failed to sign download url for %s: %w", key, err)
	}
	return u.String(), nil
}

// ObjectURL renders the canonical bucket URL for key, e.g. gs://bucket/key.
// This is the form recorded in metadata tables and run submissions.
func (s *Service) ObjectURL(key string) string {
	return fmt.Sprintf("%s://%s/%s", s.settings.Protocol, s.settings.Name, key)
}

// Protocol returns the bucket URL scheme (gs by default).
func (s *Service) Protocol() string { return s.settings.Protocol }

// Name returns the bucket name.
func (s *Service) Name() string { return s.settings.Name }

// Region returns the bucket region, if configured.
func (s *Service) Region() string { return s.settings.Region }
