// Package config provides configuration loading and validation for the launchpad.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/helix-imaging/launchpad/internal/observability"
)

// Signed URL expiries are clamped to this window by the bucket service.
const (
	MinSignedURLExpiry = time.Minute
	MaxSignedURLExpiry = 7 * 24 * time.Hour

	DefaultUploadExpiry   = 2 * time.Hour
	DefaultDownloadExpiry = 7 * 24 * time.Hour
)

// Transfer defaults.
const (
	DefaultChunkSize    = 1 << 20 // 1 MiB
	DefaultPollInterval = 5 * time.Second
	DefaultPollMaxWait  = 30 * time.Second
)

// BucketSettings describes the cloud bucket provisioned for the platform.
type BucketSettings struct {
	Protocol       string        `json:"protocol" validate:"required,oneof=gs s3"`
	Name           string        `json:"name" validate:"required"`
	Region         string        `json:"region,omitempty"`
	Endpoint       string        `json:"endpoint" validate:"required"`
	AccessKey      string        `json:"access_key,omitempty"`
	SecretKey      string        `json:"secret_key,omitempty"`
	UseSSL         bool          `json:"use_ssl,omitempty"`
	UploadExpiry   time.Duration `json:"upload_expiry,omitempty"`
	DownloadExpiry time.Duration `json:"download_expiry,omitempty"`
}

// Settings is the explicit configuration struct passed into each component's
// constructor. There is no ambient global state in this module.
type Settings struct {
	// APIRoot is the base URL of the platform API.
	APIRoot string `json:"api_root" validate:"required,url"`
	// Token is the bearer token presented to the platform API.
	Token string `json:"token,omitempty"`

	Bucket BucketSettings `json:"bucket" validate:"required"`

	// ChunkSize is the transfer chunk size in bytes for uploads and downloads.
	ChunkSize int64 `json:"chunk_size,omitempty" validate:"omitempty,gt=0"`
	// PollInterval is the initial sleep between run status polls.
	PollInterval time.Duration `json:"poll_interval,omitempty"`
	// PollMaxWait caps the backoff between run status polls.
	PollMaxWait time.Duration `json:"poll_max_wait,omitempty"`

	Log observability.Config `json:"log,omitempty"`
}

// FromEnv builds Settings from environment variables. godotenv is loaded by
// main before this runs, so a .env file works transparently.
func FromEnv() Settings {
	s := Settings{
		APIRoot: os.Getenv("LAUNCHPAD_API_ROOT"),
		Token:   os.Getenv("LAUNCHPAD_API_TOKEN"),
		Bucket: BucketSettings{
			Protocol:       envOr("LAUNCHPAD_BUCKET_PROTOCOL", "gs"),
			Name:           os.Getenv("LAUNCHPAD_BUCKET_NAME"),
			Region:         os.Getenv("LAUNCHPAD_BUCKET_REGION"),
			Endpoint:       os.Getenv("LAUNCHPAD_BUCKET_ENDPOINT"),
			AccessKey:      os.Getenv("LAUNCHPAD_BUCKET_ACCESS_KEY"),
			SecretKey:      os.Getenv("LAUNCHPAD_BUCKET_SECRET_KEY"),
			UseSSL:         envBool("LAUNCHPAD_BUCKET_USE_SSL"),
			UploadExpiry:   envDuration("LAUNCHPAD_BUCKET_UPLOAD_EXPIRY", DefaultUploadExpiry),
			DownloadExpiry: envDuration("LAUNCHPAD_BUCKET_DOWNLOAD_EXPIRY", DefaultDownloadExpiry),
		},
		Log: observability.Config{
			Level:    envOr("LAUNCHPAD_LOG_LEVEL", "info"),
			FilePath: os.Getenv("LAUNCHPAD_LOG_FILE"),
		},
	}
	s.applyDefaults()
	return s
}

// Load reads Settings from a JSON file, then applies defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	s.applyDefaults()
	return &s, nil
}

func (s *Settings) applyDefaults() {
	if s.ChunkSize <= 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.PollMaxWait <= 0 {
		s.PollMaxWait = DefaultPollMaxWait
	}
	if s.Bucket.Protocol == "" {
		s.Bucket.Protocol = "gs"
	}
	if s.Bucket.UploadExpiry <= 0 {
		s.Bucket.UploadExpiry = DefaultUploadExpiry
	}
	if s.Bucket.DownloadExpiry <= 0 {
		s.Bucket.DownloadExpiry = DefaultDownloadExpiry
	}
}

// Validate checks that the configuration has valid values.
func (s *Settings) Validate() error {
	v := validator.New()
	if err := v.Struct(s); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("config error: field %q failed %q validation", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// ClampExpiry bounds a signed-URL expiry to the supported window.
func ClampExpiry(d time.Duration) time.Duration {
	if d < MinSignedURLExpiry {
		return MinSignedURLExpiry
	}
	if d > MaxSignedURLExpiry {
		return MaxSignedURLExpiry
	}
	return d
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
