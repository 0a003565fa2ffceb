package bucket

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helix-imaging/launchpad/internal/config"
	"github.com/helix-imaging/launchpad/internal/observability"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := New(config.BucketSettings{
		Protocol:       "gs",
		Name:           "launchpad-data",
		Endpoint:       "storage.example.com",
		AccessKey:      "access",
		SecretKey:      "secret",
		UploadExpiry:   config.DefaultUploadExpiry,
		DownloadExpiry: config.DefaultDownloadExpiry,
	}, observability.NewNop())
	require.NoError(t, err)
	return s
}

func TestObjectURL(t *testing.T) {
	s := newTestService(t)
	assert.Equal(t, "gs://launchpad-data/prefix/slide.tiff", s.ObjectURL("prefix/slide.tiff"))
}

func TestSignedUploadURL_ContainsKey(t *testing.T) {
	s := newTestService(t)
	signed, err := s.SignedUploadURL(context.Background(), "prefix/slide.tiff", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Contains(t, u.Path, "prefix/slide.tiff")
	assert.NotEmpty(t, u.Query().Get("X-Amz-Expires"))
}

func TestSignedUploadURL_ClampsExpiry(t *testing.T) {
	s := newTestService(t)
	// Below the 1-minute floor: clamped up, not rejected.
	signed, err := s.SignedUploadURL(context.Background(), "k", time.Second)
	require.NoError(t, err)
	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "60", u.Query().Get("X-Amz-Expires"))
}

func TestSignedDownloadURL_DefaultExpiry(t *testing.T) {
	s := newTestService(t)
	signed, err := s.SignedDownloadURL(context.Background(), "k", 0)
	require.NoError(t, err)
	u, err := url.Parse(signed)
	require.NoError(t, err)
	// Default download expiry is 7 days, the clamp ceiling.
	assert.Equal(t, "604800", u.Query().Get("X-Amz-Expires"))
}

func TestInfoSurface(t *testing.T) {
	s := newTestService(t)
	assert.Equal(t, "gs", s.Protocol())
	assert.Equal(t, "launchpad-data", s.Name())
	assert.Empty(t, s.Region())
}
