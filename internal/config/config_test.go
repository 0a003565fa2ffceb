package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"api_root": "https://platform.example.com",
		"bucket": {"protocol": "gs", "name": "launchpad-data", "endpoint": "storage.example.com"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultChunkSize), s.ChunkSize)
	assert.Equal(t, DefaultPollInterval, s.PollInterval)
	assert.Equal(t, DefaultUploadExpiry, s.Bucket.UploadExpiry)
	assert.Equal(t, DefaultDownloadExpiry, s.Bucket.DownloadExpiry)
	require.NoError(t, s.Validate())
}

func TestValidate_RejectsMissingAPIRoot(t *testing.T) {
	s := Settings{
		Bucket: BucketSettings{Protocol: "gs", Name: "b", Endpoint: "storage.example.com"},
	}
	s.applyDefaults()
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APIRoot")
}

func TestValidate_RejectsUnknownProtocol(t *testing.T) {
	s := Settings{
		APIRoot: "https://platform.example.com",
		Bucket:  BucketSettings{Protocol: "ftp", Name: "b", Endpoint: "storage.example.com"},
	}
	s.applyDefaults()
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Protocol")
}

func TestClampExpiry(t *testing.T) {
	assert.Equal(t, MinSignedURLExpiry, ClampExpiry(time.Second))
	assert.Equal(t, MaxSignedURLExpiry, ClampExpiry(30*24*time.Hour))
	assert.Equal(t, 2*time.Hour, ClampExpiry(2*time.Hour))
}
