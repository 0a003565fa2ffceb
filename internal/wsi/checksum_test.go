package wsi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32CKnownAnswer(t *testing.T) {
	sum, err := CRC32C(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "yZRlqg==", sum)
}

func TestEncodeCRC32C(t *testing.T) {
	assert.Equal(t, "yZRlqg==", EncodeCRC32C(0xc99465aa))
	assert.Equal(t, "AAAAAA==", EncodeCRC32C(0))
}

func TestFileCRC32C(t *testing.T) {
	path := writeTempFile(t, "payload.bin", []byte("hello world"))

	sum, err := FileCRC32C(path)
	require.NoError(t, err)
	assert.Equal(t, "yZRlqg==", sum)
}

func TestFileCRC32CMissingFile(t *testing.T) {
	_, err := FileCRC32C("/nonexistent/payload.bin")
	assert.Error(t, err)
}
