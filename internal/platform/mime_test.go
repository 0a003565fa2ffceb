package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionForMime(t *testing.T) {
	cases := map[string]string{
		"image/png":                      ".png",
		"image/tiff":                     ".tiff",
		"application/vnd.apache.parquet": ".parquet",
		"application/json":               ".json",
		"application/geo+json":           ".json",
		"text/csv":                       ".csv",
	}
	for mime, want := range cases {
		ext, err := ExtensionForMime(mime)
		require.NoError(t, err)
		assert.Equal(t, want, ext)
	}
}

func TestExtensionForMime_Unknown(t *testing.T) {
	_, err := ExtensionForMime("application/unknown")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "unknown mime type: application/unknown")
}

func TestMimeTypeForArtifact(t *testing.T) {
	assert.Equal(t, "image/png", MimeTypeForArtifact(OutputArtifact{MimeType: "image/png"}))
	assert.Equal(t, "text/csv", MimeTypeForArtifact(OutputArtifact{
		Metadata: map[string]any{"media_type": "text/csv"},
	}))
	assert.Empty(t, MimeTypeForArtifact(OutputArtifact{}))
}
