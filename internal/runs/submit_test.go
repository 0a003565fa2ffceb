package runs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helix-imaging/launchpad/internal/metadata"
	"github.com/helix-imaging/launchpad/internal/observability"
	"github.com/helix-imaging/launchpad/internal/platform"
	"github.com/helix-imaging/launchpad/internal/wsi"
)

// platformStub is a minimal platform API for submitter tests: one application
// with versions, recording every run creation.
type platformStub struct {
	server   *httptest.Server
	versions []platform.ApplicationVersion

	mu       sync.Mutex
	requests int
	created  []platform.RunCreationRequest
}

func newPlatformStub(t *testing.T, versions []platform.ApplicationVersion) *platformStub {
	t.Helper()
	stub := &platformStub{versions: versions}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/applications/he-tme/versions", func(w http.ResponseWriter, r *http.Request) {
		stub.count()
		if r.URL.Query().Get("page") != "1" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(stub.versions)
	})
	mux.HandleFunc("/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		stub.count()
		require.Equal(t, http.MethodPost, r.Method)
		var req platform.RunCreationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		stub.mu.Lock()
		stub.created = append(stub.created, req)
		stub.mu.Unlock()
		_ = json.NewEncoder(w).Encode(platform.RunCreationResponse{ApplicationRunID: "run-1"})
	})
	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *platformStub) count() {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()
}

func (s *platformStub) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *platformStub) client() *platform.Client {
	return platform.NewClient(s.server.URL,
		platform.NewStaticTokenProvider("test-token"), observability.NewNop())
}

func slideVersion(versionID string) platform.ApplicationVersion {
	return platform.ApplicationVersion{
		ApplicationID:        "he-tme",
		Version:              versionID[len("he-tme:"):],
		ApplicationVersionID: versionID,
		InputArtifacts: []platform.ArtifactDeclaration{{
			Name:     "slide",
			MimeType: "image/tiff",
			MetadataSchema: map[string]any{
				"type":     "object",
				"required": []any{"checksum_base64_crc32c", "width_px"},
				"properties": map[string]any{
					"checksum_base64_crc32c": map[string]any{"type": "string", "minLength": 1},
					"width_px":               map[string]any{"type": "integer", "minimum": 1},
					"staining_method":        map[string]any{"type": "string"},
				},
			},
		}},
	}
}

func uploadedRecord() metadata.Record {
	return metadata.Record{
		Reference:         "slide-1",
		SourcePath:        "/data/slide-1.tiff",
		Checksum:          "yZRlqg==",
		WidthPx:           2054,
		HeightPx:          1529,
		StainingMethod:    "H&E",
		PlatformBucketURL: "gs://test-bucket/session/slide-1.tiff",
	}
}

func TestSubmitCreatesRunWithFilteredMetadata(t *testing.T) {
	stub := newPlatformStub(t, []platform.ApplicationVersion{slideVersion("he-tme:v1.2.0")})
	sub := NewSubmitter(stub.client(), observability.NewNop())

	run, err := sub.Submit(context.Background(), "he-tme:v1.2.0", []metadata.Record{uploadedRecord()})
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ApplicationRunID)
	assert.Equal(t, platform.RunStatusReceived, run.Status)

	require.Len(t, stub.created, 1)
	req := stub.created[0]
	assert.Equal(t, "he-tme:v1.2.0", req.ApplicationVersionID)
	require.Len(t, req.Items, 1)
	assert.Equal(t, "slide-1", req.Items[0].Reference)
	require.Len(t, req.Items[0].InputArtifacts, 1)

	artifact := req.Items[0].InputArtifacts[0]
	assert.Equal(t, "slide", artifact.Name)
	assert.Equal(t, "gs://test-bucket/session/slide-1.tiff", artifact.DownloadURL)
	// Only schema-declared fields travel with the run.
	assert.Equal(t, "yZRlqg==", artifact.Metadata["checksum_base64_crc32c"])
	assert.Equal(t, "H&E", artifact.Metadata["staining_method"])
	assert.NotContains(t, artifact.Metadata, "height_px")
	assert.NotContains(t, artifact.Metadata, "tissue")
}

func TestSubmitBareApplicationIDUsesLatestVersion(t *testing.T) {
	stub := newPlatformStub(t, []platform.ApplicationVersion{
		slideVersion("he-tme:v0.9.0"),
		slideVersion("he-tme:v1.2.0"),
		slideVersion("he-tme:v1.10.0"),
	})
	sub := NewSubmitter(stub.client(), observability.NewNop())

	_, err := sub.Submit(context.Background(), "he-tme", []metadata.Record{uploadedRecord()})
	require.NoError(t, err)
	require.Len(t, stub.created, 1)
	assert.Equal(t, "he-tme:v1.10.0", stub.created[0].ApplicationVersionID)
}

func TestSubmitRejectsNotUploadedRecord(t *testing.T) {
	stub := newPlatformStub(t, []platform.ApplicationVersion{slideVersion("he-tme:v1.2.0")})
	sub := NewSubmitter(stub.client(), observability.NewNop())

	rec := uploadedRecord()
	rec.PlatformBucketURL = ""
	_, err := sub.Submit(context.Background(), "he-tme:v1.2.0", []metadata.Record{rec})

	assert.True(t, platform.IsValidation(err))
	assert.Contains(t, err.Error(), "slide-1")
	assert.Empty(t, stub.created)
}

func TestSubmitRejectsForeignBucketScheme(t *testing.T) {
	stub := newPlatformStub(t, []platform.ApplicationVersion{slideVersion("he-tme:v1.2.0")})
	sub := NewSubmitter(stub.client(), observability.NewNop())

	rec := uploadedRecord()
	rec.PlatformBucketURL = "s3://elsewhere/slide-1.tiff"
	_, err := sub.Submit(context.Background(), "he-tme:v1.2.0", []metadata.Record{rec})

	assert.True(t, platform.IsValidation(err))
	assert.Empty(t, stub.created)
}

func TestSubmitRejectsSchemaViolationWithoutCreatingRun(t *testing.T) {
	stub := newPlatformStub(t, []platform.ApplicationVersion{slideVersion("he-tme:v1.2.0")})
	sub := NewSubmitter(stub.client(), observability.NewNop())

	rec := uploadedRecord()
	rec.WidthPx = 0
	_, err := sub.Submit(context.Background(), "he-tme:v1.2.0", []metadata.Record{rec})

	assert.True(t, platform.IsValidation(err))
	assert.Contains(t, err.Error(), "slide")
	assert.Contains(t, err.Error(), "slide-1")
	assert.Empty(t, stub.created)
}

func TestSubmitEmptyTableFailsWithoutNetwork(t *testing.T) {
	stub := newPlatformStub(t, []platform.ApplicationVersion{slideVersion("he-tme:v1.2.0")})
	sub := NewSubmitter(stub.client(), observability.NewNop())

	_, err := sub.Submit(context.Background(), "he-tme:v1.2.0", nil)

	assert.True(t, platform.IsValidation(err))
	assert.Zero(t, stub.requestCount())
}

// End to end through the local half of the lifecycle: extract a real slide
// file, apply an incomplete mapping and watch the submission fail on the
// missing schema field without creating anything remotely.
func TestSubmitExtractedRecordMissingRequiredField(t *testing.T) {
	version := slideVersion("he-tme:v1.2.0")
	version.InputArtifacts[0].MetadataSchema = map[string]any{
		"type":     "object",
		"required": []any{"checksum_base64_crc32c", "staining_method"},
		"properties": map[string]any{
			"checksum_base64_crc32c": map[string]any{"type": "string", "minLength": 1},
			"staining_method":        map[string]any{"type": "string", "minLength": 1},
		},
	}
	stub := newPlatformStub(t, []platform.ApplicationVersion{version})

	slides := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(slides, "alpha.tiff"), minimalTIFF(2054, 1529), 0o644))
	records, err := wsi.NewExtractor(observability.NewNop()).Extract(slides)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// No mapping rule sets staining_method; pretend the upload happened.
	records[0].PlatformBucketURL = "gs://test-bucket/session/alpha.tiff"

	sub := NewSubmitter(stub.client(), observability.NewNop())
	_, err = sub.Submit(context.Background(), "he-tme:v1.2.0", records)

	assert.True(t, platform.IsValidation(err))
	assert.Contains(t, err.Error(), "staining_method")
	assert.Empty(t, stub.created)
}

func TestSubmitMalformedVersionIDFailsWithoutNetwork(t *testing.T) {
	stub := newPlatformStub(t, []platform.ApplicationVersion{slideVersion("he-tme:v1.2.0")})
	sub := NewSubmitter(stub.client(), observability.NewNop())

	_, err := sub.Submit(context.Background(), "he-tme:v1.0", []metadata.Record{uploadedRecord()})

	assert.True(t, platform.IsValidation(err))
	assert.Zero(t, stub.requestCount())
}
