package runs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helix-imaging/launchpad/internal/metadata"
	"github.com/helix-imaging/launchpad/internal/observability"
	"github.com/helix-imaging/launchpad/internal/platform"
)

// uploadTarget is a bucket stand-in: it serves signed PUT URLs pointing at
// itself and records what arrives.
type uploadTarget struct {
	server *httptest.Server

	mu      sync.Mutex
	puts    int
	objects map[string][]byte
	status  int
}

func newUploadTarget(t *testing.T) *uploadTarget {
	t.Helper()
	target := &uploadTarget{objects: map[string][]byte{}, status: http.StatusOK}
	target.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		target.mu.Lock()
		target.puts++
		target.objects[r.URL.Path] = body
		status := target.status
		target.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(target.server.Close)
	return target
}

func (u *uploadTarget) SignedUploadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return u.server.URL + "/" + key, nil
}

func (u *uploadTarget) ObjectURL(key string) string {
	return "gs://test-bucket/" + key
}

func (u *uploadTarget) putCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.puts
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUploadTransfersPendingFiles(t *testing.T) {
	target := newUploadTarget(t)
	dir := t.TempDir()
	pending := writeSource(t, dir, "pending.tiff", "pending-bytes")
	done := writeSource(t, dir, "done.tiff", "done-bytes")

	records := []metadata.Record{
		{Reference: "done", SourcePath: done, PlatformBucketURL: "gs://test-bucket/earlier/done.tiff"},
		{Reference: "pending", SourcePath: pending},
	}

	up := NewUploader(target, 4, observability.NewNop())
	var callbacks int
	err := up.Upload(context.Background(), "session", records, func([]metadata.Record) { callbacks++ })
	require.NoError(t, err)

	assert.Equal(t, 1, target.putCount())
	assert.Equal(t, []byte("pending-bytes"), target.objects["/session/pending.tiff"])
	assert.Equal(t, "gs://test-bucket/session/pending.tiff", records[1].PlatformBucketURL)
	assert.Equal(t, 1.0, records[1].UploadProgress)
	// The already uploaded record keeps its original location.
	assert.Equal(t, "gs://test-bucket/earlier/done.tiff", records[0].PlatformBucketURL)
	assert.Greater(t, callbacks, 1)
}

func TestUploadMissingSourceFailsBeforeAnyTransfer(t *testing.T) {
	target := newUploadTarget(t)
	dir := t.TempDir()
	ok := writeSource(t, dir, "ok.tiff", "bytes")

	records := []metadata.Record{
		{Reference: "ok", SourcePath: ok},
		{Reference: "gone", SourcePath: filepath.Join(dir, "gone.tiff")},
	}

	up := NewUploader(target, 4, observability.NewNop())
	err := up.Upload(context.Background(), "session", records, nil)

	var ioErr *platform.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Contains(t, err.Error(), "gone")
	assert.Zero(t, target.putCount())
}

func TestUploadProgressIsMonotonic(t *testing.T) {
	target := newUploadTarget(t)
	dir := t.TempDir()
	src := writeSource(t, dir, "big.tiff", "0123456789abcdef")

	records := []metadata.Record{{Reference: "big", SourcePath: src}}
	up := NewUploader(target, 4, observability.NewNop())

	var progress []float64
	err := up.Upload(context.Background(), "session", records, func(recs []metadata.Record) {
		progress = append(progress, recs[0].UploadProgress)
	})
	require.NoError(t, err)

	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	assert.Equal(t, 1.0, progress[len(progress)-1])
}

func TestUploadRejectedByBucket(t *testing.T) {
	target := newUploadTarget(t)
	target.status = http.StatusForbidden
	dir := t.TempDir()
	src := writeSource(t, dir, "slide.tiff", "bytes")

	records := []metadata.Record{{Reference: "slide", SourcePath: src}}
	up := NewUploader(target, 4, observability.NewNop())
	err := up.Upload(context.Background(), "session", records, nil)

	var te *platform.TransientError
	require.ErrorAs(t, err, &te)
	assert.False(t, records[0].Uploaded())
}
