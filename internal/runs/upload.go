package runs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/helix-imaging/launchpad/internal/metadata"
	"github.com/helix-imaging/launchpad/internal/observability"
	"github.com/helix-imaging/launchpad/internal/platform"
)

// SignedURLProvider issues signed upload URLs and canonical object URLs for
// the platform bucket. Implemented by bucket.Service.
type SignedURLProvider interface {
	SignedUploadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	ObjectURL(key string) string
}

// UploadProgressCallback is invoked with the full record slice after every
// transferred chunk and after every completed file, so callers can persist
// the table and resume an interrupted session.
type UploadProgressCallback func(records []metadata.Record)

// Uploader transfers prepared slide files into the platform bucket via signed
// URLs. Records whose PlatformBucketURL is already set are skipped, making
// Upload safe to re-run after an interruption.
type Uploader struct {
	urls      SignedURLProvider
	http      *http.Client
	chunkSize int64
	log       observability.Logger
}

// NewUploader creates an Uploader transferring chunkSize bytes between
// progress reports.
func NewUploader(urls SignedURLProvider, chunkSize int64, log observability.Logger) *Uploader {
	return &Uploader{
		urls:      urls,
		http:      &http.Client{},
		chunkSize: chunkSize,
		log:       log.Named("upload"),
	}
}

// Upload transfers every not-yet-uploaded record under the given key prefix.
// Missing source files fail the whole batch before any byte is transferred,
// naming the offending record.
func (u *Uploader) Upload(ctx context.Context, prefix string, records []metadata.Record, onProgress UploadProgressCallback) error {
	for i := range records {
		if records[i].Uploaded() {
			continue
		}
		if _, err := os.Stat(records[i].SourcePath); err != nil {
			return &platform.IOError{
				Path:    records[i].SourcePath,
				Message: fmt.Sprintf("source file for record %q is missing", records[i].Reference),
				Cause:   err,
			}
		}
	}

	for i := range records {
		rec := &records[i]
		if rec.Uploaded() {
			u.log.Info("skipping already uploaded file",
				observability.String("reference", rec.Reference),
				observability.String("bucket_url", rec.PlatformBucketURL))
			continue
		}
		key := path.Join(prefix, filepath.Base(rec.SourcePath))
		if err := u.uploadFile(ctx, key, rec, records, onProgress); err != nil {
			return err
		}
	}
	return nil
}

func (u *Uploader) uploadFile(ctx context.Context, key string, rec *metadata.Record, records []metadata.Record, onProgress UploadProgressCallback) error {
	f, err := os.Open(rec.SourcePath)
	if err != nil {
		return &platform.IOError{Path: rec.SourcePath, Message: "failed to open source file", Cause: err}
	}
	defer func() { _ = f.Close() }()
	stat, err := f.Stat()
	if err != nil {
		return &platform.IOError{Path: rec.SourcePath, Message: "failed to stat source file", Cause: err}
	}
	size := stat.Size()

	signedURL, err := u.urls.SignedUploadURL(ctx, key, 0)
	if err != nil {
		return err
	}

	body := &progressReader{
		r:     f,
		chunk: u.chunkSize,
		onChunk: func(read int64) {
			if size > 0 {
				rec.UploadProgress = float64(read) / float64(size)
			}
			if onProgress != nil {
				onProgress(records)
			}
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = size

	resp, err := u.http.Do(req)
	if err != nil {
		return &platform.TransientError{Op: "upload " + rec.Reference, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &platform.TransientError{
			Op:    "upload " + rec.Reference,
			Cause: fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	rec.PlatformBucketURL = u.urls.ObjectURL(key)
	rec.UploadProgress = 1.0
	u.log.Info("uploaded file",
		observability.String("reference", rec.Reference),
		observability.String("bucket_url", rec.PlatformBucketURL),
		observability.Int64("size", size))
	if onProgress != nil {
		onProgress(records)
	}
	return nil
}

// progressReader reads at most chunk bytes per call and reports the running
// total after each chunk.
type progressReader struct {
	r       io.Reader
	chunk   int64
	read    int64
	onChunk func(read int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	if int64(len(b)) > p.chunk {
		b = b[:p.chunk]
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.onChunk(p.read)
	}
	return n, err
}
