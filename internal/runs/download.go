package runs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/helix-imaging/launchpad/internal/observability"
	"github.com/helix-imaging/launchpad/internal/platform"
	"github.com/helix-imaging/launchpad/internal/wsi"
)

// DownloadOptions controls one result download.
type DownloadOptions struct {
	// DestinationDir is the root the artifacts are placed under. Required.
	DestinationDir string
	// WaitForCompletion keeps polling until the run reaches a terminal
	// status; otherwise a single snapshot of currently available results
	// is downloaded.
	WaitForCompletion bool
	// CreateRunSubdir places everything under DestinationDir/<run id>.
	CreateRunSubdir bool
	// CreateItemSubdir places each item's artifacts in their own directory
	// named after the item reference.
	CreateItemSubdir bool
	// QuPathProject, when set, assembles a QuPath project there after the
	// download finishes.
	QuPathProject string
	// OnProgress receives progress snapshots. Optional.
	OnProgress ProgressCallback
}

// DownloaderConfig carries the transfer and polling knobs, typically taken
// from config.Settings.
type DownloaderConfig struct {
	ChunkSize    int64
	PollInterval time.Duration
	PollMaxWait  time.Duration
}

// Downloader incrementally fetches run results. Artifacts that already exist
// on disk with a matching checksum are skipped, so an interrupted or repeated
// download transfers only what is missing.
type Downloader struct {
	client *platform.Client
	http   *http.Client
	cfg    DownloaderConfig
	qupath QuPathBuilder
	log    observability.Logger
}

// NewDownloader creates a Downloader. qupath may be nil when no QuPath
// integration is available.
func NewDownloader(client *platform.Client, cfg DownloaderConfig, qupath QuPathBuilder, log observability.Logger) *Downloader {
	return &Downloader{
		client: client,
		http:   &http.Client{},
		cfg:    cfg,
		qupath: qupath,
		log:    log.Named("download"),
	}
}

// Download fetches the results of runID into opts.DestinationDir and returns
// the directory the artifacts were placed under. Remote state is only ever
// observed, never mutated: a canceled or failed run still yields whatever
// results its succeeded items produced.
func (d *Downloader) Download(ctx context.Context, runID string, opts DownloadOptions) (string, error) {
	emit := func(p DownloadProgress) {
		if opts.OnProgress != nil {
			opts.OnProgress(p)
		}
	}

	run, err := d.client.Run(ctx, runID)
	if err != nil {
		return "", err
	}
	emit(DownloadProgress{State: StateInitializing, Run: run})

	root := opts.DestinationDir
	if opts.CreateRunSubdir {
		root = filepath.Join(root, run.ApplicationRunID)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", &platform.IOError{Path: root, Message: "failed to create destination directory", Cause: err}
	}

	session := &downloadSession{
		downloader: d,
		run:        run,
		root:       root,
		opts:       opts,
		emit:       emit,
		handled:    map[string]bool{},
	}

	wait := d.cfg.PollInterval
	for {
		terminal := run.Status.Terminal()
		if err := session.processResults(ctx); err != nil {
			emit(DownloadProgress{State: StateFailed, Run: run})
			return root, err
		}
		if terminal || !opts.WaitForCompletion {
			break
		}

		select {
		case <-ctx.Done():
			emit(DownloadProgress{State: StateCanceled, Run: run})
			return root, ctx.Err()
		case <-time.After(wait):
		}
		wait = wait * 3 / 2
		if wait > d.cfg.PollMaxWait {
			wait = d.cfg.PollMaxWait
		}

		run, err = d.client.Run(ctx, runID)
		if err != nil {
			emit(DownloadProgress{State: StateFailed, Run: session.run})
			return root, err
		}
		session.run = run
	}

	if opts.QuPathProject != "" && d.qupath != nil {
		d.buildQuPathProject(ctx, session, opts.QuPathProject)
	}

	final := StateCompleted
	switch {
	case run.Status.Canceled():
		final = StateCanceled
	case run.Status == platform.RunStatusErrorUser || run.Status == platform.RunStatusErrorSystem:
		final = StateFailed
	}
	emit(DownloadProgress{State: final, Run: run,
		ItemIndex: session.itemCount, ItemCount: session.itemCount,
		TotalArtifactCount: session.artifactCount})
	d.log.Info("download finished",
		observability.String("application_run_id", run.ApplicationRunID),
		observability.String("status", string(run.Status)),
		observability.String("destination", root))
	return root, nil
}

// downloadSession tracks per-download state across polling passes.
type downloadSession struct {
	downloader *Downloader
	run        *platform.ApplicationRun
	root       string
	opts       DownloadOptions
	emit       func(DownloadProgress)

	// handled maps destination paths already written or verified this
	// session, so a later polling pass does not re-check them.
	handled       map[string]bool
	itemCount     int
	artifactCount int
}

// processResults downloads everything currently available for the run. Items
// keep their listing order and artifacts are ordered by name, so artifact
// indices never move backwards between polling passes.
func (s *downloadSession) processResults(ctx context.Context) error {
	d := s.downloader
	items, err := d.client.RunResults(ctx, s.run.ApplicationRunID)
	if err != nil {
		return err
	}
	s.itemCount = len(items)
	s.artifactCount = 0
	for i := range items {
		s.artifactCount += len(items[i].OutputArtifacts)
	}
	s.emit(DownloadProgress{State: StatePolling, Run: s.run,
		ItemCount: s.itemCount, TotalArtifactCount: s.artifactCount})

	artifactIndex := 0
	for i := range items {
		item := &items[i]
		artifacts := append([]platform.OutputArtifact(nil), item.OutputArtifacts...)
		sort.Slice(artifacts, func(a, b int) bool { return artifacts[a].Name < artifacts[b].Name })

		for j, artifact := range artifacts {
			artifactIndex++
			if item.Status != platform.ItemStatusSucceeded || artifact.DownloadURL == "" {
				continue
			}
			dest, err := s.artifactPath(item, artifact)
			if err != nil {
				return err
			}
			if s.handled[dest] {
				continue
			}
			if s.checksumMatches(dest, artifact) {
				d.log.Info("skipping artifact with matching checksum",
					observability.String("path", dest))
				s.handled[dest] = true
				continue
			}
			pos := artifactPosition{
				itemIndex:     i,
				artifactIndex: j + 1,
				artifactCount: len(artifacts),
				totalIndex:    artifactIndex,
			}
			if err := s.fetchArtifact(ctx, item, artifact, dest, pos); err != nil {
				return err
			}
			s.handled[dest] = true
		}
	}
	return nil
}

// artifactPath decides where an artifact lands on disk. The extension comes
// from the artifact's media type; unknown media types fail the download
// rather than writing files nothing can open.
func (s *downloadSession) artifactPath(item *platform.ItemResult, artifact platform.OutputArtifact) (string, error) {
	ext, err := platform.ExtensionForMime(platform.MimeTypeForArtifact(artifact))
	if err != nil {
		return "", err
	}
	ref := sanitizeReference(item.Reference)
	if s.opts.CreateItemSubdir {
		return filepath.Join(s.root, ref, artifact.Name+ext), nil
	}
	return filepath.Join(s.root, ref+"_"+artifact.Name+ext), nil
}

// checksumMatches reports whether dest already holds the artifact's content.
// Artifacts without a recorded checksum are always transferred again.
func (s *downloadSession) checksumMatches(dest string, artifact platform.OutputArtifact) bool {
	expected, ok := artifact.Metadata[platform.ChecksumKey].(string)
	if !ok || expected == "" {
		return false
	}
	actual, err := wsi.FileCRC32C(dest)
	if err != nil {
		return false
	}
	return actual == expected
}

// artifactPosition locates one artifact within the run's listing for
// progress reporting.
type artifactPosition struct {
	itemIndex     int
	artifactIndex int
	artifactCount int
	totalIndex    int
}

func (s *downloadSession) fetchArtifact(ctx context.Context, item *platform.ItemResult, artifact platform.OutputArtifact, dest string, pos artifactPosition) error {
	d := s.downloader
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &platform.IOError{Path: dest, Message: "failed to create artifact directory", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifact.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return &platform.TransientError{Op: "download " + artifact.Name, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &platform.TransientError{
			Op:    "download " + artifact.Name,
			Cause: fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	tmp := dest + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return &platform.IOError{Path: tmp, Message: "failed to create artifact file", Cause: err}
	}

	var written int64
	for {
		n, err := io.CopyN(f, resp.Body, d.cfg.ChunkSize)
		written += n
		if n > 0 {
			s.emit(DownloadProgress{
				State: StateDownloading,
				Run:   s.run,
				Item:  item,

				ItemIndex:          pos.itemIndex,
				ItemCount:          s.itemCount,
				ArtifactIndex:      pos.artifactIndex,
				ArtifactCount:      pos.artifactCount,
				TotalArtifactIndex: pos.totalIndex,
				TotalArtifactCount: s.artifactCount,

				ArtifactPath:           dest,
				ArtifactSize:           resp.ContentLength,
				ArtifactDownloadedSize: written,
			})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return &platform.TransientError{Op: "download " + artifact.Name, Cause: err}
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return &platform.IOError{Path: tmp, Message: "failed to finish artifact file", Cause: err}
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return &platform.IOError{Path: dest, Message: "failed to move artifact into place", Cause: err}
	}
	d.log.Info("downloaded artifact",
		observability.String("path", dest),
		observability.Int64("size", written))
	return nil
}

func (d *Downloader) buildQuPathProject(ctx context.Context, session *downloadSession, projectDir string) {
	run := session.run
	var results []string
	for dest := range session.handled {
		results = append(results, dest)
	}
	sort.Strings(results)

	phases := []struct {
		state DownloadState
		step  func() error
	}{
		{StateQuPathAddInput, func() error { return d.qupath.AddInput(ctx, projectDir, nil) }},
		{StateQuPathAddResults, func() error { return d.qupath.AddResults(ctx, projectDir, results) }},
		{StateQuPathAnnotate, func() error { return d.qupath.AnnotateInputWithResults(ctx, projectDir) }},
	}
	for _, phase := range phases {
		session.emit(DownloadProgress{State: phase.state, Run: run})
		if err := phase.step(); err != nil {
			d.log.Warn("qupath project step failed",
				observability.String("state", string(phase.state)),
				observability.Err(err))
			return
		}
	}
}

// sanitizeReference turns an item reference into a safe path component.
func sanitizeReference(ref string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return strings.Trim(r.Replace(ref), "_")
}
