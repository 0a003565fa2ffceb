// Package runs orchestrates the run lifecycle: uploading prepared slide files,
// submitting runs against an application version and incrementally downloading
// results while a run is still executing.
package runs

import "github.com/helix-imaging/launchpad/internal/platform"

// DownloadState is the phase a result download is in. States are reported
// through DownloadProgress; they never feed back into control flow.
type DownloadState string

const (
	StateInitializing DownloadState = "INITIALIZING"
	StatePolling      DownloadState = "POLLING"
	StateDownloading  DownloadState = "DOWNLOADING"

	StateQuPathAddInput   DownloadState = "QUPATH_ADD_INPUT"
	StateQuPathAddResults DownloadState = "QUPATH_ADD_RESULTS"
	StateQuPathAnnotate   DownloadState = "QUPATH_ANNOTATE_INPUT_WITH_RESULTS"

	StateCompleted DownloadState = "COMPLETED"
	StateCanceled  DownloadState = "CANCELED"
	StateFailed    DownloadState = "FAILED"
)

// DownloadProgress is an immutable snapshot emitted to the progress callback.
// Counters only ever grow within one download; consumers may render them
// directly as progress bars.
type DownloadProgress struct {
	State DownloadState
	Run   *platform.ApplicationRun
	Item  *platform.ItemResult

	// ItemIndex counts processed items, ItemCount the items seen in the
	// latest results listing.
	ItemIndex int
	ItemCount int

	// ArtifactIndex counts artifacts within the current item,
	// TotalArtifactIndex across all items; both are populated on
	// DOWNLOADING snapshots only.
	ArtifactIndex      int
	ArtifactCount      int
	TotalArtifactIndex int
	TotalArtifactCount int

	// Artifact transfer detail, populated on DOWNLOADING snapshots.
	ArtifactPath           string
	ArtifactSize           int64
	ArtifactDownloadedSize int64
}

// ItemProgressNormalized reports item completion in [0,1].
func (p DownloadProgress) ItemProgressNormalized() float64 {
	if p.ItemCount <= 0 {
		return 0
	}
	return float64(p.ItemIndex) / float64(p.ItemCount)
}

// ArtifactProgressNormalized reports artifact completion within the current
// item in [0,1].
func (p DownloadProgress) ArtifactProgressNormalized() float64 {
	if p.ArtifactCount <= 0 {
		return 0
	}
	return float64(p.ArtifactIndex) / float64(p.ArtifactCount)
}

// ProgressCallback receives download progress snapshots. Callbacks run on the
// downloader's goroutine and must return promptly.
type ProgressCallback func(DownloadProgress)
