// Package platform provides the typed client for the imaging platform API:
// applications, versions, runs and run results.
package platform

import "time"

// RunStatus is the remote lifecycle state of an application run. Transitions
// are driven entirely by the platform and observed via polling; the client
// never computes status locally.
type RunStatus string

const (
	RunStatusReceived       RunStatus = "RECEIVED"
	RunStatusRunning        RunStatus = "RUNNING"
	RunStatusCompleted      RunStatus = "COMPLETED"
	RunStatusErrorUser      RunStatus = "ERROR_USER"
	RunStatusErrorSystem    RunStatus = "ERROR_SYSTEM"
	RunStatusCanceledUser   RunStatus = "CANCELED_USER"
	RunStatusCanceledSystem RunStatus = "CANCELED_SYSTEM"
)

// Terminal reports whether the run can no longer change state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusErrorUser, RunStatusErrorSystem,
		RunStatusCanceledUser, RunStatusCanceledSystem:
		return true
	}
	return false
}

// Canceled reports whether the run ended by cancellation.
func (s RunStatus) Canceled() bool {
	return s == RunStatusCanceledUser || s == RunStatusCanceledSystem
}

// String renders the status human-readably for CLI output.
func (s RunStatus) String() string {
	switch s {
	case RunStatusReceived:
		return "received"
	case RunStatusRunning:
		return "running"
	case RunStatusCompleted:
		return "completed"
	case RunStatusErrorUser:
		return "failed (user error)"
	case RunStatusErrorSystem:
		return "failed (system error)"
	case RunStatusCanceledUser:
		return "canceled by user"
	case RunStatusCanceledSystem:
		return "canceled by system"
	}
	return string(s)
}

// ItemStatus is the per-item state within a run.
type ItemStatus string

const (
	ItemStatusPending        ItemStatus = "PENDING"
	ItemStatusSucceeded      ItemStatus = "SUCCEEDED"
	ItemStatusErrorUser      ItemStatus = "ERROR_USER"
	ItemStatusErrorSystem    ItemStatus = "ERROR_SYSTEM"
	ItemStatusCanceledUser   ItemStatus = "CANCELED_USER"
	ItemStatusCanceledSystem ItemStatus = "CANCELED_SYSTEM"
)

// Application is a versioned image-analysis pipeline offered by the platform.
type Application struct {
	ApplicationID     string   `json:"application_id"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	RegulatoryClasses []string `json:"regulatory_classes"`
}

// ArtifactDeclaration describes one named input or output artifact of an
// application version, including the JSON Schema its metadata must satisfy.
type ArtifactDeclaration struct {
	Name           string         `json:"name"`
	MimeType       string         `json:"mime_type,omitempty"`
	Scope          string         `json:"scope,omitempty"`
	MetadataSchema map[string]any `json:"metadata_schema,omitempty"`
}

// ApplicationVersion identifies one deployable version of an application.
// Immutable once fetched; the client caches it per process.
type ApplicationVersion struct {
	ApplicationID        string                `json:"application_id"`
	Version              string                `json:"version"`
	ApplicationVersionID string                `json:"application_version_id"`
	Changelog            string                `json:"changelog,omitempty"`
	InputArtifacts       []ArtifactDeclaration `json:"input_artifacts"`
	OutputArtifacts      []ArtifactDeclaration `json:"output_artifacts"`
}

// ApplicationRun is one execution instance of an application version.
type ApplicationRun struct {
	ApplicationRunID     string    `json:"application_run_id"`
	ApplicationVersionID string    `json:"application_version_id"`
	Status               RunStatus `json:"status"`
	TriggeredAt          time.Time `json:"triggered_at"`
	TriggeredBy          string    `json:"triggered_by,omitempty"`
	OrganizationID       string    `json:"organization_id,omitempty"`
}

// OutputArtifact is one downloadable result file of an item. DownloadURL is a
// time-limited signed URL, empty until the item succeeds. Metadata carries the
// content checksum under ChecksumKey.
type OutputArtifact struct {
	Name        string         `json:"name"`
	DownloadURL string         `json:"download_url,omitempty"`
	MimeType    string         `json:"mime_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ChecksumKey is the artifact metadata key under which the platform records
// the base64-encoded CRC32C content checksum.
const ChecksumKey = "checksum_base64_crc32c"

// ItemResult is one analyzed unit within a run, typically one slide.
type ItemResult struct {
	ItemID          string           `json:"item_id"`
	Reference       string           `json:"reference"`
	Status          ItemStatus       `json:"status"`
	Error           string           `json:"error,omitempty"`
	OutputArtifacts []OutputArtifact `json:"output_artifacts,omitempty"`
}

// InputArtifactCreationRequest is one input artifact in a run creation payload.
type InputArtifactCreationRequest struct {
	Name        string         `json:"name"`
	DownloadURL string         `json:"download_url"`
	Metadata    map[string]any `json:"metadata"`
}

// ItemCreationRequest is one item in a run creation payload.
type ItemCreationRequest struct {
	Reference      string                         `json:"reference"`
	InputArtifacts []InputArtifactCreationRequest `json:"input_artifacts"`
}

// RunCreationRequest is the payload for creating an application run.
type RunCreationRequest struct {
	ApplicationVersionID string                `json:"application_version_id"`
	Items                []ItemCreationRequest `json:"items"`
}

// RunCreationResponse is the platform's answer to a run creation.
type RunCreationResponse struct {
	ApplicationRunID string `json:"application_run_id"`
}
