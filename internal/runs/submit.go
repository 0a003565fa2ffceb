package runs

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/helix-imaging/launchpad/internal/metadata"
	"github.com/helix-imaging/launchpad/internal/observability"
	"github.com/helix-imaging/launchpad/internal/platform"
)

// requiredURLScheme is the bucket URL scheme run submissions must carry; the
// platform's ingestion only reads Google Cloud Storage references.
const requiredURLScheme = "gs://"

// Submitter turns a fully uploaded metadata table into an application run.
// All validation happens locally before the creation request, so a rejected
// submission never leaves a half-created run behind.
type Submitter struct {
	client *platform.Client
	log    observability.Logger
}

func NewSubmitter(client *platform.Client, log observability.Logger) *Submitter {
	return &Submitter{client: client, log: log.Named("submit")}
}

// Submit resolves versionID, validates every record against the version's
// input artifact schemas and creates the run. A bare application id resolves
// to the latest published version.
func (s *Submitter) Submit(ctx context.Context, versionID string, records []metadata.Record) (*platform.ApplicationRun, error) {
	if len(records) == 0 {
		return nil, &platform.ValidationError{Message: "no records to submit"}
	}

	version, err := s.client.ResolveVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	items := make([]platform.ItemCreationRequest, 0, len(records))
	for i := range records {
		item, err := buildItem(&records[i], version)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	run, err := s.client.CreateRun(ctx, platform.RunCreationRequest{
		ApplicationVersionID: version.ApplicationVersionID,
		Items:                items,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("submitted run",
		observability.String("application_run_id", run.ApplicationRunID),
		observability.String("application_version_id", version.ApplicationVersionID),
		observability.Int("items", len(items)))
	return run, nil
}

func buildItem(rec *metadata.Record, version *platform.ApplicationVersion) (*platform.ItemCreationRequest, error) {
	if !rec.Uploaded() {
		return nil, &platform.ValidationError{
			Message: fmt.Sprintf("record %q has not been uploaded", rec.Reference),
		}
	}
	if !strings.HasPrefix(rec.PlatformBucketURL, requiredURLScheme) {
		return nil, &platform.ValidationError{
			Message: fmt.Sprintf("record %q has bucket url %q, expected a %s url",
				rec.Reference, rec.PlatformBucketURL, requiredURLScheme),
		}
	}

	fields := rec.SchemaFields()
	artifacts := make([]platform.InputArtifactCreationRequest, 0, len(version.InputArtifacts))
	for _, decl := range version.InputArtifacts {
		md := filterMetadata(fields, decl.MetadataSchema)
		if err := validateMetadata(rec.Reference, decl, md); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, platform.InputArtifactCreationRequest{
			Name:        decl.Name,
			DownloadURL: rec.PlatformBucketURL,
			Metadata:    md,
		})
	}
	return &platform.ItemCreationRequest{
		Reference:      rec.Reference,
		InputArtifacts: artifacts,
	}, nil
}

// filterMetadata reduces the record's fields to the keys the artifact schema
// declares, so runs never carry fields the application did not ask for.
func filterMetadata(fields map[string]any, schema map[string]any) map[string]any {
	out := map[string]any{}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return out
	}
	for key := range props {
		if v, ok := fields[key]; ok {
			out[key] = v
		}
	}
	return out
}

func validateMetadata(reference string, decl platform.ArtifactDeclaration, md map[string]any) error {
	if len(decl.MetadataSchema) == 0 {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(decl.MetadataSchema),
		gojsonschema.NewGoLoader(md),
	)
	if err != nil {
		return fmt.Errorf("failed to validate metadata of %q: %w", reference, err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return &platform.ValidationError{
			Message: fmt.Sprintf("metadata of record %q violates schema of input artifact %q: %s",
				reference, decl.Name, first.String()),
		}
	}
	return nil
}
