package runs

import (
	"context"

	"github.com/google/uuid"

	"github.com/helix-imaging/launchpad/internal/bucket"
	"github.com/helix-imaging/launchpad/internal/config"
	"github.com/helix-imaging/launchpad/internal/metadata"
	"github.com/helix-imaging/launchpad/internal/observability"
	"github.com/helix-imaging/launchpad/internal/platform"
	"github.com/helix-imaging/launchpad/internal/wsi"
)

// Service composes the full run lifecycle behind one facade: prepare a
// metadata table from a slide directory, upload the files, submit a run and
// download its results.
type Service struct {
	Client    *platform.Client
	Bucket    *bucket.Service
	extractor *wsi.Extractor
	uploader  *Uploader
	submitter *Submitter
	download  *Downloader
	log       observability.Logger
}

// NewService wires a Service from validated settings. qupath may be nil.
func NewService(settings *config.Settings, qupath QuPathBuilder, log observability.Logger) (*Service, error) {
	creds := platform.NewStaticTokenProvider(settings.Token)
	client := platform.NewClient(settings.APIRoot, creds, log)
	bkt, err := bucket.New(settings.Bucket, log)
	if err != nil {
		return nil, err
	}
	return &Service{
		Client:    client,
		Bucket:    bkt,
		extractor: wsi.NewExtractor(log),
		uploader:  NewUploader(bkt, settings.ChunkSize, log),
		submitter: NewSubmitter(client, log),
		download: NewDownloader(client, DownloaderConfig{
			ChunkSize:    settings.ChunkSize,
			PollInterval: settings.PollInterval,
			PollMaxWait:  settings.PollMaxWait,
		}, qupath, log),
		log: log.Named("runs"),
	}, nil
}

// Prepare scans sourceDir for slide files, applies the mapping rules and
// writes the metadata table to csvPath. When the table already exists,
// upload state is carried over for records whose content is unchanged, so
// re-preparing never forces a re-upload.
func (s *Service) Prepare(sourceDir, csvPath string, mappingRules []string) ([]metadata.Record, error) {
	rules, err := metadata.ParseRules(mappingRules)
	if err != nil {
		return nil, err
	}
	records, err := s.extractor.Extract(sourceDir)
	if err != nil {
		return nil, err
	}
	if err := metadata.ApplyRules(rules, records); err != nil {
		return nil, err
	}

	if previous, err := metadata.ReadCSV(csvPath); err == nil {
		carryOverUploads(records, previous)
	}

	if err := metadata.WriteCSV(csvPath, records); err != nil {
		return nil, err
	}
	s.log.Info("prepared metadata table",
		observability.String("csv", csvPath),
		observability.Int("records", len(records)))
	return records, nil
}

// carryOverUploads copies bucket URLs from a previous table for records whose
// reference and checksum still match.
func carryOverUploads(records []metadata.Record, previous []metadata.Record) {
	byRef := make(map[string]*metadata.Record, len(previous))
	for i := range previous {
		byRef[previous[i].Reference] = &previous[i]
	}
	for i := range records {
		prev, ok := byRef[records[i].Reference]
		if ok && prev.Checksum == records[i].Checksum && prev.Uploaded() {
			records[i].PlatformBucketURL = prev.PlatformBucketURL
		}
	}
}

// Upload transfers every pending file from the table at csvPath into the
// bucket, rewriting the table after each chunk so an interrupted upload
// resumes where it stopped.
func (s *Service) Upload(ctx context.Context, csvPath string) ([]metadata.Record, error) {
	records, err := metadata.ReadCSV(csvPath)
	if err != nil {
		return nil, err
	}
	prefix := uuid.NewString()
	err = s.uploader.Upload(ctx, prefix, records, func(recs []metadata.Record) {
		if werr := metadata.WriteCSV(csvPath, recs); werr != nil {
			s.log.Warn("failed to persist upload progress", observability.Err(werr))
		}
	})
	if err != nil {
		return nil, err
	}
	if err := metadata.WriteCSV(csvPath, records); err != nil {
		return nil, err
	}
	return records, nil
}

// Submit creates a run for versionID from the fully uploaded table at csvPath.
func (s *Service) Submit(ctx context.Context, versionID, csvPath string) (*platform.ApplicationRun, error) {
	records, err := metadata.ReadCSV(csvPath)
	if err != nil {
		return nil, err
	}
	return s.submitter.Submit(ctx, versionID, records)
}

// SubmitRecords creates a run for versionID directly from records.
func (s *Service) SubmitRecords(ctx context.Context, versionID string, records []metadata.Record) (*platform.ApplicationRun, error) {
	return s.submitter.Submit(ctx, versionID, records)
}

// DownloadRun fetches the results of runID per opts and returns the directory
// the artifacts were placed under.
func (s *Service) DownloadRun(ctx context.Context, runID string, opts DownloadOptions) (string, error) {
	return s.download.Download(ctx, runID, opts)
}

// Execute runs the whole lifecycle in one go: prepare, upload, submit, then
// download results until the run completes.
func (s *Service) Execute(ctx context.Context, versionID, sourceDir, csvPath string, mappingRules []string, opts DownloadOptions) (*platform.ApplicationRun, string, error) {
	if _, err := s.Prepare(sourceDir, csvPath, mappingRules); err != nil {
		return nil, "", err
	}
	if _, err := s.Upload(ctx, csvPath); err != nil {
		return nil, "", err
	}
	run, err := s.Submit(ctx, versionID, csvPath)
	if err != nil {
		return nil, "", err
	}
	opts.WaitForCompletion = true
	root, err := s.DownloadRun(ctx, run.ApplicationRunID, opts)
	return run, root, err
}
