package wsi

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/helix-imaging/launchpad/internal/metadata"
	"github.com/helix-imaging/launchpad/internal/observability"
	"github.com/helix-imaging/launchpad/internal/platform"
)

var supportedExtensions = map[string]bool{
	".tiff": true,
	".tif":  true,
	".svs":  true,
	".dcm":  true,
}

// IsSupported reports whether path has a slide file extension the extractor
// knows how to read.
func IsSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Extractor scans directories for slide files and builds metadata records
// from their headers.
type Extractor struct {
	log observability.Logger
}

func NewExtractor(log observability.Logger) *Extractor {
	return &Extractor{log: log.Named("wsi")}
}

// Extract walks sourceDir recursively and returns one record per readable
// slide file, ordered by reference. Files that cannot be parsed are logged
// and skipped rather than failing the whole scan.
func (e *Extractor) Extract(sourceDir string) ([]metadata.Record, error) {
	var records []metadata.Record
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsSupported(path) {
			return nil
		}
		rec, err := e.extractFile(path)
		if err != nil {
			e.log.Warn("skipping unreadable slide file",
				observability.String("path", path),
				observability.Err(err))
			return nil
		}
		records = append(records, *rec)
		return nil
	})
	if err != nil {
		return nil, &platform.IOError{Path: sourceDir, Message: "failed to scan source directory", Cause: err}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Reference < records[j].Reference })
	e.log.Info("extracted slide metadata",
		observability.String("source_dir", sourceDir),
		observability.Int("records", len(records)))
	return records, nil
}

func (e *Extractor) extractFile(path string) (*metadata.Record, error) {
	var info *SlideInfo
	var err error
	if strings.EqualFold(filepath.Ext(path), ".dcm") {
		info, err = ReadDICOM(path)
	} else {
		info, err = ReadTIFF(path)
	}
	if err != nil {
		return nil, err
	}
	checksum, err := FileCRC32C(path)
	if err != nil {
		return nil, err
	}
	return &metadata.Record{
		Reference:     path,
		SourcePath:    path,
		Checksum:      checksum,
		ResolutionMPP: info.ResolutionMPP,
		WidthPx:       int(info.WidthPx),
		HeightPx:      int(info.HeightPx),
	}, nil
}
