// Package metadata models the per-slide metadata table prepared before a run:
// one record per whole-slide-image file, persisted as a CSV so interrupted
// uploads can resume.
package metadata

// Record is one row of the metadata table. Reference identifies the item
// within a run; Checksum is immutable once computed; PlatformBucketURL is set
// exactly when the file has been uploaded for this session.
type Record struct {
	Reference         string
	SourcePath        string
	Checksum          string // base64-encoded CRC32C of the file content
	ResolutionMPP     float64
	WidthPx           int
	HeightPx          int
	StainingMethod    string
	Tissue            string
	Disease           string
	PlatformBucketURL string
	// UploadProgress is transient (0.0-1.0) and not persisted.
	UploadProgress float64
}

// Uploaded reports whether the record's source file has already been uploaded.
func (r *Record) Uploaded() bool {
	return r.PlatformBucketURL != ""
}

// SchemaFields returns the record's metadata as a map keyed by the platform's
// field names, for filtering against an input artifact's JSON Schema.
func (r *Record) SchemaFields() map[string]any {
	return map[string]any{
		"checksum_base64_crc32c": r.Checksum,
		"resolution_mpp":         r.ResolutionMPP,
		"width_px":               r.WidthPx,
		"height_px":              r.HeightPx,
		"staining_method":        r.StainingMethod,
		"tissue":                 r.Tissue,
		"disease":                r.Disease,
	}
}
