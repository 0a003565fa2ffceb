package platform

import "fmt"

// mimeExtensions is the closed set of artifact media types the launchpad
// knows how to place on disk and open in a viewer. Modelled as a lookup
// table, not a type hierarchy.
var mimeExtensions = map[string]string{
	"image/png":                      ".png",
	"image/tiff":                     ".tiff",
	"image/jpeg":                     ".jpg",
	"application/vnd.apache.parquet": ".parquet",
	"application/json":               ".json",
	"application/geo+json":           ".json",
	"text/csv":                       ".csv",
	"application/dicom":              ".dcm",
}

// ExtensionForMime maps an artifact media type to its on-disk file extension.
// Unknown media types are a ValidationError: downloading under a guessed
// extension would produce files no viewer can classify.
func ExtensionForMime(mimeType string) (string, error) {
	if ext, ok := mimeExtensions[mimeType]; ok {
		return ext, nil
	}
	return "", &ValidationError{Message: fmt.Sprintf("unknown mime type: %s", mimeType)}
}

// MimeTypeForArtifact resolves the media type of an output artifact, checking
// the artifact itself first and falling back to its metadata.
func MimeTypeForArtifact(a OutputArtifact) string {
	if a.MimeType != "" {
		return a.MimeType
	}
	if mt, ok := a.Metadata["media_type"].(string); ok && mt != "" {
		return mt
	}
	return ""
}
