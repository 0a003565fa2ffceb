package metadata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// columns is the fixed, versioned column set of the metadata table. Changing
// the order or names is a format change; readers reject mismatched headers.
var columns = []string{
	"reference",
	"source_path",
	"checksum_base64_crc32c",
	"resolution_mpp",
	"width_px",
	"height_px",
	"staining_method",
	"tissue",
	"disease",
	"platform_bucket_url",
}

// WriteCSV persists the metadata table. The file is rewritten in full via a
// temp name and rename so a crash mid-write never leaves a torn table.
func WriteCSV(path string, records []Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metadata-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp metadata file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	w := csv.NewWriter(tmp)
	if err := w.Write(columns); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write metadata header: %w", err)
	}
	for i := range records {
		r := &records[i]
		row := []string{
			r.Reference,
			r.SourcePath,
			r.Checksum,
			formatFloat(r.ResolutionMPP),
			strconv.Itoa(r.WidthPx),
			strconv.Itoa(r.HeightPx),
			r.StainingMethod,
			r.Tissue,
			r.Disease,
			r.PlatformBucketURL,
		}
		if err := w.Write(row); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write metadata row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush metadata file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close metadata file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace metadata file %s: %w", path, err)
	}
	return nil
}

// ReadCSV loads a metadata table written by WriteCSV. Round-tripping is
// loss-less for every populated field.
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(columns)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata file %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("metadata file %s is empty", path)
	}
	for i, name := range columns {
		if rows[0][i] != name {
			return nil, fmt.Errorf("metadata file %s has unexpected column %q (want %q)", path, rows[0][i], name)
		}
	}

	seen := map[string]struct{}{}
	records := make([]Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		rec := Record{
			Reference:         row[0],
			SourcePath:        row[1],
			Checksum:          row[2],
			StainingMethod:    row[6],
			Tissue:            row[7],
			Disease:           row[8],
			PlatformBucketURL: row[9],
		}
		if _, dup := seen[rec.Reference]; dup {
			return nil, fmt.Errorf("metadata file %s: duplicate reference %q in row %d", path, rec.Reference, n+1)
		}
		seen[rec.Reference] = struct{}{}
		if row[3] != "" {
			if rec.ResolutionMPP, err = strconv.ParseFloat(row[3], 64); err != nil {
				return nil, fmt.Errorf("metadata file %s: bad resolution_mpp in row %d: %w", path, n+1, err)
			}
		}
		if row[4] != "" {
			if rec.WidthPx, err = strconv.Atoi(row[4]); err != nil {
				return nil, fmt.Errorf("metadata file %s: bad width_px in row %d: %w", path, n+1, err)
			}
		}
		if row[5] != "" {
			if rec.HeightPx, err = strconv.Atoi(row[5]); err != nil {
				return nil, fmt.Errorf("metadata file %s: bad height_px in row %d: %w", path, n+1, err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
