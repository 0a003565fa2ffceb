// Package wsi scans directories for whole-slide-image files and extracts the
// technical metadata runs are prepared from: pixel dimensions, resolution and
// a content checksum.
package wsi

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the base64-encoded big-endian CRC32C of everything in r,
// the encoding cloud buckets record for object integrity.
func CRC32C(r io.Reader) (string, error) {
	h := crc32.New(castagnoli)
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to checksum content: %w", err)
	}
	return EncodeCRC32C(h.Sum32()), nil
}

// FileCRC32C streams a file through CRC32C without loading it into memory.
func FileCRC32C(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for checksumming: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return CRC32C(f)
}

// EncodeCRC32C renders a raw CRC32C sum the way it is stored in artifact
// metadata: base64 of the big-endian 4-byte value.
func EncodeCRC32C(sum uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], sum)
	return base64.StdEncoding.EncodeToString(b[:])
}
