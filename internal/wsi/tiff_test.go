package wsi

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildClassicTIFF assembles a minimal single-directory TIFF with dimension
// and resolution tags.
func buildClassicTIFF(bo binary.ByteOrder, width, height uint32, xResNum, xResDen uint32, unit uint16) []byte {
	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, bo, v) }

	if bo == binary.LittleEndian {
		buf.WriteString("II")
	} else {
		buf.WriteString("MM")
	}
	w(uint16(42))
	w(uint32(8)) // first IFD right after the header

	const entryCount = 4
	// header(8) + count(2) + entries(4*12) + next offset(4)
	rationalOffset := uint32(8 + 2 + entryCount*12 + 4)

	w(uint16(entryCount))
	entry := func(tag, typ uint16, count uint32, value uint32) {
		w(tag)
		w(typ)
		w(count)
		if typ == typeShort {
			w(uint16(value))
			w(uint16(0))
		} else {
			w(value)
		}
	}
	entry(tagImageWidth, typeLong, 1, width)
	entry(tagImageLength, typeLong, 1, height)
	entry(tagXResolution, typeRational, 1, rationalOffset)
	entry(tagResolutionUnit, typeShort, 1, uint32(unit))
	w(uint32(0)) // no further directories
	w(xResNum)
	w(xResDen)
	return buf.Bytes()
}

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestReadTIFFLittleEndianCentimeterResolution(t *testing.T) {
	path := writeTempFile(t, "slide.tiff",
		buildClassicTIFF(binary.LittleEndian, 2054, 1529, 1240, 1, resUnitCentimeter))

	info, err := ReadTIFF(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2054), info.WidthPx)
	assert.Equal(t, int64(1529), info.HeightPx)
	assert.InDelta(t, 10000.0/1240.0, info.ResolutionMPP, 1e-9)
}

func TestReadTIFFBigEndianInchResolution(t *testing.T) {
	path := writeTempFile(t, "slide.tif",
		buildClassicTIFF(binary.BigEndian, 2054, 1529, 3150, 1, resUnitInch))

	info, err := ReadTIFF(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2054), info.WidthPx)
	assert.Equal(t, int64(1529), info.HeightPx)
	assert.InDelta(t, 25400.0/3150.0, info.ResolutionMPP, 1e-9)
}

func TestReadTIFFNoResolutionUnit(t *testing.T) {
	path := writeTempFile(t, "slide.tiff",
		buildClassicTIFF(binary.LittleEndian, 100, 200, 1240, 1, resUnitNone))

	info, err := ReadTIFF(path)
	require.NoError(t, err)
	assert.Equal(t, int64(100), info.WidthPx)
	assert.Zero(t, info.ResolutionMPP)
}

func TestReadTIFFRejectsNonTIFF(t *testing.T) {
	path := writeTempFile(t, "note.tiff", []byte("this is not an image at all"))

	_, err := ReadTIFF(path)
	assert.ErrorContains(t, err, "not a TIFF file")
}

func TestReadTIFFRejectsMissingDimensions(t *testing.T) {
	path := writeTempFile(t, "slide.tiff",
		buildClassicTIFF(binary.LittleEndian, 0, 0, 1240, 1, resUnitCentimeter))

	_, err := ReadTIFF(path)
	assert.ErrorContains(t, err, "no image dimensions")
}
