package wsi

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// SlideInfo holds the technical properties read from a slide file header.
// ResolutionMPP is zero when the file does not declare a physical resolution.
type SlideInfo struct {
	WidthPx       int64
	HeightPx      int64
	ResolutionMPP float64
}

const (
	tagImageWidth     = 256
	tagImageLength    = 257
	tagXResolution    = 282
	tagResolutionUnit = 296

	typeShort    = 3
	typeLong     = 4
	typeRational = 5

	resUnitNone       = 1
	resUnitInch       = 2
	resUnitCentimeter = 3
)

// ReadTIFF parses the first image directory of a classic TIFF file, which is
// where SVS and generic pyramidal TIFF slides keep the base layer dimensions
// and resolution. BigTIFF is not supported.
func ReadTIFF(path string) (*SlideInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var hdr [8]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return nil, fmt.Errorf("failed to read TIFF header of %s: %w", path, err)
	}

	var bo binary.ByteOrder
	switch string(hdr[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("%s is not a TIFF file", path)
	}
	if bo.Uint16(hdr[2:4]) != 42 {
		return nil, fmt.Errorf("%s uses an unsupported TIFF variant", path)
	}

	ifdOffset := int64(bo.Uint32(hdr[4:8]))
	var countBuf [2]byte
	if _, err := f.ReadAt(countBuf[:], ifdOffset); err != nil {
		return nil, fmt.Errorf("failed to read image directory of %s: %w", path, err)
	}
	entryCount := int(bo.Uint16(countBuf[:]))

	entries := make([]byte, entryCount*12)
	if _, err := f.ReadAt(entries, ifdOffset+2); err != nil {
		return nil, fmt.Errorf("failed to read image directory of %s: %w", path, err)
	}

	info := &SlideInfo{}
	resUnit := uint64(resUnitInch)
	var xRes float64
	for i := 0; i < entryCount; i++ {
		entry := entries[i*12 : (i+1)*12]
		tag := bo.Uint16(entry[0:2])
		typ := bo.Uint16(entry[2:4])
		raw := entry[8:12]

		switch tag {
		case tagImageWidth:
			v, err := scalarValue(bo, typ, raw)
			if err != nil {
				return nil, fmt.Errorf("bad ImageWidth in %s: %w", path, err)
			}
			info.WidthPx = int64(v)
		case tagImageLength:
			v, err := scalarValue(bo, typ, raw)
			if err != nil {
				return nil, fmt.Errorf("bad ImageLength in %s: %w", path, err)
			}
			info.HeightPx = int64(v)
		case tagXResolution:
			if typ != typeRational {
				continue
			}
			v, err := rationalValue(f, bo, raw)
			if err != nil {
				return nil, fmt.Errorf("bad XResolution in %s: %w", path, err)
			}
			xRes = v
		case tagResolutionUnit:
			v, err := scalarValue(bo, typ, raw)
			if err != nil {
				return nil, fmt.Errorf("bad ResolutionUnit in %s: %w", path, err)
			}
			resUnit = v
		}
	}

	if info.WidthPx == 0 || info.HeightPx == 0 {
		return nil, fmt.Errorf("%s declares no image dimensions", path)
	}
	if xRes > 0 {
		switch resUnit {
		case resUnitInch:
			info.ResolutionMPP = 25400 / xRes
		case resUnitCentimeter:
			info.ResolutionMPP = 10000 / xRes
		}
	}
	return info, nil
}

func scalarValue(bo binary.ByteOrder, typ uint16, raw []byte) (uint64, error) {
	switch typ {
	case typeShort:
		return uint64(bo.Uint16(raw[0:2])), nil
	case typeLong:
		return uint64(bo.Uint32(raw)), nil
	default:
		return 0, fmt.Errorf("unexpected field type %d", typ)
	}
}

func rationalValue(f *os.File, bo binary.ByteOrder, raw []byte) (float64, error) {
	offset := int64(bo.Uint32(raw))
	var buf [8]byte
	if _, err := f.ReadAt(buf[:], offset); err != nil {
		return 0, err
	}
	num := bo.Uint32(buf[0:4])
	den := bo.Uint32(buf[4:8])
	if den == 0 {
		return 0, fmt.Errorf("rational with zero denominator")
	}
	return float64(num) / float64(den), nil
}
