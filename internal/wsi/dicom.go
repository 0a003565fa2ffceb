package wsi

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	uidImplicitVRLittleEndian = "1.2.840.10008.1.2"
	uidExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

	undefinedLength = 0xFFFFFFFF
)

type dicomTag struct {
	group, element uint16
}

var (
	tagMetaGroupLength   = dicomTag{0x0002, 0x0000}
	tagTransferSyntax    = dicomTag{0x0002, 0x0010}
	tagRows              = dicomTag{0x0028, 0x0010}
	tagColumns           = dicomTag{0x0028, 0x0011}
	tagPixelSpacing      = dicomTag{0x0028, 0x0030}
	tagMatrixColumns     = dicomTag{0x0048, 0x0006}
	tagMatrixRows        = dicomTag{0x0048, 0x0007}
	tagItem              = dicomTag{0xFFFE, 0xE000}
	tagSequenceDelimiter = dicomTag{0xFFFE, 0xE0DD}
)

// ReadDICOM reads the image dimensions and pixel spacing from a DICOM file.
// Only the little endian transfer syntaxes are supported, which covers slide
// microscopy exports. Whole-slide objects carry the full pyramid size in the
// total pixel matrix attributes, which take precedence over Rows and Columns.
func ReadDICOM(path string) (*SlideInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	r := bufio.NewReader(f)

	var preamble [132]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, fmt.Errorf("failed to read DICOM preamble of %s: %w", path, err)
	}
	if string(preamble[128:132]) != "DICM" {
		return nil, fmt.Errorf("%s is not a DICOM file", path)
	}

	transferSyntax, err := readFileMeta(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file meta of %s: %w", path, err)
	}
	var explicitVR bool
	switch transferSyntax {
	case uidExplicitVRLittleEndian:
		explicitVR = true
	case uidImplicitVRLittleEndian:
		explicitVR = false
	default:
		return nil, fmt.Errorf("%s uses unsupported transfer syntax %s", path, transferSyntax)
	}

	info, err := readDataSet(r, explicitVR)
	if err != nil {
		return nil, fmt.Errorf("failed to read data set of %s: %w", path, err)
	}
	if info.WidthPx == 0 || info.HeightPx == 0 {
		return nil, fmt.Errorf("%s declares no image dimensions", path)
	}
	return info, nil
}

// readFileMeta consumes the file meta group, which is always encoded with
// explicit VR little endian, and returns the transfer syntax UID.
func readFileMeta(r *bufio.Reader) (string, error) {
	tag, _, value, err := readElement(r, true)
	if err != nil {
		return "", err
	}
	if tag != tagMetaGroupLength {
		return "", fmt.Errorf("file meta does not start with group length")
	}
	metaLength := binary.LittleEndian.Uint32(value)

	meta := bufio.NewReader(io.LimitReader(r, int64(metaLength)))
	transferSyntax := ""
	for {
		tag, _, value, err := readElement(meta, true)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if tag == tagTransferSyntax {
			transferSyntax = strings.TrimRight(string(value), " \x00")
		}
	}
	if transferSyntax == "" {
		return "", fmt.Errorf("file meta declares no transfer syntax")
	}
	return transferSyntax, nil
}

func readDataSet(r *bufio.Reader, explicitVR bool) (*SlideInfo, error) {
	info := &SlideInfo{}
	var rows, columns int64
	for {
		tag, length, value, err := readElement(r, explicitVR)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		// Nothing of interest lives past the pixel data group.
		if tag.group >= 0x7FE0 {
			break
		}
		if length == undefinedLength {
			if err := skipSequence(r); err != nil {
				break
			}
			continue
		}

		switch tag {
		case tagRows:
			rows = int64(binary.LittleEndian.Uint16(value))
		case tagColumns:
			columns = int64(binary.LittleEndian.Uint16(value))
		case tagMatrixColumns:
			info.WidthPx = int64(binary.LittleEndian.Uint32(value))
		case tagMatrixRows:
			info.HeightPx = int64(binary.LittleEndian.Uint32(value))
		case tagPixelSpacing:
			spacing, err := parseDecimalString(string(value))
			if err != nil {
				return nil, fmt.Errorf("bad PixelSpacing: %w", err)
			}
			// Spacing is in millimeters per pixel.
			info.ResolutionMPP = spacing * 1000
		}
	}
	if info.WidthPx == 0 {
		info.WidthPx = columns
	}
	if info.HeightPx == 0 {
		info.HeightPx = rows
	}
	return info, nil
}

// readElement reads one attribute. Attributes with undefined length return a
// nil value; the caller is responsible for consuming the nested content.
func readElement(r *bufio.Reader, explicitVR bool) (dicomTag, uint32, []byte, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return dicomTag{}, 0, nil, err
	}
	tag := dicomTag{
		group:   binary.LittleEndian.Uint16(head[0:2]),
		element: binary.LittleEndian.Uint16(head[2:4]),
	}

	var length uint32
	if explicitVR && tag.group != 0xFFFE {
		var vrBuf [2]byte
		if _, err := io.ReadFull(r, vrBuf[:]); err != nil {
			return tag, 0, nil, err
		}
		switch string(vrBuf[:]) {
		case "OB", "OW", "OF", "SQ", "UT", "UN":
			var buf [6]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return tag, 0, nil, err
			}
			length = binary.LittleEndian.Uint32(buf[2:6])
		default:
			var buf [2]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return tag, 0, nil, err
			}
			length = uint32(binary.LittleEndian.Uint16(buf[:]))
		}
	} else {
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return tag, 0, nil, err
		}
		length = binary.LittleEndian.Uint32(buf[:])
	}

	if length == undefinedLength {
		return tag, length, nil, nil
	}
	value := make([]byte, length)
	if _, err := io.ReadFull(r, value); err != nil {
		return tag, length, nil, err
	}
	return tag, length, value, nil
}

// skipSequence discards an undefined-length sequence. Items with undefined
// length are not supported; an error makes the caller stop with whatever
// attributes were collected before the sequence.
func skipSequence(r *bufio.Reader) error {
	for {
		var head [8]byte
		if _, err := io.ReadFull(r, head[:]); err != nil {
			return err
		}
		tag := dicomTag{
			group:   binary.LittleEndian.Uint16(head[0:2]),
			element: binary.LittleEndian.Uint16(head[2:4]),
		}
		length := binary.LittleEndian.Uint32(head[4:8])
		switch tag {
		case tagSequenceDelimiter:
			return nil
		case tagItem:
			if length == undefinedLength {
				return fmt.Errorf("undefined-length sequence item is not supported")
			}
			if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected tag (%04X,%04X) inside sequence", tag.group, tag.element)
		}
	}
}

// parseDecimalString parses a DICOM DS value, taking the first component of a
// multi-valued attribute such as PixelSpacing.
func parseDecimalString(s string) (float64, error) {
	first := s
	if i := strings.Index(s, `\`); i >= 0 {
		first = s[:i]
	}
	return strconv.ParseFloat(strings.TrimSpace(strings.Trim(first, "\x00")), 64)
}
