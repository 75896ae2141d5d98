package photo

import (
	"encoding/binary"
	"time"
)

// exifDateTimeOriginal extracts the DateTimeOriginal tag from a JPEG's EXIF
// segment. It walks the JPEG marker stream to the APP1 segment, then the
// TIFF IFD chain inside it: IFD0 points to the Exif sub-IFD, which holds
// tag 0x9003 as an ASCII value "YYYY:MM:DD HH:MM:SS".
func exifDateTimeOriginal(data []byte, loc *time.Location) (time.Time, bool) {
	tiff, ok := findExifSegment(data)
	if !ok {
		return time.Time{}, false
	}
	return parseTIFF(tiff, loc)
}

const (
	tagExifIFDPointer   = 0x8769
	tagDateTimeOriginal = 0x9003
	typeASCII           = 2
)

// findExifSegment locates the TIFF payload of the APP1 Exif segment.
func findExifSegment(data []byte) ([]byte, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, false
	}

	offset := 2
	for offset+4 <= len(data) {
		if data[offset] != 0xFF {
			return nil, false
		}
		marker := data[offset+1]
		// Standalone markers carry no length.
		if marker == 0xD8 || (marker >= 0xD0 && marker <= 0xD9) {
			offset += 2
			continue
		}
		length := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		if length < 2 || offset+2+length > len(data) {
			return nil, false
		}
		segment := data[offset+4 : offset+2+length]
		if marker == 0xE1 && len(segment) > 6 && string(segment[:6]) == "Exif\x00\x00" {
			return segment[6:], true
		}
		// Stop at start-of-scan; EXIF never follows image data.
		if marker == 0xDA {
			return nil, false
		}
		offset += 2 + length
	}
	return nil, false
}

// parseTIFF walks the TIFF structure to DateTimeOriginal.
func parseTIFF(tiff []byte, loc *time.Location) (time.Time, bool) {
	if len(tiff) < 8 {
		return time.Time{}, false
	}

	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return time.Time{}, false
	}
	if order.Uint16(tiff[2:4]) != 42 {
		return time.Time{}, false
	}

	ifd0 := int(order.Uint32(tiff[4:8]))
	exifOffset, ok := findTagOffset(tiff, order, ifd0, tagExifIFDPointer)
	if !ok {
		return time.Time{}, false
	}

	value, ok := findASCIITag(tiff, order, int(exifOffset), tagDateTimeOriginal)
	if !ok {
		return time.Time{}, false
	}

	ts, err := time.ParseInLocation("2006:01:02 15:04:05", value, loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// findTagOffset scans an IFD for a LONG-valued tag and returns its value.
func findTagOffset(tiff []byte, order binary.ByteOrder, ifd int, tag uint16) (uint32, bool) {
	entries, ok := ifdEntries(tiff, order, ifd)
	if !ok {
		return 0, false
	}
	for i := 0; i < entries; i++ {
		entry := ifd + 2 + i*12
		if order.Uint16(tiff[entry:entry+2]) == tag {
			return order.Uint32(tiff[entry+8 : entry+12]), true
		}
	}
	return 0, false
}

// findASCIITag scans an IFD for an ASCII tag and returns its string value
// without the trailing NUL.
func findASCIITag(tiff []byte, order binary.ByteOrder, ifd int, tag uint16) (string, bool) {
	entries, ok := ifdEntries(tiff, order, ifd)
	if !ok {
		return "", false
	}
	for i := 0; i < entries; i++ {
		entry := ifd + 2 + i*12
		if order.Uint16(tiff[entry:entry+2]) != tag {
			continue
		}
		if order.Uint16(tiff[entry+2:entry+4]) != typeASCII {
			return "", false
		}
		count := int(order.Uint32(tiff[entry+4 : entry+8]))
		if count <= 1 {
			return "", false
		}
		// Values longer than 4 bytes live at an offset; ASCII timestamps
		// always do.
		start := int(order.Uint32(tiff[entry+8 : entry+12]))
		if start+count > len(tiff) {
			return "", false
		}
		value := tiff[start : start+count-1] // strip NUL terminator
		return string(value), true
	}
	return "", false
}

// ifdEntries returns the entry count of the IFD at the given offset.
func ifdEntries(tiff []byte, order binary.ByteOrder, ifd int) (int, bool) {
	if ifd < 0 || ifd+2 > len(tiff) {
		return 0, false
	}
	count := int(order.Uint16(tiff[ifd : ifd+2]))
	if ifd+2+count*12 > len(tiff) {
		return 0, false
	}
	return count, true
}
