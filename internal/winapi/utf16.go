package winapi

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"
)

// Encode converts s to a NUL-terminated UTF-16 sequence suitable for wide
// character APIs. Invalid UTF-8 bytes become U+FFFD. The empty string
// encodes as a single zero unit.
func Encode(s string) []uint16 {
	n := 1
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}

	buf := make([]uint16, 0, n)
	for _, r := range s {
		if r > 0xFFFF {
			v := r - 0x10000
			buf = append(buf, uint16(0xD800+(v>>10)), uint16(0xDC00+(v&0x3FF)))
			continue
		}
		buf = append(buf, uint16(r))
	}
	return append(buf, 0)
}

// Decode converts UTF-16 units to a string. Unpaired surrogates become
// U+FFFD and trailing NULs are stripped.
func Decode(units []uint16) string {
	return strings.TrimRight(string(utf16.Decode(units)), "\x00")
}

// DecodeBytes decodes a little-endian UTF-16 byte buffer as returned by
// registry queries. A trailing odd byte is ignored.
func DecodeBytes(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return Decode(units)
}
