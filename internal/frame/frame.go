// Package frame builds the binary payload accepted by the remote
// detect_file_type endpoint.
//
// The layout is
//
//	extension 0xFE hexSize 0xFE mime 0xFE basename 0xFE sample
//
// Text fields are packed one byte per character using the low eight bits of
// the code point. This is lossy for characters above U+00FF and is kept only
// for wire compatibility with the remote service. The sample is not escaped.
package frame

import (
	"strconv"
	"unicode/utf8"

	"convertmcp/internal/model"
)

const (
	// Separator delimits the text fields and terminates them before the sample.
	Separator byte = 0xFE
	// SampleSize is the number of leading file bytes sent for detection.
	SampleSize = 200
)

// Encode builds the detection frame for desc. prefix is sent as-is.
func Encode(desc model.FileDescriptor, mimeGuess string, prefix []byte) []byte {
	fields := []string{
		desc.Extension,
		HexSize(desc.SizeBytes),
		mimeGuess,
		desc.Basename,
	}

	size := len(prefix) + len(fields)
	for _, f := range fields {
		size += len(f)
	}
	out := make([]byte, 0, size)
	for i, f := range fields {
		if i > 0 {
			out = append(out, Separator)
		}
		out = appendTruncated(out, f)
	}
	out = append(out, Separator)
	return append(out, prefix...)
}

// HexSize formats n as lowercase hex with a 0x prefix.
func HexSize(n int64) string {
	if n < 0 {
		return "-0x" + strconv.FormatInt(-n, 16)
	}
	return "0x" + strconv.FormatInt(n, 16)
}

// appendTruncated appends one byte per character of s. Bytes that are not
// valid UTF-8 are passed through unchanged.
func appendTruncated(dst []byte, s string) []byte {
	for i := 0; i < len(s); {
		r, width := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && width == 1 {
			dst = append(dst, s[i])
		} else {
			dst = append(dst, byte(r&0xFF))
		}
		i += width
	}
	return dst
}
