// Package localfile validates tool input paths and reads bounded byte ranges
// from them.
package localfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"convertmcp/internal/model"
)

const (
	// DefaultMaxUploadBytes bounds the bytes read for upload.
	DefaultMaxUploadBytes int64 = 40 * 1024 * 1024

	fallbackMIME = "application/octet-stream"
)

// File is a validated regular file. It does not hold an open handle; each
// read opens the file anew.
type File struct {
	Descriptor model.FileDescriptor
	path       string
}

// Open validates path and derives its descriptor. The returned error is an
// INPUT *model.ToolError for missing paths and non-regular entries.
func Open(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.InputError("File not found (use the absolute file path): %s", path)
		}
		return nil, model.ProcessingError(err)
	}
	if !info.Mode().IsRegular() {
		return nil, model.InputError("Not a file: %s", path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	base := filepath.Base(path)
	return &File{
		Descriptor: model.FileDescriptor{
			AbsolutePath: absPath,
			Basename:     base,
			Extension:    Extension(base),
			SizeBytes:    info.Size(),
		},
		path: path,
	}, nil
}

// Path returns the path the file was opened with.
func (f *File) Path() string {
	return f.path
}

// ReadPrefix returns up to n bytes from the start of the file. Short files
// are not an error.
func (f *File) ReadPrefix(n int) ([]byte, error) {
	return f.readUpTo(int64(n))
}

// ReadBounded returns up to maxBytes from the start of the file. Content past
// the bound is dropped; callers can compare against Descriptor.SizeBytes to
// detect truncation.
func (f *File) ReadBounded(maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return f.readUpTo(maxBytes)
}

// Truncated reports whether a bounded read of maxBytes drops content.
func (f *File) Truncated(maxBytes int64) bool {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return f.Descriptor.SizeBytes > maxBytes
}

func (f *File) readUpTo(n int64) ([]byte, error) {
	if n <= 0 {
		return []byte{}, nil
	}
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer func() { _ = fh.Close() }()

	data, err := io.ReadAll(io.LimitReader(fh, n))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, nil
}

// GuessMIME returns a signature-based MIME type without parameters, or
// application/octet-stream when detection fails.
func (f *File) GuessMIME() string {
	mt, err := mimetype.DetectFile(f.path)
	if err != nil || mt == nil {
		return fallbackMIME
	}
	value, _, _ := strings.Cut(mt.String(), ";")
	value = strings.TrimSpace(value)
	if value == "" {
		return fallbackMIME
	}
	return value
}

// Extension returns the extension of a basename without the dot. Leading dots
// do not start an extension, so ".bashrc" has none.
func Extension(base string) string {
	trimmed := strings.TrimLeft(base, ".")
	ext := filepath.Ext(trimmed)
	return strings.TrimPrefix(ext, ".")
}
