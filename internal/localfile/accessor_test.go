package localfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"convertmcp/internal/model"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestOpen_MissingPathIsInputError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.txt")

	_, err := Open(path)
	if err == nil {
		t.Fatal("expected error for missing path")
	}
	var toolErr *model.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %T", err)
	}
	if toolErr.Kind != model.KindInput {
		t.Fatalf("unexpected kind: %s", toolErr.Kind)
	}
	if !strings.Contains(toolErr.Message, path) {
		t.Fatalf("message should contain path: %q", toolErr.Message)
	}
}

func TestOpen_DirectoryIsNotAFile(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(dir)
	if err == nil {
		t.Fatal("expected error for directory")
	}
	if got := err.Error(); got != "Not a file: "+dir {
		t.Fatalf("unexpected message: %q", got)
	}
	if model.KindOf(err) != model.KindInput {
		t.Fatalf("unexpected kind: %s", model.KindOf(err))
	}
}

func TestOpen_Descriptor(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "report.final.PDF", []byte("0123456789"))

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	d := f.Descriptor
	if d.Basename != "report.final.PDF" {
		t.Fatalf("unexpected basename: %q", d.Basename)
	}
	if d.Extension != "PDF" {
		t.Fatalf("unexpected extension: %q", d.Extension)
	}
	if d.SizeBytes != 10 {
		t.Fatalf("unexpected size: %d", d.SizeBytes)
	}
	if !filepath.IsAbs(d.AbsolutePath) {
		t.Fatalf("expected absolute path, got %q", d.AbsolutePath)
	}
}

func TestReadPrefix_ShortFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.txt", []byte("short"))
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	got, err := f.ReadPrefix(200)
	if err != nil {
		t.Fatalf("ReadPrefix failed: %v", err)
	}
	if string(got) != "short" {
		t.Fatalf("unexpected prefix: %q", got)
	}
}

func TestReadPrefix_LongFile(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 500)
	path := writeFile(t, t.TempDir(), "blob.bin", data)
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	got, err := f.ReadPrefix(200)
	if err != nil {
		t.Fatalf("ReadPrefix failed: %v", err)
	}
	if !bytes.Equal(got, data[:200]) {
		t.Fatalf("unexpected prefix length %d", len(got))
	}
}

func TestReadBounded_TruncatesToBound(t *testing.T) {
	data := []byte("0123456789abcdef")
	path := writeFile(t, t.TempDir(), "big.txt", data)
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	got, err := f.ReadBounded(8)
	if err != nil {
		t.Fatalf("ReadBounded failed: %v", err)
	}
	if string(got) != "01234567" {
		t.Fatalf("unexpected bounded read: %q", got)
	}
	if !f.Truncated(8) {
		t.Fatal("expected Truncated to report true")
	}
	if f.Truncated(1024) {
		t.Fatal("expected Truncated to report false under the bound")
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"a.txt":       "txt",
		"a.tar.gz":    "gz",
		".bashrc":     "",
		"..hidden":    "",
		".config.yml": "yml",
		"noext":       "",
		"trailing.":   "",
	}
	for base, want := range cases {
		if got := Extension(base); got != want {
			t.Errorf("Extension(%q) = %q, want %q", base, got, want)
		}
	}
}

func TestGuessMIME(t *testing.T) {
	dir := t.TempDir()
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	pngPath := writeFile(t, dir, "image.bin", png)
	textPath := writeFile(t, dir, "notes.txt", []byte("hello world\n"))

	f, err := Open(pngPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := f.GuessMIME(); got != "image/png" {
		t.Fatalf("unexpected png mime: %q", got)
	}

	f, err = Open(textPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := f.GuessMIME(); got != "text/plain" {
		t.Fatalf("unexpected text mime: %q", got)
	}
}
