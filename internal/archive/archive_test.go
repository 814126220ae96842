package archive_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mind-engage/mindengage-qtifix/internal/archive"
)

func TestZipRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "assessmentItems"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"imsmanifest.xml":        "<manifest/>",
		"assessmentItems/q1.xml": "<assessmentItem/>",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(src, filepath.FromSlash(name)), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := archive.Zip(src, &buf); err != nil {
		t.Fatal(err)
	}
	dst := t.TempDir()
	if err := archive.Unzip(bytes.NewReader(buf.Bytes()), int64(buf.Len()), dst); err != nil {
		t.Fatal(err)
	}
	for name, body := range files {
		b, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != body {
			t.Fatalf("%s = %q", name, b)
		}
	}
}

func TestUnzipRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("../evil.xml")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte("x"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "pkg")
	err = archive.Unzip(bytes.NewReader(buf.Bytes()), int64(buf.Len()), dst)
	if !errors.Is(err, archive.ErrUnsafePath) {
		t.Fatalf("want ErrUnsafePath, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dst), "evil.xml")); err == nil {
		t.Fatal("entry written outside destination")
	}
}
