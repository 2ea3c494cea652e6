package archive

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func readAll(t *testing.T, path string) string {
	t.Helper()
	rc, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return string(data)
}

func TestOpenFormats(t *testing.T) {
	plain, err := os.ReadFile("testdata/sample.txt")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	dir := t.TempDir()

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(plain)
	gw.Close()
	gzPath := filepath.Join(dir, "sample.gz")
	if err := os.WriteFile(gzPath, gz.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	zstPath := filepath.Join(dir, "sample.zst")
	if err := os.WriteFile(zstPath, enc.EncodeAll(plain, nil), 0644); err != nil {
		t.Fatal(err)
	}
	enc.Close()

	tests := []struct {
		name string
		path string
	}{
		{"bzip2", "testdata/sample.bz2"},
		{"gzip", gzPath},
		{"zstd", zstPath},
		{"plain", "testdata/sample.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := readAll(t, tt.path); got != string(plain) {
				t.Errorf("decompressed content mismatch:\n%s", got)
			}
		})
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open("testdata/missing.bz2"); err == nil {
		t.Error("expected error for missing file")
	}

	dir := t.TempDir()
	zip := filepath.Join(dir, "dump.zip")
	os.WriteFile(zip, []byte("PK"), 0644)
	if _, err := Open(zip); err == nil {
		t.Error("expected error for unsupported extension")
	}

	badGz := filepath.Join(dir, "bad.gz")
	os.WriteFile(badGz, []byte("not gzip"), 0644)
	if _, err := Open(badGz); err == nil {
		t.Error("expected error for corrupt gzip header")
	}
}

func TestCorruptBzip2FailsOnRead(t *testing.T) {
	rc, err := NewReader(strings.NewReader("BZh9 definitely not bzip2"), ExtBzip2)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer rc.Close()

	if _, err := io.ReadAll(rc); err == nil {
		t.Error("expected read error for corrupt bzip2 data")
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.bz2", "a.bz2", "c.BZ2", "notes.txt", "d.gz"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.bz2"), 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		exts []string
		want []string
	}{
		{"default bz2", nil, []string{"a.bz2", "b.bz2", "c.BZ2"}},
		{"bz2 and gz", []string{".bz2", ".gz"}, []string{"a.bz2", "b.bz2", "c.BZ2", "d.gz"}},
		{"none match", []string{".zst"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := ScanDir(dir, tt.exts)
			if err != nil {
				t.Fatalf("ScanDir() error = %v", err)
			}
			var got []string
			for _, f := range files {
				got = append(got, f.Name)
				if f.Path != filepath.Join(dir, f.Name) {
					t.Errorf("Path = %s", f.Path)
				}
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ScanDir() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScanDirMissing(t *testing.T) {
	if _, err := ScanDir(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Error("expected error for missing directory")
	}
}
