package archive

import (
	"bufio"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Supported archive extensions. ".bz2" is what the collectors produce.
const (
	ExtBzip2 = ".bz2"
	ExtGzip  = ".gz"
	ExtZstd  = ".zst"
	ExtPlain = ".txt"
)

// DefaultExtensions are picked up by a directory scan when none are configured
var DefaultExtensions = []string{ExtBzip2}

// Open returns a decompressed stream for the archive, chosen by extension.
// Closing the returned reader closes the underlying file.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	rc, err := NewReader(f, filepath.Ext(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rc, nil
}

// NewReader wraps r in the decompressor for ext. The returned closer also
// closes r when r is an io.Closer.
func NewReader(r io.Reader, ext string) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(r, 256*1024)

	switch strings.ToLower(ext) {
	case ExtBzip2:
		return &readCloser{Reader: bzip2.NewReader(br), closers: closersOf(r)}, nil
	case ExtGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return &readCloser{Reader: zr, closers: append([]io.Closer{zr}, closersOf(r)...)}, nil
	case ExtZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		dec := zr.IOReadCloser()
		return &readCloser{Reader: dec, closers: append([]io.Closer{dec}, closersOf(r)...)}, nil
	case ExtPlain, ".log", "":
		return &readCloser{Reader: br, closers: closersOf(r)}, nil
	default:
		return nil, fmt.Errorf("unsupported archive extension %q", ext)
	}
}

func closersOf(r io.Reader) []io.Closer {
	if c, ok := r.(io.Closer); ok {
		return []io.Closer{c}
	}
	return nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
