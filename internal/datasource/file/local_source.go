// Package file implements a local filesystem-backed data source and the
// recursive discovery of data files under a root directory.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the path the source was created with.
func (l *Local) Name() string { return l.path }

// Open opens the configured path for reading.
//
// Behavior:
//   - If the context is already canceled or its deadline exceeded at the time
//     of the call, Open returns the context error immediately without touching
//     the filesystem.
//   - The returned reader decodes UTF-8 and drops a leading byte order mark,
//     so JSON written by tools that emit a BOM still parses. UTF-16 input with
//     a BOM is transcoded to UTF-8.
//   - Any filesystem error is wrapped with the path for context, while still
//     permitting errors.Is/As checks by callers (e.g., errors.Is(err, os.ErrNotExist)).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return &bomReader{Reader: transform.NewReader(f, dec), f: f}, nil
}

// bomReader pairs the decoding reader with the file it must close.
type bomReader struct {
	io.Reader
	f *os.File
}

func (r *bomReader) Close() error { return r.f.Close() }
