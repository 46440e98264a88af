// Package datasource defines where extractors read raw bytes from.
package datasource

import (
	"context"
	"io"
)

// Source is a readable input. Name identifies it in errors and logs (for
// local files, the absolute path).
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Name() string
}
