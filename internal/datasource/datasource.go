// Package datasource defines the byte-stream sources the pipeline reads
// tabular artifacts from.
package datasource

import (
	"context"
	"io"
)

// Source opens a readable stream. Callers close it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
