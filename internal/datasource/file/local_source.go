// Package file implements local filesystem sources: single artifacts, the
// per-county partition directory and small line-based list files.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"communitysolar/internal/datasource"
)

// Local opens one file from the local disk.
type Local struct{ path string }

var _ datasource.Source = (*Local)(nil)

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open returns the context error if ctx is already done, otherwise the
// opened file, advised for sequential reading. Filesystem errors wrap the
// path and keep errors.Is working (os.ErrNotExist).
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
	adviseSequential(f)
	return f, nil
}
