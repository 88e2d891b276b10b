// Package skiplog writes rows the loader rejected to a per-table CSV so they
// can be inspected and replayed.
package skiplog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"communitysolar/internal/storage"
	"communitysolar/internal/table"
)

// Reject reasons.
const (
	ReasonSchemaMismatch = "schema_mismatch"
	ReasonInsertError    = "insert_error"
	ReasonOther          = "other"
)

// Log appends rejected rows to <dir>/<TABLE>_rejects.csv. The file is
// created on the first Record call, so clean loads leave nothing behind.
// Not safe for concurrent use.
type Log struct {
	path    string
	columns []string

	f       *os.File
	w       *csv.Writer
	reasons map[string]int
}

// Path returns the rejects file path for table under dir.
func Path(dir, tableName string) string {
	return filepath.Join(dir, tableName+"_rejects.csv")
}

// New returns a Log for tableName whose data columns are columns.
func New(dir, tableName string, columns []string) *Log {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Log{path: Path(dir, tableName), columns: cols, reasons: map[string]int{}}
}

// Record writes one failure. Header: reason, row, fingerprint, error, then
// the data columns.
func (l *Log) Record(f storage.RowFailure) error {
	if l.w == nil {
		if err := l.open(); err != nil {
			return err
		}
	}
	reason := Reason(f.Err)
	l.reasons[reason]++

	cells := make([]string, len(f.Values))
	for i, v := range f.Values {
		cells[i] = table.Format(v)
	}
	errText := ""
	if f.Err != nil {
		errText = f.Err.Error()
	}
	rec := append([]string{reason, strconv.Itoa(f.Index), Fingerprint(cells), errText}, cells...)
	if err := l.w.Write(rec); err != nil {
		return fmt.Errorf("skiplog: write %s: %w", l.path, err)
	}
	return nil
}

func (l *Log) open() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("skiplog: create dir: %w", err)
	}
	f, err := os.Create(l.path)
	if err != nil {
		return fmt.Errorf("skiplog: %w", err)
	}
	l.f = f
	l.w = csv.NewWriter(f)
	header := append([]string{"reason", "row", "fingerprint", "error"}, l.columns...)
	if err := l.w.Write(header); err != nil {
		return fmt.Errorf("skiplog: write header: %w", err)
	}
	return nil
}

// Count returns the number of recorded rows.
func (l *Log) Count() int {
	n := 0
	for _, c := range l.reasons {
		n += c
	}
	return n
}

// Summary renders reason counts as "a=1, b=2" in reason order.
func (l *Log) Summary() string {
	keys := make([]string, 0, len(l.reasons))
	for k := range l.reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, l.reasons[k])
	}
	return strings.Join(parts, ", ")
}

// Close flushes and closes the file, if one was created.
func (l *Log) Close() error {
	if l.w == nil {
		return nil
	}
	l.w.Flush()
	werr := l.w.Error()
	cerr := l.f.Close()
	l.w, l.f = nil, nil
	if werr != nil {
		return fmt.Errorf("skiplog: flush %s: %w", l.path, werr)
	}
	return cerr
}

// Reason classifies a loader failure.
func Reason(err error) string {
	var sme *storage.SchemaMismatchError
	var rie *storage.RowInsertError
	switch {
	case errors.As(err, &sme):
		return ReasonSchemaMismatch
	case errors.As(err, &rie):
		return ReasonInsertError
	default:
		return ReasonOther
	}
}

// Fingerprint is a stable 64-bit xxh3 hash of the row's cells, so the same
// bad row rejected on two runs can be matched up.
func Fingerprint(cells []string) string {
	h := xxh3.New()
	for i, c := range cells {
		if i > 0 {
			_, _ = h.Write([]byte{0x1f})
		}
		_, _ = h.WriteString(c)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
