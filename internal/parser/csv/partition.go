package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"communitysolar/internal/table"
)

// TagFunc derives a partition name from a file path.
type TagFunc func(path string) string

// PartitionName returns the file's base name up to its first '.', so
// "downloads/named/Boone.csv" yields "Boone".
func PartitionName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

// ReadAndTag reads every path (honouring SkipLines for each) and concatenates
// them into one table with a trailing tagColumn holding each row's partition
// name. Partitions with differing headers are aligned by column name; the
// result carries the union of columns in first-seen order and cells a
// partition lacks are Empty.
func (r *Reader) ReadAndTag(paths []string, tagColumn string, tag TagFunc) (*table.Table, error) {
	if tagColumn == "" {
		return nil, fmt.Errorf("csv: tag column must not be empty")
	}
	if tag == nil {
		tag = PartitionName
	}

	parts := make([]*table.Table, 0, len(paths))
	names := make([]string, 0, len(paths))
	var cols []string
	seen := map[string]bool{}

	for _, p := range paths {
		t, err := r.ReadFile(p)
		if err != nil {
			return nil, err
		}
		for _, c := range t.Columns {
			if c == tagColumn {
				return nil, fmt.Errorf("csv: %s: column %q collides with tag column", p, c)
			}
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
		parts = append(parts, t)
		names = append(names, tag(p))
	}

	out := table.New(append(cols, tagColumn))
	for k, t := range parts {
		pos := make([]int, len(cols))
		for i, c := range cols {
			pos[i] = t.Index(c)
		}
		for _, src := range t.Rows {
			row := make(table.Row, len(cols)+1)
			for i, j := range pos {
				if j < 0 {
					row[i] = table.Empty
					continue
				}
				row[i] = src[j]
			}
			row[len(cols)] = names[k]
			out.Rows = append(out.Rows, row)
		}
		out.Skipped += t.Skipped
	}
	return out, nil
}

// Write renders t as CSV with a header row, preserving column order.
func Write(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for i := range t.Rows {
		if err := cw.Write(t.Strings(i)); err != nil {
			return fmt.Errorf("csv: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return nil
}

// WriteFile writes t to path, creating parent directories as needed.
func WriteFile(path string, t *table.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("csv: create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create %s: %w", path, err)
	}
	if err := Write(f, t); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
