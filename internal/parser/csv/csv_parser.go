// Package csv reads table-shaped CSV artifacts into a table.Table. It is
// tolerant of messy real-world exports: ragged rows are padded, blank cells
// become the empty-string sentinel, and legacy single-byte encodings can be
// decoded on the fly.
package csv

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"communitysolar/internal/table"
)

// ErrNoHeader is returned when the input ends before a header row.
var ErrNoHeader = errors.New("csv: missing header row")

// Options configures the reader. Zero values are usable.
type Options struct {
	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// SkipLines drops this many raw lines before the header row. Scraped
	// county reports carry a title block above the real header.
	SkipLines int

	// TrimSpace trims leading/trailing whitespace from data cells. Header
	// names are never trimmed so column names survive byte-for-byte.
	TrimSpace bool

	// Encoding names the input character set: "utf-8" (default, BOM aware),
	// "windows-1252", "latin1" or "utf-16".
	Encoding string

	// LogLimit caps how many skipped rows are logged. Zero means 100.
	LogLimit int
}

// Reader parses CSV input according to Options. It is safe to reuse across
// inputs but is not concurrency-safe.
type Reader struct{ opt Options }

// NewReader constructs a Reader with the provided Options.
func NewReader(opt Options) *Reader {
	if opt.LogLimit <= 0 {
		opt.LogLimit = 100
	}
	return &Reader{opt: opt}
}

// ReadFile opens path and reads it as a single table.
func (r *Reader) ReadFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close()

	t, err := r.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Read consumes src and returns the parsed table. Rows that cannot be fitted
// to the header (parse errors, or extra non-blank cells) are skipped and
// counted in Table.Skipped.
func (r *Reader) Read(src io.Reader) (*table.Table, error) {
	dec, err := decoder(src, r.opt.Encoding)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(dec, 64*1024)
	if err := skipLines(br, r.opt.SkipLines); err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	if r.opt.Comma != 0 {
		cr.Comma = r.opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	t := table.New(normalizeHeaders(header))
	width := len(t.Columns)

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			r.skip(t, line, err.Error())
			continue
		}
		line, _ := cr.FieldPos(0)

		if len(rec) > width {
			if !blank(rec[width:]) {
				r.skip(t, line, fmt.Sprintf("incorrect number of fields (expected %d, got %d)", width, len(rec)))
				continue
			}
			rec = rec[:width]
		}

		row := make(table.Row, width)
		for i := range row {
			v := table.Empty
			if i < len(rec) {
				v = rec[i]
				if r.opt.TrimSpace {
					v = strings.TrimSpace(v)
				}
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

func (r *Reader) skip(t *table.Table, line int, reason string) {
	if t.Skipped < r.opt.LogLimit {
		log.Printf("csv: skipping row at line %d: %s", line, reason)
	}
	t.Skipped++
}

// skipLines discards n raw lines from br.
func skipLines(br *bufio.Reader, n int) error {
	for i := 0; i < n; i++ {
		_, err := br.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return ErrNoHeader
		}
		if err != nil {
			return fmt.Errorf("csv: skip line %d: %w", i+1, err)
		}
	}
	return nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// normalizeHeaders keeps names as-is apart from the two cases a relational
// table cannot carry: blank names become "Unnamed: <i>" and repeated names get
// a ".<n>" suffix.
func normalizeHeaders(h []string) []string {
	h = StripHeaderBOM(h)
	out := make([]string, len(h))
	used := make(map[string]bool, len(h))
	dups := make(map[string]int)
	for i, col := range h {
		if strings.TrimSpace(col) == "" {
			col = "Unnamed: " + strconv.Itoa(i)
		}
		name := col
		for used[name] {
			dups[col]++
			name = col + "." + strconv.Itoa(dups[col])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
