package skiplog

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"communitysolar/internal/storage"
)

func TestLogWritesRejects(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "rejects")
	l := New(dir, "LOCATIONS", []string{"latitude", "dlgf_prop_class_code"})

	failures := []storage.RowFailure{
		{Index: 1, Values: []any{"39.7", "abc"}, Err: &storage.RowInsertError{Table: "LOCATIONS", Row: 1, Column: "dlgf_prop_class_code", Err: errors.New("not an integer")}},
		{Index: 4, Values: []any{"39.8"}, Err: &storage.SchemaMismatchError{Table: "LOCATIONS", Row: 4, Want: 2, Got: 1}},
	}
	for _, f := range failures {
		if err := l.Record(f); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	fh, err := os.Open(filepath.Join(dir, "LOCATIONS_rejects.csv"))
	if err != nil {
		t.Fatalf("rejects file: %v", err)
	}
	defer fh.Close()
	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want header + 2", len(recs))
	}
	if diff := cmp.Diff([]string{"reason", "row", "fingerprint", "error", "latitude", "dlgf_prop_class_code"}, recs[0]); diff != "" {
		t.Fatalf("header (-want +got):\n%s", diff)
	}
	if recs[1][0] != ReasonInsertError || recs[1][1] != "1" || recs[1][5] != "abc" {
		t.Fatalf("row 1 = %v", recs[1])
	}
	if recs[1][2] != Fingerprint([]string{"39.7", "abc"}) {
		t.Fatalf("fingerprint = %s", recs[1][2])
	}
	if recs[2][0] != ReasonSchemaMismatch || recs[2][1] != "4" {
		t.Fatalf("row 2 = %v", recs[2])
	}
	if l.Count() != 2 || l.Summary() != "insert_error=1, schema_mismatch=1" {
		t.Fatalf("Count() = %d, Summary() = %q", l.Count(), l.Summary())
	}
}

func TestLogNoFailuresCreatesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := New(dir, "NONPROFITS", []string{"Name"})
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(Path(dir, "NONPROFITS")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("rejects file exists: %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := Fingerprint([]string{"ab", "c"})
	if a != Fingerprint([]string{"ab", "c"}) {
		t.Fatal("fingerprint not stable")
	}
	if a == Fingerprint([]string{"a", "bc"}) {
		t.Fatal("cell boundaries do not affect fingerprint")
	}
	if len(a) != 16 {
		t.Fatalf("len = %d", len(a))
	}
}

func TestReason(t *testing.T) {
	t.Parallel()

	if got := Reason(errors.New("x")); got != ReasonOther {
		t.Fatalf("Reason() = %q", got)
	}
}
