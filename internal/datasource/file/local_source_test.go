package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	artifact := filepath.Join(dir, "locations_data.csv")
	if err := os.WriteFile(artifact, []byte("location_id,latitude\n1,39.7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		path    string
		ctx     context.Context
		wantErr error
		want    string
	}{
		{name: "reads artifact", path: artifact, ctx: context.Background(), want: "location_id,latitude\n1,39.7\n"},
		{name: "missing", path: filepath.Join(dir, "nonprofit_data.csv"), ctx: context.Background(), wantErr: os.ErrNotExist},
		{name: "canceled", path: artifact, ctx: canceled, wantErr: context.Canceled},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := NewLocal(tt.path)
			if src.Path() != tt.path {
				t.Fatalf("Path() = %q", src.Path())
			}
			rc, err := src.Open(tt.ctx)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Open() error = %v, want %v", err, tt.wantErr)
				}
				if rc != nil {
					t.Fatal("Open() returned a reader on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Fatalf("content = %q, want %q", got, tt.want)
			}
		})
	}
}
