package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestRunBuildStructureReset(t *testing.T) {
	dir := t.TempDir()
	parts := filepath.Join(dir, "named")
	if err := os.MkdirAll(parts, 0o755); err != nil {
		t.Fatal(err)
	}
	body := "Nonprofits\nBoone County\n\nName,City\nBoone Food Pantry,Lebanon\nZionsville Arts,Zionsville\n"
	if err := os.WriteFile(filepath.Join(parts, "Boone.csv"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			fmt.Fprintf(w, `{"status":"Completed","resultUrl":"%s/export.csv"}`, srv.URL)
		case "/export.csv":
			_, _ = w.Write([]byte("latitude,longitude,dlgf_prop_class_code,add_full,geocity,geozip,geocounty,geostate\n39.7,-86.1,645,1 Main,Indy,46204,Marion,IN\n"))
		default:
			_, _ = w.Write([]byte(`{"solarPotential":{"solarPanelConfigs":[{"panelsCount":12,"yearlyEnergyDcKwh":5000.5}]}}`))
		}
	}))
	defer srv.Close()

	e := env(map[string]string{
		"DB_DSN":         filepath.Join(dir, "community_solar.db"),
		"WORK_DIR":       dir,
		"PARTITIONS_DIR": parts,
		"LOCATIONS_URL":  srv.URL + "/status",
		"SOLAR_API_URL":  srv.URL,
		"GOOGLE_API_KEY": "test-key",
	})
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, []string{"build", "-poll_interval=1ms"}, e, &out); err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out.String(), "committed=2") || !strings.Contains(out.String(), "GOOGLE_SOLAR") {
		t.Fatalf("build report:\n%s", out.String())
	}

	out.Reset()
	if err := run(ctx, []string{"structure"}, e, &out); err != nil {
		t.Fatalf("structure: %v", err)
	}
	for _, want := range []string{"Table: LOCATIONS", "Table: NONPROFITS", "Table: GOOGLE_SOLAR", "county"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("structure output lacks %q:\n%s", want, out.String())
		}
	}

	if err := run(ctx, []string{"reset"}, e, &out); err != nil {
		t.Fatalf("reset: %v", err)
	}
	out.Reset()
	if err := run(ctx, []string{"structure"}, e, &out); err != nil {
		t.Fatalf("structure after reset: %v", err)
	}
	if strings.Contains(out.String(), "Table:") {
		t.Fatalf("tables remain after reset:\n%s", out.String())
	}
}

func TestRunEnrichRequiresKey(t *testing.T) {
	dir := t.TempDir()
	e := env(map[string]string{
		"DB_DSN":              filepath.Join(dir, "x.db"),
		"GOOGLE_API_KEY_FILE": filepath.Join(dir, "missing.txt"),
	})
	if err := run(context.Background(), []string{"enrich"}, e, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without an api key")
	}
}

func TestRunValidate(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"validate"}, env(nil), &out); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out.String(), "valid") {
		t.Fatalf("output = %q", out.String())
	}

	if err := run(context.Background(), []string{"validate", "-db_driver=oracle"}, env(nil), &out); err == nil {
		t.Fatal("expected invalid configuration")
	}
}

func TestRunUsageErrors(t *testing.T) {
	if err := run(context.Background(), []string{"deploy"}, env(nil), &bytes.Buffer{}); err == nil {
		t.Fatal("expected unknown command error")
	}
	err := run(context.Background(), []string{"build", "-h"}, env(nil), &bytes.Buffer{})
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("-h error = %v, want flag.ErrHelp", err)
	}
}
