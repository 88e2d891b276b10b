package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func load(t *testing.T, env map[string]string, args ...string) *Config {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg, err := LoadFromArgs(fs, func(k string) string { return env[k] }, args)
	if err != nil {
		t.Fatalf("LoadFromArgs() error = %v", err)
	}
	return cfg
}

func TestLoadFromArgsDefaults(t *testing.T) {
	t.Parallel()

	cfg := load(t, nil)
	if cfg.DBDriver != "sqlite" || cfg.DSN != "community_solar.db" {
		t.Fatalf("store = %q %q", cfg.DBDriver, cfg.DSN)
	}
	if cfg.PollInterval != 5*time.Second || cfg.PollTimeout != 0 || cfg.PollMaxAttempts != 0 {
		t.Fatalf("polling = %v %v %d", cfg.PollInterval, cfg.PollTimeout, cfg.PollMaxAttempts)
	}
	if cfg.PartitionsDir != "downloads/named" || cfg.LocationsURL != DefaultLocationsURL {
		t.Fatalf("paths = %q %q", cfg.PartitionsDir, cfg.LocationsURL)
	}
	if cfg.EnrichFilterColumn != "dlgf_prop_class_code" || cfg.EnrichFilterValue != "645" || cfg.SolarQuality != "HIGH" {
		t.Fatalf("enrichment = %+v", cfg)
	}
	if cfg.ProgressEvery != 1000 || cfg.CommitEvery != 0 || cfg.HTTPRetries != 0 {
		t.Fatalf("loader = %d %d %d", cfg.ProgressEvery, cfg.CommitEvery, cfg.HTTPRetries)
	}
	if cfg.MetricsBackend != "none" || cfg.Verbose {
		t.Fatalf("misc = %q %v", cfg.MetricsBackend, cfg.Verbose)
	}
	if issues := Validate(cfg); HasErrors(issues) {
		t.Fatalf("defaults do not validate: %v", issues)
	}
}

// Environment seeds defaults; explicit flags win.
func TestLoadFromArgsEnvAndFlagPrecedence(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"DB_DRIVER":      "postgres",
		"DB_DSN":         "postgres://solar@localhost/ingest",
		"POLL_INTERVAL":  "2s",
		"ENRICH_RPS":     "1.5",
		"GOOGLE_API_KEY": "from-env",
		"VERBOSE":        "yes",
		"COMMIT_EVERY":   "not-a-number",
	}
	cfg := load(t, env, "-db_driver=mysql", "-poll_interval=10s", "-enrich_limit=5")

	if cfg.DBDriver != "mysql" {
		t.Fatalf("DBDriver = %q, want flag value", cfg.DBDriver)
	}
	if cfg.DSN != "postgres://solar@localhost/ingest" {
		t.Fatalf("DSN = %q, want env value", cfg.DSN)
	}
	if cfg.PollInterval != 10*time.Second || cfg.EnrichLimit != 5 {
		t.Fatalf("flags not applied: %v %d", cfg.PollInterval, cfg.EnrichLimit)
	}
	if cfg.EnrichRPS != 1.5 || cfg.SolarAPIKey != "from-env" || !cfg.Verbose {
		t.Fatalf("env not applied: %v %q %v", cfg.EnrichRPS, cfg.SolarAPIKey, cfg.Verbose)
	}
	if cfg.CommitEvery != 0 {
		t.Fatalf("CommitEvery = %d, want default for unparsable env", cfg.CommitEvery)
	}
}

func TestLoadFromArgsBadFlag(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := LoadFromArgs(fs, func(string) string { return "" }, []string{"-nope"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestAPIKey(t *testing.T) {
	t.Parallel()

	keyFile := filepath.Join(t.TempDir(), "google_api_key.txt")
	if err := os.WriteFile(keyFile, []byte("AIza-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	direct := &Config{SolarAPIKey: "AIza-flag", SolarAPIKeyFile: keyFile}
	if k, err := direct.APIKey(); err != nil || k != "AIza-flag" {
		t.Fatalf("APIKey() = %q, %v", k, err)
	}
	fromFile := &Config{SolarAPIKeyFile: keyFile}
	if k, err := fromFile.APIKey(); err != nil || k != "AIza-file" {
		t.Fatalf("APIKey() = %q, %v", k, err)
	}
	missing := &Config{SolarAPIKeyFile: filepath.Join(t.TempDir(), "none.txt")}
	if _, err := missing.APIKey(); err == nil {
		t.Fatal("expected error for missing key file")
	}
	if _, err := (&Config{}).APIKey(); err == nil {
		t.Fatal("expected error with no key source")
	}
}

func TestFilterArg(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want any
	}{
		{"645", int64(645)},
		{"645.0", int64(645)},
		{" 12.5 ", 12.5},
		{"RES", "RES"},
	}
	for _, tt := range tests {
		if got := (&Config{EnrichFilterValue: tt.in}).FilterArg(); got != tt.want {
			t.Errorf("FilterArg(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			DBDriver: "sqlite", DSN: "x.db", PollInterval: time.Second,
			EnrichLimit: 10, EnrichFilterColumn: "c", MetricsBackend: "none",
		}
	}
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantPath string
	}{
		{"unknown driver", func(c *Config) { c.DBDriver = "oracle" }, "db_driver"},
		{"empty dsn", func(c *Config) { c.DSN = " " }, "dsn"},
		{"zero interval", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
		{"negative rps", func(c *Config) { c.EnrichRPS = -1 }, "enrich_rps"},
		{"pushgateway without url", func(c *Config) { c.MetricsBackend = "pushgateway" }, "pushgateway_url"},
		{"unknown backend", func(c *Config) { c.MetricsBackend = "graphite" }, "metrics_backend"},
	}
	for _, tt := range tests {
		c := base()
		tt.mutate(c)
		issues := Validate(c)
		if !HasErrors(issues) {
			t.Errorf("%s: no error issues", tt.name)
			continue
		}
		found := false
		for _, iss := range issues {
			if iss.Path == tt.wantPath {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: issues %v lack path %q", tt.name, issues, tt.wantPath)
		}
	}
	if issues := Validate(base()); len(issues) != 0 {
		t.Fatalf("Validate(base) = %v", issues)
	}
}
