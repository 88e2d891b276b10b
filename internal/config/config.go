// Package config centralizes process configuration. Every knob is a flag
// whose default is seeded from an environment variable, so `-help` lists
// everything and explicit flags always win over the environment.
//
// Tests use LoadFromArgs with a private FlagSet and a map-backed getenv:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	cfg, err := config.LoadFromArgs(fs, func(k string) string { return env[k] }, []string{"-v"})
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"communitysolar/internal/datasource/file"
)

// DefaultLocationsURL is the ArcGIS hub export endpoint for Indiana address points.
const DefaultLocationsURL = "https://hub.arcgis.com/api/download/v1/items/9b222d07cc164eb384a24742cbf1d274/csv?redirect=false&layers=0"

// Config holds all process configuration. It is a plain value after
// construction.
type Config struct {
	// Store.
	DBDriver string // sqlite, postgres, mysql or mssql
	DSN      string

	// Files.
	WorkDir       string // hand-off artifacts
	PartitionsDir string // one scraped CSV per county
	RejectsDir    string // empty disables rejected-row logs
	DatasetsFile  string // optional JSON replacing the built-in datasets

	// Export job polling.
	LocationsURL    string
	PollInterval    time.Duration
	PollTimeout     time.Duration // 0 = no deadline
	PollMaxAttempts int           // 0 = unlimited

	// HTTP.
	HTTPTimeout time.Duration
	HTTPRetries int

	// Enrichment.
	SolarAPIURL        string
	SolarAPIKey        string
	SolarAPIKeyFile    string
	SolarQuality       string
	EnrichFilterColumn string
	EnrichFilterValue  string
	EnrichLimit        int
	EnrichRPS          float64 // 0 = unthrottled
	ArchiveResponses   bool

	// Loader.
	CommitEvery   int
	ProgressEvery int

	// Metrics.
	MetricsBackend string // none, pushgateway or datadog
	PushgatewayURL string
	StatsdAddr     string

	Verbose bool
}

// LoadFromArgs defines flags on fs with env-seeded defaults read through
// getenv, then parses args.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{}

	envOrDefaultFn := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOrDefaultFn := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	floatEnvOrDefaultFn := func(k string, d float64) float64 {
		if v := getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return d
	}
	durEnvOrDefaultFn := func(k string, d time.Duration) time.Duration {
		if v := getenv(k); v != "" {
			if x, err := time.ParseDuration(v); err == nil {
				return x
			}
		}
		return d
	}
	boolEnvOrDefaultFn := func(k string, d bool) bool {
		switch strings.ToLower(getenv(k)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return d
	}

	// Store
	fs.StringVar(&cfg.DBDriver, "db_driver", envOrDefaultFn("DB_DRIVER", "sqlite"), "Database driver: sqlite, postgres, mysql or mssql")
	fs.StringVar(&cfg.DSN, "dsn", envOrDefaultFn("DB_DSN", "community_solar.db"), "Database DSN (a file path for sqlite)")

	// Files
	fs.StringVar(&cfg.WorkDir, "work_dir", envOrDefaultFn("WORK_DIR", "."), "Directory for hand-off artifacts")
	fs.StringVar(&cfg.PartitionsDir, "partitions_dir", envOrDefaultFn("PARTITIONS_DIR", "downloads/named"), "Directory of per-county nonprofit CSVs")
	fs.StringVar(&cfg.RejectsDir, "rejects_dir", getenv("REJECTS_DIR"), "Directory for rejected-row CSV logs (empty disables)")
	fs.StringVar(&cfg.DatasetsFile, "datasets", getenv("DATASETS_FILE"), "Optional JSON file replacing the built-in dataset definitions")

	// Polling
	fs.StringVar(&cfg.LocationsURL, "locations_url", envOrDefaultFn("LOCATIONS_URL", DefaultLocationsURL), "Export job status URL for the locations dataset")
	fs.DurationVar(&cfg.PollInterval, "poll_interval", durEnvOrDefaultFn("POLL_INTERVAL", 5*time.Second), "Wait between export status checks")
	fs.DurationVar(&cfg.PollTimeout, "poll_timeout", durEnvOrDefaultFn("POLL_TIMEOUT", 0), "Give up polling after this long (0 = never)")
	fs.IntVar(&cfg.PollMaxAttempts, "poll_max_attempts", intEnvOrDefaultFn("POLL_MAX_ATTEMPTS", 0), "Give up after this many status checks (0 = unlimited)")

	// HTTP
	fs.DurationVar(&cfg.HTTPTimeout, "http_timeout", durEnvOrDefaultFn("HTTP_TIMEOUT", 60*time.Second), "Per-request HTTP timeout")
	fs.IntVar(&cfg.HTTPRetries, "http_retries", intEnvOrDefaultFn("HTTP_RETRIES", 0), "Transport-level retries for 5xx/429/network errors")

	// Enrichment
	fs.StringVar(&cfg.SolarAPIURL, "solar_api_url", envOrDefaultFn("SOLAR_API_URL", "https://solar.googleapis.com"), "Building insights API base URL")
	fs.StringVar(&cfg.SolarAPIKey, "solar_api_key", getenv("GOOGLE_API_KEY"), "Building insights API key")
	fs.StringVar(&cfg.SolarAPIKeyFile, "solar_api_key_file", envOrDefaultFn("GOOGLE_API_KEY_FILE", "google_api_key.txt"), "File holding the API key, used when -solar_api_key is empty")
	fs.StringVar(&cfg.SolarQuality, "solar_quality", envOrDefaultFn("SOLAR_QUALITY", "HIGH"), "requiredQuality for building insights")
	fs.StringVar(&cfg.EnrichFilterColumn, "enrich_filter_column", envOrDefaultFn("ENRICH_FILTER_COLUMN", "dlgf_prop_class_code"), "Locations column selecting enrichment candidates")
	fs.StringVar(&cfg.EnrichFilterValue, "enrich_filter_value", envOrDefaultFn("ENRICH_FILTER_VALUE", "645"), "Value of the filter column selecting candidates")
	fs.IntVar(&cfg.EnrichLimit, "enrich_limit", intEnvOrDefaultFn("ENRICH_LIMIT", 100000), "Maximum candidates per run")
	fs.Float64Var(&cfg.EnrichRPS, "enrich_rps", floatEnvOrDefaultFn("ENRICH_RPS", 0), "Enrichment requests per second (0 = unthrottled)")
	fs.BoolVar(&cfg.ArchiveResponses, "archive_responses", boolEnvOrDefaultFn("ARCHIVE_RESPONSES", false), "Archive raw enrichment responses under <work_dir>/solar")

	// Loader
	fs.IntVar(&cfg.CommitEvery, "commit_every", intEnvOrDefaultFn("COMMIT_EVERY", 0), "Commit every N rows (0 = once per table)")
	fs.IntVar(&cfg.ProgressEvery, "progress_every", intEnvOrDefaultFn("PROGRESS_EVERY", 1000), "Log progress every N rows")

	// Metrics
	fs.StringVar(&cfg.MetricsBackend, "metrics_backend", envOrDefaultFn("METRICS_BACKEND", "none"), "Metrics backend: none, pushgateway or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway_url", getenv("PUSHGATEWAY_URL"), "Prometheus Pushgateway URL")
	fs.StringVar(&cfg.StatsdAddr, "statsd_addr", envOrDefaultFn("DD_DOGSTATSD_URL", "127.0.0.1:8125"), "DogStatsD address")

	fs.BoolVar(&cfg.Verbose, "v", boolEnvOrDefaultFn("VERBOSE", false), "Verbose logging")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// APIKey returns SolarAPIKey, or the first entry of SolarAPIKeyFile when the
// key was not given directly.
func (c *Config) APIKey() (string, error) {
	if c.SolarAPIKey != "" {
		return c.SolarAPIKey, nil
	}
	if c.SolarAPIKeyFile == "" {
		return "", fmt.Errorf("config: no solar api key: set -solar_api_key, GOOGLE_API_KEY or -solar_api_key_file")
	}
	key, err := file.ReadFirst(c.SolarAPIKeyFile)
	if err != nil {
		return "", fmt.Errorf("config: solar api key: %w", err)
	}
	return key, nil
}

// FilterArg returns EnrichFilterValue typed for comparison: an int64 or
// float64 when it parses as a number, the raw string otherwise. "645.0"
// becomes int64(645) so it matches an integer column on every backend.
func (c *Config) FilterArg() any {
	v := strings.TrimSpace(c.EnrichFilterValue)
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	}
	return c.EnrichFilterValue
}
