// Command solarload builds the community solar database: it loads the
// address-point export, the scraped per-county nonprofit tables and the
// per-building solar enrichment into one relational store.
//
// Usage:
//
//	solarload [build|enrich|reset|structure|validate] [flags]
//
// build is the default. Run with -h for the flag list; every flag also has
// an environment variable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"communitysolar/internal/config"
	"communitysolar/internal/datasource/httpds"
	"communitysolar/internal/enrich"
	"communitysolar/internal/metrics"
	"communitysolar/internal/metrics/datadog"
	"communitysolar/internal/metrics/prompush"
	"communitysolar/internal/pipeline"
	"communitysolar/internal/poller"
	"communitysolar/internal/storage"

	// register every backend; -db_driver picks one.
	_ "communitysolar/internal/storage/all"
)

var commands = []string{"build", "enrich", "reset", "structure", "validate"}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Getenv, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Printf("solarload: %v", err)
		os.Exit(1)
	}
}

// run is main without process globals.
func run(ctx context.Context, args []string, getenv func(string) string, stdout io.Writer) error {
	cmd := "build"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	if !known(cmd) {
		return fmt.Errorf("unknown command %q (want one of %s)", cmd, strings.Join(commands, ", "))
	}

	fs := flag.NewFlagSet("solarload "+cmd, flag.ContinueOnError)
	cfg, err := config.LoadFromArgs(fs, getenv, args)
	if err != nil {
		return err
	}
	datasets, err := config.LoadDatasets(cfg.DatasetsFile)
	if err != nil {
		return err
	}
	datasets = cfg.Resolve(datasets)

	issues := append(config.Validate(cfg), config.ValidateDatasets(datasets)...)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid")
	}
	if cmd == "validate" {
		fmt.Fprintln(stdout, "configuration is valid")
		return nil
	}

	flush := setupMetrics(cfg, cmd)
	defer flush()

	store, err := storage.Open(ctx, storage.Config{Kind: cfg.DBDriver, DSN: cfg.DSN})
	if err != nil {
		return err
	}
	defer store.Close()

	deps, err := buildDeps(cfg, datasets, store, cmd)
	if err != nil {
		return err
	}
	d := pipeline.New(store, deps, pipeline.Options{
		Datasets:      datasets,
		WorkDir:       cfg.WorkDir,
		RejectsDir:    cfg.RejectsDir,
		PollTimeout:   cfg.PollTimeout,
		FilterColumn:  cfg.EnrichFilterColumn,
		FilterValue:   cfg.FilterArg(),
		EnrichLimit:   cfg.EnrichLimit,
		CommitEvery:   cfg.CommitEvery,
		ProgressEvery: cfg.ProgressEvery,
	})
	if cfg.Verbose {
		log.Printf("solarload: run=%s command=%s driver=%s work_dir=%s", d.RunID(), cmd, cfg.DBDriver, cfg.WorkDir)
	}

	start := time.Now()
	switch cmd {
	case "reset":
		return d.Reset(ctx)
	case "structure":
		return d.Structure(ctx, stdout)
	case "enrich":
		sum, err := d.EnrichOnly(ctx)
		report(stdout, sum, time.Since(start))
		return err
	default:
		sum, err := d.Run(ctx)
		report(stdout, sum, time.Since(start))
		return err
	}
}

func known(cmd string) bool {
	for _, c := range commands {
		if c == cmd {
			return true
		}
	}
	return false
}

// buildDeps wires the HTTP-backed collaborators. Enrichment without an API
// key is skipped for build and fatal for the enrich command.
func buildDeps(cfg *config.Config, datasets []config.Dataset, store *storage.Store, cmd string) (pipeline.Deps, error) {
	var deps pipeline.Deps

	client := httpds.NewClient(httpds.Config{Name: "export", Timeout: cfg.HTTPTimeout, MaxRetries: cfg.HTTPRetries})
	deps.Poller = poller.New(client, poller.Options{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts})

	key, err := cfg.APIKey()
	if err != nil {
		if cmd == "enrich" {
			return deps, err
		}
		log.Printf("solarload: enrichment disabled: %v", err)
		return deps, nil
	}
	ecfg := enrich.Config{BaseURL: cfg.SolarAPIURL, APIKey: key, Quality: cfg.SolarQuality}
	if ds, ok := config.Find(datasets, config.KindEnrichment); ok {
		ecfg.Table, ecfg.IDColumn = ds.Table, ds.IDColumn
	}
	if cfg.ArchiveResponses {
		ecfg.ArchiveDir = filepath.Join(cfg.WorkDir, "solar")
	}
	solar := httpds.NewClient(httpds.Config{Name: "solar", Timeout: cfg.HTTPTimeout, MaxRetries: cfg.HTTPRetries})
	deps.Enricher = enrich.NewFetcher(solar, store, ecfg)
	if cfg.EnrichRPS > 0 {
		deps.Limiter = rate.NewLimiter(rate.Limit(cfg.EnrichRPS), 1)
	}
	return deps, nil
}

// setupMetrics installs the configured backend and returns its flush.
func setupMetrics(cfg *config.Config, job string) func() {
	flush := func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
	switch cfg.MetricsBackend {
	case "pushgateway":
		b, err := prompush.NewBackend("solarload_"+job, cfg.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: backend=pushgateway url=%s job=solarload_%s", cfg.PushgatewayURL, job)
		metrics.SetBackend(b)
		return flush
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.StatsdAddr,
			Namespace:  "solarload.",
			GlobalTags: []string{"command:" + job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: backend=datadog addr=%s", cfg.StatsdAddr)
		metrics.SetBackend(b)
		return flush
	default:
		if cfg.Verbose {
			log.Printf("metrics: disabled (backend=%q)", cfg.MetricsBackend)
		}
		return func() {}
	}
}

func report(w io.Writer, sum pipeline.Summary, elapsed time.Duration) {
	fmt.Fprintf(w, "run %s (%s)\n", sum.RunID, elapsed.Round(time.Millisecond))
	for _, r := range sum.Results {
		if r.Skipped {
			fmt.Fprintf(w, "  %-12s %-14s skipped\n", r.Dataset, r.Table)
			continue
		}
		fmt.Fprintf(w, "  %-12s %-14s attempted=%d committed=%d failed=%d reader_skipped=%d\n",
			r.Dataset, r.Table, r.Attempted, r.Committed, r.Failed, r.ReaderSkipped)
	}
}
