package config

import (
	"fmt"
	"strings"
)

// IssueSeverity is the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding. Path is a dotted path such as
// "datasets[1].tag_column" or "metrics_backend".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var knownDrivers = map[string]struct{}{
	"sqlite":   {},
	"postgres": {},
	"mysql":    {},
	"mssql":    {},
}

// Validate checks the flag-level configuration.
func Validate(c *Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if _, ok := knownDrivers[c.DBDriver]; !ok {
		add(SeverityError, "db_driver", "unknown driver %q; want sqlite, postgres, mysql or mssql", c.DBDriver)
	}
	if strings.TrimSpace(c.DSN) == "" {
		add(SeverityError, "dsn", "dsn must not be empty")
	}
	if c.PollInterval <= 0 {
		add(SeverityError, "poll_interval", "poll_interval must be positive")
	}
	if c.PollTimeout < 0 {
		add(SeverityError, "poll_timeout", "poll_timeout must not be negative")
	}
	if c.PollMaxAttempts < 0 {
		add(SeverityError, "poll_max_attempts", "poll_max_attempts must not be negative")
	}
	if c.HTTPRetries < 0 {
		add(SeverityError, "http_retries", "http_retries must not be negative")
	}
	if c.EnrichRPS < 0 {
		add(SeverityError, "enrich_rps", "enrich_rps must not be negative")
	}
	if c.EnrichLimit <= 0 {
		add(SeverityWarning, "enrich_limit", "enrich_limit %d selects no candidates", c.EnrichLimit)
	}
	if c.CommitEvery < 0 {
		add(SeverityError, "commit_every", "commit_every must not be negative")
	}
	if strings.TrimSpace(c.EnrichFilterColumn) == "" {
		add(SeverityError, "enrich_filter_column", "enrich_filter_column must not be empty")
	}

	switch c.MetricsBackend {
	case "", "none":
	case "pushgateway":
		if c.PushgatewayURL == "" {
			add(SeverityError, "pushgateway_url", "pushgateway backend requires -pushgateway_url")
		}
	case "datadog":
		if c.StatsdAddr == "" {
			add(SeverityError, "statsd_addr", "datadog backend requires -statsd_addr")
		}
	default:
		add(SeverityError, "metrics_backend", "unknown metrics backend %q", c.MetricsBackend)
	}
	return issues
}

// ValidateDatasets lints dataset definitions: identifiers, kind-specific
// requirements and cross references.
func ValidateDatasets(ds []Dataset) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if len(ds) == 0 {
		add(SeverityError, "datasets", "no datasets configured")
		return issues
	}

	names := map[string]bool{}
	tables := map[string]bool{}
	for _, d := range ds {
		tables[d.Table] = true
	}

	for i, d := range ds {
		p := fmt.Sprintf("datasets[%d]", i)

		if strings.TrimSpace(d.Name) == "" {
			add(SeverityError, p+".name", "name must not be empty")
		} else if names[d.Name] {
			add(SeverityError, p+".name", "duplicate dataset name %q", d.Name)
		}
		names[d.Name] = true

		if err := checkIdent(d.Table); err != nil {
			add(SeverityError, p+".table", "%v", err)
		}
		if d.IDColumn != "" {
			if err := checkIdent(d.IDColumn); err != nil {
				add(SeverityError, p+".id_column", "%v", err)
			}
		}

		seen := map[string]bool{}
		for j, c := range d.Columns {
			if seen[c] {
				add(SeverityError, fmt.Sprintf("%s.columns[%d]", p, j), "duplicate column %q", c)
			}
			seen[c] = true
			if c == d.IDColumn {
				add(SeverityWarning, fmt.Sprintf("%s.columns[%d]", p, j), "column %q collides with the identity column; it will be renamed", c)
			}
		}
		for col := range d.Overrides {
			if len(d.Columns) > 0 && !seen[col] && col != d.TagColumn {
				add(SeverityWarning, p+".overrides", "override for %q matches no projected column", col)
			}
		}

		switch d.Kind {
		case KindExport:
			if d.Artifact == "" {
				add(SeverityError, p+".artifact", "export dataset needs an artifact file name")
			}
		case KindPartitions:
			if d.Artifact == "" {
				add(SeverityError, p+".artifact", "partitions dataset needs an artifact file name")
			}
			if strings.TrimSpace(d.TagColumn) == "" {
				add(SeverityError, p+".tag_column", "partitions dataset needs a tag column")
			} else if seen[d.TagColumn] {
				add(SeverityError, p+".tag_column", "tag column %q is also a projected column", d.TagColumn)
			}
		case KindEnrichment:
			if d.SourceTable == "" {
				add(SeverityError, p+".source_table", "enrichment dataset needs a source table")
			} else if !tables[d.SourceTable] {
				add(SeverityWarning, p+".source_table", "source table %q is not loaded by any dataset", d.SourceTable)
			}
			if d.SourceIDColumn == "" {
				add(SeverityError, p+".source_id_column", "enrichment dataset needs a source id column")
			}
			if len(d.Columns) > 0 || len(d.Overrides) > 0 {
				add(SeverityWarning, p, "enrichment table layout is fixed; columns and overrides are ignored")
			}
		case "":
			add(SeverityError, p+".kind", "kind must not be empty")
		default:
			add(SeverityError, p+".kind", "unknown kind %q", d.Kind)
		}

		if n := d.Reader.Int("skip_lines", 0); n < 0 {
			add(SeverityError, p+".reader.skip_lines", "skip_lines must not be negative")
		}
		switch strings.ToLower(d.Reader.String("encoding", "")) {
		case "", "utf-8", "utf8", "utf-16", "utf16", "windows-1252", "cp1252", "latin1", "iso-8859-1":
		default:
			add(SeverityError, p+".reader.encoding", "unsupported encoding %q", d.Reader.String("encoding", ""))
		}
	}
	return issues
}

// checkIdent rejects names the DDL layer cannot quote safely on every backend.
func checkIdent(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("identifier must not be empty")
	}
	if strings.ContainsAny(s, "\x00\n\r") {
		return fmt.Errorf("identifier %q contains control characters", s)
	}
	if len(s) > 63 {
		return fmt.Errorf("identifier %q exceeds 63 bytes", s)
	}
	return nil
}
