package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"communitysolar/internal/config"
	"communitysolar/internal/datasource"
	"communitysolar/internal/datasource/file"
	pcsv "communitysolar/internal/parser/csv"
	"communitysolar/internal/poller"
	"communitysolar/internal/schema"
	"communitysolar/internal/skiplog"
	"communitysolar/internal/storage"
	"communitysolar/internal/table"
)

// loadExport polls the export job, downloads the artifact, projects it and
// loads it.
func (d *Driver) loadExport(ctx context.Context, ds config.Dataset) (Result, error) {
	if ds.URL == "" || d.deps.Poller == nil {
		log.Printf("pipeline: dataset=%s has no export source configured; skipping", ds.Name)
		return Result{Skipped: true}, nil
	}

	var resultURL string
	err := step(ds.Name, "poll", func() error {
		pctx := ctx
		if d.opt.PollTimeout > 0 {
			var cancel context.CancelFunc
			pctx, cancel = context.WithTimeout(ctx, d.opt.PollTimeout)
			defer cancel()
		}
		var err error
		resultURL, err = d.deps.Poller.AwaitCompletion(pctx, poller.Job{StatusURL: ds.URL})
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %s: poll: %w", ds.Name, err)
	}

	artifact := d.artifactPath(ds)
	err = step(ds.Name, "download", func() error {
		return d.download(ctx, resultURL, artifact)
	})
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %s: download: %w", ds.Name, err)
	}

	var t *table.Table
	err = step(ds.Name, "read", func() error {
		var err error
		t, err = readArtifact(ctx, file.NewLocal(artifact), readerOptions(ds.Reader))
		if err != nil {
			return err
		}
		if len(ds.Columns) == 0 {
			return nil
		}
		if t, err = t.Project(ds.Columns); err != nil {
			return err
		}
		return pcsv.WriteFile(artifact, t)
	})
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %s: read artifact: %w", ds.Name, err)
	}
	return d.loadTable(ctx, ds, t)
}

func (d *Driver) download(ctx context.Context, url, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := d.deps.Poller.Fetch(ctx, url, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// loadPartitions tags every partition CSV with its name, writes the combined
// hand-off artifact and loads the artifact.
func (d *Driver) loadPartitions(ctx context.Context, ds config.Dataset) (Result, error) {
	if ds.Dir == "" {
		log.Printf("pipeline: dataset=%s has no partition dir configured; skipping", ds.Name)
		return Result{Skipped: true}, nil
	}
	paths, err := file.ListPartitions(ds.Dir, ".csv")
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %s: %w", ds.Name, err)
	}
	if len(paths) == 0 {
		log.Printf("pipeline: dataset=%s no partitions in %s; skipping", ds.Name, ds.Dir)
		return Result{Skipped: true}, nil
	}

	artifact := d.artifactPath(ds)
	readerSkipped := 0
	err = step(ds.Name, "combine", func() error {
		combined, err := pcsv.NewReader(readerOptions(ds.Reader)).ReadAndTag(paths, ds.TagColumn, pcsv.PartitionName)
		if err != nil {
			return err
		}
		if len(ds.Columns) > 0 {
			if combined, err = combined.Project(append(append([]string{}, ds.Columns...), ds.TagColumn)); err != nil {
				return err
			}
		}
		readerSkipped = combined.Skipped
		log.Printf("pipeline: dataset=%s partitions=%d rows=%d artifact=%s", ds.Name, len(paths), combined.Len(), artifact)
		return pcsv.WriteFile(artifact, combined)
	})
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %s: combine partitions: %w", ds.Name, err)
	}

	var t *table.Table
	err = step(ds.Name, "read", func() error {
		var err error
		t, err = readArtifact(ctx, file.NewLocal(artifact), pcsv.Options{})
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %s: read artifact: %w", ds.Name, err)
	}
	t.Skipped += readerSkipped
	return d.loadTable(ctx, ds, t)
}

// loadTable infers the schema from t's columns, ensures the table and bulk
// loads t. Rejected rows go to the rejects log when one is configured.
func (d *Driver) loadTable(ctx context.Context, ds config.Dataset, t *table.Table) (Result, error) {
	sch := schema.Infer(ds.Table, ds.IDColumn, t.Columns, ds.Overrides)
	if err := step(ds.Name, "ensure", func() error { return d.store.EnsureTable(ctx, sch) }); err != nil {
		return Result{}, fmt.Errorf("pipeline: %s: %w", ds.Name, err)
	}

	opt := storage.LoadOptions{
		CommitEvery:   d.opt.CommitEvery,
		ProgressEvery: d.opt.ProgressEvery,
		Job:           ds.Name,
	}
	var rejects *skiplog.Log
	if d.opt.RejectsDir != "" {
		rejects = skiplog.New(d.opt.RejectsDir, ds.Table, sch.DataColumnNames())
		opt.OnFailure = func(f storage.RowFailure) {
			if err := rejects.Record(f); err != nil {
				log.Printf("pipeline: dataset=%s rejects log: %v", ds.Name, err)
			}
		}
	}

	var rep storage.LoadReport
	err := step(ds.Name, "load", func() error {
		var err error
		rep, err = storage.Load(ctx, d.store, sch, t, opt)
		return err
	})
	if rejects != nil {
		if cerr := rejects.Close(); cerr != nil {
			log.Printf("pipeline: dataset=%s rejects log: %v", ds.Name, cerr)
		}
		if rejects.Count() > 0 {
			log.Printf("pipeline: dataset=%s rejected=%d (%s) file=%s", ds.Name, rejects.Count(), rejects.Summary(), skiplog.Path(d.opt.RejectsDir, ds.Table))
		}
	}
	res := Result{
		ReaderSkipped: t.Skipped,
		Attempted:     rep.Attempted,
		Committed:     rep.Committed,
		Failed:        len(rep.Failures),
	}
	if err != nil {
		return res, fmt.Errorf("pipeline: %s: %w", ds.Name, err)
	}
	return res, nil
}

// readArtifact parses the CSV stream src opens.
func readArtifact(ctx context.Context, src datasource.Source, opt pcsv.Options) (*table.Table, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return pcsv.NewReader(opt).Read(rc)
}

func (d *Driver) artifactPath(ds config.Dataset) string {
	name := ds.Artifact
	if name == "" {
		name = ds.Name + ".csv"
	}
	return filepath.Join(d.opt.WorkDir, name)
}

// readerOptions maps a dataset's reader block onto csv.Options.
func readerOptions(o config.Options) pcsv.Options {
	return pcsv.Options{
		Comma:     o.Rune("comma", 0),
		SkipLines: o.Int("skip_lines", 0),
		TrimSpace: o.Bool("trim_space", false),
		Encoding:  o.String("encoding", ""),
	}
}
