package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"communitysolar/internal/schema"
)

// Dataset kinds.
const (
	// KindExport is an asynchronous export job: poll, download, project, load.
	KindExport = "export"
	// KindPartitions is a directory of per-county CSVs tagged and loaded as one table.
	KindPartitions = "partitions"
	// KindEnrichment is the per-record API fetch keyed by rows of SourceTable.
	KindEnrichment = "enrichment"
)

// Dataset describes one destination table and where its rows come from.
type Dataset struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Table    string `json:"table"`
	IDColumn string `json:"id_column"`

	// URL is the export job status endpoint (export only). Empty takes
	// -locations_url.
	URL string `json:"url,omitempty"`

	// Dir holds the partition CSVs (partitions only). Empty takes
	// -partitions_dir.
	Dir string `json:"dir,omitempty"`

	// Artifact is the hand-off CSV written under the work dir.
	Artifact string `json:"artifact,omitempty"`

	// Columns projects the source to these columns, in order. Empty keeps all.
	Columns []string `json:"columns,omitempty"`

	// Overrides type specific columns; all others are text.
	Overrides schema.Overrides `json:"overrides,omitempty"`

	// TagColumn holds the partition name (partitions only).
	TagColumn string `json:"tag_column,omitempty"`

	// SourceTable and SourceIDColumn name the rows an enrichment is keyed by.
	SourceTable    string `json:"source_table,omitempty"`
	SourceIDColumn string `json:"source_id_column,omitempty"`

	// Reader carries CSV reader settings: comma, skip_lines, trim_space, encoding.
	Reader Options `json:"reader,omitempty"`
}

// DatasetFile is the on-disk shape of -datasets.
type DatasetFile struct {
	Datasets []Dataset `json:"datasets"`
}

// DefaultDatasets returns the three built-in datasets.
func DefaultDatasets() []Dataset {
	return []Dataset{
		{
			Name:     "locations",
			Kind:     KindExport,
			Table:    "LOCATIONS",
			IDColumn: "location_id",
			Artifact: "locations_data.csv",
			Columns: []string{
				"latitude", "longitude", "dlgf_prop_class_code", "add_full",
				"geocity", "geozip", "geocounty", "geostate",
			},
			Overrides: schema.Overrides{
				"latitude":             schema.Real,
				"longitude":            schema.Real,
				"dlgf_prop_class_code": schema.Integer,
			},
			Reader: Options{},
		},
		{
			Name:      "nonprofits",
			Kind:      KindPartitions,
			Table:     "NONPROFITS",
			IDColumn:  "nonprofit_id",
			Artifact:  "nonprofit_data.csv",
			TagColumn: "county",
			Reader:    Options{"skip_lines": float64(3)},
		},
		{
			Name:           "solar",
			Kind:           KindEnrichment,
			Table:          "GOOGLE_SOLAR",
			IDColumn:       "solar_id",
			SourceTable:    "LOCATIONS",
			SourceIDColumn: "location_id",
			Reader:         Options{},
		},
	}
}

// LoadDatasets returns DefaultDatasets when path is empty, otherwise the
// datasets in the JSON file at path. Unknown fields are rejected.
func LoadDatasets(path string) ([]Dataset, error) {
	if path == "" {
		return DefaultDatasets(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read datasets: %w", err)
	}
	ds, err := DecodeDatasets(b)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return ds, nil
}

// DecodeDatasets decodes a DatasetFile document.
func DecodeDatasets(b []byte) ([]Dataset, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var f DatasetFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode datasets: %w", err)
	}
	for i := range f.Datasets {
		if f.Datasets[i].Reader == nil {
			f.Datasets[i].Reader = Options{}
		}
	}
	return f.Datasets, nil
}

// Resolve returns a copy of ds with unset sources filled from c.
func (c *Config) Resolve(ds []Dataset) []Dataset {
	out := make([]Dataset, len(ds))
	copy(out, ds)
	for i := range out {
		switch out[i].Kind {
		case KindExport:
			if out[i].URL == "" {
				out[i].URL = c.LocationsURL
			}
		case KindPartitions:
			if out[i].Dir == "" {
				out[i].Dir = c.PartitionsDir
			}
		}
	}
	return out
}

// Find returns the first dataset of the given kind.
func Find(ds []Dataset, kind string) (Dataset, bool) {
	for _, d := range ds {
		if d.Kind == kind {
			return d, true
		}
	}
	return Dataset{}, false
}
