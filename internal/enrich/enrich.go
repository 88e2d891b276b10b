// Package enrich fetches per-building solar potential for previously loaded
// locations and persists one enrichment row per location.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/golang/geo/s2"

	"communitysolar/internal/datasource/httpds"
	"communitysolar/internal/schema"
)

const (
	DefaultBaseURL = "https://solar.googleapis.com"
	DefaultQuality = "HIGH"
	DefaultTable   = "GOOGLE_SOLAR"

	// DefaultIDColumn is the enrichment table's identity column unless the
	// dataset names another.
	DefaultIDColumn = "solar_id"

	findClosestPath = "/v1/buildingInsights:findClosest"
)

// TableSchema is the fixed enrichment table layout under the given table and
// identity column names (DefaultTable and DefaultIDColumn when empty). An
// identity name that collides with a data column gets "_" appended, as in
// schema.Infer.
func TableSchema(name, idColumn string) schema.Schema {
	if name == "" {
		name = DefaultTable
	}
	if idColumn == "" {
		idColumn = DefaultIDColumn
	}
	for slices.Contains(insertColumns, idColumn) {
		idColumn += "_"
	}
	return schema.Schema{Table: name, Columns: []schema.Column{
		{Name: idColumn, Type: schema.Integer, Identity: true, NotNull: true},
		{Name: "location_id", Type: schema.Integer, NotNull: true},
		{Name: "latitude", Type: schema.Real, NotNull: true},
		{Name: "longitude", Type: schema.Real, NotNull: true},
		{Name: "max_panel_count", Type: schema.Integer, NotNull: true},
		{Name: "yearly_energy_production", Type: schema.Real, NotNull: true},
		// The fetcher writes it; the default covers rows inserted by hand.
		{Name: "date_added", Type: schema.Timestamp, Default: "CURRENT_TIMESTAMP"},
	}}
}

// insertColumns are the columns the fetcher writes, in TableSchema order.
var insertColumns = []string{"location_id", "latitude", "longitude", "max_panel_count", "yearly_energy_production", "date_added"}

// Candidate is a loaded location to enrich.
type Candidate struct {
	ID        int64   `db:"id"`
	Latitude  float64 `db:"latitude"`
	Longitude float64 `db:"longitude"`
}

// Record is one persisted enrichment row. CreatedAt is whole seconds, the
// coarsest timestamp precision among the backends, so it matches the stored
// date_added.
type Record struct {
	ID                int64
	LocationID        int64
	Latitude          float64
	Longitude         float64
	MaxPanelCount     int64
	YearlyEnergyDcKwh float64
	CreatedAt         time.Time
}

// Inserter persists one row and reports its identity value.
// *storage.Store satisfies it.
type Inserter interface {
	InsertReturningID(ctx context.Context, table, idColumn string, columns []string, values []any) (int64, error)
}

// Config configures a Fetcher.
type Config struct {
	BaseURL string
	APIKey  string
	Quality string

	// Table and IDColumn name the enrichment table and its identity column.
	Table    string
	IDColumn string

	// ArchiveDir, when set, receives the raw response of every successful
	// fetch as solar_data_<lat>_<lng>.json.
	ArchiveDir string
}

// Fetcher runs the fetch, project and persist cycle for one candidate at a
// time. It does not throttle; callers pace requests.
type Fetcher struct {
	client *httpds.Client
	store  Inserter
	cfg    Config
	sch    schema.Schema
	idCol  string

	now func() time.Time
}

// NewFetcher returns a Fetcher. A nil client gets httpds defaults.
func NewFetcher(client *httpds.Client, store Inserter, cfg Config) *Fetcher {
	if client == nil {
		client = httpds.NewClient(httpds.Config{Name: "solar"})
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Quality == "" {
		cfg.Quality = DefaultQuality
	}
	sch := TableSchema(cfg.Table, cfg.IDColumn)
	id, _ := sch.Identity()
	return &Fetcher{client: client, store: store, cfg: cfg, sch: sch, idCol: id.Name, now: time.Now}
}

// Enrich fetches building insights for c, keeps the largest panel
// configuration and inserts it keyed by c.ID.
func (f *Fetcher) Enrich(ctx context.Context, c Candidate) (Record, error) {
	if !s2.LatLngFromDegrees(c.Latitude, c.Longitude).IsValid() {
		return Record{}, &ParseError{LocationID: c.ID, Msg: fmt.Sprintf("invalid coordinates (%v, %v)", c.Latitude, c.Longitude)}
	}

	body, err := f.fetch(ctx, c)
	if err != nil {
		return Record{}, err
	}
	panels, energy, err := Project(body)
	if err != nil {
		return Record{}, &ParseError{LocationID: c.ID, Msg: err.Error()}
	}
	if f.cfg.ArchiveDir != "" {
		if err := f.archive(c, body); err != nil {
			return Record{}, err
		}
	}

	rec := Record{
		LocationID:        c.ID,
		Latitude:          c.Latitude,
		Longitude:         c.Longitude,
		MaxPanelCount:     panels,
		YearlyEnergyDcKwh: energy,
		CreatedAt:         f.now().UTC().Truncate(time.Second),
	}
	id, err := f.store.InsertReturningID(ctx, f.sch.Table, f.idCol, insertColumns,
		[]any{rec.LocationID, rec.Latitude, rec.Longitude, rec.MaxPanelCount, rec.YearlyEnergyDcKwh, rec.CreatedAt})
	if err != nil {
		return Record{}, fmt.Errorf("enrich: persist location %d: %w", c.ID, err)
	}
	rec.ID = id
	log.Printf("enrich: location=%d %s=%d panels=%d yearly_kwh=%.1f", rec.LocationID, f.idCol, rec.ID, rec.MaxPanelCount, rec.YearlyEnergyDcKwh)
	return rec, nil
}

func (f *Fetcher) fetch(ctx context.Context, c Candidate) ([]byte, error) {
	u := f.requestURL(c)
	body, code, err := f.client.Fetch(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	if code < 200 || code > 299 {
		return nil, &FetchError{LocationID: c.ID, StatusCode: code, Body: snippet(body)}
	}
	return body, nil
}

func (f *Fetcher) requestURL(c Candidate) string {
	q := url.Values{}
	q.Set("location.latitude", formatCoord(c.Latitude))
	q.Set("location.longitude", formatCoord(c.Longitude))
	q.Set("requiredQuality", f.cfg.Quality)
	q.Set("key", f.cfg.APIKey)
	return f.cfg.BaseURL + findClosestPath + "?" + q.Encode()
}

func (f *Fetcher) archive(c Candidate, body []byte) error {
	if err := os.MkdirAll(f.cfg.ArchiveDir, 0o755); err != nil {
		return fmt.Errorf("enrich: archive dir: %w", err)
	}
	path := filepath.Join(f.cfg.ArchiveDir, ArchiveName(c.Latitude, c.Longitude))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("enrich: archive %s: %w", path, err)
	}
	return nil
}

// ArchiveName is the file name a raw response is archived under.
func ArchiveName(lat, lng float64) string {
	return "solar_data_" + formatCoord(lat) + "_" + formatCoord(lng) + ".json"
}

func formatCoord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

type insightsBody struct {
	SolarPotential *struct {
		SolarPanelConfigs []struct {
			PanelsCount       int64   `json:"panelsCount"`
			YearlyEnergyDcKwh float64 `json:"yearlyEnergyDcKwh"`
		} `json:"solarPanelConfigs"`
	} `json:"solarPotential"`
}

// Project extracts the panel count and yearly DC energy of the last (largest)
// panel configuration.
func Project(body []byte) (panels int64, yearlyKwh float64, err error) {
	var b insightsBody
	if err := json.Unmarshal(body, &b); err != nil {
		return 0, 0, fmt.Errorf("decode building insights: %w", err)
	}
	if b.SolarPotential == nil {
		return 0, 0, fmt.Errorf("response has no solarPotential")
	}
	cfgs := b.SolarPotential.SolarPanelConfigs
	if len(cfgs) == 0 {
		return 0, 0, fmt.Errorf("response has no solarPanelConfigs")
	}
	last := cfgs[len(cfgs)-1]
	return last.PanelsCount, last.YearlyEnergyDcKwh, nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
