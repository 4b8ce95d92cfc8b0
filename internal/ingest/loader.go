package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/biofarmaka/config"
	"github.com/vinodismyname/biofarmaka/internal/model"
	"github.com/vinodismyname/biofarmaka/internal/schema"
	"github.com/vinodismyname/biofarmaka/internal/tables"
)

// ErrPrimaryUnavailable indicates the primary wide table could not be read
// or lacks its identifier columns. It is the only fatal load condition.
var ErrPrimaryUnavailable = errors.New("ingest: primary source unavailable")

// Source names one tabular input file.
type Source struct {
	Name string `json:"name"`
	Path string `json:"path"`
	// Year is the fallback year for cluster sources without a year column.
	Year int `json:"year,omitempty"`
}

// Sources is the full input set: one primary table and yearly cluster tables.
type Sources struct {
	Primary  Source   `json:"primary"`
	Clusters []Source `json:"clusters"`
}

// All returns the primary source followed by cluster sources.
func (s Sources) All() []Source {
	return append([]Source{s.Primary}, s.Clusters...)
}

// DiscoverSources resolves dataset_final and cluster_<year> inside dir,
// preferring .csv over .xlsx. Missing files resolve to the .csv path.
func DiscoverSources(dir string, years []int) Sources {
	s := Sources{Primary: Source{Name: config.PrimarySourceName, Path: resolve(dir, config.PrimarySourceName)}}
	for _, y := range years {
		name := config.ClusterSourcePrefix + strconv.Itoa(y)
		s.Clusters = append(s.Clusters, Source{Name: name, Path: resolve(dir, name), Year: y})
	}
	return s
}

func resolve(dir, name string) string {
	for _, ext := range tables.SupportedExtensions {
		p := filepath.Join(dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, name+tables.SupportedExtensions[0])
}

// PathValidator abstracts filesystem path validation. Implementations should
// return a canonical absolute path if allowed, or an error when denied.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
}

// Loaded is the raw result of a load: the primary frame and the unified
// cluster table (nil when no cluster source loaded).
type Loaded struct {
	Primary        *tables.Frame
	Clusters       []model.ClusterRecord
	ClusterSources []string
	Diagnostics    []schema.Diagnostic
}

// Loader reads the configured sources.
type Loader struct {
	sources   Sources
	validator PathValidator
}

// NewLoader constructs a Loader. validator may be nil.
func NewLoader(sources Sources, validator PathValidator) *Loader {
	return &Loader{sources: sources, validator: validator}
}

// Sources returns the configured inputs.
func (l *Loader) Sources() Sources { return l.sources }

// Load reads the primary source (fail fast) and every cluster source
// (best effort, failures become diagnostics).
func (l *Loader) Load(ctx context.Context) (*Loaded, error) {
	logger := zerolog.Ctx(ctx)

	primary, err := l.readFrame(l.sources.Primary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPrimaryUnavailable, l.sources.Primary.Name, err)
	}
	if err := schema.RequireColumns(primary.DF.Names(), schema.ColRegion, schema.ColYear); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPrimaryUnavailable, l.sources.Primary.Name, err)
	}

	out := &Loaded{Primary: primary}
	out.Diagnostics = append(out.Diagnostics, primary.Diagnostics...)

	for _, src := range l.sources.Clusters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, diags, err := l.loadCluster(src)
		out.Diagnostics = append(out.Diagnostics, diags...)
		if err != nil {
			logger.Warn().Str("source", src.Name).Str("path", src.Path).Err(err).Msg("cluster source skipped")
			out.Diagnostics = append(out.Diagnostics, schema.Diagnostic{
				Kind: schema.KindSourceUnavailable, Severity: schema.SeverityWarning, Source: src.Name,
				Message: err.Error(),
			})
			continue
		}
		out.Clusters = append(out.Clusters, recs...)
		out.ClusterSources = append(out.ClusterSources, src.Name)
	}
	if len(out.ClusterSources) > 0 && out.Clusters == nil {
		out.Clusters = []model.ClusterRecord{}
	}
	return out, nil
}

func (l *Loader) readFrame(src Source) (*tables.Frame, error) {
	path := src.Path
	if l.validator != nil {
		canonical, err := l.validator.ValidateOpenPath(path)
		if err != nil {
			return nil, err
		}
		path = canonical
	}
	f, err := tables.ReadFile(src.Name, path)
	if err != nil {
		return nil, err
	}
	f.Path = path
	return f, nil
}

// loadCluster reads one yearly cluster table into typed records.
func (l *Loader) loadCluster(src Source) ([]model.ClusterRecord, []schema.Diagnostic, error) {
	f, err := l.readFrame(src)
	if err != nil {
		return nil, nil, err
	}
	diags := append([]schema.Diagnostic(nil), f.Diagnostics...)
	cols := f.DF.Names()

	labelIdx, labelDiag, err := schema.DetectClusterColumn(cols)
	if err != nil {
		return nil, diags, err
	}
	if labelDiag != nil {
		labelDiag.Source = src.Name
		diags = append(diags, *labelDiag)
	}
	if err := schema.RequireColumns(cols, schema.ColRegion); err != nil {
		return nil, diags, err
	}
	regionIdx := schema.IndexOf(cols, schema.ColRegion)
	yearIdx := schema.IndexOf(cols, schema.ColYear)
	prodIdx := schema.IndexOf(cols, schema.ColProductionTotal)
	areaIdx := schema.IndexOf(cols, schema.ColHarvestAreaTotal)

	if yearIdx < 0 {
		if src.Year <= 0 {
			return nil, diags, fmt.Errorf("%w: %s", schema.ErrMissingColumn, schema.ColYear)
		}
		diags = append(diags, schema.Diagnostic{
			Kind: schema.KindYearFallback, Severity: schema.SeverityWarning, Source: src.Name, Column: schema.ColYear,
			Message: fmt.Sprintf("no year column; using %d", src.Year),
		})
	}

	records := f.DF.Records()
	out := make([]model.ClusterRecord, 0, len(records))
	coerced, skipped := 0, 0
	for _, rec := range records[1:] {
		region := cell(rec, regionIdx)
		if region == "" {
			skipped++
			continue
		}
		year := src.Year
		if yearIdx >= 0 {
			y, ok := tables.ParseYear(cell(rec, yearIdx))
			if !ok {
				y = src.Year
				coerced++
			}
			year = y
		}
		prod, pc := tables.CoerceInt(cell(rec, prodIdx))
		area, ac := tables.CoerceInt(cell(rec, areaIdx))
		label, lc := tables.CoerceInt(cell(rec, labelIdx))
		coerced += countTrue(pc, ac, lc)
		out = append(out, model.ClusterRecord{
			Region:           region,
			Year:             year,
			ProductionTotal:  prod,
			HarvestAreaTotal: area,
			Cluster:          model.ClusterLabel(label),
			Source:           src.Name,
		})
	}
	if coerced > 0 {
		diags = append(diags, schema.Diagnostic{
			Kind: schema.KindCoercedValues, Severity: schema.SeverityWarning, Source: src.Name,
			Message: fmt.Sprintf("%d cells coerced to 0", coerced),
		})
	}
	if skipped > 0 {
		diags = append(diags, schema.Diagnostic{
			Kind: schema.KindInvalidRow, Severity: schema.SeverityWarning, Source: src.Name,
			Message: fmt.Sprintf("%d rows without region skipped", skipped),
		})
	}
	return out, diags, nil
}

func cell(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

func countTrue(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
