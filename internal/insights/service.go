package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vinodismyname/biofarmaka/internal/ingest"
	"github.com/vinodismyname/biofarmaka/internal/model"
	"github.com/vinodismyname/biofarmaka/internal/reshape"
	"github.com/vinodismyname/biofarmaka/internal/runtime"
	"github.com/vinodismyname/biofarmaka/internal/schema"
	"github.com/vinodismyname/biofarmaka/pkg/pagination"
)

// Snapshots yields the current dataset snapshot, loading it when needed.
type Snapshots interface {
	Current(ctx context.Context) (*ingest.Dataset, error)
}

// Service resolves the current snapshot and runs engine queries for the MCP
// and HTTP surfaces.
type Service struct {
	Snapshots Snapshots
	Limits    runtime.Limits
}

// NewService constructs a Service over a snapshot source.
func NewService(s Snapshots, limits runtime.Limits) *Service {
	return &Service{Snapshots: s, Limits: limits}
}

// Meta identifies the snapshot a response was computed from.
type Meta struct {
	SnapshotID string    `json:"snapshot_id"`
	LoadedAt   time.Time `json:"loaded_at"`
}

func metaOf(ds *ingest.Dataset) Meta {
	return Meta{SnapshotID: ds.ID, LoadedAt: ds.LoadedAt}
}

func (s *Service) engine(ctx context.Context, topN int) (*Engine, error) {
	ds, err := s.Snapshots.Current(ctx)
	if err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = s.Limits.TopN
	}
	return NewEngine(ds, topN), nil
}

// Engine returns an engine over the current snapshot with the configured TopN.
func (s *Service) Engine(ctx context.Context) (*Engine, error) {
	return s.engine(ctx, 0)
}

// SelectorsOutput lists selection values plus load diagnostics.
type SelectorsOutput struct {
	Selectors
	Stats          reshape.Stats       `json:"stats"`
	ClusterSources []string            `json:"cluster_sources"`
	Diagnostics    []schema.Diagnostic `json:"diagnostics"`
	Meta           Meta                `json:"meta"`
}

// ListSelectors returns available years, regions and crops.
func (s *Service) ListSelectors(ctx context.Context) (SelectorsOutput, error) {
	e, err := s.engine(ctx, 0)
	if err != nil {
		return SelectorsOutput{}, err
	}
	ds := e.Dataset()
	return SelectorsOutput{
		Selectors:      e.Selectors(),
		Stats:          ds.Stats,
		ClusterSources: append([]string{}, ds.ClusterSources...),
		Diagnostics:    append([]schema.Diagnostic{}, ds.Diagnostics...),
		Meta:           metaOf(ds),
	}, nil
}

// YearInput selects one year.
type YearInput struct {
	Year int `json:"year" validate:"required,year" jsonschema_description:"Year present in the data (see list_selectors)"`
}

// YearlySummaryOutput holds totals and the year-over-year change.
type YearlySummaryOutput struct {
	Totals Totals       `json:"totals"`
	YoY    YearOverYear `json:"yoy"`
	Meta   Meta         `json:"meta"`
}

// YearlySummary returns a year's totals and its production YoY delta.
func (s *Service) YearlySummary(ctx context.Context, in YearInput) (YearlySummaryOutput, error) {
	var out YearlySummaryOutput
	e, err := s.engine(ctx, 0)
	if err != nil {
		return out, err
	}
	out.Meta = metaOf(e.Dataset())
	if out.Totals, err = e.YearlyTotals(in.Year); err != nil {
		return out, err
	}
	if out.YoY, err = e.YoY(in.Year); err != nil {
		return out, err
	}
	return out, nil
}

// CropComparisonOutput is the per-crop table of a year.
type CropComparisonOutput struct {
	Year  int           `json:"year"`
	Crops []CropSummary `json:"crops"`
	Meta  Meta          `json:"meta"`
}

// CropComparison returns per-crop totals and mean efficiency for a year.
func (s *Service) CropComparison(ctx context.Context, in YearInput) (CropComparisonOutput, error) {
	out := CropComparisonOutput{Year: in.Year}
	e, err := s.engine(ctx, 0)
	if err != nil {
		return out, err
	}
	out.Meta = metaOf(e.Dataset())
	out.Crops, err = e.CropComparison(in.Year)
	return out, err
}

// RankCropsInput selects a ranking scope.
type RankCropsInput struct {
	Year   int    `json:"year" validate:"required,year" jsonschema_description:"Year present in the data"`
	Region string `json:"region,omitempty" validate:"omitempty,selector" jsonschema_description:"Optional region; omit to rank across all regions"`
	TopN   int    `json:"top_n,omitempty" validate:"omitempty,min=1,max=100" jsonschema_description:"Entries to return (default 10)"`
}

// RankCropsOutput is a dense production ranking.
type RankCropsOutput struct {
	Year    int          `json:"year"`
	Region  string       `json:"region,omitempty"`
	Ranking []RankedCrop `json:"ranking"`
	Meta    Meta         `json:"meta"`
}

// RankCrops ranks crops by total production within the scope.
func (s *Service) RankCrops(ctx context.Context, in RankCropsInput) (RankCropsOutput, error) {
	out := RankCropsOutput{Year: in.Year, Region: strings.TrimSpace(in.Region)}
	e, err := s.engine(ctx, in.TopN)
	if err != nil {
		return out, err
	}
	out.Meta = metaOf(e.Dataset())
	out.Ranking, err = e.RankCrops(in.Year, out.Region)
	return out, err
}

// RegionInput selects one region.
type RegionInput struct {
	Region string `json:"region" validate:"required,selector" jsonschema_description:"Region identifier as it appears in cluster data"`
}

// ClusterHistoryOutput is a region's cluster records by year.
type ClusterHistoryOutput struct {
	Region  string                `json:"region"`
	History []model.ClusterRecord `json:"history"`
	Meta    Meta                  `json:"meta"`
}

// ClusterHistory returns the cluster trajectory of a region.
func (s *Service) ClusterHistory(ctx context.Context, in RegionInput) (ClusterHistoryOutput, error) {
	out := ClusterHistoryOutput{Region: strings.TrimSpace(in.Region)}
	e, err := s.engine(ctx, 0)
	if err != nil {
		return out, err
	}
	out.Meta = metaOf(e.Dataset())
	out.History, err = e.ClusterHistory(out.Region)
	return out, err
}

// ClusterDistributionOutput wraps a year's cluster distribution.
type ClusterDistributionOutput struct {
	ClusterDistribution
	Meta Meta `json:"meta"`
}

// ClusterDistribution returns a year's cluster rows and per-label stats.
func (s *Service) ClusterDistribution(ctx context.Context, in YearInput) (ClusterDistributionOutput, error) {
	var out ClusterDistributionOutput
	e, err := s.engine(ctx, 0)
	if err != nil {
		return out, err
	}
	out.Meta = metaOf(e.Dataset())
	out.ClusterDistribution, err = e.ClusterDistribution(in.Year)
	return out, err
}

// CropTrendInput selects a crop and regions for a trend.
type CropTrendInput struct {
	Crop    string   `json:"crop" validate:"required,selector" jsonschema_description:"Crop name (see list_selectors)"`
	Regions []string `json:"regions,omitempty" validate:"omitempty,max=20,dive,selector" jsonschema_description:"Regions to compare; defaults to the first two regions"`
}

// CropTrendOutput is production per (year, region) for one crop.
type CropTrendOutput struct {
	Crop    string       `json:"crop"`
	Regions []string     `json:"regions"`
	Points  []TrendPoint `json:"points"`
	Meta    Meta         `json:"meta"`
}

// CropTrend returns a crop's production trend for the selected regions.
func (s *Service) CropTrend(ctx context.Context, in CropTrendInput) (CropTrendOutput, error) {
	out := CropTrendOutput{Crop: strings.TrimSpace(in.Crop)}
	e, err := s.engine(ctx, 0)
	if err != nil {
		return out, err
	}
	out.Meta = metaOf(e.Dataset())
	out.Regions = in.Regions
	if len(out.Regions) == 0 {
		out.Regions = e.Selectors().DefaultTrendRegions
	}
	out.Points, err = e.CropTrend(out.Crop, out.Regions)
	return out, err
}

// ConcentrationInput selects the scope of a concentration analysis.
type ConcentrationInput struct {
	Year   int    `json:"year" validate:"required,year" jsonschema_description:"Year present in the data"`
	Region string `json:"region,omitempty" validate:"omitempty,selector" jsonschema_description:"Optional region"`
	TopN   int    `json:"top_n,omitempty" validate:"omitempty,min=1,max=10" jsonschema_description:"Top-N crops to report and to compute Top-N share (default 5)"`
}

// ConcentrationOutput wraps a concentration result.
type ConcentrationOutput struct {
	Concentration
	Meta Meta `json:"meta"`
}

// Concentration returns Top-N crop share and HHI for a scope.
func (s *Service) Concentration(ctx context.Context, in ConcentrationInput) (ConcentrationOutput, error) {
	var out ConcentrationOutput
	e, err := s.engine(ctx, 0)
	if err != nil {
		return out, err
	}
	out.Meta = metaOf(e.Dataset())
	out.Concentration, err = e.Concentration(in.Year, strings.TrimSpace(in.Region), in.TopN)
	return out, err
}

// CompositionShiftInput selects the two years to compare.
type CompositionShiftInput struct {
	BaselineYear   int     `json:"baseline_year,omitempty" validate:"omitempty,year" jsonschema_description:"Baseline year; with current_year omitted, the latest two years are used"`
	CurrentYear    int     `json:"current_year,omitempty" validate:"omitempty,year" jsonschema_description:"Current year"`
	TopN           int     `json:"top_n,omitempty" validate:"omitempty,min=1,max=20" jsonschema_description:"Top movers to return; remaining combined into 'Other' (default 5)"`
	MixThresholdPP float64 `json:"mix_threshold_pp,omitempty" validate:"omitempty,gt=0,lte=100" jsonschema_description:"Highlight threshold in percentage points (default 5)"`
}

// CompositionShiftOutput wraps a composition shift result.
type CompositionShiftOutput struct {
	CompositionShift
	Meta Meta `json:"meta"`
}

// CompositionShift returns crop mix shifts between two years.
func (s *Service) CompositionShift(ctx context.Context, in CompositionShiftInput) (CompositionShiftOutput, error) {
	var out CompositionShiftOutput
	e, err := s.engine(ctx, 0)
	if err != nil {
		return out, err
	}
	out.Meta = metaOf(e.Dataset())
	out.CompositionShift, err = e.CompositionShift(in.BaselineYear, in.CurrentYear, in.TopN, in.MixThresholdPP)
	return out, err
}

// PreviewTableInput pages through one of the snapshot tables. A cursor
// carries table, filters and offset and takes precedence.
type PreviewTableInput struct {
	Table    string `json:"table,omitempty" validate:"required_without=Cursor,omitempty,table_name" jsonschema_description:"wide, clusters or records"`
	Region   string `json:"region,omitempty" validate:"omitempty,selector" jsonschema_description:"Optional region filter"`
	Crop     string `json:"crop,omitempty" validate:"omitempty,selector" jsonschema_description:"Optional crop filter (records only)"`
	Year     int    `json:"year,omitempty" validate:"omitempty,year" jsonschema_description:"Optional year filter"`
	PageSize int    `json:"page_size,omitempty" validate:"omitempty,min=1" jsonschema_description:"Rows per page (bounded by server limits)"`
	Cursor   string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque cursor from a previous page"`
}

// PreviewTableOutput is one page plus the cursor for the next.
type PreviewTableOutput struct {
	Page
	NextCursor string `json:"next_cursor,omitempty"`
	Meta       Meta   `json:"meta"`
}

// PreviewTable returns one page of a snapshot table.
func (s *Service) PreviewTable(ctx context.Context, in PreviewTableInput) (PreviewTableOutput, error) {
	var out PreviewTableOutput
	e, err := s.engine(ctx, 0)
	if err != nil {
		return out, err
	}
	ds := e.Dataset()
	out.Meta = metaOf(ds)

	cur := pagination.Cursor{
		Sid: ds.ID,
		T:   pagination.Table(strings.TrimSpace(in.Table)),
		Ps:  in.PageSize,
		Rg:  strings.TrimSpace(in.Region),
		Cr:  strings.TrimSpace(in.Crop),
		Yr:  in.Year,
	}
	if tok := strings.TrimSpace(in.Cursor); tok != "" {
		c, derr := pagination.DecodeCursor(tok)
		if derr != nil {
			return out, fmt.Errorf("%w: %w", ErrCursorStale, derr)
		}
		if c.Sid != ds.ID {
			return out, ErrCursorStale
		}
		cur = *c
	}
	if cur.Ps <= 0 {
		cur.Ps = s.Limits.PreviewRowLimit
	}
	if s.Limits.MaxPageSize > 0 && cur.Ps > s.Limits.MaxPageSize {
		cur.Ps = s.Limits.MaxPageSize
	}

	out.Page, err = e.Page(cur.T, RowFilter{Region: cur.Rg, Crop: cur.Cr, Year: cur.Yr}, cur.Off, cur.Ps)
	if err != nil {
		return out, err
	}
	if next := pagination.NextOffset(cur.Off, len(out.Rows)); next < out.Total {
		cur.Off = next
		cur.Iat = 0
		if out.NextCursor, err = pagination.EncodeCursor(cur); err != nil {
			return out, fmt.Errorf("insights: encode cursor: %w", err)
		}
	}
	return out, nil
}
