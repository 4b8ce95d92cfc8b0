package insights

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vinodismyname/biofarmaka/config"
	"github.com/vinodismyname/biofarmaka/internal/ingest"
	"github.com/vinodismyname/biofarmaka/internal/model"
)

var (
	// ErrNoData indicates a query matched zero rows.
	ErrNoData = errors.New("insights: no data for this selection")
	// ErrClusterUnavailable indicates no cluster source loaded.
	ErrClusterUnavailable = errors.New("insights: cluster data unavailable")
	// ErrUnknownYear indicates the selected year is absent from the data.
	ErrUnknownYear = errors.New("insights: unknown year")
	// ErrUnknownRegion indicates a selected region is absent from the data.
	ErrUnknownRegion = errors.New("insights: unknown region")
	// ErrUnknownCrop indicates the selected crop is not a paired crop.
	ErrUnknownCrop = errors.New("insights: unknown crop")
)

// YoY reasons reported when the delta is absent.
const (
	ReasonNoPriorData    = "no_prior_data"
	ReasonZeroPriorTotal = "zero_prior_total"
)

// Engine answers aggregation and ranking queries over one dataset snapshot.
// It never mutates the snapshot; every call recomputes from its records.
type Engine struct {
	ds   *ingest.Dataset
	topN int
}

// NewEngine binds an engine to a snapshot. topN <= 0 uses the default of 10.
func NewEngine(ds *ingest.Dataset, topN int) *Engine {
	if topN <= 0 {
		topN = config.DefaultTopN
	}
	return &Engine{ds: ds, topN: topN}
}

// Dataset returns the snapshot the engine reads.
func (e *Engine) Dataset() *ingest.Dataset { return e.ds }

// Totals is the yearly aggregate across all regions and crops.
type Totals struct {
	Year              int      `json:"year"`
	ProductionKg      float64  `json:"total_production_kg"`
	HarvestArea       float64  `json:"total_harvest_area"`
	MeanEfficiency    *float64 `json:"mean_efficiency_kg_per_area"`
	Records           int      `json:"records"`
	RegionsWithOutput int      `json:"regions_with_output"`
}

// YearOverYear is the production change against the previous year. DeltaPct
// is nil when the previous year has no records or a zero total.
type YearOverYear struct {
	Year         int      `json:"year"`
	PreviousYear int      `json:"previous_year"`
	Current      float64  `json:"current_total_kg"`
	Previous     *float64 `json:"previous_total_kg"`
	DeltaPct     *float64 `json:"delta_pct"`
	AbsentReason string   `json:"absent_reason,omitempty"`
}

// CropSummary is one row of the crop comparison table.
type CropSummary struct {
	Crop           string  `json:"crop"`
	ProductionKg   float64 `json:"total_production_kg"`
	HarvestArea    float64 `json:"total_harvest_area"`
	MeanEfficiency float64 `json:"mean_efficiency_kg_per_area"`
	Records        int     `json:"records"`
}

// RankedCrop is one entry of a production ranking.
type RankedCrop struct {
	Rank         int     `json:"rank"`
	Crop         string  `json:"crop"`
	ProductionKg float64 `json:"total_production_kg"`
}

// TrendPoint is the production of one crop in one (year, region).
type TrendPoint struct {
	Year         int     `json:"year"`
	Region       string  `json:"region"`
	ProductionKg float64 `json:"production_kg"`
}

// Selectors lists the selection values present in the snapshot.
type Selectors struct {
	Years               []int    `json:"years"`
	Regions             []string `json:"regions"`
	Crops               []string `json:"crops"`
	DefaultTrendRegions []string `json:"default_trend_regions"`
	ClusterAvailable    bool     `json:"cluster_available"`
	ClusterYears        []int    `json:"cluster_years,omitempty"`
	ClusterRegions      []string `json:"cluster_regions,omitempty"`
}

// Selectors returns the available years, regions and crops. The default
// trend selection is the first two regions.
func (e *Engine) Selectors() Selectors {
	out := Selectors{
		Years:            e.ds.Years(),
		Regions:          e.ds.Regions(),
		Crops:            e.ds.CropNames(),
		ClusterAvailable: e.ds.ClusterAvailable(),
	}
	n := 2
	if len(out.Regions) < n {
		n = len(out.Regions)
	}
	out.DefaultTrendRegions = append([]string{}, out.Regions[:n]...)

	years := map[int]struct{}{}
	regions := map[string]struct{}{}
	for _, c := range e.ds.Clusters {
		years[c.Year] = struct{}{}
		regions[c.Region] = struct{}{}
	}
	for y := range years {
		out.ClusterYears = append(out.ClusterYears, y)
	}
	sort.Ints(out.ClusterYears)
	for r := range regions {
		out.ClusterRegions = append(out.ClusterRegions, r)
	}
	sort.Strings(out.ClusterRegions)
	return out
}

func (e *Engine) checkYear(year int) error {
	if !e.ds.HasYear(year) {
		return fmt.Errorf("%w: %d", ErrUnknownYear, year)
	}
	return nil
}

func (e *Engine) checkRegion(region string) error {
	if !e.ds.HasRegion(region) {
		return fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	return nil
}

func (e *Engine) recordsOf(year int, region string) []model.Record {
	return e.ds.Records.Filter(func(r model.Record) bool {
		return r.Year == year && (region == "" || r.Region == region)
	})
}

// YearlyTotals sums production and area and averages efficiency for a year.
// MeanEfficiency is nil when the year has no records.
func (e *Engine) YearlyTotals(year int) (Totals, error) {
	out := Totals{Year: year}
	if err := e.checkYear(year); err != nil {
		return out, err
	}
	recs := e.recordsOf(year, "")
	var effSum float64
	producing := map[string]struct{}{}
	for _, r := range recs {
		out.ProductionKg += r.ProductionKg
		out.HarvestArea += r.HarvestArea
		effSum += r.Efficiency
		if r.ProductionKg > 0 {
			producing[r.Region] = struct{}{}
		}
	}
	out.Records = len(recs)
	out.RegionsWithOutput = len(producing)
	if len(recs) > 0 {
		mean := round3(effSum / float64(len(recs)))
		out.MeanEfficiency = &mean
	}
	out.ProductionKg = round2(out.ProductionKg)
	out.HarvestArea = round2(out.HarvestArea)
	return out, nil
}

// Delta returns (cur - prev) / prev * 100. It reports an absent delta with a
// reason when the previous total is missing or zero.
func Delta(cur float64, prev *float64) (*float64, string) {
	if prev == nil {
		return nil, ReasonNoPriorData
	}
	if *prev == 0 {
		return nil, ReasonZeroPriorTotal
	}
	d := round2((cur - *prev) / *prev * 100)
	return &d, ""
}

// YoY compares a year's total production with the previous calendar year.
func (e *Engine) YoY(year int) (YearOverYear, error) {
	out := YearOverYear{Year: year, PreviousYear: year - 1}
	if err := e.checkYear(year); err != nil {
		return out, err
	}
	out.Current = round2(sumProduction(e.recordsOf(year, "")))
	if prevRecs := e.recordsOf(year-1, ""); len(prevRecs) > 0 {
		p := round2(sumProduction(prevRecs))
		out.Previous = &p
	}
	out.DeltaPct, out.AbsentReason = Delta(out.Current, out.Previous)
	return out, nil
}

// CropComparison groups a year's records by crop, crops ascending.
func (e *Engine) CropComparison(year int) ([]CropSummary, error) {
	if err := e.checkYear(year); err != nil {
		return nil, err
	}
	recs := e.recordsOf(year, "")
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: year %d", ErrNoData, year)
	}
	idx := map[string]int{}
	var out []CropSummary
	for _, r := range recs {
		i, ok := idx[r.Crop]
		if !ok {
			i = len(out)
			idx[r.Crop] = i
			out = append(out, CropSummary{Crop: r.Crop})
		}
		out[i].ProductionKg += r.ProductionKg
		out[i].HarvestArea += r.HarvestArea
		out[i].MeanEfficiency += r.Efficiency
		out[i].Records++
	}
	for i := range out {
		out[i].MeanEfficiency = round3(out[i].MeanEfficiency / float64(out[i].Records))
		out[i].ProductionKg = round2(out[i].ProductionKg)
		out[i].HarvestArea = round2(out[i].HarvestArea)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Crop < out[j].Crop })
	return out, nil
}

// RankCrops ranks crops by total production within a year and optional
// region. Zero-production crops are dropped; ties share a rank and the next
// distinct total takes the following rank. At most TopN entries are returned
// ordered by rank, then crop name.
func (e *Engine) RankCrops(year int, region string) ([]RankedCrop, error) {
	if err := e.checkYear(year); err != nil {
		return nil, err
	}
	if region != "" {
		if err := e.checkRegion(region); err != nil {
			return nil, err
		}
	}
	totals := map[string]float64{}
	for _, r := range e.recordsOf(year, region) {
		totals[r.Crop] += r.ProductionKg
	}
	ranked := DenseRank(totals)
	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: no crop produced in %d", ErrNoData, year)
	}
	if len(ranked) > e.topN {
		ranked = ranked[:e.topN]
	}
	return ranked, nil
}

// DenseRank orders positive totals descending and assigns dense ranks.
// Ties are decided on the exact sums; ProductionKg is rounded for output.
func DenseRank(totals map[string]float64) []RankedCrop {
	type total struct {
		crop string
		sum  float64
	}
	sums := make([]total, 0, len(totals))
	for crop, v := range totals {
		if v <= 0 {
			continue
		}
		sums = append(sums, total{crop: crop, sum: v})
	}
	sort.Slice(sums, func(i, j int) bool {
		if sums[i].sum != sums[j].sum {
			return sums[i].sum > sums[j].sum
		}
		return sums[i].crop < sums[j].crop
	})
	out := make([]RankedCrop, len(sums))
	rank := 0
	for i, s := range sums {
		if i == 0 || s.sum != sums[i-1].sum {
			rank++
		}
		out[i] = RankedCrop{Rank: rank, Crop: s.crop, ProductionKg: round2(s.sum)}
	}
	return out
}

// ClusterHistory returns the cluster records of a region sorted by year.
func (e *Engine) ClusterHistory(region string) ([]model.ClusterRecord, error) {
	if !e.ds.ClusterAvailable() {
		return nil, ErrClusterUnavailable
	}
	var out []model.ClusterRecord
	for _, c := range e.ds.Clusters {
		if c.Region == region {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no cluster history for %q", ErrNoData, region)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

// CropTrend sums one crop's production per (year, region) across all years.
// Empty regions selects the default trend regions. Points are ordered by
// year, then by the order of regions.
func (e *Engine) CropTrend(crop string, regions []string) ([]TrendPoint, error) {
	if !e.ds.HasCrop(crop) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCrop, crop)
	}
	if len(regions) == 0 {
		regions = e.Selectors().DefaultTrendRegions
	}
	order := make(map[string]int, len(regions))
	for i, r := range regions {
		if err := e.checkRegion(r); err != nil {
			return nil, err
		}
		if _, dup := order[r]; !dup {
			order[r] = i
		}
	}

	type key struct {
		year   int
		region string
	}
	sums := map[key]float64{}
	for _, r := range e.ds.Records.Filter(func(r model.Record) bool {
		_, ok := order[r.Region]
		return ok && r.Crop == crop
	}) {
		sums[key{r.Year, r.Region}] += r.ProductionKg
	}
	if len(sums) == 0 {
		return nil, fmt.Errorf("%w: %s in selected regions", ErrNoData, crop)
	}
	out := make([]TrendPoint, 0, len(sums))
	for k, v := range sums {
		out = append(out, TrendPoint{Year: k.year, Region: k.region, ProductionKg: round2(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return order[out[i].Region] < order[out[j].Region]
	})
	return out, nil
}

func sumProduction(recs []model.Record) float64 {
	var s float64
	for _, r := range recs {
		s += r.ProductionKg
	}
	return s
}
