package ingest

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vinodismyname/biofarmaka/internal/model"
	"github.com/vinodismyname/biofarmaka/internal/reshape"
	"github.com/vinodismyname/biofarmaka/internal/schema"
	"github.com/vinodismyname/biofarmaka/internal/tables"
)

// Dataset is one read-only snapshot of the pipeline output: the filtered
// wide table, the unified cluster table and the long-form records.
type Dataset struct {
	ID          string
	Fingerprint string
	LoadedAt    time.Time

	Wide           model.WideTable
	Clusters       []model.ClusterRecord
	ClusterSources []string
	Records        reshape.Table
	Crops          schema.CropMap
	Stats          reshape.Stats
	Diagnostics    []schema.Diagnostic

	years   []int
	regions []string
}

// Build runs the junk filter, typed wide conversion and reshape over a load.
func Build(ld *Loaded, now time.Time) (*Dataset, error) {
	if ld == nil || ld.Primary == nil {
		return nil, fmt.Errorf("%w: nothing loaded", ErrPrimaryUnavailable)
	}
	filtered := &tables.Frame{
		Name: ld.Primary.Name,
		Path: ld.Primary.Path,
		DF:   tables.DropJunkRows(ld.Primary.DF, schema.ColRegion),
	}
	wide, wideDiags, err := tables.ToWide(filtered)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrimaryUnavailable, err)
	}

	crops, cropDiags := schema.DiscoverCrops(wide.Columns)
	for i := range cropDiags {
		cropDiags[i].Source = ld.Primary.Name
	}
	records, stats := reshape.Reshape(wide, crops)

	ds := &Dataset{
		ID:             uuid.NewString(),
		LoadedAt:       now,
		Wide:           wide,
		Clusters:       ld.Clusters,
		ClusterSources: ld.ClusterSources,
		Records:        records,
		Crops:          crops,
		Stats:          stats,
	}
	ds.Diagnostics = append(ds.Diagnostics, ld.Diagnostics...)
	ds.Diagnostics = append(ds.Diagnostics, wideDiags...)
	ds.Diagnostics = append(ds.Diagnostics, cropDiags...)
	if stats.CoercedCells > 0 {
		ds.Diagnostics = append(ds.Diagnostics, schema.Diagnostic{
			Kind: schema.KindCoercedValues, Severity: schema.SeverityWarning, Source: ld.Primary.Name,
			Message: fmt.Sprintf("%d production/area cells coerced to 0", stats.CoercedCells),
		})
	}
	if n := duplicateKeys(wide); n > 0 {
		ds.Diagnostics = append(ds.Diagnostics, schema.Diagnostic{
			Kind: schema.KindDuplicateKey, Severity: schema.SeverityWarning, Source: ld.Primary.Name,
			Message: fmt.Sprintf("%d repeated (region, year) rows kept as separate records", n),
		})
	}
	ds.index()
	return ds, nil
}

func (d *Dataset) index() {
	years := map[int]struct{}{}
	regions := map[string]struct{}{}
	for _, r := range d.Wide.Rows {
		years[r.Year] = struct{}{}
		regions[r.Region] = struct{}{}
	}
	d.years = make([]int, 0, len(years))
	for y := range years {
		d.years = append(d.years, y)
	}
	sort.Ints(d.years)
	d.regions = make([]string, 0, len(regions))
	for r := range regions {
		d.regions = append(d.regions, r)
	}
	sort.Strings(d.regions)
}

// ClusterAvailable reports whether any cluster source loaded.
func (d *Dataset) ClusterAvailable() bool { return d.Clusters != nil }

// Years returns the distinct years of the filtered wide table, ascending.
func (d *Dataset) Years() []int { return append([]int(nil), d.years...) }

// Regions returns the distinct regions of the filtered wide table, ascending.
func (d *Dataset) Regions() []string { return append([]string(nil), d.regions...) }

// CropNames returns the paired crop names, ascending.
func (d *Dataset) CropNames() []string { return d.Crops.Names() }

// HasYear reports whether year is present in the wide table.
func (d *Dataset) HasYear(year int) bool {
	i := sort.SearchInts(d.years, year)
	return i < len(d.years) && d.years[i] == year
}

// HasRegion reports whether region is present in the wide table.
func (d *Dataset) HasRegion(region string) bool {
	i := sort.SearchStrings(d.regions, region)
	return i < len(d.regions) && d.regions[i] == region
}

// HasCrop reports whether crop is a paired crop.
func (d *Dataset) HasCrop(crop string) bool {
	_, ok := d.Crops[crop]
	return ok
}

func duplicateKeys(w model.WideTable) int {
	type key struct {
		region string
		year   int
	}
	seen := make(map[key]struct{}, len(w.Rows))
	dups := 0
	for _, r := range w.Rows {
		k := key{r.Region, r.Year}
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}
