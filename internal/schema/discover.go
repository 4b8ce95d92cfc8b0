package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNoClusterColumn indicates a cluster source has no column containing "Cluster".
	ErrNoClusterColumn = errors.New("schema: no cluster label column")
	// ErrMissingColumn indicates a required identifier column is absent.
	ErrMissingColumn = errors.New("schema: required column missing")
)

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic kinds emitted by discovery and loading.
const (
	KindSchemaMismatch      = "schema_mismatch"
	KindDuplicateColumn     = "duplicate_column"
	KindClusterLabelNotLast = "cluster_label_not_last"
	KindSourceUnavailable   = "source_unavailable"
	KindInvalidRow          = "invalid_row"
	KindCoercedValues       = "coerced_values"
	KindYearFallback        = "year_fallback"
	KindDuplicateKey        = "duplicate_key"
)

// Diagnostic is a structured, non-fatal finding about source data.
type Diagnostic struct {
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Source   string   `json:"source,omitempty"`
	Column   string   `json:"column,omitempty"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	parts := []string{string(d.Severity), d.Kind}
	if d.Source != "" {
		parts = append(parts, d.Source)
	}
	if d.Column != "" {
		parts = append(parts, d.Column)
	}
	return strings.Join(parts, "/") + ": " + d.Message
}

// CropColumns names the paired production and harvest-area columns of a crop.
type CropColumns struct {
	Production  string `json:"production"`
	HarvestArea string `json:"harvest_area"`
}

// CropMap maps crop name to its paired columns.
type CropMap map[string]CropColumns

// Names returns crop names in ascending order.
func (m CropMap) Names() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// reservedCrops are suffixes that never denote a crop. Names carrying '#'
// are positional copies of repeated columns.
var reservedCrops = map[string]struct{}{"Total": {}}

// DiscoverCrops pairs Production_<crop> and HarvestArea_<crop> columns.
// Crops lacking either side are excluded and reported as schema mismatches.
// Repeated columns keep their first occurrence.
func DiscoverCrops(columns []string) (CropMap, []Diagnostic) {
	var diags []Diagnostic
	prod := map[string]string{}
	area := map[string]string{}
	seen := map[string]struct{}{}

	for _, col := range columns {
		if _, dup := seen[col]; dup {
			diags = append(diags, Diagnostic{
				Kind: KindDuplicateColumn, Severity: SeverityWarning, Column: col,
				Message: "column appears more than once after normalization; first occurrence used",
			})
			continue
		}
		seen[col] = struct{}{}

		switch {
		case strings.HasPrefix(col, ProductionPrefix):
			crop := strings.TrimPrefix(col, ProductionPrefix)
			if validCrop(crop) {
				prod[crop] = col
			}
		case strings.HasPrefix(col, HarvestAreaPrefix):
			crop := strings.TrimPrefix(col, HarvestAreaPrefix)
			if validCrop(crop) {
				area[crop] = col
			}
		}
	}

	crops := CropMap{}
	for crop, pc := range prod {
		ac, ok := area[crop]
		if !ok {
			diags = append(diags, Diagnostic{
				Kind: KindSchemaMismatch, Severity: SeverityWarning, Column: pc,
				Message: fmt.Sprintf("crop %q has production but no harvest-area column; excluded", crop),
			})
			continue
		}
		crops[crop] = CropColumns{Production: pc, HarvestArea: ac}
	}
	for crop, ac := range area {
		if _, ok := prod[crop]; !ok {
			diags = append(diags, Diagnostic{
				Kind: KindSchemaMismatch, Severity: SeverityWarning, Column: ac,
				Message: fmt.Sprintf("crop %q has harvest-area but no production column; excluded", crop),
			})
		}
	}
	sort.SliceStable(diags, func(i, j int) bool { return diags[i].Column < diags[j].Column })
	return crops, diags
}

func validCrop(crop string) bool {
	if strings.TrimSpace(crop) == "" || strings.Contains(crop, "#") {
		return false
	}
	_, reserved := reservedCrops[crop]
	return !reserved
}

// DetectClusterColumn returns the index of the last column whose name
// contains "Cluster". A match that is not the final column is accepted
// with a warning diagnostic.
func DetectClusterColumn(columns []string) (int, *Diagnostic, error) {
	idx := -1
	for i, col := range columns {
		if strings.Contains(col, ColCluster) {
			idx = i
		}
	}
	if idx < 0 {
		return -1, nil, ErrNoClusterColumn
	}
	if idx != len(columns)-1 {
		return idx, &Diagnostic{
			Kind: KindClusterLabelNotLast, Severity: SeverityWarning, Column: columns[idx],
			Message: fmt.Sprintf("cluster label column %q is not the last column (position %d of %d)", columns[idx], idx+1, len(columns)),
		}, nil
	}
	return idx, nil, nil
}

// IndexOf returns the position of name in columns or -1.
func IndexOf(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

// RequireColumns returns ErrMissingColumn naming the first absent column.
func RequireColumns(columns []string, names ...string) error {
	for _, n := range names {
		if IndexOf(columns, n) < 0 {
			return fmt.Errorf("%w: %s", ErrMissingColumn, n)
		}
	}
	return nil
}
