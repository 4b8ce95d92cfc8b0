package model

// ClusterLabel is the potential tier assigned to a region-year by an
// external classification process.
type ClusterLabel int

const (
	ClusterLow    ClusterLabel = 0
	ClusterMedium ClusterLabel = 1
	ClusterHigh   ClusterLabel = 2
)

func (c ClusterLabel) String() string {
	switch c {
	case ClusterLow:
		return "low"
	case ClusterMedium:
		return "medium"
	case ClusterHigh:
		return "high"
	default:
		return "unknown"
	}
}

// WideRow is one (region, year) row of the primary table with its raw cells
// aligned to WideTable.Columns.
type WideRow struct {
	Region string
	Year   int
	Values []string
}

// WideTable is the typed, post-filter primary table.
type WideTable struct {
	Columns []string
	Rows    []WideRow
}

// Cell returns the raw value of column idx for row, or "" when out of range.
func (w WideTable) Cell(row WideRow, idx int) string {
	if idx < 0 || idx >= len(row.Values) {
		return ""
	}
	return row.Values[idx]
}

// Records renders the table as a header row followed by data rows.
func (w WideTable) Records() [][]string {
	out := make([][]string, 0, len(w.Rows)+1)
	out = append(out, append([]string(nil), w.Columns...))
	for _, r := range w.Rows {
		out = append(out, append([]string(nil), r.Values...))
	}
	return out
}

// ClusterRecord is one row of the unified cluster table.
type ClusterRecord struct {
	Region           string       `json:"region"`
	Year             int          `json:"year"`
	ProductionTotal  int64        `json:"Production_Total"`
	HarvestAreaTotal int64        `json:"HarvestArea_Total"`
	Cluster          ClusterLabel `json:"Cluster"`
	Source           string       `json:"source"`
}

// Record is one long-form (region, year, crop) row.
type Record struct {
	Region       string  `json:"region"`
	Year         int     `json:"year"`
	Crop         string  `json:"crop"`
	ProductionKg float64 `json:"Production_Kg"`
	HarvestArea  float64 `json:"HarvestArea"`
	Efficiency   float64 `json:"Efficiency_Kg_per_Area"`
}
