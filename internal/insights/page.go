package insights

import (
	"fmt"
	"strconv"

	"github.com/vinodismyname/biofarmaka/internal/model"
	"github.com/vinodismyname/biofarmaka/internal/schema"
	"github.com/vinodismyname/biofarmaka/pkg/pagination"
)

// RowFilter narrows a table preview. Zero fields match everything.
type RowFilter struct {
	Region string
	Crop   string
	Year   int
}

// Page is a window of one table rendered as strings.
type Page struct {
	Table   pagination.Table `json:"table"`
	Columns []string         `json:"columns"`
	Rows    [][]string       `json:"rows"`
	Total   int              `json:"total"`
	Offset  int              `json:"offset"`
}

// ClusterColumns is the header of the unified cluster table.
var ClusterColumns = []string{schema.ColRegion, schema.ColYear, schema.ColProductionTotal, schema.ColHarvestAreaTotal, schema.ColCluster, "Source"}

// RecordColumns is the header of the long-form table.
var RecordColumns = []string{schema.ColRegion, schema.ColYear, "Crop", "Production_Kg", "HarvestArea", "Efficiency_Kg_per_Area"}

// Page returns rows [off, off+size) of a table after filtering.
func (e *Engine) Page(table pagination.Table, f RowFilter, off, size int) (Page, error) {
	out := Page{Table: table, Offset: off}
	if off < 0 {
		off, out.Offset = 0, 0
	}
	var rows [][]string
	switch table {
	case pagination.TableWide:
		out.Columns = append([]string(nil), e.ds.Wide.Columns...)
		for _, r := range e.ds.Wide.Rows {
			if (f.Region == "" || r.Region == f.Region) && (f.Year == 0 || r.Year == f.Year) {
				rows = append(rows, r.Values)
			}
		}
	case pagination.TableClusters:
		if !e.ds.ClusterAvailable() {
			return out, ErrClusterUnavailable
		}
		out.Columns = append([]string(nil), ClusterColumns...)
		for _, c := range e.ds.Clusters {
			if (f.Region == "" || c.Region == f.Region) && (f.Year == 0 || c.Year == f.Year) {
				rows = append(rows, clusterRow(c))
			}
		}
	case pagination.TableRecords:
		out.Columns = append([]string(nil), RecordColumns...)
		for _, r := range e.ds.Records.Filter(func(r model.Record) bool {
			return (f.Region == "" || r.Region == f.Region) && (f.Crop == "" || r.Crop == f.Crop) && (f.Year == 0 || r.Year == f.Year)
		}) {
			rows = append(rows, RecordRow(r))
		}
	default:
		return out, fmt.Errorf("insights: unknown table %q", table)
	}

	out.Total = len(rows)
	if off >= len(rows) || size <= 0 {
		out.Rows = [][]string{}
		return out, nil
	}
	end := off + size
	if end > len(rows) {
		end = len(rows)
	}
	out.Rows = make([][]string, 0, end-off)
	for _, r := range rows[off:end] {
		out.Rows = append(out.Rows, append([]string(nil), r...))
	}
	return out, nil
}

func clusterRow(c model.ClusterRecord) []string {
	return []string{
		c.Region,
		strconv.Itoa(c.Year),
		strconv.FormatInt(c.ProductionTotal, 10),
		strconv.FormatInt(c.HarvestAreaTotal, 10),
		strconv.Itoa(int(c.Cluster)),
		c.Source,
	}
}

// RecordRow renders a long-form record aligned to RecordColumns.
func RecordRow(r model.Record) []string {
	return []string{
		r.Region,
		strconv.Itoa(r.Year),
		r.Crop,
		formatFloat(r.ProductionKg),
		formatFloat(r.HarvestArea),
		formatFloat(r.Efficiency),
	}
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
