package reshape

import (
	"github.com/vinodismyname/biofarmaka/internal/model"
	"github.com/vinodismyname/biofarmaka/internal/schema"
	"github.com/vinodismyname/biofarmaka/internal/tables"
)

// Stats summarises a reshape run.
type Stats struct {
	SourceRows   int `json:"source_rows"`
	Crops        int `json:"crops"`
	Records      int `json:"records"`
	CoercedCells int `json:"coerced_cells"`
}

// longCell is one pivoted (row, crop) value before coercion.
type longCell struct {
	row    int
	region string
	year   int
	crop   string
	raw    string
}

type joinKey struct {
	row    int
	region string
	year   int
	crop   string
}

// Reshape pivots the paired crop columns of a wide table into long form and
// derives efficiency. Only crops present in crops are emitted; output is
// ordered by crop name, then by source row.
func Reshape(wide model.WideTable, crops schema.CropMap) (Table, Stats) {
	names := crops.Names()
	stats := Stats{SourceRows: len(wide.Rows), Crops: len(names)}

	prodCols := make(map[string]int, len(names))
	areaCols := make(map[string]int, len(names))
	for _, c := range names {
		prodCols[c] = schema.IndexOf(wide.Columns, crops[c].Production)
		areaCols[c] = schema.IndexOf(wide.Columns, crops[c].HarvestArea)
	}

	prodLong := pivot(wide, names, prodCols)
	areaLong := pivot(wide, names, areaCols)

	areaByKey := make(map[joinKey]string, len(areaLong))
	for _, a := range areaLong {
		areaByKey[a.key()] = a.raw
	}

	out := make([]model.Record, 0, len(prodLong))
	for _, p := range prodLong {
		rawArea, ok := areaByKey[p.key()]
		if !ok {
			continue
		}
		prod, pc := tables.CoerceFloat(p.raw)
		area, ac := tables.CoerceFloat(rawArea)
		if pc {
			stats.CoercedCells++
		}
		if ac {
			stats.CoercedCells++
		}
		out = append(out, model.Record{
			Region:       p.region,
			Year:         p.year,
			Crop:         p.crop,
			ProductionKg: prod,
			HarvestArea:  area,
			Efficiency:   Efficiency(prod, area),
		})
	}
	stats.Records = len(out)
	return Table{rows: out}, stats
}

// pivot melts the given per-crop columns into one cell per (row, crop).
func pivot(wide model.WideTable, crops []string, cols map[string]int) []longCell {
	out := make([]longCell, 0, len(crops)*len(wide.Rows))
	for _, crop := range crops {
		idx := cols[crop]
		if idx < 0 {
			continue
		}
		for i, r := range wide.Rows {
			out = append(out, longCell{row: i, region: r.Region, year: r.Year, crop: crop, raw: wide.Cell(r, idx)})
		}
	}
	return out
}

func (c longCell) key() joinKey {
	return joinKey{row: c.row, region: c.region, year: c.year, crop: c.crop}
}

// Efficiency is production per unit harvested area, 0 when area is not positive.
func Efficiency(production, area float64) float64 {
	if area > 0 {
		return production / area
	}
	return 0
}
