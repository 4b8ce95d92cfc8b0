package tables

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/vinodismyname/biofarmaka/internal/model"
	"github.com/vinodismyname/biofarmaka/internal/schema"
)

// JunkRegions are footnote and placeholder markers the publisher injects
// into the region column.
var JunkRegions = []string{"0", "Angka sementara", "Angka tetap", "Catatan"}

// DropJunkRows removes rows whose column value is exactly one of
// JunkRegions. The input is returned unchanged when the column is absent.
func DropJunkRows(df dataframe.DataFrame, column string) dataframe.DataFrame {
	if df.Err != nil || schema.IndexOf(df.Names(), column) < 0 || df.Nrow() == 0 {
		return df
	}
	out := df
	for _, junk := range JunkRegions {
		next := out.Filter(dataframe.F{Colname: column, Comparator: series.Neq, Comparando: junk})
		if next.Err != nil {
			return df
		}
		out = next
	}
	return out
}

// ToWide converts the primary frame into a typed wide table. Rows with an
// empty region or a non-positive year are dropped and summarised in one
// diagnostic.
func ToWide(f *Frame) (model.WideTable, []schema.Diagnostic, error) {
	cols := f.DF.Names()
	if err := schema.RequireColumns(cols, schema.ColRegion, schema.ColYear); err != nil {
		return model.WideTable{}, nil, err
	}
	regionIdx := schema.IndexOf(cols, schema.ColRegion)
	yearIdx := schema.IndexOf(cols, schema.ColYear)

	records := f.DF.Records()
	wide := model.WideTable{Columns: cols, Rows: make([]model.WideRow, 0, len(records))}
	dropped := 0
	for _, rec := range records[1:] {
		region := rec[regionIdx]
		year, ok := ParseYear(rec[yearIdx])
		if region == "" || !ok {
			dropped++
			continue
		}
		wide.Rows = append(wide.Rows, model.WideRow{Region: region, Year: year, Values: rec})
	}

	var diags []schema.Diagnostic
	if dropped > 0 {
		diags = append(diags, schema.Diagnostic{
			Kind: schema.KindInvalidRow, Severity: schema.SeverityWarning, Source: f.Name,
			Message: fmt.Sprintf("%d rows dropped: empty region or invalid year", dropped),
		})
	}
	return wide, diags, nil
}
