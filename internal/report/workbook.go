package report

import (
	"errors"
	"fmt"

	"github.com/vinodismyname/biofarmaka/internal/insights"
	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary  = "Summary"
	sheetRanking  = "Ranking"
	sheetRecords  = "Records"
	sheetWide     = "Wide"
	sheetClusters = "Clusters"
)

// WriteWorkbook saves the snapshot tables plus a yearly summary and the
// ranking of rankYear to an .xlsx workbook at path.
func WriteWorkbook(path string, e *insights.Engine, rankYear int) error {
	ds := e.Dataset()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}
	if err := writeSummary(f, e); err != nil {
		return err
	}

	if _, err := f.NewSheet(sheetRanking); err != nil {
		return fmt.Errorf("report: new sheet: %w", err)
	}
	if err := setRow(f, sheetRanking, 1, "Year", "Rank", "Crop", "Production_Kg"); err != nil {
		return err
	}
	var ranked []insights.RankedCrop
	if rankYear != 0 {
		var err error
		ranked, err = e.RankCrops(rankYear, "")
		if err != nil && !errors.Is(err, insights.ErrNoData) {
			return err
		}
	}
	for i, r := range ranked {
		if err := setRow(f, sheetRanking, i+2, rankYear, r.Rank, r.Crop, r.ProductionKg); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(sheetRecords); err != nil {
		return fmt.Errorf("report: new sheet: %w", err)
	}
	if err := setRow(f, sheetRecords, 1, toAny(insights.RecordColumns)...); err != nil {
		return err
	}
	for i, r := range ds.Records.Rows() {
		if err := setRow(f, sheetRecords, i+2, r.Region, r.Year, r.Crop, r.ProductionKg, r.HarvestArea, r.Efficiency); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(sheetWide); err != nil {
		return fmt.Errorf("report: new sheet: %w", err)
	}
	for i, rec := range ds.Wide.Records() {
		if err := setRow(f, sheetWide, i+1, toAny(rec)...); err != nil {
			return err
		}
	}

	if ds.ClusterAvailable() {
		if _, err := f.NewSheet(sheetClusters); err != nil {
			return fmt.Errorf("report: new sheet: %w", err)
		}
		if err := setRow(f, sheetClusters, 1, toAny(insights.ClusterColumns)...); err != nil {
			return err
		}
		for i, c := range ds.Clusters {
			if err := setRow(f, sheetClusters, i+2, c.Region, c.Year, c.ProductionTotal, c.HarvestAreaTotal, int(c.Cluster), c.Source); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, e *insights.Engine) error {
	if err := setRow(f, sheetSummary, 1, "Year", "Production_Kg", "HarvestArea", "Mean_Efficiency", "Records", "YoY_Pct", "YoY_Note"); err != nil {
		return err
	}
	for i, year := range e.Dataset().Years() {
		tot, err := e.YearlyTotals(year)
		if err != nil {
			return err
		}
		yoy, err := e.YoY(year)
		if err != nil {
			return err
		}
		row := []any{year, tot.ProductionKg, tot.HarvestArea, nil, tot.Records, nil, yoy.AbsentReason}
		if tot.MeanEfficiency != nil {
			row[3] = *tot.MeanEfficiency
		}
		if yoy.DeltaPct != nil {
			row[5] = *yoy.DeltaPct
		}
		if err := setRow(f, sheetSummary, i+2, row...); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("report: write %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
