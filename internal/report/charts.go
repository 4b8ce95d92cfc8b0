package report

import (
	"fmt"
	"strconv"

	"github.com/vinodismyname/biofarmaka/internal/insights"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// TrendChart draws one production line per region for a crop and saves it
// to path. The image format follows the path extension.
func TrendChart(path, crop string, points []insights.TrendPoint) error {
	if len(points) == 0 {
		return fmt.Errorf("report: trend chart for %s: %w", crop, insights.ErrNoData)
	}
	p := plot.New()
	p.Title.Text = "Production trend: " + crop
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Production (Kg)"

	var order []string
	series := map[string]plotter.XYs{}
	for _, pt := range points {
		if _, ok := series[pt.Region]; !ok {
			order = append(order, pt.Region)
		}
		series[pt.Region] = append(series[pt.Region], plotter.XY{X: float64(pt.Year), Y: pt.ProductionKg})
	}
	for i, region := range order {
		line, err := plotter.NewLine(series[region])
		if err != nil {
			return fmt.Errorf("report: trend line %s: %w", region, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(region, line)
	}
	p.Add(plotter.NewGrid())

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save trend chart: %w", err)
	}
	return nil
}

// RankingChart draws a bar per ranked crop and saves it to path.
func RankingChart(path string, year int, ranked []insights.RankedCrop) error {
	if len(ranked) == 0 {
		return fmt.Errorf("report: ranking chart for %d: %w", year, insights.ErrNoData)
	}
	p := plot.New()
	p.Title.Text = "Top crops by production " + strconv.Itoa(year)
	p.Y.Label.Text = "Production (Kg)"

	values := make(plotter.Values, len(ranked))
	labels := make([]string, len(ranked))
	for i, r := range ranked {
		values[i] = r.ProductionKg
		labels[i] = fmt.Sprintf("%d. %s", r.Rank, r.Crop)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("report: bar chart: %w", err)
	}
	p.Add(bars)
	p.NominalX(labels...)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save ranking chart: %w", err)
	}
	return nil
}
