package report

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/vinodismyname/biofarmaka/internal/insights"
)

// RenderRanking prints a ranking as a text table.
func RenderRanking(w io.Writer, ranked []insights.RankedCrop) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rank", "Crop", "Production (Kg)"})
	for _, r := range ranked {
		table.Append([]string{
			strconv.Itoa(r.Rank),
			r.Crop,
			strconv.FormatFloat(r.ProductionKg, 'f', 2, 64),
		})
	}
	table.Render()
}

// RenderSelectors prints the selection values of a snapshot.
func RenderSelectors(w io.Writer, sel insights.Selectors) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Selector", "Count", "Values"})
	table.Append([]string{"years", strconv.Itoa(len(sel.Years)), joinInts(sel.Years)})
	table.Append([]string{"regions", strconv.Itoa(len(sel.Regions)), preview(sel.Regions, 5)})
	table.Append([]string{"crops", strconv.Itoa(len(sel.Crops)), preview(sel.Crops, 5)})
	table.Append([]string{"cluster years", strconv.Itoa(len(sel.ClusterYears)), joinInts(sel.ClusterYears)})
	table.Render()
}

func joinInts(xs []int) string {
	out := ""
	for i, x := range xs {
		if i > 0 {
			out += ", "
		}
		out += strconv.Itoa(x)
	}
	return out
}

func preview(xs []string, n int) string {
	out := ""
	for i, x := range xs {
		if i == n {
			return out + ", ..."
		}
		if i > 0 {
			out += ", "
		}
		out += x
	}
	return out
}
