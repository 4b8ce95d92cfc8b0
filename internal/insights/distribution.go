package insights

import (
	"fmt"
	"math"
	"sort"

	"github.com/vinodismyname/biofarmaka/internal/model"
)

// LabelStats summarizes Production_Total for one cluster label.
type LabelStats struct {
	Cluster model.ClusterLabel `json:"cluster"`
	Label   string             `json:"label"`
	Count   int                `json:"count"`
	Min     int64              `json:"min"`
	Median  float64            `json:"median"`
	Max     int64              `json:"max"`
	Mean    float64            `json:"mean"`
}

// ClusterDistribution is the cluster table of one year with per-label stats.
type ClusterDistribution struct {
	Year   int                   `json:"year"`
	Rows   []model.ClusterRecord `json:"rows"`
	Labels []LabelStats          `json:"labels"`
}

// ClusterDistribution returns the cluster rows of a year, regions ascending,
// and box-plot stats per label ordered low, medium, high.
func (e *Engine) ClusterDistribution(year int) (ClusterDistribution, error) {
	out := ClusterDistribution{Year: year}
	if !e.ds.ClusterAvailable() {
		return out, ErrClusterUnavailable
	}
	byLabel := map[model.ClusterLabel][]int64{}
	for _, c := range e.ds.Clusters {
		if c.Year != year {
			continue
		}
		out.Rows = append(out.Rows, c)
		byLabel[c.Cluster] = append(byLabel[c.Cluster], c.ProductionTotal)
	}
	if len(out.Rows) == 0 {
		return out, fmt.Errorf("%w: no cluster rows for %d", ErrNoData, year)
	}
	sort.SliceStable(out.Rows, func(i, j int) bool { return out.Rows[i].Region < out.Rows[j].Region })

	labels := make([]model.ClusterLabel, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	for _, l := range labels {
		out.Labels = append(out.Labels, summarize(l, byLabel[l]))
	}
	return out, nil
}

func summarize(label model.ClusterLabel, vals []int64) LabelStats {
	s := append([]int64(nil), vals...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	st := LabelStats{Cluster: label, Label: label.String(), Count: len(s), Min: s[0], Max: s[len(s)-1]}
	var sum float64
	for _, v := range s {
		sum += float64(v)
	}
	st.Mean = round2(sum / float64(len(s)))
	st.Median = median(s)
	return st
}

func median(sorted []int64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
}
