package insights

import (
	"fmt"
	"math"
	"sort"
)

// GroupMix is one crop's production share in two years.
type GroupMix struct {
	Name          string  `json:"name"`
	ShareBaseline float64 `json:"share_baseline"`
	ShareCurrent  float64 `json:"share_current"`
	PPChange      float64 `json:"pp_change"`
	Highlight     bool    `json:"highlight"`
}

// CompositionShift reports crop mix shifts between two years.
type CompositionShift struct {
	Baseline       int        `json:"baseline_year"`
	Current        int        `json:"current_year"`
	TopN           int        `json:"top_n"`
	MixThresholdPP float64    `json:"mix_threshold_pp"`
	Groups         []GroupMix `json:"groups"`
	OtherBaseline  float64    `json:"other_share_baseline"`
	OtherCurrent   float64    `json:"other_share_current"`
}

// CompositionShift computes share-of-production by crop for two years and
// returns the Top-N movers by absolute percentage-point change. Zero years
// select the latest two years present. topN outside 1..20 uses 5 and a
// non-positive threshold uses 5pp.
func (e *Engine) CompositionShift(baseline, current, topN int, thresholdPP float64) (CompositionShift, error) {
	out := CompositionShift{TopN: topN, MixThresholdPP: thresholdPP}
	if out.TopN <= 0 || out.TopN > 20 {
		out.TopN = 5
	}
	if out.MixThresholdPP <= 0 {
		out.MixThresholdPP = 5
	}
	if baseline == 0 || current == 0 {
		years := e.ds.Years()
		if len(years) < 2 {
			return out, fmt.Errorf("%w: need at least 2 years, found %d", ErrNoData, len(years))
		}
		baseline, current = years[len(years)-2], years[len(years)-1]
	}
	out.Baseline, out.Current = baseline, current
	if err := e.checkYear(baseline); err != nil {
		return out, err
	}
	if err := e.checkYear(current); err != nil {
		return out, err
	}

	base := cropTotals(e, baseline)
	curr := cropTotals(e, current)
	var totBase, totCurr float64
	for _, v := range base {
		totBase += v
	}
	for _, v := range curr {
		totCurr += v
	}
	if totBase == 0 || totCurr == 0 {
		return out, fmt.Errorf("%w: zero production in %d or %d", ErrNoData, baseline, current)
	}

	uniq := map[string]struct{}{}
	for k := range base {
		uniq[k] = struct{}{}
	}
	for k := range curr {
		uniq[k] = struct{}{}
	}
	rows := make([]GroupMix, 0, len(uniq))
	for g := range uniq {
		b := base[g] / totBase
		c := curr[g] / totCurr
		pp := round2((c - b) * 100.0)
		rows = append(rows, GroupMix{
			Name:          g,
			ShareBaseline: round3(b),
			ShareCurrent:  round3(c),
			PPChange:      pp,
			Highlight:     math.Abs(pp) >= out.MixThresholdPP,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		ai := math.Abs(rows[i].PPChange)
		aj := math.Abs(rows[j].PPChange)
		if ai == aj {
			return rows[i].Name < rows[j].Name
		}
		return ai > aj
	})

	keep := out.TopN
	if keep > len(rows) {
		keep = len(rows)
	}
	selected := rows[:keep]
	var selBase, selCurr float64
	for _, r := range selected {
		selBase += r.ShareBaseline
		selCurr += r.ShareCurrent
	}
	out.Groups = selected
	out.OtherBaseline = round3(1.0 - selBase)
	out.OtherCurrent = round3(1.0 - selCurr)
	return out, nil
}

func cropTotals(e *Engine, year int) map[string]float64 {
	acc := map[string]float64{}
	for _, r := range e.recordsOf(year, "") {
		acc[r.Crop] += r.ProductionKg
	}
	return acc
}
