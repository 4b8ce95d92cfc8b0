package insights

import (
	"fmt"
	"sort"
)

// GroupShare is one crop's share of total production.
type GroupShare struct {
	Name  string  `json:"name"`
	Share float64 `json:"share"`
	Total float64 `json:"total"`
}

// Concentration reports how concentrated a year's production is across crops.
type Concentration struct {
	Year       int          `json:"year"`
	Region     string       `json:"region,omitempty"`
	TopN       int          `json:"top_n"`
	Groups     []GroupShare `json:"groups"`
	OtherShare float64      `json:"other_share"`
	HHI        float64      `json:"hhi"`
	Band       string       `json:"band"`
	Crops      int          `json:"crops"`
}

// Concentration computes Top-N crop share and the Herfindahl-Hirschman index
// of production for a year and optional region. topN outside 1..10 uses 5.
func (e *Engine) Concentration(year int, region string, topN int) (Concentration, error) {
	out := Concentration{Year: year, Region: region, TopN: topN}
	if out.TopN <= 0 || out.TopN > 10 {
		out.TopN = 5
	}
	if err := e.checkYear(year); err != nil {
		return out, err
	}
	if region != "" {
		if err := e.checkRegion(region); err != nil {
			return out, err
		}
	}

	acc := map[string]float64{}
	for _, r := range e.recordsOf(year, region) {
		acc[r.Crop] += r.ProductionKg
	}
	var total float64
	for _, v := range acc {
		total += v
	}
	if total == 0 {
		return out, fmt.Errorf("%w: zero total production; cannot compute shares", ErrNoData)
	}

	type kv struct {
		k string
		v float64
	}
	arr := make([]kv, 0, len(acc))
	for k, v := range acc {
		if v > 0 {
			arr = append(arr, kv{k: k, v: v})
		}
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].v != arr[j].v {
			return arr[i].v > arr[j].v
		}
		return arr[i].k < arr[j].k
	})
	out.Crops = len(arr)

	keep := out.TopN
	if keep > len(arr) {
		keep = len(arr)
	}
	var topShare float64
	for i := 0; i < keep; i++ {
		sh := arr[i].v / total
		out.Groups = append(out.Groups, GroupShare{Name: arr[i].k, Share: round3(sh), Total: round2(arr[i].v)})
		topShare += sh
	}
	out.OtherShare = round3(1.0 - topShare)

	// HHI: sum of squared shares over all crops
	var hhi float64
	for _, kvp := range arr {
		sh := kvp.v / total
		hhi += sh * sh
	}
	out.HHI = round3(hhi)
	out.Band = hhiBand(hhi)
	return out, nil
}

// hhiBand uses the common antitrust thresholds.
func hhiBand(hhi float64) string {
	switch {
	case hhi < 0.15:
		return "unconcentrated"
	case hhi < 0.25:
		return "moderately_concentrated"
	default:
		return "highly_concentrated"
	}
}
