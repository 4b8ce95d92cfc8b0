package insights

import "math"

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
