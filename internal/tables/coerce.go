package tables

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber parses a numeric cell. Surrounding spaces and thousands
// commas are ignored. NaN and infinities parse but are reported as not ok.
func ParseNumber(s string) (float64, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\u00a0':
			return -1
		default:
			return r
		}
	}, s)
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// CoerceFloat returns a finite non-negative value for a cell. Unparseable,
// non-finite and negative cells become 0 and report coerced=true.
func CoerceFloat(s string) (v float64, coerced bool) {
	f, ok := ParseNumber(s)
	if !ok || f < 0 {
		return 0, true
	}
	return f, false
}

// CoerceInt is CoerceFloat truncated toward zero.
func CoerceInt(s string) (v int64, coerced bool) {
	f, coerced := CoerceFloat(s)
	if f > math.MaxInt64 {
		return 0, true
	}
	return int64(f), coerced
}

// ParseYear parses a positive integral year such as "2023" or "2023.0".
func ParseYear(s string) (int, bool) {
	f, ok := ParseNumber(s)
	if !ok || f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
