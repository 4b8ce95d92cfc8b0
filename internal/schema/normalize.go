package schema

import "strings"

// Canonical column names used after normalization.
const (
	ColRegion           = "Region"
	ColYear             = "Year"
	ColCluster          = "Cluster"
	ColProductionTotal  = "Production_Total"
	ColHarvestAreaTotal = "HarvestArea_Total"

	ProductionPrefix  = "Production_"
	HarvestAreaPrefix = "HarvestArea_"
)

// unitMarkers are removed from labels in this order.
var unitMarkers = []string{"_kilogram", "_Kg", "_meter_persegi", "_M2", "_pohon", "_Pohon"}

var labelReplacer = strings.NewReplacer(" ", "_", "/", "_", "(", "", ")", "")

// NormalizeColumn returns the canonical form of a raw column label: trimmed,
// spaces and slashes turned into underscores, parentheses dropped, unit
// markers removed and underscore runs collapsed. It is total and idempotent.
func NormalizeColumn(label string) string {
	cur := label
	for {
		next := normalizeOnce(cur)
		if next == cur {
			return next
		}
		cur = next
	}
}

func normalizeOnce(label string) string {
	s := strings.TrimSpace(label)
	s = labelReplacer.Replace(s)
	for _, m := range unitMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}

// aliases maps the publisher's Indonesian headers onto canonical names.
var aliases = map[string]string{
	"Kabupaten_Kota":  ColRegion,
	"Kabupaten_kota":  ColRegion,
	"Kab_Kota":        ColRegion,
	"Tahun":           ColYear,
	"Produksi_Total":  ColProductionTotal,
	"LuasPanen_Total": ColHarvestAreaTotal,
}

// prefixAliases rewrites per-crop column prefixes.
var prefixAliases = []struct{ from, to string }{
	{"Produksi_", ProductionPrefix},
	{"Luas_Panen_", HarvestAreaPrefix},
	{"LuasPanen_", HarvestAreaPrefix},
}

// Canonicalize normalizes a label and maps known source aliases onto the
// canonical scheme. Canonical labels pass through unchanged.
func Canonicalize(label string) string {
	s := NormalizeColumn(label)
	if to, ok := aliases[s]; ok {
		return to
	}
	for _, p := range prefixAliases {
		if strings.HasPrefix(s, p.from) && len(s) > len(p.from) {
			return p.to + s[len(p.from):]
		}
	}
	return s
}

// CanonicalizeAll canonicalizes a header row.
func CanonicalizeAll(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = Canonicalize(l)
	}
	return out
}
