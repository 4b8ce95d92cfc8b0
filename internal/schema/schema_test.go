package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeColumn(t *testing.T) {
	cases := map[string]string{
		"  Production (Kg) ":              "Production",
		"Luas Panen (M2/Pohon)":           "Luas_Panen",
		"Produksi Jahe (kilogram)":        "Produksi_Jahe",
		"Luas Panen Jahe (meter persegi)": "Luas_Panen_Jahe",
		"Kabupaten/Kota":                  "Kabupaten_Kota",
		"a___b":                           "a_b",
		"Region":                          "Region",
		"":                                "",
		"A_K_Kgg":                         "A",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeColumn(in), "input %q", in)
	}
}

func TestNormalizeColumn_Idempotent(t *testing.T) {
	inputs := []string{
		"Production (Kg)", "  x / y  ", "Luas Panen (M2/Pohon)", "a__b___c", "__", "Cluster_2024",
		"Produksi_Kg_Kg", "weird (( ))", "A_K_Kgg", "tab\tinside", "_M_M22",
	}
	for _, in := range inputs {
		once := NormalizeColumn(in)
		require.Equal(t, once, NormalizeColumn(once), "input %q", in)
	}
}

func TestCanonicalize_Aliases(t *testing.T) {
	require.Equal(t, ColRegion, Canonicalize("Kabupaten/Kota"))
	require.Equal(t, ColYear, Canonicalize(" Tahun "))
	require.Equal(t, "Production_Jahe", Canonicalize("Produksi Jahe (Kg)"))
	require.Equal(t, "HarvestArea_Jahe", Canonicalize("Luas Panen Jahe (M2)"))
	require.Equal(t, ColProductionTotal, Canonicalize("Produksi_Total"))
	require.Equal(t, ColHarvestAreaTotal, Canonicalize("LuasPanen_Total"))
	require.Equal(t, "Production_Ginger", Canonicalize("Production_Ginger"))
	require.Equal(t, "Produksi_", Canonicalize("Produksi_"))
}

func TestDiscoverCrops_IntersectionAndMismatch(t *testing.T) {
	cols := []string{
		ColRegion, ColYear,
		"Production_Ginger", "HarvestArea_Ginger",
		"Production_Turmeric",
		"HarvestArea_Galangal",
		"Production_Total", "HarvestArea_Total",
	}
	crops, diags := DiscoverCrops(cols)
	require.Equal(t, []string{"Ginger"}, crops.Names())
	require.Equal(t, CropColumns{Production: "Production_Ginger", HarvestArea: "HarvestArea_Ginger"}, crops["Ginger"])

	require.Len(t, diags, 2)
	for _, d := range diags {
		require.Equal(t, KindSchemaMismatch, d.Kind)
	}
	require.Equal(t, "HarvestArea_Galangal", diags[0].Column)
	require.Equal(t, "Production_Turmeric", diags[1].Column)
}

func TestDiscoverCrops_DuplicateColumn(t *testing.T) {
	cols := []string{"Production_Ginger", "Production_Ginger", "HarvestArea_Ginger"}
	crops, diags := DiscoverCrops(cols)
	require.Len(t, crops, 1)
	require.Len(t, diags, 1)
	require.Equal(t, KindDuplicateColumn, diags[0].Kind)
}

func TestDetectClusterColumn(t *testing.T) {
	idx, diag, err := DetectClusterColumn([]string{"Region", "Cluster_Old", "Year", "Cluster_2024"})
	require.NoError(t, err)
	require.Nil(t, diag)
	require.Equal(t, 3, idx)

	idx, diag, err = DetectClusterColumn([]string{"Region", "Cluster_2023", "Year"})
	require.NoError(t, err)
	require.NotNil(t, diag)
	require.Equal(t, KindClusterLabelNotLast, diag.Kind)
	require.Equal(t, 1, idx)

	_, _, err = DetectClusterColumn([]string{"Region", "Year"})
	require.True(t, errors.Is(err, ErrNoClusterColumn))
}

func TestRequireColumns(t *testing.T) {
	require.NoError(t, RequireColumns([]string{"Region", "Year"}, ColRegion, ColYear))
	err := RequireColumns([]string{"Region"}, ColRegion, ColYear)
	require.ErrorIs(t, err, ErrMissingColumn)
	require.Contains(t, err.Error(), ColYear)
}
