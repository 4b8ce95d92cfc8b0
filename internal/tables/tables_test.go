package tables

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/biofarmaka/internal/schema"
	"github.com/xuri/excelize/v2"
)

func TestReadFile_CSVSemicolonCanonicalHeaders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset_final.csv")
	content := "\ufeffKabupaten/Kota;Tahun;Produksi Jahe (Kg);Luas Panen Jahe (M2)\n" +
		"Bogor;2023;200;50\n" +
		";;;\n" +
		"Bandung;2023;10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	f, err := ReadFile("dataset_final", path)
	require.NoError(t, err)
	require.Equal(t, []string{"Region", "Year", "Production_Jahe", "HarvestArea_Jahe"}, f.DF.Names())
	require.Equal(t, 2, f.DF.Nrow())

	recs := f.DF.Records()
	require.Equal(t, []string{"Bandung", "2023", "10", ""}, recs[2])
}

func TestReadFile_XLSX(t *testing.T) {
	wb := excelize.NewFile()
	sh := "Data"
	require.NoError(t, wb.SetSheetName("Sheet1", sh))
	require.NoError(t, wb.SetSheetRow(sh, "A1", &[]string{"Region", "Year", "Production_Total", "HarvestArea_Total", "Cluster_2022"}))
	require.NoError(t, wb.SetSheetRow(sh, "A2", &[]any{"Bogor", 2022, 1200, 300, 2}))
	path := filepath.Join(t.TempDir(), "cluster_2022.xlsx")
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	f, err := ReadFile("cluster_2022", path)
	require.NoError(t, err)
	require.Equal(t, 1, f.DF.Nrow())
	require.Equal(t, "Cluster_2022", f.DF.Names()[4])
}

func TestReadFile_Unsupported(t *testing.T) {
	_, err := ReadFile("x", "x.json")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFromRecords_HeaderOnlyAndDuplicates(t *testing.T) {
	f, err := FromRecords("p", [][]string{{"Region", "Year", "Production_Jahe", "Produksi Jahe"}})
	require.NoError(t, err)
	require.Equal(t, 0, f.DF.Nrow())
	require.Equal(t, "Production_Jahe#2", f.DF.Names()[3])
	require.Len(t, f.Diagnostics, 1)
	require.Equal(t, schema.KindDuplicateColumn, f.Diagnostics[0].Kind)

	_, err = FromRecords("p", nil)
	require.ErrorIs(t, err, ErrEmptySource)
}

func TestDropJunkRows(t *testing.T) {
	f, err := FromRecords("p", [][]string{
		{"Region", "Year"},
		{"0", "2023"},
		{"Angka sementara", "2023"},
		{"RegionX", "2023"},
		{"Catatan", ""},
		{"Angka tetap", ""},
	})
	require.NoError(t, err)

	out := DropJunkRows(f.DF, schema.ColRegion)
	require.NoError(t, out.Err)
	require.Equal(t, 1, out.Nrow())
	require.Equal(t, "RegionX", out.Records()[1][0])
}

func TestDropJunkRows_Unchanged(t *testing.T) {
	f, err := FromRecords("p", [][]string{{"Region", "Year"}, {"A", "2022"}, {"B", "2023"}})
	require.NoError(t, err)
	require.Equal(t, 2, DropJunkRows(f.DF, schema.ColRegion).Nrow())
	require.Equal(t, 2, DropJunkRows(f.DF, "Missing").Nrow())
}

func TestToWide(t *testing.T) {
	f, err := FromRecords("dataset_final", [][]string{
		{"Region", "Year", "Production_Ginger"},
		{"A", "2023", "1"},
		{"B", "2023.0", "2"},
		{"", "2023", "3"},
		{"C", "n/a", "4"},
	})
	require.NoError(t, err)

	wide, diags, err := ToWide(f)
	require.NoError(t, err)
	require.Len(t, wide.Rows, 2)
	require.Equal(t, 2023, wide.Rows[1].Year)
	require.Equal(t, "2", wide.Cell(wide.Rows[1], 2))
	require.Len(t, diags, 1)
	require.Equal(t, schema.KindInvalidRow, diags[0].Kind)

	f, err = FromRecords("dataset_final", [][]string{{"Region", "Production_Ginger"}, {"A", "1"}})
	require.NoError(t, err)
	_, _, err = ToWide(f)
	require.ErrorIs(t, err, schema.ErrMissingColumn)
}

func TestCoercion(t *testing.T) {
	v, ok := ParseNumber(" 1,234.5 ")
	require.True(t, ok)
	require.Equal(t, 1234.5, v)

	for _, in := range []string{"", "abc", "NaN", "Inf", "-Inf", "-3"} {
		f, coerced := CoerceFloat(in)
		require.True(t, coerced, "input %q", in)
		require.Equal(t, 0.0, f)
		require.False(t, math.IsNaN(f))
	}

	n, coerced := CoerceInt("12.9")
	require.False(t, coerced)
	require.Equal(t, int64(12), n)

	y, ok := ParseYear("2024.0")
	require.True(t, ok)
	require.Equal(t, 2024, y)
	_, ok = ParseYear("2024.5")
	require.False(t, ok)
}
