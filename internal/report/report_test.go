package report

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/biofarmaka/internal/ingest"
	"github.com/vinodismyname/biofarmaka/internal/insights"
	"github.com/xuri/excelize/v2"
)

const primaryCSV = `Kabupaten/Kota;Tahun;Produksi Jahe (Kg);Luas Panen Jahe (M2);Produksi Kunyit (Kg);Luas Panen Kunyit (M2)
Bogor;2023;200;50;90;30
Cianjur;2023;100;0;110;10
Bogor;2024;300;60;0;0
Catatan;;;;;
`

const clusterCSV = `Kabupaten_Kota,Tahun,Produksi_Total,LuasPanen_Total,Cluster_2023
Bogor,2023,290,80,2
Cianjur,2023,210,10,1
`

func testEngine(t *testing.T) *insights.Engine {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataset_final.csv"), []byte(primaryCSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cluster_2023.csv"), []byte(clusterCSV), 0o600))
	ld, err := ingest.NewLoader(ingest.DiscoverSources(dir, []int{2023}), nil).Load(context.Background())
	require.NoError(t, err)
	ds, err := ingest.Build(ld, time.Now())
	require.NoError(t, err)
	return insights.NewEngine(ds, 0)
}

func TestWriteWorkbook(t *testing.T) {
	e := testEngine(t)
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteWorkbook(path, e, 2023))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{sheetSummary, sheetRanking, sheetRecords, sheetWide, sheetClusters}, f.GetSheetList())

	records, err := f.GetRows(sheetRecords)
	require.NoError(t, err)
	require.Len(t, records, 1+6)
	require.Equal(t, insights.RecordColumns, records[0])
	require.Equal(t, []string{"Bogor", "2023", "Jahe", "200", "50", "4"}, records[1])

	ranking, err := f.GetRows(sheetRanking)
	require.NoError(t, err)
	require.Len(t, ranking, 3)
	require.Equal(t, []string{"2023", "1", "Jahe", "300"}, ranking[1])

	summary, err := f.GetRows(sheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	require.Equal(t, "no_prior_data", summary[1][6])
}

func TestWriteSQLite(t *testing.T) {
	e := testEngine(t)
	path := filepath.Join(t.TempDir(), "out.sqlite")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))
	require.NoError(t, WriteSQLite(context.Background(), path, e.Dataset()))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n))
	require.Equal(t, 6, n)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM clusters`).Scan(&n))
	require.Equal(t, 2, n)

	var eff float64
	require.NoError(t, db.QueryRow(`SELECT efficiency_kg_per_area FROM records WHERE region = 'Bogor' AND year = 2023 AND crop = 'Jahe'`).Scan(&eff))
	require.Equal(t, 4.0, eff)

	var id string
	require.NoError(t, db.QueryRow(`SELECT id FROM snapshot`).Scan(&id))
	require.Equal(t, e.Dataset().ID, id)
}

func TestCharts(t *testing.T) {
	e := testEngine(t)
	dir := t.TempDir()

	ranked, err := e.RankCrops(2023, "")
	require.NoError(t, err)
	rankPath := filepath.Join(dir, "rank.png")
	require.NoError(t, RankingChart(rankPath, 2023, ranked))
	requirePNG(t, rankPath)

	points, err := e.CropTrend("Jahe", nil)
	require.NoError(t, err)
	trendPath := filepath.Join(dir, "trend.png")
	require.NoError(t, TrendChart(trendPath, "Jahe", points))
	requirePNG(t, trendPath)

	require.ErrorIs(t, RankingChart(rankPath, 2023, nil), insights.ErrNoData)
	require.ErrorIs(t, TrendChart(trendPath, "Jahe", nil), insights.ErrNoData)
}

func requirePNG(t *testing.T, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(b, []byte("\x89PNG")), "not a png: %s", path)
}

func TestExport_AllFormats(t *testing.T) {
	e := testEngine(t)
	dir := t.TempDir()
	m, err := Export(context.Background(), e, Options{Dir: dir})
	require.NoError(t, err)
	require.Equal(t, 2024, m.Year)
	require.Equal(t, "Jahe", m.Crop)
	require.Len(t, m.Files, 4)
	for _, a := range m.Files {
		_, err := os.Stat(a.Path)
		require.NoError(t, err, a.Path)
	}

	_, err = Export(context.Background(), e, Options{Dir: dir, Year: 1990})
	require.ErrorIs(t, err, insights.ErrUnknownYear)
}

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats("")
	require.NoError(t, err)
	require.Equal(t, AllFormats, got)

	got, err = ParseFormats(" XLSX, png ,")
	require.NoError(t, err)
	require.Equal(t, []Format{FormatXLSX, FormatPNG}, got)

	_, err = ParseFormats("pdf")
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRenderRanking(t *testing.T) {
	var buf bytes.Buffer
	RenderRanking(&buf, []insights.RankedCrop{{Rank: 1, Crop: "Jahe", ProductionKg: 300}, {Rank: 2, Crop: "Kunyit", ProductionKg: 200}})
	out := buf.String()
	require.Contains(t, out, "Jahe")
	require.Contains(t, out, "300.00")
	require.Contains(t, out, "PRODUCTION (KG)")

	buf.Reset()
	RenderSelectors(&buf, insights.Selectors{Years: []int{2023, 2024}, Crops: []string{"Jahe"}})
	require.Contains(t, buf.String(), "2023, 2024")
}
