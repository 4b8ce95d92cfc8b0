package insights

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/biofarmaka/internal/ingest"
	"github.com/vinodismyname/biofarmaka/internal/model"
	"github.com/vinodismyname/biofarmaka/pkg/pagination"
)

const primaryCSV = `Kabupaten/Kota,Tahun,Produksi A (Kg),Luas Panen A (M2),Produksi B (Kg),Luas Panen B (M2),Produksi C (Kg),Luas Panen C (M2),Produksi D (Kg),Luas Panen D (M2)
R1,2023,60,10,100,20,50,5,0,0
R2,2023,40,10,0,0,0,0,0,0
R1,2024,375,25,0,0,0,0,0,0
R1,2019,0,0,0,0,0,0,0,0
R1,2020,5,1,0,0,0,0,0,0
R2,2022,10,1,20,1,30,1,40,1
Angka sementara,,,,,,,,,
`

const cluster2022CSV = `Kabupaten_Kota,Tahun,Produksi_Total,LuasPanen_Total,Cluster_2022
R1,2022,100,10,0
R2,2022,200,20,1
R3,2022,300,30,2
R4,2022,500,50,2
R5,2022,400,40,1
`

const cluster2024CSV = `Kabupaten_Kota,Tahun,Produksi_Total,LuasPanen_Total,Cluster_2024
R1,2024,900,10,2
`

func buildDataset(t *testing.T, clusters map[string]string) *ingest.Dataset {
	t.Helper()
	return datasetFrom(t, primaryCSV, clusters)
}

func datasetFrom(t *testing.T, primary string, clusters map[string]string) *ingest.Dataset {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataset_final.csv"), []byte(primary), 0o600))
	for name, body := range clusters {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".csv"), []byte(body), 0o600))
	}
	ld, err := ingest.NewLoader(ingest.DiscoverSources(dir, []int{2022, 2023, 2024}), nil).Load(context.Background())
	require.NoError(t, err)
	ds, err := ingest.Build(ld, time.Now())
	require.NoError(t, err)
	return ds
}

func withClusters(t *testing.T) *ingest.Dataset {
	return buildDataset(t, map[string]string{"cluster_2022": cluster2022CSV, "cluster_2024": cluster2024CSV})
}

func TestRankCrops_DenseTiesAndZeroExcluded(t *testing.T) {
	e := NewEngine(buildDataset(t, nil), 0)

	ranked, err := e.RankCrops(2023, "")
	require.NoError(t, err)
	require.Equal(t, []RankedCrop{
		{Rank: 1, Crop: "A", ProductionKg: 100},
		{Rank: 1, Crop: "B", ProductionKg: 100},
		{Rank: 2, Crop: "C", ProductionKg: 50},
	}, ranked)
}

func TestDenseRank_Example(t *testing.T) {
	ranked := DenseRank(map[string]float64{"A": 100, "B": 100, "C": 50, "D": 0})
	require.Len(t, ranked, 3)
	require.Equal(t, 1, ranked[0].Rank)
	require.Equal(t, 1, ranked[1].Rank)
	require.Equal(t, "C", ranked[2].Crop)
	require.Equal(t, 2, ranked[2].Rank)
}

func TestDenseRank_UnroundedTotals(t *testing.T) {
	ranked := DenseRank(map[string]float64{"A": 100.001, "B": 100.004, "C": 100.004})
	require.Equal(t, []RankedCrop{
		{Rank: 1, Crop: "B", ProductionKg: 100},
		{Rank: 1, Crop: "C", ProductionKg: 100},
		{Rank: 2, Crop: "A", ProductionKg: 100},
	}, ranked)
}

func TestRankCrops_TopNRegionAndErrors(t *testing.T) {
	ds := buildDataset(t, nil)

	ranked, err := NewEngine(ds, 2).RankCrops(2023, "")
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	ranked, err = NewEngine(ds, 0).RankCrops(2023, "R2")
	require.NoError(t, err)
	require.Equal(t, []RankedCrop{{Rank: 1, Crop: "A", ProductionKg: 40}}, ranked)

	e := NewEngine(ds, 0)
	_, err = e.RankCrops(2030, "")
	require.ErrorIs(t, err, ErrUnknownYear)
	_, err = e.RankCrops(2023, "Nowhere")
	require.ErrorIs(t, err, ErrUnknownRegion)
	_, err = e.RankCrops(2019, "")
	require.ErrorIs(t, err, ErrNoData)
}

func ptr(v float64) *float64 { return &v }

func TestDelta(t *testing.T) {
	d, reason := Delta(150, ptr(100))
	require.NotNil(t, d)
	require.Equal(t, 50.0, *d)
	require.Empty(t, reason)

	d, reason = Delta(150, ptr(0))
	require.Nil(t, d)
	require.Equal(t, ReasonZeroPriorTotal, reason)

	d, reason = Delta(150, nil)
	require.Nil(t, d)
	require.Equal(t, ReasonNoPriorData, reason)

	d, _ = Delta(0, ptr(80))
	require.Equal(t, -100.0, *d)
}

func TestYoY(t *testing.T) {
	e := NewEngine(buildDataset(t, nil), 0)

	yoy, err := e.YoY(2024)
	require.NoError(t, err)
	require.Equal(t, 375.0, yoy.Current)
	require.Equal(t, 250.0, *yoy.Previous)
	require.Equal(t, 50.0, *yoy.DeltaPct)

	yoy, err = e.YoY(2022)
	require.NoError(t, err)
	require.Nil(t, yoy.Previous)
	require.Nil(t, yoy.DeltaPct)
	require.Equal(t, ReasonNoPriorData, yoy.AbsentReason)

	yoy, err = e.YoY(2020)
	require.NoError(t, err)
	require.Equal(t, 0.0, *yoy.Previous)
	require.Nil(t, yoy.DeltaPct)
	require.Equal(t, ReasonZeroPriorTotal, yoy.AbsentReason)
}

func TestYearlyTotals(t *testing.T) {
	e := NewEngine(buildDataset(t, nil), 0)
	tot, err := e.YearlyTotals(2023)
	require.NoError(t, err)
	require.Equal(t, 250.0, tot.ProductionKg)
	require.Equal(t, 45.0, tot.HarvestArea)
	require.Equal(t, 8, tot.Records)
	require.Equal(t, 2, tot.RegionsWithOutput)
	require.NotNil(t, tot.MeanEfficiency)
	require.InDelta(t, 3.125, *tot.MeanEfficiency, 1e-9)

	_, err = e.YearlyTotals(1999)
	require.ErrorIs(t, err, ErrUnknownYear)
}

func TestCropComparison(t *testing.T) {
	e := NewEngine(buildDataset(t, nil), 0)
	rows, err := e.CropComparison(2023)
	require.NoError(t, err)
	require.Equal(t, []CropSummary{
		{Crop: "A", ProductionKg: 100, HarvestArea: 20, MeanEfficiency: 5, Records: 2},
		{Crop: "B", ProductionKg: 100, HarvestArea: 20, MeanEfficiency: 2.5, Records: 2},
		{Crop: "C", ProductionKg: 50, HarvestArea: 5, MeanEfficiency: 5, Records: 2},
		{Crop: "D", ProductionKg: 0, HarvestArea: 0, MeanEfficiency: 0, Records: 2},
	}, rows)
}

const zeroAreaCSV = `Kabupaten/Kota,Tahun,Produksi Aa (Kg),Luas Panen Aa (M2),Produksi Zz (Kg),Luas Panen Zz (M2)
R1,2023,10,10,900,0
`

func TestMeanEfficiency_ZeroAreaCountsAsZero(t *testing.T) {
	e := NewEngine(datasetFrom(t, zeroAreaCSV, nil), 0)

	tot, err := e.YearlyTotals(2023)
	require.NoError(t, err)
	require.Equal(t, 2, tot.Records)
	require.NotNil(t, tot.MeanEfficiency)
	require.InDelta(t, 0.5, *tot.MeanEfficiency, 1e-9)

	rows, err := e.CropComparison(2023)
	require.NoError(t, err)
	require.Equal(t, []CropSummary{
		{Crop: "Aa", ProductionKg: 10, HarvestArea: 10, MeanEfficiency: 1, Records: 1},
		{Crop: "Zz", ProductionKg: 900, HarvestArea: 0, MeanEfficiency: 0, Records: 1},
	}, rows)
}

func TestSelectors(t *testing.T) {
	sel := NewEngine(withClusters(t), 0).Selectors()
	require.Equal(t, []int{2019, 2020, 2022, 2023, 2024}, sel.Years)
	require.Equal(t, []string{"R1", "R2"}, sel.Regions)
	require.Equal(t, []string{"A", "B", "C", "D"}, sel.Crops)
	require.Equal(t, []string{"R1", "R2"}, sel.DefaultTrendRegions)
	require.True(t, sel.ClusterAvailable)
	require.Equal(t, []int{2022, 2024}, sel.ClusterYears)
	require.Len(t, sel.ClusterRegions, 5)
}

func TestCropTrend(t *testing.T) {
	e := NewEngine(buildDataset(t, nil), 0)
	pts, err := e.CropTrend("A", []string{"R2", "R1"})
	require.NoError(t, err)
	require.Equal(t, []TrendPoint{
		{Year: 2019, Region: "R1", ProductionKg: 0},
		{Year: 2020, Region: "R1", ProductionKg: 5},
		{Year: 2022, Region: "R2", ProductionKg: 10},
		{Year: 2023, Region: "R2", ProductionKg: 40},
		{Year: 2023, Region: "R1", ProductionKg: 60},
		{Year: 2024, Region: "R1", ProductionKg: 375},
	}, pts)

	def, err := e.CropTrend("A", nil)
	require.NoError(t, err)
	require.Len(t, def, 6)

	_, err = e.CropTrend("Z", nil)
	require.ErrorIs(t, err, ErrUnknownCrop)
	_, err = e.CropTrend("A", []string{"Nowhere"})
	require.ErrorIs(t, err, ErrUnknownRegion)
}

func TestClusterHistoryAndDistribution(t *testing.T) {
	e := NewEngine(withClusters(t), 0)

	hist, err := e.ClusterHistory("R1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, 2022, hist[0].Year)
	require.Equal(t, 2024, hist[1].Year)
	require.Equal(t, model.ClusterHigh, hist[1].Cluster)

	_, err = e.ClusterHistory("Nowhere")
	require.ErrorIs(t, err, ErrNoData)

	dist, err := e.ClusterDistribution(2022)
	require.NoError(t, err)
	require.Len(t, dist.Rows, 5)
	require.Equal(t, "R1", dist.Rows[0].Region)
	require.Equal(t, []LabelStats{
		{Cluster: model.ClusterLow, Label: "low", Count: 1, Min: 100, Median: 100, Max: 100, Mean: 100},
		{Cluster: model.ClusterMedium, Label: "medium", Count: 2, Min: 200, Median: 300, Max: 400, Mean: 300},
		{Cluster: model.ClusterHigh, Label: "high", Count: 2, Min: 300, Median: 400, Max: 500, Mean: 400},
	}, dist.Labels)

	_, err = e.ClusterDistribution(2023)
	require.ErrorIs(t, err, ErrNoData)
}

func TestClusterQueries_Unavailable(t *testing.T) {
	e := NewEngine(buildDataset(t, nil), 0)
	_, err := e.ClusterHistory("R1")
	require.ErrorIs(t, err, ErrClusterUnavailable)
	_, err = e.ClusterDistribution(2022)
	require.ErrorIs(t, err, ErrClusterUnavailable)
	_, err = e.Page(pagination.TableClusters, RowFilter{}, 0, 10)
	require.ErrorIs(t, err, ErrClusterUnavailable)
}

func TestConcentration(t *testing.T) {
	e := NewEngine(buildDataset(t, nil), 0)
	out, err := e.Concentration(2023, "", 0)
	require.NoError(t, err)
	require.Equal(t, 5, out.TopN)
	require.Equal(t, 3, out.Crops)
	require.Equal(t, []GroupShare{
		{Name: "A", Share: 0.4, Total: 100},
		{Name: "B", Share: 0.4, Total: 100},
		{Name: "C", Share: 0.2, Total: 50},
	}, out.Groups)
	require.InDelta(t, 0.36, out.HHI, 1e-9)
	require.Equal(t, "highly_concentrated", out.Band)
	require.InDelta(t, 0.0, out.OtherShare, 1e-9)

	_, err = e.Concentration(2019, "", 3)
	require.ErrorIs(t, err, ErrNoData)
}

func TestCompositionShift(t *testing.T) {
	e := NewEngine(buildDataset(t, nil), 0)
	out, err := e.CompositionShift(0, 0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 2023, out.Baseline)
	require.Equal(t, 2024, out.Current)
	require.Equal(t, 5.0, out.MixThresholdPP)
	require.Len(t, out.Groups, 4)
	require.Equal(t, GroupMix{Name: "A", ShareBaseline: 0.4, ShareCurrent: 1, PPChange: 60, Highlight: true}, out.Groups[0])
	require.Equal(t, "B", out.Groups[1].Name)
	require.Equal(t, -40.0, out.Groups[1].PPChange)
	require.Equal(t, "D", out.Groups[3].Name)
	require.False(t, out.Groups[3].Highlight)

	_, err = e.CompositionShift(2020, 2021, 0, 0)
	require.ErrorIs(t, err, ErrUnknownYear)
}

func TestPage_RecordsAndWide(t *testing.T) {
	e := NewEngine(buildDataset(t, nil), 0)

	p, err := e.Page(pagination.TableRecords, RowFilter{Crop: "A", Year: 2023}, 0, 10)
	require.NoError(t, err)
	require.Equal(t, RecordColumns, p.Columns)
	require.Equal(t, 2, p.Total)
	require.Equal(t, []string{"R1", "2023", "A", "60", "10", "6"}, p.Rows[0])

	p, err = e.Page(pagination.TableWide, RowFilter{Region: "R1"}, 1, 2)
	require.NoError(t, err)
	require.Equal(t, 4, p.Total)
	require.Len(t, p.Rows, 2)
	require.Equal(t, "Region", p.Columns[0])

	p, err = e.Page(pagination.TableWide, RowFilter{}, 100, 2)
	require.NoError(t, err)
	require.Empty(t, p.Rows)
}
