package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinodismyname/biofarmaka/internal/insights"
	"github.com/vinodismyname/biofarmaka/internal/report"
	"github.com/vinodismyname/biofarmaka/internal/security"
	"github.com/vinodismyname/biofarmaka/pkg/mcperr"
	"github.com/vinodismyname/biofarmaka/pkg/validation"
)

// OutputValidator checks export destinations against the allow-list.
type OutputValidator interface {
	ValidateOutputDir(dir string) (string, error)
}

// Deps are the collaborators the tool handlers need.
type Deps struct {
	Service   *insights.Service
	Outputs   OutputValidator
	Filter    *ExportToolFilter
	ExportDir string
	// TextBudget caps the text block of a result in characters; 0 disables.
	TextBudget int
}

// NoInput is the argument type of tools without parameters.
type NoInput struct{}

// ExportSnapshotInput selects what export_snapshot writes.
type ExportSnapshotInput struct {
	Dir     string   `json:"dir,omitempty" jsonschema_description:"Destination directory inside an allowed root; defaults to the configured export directory"`
	Formats []string `json:"formats,omitempty" validate:"omitempty,dive,oneof=xlsx sqlite png" jsonschema_description:"Any of xlsx, sqlite, png (default all)"`
	Year    int      `json:"year,omitempty" validate:"omitempty,year" jsonschema_description:"Ranking year (default latest)"`
	Crop    string   `json:"crop,omitempty" validate:"omitempty,selector" jsonschema_description:"Crop for the trend chart (default first crop)"`
	Regions []string `json:"regions,omitempty" validate:"omitempty,max=20,dive,selector" jsonschema_description:"Regions for the trend chart (default first two)"`
}

// RegisterTools adds every analytics tool to the server and the registry.
func RegisterTools(s *server.MCPServer, reg *Registry, d Deps) {
	for _, st := range BuildTools(d) {
		reg.Register(st)
	}
	s.AddTools(reg.ServerTools()...)
}

// BuildTools returns the tool definitions bound to their handlers.
func BuildTools(d Deps) []server.ServerTool {
	svc := d.Service
	return []server.ServerTool{
		typedTool(d, "list_selectors",
			"List the selection values of the current data snapshot: years, regions, crops (paired Production_/HarvestArea_ columns), the default trend regions and cluster availability. Also returns load stats and diagnostics (dropped rows, coerced cells, unpaired columns, duplicate region-years). Call this first to ground later selections.",
			func(ctx context.Context, _ NoInput) (insights.SelectorsOutput, error) { return svc.ListSelectors(ctx) },
			summarizeSelectors),
		typedTool(d, "yearly_summary",
			"Total production (kg), total harvest area and mean efficiency (kg per area unit, mean over all records; zero-area records count as 0) for one year, plus the production change against the previous calendar year. The change is null with absent_reason no_prior_data or zero_prior_total when it cannot be computed. Errors: UNKNOWN_SELECTION.",
			svc.YearlySummary, summarizeYearly),
		typedTool(d, "crop_comparison",
			"Per-crop total production, total harvest area and mean efficiency (zero-area records count as 0) for one year, crops ascending by name. Errors: UNKNOWN_SELECTION, NO_DATA.",
			svc.CropComparison, summarizeCropComparison),
		typedTool(d, "rank_crops",
			"Dense ranking of crops by total production for a year, optionally within one region. Crops with zero production are excluded; equal totals share a rank. Returns at most top_n entries (default 10). Errors: UNKNOWN_SELECTION, NO_DATA.",
			svc.RankCrops, summarizeRanking),
		typedTool(d, "cluster_history",
			"Cluster label (0 low, 1 medium, 2 high potential) and totals of one region across every loaded cluster year. Errors: CLUSTER_UNAVAILABLE, NO_DATA.",
			svc.ClusterHistory, summarizeClusterHistory),
		typedTool(d, "cluster_distribution",
			"Cluster rows of one year ordered by region, with per-label min, median, max and mean of Production_Total for box plots. Errors: CLUSTER_UNAVAILABLE, NO_DATA.",
			svc.ClusterDistribution, summarizeDistribution),
		typedTool(d, "crop_trend",
			"Production of one crop per year for the selected regions (default: the first two regions). Unknown regions are rejected. Errors: UNKNOWN_SELECTION, NO_DATA.",
			svc.CropTrend, summarizeTrend),
		typedTool(d, "crop_concentration",
			"How concentrated a year's production is across crops: Top-N share, the remaining 'Other' share and the Herfindahl-Hirschman index with an unconcentrated/moderately/highly concentrated band. Optional region scope. Errors: UNKNOWN_SELECTION, NO_DATA.",
			svc.Concentration, summarizeConcentration),
		typedTool(d, "composition_shift",
			"Share of production by crop in a baseline and a current year and the percentage-point change, Top-N movers first with the rest grouped as 'Other'. Without years the latest two years are compared. Errors: UNKNOWN_SELECTION, NO_DATA.",
			svc.CompositionShift, summarizeComposition),
		typedTool(d, "preview_table",
			"Page through a snapshot table: wide (filtered source rows), clusters (unified cluster table) or records (long-form region, year, crop rows). Filters: region, year, crop (records only). Returns next_cursor while rows remain; a cursor is bound to the snapshot and must be restarted after a reload. Errors: VALIDATION, CURSOR_INVALID, CLUSTER_UNAVAILABLE.",
			svc.PreviewTable, summarizePage),
		typedTool(d, "export_snapshot",
			"Write the current snapshot to files: an xlsx workbook (summary, ranking, records, wide, clusters), a SQLite database and PNG charts (ranking of a year, production trend of a crop). Only available when exports are enabled; the directory must be inside an allowed root. Errors: PERMISSION_DENIED, VALIDATION, EXPORT_FAILED.",
			func(ctx context.Context, in ExportSnapshotInput) (report.Manifest, error) { return exportSnapshot(ctx, d, in) },
			summarizeManifest),
	}
}

// typedTool builds a tool whose handler validates the typed input, runs fn
// and returns the structured output with a text rendering.
func typedTool[In, Out any](d Deps, name, description string, fn func(context.Context, In) (Out, error), summarize func(Out) (string, []string)) server.ServerTool {
	tool := mcp.NewTool(
		name,
		mcp.WithDescription(description),
		mcp.WithInputSchema[In](),
		mcp.WithOutputSchema[Out](),
	)
	handler := mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in In) (*mcp.CallToolResult, error) {
		if d.Filter != nil && !d.Filter.Allowed(name) {
			return mcperr.New(mcperr.PermissionDenied, name+" is disabled on this server"), nil
		}
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		out, err := fn(ctx, in)
		if err != nil {
			return mcperr.New(classify(name, err), err.Error()), nil
		}
		summary, lines := summarize(out)
		text := clip(strings.Join(append([]string{summary}, lines...), "\n"), d.TextBudget)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(text)}
		return res, nil
	})
	return server.ServerTool{Tool: tool, Handler: handler}
}

var exportErrors = []mcperr.Mapping{
	{Err: report.ErrUnknownFormat, Code: mcperr.Validation},
	{Err: security.ErrNotFound, Code: mcperr.Validation},
}

func classify(tool string, err error) mcperr.Code {
	if !strings.HasPrefix(tool, ExportPrefix) {
		return insights.Classify(err)
	}
	code := mcperr.Classify(err, insights.Classify(err), exportErrors...)
	if code == mcperr.AnalysisFailed {
		return mcperr.ExportFailed
	}
	return code
}

func exportSnapshot(ctx context.Context, d Deps, in ExportSnapshotInput) (report.Manifest, error) {
	dir := strings.TrimSpace(in.Dir)
	if dir == "" {
		dir = d.ExportDir
	}
	if d.Outputs == nil {
		return report.Manifest{}, security.ErrNotAllowed
	}
	outDir, err := d.Outputs.ValidateOutputDir(dir)
	if err != nil {
		return report.Manifest{}, fmt.Errorf("export dir %q: %w", dir, err)
	}
	formats, err := report.ParseFormats(strings.Join(in.Formats, ","))
	if err != nil {
		return report.Manifest{}, err
	}
	e, err := d.Service.Engine(ctx)
	if err != nil {
		return report.Manifest{}, err
	}
	return report.Export(ctx, e, report.Options{
		Dir:     outDir,
		Formats: formats,
		Year:    in.Year,
		Crop:    strings.TrimSpace(in.Crop),
		Regions: in.Regions,
	})
}

// clip truncates text to budget characters on a line boundary when possible.
func clip(text string, budget int) string {
	if budget <= 0 || len(text) <= budget {
		return text
	}
	cut := text[:budget]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + "\n... (truncated; see structured content)"
}

func summarizeSelectors(out insights.SelectorsOutput) (string, []string) {
	summary := fmt.Sprintf("years=%d regions=%d crops=%d cluster_available=%v snapshot=%s",
		len(out.Years), len(out.Regions), len(out.Crops), out.ClusterAvailable, out.Meta.SnapshotID)
	lines := []string{
		"years: " + joinInts(out.Years),
		"crops: " + strings.Join(out.Crops, ", "),
		"default_trend_regions: " + strings.Join(out.DefaultTrendRegions, ", "),
	}
	if out.ClusterAvailable {
		lines = append(lines, "cluster_years: "+joinInts(out.ClusterYears))
	}
	for _, dg := range out.Diagnostics {
		lines = append(lines, fmt.Sprintf("- %s [%s] %s", dg.Kind, dg.Severity, dg.Message))
	}
	return summary, lines
}

func summarizeYearly(out insights.YearlySummaryOutput) (string, []string) {
	t := out.Totals
	summary := fmt.Sprintf("year=%d production_kg=%s harvest_area=%s mean_efficiency=%s",
		t.Year, num(t.ProductionKg), num(t.HarvestArea), optNum(t.MeanEfficiency))
	yoy := "yoy: " + optNum(out.YoY.DeltaPct) + "%"
	if out.YoY.DeltaPct == nil {
		yoy = "yoy: n/a (" + out.YoY.AbsentReason + ")"
	}
	return summary, []string{yoy}
}

func summarizeCropComparison(out insights.CropComparisonOutput) (string, []string) {
	lines := make([]string, 0, len(out.Crops))
	for _, c := range out.Crops {
		lines = append(lines, fmt.Sprintf("- %s production_kg=%s area=%s efficiency=%s", c.Crop, num(c.ProductionKg), num(c.HarvestArea), num(c.MeanEfficiency)))
	}
	return fmt.Sprintf("year=%d crops=%d", out.Year, len(out.Crops)), lines
}

func summarizeRanking(out insights.RankCropsOutput) (string, []string) {
	scope := "all regions"
	if out.Region != "" {
		scope = out.Region
	}
	lines := make([]string, 0, len(out.Ranking))
	for _, r := range out.Ranking {
		lines = append(lines, fmt.Sprintf("%d. %s %s kg", r.Rank, r.Crop, num(r.ProductionKg)))
	}
	return fmt.Sprintf("year=%d scope=%s entries=%d", out.Year, scope, len(out.Ranking)), lines
}

func summarizeClusterHistory(out insights.ClusterHistoryOutput) (string, []string) {
	lines := make([]string, 0, len(out.History))
	for _, c := range out.History {
		lines = append(lines, fmt.Sprintf("- %d cluster=%d (%s) production=%d area=%d", c.Year, int(c.Cluster), c.Cluster, c.ProductionTotal, c.HarvestAreaTotal))
	}
	return fmt.Sprintf("region=%s years=%d", out.Region, len(out.History)), lines
}

func summarizeDistribution(out insights.ClusterDistributionOutput) (string, []string) {
	lines := make([]string, 0, len(out.Labels))
	for _, l := range out.Labels {
		lines = append(lines, fmt.Sprintf("- %s n=%d min=%d median=%s max=%d mean=%s", l.Label, l.Count, l.Min, num(l.Median), l.Max, num(l.Mean)))
	}
	return fmt.Sprintf("year=%d regions=%d labels=%d", out.Year, len(out.Rows), len(out.Labels)), lines
}

func summarizeTrend(out insights.CropTrendOutput) (string, []string) {
	lines := make([]string, 0, len(out.Points))
	for _, p := range out.Points {
		lines = append(lines, fmt.Sprintf("- %d %s %s kg", p.Year, p.Region, num(p.ProductionKg)))
	}
	return fmt.Sprintf("crop=%s regions=%s points=%d", out.Crop, strings.Join(out.Regions, ","), len(out.Points)), lines
}

func summarizeConcentration(out insights.ConcentrationOutput) (string, []string) {
	lines := make([]string, 0, len(out.Groups)+1)
	for _, g := range out.Groups {
		lines = append(lines, fmt.Sprintf("- %s share=%s total=%s", g.Name, num(g.Share), num(g.Total)))
	}
	lines = append(lines, "other_share="+num(out.OtherShare))
	return fmt.Sprintf("year=%d crops=%d hhi=%s band=%s", out.Year, out.Crops, num(out.HHI), out.Band), lines
}

func summarizeComposition(out insights.CompositionShiftOutput) (string, []string) {
	lines := make([]string, 0, len(out.Groups))
	for _, g := range out.Groups {
		mark := ""
		if g.Highlight {
			mark = " *"
		}
		lines = append(lines, fmt.Sprintf("- %s %s -> %s (%+.2fpp)%s", g.Name, num(g.ShareBaseline), num(g.ShareCurrent), g.PPChange, mark))
	}
	return fmt.Sprintf("baseline=%d current=%d movers=%d threshold_pp=%s", out.Baseline, out.Current, len(out.Groups), num(out.MixThresholdPP)), lines
}

func summarizePage(out insights.PreviewTableOutput) (string, []string) {
	summary := fmt.Sprintf("table=%s rows=%d offset=%d total=%d", out.Table, len(out.Rows), out.Offset, out.Total)
	if out.NextCursor != "" {
		summary += " next_cursor=" + out.NextCursor
	}
	lines := []string{strings.Join(out.Columns, " | ")}
	for _, r := range out.Rows {
		lines = append(lines, strings.Join(r, " | "))
	}
	return summary, lines
}

func summarizeManifest(out report.Manifest) (string, []string) {
	lines := make([]string, 0, len(out.Files)+len(out.Skipped))
	for _, f := range out.Files {
		lines = append(lines, fmt.Sprintf("- %s %s", f.Format, f.Path))
	}
	for _, s := range out.Skipped {
		lines = append(lines, "skipped: "+s)
	}
	return fmt.Sprintf("snapshot=%s files=%d skipped=%d", out.SnapshotID, len(out.Files), len(out.Skipped)), lines
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func optNum(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return num(*v)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
