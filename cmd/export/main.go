package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/vinodismyname/biofarmaka/config"
	"github.com/vinodismyname/biofarmaka/internal/ingest"
	"github.com/vinodismyname/biofarmaka/internal/insights"
	"github.com/vinodismyname/biofarmaka/internal/report"
	"github.com/vinodismyname/biofarmaka/internal/security"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		envFile string
		dataDir string
		outDir  string
		formats string
		year    int
		crop    string
		regions string
		quiet   bool
	)
	flag.StringVar(&envFile, "env-file", "", "Optional .env file (default ./.env)")
	flag.StringVar(&dataDir, "data-dir", "", "Directory holding dataset_final and cluster_<year> sources")
	flag.StringVar(&outDir, "out", "", "Output directory (default BIOFARMAKA_EXPORT_DIR or ./export)")
	flag.StringVar(&formats, "formats", "", "Comma-separated formats: xlsx,sqlite,png (default all)")
	flag.IntVar(&year, "year", 0, "Ranking year (default latest)")
	flag.StringVar(&crop, "crop", "", "Crop for the trend chart (default first crop)")
	flag.StringVar(&regions, "region", "", "Comma-separated regions for the trend chart")
	flag.BoolVar(&quiet, "quiet", false, "Do not print the selector and ranking tables")
	flag.Parse()

	if err := run(envFile, dataDir, outDir, formats, year, crop, regions, quiet); err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile, dataDir, outDir, formats string, year int, crop, regions string, quiet bool) error {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	settings, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	if dataDir == "" {
		dataDir = settings.DataDir
	}
	if outDir == "" {
		outDir = settings.ExportDir
	}
	if outDir == "" {
		outDir = "export"
	}
	if level, err := zerolog.ParseLevel(settings.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	logger := zlog.With().Str("service", "biofarmaka-export").Logger()
	ctx := logger.WithContext(context.Background())

	fs, err := report.ParseFormats(formats)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	secMgr, err := security.NewManager([]string{dataDir, outDir}, nil)
	if err != nil {
		return err
	}
	dest, err := secMgr.ValidateOutputDir(outDir)
	if err != nil {
		return err
	}

	start := time.Now()
	ld, err := ingest.NewLoader(ingest.DiscoverSources(dataDir, settings.ClusterYears), secMgr).Load(ctx)
	if err != nil {
		return err
	}
	ds, err := ingest.Build(ld, time.Now())
	if err != nil {
		return err
	}
	logger.Info().
		Str("snapshot", ds.ID).
		Int("records", ds.Stats.Records).
		Int("diagnostics", len(ds.Diagnostics)).
		Dur("took", time.Since(start)).
		Msg("snapshot loaded")
	for _, d := range ds.Diagnostics {
		logger.Warn().Str("kind", d.Kind).Str("source", d.Source).Msg(d.Message)
	}

	e := insights.NewEngine(ds, settings.TopN)
	opts := report.Options{Dir: dest, Formats: fs, Year: year, Crop: crop}
	for _, r := range strings.Split(regions, ",") {
		if r = strings.TrimSpace(r); r != "" {
			opts.Regions = append(opts.Regions, r)
		}
	}
	m, err := report.Export(ctx, e, opts)
	if err != nil {
		return err
	}

	if !quiet {
		report.RenderSelectors(os.Stdout, e.Selectors())
		ranked, err := e.RankCrops(m.Year, "")
		switch {
		case errors.Is(err, insights.ErrNoData), errors.Is(err, insights.ErrUnknownYear):
		case err != nil:
			return err
		default:
			fmt.Fprintf(os.Stdout, "\nTop crops %d\n", m.Year)
			report.RenderRanking(os.Stdout, ranked)
		}
	}
	for _, f := range m.Files {
		fmt.Fprintf(os.Stdout, "%s\t%s\n", f.Format, f.Path)
	}
	for _, s := range m.Skipped {
		fmt.Fprintf(os.Stderr, "skipped: %s\n", s)
	}
	return nil
}
