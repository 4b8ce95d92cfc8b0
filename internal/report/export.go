package report

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/biofarmaka/internal/insights"
	"github.com/vinodismyname/biofarmaka/internal/schema"
)

// Format names an export artifact type.
type Format string

const (
	FormatXLSX   Format = "xlsx"
	FormatSQLite Format = "sqlite"
	FormatPNG    Format = "png"
)

// AllFormats lists every export format.
var AllFormats = []Format{FormatXLSX, FormatSQLite, FormatPNG}

// ErrUnknownFormat indicates an unsupported export format name.
var ErrUnknownFormat = errors.New("report: unknown export format")

// ParseFormats parses a comma-separated list. Empty input selects all formats.
func ParseFormats(s string) ([]Format, error) {
	if strings.TrimSpace(s) == "" {
		return AllFormats, nil
	}
	var out []Format
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		switch f {
		case FormatXLSX, FormatSQLite, FormatPNG:
			out = append(out, f)
		case "":
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, part)
		}
	}
	return out, nil
}

// Options selects what Export writes. Zero Year ranks the latest year; empty
// Crop charts the first crop; empty Regions uses the default trend regions.
type Options struct {
	Dir     string
	Formats []Format
	Year    int
	Crop    string
	Regions []string
}

// Artifact is one written file.
type Artifact struct {
	Format Format `json:"format"`
	Path   string `json:"path"`
}

// Manifest lists the files an export produced.
type Manifest struct {
	SnapshotID string     `json:"snapshot_id"`
	Year       int        `json:"year"`
	Crop       string     `json:"crop,omitempty"`
	Files      []Artifact `json:"files"`
	Skipped    []string   `json:"skipped,omitempty"`
}

// Export writes the requested artifacts for the engine's snapshot into
// opts.Dir. Charts without data are skipped and reported in the manifest.
func Export(ctx context.Context, e *insights.Engine, opts Options) (Manifest, error) {
	logger := zerolog.Ctx(ctx)
	ds := e.Dataset()
	m := Manifest{SnapshotID: ds.ID, Year: opts.Year, Crop: opts.Crop}

	years := ds.Years()
	if m.Year == 0 && len(years) > 0 {
		m.Year = years[len(years)-1]
	}
	if m.Crop == "" {
		if crops := ds.CropNames(); len(crops) > 0 {
			m.Crop = crops[0]
		}
	}
	if opts.Year != 0 && !ds.HasYear(opts.Year) {
		return m, fmt.Errorf("%w: %d", insights.ErrUnknownYear, opts.Year)
	}
	formats := opts.Formats
	if len(formats) == 0 {
		formats = AllFormats
	}

	for _, f := range formats {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		switch f {
		case FormatXLSX:
			path := filepath.Join(opts.Dir, "biofarmaka.xlsx")
			if err := WriteWorkbook(path, e, m.Year); err != nil {
				return m, err
			}
			m.Files = append(m.Files, Artifact{Format: f, Path: path})
		case FormatSQLite:
			path := filepath.Join(opts.Dir, "biofarmaka.sqlite")
			if err := WriteSQLite(ctx, path, ds); err != nil {
				return m, err
			}
			m.Files = append(m.Files, Artifact{Format: f, Path: path})
		case FormatPNG:
			if err := exportCharts(e, opts, &m); err != nil {
				return m, err
			}
		default:
			return m, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
	}
	logger.Info().Str("snapshot", ds.ID).Int("files", len(m.Files)).Strs("skipped", m.Skipped).Msg("export complete")
	return m, nil
}

func exportCharts(e *insights.Engine, opts Options, m *Manifest) error {
	ranked, err := e.RankCrops(m.Year, "")
	switch {
	case errors.Is(err, insights.ErrNoData), errors.Is(err, insights.ErrUnknownYear):
		m.Skipped = append(m.Skipped, "ranking chart: "+err.Error())
	case err != nil:
		return err
	default:
		path := filepath.Join(opts.Dir, "ranking_"+strconv.Itoa(m.Year)+".png")
		if err := RankingChart(path, m.Year, ranked); err != nil {
			return err
		}
		m.Files = append(m.Files, Artifact{Format: FormatPNG, Path: path})
	}

	if m.Crop == "" {
		m.Skipped = append(m.Skipped, "trend chart: no crops")
		return nil
	}
	points, err := e.CropTrend(m.Crop, opts.Regions)
	switch {
	case errors.Is(err, insights.ErrNoData):
		m.Skipped = append(m.Skipped, "trend chart: "+err.Error())
	case err != nil:
		return err
	default:
		path := filepath.Join(opts.Dir, "trend_"+schema.NormalizeColumn(m.Crop)+".png")
		if err := TrendChart(path, m.Crop, points); err != nil {
			return err
		}
		m.Files = append(m.Files, Artifact{Format: FormatPNG, Path: path})
	}
	return nil
}
