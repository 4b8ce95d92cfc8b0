package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables recognised by Load.
const (
	EnvDataDir      = "BIOFARMAKA_DATA_DIR"
	EnvAllowedDirs  = "BIOFARMAKA_ALLOWED_DIRS"
	EnvHTTPAddr     = "BIOFARMAKA_HTTP_ADDR"
	EnvCORSOrigins  = "BIOFARMAKA_CORS_ORIGINS"
	EnvSnapshotTTL  = "BIOFARMAKA_SNAPSHOT_TTL"
	EnvTopN         = "BIOFARMAKA_TOP_N"
	EnvLogLevel     = "BIOFARMAKA_LOG_LEVEL"
	EnvClusterYears = "BIOFARMAKA_CLUSTER_YEARS"
	EnvEnableExport = "BIOFARMAKA_ENABLE_EXPORT"
	EnvExportDir    = "BIOFARMAKA_EXPORT_DIR"
)

// Settings is the resolved process configuration.
type Settings struct {
	DataDir      string
	AllowedDirs  []string
	HTTPAddr     string
	CORSOrigins  []string
	SnapshotTTL  time.Duration
	TopN         int
	LogLevel     string
	ClusterYears []int
	EnableExport bool
	ExportDir    string
}

// Load reads settings from the environment. A .env file in the working
// directory (or the given files) seeds variables that are not already set.
func Load(envFiles ...string) (Settings, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("config: load env file: %w", err)
	}

	s := Settings{
		DataDir:      getenv(EnvDataDir, DefaultDataDir),
		HTTPAddr:     getenv(EnvHTTPAddr, DefaultHTTPAddr),
		LogLevel:     strings.ToLower(getenv(EnvLogLevel, DefaultLogLevel)),
		SnapshotTTL:  DefaultSnapshotIdleTTL,
		TopN:         DefaultTopN,
		ClusterYears: append([]int(nil), DefaultClusterYears...),
		CORSOrigins:  []string{"*"},
		ExportDir:    strings.TrimSpace(os.Getenv(EnvExportDir)),
	}

	if v := os.Getenv(EnvAllowedDirs); v != "" {
		s.AllowedDirs = filepath.SplitList(v)
	}
	if v := os.Getenv(EnvCORSOrigins); v != "" {
		s.CORSOrigins = splitCSV(v)
	}
	if v := os.Getenv(EnvSnapshotTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Settings{}, fmt.Errorf("config: invalid %s %q", EnvSnapshotTTL, v)
		}
		s.SnapshotTTL = d
	}
	if v := os.Getenv(EnvTopN); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Settings{}, fmt.Errorf("config: invalid %s %q", EnvTopN, v)
		}
		s.TopN = n
	}
	if v := os.Getenv(EnvClusterYears); v != "" {
		years, err := parseYears(v)
		if err != nil {
			return Settings{}, err
		}
		s.ClusterYears = years
	}
	if v := os.Getenv(EnvEnableExport); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Settings{}, fmt.Errorf("config: invalid %s %q", EnvEnableExport, v)
		}
		s.EnableExport = b
	}
	// The data and export directories are allowed by default.
	if len(s.AllowedDirs) == 0 {
		for _, d := range []string{s.DataDir, s.ExportDir} {
			if d != "" {
				s.AllowedDirs = append(s.AllowedDirs, d)
			}
		}
	}
	return s, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseYears(v string) ([]int, error) {
	var years []int
	for _, p := range splitCSV(v) {
		y, err := strconv.Atoi(p)
		if err != nil || y <= 0 {
			return nil, fmt.Errorf("config: invalid %s entry %q", EnvClusterYears, p)
		}
		years = append(years, y)
	}
	return years, nil
}
