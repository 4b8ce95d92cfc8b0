package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/vinodismyname/biofarmaka/config"
	"github.com/vinodismyname/biofarmaka/internal/httpapi"
	"github.com/vinodismyname/biofarmaka/internal/ingest"
	"github.com/vinodismyname/biofarmaka/internal/insights"
	"github.com/vinodismyname/biofarmaka/internal/registry"
	"github.com/vinodismyname/biofarmaka/internal/runtime"
	"github.com/vinodismyname/biofarmaka/internal/security"
	"github.com/vinodismyname/biofarmaka/internal/telemetry"
	"github.com/vinodismyname/biofarmaka/pkg/version"
)

// contextModel sizes the text block of tool results.
const contextModel = "gpt-4o"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		useStdio        bool
		useHTTP         bool
		envFile         string
		dataDir         string
		httpAddr        string
		shutdownTimeout time.Duration
	)

	flag.BoolVar(&useStdio, "stdio", false, "Run the MCP server over stdio transport")
	flag.BoolVar(&useHTTP, "http", false, "Serve the dashboard API and MCP streamable HTTP")
	flag.StringVar(&envFile, "env-file", "", "Optional .env file (default ./.env)")
	flag.StringVar(&dataDir, "data-dir", "", "Directory holding dataset_final and cluster_<year> sources")
	flag.StringVar(&httpAddr, "addr", "", "HTTP listen address")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", config.DefaultShutdownTimeout, "Graceful shutdown timeout")
	flag.Parse()

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	settings, err := config.Load(envFiles...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if dataDir != "" {
		settings.DataDir = dataDir
		if os.Getenv(config.EnvAllowedDirs) == "" {
			settings.AllowedDirs = []string{dataDir}
			if settings.ExportDir != "" {
				settings.AllowedDirs = append(settings.AllowedDirs, settings.ExportDir)
			}
		}
	}
	if httpAddr != "" {
		settings.HTTPAddr = httpAddr
	}
	if level, err := zerolog.ParseLevel(settings.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger := zlog.With().Str("service", "biofarmaka-server").Logger()
	ctx, stop := signal.NotifyContext(logger.WithContext(context.Background()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !useStdio && !useHTTP {
		fmt.Fprintln(os.Stderr, "no transport selected; use --stdio and/or --http")
		os.Exit(2)
	}

	// Security: validate allow-list directories on startup (fail-safe on error)
	secMgr, err := security.NewManager(settings.AllowedDirs, nil)
	if err != nil {
		logger.Error().Err(err).Msg("security: failed to initialize allow-list")
		fmt.Fprintf(os.Stderr, "invalid security configuration; check %s and %s\n", config.EnvDataDir, config.EnvAllowedDirs)
		os.Exit(1)
	}
	if err := secMgr.ValidateConfig(); err != nil {
		logger.Error().Err(err).Msg("security: invalid allow-list configuration")
		fmt.Fprintf(os.Stderr, "no allowed directories configured; set %s\n", config.EnvAllowedDirs)
		os.Exit(1)
	}
	logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")

	limits := runtime.NewLimits(config.DefaultMaxConcurrentRequests, config.DefaultMaxConcurrentLoads)
	limits.TopN = settings.TopN
	runtimeController := runtime.NewController(limits)
	runtimeMW := runtime.NewMiddleware(runtimeController)

	hooks := telemetry.NewHooks(logger)
	loader := ingest.NewLoader(ingest.DiscoverSources(settings.DataDir, settings.ClusterYears), secMgr)
	cache := ingest.NewCache(loader, settings.SnapshotTTL, config.DefaultSnapshotCleanupPeriod, runtimeController, time.Now).WithObserver(hooks)
	cache.Start()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := cache.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("snapshot cache close")
		}
	}()

	svc := insights.NewService(cache, runtimeController.LimitsSnapshot())

	toolRegistry := registry.New()
	exportFilter := registry.NewExportToolFilter(settings.EnableExport)

	srv := server.NewMCPServer(
		"Biofarmaka Crop Analytics Server",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks.ServerHooks()),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
		server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool { return exportFilter.FilterTools(ctx, tools) }),
	)

	textBudget := toolRegistry.TextBudget(contextModel)
	registry.RegisterTools(srv, toolRegistry, registry.Deps{
		Service:    svc,
		Outputs:    secMgr,
		Filter:     exportFilter,
		ExportDir:  settings.ExportDir,
		TextBudget: textBudget,
	})

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Str("data_dir", settings.DataDir).
		Ints("cluster_years", settings.ClusterYears).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Dur("snapshot_ttl", settings.SnapshotTTL).
		Bool("export_enabled", settings.EnableExport).
		Int("model_context_size", toolRegistry.ModelContextSize(contextModel)).
		Int("text_budget", textBudget).
		Bool("stdio", useStdio).
		Bool("http", useHTTP).
		Msg("server bootstrap configured")

	// Warm the snapshot so load problems surface at startup.
	if _, err := cache.Current(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial snapshot load failed; will retry on first request")
	}

	errCh := make(chan error, 2)
	var httpSrv *http.Server
	if useHTTP {
		httpSrv = &http.Server{
			Addr: settings.HTTPAddr,
			Handler: httpapi.NewRouter(svc, httpapi.Options{
				CORSOrigins: settings.CORSOrigins,
				Logger:      logger,
				Limit:       runtimeMW.HTTPMiddleware,
				MCP:         server.NewStreamableHTTPServer(srv),
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", settings.HTTPAddr).Msg("http listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http: %w", err)
			}
		}()
	}
	if useStdio {
		go func() {
			if err := server.ServeStdio(srv); err != nil {
				errCh <- fmt.Errorf("stdio: %w", err)
				return
			}
			// stdin closed: the client went away.
			stop()
		}()
	}

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		// Use stderr for transport errors so clients don't misinterpret output
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		exitCode = 1
	}

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http shutdown")
		}
		cancel()
	}
	logger.Info().Msg("server stopped")
	if exitCode != 0 {
		stop()
		os.Exit(exitCode)
	}
}
