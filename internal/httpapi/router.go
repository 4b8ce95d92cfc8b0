package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/biofarmaka/internal/insights"
	"github.com/vinodismyname/biofarmaka/internal/telemetry"
)

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins []string
	Logger      zerolog.Logger
	// Limit wraps the /api routes, typically runtime.Middleware.HTTPMiddleware.
	Limit func(http.Handler) http.Handler
	// MCP, when set, is mounted at /mcp.
	MCP http.Handler
}

// API serves the dashboard endpoints over an insights.Service.
type API struct {
	svc *insights.Service
}

// NewRouter wires middlewares and endpoints.
func NewRouter(svc *insights.Service, opts Options) http.Handler {
	a := &API{svc: svc}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(telemetry.RequestLogger(opts.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Mcp-Session-Id", telemetry.RequestIDHeader},
		ExposedHeaders: []string{"Mcp-Session-Id", telemetry.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", a.handleHealth)
	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
	}

	r.Route("/api", func(api chi.Router) {
		if opts.Limit != nil {
			api.Use(opts.Limit)
		}
		api.Get("/selectors", a.handleSelectors)
		api.Get("/trend", a.handleTrend)
		api.Get("/composition", a.handleComposition)
		api.Get("/preview", a.handlePreview)

		api.Route("/years/{year}", func(yr chi.Router) {
			yr.Get("/summary", a.handleYearlySummary)
			yr.Get("/crops", a.handleCropComparison)
			yr.Get("/ranking", a.handleRanking)
			yr.Get("/concentration", a.handleConcentration)
			yr.Get("/clusters", a.handleClusterDistribution)
		})
		api.Get("/regions/{region}/clusters", a.handleClusterHistory)
	})

	return r
}
