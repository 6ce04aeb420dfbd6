package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rmgsl/mapa-od/internal/geo"
)

// RouterOptions holds what the routes need besides the cache
type RouterOptions struct {
	Locations      *geo.LocationTable
	LineStyle      geo.LineStyle
	MapTopN        int
	AllowedOrigins []string
}

// NewRouter mounts every API route
func NewRouter(c SurveyCache, opts RouterOptions) http.Handler {
	if opts.Locations == nil {
		opts.Locations = geo.DefaultTable()
	}

	health := NewHealthHandler(c, opts.Locations)
	sources := NewSourceHandler(c)
	flows := NewFlowHandler(c, opts.Locations, opts.LineStyle, opts.MapTopN)
	matrix := NewMatrixHandler(c)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found", map[string]interface{}{
			"path":   r.URL.Path,
			"method": r.Method,
		})
	})

	// Health
	r.Get("/health", health.GetHealth)
	r.Get("/healthz", health.Liveness)

	r.Route("/api", func(r chi.Router) {
		r.Get("/locations", health.GetLocations)
		r.Get("/sources", sources.ListSources)

		r.Route("/sources/{sourceId}", func(r chi.Router) {
			r.Post("/reload", sources.Reload)
			r.Get("/filters", sources.GetFilters)
			r.Get("/flows", flows.GetFlows)
			r.Get("/map", flows.GetMap)
			r.Get("/matrix", matrix.GetMatrix)
			r.Get("/heatmaps", matrix.GetHeatmaps)
			r.Get("/heatmaps/{rows}/{cols}", matrix.GetHeatmap)
		})
	})

	return r
}
