package handlers

import (
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/rmgsl/mapa-od/internal/cache"
	"github.com/rmgsl/mapa-od/internal/geo"
	"github.com/rmgsl/mapa-od/models"
)

// HealthHandler handles health checks and the location table
type HealthHandler struct {
	cache     SurveyCache
	locations *geo.LocationTable
}

// NewHealthHandler creates a new handler
func NewHealthHandler(c SurveyCache, locations *geo.LocationTable) *HealthHandler {
	return &HealthHandler{cache: c, locations: locations}
}

// GetHealth handles GET /health
// Reports the load state of every source without loading any. Status is
// "degraded" while any source has a failed load, and the response is 503
// when no source has a table to serve.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	statuses := h.cache.Status()
	status := models.StatusOK
	httpStatus := http.StatusOK

	if lo.ContainsBy(statuses, func(s cache.Status) bool { return s.Error != "" }) {
		status = models.StatusDegraded
		failed := lo.EveryBy(statuses, func(s cache.Status) bool { return !s.Loaded && s.Error != "" })
		if failed {
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, cacheNone, models.HealthResponse{
		Status:    status,
		Sources:   statuses,
		Timestamp: time.Now().UTC(),
	})
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// GetLocations handles GET /api/locations
// Places without a coordinate are listed with null lat/lon
func (h *HealthHandler) GetLocations(w http.ResponseWriter, r *http.Request) {
	items := lo.Map(h.locations.Locations(), func(l geo.Location, _ int) models.LocationItem {
		item := models.LocationItem{Name: l.Name}
		if l.Coord != nil {
			lat, lon := l.Coord.Lat, l.Coord.Lon
			item.Lat, item.Lon = &lat, &lon
		}
		return item
	})

	writeJSON(w, http.StatusOK, "public, max-age=3600", models.LocationsResponse{
		Locations: items,
		Count:     len(items),
		Located:   len(h.locations.Located()),
	})
}
