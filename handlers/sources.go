package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rmgsl/mapa-od/internal/cache"
	"github.com/rmgsl/mapa-od/internal/survey"
	"github.com/rmgsl/mapa-od/models"
)

// SurveyCache defines the source cache operations the handlers use
type SurveyCache interface {
	Get(ctx context.Context, id string) (*survey.Table, error)
	Reload(ctx context.Context, id string) (*survey.Table, error)
	Status() []cache.Status
}

// SourceHandler handles HTTP requests about the configured sources
type SourceHandler struct {
	cache SurveyCache
}

// NewSourceHandler creates a new handler over the given cache
func NewSourceHandler(c SurveyCache) *SourceHandler {
	return &SourceHandler{cache: c}
}

// ListSources handles GET /api/sources
// Never triggers a load
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	statuses := h.cache.Status()
	writeJSON(w, http.StatusOK, cacheNone, models.SourcesResponse{
		Sources: statuses,
		Count:   len(statuses),
	})
}

// Reload handles POST /api/sources/{sourceId}/reload
// A failed reload keeps serving the previous snapshot and answers with the
// load error
func (h *SourceHandler) Reload(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceId")
	table, err := h.cache.Reload(r.Context(), sourceID)
	if err != nil {
		writeSourceError(w, sourceID, err)
		return
	}

	log.Infof("Reloaded source %s on request: snapshot %s", sourceID, table.SnapshotID)
	writeJSON(w, http.StatusOK, cacheNone, models.ReloadResponse{
		Snapshot: models.NewSnapshot(table),
		Records:  table.Len(),
	})
}

// GetFilters handles GET /api/sources/{sourceId}/filters
// Returns the sorted distinct values of every attribute the source provides.
// Location values follow ?level= (default grouped, like the flows).
func (h *SourceHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	level, err := survey.ParseLevel(r.URL.Query().Get("level"), survey.LevelGrouped)
	if err != nil {
		badRequest(w, err)
		return
	}

	sourceID := chi.URLParam(r, "sourceId")
	table, err := h.cache.Get(r.Context(), sourceID)
	if err != nil {
		writeSourceError(w, sourceID, err)
		return
	}

	view := &survey.Table{Records: survey.AtLevel(table.Records, level)}
	values := make(map[survey.Attribute][]string, len(table.Attributes))
	for _, attr := range table.Attributes {
		values[attr] = view.Distinct(attr)
	}

	writeJSON(w, http.StatusOK, cacheResults, models.FiltersResponse{
		Snapshot:   models.NewSnapshot(table),
		Attributes: table.Attributes,
		Values:     values,
		Records:    table.Len(),
	})
}
