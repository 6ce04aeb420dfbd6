package handlers

import (
	"fmt"
	"net/http"

	"github.com/samber/lo"

	"github.com/rmgsl/mapa-od/internal/export"
	"github.com/rmgsl/mapa-od/internal/geo"
	"github.com/rmgsl/mapa-od/internal/od"
	"github.com/rmgsl/mapa-od/internal/survey"
	"github.com/rmgsl/mapa-od/models"
)

// FlowHandler handles the flow list and the map layer
type FlowHandler struct {
	cache     SurveyCache
	locations *geo.LocationTable
	style     geo.LineStyle
	topN      int
}

// NewFlowHandler creates a handler drawing at most topN flows on the map.
// A style whose weight would not grow with total is replaced by the default.
func NewFlowHandler(c SurveyCache, locations *geo.LocationTable, style geo.LineStyle, topN int) *FlowHandler {
	if topN <= 0 {
		topN = od.DefaultTopN
	}
	if !style.Valid() {
		log.Warnf("Line scale %v does not grow with total, using default style", style.Scale)
		style = geo.DefaultLineStyle()
	}
	return &FlowHandler{cache: c, locations: locations, style: style, topN: topN}
}

// GetFlows handles GET /api/sources/{sourceId}/flows
// Query: mode (ab|ba|symmetric, default symmetric), level (default grouped),
// limit (default all), format (json|csv|xlsx), plus attribute filters.
// Flows are ordered by total, largest first.
func (h *FlowHandler) GetFlows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := od.ParseMode(q.Get("mode"), od.Symmetric)
	if err != nil {
		badRequest(w, err)
		return
	}
	limit, err := parseLimit(q, 0)
	if err != nil {
		badRequest(w, err)
		return
	}
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		badRequest(w, err)
		return
	}

	sel, ok := selectRecords(w, r, h.cache, survey.LevelGrouped)
	if !ok {
		return
	}

	all := od.AggregateFlows(sel.records, mode)
	flows := od.TopN(all, limit)

	if format != export.FormatJSON {
		writeDownload(w, format, sel.table.SourceID+"-flows", export.FlowsSheet("flows", flows))
		return
	}

	writeJSON(w, http.StatusOK, cacheResults, models.FlowsResponse{
		Snapshot:   models.NewSnapshot(sel.table),
		Selection:  sel.Selection,
		Mode:       mode,
		Summary:    od.Summarize(sel.records),
		Stats:      od.FlowStats(all),
		Flows:      flows,
		Count:      len(flows),
		TotalFlows: len(all),
		TotalTrips: od.TotalTrips(all),
	})
}

// GetMap handles GET /api/sources/{sourceId}/map
// Returns a GeoJSON FeatureCollection of the top flows (limit, default the
// configured top N) with line weights, plus a point per located place.
// Flows with an unlocated end are left out and listed under "unresolved".
func (h *FlowHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := od.ParseMode(q.Get("mode"), od.Symmetric)
	if err != nil {
		badRequest(w, err)
		return
	}
	limit, err := parseLimit(q, h.topN)
	if err != nil {
		badRequest(w, err)
		return
	}

	sel, ok := selectRecords(w, r, h.cache, survey.LevelGrouped)
	if !ok {
		return
	}

	all := od.AggregateFlows(sel.records, mode)
	top := od.TopN(all, limit)
	lines, unresolved := geo.MapLines(top, h.locations, h.style)

	fc := geo.Layer(lines, h.locations.Located())
	fc.ExtraMembers["sourceId"] = sel.table.SourceID
	fc.ExtraMembers["snapshotId"] = sel.table.SnapshotID
	fc.ExtraMembers["mode"] = mode
	fc.ExtraMembers["level"] = sel.Level
	fc.ExtraMembers["filters"] = sel.Filters
	fc.ExtraMembers["totalFlows"] = len(all)
	fc.ExtraMembers["drawn"] = len(lines)
	fc.ExtraMembers["stats"] = od.FlowStats(top)
	fc.ExtraMembers["unresolved"] = lo.Map(unresolved, func(f od.FlowRecord, _ int) string {
		return f.Pair.String()
	})

	body, err := fc.MarshalJSON()
	if err != nil {
		log.Errorf("Failed to encode map layer: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to encode map layer", nil)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", cacheResults)
	w.Header().Set("Vary", "Accept-Encoding")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Warnf("Failed to write map layer: %v", err)
	}
}

// writeDownload writes sheets as a CSV (first sheet only) or XLSX attachment
func writeDownload(w http.ResponseWriter, format export.Format, name string, sheets ...export.Sheet) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"."+string(format)))
	w.Header().Set("Cache-Control", cacheResults)

	var err error
	switch format {
	case export.FormatCSV:
		err = export.WriteCSV(w, sheets[0])
	case export.FormatXLSX:
		err = export.WriteXLSX(w, sheets...)
	}
	if err != nil {
		// Headers are gone; log only
		log.Errorf("Failed to write %s download %s: %v", format, name, err)
	}
}
