package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/rmgsl/mapa-od/internal/export"
	"github.com/rmgsl/mapa-od/internal/od"
	"github.com/rmgsl/mapa-od/internal/survey"
	"github.com/rmgsl/mapa-od/models"
)

// MatrixHandler handles the OD matrix and the attribute heatmaps
type MatrixHandler struct {
	cache    SurveyCache
	heatmaps []od.HeatmapPair
}

// NewMatrixHandler creates a handler serving the default heatmap set
func NewMatrixHandler(c SurveyCache) *MatrixHandler {
	return &MatrixHandler{cache: c, heatmaps: od.DefaultHeatmaps()}
}

// GetMatrix handles GET /api/sources/{sourceId}/matrix
// Query: level (default raw), transpose, format (json|csv|xlsx), plus
// attribute filters. Rows and columns only list places present in the
// filtered records.
func (h *MatrixHandler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	transpose, err := parseBool(q, "transpose")
	if err != nil {
		badRequest(w, err)
		return
	}
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		badRequest(w, err)
		return
	}

	sel, ok := selectRecords(w, r, h.cache, survey.LevelRaw)
	if !ok {
		return
	}

	m := od.BuildMatrix(sel.records, od.MatrixOptions{Transpose: transpose})

	if format != export.FormatJSON {
		writeDownload(w, format, sel.table.SourceID+"-matrix", export.MatrixSheet("matrix", m))
		return
	}

	writeJSON(w, http.StatusOK, cacheResults, models.MatrixResponse{
		Snapshot:   models.NewSnapshot(sel.table),
		Selection:  sel.Selection,
		Transposed: transpose,
		Matrix:     m,
		Total:      m.Total(),
	})
}

// GetHeatmaps handles GET /api/sources/{sourceId}/heatmaps
// Returns every default cross-tab over the filtered records. A pair whose
// attribute the source lacks is returned empty with available=false.
// format=xlsx puts each heatmap on its own sheet.
func (h *MatrixHandler) GetHeatmaps(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		badRequest(w, err)
		return
	}
	if format == export.FormatCSV {
		badRequest(w, fmt.Errorf("csv holds a single heatmap; use /heatmaps/{rows}/{cols} or format=xlsx"))
		return
	}

	sel, ok := selectRecords(w, r, h.cache, survey.LevelGrouped)
	if !ok {
		return
	}

	heatmaps := lo.Map(h.heatmaps, func(p od.HeatmapPair, _ int) models.Heatmap {
		return heatmap(sel, p)
	})

	if format == export.FormatXLSX {
		sheets := lo.FilterMap(heatmaps, func(hm models.Heatmap, _ int) (export.Sheet, bool) {
			return export.MatrixSheet(string(hm.Rows)+" x "+string(hm.Cols), hm.Matrix), hm.Available
		})
		if len(sheets) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "Source has no heatmap attributes", map[string]interface{}{
				"sourceId": sel.table.SourceID,
			})
			return
		}
		writeDownload(w, format, sel.table.SourceID+"-heatmaps", sheets...)
		return
	}

	writeJSON(w, http.StatusOK, cacheResults, models.HeatmapsResponse{
		Snapshot:  models.NewSnapshot(sel.table),
		Selection: sel.Selection,
		Heatmaps:  heatmaps,
	})
}

// GetHeatmap handles GET /api/sources/{sourceId}/heatmaps/{rows}/{cols}
// Any two attributes may be crossed; both must be provided by the source.
func (h *MatrixHandler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	rows, err := survey.ParseAttribute(chi.URLParam(r, "rows"))
	if err != nil {
		badRequest(w, err)
		return
	}
	cols, err := survey.ParseAttribute(chi.URLParam(r, "cols"))
	if err != nil {
		badRequest(w, err)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		badRequest(w, err)
		return
	}

	sel, ok := selectRecords(w, r, h.cache, survey.LevelGrouped)
	if !ok {
		return
	}

	hm := heatmap(sel, od.HeatmapPair{Rows: rows, Cols: cols})
	if !hm.Available {
		writeError(w, http.StatusUnprocessableEntity, "Attribute not available in source", map[string]interface{}{
			"sourceId":   sel.table.SourceID,
			"attributes": sel.table.Attributes,
		})
		return
	}

	if format != export.FormatJSON {
		name := fmt.Sprintf("%s-%s-%s", sel.table.SourceID, rows, cols)
		writeDownload(w, format, name, export.MatrixSheet(string(rows)+" x "+string(cols), hm.Matrix))
		return
	}

	writeJSON(w, http.StatusOK, cacheResults, hm)
}

func heatmap(sel selection, p od.HeatmapPair) models.Heatmap {
	hm := models.Heatmap{
		Rows:      p.Rows,
		Cols:      p.Cols,
		Available: sel.table.Has(p.Rows) && sel.table.Has(p.Cols),
	}
	if !hm.Available {
		hm.Matrix = od.Matrix{
			RowLabel: string(p.Rows),
			ColLabel: string(p.Cols),
			Rows:     []string{},
			Cols:     []string{},
			Cells:    [][]int{},
		}
		return hm
	}
	hm.Matrix = od.CrossTab(sel.records, p.Rows, p.Cols)
	hm.Total = hm.Matrix.Total()
	return hm
}
