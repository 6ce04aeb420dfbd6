package models

import (
	"time"

	"github.com/rmgsl/mapa-od/internal/od"
	"github.com/rmgsl/mapa-od/internal/survey"
)

// Snapshot identifies the table a response was computed from
type Snapshot struct {
	SourceID   string    `json:"sourceId"`
	SnapshotID string    `json:"snapshotId"`
	LoadedAt   time.Time `json:"loadedAt"`
}

// NewSnapshot describes t
func NewSnapshot(t *survey.Table) Snapshot {
	return Snapshot{SourceID: t.SourceID, SnapshotID: t.SnapshotID, LoadedAt: t.LoadedAt}
}

// Selection echoes the request parameters that shaped a result
type Selection struct {
	Level   survey.Level                  `json:"level"`
	Filters map[survey.Attribute][]string `json:"filters"`
}

// FlowsResponse is the JSON response for GET /api/sources/{sourceId}/flows
type FlowsResponse struct {
	Snapshot
	Selection
	Mode       od.Mode         `json:"mode"`
	Summary    od.Summary      `json:"summary"`
	Stats      od.Stats        `json:"stats"`
	Flows      []od.FlowRecord `json:"flows"`
	Count      int             `json:"count"`
	TotalFlows int             `json:"totalFlows"`
	TotalTrips int             `json:"totalTrips"`
}

// MatrixResponse is the JSON response for GET /api/sources/{sourceId}/matrix
type MatrixResponse struct {
	Snapshot
	Selection
	Transposed bool      `json:"transposed"`
	Matrix     od.Matrix `json:"matrix"`
	Total      int       `json:"total"`
}

// Heatmap is one attribute cross-tab. Available is false when the source
// has no column for one of the attributes; Matrix is then empty.
type Heatmap struct {
	Rows      survey.Attribute `json:"rows"`
	Cols      survey.Attribute `json:"cols"`
	Available bool             `json:"available"`
	Matrix    od.Matrix        `json:"matrix"`
	Total     int              `json:"total"`
}

// HeatmapsResponse is the JSON response for GET /api/sources/{sourceId}/heatmaps
type HeatmapsResponse struct {
	Snapshot
	Selection
	Heatmaps []Heatmap `json:"heatmaps"`
}

// FiltersResponse lists the selectable values of every attribute the
// source provides
type FiltersResponse struct {
	Snapshot
	Attributes []survey.Attribute            `json:"attributes"`
	Values     map[survey.Attribute][]string `json:"values"`
	Records    int                           `json:"records"`
}

// ReloadResponse is the JSON response for POST /api/sources/{sourceId}/reload
type ReloadResponse struct {
	Snapshot
	Records int `json:"records"`
}
