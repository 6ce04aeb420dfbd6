package models

import (
	"time"

	"github.com/rmgsl/mapa-od/internal/cache"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// SourcesResponse is the JSON response for GET /api/sources
type SourcesResponse struct {
	Sources []cache.Status `json:"sources"`
	Count   int            `json:"count"`
}

// HealthResponse is the JSON response for GET /health.
// Status is "degraded" when any source failed its last load.
type HealthResponse struct {
	Status    string         `json:"status"`
	Sources   []cache.Status `json:"sources"`
	Timestamp time.Time      `json:"timestamp"`
}

// LocationItem is one row of the coordinate table
type LocationItem struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

// LocationsResponse is the JSON response for GET /api/locations
type LocationsResponse struct {
	Locations []LocationItem `json:"locations"`
	Count     int            `json:"count"`
	Located   int            `json:"located"`
}
