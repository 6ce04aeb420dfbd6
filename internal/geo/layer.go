package geo

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rmgsl/mapa-od/internal/od"
)

// MapCenter and MapZoom frame the metropolitan region
var MapCenter = Coordinate{Lat: -2.53, Lon: -43.9}

const MapZoom = 10

// LineStyle maps a flow total to a line weight: Base + total*Scale.
// Weight only grows with total when Scale is positive; see Valid.
type LineStyle struct {
	Base  float64 `json:"base"`
	Scale float64 `json:"scale"`
}

// DefaultLineStyle draws one extra pixel per six trips on a 1px base
func DefaultLineStyle() LineStyle {
	return LineStyle{Base: 1, Scale: 5.0 / 30.0}
}

// Valid reports whether weight strictly increases with total
func (s LineStyle) Valid() bool {
	return s.Scale > 0
}

// Weight returns the line weight for total
func (s LineStyle) Weight(total int) float64 {
	return s.Base + float64(total)*s.Scale
}

// Line is a flow whose two ends resolved to coordinates
type Line struct {
	Flow   od.FlowRecord `json:"flow"`
	From   Coordinate    `json:"from"`
	To     Coordinate    `json:"to"`
	Weight float64       `json:"weight"`
}

// MapLines resolves flows against the table. Flows with an end that is not in
// the table, or has no coordinate, are returned in unresolved instead.
func MapLines(flows []od.FlowRecord, table *LocationTable, style LineStyle) (lines []Line, unresolved []od.FlowRecord) {
	lines = make([]Line, 0, len(flows))
	for _, f := range flows {
		from, okA := table.Lookup(f.Pair.A)
		to, okB := table.Lookup(f.Pair.B)
		if !okA || !okB {
			unresolved = append(unresolved, f)
			continue
		}
		lines = append(lines, Line{
			Flow:   f,
			From:   from,
			To:     to,
			Weight: style.Weight(f.Total),
		})
	}
	if len(unresolved) > 0 {
		log.Debugf("Skipped %d flows with unresolved locations", len(unresolved))
	}
	return lines, unresolved
}

func point(c Coordinate) orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// Layer builds the map layer: one LineString per line and one Point per
// located place. The map frame is attached as foreign members.
func Layer(lines []Line, places []Location) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, l := range lines {
		f := geojson.NewFeature(orb.LineString{point(l.From), point(l.To)})
		f.ID = fmt.Sprintf("%s|%s", l.Flow.Pair.A, l.Flow.Pair.B)
		f.Properties["kind"] = "flow"
		f.Properties["a"] = l.Flow.Pair.A
		f.Properties["b"] = l.Flow.Pair.B
		f.Properties["total"] = l.Flow.Total
		f.Properties["weight"] = l.Weight
		fc.Append(f)
	}

	for _, p := range places {
		if p.Coord == nil {
			continue
		}
		f := geojson.NewFeature(point(*p.Coord))
		f.ID = p.Name
		f.Properties["kind"] = "place"
		f.Properties["name"] = p.Name
		fc.Append(f)
	}

	fc.ExtraMembers = geojson.Properties{
		"center": []float64{MapCenter.Lon, MapCenter.Lat},
		"zoom":   MapZoom,
	}
	return fc
}

// LoadFile reads a location table from a CSV file
func LoadFile(path string) (*LocationTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open locations file: %w", err)
	}
	defer f.Close()

	table, err := LoadCSV(f)
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded %d locations from %s", table.Len(), path)
	return table, nil
}
