package geo

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/rmgsl/mapa-od/internal/survey"
)

var log = logrus.WithField("module", "geo")

// Coordinate is a WGS84 position
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location is a known place name. Coord is nil when the place has no geocode.
type Location struct {
	Name  string      `json:"name"`
	Coord *Coordinate `json:"coord"`
}

// LocationTable resolves place names to coordinates. Lookups fall back to
// an accent and case insensitive match.
type LocationTable struct {
	locations []Location
	exact     map[string]int
	folded    map[string]int
}

// NewLocationTable indexes locations. Later duplicates of a name are ignored.
func NewLocationTable(locations []Location) *LocationTable {
	t := &LocationTable{
		exact:  make(map[string]int, len(locations)),
		folded: make(map[string]int, len(locations)),
	}
	for _, loc := range locations {
		loc.Name = survey.CleanName(loc.Name)
		if loc.Name == "" {
			continue
		}
		if _, ok := t.exact[loc.Name]; ok {
			continue
		}
		t.locations = append(t.locations, loc)
		i := len(t.locations) - 1
		t.exact[loc.Name] = i
		if _, ok := t.folded[survey.FoldKey(loc.Name)]; !ok {
			t.folded[survey.FoldKey(loc.Name)] = i
		}
	}
	return t
}

// Lookup returns the coordinate for name. ok is false when the name is not in
// the table or has no coordinate.
func (t *LocationTable) Lookup(name string) (Coordinate, bool) {
	i, ok := t.exact[name]
	if !ok {
		i, ok = t.folded[survey.FoldKey(name)]
	}
	if !ok || t.locations[i].Coord == nil {
		return Coordinate{}, false
	}
	return *t.locations[i].Coord, true
}

// Locations returns every entry in insertion order
func (t *LocationTable) Locations() []Location {
	return t.locations
}

// Names returns every place name in insertion order
func (t *LocationTable) Names() []string {
	return lo.Map(t.locations, func(l Location, _ int) string { return l.Name })
}

// Located returns the entries that have a coordinate
func (t *LocationTable) Located() []Location {
	return lo.Filter(t.locations, func(l Location, _ int) bool { return l.Coord != nil })
}

// Len returns the number of entries
func (t *LocationTable) Len() int {
	return len(t.locations)
}

func at(lat, lon float64) *Coordinate {
	return &Coordinate{Lat: lat, Lon: lon}
}

// DefaultLocations are the municipalities of the Região Metropolitana da
// Grande São Luís plus the destinations that appear outside it.
func DefaultLocations() []Location {
	return []Location{
		{Name: "São Luís", Coord: at(-2.538, -44.282)},
		{Name: "Paço do Lumiar", Coord: at(-2.510, -44.069)},
		{Name: "Raposa", Coord: at(-2.476, -44.096)},
		{Name: "São José de Ribamar", Coord: at(-2.545, -44.022)},
		{Name: "Santa Rita", Coord: at(-3.1457, -44.3329)},
		{Name: "Morros", Coord: at(-2.8645, -44.0392)},
		{Name: "Icatu", Coord: at(-2.762, -44.045)},
		{Name: "Rosário", Coord: at(-2.943, -44.254)},
		{Name: "Bacabeira", Coord: at(-2.969, -44.310)},
		{Name: "Axixá", Coord: at(-2.83, -44.05)},
		{Name: "Alcântara", Coord: at(-2.416, -44.437)},
		{Name: "Cachoeira Grande", Coord: at(-2.93, -44.05)},
		{Name: "Presidente Juscelino", Coord: at(-2.925, -44.06)},
		{Name: "Itapecuru Mirim", Coord: at(-3.338, -44.341)},
		{Name: "Cantanhede", Coord: at(-3.608, -44.370)},
		{Name: "Codó", Coord: at(-4.454, -43.874)},
		{Name: "Timon", Coord: at(-5.096, -42.837)},
		{Name: "Caxias", Coord: at(-4.861, -43.371)},
		{Name: "São Mateus do Maranhão", Coord: at(-3.840, -45.326)},
		{Name: "Viana", Coord: at(-3.232, -44.995)},
		{Name: "Bequimão", Coord: at(-2.438, -44.779)},
		{Name: "Pinheiro", Coord: at(-2.538, -45.082)},
		{Name: "Anajatuba", Coord: at(-3.291, -44.623)},
		{Name: "Humberto de Campos", Coord: at(-1.756, -44.793)},
		{Name: "Barreirinhas", Coord: at(-2.754, -42.825)},
		{Name: "Primeira Cruz", Coord: at(-2.5089, -43.4402)},
		{Name: "Santo Amaro", Coord: at(-2.5048, -43.2559)},
		{Name: "FORA DA RMGSL", Coord: at(-2.88, -44.53)},
	}
}

// DefaultTable is NewLocationTable(DefaultLocations())
func DefaultTable() *LocationTable {
	return NewLocationTable(DefaultLocations())
}

// LoadCSV reads a location table with name, lat and lon columns. Rows with
// blank coordinates are kept as known but unlocated places.
func LoadCSV(r io.Reader) (*LocationTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read locations header: %w", err)
	}
	idx := makeIndex(header)
	for _, required := range []string{"name", "lat", "lon"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("locations file is missing column %q", required)
		}
	}

	var locations []Location
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read locations line %d: %w", line, err)
		}

		loc := Location{Name: getField(record, idx, "name")}
		latStr, lonStr := getField(record, idx, "lat"), getField(record, idx, "lon")
		if latStr != "" && lonStr != "" {
			lat, errLat := strconv.ParseFloat(latStr, 64)
			lon, errLon := strconv.ParseFloat(lonStr, 64)
			if errLat != nil || errLon != nil {
				log.Warnf("Skipping coordinate of %s on line %d: invalid lat/lon", loc.Name, line)
			} else {
				loc.Coord = at(lat, lon)
			}
		}
		locations = append(locations, loc)
	}

	return NewLocationTable(locations), nil
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
