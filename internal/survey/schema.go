package survey

import (
	"strings"

	"github.com/samber/lo"
)

// Field maps one attribute to the header names it may appear under.
// Aliases are tried in order; the first present header wins.
type Field struct {
	Attr     Attribute
	Required bool
	Aliases  []string
}

// Schema is the explicit header mapping applied once per load
type Schema struct {
	Fields []Field
}

// DefaultSchema covers the RMGSL household survey exports, both the raw
// questionnaire headers and the shortened names of the cleaned files.
func DefaultSchema() Schema {
	return Schema{Fields: []Field{
		{Attr: AttrOrigin, Required: true, Aliases: []string{
			"ORIGEM", "ORIGEM 1", "Município de origem", "origin",
		}},
		{Attr: AttrDestination, Required: true, Aliases: []string{
			"DESTINO", "DESTINO 1", "Município de destino", "destination",
		}},
		{Attr: AttrOriginGroup, Aliases: []string{
			"ORIGEM 2", "Origem agrupada", "origin_group",
		}},
		{Attr: AttrDestinationGroup, Aliases: []string{
			"DESTINO 2", "Destino agrupado", "destination_group",
		}},
		{Attr: AttrMotive, Aliases: []string{
			"motivo_ajustado", "Motivo ajustado", "Motivo", "Qual o motivo da viagem?", "motive",
		}},
		{Attr: AttrFrequency, Aliases: []string{
			"Frequência", "Com que frequência você faz essa viagem?", "frequency",
		}},
		{Attr: AttrPeriod, Aliases: []string{
			"Periodo do dia", "Período", "A viagem foi realizada em qual período do dia?", "period",
		}},
		{Attr: AttrMode, Aliases: []string{
			"Modal Agrupado", "Principal Modal", "Qual foi o principal meio de transporte que você usou?", "Modal", "mode",
		}},
	}}
}

// headerKey folds a header for matching: no accents, lower case, single spaces
func headerKey(h string) string {
	return strings.ToLower(FoldKey(strings.TrimPrefix(h, "\ufeff")))
}

// Mapping is the result of matching a header row against a Schema
type Mapping struct {
	index   map[Attribute]int
	Columns map[Attribute]string
}

// Map resolves every schema field against header. A LoadError listing the
// missing fields is returned when a required field has no matching column.
func (s Schema) Map(source string, header []string) (*Mapping, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := headerKey(h)
		if _, ok := positions[key]; !ok {
			positions[key] = i
		}
	}

	m := &Mapping{
		index:   make(map[Attribute]int),
		Columns: make(map[Attribute]string),
	}
	var missing []Attribute
	for _, f := range s.Fields {
		found := false
		for _, alias := range f.Aliases {
			if i, ok := positions[headerKey(alias)]; ok {
				m.index[f.Attr] = i
				m.Columns[f.Attr] = header[i]
				found = true
				break
			}
		}
		if !found && f.Required {
			missing = append(missing, f.Attr)
		}
	}
	if len(missing) > 0 {
		return nil, &LoadError{Source: source, Missing: missing}
	}
	return m, nil
}

// Attributes returns the mapped attributes in canonical order
func (m *Mapping) Attributes() []Attribute {
	return lo.Filter(AllAttributes(), func(a Attribute, _ int) bool {
		_, ok := m.index[a]
		return ok
	})
}

// Record builds a TripRecord from one data row. Short rows yield empty values.
func (m *Mapping) Record(row []string) TripRecord {
	var r TripRecord
	for attr, i := range m.index {
		if i < len(row) {
			r.Set(attr, CleanName(row[i]))
		}
	}
	return r
}
