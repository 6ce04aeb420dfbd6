package survey

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// Attribute names a column of the survey after schema mapping
type Attribute string

const (
	AttrOrigin           Attribute = "origin"
	AttrDestination      Attribute = "destination"
	AttrOriginGroup      Attribute = "origin_group"
	AttrDestinationGroup Attribute = "destination_group"
	AttrMotive           Attribute = "motive"
	AttrFrequency        Attribute = "frequency"
	AttrPeriod           Attribute = "period"
	AttrMode             Attribute = "mode"
)

// AllAttributes returns every attribute a record can carry, in column order
func AllAttributes() []Attribute {
	return []Attribute{
		AttrOrigin,
		AttrDestination,
		AttrOriginGroup,
		AttrDestinationGroup,
		AttrMotive,
		AttrFrequency,
		AttrPeriod,
		AttrMode,
	}
}

// IsLocation reports whether attr holds a place name. Place names are
// matched by FoldKey.
func (a Attribute) IsLocation() bool {
	switch a {
	case AttrOrigin, AttrDestination, AttrOriginGroup, AttrDestinationGroup:
		return true
	}
	return false
}

// ParseAttribute validates an attribute name coming from a request or config
func ParseAttribute(name string) (Attribute, error) {
	attr := Attribute(name)
	if lo.Contains(AllAttributes(), attr) {
		return attr, nil
	}
	return "", &UnknownAttributeError{Name: name}
}

// TripRecord is one survey response
type TripRecord struct {
	Origin           string `json:"origin" db:"origin" bson:"origin"`
	Destination      string `json:"destination" db:"destination" bson:"destination"`
	OriginGroup      string `json:"originGroup,omitempty" db:"origin_group" bson:"origin_group,omitempty"`
	DestinationGroup string `json:"destinationGroup,omitempty" db:"destination_group" bson:"destination_group,omitempty"`
	Motive           string `json:"motive,omitempty" db:"motive" bson:"motive,omitempty"`
	Frequency        string `json:"frequency,omitempty" db:"frequency" bson:"frequency,omitempty"`
	Period           string `json:"period,omitempty" db:"period" bson:"period,omitempty"`
	Mode             string `json:"mode,omitempty" db:"mode" bson:"mode,omitempty"`
}

// Value returns the record's value for attr, or "" when the attribute is unknown
func (r TripRecord) Value(attr Attribute) string {
	switch attr {
	case AttrOrigin:
		return r.Origin
	case AttrDestination:
		return r.Destination
	case AttrOriginGroup:
		return r.OriginGroup
	case AttrDestinationGroup:
		return r.DestinationGroup
	case AttrMotive:
		return r.Motive
	case AttrFrequency:
		return r.Frequency
	case AttrPeriod:
		return r.Period
	case AttrMode:
		return r.Mode
	}
	return ""
}

// Set assigns value to attr. Unknown attributes are ignored.
func (r *TripRecord) Set(attr Attribute, value string) {
	switch attr {
	case AttrOrigin:
		r.Origin = value
	case AttrDestination:
		r.Destination = value
	case AttrOriginGroup:
		r.OriginGroup = value
	case AttrDestinationGroup:
		r.DestinationGroup = value
	case AttrMotive:
		r.Motive = value
	case AttrFrequency:
		r.Frequency = value
	case AttrPeriod:
		r.Period = value
	case AttrMode:
		r.Mode = value
	}
}

// Level selects which location columns act as origin and destination
type Level string

const (
	LevelRaw     Level = "raw"
	LevelGrouped Level = "grouped"
)

// ParseLevel accepts "raw" or "grouped"; empty falls back to def
func ParseLevel(s string, def Level) (Level, error) {
	switch Level(s) {
	case "":
		return def, nil
	case LevelRaw, LevelGrouped:
		return Level(s), nil
	}
	return "", &UnknownLevelError{Name: s}
}

// AtLevel returns records whose origin and destination are taken from the
// requested level. Grouped values fall back to the raw municipality when a
// record has no group. The input slice is not modified.
func AtLevel(records []TripRecord, level Level) []TripRecord {
	if level != LevelGrouped {
		return records
	}
	return lo.Map(records, func(r TripRecord, _ int) TripRecord {
		if r.OriginGroup != "" {
			r.Origin = r.OriginGroup
		}
		if r.DestinationGroup != "" {
			r.Destination = r.DestinationGroup
		}
		return r
	})
}

// Table is a loaded survey snapshot
type Table struct {
	SourceID   string               `json:"sourceId"`
	SnapshotID string               `json:"snapshotId"`
	LoadedAt   time.Time            `json:"loadedAt"`
	Attributes []Attribute          `json:"attributes"`
	Records    []TripRecord         `json:"-"`
	Columns    map[Attribute]string `json:"columns,omitempty"`
}

// Len returns the number of records in the table
func (t *Table) Len() int {
	return len(t.Records)
}

// Has reports whether the source provided a column for attr
func (t *Table) Has(attr Attribute) bool {
	return lo.Contains(t.Attributes, attr)
}

// Distinct returns the sorted non-empty values of attr
func (t *Table) Distinct(attr Attribute) []string {
	values := lo.Uniq(lo.FilterMap(t.Records, func(r TripRecord, _ int) (string, bool) {
		v := r.Value(attr)
		return v, v != ""
	}))
	sort.Strings(values)
	return values
}
