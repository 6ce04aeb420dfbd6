package od

import (
	"sort"

	"github.com/samber/lo"

	"github.com/rmgsl/mapa-od/internal/survey"
)

// Filter is a conjunction of membership tests, one per attribute. An
// attribute with no selected values does not restrict anything.
// Location attributes compare fold keys, so "Sao Luis" selects "São Luís".
type Filter struct {
	// accepted match key -> value as first selected
	sets map[survey.Attribute]map[string]string
}

// NewFilter returns a filter that passes every record
func NewFilter() *Filter {
	return &Filter{sets: make(map[survey.Attribute]map[string]string)}
}

func matchKey(attr survey.Attribute, v string) string {
	if attr.IsLocation() {
		return survey.FoldKey(v)
	}
	return survey.CleanName(v)
}

// Select adds values to the accepted set of attr. Empty values are ignored.
func (f *Filter) Select(attr survey.Attribute, values ...string) *Filter {
	for _, v := range values {
		v = survey.CleanName(v)
		if v == "" {
			continue
		}
		set, ok := f.sets[attr]
		if !ok {
			set = make(map[string]string)
			f.sets[attr] = set
		}
		key := matchKey(attr, v)
		if _, dup := set[key]; !dup {
			set[key] = v
		}
	}
	return f
}

// Active returns the restricted attributes in canonical order
func (f *Filter) Active() []survey.Attribute {
	return lo.Filter(survey.AllAttributes(), func(a survey.Attribute, _ int) bool {
		return len(f.sets[a]) > 0
	})
}

// Selected returns the sorted accepted values of attr
func (f *Filter) Selected(attr survey.Attribute) []string {
	values := lo.Values(f.sets[attr])
	sort.Strings(values)
	return values
}

// Match reports whether r passes every active membership test
func (f *Filter) Match(r survey.TripRecord) bool {
	for attr, set := range f.sets {
		if len(set) == 0 {
			continue
		}
		if _, ok := set[matchKey(attr, r.Value(attr))]; !ok {
			return false
		}
	}
	return true
}

// Apply returns the records that match. A nil filter passes everything.
func (f *Filter) Apply(records []survey.TripRecord) []survey.TripRecord {
	if f == nil || len(f.Active()) == 0 {
		return records
	}
	return lo.Filter(records, func(r survey.TripRecord, _ int) bool { return f.Match(r) })
}
