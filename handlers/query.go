package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/rmgsl/mapa-od/internal/od"
	"github.com/rmgsl/mapa-od/internal/survey"
	"github.com/rmgsl/mapa-od/models"
)

// Query parameters that are not attribute filters
var reservedParams = []string{"mode", "level", "limit", "format", "transpose"}

// "mode" selects the aggregation mode, so the transport mode attribute is
// filtered as "modal"
var filterAliases = map[string]survey.Attribute{
	"modal": survey.AttrMode,
}

// parseFilter builds a conjunctive filter from repeated attribute
// parameters, e.g. ?motive=Trabalho&motive=Estudo&period=Manhã.
// Parameters naming no attribute are rejected.
func parseFilter(q url.Values) (*od.Filter, map[survey.Attribute][]string, error) {
	filter := od.NewFilter()
	names := lo.Filter(lo.Keys(q), func(k string, _ int) bool {
		return !lo.Contains(reservedParams, k)
	})
	sort.Strings(names)

	for _, name := range names {
		attr, ok := filterAliases[name]
		if !ok {
			var err error
			if attr, err = survey.ParseAttribute(name); err != nil {
				return nil, nil, err
			}
		}
		filter.Select(attr, q[name]...)
	}

	selected := make(map[survey.Attribute][]string)
	for _, attr := range filter.Active() {
		selected[attr] = filter.Selected(attr)
	}
	return filter, selected, nil
}

func parseLimit(q url.Values, def int) (int, error) {
	raw := strings.TrimSpace(q.Get("limit"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit: %q", raw)
	}
	return n, nil
}

func parseBool(q url.Values, key string) (bool, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return b, nil
}

// selection is a loaded table reduced to the records a request asked for
type selection struct {
	table   *survey.Table
	records []survey.TripRecord
	models.Selection
}

// selectRecords validates level and filters, loads the source and applies
// both. On failure the error response has been written and ok is false.
func selectRecords(w http.ResponseWriter, r *http.Request, c SurveyCache, defLevel survey.Level) (sel selection, ok bool) {
	q := r.URL.Query()
	level, err := survey.ParseLevel(q.Get("level"), defLevel)
	if err != nil {
		badRequest(w, err)
		return sel, false
	}
	filter, selected, err := parseFilter(q)
	if err != nil {
		badRequest(w, err)
		return sel, false
	}

	sourceID := chi.URLParam(r, "sourceId")
	table, err := c.Get(r.Context(), sourceID)
	if err != nil {
		writeSourceError(w, sourceID, err)
		return sel, false
	}

	return selection{
		table:     table,
		records:   filter.Apply(survey.AtLevel(table.Records, level)),
		Selection: models.Selection{Level: level, Filters: selected},
	}, true
}
