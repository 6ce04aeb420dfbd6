package od

import (
	"sort"

	"github.com/samber/lo"

	"github.com/rmgsl/mapa-od/internal/survey"
)

// DefaultTopN is the number of flows drawn on the map unless overridden
const DefaultTopN = 100

// FlowRecord is the number of trips aggregated under one pair
type FlowRecord struct {
	Pair  Pair `json:"pair"`
	Total int  `json:"total"`
}

// resolvable reports whether a trip can take part in a flow: both ends
// present and not a self-loop. Comparison is exact.
func resolvable(r survey.TripRecord) bool {
	return r.Origin != "" && r.Destination != "" && r.Origin != r.Destination
}

// AggregateFlows counts trips per pair. Records with a missing end or with
// origin == destination are excluded, so the totals sum to the number of
// remaining records. The result is sorted by pair.
func AggregateFlows(records []survey.TripRecord, mode Mode) []FlowRecord {
	counts := make(map[Pair]int)
	for _, r := range records {
		if !resolvable(r) {
			continue
		}
		counts[mode.key(r.Origin, r.Destination)]++
	}

	flows := lo.MapToSlice(counts, func(p Pair, total int) FlowRecord {
		return FlowRecord{Pair: p, Total: total}
	})
	sort.Slice(flows, func(i, j int) bool {
		return flows[i].Pair.less(flows[j].Pair)
	})
	return flows
}

// TopN returns the n flows with the largest totals, largest first. Ties keep
// their input order. n <= 0 returns every flow. The input is not modified.
func TopN(flows []FlowRecord, n int) []FlowRecord {
	sorted := make([]FlowRecord, len(flows))
	copy(sorted, flows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Total > sorted[j].Total
	})
	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// TotalTrips sums the totals of flows
func TotalTrips(flows []FlowRecord) int {
	return lo.SumBy(flows, func(f FlowRecord) int { return f.Total })
}

// Summary describes how a record set was reduced to flows
type Summary struct {
	Records      int `json:"records"`
	SelfLoops    int `json:"selfLoops"`
	Unresolvable int `json:"unresolvable"`
	Counted      int `json:"counted"`
}

// Summarize classifies records the same way AggregateFlows does
func Summarize(records []survey.TripRecord) Summary {
	s := Summary{Records: len(records)}
	for _, r := range records {
		switch {
		case r.Origin == "" || r.Destination == "":
			s.Unresolvable++
		case r.Origin == r.Destination:
			s.SelfLoops++
		default:
			s.Counted++
		}
	}
	return s
}
