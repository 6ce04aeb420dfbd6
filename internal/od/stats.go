package od

import "math"

// Stats describes the distribution of flow totals. The map legend uses it to
// label line weights.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Max    int     `json:"max"`
}

// welford keeps a running mean and variance (Welford's online algorithm)
type welford struct {
	count int
	mean  float64
	m2    float64
}

func (w *welford) update(v float64) {
	w.count++
	delta := v - w.mean
	w.mean += delta / float64(w.count)
	w.m2 += delta * (v - w.mean)
}

// stdDev is the population standard deviation, 0 below two observations
func (w *welford) stdDev() float64 {
	if w.count < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.count))
}

// FlowStats summarizes the totals of flows
func FlowStats(flows []FlowRecord) Stats {
	var w welford
	s := Stats{}
	for _, f := range flows {
		w.update(float64(f.Total))
		if f.Total > s.Max {
			s.Max = f.Total
		}
	}
	s.Count = w.count
	s.Mean = w.mean
	s.StdDev = w.stdDev()
	return s
}
