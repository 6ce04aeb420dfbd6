package od

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rmgsl/mapa-od/internal/survey"
)

func TestFlowStats(t *testing.T) {
	assert.Equal(t, Stats{}, FlowStats(nil))

	one := FlowStats([]FlowRecord{{Pair: Pair{A: "A", B: "B"}, Total: 7}})
	assert.Equal(t, Stats{Count: 1, Mean: 7, Max: 7}, one)

	flows := []FlowRecord{
		{Pair: Pair{A: "A", B: "B"}, Total: 2},
		{Pair: Pair{A: "A", B: "C"}, Total: 4},
		{Pair: Pair{A: "B", B: "C"}, Total: 4},
		{Pair: Pair{A: "C", B: "D"}, Total: 4},
		{Pair: Pair{A: "D", B: "E"}, Total: 5},
		{Pair: Pair{A: "E", B: "F"}, Total: 5},
		{Pair: Pair{A: "F", B: "G"}, Total: 7},
		{Pair: Pair{A: "G", B: "H"}, Total: 9},
	}
	s := FlowStats(flows)
	assert.Equal(t, 8, s.Count)
	assert.InDelta(t, 5.0, s.Mean, 1e-9)
	assert.InDelta(t, 2.0, s.StdDev, 1e-9)
	assert.Equal(t, 9, s.Max)
}

func TestFlowStats_MatchesTwoPass(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	records := make([]survey.TripRecord, 500)
	for i := range records {
		records[i] = survey.TripRecord{
			Origin:      fmt.Sprintf("P%d", rng.Intn(12)),
			Destination: fmt.Sprintf("P%d", rng.Intn(12)),
		}
	}
	flows := AggregateFlows(records, Symmetric)
	s := FlowStats(flows)

	var sum float64
	for _, f := range flows {
		sum += float64(f.Total)
	}
	mean := sum / float64(len(flows))
	var sq float64
	for _, f := range flows {
		d := float64(f.Total) - mean
		sq += d * d
	}
	assert.InDelta(t, mean, s.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(sq/float64(len(flows))), s.StdDev, 1e-9)
}
