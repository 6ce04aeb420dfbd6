package od

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmgsl/mapa-od/internal/survey"
)

func trips(pairs ...[2]string) []survey.TripRecord {
	records := make([]survey.TripRecord, len(pairs))
	for i, p := range pairs {
		records[i] = survey.TripRecord{Origin: p[0], Destination: p[1]}
	}
	return records
}

func totals(flows []FlowRecord) map[Pair]int {
	m := make(map[Pair]int, len(flows))
	for _, f := range flows {
		m[f.Pair] = f.Total
	}
	return m
}

func TestAggregateFlows_SymmetricExample(t *testing.T) {
	records := trips([2]string{"A", "B"}, [2]string{"B", "A"}, [2]string{"A", "B"}, [2]string{"A", "C"})

	flows := AggregateFlows(records, Symmetric)

	assert.Equal(t, []FlowRecord{
		{Pair: Pair{A: "A", B: "B"}, Total: 3},
		{Pair: Pair{A: "A", B: "C"}, Total: 1},
	}, flows)
}

func TestAggregateFlows_Modes(t *testing.T) {
	records := trips([2]string{"A", "B"}, [2]string{"B", "A"}, [2]string{"B", "A"})

	tests := []struct {
		name string
		mode Mode
		want map[Pair]int
	}{
		{"directed ab keeps both directions", DirectedAB, map[Pair]int{{"A", "B"}: 1, {"B", "A"}: 2}},
		{"directed ba reverses keys", DirectedBA, map[Pair]int{{"B", "A"}: 1, {"A", "B"}: 2}},
		{"symmetric merges directions", Symmetric, map[Pair]int{{"A", "B"}: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, totals(AggregateFlows(records, tt.mode)))
		})
	}
}

func TestAggregateFlows_Empty(t *testing.T) {
	for _, mode := range []Mode{DirectedAB, DirectedBA, Symmetric} {
		assert.Empty(t, AggregateFlows(nil, mode))
		assert.Empty(t, AggregateFlows([]survey.TripRecord{}, mode))
	}
}

func TestAggregateFlows_ExcludesSelfLoopsAndMissingEnds(t *testing.T) {
	records := []survey.TripRecord{
		{Origin: "São Luís", Destination: "São Luís"},
		{Origin: "São Luís", Destination: ""},
		{Origin: "", Destination: "Raposa"},
		{Origin: "São Luís", Destination: "Raposa"},
	}

	for _, mode := range []Mode{DirectedAB, DirectedBA, Symmetric} {
		flows := AggregateFlows(records, mode)
		require.Len(t, flows, 1)
		assert.Equal(t, 1, flows[0].Total)
		for _, f := range flows {
			assert.False(t, f.Pair.A == "São Luís" && f.Pair.B == "São Luís")
		}
	}
}

func TestAggregateFlows_SelfLoopComparisonIsExact(t *testing.T) {
	// Names differing only in case are distinct locations to the aggregator.
	records := trips([2]string{"São Luís", "SÃO LUÍS"})
	assert.Len(t, AggregateFlows(records, Symmetric), 1)
}

func TestAggregateFlows_RandomizedInvariants(t *testing.T) {
	names := []string{"São Luís", "Raposa", "Paço do Lumiar", "São José de Ribamar", "Alcântara", ""}
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		t.Run(fmt.Sprintf("round %d", round), func(t *testing.T) {
			records := make([]survey.TripRecord, rng.Intn(200)+1)
			for i := range records {
				records[i] = survey.TripRecord{
					Origin:      names[rng.Intn(len(names))],
					Destination: names[rng.Intn(len(names))],
				}
			}
			counted := Summarize(records).Counted

			for _, mode := range []Mode{DirectedAB, DirectedBA, Symmetric} {
				flows := AggregateFlows(records, mode)
				assert.Equal(t, counted, TotalTrips(flows), "mode %s", mode)

				seen := make(map[Pair]bool)
				for _, f := range flows {
					key := Symmetric.key(f.Pair.A, f.Pair.B)
					if mode == Symmetric {
						assert.False(t, seen[key], "duplicate unordered pair %v", key)
						assert.LessOrEqual(t, f.Pair.A, f.Pair.B)
					}
					seen[key] = true
					assert.GreaterOrEqual(t, f.Total, 1)
				}
			}
		})
	}
}

func TestTopN(t *testing.T) {
	flows := []FlowRecord{
		{Pair: Pair{"A", "B"}, Total: 5},
		{Pair: Pair{"A", "C"}, Total: 9},
		{Pair: Pair{"A", "D"}, Total: 1},
	}

	top := TopN(flows, 2)
	assert.ElementsMatch(t, []FlowRecord{flows[1], flows[0]}, top)
	assert.Equal(t, Pair{"A", "B"}, flows[0].Pair, "input is not reordered")

	assert.Len(t, TopN(flows, 0), 3)
	assert.Len(t, TopN(flows, 10), 3)
	assert.Equal(t, 9, TopN(flows, -1)[0].Total)
}

func TestTopN_TiesAreStable(t *testing.T) {
	flows := []FlowRecord{
		{Pair: Pair{"A", "B"}, Total: 2},
		{Pair: Pair{"A", "C"}, Total: 2},
		{Pair: Pair{"A", "D"}, Total: 2},
	}
	assert.Equal(t, flows[:2], TopN(flows, 2))
}

func TestSummarize(t *testing.T) {
	records := []survey.TripRecord{
		{Origin: "A", Destination: "A"},
		{Origin: "A", Destination: ""},
		{Origin: "A", Destination: "B"},
		{Origin: "B", Destination: "A"},
	}
	assert.Equal(t, Summary{Records: 4, SelfLoops: 1, Unresolvable: 1, Counted: 2}, Summarize(records))
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"", Symmetric},
		{"ab", DirectedAB},
		{"DIRECTED_AB", DirectedAB},
		{"ba", DirectedBA},
		{"directed_ba", DirectedBA},
		{"symmetric", Symmetric},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in, Symmetric)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseMode("diagonal", Symmetric)
	var ue *UnknownModeError
	assert.ErrorAs(t, err, &ue)
}
