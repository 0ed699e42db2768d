package systems

import (
	"math"
	"sort"

	"github.com/pthm-cable/wealthsim/agents"
)

// Cutoff is the wealth range of one decile bin.
type Cutoff struct {
	Decile int     `json:"decile"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

// TransitionMatrix holds, per previous decile, the percentage of its members
// now in each new decile. Keys are 1-based deciles.
type TransitionMatrix map[int]map[int]float64

// RowSum returns the total percentage of one previous-decile row.
func (m TransitionMatrix) RowSum(prev int) float64 {
	var sum float64
	for _, pct := range m[prev] {
		sum += pct
	}
	return sum
}

// QuantileEdges returns the distinct decile edges of sorted values. Repeated
// values collapse edges, so fewer than 11 may come back.
func QuantileEdges(sorted []float64) []float64 {
	if len(sorted) == 0 {
		return nil
	}
	edges := make([]float64, 0, agents.NumDeciles+1)
	for q := 0; q <= agents.NumDeciles; q++ {
		e := Percentile(sorted, float64(q)/agents.NumDeciles)
		if len(edges) == 0 || e != edges[len(edges)-1] {
			edges = append(edges, e)
		}
	}
	return edges
}

// binOf returns the 0-based bin of v for the given edges. Bins are
// right-closed and the first bin includes its lower edge.
func binOf(v float64, edges []float64) int {
	bins := len(edges) - 1
	if bins <= 0 {
		return 0
	}
	i := sort.SearchFloat64s(edges[1:], v)
	if i >= bins {
		i = bins - 1
	}
	return i
}

// Reclassify re-ranks every non-Dead agent with finite wealth into
// equal-frequency bins (lowest wealth is decile 1), returns the bin cutoffs,
// and tabulates moves from each agent's previous decile.
func Reclassify(pop *agents.Population) ([]Cutoff, TransitionMatrix) {
	var ranked []*agents.Agent
	for _, a := range pop.Agents() {
		if a.Living() && !math.IsNaN(a.Wealth) && !math.IsInf(a.Wealth, 0) {
			ranked = append(ranked, a)
		}
	}
	if len(ranked) == 0 {
		return nil, TransitionMatrix{}
	}

	wealth := make([]float64, len(ranked))
	for i, a := range ranked {
		wealth[i] = a.Wealth
	}
	sort.Float64s(wealth)
	edges := QuantileEdges(wealth)

	var cutoffs []Cutoff
	if len(edges) == 1 {
		cutoffs = []Cutoff{{Decile: 1, Lower: edges[0], Upper: edges[0]}}
	} else {
		cutoffs = make([]Cutoff, len(edges)-1)
		for i := range cutoffs {
			cutoffs[i] = Cutoff{Decile: i + 1, Lower: edges[i], Upper: edges[i+1]}
		}
	}

	for _, a := range ranked {
		a.Decile = binOf(a.Wealth, edges) + 1
	}

	return cutoffs, transitions(ranked)
}

func transitions(ranked []*agents.Agent) TransitionMatrix {
	counts := make(map[int]map[int]int)
	rowTotal := make(map[int]int)
	seen := make(map[int]bool)

	for _, a := range ranked {
		prev := a.Step.PrevDecile
		if prev < 1 || prev > agents.NumDeciles {
			continue
		}
		if counts[prev] == nil {
			counts[prev] = make(map[int]int)
		}
		counts[prev][a.Decile]++
		rowTotal[prev]++
		seen[a.Decile] = true
	}

	matrix := make(TransitionMatrix, len(counts))
	for prev, row := range counts {
		out := make(map[int]float64, len(seen))
		for d := range seen {
			out[d] = 100 * float64(row[d]) / float64(rowTotal[prev])
		}
		matrix[prev] = out
	}
	return matrix
}
