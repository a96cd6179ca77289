package genetics

import (
	"math"
	"sort"

	"github.com/cwbudde/nmcolony/internal/config"
	"github.com/cwbudde/nmcolony/internal/simplex"
)

// fitnessOf computes a worker's scalar fitness per cfg.Fitness, smaller is
// fitter. Max intentionally reads the worst value ever observed across the
// slot's accumulated history rather than the current generation's worst —
// an asymmetry with Min that spec.md flags as deliberate and to be
// preserved verbatim.
func (g *Genetics) fitnessOf(slot int) float64 {
	switch g.cfg.Fitness {
	case config.FitnessMin:
		return g.currentGen[slot][0].Value

	case config.FitnessMax:
		hist := append([]simplex.Vertex(nil), g.history[slot]...)
		sortVerticesAsc(hist)
		return hist[len(hist)-1].Value

	default: // FitnessAverage
		cur := g.currentGen[slot]
		var sum float64
		for _, v := range cur {
			sum += v.Value
		}
		return sum / float64(len(cur))
	}
}

// rankSlots returns colony slot indices sorted ascending by fitness; index
// 0 is the king.
func (g *Genetics) rankSlots() []int {
	n := len(g.colony.Workers())
	ranked := make([]int, n)
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return g.fitnessOf(ranked[i]) < g.fitnessOf(ranked[j])
	})
	return ranked
}

func sortVerticesAsc(vs []simplex.Vertex) {
	sort.SliceStable(vs, func(i, j int) bool { return vertexLess(vs[i], vs[j]) })
}

// vertexLess mirrors simplex's own NaN-last ordering rule; duplicated here
// because the comparator is unexported in that package and genetics only
// needs it for its own snapshot bookkeeping.
func vertexLess(a, b simplex.Vertex) bool {
	an, bn := math.IsNaN(a.Value), math.IsNaN(b.Value)
	switch {
	case an && bn:
		return false
	case an:
		return false
	case bn:
		return true
	default:
		return a.Value < b.Value
	}
}
