package genetics

import (
	"fmt"
	"math"

	"github.com/cwbudde/nmcolony/internal/config"
	"github.com/cwbudde/nmcolony/internal/simplex"
)

// reproduce walks the marriage list and overwrites colony slots 2k and
// 2k+1 with each pair's children. For an odd population the final pair's
// second child has no slot and is discarded (the "odd ball" case).
func (g *Genetics) reproduce(pairs []pair) {
	workers := g.colony.Workers()
	n := len(workers)
	dim := len(g.simplexCfg.Upper)

	for k, pr := range pairs {
		mode := g.cfg.Reproduction
		if mode == config.ReproductionRandomType {
			if g.stream.Intn(2) == 0 {
				mode = config.ReproductionDiscreteMixing
			} else {
				mode = config.ReproductionLinearCombination
			}
		}

		child1, child2 := g.recombine(g.currentGen[pr.a], g.currentGen[pr.b], dim, mode)

		slot0, slot1 := 2*k, 2*k+1
		g.installChild(workers[slot0], slot0, child1)
		if slot1 < n {
			g.installChild(workers[slot1], slot1, child2)
		}
	}
}

func (g *Genetics) installChild(w *simplex.Simplex, slot int, vertices []simplex.Vertex) {
	w.SetVertices(vertices)
	w.Rename(fmt.Sprintf("worker_%d_G%d", slot, g.generation))
}

// recombine produces two children's vertex sets from a married pair,
// coordinate by coordinate and vertex by vertex, per spec.md section 4.3
// step 6. A rand() >= rho draw defaults both children to parent-0 for that
// coordinate; rho=1 always recombines, rho=0 always copies parent-0.
func (g *Genetics) recombine(parent0, parent1 []simplex.Vertex, dim int, mode config.ReproductionMode) ([]simplex.Vertex, []simplex.Vertex) {
	n := len(parent0)
	child1 := make([]simplex.Vertex, n)
	child2 := make([]simplex.Vertex, n)

	for v := 0; v < n; v++ {
		p1 := make([]float64, dim)
		p2 := make([]float64, dim)
		for c := 0; c < dim; c++ {
			if g.stream.Float64() >= g.cfg.ReproductionPercent {
				p1[c] = parent0[v].Params[c]
				p2[c] = parent0[v].Params[c]
				continue
			}

			switch mode {
			case config.ReproductionDiscreteMixing:
				if g.stream.Float64() < 0.5 {
					p1[c] = parent0[v].Params[c]
					p2[c] = parent1[v].Params[c]
				} else {
					p1[c] = parent1[v].Params[c]
					p2[c] = parent0[v].Params[c]
				}

			default: // ReproductionLinearCombination
				m := 2*g.stream.Float64() - 0.5
				p1[c] = m*parent0[v].Params[c] + (1-m)*parent1[v].Params[c]
				p2[c] = m*parent1[v].Params[c] + (1-m)*parent0[v].Params[c]
			}
		}
		child1[v] = simplex.Vertex{Params: p1, Value: math.NaN(), Evaluated: false}
		child2[v] = simplex.Vertex{Params: p2, Value: math.NaN(), Evaluated: false}
	}
	return child1, child2
}
