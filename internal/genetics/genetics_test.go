package genetics

import (
	"math"
	"testing"

	"github.com/cwbudde/nmcolony/internal/boundary"
	"github.com/cwbudde/nmcolony/internal/colony"
	"github.com/cwbudde/nmcolony/internal/config"
	"github.com/cwbudde/nmcolony/internal/simplex"
)

func sphere(p []float64) float64 {
	var s float64
	for _, v := range p {
		s += v * v
	}
	return s
}

type sphereEvaluator struct{}

func (sphereEvaluator) Evaluate(chunk []*simplex.EvaluationRequest) error {
	for _, r := range chunk {
		r.Fill(sphere(r.Params))
	}
	return nil
}

func baseConfig(dim, population int) config.Config {
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = -10
		upper[i] = 10
	}
	c := config.Default()
	c.Population = population
	c.Lower = lower
	c.Upper = upper
	c.MaxGenerations = 6
	c.EvaluationChunkSize = population
	c.BoundaryPolicy = boundary.Sticky
	c.Seed = 7
	return c
}

func TestKingHenryEvolutionConverges(t *testing.T) {
	cfg := baseConfig(3, 6)
	g, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Run(sphereEvaluator{}); err != nil {
		t.Fatal(err)
	}
	if !g.Finished() {
		t.Fatal("expected genetics to finish")
	}
	if g.BestValue() > 1.0 {
		t.Fatalf("sphere did not improve across generations, best=%v", g.BestValue())
	}
}

func TestOddPopulationReproducesWithoutPanic(t *testing.T) {
	cfg := baseConfig(2, 5)
	cfg.MaxGenerations = 3
	g, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Run(sphereEvaluator{}); err != nil {
		t.Fatal(err)
	}
	if !g.Finished() {
		t.Fatal("expected genetics to finish")
	}
}

func TestMarriageListSizeIsCeilHalf(t *testing.T) {
	cfg := baseConfig(2, 5)
	g, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	ranked := []int{0, 1, 2, 3, 4}
	for _, mode := range []config.MarriageMode{
		config.MarriageKingHenry,
		config.MarriageRandom,
		config.MarriageRandomPreferable,
		config.MarriageHierarchical,
		config.MarriageBestWorst,
	} {
		g.cfg.Marriage = mode
		pairs := g.buildMarriageList(ranked)
		if len(pairs) != 3 {
			t.Fatalf("mode %v: expected 3 pairs for N=5, got %d", mode, len(pairs))
		}
	}
}

func TestDiscreteMixingRhoZeroCopiesParent0(t *testing.T) {
	cfg := baseConfig(2, 4)
	cfg.ReproductionPercent = 0
	g, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	parent0 := []simplex.Vertex{{Params: []float64{1, 2}}, {Params: []float64{3, 4}}, {Params: []float64{5, 6}}}
	parent1 := []simplex.Vertex{{Params: []float64{9, 9}}, {Params: []float64{9, 9}}, {Params: []float64{9, 9}}}

	c1, c2 := g.recombine(parent0, parent1, 2, config.ReproductionDiscreteMixing)
	for v := range c1 {
		for p := range c1[v].Params {
			if c1[v].Params[p] != parent0[v].Params[p] || c2[v].Params[p] != parent0[v].Params[p] {
				t.Fatalf("rho=0 should copy parent0 verbatim, got c1=%v c2=%v want=%v", c1[v].Params, c2[v].Params, parent0[v].Params)
			}
		}
	}
}

func TestLinearCombinationSelfInverseUnderSwap(t *testing.T) {
	a, b := 3.0, -1.5
	for _, m := range []float64{0.0, 0.25, 0.5, 0.75, 1.0} {
		c1 := m*a + (1-m)*b
		// swapping parents and m <-> 1-m should reproduce the same child-1 value
		c1Swapped := (1-m)*b + m*a
		if math.Abs(c1-c1Swapped) > 1e-12 {
			t.Fatalf("linear combination not self-inverse for m=%v", m)
		}
	}
}

func TestShrinkAroundNarrowsBounds(t *testing.T) {
	cfg := baseConfig(2, 4)
	cfg.ShrinkPerGenerations = 1
	// ShrinkAround keeps span*factor on each side of the king, so a factor
	// of 0.25 halves the span on every shrink (0.5 would keep it unchanged).
	cfg.ShrinkFactorBoundary = 0.25
	cfg.ResetOnShrink = false
	cfg.MaxGenerations = 4
	g, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	initialSpan := g.simplexCfg.Upper[0] - g.simplexCfg.Lower[0]
	if err := g.Run(sphereEvaluator{}); err != nil {
		t.Fatal(err)
	}
	finalSpan := g.simplexCfg.Upper[0] - g.simplexCfg.Lower[0]
	if finalSpan >= initialSpan {
		t.Fatalf("expected shrink to narrow bounds: initial=%v final=%v", initialSpan, finalSpan)
	}
}

func TestResetOnShrinkSkipsReproductionWithoutPanic(t *testing.T) {
	cfg := baseConfig(2, 4)
	cfg.ShrinkPerGenerations = 2
	cfg.ResetOnShrink = true
	cfg.MaxGenerations = 5
	g, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Run(sphereEvaluator{}); err != nil {
		t.Fatal(err)
	}
	if !g.Finished() {
		t.Fatal("expected genetics to finish")
	}
}

func TestGlobalBestMonotonicAcrossGenerations(t *testing.T) {
	cfg := baseConfig(3, 6)
	cfg.MaxGenerations = 5
	g, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	prevBest := math.Inf(1)
	for !g.finished {
		state, chunk, err := g.colony.Run()
		if err != nil {
			t.Fatal(err)
		}
		if state == colony.NeedsEvaluation {
			for _, r := range chunk {
				r.Fill(sphere(r.Params))
			}
			continue
		}
		if err := g.OnColonyFinished(); err != nil {
			t.Fatal(err)
		}

		runningBest := math.Inf(1)
		for _, verts := range g.history {
			for _, v := range verts {
				if !math.IsNaN(v.Value) && v.Value < runningBest {
					runningBest = v.Value
				}
			}
		}
		if runningBest > prevBest+1e-12 {
			t.Fatalf("global best regressed: prev=%v now=%v", prevBest, runningBest)
		}
		prevBest = runningBest
	}
}
