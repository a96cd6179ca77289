// Package simplex implements one Nelder-Mead downhill polytope as a
// cooperative state machine: it never blocks on an evaluation itself,
// instead emitting EvaluationRequests and suspending until Advance is
// called with them filled in.
package simplex

import (
	"fmt"
	"math"

	"github.com/cwbudde/nmcolony/internal/boundary"
	"github.com/cwbudde/nmcolony/internal/rng"
)

// phase tracks which evaluation the simplex is currently suspended on.
type phase int

const (
	phaseUninitialized phase = iota
	phaseAwaitingInitial
	phaseAwaitingReflect
	phaseAwaitingExpand
	phaseAwaitingContract
	phaseAwaitingShrinkAll
	phaseFinished
)

// Config holds the per-simplex numerical policy. It is shared (by value)
// across every worker in a colony.
type Config struct {
	Lower, Upper    []float64
	GrowFactor      float64
	ShrinkFactor    float64
	ForceBoundary   bool
	BoundaryPolicy  boundary.Policy
	MaxEvaluations  int // 0 means unlimited
	MinRelativeSize float64
}

// Validate rejects configuration spec.md section 4.1 calls out as failing
// at configuration time: inverted bounds, gamma <= 1, sigma >= 1, too small
// an evaluation budget, mismatched dimension.
func (c Config) Validate(dim int) error {
	if len(c.Lower) != dim || len(c.Upper) != dim {
		return fmt.Errorf("simplex: bounds dimension mismatch: lower=%d upper=%d want=%d", len(c.Lower), len(c.Upper), dim)
	}
	for i := 0; i < dim; i++ {
		if c.Upper[i] <= c.Lower[i] {
			return fmt.Errorf("simplex: inverted bounds at index %d: lower=%v upper=%v", i, c.Lower[i], c.Upper[i])
		}
	}
	if c.GrowFactor <= 1 {
		return fmt.Errorf("simplex: grow factor must be > 1, got %v", c.GrowFactor)
	}
	if c.ShrinkFactor >= 1 || c.ShrinkFactor <= 0 {
		return fmt.Errorf("simplex: shrink factor must be in (0,1), got %v", c.ShrinkFactor)
	}
	if c.MaxEvaluations != 0 && c.MaxEvaluations <= dim+1 {
		return fmt.Errorf("simplex: max evaluations %d must exceed dim+1=%d", c.MaxEvaluations, dim+1)
	}
	return nil
}

// Simplex is one Nelder-Mead polytope of dim+1 vertices.
type Simplex struct {
	id  string
	cfg Config
	dim int

	vertices []Vertex
	pSum     []float64

	iterationCount  int
	evaluationCount int

	ph phase

	// trial holds the params of the candidate currently awaiting
	// evaluation (the reflection/expansion/contraction point), so Advance
	// knows what it is reading a value back for.
	trial []float64

	stream *rng.Stream
}

// ID returns the worker identity tag used in EvaluationRequests.
func (s *Simplex) ID() string { return s.id }

// NewFromPoint builds a simplex from an explicit starting point plus D
// axis-offset points, each offset by the scalar scale along one axis.
func NewFromPoint(cfg Config, id string, stream *rng.Stream, point []float64, scale float64) (*Simplex, error) {
	scales := make([]float64, len(point))
	for i := range scales {
		scales[i] = scale
	}
	return NewFromPointScales(cfg, id, stream, point, scales)
}

// NewFromPointScales is the per-axis-scale variant of NewFromPoint.
func NewFromPointScales(cfg Config, id string, stream *rng.Stream, point []float64, scales []float64) (*Simplex, error) {
	dim := len(point)
	if err := cfg.Validate(dim); err != nil {
		return nil, err
	}
	if len(scales) != dim {
		return nil, fmt.Errorf("simplex: scales dimension mismatch: got %d want %d", len(scales), dim)
	}

	vertices := make([]Vertex, dim+1)
	vertices[0] = newUnevaluated(append([]float64(nil), point...))
	for i := 0; i < dim; i++ {
		p := append([]float64(nil), point...)
		p[i] += scales[i]
		vertices[i+1] = newUnevaluated(p)
	}

	return newSimplex(cfg, id, stream, vertices)
}

// NewFromSeed draws dim+1 vertices uniformly from [lower, upper]^dim.
func NewFromSeed(cfg Config, id string, stream *rng.Stream) (*Simplex, error) {
	dim := len(cfg.Lower)
	if err := cfg.Validate(dim); err != nil {
		return nil, err
	}

	vertices := make([]Vertex, dim+1)
	for i := range vertices {
		p := make([]float64, dim)
		for j := 0; j < dim; j++ {
			p[j] = stream.Uniform(cfg.Lower[j], cfg.Upper[j])
		}
		vertices[i] = newUnevaluated(p)
	}

	return newSimplex(cfg, id, stream, vertices)
}

func newSimplex(cfg Config, id string, stream *rng.Stream, vertices []Vertex) (*Simplex, error) {
	dim := len(cfg.Lower)
	return &Simplex{
		id:       id,
		cfg:      cfg,
		dim:      dim,
		vertices: vertices,
		pSum:     make([]float64, dim),
		ph:       phaseUninitialized,
		stream:   stream,
	}, nil
}

// Begin marks all current vertices unevaluated, returns them as the first
// evaluation batch, and arms the state machine to run Reflect once they
// come back filled.
func (s *Simplex) Begin() []*EvaluationRequest {
	reqs := make([]*EvaluationRequest, len(s.vertices))
	for i, v := range s.vertices {
		s.vertices[i] = newUnevaluated(v.Params)
		reqs[i] = &EvaluationRequest{WorkerID: s.id, Params: s.vertices[i].Params}
	}
	s.ph = phaseAwaitingInitial
	return reqs
}

// Advance consumes the evaluation(s) requested by the previous Begin/Advance
// call, runs one transition of the Nelder-Mead state machine, and returns
// either the next evaluation batch or (nil, true) for Finished.
func (s *Simplex) Advance(filled []*EvaluationRequest) ([]*EvaluationRequest, bool) {
	switch s.ph {
	case phaseAwaitingInitial:
		for i, r := range filled {
			s.vertices[i].Value = r.Value
			s.vertices[i].Evaluated = true
			s.evaluationCount++
		}
		return s.enterReflect()

	case phaseAwaitingReflect:
		vr := filled[0].Value
		s.evaluationCount++
		return s.afterReflect(vr)

	case phaseAwaitingExpand:
		ve := filled[0].Value
		s.evaluationCount++
		return s.afterExpand(ve)

	case phaseAwaitingContract:
		vc := filled[0].Value
		s.evaluationCount++
		return s.afterContract(vc)

	case phaseAwaitingShrinkAll:
		for i, r := range filled {
			s.vertices[i+1].Params = r.Params
			s.vertices[i+1].Value = r.Value
			s.vertices[i+1].Evaluated = true
			s.evaluationCount++
		}
		return s.enterReflect()

	case phaseFinished:
		return nil, true

	default:
		panic("simplex: Advance called before Begin")
	}
}

// worst/second-worst/best accessors assume vertices are kept sorted ascending.
func (s *Simplex) best() Vertex  { return s.vertices[0] }
func (s *Simplex) worst() Vertex { return s.vertices[s.dim] }
func (s *Simplex) secondWorst() Vertex {
	if s.dim == 0 {
		return s.vertices[0]
	}
	return s.vertices[s.dim-1]
}

func (s *Simplex) sortAndRecomputeCentroid() {
	sortVertices(s.vertices)
	for i := range s.pSum {
		s.pSum[i] = 0
	}
	for _, v := range s.vertices {
		for i, p := range v.Params {
			s.pSum[i] += p
		}
	}
}

// replaceWorst overwrites the worst vertex in place and incrementally
// updates pSum, avoiding a full D*(D+1) recomputation per step.
func (s *Simplex) replaceWorst(v Vertex) {
	old := s.vertices[s.dim]
	for i := range s.pSum {
		s.pSum[i] += v.Params[i] - old.Params[i]
	}
	s.vertices[s.dim] = v
}

func (s *Simplex) enterReflect() ([]*EvaluationRequest, bool) {
	s.sortAndRecomputeCentroid()
	s.iterationCount++

	if s.terminated() {
		s.ph = phaseFinished
		return nil, true
	}

	r := s.extrapolate(s.dim, -1)
	s.applyBoundary(r)
	s.trial = r
	s.ph = phaseAwaitingReflect
	return []*EvaluationRequest{{WorkerID: s.id, Params: r}}, false
}

func (s *Simplex) afterReflect(vr float64) ([]*EvaluationRequest, bool) {
	if vr < s.worst().Value {
		s.replaceWorst(Vertex{Params: s.trial, Value: vr, Evaluated: true})
	}

	switch {
	case vr < s.best().Value:
		// Strict: on a flat region (vr == best) falling through to the
		// contract branch below is what lets a constant/degenerate
		// objective actually shrink the simplex instead of expanding
		// forever without ever changing pSum.
		e := s.extrapolate(s.dim, s.cfg.GrowFactor)
		s.applyBoundary(e)
		s.trial = e
		s.ph = phaseAwaitingExpand
		return []*EvaluationRequest{{WorkerID: s.id, Params: e}}, false

	case vr >= s.secondWorst().Value:
		c := s.extrapolate(s.dim, s.cfg.ShrinkFactor)
		s.applyBoundary(c)
		s.trial = c
		s.ph = phaseAwaitingContract
		return []*EvaluationRequest{{WorkerID: s.id, Params: c}}, false

	default:
		return s.enterReflect()
	}
}

func (s *Simplex) afterExpand(ve float64) ([]*EvaluationRequest, bool) {
	if ve < s.worst().Value {
		s.replaceWorst(Vertex{Params: s.trial, Value: ve, Evaluated: true})
	}
	return s.enterReflect()
}

func (s *Simplex) afterContract(vc float64) ([]*EvaluationRequest, bool) {
	if vc < s.worst().Value {
		s.replaceWorst(Vertex{Params: s.trial, Value: vc, Evaluated: true})
		return s.enterReflect()
	}
	return s.contractAll()
}

func (s *Simplex) contractAll() ([]*EvaluationRequest, bool) {
	best := s.best().Params
	reqs := make([]*EvaluationRequest, s.dim)
	for i := 1; i <= s.dim; i++ {
		p := make([]float64, s.dim)
		for k := 0; k < s.dim; k++ {
			p[k] = s.cfg.ShrinkFactor * (s.vertices[i].Params[k] + best[k])
		}
		s.applyBoundary(p)
		s.vertices[i] = newUnevaluated(p)
		reqs[i-1] = &EvaluationRequest{WorkerID: s.id, Params: p}
	}
	s.ph = phaseAwaitingShrinkAll
	return reqs, false
}

// extrapolate computes the standard Nelder-Mead trial point along the line
// from the centroid of every vertex but index through vertices[index],
// scaled by factor. pSum is the sum of ALL vertices (including index), so
// the centroid-excluding-index term falls out algebraically: with c the
// centroid of the other dim vertices, the result is c + factor*(base - c).
func (s *Simplex) extrapolate(index int, factor float64) []float64 {
	d := float64(s.dim)
	trial := make([]float64, s.dim)
	base := s.vertices[index].Params
	for i := 0; i < s.dim; i++ {
		trial[i] = s.pSum[i]*(1-factor)/d + base[i]*(factor-(1-factor)/d)
	}
	return trial
}

func (s *Simplex) applyBoundary(params []float64) {
	boundary.Apply(s.cfg.BoundaryPolicy, params, s.cfg.Lower, s.cfg.Upper, s.cfg.ForceBoundary, s.stream)
}

func (s *Simplex) terminated() bool {
	if s.cfg.MaxEvaluations != 0 && s.evaluationCount >= s.cfg.MaxEvaluations {
		return true
	}
	return s.RelativeSize() <= s.cfg.MinRelativeSize
}

// BestValue is the objective value of the current best vertex.
func (s *Simplex) BestValue() float64 { return s.best().Value }

// BestParams is the parameter vector of the current best vertex. The
// returned slice is owned by the caller.
func (s *Simplex) BestParams() []float64 {
	return append([]float64(nil), s.best().Params...)
}

// Center is the coordinate-wise mean of every vertex.
func (s *Simplex) Center() []float64 {
	center := make([]float64, s.dim)
	n := float64(s.dim + 1)
	for i := range center {
		center[i] = s.pSum[i] / n
	}
	return center
}

// RelativeSize measures convergence as the mean per-axis fractional
// distance of the best vertex from the centroid, per spec.md section 4.1.
func (s *Simplex) RelativeSize() float64 {
	center := s.Center()
	best := s.best().Params
	var sum float64
	for i := 0; i < s.dim; i++ {
		span := s.cfg.Upper[i] - s.cfg.Lower[i]
		sum += math.Abs(best[i]-center[i]) / span
	}
	return sum / float64(s.dim+1)
}

// EuclideanSize is the unnormalized Euclidean distance from the best vertex
// to the centroid.
func (s *Simplex) EuclideanSize() float64 {
	center := s.Center()
	best := s.best().Params
	var sum float64
	for i := 0; i < s.dim; i++ {
		d := best[i] - center[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// IterationCount is the number of completed Reflect cycles.
func (s *Simplex) IterationCount() int { return s.iterationCount }

// EvaluationCount is the total number of objective evaluations consumed so
// far by this simplex.
func (s *Simplex) EvaluationCount() int { return s.evaluationCount }

// Finished reports whether the state machine has reached its terminal state.
func (s *Simplex) Finished() bool { return s.ph == phaseFinished }

// ForceFinish drives the state machine straight to phaseFinished without a
// final Advance call. The colony uses this to stop a worker mid-cycle when
// lazy_workers is set and a sibling worker has already finished; any
// outstanding evaluation requests for this worker are simply abandoned.
func (s *Simplex) ForceFinish() { s.ph = phaseFinished }

// Vertices returns a deep copy of the current vertex list, used by the
// genetics layer to snapshot worker state without risking later mutation.
func (s *Simplex) Vertices() []Vertex { return cloneVertices(s.vertices) }

// Dim is the parameter-space dimensionality.
func (s *Simplex) Dim() int { return s.dim }

// Bounds returns the simplex's box bounds. The returned slices are owned by
// the caller.
func (s *Simplex) Bounds() (lower, upper []float64) {
	return append([]float64(nil), s.cfg.Lower...), append([]float64(nil), s.cfg.Upper...)
}

// Reseed replaces the simplex's vertices with a fresh random draw and
// resets its counters, used by Genetics when a shrink generation resets
// the colony instead of reproducing.
func (s *Simplex) Reseed(cfg Config, stream *rng.Stream) error {
	if err := cfg.Validate(s.dim); err != nil {
		return err
	}
	fresh, err := NewFromSeed(cfg, s.id, stream)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.vertices = fresh.vertices
	s.pSum = fresh.pSum
	s.iterationCount = 0
	s.evaluationCount = 0
	s.ph = phaseUninitialized
	s.stream = stream
	return nil
}

// SetBounds replaces the box bounds in place, leaving vertices, counters,
// and phase untouched. Genetics uses this to propagate a shrunk domain to
// every worker without discarding reproduced children (the reset-on-shrink
// path uses Reseed instead, which also redraws vertices).
func (s *Simplex) SetBounds(lower, upper []float64) error {
	cfg := s.cfg
	cfg.Lower = append([]float64(nil), lower...)
	cfg.Upper = append([]float64(nil), upper...)
	if err := cfg.Validate(s.dim); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

// SetVertices overwrites the simplex's vertices (e.g. with a reproduced
// child generation) and resets its counters, leaving configuration intact.
func (s *Simplex) SetVertices(vertices []Vertex) {
	s.vertices = cloneVertices(vertices)
	s.iterationCount = 0
	s.evaluationCount = 0
	s.ph = phaseUninitialized
	for i := range s.pSum {
		s.pSum[i] = 0
	}
	for _, v := range s.vertices {
		for i, p := range v.Params {
			s.pSum[i] += p
		}
	}
}

// Rename assigns a new identity tag, used when Genetics renames children
// after reproduction (worker_<i>_G<gen>).
func (s *Simplex) Rename(id string) { s.id = id }

func sortVertices(vs []Vertex) {
	// Insertion sort: dim+1 is small (typically single digits to low
	// hundreds), and the list is already nearly sorted between cycles since
	// only the worst vertex changes.
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0 && less(vs[j], vs[j-1]); j-- {
			vs[j], vs[j-1] = vs[j-1], vs[j]
		}
	}
}
