// Package evaluator provides the objective-function side of the
// colony/genetics contract: something that fills in every EvaluationRequest
// in a chunk with a finite real value (or a legal NaN/Inf).
package evaluator

import (
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/cwbudde/nmcolony/internal/simplex"
)

// Func is a pure objective function: a parameter vector in, a scalar out.
// It must be safe for concurrent calls when used with Parallel.
type Func func(params []float64) float64

// Serial evaluates every request in a chunk sequentially on the calling
// goroutine. It is the reference evaluator used for reproducibility tests:
// with a deterministic Func, its output never depends on scheduling.
type Serial struct {
	Objective Func
}

// Evaluate implements genetics.Evaluator.
func (s Serial) Evaluate(chunk []*simplex.EvaluationRequest) error {
	if s.Objective == nil {
		return fmt.Errorf("evaluator: nil objective")
	}
	for _, r := range chunk {
		r.Fill(s.Objective(r.Params))
	}
	return nil
}

// Parallel evaluates a chunk's requests concurrently, capped at
// MaxGoroutines (0 means conc's default). Each request's params is its own
// slice, so no synchronization is needed beyond writing the result back.
type Parallel struct {
	Objective     Func
	MaxGoroutines int
}

// Evaluate implements genetics.Evaluator.
func (p Parallel) Evaluate(chunk []*simplex.EvaluationRequest) error {
	if p.Objective == nil {
		return fmt.Errorf("evaluator: nil objective")
	}

	wp := pool.New()
	if p.MaxGoroutines > 0 {
		wp = wp.WithMaxGoroutines(p.MaxGoroutines)
	}

	for _, r := range chunk {
		r := r
		wp.Go(func() {
			r.Fill(p.Objective(r.Params))
		})
	}
	wp.Wait()
	return nil
}
