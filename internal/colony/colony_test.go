package colony

import (
	"testing"

	"github.com/cwbudde/nmcolony/internal/boundary"
	"github.com/cwbudde/nmcolony/internal/rng"
	"github.com/cwbudde/nmcolony/internal/simplex"
)

func sphereCfg(dim int) simplex.Config {
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = -10
		upper[i] = 10
	}
	return simplex.Config{
		Lower:           lower,
		Upper:           upper,
		GrowFactor:      2,
		ShrinkFactor:    0.5,
		ForceBoundary:   true,
		BoundaryPolicy:  boundary.Sticky,
		MaxEvaluations:  300,
		MinRelativeSize: 1e-9,
	}
}

func sphere(p []float64) float64 {
	var s float64
	for _, v := range p {
		s += v * v
	}
	return s
}

func streams(parent *rng.Stream, n int) []*rng.Stream {
	out := make([]*rng.Stream, n)
	for i := 0; i < n; i++ {
		out[i] = parent.Split()
	}
	return out
}

func fill(chunk []*simplex.EvaluationRequest) {
	for _, r := range chunk {
		r.Fill(sphere(r.Params))
	}
}

func TestColonyRunsToCompletion(t *testing.T) {
	parent := rng.New(1)
	c, err := New(sphereCfg(2), 3, streams(parent, 3))
	if err != nil {
		t.Fatal(err)
	}
	c.SetLazyWorkers(false)
	c.SetEvaluationChunkSize(2)
	c.Restart()

	steps := 0
	for {
		state, chunk, err := c.Run()
		if err != nil {
			t.Fatalf("run error: %v", err)
		}
		if state == Finished {
			break
		}
		fill(chunk)
		steps++
		if steps > 100000 {
			t.Fatal("colony did not terminate")
		}
	}

	for _, w := range c.Workers() {
		if !w.Finished() {
			t.Fatalf("worker %s not finished", w.ID())
		}
		if w.BestValue() > 1e-5 {
			t.Fatalf("worker %s did not converge: %v", w.ID(), w.BestValue())
		}
	}
}

func TestBestHistoryPaddedAcrossWorkers(t *testing.T) {
	parent := rng.New(2)
	c, err := New(sphereCfg(2), 3, streams(parent, 3))
	if err != nil {
		t.Fatal(err)
	}
	c.SetLazyWorkers(false)
	c.Restart()

	for {
		state, chunk, err := c.Run()
		if err != nil {
			t.Fatal(err)
		}
		if state == Finished {
			break
		}
		fill(chunk)
	}

	var want int = -1
	for _, w := range c.Workers() {
		h := c.BestHistory(w.ID())
		if len(h) == 0 {
			t.Fatalf("empty history for %s", w.ID())
		}
		if want == -1 {
			want = len(h)
		} else if len(h) != want {
			t.Fatalf("history length mismatch: %d vs %d", len(h), want)
		}
	}
}

func TestLazyWorkersStopsSiblingsOnFirstFinish(t *testing.T) {
	parent := rng.New(3)
	c, err := New(sphereCfg(2), 4, streams(parent, 4))
	if err != nil {
		t.Fatal(err)
	}
	c.SetLazyWorkers(true)
	c.Restart()

	steps := 0
	for {
		state, chunk, err := c.Run()
		if err != nil {
			t.Fatal(err)
		}
		if state == Finished {
			break
		}
		fill(chunk)
		steps++
		if steps > 100000 {
			t.Fatal("colony did not terminate")
		}
	}

	for _, w := range c.Workers() {
		if !w.Finished() {
			t.Fatalf("worker %s not finished after lazy stop", w.ID())
		}
	}
}

func TestContractViolationOnUnfilledRequest(t *testing.T) {
	parent := rng.New(4)
	c, err := New(sphereCfg(2), 2, streams(parent, 2))
	if err != nil {
		t.Fatal(err)
	}
	c.Restart()

	state, chunk, err := c.Run()
	if err != nil || state != NeedsEvaluation {
		t.Fatalf("expected first chunk, got state=%v err=%v", state, err)
	}
	if len(chunk) == 0 {
		t.Fatal("expected nonempty chunk")
	}
	// Deliberately leave the request unfilled.
	_, _, err = c.Run()
	if err == nil {
		t.Fatal("expected ContractViolation for unfilled request")
	}
	if _, ok := err.(*ContractViolation); !ok {
		t.Fatalf("expected *ContractViolation, got %T", err)
	}
}

func TestMismatchedStreamCountRejected(t *testing.T) {
	parent := rng.New(5)
	_, err := New(sphereCfg(2), 3, streams(parent, 2))
	if err == nil {
		t.Fatal("expected error for stream/population mismatch")
	}
}
