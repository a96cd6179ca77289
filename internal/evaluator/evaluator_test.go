package evaluator

import (
	"math"
	"testing"

	"github.com/cwbudde/nmcolony/internal/simplex"
)

func chunkOf(points ...[]float64) []*simplex.EvaluationRequest {
	chunk := make([]*simplex.EvaluationRequest, len(points))
	for i, p := range points {
		chunk[i] = &simplex.EvaluationRequest{WorkerID: "worker_0", Params: p}
	}
	return chunk
}

func TestSerialFillsEveryRequest(t *testing.T) {
	chunk := chunkOf([]float64{1, 2}, []float64{3, 4})
	ev := Serial{Objective: Sphere}
	if err := ev.Evaluate(chunk); err != nil {
		t.Fatal(err)
	}
	for _, r := range chunk {
		if !r.Filled() {
			t.Fatalf("request for %v not filled", r.Params)
		}
	}
	if chunk[0].Value != 5 || chunk[1].Value != 25 {
		t.Fatalf("unexpected sphere values: %v %v", chunk[0].Value, chunk[1].Value)
	}
}

func TestParallelFillsEveryRequest(t *testing.T) {
	points := make([][]float64, 50)
	for i := range points {
		points[i] = []float64{float64(i)}
	}
	chunk := chunkOf(points...)

	ev := Parallel{Objective: Sphere, MaxGoroutines: 4}
	if err := ev.Evaluate(chunk); err != nil {
		t.Fatal(err)
	}
	for i, r := range chunk {
		want := float64(i) * float64(i)
		if r.Value != want {
			t.Fatalf("request %d: got %v want %v", i, r.Value, want)
		}
	}
}

func TestSphereMinimumAtOrigin(t *testing.T) {
	if Sphere([]float64{0, 0, 0}) != 0 {
		t.Fatal("expected sphere(0) == 0")
	}
}

func TestGriewankMinimumAtOrigin(t *testing.T) {
	v := Griewank([]float64{0, 0, 0})
	if math.Abs(v) > 1e-12 {
		t.Fatalf("expected griewank(0) ~= 0, got %v", v)
	}
}

func TestConstantIgnoresInput(t *testing.T) {
	f := Constant(7)
	if f([]float64{1, 2, 3}) != 7 || f(nil) != 7 {
		t.Fatal("expected constant objective to ignore params")
	}
}

func TestNilObjectiveRejected(t *testing.T) {
	if err := (Serial{}).Evaluate(chunkOf([]float64{1})); err == nil {
		t.Fatal("expected error for nil objective")
	}
}
