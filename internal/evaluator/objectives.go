package evaluator

import "math"

// Sphere is the classic convex benchmark f(x) = sum(x_i^2), minimized at the
// origin with value 0.
func Sphere(p []float64) float64 {
	var s float64
	for _, v := range p {
		s += v * v
	}
	return s
}

// Griewank is a multimodal benchmark with many regularly spaced local
// minima superimposed on a roughly parabolic surface, minimized at the
// origin with value 0.
func Griewank(p []float64) float64 {
	sum, prod := 0.0, 1.0
	for i, v := range p {
		sum += v * v / 4000
		prod *= math.Cos(v / math.Sqrt(float64(i+1)))
	}
	return 1 + sum - prod
}

// Constant ignores its input and always returns value, used to exercise the
// relative-size termination path independent of any real landscape.
func Constant(value float64) Func {
	return func([]float64) float64 { return value }
}
