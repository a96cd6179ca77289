// Package boundary implements the box-bound enforcement policies applied to
// extrapolated simplex vertices.
package boundary

import "github.com/cwbudde/nmcolony/internal/rng"

// Policy is a per-coordinate strategy for pulling an out-of-bounds value
// back into [lower, upper].
type Policy int

const (
	// Sticky clamps to the violated bound.
	Sticky Policy = iota
	// Random resamples uniformly in [lower, upper].
	Random
	// Periodic wraps by successive +/-(upper-lower) subtractions.
	Periodic
	// Reflective folds by 2*bound - x.
	Reflective
)

func (p Policy) String() string {
	switch p {
	case Sticky:
		return "sticky"
	case Random:
		return "random"
	case Periodic:
		return "periodic"
	case Reflective:
		return "reflective"
	default:
		return "unknown"
	}
}

const (
	periodicMaxIterations   = 100
	reflectiveMaxIterations = 1000
)

// Apply enforces policy on every coordinate of params in place against
// lower/upper. If force is false, out-of-bounds values are left untouched.
//
// Periodic and Reflective fold by bounded iteration; if the cap is
// exceeded the last computed (possibly still out-of-bounds) value is kept.
// This is a known quirk inherited from the reference algorithm, not a bug:
// pathological bound ratios (a tiny range far from the origin) can need
// more folds than the cap allows.
func Apply(policy Policy, params, lower, upper []float64, force bool, stream *rng.Stream) {
	if !force {
		return
	}
	for i := range params {
		lo, hi := lower[i], upper[i]
		if params[i] >= lo && params[i] <= hi {
			continue
		}
		switch policy {
		case Sticky:
			params[i] = clamp(params[i], lo, hi)
		case Random:
			params[i] = stream.Uniform(lo, hi)
		case Periodic:
			params[i] = foldPeriodic(params[i], lo, hi)
		case Reflective:
			params[i] = foldReflective(params[i], lo, hi)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func foldPeriodic(v, lo, hi float64) float64 {
	span := hi - lo
	if span <= 0 {
		return lo
	}
	for i := 0; i < periodicMaxIterations; i++ {
		if v < lo {
			v += span
		} else if v > hi {
			v -= span
		} else {
			return v
		}
	}
	return v
}

func foldReflective(v, lo, hi float64) float64 {
	for i := 0; i < reflectiveMaxIterations; i++ {
		if v < lo {
			v = 2*lo - v
		} else if v > hi {
			v = 2*hi - v
		} else {
			return v
		}
	}
	return v
}
