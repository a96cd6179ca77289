// Package config defines the full configuration surface of the optimizer
// (spec.md section 6) and validates it at the boundary, per the error
// taxonomy: malformed configuration must fail loudly before any simplex or
// colony is constructed.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cwbudde/nmcolony/internal/boundary"
)

// FitnessMode selects how a worker's snapshot is reduced to a scalar for
// marriage-list ranking.
type FitnessMode int

const (
	FitnessMin FitnessMode = iota
	FitnessMax
	FitnessAverage
)

// MarriageMode selects how fitness-ranked workers are paired for
// reproduction.
type MarriageMode int

const (
	MarriageKingHenry MarriageMode = iota
	MarriageRandom
	MarriageRandomPreferable
	MarriageHierarchical
	MarriageBestWorst
)

// ReproductionMode selects how a married pair's vertices combine into two
// children.
type ReproductionMode int

const (
	ReproductionDiscreteMixing ReproductionMode = iota
	ReproductionLinearCombination
	ReproductionRandomType
)

// ShrinkMode selects how the search domain is re-bounded around the king
// when a shrink generation fires.
type ShrinkMode int

const (
	ShrinkAround ShrinkMode = iota
	ShrinkChangeLowerIfNeg
)

// Config aggregates every option in spec.md section 6. Zero-value fields
// are not valid on their own; use Default to get the documented defaults
// and override from there.
type Config struct {
	Population int       `validate:"required,gt=1"`
	Upper      []float64 `validate:"required,min=1"`
	Lower      []float64 `validate:"required,min=1"`

	MaxGenerations int `validate:"gte=1"`
	MaxEvaluations int `validate:"gte=0"` // 0 means unlimited

	GrowFactor     float64 `validate:"gt=1"`
	ShrinkFactor   float64 `validate:"gt=0,lt=1"`
	ForceBoundary  bool
	BoundaryPolicy boundary.Policy

	Fitness             FitnessMode
	Marriage            MarriageMode
	Reproduction        ReproductionMode
	ReproductionPercent float64 `validate:"gte=0,lte=1"`

	ShrinkPerGenerations int     `validate:"gte=0"`
	ShrinkFactorBoundary float64 `validate:"gte=0,lte=1"`
	ShrinkMode           ShrinkMode
	ResetOnShrink        bool

	MinRelativeSize float64 `validate:"gte=0"`

	EvaluationChunkSize int `validate:"gte=1"`
	LazyWorkers         bool

	Seed uint64
}

// Default returns the spec's documented defaults. Callers must still set
// Population, Upper, and Lower; since Default takes no arguments it cannot
// size EvaluationChunkSize off Population, so it defaults that to 1 and
// leaves a population-sized chunk to callers that want one (set
// EvaluationChunkSize = Population after calling Default).
func Default() Config {
	return Config{
		MaxGenerations:       10,
		MaxEvaluations:       0,
		GrowFactor:           2,
		ShrinkFactor:         0.5,
		ForceBoundary:        true,
		BoundaryPolicy:       boundary.Sticky,
		Fitness:              FitnessMin,
		Marriage:             MarriageKingHenry,
		Reproduction:         ReproductionDiscreteMixing,
		ReproductionPercent:  1.0,
		ShrinkPerGenerations: 0,
		ShrinkFactorBoundary: 0.5,
		ShrinkMode:           ShrinkAround,
		ResetOnShrink:        false,
		MinRelativeSize:      1e-8,
		EvaluationChunkSize:  1,
		LazyWorkers:          true,
	}
}

// ConfigurationError reports one or more invalid configuration fields. It
// is always returned at the setter/constructor boundary, never mid-run.
type ConfigurationError struct {
	Issues []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Issues, "; ")
}

var validate = validator.New()

// Validate runs struct-tag validation followed by the cross-field checks
// struct tags cannot express (bound ordering, dimension agreement,
// max_evaluations large enough to let a simplex initialize).
func (c Config) Validate() error {
	var issues []string

	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				issues = append(issues, fmt.Sprintf("%s failed %q constraint", fe.Field(), fe.Tag()))
			}
		} else {
			issues = append(issues, err.Error())
		}
	}

	if len(c.Upper) != len(c.Lower) {
		issues = append(issues, fmt.Sprintf("Upper and Lower dimension mismatch: %d vs %d", len(c.Upper), len(c.Lower)))
	} else {
		for i := range c.Upper {
			if c.Upper[i] <= c.Lower[i] {
				issues = append(issues, fmt.Sprintf("Upper[%d]=%v must be greater than Lower[%d]=%v", i, c.Upper[i], i, c.Lower[i]))
			}
		}
	}

	dim := len(c.Upper)
	if dim > 0 && c.MaxEvaluations > 0 && c.MaxEvaluations <= dim+1 {
		issues = append(issues, fmt.Sprintf("MaxEvaluations=%d must exceed dim+1=%d", c.MaxEvaluations, dim+1))
	}

	if len(issues) > 0 {
		return &ConfigurationError{Issues: issues}
	}
	return nil
}
