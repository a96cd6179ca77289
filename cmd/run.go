package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/nmcolony/internal/boundary"
	"github.com/cwbudde/nmcolony/internal/config"
	"github.com/cwbudde/nmcolony/internal/evaluator"
	"github.com/cwbudde/nmcolony/internal/genetics"
	"github.com/cwbudde/nmcolony/internal/runner"
)

var (
	flagLower               string
	flagUpper               string
	flagPopulation          int
	flagSeed                uint64
	flagChunkSize           int
	flagLazyWorkers         bool
	flagBoundaryPolicy      string
	flagForceBoundary       bool
	flagFitness             string
	flagMarriage            string
	flagReproduction        string
	flagReproductionPercent float64
	flagMaxGenerations      int
	flagMaxEvaluations      int
	flagShrinkPerGens       int
	flagShrinkFactorBound   float64
	flagShrinkMode          string
	flagResetOnShrink       bool
	flagMinRelativeSize     float64
	flagGrowFactor          float64
	flagShrinkFactor        float64
	flagObjective           string
	flagConstantValue       float64
	flagParallel            bool
	flagMaxGoroutines       int
	flagAsync               bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single colony/genetics optimization",
	Long:  `Builds a Config from flags and drives the colony/genetics engine to termination against an in-process objective.`,
	RunE:  runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&flagLower, "lower", "", "Comma-separated lower bounds, e.g. -10,-10 (required)")
	runCmd.Flags().StringVar(&flagUpper, "upper", "", "Comma-separated upper bounds, e.g. 10,10 (required)")
	runCmd.Flags().IntVar(&flagPopulation, "population", 8, "Number of simplexes in the colony")
	runCmd.Flags().Uint64Var(&flagSeed, "seed", 1, "Master RNG seed")
	runCmd.Flags().IntVar(&flagChunkSize, "chunk-size", 1, "Evaluation batch size handed to the evaluator at once")
	runCmd.Flags().BoolVar(&flagLazyWorkers, "lazy-workers", true, "Force-finish every worker as soon as one finishes")
	runCmd.Flags().StringVar(&flagBoundaryPolicy, "boundary-policy", "sticky", "Boundary policy: sticky, random, periodic, reflective")
	runCmd.Flags().BoolVar(&flagForceBoundary, "force-boundary", true, "Enforce box bounds on extrapolated vertices")
	runCmd.Flags().StringVar(&flagFitness, "fitness", "min", "Fitness reduction: min, max, average")
	runCmd.Flags().StringVar(&flagMarriage, "marriage", "kinghenry", "Marriage mode: kinghenry, random, randompreferable, hierarchical, bestworst")
	runCmd.Flags().StringVar(&flagReproduction, "reproduction", "discrete", "Reproduction mode: discrete, linear, randomtype")
	runCmd.Flags().Float64Var(&flagReproductionPercent, "reproduction-percent", 1.0, "Per-coordinate probability of recombining the parents instead of copying parent 0")
	runCmd.Flags().IntVar(&flagMaxGenerations, "max-generations", 10, "Maximum number of generations")
	runCmd.Flags().IntVar(&flagMaxEvaluations, "max-evaluations", 0, "Maximum cumulative evaluations across the whole run, 0 for unlimited")
	runCmd.Flags().IntVar(&flagShrinkPerGens, "shrink-per-generations", 0, "Shrink the domain every N generations, 0 to disable")
	runCmd.Flags().Float64Var(&flagShrinkFactorBound, "shrink-factor-boundary", 0.5, "Fraction of the current span kept on each side of the king after a shrink")
	runCmd.Flags().StringVar(&flagShrinkMode, "shrink-mode", "around", "Shrink sub-policy: around, changelowerifneg")
	runCmd.Flags().BoolVar(&flagResetOnShrink, "reset-on-shrink", false, "Reseed every worker (skipping reproduction) on a shrink generation")
	runCmd.Flags().Float64Var(&flagMinRelativeSize, "min-relative-size", 1e-8, "Per-simplex relative-size termination threshold")
	runCmd.Flags().Float64Var(&flagGrowFactor, "grow-factor", 2.0, "Nelder-Mead expansion factor")
	runCmd.Flags().Float64Var(&flagShrinkFactor, "shrink-factor", 0.5, "Nelder-Mead contract-all factor")
	runCmd.Flags().StringVar(&flagObjective, "objective", "sphere", "Built-in objective: sphere, griewank, constant")
	runCmd.Flags().Float64Var(&flagConstantValue, "constant-value", 0, "Value returned by the constant objective")
	runCmd.Flags().BoolVar(&flagParallel, "parallel", false, "Evaluate each chunk concurrently")
	runCmd.Flags().IntVar(&flagMaxGoroutines, "max-goroutines", 0, "Cap on concurrent evaluations when --parallel is set, 0 for no cap")
	runCmd.Flags().BoolVar(&flagAsync, "async", false, "Drive the run through the async runner instead of the synchronous loop")

	runCmd.MarkFlagRequired("lower")
	runCmd.MarkFlagRequired("upper")
	rootCmd.AddCommand(runCmd)
}

func runOptimization(cmd *cobra.Command, args []string) error {
	lower, err := parseFloats(flagLower)
	if err != nil {
		return fmt.Errorf("--lower: %w", err)
	}
	upper, err := parseFloats(flagUpper)
	if err != nil {
		return fmt.Errorf("--upper: %w", err)
	}

	policy, err := parseBoundaryPolicy(flagBoundaryPolicy)
	if err != nil {
		return err
	}
	fitness, err := parseFitnessMode(flagFitness)
	if err != nil {
		return err
	}
	marriage, err := parseMarriageMode(flagMarriage)
	if err != nil {
		return err
	}
	reproduction, err := parseReproductionMode(flagReproduction)
	if err != nil {
		return err
	}
	shrinkMode, err := parseShrinkMode(flagShrinkMode)
	if err != nil {
		return err
	}
	objective, err := parseObjective(flagObjective, flagConstantValue)
	if err != nil {
		return err
	}

	cfg := config.Config{
		Population:           flagPopulation,
		Upper:                upper,
		Lower:                lower,
		MaxGenerations:       flagMaxGenerations,
		MaxEvaluations:       flagMaxEvaluations,
		GrowFactor:           flagGrowFactor,
		ShrinkFactor:         flagShrinkFactor,
		ForceBoundary:        flagForceBoundary,
		BoundaryPolicy:       policy,
		Fitness:              fitness,
		Marriage:             marriage,
		Reproduction:         reproduction,
		ReproductionPercent:  flagReproductionPercent,
		ShrinkPerGenerations: flagShrinkPerGens,
		ShrinkFactorBoundary: flagShrinkFactorBound,
		ShrinkMode:           shrinkMode,
		ResetOnShrink:        flagResetOnShrink,
		MinRelativeSize:      flagMinRelativeSize,
		EvaluationChunkSize:  flagChunkSize,
		LazyWorkers:          flagLazyWorkers,
		Seed:                 flagSeed,
	}

	var ev genetics.Evaluator
	if flagParallel {
		ev = evaluator.Parallel{Objective: objective, MaxGoroutines: flagMaxGoroutines}
	} else {
		ev = evaluator.Serial{Objective: objective}
	}

	if flagAsync {
		return runAsync(cfg, ev)
	}
	return runSync(cfg, ev)
}

func runSync(cfg config.Config, ev genetics.Evaluator) error {
	start := time.Now()
	g, err := genetics.New(cfg)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if err := g.Run(ev); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	elapsed := time.Since(start)

	slog.Info("optimization complete",
		"elapsed", elapsed,
		"generations", g.Generation(),
		"evaluations", g.TotalEvaluations(),
		"best_value", g.BestValue(),
		"best_worker", g.BestWorker(),
	)
	fmt.Printf("best=%v params=%v (generations=%d evaluations=%d elapsed=%s)\n",
		g.BestValue(), g.BestParams(), g.Generation(), g.TotalEvaluations(), elapsed)
	return nil
}

func runAsync(cfg config.Config, ev genetics.Evaluator) error {
	mgr := runner.NewManager()
	ctx := context.Background()

	runID, err := mgr.StartAsync(ctx, cfg, ev)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	ch := mgr.Broadcaster.Subscribe(runID)
	defer mgr.Broadcaster.Unsubscribe(runID, ch)

	for event := range ch {
		fmt.Printf("generation=%d evaluations=%d best=%v worker=%s finished=%t\n",
			event.Generation, event.TotalEvaluations, event.BestValue, event.BestWorker, event.Finished)
		if event.Finished {
			break
		}
	}

	run, _ := mgr.GetRun(runID)
	if run != nil && run.State == runner.StateFailed {
		return fmt.Errorf("run failed: %s", run.Error)
	}
	return nil
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", p, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no values given")
	}
	return out, nil
}

func parseBoundaryPolicy(s string) (boundary.Policy, error) {
	switch strings.ToLower(s) {
	case "sticky":
		return boundary.Sticky, nil
	case "random":
		return boundary.Random, nil
	case "periodic":
		return boundary.Periodic, nil
	case "reflective":
		return boundary.Reflective, nil
	default:
		return 0, fmt.Errorf("unknown --boundary-policy %q", s)
	}
}

func parseFitnessMode(s string) (config.FitnessMode, error) {
	switch strings.ToLower(s) {
	case "min":
		return config.FitnessMin, nil
	case "max":
		return config.FitnessMax, nil
	case "average", "avg":
		return config.FitnessAverage, nil
	default:
		return 0, fmt.Errorf("unknown --fitness %q", s)
	}
}

func parseMarriageMode(s string) (config.MarriageMode, error) {
	switch strings.ToLower(s) {
	case "kinghenry":
		return config.MarriageKingHenry, nil
	case "random":
		return config.MarriageRandom, nil
	case "randompreferable":
		return config.MarriageRandomPreferable, nil
	case "hierarchical":
		return config.MarriageHierarchical, nil
	case "bestworst":
		return config.MarriageBestWorst, nil
	default:
		return 0, fmt.Errorf("unknown --marriage %q", s)
	}
}

func parseReproductionMode(s string) (config.ReproductionMode, error) {
	switch strings.ToLower(s) {
	case "discrete":
		return config.ReproductionDiscreteMixing, nil
	case "linear":
		return config.ReproductionLinearCombination, nil
	case "randomtype":
		return config.ReproductionRandomType, nil
	default:
		return 0, fmt.Errorf("unknown --reproduction %q", s)
	}
}

func parseShrinkMode(s string) (config.ShrinkMode, error) {
	switch strings.ToLower(s) {
	case "around":
		return config.ShrinkAround, nil
	case "changelowerifneg":
		return config.ShrinkChangeLowerIfNeg, nil
	default:
		return 0, fmt.Errorf("unknown --shrink-mode %q", s)
	}
}

func parseObjective(s string, constantValue float64) (evaluator.Func, error) {
	switch strings.ToLower(s) {
	case "sphere":
		return evaluator.Sphere, nil
	case "griewank":
		return evaluator.Griewank, nil
	case "constant":
		return evaluator.Constant(constantValue), nil
	default:
		return nil, fmt.Errorf("unknown --objective %q", s)
	}
}
