package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/nmcolony/internal/colony"
	"github.com/cwbudde/nmcolony/internal/config"
	"github.com/cwbudde/nmcolony/internal/genetics"
	"github.com/cwbudde/nmcolony/internal/progress"
)

// StartAsync launches cfg as a background run under ev, returning the run's
// ID immediately. The run can be cancelled via ctx; progress is published
// to m.Broadcaster after every generation. It is adapted from the teacher's
// runJob/monitorProgress pair, with checkpoint/artifact persistence dropped
// (out of scope here) and ctx-based cancellation taking the place of the
// teacher's job-cancellation channel.
func (m *Manager) StartAsync(ctx context.Context, cfg config.Config, ev genetics.Evaluator) (string, error) {
	run := m.CreateRun(cfg)

	g, err := genetics.New(cfg)
	if err != nil {
		_ = m.UpdateRun(run.ID, func(r *Run) {
			r.State = StateFailed
			r.Error = err.Error()
			now := time.Now()
			r.EndTime = &now
		})
		return "", fmt.Errorf("runner: %w", err)
	}

	_ = m.UpdateRun(run.ID, func(r *Run) { r.State = StateRunning })

	go m.runGenetics(ctx, run.ID, g, ev)
	return run.ID, nil
}

// runGenetics drives g's colony/generation loop to completion or
// cancellation, broadcasting a progress.GenerationEvent after every
// generation and writing the final outcome back into the run registry.
func (m *Manager) runGenetics(ctx context.Context, runID string, g *genetics.Genetics, ev genetics.Evaluator) {
	defer m.Broadcaster.CleanupJob(runID)

	for !g.Finished() {
		select {
		case <-ctx.Done():
			m.markCancelled(runID, g)
			return
		default:
		}

		state, chunk, err := g.Colony().Run()
		if err != nil {
			m.markFailed(runID, err)
			return
		}

		switch state {
		case colony.NeedsEvaluation:
			if err := ev.Evaluate(chunk); err != nil {
				m.markFailed(runID, fmt.Errorf("evaluator: %w", err))
				return
			}
		case colony.Finished:
			if err := g.OnColonyFinished(); err != nil {
				m.markFailed(runID, err)
				return
			}
			m.reportProgress(runID, g)
		}
	}

	m.markCompleted(runID, g)
}

func (m *Manager) reportProgress(runID string, g *genetics.Genetics) {
	_ = m.UpdateRun(runID, func(r *Run) {
		r.Generation = g.Generation()
		r.Evaluations = g.TotalEvaluations()
	})
	m.Broadcaster.Broadcast(progress.GenerationEvent{
		RunID:            runID,
		Generation:       g.Generation(),
		TotalEvaluations: g.TotalEvaluations(),
		BestValue:        g.BestValue(),
		BestWorker:       g.BestWorker(),
		Finished:         g.Finished(),
		Timestamp:        time.Now(),
	})
}

func (m *Manager) markCompleted(runID string, g *genetics.Genetics) {
	now := time.Now()
	_ = m.UpdateRun(runID, func(r *Run) {
		r.State = StateCompleted
		r.Generation = g.Generation()
		r.Evaluations = g.TotalEvaluations()
		r.BestValue = g.BestValue()
		r.BestParams = g.BestParams()
		r.BestWorker = g.BestWorker()
		r.EndTime = &now
	})
	m.Broadcaster.Broadcast(progress.GenerationEvent{
		RunID:            runID,
		Generation:       g.Generation(),
		TotalEvaluations: g.TotalEvaluations(),
		BestValue:        g.BestValue(),
		BestWorker:       g.BestWorker(),
		Finished:         true,
		Timestamp:        now,
	})
	slog.Info("runner: run completed", "run_id", runID, "best_value", g.BestValue(), "generations", g.Generation())
}

func (m *Manager) markFailed(runID string, err error) {
	now := time.Now()
	_ = m.UpdateRun(runID, func(r *Run) {
		r.State = StateFailed
		r.Error = err.Error()
		r.EndTime = &now
	})
	slog.Error("runner: run failed", "run_id", runID, "error", err)
}

func (m *Manager) markCancelled(runID string, g *genetics.Genetics) {
	now := time.Now()
	_ = m.UpdateRun(runID, func(r *Run) {
		r.State = StateCancelled
		r.Generation = g.Generation()
		r.Evaluations = g.TotalEvaluations()
		r.EndTime = &now
	})
	slog.Info("runner: run cancelled", "run_id", runID, "generation", g.Generation())
}
