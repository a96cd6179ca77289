// Package colony multiplexes a population of simplex.Simplex workers
// against a single, batched evaluation queue: it is the cooperative
// scheduler described in spec.md section 4.2, turning many independent
// state machines into one stream of bounded evaluation chunks.
package colony

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/nmcolony/internal/rng"
	"github.com/cwbudde/nmcolony/internal/simplex"
)

// RunState is returned by Run to tell the caller whether a chunk needs
// evaluating or the colony has finished.
type RunState int

const (
	NeedsEvaluation RunState = iota
	Finished
)

func (s RunState) String() string {
	if s == Finished {
		return "finished"
	}
	return "needs_evaluation"
}

// Colony owns a fixed population of simplexes and schedules their
// cooperative advancement against a shared evaluation chunk.
type Colony struct {
	workers []*simplex.Simplex

	taskQueue []int // worker indices with an Advance ready to run
	evalQueue []*simplex.EvaluationRequest
	pending   map[string][]*simplex.EvaluationRequest

	chunkSize   int
	lazyWorkers bool

	lastChunk     []*simplex.EvaluationRequest
	finishedCount int
	bestHistory   map[string][]float64
}

// New allocates a population of simplexes named worker_0..worker_{n-1},
// each seeded from its own entry in streams (one per worker, typically
// derived by Genetics via rng.Stream.Split so that reproducibility does not
// depend on worker creation order beyond the parent stream's draws).
func New(cfg simplex.Config, population int, streams []*rng.Stream) (*Colony, error) {
	if population < 1 {
		return nil, fmt.Errorf("colony: population must be >= 1, got %d", population)
	}
	if len(streams) != population {
		return nil, fmt.Errorf("colony: need %d rng streams, got %d", population, len(streams))
	}

	workers := make([]*simplex.Simplex, population)
	for i := 0; i < population; i++ {
		id := fmt.Sprintf("worker_%d", i)
		w, err := simplex.NewFromSeed(cfg, id, streams[i])
		if err != nil {
			return nil, fmt.Errorf("colony: worker %d: %w", i, err)
		}
		workers[i] = w
	}

	return &Colony{
		workers:     workers,
		pending:     make(map[string][]*simplex.EvaluationRequest),
		chunkSize:   1,
		lazyWorkers: true,
		bestHistory: make(map[string][]float64),
	}, nil
}

// Workers returns the colony's worker list. Callers must not mutate it.
func (c *Colony) Workers() []*simplex.Simplex { return c.workers }

// UpdateBounds propagates a new box domain to every worker without
// disturbing their current vertices, used when Genetics shrinks the search
// domain without a full reset.
func (c *Colony) UpdateBounds(lower, upper []float64) error {
	for _, w := range c.workers {
		if err := w.SetBounds(lower, upper); err != nil {
			return fmt.Errorf("colony: update bounds on %s: %w", w.ID(), err)
		}
	}
	return nil
}

// SetEvaluationChunkSize sets the target size of a yielded evaluation
// batch. k=1 means yield after every request.
func (c *Colony) SetEvaluationChunkSize(k int) {
	if k < 1 {
		k = 1
	}
	c.chunkSize = k
}

// SetLazyWorkers configures whether the colony stops all workers as soon
// as one of them finishes.
func (c *Colony) SetLazyWorkers(lazy bool) { c.lazyWorkers = lazy }

// Restart enqueues each worker's Begin operation, discarding any queued
// work left over from a previous run.
func (c *Colony) Restart() {
	c.taskQueue = nil
	c.evalQueue = nil
	c.pending = make(map[string][]*simplex.EvaluationRequest)
	c.finishedCount = 0
	c.bestHistory = make(map[string][]float64)

	for i, w := range c.workers {
		reqs := w.Begin()
		c.schedule(i, reqs)
	}
}

func (c *Colony) schedule(idx int, reqs []*simplex.EvaluationRequest) {
	w := c.workers[idx]
	c.pending[w.ID()] = reqs
	c.evalQueue = append(c.evalQueue, reqs...)
	c.taskQueue = append(c.taskQueue, idx)
}

// Chunk returns the evaluation chunk most recently yielded by Run. It is
// read-only once yielded until the caller fills in every request's value
// and calls Run again.
func (c *Colony) Chunk() []*simplex.EvaluationRequest { return c.lastChunk }

// ContractViolation reports that an evaluator returned a chunk with one or
// more unfilled requests, which spec.md section 7 classifies as
// EvaluatorContractViolation rather than a numerical anomaly (NaN/Inf are
// legal values; an unfilled request is not).
type ContractViolation struct {
	WorkerID string
	Index    int
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("colony: evaluator left request %d for %s unfilled", e.Index, e.WorkerID)
}

var _ error = (*ContractViolation)(nil)

// Run drains the task queue until either an evaluation chunk is ready (the
// caller must fill it and call Run again) or every worker has finished.
// Run returns a ContractViolation if the previously yielded chunk (now
// passed back in, implicitly, via Chunk()'s pointers) was not fully filled.
func (c *Colony) Run() (RunState, []*simplex.EvaluationRequest, error) {
	if c.lastChunk != nil {
		for i, r := range c.lastChunk {
			if !r.Filled() {
				return NeedsEvaluation, c.lastChunk, &ContractViolation{WorkerID: r.WorkerID, Index: i}
			}
		}
		c.lastChunk = nil
	}

	for {
		if chunk := c.tryBuildChunk(); chunk != nil {
			c.lastChunk = chunk
			return NeedsEvaluation, chunk, nil
		}

		if len(c.taskQueue) == 0 {
			if len(c.evalQueue) == 0 {
				c.padBestHistory()
				return Finished, nil, nil
			}
			// Invariant violation: evaluations pending with no task to
			// consume them. Treat defensively as finished rather than
			// spin forever.
			slog.Error("colony: evaluation queue nonempty with no pending task", "remaining", len(c.evalQueue))
			c.padBestHistory()
			return Finished, nil, nil
		}

		c.executeNextTask()
	}
}

func (c *Colony) tryBuildChunk() []*simplex.EvaluationRequest {
	if len(c.evalQueue) == 0 {
		return nil
	}

	if len(c.taskQueue) > 0 {
		headTaskWorker := c.workers[c.taskQueue[0]].ID()
		if c.evalQueue[0].WorkerID == headTaskWorker {
			n := 0
			for n < len(c.evalQueue) && n < c.chunkSize && c.evalQueue[n].WorkerID == headTaskWorker {
				n++
			}
			chunk := append([]*simplex.EvaluationRequest{}, c.evalQueue[:n]...)
			c.evalQueue = c.evalQueue[n:]

			for len(chunk) < c.chunkSize && len(c.evalQueue) > 0 {
				chunk = append(chunk, c.evalQueue[0])
				c.evalQueue = c.evalQueue[1:]
			}
			return chunk
		}
	}

	if len(c.evalQueue) >= c.chunkSize {
		chunk := append([]*simplex.EvaluationRequest{}, c.evalQueue[:c.chunkSize]...)
		c.evalQueue = c.evalQueue[c.chunkSize:]
		return chunk
	}

	return nil
}

func (c *Colony) executeNextTask() {
	idx := c.taskQueue[0]
	c.taskQueue = c.taskQueue[1:]

	w := c.workers[idx]
	filled := c.pending[w.ID()]
	delete(c.pending, w.ID())

	next, finished := w.Advance(filled)
	if w.EvaluationCount() > 0 {
		c.recordBest(w)
	}

	if finished {
		c.finishedCount++
		c.handleWorkerFinished(idx)
		return
	}

	c.schedule(idx, next)
}

func (c *Colony) recordBest(w *simplex.Simplex) {
	id := w.ID()
	c.bestHistory[id] = append(c.bestHistory[id], w.BestValue())
}

func (c *Colony) handleWorkerFinished(idx int) {
	if !c.lazyWorkers || len(c.workers) <= 1 || c.finishedCount >= len(c.workers) {
		return
	}

	slog.Info("colony: lazy worker finished, stopping remaining workers", "worker", c.workers[idx].ID())

	for i, w := range c.workers {
		if i == idx || w.Finished() {
			continue
		}
		w.ForceFinish()
		c.finishedCount++
	}

	c.taskQueue = nil
	c.evalQueue = nil
	c.pending = make(map[string][]*simplex.EvaluationRequest)
}

func (c *Colony) padBestHistory() {
	maxLen := 0
	for _, h := range c.bestHistory {
		if len(h) > maxLen {
			maxLen = len(h)
		}
	}
	for id, h := range c.bestHistory {
		if len(h) == 0 {
			continue
		}
		last := h[len(h)-1]
		for len(h) < maxLen {
			h = append(h, last)
		}
		c.bestHistory[id] = h
	}
}

// BestHistory returns the per-step best-value trace recorded for a worker
// during the run just finished, padded to equal length across workers.
func (c *Colony) BestHistory(workerID string) []float64 {
	return append([]float64(nil), c.bestHistory[workerID]...)
}
