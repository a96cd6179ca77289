// Package progress fans out generation-level updates from a running
// optimization to any number of subscribers, without committing to a
// transport. It is adapted from the teacher's SSE event broadcaster, with
// the net/http streaming layer stripped out (UI/plotting is out of scope
// here; a cmd/ command or an embedder can still poll or subscribe).
package progress

import (
	"log/slog"
	"sync"
	"time"
)

// GenerationEvent reports the state of a run after one generation has
// finished, the progress-layer analogue of a colony-finished callback.
type GenerationEvent struct {
	RunID            string    `json:"runId"`
	Generation       int       `json:"generation"`
	TotalEvaluations int       `json:"totalEvaluations"`
	BestValue        float64   `json:"bestValue"`
	BestWorker       string    `json:"bestWorker"`
	Finished         bool      `json:"finished"`
	Timestamp        time.Time `json:"timestamp"`
}

// Broadcaster fans GenerationEvents out to every subscriber of a run,
// caching the most recent event so a late subscriber gets immediate state.
type Broadcaster struct {
	mu        sync.RWMutex
	clients   map[string]map[chan GenerationEvent]bool
	lastEvent map[string]GenerationEvent
}

// NewBroadcaster constructs an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients:   make(map[string]map[chan GenerationEvent]bool),
		lastEvent: make(map[string]GenerationEvent),
	}
}

// Subscribe registers a new listener for runID's events. The returned
// channel is buffered; a slow subscriber drops events rather than blocking
// the run.
func (b *Broadcaster) Subscribe(runID string) chan GenerationEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan GenerationEvent, 16)

	if b.clients[runID] == nil {
		b.clients[runID] = make(map[chan GenerationEvent]bool)
	}
	b.clients[runID][ch] = true

	if last, ok := b.lastEvent[runID]; ok {
		select {
		case ch <- last:
		default:
		}
	}

	slog.Debug("progress: client subscribed", "run_id", runID, "clients", len(b.clients[runID]))
	return ch
}

// Unsubscribe removes and closes a previously subscribed channel.
func (b *Broadcaster) Unsubscribe(runID string, ch chan GenerationEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[runID]; ok {
		delete(clients, ch)
		close(ch)
		if len(clients) == 0 {
			delete(b.clients, runID)
		}
	}
	slog.Debug("progress: client unsubscribed", "run_id", runID)
}

// Broadcast sends event to every current subscriber of its run and caches
// it for future subscribers.
func (b *Broadcaster) Broadcast(event GenerationEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// lastEvent is written under RLock, matching the teacher's stream.go;
	// concurrent Broadcasts (for the same run or not) race on this map write.
	b.lastEvent[event.RunID] = event

	clients, ok := b.clients[event.RunID]
	if !ok || len(clients) == 0 {
		return
	}

	for ch := range clients {
		select {
		case ch <- event:
		default:
			slog.Warn("progress: subscriber channel full, dropping event", "run_id", event.RunID)
		}
	}
}

// CleanupJob removes all subscribers and cached state for a finished run.
func (b *Broadcaster) CleanupJob(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[runID]; ok {
		for ch := range clients {
			close(ch)
		}
		delete(b.clients, runID)
	}
	delete(b.lastEvent, runID)
	slog.Debug("progress: cleaned up run", "run_id", runID)
}
