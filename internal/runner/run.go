// Package runner is an async run registry: it lets cmd/run launch an
// optimization in the background, poll or subscribe to its progress, and
// retrieve the final result once it finishes. It is adapted from the
// teacher's JobManager, with image-fitting fields replaced by the
// optimizer's own result shape and no checkpoint persistence (out of
// scope here).
package runner

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/nmcolony/internal/config"
	"github.com/cwbudde/nmcolony/internal/progress"
)

// State is the lifecycle stage of a Run.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Run is one optimization's lifecycle record.
type Run struct {
	ID          string        `json:"id"`
	State       State         `json:"state"`
	Config      config.Config `json:"config"`
	BestValue   float64       `json:"bestValue"`
	BestParams  []float64     `json:"bestParams,omitempty"`
	BestWorker  string        `json:"bestWorker,omitempty"`
	Generation  int           `json:"generation"`
	Evaluations int           `json:"evaluations"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     *time.Time    `json:"endTime,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Manager tracks every Run created in this process and owns the progress
// broadcaster every run's background goroutine publishes to.
type Manager struct {
	mu          sync.RWMutex
	runs        map[string]*Run
	Broadcaster *progress.Broadcaster
}

// NewManager constructs an empty run registry.
func NewManager() *Manager {
	return &Manager{
		runs:        make(map[string]*Run),
		Broadcaster: progress.NewBroadcaster(),
	}
}

// CreateRun registers a new pending run and returns it.
func (m *Manager) CreateRun(cfg config.Config) *Run {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := &Run{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    cfg,
		StartTime: time.Now(),
	}
	m.runs[run.ID] = run
	return run
}

// GetRun retrieves a run by ID.
func (m *Manager) GetRun(id string) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	return run, ok
}

// ListRuns returns every tracked run, in no particular order.
func (m *Manager) ListRuns() []*Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out
}

// UpdateRun atomically mutates a run via fn.
func (m *Manager) UpdateRun(id string, fn func(*Run)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("runner: run not found: %s", id)
	}
	fn(run)
	return nil
}
