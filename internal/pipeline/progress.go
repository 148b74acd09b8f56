package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// Phase is the driver's lifecycle state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseRunning    Phase = "running"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

const completeMessage = "Processing complete!"

// RunState is a point-in-time view of a run's progress.
type RunState struct {
	RunID        string    `json:"run_id"`
	Phase        Phase     `json:"phase"`
	CurrentIndex int       `json:"current_index"`
	TotalRows    int       `json:"total_rows"`
	Message      string    `json:"message"`
	OutputPath   string    `json:"output_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Progress holds the RunState of one run. The driver is its only writer;
// readers get copies through Snapshot or a subscription.
type Progress struct {
	mu          sync.Mutex
	state       RunState
	subscribers []func(RunState)
	now         func() time.Time
}

// NewProgress creates a Progress for the given run ID.
func NewProgress(runID string) *Progress {
	p := &Progress{now: time.Now}
	p.state = RunState{RunID: runID, Phase: PhaseIdle, UpdatedAt: p.now()}
	return p
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() RunState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe registers fn to receive every state change. fn runs on the
// driver's goroutine and must not block.
func (p *Progress) Subscribe(fn func(RunState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Advance records that row index of total has been processed.
func (p *Progress) Advance(index, total int) {
	p.update(func(s *RunState) {
		s.CurrentIndex = index
		s.TotalRows = total
		s.Message = fmt.Sprintf("Processing row %d of %d", index, total)
	})
}

// Complete marks the run finished and records where results were saved.
func (p *Progress) Complete(outputPath string) {
	p.update(func(s *RunState) {
		s.Phase = PhaseCompleted
		s.OutputPath = outputPath
		s.Message = completeMessage
	})
}

// Fail marks the run failed.
func (p *Progress) Fail(err error) {
	p.update(func(s *RunState) {
		s.Phase = PhaseFailed
		s.Error = err.Error()
		s.Message = "Processing failed: " + err.Error()
	})
}

func (p *Progress) setPhase(phase Phase) {
	p.update(func(s *RunState) {
		s.Phase = phase
	})
}

func (p *Progress) start(total int, at time.Time) {
	p.update(func(s *RunState) {
		s.Phase = PhaseRunning
		s.TotalRows = total
		s.CurrentIndex = 0
		s.StartedAt = at
	})
}

func (p *Progress) update(fn func(*RunState)) {
	p.mu.Lock()
	fn(&p.state)
	p.state.UpdatedAt = p.now()
	snap := p.state
	subs := append([]func(RunState){}, p.subscribers...)
	p.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}
