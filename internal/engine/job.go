package engine

import (
	"sync"

	"github.com/ivlev/screenreel/internal/apperr"
)

// State is an export job's position in its life cycle:
// Idle → Initializing → Running → Completed | Cancelled | Failed.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Stage is the coarse label shown next to export progress.
type Stage string

const (
	StageRendering  Stage = "rendering"
	StageEncoding   Stage = "encoding"
	StageFinalizing Stage = "finalizing"
)

// Progress counts frames handed to the encoder.
type Progress struct {
	Frame int
	Total int
	Stage Stage
}

// Percent is Frame/Total in [0, 100].
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return 100 * float64(p.Frame) / float64(p.Total)
}

// Callbacks are invoked from the job's goroutines. OnProgress calls are
// sequential and never go backwards. Exactly one of OnComplete and OnError
// is called when the job completes or fails; a cancelled job calls neither.
type Callbacks struct {
	OnProgress func(Progress)
	OnComplete func(output string)
	OnError    func(err error)
}

// Job is one running export.
type Job struct {
	ID        string
	ProjectID string

	mu       sync.Mutex
	state    State
	progress Progress
	output   string
	err      error

	cancel func()
	done   chan struct{}
}

func newJob(id, projectID string) *Job {
	return &Job{ID: id, ProjectID: projectID, done: make(chan struct{}), cancel: func() {}}
}

// State returns the job's current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Progress returns the most recent progress report.
func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Cancel asks the job to stop at the next frame boundary. It does not wait.
func (j *Job) Cancel() {
	j.cancel()
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job ends and returns the output path. A cancelled
// job returns an error matching apperr.ErrCancelled.
func (j *Job) Wait() (string, error) {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.output, j.err
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = s
}

func (j *Job) setProgress(p Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = p
}

func (j *Job) finish(state State, output string, err error) {
	j.mu.Lock()
	j.state = state
	j.output = output
	j.err = err
	if state == StateCancelled && err == nil {
		j.err = apperr.New(apperr.KindCancelled, "export", apperr.ErrCancelled)
	}
	j.mu.Unlock()
	close(j.done)
}
