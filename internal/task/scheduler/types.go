package scheduler

import (
	"errors"
	"time"
)

var (
	ErrNilRoot     = errors.New("scheduler: nil root task")
	ErrNoName      = errors.New("scheduler: routine name required")
	ErrInvalidTree = errors.New("scheduler: invalid routine tree")
)

// Event types published on the bus. Data is a RunRecord.
const (
	EventRunStarted  = "routine.started"
	EventRunFinished = "routine.finished"
)

// Config controls the scheduler.
type Config struct {
	// HistorySize bounds the in-memory list of finished runs (default 50).
	HistorySize int
}

// Outcome describes what happened to the root during a Tick, or how a run
// finished.
type Outcome string

const (
	OutcomeIdle      Outcome = "idle"
	OutcomeRunning   Outcome = "running"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeReplaced is a cancellation caused by installing another routine.
	OutcomeReplaced Outcome = "replaced"
)

// Terminal reports whether o closes a run.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeSucceeded, OutcomeFailed, OutcomeCancelled, OutcomeReplaced:
		return true
	}
	return false
}

// Info describes the active run.
type Info struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Started time.Time `json:"started"`
	Ticks   int       `json:"ticks"`
	Nodes   int       `json:"nodes"`
}

// RunRecord is the closed history of one installed routine.
type RunRecord struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Ticks    int           `json:"ticks"`
	Outcome  Outcome       `json:"outcome"`
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	Current   *Info       `json:"current,omitempty"`
	Installed uint64      `json:"installed"`
	Succeeded uint64      `json:"succeeded"`
	Failed    uint64      `json:"failed"`
	Cancelled uint64      `json:"cancelled"`
	Rejected  uint64      `json:"rejected"`
	History   []RunRecord `json:"history"`
}
