package tasktest

import (
	"fmt"

	"tickbot/internal/task"
)

// Phase is a lifecycle call observed by the recorder.
type Phase string

const (
	PhaseBegin  Phase = "begin"
	PhaseUpdate Phase = "update"
	PhaseEnd    Phase = "end"
)

// Event is one recorded lifecycle call.
type Event struct {
	Tick   int
	Task   string
	Phase  Phase
	Status task.Status // set for updates
}

func (e Event) String() string {
	if e.Phase == PhaseUpdate {
		return fmt.Sprintf("t%d %s %s=%s", e.Tick, e.Task, e.Phase, e.Status)
	}
	return fmt.Sprintf("t%d %s %s", e.Tick, e.Task, e.Phase)
}

// Recorder collects lifecycle events from scripted leaves. Tick is the
// current control-loop tick; drivers bump it before each update.
type Recorder struct {
	Tick   int
	Events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) add(name string, ph Phase, st task.Status) {
	r.Events = append(r.Events, Event{Tick: r.Tick, Task: name, Phase: ph, Status: st})
}

// Filter returns the events for one task, optionally restricted to a phase.
func (r *Recorder) Filter(name string, phases ...Phase) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Task != name {
			continue
		}
		if len(phases) > 0 && !hasPhase(phases, e.Phase) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Count returns how many times name saw phase.
func (r *Recorder) Count(name string, phase Phase) int {
	return len(r.Filter(name, phase))
}

// TickOf returns the tick of the nth (0-based) phase event for name, or -1.
func (r *Recorder) TickOf(name string, phase Phase, nth int) int {
	evs := r.Filter(name, phase)
	if nth < 0 || nth >= len(evs) {
		return -1
	}
	return evs[nth].Tick
}

// Run installs nothing: it begins root, then updates it once per tick until it
// reports a terminal status or maxTicks is reached, and ends it. It returns the
// final status and the tick it was reached on.
func (r *Recorder) Run(root task.Task, maxTicks int) (task.Status, int) {
	root.Begin()
	st := task.Running
	for i := 0; i < maxTicks; i++ {
		r.Tick++
		st = root.Update()
		if st.Done() {
			break
		}
	}
	root.End()
	return st, r.Tick
}

func hasPhase(phases []Phase, p Phase) bool {
	for _, x := range phases {
		if x == p {
			return true
		}
	}
	return false
}
