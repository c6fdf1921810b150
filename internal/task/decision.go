package task

import (
	"fmt"
	"time"
)

// Branch identifies which side a decision took.
type Branch int

const (
	BranchNone Branch = iota
	BranchFirst
	BranchSecond
)

// DecisionTask picks one of two branches when it begins and runs it to
// completion. The predicate is never consulted again during that activation.
type DecisionTask struct {
	name   string
	pick   func() bool
	err    error
	first  *slot
	second *slot

	chosen *slot
	branch Branch
}

// TimeDecision runs enough when at least threshold remains in the period at
// activation, and short otherwise.
func TimeDecision(period Period, threshold time.Duration, enough, short Task) *DecisionTask {
	d := &DecisionTask{name: "time>=" + threshold.String(), first: &slot{task: enough}, second: &slot{task: short}}
	if period == nil {
		d.err = fmt.Errorf("%w: time decision without a period", ErrMissingInput)
		return d
	}
	d.pick = func() bool { return period.Remaining() >= threshold }
	return d
}

// ThresholdDecision samples reading at activation and runs atOrAbove when the
// value is >= threshold, below otherwise.
func ThresholdDecision(reading func() float64, threshold float64, atOrAbove, below Task) *DecisionTask {
	d := &DecisionTask{name: fmt.Sprintf("reading>=%g", threshold), first: &slot{task: atOrAbove}, second: &slot{task: below}}
	if reading == nil {
		d.err = fmt.Errorf("%w: threshold decision without a reading", ErrMissingInput)
		return d
	}
	d.pick = func() bool { return reading() >= threshold }
	return d
}

// Named sets the label used in build errors and tree dumps.
func (d *DecisionTask) Named(name string) *DecisionTask { d.name = name; return d }

func (d *DecisionTask) Name() string { return d.name }

func (d *DecisionTask) Children() []Task { return []Task{d.first.task, d.second.task} }

func (d *DecisionTask) Claims() []Claim { return childClaims(d.Children()) }

// Chosen reports the branch taken by the current or last activation.
func (d *DecisionTask) Chosen() Branch { return d.branch }

func (d *DecisionTask) Begin() {
	d.chosen, d.branch = nil, BranchNone
	if d.pick == nil {
		return
	}
	if d.pick() {
		d.chosen, d.branch = d.first, BranchFirst
	} else {
		d.chosen, d.branch = d.second, BranchSecond
	}
	d.chosen.begin()
}

func (d *DecisionTask) Update() Status {
	if d.chosen == nil || d.chosen.task == nil {
		return Failed
	}
	st := d.chosen.update()
	if st.Done() {
		d.chosen.end()
	}
	return st
}

func (d *DecisionTask) End() {
	if d.chosen != nil {
		d.chosen.end()
	}
}
