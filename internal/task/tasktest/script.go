package tasktest

import "tickbot/internal/task"

// Script is a leaf whose outcome is fixed by update count: it reports Result on
// its At-th update of an activation (counting from 1) and Running before that.
// At <= 0 means it never finishes.
type Script struct {
	Label  string
	At     int
	Result task.Status
	Claim  []task.Claim

	rec     *Recorder
	updates int
	// Neutral is true after End until the next Begin; it stands in for
	// "actuators left safe".
	Neutral bool
}

// SucceedAt returns a leaf that succeeds on its n-th update.
func (r *Recorder) SucceedAt(name string, n int, claims ...task.Claim) *Script {
	return &Script{Label: name, At: n, Result: task.Succeeded, Claim: claims, rec: r, Neutral: true}
}

// FailAt returns a leaf that fails on its n-th update.
func (r *Recorder) FailAt(name string, n int, claims ...task.Claim) *Script {
	return &Script{Label: name, At: n, Result: task.Failed, Claim: claims, rec: r, Neutral: true}
}

// Never returns a leaf that runs until cancelled.
func (r *Recorder) Never(name string, claims ...task.Claim) *Script {
	return &Script{Label: name, Claim: claims, rec: r, Neutral: true}
}

func (s *Script) Name() string         { return s.Label }
func (s *Script) Claims() []task.Claim { return s.Claim }

func (s *Script) Begin() {
	s.updates = 0
	s.Neutral = false
	s.rec.add(s.Label, PhaseBegin, task.Running)
}

func (s *Script) Update() task.Status {
	s.updates++
	st := task.Running
	if s.At > 0 && s.updates >= s.At {
		st = s.Result
	}
	s.rec.add(s.Label, PhaseUpdate, st)
	return st
}

func (s *Script) End() {
	s.Neutral = true
	s.rec.add(s.Label, PhaseEnd, task.Running)
}
