package task

import "time"

// WaitTask succeeds once its duration has elapsed since Begin.
type WaitTask struct {
	clock Clock
	d     time.Duration
	start time.Time
}

// Wait returns a timer leaf. Wait(clock, 0) succeeds on its first update, which
// makes it a one-tick spacer.
func Wait(clock Clock, d time.Duration) *WaitTask {
	return &WaitTask{clock: clock, d: d}
}

func (w *WaitTask) Name() string    { return "wait " + w.d.String() }
func (w *WaitTask) Claims() []Claim { return nil }
func (w *WaitTask) Begin()          { w.start = w.clock.Now() }
func (w *WaitTask) End()            {}
func (w *WaitTask) Update() Status {
	if w.clock.Now().Sub(w.start) >= w.d {
		return Succeeded
	}
	return Running
}

// FuncTask adapts plain functions to the Task contract. Nil hooks are skipped;
// a nil OnUpdate succeeds immediately.
type FuncTask struct {
	Label    string
	OnBegin  func()
	OnUpdate func() Status
	OnEnd    func()
	Claim    []Claim
}

func (f *FuncTask) Name() string    { return f.Label }
func (f *FuncTask) Claims() []Claim { return f.Claim }

func (f *FuncTask) Begin() {
	if f.OnBegin != nil {
		f.OnBegin()
	}
}

func (f *FuncTask) Update() Status {
	if f.OnUpdate == nil {
		return Succeeded
	}
	return f.OnUpdate()
}

func (f *FuncTask) End() {
	if f.OnEnd != nil {
		f.OnEnd()
	}
}

// Noop succeeds on its first update.
func Noop() *FuncTask { return &FuncTask{Label: "noop"} }

// Fail fails on its first update.
func Fail() *FuncTask {
	return &FuncTask{Label: "fail", OnUpdate: func() Status { return Failed }}
}

// Do runs fn once, on the first update, and succeeds.
func Do(label string, fn func(), claims ...Claim) *FuncTask {
	return &FuncTask{
		Label: label,
		OnUpdate: func() Status {
			fn()
			return Succeeded
		},
		Claim: claims,
	}
}

// Deadline is embedded by leaves that wait on something outside the robot's
// control. Call Arm from Begin and check Expired from Update.
type Deadline struct {
	Clock   Clock
	Timeout time.Duration

	armedAt time.Time
}

func (d *Deadline) Arm() { d.armedAt = d.Clock.Now() }

// Expired reports whether Timeout has elapsed since Arm. A zero Timeout never
// expires, so leaves that wait on the outside world must set one.
func (d *Deadline) Expired() bool {
	if d.Timeout <= 0 {
		return false
	}
	return d.Clock.Now().Sub(d.armedAt) >= d.Timeout
}

// Elapsed is the time since Arm.
func (d *Deadline) Elapsed() time.Duration { return d.Clock.Now().Sub(d.armedAt) }
