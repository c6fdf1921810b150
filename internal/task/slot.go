package task

// slot guards one child's lifecycle so a combinator can never deliver Update
// outside an activation or End twice.
type slot struct {
	task  Task
	state State
	last  Status
}

func newSlots(children []Task) []*slot {
	out := make([]*slot, len(children))
	for i, c := range children {
		out[i] = &slot{task: c}
	}
	return out
}

func (s *slot) active() bool { return s.state == Active }

func (s *slot) begin() {
	if s.task == nil || s.state == Active {
		return
	}
	s.state = Active
	s.last = Running
	s.task.Begin()
}

func (s *slot) update() Status {
	if s.state != Active {
		return s.last
	}
	s.last = s.task.Update()
	return s.last
}

// end closes the activation. A child that already reported a terminal status
// is Completed; one still running is Cancelled.
func (s *slot) end() {
	if s.state != Active {
		return
	}
	if s.last.Done() {
		s.state = Completed
	} else {
		s.state = Cancelled
	}
	s.task.End()
}

func slotTasks(slots []*slot) []Task {
	out := make([]Task, len(slots))
	for i, s := range slots {
		out[i] = s.task
	}
	return out
}
