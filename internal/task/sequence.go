package task

// SequenceTask runs its children one at a time, in order.
type SequenceTask struct {
	name     string
	children []*slot

	idx     int
	handoff bool // next child is begun on the coming update
}

// Sequence builds a sequential combinator. An empty sequence succeeds on its
// first update.
func Sequence(children ...Task) *SequenceTask {
	return &SequenceTask{children: newSlots(children)}
}

// Named sets the label used in build errors and tree dumps.
func (s *SequenceTask) Named(name string) *SequenceTask { s.name = name; return s }

func (s *SequenceTask) Name() string { return s.name }

func (s *SequenceTask) Children() []Task { return slotTasks(s.children) }

func (s *SequenceTask) Claims() []Claim { return childClaims(s.Children()) }

func (s *SequenceTask) Begin() {
	s.idx = 0
	s.handoff = false
	if len(s.children) > 0 {
		s.children[0].begin()
	}
}

func (s *SequenceTask) Update() Status {
	if s.idx >= len(s.children) {
		return Succeeded
	}
	cur := s.children[s.idx]
	if s.handoff {
		s.handoff = false
		cur.begin()
		return Running
	}
	switch st := cur.update(); st {
	case Succeeded:
		cur.end()
		s.idx++
		if s.idx >= len(s.children) {
			return Succeeded
		}
		s.handoff = true
		return Running
	case Failed:
		cur.end()
		return Failed
	default:
		return Running
	}
}

// End cancels the active child only; children that never started need no
// teardown.
func (s *SequenceTask) End() {
	if s.idx < len(s.children) {
		s.children[s.idx].end()
	}
}
