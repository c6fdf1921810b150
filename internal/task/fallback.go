package task

// FallbackTask runs a primary task and switches to an alternate if the primary
// fails. Deeper chains are built by nesting.
type FallbackTask struct {
	name      string
	primary   *slot
	alternate *slot
	switched  bool
}

// Fallback builds a primary/alternate pair.
func Fallback(primary, alternate Task) *FallbackTask {
	return &FallbackTask{primary: &slot{task: primary}, alternate: &slot{task: alternate}}
}

// Named sets the label used in build errors and tree dumps.
func (f *FallbackTask) Named(name string) *FallbackTask { f.name = name; return f }

func (f *FallbackTask) Name() string { return f.name }

func (f *FallbackTask) Children() []Task { return []Task{f.primary.task, f.alternate.task} }

func (f *FallbackTask) Claims() []Claim { return childClaims(f.Children()) }

// Switched reports whether the current activation moved to the alternate.
func (f *FallbackTask) Switched() bool { return f.switched }

func (f *FallbackTask) Begin() {
	f.switched = false
	f.primary.begin()
}

func (f *FallbackTask) Update() Status {
	if f.switched {
		st := f.alternate.update()
		if st.Done() {
			f.alternate.end()
		}
		return st
	}
	switch st := f.primary.update(); st {
	case Succeeded:
		f.primary.end()
		return Succeeded
	case Failed:
		f.primary.end()
		f.switched = true
		f.alternate.begin()
		return Running
	default:
		return Running
	}
}

func (f *FallbackTask) End() {
	f.primary.end()
	f.alternate.end()
}
