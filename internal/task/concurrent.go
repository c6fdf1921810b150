package task

// group is the shared body of All and Any: every child is begun together and
// still-active children are updated in declaration order each tick.
type group struct {
	name     string
	children []*slot
}

func (g *group) Name() string { return g.name }

func (g *group) Children() []Task { return slotTasks(g.children) }

func (g *group) Claims() []Claim { return childClaims(g.Children()) }

func (g *group) Begin() {
	for _, c := range g.children {
		c.begin()
	}
}

// End cancels every still-active child, in declaration order.
func (g *group) End() {
	for _, c := range g.children {
		c.end()
	}
}

func (g *group) anyActive() bool {
	for _, c := range g.children {
		if c.active() {
			return true
		}
	}
	return false
}

// AllTask succeeds when every child has succeeded and fails as soon as one
// child fails.
type AllTask struct{ group }

// All builds a combinator that runs children concurrently until all succeed.
// An empty All succeeds on its first update.
func All(children ...Task) *AllTask {
	return &AllTask{group{children: newSlots(children)}}
}

// Named sets the label used in build errors and tree dumps.
func (a *AllTask) Named(name string) *AllTask { a.name = name; return a }

func (a *AllTask) Update() Status {
	for _, c := range a.children {
		if !c.active() {
			continue
		}
		switch c.update() {
		case Succeeded:
			c.end()
		case Failed:
			c.end()
			// Siblings not yet updated this tick are cancelled too.
			a.End()
			return Failed
		}
	}
	if a.anyActive() {
		return Running
	}
	return Succeeded
}

// AnyTask succeeds with the first child to succeed and cancels the rest.
type AnyTask struct{ group }

// Any builds a race between children. Ties inside one tick go to the earliest
// declared child, because later children are not updated once one succeeds.
func Any(children ...Task) *AnyTask {
	return &AnyTask{group{children: newSlots(children)}}
}

// Named sets the label used in build errors and tree dumps.
func (a *AnyTask) Named(name string) *AnyTask { a.name = name; return a }

func (a *AnyTask) Update() Status {
	for _, c := range a.children {
		if !c.active() {
			continue
		}
		switch c.update() {
		case Succeeded:
			c.end()
			a.End()
			return Succeeded
		case Failed:
			c.end()
		}
	}
	if a.anyActive() {
		return Running
	}
	return Failed
}
