package routines_test

import (
	"time"

	"tickbot/internal/robot"
	"tickbot/internal/routines"
	"tickbot/internal/task"
	"tickbot/internal/task/tasktest"
)

const tick = 20 * time.Millisecond

type rig struct {
	sim    *robot.Sim
	clock  *tasktest.FakeClock
	period *tasktest.FakePeriod
}

func newRig(cfg robot.SimConfig) *rig {
	return &rig{
		sim:    robot.NewSim(cfg),
		clock:  tasktest.NewFakeClock(),
		period: tasktest.NewFakePeriod(15 * time.Second),
	}
}

func (r *rig) deps() routines.Deps {
	return routines.Deps{Robot: r.sim.Subsystems(), Clock: r.clock, Period: r.period}
}

// run drives root against the simulator until it finishes.
func (r *rig) run(root task.Task, maxTicks int) (task.Status, int) {
	root.Begin()
	for i := 1; i <= maxTicks; i++ {
		st := root.Update()
		if st.Done() {
			root.End()
			return st, i
		}
		r.sim.Step(tick)
		r.clock.Advance(tick)
	}
	root.End()
	return task.Running, maxTicks
}

func find[T task.Task](root task.Task) []T {
	var out []T
	task.Walk(root, func(t task.Task, _ int) bool {
		if v, ok := t.(T); ok {
			out = append(out, v)
		}
		return true
	})
	return out
}
