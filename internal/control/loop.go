package control

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"tickbot/internal/task"
	"tickbot/internal/task/scheduler"
	logx "tickbot/pkg/logx"
)

// Deps are the collaborators a Loop drives. Scheduler is required.
type Deps struct {
	Scheduler *scheduler.Service
	Period    *task.MatchPeriod
	Clock     task.Clock
	Log       logx.Logger
	Select    Selector
	// Step advances the plant (or simulator) after the scheduler tick.
	Step func(dt time.Duration)
	// Heartbeat runs after every tick.
	Heartbeat func()
}

type Loop struct {
	cfg   Config
	log   logx.Logger
	sched *scheduler.Service
	match *task.MatchPeriod
	clock task.Clock
	sel   Selector
	step  func(time.Duration)
	beat  func()

	reqs    chan Request
	stopped atomic.Bool
	overrun *logx.Throttle

	// mode is owned by the loop goroutine; modeView mirrors it for readers.
	mode     Mode
	modeView atomic.Int32

	mu    sync.Mutex
	stats Stats
}

func New(cfg Config, deps Deps) *Loop {
	cfg = cfg.withDefaults()
	if deps.Clock == nil {
		deps.Clock = task.SystemClock{}
	}
	if deps.Period == nil {
		deps.Period = task.NewMatchPeriod(deps.Clock)
	}
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	return &Loop{
		cfg:     cfg,
		log:     deps.Log.With(logx.String("comp", "control")),
		sched:   deps.Scheduler,
		match:   deps.Period,
		clock:   deps.Clock,
		sel:     deps.Select,
		step:    deps.Step,
		beat:    deps.Heartbeat,
		reqs:    make(chan Request, cfg.QueueSize),
		overrun: logx.NewThrottle(cfg.OverrunLogPerSec, 1),
	}
}

// Submit queues r for the next tick. It never blocks.
func (l *Loop) Submit(r Request) error {
	if l.stopped.Load() {
		return ErrStopped
	}
	select {
	case l.reqs <- r:
		return nil
	default:
		l.mu.Lock()
		l.stats.Rejected++
		l.mu.Unlock()
		return ErrQueueFull
	}
}

// Do submits r and waits for the loop to apply it.
func (l *Loop) Do(ctx context.Context, r Request) error {
	r, done := r.WithDone()
	if err := l.Submit(r); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) Mode() Mode { return Mode(l.modeView.Load()) }

func (l *Loop) Period() time.Duration { return l.cfg.Period }

func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.stats
	st.Mode = l.Mode()
	return st
}

// Run ticks until ctx is done. Ticks that arrive while a tick is still running
// are dropped by the ticker, never caught up. On exit the active routine is
// cancelled so every actuator is left neutral.
func (l *Loop) Run(ctx context.Context) error {
	t := time.NewTicker(l.cfg.Period)
	defer t.Stop()
	l.log.Info("control loop started", logx.Duration("period", l.cfg.Period), logx.String("mode", l.Mode().String()))
	defer l.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			l.Step()
		}
	}
}

// Step runs one tick: apply pending requests, update the routine, advance the
// plant, and record timing.
func (l *Loop) Step() {
	start := l.clock.Now()

	l.drain()
	if l.mode == ModeAutonomous && l.cfg.TeleopAfterAuto && l.match.Remaining() == 0 {
		l.log.Info("autonomous period over")
		_ = l.setMode(ModeTeleop)
	}
	out := l.sched.Tick()
	if out.Terminal() {
		l.log.Debug("routine done", logx.String("outcome", string(out)))
	}
	if l.step != nil {
		l.step(l.cfg.Period)
	}

	took := l.clock.Now().Sub(start)
	l.mu.Lock()
	l.stats.Ticks++
	l.stats.LastTick = took
	if took > l.stats.MaxTick {
		l.stats.MaxTick = took
	}
	over := took > l.cfg.Period
	if over {
		l.stats.Overruns++
	}
	l.mu.Unlock()

	if over {
		if ok, suppressed := l.overrun.Allow(); ok {
			l.log.Warn("tick overrun",
				logx.Duration("took", took),
				logx.Duration("budget", l.cfg.Period),
				logx.Uint64("suppressed", suppressed),
			)
		}
	}
	if l.beat != nil {
		l.beat()
	}
}

func (l *Loop) drain() {
	for {
		select {
		case r := <-l.reqs:
			err := l.apply(r)
			if err != nil {
				l.log.Warn("control request failed", logx.String("request", r.String()), logx.Err(err))
			}
			if r.Done != nil {
				select {
				case r.Done <- err:
				default:
				}
			}
		default:
			return
		}
	}
}

func (l *Loop) apply(r Request) error {
	switch r.kind {
	case reqInstall:
		if l.mode == ModeDisabled {
			return ErrDisabled
		}
		return l.sched.Install(r.name, r.root)
	case reqCancel:
		l.sched.CancelCurrent()
		return nil
	case reqMode:
		return l.setMode(r.mode)
	case reqReselect:
		if l.mode != ModeAutonomous {
			return nil
		}
		return l.installAuto()
	}
	return errors.New("unknown request")
}

func (l *Loop) setMode(m Mode) error {
	prev := l.mode
	l.sched.CancelCurrent()
	l.mode = m
	l.modeView.Store(int32(m))
	if prev != m {
		l.log.Info("mode changed", logx.String("from", prev.String()), logx.String("to", m.String()))
	}

	if m != ModeAutonomous {
		l.match.Stop()
		return nil
	}
	l.match.Start(l.cfg.AutoPeriod)
	return l.installAuto()
}

func (l *Loop) installAuto() error {
	if l.sel == nil {
		return ErrNoRoutine
	}
	name, root, err := l.sel()
	if err != nil {
		return err
	}
	return l.sched.Install(name, root)
}

func (l *Loop) shutdown() {
	l.stopped.Store(true)
	if l.sched.CancelCurrent() {
		l.log.Info("routine cancelled on shutdown")
	}
	if l.step != nil {
		l.step(0)
	}
	l.mode = ModeDisabled
	l.modeView.Store(int32(ModeDisabled))
	l.log.Info("control loop stopped")
}
