package scheduler

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"tickbot/internal/eventbus"
	"tickbot/internal/task"
	logx "tickbot/pkg/logx"
)

type run struct {
	info Info
	root task.Task
}

type Service struct {
	cfg   Config
	log   logx.Logger
	bus   eventbus.Bus
	clock task.Clock

	// cur is owned by the control goroutine.
	cur    *run
	active atomic.Bool

	// mu guards the reader-facing copies below.
	mu        sync.Mutex
	info      *Info
	history   []RunRecord
	installed uint64
	succeeded uint64
	failed    uint64
	cancelled uint64
	rejected  uint64

	newID func() string
}

func New(cfg Config, clock task.Clock, log logx.Logger, bus eventbus.Bus) *Service {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	if clock == nil {
		clock = task.SystemClock{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		log:   log,
		bus:   bus,
		clock: clock,
		newID: uuid.NewString,
	}
}

// Install validates root and makes it the active routine. A running routine is
// cancelled before root begins. An invalid tree is rejected and the current
// routine keeps running.
func (s *Service) Install(name string, root task.Task) error {
	name = strings.TrimSpace(name)
	if name == "" {
		s.reject()
		return ErrNoName
	}
	if root == nil {
		s.reject()
		return ErrNilRoot
	}
	if err := task.Validate(root); err != nil {
		s.reject()
		s.log.Error("routine rejected", logx.String("routine", name), logx.Err(err))
		return fmt.Errorf("%w: %s: %w", ErrInvalidTree, name, err)
	}

	if s.cur != nil {
		s.finish(OutcomeReplaced)
	}

	r := &run{
		root: root,
		info: Info{
			ID:      s.newID(),
			Name:    name,
			Started: s.clock.Now(),
			Nodes:   task.Count(root),
		},
	}
	s.cur = r
	s.active.Store(true)
	root.Begin()

	info := r.info
	s.mu.Lock()
	s.info = &info
	s.installed++
	s.mu.Unlock()

	s.log.Info("routine installed",
		logx.String("routine", name),
		logx.String("run_id", info.ID),
		logx.Int("nodes", info.Nodes),
	)
	s.publish(EventRunStarted, RunRecord{ID: info.ID, Name: name, Started: info.Started, Outcome: OutcomeRunning})
	return nil
}

// Tick updates the active root once. It reports OutcomeIdle when nothing is
// installed, OutcomeRunning while the root runs, and the terminal outcome on
// the tick the root finishes (after it has been ended and cleared).
func (s *Service) Tick() Outcome {
	r := s.cur
	if r == nil {
		return OutcomeIdle
	}
	r.info.Ticks++
	st := r.root.Update()

	s.mu.Lock()
	if s.info != nil {
		s.info.Ticks = r.info.Ticks
	}
	s.mu.Unlock()

	switch st {
	case task.Succeeded:
		s.finish(OutcomeSucceeded)
		return OutcomeSucceeded
	case task.Failed:
		s.finish(OutcomeFailed)
		return OutcomeFailed
	default:
		return OutcomeRunning
	}
}

// CancelCurrent ends the active routine. It returns false, and does nothing,
// when no routine is active; a routine that already completed is never ended
// twice.
func (s *Service) CancelCurrent() bool {
	if s.cur == nil {
		return false
	}
	s.finish(OutcomeCancelled)
	return true
}

// Active reports whether a routine is installed and running.
func (s *Service) Active() bool { return s.active.Load() }

// Current returns the active run.
func (s *Service) Current() (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return Info{}, false
	}
	return *s.info, true
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Installed: s.installed,
		Succeeded: s.succeeded,
		Failed:    s.failed,
		Cancelled: s.cancelled,
		Rejected:  s.rejected,
		History:   append([]RunRecord(nil), s.history...),
	}
	if s.info != nil {
		cp := *s.info
		snap.Current = &cp
	}
	return snap
}

// finish ends the current root and records how it closed. End runs before the
// slot is cleared so teardown happens exactly once.
func (s *Service) finish(o Outcome) {
	r := s.cur
	s.cur = nil
	r.root.End()
	s.active.Store(false)

	rec := RunRecord{
		ID:       r.info.ID,
		Name:     r.info.Name,
		Started:  r.info.Started,
		Duration: s.clock.Now().Sub(r.info.Started),
		Ticks:    r.info.Ticks,
		Outcome:  o,
	}

	s.mu.Lock()
	s.info = nil
	switch o {
	case OutcomeSucceeded:
		s.succeeded++
	case OutcomeFailed:
		s.failed++
	default:
		s.cancelled++
	}
	s.history = append(s.history, rec)
	if over := len(s.history) - s.cfg.HistorySize; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	s.mu.Unlock()

	fields := []logx.Field{
		logx.String("routine", rec.Name),
		logx.String("run_id", rec.ID),
		logx.String("outcome", string(o)),
		logx.Int("ticks", rec.Ticks),
		logx.Duration("took", rec.Duration),
	}
	if o == OutcomeFailed {
		s.log.Warn("routine finished", fields...)
	} else {
		s.log.Info("routine finished", fields...)
	}
	s.publish(EventRunFinished, rec)
}

func (s *Service) reject() {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
}

func (s *Service) publish(typ string, rec RunRecord) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.clock.Now(), Data: rec})
}
