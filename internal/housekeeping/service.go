package housekeeping

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "tickbot/pkg/logx"
)

const pruneTimeout = 30 * time.Second

// Pruner deletes run records that started before a cutoff.
type Pruner interface {
	PruneRuns(ctx context.Context, before time.Time) (int, error)
}

type Config struct {
	Enabled  bool
	Schedule string
	Retain   time.Duration
	Timezone string
}

// Stats describes the prune job.
type Stats struct {
	Enabled bool
	Spec    string
	Next    time.Time
	Runs    uint64
	Pruned  uint64
	LastRun time.Time
	LastErr string
}

// Service prunes old run records on a cron schedule.
type Service struct {
	mu    sync.Mutex
	cfg   Config
	log   logx.Logger
	store Pruner
	now   func() time.Time

	c     *cron.Cron
	entry cron.EntryID
	spec  string
	base  context.Context

	stats Stats
}

func New(cfg Config, store Pruner, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: store, log: log.With(logx.String("comp", "housekeeping")), now: time.Now}
}

// Start schedules the prune job. It does nothing when disabled or without a
// store.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if !s.cfg.Enabled || s.store == nil {
		s.log.Debug("housekeeping disabled")
		return nil
	}
	sch, err := ParseSchedule(s.cfg.Schedule)
	if err != nil {
		return err
	}
	loc := loadLocation(s.cfg.Timezone, s.log)

	s.base = ctx
	s.c = cron.New(cron.WithParser(defaultParser), cron.WithLocation(loc))
	s.entry = s.c.Schedule(sch.sched, cron.FuncJob(s.runJob))
	s.spec = sch.Spec
	s.c.Start()
	s.log.Info("housekeeping started",
		logx.String("schedule", sch.Spec),
		logx.Duration("retain", s.cfg.Retain),
		logx.String("tz", loc.String()),
	)
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.spec = ""
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("housekeeping stopped")
}

// Apply swaps the config and restarts the job if anything changed.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	same := s.cfg == cfg
	running := s.c != nil
	base := s.base
	s.cfg = cfg
	s.mu.Unlock()
	if same && running {
		return nil
	}
	if base == nil {
		base = ctx
	}
	s.Stop(ctx)
	return s.Start(base)
}

// RunNow prunes immediately and returns the number of records removed.
func (s *Service) RunNow(ctx context.Context) (int, error) {
	s.mu.Lock()
	store, retain := s.store, s.cfg.Retain
	s.mu.Unlock()
	if store == nil {
		return 0, errors.New("housekeeping: no store")
	}
	if retain <= 0 {
		return 0, errors.New("housekeeping: retain must be > 0")
	}

	start := s.now()
	n, err := store.PruneRuns(ctx, start.Add(-retain))

	s.mu.Lock()
	s.stats.Runs++
	s.stats.LastRun = start
	s.stats.LastErr = ""
	if err != nil {
		s.stats.LastErr = err.Error()
	} else {
		s.stats.Pruned += uint64(n)
	}
	s.mu.Unlock()
	return n, err
}

func (s *Service) runJob() {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithTimeout(base, pruneTimeout)
	defer cancel()

	n, err := s.RunNow(ctx)
	if err != nil {
		s.log.Warn("prune failed", logx.Err(err))
		return
	}
	s.log.Info("pruned run log", logx.Int("removed", n))
}

func (s *Service) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Enabled = s.c != nil
	st.Spec = s.spec
	if s.c != nil {
		st.Next = s.c.Entry(s.entry).Next
	}
	return st
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("unknown timezone; using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
