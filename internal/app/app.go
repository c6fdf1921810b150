package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"tickbot/internal/config"
	"tickbot/internal/control"
	"tickbot/internal/eventbus"
	"tickbot/internal/housekeeping"
	"tickbot/internal/observability/debugserver"
	"tickbot/internal/robot"
	"tickbot/internal/routines"
	"tickbot/internal/runlog"
	"tickbot/internal/runtime/supervisor"
	"tickbot/internal/storage"
	"tickbot/internal/task"
	"tickbot/internal/task/scheduler"
	logx "tickbot/pkg/logx"
	"tickbot/pkg/sdnotify"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	clock  task.Clock
	sim    *robot.Sim
	period *task.MatchPeriod
	sched  *scheduler.Service
	loop   *control.Loop
	runlog *runlog.Writer
	house  *housekeeping.Service
	debug  *debugserver.Service

	notify *sdnotify.Notifier
	dog    *sdnotify.Watchdog

	catalog atomic.Pointer[routines.Catalog]
	auto    atomic.Pointer[routines.Key]

	startMode control.Mode
	loopDone  chan struct{}
	loopStop  context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	rt, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	startMode, err := control.ParseMode(rt.StartMode)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	appLog := log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		appLog.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	clock := task.SystemClock{}
	sim := robot.NewSim(mapSimConfig(cfg, rt))
	if t := cfg.Robot.Sim.Target; t != nil {
		sim.Vision.Place(robot.Target{Distance: t.Distance, Bearing: t.Bearing})
	}

	a := &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       appLog,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		clock:     clock,
		sim:       sim,
		period:    task.NewMatchPeriod(clock),
		startMode: startMode,
		loopDone:  make(chan struct{}),
		notify:    sdnotify.New(cfg.Systemd.Notify, log),
		dog:       sdnotify.NewWatchdog(cfg.Systemd.Watchdog, log),
	}

	cat, err := validate(cfgPath, cfg, a.deps())
	if err != nil {
		a.closeStore()
		return nil, err
	}
	a.catalog.Store(cat)
	key := autoKey(cfg)
	a.auto.Store(&key)

	a.sched = scheduler.New(scheduler.Config{HistorySize: cfg.Robot.HistorySize}, clock,
		log.With(logx.String("comp", "scheduler")), bus)
	a.loop = control.New(mapControlConfig(cfg, rt), control.Deps{
		Scheduler: a.sched,
		Period:    a.period,
		Clock:     clock,
		Log:       log,
		Select:    a.selectAuto,
		Step:      sim.Step,
		Heartbeat: a.dog.Beat,
	})
	a.runlog = runlog.New(runlog.Config{}, store, bus, func() string { return a.loop.Mode().String() }, log)
	a.house = housekeeping.New(mapHousekeepingConfig(cfg, rt), store, log)
	a.debug = debugserver.New(mapDebugConfig(cfg, rt), log, a.debugRoutes()...)
	return a, nil
}

func (a *App) deps() routines.Deps {
	return routines.Deps{Robot: a.sim.Subsystems(), Clock: a.clock, Period: a.period}
}

// selectAuto builds the selected autonomous routine. It runs on the control
// goroutine.
func (a *App) selectAuto() (string, task.Task, error) {
	k := a.auto.Load()
	if k == nil || k.Choice == "" {
		return "", nil, control.ErrNoRoutine
	}
	return a.catalog.Load().Auto(*k, a.deps())
}

func (a *App) Loop() *control.Loop                 { return a.loop }
func (a *App) Scheduler() *scheduler.Service       { return a.sched }
func (a *App) Catalog() *routines.Catalog          { return a.catalog.Load() }
func (a *App) Housekeeping() *housekeeping.Service { return a.house }

// Store is nil when storage is disabled.
func (a *App) Store() storage.Store { return a.store }

// SetMode switches the robot mode and waits for the loop to apply it.
func (a *App) SetMode(ctx context.Context, m control.Mode) error {
	return a.loop.Do(ctx, control.SetMode(m))
}

// RunMacro installs an operator macro, replacing whatever is running.
func (a *App) RunMacro(ctx context.Context, name string) error {
	routine, root, err := a.catalog.Load().Macro(name, a.deps())
	if err != nil {
		return err
	}
	return a.loop.Do(ctx, control.Install(routine, root))
}

// Cancel ends the active routine.
func (a *App) Cancel(ctx context.Context) error {
	return a.loop.Do(ctx, control.Cancel())
}

// Status is an operator view of the robot.
type Status struct {
	Mode      control.Mode       `json:"mode"`
	Loop      control.Stats      `json:"loop"`
	Scheduler scheduler.Snapshot `json:"scheduler"`
	Remaining time.Duration      `json:"remaining"`
	Watchdog  struct {
		Pings    uint64 `json:"pings"`
		Withheld uint64 `json:"withheld"`
	} `json:"watchdog"`
}

func (a *App) Status() Status {
	st := Status{
		Mode:      a.loop.Mode(),
		Loop:      a.loop.Stats(),
		Scheduler: a.sched.Snapshot(),
		Remaining: a.period.Remaining(),
	}
	st.Watchdog.Pings, st.Watchdog.Withheld = a.dog.Stats()
	return st
}

// Runs returns up to limit recent runs, newest first. Without storage it
// falls back to the scheduler's in-memory history.
func (a *App) Runs(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if a.store != nil {
		return a.store.RecentRuns(ctx, limit)
	}
	hist := a.sched.Snapshot().History
	out := make([]storage.RunRecord, 0, min(limit, len(hist)))
	for i := len(hist) - 1; i >= 0 && len(out) < limit; i-- {
		r := hist[i]
		out = append(out, storage.RunRecord{
			ID:         r.ID,
			Routine:    r.Name,
			Started:    r.Started,
			DurationMS: r.Duration.Milliseconds(),
			Ticks:      r.Ticks,
			Outcome:    string(r.Outcome),
		})
	}
	return out, nil
}

func (a *App) debugRoutes() []debugserver.Route {
	return []debugserver.Route{
		{Pattern: "GET /status", Handler: debugserver.JSON(func(*http.Request) (any, error) {
			return a.Status(), nil
		})},
		{Pattern: "GET /runs", Handler: debugserver.JSON(func(r *http.Request) (any, error) {
			limit := 20
			if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
				limit = min(n, 500)
			}
			return a.Runs(r.Context(), limit)
		})},
		{Pattern: "GET /routines", Handler: debugserver.JSON(func(*http.Request) (any, error) {
			return a.catalog.Load().List(), nil
		})},
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := validate(a.cfgPath, cfg, a.deps())
		return err
	})

	a.runlog.Start(a.sup.Context())
	if err := a.house.Start(a.sup.Context()); err != nil {
		_ = a.sup.Stop(context.Background())
		return err
	}

	loopCtx, stop := context.WithCancel(a.sup.Context())
	a.loopStop = stop
	a.sup.Go("control.loop", func(context.Context) error {
		defer close(a.loopDone)
		return a.loop.Run(loopCtx)
	})
	if a.startMode != control.ModeDisabled {
		if err := a.loop.Submit(control.SetMode(a.startMode)); err != nil {
			return err
		}
	}

	if a.dog != nil {
		a.sup.Go("systemd.watchdog", a.dog.Run)
	}
	a.debug.Start(a.sup.Context())

	// Routine lifecycle at debug level; the run log keeps the durable record.
	events, unsub := a.bus.Subscribe(64, scheduler.EventRunStarted, scheduler.EventRunFinished)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				fields := []logx.Field{logx.String("type", e.Type)}
				if rec, ok := e.Data.(scheduler.RunRecord); ok {
					fields = append(fields,
						logx.String("routine", rec.Name),
						logx.String("outcome", string(rec.Outcome)),
						logx.Int("ticks", rec.Ticks),
					)
				}
				a.log.Debug("event", fields...)
				if e.Type == scheduler.EventRunStarted {
					a.notify.Status(fmt.Sprintf("%s: running", a.loop.Mode()))
				}
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.notify.Ready()
	a.log.Info("app started",
		logx.String("start_mode", a.startMode.String()),
		logx.String("auto", a.auto.Load().String()),
		logx.Duration("period", a.loop.Period()),
	)
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeStore()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notify.Stopping()

	// The loop goes first so the cancelled routine is still recorded.
	step := stepRunner(ctx, a.log)
	step("control", 2*time.Second, func(c context.Context) error {
		a.loopStop()
		select {
		case <-a.loopDone:
			return nil
		case <-c.Done():
			return c.Err()
		}
	})
	step("debug", 2*time.Second, a.debug.Stop)
	step("runlog", 2*time.Second, a.runlog.Stop)
	step("housekeeping", 2*time.Second, func(c context.Context) error { a.house.Stop(c); return nil })
	step("supervisor", 2*time.Second, a.sup.Stop)
	step("storage", 1*time.Second, func(context.Context) error { return a.closeStore() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) closeStore() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	if errors.Is(err, storage.ErrClosed) {
		return nil
	}
	return err
}

// stepRunner returns a helper that runs one shutdown step with an upper bound
// so one component can't stall the whole stop.
func stepRunner(ctx context.Context, log logx.Logger) func(name string, limit time.Duration, fn func(context.Context) error) {
	return func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", limit))

		stepCtx := ctx
		if limit > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				limit = min(limit, max(time.Until(dl), 0))
			}
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, limit)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				if err := <-done; err != nil {
					log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err))
				}
			}()
		}
	}
}
