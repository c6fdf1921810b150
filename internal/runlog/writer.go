// Package runlog copies finished routine runs from the event bus into the
// store, off the control goroutine.
package runlog

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"tickbot/internal/eventbus"
	rtsup "tickbot/internal/runtime/supervisor"
	"tickbot/internal/storage"
	"tickbot/internal/task/scheduler"
	logx "tickbot/pkg/logx"
)

type Config struct {
	// QueueSize is the bus subscription buffer. Default 128.
	QueueSize int
	// RetryMax is the number of retries per record. Default 3.
	RetryMax      int
	RetryBase     time.Duration // default 100ms
	RetryMaxDelay time.Duration // default 2s
	// TripFailures consecutive failed records pause writing for Cooldown.
	// Defaults 5 and 30s; a negative TripFailures disables the breaker.
	TripFailures int
	Cooldown     time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	} else if c.RetryMax == 0 {
		c.RetryMax = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 100 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 2 * time.Second
	}
	if c.TripFailures == 0 {
		c.TripFailures = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

type Stats struct {
	Written uint64
	Failed  uint64
	Skipped uint64 // dropped while the breaker was open
	Retries uint64
}

// Writer persists scheduler.RunRecord events as storage.RunRecord rows.
type Writer struct {
	cfg   Config
	store storage.Store
	bus   eventbus.Bus
	log   logx.Logger
	mode  func() string

	mu    sync.Mutex
	sup   *rtsup.Supervisor
	unsub func()
	stats Stats

	fails     int
	openUntil time.Time
	now       func() time.Time
}

// New returns a writer. mode, if set, labels each record with the robot mode
// at the time it is written.
func New(cfg Config, store storage.Store, bus eventbus.Bus, mode func() string, log logx.Logger) *Writer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Writer{
		cfg:   cfg.withDefaults(),
		store: store,
		bus:   bus,
		mode:  mode,
		log:   log.With(logx.String("comp", "runlog")),
		now:   time.Now,
	}
}

// Start subscribes to finished runs. It is a no-op without a store or bus.
func (w *Writer) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sup != nil || w.store == nil || w.bus == nil {
		return
	}
	ch, unsub := w.bus.Subscribe(w.cfg.QueueSize, scheduler.EventRunFinished)
	w.unsub = unsub
	w.sup = rtsup.New(ctx, rtsup.WithLogger(w.log))
	w.sup.Go("runlog", func(ctx context.Context) error {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		for {
			select {
			case <-ctx.Done():
				w.drain(ch, rng)
				return nil
			case ev, ok := <-ch:
				if !ok {
					return nil
				}
				w.handle(ctx, ev, rng)
			}
		}
	})
	w.log.Debug("run log started")
}

// Stop unsubscribes, writes what is already buffered, and waits until ctx is
// done.
func (w *Writer) Stop(ctx context.Context) error {
	w.mu.Lock()
	sup, unsub := w.sup, w.unsub
	w.sup, w.unsub = nil, nil
	w.mu.Unlock()
	if sup == nil {
		return nil
	}
	err := sup.Stop(ctx)
	unsub()
	return err
}

func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// drain flushes buffered events with a short deadline during shutdown.
func (w *Writer) drain(ch <-chan eventbus.Event, rng *rand.Rand) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			w.handle(ctx, ev, rng)
		default:
			return
		}
	}
}

func (w *Writer) handle(ctx context.Context, ev eventbus.Event, rng *rand.Rand) {
	run, ok := ev.Data.(scheduler.RunRecord)
	if !ok {
		return
	}
	rec := storage.RunRecord{
		ID:         run.ID,
		Routine:    run.Name,
		Started:    run.Started,
		DurationMS: run.Duration.Milliseconds(),
		Ticks:      run.Ticks,
		Outcome:    string(run.Outcome),
	}
	if w.mode != nil {
		rec.Mode = w.mode()
	}
	if err := w.Write(ctx, rec, rng); err != nil {
		w.log.Warn("run not recorded", logx.String("run_id", rec.ID), logx.String("routine", rec.Routine), logx.Err(err))
	}
}

// Write appends rec, retrying transient failures with jittered backoff.
func (w *Writer) Write(ctx context.Context, rec storage.RunRecord, rng *rand.Rand) error {
	if rng == nil {
		rng = rand.New(rand.NewSource(w.now().UnixNano()))
	}
	w.mu.Lock()
	if w.cfg.TripFailures > 0 && w.now().Before(w.openUntil) {
		w.stats.Skipped++
		w.mu.Unlock()
		return ErrCircuitOpen
	}
	w.mu.Unlock()

	var err error
	for attempt := 0; attempt <= w.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			w.mu.Lock()
			w.stats.Retries++
			w.mu.Unlock()
			t := time.NewTimer(w.delay(attempt, rng))
			select {
			case <-ctx.Done():
				t.Stop()
				w.record(ctx.Err())
				return ctx.Err()
			case <-t.C:
			}
		}
		err = w.store.AppendRun(ctx, rec)
		if err == nil || IsNoRetry(err) || errors.Is(err, storage.ErrClosed) {
			break
		}
	}
	w.record(err)
	return err
}

func (w *Writer) delay(attempt int, rng *rand.Rand) time.Duration {
	d := w.cfg.RetryBase << (attempt - 1)
	if d <= 0 || d > w.cfg.RetryMaxDelay {
		d = w.cfg.RetryMaxDelay
	}
	// 20% jitter
	return d + time.Duration(rng.Int63n(int64(d)/5+1))
}

// record updates counters and the breaker.
func (w *Writer) record(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil {
		w.stats.Written++
		w.fails = 0
		return
	}
	w.stats.Failed++
	w.fails++
	if w.cfg.TripFailures > 0 && w.fails >= w.cfg.TripFailures {
		w.openUntil = w.now().Add(w.cfg.Cooldown)
		w.fails = 0
		w.log.Warn("run log paused", logx.Duration("cooldown", w.cfg.Cooldown), logx.Err(err))
	}
}
