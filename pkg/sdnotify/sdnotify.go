// Package sdnotify reports service state to systemd and feeds its watchdog
// from the control loop heartbeat. Everything is a no-op when the process was
// not started by systemd.
package sdnotify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "tickbot/pkg/logx"
)

type sendFunc func(state string) (bool, error)

func sdSend(state string) (bool, error) { return daemon.SdNotify(false, state) }

// Notifier sends READY/STOPPING/STATUS messages.
type Notifier struct {
	enabled bool
	log     logx.Logger
	send    sendFunc
}

func New(enabled bool, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{enabled: enabled, log: log.With(logx.String("comp", "systemd")), send: sdSend}
}

func (n *Notifier) Ready()    { n.notify(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() { n.notify(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) { n.notify("STATUS=" + msg) }

func (n *Notifier) notify(state string) {
	if n == nil || !n.enabled {
		return
	}
	sent, err := n.send(state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify", logx.String("state", state))
	}
}

// Watchdog pings systemd only while the control loop keeps beating, so a hung
// loop gets the service restarted.
type Watchdog struct {
	interval time.Duration
	log      logx.Logger
	send     sendFunc
	now      func() time.Time

	last    atomic.Int64
	pings   atomic.Uint64
	missing atomic.Uint64
	stale   *logx.Throttle
}

// NewWatchdog reads WATCHDOG_USEC. It returns nil when disabled or when
// systemd did not ask for a watchdog; a nil Watchdog is safe to use.
func NewWatchdog(enabled bool, log logx.Logger) *Watchdog {
	if !enabled {
		return nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("systemd watchdog unavailable", logx.Err(err))
		return nil
	}
	if interval <= 0 {
		return nil
	}
	return newWatchdog(interval, sdSend, time.Now, log)
}

func newWatchdog(interval time.Duration, send sendFunc, now func() time.Time, log logx.Logger) *Watchdog {
	w := &Watchdog{
		interval: interval,
		log:      log.With(logx.String("comp", "watchdog")),
		send:     send,
		now:      now,
		stale:    logx.NewThrottle(0.2, 1),
	}
	w.last.Store(now().UnixNano())
	return w
}

// Interval is the systemd watchdog timeout, or zero when inactive.
func (w *Watchdog) Interval() time.Duration {
	if w == nil {
		return 0
	}
	return w.interval
}

// Beat records that the control loop completed a tick.
func (w *Watchdog) Beat() {
	if w == nil {
		return
	}
	w.last.Store(w.now().UnixNano())
}

// Run pings at half the interval until ctx is done.
func (w *Watchdog) Run(ctx context.Context) error {
	if w == nil {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(w.interval / 2)
	defer t.Stop()
	w.log.Info("watchdog enabled", logx.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.check()
		}
	}
}

// check sends one ping if the last beat is recent enough.
func (w *Watchdog) check() bool {
	since := w.now().Sub(time.Unix(0, w.last.Load()))
	if since >= w.interval/2 {
		w.missing.Add(1)
		if ok, suppressed := w.stale.Allow(); ok {
			w.log.Warn("control loop heartbeat stale; withholding watchdog ping",
				logx.Duration("since", since), logx.Uint64("suppressed", suppressed))
		}
		return false
	}
	if _, err := w.send(daemon.SdNotifyWatchdog); err != nil {
		w.log.Warn("watchdog ping failed", logx.Err(err))
		return false
	}
	w.pings.Add(1)
	return true
}

// Stats returns pings sent and pings withheld for a stale heartbeat.
func (w *Watchdog) Stats() (pings, withheld uint64) {
	if w == nil {
		return 0, 0
	}
	return w.pings.Load(), w.missing.Load()
}
