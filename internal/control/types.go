package control

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tickbot/internal/task"
)

var (
	ErrStopped   = errors.New("control loop stopped")
	ErrQueueFull = errors.New("control request queue full")
	ErrDisabled  = errors.New("robot disabled")
	ErrNoRoutine = errors.New("no autonomous routine selected")
)

// Mode is the robot's competition state.
type Mode int32

const (
	ModeDisabled Mode = iota
	ModeAutonomous
	ModeTeleop
)

func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeAutonomous:
		return "autonomous"
	case ModeTeleop:
		return "teleop"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disabled":
		return ModeDisabled, nil
	case "auto", "autonomous":
		return ModeAutonomous, nil
	case "teleop":
		return ModeTeleop, nil
	}
	return ModeDisabled, fmt.Errorf("unknown mode %q", s)
}

type Config struct {
	// Period is the tick interval. Default 20ms.
	Period time.Duration
	// AutoPeriod is the length of the autonomous period. Default 15s.
	AutoPeriod time.Duration
	// TeleopAfterAuto switches to teleop when the autonomous period runs out.
	TeleopAfterAuto bool
	// QueueSize bounds pending requests. Default 64.
	QueueSize int
	// OverrunLogPerSec caps overrun warnings. Default 1.
	OverrunLogPerSec float64
}

func (c Config) withDefaults() Config {
	if c.Period <= 0 {
		c.Period = 20 * time.Millisecond
	}
	if c.AutoPeriod <= 0 {
		c.AutoPeriod = 15 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.OverrunLogPerSec <= 0 {
		c.OverrunLogPerSec = 1
	}
	return c
}

type requestKind int

const (
	reqInstall requestKind = iota + 1
	reqCancel
	reqMode
	reqReselect
)

// Request is a change applied by the loop at the start of its next tick.
// Requests are applied in submission order.
type Request struct {
	kind requestKind
	name string
	root task.Task
	mode Mode

	// Done, when set, receives the result once the request is applied. It
	// must be buffered.
	Done chan error
}

// Install makes root the active routine. It is rejected while disabled.
func Install(name string, root task.Task) Request {
	return Request{kind: reqInstall, name: name, root: root}
}

// Cancel ends the active routine.
func Cancel() Request { return Request{kind: reqCancel} }

// SetMode switches the robot mode. Every mode change cancels the active
// routine; entering autonomous restarts the match period and installs the
// selected routine.
func SetMode(m Mode) Request { return Request{kind: reqMode, mode: m} }

// Reselect re-installs the selected autonomous routine if the robot is in
// autonomous. It is used when the selection changes on reload.
func Reselect() Request { return Request{kind: reqReselect} }

// WithDone attaches a buffered result channel.
func (r Request) WithDone() (Request, <-chan error) {
	ch := make(chan error, 1)
	r.Done = ch
	return r, ch
}

func (r Request) String() string {
	switch r.kind {
	case reqInstall:
		return "install " + r.name
	case reqCancel:
		return "cancel"
	case reqMode:
		return "mode " + r.mode.String()
	case reqReselect:
		return "reselect"
	}
	return "unknown"
}

// Selector returns the autonomous routine to run. It is called on the loop
// goroutine when autonomous begins.
type Selector func() (name string, root task.Task, err error)

// Stats is a point-in-time view of loop timing.
type Stats struct {
	Mode     Mode          `json:"mode"`
	Ticks    uint64        `json:"ticks"`
	Overruns uint64        `json:"overruns"`
	Rejected uint64        `json:"rejected"`
	LastTick time.Duration `json:"last_tick"`
	MaxTick  time.Duration `json:"max_tick"`
}
