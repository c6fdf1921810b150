package routines

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"tickbot/internal/config"
	"tickbot/internal/robot"
	"tickbot/internal/task"
)

var ErrBadNode = errors.New("invalid routine node")

// File is a routines file.
//
//	autos:
//	  - position: left
//	    choice: sneak
//	    tree:
//	      seq:
//	        - all:
//	            - elevator: {preset: mid}
//	            - drive: {distance: 1.2, velocity: 1.5}
//	        - eject: {}
//	macros:
//	  - name: wiggle
//	    tree: {seq: [{drive: {duration: 200ms, velocity: 0.5}}, {drive: {duration: 200ms, velocity: -0.5}}]}
type File struct {
	Autos  []AutoDef  `json:"autos,omitempty"`
	Macros []MacroDef `json:"macros,omitempty"`
}

type AutoDef struct {
	Position    string `json:"position,omitempty"`
	Choice      string `json:"choice"`
	Description string `json:"description,omitempty"`
	Tree        Node   `json:"tree"`
}

type MacroDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Tree        Node   `json:"tree"`
}

// Node is one task in a routine tree. Exactly one kind field must be set.
// Name labels groups, fallbacks and decisions in logs and build errors.
type Node struct {
	Name string `json:"name,omitempty"`

	Seq               []Node         `json:"seq,omitempty"`
	All               []Node         `json:"all,omitempty"`
	Any               []Node         `json:"any,omitempty"`
	Fallback          *FallbackNode  `json:"fallback,omitempty"`
	TimeDecision      *TimeNode      `json:"time_decision,omitempty"`
	ThresholdDecision *ThresholdNode `json:"threshold_decision,omitempty"`

	Wait     string        `json:"wait,omitempty"`
	Noop     bool          `json:"noop,omitempty"`
	Fail     bool          `json:"fail,omitempty"`
	Drive    *DriveNode    `json:"drive,omitempty"`
	Elevator *ElevatorNode `json:"elevator,omitempty"`
	Intake   *IntakeNode   `json:"intake,omitempty"`
	Eject    *EjectNode    `json:"eject,omitempty"`
	Approach *ApproachNode `json:"approach,omitempty"`
}

type FallbackNode struct {
	Primary   Node `json:"primary"`
	Alternate Node `json:"alternate"`
}

// TimeNode runs Enough when at least Remaining is left in the autonomous
// period, otherwise Short.
type TimeNode struct {
	Remaining string `json:"remaining"`
	Enough    Node   `json:"enough"`
	Short     Node   `json:"short"`
}

// ThresholdNode samples Sensor once and runs AtOrAbove when the value is at
// or above Threshold, otherwise Below.
type ThresholdNode struct {
	Sensor    string  `json:"sensor"`
	Threshold float64 `json:"threshold"`
	AtOrAbove Node    `json:"at_or_above"`
	Below     Node    `json:"below"`
}

// DriveNode drives Distance meters, or for Duration when set. Timeout bounds a
// distance drive; it defaults to twice the nominal travel time plus 1s.
type DriveNode struct {
	Velocity float64 `json:"velocity"`
	Distance float64 `json:"distance,omitempty"`
	Duration string  `json:"duration,omitempty"`
	Timeout  string  `json:"timeout,omitempty"`
}

// ElevatorNode moves to Height, or to a named Preset.
type ElevatorNode struct {
	Height  *float64 `json:"height,omitempty"`
	Preset  string   `json:"preset,omitempty"`
	Timeout string   `json:"timeout,omitempty"`
}

// IntakeNode runs the rollers for Duration, or until a piece is held.
type IntakeNode struct {
	Power      float64 `json:"power,omitempty"`
	Duration   string  `json:"duration,omitempty"`
	UntilPiece bool    `json:"until_piece,omitempty"`
	Timeout    string  `json:"timeout,omitempty"`
}

type EjectNode struct {
	Duration string `json:"duration,omitempty"`
}

type ApproachNode struct {
	Timeout string `json:"timeout,omitempty"`
}

// Sensors readable by threshold decisions.
var sensors = map[string]func(robot.Subsystems) func() float64{
	"elevator.height": func(r robot.Subsystems) func() float64 {
		return func() float64 { return r.Elevator.Height() }
	},
	"drive.distance": func(r robot.Subsystems) func() float64 {
		return func() float64 { return r.Drive.Distance() }
	},
	"intake.piece": func(r robot.Subsystems) func() float64 {
		return func() float64 {
			if r.Intake.HasGamePiece() {
				return 1
			}
			return 0
		}
	},
	"vision.distance": func(r robot.Subsystems) func() float64 {
		return func() float64 {
			if t, ok := r.Vision.Target(); ok {
				return t.Distance
			}
			return -1
		}
	},
}

var presets = map[string]float64{
	"stow": HeightStow,
	"low":  HeightLow,
	"mid":  HeightMid,
	"high": HeightHigh,
}

// LoadFile reads and strictly decodes a routines file.
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := config.DecodeStrict(path, b, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Register adds every routine in f to c, replacing built-ins with the same
// key or name. Each tree is compiled once up front so syntax errors surface at
// load time.
func (c *Catalog) Register(f *File, source string, sample Deps) error {
	var errs []error
	for i, a := range f.Autos {
		tree := a.Tree
		if _, err := Compile(tree, sample); err != nil {
			errs = append(errs, fmt.Errorf("autos[%d] %s/%s: %w", i, a.Position, a.Choice, err))
			continue
		}
		b := func(d Deps) (task.Task, error) { return Compile(tree, d) }
		if err := c.AddAuto(Key{Position: a.Position, Choice: a.Choice}, a.Description, source, b, true); err != nil {
			errs = append(errs, err)
		}
	}
	for i, m := range f.Macros {
		tree := m.Tree
		if _, err := Compile(tree, sample); err != nil {
			errs = append(errs, fmt.Errorf("macros[%d] %s: %w", i, m.Name, err))
			continue
		}
		b := func(d Deps) (task.Task, error) { return Compile(tree, d) }
		if err := c.AddMacro(m.Name, m.Description, source, b, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compile turns a node tree into a task tree. It checks the node grammar and
// parameters; claim conflicts and tree shape are left to task.Validate.
func Compile(n Node, d Deps) (task.Task, error) {
	return compile(n, d, "tree")
}

func compile(n Node, d Deps, path string) (task.Task, error) {
	kinds := n.kinds()
	if len(kinds) != 1 {
		if len(kinds) == 0 {
			return nil, fmt.Errorf("%w at %s: no task kind set", ErrBadNode, path)
		}
		return nil, fmt.Errorf("%w at %s: several kinds set (%s)", ErrBadNode, path, strings.Join(kinds, ", "))
	}
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w at %s.%s: %s", ErrBadNode, path, kinds[0], fmt.Sprintf(format, args...))
	}
	dur := func(field, raw string, def time.Duration) (time.Duration, error) {
		at := path + "." + kinds[0]
		if field != "" {
			at += "." + field
		}
		v, err := config.ParseDurationOrDefault(at, raw, def)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrBadNode, err)
		}
		return v, nil
	}

	switch {
	case n.Seq != nil, n.All != nil, n.Any != nil:
		src, kind := n.Seq, "seq"
		if n.All != nil {
			src, kind = n.All, "all"
		} else if n.Any != nil {
			src, kind = n.Any, "any"
		}
		children := make([]task.Task, 0, len(src))
		for i, c := range src {
			t, err := compile(c, d, fmt.Sprintf("%s.%s[%d]", path, kind, i))
			if err != nil {
				return nil, err
			}
			children = append(children, t)
		}
		switch kind {
		case "seq":
			return task.Sequence(children...).Named(n.Name), nil
		case "all":
			return task.All(children...).Named(n.Name), nil
		default:
			return task.Any(children...).Named(n.Name), nil
		}

	case n.Fallback != nil:
		p, err := compile(n.Fallback.Primary, d, path+".fallback.primary")
		if err != nil {
			return nil, err
		}
		a, err := compile(n.Fallback.Alternate, d, path+".fallback.alternate")
		if err != nil {
			return nil, err
		}
		return task.Fallback(p, a).Named(n.Name), nil

	case n.TimeDecision != nil:
		td := n.TimeDecision
		th, err := dur("remaining", td.Remaining, 0)
		if err != nil {
			return nil, err
		}
		enough, err := compile(td.Enough, d, path+".time_decision.enough")
		if err != nil {
			return nil, err
		}
		short, err := compile(td.Short, d, path+".time_decision.short")
		if err != nil {
			return nil, err
		}
		return task.TimeDecision(d.Period, th, enough, short).Named(n.Name), nil

	case n.ThresholdDecision != nil:
		tn := n.ThresholdDecision
		sensor, ok := sensors[strings.ToLower(strings.TrimSpace(tn.Sensor))]
		if !ok {
			return nil, bad("unknown sensor %q", tn.Sensor)
		}
		above, err := compile(tn.AtOrAbove, d, path+".threshold_decision.at_or_above")
		if err != nil {
			return nil, err
		}
		below, err := compile(tn.Below, d, path+".threshold_decision.below")
		if err != nil {
			return nil, err
		}
		return task.ThresholdDecision(sensor(d.Robot), tn.Threshold, above, below).Named(n.Name), nil

	case n.Wait != "":
		w, err := dur("", n.Wait, 0)
		if err != nil {
			return nil, err
		}
		return task.Wait(d.Clock, w), nil

	case n.Noop:
		return task.Noop(), nil

	case n.Fail:
		return task.Fail(), nil

	case n.Drive != nil:
		dn := n.Drive
		if dn.Velocity == 0 {
			return nil, bad("velocity required")
		}
		if dn.Duration != "" {
			if dn.Timeout != "" {
				return nil, bad("timeout applies to distance drives only")
			}
			t, err := dur("duration", dn.Duration, 0)
			if err != nil {
				return nil, err
			}
			return robot.DriveTime(d.Robot.Drive, d.Clock, dn.Velocity, t), nil
		}
		if dn.Distance <= 0 {
			return nil, bad("distance or duration required")
		}
		timeout, err := dur("timeout", dn.Timeout, 0)
		if err != nil {
			return nil, err
		}
		return robot.DriveFor(d.Robot.Drive, d.Clock, dn.Velocity, dn.Distance, timeout), nil

	case n.Elevator != nil:
		en := n.Elevator
		var h float64
		switch {
		case en.Height != nil && en.Preset != "":
			return nil, bad("set height or preset, not both")
		case en.Height != nil:
			h = *en.Height
		default:
			var ok bool
			if h, ok = presets[strings.ToLower(strings.TrimSpace(en.Preset))]; !ok {
				return nil, bad("unknown preset %q", en.Preset)
			}
		}
		if h < 0 {
			return nil, bad("height must be >= 0")
		}
		timeout, err := dur("timeout", en.Timeout, liftTimeout)
		if err != nil {
			return nil, err
		}
		return robot.SetHeight(d.Robot.Elevator, d.Clock, h, timeout), nil

	case n.Intake != nil:
		in := n.Intake
		if in.UntilPiece {
			timeout, err := dur("timeout", in.Timeout, intakeTimeout)
			if err != nil {
				return nil, err
			}
			return robot.IntakeUntilPiece(d.Robot.Intake, d.Clock, timeout), nil
		}
		t, err := dur("duration", in.Duration, 0)
		if err != nil {
			return nil, err
		}
		if t <= 0 {
			return nil, bad("duration or until_piece required")
		}
		power := in.Power
		if power == 0 {
			power = 1
		}
		return robot.RunIntake(d.Robot.Intake, d.Clock, power, t), nil

	case n.Eject != nil:
		t, err := dur("duration", n.Eject.Duration, ejectTime)
		if err != nil {
			return nil, err
		}
		return robot.Eject(d.Robot.Intake, d.Clock, t), nil

	default: // n.Approach != nil
		timeout, err := dur("timeout", n.Approach.Timeout, approachTimeout)
		if err != nil {
			return nil, err
		}
		return robot.ApproachTarget(d.Robot.Vision, d.Robot.Drive, d.Clock, timeout), nil
	}
}

func (n Node) kinds() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(n.Seq != nil, "seq")
	add(n.All != nil, "all")
	add(n.Any != nil, "any")
	add(n.Fallback != nil, "fallback")
	add(n.TimeDecision != nil, "time_decision")
	add(n.ThresholdDecision != nil, "threshold_decision")
	add(n.Wait != "", "wait")
	add(n.Noop, "noop")
	add(n.Fail, "fail")
	add(n.Drive != nil, "drive")
	add(n.Elevator != nil, "elevator")
	add(n.Intake != nil, "intake")
	add(n.Eject != nil, "eject")
	add(n.Approach != nil, "approach")
	return out
}
