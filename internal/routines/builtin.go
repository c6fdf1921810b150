package routines

import (
	"time"

	"tickbot/internal/robot"
	"tickbot/internal/task"
)

// Elevator presets, in meters.
const (
	HeightStow = 0.0
	HeightLow  = 0.35
	HeightMid  = 0.8
	HeightHigh = 1.2
)

const (
	liftTimeout     = robot.DefaultLiftTimeout
	ejectTime       = 500 * time.Millisecond
	approachTimeout = robot.DefaultApproachTimeout
	intakeTimeout   = robot.DefaultIntakeTimeout

	// secondPieceTime is the autonomous time needed to fetch and score a
	// second game piece.
	secondPieceTime = 7 * time.Second
)

// Builtin returns the catalog of routines compiled into the binary.
func Builtin() *Catalog {
	c := NewCatalog()
	auto := func(pos, choice, desc string, b func(Deps) task.Task) {
		_ = c.AddAuto(Key{Position: pos, Choice: choice}, desc, "builtin", lift(b), false)
	}
	macro := func(name, desc string, b func(Deps) task.Task) {
		_ = c.AddMacro(name, desc, "builtin", lift(b), false)
	}

	auto(AnyPosition, "none", "sit still", func(Deps) task.Task { return task.Noop() })
	auto(AnyPosition, "cross", "drive across the line", crossLine)
	auto("center", "score_low", "score low from the center and back off", scoreLow)
	auto(AnyPosition, "score_high", "score high, approaching by vision with a dead-reckoning fallback", scoreHigh)
	auto(AnyPosition, "two_piece", "score high, then fetch and score a second piece if time allows", twoPiece)

	macro("stow", "lower the elevator", func(d Deps) task.Task {
		return robot.SetHeight(d.Robot.Elevator, d.Clock, HeightStow, liftTimeout)
	})
	macro("intake", "stow and intake until a piece is held", func(d Deps) task.Task {
		return task.Sequence(
			robot.SetHeight(d.Robot.Elevator, d.Clock, HeightStow, liftTimeout),
			robot.IntakeUntilPiece(d.Robot.Intake, d.Clock, intakeTimeout),
		).Named("intake")
	})
	macro("eject", "run the intake in reverse", func(d Deps) task.Task {
		return robot.Eject(d.Robot.Intake, d.Clock, ejectTime)
	})
	macro("score_high", "raise if needed and eject", scoreHighMacro)
	return c
}

func lift(b func(Deps) task.Task) Builder {
	return func(d Deps) (task.Task, error) { return b(d), nil }
}

func crossLine(d Deps) task.Task {
	return robot.DriveFor(d.Robot.Drive, d.Clock, 1.5, 2.0, 0)
}

func scoreLow(d Deps) task.Task {
	return task.Sequence(
		task.All(
			robot.SetHeight(d.Robot.Elevator, d.Clock, HeightLow, liftTimeout),
			robot.DriveFor(d.Robot.Drive, d.Clock, 1.0, 1.2, 0),
		).Named("approach"),
		robot.Eject(d.Robot.Intake, d.Clock, ejectTime),
		robot.DriveFor(d.Robot.Drive, d.Clock, -1.0, 1.0, 0),
	).Named("score low")
}

// scoreHigh drives up while lifting, then scores and stows. If vision never
// finds the target the robot dead-reckons the same distance.
func scoreHigh(d Deps) task.Task {
	return task.Sequence(
		task.All(
			robot.SetHeight(d.Robot.Elevator, d.Clock, HeightHigh, liftTimeout),
			task.Fallback(
				robot.ApproachTarget(d.Robot.Vision, d.Robot.Drive, d.Clock, approachTimeout),
				robot.DriveFor(d.Robot.Drive, d.Clock, 1.0, 1.5, 0),
			).Named("approach"),
		).Named("lift and approach"),
		robot.Eject(d.Robot.Intake, d.Clock, ejectTime),
		robot.SetHeight(d.Robot.Elevator, d.Clock, HeightStow, liftTimeout),
	).Named("score high")
}

func twoPiece(d Deps) task.Task {
	second := task.Sequence(
		task.All(
			robot.DriveFor(d.Robot.Drive, d.Clock, -2.0, 2.5, 0),
			robot.IntakeUntilPiece(d.Robot.Intake, d.Clock, intakeTimeout),
		).Named("fetch"),
		task.All(
			robot.DriveFor(d.Robot.Drive, d.Clock, 2.0, 2.5, 0),
			robot.SetHeight(d.Robot.Elevator, d.Clock, HeightHigh, liftTimeout),
		).Named("return"),
		robot.Eject(d.Robot.Intake, d.Clock, ejectTime),
	).Named("second piece")

	return task.Sequence(
		scoreHigh(d),
		task.TimeDecision(d.Period, secondPieceTime, second, robot.DriveFor(d.Robot.Drive, d.Clock, -1.5, 1.0, 0)).Named("enough time?"),
	).Named("two piece")
}

// scoreHighMacro skips the lift when the elevator is already up.
func scoreHighMacro(d Deps) task.Task {
	return task.ThresholdDecision(
		d.Robot.Elevator.Height,
		HeightHigh-0.05,
		robot.Eject(d.Robot.Intake, d.Clock, ejectTime),
		task.Sequence(
			robot.SetHeight(d.Robot.Elevator, d.Clock, HeightHigh, liftTimeout),
			robot.Eject(d.Robot.Intake, d.Clock, ejectTime),
		),
	).Named("score high")
}
