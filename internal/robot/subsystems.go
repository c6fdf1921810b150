package robot

import "tickbot/internal/task"

// Operations written by the leaf actions in this package.
const (
	OpDriveVelocity  task.Operation = "drivetrain.velocity"
	OpElevatorHeight task.Operation = "elevator.height"
	OpIntakePower    task.Operation = "intake.power"
	OpVisionTarget   task.Operation = "vision.target"
)

// Drivetrain moves the robot along its heading.
type Drivetrain interface {
	// SetVelocity commands a forward speed in m/s; negative drives backwards.
	SetVelocity(mps float64)
	Stop()
	// Distance is the odometer reading in meters. It only grows in the
	// direction of travel, so actions measure relative to Begin.
	Distance() float64
}

type Elevator interface {
	SetHeight(m float64)
	// Hold keeps the current target. It is what an elevator does when nothing
	// commands it.
	Hold()
	Height() float64
	AtTarget() bool
}

type Intake interface {
	// SetPower runs the rollers; positive pulls a game piece in, negative
	// ejects it.
	SetPower(p float64)
	Stop()
	HasGamePiece() bool
}

// Target is a vision observation relative to the robot.
type Target struct {
	Distance float64 // meters
	Bearing  float64 // radians, positive to the left
}

type Vision interface {
	Target() (Target, bool)
}

// Subsystems is the set of devices routines are built against.
type Subsystems struct {
	Drive    Drivetrain
	Elevator Elevator
	Intake   Intake
	Vision   Vision
}
