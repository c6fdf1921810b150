package robot

import (
	"fmt"
	"math"
	"time"

	"tickbot/internal/task"
)

// Timeouts applied when an action is built with a zero timeout.
const (
	DefaultLiftTimeout     = 3 * time.Second
	DefaultIntakeTimeout   = 3 * time.Second
	DefaultApproachTimeout = 2 * time.Second

	// driveSlack is added to twice the nominal travel time of a distance drive.
	driveSlack = time.Second
)

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// DriveDistance drives at a fixed velocity until the odometer has covered the
// requested distance. It fails if the distance is not covered in time, e.g.
// when the robot is pinned.
type DriveDistance struct {
	drive    Drivetrain
	velocity float64
	dist     float64
	start    float64
	dl       task.Deadline
}

// DriveFor drives dist meters at velocity. A zero timeout allows twice the
// nominal travel time plus one second.
func DriveFor(drive Drivetrain, clock task.Clock, velocity, dist float64, timeout time.Duration) *DriveDistance {
	dist = math.Abs(dist)
	if timeout <= 0 {
		timeout = driveSlack
		if v := math.Abs(velocity); v > 0 {
			timeout += time.Duration(2 * dist / v * float64(time.Second))
		}
	}
	return &DriveDistance{drive: drive, velocity: velocity, dist: dist, dl: task.Deadline{Clock: clock, Timeout: timeout}}
}

func (a *DriveDistance) Name() string {
	return fmt.Sprintf("drive %.2fm @ %.2fm/s", a.dist, a.velocity)
}
func (a *DriveDistance) Claims() []task.Claim { return []task.Claim{task.Exclusive(OpDriveVelocity)} }
func (a *DriveDistance) End()                 { a.drive.Stop() }

// Timeout is the time allowed to cover the distance.
func (a *DriveDistance) Timeout() time.Duration { return a.dl.Timeout }

func (a *DriveDistance) Begin() {
	a.dl.Arm()
	a.start = a.drive.Distance()
}

func (a *DriveDistance) Update() task.Status {
	if a.drive.Distance()-a.start >= a.dist {
		a.drive.Stop()
		return task.Succeeded
	}
	if a.velocity == 0 || a.dl.Expired() {
		a.drive.Stop()
		return task.Failed
	}
	a.drive.SetVelocity(a.velocity)
	return task.Running
}

// DriveTimed drives at a fixed velocity for a fixed time.
type DriveTimed struct {
	drive    Drivetrain
	velocity float64
	d        time.Duration
	dl       task.Deadline
}

func DriveTime(drive Drivetrain, clock task.Clock, velocity float64, d time.Duration) *DriveTimed {
	return &DriveTimed{drive: drive, velocity: velocity, d: d, dl: task.Deadline{Clock: clock, Timeout: d}}
}

func (a *DriveTimed) Name() string {
	return fmt.Sprintf("drive %s @ %.2fm/s", a.d, a.velocity)
}
func (a *DriveTimed) Claims() []task.Claim { return []task.Claim{task.Exclusive(OpDriveVelocity)} }
func (a *DriveTimed) Begin()               { a.dl.Arm() }
func (a *DriveTimed) End()                 { a.drive.Stop() }

func (a *DriveTimed) Update() task.Status {
	if a.dl.Elapsed() >= a.d {
		a.drive.Stop()
		return task.Succeeded
	}
	a.drive.SetVelocity(a.velocity)
	return task.Running
}

// ElevatorTo commands a height and succeeds once the elevator reports it is on
// target. End leaves the target in place: carrying a height into the next task
// is what this action is for.
type ElevatorTo struct {
	elev   Elevator
	height float64
	dl     task.Deadline
}

// SetHeight returns an action that fails if the elevator is not on target
// within timeout. A zero timeout means DefaultLiftTimeout.
func SetHeight(elev Elevator, clock task.Clock, height float64, timeout time.Duration) *ElevatorTo {
	return &ElevatorTo{elev: elev, height: height, dl: task.Deadline{Clock: clock, Timeout: orDefault(timeout, DefaultLiftTimeout)}}
}

func (a *ElevatorTo) Name() string         { return fmt.Sprintf("elevator %.2fm", a.height) }
func (a *ElevatorTo) Claims() []task.Claim { return []task.Claim{task.Exclusive(OpElevatorHeight)} }
func (a *ElevatorTo) End()                 { a.elev.Hold() }

func (a *ElevatorTo) Begin() {
	a.dl.Arm()
	a.elev.SetHeight(a.height)
}

func (a *ElevatorTo) Update() task.Status {
	if a.elev.AtTarget() {
		return task.Succeeded
	}
	if a.dl.Expired() {
		return task.Failed
	}
	return task.Running
}

// IntakeRun drives the rollers at a fixed power for a fixed time.
type IntakeRun struct {
	in    Intake
	power float64
	d     time.Duration
	dl    task.Deadline
}

func RunIntake(in Intake, clock task.Clock, power float64, d time.Duration) *IntakeRun {
	return &IntakeRun{in: in, power: power, d: d, dl: task.Deadline{Clock: clock, Timeout: d}}
}

// Eject runs the rollers in reverse for d.
func Eject(in Intake, clock task.Clock, d time.Duration) *IntakeRun {
	return RunIntake(in, clock, -1, d)
}

func (a *IntakeRun) Name() string         { return fmt.Sprintf("intake %.2f for %s", a.power, a.d) }
func (a *IntakeRun) Claims() []task.Claim { return []task.Claim{task.Exclusive(OpIntakePower)} }
func (a *IntakeRun) Begin()               { a.dl.Arm() }
func (a *IntakeRun) End()                 { a.in.Stop() }

func (a *IntakeRun) Update() task.Status {
	if a.dl.Elapsed() >= a.d {
		a.in.Stop()
		return task.Succeeded
	}
	a.in.SetPower(a.power)
	return task.Running
}

// IntakeUntil runs the rollers until a game piece is held.
type IntakeUntil struct {
	in Intake
	dl task.Deadline
}

// IntakeUntilPiece fails if no piece arrives within timeout. A zero timeout
// means DefaultIntakeTimeout.
func IntakeUntilPiece(in Intake, clock task.Clock, timeout time.Duration) *IntakeUntil {
	return &IntakeUntil{in: in, dl: task.Deadline{Clock: clock, Timeout: orDefault(timeout, DefaultIntakeTimeout)}}
}

func (a *IntakeUntil) Name() string         { return "intake until piece" }
func (a *IntakeUntil) Claims() []task.Claim { return []task.Claim{task.Exclusive(OpIntakePower)} }
func (a *IntakeUntil) Begin()               { a.dl.Arm() }
func (a *IntakeUntil) End()                 { a.in.Stop() }

func (a *IntakeUntil) Update() task.Status {
	if a.in.HasGamePiece() {
		a.in.Stop()
		return task.Succeeded
	}
	if a.dl.Expired() {
		return task.Failed
	}
	a.in.SetPower(1)
	return task.Running
}

// Approach tuning.
const (
	ApproachStop    = 0.3 // meters from the target
	approachGain    = 1.5 // m/s per meter of remaining distance
	approachMinRate = 0.2 // m/s
	approachMaxRate = 2.0 // m/s
)

// VisionApproach drives toward the vision target until it is within
// ApproachStop. While no target is in view the robot holds still.
type VisionApproach struct {
	vision Vision
	drive  Drivetrain
	dl     task.Deadline
	seen   bool
}

// ApproachTarget fails if the target is not reached within timeout (zero means
// DefaultApproachTimeout). Losing the target does not reset the deadline.
func ApproachTarget(vision Vision, drive Drivetrain, clock task.Clock, timeout time.Duration) *VisionApproach {
	return &VisionApproach{vision: vision, drive: drive, dl: task.Deadline{Clock: clock, Timeout: orDefault(timeout, DefaultApproachTimeout)}}
}

func (a *VisionApproach) Name() string { return "approach target" }

func (a *VisionApproach) Claims() []task.Claim {
	return []task.Claim{task.Exclusive(OpDriveVelocity), task.Shared(OpVisionTarget)}
}

func (a *VisionApproach) Begin() {
	a.dl.Arm()
	a.seen = false
}

func (a *VisionApproach) End() { a.drive.Stop() }

// Seen reports whether the target was in view at any point of the activation.
func (a *VisionApproach) Seen() bool { return a.seen }

func (a *VisionApproach) Update() task.Status {
	t, ok := a.vision.Target()
	if ok {
		a.seen = true
		if t.Distance <= ApproachStop {
			a.drive.Stop()
			return task.Succeeded
		}
	}
	if a.dl.Expired() {
		return task.Failed
	}
	if !ok {
		a.drive.Stop()
		return task.Running
	}
	a.drive.SetVelocity(math.Max(approachMinRate, math.Min(approachMaxRate, approachGain*t.Distance)))
	return task.Running
}
