package robot

import (
	"math"
	"time"
)

// SimConfig tunes the simulated robot.
type SimConfig struct {
	MaxSpeed       float64       // m/s
	ElevatorSpeed  float64       // m/s
	ElevatorTol    float64       // m
	IntakeTime     time.Duration // rollers-on time to acquire a piece
	PieceAvailable bool          // whether a piece is within reach of the intake
}

func (c SimConfig) withDefaults() SimConfig {
	if c.MaxSpeed <= 0 {
		c.MaxSpeed = 3
	}
	if c.ElevatorSpeed <= 0 {
		c.ElevatorSpeed = 1
	}
	if c.ElevatorTol <= 0 {
		c.ElevatorTol = 0.01
	}
	if c.IntakeTime <= 0 {
		c.IntakeTime = 300 * time.Millisecond
	}
	return c
}

// Sim is a kinematic stand-in for the robot. The control loop calls Step once
// per tick after the scheduler has written its commands.
type Sim struct {
	Drive    *SimDrivetrain
	Elevator *SimElevator
	Intake   *SimIntake
	Vision   *SimVision
}

func NewSim(cfg SimConfig) *Sim {
	cfg = cfg.withDefaults()
	return &Sim{
		Drive:    &SimDrivetrain{max: cfg.MaxSpeed},
		Elevator: &SimElevator{speed: cfg.ElevatorSpeed, tol: cfg.ElevatorTol},
		Intake:   &SimIntake{need: cfg.IntakeTime, available: cfg.PieceAvailable},
		Vision:   &SimVision{},
	}
}

// Subsystems exposes the simulated devices through the robot interfaces.
func (s *Sim) Subsystems() Subsystems {
	return Subsystems{Drive: s.Drive, Elevator: s.Elevator, Intake: s.Intake, Vision: s.Vision}
}

func (s *Sim) Step(dt time.Duration) {
	s.Drive.step(dt)
	s.Elevator.step(dt)
	s.Intake.step(dt)
	s.Vision.step(s.Drive)
}

// Neutral reports whether no actuator is being driven. The elevator holding a
// height counts as neutral.
func (s *Sim) Neutral() bool {
	return s.Drive.velocity == 0 && s.Intake.power == 0
}

type SimDrivetrain struct {
	max      float64
	velocity float64
	distance float64
}

func (d *SimDrivetrain) SetVelocity(mps float64) {
	d.velocity = math.Max(-d.max, math.Min(d.max, mps))
}

func (d *SimDrivetrain) Stop()             { d.velocity = 0 }
func (d *SimDrivetrain) Distance() float64 { return d.distance }
func (d *SimDrivetrain) Velocity() float64 { return d.velocity }

func (d *SimDrivetrain) step(dt time.Duration) {
	d.distance += math.Abs(d.velocity) * dt.Seconds()
}

type SimElevator struct {
	speed  float64
	tol    float64
	height float64
	target float64
}

func (e *SimElevator) SetHeight(m float64) { e.target = math.Max(0, m) }
func (e *SimElevator) Hold()               {}
func (e *SimElevator) Height() float64     { return e.height }
func (e *SimElevator) Target() float64     { return e.target }

func (e *SimElevator) AtTarget() bool { return math.Abs(e.target-e.height) <= e.tol }

func (e *SimElevator) step(dt time.Duration) {
	diff := e.target - e.height
	move := e.speed * dt.Seconds()
	if math.Abs(diff) <= move {
		e.height = e.target
		return
	}
	e.height += math.Copysign(move, diff)
}

type SimIntake struct {
	need      time.Duration
	available bool
	power     float64
	running   time.Duration
	piece     bool
}

func (i *SimIntake) SetPower(p float64) { i.power = math.Max(-1, math.Min(1, p)) }
func (i *SimIntake) Stop()              { i.power = 0 }
func (i *SimIntake) HasGamePiece() bool { return i.piece }
func (i *SimIntake) Power() float64     { return i.power }

// Load places a piece in reach (or takes it away).
func (i *SimIntake) Load(available bool) { i.available = available }

func (i *SimIntake) step(dt time.Duration) {
	switch {
	case i.power < 0:
		i.piece = false
		i.running = 0
	case i.power > 0 && i.available && !i.piece:
		i.running += dt
		if i.running >= i.need {
			i.piece = true
			i.available = false
			i.running = 0
		}
	default:
		i.running = 0
	}
}

// SimVision sees a target placed by Place. The reported distance shrinks as the
// drivetrain covers ground.
type SimVision struct {
	visible bool
	target  Target
	lastOdo float64
}

// Place puts a target in view at the given distance. Hide removes it.
func (v *SimVision) Place(t Target) { v.visible, v.target = true, t }
func (v *SimVision) Hide()          { v.visible = false }

func (v *SimVision) Target() (Target, bool) { return v.target, v.visible }

func (v *SimVision) step(d *SimDrivetrain) {
	moved := d.distance - v.lastOdo
	v.lastOdo = d.distance
	if !v.visible {
		return
	}
	if d.velocity < 0 {
		moved = -moved
	}
	v.target.Distance = math.Max(0, v.target.Distance-moved)
}
