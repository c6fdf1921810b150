// Package robot defines the subsystem interfaces routines drive, the leaf
// actions built on them, and a simulated robot that stands in for hardware.
//
// Every subsystem is owned by the control goroutine. Actions claim the
// operations they write so task.Validate can reject trees in which two
// concurrent branches would fight over one actuator.
package robot
