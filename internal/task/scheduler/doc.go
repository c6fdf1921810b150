// Package scheduler drives the single active routine tree.
//
// The scheduler owns at most one root task. Each control-loop tick it updates
// the root once; a terminal status ends and clears it. Installing a new routine
// always cancels the current one first, so two routines never drive the robot
// in the same tick.
//
// Install, Tick and CancelCurrent belong to the control goroutine. Active,
// Current and Snapshot may be called from anywhere.
package scheduler
