// Package task is the tick-driven control-task engine.
//
// A Task is a small synchronous state machine: Begin once, Update at most once
// per control-loop tick, End once. Combinators (Sequence, All, Any, Fallback and
// the decision nodes) are themselves Tasks, so a whole routine tree looks like a
// single Task to the scheduler that drives it.
//
// Timing convention (all combinators hold to it):
//   - A task begun while its parent is being updated gets its first Update on the
//     next tick.
//   - Sequence hands off on the tick after a child succeeds: that tick begins the
//     next child and returns Running without updating it.
//   - Fallback switches to the alternate in the same tick the primary fails.
//   - All and Any report their outcome in the same update that decides it.
//
// Trees are checked with Validate before they are ever ticked; conflicting
// operation claims between concurrent siblings are a build error, not a runtime
// condition.
package task
