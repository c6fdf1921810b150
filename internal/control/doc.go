// Package control owns the fixed-rate loop that ticks the routine scheduler.
//
// The loop goroutine is the only caller of scheduler.Install, Tick and
// CancelCurrent. Everything else (config reload, the operator console, the
// systemd watchdog) talks to it through Submit and the read-only queries.
package control
