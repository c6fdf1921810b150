// Package logx configures tickbot's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured, so match logs can be replayed offline
//   - Hot paths cheap: per-tick call sites go through a Throttle
package logx
