// Package engine implements the round scheduler.
//
// ARCHITECTURE:
//
// Single-threaded round loop:
// The engine runs one round at a time. A round is:
// 1. Execute the whole workset through the Executor (one concurrent batch)
// 2. Acquire the round's trace from the TraceSource
// 3. Parse it into per-command access sets and exit statuses (trace.Parser)
// 4. Stage the sets and commit them to the command model wholesale
// 5. Keep only commands with an observed forward dependency (analyzer)
//
// The run is Active while the workset is non-empty and Done once it is
// empty. Every round re-executes all commands of the new workset, not only
// the ones whose dependency was discovered last.
//
// The engine owns no cancellation or timeout policy for commands; that is
// the executor's. A round always runs to completion before its results are
// inspected. The context is checked between rounds.
//
// CRITICAL PATTERNS:
//
// Logical rounds:
// Round numbers come from RoundCounter, starting at 1. Nothing is ordered by
// wall-clock time, so recorded runs compare equal across machines.
//
// Fail closed on traces:
// A round whose trace is missing or has no structured events ends the run
// with TRACE_UNAVAILABLE. Malformed lines and unresolved launch bindings
// are counted apart in the round record, never fatal.
//
// Failures are reported, not retried:
// A command's status is the Exit event of its own trace scope. The
// executor's report is the fallback for a command whose trace has none,
// since rkr reports one exit code per build. A command exiting non-zero is re-run only if a dependency puts it back in
// the workset. The run finishes and then reports EXECUTOR_FAILURE.
package engine
