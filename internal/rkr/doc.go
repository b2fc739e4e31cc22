// Package rkr runs a round's workset under the Riker build tracer and reads
// back the round's trace.
//
// Each round rewrites <workdir>/Rikerfile with one backgrounded line per
// command, runs `rkr --show` to execute it, then `rkr trace -o <file>` to
// dump the recorded IR. Runner implements both engine.Executor and
// engine.TraceSource.
//
// Riker reports one exit status for the whole build. A failing build marks
// every command of the round failed with that status.
package rkr
