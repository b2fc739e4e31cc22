// Package testutil provides deterministic fakes for scheduler tests: a
// tracer that serves scripted logs per round, an executor with fixed exit
// codes and a fixed run ID generator.
package testutil
