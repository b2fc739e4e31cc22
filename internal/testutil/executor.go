package testutil

import (
	"context"
	"sync"

	"github.com/roach88/parorch/internal/ir"
)

// StaticExecutor reports fixed exit codes without running anything.
//
// Commands missing from ExitCodes exit 0. Every request is kept for
// assertions.
type StaticExecutor struct {
	ExitCodes map[string]int // Keyed by raw command text

	mu       sync.Mutex
	requests []ir.ExecutionRequest
}

// Execute implements engine.Executor.
func (e *StaticExecutor) Execute(ctx context.Context, req ir.ExecutionRequest) (ir.ExecutionReport, error) {
	if err := ctx.Err(); err != nil {
		return ir.ExecutionReport{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)

	report := ir.ExecutionReport{Statuses: make([]ir.CommandStatus, 0, len(req.Commands))}
	for _, cmd := range req.Commands {
		report.Statuses = append(report.Statuses, ir.CommandStatus{Command: cmd, ExitCode: e.ExitCodes[cmd]})
	}
	return report, nil
}

// Requests returns the requests received so far.
func (e *StaticExecutor) Requests() []ir.ExecutionRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ir.ExecutionRequest{}, e.requests...)
}
