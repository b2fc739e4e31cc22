package testutil

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedTracer serves a predefined log per round.
//
// Rounds without a script fail acquisition, so a test that runs more
// rounds than it scripted fails with a trace error instead of hanging.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScriptedTracer struct {
	mu       sync.Mutex
	rounds   map[int][]string
	acquired []int
}

// NewScriptedTracer creates a tracer with no rounds scripted.
func NewScriptedTracer() *ScriptedTracer {
	return &ScriptedTracer{rounds: make(map[int][]string)}
}

// Script sets the log served for round. An empty lines slice is served as
// an empty log.
func (t *ScriptedTracer) Script(round int, lines ...string) *ScriptedTracer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rounds[round] = append([]string{}, lines...)
	return t
}

// Acquire implements engine.TraceSource.
func (t *ScriptedTracer) Acquire(ctx context.Context, round int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.acquired = append(t.acquired, round)
	lines, ok := t.rounds[round]
	if !ok {
		return nil, fmt.Errorf("no trace scripted for round %d", round)
	}
	return append([]string{}, lines...), nil
}

// Acquired returns the rounds acquired so far, in call order.
func (t *ScriptedTracer) Acquired() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int{}, t.acquired...)
}
