package trace

import (
	"errors"
	"fmt"
)

// TraceUnavailableError reports that a round's trace could not be obtained
// or contained no structured events. It is fatal for the run.
type TraceUnavailableError struct {
	Round  int
	Reason string
	Err    error
}

func (e *TraceUnavailableError) Error() string {
	msg := fmt.Sprintf("trace unavailable for round %d: %s", e.Round, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TraceUnavailableError) Unwrap() error { return e.Err }

// IsTraceUnavailable reports whether err is a TraceUnavailableError.
func IsTraceUnavailable(err error) bool {
	var te *TraceUnavailableError
	return errors.As(err, &te)
}

// AttributionError is a non-fatal diagnostic: one resource-open or launch
// event could not be attributed and was skipped. Skips can under-approximate
// a command's read/write sets.
type AttributionError struct {
	Line   int    // 1-based line number in the round's log
	Scope  string // Owning command, empty for unscoped lines
	Body   string
	Reason string
}

func (e *AttributionError) Error() string {
	scope := e.Scope
	if scope == "" {
		scope = "<unscoped>"
	}
	return fmt.Sprintf("attribution skipped at line %d (%s): %s", e.Line, scope, e.Reason)
}

// MalformedEventError is returned by Format.Classify for a body that has the
// shape of a known event but cannot be decoded.
type MalformedEventError struct {
	Kind   EventKind
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %s event: %s", e.Kind, e.Reason)
}

func malformed(kind EventKind, format string, args ...any) error {
	return &MalformedEventError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}
