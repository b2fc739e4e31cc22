package engine

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError represents an error that ended or failed a scheduling run.
//
// Runtime errors include:
//   - Trace unavailable: a round's trace could not be acquired or parsed
//   - Executor failure: one or more commands exited non-zero
//   - Round limit: the run needed more rounds than allowed
//   - Execution error: the executor could not run the batch at all
//
// Only ExecutorFailure is reported after a converged run; the others end
// the run immediately.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Round is the round the error was detected in, 0 if not round-scoped.
	Round int

	// Failed lists the identities of failed commands (ExecutorFailure).
	Failed []string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeTraceUnavailable indicates a round's trace was missing or had
	// no structured events.
	ErrCodeTraceUnavailable RuntimeErrorCode = "TRACE_UNAVAILABLE"

	// ErrCodeExecutorFailure indicates commands exited non-zero.
	ErrCodeExecutorFailure RuntimeErrorCode = "EXECUTOR_FAILURE"

	// ErrCodeRoundLimit indicates the run exceeded its round limit.
	ErrCodeRoundLimit RuntimeErrorCode = "ROUND_LIMIT"

	// ErrCodeExecution indicates the executor itself failed.
	ErrCodeExecution RuntimeErrorCode = "EXECUTION_ERROR"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	switch {
	case e.RunID != "" && e.Round > 0:
		fmt.Fprintf(&b, " (run=%s, round=%d)", e.RunID, e.Round)
	case e.RunID != "":
		fmt.Fprintf(&b, " (run=%s)", e.RunID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsTraceUnavailableError returns true if err is a TRACE_UNAVAILABLE error.
// Uses errors.As to handle wrapped errors.
func IsTraceUnavailableError(err error) bool { return hasCode(err, ErrCodeTraceUnavailable) }

// IsExecutorFailure returns true if err is an EXECUTOR_FAILURE error.
func IsExecutorFailure(err error) bool { return hasCode(err, ErrCodeExecutorFailure) }

// IsRoundLimitError returns true if err is a ROUND_LIMIT error.
// Matches both RuntimeError with ErrCodeRoundLimit and RoundLimitError.
func IsRoundLimitError(err error) bool {
	if hasCode(err, ErrCodeRoundLimit) {
		return true
	}
	var le *RoundLimitError
	return errors.As(err, &le)
}

// IsExecutionError returns true if err is an EXECUTION_ERROR error.
func IsExecutionError(err error) bool { return hasCode(err, ErrCodeExecution) }

// NewTraceUnavailableError creates a RuntimeError for a missing trace.
func NewTraceUnavailableError(runID string, round int, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTraceUnavailable,
		Message: "round trace could not be used",
		RunID:   runID,
		Round:   round,
		Err:     err,
	}
}

// NewExecutorFailure creates a RuntimeError listing failed commands.
func NewExecutorFailure(runID string, failed []string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeExecutorFailure,
		Message: fmt.Sprintf("%d command(s) failed: %s", len(failed), strings.Join(failed, "; ")),
		RunID:   runID,
		Failed:  failed,
	}
}

// NewRoundLimitError creates a RuntimeError for an exceeded round limit.
func NewRoundLimitError(runID string, err *RoundLimitError) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeRoundLimit,
		Message: fmt.Sprintf("round %d exceeds limit of %d", err.Round, err.Limit),
		RunID:   runID,
		Round:   err.Round,
		Err:     err,
	}
}

// NewExecutionError creates a RuntimeError for an executor that could not
// run the batch.
func NewExecutionError(runID string, round int, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeExecution,
		Message: "executor did not run the workset",
		RunID:   runID,
		Round:   round,
		Err:     err,
	}
}
