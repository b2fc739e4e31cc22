package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/parorch/internal/engine"
	"github.com/roach88/parorch/internal/model"
	"github.com/roach88/parorch/internal/rkr"
	"github.com/roach88/parorch/internal/store"
	"github.com/roach88/parorch/internal/testutil"
	"github.com/roach88/parorch/internal/trace"
)

// DefaultRunID is the run ID of scenarios that do not set one.
const DefaultRunID = "test-run-default"

// Error codes of ingestion failures, which are not engine RuntimeErrors.
const (
	CodeMalformedCommand = "MALFORMED_COMMAND"
	CodeDuplicateCommand = "DUPLICATE_COMMAND"
	CodeCanceled         = "CANCELED"
	CodeUnknown          = "UNKNOWN"
)

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Script the executor's exit codes and every round's trace
// 3. Run the engine over the command list, recording into the database
// 4. Read the recorded rounds back
// 5. Evaluate assertions
//
// The returned error is reserved for harness failures (unreadable trace
// files, store errors). A run the engine aborts is a normal result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	tracer, err := scriptTracer(scenario)
	if err != nil {
		return nil, err
	}

	formatName := scenario.TraceFormat
	if formatName == "" {
		formatName = "riker"
	}
	format, err := trace.DefaultRegistry().Lookup(formatName)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	eng := engine.New(
		&testutil.StaticExecutor{ExitCodes: scenario.ExitCodes},
		tracer,
		trace.NewParser(format, trace.WithLogger(logger)),
		engine.WithLogger(logger),
		engine.WithRecorder(st),
		engine.WithRunIDGenerator(testutil.FixedRunIDGenerator{ID: runID}),
		engine.WithMaxRounds(scenario.MaxRounds),
		engine.WithResourcePool(scenario.Only...),
	)

	result := NewResult()
	result.Run, result.RunErr = eng.Run(ctx, scenario.Commands)
	result.ErrorCode = errorCode(result.RunErr)

	detail, err := st.GetRun(ctx, runID)
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		// Rejected at ingestion; nothing was recorded.
	case err != nil:
		return nil, fmt.Errorf("read recorded run: %w", err)
	default:
		result.Status = detail.Status
		result.Rounds = detail.RoundRecords
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// scriptTracer scripts every round up to the round limit plus one, so
// that a run exceeding the limit fails on the limit and not on a missing
// trace.
func scriptTracer(s *Scenario) (*testutil.ScriptedTracer, error) {
	byRound := make(map[int]RoundScript, len(s.Rounds))
	last := len(s.Commands)
	if s.MaxRounds > last {
		last = s.MaxRounds
	}
	for _, r := range s.Rounds {
		byRound[r.Round] = r
		if r.Round > last {
			last = r.Round
		}
	}

	tracer := testutil.NewScriptedTracer()
	for round := 1; round <= last+1; round++ {
		r, ok := byRound[round]
		switch {
		case !ok:
			if s.Trace != "" {
				tracer.Script(round, splitTrace(s.Trace)...)
			}
		case r.Missing:
		case r.TraceFile != "":
			lines, err := rkr.ReadTrace(r.TraceFile)
			if err != nil {
				return nil, fmt.Errorf("scenario %s round %d: %w", s.Name, round, err)
			}
			tracer.Script(round, lines...)
		default:
			tracer.Script(round, splitTrace(r.Trace)...)
		}
	}
	return tracer, nil
}

// splitTrace splits an inline YAML block into lines, dropping the final
// newline a literal block adds.
func splitTrace(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// errorCode categorizes an error returned by engine.Run.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var re *engine.RuntimeError
	switch {
	case errors.As(err, &re):
		return string(re.Code)
	case model.IsMalformedCommand(err):
		return CodeMalformedCommand
	case model.IsDuplicateCommand(err):
		return CodeDuplicateCommand
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	default:
		return CodeUnknown
	}
}

// RunFile loads and runs the scenario at path.
func RunFile(path string) (*Result, error) {
	s, err := LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return Run(s)
}
