package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/parorch/internal/analyzer"
	"github.com/roach88/parorch/internal/ir"
	"github.com/roach88/parorch/internal/model"
	"github.com/roach88/parorch/internal/trace"
)

// RunIDGenerator generates unique run IDs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}

// Executor runs one round's workset as a concurrent batch.
//
// Execute must return only after every command has finished and its writes
// are durable. A non-zero exit code is reported through the report, not the
// error; an error means the batch could not be run at all.
type Executor interface {
	Execute(ctx context.Context, req ir.ExecutionRequest) (ir.ExecutionReport, error)
}

// TraceSource returns the raw log lines of a finished round.
type TraceSource interface {
	Acquire(ctx context.Context, round int) ([]string, error)
}

// Recorder persists a run as it progresses. Implemented by store.Store.
type Recorder interface {
	BeginRun(ctx context.Context, run ir.RunRecord) error
	RecordRound(ctx context.Context, round ir.RoundRecord) error
	FinishRun(ctx context.Context, runID, status string, result *ir.RunResult, runErr error) error
}

// Engine is the round scheduler.
//
// Each round executes the whole workset, acquires the round's trace,
// replaces the workset commands' read/write sets from it and keeps only the
// commands with an observed forward dependency. The run ends when the
// workset is empty.
//
// Rounds are strictly sequential. Parallelism lives inside the executor;
// the engine never runs two rounds or parses two traces at once, and an
// Engine must not run two Runs concurrently.
type Engine struct {
	executor  Executor
	tracer    TraceSource
	parser    *trace.Parser
	runIDs    RunIDGenerator
	recorder  Recorder
	telemetry *Telemetry
	logger    *slog.Logger
	maxRounds int
	pool      []string
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMaxRounds sets the round limit.
//
// Default: 0, meaning the number of commands, which no run can exceed.
// Use a lower value to stop long re-execution chains early.
func WithMaxRounds(n int) EngineOption {
	return func(e *Engine) {
		e.maxRounds = n
	}
}

// WithRecorder persists runs through r.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithRunIDGenerator replaces the UUIDv7 run ID generator.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithTelemetry replaces the global-provider telemetry.
func WithTelemetry(t *Telemetry) EngineOption {
	return func(e *Engine) {
		e.telemetry = t
	}
}

// WithResourcePool limits committed read/write sets to names.
func WithResourcePool(names ...string) EngineOption {
	return func(e *Engine) {
		e.pool = append([]string(nil), names...)
	}
}

// New creates an Engine that executes through executor and reads each
// round's trace from tracer with parser.
func New(executor Executor, tracer TraceSource, parser *trace.Parser, opts ...EngineOption) *Engine {
	e := &Engine{
		executor: executor,
		tracer:   tracer,
		parser:   parser,
		runIDs:   UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.telemetry == nil {
		e.telemetry = DefaultTelemetry()
	}
	return e
}

// Run schedules raws to a fixed point.
//
// Ingestion errors (model.MalformedCommandError, model.DuplicateCommandError)
// are returned before anything executes. Trace, execution and round-limit
// errors end the run and return a nil result: later rounds depend on
// accurate sets, so a partial result is not trusted.
//
// If the run converges but some command's last execution failed, Run
// returns the full result together with an EXECUTOR_FAILURE error.
func (e *Engine) Run(ctx context.Context, raws []string) (*ir.RunResult, error) {
	var modelOpts []model.Option
	if len(e.pool) > 0 {
		modelOpts = append(modelOpts, model.WithResourcePool(e.pool...))
	}
	m, err := model.New(raws, modelOpts...)
	if err != nil {
		return nil, err
	}

	runID := e.runIDs.Generate()
	limit := e.maxRounds
	if limit <= 0 {
		limit = m.Len()
	}
	logger := e.logger.With("run_id", runID)

	ctx, span := e.telemetry.startRun(ctx, runID, m.Len())
	result, err := e.run(ctx, logger, m, runID, limit, raws)
	endSpan(span, err)
	return result, err
}

func (e *Engine) run(ctx context.Context, logger *slog.Logger, m *model.Model, runID string, limit int, raws []string) (*ir.RunResult, error) {
	if e.recorder != nil {
		rec := ir.RunRecord{
			RunID:            runID,
			Commands:         append([]string(nil), raws...),
			TraceFormat:      e.parser.Format().Name(),
			MaxRounds:        limit,
			SchedulerVersion: ir.SchedulerVersion,
		}
		if err := e.recorder.BeginRun(ctx, rec); err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
	}

	result := &ir.RunResult{
		RunID:        runID,
		Dependencies: []ir.Dependency{},
		Worksets:     [][]string{},
	}

	logger.Info("run starting", "commands", m.Len(), "max_rounds", limit)

	counter := NewRoundCounter(limit)
	workset := m.Workset()
	for len(workset) > 0 {
		round, err := counter.Next()
		if err != nil {
			var le *RoundLimitError
			if !errors.As(err, &le) {
				return nil, e.abort(ctx, logger, result, err)
			}
			return nil, e.abort(ctx, logger, result, NewRoundLimitError(runID, le))
		}
		if err := ctx.Err(); err != nil {
			return nil, e.abort(ctx, logger, result, fmt.Errorf("round %d: %w", round, err))
		}

		next, err := e.runRound(ctx, logger, m, result, runID, round, workset)
		if err != nil {
			return nil, e.abort(ctx, logger, result, err)
		}
		result.Rounds = round
		workset = next
	}

	result.Converged = true
	result.Commands = m.Results()

	var runErr error
	status := ir.RunConverged
	if failed := result.FailedCommands(); len(failed) > 0 {
		identities := make([]string, 0, len(failed))
		for _, c := range failed {
			identities = append(identities, c.Identity)
		}
		runErr = NewExecutorFailure(runID, identities)
		status = ir.RunFailed
		logger.Error("run converged with failed commands", "rounds", result.Rounds, "failed", identities)
	} else {
		logger.Info("run converged", "rounds", result.Rounds)
	}

	if e.recorder != nil {
		if err := e.recorder.FinishRun(ctx, runID, status, result, runErr); err != nil {
			return nil, fmt.Errorf("record run finish: %w", err)
		}
	}
	return result, runErr
}

// runRound executes one round and returns the next workset.
func (e *Engine) runRound(ctx context.Context, logger *slog.Logger, m *model.Model, result *ir.RunResult, runID string, round int, workset []*model.Command) ([]*model.Command, error) {
	ctx, span := e.telemetry.startRound(ctx, round, len(workset))

	identities := make([]string, len(workset))
	raws := make([]string, len(workset))
	for i, c := range workset {
		identities[i] = c.Identity
		raws[i] = c.Raw
	}
	result.Worksets = append(result.Worksets, identities)

	logger.Info("round starting", "round", round, "workset", identities)

	report, err := e.executor.Execute(ctx, ir.ExecutionRequest{RunID: runID, Round: round, Commands: raws})
	if err != nil {
		endSpan(span, err)
		return nil, NewExecutionError(runID, round, err)
	}
	lines, err := e.tracer.Acquire(ctx, round)
	if err != nil {
		err = &trace.TraceUnavailableError{Round: round, Reason: "acquire", Err: err}
		endSpan(span, err)
		return nil, NewTraceUnavailableError(runID, round, err)
	}
	parsed, err := e.parser.Parse(round, lines, identities)
	if err != nil {
		endSpan(span, err)
		return nil, NewTraceUnavailableError(runID, round, err)
	}

	statuses := resolveStatuses(workset, report, parsed.Exits)
	for i, c := range workset {
		if err := m.RecordExecution(c.Identity, statuses[i]); err != nil {
			endSpan(span, err)
			return nil, err
		}
		if statuses[i].Failed() {
			logger.Warn("command failed", "round", round, "command", c.Identity, "exit_code", statuses[i].ExitCode)
		}
	}

	staging := m.BeginRound(round, workset)
	for _, id := range identities {
		if err := staging.Add(id, parsed.Combined(id)); err != nil {
			endSpan(span, err)
			return nil, err
		}
	}
	if err := staging.Commit(); err != nil {
		endSpan(span, err)
		return nil, err
	}

	a := analyzer.Analyze(round, workset)
	for _, c := range a.Dropped {
		if err := m.MarkDropped(c.Identity, round); err != nil {
			endSpan(span, err)
			return nil, err
		}
	}
	for _, d := range a.Dependencies {
		logger.Debug("forward dependency", "round", round, "from", d.From, "to", d.To, "paths", d.Paths)
	}
	for _, v := range a.Violations {
		logger.Warn("command not idempotent across rounds",
			"round", round, "command", v.Identity, "reads_diff", v.ReadsDiff, "writes_diff", v.WritesDiff)
	}
	result.Dependencies = append(result.Dependencies, a.Dependencies...)
	result.Violations = append(result.Violations, a.Violations...)

	nextIDs := make([]string, len(a.Next))
	for i, c := range a.Next {
		nextIDs[i] = c.Identity
	}

	if e.recorder != nil {
		rec, err := roundRecord(runID, round, identities, nextIDs, lines, parsed, statuses, workset, a)
		if err == nil {
			err = e.recorder.RecordRound(ctx, rec)
		}
		if err != nil {
			endSpan(span, err)
			return nil, fmt.Errorf("record round %d: %w", round, err)
		}
	}

	logger.Info("round complete", "round", round, "workset", identities, "next", nextIDs,
		"skipped", len(parsed.Skipped), "unresolved", len(parsed.Unresolved))
	e.telemetry.roundDone(ctx, span, round, len(workset), len(a.Next), parsed.Diagnostics())
	return a.Next, nil
}

// abort records an aborted run and returns err.
func (e *Engine) abort(ctx context.Context, logger *slog.Logger, result *ir.RunResult, err error) error {
	logger.Error("run aborted", "rounds", result.Rounds, "error", err)
	if e.recorder != nil {
		// The context may be the reason for the abort.
		if rerr := e.recorder.FinishRun(context.WithoutCancel(ctx), result.RunID, ir.RunAborted, nil, err); rerr != nil {
			logger.Error("record aborted run", "error", rerr)
		}
	}
	return err
}

// resolveStatuses prefers the exit status each command left in its own
// trace. The executor's report is the fallback, since a batch executor may
// report one exit code for the whole round.
func resolveStatuses(workset []*model.Command, report ir.ExecutionReport, exits map[string]int) []ir.CommandStatus {
	statuses := matchStatuses(workset, report)
	for i, c := range workset {
		code, ok := exits[c.Identity]
		if !ok || code == statuses[i].ExitCode {
			continue
		}
		statuses[i].ExitCode = code
		statuses[i].Message = ""
		if code != 0 {
			statuses[i].Message = fmt.Sprintf("exit status %d", code)
		}
	}
	return statuses
}

// matchStatuses pairs each workset command with its status in report.
// Statuses are matched by raw command text; a command the executor did not
// report is treated as successful.
func matchStatuses(workset []*model.Command, report ir.ExecutionReport) []ir.CommandStatus {
	byCommand := make(map[string][]ir.CommandStatus, len(report.Statuses))
	for _, s := range report.Statuses {
		byCommand[s.Command] = append(byCommand[s.Command], s)
	}
	out := make([]ir.CommandStatus, len(workset))
	for i, c := range workset {
		if list := byCommand[c.Raw]; len(list) > 0 {
			out[i] = list[0]
			byCommand[c.Raw] = list[1:]
			continue
		}
		out[i] = ir.CommandStatus{Command: c.Raw}
	}
	return out
}

func roundRecord(runID string, round int, workset, next, lines []string, parsed *trace.Result, statuses []ir.CommandStatus, cmds []*model.Command, a analyzer.Analysis) (ir.RoundRecord, error) {
	wsDigest, err := ir.WorksetDigest(workset)
	if err != nil {
		return ir.RoundRecord{}, err
	}
	traceDigest, err := ir.TraceDigest(lines)
	if err != nil {
		return ir.RoundRecord{}, err
	}
	sets := make([]ir.CommandSets, len(cmds))
	for i, c := range cmds {
		sets[i] = ir.CommandSets{
			Identity: c.Identity,
			Reads:    c.ReadSet().Sorted(),
			Writes:   c.WriteSet().Sorted(),
		}
	}
	return ir.RoundRecord{
		RunID:         runID,
		Round:         round,
		Workset:       workset,
		WorksetDigest: wsDigest,
		TraceDigest:   traceDigest,
		Next:          next,
		Opens:         parsed.Opens,
		Launches:      parsed.Launches,
		Skipped:       len(parsed.Skipped),
		Unresolved:    len(parsed.Unresolved),
		Statuses:      statuses,
		Sets:          sets,
		Dependencies:  a.Dependencies,
		Violations:    a.Violations,
	}, nil
}
