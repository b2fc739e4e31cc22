package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/parorch/internal/engine"
	"github.com/roach88/parorch/internal/model"
	"github.com/roach88/parorch/internal/rkr"
	"github.com/roach88/parorch/internal/store"
	"github.com/roach88/parorch/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	RkrBin      string
	Workdir     string
	TraceFile   string
	TraceFormat string
	MaxRounds   int
	Only        []string

	OTLPEndpoint string
	OTLPInsecure bool

	// RunIDGenerator overrides the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator

	// Executor and Tracer override the rkr adapter (for testing).
	// Both must be set to take effect.
	Executor engine.Executor
	Tracer   engine.TraceSource
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

// newRunCommand builds the run command around opts so tests can inject an
// executor, tracer and run ID generator.
func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <commands-file>",
		Short: "Schedule a command list to a fixed point",
		Long: `Run every command of the list in parallel under the execution tracer,
then re-run only the commands that read a file written by an earlier
command, until a round discovers no forward dependency.

Flags default from PARORCH_DB, PARORCH_RKR_BIN, PARORCH_WORKDIR,
PARORCH_TRACE_FILE, PARORCH_TRACE_FORMAT, PARORCH_MAX_ROUNDS,
PARORCH_OTLP_ENDPOINT and PARORCH_OTLP_INSECURE. With an OTLP endpoint
set, run and round spans and the scheduler counters are exported over gRPC.

Example:
  parorch run commands.txt
  parorch run --db ./parorch.db --workdir ./build commands.yaml
  parorch run --only out1 --only out11 commands.txt --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid environment", err)
			}
			applyConfig(cmd, opts, cfg)
			return runSchedule(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for run history (optional)")
	cmd.Flags().StringVar(&opts.RkrBin, "rkr", "rkr", "path to the rkr binary")
	cmd.Flags().StringVar(&opts.Workdir, "workdir", ".", "directory the commands run in")
	cmd.Flags().StringVar(&opts.TraceFile, "trace-file", rkr.DefaultTraceFile, "trace dump path, relative to the workdir unless absolute")
	cmd.Flags().StringVar(&opts.TraceFormat, "trace-format", "riker", "trace format, optionally name@constraint")
	cmd.Flags().IntVar(&opts.MaxRounds, "max-rounds", 0, "round limit (0 means number of commands)")
	cmd.Flags().StringArrayVar(&opts.Only, "only", nil, "limit read/write sets to this file name (repeatable)")
	cmd.Flags().StringVar(&opts.OTLPEndpoint, "otlp-endpoint", "", "OTLP gRPC collector host:port (optional)")
	cmd.Flags().BoolVar(&opts.OTLPInsecure, "otlp-insecure", false, "connect to the OTLP collector without TLS")

	return cmd
}

func runSchedule(opts *RunOptions, commandsPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	commands, err := LoadCommands(commandsPath)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	logger.Info("commands loaded", "path", commandsPath, "count", len(commands))

	format, err := trace.DefaultRegistry().Lookup(opts.TraceFormat)
	if err != nil {
		return formatter.Fail(ErrCodeTraceFormat, ExitCommandError, "invalid trace format", err)
	}

	executor, tracer := opts.Executor, opts.Tracer
	if executor == nil || tracer == nil {
		runner := rkr.New(opts.Workdir,
			rkr.WithBinary(opts.RkrBin),
			rkr.WithTraceFile(opts.TraceFile),
			rkr.WithLogger(logger))
		executor, tracer = runner, runner
	}

	engineOpts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithMaxRounds(opts.MaxRounds),
		engine.WithResourcePool(opts.Only...),
	}
	if opts.RunIDGenerator != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDGenerator))
	}

	tel, shutdown, err := setupTelemetry(commandContext(cmd), opts.OTLPEndpoint, opts.OTLPInsecure, logger)
	if err != nil {
		return formatter.Fail(ErrCodeGeneric, ExitCommandError, "failed to set up telemetry", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Error("error flushing telemetry", "error", err)
		}
	}()
	if tel != nil {
		engineOpts = append(engineOpts, engine.WithTelemetry(tel))
	}

	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ErrCodeStoreFailed, ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithRecorder(st))
	}

	eng := engine.New(executor, tracer, trace.NewParser(format, trace.WithLogger(logger)), engineOpts...)

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	result, runErr := eng.Run(ctx, commands)
	if runErr != nil && !engine.IsExecutorFailure(runErr) {
		code, exit := classifyRunError(runErr)
		return formatter.Fail(code, exit, "run failed", runErr)
	}

	if err := formatter.Result(result, func(w io.Writer) { writeRunText(w, result) }); err != nil {
		return err
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "commands failed", runErr)
	}
	return nil
}

// newLogger configures the process logger based on the verbose flag.
func newLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(commandContext(cmd))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// commandContext returns the command's context if set (for testing),
// otherwise a background context.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// classifyRunError maps an engine error to a CLI error code and exit code.
func classifyRunError(err error) (string, int) {
	switch {
	case model.IsMalformedCommand(err):
		return ErrCodeMalformedCommand, ExitCommandError
	case model.IsDuplicateCommand(err):
		return ErrCodeDuplicateCommand, ExitCommandError
	case engine.IsTraceUnavailableError(err):
		return ErrCodeTraceUnavailable, ExitCommandError
	case engine.IsRoundLimitError(err):
		return ErrCodeRoundLimit, ExitCommandError
	case engine.IsExecutionError(err):
		return ErrCodeExecutionError, ExitCommandError
	case engine.IsExecutorFailure(err):
		return ErrCodeExecutorFailure, ExitFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeGeneric, ExitFailure
	default:
		return ErrCodeGeneric, ExitCommandError
	}
}

// outputLoadError reports a command-list load failure.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Error(), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
	}
	return formatter.Fail(ErrCodeGeneric, ExitCommandError, "failed to load commands", err)
}

var _ engine.Recorder = (*store.Store)(nil)
