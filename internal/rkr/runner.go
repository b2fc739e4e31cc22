package rkr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/roach88/parorch/internal/ir"
)

const (
	// DefaultBinary is looked up on PATH.
	DefaultBinary = "rkr"

	// DefaultTraceFile is written inside the working directory.
	DefaultTraceFile = "rkr-trace.txt"

	// Rikerfile is the build script rkr runs.
	Rikerfile = "Rikerfile"
)

// Runner drives the rkr binary in one working directory.
type Runner struct {
	binary    string
	workdir   string
	traceFile string
	env       []string
	logger    *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithBinary sets the rkr executable. Default: DefaultBinary.
func WithBinary(path string) Option {
	return func(r *Runner) {
		r.binary = path
	}
}

// WithTraceFile sets the trace output file name, relative to the working
// directory unless absolute. An empty name keeps DefaultTraceFile.
func WithTraceFile(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.traceFile = name
		}
	}
}

// WithEnv appends KEY=VALUE entries to the environment rkr runs with.
// The rest of the environment is inherited.
func WithEnv(kv ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, kv...)
	}
}

// WithLogger sets the logger for rkr output. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a Runner for workdir.
func New(workdir string, opts ...Option) *Runner {
	r := &Runner{
		binary:    DefaultBinary,
		workdir:   workdir,
		traceFile: DefaultTraceFile,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute writes the Rikerfile for req and runs the build.
//
// rkr reports one exit code for the whole build, so every status carries
// it. Per-command statuses come from the Exit events of the trace; the
// batch code is only the fallback for a command that left none. A build
// that exits non-zero is still a report, not an error. The error return is
// reserved for a build that could not run.
func (r *Runner) Execute(ctx context.Context, req ir.ExecutionRequest) (ir.ExecutionReport, error) {
	if err := WriteRikerfile(filepath.Join(r.workdir, Rikerfile), req.Commands); err != nil {
		return ir.ExecutionReport{}, err
	}

	res, err := r.invoke(ctx, "--show")
	if err != nil {
		return ir.ExecutionReport{}, fmt.Errorf("round %d: %w", req.Round, err)
	}
	r.logger.Debug("rkr build finished", "round", req.Round, "exit_code", res.exitCode, "stdout_bytes", len(res.stdout))

	msg := ""
	if res.exitCode != 0 {
		msg = lastLine(res.stderr)
		r.logger.Warn("rkr build failed", "round", req.Round, "exit_code", res.exitCode, "stderr", msg)
	}
	report := ir.ExecutionReport{Statuses: make([]ir.CommandStatus, len(req.Commands))}
	for i, cmd := range req.Commands {
		report.Statuses[i] = ir.CommandStatus{Command: cmd, ExitCode: res.exitCode, Message: msg}
	}
	return report, nil
}

// Acquire dumps the trace of the last build and returns its lines.
func (r *Runner) Acquire(ctx context.Context, round int) ([]string, error) {
	path := r.traceFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.workdir, path)
	}
	// A stale dump from an earlier round must never be read back.
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale trace %s: %w", path, err)
	}

	res, err := r.invoke(ctx, "trace", "-o", path)
	if err != nil {
		return nil, fmt.Errorf("round %d: %w", round, err)
	}
	if res.exitCode != 0 {
		return nil, fmt.Errorf("round %d: rkr trace exited %d: %s", round, res.exitCode, lastLine(res.stderr))
	}
	return ReadTrace(path)
}

type invocation struct {
	stdout   []byte
	stderr   []byte
	exitCode int
}

// invoke runs rkr with args. Cancelling ctx kills rkr and every process it
// started.
func (r *Runner) invoke(ctx context.Context, args ...string) (*invocation, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = r.workdir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("rkr %s cancelled: %w", strings.Join(args, " "), ctx.Err())
	}
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s %s: %w", r.binary, strings.Join(args, " "), err)
		}
		exitCode = exitErr.ExitCode()
	}
	return &invocation{stdout: stdout.Bytes(), stderr: stderr.Bytes(), exitCode: exitCode}, nil
}

// WriteRikerfile writes commands as a build script that starts every
// command in the background and waits for all of them.
func WriteRikerfile(path string, commands []string) error {
	var b strings.Builder
	for _, c := range commands {
		b.WriteString(c)
		b.WriteString(" &\n")
	}
	b.WriteString("wait\n")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadTrace reads a trace dump into lines without their line endings.
func ReadTrace(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trace %s: %w", path, err)
	}
	return lines, nil
}

func lastLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
