package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parorch/internal/ir"
	"github.com/roach88/parorch/internal/testutil"
)

// runResponse is the JSON envelope of a successful run.
type runResponse struct {
	Status string       `json:"status"`
	Data   ir.RunResult `json:"data"`
}

func grepChainTracer() *testutil.ScriptedTracer {
	return testutil.NewScriptedTracer().
		Script(1, traceLines()...).
		Script(2, traceLines()...).
		Script(3, traceLines()...)
}

func newTestRunCommand(format string, ex *testutil.StaticExecutor, tr *testutil.ScriptedTracer) (*RunOptions, func(args ...string) (string, string, error)) {
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: format},
		RunIDGenerator: testutil.FixedRunIDGenerator{ID: "run-1"},
		Executor:       ex,
		Tracer:         tr,
	}
	exec := func(args ...string) (string, string, error) {
		stdout, stderr := buffers()
		cmd := newRunCommand(opts)
		cmd.SetOut(stdout)
		cmd.SetErr(stderr)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return stdout.String(), stderr.String(), err
	}
	return opts, exec
}

func TestRun_GrepChainJSON(t *testing.T) {
	commands := writeFile(t, "commands.txt", grepChainCommands)
	ex := &testutil.StaticExecutor{}
	tr := grepChainTracer()
	_, run := newTestRunCommand("json", ex, tr)

	stdout, _, err := run(commands)
	require.NoError(t, err)

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)

	r := resp.Data
	assert.Equal(t, "run-1", r.RunID)
	assert.True(t, r.Converged)
	assert.Equal(t, 3, r.Rounds)
	assert.Equal(t, [][]string{
		{"grep foo in1", "grep foo out1", "grep foo out11"},
		{"grep foo out1", "grep foo out11"},
		{"grep foo out11"},
	}, r.Worksets)
	require.Len(t, r.Commands, 3)
	assert.Equal(t, []string{"out1"}, r.Commands[1].ReadSet)
	assert.Equal(t, []string{"out11"}, r.Commands[1].WriteSet)
	assert.Equal(t, 3, r.Commands[2].Executions)

	assert.Equal(t, []int{1, 2, 3}, tr.Acquired())
	assert.Len(t, ex.Requests(), 3)
}

func TestRun_GrepChainText(t *testing.T) {
	commands := writeFile(t, "commands.txt", grepChainCommands)
	_, run := newTestRunCommand("text", &testutil.StaticExecutor{}, grepChainTracer())

	stdout, stderr, err := run(commands)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Round 1: 3 command(s)")
	assert.Contains(t, stdout, `round 1: "grep foo out1" depends on "grep foo in1" through out1`)
	assert.Contains(t, stdout, "✓ Converged after 3 round(s)")
	assert.Contains(t, stderr, "commands loaded")
}

func TestRun_OnlyFilter(t *testing.T) {
	commands := writeFile(t, "commands.txt", grepChainCommands)
	_, run := newTestRunCommand("json", &testutil.StaticExecutor{}, grepChainTracer())

	// Without out1 in the pool no dependency is observable through it.
	stdout, _, err := run("--only", "out11", "--only", "out111", commands)
	require.NoError(t, err)

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, [][]string{
		{"grep foo in1", "grep foo out1", "grep foo out11"},
		{"grep foo out11"},
	}, resp.Data.Worksets)
	assert.Empty(t, resp.Data.Commands[0].WriteSet)
}

func TestRun_ExecutorFailureExitsOne(t *testing.T) {
	commands := writeFile(t, "commands.txt", grepChainCommands)
	ex := &testutil.StaticExecutor{ExitCodes: map[string]int{"grep foo out11 > out111": 1}}
	_, run := newTestRunCommand("text", ex, grepChainTracer())

	stdout, _, err := run(commands)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "exit 1")
	assert.Contains(t, stdout, "✓ Converged")
}

func TestRun_TraceUnavailable(t *testing.T) {
	commands := writeFile(t, "commands.txt", grepChainCommands)
	_, run := newTestRunCommand("json", &testutil.StaticExecutor{}, testutil.NewScriptedTracer())

	stdout, _, err := run(commands)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeTraceUnavailable, resp.Error.Code)
}

func TestRun_DuplicateCommands(t *testing.T) {
	commands := writeFile(t, "commands.txt", "grep foo in1 > a\ngrep foo in1 > b\n")
	_, run := newTestRunCommand("text", &testutil.StaticExecutor{}, grepChainTracer())

	stdout, _, err := run(commands)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeDuplicateCommand)
}

func TestRun_RoundLimit(t *testing.T) {
	commands := writeFile(t, "commands.txt", grepChainCommands)
	_, run := newTestRunCommand("text", &testutil.StaticExecutor{}, grepChainTracer())

	stdout, _, err := run("--max-rounds", "2", commands)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeRoundLimit)
}

func TestRun_UnknownTraceFormat(t *testing.T) {
	commands := writeFile(t, "commands.txt", grepChainCommands)
	_, run := newTestRunCommand("text", &testutil.StaticExecutor{}, grepChainTracer())

	stdout, _, err := run("--trace-format", "strace", commands)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeTraceFormat)
}

func TestRun_MissingCommandsFile(t *testing.T) {
	_, run := newTestRunCommand("text", &testutil.StaticExecutor{}, grepChainTracer())

	stdout, _, err := run("/nonexistent/commands.txt")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "not found")
}

func TestRun_RecordsToDatabase(t *testing.T) {
	commands := writeFile(t, "commands.txt", grepChainCommands)
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	_, run := newTestRunCommand("text", &testutil.StaticExecutor{}, grepChainTracer())

	_, _, err := run("--db", dbPath, commands)
	require.NoError(t, err)

	stdout, stderr := buffers()
	report := NewReportCommand(&RootOptions{Format: "text"})
	report.SetOut(stdout)
	report.SetErr(stderr)
	report.SetArgs([]string{"--db", dbPath, "run-1"})
	require.NoError(t, report.ExecuteContext(context.Background()))

	assert.Contains(t, stdout.String(), "Run run-1 (#1): converged")
	assert.Contains(t, stdout.String(), "Round 3: 1 command(s)")
}

func TestRun_Cancelled(t *testing.T) {
	commands := writeFile(t, "commands.txt", grepChainCommands)
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "text"},
		RunIDGenerator: testutil.FixedRunIDGenerator{ID: "run-1"},
		Executor:       &testutil.StaticExecutor{},
		Tracer:         grepChainTracer(),
	}
	stdout, stderr := buffers()
	cmd := newRunCommand(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{commands})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
