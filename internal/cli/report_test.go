package cli

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parorch/internal/ir"
	"github.com/roach88/parorch/internal/store"
)

// seedStore records one converged and one aborted run.
func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.BeginRun(ctx, ir.RunRecord{
		RunID: "run-a", Commands: []string{"ls > x"}, TraceFormat: "riker", MaxRounds: 1, SchedulerVersion: ir.SchedulerVersion,
	}))
	require.NoError(t, st.RecordRound(ctx, ir.RoundRecord{
		RunID: "run-a", Round: 1, Workset: []string{"ls"}, Next: []string{}, Opens: 1, Unresolved: 1,
		Statuses: []ir.CommandStatus{{Command: "ls > x"}},
		Sets:     []ir.CommandSets{{Identity: "ls", Reads: []string{"."}, Writes: []string{"x"}}},
	}))
	require.NoError(t, st.FinishRun(ctx, "run-a", ir.RunConverged, &ir.RunResult{RunID: "run-a", Rounds: 1, Converged: true}, nil))

	require.NoError(t, st.BeginRun(ctx, ir.RunRecord{
		RunID: "run-b", Commands: []string{"ls"}, TraceFormat: "riker", MaxRounds: 1, SchedulerVersion: ir.SchedulerVersion,
	}))
	require.NoError(t, st.FinishRun(ctx, "run-b", ir.RunAborted, nil, errors.New("TRACE_UNAVAILABLE: empty trace")))
	return path
}

func executeReport(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	stdout, stderr := buffers()
	cmd := NewReportCommand(&RootOptions{Format: format})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestReport_List(t *testing.T) {
	db := seedStore(t)

	output, err := executeReport(t, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, output, "run-b  aborted")
	assert.Contains(t, output, "TRACE_UNAVAILABLE: empty trace")
	assert.Contains(t, output, "run-a  converged")
	assert.Less(t, strings.Index(output, "run-b"), strings.Index(output, "run-a"), "newest first")
}

func TestReport_ListJSON(t *testing.T) {
	db := seedStore(t)

	output, err := executeReport(t, "json", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Data []store.RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "run-b", resp.Data[0].ID)
	assert.Equal(t, 1, resp.Data[1].Rounds)
}

func TestReport_Show(t *testing.T) {
	db := seedStore(t)

	output, err := executeReport(t, "text", "--db", db, "run-a")
	require.NoError(t, err)
	assert.Contains(t, output, "Run run-a (#1): converged")
	assert.Contains(t, output, "Round 1: 1 command(s), 1 open(s), 0 launch(es), 0 skipped, 1 unresolved")
	assert.Contains(t, output, "ls [ok]")
	assert.Contains(t, output, "writes: x")
}

func TestReport_UnknownRun(t *testing.T) {
	db := seedStore(t)

	output, err := executeReport(t, "text", "--db", db, "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, ErrCodeRunNotFound)
}

func TestReport_DatabaseFromEnv(t *testing.T) {
	db := seedStore(t)
	t.Setenv("PARORCH_DB", db)

	output, err := executeReport(t, "text")
	require.NoError(t, err)
	assert.Contains(t, output, "run-a")
}

func TestReport_NoDatabase(t *testing.T) {
	t.Setenv("PARORCH_DB", "")

	output, err := executeReport(t, "text")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "no database")
}
