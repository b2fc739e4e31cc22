package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parorch/internal/ir"
)

var grepChainCommands = []string{
	"grep foo in1 > out1",
	"grep foo out1 > out11",
	"grep foo out11 > out111",
}

const grepChainTrace = `[No Command]: r1 = SpecialRef(stdout)
[Command sh Rikerfile]: r0 = PathRef(r1, "out1", -w-)
[Command sh Rikerfile]: Launch([Command grep foo in1], {1=r0})
[Command sh Rikerfile]: r1 = PathRef(r1, "out11", -w-)
[Command sh Rikerfile]: Launch([Command grep foo out1], {1=r1})
[Command sh Rikerfile]: r2 = PathRef(r1, "out111", -w-)
[Command sh Rikerfile]: Launch([Command grep foo out11], {1=r2})
[Command grep foo in1]: r0 = PathRef(r1, "in1", r--)
[Command grep foo out1]: r0 = PathRef(r1, "out1", r--)
[Command grep foo out11]: r0 = PathRef(r1, "out11", r--)
`

func grepChainScenario(assertions ...Assertion) *Scenario {
	return &Scenario{
		Name:        "grep_chain_inline",
		Description: "inline grep chain",
		Commands:    grepChainCommands,
		Trace:       grepChainTrace,
		Assertions:  assertions,
	}
}

func TestRun_GrepChainConverges(t *testing.T) {
	result, err := Run(grepChainScenario(
		Assertion{Type: AssertStatus, Status: ir.RunConverged},
		Assertion{Type: AssertRounds, Count: 3},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.ErrorCode)

	require.NotNil(t, result.Run)
	assert.True(t, result.Run.Converged)
	assert.Equal(t, [][]string{
		{"grep foo in1", "grep foo out1", "grep foo out11"},
		{"grep foo out1", "grep foo out11"},
		{"grep foo out11"},
	}, result.Run.Worksets)

	r1, ok := result.Round(1)
	require.True(t, ok)
	assert.Equal(t, []string{"grep foo out1", "grep foo out11"}, r1.Next)
	require.Len(t, r1.Dependencies, 2)
	assert.Equal(t, "grep foo in1", r1.Dependencies[0].From)
	assert.Equal(t, "grep foo out1", r1.Dependencies[0].To)
	assert.Equal(t, []string{"out1"}, r1.Dependencies[0].Paths)
}

func TestRun_RecordsRunID(t *testing.T) {
	s := grepChainScenario(Assertion{Type: AssertRounds, Count: 3})
	s.RunID = "fixed-run"

	result, err := Run(s)
	require.NoError(t, err)
	require.NotNil(t, result.Run)
	assert.Equal(t, "fixed-run", result.Run.RunID)
	for _, r := range result.Rounds {
		assert.Equal(t, "fixed-run", r.RunID)
	}
}

func TestRun_MissingTraceAborts(t *testing.T) {
	s := grepChainScenario(
		Assertion{Type: AssertStatus, Status: ir.RunAborted},
		Assertion{Type: AssertError, Code: "TRACE_UNAVAILABLE"},
		Assertion{Type: AssertRounds, Count: 1},
	)
	s.Rounds = []RoundScript{{Round: 2, Missing: true}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Nil(t, result.Run)
	assert.Error(t, result.RunErr)
}

func TestRun_TraceWithoutEventsAborts(t *testing.T) {
	s := grepChainScenario(
		Assertion{Type: AssertError, Code: "TRACE_UNAVAILABLE"},
		Assertion{Type: AssertRounds, Count: 0},
	)
	s.Trace = "not a trace line\n"

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, ir.RunAborted, result.Status)
}

func TestRun_ExecutorFailure(t *testing.T) {
	s := grepChainScenario(
		Assertion{Type: AssertStatus, Status: ir.RunFailed},
		Assertion{Type: AssertError, Code: "EXECUTOR_FAILURE"},
		Assertion{Type: AssertRounds, Count: 3},
	)
	s.ExitCodes = map[string]int{"grep foo out1 > out11": 1}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	c, ok := result.Command("grep foo out1")
	require.True(t, ok)
	assert.True(t, c.Failed)
	assert.Equal(t, 1, c.ExitCode)
	assert.Equal(t, 2, c.Executions)
}

func TestRun_RoundLimit(t *testing.T) {
	s := grepChainScenario(
		Assertion{Type: AssertStatus, Status: ir.RunAborted},
		Assertion{Type: AssertError, Code: "ROUND_LIMIT"},
		Assertion{Type: AssertRounds, Count: 1},
	)
	s.MaxRounds = 1

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_DuplicateCommandsRecordNothing(t *testing.T) {
	s := grepChainScenario(Assertion{Type: AssertError, Code: CodeDuplicateCommand})
	s.Commands = []string{"grep foo in1 > out1", "grep foo in1 > out2"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Status)
	assert.Empty(t, result.Rounds)
	assert.Nil(t, result.Run)
}

func TestRun_ResourcePoolNarrowsSets(t *testing.T) {
	s := grepChainScenario(
		Assertion{Type: AssertRounds, Count: 2},
		Assertion{Type: AssertSets, Command: "grep foo in1", Writes: []string{"out1"}},
		Assertion{Type: AssertSets, Command: "grep foo out11"},
		Assertion{Type: AssertNoDependency, From: "grep foo out1", To: "grep foo out11"},
	)
	s.Only = []string{"out1"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ViolationRecorded(t *testing.T) {
	s := grepChainScenario(Assertion{Type: AssertViolation, Command: "grep foo out11"})
	s.Rounds = []RoundScript{{
		Round: 2,
		Trace: grepChainTrace + "[Command grep foo out11]: r1 = PathRef(r1, \"extra\", r--)\n",
	}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	r2, ok := result.Round(2)
	require.True(t, ok)
	require.Len(t, r2.Violations, 1)
	assert.Equal(t, []string{"extra"}, r2.Violations[0].ReadsDiff)
}

func TestRun_FailingAssertionsReported(t *testing.T) {
	result, err := Run(grepChainScenario(
		Assertion{Type: AssertStatus, Status: ir.RunAborted},
		Assertion{Type: AssertRounds, Count: 3},
		Assertion{Type: AssertDropped, Command: "grep foo in1", Round: 2},
	))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `status "converged"`)
	assert.Contains(t, result.Errors[1], "dropped in round 1")
}

func TestRun_UnknownTraceFormat(t *testing.T) {
	s := grepChainScenario(Assertion{Type: AssertRounds, Count: 0})
	s.TraceFormat = "strace"

	_, err := Run(s)
	require.Error(t, err)
}

func TestRunFile(t *testing.T) {
	result, err := RunFile("testdata/scenarios/grep_chain.yaml")
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", strings.Join(result.Errors, "\n"))
}

func TestSplitTrace(t *testing.T) {
	assert.Nil(t, splitTrace(""))
	assert.Nil(t, splitTrace("\n"))
	assert.Equal(t, []string{"a", "b"}, splitTrace("a\nb\n"))
}
