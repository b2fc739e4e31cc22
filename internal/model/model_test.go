package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parorch/internal/ir"
)

var grepChain = []string{
	"grep foo in1 > out1",
	"grep foo out1 > out11",
	"grep foo out11 > out111",
}

func TestNew_ProgramOrder(t *testing.T) {
	m, err := New(grepChain)
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())

	for i, c := range m.Commands() {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, grepChain[i], c.Raw)
		assert.Equal(t, ir.MustCommandID(c.Identity), c.ID)
	}
	assert.Equal(t, "grep foo out1", m.Commands()[1].Identity)
}

func TestNew_Malformed(t *testing.T) {
	_, err := New([]string{"ls", "> out"})
	require.Error(t, err)

	var me *MalformedCommandError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, 1, me.Position)
	assert.Contains(t, err.Error(), "#2")
}

func TestNew_Duplicate(t *testing.T) {
	_, err := New([]string{"grep foo in1 > a", "ls", "grep foo in1 > b"})
	require.Error(t, err)
	assert.True(t, IsDuplicateCommand(err))

	var de *DuplicateCommandError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 0, de.First)
	assert.Equal(t, 2, de.Second)
}

func TestReplaceSets(t *testing.T) {
	m, err := New(grepChain)
	require.NoError(t, err)

	require.NoError(t, m.ReplaceReadSet("grep foo out1", []string{"out1", "x"}))
	require.NoError(t, m.ReplaceReadSet("grep foo out1", []string{"out1"}))
	require.NoError(t, m.ReplaceWriteSet("grep foo out1", []string{"out11"}))

	c, ok := m.Lookup("grep foo out1")
	require.True(t, ok)
	assert.Equal(t, []string{"out1"}, c.ReadSet().Sorted(), "replace, not merge")
	assert.Equal(t, []string{"out11"}, c.WriteSet().Sorted())

	err = m.ReplaceReadSet("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestRound_StagedInvisibleUntilCommit(t *testing.T) {
	m, err := New(grepChain)
	require.NoError(t, err)

	r := m.BeginRound(1, m.Workset())
	require.NoError(t, r.AddWrite("grep foo in1", "out1"))
	require.NoError(t, r.AddRead("grep foo out1", "out1"))

	c, _ := m.Lookup("grep foo in1")
	assert.Equal(t, 0, c.WriteSet().Len(), "staged additions are not visible before commit")

	require.NoError(t, r.Commit())
	assert.Equal(t, []string{"out1"}, c.WriteSet().Sorted())
	assert.Equal(t, 1, c.Current().Round)

	assert.Error(t, r.Commit(), "a round commits once")
}

func TestRound_CommitReplacesWholesale(t *testing.T) {
	m, err := New(grepChain)
	require.NoError(t, err)

	r1 := m.BeginRound(1, m.Workset())
	require.NoError(t, r1.AddRead("grep foo out1", "stale"))
	require.NoError(t, r1.Commit())

	c, _ := m.Lookup("grep foo out1")
	r2 := m.BeginRound(2, []*Command{c})
	require.NoError(t, r2.AddRead("grep foo out1", "out1"))
	require.NoError(t, r2.Commit())

	assert.Equal(t, []string{"out1"}, c.ReadSet().Sorted())
	prev, ok := c.Previous()
	require.True(t, ok)
	assert.Equal(t, 1, prev.Round)
	assert.Equal(t, []string{"stale"}, prev.Reads.Sorted())
}

func TestRound_RejectsCommandsOutsideWorkset(t *testing.T) {
	m, err := New(grepChain)
	require.NoError(t, err)
	c, _ := m.Lookup("grep foo out11")

	r := m.BeginRound(2, []*Command{c})
	assert.False(t, r.Has("grep foo in1"))
	assert.ErrorIs(t, r.AddRead("grep foo in1", "in1"), ErrUnknownCommand)
}

func TestResourcePool(t *testing.T) {
	m, err := New(grepChain, WithResourcePool("in1", "out1", "out11", "out111"))
	require.NoError(t, err)

	r := m.BeginRound(1, m.Workset())
	require.NoError(t, r.AddRead("grep foo in1", "in1"))
	require.NoError(t, r.AddRead("grep foo in1", "/etc/ld.so.cache"))
	require.NoError(t, r.Commit())

	c, _ := m.Lookup("grep foo in1")
	assert.Equal(t, []string{"in1"}, c.ReadSet().Sorted())
}

func TestResults(t *testing.T) {
	m, err := New(grepChain)
	require.NoError(t, err)

	require.NoError(t, m.RecordExecution("grep foo in1", ir.CommandStatus{Command: grepChain[0], ExitCode: 0}))
	require.NoError(t, m.RecordExecution("grep foo out1", ir.CommandStatus{Command: grepChain[1], ExitCode: 1}))
	require.NoError(t, m.MarkDropped("grep foo in1", 1))

	res := m.Results()
	require.Len(t, res, 3)
	assert.Equal(t, 1, res[0].DroppedRound)
	assert.Equal(t, 1, res[0].Executions)
	assert.False(t, res[0].Failed)
	assert.True(t, res[1].Failed)
	assert.Equal(t, 1, res[1].ExitCode)
	assert.Equal(t, []string{}, res[2].ReadSet)
}
