package analyzer

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parorch/internal/ir"
	"github.com/roach88/parorch/internal/model"
)

// sets is a command's observed reads and writes for one round.
type sets struct {
	reads  []string
	writes []string
}

// commit stages and commits one round for workset.
func commit(t *testing.T, m *model.Model, round int, workset []*model.Command, observed map[string]sets) {
	t.Helper()
	r := m.BeginRound(round, workset)
	for identity, s := range observed {
		for _, p := range s.reads {
			require.NoError(t, r.AddRead(identity, p))
		}
		for _, p := range s.writes {
			require.NoError(t, r.AddWrite(identity, p))
		}
	}
	require.NoError(t, r.Commit())
}

func identities(cmds []*model.Command) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Identity)
	}
	return out
}

// =============================================================================
// Forward dependencies
// =============================================================================

func TestAnalyze_GrepChain(t *testing.T) {
	m, err := model.New([]string{
		"grep foo in1 > out1",
		"grep foo out1 > out11",
		"grep foo out11 > out111",
	})
	require.NoError(t, err)

	ws := m.Workset()
	commit(t, m, 1, ws, map[string]sets{
		"grep foo in1":   {reads: []string{"in1"}, writes: []string{"out1"}},
		"grep foo out1":  {reads: []string{"out1"}, writes: []string{"out11"}},
		"grep foo out11": {reads: []string{"out11"}, writes: []string{"out111"}},
	})

	a := Analyze(1, ws)
	assert.Equal(t, []string{"grep foo out1", "grep foo out11"}, identities(a.Next))
	assert.Equal(t, []string{"grep foo in1"}, identities(a.Dropped))
	assert.Equal(t, []ir.Dependency{
		{Round: 1, From: "grep foo in1", To: "grep foo out1", Paths: []string{"out1"}},
		{Round: 1, From: "grep foo out1", To: "grep foo out11", Paths: []string{"out11"}},
	}, a.Dependencies)

	// Round 2 reasons only against cmd2 as the sole predecessor.
	ws = a.Next
	commit(t, m, 2, ws, map[string]sets{
		"grep foo out1":  {reads: []string{"out1"}, writes: []string{"out11"}},
		"grep foo out11": {reads: []string{"out11"}, writes: []string{"out111"}},
	})
	a = Analyze(2, ws)
	assert.Equal(t, []string{"grep foo out11"}, identities(a.Next))
	assert.Equal(t, []string{"grep foo out1"}, identities(a.Dropped))

	ws = a.Next
	commit(t, m, 3, ws, map[string]sets{
		"grep foo out11": {reads: []string{"out11"}, writes: []string{"out111"}},
	})
	a = Analyze(3, ws)
	assert.Empty(t, a.Next)
	assert.Equal(t, []string{"grep foo out11"}, identities(a.Dropped))
	assert.Empty(t, a.Violations)
}

func TestAnalyze_NoSharingEmptiesWorkset(t *testing.T) {
	m, err := model.New([]string{"sort a > a.out", "sort b > b.out", "sort c > c.out"})
	require.NoError(t, err)

	ws := m.Workset()
	commit(t, m, 1, ws, map[string]sets{
		"sort a": {reads: []string{"a"}, writes: []string{"a.out"}},
		"sort b": {reads: []string{"b"}, writes: []string{"b.out"}},
		"sort c": {reads: []string{"c"}, writes: []string{"c.out"}},
	})

	a := Analyze(1, ws)
	assert.Empty(t, a.Next)
	assert.Empty(t, a.Dependencies)
	assert.Len(t, a.Dropped, 3)
}

func TestForwardDependencies_OrderSensitive(t *testing.T) {
	m, err := model.New([]string{"A", "B", "C"})
	require.NoError(t, err)

	ws := m.Workset()
	commit(t, m, 1, ws, map[string]sets{
		"A": {writes: []string{"X"}},
		"B": {reads: []string{"Y"}},
		"C": {reads: []string{"X"}},
	})

	deps := ForwardDependencies(1, ws)
	require.Len(t, deps, 1)
	assert.Equal(t, "A", deps[0].From)
	assert.Equal(t, "C", deps[0].To)

	assert.Equal(t, []string{"C"}, identities(NextWorkset(ws, deps)))
}

func TestForwardDependencies_BackwardIgnored(t *testing.T) {
	m, err := model.New([]string{"A", "B"})
	require.NoError(t, err)

	ws := m.Workset()
	commit(t, m, 1, ws, map[string]sets{
		"A": {reads: []string{"X"}},
		"B": {writes: []string{"X"}},
	})

	assert.Empty(t, ForwardDependencies(1, ws))
}

func TestForwardDependencies_SelfReadWriteIgnored(t *testing.T) {
	m, err := model.New([]string{"A"})
	require.NoError(t, err)

	ws := m.Workset()
	commit(t, m, 1, ws, map[string]sets{
		"A": {reads: []string{"X"}, writes: []string{"X"}},
	})

	assert.Empty(t, ForwardDependencies(1, ws))
}

func TestNextWorkset_NoDuplicates(t *testing.T) {
	m, err := model.New([]string{"A", "B", "C"})
	require.NoError(t, err)

	ws := m.Workset()
	commit(t, m, 1, ws, map[string]sets{
		"A": {writes: []string{"X", "Z"}},
		"B": {writes: []string{"Y"}},
		"C": {reads: []string{"X", "Y", "Z"}},
	})

	deps := ForwardDependencies(1, ws)
	require.Len(t, deps, 2)
	assert.Equal(t, []string{"X", "Z"}, deps[0].Paths)
	assert.Equal(t, []string{"C"}, identities(NextWorkset(ws, deps)))
}

func TestAnalyze_FirstCommandAlwaysDropped(t *testing.T) {
	// A cycle between A and B cannot keep A: it has no predecessor.
	m, err := model.New([]string{"A", "B"})
	require.NoError(t, err)

	ws := m.Workset()
	commit(t, m, 1, ws, map[string]sets{
		"A": {reads: []string{"Y"}, writes: []string{"X"}},
		"B": {reads: []string{"X"}, writes: []string{"Y"}},
	})

	a := Analyze(1, ws)
	assert.Equal(t, []string{"B"}, identities(a.Next))
	assert.Equal(t, []string{"A"}, identities(a.Dropped))
}

// =============================================================================
// Idempotence violations
// =============================================================================

func TestDetectViolations(t *testing.T) {
	m, err := model.New([]string{"gen", "use"})
	require.NoError(t, err)

	ws := m.Workset()
	commit(t, m, 1, ws, map[string]sets{
		"gen": {writes: []string{"x"}},
		"use": {reads: []string{"x"}, writes: []string{"out-1"}},
	})
	assert.Empty(t, DetectViolations(1, ws), "first round has nothing to compare")

	next := ws[1:]
	commit(t, m, 2, next, map[string]sets{
		"use": {reads: []string{"x"}, writes: []string{"out-2"}},
	})

	got := DetectViolations(2, next)
	require.Len(t, got, 1)
	assert.Equal(t, ir.IdempotenceViolation{
		Identity:   "use",
		Round:      2,
		WritesDiff: []string{"out-1", "out-2"},
	}, got[0])
}

func TestDetectViolations_StableSets(t *testing.T) {
	m, err := model.New([]string{"a", "b"})
	require.NoError(t, err)

	ws := m.Workset()
	commit(t, m, 1, ws, map[string]sets{
		"a": {writes: []string{"x"}},
		"b": {reads: []string{"x"}},
	})
	next := ws[1:]
	commit(t, m, 2, next, map[string]sets{
		"b": {reads: []string{"x"}},
	})

	assert.Empty(t, DetectViolations(2, next))
}

// =============================================================================
// Properties
// =============================================================================

func TestAnalyze_WorksetShrinksProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	// Bit k of a mask selects name k, so overlaps and cycles are common.
	names := []string{"a", "b", "c", "d"}
	expand := func(mask uint8) []string {
		var out []string
		for k, n := range names {
			if mask&(1<<k) != 0 {
				out = append(out, n)
			}
		}
		return out
	}

	properties.Property("next workset is a strict ordered subset", prop.ForAll(
		func(n int, reads, writes []uint8) bool {
			raws := make([]string, n)
			for i := range raws {
				raws[i] = "cmd" + string(rune('A'+i))
			}
			m, err := model.New(raws)
			if err != nil {
				return false
			}
			ws := m.Workset()
			r := m.BeginRound(1, ws)
			for i, c := range ws {
				for _, p := range expand(reads[i]) {
					_ = r.AddRead(c.Identity, p)
				}
				for _, p := range expand(writes[i]) {
					_ = r.AddWrite(c.Identity, p)
				}
			}
			if r.Commit() != nil {
				return false
			}

			a := Analyze(1, ws)
			if len(a.Next) >= len(ws) || len(a.Next)+len(a.Dropped) != len(ws) {
				return false
			}
			for i := 1; i < len(a.Next); i++ {
				if a.Next[i-1].Position >= a.Next[i].Position {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 8),
		gen.SliceOfN(8, gen.UInt8Range(0, 15)),
		gen.SliceOfN(8, gen.UInt8Range(0, 15)),
	))

	properties.TestingRun(t)
}
