package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/parorch/internal/ir"
)

// RunSnapshot captures the recorded rounds and final sets of a scenario.
type RunSnapshot struct {
	ScenarioName string
	Status       string
	ErrorCode    string
	Rounds       []ir.RoundRecord
	Commands     []ir.CommandResult // Empty if the run was aborted
}

// NewRunSnapshot builds the snapshot of result.
func NewRunSnapshot(name string, result *Result) RunSnapshot {
	s := RunSnapshot{
		ScenarioName: name,
		Status:       result.Status,
		ErrorCode:    result.ErrorCode,
		Rounds:       result.Rounds,
	}
	if result.Run != nil {
		s.Commands = result.Run.Commands
	}
	return s
}

// toCanonicalMap converts a RunSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles maps, slices and primitives.
// Digests are left out so that a change to the digest scheme does not
// rewrite every snapshot.
func (s *RunSnapshot) toCanonicalMap() map[string]any {
	rounds := make([]any, len(s.Rounds))
	for i, r := range s.Rounds {
		deps := make([]any, len(r.Dependencies))
		for j, d := range r.Dependencies {
			deps[j] = map[string]any{
				"from":  d.From,
				"to":    d.To,
				"paths": d.Paths,
			}
		}
		failed := []string{}
		for j, st := range r.Statuses {
			if st.Failed() {
				failed = append(failed, r.Workset[j])
			}
		}
		rounds[i] = map[string]any{
			"round":        r.Round,
			"workset":      r.Workset,
			"next":         r.Next,
			"dependencies": deps,
			"failed":       failed,
			"skipped":      r.Skipped,
		}
	}

	commands := make([]any, len(s.Commands))
	for i, c := range s.Commands {
		commands[i] = map[string]any{
			"identity":      c.Identity,
			"reads":         c.ReadSet,
			"writes":        c.WriteSet,
			"dropped_round": c.DroppedRound,
			"executions":    c.Executions,
			"exit_code":     c.ExitCode,
		}
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"status":        s.Status,
		"rounds":        rounds,
		"commands":      commands,
	}
	if s.ErrorCode != "" {
		result["error_code"] = s.ErrorCode
	}
	return result
}

// MarshalCanonical serializes the snapshot as canonical JSON.
func (s *RunSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's snapshot against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewRunSnapshot(scenarioName, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
