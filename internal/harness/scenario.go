package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario schedules a command list against scripted traces and asserts
// on the rounds the engine records.
type Scenario struct {
	// Name uniquely identifies this scenario. Used as the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Commands is the command list, in program order.
	Commands []string `yaml:"commands"`

	// TraceFormat selects the trace format. Defaults to "riker".
	TraceFormat string `yaml:"trace_format,omitempty"`

	// MaxRounds is the round limit. 0 means the number of commands.
	MaxRounds int `yaml:"max_rounds,omitempty"`

	// Only limits read/write sets to these file names.
	Only []string `yaml:"only,omitempty"`

	// ExitCodes maps raw command text to the exit code the scripted
	// executor reports for it in every round. Unlisted commands exit 0.
	ExitCodes map[string]int `yaml:"exit_codes,omitempty"`

	// Trace is the log of every round not listed in Rounds.
	Trace string `yaml:"trace,omitempty"`

	// Rounds overrides the trace of individual rounds.
	Rounds []RoundScript `yaml:"rounds,omitempty"`

	// Assertions validate the recorded run.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run ID.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// RoundScript is the scripted trace of one round.
type RoundScript struct {
	// Round is the 1-based round number.
	Round int `yaml:"round"`

	// Trace is the round's log, inline.
	Trace string `yaml:"trace,omitempty"`

	// TraceFile is a path to the round's log. Relative paths are resolved
	// from the scenario file's directory by LoadScenario.
	TraceFile string `yaml:"trace_file,omitempty"`

	// Missing makes the round's trace unavailable.
	Missing bool `yaml:"missing,omitempty"`
}

// Assertion validates the recorded run.
type Assertion struct {
	// Type specifies the assertion type. See the Assert* constants.
	Type string `yaml:"type"`

	// Status is the expected stored status (used by status).
	Status string `yaml:"status,omitempty"`

	// Code is the expected error code (used by error).
	Code string `yaml:"code,omitempty"`

	// Count is the expected number (used by rounds, executions).
	Count int `yaml:"count,omitempty"`

	// Round is the round number (used by workset, dropped; optional for
	// dependency, where 0 means any round).
	Round int `yaml:"round,omitempty"`

	// Commands is the expected workset (used by workset).
	Commands []string `yaml:"commands,omitempty"`

	// From and To are command identities (used by dependency, no_dependency).
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// Paths are the expected shared names (optional for dependency).
	Paths []string `yaml:"paths,omitempty"`

	// Command is a command identity (used by sets, dropped, executions,
	// violation).
	Command string `yaml:"command,omitempty"`

	// Reads and Writes are the expected final sets (used by sets).
	Reads  []string `yaml:"reads,omitempty"`
	Writes []string `yaml:"writes,omitempty"`
}

// Assertion type constants.
const (
	AssertStatus       = "status"
	AssertError        = "error"
	AssertRounds       = "rounds"
	AssertWorkset      = "workset"
	AssertDependency   = "dependency"
	AssertNoDependency = "no_dependency"
	AssertSets         = "sets"
	AssertDropped      = "dropped"
	AssertExecutions   = "executions"
	AssertViolation    = "violation"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Relative trace_file paths are resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve trace paths relative to the scenario BEFORE validation
	base := filepath.Dir(path)
	for i, r := range scenario.Rounds {
		if r.TraceFile != "" && !filepath.IsAbs(r.TraceFile) {
			scenario.Rounds[i].TraceFile = filepath.Join(base, r.TraceFile)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Commands) == 0 {
		return fmt.Errorf("commands list is required and must be non-empty")
	}

	if s.MaxRounds < 0 {
		return fmt.Errorf("max_rounds must not be negative")
	}

	if s.Trace == "" && len(s.Rounds) == 0 {
		return fmt.Errorf("trace or rounds is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[int]bool, len(s.Rounds))
	for i, r := range s.Rounds {
		if r.Round < 1 {
			return fmt.Errorf("rounds[%d]: round must be >= 1", i)
		}
		if seen[r.Round] {
			return fmt.Errorf("rounds[%d]: round %d listed twice", i, r.Round)
		}
		seen[r.Round] = true

		sources := 0
		if r.Trace != "" {
			sources++
		}
		if r.TraceFile != "" {
			sources++
		}
		if r.Missing {
			sources++
		}
		if sources != 1 {
			return fmt.Errorf("rounds[%d]: exactly one of trace, trace_file, missing is required", i)
		}
		if r.TraceFile != "" {
			if _, err := os.Stat(r.TraceFile); os.IsNotExist(err) {
				return fmt.Errorf("rounds[%d]: trace file not found: %s", i, r.TraceFile)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStatus:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status requires 'status' field", index)
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: error requires 'code' field", index)
		}
	case AssertRounds:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: rounds 'count' must not be negative", index)
		}
	case AssertWorkset:
		if a.Round < 1 {
			return fmt.Errorf("assertions[%d]: workset requires 'round' >= 1", index)
		}
	case AssertDependency, AssertNoDependency:
		if a.From == "" || a.To == "" {
			return fmt.Errorf("assertions[%d]: %s requires 'from' and 'to' fields", index, a.Type)
		}
	case AssertSets, AssertViolation:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: %s requires 'command' field", index, a.Type)
		}
	case AssertDropped:
		if a.Command == "" || a.Round < 1 {
			return fmt.Errorf("assertions[%d]: dropped requires 'command' and 'round' >= 1", index)
		}
	case AssertExecutions:
		if a.Command == "" || a.Count < 1 {
			return fmt.Errorf("assertions[%d]: executions requires 'command' and 'count' >= 1", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
