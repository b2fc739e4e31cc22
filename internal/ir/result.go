package ir

// CommandResult is the externally observable outcome for one command.
// ReadSet and WriteSet are the sets from the last round the command ran in.
type CommandResult struct {
	Position     int      `json:"position"`
	Raw          string   `json:"raw"`
	Identity     string   `json:"identity"`
	ReadSet      []string `json:"read_set"`
	WriteSet     []string `json:"write_set"`
	DroppedRound int      `json:"dropped_round"`
	Executions   int      `json:"executions"`
	Failed       bool     `json:"failed"`
	ExitCode     int      `json:"exit_code"`
}

// RunResult is the scheduler's result for a whole run.
// Commands are in program order. Worksets[i] is the workset executed in
// round i+1.
type RunResult struct {
	RunID        string                 `json:"run_id"`
	Rounds       int                    `json:"rounds"`
	Converged    bool                   `json:"converged"`
	Commands     []CommandResult        `json:"commands"`
	Dependencies []Dependency           `json:"dependencies"`
	Worksets     [][]string             `json:"worksets"`
	Violations   []IdempotenceViolation `json:"violations,omitempty"`
}

// FailedCommands returns the results of commands whose last execution failed.
func (r *RunResult) FailedCommands() []CommandResult {
	var out []CommandResult
	for _, c := range r.Commands {
		if c.Failed {
			out = append(out, c)
		}
	}
	return out
}
