package ir

// ExecutionRequest asks the external executor to run one round's workset
// as a concurrent batch. Commands are raw text, redirections included, in
// program order.
type ExecutionRequest struct {
	RunID    string
	Round    int
	Commands []string
}

// CommandStatus is the executor's outcome for one command of a round.
type CommandStatus struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Message  string `json:"message,omitempty"`
}

// Failed reports whether the command exited with a non-zero status.
func (s CommandStatus) Failed() bool { return s.ExitCode != 0 }

// ExecutionReport is what the executor returns once every command of the
// round has finished and its writes are committed.
type ExecutionReport struct {
	Statuses []CommandStatus
}

// Failures returns the statuses with a non-zero exit code, in request order.
func (r ExecutionReport) Failures() []CommandStatus {
	var out []CommandStatus
	for _, s := range r.Statuses {
		if s.Failed() {
			out = append(out, s)
		}
	}
	return out
}
