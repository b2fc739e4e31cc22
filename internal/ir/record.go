package ir

// RunRecord describes a run when it starts.
type RunRecord struct {
	RunID            string   `json:"run_id"`
	Commands         []string `json:"commands"` // Raw text, program order
	TraceFormat      string   `json:"trace_format"`
	MaxRounds        int      `json:"max_rounds"`
	SchedulerVersion string   `json:"scheduler_version"`
}

// RoundRecord is everything one round observed and decided.
// Statuses[i] and Sets[i] belong to Workset[i].
type RoundRecord struct {
	RunID         string                 `json:"run_id"`
	Round         int                    `json:"round"`
	Workset       []string               `json:"workset"` // Identities, program order
	WorksetDigest string                 `json:"workset_digest"`
	TraceDigest   string                 `json:"trace_digest"`
	Next          []string               `json:"next"`
	Opens         int                    `json:"opens"`
	Launches      int                    `json:"launches"`
	Skipped       int                    `json:"skipped"`
	Unresolved    int                    `json:"unresolved"` // Launch bindings naming no reference
	Statuses      []CommandStatus        `json:"statuses"`
	Sets          []CommandSets          `json:"sets"`
	Dependencies  []Dependency           `json:"dependencies"`
	Violations    []IdempotenceViolation `json:"violations,omitempty"`
}

// CommandSets is the committed read and write sets of one workset command
// at the end of a round.
type CommandSets struct {
	Identity string   `json:"identity"`
	Reads    []string `json:"reads"`
	Writes   []string `json:"writes"`
}

// Run statuses persisted with a finished run.
const (
	RunConverged = "converged"
	RunFailed    = "failed" // Converged, but at least one command failed
	RunAborted   = "aborted"
)
