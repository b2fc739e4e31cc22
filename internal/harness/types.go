package harness

import "github.com/roach88/parorch/internal/ir"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Run is the engine's result. Nil if the run was aborted.
	Run *ir.RunResult `json:"run,omitempty"`

	// RunErr is the error the engine returned, if any.
	RunErr error `json:"-"`

	// ErrorCode categorizes RunErr. Empty if the run returned no error.
	ErrorCode string `json:"error_code,omitempty"`

	// Status is the stored run status. Empty if nothing was recorded
	// (the command list was rejected before the run began).
	Status string `json:"status,omitempty"`

	// Rounds are the rounds as recorded by the store, in round order.
	Rounds []ir.RoundRecord `json:"rounds"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Rounds: []ir.RoundRecord{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Round returns the recorded round n.
func (r *Result) Round(n int) (ir.RoundRecord, bool) {
	for _, rec := range r.Rounds {
		if rec.Round == n {
			return rec, true
		}
	}
	return ir.RoundRecord{}, false
}

// Command returns the final result row of identity.
func (r *Result) Command(identity string) (ir.CommandResult, bool) {
	if r.Run == nil {
		return ir.CommandResult{}, false
	}
	for _, c := range r.Run.Commands {
		if c.Identity == identity {
			return c, true
		}
	}
	return ir.CommandResult{}, false
}
