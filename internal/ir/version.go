package ir

// Version constants for results and the scheduler.
const (
	// ResultVersion is the schema version of RunResult as stored and printed.
	ResultVersion = "1"

	// SchedulerVersion is the parorch scheduler version.
	SchedulerVersion = "0.1.0"
)
