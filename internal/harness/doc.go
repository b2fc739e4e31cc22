// Package harness provides conformance testing for the round scheduler.
//
// The harness runs a command list through the real engine with a scripted
// executor and scripted per-round traces, records the run in an in-memory
// store and checks the recorded rounds against assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	commands:
//	  - grep foo in1 > out1
//	  - grep foo out1 > out11
//	exit_codes:
//	  "grep foo out1 > out11": 1
//	trace: |
//	  [Command sh Rikerfile]: r0 = PathRef(r1, "out1", -w-)
//	  [Command sh Rikerfile]: Launch([Command grep foo in1], {1=r0})
//	  [Command grep foo out1]: r0 = PathRef(r1, "out1", r--)
//	rounds:
//	  - round: 2
//	    trace_file: round2.trace
//	  - round: 3
//	    missing: true
//	assertions:
//	  - type: rounds
//	    count: 2
//	  - type: dependency
//	    round: 1
//	    from: grep foo in1
//	    to: grep foo out1
//
// trace is used for every round that rounds does not list. trace_file is
// resolved relative to the scenario file.
//
// # Assertion Types
//
//   - status: the stored run status (converged, failed, aborted)
//   - error: the error code the run ended with
//   - rounds: the number of recorded rounds
//   - workset: the commands executed in a round, in program order
//   - dependency: a forward dependency was observed
//   - no_dependency: a forward dependency was never observed
//   - sets: a command's final read and write sets
//   - dropped: the round a command left the workset
//   - executions: how many rounds executed a command
//   - violation: a command's sets changed between consecutive rounds
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run ID, a fresh in-memory database and
// no real processes, so the recorded rounds are identical across machines
// and can be compared against golden snapshots.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/grep_chain.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
