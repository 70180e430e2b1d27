// Package harness provides scenario testing for choreography definitions.
//
// The harness compiles definitions, drives a real engine.Choreographer on a
// deterministic manual clock through a scripted sequence of signals and
// frame advances, records everything through the trace store, and checks
// assertions against the resulting command trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	definitions_file: defs/dispatch.yaml   # or inline `definitions:`
//	script:
//	  - signal: task_dispatch
//	    payload: { to: solver }
//	    correlation_id: task-1
//	  - advance: 16          # one frame, 16ms later
//	    repeat: 3            # ...three times
//	  - run_until_idle: 16   # frames of 16ms until nothing is scheduled
//	  - dispose: true
//	assertions:
//	  - type: command_count
//	    kind: complete
//	    action: move
//	    count: 1
//	  - type: progress_near
//	    action: move
//	    at: 516
//	    progress: 0.5
//
// # Assertion Types
//
//   - command_count: Exactly N commands match kind/action/entity filters
//   - command_order: Actions first appear in the given order
//   - command_contains: Some command matches the filters and params subset
//   - progress_near: The update for an action at a time is within tolerance
//   - active_count: The engine ends with exactly N live performances
//
// # Deterministic Testing
//
// Each scenario runs on a fresh testutil.ManualClock, where every advance
// fires exactly one frame, with per-engine performance IDs (perf-1,
// perf-2, ...) and an isolated in-memory SQLite store. Traces are therefore
// identical across runs and suitable for golden snapshot comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/dispatch.yaml")
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
