package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/choreo/internal/ir"
	"github.com/roach88/choreo/internal/store"
)

// TimelineSnapshot captures the merged signal and command timeline of a
// scenario execution. Serialized with canonical JSON for deterministic
// comparison.
type TimelineSnapshot struct {
	ScenarioName string
	Timeline     []store.TimelineEvent
}

// toCanonicalMap converts a TimelineSnapshot to a map[string]any for canonical JSON serialization.
// Times are milliseconds and progress is permille so the snapshot holds integers only.
func (s *TimelineSnapshot) toCanonicalMap() map[string]any {
	events := make([]any, len(s.Timeline))
	for i, event := range s.Timeline {
		switch event.Type {
		case store.EventSignal:
			m := map[string]any{
				"seq":     event.Seq,
				"at":      event.At.Milliseconds(),
				"kind":    "signal",
				"signal":  event.Signal.Signal.Type,
				"payload": event.Signal.Signal.Payload,
			}
			if event.Signal.CorrelationID != "" {
				m["correlation_id"] = event.Signal.CorrelationID
			}
			events[i] = m
		default:
			events[i] = event.Command.ToMap()
		}
	}

	return map[string]any{
		"scenario": s.ScenarioName,
		"timeline": events,
	}
}

// RunWithGolden executes a scenario and compares its timeline against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the timeline doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's timeline against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
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

// SnapshotJSON renders a result's timeline as canonical JSON.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TimelineSnapshot{
		ScenarioName: scenarioName,
		Timeline:     result.Timeline,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}
