package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/choreo/internal/ir"
)

func moveDefinition(duration int) []any {
	return []any{
		map[string]any{
			"on": "task_dispatch",
			"steps": []any{
				map[string]any{"action": "move", "entity": "signal.agent", "duration": duration},
			},
		},
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Definitions: moveDefinition(100),
		Script: []ScriptStep{
			{Signal: "task_dispatch", Payload: map[string]any{"agent": "coder"}},
			{RunUntilIdle: 50},
		},
		Assertions: []Assertion{
			{Type: AssertCommandCount, Kind: "complete", Action: "move", Count: intPtr(1)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.RunID)

	// start, update(0), update(0.5), complete
	require.Len(t, result.Trace, 4)
	assert.Equal(t, ir.CommandStart, result.Trace[0].Kind)
	assert.Equal(t, ir.CommandUpdate, result.Trace[1].Kind)
	assert.Equal(t, ir.CommandUpdate, result.Trace[2].Kind)
	assert.Equal(t, ir.CommandComplete, result.Trace[3].Kind)
	assert.Equal(t, "coder", result.Trace[3].EntityRef)
	assert.Equal(t, "perf-1", result.Trace[3].PerformanceID)

	// The signal leads the timeline.
	require.Len(t, result.Timeline, 5)
	assert.Equal(t, int64(1), result.Timeline[0].Seq)
	assert.Equal(t, "task_dispatch", result.Timeline[0].Signal.Signal.Type)
}

func TestRun_FailedAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "Assertion that does not hold",
		Definitions: moveDefinition(100),
		Script: []ScriptStep{
			{Signal: "task_dispatch", Payload: map[string]any{"agent": "coder"}},
			{Advance: 50},
		},
		Assertions: []Assertion{
			{Type: AssertCommandCount, Kind: "complete", Count: intPtr(1)},
			{Type: AssertActiveCount, Count: intPtr(1)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertion 0:")
	assert.Contains(t, result.Errors[0], "0 commands")
	assert.Equal(t, 1, result.ActiveCount)
}

func TestRun_RepeatAdvancesEachFrame(t *testing.T) {
	scenario := &Scenario{
		Name:        "repeat",
		Description: "Repeat fires one frame per advance",
		Definitions: moveDefinition(100),
		Script: []ScriptStep{
			{Signal: "task_dispatch", Payload: map[string]any{"agent": "coder"}},
			{Advance: 25, Repeat: 3},
		},
		Assertions: []Assertion{
			{Type: AssertCommandCount, Kind: "update", Count: intPtr(3)},
			{Type: AssertProgressNear, Action: "move", At: intPtr(75), Progress: floatPtr(0.5)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InterruptWithoutHandler(t *testing.T) {
	definitions := append(moveDefinition(1000), map[string]any{
		"on":         "task_error",
		"interrupts": true,
		"steps": []any{
			map[string]any{"action": "shake", "entity": "signal.agent"},
		},
	})

	scenario := &Scenario{
		Name:        "interrupt",
		Description: "Interrupt terminates a performance without a handler",
		Definitions: definitions,
		Script: []ScriptStep{
			{Signal: "task_dispatch", Payload: map[string]any{"agent": "coder"}, CorrelationID: "t1"},
			{Advance: 16},
			{Signal: "task_error", Payload: map[string]any{"agent": "coder"}, CorrelationID: "t1"},
			{RunUntilIdle: 16},
		},
		Assertions: []Assertion{
			{Type: AssertCommandCount, Kind: "interrupt", Count: intPtr(1)},
			{Type: AssertCommandCount, Kind: "complete", Count: intPtr(0)},
			{Type: AssertCommandContains, Kind: "execute", Action: "shake", Entity: "coder"},
			{Type: AssertActiveCount, Count: intPtr(0)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, ir.CommandExecute, last.Kind)
	assert.Equal(t, "shake", last.Action)
}

func TestRun_DisposeStopsEverything(t *testing.T) {
	scenario := &Scenario{
		Name:        "dispose",
		Description: "Dispose emits nothing and ignores later signals",
		Definitions: moveDefinition(100),
		Script: []ScriptStep{
			{Signal: "task_dispatch", Payload: map[string]any{"agent": "coder"}},
			{Advance: 16},
			{Dispose: true},
			{Signal: "task_dispatch", Payload: map[string]any{"agent": "coder"}},
			{Advance: 16},
		},
		Assertions: []Assertion{
			{Type: AssertCommandCount, Count: intPtr(2)},
			{Type: AssertActiveCount, Count: intPtr(0)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Timeline, 4) // two signals, start, update
}

func TestRun_RunUntilIdleBudgetExceeded(t *testing.T) {
	scenario := &Scenario{
		Name:        "never_idle",
		Description: "Animation outlasts the frame budget",
		Definitions: moveDefinition(maxIdleFrames * 10),
		Script: []ScriptStep{
			{Signal: "task_dispatch", Payload: map[string]any{"agent": "coder"}},
			{RunUntilIdle: 1},
		},
		Assertions: []Assertion{
			{Type: AssertActiveCount, Count: intPtr(0)},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script[1]: engine still busy")
}

func TestRun_InvalidDefinitions(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_defs",
		Description: "Definitions that do not compile",
		Definitions: []any{map[string]any{"on": "x", "steps": []any{map[string]any{"duration": 10}}}},
		Script:      []ScriptStep{{Advance: 16}},
		Assertions:  []Assertion{{Type: AssertActiveCount, Count: intPtr(0)}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load definitions")
}

func TestRun_ParamsRoundTripThroughStore(t *testing.T) {
	scenario := &Scenario{
		Name:        "params",
		Description: "Resolved params survive the store",
		Definitions: []any{
			map[string]any{
				"on": "task_dispatch",
				"steps": []any{
					map[string]any{
						"action": "flash",
						"entity": "signal.agent",
						"target": "signal.to",
						"count":  3,
						"meta":   map[string]any{"lane": "signal.lane"},
					},
				},
			},
		},
		Script: []ScriptStep{
			{Signal: "task_dispatch", Payload: map[string]any{"agent": "coder", "to": "solver", "lane": 2}},
			{Advance: 16},
		},
		Assertions: []Assertion{
			{Type: AssertCommandContains, Action: "flash", Params: map[string]any{
				"target": "solver",
				"count":  3,
				"meta":   map[string]any{"lane": 2},
			}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
