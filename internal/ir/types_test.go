package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSignal(t *testing.T) {
	sig := NewSignal("tool_call", nil)
	assert.Equal(t, "tool_call", sig.Type)
	require.NotNil(t, sig.Payload, "nil payload replaced with an empty map")
	assert.Empty(t, sig.Payload)
}

func TestStepKindString(t *testing.T) {
	tests := []struct {
		kind StepKind
		want string
	}{
		{StepInstant, "instant"},
		{StepAnimated, "animated"},
		{StepWait, "wait"},
		{StepParallel, "parallel"},
		{StepOnArrive, "onArrive"},
		{StepOnInterrupt, "onInterrupt"},
		{StepKind(0), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestStepKindIsStructural(t *testing.T) {
	assert.True(t, StepParallel.IsStructural())
	assert.True(t, StepOnArrive.IsStructural())
	assert.True(t, StepOnInterrupt.IsStructural())
	assert.False(t, StepInstant.IsStructural())
	assert.False(t, StepAnimated.IsStructural())
	assert.False(t, StepWait.IsStructural())
}

func TestStepConstructors(t *testing.T) {
	wait := Wait(200 * time.Millisecond)
	assert.Equal(t, StepWait, wait.Kind)
	assert.Equal(t, WaitAction, wait.Action)

	step := Animated("move", "agent", time.Second, "easeOut", nil).WithTarget("signal.to")
	assert.Equal(t, StepAnimated, step.Kind)
	assert.Equal(t, "signal.to", step.Target)

	par := Parallel(Instant("a", "", nil), Instant("b", "", nil))
	assert.Len(t, par.Steps, 2)
}

func TestStepToMap(t *testing.T) {
	step := Animated("move", "agent", 1500*time.Millisecond, "linear", map[string]any{"to": "signal.to"}).
		WithTarget("signal.target")

	assert.Equal(t, map[string]any{
		"kind":     "animated",
		"action":   "move",
		"entity":   "agent",
		"target":   "signal.target",
		"duration": int64(1500),
		"easing":   "linear",
		"params":   map[string]any{"to": "signal.to"},
	}, step.ToMap())

	assert.Equal(t, map[string]any{
		"kind":     "wait",
		"action":   "wait",
		"duration": int64(0),
	}, Wait(0).ToMap())

	assert.Equal(t, map[string]any{
		"kind": "onArrive",
		"steps": []any{
			map[string]any{"kind": "instant", "action": "land"},
		},
	}, OnArrive(Instant("land", "", nil)).ToMap())
}

func TestDefinitionToMap(t *testing.T) {
	def := Definition{
		On:         "error",
		When:       WhenClause{{"signal.code": GT(400)}},
		Interrupts: true,
		Steps:      []Step{Instant("flash", "screen", nil)},
	}

	assert.Equal(t, map[string]any{
		"on":         "error",
		"interrupts": true,
		"when": []any{
			map[string]any{"signal.code": map[string]any{"gt": 400.0}},
		},
		"steps": []any{
			map[string]any{"kind": "instant", "action": "flash", "entity": "screen"},
		},
	}, def.ToMap())

	bare := Definition{On: "x"}.ToMap()
	assert.NotContains(t, bare, "when")
	assert.NotContains(t, bare, "interrupts")
}

func TestDefinitionToMapIsCanonicalizable(t *testing.T) {
	def := Definition{
		On:   "tool_call",
		When: WhenClause{{"signal.tool": Not(Matches("^web"))}},
		Steps: []Step{
			Parallel(
				Animated("pulse", "signal.agent", 250*time.Millisecond, "easeInOut", nil),
				Wait(100*time.Millisecond),
			),
			OnInterrupt(Instant("reset", "signal.agent", nil)),
		},
	}

	data, err := MarshalCanonical(def.ToMap())
	require.NoError(t, err)
	assert.Equal(t,
		`{"on":"tool_call","steps":[{"kind":"parallel","steps":[{"action":"pulse","duration":250,"easing":"easeInOut","entity":"signal.agent","kind":"animated"},{"action":"wait","duration":100,"kind":"wait"}]},{"kind":"onInterrupt","steps":[{"action":"reset","entity":"signal.agent","kind":"instant"}]}],"when":[{"signal.tool":{"not":{"matches":"^web"}}}]}`,
		string(data),
	)
}

func TestOperatorSetIsEmpty(t *testing.T) {
	assert.True(t, OperatorSet{}.IsEmpty())
	assert.True(t, OperatorSet{Unknown: []string{"startsWith"}}.IsEmpty())
	assert.False(t, Exists(false).IsEmpty())
	assert.False(t, Equals(nil).IsEmpty(), "equals null is still an operator")
	assert.False(t, Not(OperatorSet{}).IsEmpty())
}

func TestConditionSortedPaths(t *testing.T) {
	cond := Condition{
		"signal.b": Exists(true),
		"signal.a": Exists(true),
		"type":     Equals("x"),
	}
	assert.Equal(t, []string{"signal.a", "signal.b", "type"}, cond.SortedPaths())
}
