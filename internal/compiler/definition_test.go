package compiler

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/choreo/internal/ir"
)

func TestCompileDefinitionStepKinds(t *testing.T) {
	raw := map[string]any{
		"id": "dispatch-move",
		"on": "dispatch",
		"steps": []any{
			map[string]any{"action": "move", "entity": "signal.agent", "target": "signal.destination", "duration": 1000, "easing": "easeInOut"},
			map[string]any{"action": "flash", "entity": "signal.agent", "color": "red"},
			map[string]any{"action": "wait", "duration": 250},
			map[string]any{"action": "pulse", "duration": 62.5},
		},
	}

	def, err := CompileDefinition(raw)
	require.NoError(t, err)

	want := &ir.Definition{
		ID: "dispatch-move",
		On: "dispatch",
		Steps: []ir.Step{
			ir.Animated("move", "signal.agent", time.Second, "easeInOut", nil).WithTarget("signal.destination"),
			ir.Instant("flash", "signal.agent", map[string]any{"color": "red"}),
			ir.Wait(250 * time.Millisecond),
			ir.Animated("pulse", "", 62500*time.Microsecond, "linear", nil),
		},
	}
	if diff := cmp.Diff(want, def); diff != "" {
		t.Errorf("CompileDefinition() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileDefinitionStructuralBlocks(t *testing.T) {
	raw := map[string]any{
		"on": "dispatch",
		"steps": []any{
			map[string]any{"parallel": []any{
				map[string]any{"action": "pulse", "duration": 500},
				map[string]any{"onArrive": map[string]any{"steps": []any{
					map[string]any{"action": "glow"},
				}}},
			}},
			map[string]any{"onInterrupt": []any{
				map[string]any{"action": "fade", "duration": 200, "easing": "easeOut"},
			}},
		},
	}

	def, err := CompileDefinition(raw)
	require.NoError(t, err)

	want := []ir.Step{
		ir.Parallel(
			ir.Animated("pulse", "", 500*time.Millisecond, "linear", nil),
			ir.OnArrive(ir.Instant("glow", "", nil)),
		),
		ir.OnInterrupt(ir.Animated("fade", "", 200*time.Millisecond, "easeOut", nil)),
	}
	if diff := cmp.Diff(want, def.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileDefinitionWhen(t *testing.T) {
	t.Run("single object", func(t *testing.T) {
		def, err := CompileDefinition(map[string]any{
			"on": "tool_call",
			"when": map[string]any{
				"signal.tool":   map[string]any{"equals": "web_search"},
				"signal.tokens": map[string]any{"gt": 100, "lt": 5000.5},
			},
			"steps": []any{},
		})
		require.NoError(t, err)

		want := ir.WhenClause{{
			"signal.tool":   ir.Equals("web_search"),
			"signal.tokens": ir.OperatorSet{GT: ptr(100.0), LT: ptr(5000.5)},
		}}
		if diff := cmp.Diff(want, def.When); diff != "" {
			t.Errorf("when mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("list is OR", func(t *testing.T) {
		def, err := CompileDefinition(map[string]any{
			"on": "tool_call",
			"when": []any{
				map[string]any{"signal.tool": map[string]any{"matches": "^web_"}},
				map[string]any{"signal.urgent": map[string]any{"not": map[string]any{"exists": false}}},
			},
			"steps": []any{},
		})
		require.NoError(t, err)

		want := ir.WhenClause{
			{"signal.tool": ir.Matches("^web_")},
			{"signal.urgent": ir.Not(ir.Exists(false))},
		}
		if diff := cmp.Diff(want, def.When); diff != "" {
			t.Errorf("when mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown operators are kept", func(t *testing.T) {
		def, err := CompileDefinition(map[string]any{
			"on":    "tool_call",
			"when":  map[string]any{"signal.tool": map[string]any{"startsWith": "web", "contains": "search"}},
			"steps": []any{},
		})
		require.NoError(t, err)

		ops := def.When[0]["signal.tool"]
		require.NotNil(t, ops.Contains)
		assert.Equal(t, "search", *ops.Contains)
		assert.Equal(t, []string{"startsWith"}, ops.Unknown)
	})

	t.Run("equals null", func(t *testing.T) {
		def, err := CompileDefinition(map[string]any{
			"on":    "tool_call",
			"when":  map[string]any{"signal.result": map[string]any{"equals": nil}},
			"steps": []any{},
		})
		require.NoError(t, err)

		ops := def.When[0]["signal.result"]
		require.NotNil(t, ops.Equals)
		assert.Nil(t, ops.Equals.Value)
	})
}

func TestCompileDefinitionInterrupts(t *testing.T) {
	def, err := CompileDefinition(map[string]any{
		"on":         "error",
		"interrupts": true,
		"steps":      []any{map[string]any{"action": "shake"}},
	})
	require.NoError(t, err)
	assert.True(t, def.Interrupts)
	assert.Nil(t, def.When, "no when means no filter")
}

func TestCompileDefinitionMapAnyKeys(t *testing.T) {
	def, err := CompileDefinition(map[string]any{
		"on": "ping",
		"steps": []any{
			map[any]any{"action": "flash", 7: "lucky"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"7": "lucky"}, def.Steps[0].Params)
}

func TestCompileDefinitionErrors(t *testing.T) {
	tests := []struct {
		name      string
		raw       map[string]any
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing on",
			raw:       map[string]any{"steps": []any{}},
			wantField: "on",
			wantMsg:   "required",
		},
		{
			name:      "on not a string",
			raw:       map[string]any{"on": 3, "steps": []any{}},
			wantField: "on",
			wantMsg:   "must be a string",
		},
		{
			name:      "missing steps",
			raw:       map[string]any{"on": "ping"},
			wantField: "steps",
			wantMsg:   "required",
		},
		{
			name:      "unknown definition field",
			raw:       map[string]any{"on": "ping", "steps": []any{}, "priority": 1},
			wantField: "priority",
			wantMsg:   "unknown definition field",
		},
		{
			name:      "step without action",
			raw:       map[string]any{"on": "ping", "steps": []any{map[string]any{"entity": "agent"}}},
			wantField: "steps[0].action",
			wantMsg:   "must have an action",
		},
		{
			name:      "block with siblings",
			raw:       map[string]any{"on": "ping", "steps": []any{map[string]any{"parallel": []any{}, "action": "x"}}},
			wantField: "steps[0]",
			wantMsg:   "only key",
		},
		{
			name: "unknown block field",
			raw: map[string]any{"on": "ping", "steps": []any{
				map[string]any{"onArrive": map[string]any{"steps": []any{}, "delay": 5}},
			}},
			wantField: "steps[0].onArrive.delay",
			wantMsg:   "unknown onArrive field",
		},
		{
			name: "duration not a number",
			raw: map[string]any{"on": "ping", "steps": []any{
				map[string]any{"action": "move", "duration": "1s"},
			}},
			wantField: "steps[0].duration",
			wantMsg:   "number of milliseconds",
		},
		{
			name: "nested error path",
			raw: map[string]any{"on": "ping", "steps": []any{
				map[string]any{"parallel": []any{
					map[string]any{"action": "a"},
					map[string]any{"action": 5},
				}},
			}},
			wantField: "steps[0].parallel[1].action",
			wantMsg:   "must be a string",
		},
		{
			name:      "gt not a number",
			raw:       map[string]any{"on": "ping", "when": map[string]any{"signal.n": map[string]any{"gt": "5"}}, "steps": []any{}},
			wantField: "when.signal.n.gt",
			wantMsg:   "must be a number",
		},
		{
			name:      "when not an object",
			raw:       map[string]any{"on": "ping", "when": "signal.n", "steps": []any{}},
			wantField: "when",
			wantMsg:   "condition object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileDefinition(tt.raw)
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "expected *CompileError, got %T", err)
			assert.Equal(t, tt.wantField, ce.Field)
			assert.Contains(t, ce.Message, tt.wantMsg)
		})
	}
}

func TestCompileDefinitionsPrefixesIndex(t *testing.T) {
	_, err := CompileDefinitions([]any{
		map[string]any{"on": "ping", "steps": []any{}},
		map[string]any{"steps": []any{}},
	})
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "choreography[1].on", ce.Field)
	assert.Equal(t, "choreography[1].on: on is required", err.Error())
}

func TestCompileDefinitionsRejectsNonObject(t *testing.T) {
	_, err := CompileDefinitions([]any{"ping"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "choreography[0]")
}

func ptr[T any](v T) *T { return &v }
