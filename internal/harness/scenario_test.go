package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenarioYAML = `
name: test_scenario
description: "Test scenario for validation"
definitions:
  - on: task_dispatch
    steps:
      - action: move
        entity: signal.agent
        duration: 100
script:
  - signal: task_dispatch
    payload:
      agent: coder
    correlation_id: task-1
  - advance: 16
    repeat: 3
  - run_until_idle: 16
assertions:
  - type: command_count
    kind: complete
    count: 1
`

func TestParseScenario_Valid(t *testing.T) {
	scenario, err := ParseScenario([]byte(validScenarioYAML), "")
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Len(t, scenario.Definitions, 1)
	require.Len(t, scenario.Script, 3)
	assert.Equal(t, "task_dispatch", scenario.Script[0].Signal)
	assert.Equal(t, "coder", scenario.Script[0].Payload["agent"])
	assert.Equal(t, "task-1", scenario.Script[0].CorrelationID)
	assert.Equal(t, 16, scenario.Script[1].Advance)
	assert.Equal(t, 3, scenario.Script[1].Repeat)
	assert.Equal(t, 16, scenario.Script[2].RunUntilIdle)
	require.Len(t, scenario.Assertions, 1)
	require.NotNil(t, scenario.Assertions[0].Count)
	assert.Equal(t, 1, *scenario.Assertions[0].Count)
}

func TestLoadScenario_ResolvesDefinitionsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "defs"), 0755))
	defsPath := filepath.Join(dir, "defs", "agents.yaml")
	require.NoError(t, os.WriteFile(defsPath, []byte("choreography: []\n"), 0644))

	scenarioPath := filepath.Join(dir, "scenario.yaml")
	content := `
name: file_defs
description: "Definitions from a file"
definitions_file: defs/agents.yaml
script:
  - advance: 16
assertions:
  - type: active_count
    count: 0
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)
	assert.Equal(t, defsPath, scenario.DefinitionsFile)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unknown field",
			yaml: `
name: x
description: x
definitions: []
script: [{advance: 16}]
assertion: []
`,
			wantErr: "field assertion not found",
		},
		{
			name: "missing name",
			yaml: `
description: x
definitions: []
script: [{advance: 16}]
assertions: [{type: active_count, count: 0}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: x
definitions: []
script: [{advance: 16}]
assertions: [{type: active_count, count: 0}]
`,
			wantErr: "description is required",
		},
		{
			name: "no definitions",
			yaml: `
name: x
description: x
script: [{advance: 16}]
assertions: [{type: active_count, count: 0}]
`,
			wantErr: "exactly one of definitions and definitions_file is required",
		},
		{
			name: "both definitions",
			yaml: `
name: x
description: x
definitions: []
definitions_file: defs.yaml
script: [{advance: 16}]
assertions: [{type: active_count, count: 0}]
`,
			wantErr: "exactly one of definitions and definitions_file is required",
		},
		{
			name: "missing definitions file",
			yaml: `
name: x
description: x
definitions_file: /does/not/exist.yaml
script: [{advance: 16}]
assertions: [{type: active_count, count: 0}]
`,
			wantErr: "definitions file not found",
		},
		{
			name: "empty script",
			yaml: `
name: x
description: x
definitions: []
script: []
assertions: [{type: active_count, count: 0}]
`,
			wantErr: "script list is required",
		},
		{
			name: "empty assertions",
			yaml: `
name: x
description: x
definitions: []
script: [{advance: 16}]
assertions: []
`,
			wantErr: "assertions list is required",
		},
		{
			name: "step with two actions",
			yaml: `
name: x
description: x
definitions: []
script: [{signal: a, advance: 16}]
assertions: [{type: active_count, count: 0}]
`,
			wantErr: "script[0]: exactly one of signal, advance, run_until_idle and dispose is required",
		},
		{
			name: "payload without signal",
			yaml: `
name: x
description: x
definitions: []
script: [{advance: 16, payload: {a: 1}}]
assertions: [{type: active_count, count: 0}]
`,
			wantErr: "payload and correlation_id require signal",
		},
		{
			name: "repeat without advance",
			yaml: `
name: x
description: x
definitions: []
script: [{run_until_idle: 16, repeat: 2}]
assertions: [{type: active_count, count: 0}]
`,
			wantErr: "repeat requires advance",
		},
		{
			name: "negative advance",
			yaml: `
name: x
description: x
definitions: []
script: [{advance: -1}]
assertions: [{type: active_count, count: 0}]
`,
			wantErr: "advance and run_until_idle must be positive",
		},
		{
			name: "count missing",
			yaml: `
name: x
description: x
definitions: []
script: [{advance: 16}]
assertions: [{type: command_count, kind: start}]
`,
			wantErr: "assertions[0]: command_count requires count",
		},
		{
			name: "order needs two actions",
			yaml: `
name: x
description: x
definitions: []
script: [{advance: 16}]
assertions: [{type: command_order, actions: [move]}]
`,
			wantErr: "command_order requires at least two actions",
		},
		{
			name: "contains needs a filter",
			yaml: `
name: x
description: x
definitions: []
script: [{advance: 16}]
assertions: [{type: command_contains}]
`,
			wantErr: "command_contains requires at least one filter",
		},
		{
			name: "progress_near incomplete",
			yaml: `
name: x
description: x
definitions: []
script: [{advance: 16}]
assertions: [{type: progress_near, action: move, at: 100}]
`,
			wantErr: "progress_near requires action, at and progress",
		},
		{
			name: "unknown assertion type",
			yaml: `
name: x
description: x
definitions: []
script: [{advance: 16}]
assertions: [{type: trace_contains}]
`,
			wantErr: "unknown assertion type: trace_contains",
		},
		{
			name: "missing assertion type",
			yaml: `
name: x
description: x
definitions: []
script: [{advance: 16}]
assertions: [{count: 1}]
`,
			wantErr: "type is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
