package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pingDefs = `
choreography:
  - on: ping
    steps:
      - action: move
        entity: signal.agent
        duration: 30
      - action: flash
        entity: signal.agent
`

const pingSignals = `
signals:
  - type: ping
    payload:
      agent: coder
    correlation_id: c1
`

// runOutput decodes the JSON output of the run command.
type runOutput struct {
	Status string    `json:"status"`
	RunID  string    `json:"run_id"`
	Data   RunResult `json:"data"`
	Error  *CLIError `json:"error"`
}

func executeRun(t *testing.T, format string, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRunMissingSignalsFlag(t *testing.T) {
	dir := t.TempDir()
	defs := writeFile(t, dir, "defs.yaml", pingDefs)

	_, _, err := executeRun(t, "text", defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "signals")
}

func TestRunNonExistentDefinitions(t *testing.T) {
	dir := t.TempDir()
	signals := writeFile(t, dir, "signals.yaml", pingSignals)

	_, _, err := executeRun(t, "text", "--signals", signals, "/nonexistent/defs.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load definitions")
}

func TestRunInvalidDefinitions(t *testing.T) {
	dir := t.TempDir()
	defs := writeFile(t, dir, "defs.yaml", ruleViolations)
	signals := writeFile(t, dir, "signals.yaml", pingSignals)

	_, logs, err := executeRun(t, "text", "--signals", signals, defs)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "definitions failed validation with 3 error(s)")
	assert.Contains(t, logs, "code=E201")
}

func TestRunInvalidSignalFile(t *testing.T) {
	dir := t.TempDir()
	defs := writeFile(t, dir, "defs.yaml", pingDefs)
	signals := writeFile(t, dir, "signals.yaml", "signals:\n  - payload: {agent: coder}\n")

	_, _, err := executeRun(t, "text", "--signals", signals, defs)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load signals")
	assert.Contains(t, err.Error(), "signals[0]: type is required")
}

func TestLoadSignalFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []ScheduledSignal
		wantErr string
	}{
		{
			name: "full entries",
			content: `
signals:
  - type: task_dispatch
    payload: {agent: coder}
    correlation_id: t1
  - type: task_error
    delay_ms: 400
`,
			want: []ScheduledSignal{
				{Type: "task_dispatch", Payload: map[string]any{"agent": "coder"}, CorrelationID: "t1"},
				{Type: "task_error", DelayMs: 400},
			},
		},
		{
			name:    "unknown field",
			content: "signals:\n  - type: a\n    delay: 5\n",
			wantErr: "field delay not found",
		},
		{
			name:    "negative delay",
			content: "signals:\n  - type: a\n    delay_ms: -1\n",
			wantErr: "signals[0]: delay_ms must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "signals.yaml", tt.content)
			got, err := LoadSignalFile(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadSignalFile_Missing(t *testing.T) {
	_, err := LoadSignalFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read signal file")
}

func TestRunRecordsTrace(t *testing.T) {
	dir := t.TempDir()
	defs := writeFile(t, dir, "defs.yaml", pingDefs)
	signals := writeFile(t, dir, "signals.yaml", pingSignals)
	dbPath := filepath.Join(dir, "trace.db")

	output, _, err := executeRun(t, "json",
		"--signals", signals, "--db", dbPath, "--fps", "200", "--timeout", "5s", defs)
	require.NoError(t, err)

	var resp runOutput
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Data.Interrupted)
	assert.Equal(t, 1, resp.Data.Signals)
	require.NotEmpty(t, resp.RunID)
	assert.Equal(t, resp.RunID, resp.Data.RunID)

	commands := resp.Data.Commands
	require.GreaterOrEqual(t, len(commands), 4) // start, update(0), complete, execute
	assert.Equal(t, "start", commands[0]["kind"])
	assert.Equal(t, "move", commands[0]["action"])
	assert.Equal(t, "coder", commands[0]["entity_ref"])
	assert.Equal(t, "perf-1", commands[0]["performance_id"])
	assert.Equal(t, "complete", commands[len(commands)-2]["kind"])
	assert.Equal(t, "execute", commands[len(commands)-1]["kind"])
	assert.Equal(t, "flash", commands[len(commands)-1]["action"])

	// The recorded run reads back through the trace command.
	traceOut, err := executeTrace(t, "json", dbPath, "--run", resp.RunID)
	require.NoError(t, err)

	var trace struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(traceOut), &trace))
	assert.Equal(t, "defs.yaml", trace.Data.Run.Name)
	assert.Equal(t, 1, trace.Data.Stats.Signals)
	assert.Equal(t, 1, trace.Data.Stats.Starts)
	assert.Equal(t, 1, trace.Data.Stats.Completions)
	assert.Equal(t, 1, trace.Data.Stats.Executes)
	assert.Equal(t, len(commands)+1, trace.Data.Stats.TotalEvents)
	require.Len(t, trace.Data.Performances, 1)
	assert.Equal(t, []string{"move"}, trace.Data.Performances[0].Actions)
}

func TestRunTextOutput(t *testing.T) {
	dir := t.TempDir()
	defs := writeFile(t, dir, "defs.yaml", pingDefs)
	signals := writeFile(t, dir, "signals.yaml", pingSignals)

	output, _, err := executeRun(t, "text", "--signals", signals, "--fps", "200", "--timeout", "5s", defs)
	require.NoError(t, err)

	assert.Contains(t, output, "signal    ping payload={\"agent\":\"coder\"} correlation=c1")
	assert.Contains(t, output, "start     move entity=coder duration=30ms easing=linear (perf-1)")
	assert.Contains(t, output, "execute   flash entity=coder\n")
	assert.Contains(t, output, "Run finished: 1 signal(s)")
	assert.NotContains(t, output, "Recorded run")
}

func TestRunTimeoutDropsPerformances(t *testing.T) {
	dir := t.TempDir()
	defs := writeFile(t, dir, "defs.yaml", `
choreography:
  - on: ping
    steps:
      - action: move
        entity: signal.agent
        duration: 60000
`)
	signals := writeFile(t, dir, "signals.yaml", pingSignals)

	output, _, err := executeRun(t, "text", "--signals", signals, "--fps", "200", "--timeout", "50ms", defs)
	require.NoError(t, err)
	assert.Contains(t, output, "Stopped early; 1 performance(s) dropped")
	assert.NotContains(t, output, "complete")
}

func TestRunUUIDPerformanceIDs(t *testing.T) {
	dir := t.TempDir()
	defs := writeFile(t, dir, "defs.yaml", pingDefs)
	signals := writeFile(t, dir, "signals.yaml", pingSignals)

	output, _, err := executeRun(t, "json", "--signals", signals, "--fps", "200", "--uuid", "--timeout", "5s", defs)
	require.NoError(t, err)

	var resp runOutput
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	require.NotEmpty(t, resp.Data.Commands)
	id, ok := resp.Data.Commands[0]["performance_id"].(string)
	require.True(t, ok)
	assert.Len(t, id, 36)
	assert.Empty(t, resp.RunID)
}
