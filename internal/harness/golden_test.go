package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/choreo/internal/ir"
	"github.com/roach88/choreo/internal/store"
)

func TestSnapshotJSON(t *testing.T) {
	update := ir.Command{
		Seq:           2,
		At:            100 * time.Millisecond,
		Kind:          ir.CommandUpdate,
		Action:        "move",
		EntityRef:     "coder",
		Progress:      0.25,
		PerformanceID: "perf-1",
	}
	result := NewResult()
	result.Timeline = []store.TimelineEvent{
		{
			Type: store.EventSignal,
			Seq:  1,
			Signal: &store.SignalRecord{
				Seq:    1,
				Signal: ir.NewSignal("task_dispatch", nil),
			},
		},
		{
			Type:    store.EventCommand,
			Seq:     2,
			At:      100 * time.Millisecond,
			Command: &update,
		},
	}

	data, err := SnapshotJSON("snap", result)
	require.NoError(t, err)

	want := `{"scenario":"snap","timeline":[` +
		`{"at":0,"kind":"signal","payload":{},"seq":1,"signal":"task_dispatch"},` +
		`{"action":"move","at":100,"entity_ref":"coder","kind":"update","performance_id":"perf-1","progress":250,"seq":2}]}`
	assert.Equal(t, want, string(data))
}

func TestRunWithGolden_AgentDispatch(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/agent_dispatch.yaml")
	require.NoError(t, err)

	// Regenerate with: go test ./internal/harness -run TestRunWithGolden -update
	require.NoError(t, RunWithGolden(t, scenario))
}
