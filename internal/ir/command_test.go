package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandFlatteners(t *testing.T) {
	at := 516 * time.Millisecond

	start := StartCommand(at, ActionStart{
		Action: "move", EntityRef: "agent", Duration: time.Second,
		Easing: "linear", Params: map[string]any{"to": "solver"}, PerformanceID: "perf-1",
	})
	assert.Equal(t, CommandStart, start.Kind)
	assert.Equal(t, at, start.At)
	assert.Equal(t, time.Second, start.Duration)

	update := UpdateCommand(at, ActionUpdate{Action: "move", EntityRef: "agent", Progress: 0.5, PerformanceID: "perf-1"})
	assert.Equal(t, CommandUpdate, update.Kind)
	assert.Equal(t, 0.5, update.Progress)

	complete := CompleteCommand(at, ActionComplete{Action: "move", EntityRef: "agent", PerformanceID: "perf-1"})
	assert.Equal(t, CommandComplete, complete.Kind)

	exec := ExecuteCommand(at, ActionExecute{Action: "spawn", EntityRef: "pigeon"})
	assert.Equal(t, CommandExecute, exec.Kind)
	assert.Empty(t, exec.PerformanceID)

	intr := InterruptCommand(at, Interrupt{CorrelationID: "X", InterruptedBy: "error"})
	assert.Equal(t, CommandInterrupt, intr.Kind)
	assert.Equal(t, "X", intr.CorrelationID)
	assert.Equal(t, "error", intr.InterruptedBy)

	for _, c := range []Command{start, update, complete, exec, intr} {
		assert.True(t, ValidCommandKinds[c.Kind])
	}
}

func TestProgressPermille(t *testing.T) {
	assert.Equal(t, int64(0), Command{Progress: 0}.ProgressPermille())
	assert.Equal(t, int64(500), Command{Progress: 0.5}.ProgressPermille())
	assert.Equal(t, int64(333), Command{Progress: 1.0 / 3}.ProgressPermille())
	assert.Equal(t, int64(667), Command{Progress: 2.0 / 3}.ProgressPermille())
	assert.Equal(t, int64(1000), Command{Progress: 1}.ProgressPermille())
}

func TestCommandToMap(t *testing.T) {
	start := StartCommand(16*time.Millisecond, ActionStart{
		Action: "move", EntityRef: "agent", Duration: time.Second,
		Easing: "linear", Params: map[string]any{"to": "solver"}, PerformanceID: "perf-1",
	})
	start.Seq = 1

	data, err := MarshalCanonical(start.ToMap())
	require.NoError(t, err)
	assert.Equal(t,
		`{"action":"move","at":16,"duration":1000,"easing":"linear","entity_ref":"agent","kind":"start","params":{"to":"solver"},"performance_id":"perf-1","seq":1}`,
		string(data),
	)

	update := UpdateCommand(516*time.Millisecond, ActionUpdate{Action: "move", EntityRef: "agent", Progress: 0.5, PerformanceID: "perf-1"})
	update.Seq = 2
	data, err = MarshalCanonical(update.ToMap())
	require.NoError(t, err)
	assert.Equal(t,
		`{"action":"move","at":516,"entity_ref":"agent","kind":"update","performance_id":"perf-1","progress":500,"seq":2}`,
		string(data),
	)

	intr := InterruptCommand(200*time.Millisecond, Interrupt{CorrelationID: "X", InterruptedBy: "error"})
	intr.Seq = 3
	data, err = MarshalCanonical(intr.ToMap())
	require.NoError(t, err)
	assert.Equal(t,
		`{"at":200,"correlation_id":"X","interrupted_by":"error","kind":"interrupt","seq":3}`,
		string(data),
	)
}
