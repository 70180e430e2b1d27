package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/choreo/internal/compiler"
	"github.com/roach88/choreo/internal/engine"
	"github.com/roach88/choreo/internal/ir"
	"github.com/roach88/choreo/internal/store"
	"github.com/roach88/choreo/internal/testutil"
)

// maxIdleFrames bounds run_until_idle so a definition that never quiesces
// fails the scenario instead of hanging it.
const maxIdleFrames = 100000

// Harness is the test execution engine.
// It runs one scenario against a real Choreographer with a manual clock.
type Harness struct {
	engine   *engine.Choreographer
	clock    *testutil.ManualClock
	recorder *store.Recorder
	logger   *slog.Logger
}

// LoadDefinitions compiles a scenario's definitions from its inline list or
// its definitions file.
func LoadDefinitions(scenario *Scenario) ([]ir.Definition, error) {
	if scenario.DefinitionsFile != "" {
		return compiler.LoadPath(scenario.DefinitionsFile)
	}
	return compiler.CompileDefinitions(scenario.Definitions)
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile definitions
// 2. Create an in-memory store and begin a run
// 3. Register definitions on an engine driven by a manual clock
// 4. Execute the script, recording signals and commands
// 5. Read the trace back from the store and evaluate assertions
//
// Errors are returned for setup failures only; failed assertions are
// reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	defs, err := LoadDefinitions(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}

	defsHash, err := ir.DefinitionsHash(defs)
	if err != nil {
		return nil, fmt.Errorf("failed to hash definitions: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	run, err := st.BeginRun(ctx, scenario.Name, defsHash)
	if err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	clock := testutil.NewManualClock()
	recorder := store.NewRecorder(st, run.ID, clock)

	h := &Harness{
		engine:   engine.New(clock, recorder, engine.WithLogger(logger)),
		clock:    clock,
		recorder: recorder,
		logger:   logger,
	}
	h.engine.RegisterAll(defs)

	result := NewResult()
	result.RunID = run.ID

	if err := h.executeScript(scenario.Script); err != nil {
		return nil, err
	}
	result.ActiveCount = h.engine.ActivePerformanceCount()
	h.engine.Dispose()

	if err := recorder.Flush(ctx); err != nil {
		return nil, fmt.Errorf("failed to record trace: %w", err)
	}

	trace, err := st.ReadCommands(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	result.Trace = trace

	timeline, err := st.ReadTimeline(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}
	result.Timeline = timeline

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeScript runs every script step in order.
func (h *Harness) executeScript(script []ScriptStep) error {
	for i, step := range script {
		switch {
		case step.Signal != "":
			sig := ir.NewSignal(step.Signal, step.Payload)
			h.recorder.RecordSignal(sig, step.CorrelationID)
			h.engine.HandleSignal(sig, step.CorrelationID)

		case step.Advance > 0:
			repeat := max(step.Repeat, 1)
			for range repeat {
				h.clock.Advance(time.Duration(step.Advance) * time.Millisecond)
			}

		case step.RunUntilIdle > 0:
			frames := h.clock.RunUntilIdle(time.Duration(step.RunUntilIdle)*time.Millisecond, maxIdleFrames)
			if h.clock.PendingCount() > 0 {
				return fmt.Errorf("script[%d]: engine still busy after %d frames", i, frames)
			}

		case step.Dispose:
			h.engine.Dispose()
		}

		h.logger.Debug("script step executed", "step", i, "now", h.clock.Now())
	}
	return nil
}
