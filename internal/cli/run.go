package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/choreo/internal/compiler"
	"github.com/roach88/choreo/internal/engine"
	"github.com/roach88/choreo/internal/harness"
	"github.com/roach88/choreo/internal/ir"
	"github.com/roach88/choreo/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Signals  string
	Database string
	FPS      int
	UUIDs    bool
	Timeout  time.Duration
}

// ScheduledSignal is one entry of a signal file.
type ScheduledSignal struct {
	Type          string         `yaml:"type"`
	Payload       map[string]any `yaml:"payload,omitempty"`
	CorrelationID string         `yaml:"correlation_id,omitempty"`
	DelayMs       int            `yaml:"delay_ms,omitempty"` // wait before sending, relative to the previous signal
}

type signalFile struct {
	Signals []ScheduledSignal `yaml:"signals"`
}

// RunResult is the JSON output of the run command.
type RunResult struct {
	RunID       string           `json:"run_id,omitempty"`
	Signals     int              `json:"signals"`
	Commands    []map[string]any `json:"commands"`
	Interrupted bool             `json:"interrupted"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <definitions>",
		Short: "Run definitions against a signal file on a real frame clock",
		Long: `Run choreography definitions on a real-time frame clock.

Signals are read from a YAML file and fed to the engine in order, each
after its delay_ms. Every emitted command is printed as it happens. The
run ends once every performance has finished, on timeout, or on Ctrl-C.
With --db the signals and commands are recorded to a SQLite trace
database for later inspection with "choreo trace".

Signal file format:
  signals:
    - type: task_dispatch
      payload: { agent: coder, to: solver }
      correlation_id: task-1
    - type: task_error
      payload: { agent: coder }
      correlation_id: task-1
      delay_ms: 400

Example:
  choreo run ./choreography --signals signals.yaml
  choreo run defs.yaml --signals signals.yaml --db trace.db --fps 30`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChoreography(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Signals, "signals", "", "path to signal YAML file (required)")
	_ = cmd.MarkFlagRequired("signals")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run to this SQLite database")
	cmd.Flags().IntVar(&opts.FPS, "fps", engine.DefaultFPS, "frame rate")
	cmd.Flags().BoolVar(&opts.UUIDs, "uuid", false, "use UUIDv7 performance IDs instead of perf-N")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "stop the run after this long (0 = no limit)")

	return cmd
}

// LoadSignalFile reads a signal file.
func LoadSignalFile(path string) ([]ScheduledSignal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signal file: %w", err)
	}

	var file signalFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse signal file: %w", err)
	}

	for i, s := range file.Signals {
		if s.Type == "" {
			return nil, fmt.Errorf("signals[%d]: type is required", i)
		}
		if s.DelayMs < 0 {
			return nil, fmt.Errorf("signals[%d]: delay_ms must not be negative", i)
		}
	}
	return file.Signals, nil
}

func runChoreography(opts *RunOptions, defsPath string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	// Load and validate definitions
	logger.Info("loading definitions", "path", defsPath)
	defs, err := LoadDefinitions(defsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load definitions", err)
	}
	if errs := compiler.Validate(defs); len(errs) > 0 {
		for _, e := range errs {
			logger.Error("invalid definition", "code", e.Code, "field", e.Field, "message", e.Message)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("definitions failed validation with %d error(s)", len(errs)))
	}
	logger.Info("definitions loaded", "count", len(defs))

	signals, err := LoadSignalFile(opts.Signals)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load signals", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	clock := engine.NewFrameClock(opts.FPS)
	printer := newCommandPrinter(cmd.OutOrStdout(), opts.Format == "json", clock)
	sinks := engine.MultiSink{printer}

	// Optional trace recording
	var recorder *store.Recorder
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		defsHash, err := ir.DefinitionsHash(defs)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to hash definitions", err)
		}
		run, err := st.BeginRun(ctx, filepath.Base(defsPath), defsHash)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to begin run", err)
		}
		recorder = store.NewRecorder(st, run.ID, clock)
		sinks = append(sinks, recorder)
		logger.Info("recording run", "db", opts.Database, "run_id", run.ID)
	}

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.UUIDs {
		engineOpts = append(engineOpts, engine.WithIDGenerator(engine.UUIDv7Generator{}))
	}
	eng := engine.New(clock, sinks, engineOpts...)
	eng.RegisterAll(defs)

	clock.Start(ctx)
	defer clock.Stop()
	logger.Info("frame clock started", "fps", opts.FPS, "interval", clock.Interval())

	interrupted := !feedSignals(ctx, eng, printer, recorder, signals)
	if !interrupted {
		interrupted = !waitIdle(ctx, eng, clock)
	}

	active := eng.ActivePerformanceCount()
	eng.Dispose()
	clock.Stop()
	logger.Info("run finished", "interrupted", interrupted, "dropped_performances", active)

	result := RunResult{
		Signals:     len(signals),
		Commands:    printer.Maps(),
		Interrupted: interrupted,
	}

	if recorder != nil {
		// The run context may already be done; flushing must still happen.
		if err := recorder.Flush(context.Background()); err != nil {
			return WrapExitError(ExitCommandError, "failed to record trace", err)
		}
		result.RunID = recorder.RunID()
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return formatter.encode(CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run finished: %d signal(s), %d command(s)\n", len(signals), len(result.Commands))
	if interrupted {
		fmt.Fprintf(w, "Stopped early; %d performance(s) dropped\n", active)
	}
	if result.RunID != "" {
		fmt.Fprintf(w, "Recorded run: %s\n", result.RunID)
	}
	return nil
}

// feedSignals sends each signal after its delay. Returns false if ctx was
// cancelled first.
func feedSignals(ctx context.Context, eng *engine.Choreographer, printer *commandPrinter, recorder *store.Recorder, signals []ScheduledSignal) bool {
	for _, s := range signals {
		if s.DelayMs > 0 {
			timer := time.NewTimer(time.Duration(s.DelayMs) * time.Millisecond)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-timer.C:
			}
		}

		sig := ir.NewSignal(s.Type, s.Payload)
		printer.Signal(sig, s.CorrelationID)
		if recorder != nil {
			recorder.RecordSignal(sig, s.CorrelationID)
		}
		eng.HandleSignal(sig, s.CorrelationID)
	}
	return true
}

// waitIdle polls once per frame until the engine has no live performance
// and nothing scheduled. Returns false if ctx was cancelled first.
func waitIdle(ctx context.Context, eng *engine.Choreographer, clock *engine.FrameClock) bool {
	ticker := time.NewTicker(clock.Interval())
	defer ticker.Stop()

	for {
		if eng.ActivePerformanceCount() == 0 && clock.PendingCount() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// commandPrinter implements engine.Sink by printing each command as it is
// emitted: one line per command in text mode, collected for a single JSON
// document otherwise.
//
// Thread-safety: all methods are safe for concurrent use.
type commandPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	quiet    bool
	time     store.TimeSource
	seq      int64
	commands []ir.Command
}

func newCommandPrinter(w io.Writer, quiet bool, ts store.TimeSource) *commandPrinter {
	return &commandPrinter{w: w, quiet: quiet, time: ts}
}

// Signal prints a signal fed to the engine. Signals share the command seq.
func (p *commandPrinter) Signal(sig ir.Signal, correlationID string) {
	at := p.time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	if p.quiet {
		return
	}
	line := fmt.Sprintf("[%d] %6dms %-9s %s", p.seq, at.Milliseconds(), "signal", sig.Type)
	if len(sig.Payload) > 0 {
		if payload, err := ir.MarshalCanonical(sig.Payload); err == nil {
			line += " payload=" + string(payload)
		}
	}
	if correlationID != "" {
		line += " correlation=" + correlationID
	}
	fmt.Fprintln(p.w, line)
}

func (p *commandPrinter) record(build func(at time.Duration) ir.Command) {
	at := p.time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	cmd := build(at)
	cmd.Seq = p.seq
	p.commands = append(p.commands, cmd)
	if !p.quiet {
		fmt.Fprintln(p.w, harness.FormatCommand(cmd))
	}
}

func (p *commandPrinter) OnActionStart(c ir.ActionStart) {
	p.record(func(at time.Duration) ir.Command { return ir.StartCommand(at, c) })
}

func (p *commandPrinter) OnActionUpdate(c ir.ActionUpdate) {
	p.record(func(at time.Duration) ir.Command { return ir.UpdateCommand(at, c) })
}

func (p *commandPrinter) OnActionComplete(c ir.ActionComplete) {
	p.record(func(at time.Duration) ir.Command { return ir.CompleteCommand(at, c) })
}

func (p *commandPrinter) OnActionExecute(c ir.ActionExecute) {
	p.record(func(at time.Duration) ir.Command { return ir.ExecuteCommand(at, c) })
}

func (p *commandPrinter) OnInterrupt(c ir.Interrupt) {
	p.record(func(at time.Duration) ir.Command { return ir.InterruptCommand(at, c) })
}

// Maps returns every printed command as a plain map.
func (p *commandPrinter) Maps() []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]map[string]any, len(p.commands))
	for i, cmd := range p.commands {
		out[i] = cmd.ToMap()
	}
	return out
}

var _ engine.Sink = (*commandPrinter)(nil)
