package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/choreo/internal/harness"
	"github.com/roach88/choreo/internal/ir"
	"github.com/roach88/choreo/internal/queryir"
	"github.com/roach88/choreo/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	RunID       string
	Action      string   // optional - filter to specific action
	Performance string   // optional - filter to one performance
	Kinds       []string // optional - filter to these command kinds
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	Seq           int64          `json:"seq"`
	At            int64          `json:"at"`   // milliseconds
	Type          string         `json:"type"` // "signal" or a command kind
	Signal        string         `json:"signal,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	Action        string         `json:"action,omitempty"`
	EntityRef     string         `json:"entity_ref,omitempty"`
	Duration      int64          `json:"duration,omitempty"` // milliseconds
	Easing        string         `json:"easing,omitempty"`
	Params        map[string]any `json:"params,omitempty"`
	Progress      *float64       `json:"progress,omitempty"`
	PerformanceID string         `json:"performance_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	InterruptedBy string         `json:"interrupted_by,omitempty"`
}

// PerformanceSummary describes one performance of a run.
type PerformanceSummary struct {
	ID        string   `json:"id"`
	Actions   []string `json:"actions"`
	Started   int      `json:"started"`
	Completed int      `json:"completed"`
	FirstAt   int64    `json:"first_at"`
	LastAt    int64    `json:"last_at"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run          RunSummary           `json:"run"`
	Timeline     []TraceEvent         `json:"timeline"`
	Performances []PerformanceSummary `json:"performances"`
	Stats        TraceStats           `json:"stats"`
}

// RunSummary is the printable form of a recorded run.
type RunSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DefinitionsHash string `json:"definitions_hash"`
	EngineVersion   string `json:"engine_version"`
	StartedAt       string `json:"started_at"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Signals     int `json:"signals"`
	Starts      int `json:"starts"`
	Updates     int `json:"updates"`
	Completions int `json:"completions"`
	Executes    int `json:"executes"`
	Interrupts  int `json:"interrupts"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <db>",
		Short: "Inspect recorded runs",
		Long: `Inspect runs recorded with "choreo run --db".

Without --run, lists every recorded run. With --run, prints the run's
timeline of signals and commands in the order they happened, a summary per
performance and statistics.

Examples:
  choreo trace ./trace.db
  choreo trace ./trace.db --run 0192f6c4-...
  choreo trace ./trace.db --run 0192f6c4-... --action move
  choreo trace ./trace.db --run 0192f6c4-... --kind start,interrupt
  choreo trace ./trace.db --run 0192f6c4-... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace (lists runs when empty)")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter commands to a specific action")
	cmd.Flags().StringVar(&opts.Performance, "performance", "", "filter commands to a specific performance")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "filter commands to these kinds (start, update, complete, execute, interrupt)")

	return cmd
}

func runTrace(opts *TraceOptions, dbPath string, cmd *cobra.Command) error {
	ctx := context.Background()

	// store.Open creates missing databases; tracing one makes no sense.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", dbPath))
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRuns(ctx, st, opts, cmd)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	filter, err := commandFilter(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	signals, err := st.ReadSignals(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read signals", err)
	}
	commands, err := st.ReadCommands(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read commands", err)
	}
	events := store.MergeTimeline(signals, commands)

	shown := events
	if filter != nil {
		filtered, err := st.QueryCommands(ctx, run.ID, filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to query commands", err)
		}
		shown = store.MergeTimeline(signals, filtered)
	}

	result := TraceResult{
		Run:          summarizeRun(run),
		Timeline:     buildTimeline(shown),
		Performances: summarizePerformances(events),
		Stats:        computeStats(events),
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}

	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// listRuns prints every recorded run.
func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, run := range runs {
		summaries[i] = summarizeRun(run)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return formatter.Success(summaries)
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s  %s  %s\n", s.ID, s.StartedAt, s.Name)
	}
	return nil
}

func summarizeRun(run store.Run) RunSummary {
	return RunSummary{
		ID:              run.ID,
		Name:            run.Name,
		DefinitionsHash: run.DefinitionsHash,
		EngineVersion:   run.EngineVersion,
		StartedAt:       run.StartedAt.UTC().Format(time.RFC3339),
	}
}

// commandFilter builds the command query from the filter flags. Returns nil
// when no filter is set.
func commandFilter(opts *TraceOptions) (queryir.Predicate, error) {
	var preds []queryir.Predicate
	if opts.Action != "" {
		preds = append(preds, queryir.Equals{Field: "action", Value: opts.Action})
	}
	if opts.Performance != "" {
		preds = append(preds, queryir.Equals{Field: "performance_id", Value: opts.Performance})
	}
	if len(opts.Kinds) > 0 {
		kinds := make([]any, len(opts.Kinds))
		for i, k := range opts.Kinds {
			if !ir.ValidCommandKinds[ir.CommandKind(k)] {
				return nil, fmt.Errorf("unknown command kind %q", k)
			}
			kinds[i] = k
		}
		preds = append(preds, queryir.In{Field: "kind", Values: kinds})
	}
	return queryir.AllOf(preds...), nil
}

// buildTimeline converts store events to trace timeline events. Filtered
// timelines still carry every signal so the matching commands stay in
// context.
func buildTimeline(events []store.TimelineEvent) []TraceEvent {
	timeline := []TraceEvent{}

	for _, event := range events {
		switch event.Type {
		case store.EventSignal:
			rec := event.Signal
			timeline = append(timeline, TraceEvent{
				Seq:           event.Seq,
				At:            event.At.Milliseconds(),
				Type:          "signal",
				Signal:        rec.Signal.Type,
				Payload:       rec.Signal.Payload,
				CorrelationID: rec.CorrelationID,
			})

		case store.EventCommand:
			c := event.Command
			te := TraceEvent{
				Seq:           event.Seq,
				At:            event.At.Milliseconds(),
				Type:          string(c.Kind),
				Action:        c.Action,
				EntityRef:     c.EntityRef,
				Params:        c.Params,
				PerformanceID: c.PerformanceID,
				CorrelationID: c.CorrelationID,
				InterruptedBy: c.InterruptedBy,
			}
			if c.Kind == ir.CommandStart {
				te.Duration = c.Duration.Milliseconds()
				te.Easing = c.Easing
			}
			if c.Kind == ir.CommandUpdate {
				progress := c.Progress
				te.Progress = &progress
			}
			timeline = append(timeline, te)
		}
	}

	return timeline
}

// summarizePerformances groups commands by performance, ordered by first
// appearance.
func summarizePerformances(events []store.TimelineEvent) []PerformanceSummary {
	byID := make(map[string]*PerformanceSummary)
	var order []string

	for _, event := range events {
		if event.Type != store.EventCommand || event.Command.PerformanceID == "" {
			continue
		}
		c := event.Command
		p, ok := byID[c.PerformanceID]
		if !ok {
			p = &PerformanceSummary{ID: c.PerformanceID, Actions: []string{}, FirstAt: event.At.Milliseconds()}
			byID[c.PerformanceID] = p
			order = append(order, c.PerformanceID)
		}
		p.LastAt = event.At.Milliseconds()
		switch c.Kind {
		case ir.CommandStart:
			p.Started++
			p.Actions = append(p.Actions, c.Action)
		case ir.CommandComplete:
			p.Completed++
		}
	}

	out := make([]PerformanceSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func computeStats(events []store.TimelineEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, event := range events {
		if event.Type == store.EventSignal {
			stats.Signals++
			continue
		}
		switch event.Command.Kind {
		case ir.CommandStart:
			stats.Starts++
		case ir.CommandUpdate:
			stats.Updates++
		case ir.CommandComplete:
			stats.Completions++
		case ir.CommandExecute:
			stats.Executes++
		case ir.CommandInterrupt:
			stats.Interrupts++
		}
	}
	return stats
}

// outputTraceText outputs the trace result as text.
// Updates are only shown in verbose mode.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Name: %s\n", result.Run.Name)
	fmt.Fprintf(w, "Started: %s (engine %s)\n", result.Run.StartedAt, result.Run.EngineVersion)
	fmt.Fprintln(w)

	// Timeline section
	fmt.Fprintln(w, "=== Timeline ===")
	shown := 0
	for _, event := range result.Timeline {
		if event.Type == string(ir.CommandUpdate) && !verbose {
			continue
		}
		fmt.Fprintf(w, "  %s\n", formatTimelineEvent(event))
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	fmt.Fprintln(w)

	// Performance section
	fmt.Fprintln(w, "=== Performances ===")
	if len(result.Performances) == 0 {
		fmt.Fprintln(w, "  (no performances)")
	}
	for _, p := range result.Performances {
		fmt.Fprintf(w, "  %s  %dms-%dms  %d/%d completed  [%s]\n",
			truncateID(p.ID), p.FirstAt, p.LastAt, p.Completed, p.Started, strings.Join(p.Actions, ", "))
	}
	fmt.Fprintln(w)

	// Stats section
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Signals:      %d\n", result.Stats.Signals)
	fmt.Fprintf(w, "  Starts:       %d\n", result.Stats.Starts)
	fmt.Fprintf(w, "  Updates:      %d\n", result.Stats.Updates)
	fmt.Fprintf(w, "  Completions:  %d\n", result.Stats.Completions)
	fmt.Fprintf(w, "  Executes:     %d\n", result.Stats.Executes)
	fmt.Fprintf(w, "  Interrupts:   %d\n", result.Stats.Interrupts)

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(event TraceEvent) string {
	if event.Type == "signal" {
		line := fmt.Sprintf("[%d] %6dms %-9s %s", event.Seq, event.At, "signal", event.Signal)
		if len(event.Payload) > 0 {
			line += " " + formatArgs(event.Payload)
		}
		if event.CorrelationID != "" {
			line += " correlation=" + event.CorrelationID
		}
		return line
	}

	cmd := ir.Command{
		Seq:           event.Seq,
		At:            time.Duration(event.At) * time.Millisecond,
		Kind:          ir.CommandKind(event.Type),
		Action:        event.Action,
		EntityRef:     event.EntityRef,
		Duration:      time.Duration(event.Duration) * time.Millisecond,
		Easing:        event.Easing,
		Params:        event.Params,
		PerformanceID: truncateID(event.PerformanceID),
		CorrelationID: event.CorrelationID,
		InterruptedBy: event.InterruptedBy,
	}
	if event.Progress != nil {
		cmd.Progress = *event.Progress
	}
	return harness.FormatCommand(cmd)
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	// Sort keys for deterministic output
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
