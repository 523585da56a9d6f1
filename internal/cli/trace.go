package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dishm/internal/harness"
	"github.com/roach88/dishm/internal/ir"
	"github.com/roach88/dishm/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - list runs when empty
	Kind     string // optional - filter events by kind or "kind:Target"
	TestCase string // optional - filter listed runs
}

// TraceResult holds the trace of one stored run.
type TraceResult struct {
	Run      *harness.Result      `json:"run"`
	Timeline []harness.TraceEvent `json:"timeline"`
	Stats    TraceStats           `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Shown       int            `json:"shown"`
	ByKind      map[string]int `json:"by_kind"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show stored runs and their traces",
		Long: `Show the trace of a run stored by "dishm run --db".

Without --run, lists the stored runs. With --run, prints the run outcome,
the announced steps and the timeline of recorded events: reads, writes,
command invocations, session expiries and operator prompts.

Examples:
  dishm trace --db ./runs.db
  dishm trace --db ./runs.db --run 0192f3c4-...
  dishm trace --db ./runs.db --run 0192f3c4-... --kind read
  dishm trace --db ./runs.db --run 0192f3c4-... --kind write:DishwasherMode.StartUpMode
  dishm trace --db ./runs.db --run 0192f3c4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter events by kind (read, write, invoke, step, prompt, expire_sessions) or kind:Target")
	cmd.Flags().StringVar(&opts.TestCase, "test-case", "", "filter listed runs by test case")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listStoredRuns(ctx, st, opts, cmd)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		if opts.Format == "json" {
			return writeJSON(cmd.OutOrStdout(), CLIResponse{
				Status: "error",
				Error:  &CLIError{Code: ErrCodeNotFound, Message: fmt.Sprintf("no run found: %s", opts.RunID)},
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No run found: %s\n", opts.RunID)
		return nil
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	timeline := filterEvents(run.Trace, opts.Kind)
	result := TraceResult{
		Run:      run,
		Timeline: timeline,
		Stats: TraceStats{
			TotalEvents: len(run.Trace),
			Shown:       len(timeline),
			ByKind:      countByKind(run.Trace),
		},
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{
			Status:  "ok",
			Data:    result,
			TraceID: run.RunID,
		})
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

func listStoredRuns(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx, opts.TestCase)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		if runs == nil {
			runs = []store.RunSummary{}
		}
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: runs})
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-14s ep=%d  %-10s %d events\n",
			r.ID, r.TestCase, r.Endpoint, outcomeLabel(r.Outcome), r.Events)
	}
	return nil
}

// filterEvents keeps the events named by ref. An empty ref keeps all.
func filterEvents(trace []harness.TraceEvent, ref string) []harness.TraceEvent {
	out := make([]harness.TraceEvent, 0, len(trace))
	for _, e := range trace {
		if ref == "" || e.Matches(ref) {
			out = append(out, e)
		}
	}
	return out
}

func countByKind(trace []harness.TraceEvent) map[string]int {
	counts := make(map[string]int)
	for _, e := range trace {
		counts[e.Kind]++
	}
	return counts
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	run := result.Run

	fmt.Fprintf(w, "Trace for Run: %s\n", run.RunID)
	fmt.Fprintf(w, "Test Case: %s (endpoint %d)\n", run.TestCase, run.Endpoint)
	fmt.Fprintf(w, "Outcome: %s\n", outcomeLabel(run.Outcome))
	if run.SkipReason != "" {
		fmt.Fprintf(w, "Skip Reason: %s\n", run.SkipReason)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Steps ===")
	if len(run.Steps) == 0 {
		fmt.Fprintln(w, "  (no steps)")
	}
	for _, s := range run.Steps {
		fmt.Fprintf(w, "  %2d. %s\n", s.Number, s.Description)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	if len(run.Errors) > 0 {
		fmt.Fprintln(w, "=== Errors ===")
		for _, e := range run.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Shown:        %d\n", result.Stats.Shown)
	for _, kind := range []string{
		harness.EventStep, harness.EventRead, harness.EventWrite,
		harness.EventInvoke, harness.EventExpireSessions, harness.EventPrompt,
	} {
		if n := result.Stats.ByKind[kind]; n > 0 {
			fmt.Fprintf(w, "  %-16s %d\n", kind+":", n)
		}
	}
	if verbose && run.Digest != "" {
		fmt.Fprintf(w, "  Digest: %s\n", run.Digest)
	}
	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event harness.TraceEvent, verbose bool) {
	label := strings.ToUpper(event.Kind)
	switch event.Kind {
	case harness.EventStep:
		fmt.Fprintf(w, "  [%d] %s %d: %s\n", event.Seq, label, event.Step, event.Message)
	case harness.EventRead:
		fmt.Fprintf(w, "  [%d] %s %s -> %s%s\n", event.Seq, label, event.Target, formatValue(event.Result), formatStatus(event))
	case harness.EventWrite:
		fmt.Fprintf(w, "  [%d] %s %s = %s%s\n", event.Seq, label, event.Target, formatValue(event.Args), formatStatus(event))
	case harness.EventInvoke:
		fmt.Fprintf(w, "  [%d] %s %s %s -> %s%s\n", event.Seq, label, event.Target,
			formatValue(event.Args), formatValue(event.Result), formatStatus(event))
	case harness.EventPrompt:
		fmt.Fprintf(w, "  [%d] %s %s: %s\n", event.Seq, label, event.Target, event.Message)
	default:
		fmt.Fprintf(w, "  [%d] %s\n", event.Seq, label)
	}
	if verbose {
		fmt.Fprintf(w, "       Step: %d  ID: %s\n", event.Step, truncateID(event.ID))
	}
}

// formatValue formats an event value for display. A missing value is "-".
func formatValue(v ir.Value) string {
	if v == nil {
		return "-"
	}
	return ir.Format(v)
}

func formatStatus(event harness.TraceEvent) string {
	if event.Status == "" {
		return ""
	}
	return " [" + event.Status + "]"
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
