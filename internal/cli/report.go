package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/parorch/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Show stored runs",
		Long: `List the runs stored in the database, newest first, or show one run's
rounds, dependencies and per-command results.

Example:
  parorch report --db ./parorch.db
  parorch report --db ./parorch.db 0192f7c4-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("db") {
				cfg, err := LoadConfig()
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid environment", err)
				}
				opts.Database = cfg.Database
			}
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runReport(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $PARORCH_DB)")

	return cmd
}

func runReport(opts *ReportOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Database == "" {
		_ = formatter.Error(ErrCodeNotFound, "no database: set --db or PARORCH_DB", nil)
		return NewExitError(ExitCommandError, "no database")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	if runID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return formatter.Fail(ErrCodeStoreFailed, ExitCommandError, "failed to list runs", err)
		}
		return formatter.Result(runs, func(w io.Writer) { writeRunList(w, runs) })
	}

	detail, err := st.GetRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.Fail(ErrCodeRunNotFound, ExitCommandError, "run not found", fmt.Errorf("run %s: %w", runID, err))
	}
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, ExitCommandError, "failed to read run", err)
	}
	return formatter.Result(detail, func(w io.Writer) { writeRunDetail(w, detail) })
}

func writeRunList(w io.Writer, runs []store.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%4d  %s  %-9s  %d command(s), %d round(s)\n",
			r.Seq, r.ID, r.Status, r.Commands, r.Rounds)
		if r.Error != "" {
			fmt.Fprintf(w, "      %s\n", r.Error)
		}
	}
}

func writeRunDetail(w io.Writer, d *store.RunDetail) {
	fmt.Fprintf(w, "Run %s (#%d): %s\n", d.ID, d.Seq, d.Status)
	fmt.Fprintf(w, "Trace format %s, scheduler %s, round limit %d\n",
		d.TraceFormat, d.SchedulerVersion, d.MaxRounds)
	if d.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", d.Error)
	}

	for _, r := range d.RoundRecords {
		fmt.Fprintf(w, "Round %d: %d command(s), %d open(s), %d launch(es), %d skipped, %d unresolved\n",
			r.Round, len(r.Workset), r.Opens, r.Launches, r.Skipped, r.Unresolved)
		for i, id := range r.Workset {
			st := r.Statuses[i]
			status := "ok"
			if st.Failed() {
				status = fmt.Sprintf("exit %d", st.ExitCode)
			}
			fmt.Fprintf(w, "  %s [%s]\n", id, status)
			fmt.Fprintf(w, "     reads:  %s\n", joinNames(r.Sets[i].Reads))
			fmt.Fprintf(w, "     writes: %s\n", joinNames(r.Sets[i].Writes))
		}
		writeDependencies(w, r.Dependencies)
		for _, v := range r.Violations {
			fmt.Fprintf(w, "  warning: %q changed its sets\n", v.Identity)
		}
	}

	if d.Result != nil {
		writeRunText(w, d.Result)
	}
}
