package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/parorch/internal/ir"
)

// writeRunText prints a run result for humans.
func writeRunText(w io.Writer, r *ir.RunResult) {
	for i, ws := range r.Worksets {
		fmt.Fprintf(w, "Round %d: %d command(s)\n", i+1, len(ws))
		for _, id := range ws {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}

	writeDependencies(w, r.Dependencies)

	fmt.Fprintln(w, "Commands:")
	for _, c := range r.Commands {
		status := "ok"
		if c.Failed {
			status = fmt.Sprintf("exit %d", c.ExitCode)
		}
		fmt.Fprintf(w, "  #%d %s\n", c.Position+1, c.Raw)
		fmt.Fprintf(w, "     reads:  %s\n", joinNames(c.ReadSet))
		fmt.Fprintf(w, "     writes: %s\n", joinNames(c.WriteSet))
		fmt.Fprintf(w, "     runs: %d, settled in round %d, %s\n", c.Executions, c.DroppedRound, status)
	}

	for _, v := range r.Violations {
		fmt.Fprintf(w, "warning: %q changed its sets in round %d (reads %s, writes %s)\n",
			v.Identity, v.Round, joinNames(v.ReadsDiff), joinNames(v.WritesDiff))
	}

	if r.Converged {
		fmt.Fprintf(w, "✓ Converged after %d round(s)\n", r.Rounds)
	} else {
		fmt.Fprintf(w, "✗ Stopped after %d round(s)\n", r.Rounds)
	}
}

// writeDependencies prints one "depends on" line per forward dependency.
func writeDependencies(w io.Writer, deps []ir.Dependency) {
	if len(deps) == 0 {
		return
	}
	fmt.Fprintln(w, "Dependencies:")
	for _, d := range deps {
		fmt.Fprintf(w, "  round %d: %q depends on %q through %s\n",
			d.Round, d.To, d.From, joinNames(d.Paths))
	}
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
