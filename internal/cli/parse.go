package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/parorch/internal/analyzer"
	"github.com/roach88/parorch/internal/ir"
	"github.com/roach88/parorch/internal/model"
	"github.com/roach88/parorch/internal/rkr"
	"github.com/roach88/parorch/internal/trace"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	TraceFormat string
	Only        []string
}

// ParsedCommand is one command's sets as read from a saved trace.
type ParsedCommand struct {
	Identity string   `json:"identity"`
	Reads    []string `json:"reads"`
	Writes   []string `json:"writes"`
}

// ParseOutput is the offline analysis of one trace.
type ParseOutput struct {
	Commands     []ParsedCommand `json:"commands"`
	Dependencies []ir.Dependency `json:"dependencies"`
	Next         []string        `json:"next"`
	Opens        int             `json:"opens"`
	Launches     int             `json:"launches"`
	Skipped      []string        `json:"skipped,omitempty"`
	Unresolved   []string        `json:"unresolved,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <commands-file> <trace-file>",
		Short: "Analyze a saved trace without executing anything",
		Long: `Read a saved trace as the first round of the command list and print
each command's read and write sets, the forward dependencies and the
workset the next round would execute.

Example:
  parorch parse commands.txt rkr-trace.txt
  parorch parse --format json commands.yaml rkr-trace.txt`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TraceFormat, "trace-format", "riker", "trace format, optionally name@constraint")
	cmd.Flags().StringArrayVar(&opts.Only, "only", nil, "limit read/write sets to this file name (repeatable)")

	return cmd
}

func runParse(opts *ParseOptions, commandsPath, tracePath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	commands, err := LoadCommands(commandsPath)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	var modelOpts []model.Option
	if len(opts.Only) > 0 {
		modelOpts = append(modelOpts, model.WithResourcePool(opts.Only...))
	}
	m, err := model.New(commands, modelOpts...)
	if err != nil {
		code, exit := classifyRunError(err)
		return formatter.Fail(code, exit, "invalid command list", err)
	}

	format, err := trace.DefaultRegistry().Lookup(opts.TraceFormat)
	if err != nil {
		return formatter.Fail(ErrCodeTraceFormat, ExitCommandError, "invalid trace format", err)
	}

	lines, err := rkr.ReadTrace(tracePath)
	if err != nil {
		return formatter.Fail(ErrCodeTraceUnavailable, ExitCommandError, "trace unavailable", err)
	}
	formatter.VerboseLog("Read %d trace line(s) from %s", len(lines), tracePath)

	out, err := analyzeTrace(m, trace.NewParser(format, trace.WithLogger(logger)), lines)
	if err != nil {
		code := ErrCodeGeneric
		if trace.IsTraceUnavailable(err) {
			code = ErrCodeTraceUnavailable
		}
		return formatter.Fail(code, ExitCommandError, "trace analysis failed", err)
	}

	if formatter.JSON() {
		return formatter.Success(out)
	}
	writeParseText(formatter, out)
	return nil
}

// analyzeTrace treats lines as round 1 of m.
func analyzeTrace(m *model.Model, parser *trace.Parser, lines []string) (*ParseOutput, error) {
	workset := m.Workset()
	identities := make([]string, len(workset))
	for i, c := range workset {
		identities[i] = c.Identity
	}

	parsed, err := parser.Parse(1, lines, identities)
	if err != nil {
		return nil, err
	}

	round := m.BeginRound(1, workset)
	for _, c := range workset {
		if err := round.Add(c.Identity, parsed.Combined(c.Identity)); err != nil {
			return nil, err
		}
	}
	if err := round.Commit(); err != nil {
		return nil, err
	}
	a := analyzer.Analyze(1, workset)

	out := &ParseOutput{
		Commands:     make([]ParsedCommand, 0, len(workset)),
		Dependencies: a.Dependencies,
		Next:         make([]string, 0, len(a.Next)),
		Opens:        parsed.Opens,
		Launches:     parsed.Launches,
	}
	if out.Dependencies == nil {
		out.Dependencies = []ir.Dependency{}
	}
	for _, c := range workset {
		out.Commands = append(out.Commands, ParsedCommand{
			Identity: c.Identity,
			Reads:    c.ReadSet().Sorted(),
			Writes:   c.WriteSet().Sorted(),
		})
	}
	for _, c := range a.Next {
		out.Next = append(out.Next, c.Identity)
	}
	for _, s := range parsed.Skipped {
		out.Skipped = append(out.Skipped, s.Error())
	}
	for _, u := range parsed.Unresolved {
		out.Unresolved = append(out.Unresolved, u.Error())
	}
	return out, nil
}

func writeParseText(formatter *OutputFormatter, out *ParseOutput) {
	w := formatter.Writer
	fmt.Fprintf(w, "Trace: %d open(s), %d launch(es)\n", out.Opens, out.Launches)
	for _, c := range out.Commands {
		fmt.Fprintf(w, "  %s\n", c.Identity)
		fmt.Fprintf(w, "     reads:  %s\n", joinNames(c.Reads))
		fmt.Fprintf(w, "     writes: %s\n", joinNames(c.Writes))
	}
	writeDependencies(w, out.Dependencies)
	if len(out.Next) == 0 {
		fmt.Fprintln(w, "✓ No forward dependencies; nothing to re-run")
	} else {
		fmt.Fprintf(w, "Next round: %s\n", joinNames(out.Next))
	}
	for _, s := range out.Skipped {
		formatter.VerboseLog("skipped: %s", s)
	}
	for _, u := range out.Unresolved {
		formatter.VerboseLog("unresolved: %s", u)
	}
}
