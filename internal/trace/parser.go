package trace

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/parorch/internal/ir"
)

// Parser converts one round's log into per-command access sets.
// A Parser holds no per-round state and may be reused across rounds.
type Parser struct {
	format Format
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for attribution diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

// NewParser creates a parser for the given format.
func NewParser(f Format, opts ...Option) *Parser {
	p := &Parser{format: f, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Format returns the parser's format adapter.
func (p *Parser) Format() Format { return p.format }

// reference is a resolved resource-open event.
type reference struct {
	path string
	mode ir.AccessMode
}

// Result is the parse of one round's log.
type Result struct {
	// Direct holds, per workset command, the opens found on lines scoped to
	// that command.
	Direct map[string]ir.AccessSet

	// Launched holds, per workset command, the opens bound to it by launch
	// events in its parent's scope.
	Launched map[string]ir.AccessSet

	// Exits holds, per workset command, the exit status the trace reports
	// for it. Commands without an exit event are absent.
	Exits map[string]int

	// Opens, Launches and ExitEvents count the structured events decoded.
	Opens      int
	Launches   int
	ExitEvents int

	// Skipped lists the events that could not be decoded.
	Skipped []*AttributionError

	// Unresolved lists launch bindings of workset commands that named no
	// reference in the launching scope.
	Unresolved []*AttributionError
}

// Diagnostics returns the number of skipped events and unresolved bindings.
func (r *Result) Diagnostics() int {
	return len(r.Skipped) + len(r.Unresolved)
}

// Combined returns the union of both contributions for identity.
func (r *Result) Combined(identity string) ir.AccessSet {
	out := ir.NewAccessSet()
	if d, ok := r.Direct[identity]; ok {
		out.Merge(d)
	}
	if l, ok := r.Launched[identity]; ok {
		out.Merge(l)
	}
	return out
}

// Parse reads lines for the given round. workset lists the identities of
// interest; only they receive access sets.
//
// Returns TraceUnavailableError if lines is empty or no structured event
// could be decoded. Malformed events are skipped, recorded in
// Result.Skipped and logged; they never abort the round.
func (p *Parser) Parse(round int, lines []string, workset []string) (*Result, error) {
	if len(lines) == 0 {
		return nil, &TraceUnavailableError{Round: round, Reason: "empty trace"}
	}

	res := &Result{
		Direct:   make(map[string]ir.AccessSet, len(workset)),
		Launched: make(map[string]ir.AccessSet, len(workset)),
		Exits:    make(map[string]int),
	}
	for _, identity := range workset {
		key := norm.NFC.String(identity)
		res.Direct[key] = ir.NewAccessSet()
		res.Launched[key] = ir.NewAccessSet()
	}

	// Reference table keyed by owning scope, then local id. Unscoped
	// references are never stored, so bindings to them do not resolve.
	refs := make(map[string]map[string]reference)

	for i, line := range lines {
		lineNo := i + 1
		scope, body, unscoped, ok := p.format.Scope(line)
		if !ok {
			continue
		}
		scope = norm.NFC.String(scope)

		ev, err := p.format.Classify(body)
		if err != nil {
			p.skip(res, lineNo, scope, body, err)
			continue
		}

		switch ev.Kind {
		case EventOpen:
			res.Opens++
			if unscoped {
				continue
			}
			open := ev.Open
			open.Scope, open.Line = scope, lineNo
			table, ok := refs[scope]
			if !ok {
				table = make(map[string]reference)
				refs[scope] = table
			}
			table[open.LocalID] = reference{path: open.Path, mode: open.Mode}

			if direct, ok := res.Direct[scope]; ok {
				direct.Record(open.Path, open.Mode)
			}

		case EventLaunch:
			res.Launches++
			launch := ev.Launch
			launch.Scope, launch.Line = scope, lineNo
			child := norm.NFC.String(launch.Child)
			target, ok := res.Launched[child]
			if !ok {
				continue
			}
			table := refs[scope]
			for _, b := range launch.Bindings {
				ref, ok := table[b.LocalID]
				if !ok {
					p.unresolved(res, launch, child, b)
					continue
				}
				target.Record(ref.path, ref.mode)
			}

		case EventExit:
			res.ExitEvents++
			if unscoped {
				continue
			}
			exit := ev.Exit
			exit.Scope, exit.Line = scope, lineNo
			if _, ok := res.Direct[exit.Scope]; ok {
				res.Exits[exit.Scope] = exit.Code
				p.logger.Debug("command exited", "line", exit.Line, "command", exit.Scope, "exit_code", exit.Code)
			}
		}
	}

	if res.Opens+res.Launches+res.ExitEvents == 0 {
		return res, &TraceUnavailableError{Round: round, Reason: "no structured events in trace"}
	}
	return res, nil
}

func (p *Parser) unresolved(res *Result, launch ir.LaunchEvent, child string, b ir.Binding) {
	ae := &AttributionError{
		Line:   launch.Line,
		Scope:  launch.Scope,
		Body:   fmt.Sprintf("%s=%s", b.Name, b.LocalID),
		Reason: fmt.Sprintf("binding %s=%s for %q names no reference", b.Name, b.LocalID, child),
	}
	res.Unresolved = append(res.Unresolved, ae)
	p.logger.Warn("launch binding unresolved",
		"line", launch.Line, "command", child, "scope", launch.Scope, "local_id", b.LocalID)
}

func (p *Parser) skip(res *Result, line int, scope, body string, err error) {
	reason := err.Error()
	var me *MalformedEventError
	if errors.As(err, &me) {
		reason = me.Reason
	}
	ae := &AttributionError{Line: line, Scope: scope, Body: body, Reason: reason}
	res.Skipped = append(res.Skipped, ae)
	p.logger.Warn("attribution skipped",
		"line", line, "command", scope, "reason", reason)
}
