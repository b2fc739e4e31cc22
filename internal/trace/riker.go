package trace

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/roach88/parorch/internal/ir"
)

const (
	rikerCommandPrefix = "[Command "
	rikerNoCommand     = "[No Command]"
	rikerScopeEnd      = "]: "
)

var rikerPathRef = regexp.MustCompile(`^(\S+)\s*=\s*PathRef\((.*)\)\s*$`)

// RikerFormat reads the IR dump printed by `rkr trace`.
type RikerFormat struct {
	version *semver.Version
}

// NewRikerFormat returns the Riker adapter.
func NewRikerFormat() *RikerFormat {
	return &RikerFormat{version: semver.MustParse("1.0.0")}
}

// Name implements Format.
func (f *RikerFormat) Name() string { return "riker" }

// Version implements Format.
func (f *RikerFormat) Version() *semver.Version { return f.version }

// Scope implements Format.
func (f *RikerFormat) Scope(line string) (scope, body string, unscoped, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	if rest, found := strings.CutPrefix(line, rikerNoCommand+":"); found {
		return ir.Unscoped, strings.TrimSpace(rest), true, true
	}
	rest, found := strings.CutPrefix(line, rikerCommandPrefix)
	if !found {
		return "", "", false, false
	}
	idx := strings.Index(rest, rikerScopeEnd)
	if idx < 0 {
		return "", "", false, false
	}
	return rest[:idx], strings.TrimSpace(rest[idx+len(rikerScopeEnd):]), false, true
}

// Classify implements Format.
func (f *RikerFormat) Classify(body string) (Event, error) {
	if m := rikerPathRef.FindStringSubmatch(body); m != nil {
		return parseRikerPathRef(m[1], m[2])
	}
	if inner, found := strings.CutPrefix(body, "Launch("); found {
		return parseRikerLaunch(inner)
	}
	if inner, found := strings.CutPrefix(body, "Exit("); found {
		return parseRikerExit(inner)
	}
	return Event{Kind: EventNone}, nil
}

// parseRikerExit decodes "<status>)".
func parseRikerExit(inner string) (Event, error) {
	rest, found := strings.CutSuffix(strings.TrimSpace(inner), ")")
	if !found {
		return Event{}, malformed(EventExit, "unterminated Exit")
	}
	code, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return Event{}, malformed(EventExit, "bad exit status %q", rest)
	}
	return Event{Kind: EventExit, Exit: ir.ExitEvent{Code: code}}, nil
}

// parseRikerPathRef decodes the argument list of PathRef. Riker prints
// (base, "path", flags); the two-argument (path, flags) form is accepted too.
func parseRikerPathRef(localID, argList string) (Event, error) {
	args := splitArgs(argList)
	var rawPath, rawMode string
	switch {
	case len(args) >= 3:
		rawPath, rawMode = args[1], args[2]
	case len(args) == 2:
		rawPath, rawMode = args[0], args[1]
	default:
		return Event{}, malformed(EventOpen, "expected path and mode in %q", argList)
	}

	path := rawPath
	if strings.HasPrefix(path, `"`) {
		unquoted, err := strconv.Unquote(path)
		if err != nil {
			return Event{}, malformed(EventOpen, "bad path literal %s", rawPath)
		}
		path = unquoted
	}
	if path == "" {
		return Event{}, malformed(EventOpen, "empty path")
	}

	mode, err := ParseMode(rawMode)
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: EventOpen, Open: ir.OpenEvent{LocalID: localID, Path: path, Mode: mode}}, nil
}

// ParseMode decodes a mode descriptor. Position 0 is 'r' or '-', position 1
// is 'w' or '-'; anything after the second flag (more flags, options in
// parentheses) is ignored.
func ParseMode(desc string) (ir.AccessMode, error) {
	desc = strings.TrimSpace(desc)
	if i := strings.IndexAny(desc, " (\t"); i >= 0 {
		desc = desc[:i]
	}
	if len(desc) < 2 {
		return 0, malformed(EventOpen, "mode %q is missing flags", desc)
	}

	var mode ir.AccessMode
	switch desc[0] {
	case 'r':
		mode |= ir.ModeRead
	case '-':
	default:
		return 0, malformed(EventOpen, "mode %q: bad read flag %q", desc, desc[0])
	}
	switch desc[1] {
	case 'w':
		mode |= ir.ModeWrite
	case '-':
	default:
		return 0, malformed(EventOpen, "mode %q: bad write flag %q", desc, desc[1])
	}
	return mode, nil
}

// parseRikerLaunch decodes "[Command child], {name=id, ...})". A leading
// pending list, "[...], child, {...}", is accepted as well.
func parseRikerLaunch(inner string) (Event, error) {
	inner = strings.TrimSpace(inner)
	rest, found := strings.CutSuffix(inner, ")")
	if !found {
		return Event{}, malformed(EventLaunch, "unterminated Launch")
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasSuffix(rest, "}") {
		return Event{}, malformed(EventLaunch, "missing binding map")
	}
	open := strings.LastIndex(rest, "{")
	if open < 0 {
		return Event{}, malformed(EventLaunch, "missing binding map")
	}

	head := strings.TrimRight(strings.TrimSpace(rest[:open]), ", ")
	child := launchChild(head)
	if child == "" {
		return Event{}, malformed(EventLaunch, "missing child command in %q", head)
	}

	bindings, err := parseBindings(rest[open+1 : len(rest)-1])
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: EventLaunch, Launch: ir.LaunchEvent{Child: child, Bindings: bindings}}, nil
}

func launchChild(head string) string {
	if strings.HasSuffix(head, "]") {
		if i := strings.LastIndex(head, rikerCommandPrefix); i >= 0 {
			return strings.TrimSpace(head[i+len(rikerCommandPrefix) : len(head)-1])
		}
	}
	if i := strings.LastIndex(head, "],"); i >= 0 {
		head = strings.TrimSpace(head[i+2:])
	}
	if c, found := strings.CutPrefix(head, rikerCommandPrefix); found {
		head = strings.TrimSuffix(c, "]")
	}
	return strings.TrimSpace(head)
}

func parseBindings(s string) ([]ir.Binding, error) {
	var out []ir.Binding
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, id, found := strings.Cut(part, "=")
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if !found || name == "" || id == "" {
			return nil, malformed(EventLaunch, "bad binding %q", part)
		}
		out = append(out, ir.Binding{Name: name, LocalID: id})
	}
	return out, nil
}

// splitArgs splits a call's argument list on top-level commas. Commas inside
// double quotes or parentheses do not split.
func splitArgs(s string) []string {
	var (
		out   []string
		depth int
		quote bool
		start int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case quote && c == '\\':
			i++
		case c == '"':
			quote = !quote
		case quote:
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" || len(out) > 0 {
		out = append(out, tail)
	}
	return out
}
