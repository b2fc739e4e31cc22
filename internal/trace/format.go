package trace

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/roach88/parorch/internal/ir"
)

// EventKind classifies a scoped line's body.
type EventKind int

const (
	// EventNone is a body the format does not recognize. Ignored.
	EventNone EventKind = iota
	// EventOpen is a resource-open event.
	EventOpen
	// EventLaunch is a process-launch event.
	EventLaunch
	// EventExit is a command's exit status.
	EventExit
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "resource-open"
	case EventLaunch:
		return "launch"
	case EventExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Event is a decoded body. Only the payload of its Kind is set. Classify
// leaves Scope and Line empty; the parser stamps them.
type Event struct {
	Kind EventKind

	Open   ir.OpenEvent
	Launch ir.LaunchEvent
	Exit   ir.ExitEvent
}

// Format adapts one tracer's log syntax to the parser's line shapes.
type Format interface {
	// Name is the registry name, e.g. "riker".
	Name() string

	// Version is the version of the log syntax this adapter reads.
	Version() *semver.Version

	// Scope splits a scoped line into its owning command and body.
	// unscoped is true for the tracer's "no command" sentinel.
	// ok is false for lines that are not scoped lines at all.
	Scope(line string) (scope, body string, unscoped, ok bool)

	// Classify decodes a body. Unrecognized bodies return EventNone and a
	// nil error; recognized but undecodable bodies return a
	// *MalformedEventError.
	Classify(body string) (Event, error)
}

// Registry holds the known formats by name and version.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	formats map[string][]Format
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string][]Format)}
}

// DefaultRegistry returns a registry holding the built-in formats.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewRikerFormat())
	return r
}

// Register adds f. Registering the same name and version twice replaces
// the earlier entry.
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.formats[f.Name()]
	for i, existing := range list {
		if existing.Version().Equal(f.Version()) {
			list[i] = f
			return
		}
	}
	list = append(list, f)
	slices.SortFunc(list, func(a, b Format) int {
		return b.Version().Compare(a.Version())
	})
	r.formats[f.Name()] = list
}

// Lookup resolves "name" or "name@constraint" to the highest registered
// version satisfying the constraint.
func (r *Registry) Lookup(ref string) (Format, error) {
	name, constraint, hasConstraint := strings.Cut(strings.TrimSpace(ref), "@")

	r.mu.RLock()
	defer r.mu.RUnlock()

	list, ok := r.formats[name]
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("unknown trace format %q", name)
	}
	if !hasConstraint {
		return list[0], nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("trace format %q: invalid version constraint %q: %w", name, constraint, err)
	}
	for _, f := range list {
		if c.Check(f.Version()) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("trace format %q: no version satisfies %q", name, constraint)
}

// Names returns the registered format names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formats))
	for n := range r.formats {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
