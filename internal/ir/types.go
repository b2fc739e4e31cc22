package ir

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Unscoped is the scope of trace lines emitted before any command was
// assigned (the tracer's "no command" sentinel).
const Unscoped = ""

// AccessMode is the read/write capability a resource was opened with.
type AccessMode uint8

const (
	// ModeRead marks a resource opened for reading.
	ModeRead AccessMode = 1 << iota
	// ModeWrite marks a resource opened for writing.
	ModeWrite
)

// CanRead reports whether the mode includes read access.
func (m AccessMode) CanRead() bool { return m&ModeRead != 0 }

// CanWrite reports whether the mode includes write access.
func (m AccessMode) CanWrite() bool { return m&ModeWrite != 0 }

// String renders the mode in the two-flag form used by trace logs.
func (m AccessMode) String() string {
	b := []byte("--")
	if m.CanRead() {
		b[0] = 'r'
	}
	if m.CanWrite() {
		b[1] = 'w'
	}
	return string(b)
}

// OpenEvent is a resource-open event: the owning command bound LocalID to
// Path with Mode. LocalID is only unique within Scope.
type OpenEvent struct {
	Scope   string
	LocalID string
	Path    string
	Mode    AccessMode
	Line    int
}

// Binding maps a launched child's local handle name to a reference id of
// the launching scope.
type Binding struct {
	Name    string
	LocalID string
}

// LaunchEvent records that Scope launched Child with the given bindings.
type LaunchEvent struct {
	Scope    string
	Child    string
	Bindings []Binding
	Line     int
}

// ExitEvent records the exit status of the command Scope.
type ExitEvent struct {
	Scope string
	Code  int
	Line  int
}

// CanonicalPath normalizes a resource name for comparison.
// Paths are NFC normalized and trimmed; nothing else is rewritten, since the
// tracer reports names exactly as the command opened them.
func CanonicalPath(p string) string {
	return norm.NFC.String(strings.TrimSpace(p))
}

// PathSet is a set of canonical resource names.
type PathSet map[string]struct{}

// NewPathSet creates a set holding the canonical form of each name.
func NewPathSet(names ...string) PathSet {
	s := make(PathSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts the canonical form of name. Empty names are ignored.
func (s PathSet) Add(name string) {
	c := CanonicalPath(name)
	if c == "" {
		return
	}
	s[c] = struct{}{}
}

// Has reports whether name (canonicalized) is in the set.
func (s PathSet) Has(name string) bool {
	_, ok := s[CanonicalPath(name)]
	return ok
}

// Len returns the number of names in the set.
func (s PathSet) Len() int { return len(s) }

// Sorted returns the names in ascending order. Never nil.
func (s PathSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Clone returns an independent copy.
func (s PathSet) Clone() PathSet {
	out := make(PathSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Union adds every name of other to s.
func (s PathSet) Union(other PathSet) {
	for k := range other {
		s[k] = struct{}{}
	}
}

// Intersect returns the sorted names present in both sets.
func (s PathSet) Intersect(other PathSet) []string {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	var out []string
	for k := range small {
		if _, ok := large[k]; ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// Equal reports whether both sets hold the same names.
func (s PathSet) Equal(other PathSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// Diff returns the sorted symmetric difference of s and other.
func (s PathSet) Diff(other PathSet) []string {
	var out []string
	for k := range s {
		if _, ok := other[k]; !ok {
			out = append(out, k)
		}
	}
	for k := range other {
		if _, ok := s[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// Filter keeps only names contained in pool. A nil or empty pool keeps all.
func (s PathSet) Filter(pool PathSet) PathSet {
	if len(pool) == 0 {
		return s.Clone()
	}
	out := make(PathSet)
	for k := range s {
		if _, ok := pool[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

// AccessSet is the read and write sets observed for one command.
type AccessSet struct {
	Reads  PathSet
	Writes PathSet
}

// NewAccessSet returns an AccessSet with empty, non-nil sets.
func NewAccessSet() AccessSet {
	return AccessSet{Reads: make(PathSet), Writes: make(PathSet)}
}

// Record adds path to the sets selected by mode.
func (a AccessSet) Record(path string, mode AccessMode) {
	if mode.CanRead() {
		a.Reads.Add(path)
	}
	if mode.CanWrite() {
		a.Writes.Add(path)
	}
}

// Merge unions other into a.
func (a AccessSet) Merge(other AccessSet) {
	a.Reads.Union(other.Reads)
	a.Writes.Union(other.Writes)
}

// Dependency is a forward dependency observed in Round: To (later in
// program order) read Paths that From (earlier) wrote.
type Dependency struct {
	Round int      `json:"round"`
	From  string   `json:"from"`
	To    string   `json:"to"`
	Paths []string `json:"paths"`
}

// IdempotenceViolation reports a command whose read or write set changed
// between two consecutive rounds it was executed in.
type IdempotenceViolation struct {
	Identity   string   `json:"identity"`
	Round      int      `json:"round"`
	ReadsDiff  []string `json:"reads_diff,omitempty"`
	WritesDiff []string `json:"writes_diff,omitempty"`
}
