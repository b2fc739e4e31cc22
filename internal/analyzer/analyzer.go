package analyzer

import (
	"github.com/roach88/parorch/internal/ir"
	"github.com/roach88/parorch/internal/model"
)

// Analysis is the outcome of one round.
type Analysis struct {
	Round        int
	Next         []*model.Command // Next workset, program order
	Dropped      []*model.Command // Left the workset this round
	Dependencies []ir.Dependency
	Violations   []ir.IdempotenceViolation
}

// Analyze runs every check over a round's workset. workset must be in
// program order and its sets committed for round.
func Analyze(round int, workset []*model.Command) Analysis {
	deps := ForwardDependencies(round, workset)
	next := NextWorkset(workset, deps)

	keep := make(map[string]struct{}, len(next))
	for _, c := range next {
		keep[c.Identity] = struct{}{}
	}
	var dropped []*model.Command
	for _, c := range workset {
		if _, ok := keep[c.Identity]; !ok {
			dropped = append(dropped, c)
		}
	}

	return Analysis{
		Round:        round,
		Next:         next,
		Dropped:      dropped,
		Dependencies: deps,
		Violations:   DetectViolations(round, workset),
	}
}

// ForwardDependencies returns every ordered pair (A, B) of the workset with
// A before B and write_set(A) and read_set(B) sharing a name. Pairs are ordered by
// B, then A.
func ForwardDependencies(round int, workset []*model.Command) []ir.Dependency {
	var deps []ir.Dependency
	for j := 1; j < len(workset); j++ {
		b := workset[j]
		reads := b.ReadSet()
		if reads.Len() == 0 {
			continue
		}
		for i := 0; i < j; i++ {
			a := workset[i]
			shared := a.WriteSet().Intersect(reads)
			if len(shared) == 0 {
				continue
			}
			deps = append(deps, ir.Dependency{
				Round: round,
				From:  a.Identity,
				To:    b.Identity,
				Paths: shared,
			})
		}
	}
	return deps
}

// NextWorkset returns the commands of workset that are the target of at
// least one dependency, once each, in workset order.
func NextWorkset(workset []*model.Command, deps []ir.Dependency) []*model.Command {
	if len(deps) == 0 {
		return nil
	}
	targets := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		targets[d.To] = struct{}{}
	}
	var next []*model.Command
	for _, c := range workset {
		if _, ok := targets[c.Identity]; ok {
			next = append(next, c)
		}
	}
	return next
}
