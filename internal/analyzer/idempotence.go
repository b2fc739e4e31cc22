package analyzer

import (
	"github.com/roach88/parorch/internal/ir"
	"github.com/roach88/parorch/internal/model"
)

// DetectViolations compares each workset command's sets for round against
// the sets it produced in round-1. A difference means re-execution did not
// reproduce the command's behavior, which breaks the assumption that
// commands are idempotent and deterministic. Commands that did not run in
// both rounds are not compared.
func DetectViolations(round int, workset []*model.Command) []ir.IdempotenceViolation {
	var out []ir.IdempotenceViolation
	for _, c := range workset {
		cur := c.Current()
		prev, ok := c.Previous()
		if !ok || cur.Round != round || prev.Round != round-1 {
			continue
		}
		reads := cur.Reads.Diff(prev.Reads)
		writes := cur.Writes.Diff(prev.Writes)
		if len(reads) == 0 && len(writes) == 0 {
			continue
		}
		out = append(out, ir.IdempotenceViolation{
			Identity:   c.Identity,
			Round:      round,
			ReadsDiff:  reads,
			WritesDiff: writes,
		})
	}
	return out
}
