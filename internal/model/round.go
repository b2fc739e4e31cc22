package model

import (
	"fmt"

	"github.com/roach88/parorch/internal/ir"
)

// Round is the staging arena for one round's parse. Additions accumulate
// here and only reach the model on Commit, which replaces each command's
// sets wholesale.
type Round struct {
	number  int
	model   *Model
	staged  map[string]ir.AccessSet
	order   []string
	applied bool
}

// BeginRound opens a staging arena for the given workset. Only identities
// in the workset may receive additions.
func (m *Model) BeginRound(number int, workset []*Command) *Round {
	r := &Round{
		number: number,
		model:  m,
		staged: make(map[string]ir.AccessSet, len(workset)),
		order:  make([]string, 0, len(workset)),
	}
	for _, c := range workset {
		r.staged[c.Identity] = ir.NewAccessSet()
		r.order = append(r.order, c.Identity)
	}
	return r
}

// Number returns the 1-based round number.
func (r *Round) Number() int { return r.number }

// Has reports whether identity is part of this round's workset.
func (r *Round) Has(identity string) bool {
	_, ok := r.staged[identity]
	return ok
}

// AddRead stages name into the read set of identity.
func (r *Round) AddRead(identity, name string) error {
	a, ok := r.staged[identity]
	if !ok {
		return fmt.Errorf("round %d add read %q: %w", r.number, identity, ErrUnknownCommand)
	}
	a.Reads.Add(name)
	return nil
}

// AddWrite stages name into the write set of identity.
func (r *Round) AddWrite(identity, name string) error {
	a, ok := r.staged[identity]
	if !ok {
		return fmt.Errorf("round %d add write %q: %w", r.number, identity, ErrUnknownCommand)
	}
	a.Writes.Add(name)
	return nil
}

// Add stages a whole access set for identity.
func (r *Round) Add(identity string, set ir.AccessSet) error {
	a, ok := r.staged[identity]
	if !ok {
		return fmt.Errorf("round %d add %q: %w", r.number, identity, ErrUnknownCommand)
	}
	a.Merge(set)
	return nil
}

// Commit replaces every workset command's sets with the staged ones.
// A round can be committed once.
func (r *Round) Commit() error {
	if r.applied {
		return fmt.Errorf("round %d already committed", r.number)
	}
	for _, identity := range r.order {
		c := r.model.byIdentity[identity]
		staged := r.staged[identity]
		prev := c.current
		if err := r.model.ReplaceReadSet(identity, staged.Reads.Sorted()); err != nil {
			return err
		}
		if err := r.model.ReplaceWriteSet(identity, staged.Writes.Sorted()); err != nil {
			return err
		}
		c.previous = prev
		c.current.Round = r.number
	}
	r.applied = true
	return nil
}
