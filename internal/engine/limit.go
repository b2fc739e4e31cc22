package engine

import (
	"errors"
	"fmt"
)

// RoundCounter hands out round numbers for one run and enforces the
// run's round limit.
//
// Round numbers are logical: 1 for the first round, incremented by one per
// round, never derived from wall-clock time.
//
// The workset loses at least its first command every round, so a run over
// n commands finishes within n rounds. The limit defaults to n and only
// trips when a caller configures a lower one.
type RoundCounter struct {
	limit   int
	current int
}

// NewRoundCounter creates a counter allowing at most limit rounds.
// limit <= 0 means no limit.
func NewRoundCounter(limit int) *RoundCounter {
	return &RoundCounter{limit: limit}
}

// Next advances to the next round and returns its number.
// Returns RoundLimitError if the new round exceeds the limit; the counter
// still advances.
func (c *RoundCounter) Next() (int, error) {
	c.current++
	if c.limit > 0 && c.current > c.limit {
		return c.current, &RoundLimitError{Round: c.current, Limit: c.limit}
	}
	return c.current, nil
}

// Current returns the number of the round in progress, 0 before the first.
func (c *RoundCounter) Current() int {
	return c.current
}

// Limit returns the configured limit.
func (c *RoundCounter) Limit() int {
	return c.limit
}

// RoundLimitError is returned when a run needs more rounds than allowed.
type RoundLimitError struct {
	Round int // Round that was refused
	Limit int // Maximum allowed rounds
}

// Error implements the error interface.
func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("round %d exceeds round limit %d", e.Round, e.Limit)
}

// IsRoundLimit returns true if err is a RoundLimitError.
// Uses errors.As to handle wrapped errors.
func IsRoundLimit(err error) bool {
	var le *RoundLimitError
	return errors.As(err, &le)
}
