package model

import (
	"errors"
	"fmt"
)

// ErrUnknownCommand is returned when an identity is not part of the model.
var ErrUnknownCommand = errors.New("unknown command")

// MalformedCommandError reports an input command that cannot be normalized.
type MalformedCommandError struct {
	Position int    // 0-based position in the input list, -1 if unknown
	Raw      string // The command as written
	Reason   string
}

func (e *MalformedCommandError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("malformed command #%d %q: %s", e.Position+1, e.Raw, e.Reason)
	}
	return fmt.Sprintf("malformed command %q: %s", e.Raw, e.Reason)
}

// DuplicateCommandError reports two input commands with the same identity.
// Identities are the map key of the model and must be unique.
type DuplicateCommandError struct {
	Identity string
	First    int // 0-based position of the first occurrence
	Second   int // 0-based position of the duplicate
}

func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("duplicate command %q at #%d (first seen at #%d)", e.Identity, e.Second+1, e.First+1)
}

// IsMalformedCommand reports whether err is a MalformedCommandError.
// Uses errors.As to handle wrapped errors.
func IsMalformedCommand(err error) bool {
	var me *MalformedCommandError
	return errors.As(err, &me)
}

// IsDuplicateCommand reports whether err is a DuplicateCommandError.
func IsDuplicateCommand(err error) bool {
	var de *DuplicateCommandError
	return errors.As(err, &de)
}
