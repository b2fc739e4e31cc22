package model

import (
	"fmt"

	"github.com/roach88/parorch/internal/ir"
)

// Snapshot is the read/write sets a command produced in one round.
type Snapshot struct {
	Round  int
	Reads  ir.PathSet
	Writes ir.PathSet
}

// Command is one user-specified shell invocation.
type Command struct {
	Position int    // 0-based program order
	Raw      string // As written, redirection included
	Identity string // Normalized stable key
	ID       string // Content-addressed ID of Identity

	current  Snapshot
	previous Snapshot

	executions   int
	lastStatus   ir.CommandStatus
	droppedRound int
}

// ReadSet returns the committed read set. Callers must not mutate it.
func (c *Command) ReadSet() ir.PathSet { return c.current.Reads }

// WriteSet returns the committed write set. Callers must not mutate it.
func (c *Command) WriteSet() ir.PathSet { return c.current.Writes }

// Current returns the sets committed by the most recent round.
func (c *Command) Current() Snapshot { return c.current }

// Previous returns the sets committed before the most recent replace.
// ok is false if the command has been committed at most once.
func (c *Command) Previous() (Snapshot, bool) {
	return c.previous, c.previous.Round > 0
}

// Executions returns how many rounds executed this command.
func (c *Command) Executions() int { return c.executions }

// LastStatus returns the executor status of the most recent execution.
func (c *Command) LastStatus() ir.CommandStatus { return c.lastStatus }

// DroppedRound returns the round the command left the workset in, 0 if it
// is still active.
func (c *Command) DroppedRound() int { return c.droppedRound }

// Model stores every command of a run keyed by identity, in program order.
type Model struct {
	commands   []*Command
	byIdentity map[string]*Command
	pool       ir.PathSet
}

// Option configures a Model.
type Option func(*Model)

// WithResourcePool restricts committed sets to the given resource names.
// An empty pool disables filtering.
func WithResourcePool(names ...string) Option {
	return func(m *Model) {
		m.pool = ir.NewPathSet(names...)
	}
}

// New ingests the raw command list. The list order is the program order
// used for the rest of the run.
//
// Fails with MalformedCommandError if any command normalizes to nothing and
// with DuplicateCommandError if two commands share an identity. Nothing is
// partially ingested on failure.
func New(raws []string, opts ...Option) (*Model, error) {
	m := &Model{
		commands:   make([]*Command, 0, len(raws)),
		byIdentity: make(map[string]*Command, len(raws)),
	}
	for _, opt := range opts {
		opt(m)
	}

	for i, raw := range raws {
		identity, err := Normalize(raw)
		if err != nil {
			return nil, &MalformedCommandError{Position: i, Raw: raw, Reason: "empty after stripping redirection"}
		}
		if first, ok := m.byIdentity[identity]; ok {
			return nil, &DuplicateCommandError{Identity: identity, First: first.Position, Second: i}
		}
		id, err := ir.CommandID(identity)
		if err != nil {
			return nil, fmt.Errorf("ingest command #%d: %w", i+1, err)
		}
		c := &Command{
			Position: i,
			Raw:      raw,
			Identity: identity,
			ID:       id,
			current:  Snapshot{Reads: make(ir.PathSet), Writes: make(ir.PathSet)},
		}
		m.commands = append(m.commands, c)
		m.byIdentity[identity] = c
	}
	return m, nil
}

// Len returns the number of commands.
func (m *Model) Len() int { return len(m.commands) }

// Commands returns every command in program order.
func (m *Model) Commands() []*Command {
	out := make([]*Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// Lookup finds a command by identity.
func (m *Model) Lookup(identity string) (*Command, bool) {
	c, ok := m.byIdentity[identity]
	return c, ok
}

// ReplaceReadSet overwrites the committed read set of identity.
func (m *Model) ReplaceReadSet(identity string, names []string) error {
	c, ok := m.byIdentity[identity]
	if !ok {
		return fmt.Errorf("replace read set %q: %w", identity, ErrUnknownCommand)
	}
	c.current.Reads = ir.NewPathSet(names...).Filter(m.pool)
	return nil
}

// ReplaceWriteSet overwrites the committed write set of identity.
func (m *Model) ReplaceWriteSet(identity string, names []string) error {
	c, ok := m.byIdentity[identity]
	if !ok {
		return fmt.Errorf("replace write set %q: %w", identity, ErrUnknownCommand)
	}
	c.current.Writes = ir.NewPathSet(names...).Filter(m.pool)
	return nil
}

// RecordExecution stores the executor status of identity for round.
func (m *Model) RecordExecution(identity string, status ir.CommandStatus) error {
	c, ok := m.byIdentity[identity]
	if !ok {
		return fmt.Errorf("record execution %q: %w", identity, ErrUnknownCommand)
	}
	c.executions++
	c.lastStatus = status
	return nil
}

// MarkDropped records that identity left the workset after round.
func (m *Model) MarkDropped(identity string, round int) error {
	c, ok := m.byIdentity[identity]
	if !ok {
		return fmt.Errorf("mark dropped %q: %w", identity, ErrUnknownCommand)
	}
	c.droppedRound = round
	return nil
}

// Workset returns the initial workset: every command, in program order.
func (m *Model) Workset() []*Command {
	return m.Commands()
}

// Results converts the model to the externally observable result rows.
func (m *Model) Results() []ir.CommandResult {
	out := make([]ir.CommandResult, 0, len(m.commands))
	for _, c := range m.commands {
		out = append(out, ir.CommandResult{
			Position:     c.Position,
			Raw:          c.Raw,
			Identity:     c.Identity,
			ReadSet:      c.current.Reads.Sorted(),
			WriteSet:     c.current.Writes.Sorted(),
			DroppedRound: c.droppedRound,
			Executions:   c.executions,
			Failed:       c.lastStatus.Failed(),
			ExitCode:     c.lastStatus.ExitCode,
		})
	}
	return out
}
